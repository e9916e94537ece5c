package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "CONFIGRELOAD"

// Load reads settings from the given config file, layered under environment
// variables prefixed with CONFIGRELOAD_ (e.g. CONFIGRELOAD_POLL_PERIOD=30s).
// An empty path skips the file and uses defaults plus environment only.
// The returned settings are already validated.
func Load(path string) (Settings, error) {
	loader := viper.New()

	defaults := Default()
	loader.SetDefault("configmap_mode", defaults.ConfigMapMode)
	loader.SetDefault("secret_mode", defaults.SecretMode)
	loader.SetDefault("poll_period", defaults.PollPeriod)
	loader.SetDefault("max_jitter", defaults.MaxJitter)
	loader.SetDefault("strategy", defaults.Strategy)
	loader.SetDefault("metrics_bind_address", defaults.MetricsBindAddress)

	loader.SetEnvPrefix(envPrefix)
	loader.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	loader.AutomaticEnv()

	if path != "" {
		loader.SetConfigFile(path)
		if err := loader.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var settings Settings
	if err := loader.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
