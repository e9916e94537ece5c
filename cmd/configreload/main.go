package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	kubeadapters "configreload/pkg/adapters/kube"
	"configreload/pkg/config"
	"configreload/pkg/core"
	"configreload/pkg/reload"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to the configreload settings file (YAML). Empty uses defaults and environment.")
	opts := zap.Options{Development: false}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	settings, err := config.Load(configPath)
	if err != nil {
		setupLog.Error(err, "invalid configuration, refusing to start")
		os.Exit(1)
	}

	clientset, err := kubernetes.NewForConfig(ctrl.GetConfigOrDie())
	if err != nil {
		setupLog.Error(err, "unable to build kubernetes client")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, settings, clientset); err != nil {
		setupLog.Error(err, "startup failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, shutdown func(), settings config.Settings, clientset kubernetes.Interface) error {
	logger := ctrl.Log.WithName("configreload")

	sources, err := settings.SourceRefs()
	if err != nil {
		return err
	}
	strategyName, err := settings.StrategyName()
	if err != nil {
		return err
	}
	configMapMode, err := settings.ConfigMapDetection()
	if err != nil {
		return err
	}
	secretMode, err := settings.SecretDetection()
	if err != nil {
		return err
	}

	configMapProvider := kubeadapters.NewConfigMapProvider(clientset)
	secretProvider := kubeadapters.NewSecretProvider(clientset)
	providers := map[core.SourceKind]reload.SnapshotProvider{
		core.SourceKindConfigMap: configMapProvider,
		core.SourceKindSecret:    secretProvider,
	}

	store := reload.NewActiveConfig()
	seedStore(ctx, logger, store, providers, sources)

	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events("")})
	defer broadcaster.Shutdown()
	recorder := kubeadapters.NewRecorder(broadcaster.NewRecorder(clientgoscheme.Scheme, corev1.EventSource{Component: "configreload"}))

	endpoints := reload.Endpoints{
		Refresh: func(refreshCtx context.Context) error {
			// Re-binding the live property sources is the host application's
			// job; standalone, refreshing means re-materializing every source.
			seedStore(refreshCtx, logger.WithName("refresh"), store, providers, sources)
			return nil
		},
		Restart: func(restartCtx context.Context) error {
			logger.Info("restarting application context")
			seedStore(restartCtx, logger.WithName("restart"), store, providers, sources)
			return nil
		},
		Shutdown: func(context.Context) error {
			logger.Info("shutting down for external restart")
			shutdown()
			return nil
		},
	}

	strategy, err := reload.NewStrategy(strategyName, reload.Jitter{MaxWait: settings.MaxJitter}, endpoints)
	if err != nil {
		return err
	}
	coordinator := reload.NewCoordinator(strategy, store, logger, recorder.ReloadOutcome)

	detectors, err := reload.BuildDetectors(reload.Options{
		ConfigMapMode: configMapMode,
		SecretMode:    secretMode,
		PollPeriod:    settings.PollPeriod,
		Sources:       sources,
	}, reload.Deps{
		ConfigMapProvider: configMapProvider,
		SecretProvider:    secretProvider,
		Subscriber:        kubeadapters.NewSubscriber(clientset),
		Active:            store,
		Sink:              coordinator,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	go serveMetrics(logger, settings.MetricsBindAddress)

	logger.Info("starting change detection",
		"strategy", string(strategyName), "sources", len(sources), "detectors", len(detectors))
	var group sync.WaitGroup
	for _, detector := range detectors {
		group.Add(1)
		go func(detector reload.Detector) {
			defer group.Done()
			detector.Run(ctx)
		}(detector)
	}

	<-ctx.Done()
	group.Wait()
	logger.Info("all detectors stopped, exiting")
	return nil
}

// seedStore materializes every monitored source once and records its
// fingerprint as active. A fetch failure at this stage is transient, not
// fatal: the source is seeded empty and the first detection will reload it.
func seedStore(ctx context.Context, logger logr.Logger, store *reload.ActiveConfig,
	providers map[core.SourceKind]reload.SnapshotProvider, sources []core.SourceRef) {

	for _, source := range sources {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		snapshot, err := providers[source.Kind].Fetch(fetchCtx, source)
		cancel()
		if err != nil {
			logger.Error(err, "initial snapshot fetch failed, seeding empty",
				"source", source.String(), "category", string(core.ClassifyError(err)))
			store.Seed(source, "")
			continue
		}
		store.Seed(source, snapshot.Fingerprint)
		logger.V(1).Info("seeded active configuration", "source", source.String())
	}
}

func serveMetrics(logger logr.Logger, bindAddress string) {
	if bindAddress == "" || bindAddress == "0" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(bindAddress, mux); err != nil {
		logger.Error(err, "metrics endpoint failed", "address", bindAddress)
	}
}
