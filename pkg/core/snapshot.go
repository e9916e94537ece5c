package core

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Snapshot is the materialized key/value view of a monitored source at a
// point in time, plus a fingerprint over its content. Snapshots are produced
// fresh on every poll tick or watch notification and compared by fingerprint
// only; no history is retained.
type Snapshot struct {
	Data        map[string]string
	Fingerprint string
}

// NewSnapshot builds a Snapshot with its fingerprint computed from data.
func NewSnapshot(data map[string]string) Snapshot {
	return Snapshot{Data: data, Fingerprint: FingerprintOf(data)}
}

// EmptySnapshot represents a source with no content, for example a deleted object.
func EmptySnapshot() Snapshot {
	return Snapshot{}
}

// FingerprintOf computes a stable sha256 fingerprint of the key/value mapping.
// Keys are sorted and every string is length-prefixed before hashing so that
// map iteration order never influences the result and no two distinct
// mappings share an encoding: equal mappings always produce equal
// fingerprints, and any difference in a key or value produces a different one.
// Empty or nil data yields the empty fingerprint.
func FingerprintOf(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	hasher := sha256.New()
	var length [8]byte
	writeString := func(value string) {
		binary.BigEndian.PutUint64(length[:], uint64(len(value)))
		hasher.Write(length[:])
		hasher.Write([]byte(value))
	}
	for _, key := range keys {
		writeString(key)
		writeString(data[key])
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
