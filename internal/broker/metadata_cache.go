package broker

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
)

// topicSnapshot is the broker-local, on-disk mirror of a topic's partition
// layout. ZooKeeper (via internal/coordination) remains authoritative per
// design spec §3 ("Routing Table... a purely derived cache; authoritative
// data lives in C"); this cache exists so the produce leadership check
// doesn't round-trip to the coordinator on every call, and so GetMetadata can
// fall back to the last snapshot when the coordinator is unreachable. It is
// loaded from disk on broker startup and filled from GetMetadata responses
// and produce-path leader lookups, and is safe to lose entirely — it refills
// from the coordinator as those calls come in.
type topicSnapshot struct {
	Partitions map[int32]string `json:"partitions"` // partition id -> leader broker_id
}

// metadataCache is the adapted form of the teacher's MetadataManager: same
// load/save-to-JSON shape, repurposed from "the" metadata store into a
// local snapshot cache fronting the coordination client.
type metadataCache struct {
	mu     sync.RWMutex
	path   string
	topics map[string]topicSnapshot
}

func newMetadataCache(path string) *metadataCache {
	return &metadataCache{path: path, topics: make(map[string]topicSnapshot)}
}

// Save persists the snapshot to disk so a broker restart has a warm cache
// before its first coordinator round trip.
func (m *metadataCache) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	file, err := os.Create(m.path)
	if err != nil {
		return errors.Wrap(err, "create metadata cache file")
	}
	defer file.Close()

	if err := json.NewEncoder(file).Encode(m.topics); err != nil {
		return errors.Wrap(err, "encode metadata cache")
	}
	return nil
}

// Load restores a previously saved snapshot, if any. A missing file is not
// an error: a fresh broker simply starts with an empty cache.
func (m *metadataCache) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.Open(m.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return errors.Wrap(err, "open metadata cache file")
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&m.topics); err != nil {
		return errors.Wrap(err, "decode metadata cache")
	}
	return nil
}

func (m *metadataCache) Put(topic string, partitions map[int32]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics[topic] = topicSnapshot{Partitions: partitions}
}

// PutPartition merges a single partition's leader into topic's snapshot,
// leaving the rest of the snapshot untouched. Used by the produce path's
// cache-on-miss fill, which only ever learns one partition's leader at a
// time and must not clobber the rest of a topic's cached layout.
func (m *metadataCache) PutPartition(topic string, partition int32, leaderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.topics[topic]
	if !ok {
		snap = topicSnapshot{Partitions: make(map[int32]string, 1)}
	}
	snap.Partitions[partition] = leaderID
	m.topics[topic] = snap
}

func (m *metadataCache) Get(topic string) (topicSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap, ok := m.topics[topic]
	return snap, ok
}
