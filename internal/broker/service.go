// Package broker implements the Broker Service (design spec §4.B): it hosts
// many Partition Logs and answers Produce, Consume, Metadata,
// GetBrokerAddress, CommitOffset, and Shutdown.
package broker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/partitionlog"
	"example.com/deps/internal/record"
)

type logKey struct {
	topic     string
	partition int32
}

// coordinationClient is the subset of *coordination.Client the Broker
// Service depends on. Declaring it here (rather than importing the
// concrete type) lets tests substitute an in-memory fake instead of
// dialing a real ZooKeeper ensemble.
type coordinationClient interface {
	RegisterBroker(brokerID, address string) error
	DeregisterBroker(brokerID string) error
	GetPartitionLeader(topic string, partition int32) (string, error)
	ResolveBroker(brokerID string) (string, error)
	ListPartitions(topic string) ([]int, error)
	SetConsumerOffset(groupID, topic string, partition int32, offset int64) error
}

// Service hosts a map (topic, partition) -> Partition Log and the rest of
// the Broker Service state. It is transport-agnostic; grpc_server.go adapts
// it to mqpb.Server.
type Service struct {
	brokerID string
	address  string
	dataDir  string

	coord   coordinationClient
	meta    *metadataCache
	observ  *consumeObserver
	metrics *Metrics
	logger  log.Logger

	mu   sync.RWMutex
	logs map[logKey]*partitionlog.Log

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewService wires a Broker Service. dataDir holds both the metadata cache
// snapshot and the per-partition log files.
func NewService(brokerID, address, dataDir string, coord coordinationClient, metrics *Metrics, logger log.Logger) *Service {
	return &Service{
		brokerID:   brokerID,
		address:    address,
		dataDir:    dataDir,
		coord:      coord,
		meta:       newMetadataCache(filepath.Join(dataDir, "metadata-cache.json")),
		observ:     newConsumeObserver(),
		metrics:    metrics,
		logger:     logger,
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested is closed once a Shutdown RPC addressed to this broker
// has been accepted. cmd/broker selects on it to drive the dskit
// services.Service's stop sequence.
func (s *Service) ShutdownRequested() <-chan struct{} {
	return s.shutdownCh
}

func (s *Service) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// BrokerID and Address report this broker's identity.
func (s *Service) BrokerID() string { return s.brokerID }
func (s *Service) Address() string  { return s.address }

// Start registers the broker with the coordinator and warms the local
// metadata cache. It does not block; the gRPC server loop is driven
// separately by cmd/broker.
func (s *Service) Start(ctx context.Context) error {
	if err := s.meta.Load(); err != nil {
		level.Warn(s.logger).Log("msg", "failed to load metadata cache, starting cold", "err", err)
	}
	if err := s.coord.RegisterBroker(s.brokerID, s.address); err != nil {
		return err
	}
	level.Info(s.logger).Log("msg", "broker started", "broker_id", s.brokerID, "address", s.address)
	return nil
}

// Stop drains and flushes every hosted Partition Log, then deregisters the
// broker's ephemeral znode. Called from the dskit services.Service stopping
// hook wired in cmd/broker.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, l := range s.logs {
		if err := l.Close(); err != nil {
			level.Error(s.logger).Log("msg", "failed to close partition log", "topic", key.topic, "partition", key.partition, "err", err)
		}
	}
	if err := s.meta.Save(); err != nil {
		level.Warn(s.logger).Log("msg", "failed to persist metadata cache on shutdown", "err", err)
	}
	if err := s.coord.DeregisterBroker(s.brokerID); err != nil {
		level.Error(s.logger).Log("msg", "failed to deregister broker", "err", err)
		return err
	}
	level.Info(s.logger).Log("msg", "broker stopped", "broker_id", s.brokerID)
	return nil
}

// isLeader confirms (topic, partition)'s leader, consulting the local
// metadata cache before the coordinator so a hot produce path doesn't
// round-trip to ZooKeeper on every call. A miss falls through to the
// coordinator and backfills the cache.
func (s *Service) isLeader(topic string, partition int32) (bool, string, error) {
	if snap, ok := s.meta.Get(topic); ok {
		if leader, ok := snap.Partitions[partition]; ok {
			return leader == s.brokerID, leader, nil
		}
	}
	leader, err := s.coord.GetPartitionLeader(topic, partition)
	if err != nil {
		return false, "", err
	}
	s.meta.PutPartition(topic, partition, leader)
	return leader == s.brokerID, leader, nil
}

// partitionLog returns the hosted Log for (topic, partition), lazily
// instantiating it on first access. Both the produce and the consume path
// call it, so a consume of a (topic, partition) never produced to opens an
// empty log for it rather than reporting it unknown.
func (s *Service) partitionLog(topic string, partition int32) (*partitionlog.Log, error) {
	key := logKey{topic, partition}

	s.mu.RLock()
	l, ok := s.logs[key]
	s.mu.RUnlock()
	if ok {
		return l, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[key]; ok {
		return l, nil
	}

	dir := filepath.Join(s.dataDir, topic)
	path := filepath.Join(dir, fmt.Sprintf("partition-%d.log", partition))
	if err := ensureDir(dir); err != nil {
		return nil, mqerr.Wrap(mqerr.Backend, err, "create partition directory")
	}
	backend, err := partitionlog.NewFileBackend(path)
	if err != nil {
		return nil, mqerr.Wrap(mqerr.Backend, err, "open partition backend")
	}
	newLog, err := partitionlog.Recover(topic, partition, backend)
	if err != nil {
		return nil, err
	}

	if s.logs == nil {
		s.logs = make(map[logKey]*partitionlog.Log)
	}
	s.logs[key] = newLog
	return newLog, nil
}

// groupByPartition splits wire records by declared (topic, partition),
// matching design spec §4.B's produce path.
func groupByPartition(recs []record.Record) map[logKey][]record.Record {
	groups := make(map[logKey][]record.Record)
	for _, r := range recs {
		key := logKey{r.Topic, r.Partition}
		groups[key] = append(groups[key], r)
	}
	return groups
}
