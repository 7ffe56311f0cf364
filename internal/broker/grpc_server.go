package broker

import (
	"context"
	"time"

	"github.com/go-kit/log/level"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/mqpb"
	"example.com/deps/internal/record"
)

// GRPCServer adapts Service to mqpb.Server, translating mqerr kinds into
// the success/error_message wire shape design spec §7 requires
// ("Broker Service converts NotFound/WrongBroker into RPC responses with
// success=false and a descriptive error_message").
type GRPCServer struct {
	svc *Service
}

// NewGRPCServer wraps svc for gRPC registration.
func NewGRPCServer(svc *Service) *GRPCServer {
	return &GRPCServer{svc: svc}
}

var _ mqpb.Server = (*GRPCServer)(nil)

func toWire(r record.Record) mqpb.WireRecord {
	return mqpb.WireRecord{
		Key:       r.Key,
		Value:     r.Value,
		Topic:     r.Topic,
		Partition: r.Partition,
		Timestamp: r.Timestamp,
		Offset:    r.Offset,
	}
}

func fromWire(w mqpb.WireRecord) record.Record {
	return record.Record{
		Key:       w.Key,
		Value:     w.Value,
		Topic:     w.Topic,
		Partition: w.Partition,
		Timestamp: w.Timestamp,
		Offset:    w.Offset,
	}
}

// ProduceMessages groups the batch by (topic, partition) and appends each
// group independently: one non-leader or failing group never stops the
// others from being attempted, and the aggregate response is success iff
// every group succeeded (design spec §4.B, verbatim: "the broker processes
// per-partition groups independently and returns an aggregate success iff
// all succeed"). Map iteration order is unspecified, so every group must be
// attempted before any response is composed.
func (g *GRPCServer) ProduceMessages(ctx context.Context, req *mqpb.ProduceMessagesRequest) (*mqpb.ProduceMessagesResponse, error) {
	start := time.Now()
	recs := make([]record.Record, len(req.Messages))
	for i, w := range req.Messages {
		recs[i] = fromWire(w)
	}

	groups := groupByPartition(recs)
	var firstErr error
	for key, group := range groups {
		if err := g.produceGroup(key, group, start); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if firstErr != nil {
		level.Error(g.svc.logger).Log("msg", "produce batch had failing groups", "err", firstErr)
		return &mqpb.ProduceMessagesResponse{Success: false, ErrorMessage: firstErr.Error()}, nil
	}

	g.svc.metrics.ProduceTotal.WithLabelValues("success").Inc()
	return &mqpb.ProduceMessagesResponse{Success: true}, nil
}

// produceGroup appends one (topic, partition) group and reports its own
// outcome independently of its siblings. A WrongBroker error carries the
// redirect address a caller should retry against.
func (g *GRPCServer) produceGroup(key logKey, group []record.Record, start time.Time) error {
	leader, redirect, err := g.svc.isLeader(key.topic, key.partition)
	if err != nil {
		g.svc.metrics.ProduceTotal.WithLabelValues("error").Inc()
		return mqerr.Wrap(mqerr.NotFound, err, "resolve leader")
	}
	if !leader {
		g.svc.metrics.WrongBrokerTotal.Inc()
		g.svc.metrics.ProduceTotal.WithLabelValues("wrong_broker").Inc()
		addr, resolveErr := g.svc.coord.ResolveBroker(redirect)
		if resolveErr != nil {
			addr = ""
		}
		return mqerr.WrongBrokerRedirect(addr, "not leader for "+key.topic+"/"+itoa(key.partition)+"; retry at "+addr)
	}

	plog, err := g.svc.partitionLog(key.topic, key.partition)
	if err != nil {
		g.svc.metrics.ProduceTotal.WithLabelValues("error").Inc()
		return err
	}
	if _, err := plog.AppendBatch(group); err != nil {
		g.svc.metrics.ProduceTotal.WithLabelValues("error").Inc()
		return err
	}
	g.svc.metrics.AppendedRecords.WithLabelValues(key.topic, itoa(key.partition)).Add(float64(len(group)))
	g.svc.metrics.ProduceLatency.WithLabelValues(key.topic).Observe(time.Since(start).Seconds())
	return nil
}

// ConsumeMessages is stateless with respect to the caller: it returns
// [start_offset, start_offset+max_messages) intersected with the log.
// group_id is recorded for observability only and never gates the read.
func (g *GRPCServer) ConsumeMessages(ctx context.Context, req *mqpb.ConsumeMessagesRequest) (*mqpb.ConsumeMessagesResponse, error) {
	start := time.Now()
	plog, err := g.svc.partitionLog(req.Topic, req.Partition)
	if err != nil {
		g.svc.metrics.ConsumeTotal.WithLabelValues("error").Inc()
		level.Error(g.svc.logger).Log("msg", "consume failed", "err", err)
		return &mqpb.ConsumeMessagesResponse{Success: false, ErrorMessage: err.Error()}, nil
	}

	recs, err := plog.Read(req.StartOffset, int(req.MaxMessages))
	if err != nil {
		g.svc.metrics.ConsumeTotal.WithLabelValues("error").Inc()
		return &mqpb.ConsumeMessagesResponse{Success: false, ErrorMessage: err.Error()}, nil
	}

	if req.GroupID != "" {
		if prev, ok := g.svc.observ.LastSeen(req.GroupID, req.Topic, req.Partition); ok && req.StartOffset < prev {
			level.Warn(g.svc.logger).Log("msg", "consumer group re-read an earlier offset",
				"group_id", req.GroupID, "topic", req.Topic, "partition", req.Partition,
				"previous_offset", prev, "requested_offset", req.StartOffset)
		}
		g.svc.observ.Record(req.GroupID, req.Topic, req.Partition, req.StartOffset)
	}

	out := make([]mqpb.WireRecord, len(recs))
	for i, r := range recs {
		out[i] = toWire(r)
	}
	g.svc.metrics.ConsumeTotal.WithLabelValues("success").Inc()
	g.svc.metrics.ConsumeLatency.WithLabelValues(req.Topic).Observe(time.Since(start).Seconds())
	return &mqpb.ConsumeMessagesResponse{Success: true, Messages: out}, nil
}

// GetMetadata returns the partition count and per-partition broker address
// for topic, refreshing the local cache from the coordinator. If the
// coordinator is unreachable, it falls back to serving the last cached
// snapshot rather than failing outright.
func (g *GRPCServer) GetMetadata(ctx context.Context, req *mqpb.GetMetadataRequest) (*mqpb.GetMetadataResponse, error) {
	partitionIDs, err := g.svc.coord.ListPartitions(req.Topic)
	if err != nil {
		if resp, ok := g.cachedMetadata(req.Topic); ok {
			level.Warn(g.svc.logger).Log("msg", "coordinator unreachable, serving cached metadata", "topic", req.Topic, "err", err)
			return resp, nil
		}
		return &mqpb.GetMetadataResponse{Success: false, ErrorMessage: err.Error()}, nil
	}

	partitions := make([]mqpb.PartitionMetadata, 0, len(partitionIDs))
	leaders := make(map[int32]string, len(partitionIDs))
	for _, id := range partitionIDs {
		leaderID, err := g.svc.coord.GetPartitionLeader(req.Topic, int32(id))
		if err != nil {
			continue
		}
		addr, err := g.svc.coord.ResolveBroker(leaderID)
		if err != nil {
			continue
		}
		partitions = append(partitions, mqpb.PartitionMetadata{PartitionID: int32(id), BrokerAddress: addr})
		leaders[int32(id)] = leaderID
	}

	g.svc.meta.Put(req.Topic, leaders)
	return &mqpb.GetMetadataResponse{Success: true, Partitions: partitions}, nil
}

// cachedMetadata rebuilds a GetMetadataResponse from the last snapshot Put
// recorded for topic, re-resolving each leader's current address. ok is
// false if nothing has ever been cached for topic, or if none of its
// cached leaders could be resolved (coordinator fully unreachable).
func (g *GRPCServer) cachedMetadata(topic string) (*mqpb.GetMetadataResponse, bool) {
	snap, ok := g.svc.meta.Get(topic)
	if !ok {
		return nil, false
	}

	partitions := make([]mqpb.PartitionMetadata, 0, len(snap.Partitions))
	for id, leaderID := range snap.Partitions {
		addr, err := g.svc.coord.ResolveBroker(leaderID)
		if err != nil {
			continue
		}
		partitions = append(partitions, mqpb.PartitionMetadata{PartitionID: id, BrokerAddress: addr})
	}
	if len(partitions) == 0 {
		return nil, false
	}
	return &mqpb.GetMetadataResponse{Success: true, Partitions: partitions}, true
}

// GetBrokerAddress answers either with this broker's own address or, for a
// foreign broker_id, round-trips to the coordinator.
func (g *GRPCServer) GetBrokerAddress(ctx context.Context, req *mqpb.GetBrokerAddressRequest) (*mqpb.GetBrokerAddressResponse, error) {
	if req.BrokerID == g.svc.brokerID {
		return &mqpb.GetBrokerAddressResponse{Success: true, BrokerAddress: g.svc.address}, nil
	}
	addr, err := g.svc.coord.ResolveBroker(req.BrokerID)
	if err != nil {
		return &mqpb.GetBrokerAddressResponse{Success: false, ErrorMessage: err.Error()}, nil
	}
	return &mqpb.GetBrokerAddressResponse{Success: true, BrokerAddress: addr}, nil
}

// CommitOffset persists a consumer group's offset through the coordination
// client. Optional per design spec §6/§9; wired here since nothing in the
// spec forbids it and the source sketches it without completing it.
func (g *GRPCServer) CommitOffset(ctx context.Context, req *mqpb.CommitOffsetRequest) (*mqpb.CommitOffsetResponse, error) {
	if err := g.svc.coord.SetConsumerOffset(req.GroupID, req.Topic, req.Partition, req.Offset); err != nil {
		return &mqpb.CommitOffsetResponse{Success: false, ErrorMessage: err.Error()}, nil
	}
	return &mqpb.CommitOffsetResponse{Success: true}, nil
}

// Shutdown stops this broker if brokerID matches self, or returns a
// redirect to the broker that does hold it (design spec §4.B).
func (g *GRPCServer) Shutdown(ctx context.Context, req *mqpb.ShutdownRequest) (*mqpb.ShutdownResponse, error) {
	if req.BrokerID != g.svc.brokerID {
		addr, err := g.svc.coord.ResolveBroker(req.BrokerID)
		if err != nil {
			return &mqpb.ShutdownResponse{Success: false, ErrorMessage: err.Error()}, nil
		}
		return &mqpb.ShutdownResponse{Success: false, BrokerAddress: addr}, nil
	}

	level.Info(g.svc.logger).Log("msg", "shutdown requested", "broker_id", req.BrokerID)
	// The actual stop-accepting/drain/flush sequence is driven by the
	// dskit services.Service wired in cmd/broker, which calls Service.Stop.
	// Signalling it is done by closing the channel cmd/broker selects on
	// through Service.ShutdownRequested; see cmd/broker/main.go.
	go g.svc.triggerShutdown()
	return &mqpb.ShutdownResponse{Success: true}, nil
}

func itoa(i int32) string {
	return fmtInt(int64(i))
}
