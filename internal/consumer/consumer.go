// Package consumer implements the single-partition fetch primitive
// (design spec §4.F). It holds no offset state of its own: the caller
// supplies start_offset on every call.
package consumer

import (
	"context"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/mqpb"
	"example.com/deps/internal/record"
)

// brokerRouter is the subset of *router.Router the Consumer depends on.
type brokerRouter interface {
	GetBrokerAddress(ctx context.Context, topic string, partition int32) (string, error)
}

// Consumer fetches records from a single (topic, partition) at a
// caller-supplied offset.
type Consumer struct {
	groupID string
	router  brokerRouter
	logger  log.Logger

	clientMu sync.Mutex
	clients  map[string]mqpb.Client
	conns    map[string]*grpc.ClientConn
}

// New builds a Consumer bound to groupID, used only for the observability
// tag on ConsumeMessages requests (design spec §4.B: "group_id is recorded
// for observability only and never gates the read").
func New(groupID string, r brokerRouter, logger log.Logger) *Consumer {
	return &Consumer{
		groupID: groupID,
		router:  r,
		logger:  logger,
		clients: make(map[string]mqpb.Client),
		conns:   make(map[string]*grpc.ClientConn),
	}
}

// Consume fetches up to max records from (topic, partition) starting at
// offset. RPC failures never panic: they are logged and surfaced as an
// empty slice plus error, leaving retry policy to the caller.
func (c *Consumer) Consume(ctx context.Context, topic string, partition int32, offset int64, max int) ([]record.Record, error) {
	addr, err := c.router.GetBrokerAddress(ctx, topic, partition)
	if err != nil {
		level.Error(c.logger).Log("msg", "consume failed to resolve broker", "topic", topic, "partition", partition, "err", err)
		return nil, err
	}

	client, err := c.clientFor(addr)
	if err != nil {
		level.Error(c.logger).Log("msg", "consume failed to dial broker", "addr", addr, "err", err)
		return nil, mqerr.Wrap(mqerr.Transport, err, "dial broker")
	}

	resp, err := client.ConsumeMessages(ctx, &mqpb.ConsumeMessagesRequest{
		GroupID:     c.groupID,
		Topic:       topic,
		Partition:   partition,
		StartOffset: offset,
		MaxMessages: int32(max),
	})
	if err != nil {
		level.Error(c.logger).Log("msg", "consume rpc failed", "topic", topic, "partition", partition, "err", err)
		return nil, mqerr.Wrap(mqerr.Transport, err, "consume rpc")
	}
	if !resp.Success {
		level.Error(c.logger).Log("msg", "consume rejected", "topic", topic, "partition", partition, "err", resp.ErrorMessage)
		return nil, mqerr.New(mqerr.Backend, resp.ErrorMessage)
	}

	out := make([]record.Record, len(resp.Messages))
	for i, w := range resp.Messages {
		out[i] = record.Record{
			Key: w.Key, Value: w.Value, Topic: w.Topic,
			Partition: w.Partition, Timestamp: w.Timestamp, Offset: w.Offset,
		}
	}
	return out, nil
}

func (c *Consumer) clientFor(addr string) (mqpb.Client, error) {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()

	if cl, ok := c.clients[addr]; ok {
		return cl, nil
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	cl := mqpb.NewClient(conn)
	c.clients[addr] = cl
	c.conns[addr] = conn
	return cl, nil
}

// Close tears down every cached broker connection.
func (c *Consumer) Close() error {
	c.clientMu.Lock()
	defer c.clientMu.Unlock()
	var firstErr error
	for addr, conn := range c.conns {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.conns, addr)
		delete(c.clients, addr)
	}
	return firstErr
}
