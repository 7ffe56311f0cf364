// Package router implements the client-side metadata cache (design spec
// §4.D): topic/partition -> broker address, with bootstrap failover and
// periodic background refresh. The routing table is never consulted or
// updated while an RPC is in flight — fetches happen outside the cache
// mutex and are merged back in atomically.
package router

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/mqpb"
)

const (
	defaultMetadataTimeout = 5 * time.Second
)

// Router is the client-side metadata cache described in design spec §4.D.
type Router struct {
	logger  log.Logger
	metrics *Metrics

	mu              sync.Mutex
	routingTable    map[string]map[int32]string
	partitionCounts map[string]int32

	bootstrap []string

	connMu      sync.Mutex
	currentAddr string
	currentConn *grpc.ClientConn
	currentRPC  mqpb.Client

	refresher services.Service
}

// New shuffles bootstrap into a random order and dials each in turn until
// one gRPC channel is established, failing fast with NoBootstrap if none
// are reachable.
func New(bootstrap []string, logger log.Logger, metrics *Metrics) (*Router, error) {
	if len(bootstrap) == 0 {
		return nil, mqerr.New(mqerr.NoBootstrap, "no bootstrap brokers configured")
	}

	r := &Router{
		logger:          logger,
		metrics:         metrics,
		routingTable:    make(map[string]map[int32]string),
		partitionCounts: make(map[string]int32),
		bootstrap:       bootstrap,
	}

	order := rand.Perm(len(bootstrap))
	var lastErr error
	for _, i := range order {
		addr := bootstrap[i]
		conn, client, err := dial(addr)
		if err != nil {
			lastErr = err
			continue
		}
		r.currentAddr, r.currentConn, r.currentRPC = addr, conn, client
		return r, nil
	}
	return nil, mqerr.Wrap(mqerr.NoBootstrap, lastErr, "no bootstrap broker reachable")
}

func dial(addr string) (*grpc.ClientConn, mqpb.Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, err
	}
	return conn, mqpb.NewClient(conn), nil
}

// Close tears down the bound bootstrap connection.
func (r *Router) Close() error {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.currentConn != nil {
		return r.currentConn.Close()
	}
	return nil
}

// call invokes fn against the currently bound bootstrap, retrying once on
// the same connection, then rotating through the remaining bootstraps in
// random order (one attempt per candidate) before surfacing NoBootstrap. This is the
// reconnect policy of design spec §4.D.
func (r *Router) call(fn func(mqpb.Client) error) error {
	r.connMu.Lock()
	client := r.currentRPC
	r.connMu.Unlock()

	if err := fn(client); err == nil {
		return nil
	}
	if err := fn(client); err == nil {
		return nil
	}

	tried := map[string]bool{r.currentAddr: true}
	order := rand.Perm(len(r.bootstrap))
	for _, i := range order {
		addr := r.bootstrap[i]
		if tried[addr] {
			continue
		}
		tried[addr] = true

		conn, newClient, err := dial(addr)
		if err != nil {
			continue
		}
		if err := fn(newClient); err != nil {
			conn.Close()
			continue
		}

		r.connMu.Lock()
		old := r.currentConn
		r.currentAddr, r.currentConn, r.currentRPC = addr, conn, newClient
		r.connMu.Unlock()
		if old != nil {
			old.Close()
		}
		level.Warn(r.logger).Log("msg", "router rotated bootstrap broker", "new_bootstrap", addr)
		return nil
	}

	return mqerr.New(mqerr.NoBootstrap, "all bootstrap brokers unreachable")
}

// GetBrokerAddress resolves (topic, partition) to a broker address. On a
// cache miss it synchronously fetches metadata for topic and retries the
// lookup once.
func (r *Router) GetBrokerAddress(ctx context.Context, topic string, partition int32) (string, error) {
	if addr, ok := r.lookup(topic, partition); ok {
		return addr, nil
	}

	if err := r.refreshTopic(ctx, topic); err != nil {
		return "", err
	}

	if addr, ok := r.lookup(topic, partition); ok {
		return addr, nil
	}
	return "", mqerr.New(mqerr.NotFound, "no leader known for partition")
}

// GetBrokerAddressByID always round-trips to a bootstrap broker's
// GetBrokerAddress RPC; broker_id -> address is never cached.
func (r *Router) GetBrokerAddressByID(ctx context.Context, brokerID string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, defaultMetadataTimeout)
	defer cancel()

	var resp *mqpb.GetBrokerAddressResponse
	err := r.call(func(c mqpb.Client) error {
		var rpcErr error
		resp, rpcErr = c.GetBrokerAddress(callCtx, &mqpb.GetBrokerAddressRequest{BrokerID: brokerID})
		return rpcErr
	})
	if err != nil {
		return "", mqerr.Wrap(mqerr.Transport, err, "get broker address")
	}
	if !resp.Success {
		return "", mqerr.New(mqerr.NotFound, resp.ErrorMessage)
	}
	return resp.BrokerAddress, nil
}

// PartitionCount returns topic's partition count, refreshing once on miss.
func (r *Router) PartitionCount(ctx context.Context, topic string) (int32, error) {
	r.mu.Lock()
	count, ok := r.partitionCounts[topic]
	r.mu.Unlock()
	if ok {
		return count, nil
	}

	if err := r.refreshTopic(ctx, topic); err != nil {
		return 0, err
	}

	r.mu.Lock()
	count, ok = r.partitionCounts[topic]
	r.mu.Unlock()
	if !ok {
		return 0, mqerr.New(mqerr.NotFound, "unknown topic: "+topic)
	}
	return count, nil
}

func (r *Router) lookup(topic string, partition int32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partitions, ok := r.routingTable[topic]
	if !ok {
		return "", false
	}
	addr, ok := partitions[partition]
	return addr, ok
}

// refreshTopic fetches metadata for topic outside the cache lock and merges
// the result in atomically.
func (r *Router) refreshTopic(ctx context.Context, topic string) error {
	callCtx, cancel := context.WithTimeout(ctx, defaultMetadataTimeout)
	defer cancel()

	var resp *mqpb.GetMetadataResponse
	err := r.call(func(c mqpb.Client) error {
		var rpcErr error
		resp, rpcErr = c.GetMetadata(callCtx, &mqpb.GetMetadataRequest{Topic: topic})
		return rpcErr
	})
	if err != nil {
		return mqerr.Wrap(mqerr.Transport, err, "refresh metadata")
	}
	if !resp.Success {
		return mqerr.New(mqerr.NotFound, resp.ErrorMessage)
	}

	partitions := make(map[int32]string, len(resp.Partitions))
	for _, p := range resp.Partitions {
		partitions[p.PartitionID] = p.BrokerAddress
	}

	r.mu.Lock()
	r.routingTable[topic] = partitions
	r.partitionCounts[topic] = int32(len(resp.Partitions))
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RefreshTotal.WithLabelValues(topic).Inc()
	}
	return nil
}

// topics snapshots the set of currently-cached topics under the lock, for
// the periodic refresher to iterate outside the lock.
func (r *Router) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.routingTable))
	for t := range r.routingTable {
		out = append(out, t)
	}
	return out
}

// StartPeriodicRefresh launches a background dskit service that, every
// interval, refetches metadata for every topic currently in the cache. The
// returned Service must be started (StartAsync) by the caller and stopped
// on shutdown (StopAsync + AwaitTerminated), giving the cooperative
// shutdown contract from design spec §5.
func (r *Router) StartPeriodicRefresh(interval time.Duration) services.Service {
	running := func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, topic := range r.topics() {
					if err := r.refreshTopic(ctx, topic); err != nil {
						level.Warn(r.logger).Log("msg", "periodic metadata refresh failed", "topic", topic, "err", err)
					}
				}
			}
		}
	}
	r.refresher = services.NewBasicService(nil, running, nil)
	return r.refresher
}
