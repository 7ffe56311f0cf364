package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"example.com/deps/internal/mqpb"
)

// fakeCoordinator is an in-memory stand-in for *coordination.Client, giving
// tests a single-broker cluster without dialing real ZooKeeper.
type fakeCoordinator struct {
	brokerID            string
	address             string
	partitions          map[string][]int
	leaders             map[string]string // "topic/partition" -> broker_id
	offsets             map[string]int64
	leaderLookups       int
	listPartitionsFails bool
}

func newFakeCoordinator(brokerID, address, topic string, numPartitions int) *fakeCoordinator {
	f := &fakeCoordinator{
		brokerID:   brokerID,
		address:    address,
		partitions: map[string][]int{},
		leaders:    map[string]string{},
		offsets:    map[string]int64{},
	}
	ids := make([]int, numPartitions)
	for i := 0; i < numPartitions; i++ {
		ids[i] = i
		f.leaders[partKey(topic, int32(i))] = brokerID
	}
	f.partitions[topic] = ids
	return f
}

func partKey(topic string, partition int32) string {
	return topic + "/" + itoa(partition)
}

func (f *fakeCoordinator) RegisterBroker(brokerID, address string) error { return nil }
func (f *fakeCoordinator) DeregisterBroker(brokerID string) error        { return nil }
func (f *fakeCoordinator) ListPartitions(topic string) ([]int, error) {
	if f.listPartitionsFails {
		return nil, errors.New("coordinator unreachable")
	}
	return f.partitions[topic], nil
}
func (f *fakeCoordinator) SetConsumerOffset(groupID, topic string, partition int32, offset int64) error {
	f.offsets[groupID+"/"+partKey(topic, partition)] = offset
	return nil
}
func (f *fakeCoordinator) GetPartitionLeader(topic string, partition int32) (string, error) {
	f.leaderLookups++
	return f.leaders[partKey(topic, partition)], nil
}
func (f *fakeCoordinator) ResolveBroker(brokerID string) (string, error) {
	if brokerID == f.brokerID {
		return f.address, nil
	}
	return "", nil
}

func newTestGRPCServer(t *testing.T) (*GRPCServer, *fakeCoordinator) {
	t.Helper()
	coord := newFakeCoordinator("broker-1", "localhost:7000", "orders", 3)
	svc := NewService("broker-1", "localhost:7000", t.TempDir(), coord, NewMetrics(prometheus.NewRegistry()), log.NewNopLogger())
	return NewGRPCServer(svc), coord
}

func TestProduceThenConsumeRoundTrip(t *testing.T) {
	srv, _ := newTestGRPCServer(t)
	ctx := context.Background()

	resp, err := srv.ProduceMessages(ctx, &mqpb.ProduceMessagesRequest{
		ProducerID: "p1",
		Messages: []mqpb.WireRecord{
			{Key: []byte("a"), Value: []byte("1"), Topic: "orders", Partition: 0},
			{Key: []byte("a"), Value: []byte("2"), Topic: "orders", Partition: 0},
		},
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	consumeResp, err := srv.ConsumeMessages(ctx, &mqpb.ConsumeMessagesRequest{
		GroupID: "g1", Topic: "orders", Partition: 0, StartOffset: 0, MaxMessages: 10,
	})
	require.NoError(t, err)
	require.True(t, consumeResp.Success)
	require.Len(t, consumeResp.Messages, 2)
	require.Equal(t, "1", string(consumeResp.Messages[0].Value))
	require.Equal(t, "2", string(consumeResp.Messages[1].Value))
	require.Equal(t, int64(0), consumeResp.Messages[0].Offset)
	require.Equal(t, int64(1), consumeResp.Messages[1].Offset)
}

func TestProduceRejectsNonLeaderPartition(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	coord.leaders[partKey("orders", 0)] = "broker-2"

	resp, err := srv.ProduceMessages(context.Background(), &mqpb.ProduceMessagesRequest{
		ProducerID: "p1",
		Messages:   []mqpb.WireRecord{{Key: []byte("a"), Value: []byte("1"), Topic: "orders", Partition: 0}},
	})
	require.NoError(t, err)
	require.False(t, resp.Success)
}

func TestProduceProcessesEveryGroupIndependently(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	coord.leaders[partKey("orders", 1)] = "broker-2" // partition 1 led elsewhere

	resp, err := srv.ProduceMessages(context.Background(), &mqpb.ProduceMessagesRequest{
		ProducerID: "p1",
		Messages: []mqpb.WireRecord{
			{Key: []byte("a"), Value: []byte("led"), Topic: "orders", Partition: 0},
			{Key: []byte("b"), Value: []byte("not-led"), Topic: "orders", Partition: 1},
		},
	})
	require.NoError(t, err)
	require.False(t, resp.Success, "batch spans a non-leader partition, so the aggregate must report failure")

	consumeResp, err := srv.ConsumeMessages(context.Background(), &mqpb.ConsumeMessagesRequest{
		Topic: "orders", Partition: 0, StartOffset: 0, MaxMessages: 10,
	})
	require.NoError(t, err)
	require.True(t, consumeResp.Success)
	require.Len(t, consumeResp.Messages, 1, "the led partition's group must still be appended despite the sibling group's failure")
	require.Equal(t, "led", string(consumeResp.Messages[0].Value))
}

func TestConsumeStartOffsetAtTailIsEmpty(t *testing.T) {
	srv, _ := newTestGRPCServer(t)
	ctx := context.Background()

	_, err := srv.ProduceMessages(ctx, &mqpb.ProduceMessagesRequest{
		Messages: []mqpb.WireRecord{{Key: []byte("a"), Value: []byte("1"), Topic: "orders", Partition: 0}},
	})
	require.NoError(t, err)

	resp, err := srv.ConsumeMessages(ctx, &mqpb.ConsumeMessagesRequest{
		Topic: "orders", Partition: 0, StartOffset: 1, MaxMessages: 10,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Empty(t, resp.Messages)
}

func TestConsumeZeroMaxMessagesIsEmpty(t *testing.T) {
	srv, _ := newTestGRPCServer(t)
	ctx := context.Background()

	_, err := srv.ProduceMessages(ctx, &mqpb.ProduceMessagesRequest{
		Messages: []mqpb.WireRecord{{Key: []byte("a"), Value: []byte("1"), Topic: "orders", Partition: 0}},
	})
	require.NoError(t, err)

	resp, err := srv.ConsumeMessages(ctx, &mqpb.ConsumeMessagesRequest{
		Topic: "orders", Partition: 0, StartOffset: 0, MaxMessages: 0,
	})
	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Empty(t, resp.Messages)
}

func TestIsLeaderCachesAfterFirstCoordinatorLookup(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		resp, err := srv.ProduceMessages(ctx, &mqpb.ProduceMessagesRequest{
			Messages: []mqpb.WireRecord{{Key: []byte("a"), Value: []byte("1"), Topic: "orders", Partition: 0}},
		})
		require.NoError(t, err)
		require.True(t, resp.Success)
	}

	require.Equal(t, 1, coord.leaderLookups, "only the first produce should miss the metadata cache")
}

func TestGetMetadataFallsBackToCacheWhenCoordinatorUnreachable(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	ctx := context.Background()

	warm, err := srv.GetMetadata(ctx, &mqpb.GetMetadataRequest{Topic: "orders"})
	require.NoError(t, err)
	require.True(t, warm.Success)
	require.NotEmpty(t, warm.Partitions)

	coord.listPartitionsFails = true
	degraded, err := srv.GetMetadata(ctx, &mqpb.GetMetadataRequest{Topic: "orders"})
	require.NoError(t, err)
	require.True(t, degraded.Success, "a cached snapshot should be served instead of failing outright")
	require.Equal(t, len(warm.Partitions), len(degraded.Partitions))
}

func TestGetMetadataFailsWithoutCoordinatorOrCache(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	coord.listPartitionsFails = true

	resp, err := srv.GetMetadata(context.Background(), &mqpb.GetMetadataRequest{Topic: "orders"})
	require.NoError(t, err)
	require.False(t, resp.Success)
}

func TestShutdownRedirectsForForeignBroker(t *testing.T) {
	srv, coord := newTestGRPCServer(t)
	coord.leaders["other/0"] = "broker-2"

	resp, err := srv.Shutdown(context.Background(), &mqpb.ShutdownRequest{BrokerID: "broker-2"})
	require.NoError(t, err)
	require.False(t, resp.Success)
}

func TestShutdownSelfSignalsShutdownRequested(t *testing.T) {
	srv, _ := newTestGRPCServer(t)

	resp, err := srv.Shutdown(context.Background(), &mqpb.ShutdownRequest{BrokerID: "broker-1"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	select {
	case <-srv.svc.ShutdownRequested():
	case <-time.After(time.Second):
		t.Fatal("shutdown was not signalled")
	}
}
