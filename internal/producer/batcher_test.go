package producer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"example.com/deps/internal/mqpb"
)

type fakeRouter struct {
	partitionCount int32
	addr           string
}

func (f *fakeRouter) PartitionCount(ctx context.Context, topic string) (int32, error) {
	return f.partitionCount, nil
}
func (f *fakeRouter) GetBrokerAddress(ctx context.Context, topic string, partition int32) (string, error) {
	return f.addr, nil
}

type fakeBrokerClient struct {
	mu       sync.Mutex
	batches  [][]mqpb.WireRecord
	failNext bool
}

func (f *fakeBrokerClient) ProduceMessages(ctx context.Context, in *mqpb.ProduceMessagesRequest, opts ...grpc.CallOption) (*mqpb.ProduceMessagesResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return nil, errors.New("transport down")
	}
	f.batches = append(f.batches, in.Messages)
	return &mqpb.ProduceMessagesResponse{Success: true}, nil
}
func (f *fakeBrokerClient) ConsumeMessages(ctx context.Context, in *mqpb.ConsumeMessagesRequest, opts ...grpc.CallOption) (*mqpb.ConsumeMessagesResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBrokerClient) GetMetadata(ctx context.Context, in *mqpb.GetMetadataRequest, opts ...grpc.CallOption) (*mqpb.GetMetadataResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBrokerClient) GetBrokerAddress(ctx context.Context, in *mqpb.GetBrokerAddressRequest, opts ...grpc.CallOption) (*mqpb.GetBrokerAddressResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBrokerClient) CommitOffset(ctx context.Context, in *mqpb.CommitOffsetRequest, opts ...grpc.CallOption) (*mqpb.CommitOffsetResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBrokerClient) Shutdown(ctx context.Context, in *mqpb.ShutdownRequest, opts ...grpc.CallOption) (*mqpb.ShutdownResponse, error) {
	return nil, errors.New("not implemented")
}

func newTestBatcher(t *testing.T, threshold int, fc *fakeBrokerClient) *Batcher {
	t.Helper()
	b := New("p1", &fakeRouter{partitionCount: 1, addr: "broker-0:7000"}, threshold, time.Hour, NewMetrics(nil), log.NewNopLogger())
	b.clients["broker-0:7000"] = fc
	return b
}

func TestProduceFlushesSynchronouslyAtThreshold(t *testing.T) {
	fc := &fakeBrokerClient{}
	b := newTestBatcher(t, 3, fc)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := b.Produce(ctx, []byte("k"), []byte("v"), "orders")
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Empty(t, fc.batches, "should not flush before reaching threshold")

	ok, err := b.Produce(ctx, []byte("k"), []byte("v"), "orders")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, fc.batches, 1)
	require.Len(t, fc.batches[0], 3)
}

func TestProduceOrdersRecordsWithinABucket(t *testing.T) {
	fc := &fakeBrokerClient{}
	b := newTestBatcher(t, 3, fc)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Produce(ctx, []byte("k"), []byte{byte('a' + i)}, "orders")
		require.NoError(t, err)
	}
	require.Len(t, fc.batches, 1)
	require.Equal(t, []byte("a"), fc.batches[0][0].Value)
	require.Equal(t, []byte("b"), fc.batches[0][1].Value)
	require.Equal(t, []byte("c"), fc.batches[0][2].Value)
}

func TestCloseFlushesRemainingBuffer(t *testing.T) {
	fc := &fakeBrokerClient{}
	b := newTestBatcher(t, 100, fc)
	ctx := context.Background()

	_, err := b.Produce(ctx, []byte("k"), []byte("v"), "orders")
	require.NoError(t, err)
	require.Empty(t, fc.batches)

	require.NoError(t, b.Close(ctx))
	require.Len(t, fc.batches, 1)
	require.Len(t, fc.batches[0], 1)
}

func TestFlushBucketFailureClearsBucketRegardless(t *testing.T) {
	fc := &fakeBrokerClient{failNext: true}
	b := newTestBatcher(t, 1, fc)
	ctx := context.Background()

	ok, err := b.Produce(ctx, []byte("k"), []byte("v"), "orders")
	require.Error(t, err)
	require.False(t, ok)

	b.mu.Lock()
	remaining := len(b.buckets[bucketKey{"orders", 0}])
	b.mu.Unlock()
	require.Equal(t, 0, remaining)
}
