package router

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"example.com/deps/internal/mqerr"
	"example.com/deps/internal/mqpb"
)

// fakeClient is a hand-rolled mqpb.Client; only GetMetadata and
// GetBrokerAddress are exercised by Router, so the rest return
// "not implemented" and are never called in these tests.
type fakeClient struct {
	getMetadata func(ctx context.Context, in *mqpb.GetMetadataRequest) (*mqpb.GetMetadataResponse, error)
	metaCalls   int
}

func (f *fakeClient) ProduceMessages(ctx context.Context, in *mqpb.ProduceMessagesRequest, opts ...grpc.CallOption) (*mqpb.ProduceMessagesResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeClient) ConsumeMessages(ctx context.Context, in *mqpb.ConsumeMessagesRequest, opts ...grpc.CallOption) (*mqpb.ConsumeMessagesResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeClient) GetMetadata(ctx context.Context, in *mqpb.GetMetadataRequest, opts ...grpc.CallOption) (*mqpb.GetMetadataResponse, error) {
	f.metaCalls++
	return f.getMetadata(ctx, in)
}
func (f *fakeClient) GetBrokerAddress(ctx context.Context, in *mqpb.GetBrokerAddressRequest, opts ...grpc.CallOption) (*mqpb.GetBrokerAddressResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeClient) CommitOffset(ctx context.Context, in *mqpb.CommitOffsetRequest, opts ...grpc.CallOption) (*mqpb.CommitOffsetResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeClient) Shutdown(ctx context.Context, in *mqpb.ShutdownRequest, opts ...grpc.CallOption) (*mqpb.ShutdownResponse, error) {
	return nil, errors.New("not implemented")
}

func newTestRouter(rpc mqpb.Client) *Router {
	return &Router{
		logger:          log.NewNopLogger(),
		metrics:         NewMetrics(nil),
		routingTable:    make(map[string]map[int32]string),
		partitionCounts: make(map[string]int32),
		bootstrap:       []string{"bootstrap-0:9000"},
		currentAddr:     "bootstrap-0:9000",
		currentRPC:      rpc,
	}
}

func TestGetBrokerAddressCachesAfterRefresh(t *testing.T) {
	fc := &fakeClient{
		getMetadata: func(ctx context.Context, in *mqpb.GetMetadataRequest) (*mqpb.GetMetadataResponse, error) {
			return &mqpb.GetMetadataResponse{
				Success: true,
				Partitions: []mqpb.PartitionMetadata{
					{PartitionID: 0, BrokerAddress: "broker-0:7000"},
					{PartitionID: 1, BrokerAddress: "broker-1:7000"},
				},
			}, nil
		},
	}
	r := newTestRouter(fc)

	addr, err := r.GetBrokerAddress(context.Background(), "orders", 1)
	require.NoError(t, err)
	require.Equal(t, "broker-1:7000", addr)

	_, err = r.GetBrokerAddress(context.Background(), "orders", 0)
	require.NoError(t, err)
	require.Equal(t, 1, fc.metaCalls, "second lookup should be served from cache without a new RPC")
}

func TestGetBrokerAddressUnknownPartitionIsNotFound(t *testing.T) {
	fc := &fakeClient{
		getMetadata: func(ctx context.Context, in *mqpb.GetMetadataRequest) (*mqpb.GetMetadataResponse, error) {
			return &mqpb.GetMetadataResponse{
				Success:    true,
				Partitions: []mqpb.PartitionMetadata{{PartitionID: 0, BrokerAddress: "broker-0:7000"}},
			}, nil
		},
	}
	r := newTestRouter(fc)

	_, err := r.GetBrokerAddress(context.Background(), "orders", 5)
	require.Error(t, err)
	kind, ok := mqerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mqerr.NotFound, kind)
}

func TestPartitionCountRefreshesOnMiss(t *testing.T) {
	fc := &fakeClient{
		getMetadata: func(ctx context.Context, in *mqpb.GetMetadataRequest) (*mqpb.GetMetadataResponse, error) {
			return &mqpb.GetMetadataResponse{
				Success: true,
				Partitions: []mqpb.PartitionMetadata{
					{PartitionID: 0, BrokerAddress: "broker-0:7000"},
					{PartitionID: 1, BrokerAddress: "broker-1:7000"},
					{PartitionID: 2, BrokerAddress: "broker-2:7000"},
				},
			}, nil
		},
	}
	r := newTestRouter(fc)

	count, err := r.PartitionCount(context.Background(), "orders")
	require.NoError(t, err)
	require.Equal(t, int32(3), count)
}

func TestCallRetriesOnceOnSameBootstrapBeforeFailing(t *testing.T) {
	r := newTestRouter(&fakeClient{})

	attempts := 0
	err := r.call(func(c mqpb.Client) error {
		attempts++
		return errors.New("boom")
	})

	require.Error(t, err)
	kind, ok := mqerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, mqerr.NoBootstrap, kind)
	// Two attempts on the bound bootstrap, then rotation is attempted
	// against the (single, already-tried) remaining bootstrap list, which
	// is empty here, so call() gives up after the initial two.
	require.Equal(t, 2, attempts)
}

func TestCallSucceedsOnRetryWithoutRotating(t *testing.T) {
	r := newTestRouter(&fakeClient{})

	attempts := 0
	err := r.call(func(c mqpb.Client) error {
		attempts++
		if attempts == 1 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}
