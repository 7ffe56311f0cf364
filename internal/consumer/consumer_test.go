package consumer

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"example.com/deps/internal/mqpb"
)

type fakeRouter struct {
	addr string
}

func (f *fakeRouter) GetBrokerAddress(ctx context.Context, topic string, partition int32) (string, error) {
	return f.addr, nil
}

type fakeBrokerClient struct {
	resp    *mqpb.ConsumeMessagesResponse
	callErr error
	gotReq  *mqpb.ConsumeMessagesRequest
}

func (f *fakeBrokerClient) ProduceMessages(ctx context.Context, in *mqpb.ProduceMessagesRequest, opts ...grpc.CallOption) (*mqpb.ProduceMessagesResponse, error) {
	return nil, errors.New("not implemented")
}
func (f *fakeBrokerClient) ConsumeMessages(ctx context.Context, in *mqpb.ConsumeMessagesRequest, opts ...grpc.CallOption) (*mqpb.ConsumeMessagesResponse, error) {
	f.gotReq = in
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.resp, nil
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

func newTestConsumer(fc *fakeBrokerClient) *Consumer {
	c := New("g1", &fakeRouter{addr: "broker-0:7000"}, log.NewNopLogger())
	c.clients["broker-0:7000"] = fc
	return c
}

func TestConsumeReturnsRecords(t *testing.T) {
	fc := &fakeBrokerClient{resp: &mqpb.ConsumeMessagesResponse{
		Success: true,
		Messages: []mqpb.WireRecord{
			{Key: []byte("k"), Value: []byte("v1"), Offset: 4},
			{Key: []byte("k"), Value: []byte("v2"), Offset: 5},
		},
	}}
	c := newTestConsumer(fc)

	recs, err := c.Consume(context.Background(), "orders", 0, 4, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, int64(4), recs[0].Offset)
	require.Equal(t, "g1", fc.gotReq.GroupID)
	require.Equal(t, int64(4), fc.gotReq.StartOffset)
}

func TestConsumeRPCFailureReturnsEmptyNotPanic(t *testing.T) {
	fc := &fakeBrokerClient{callErr: errors.New("connection refused")}
	c := newTestConsumer(fc)

	recs, err := c.Consume(context.Background(), "orders", 0, 0, 10)
	require.Error(t, err)
	require.Empty(t, recs)
}

func TestConsumeRejectedResponseReturnsError(t *testing.T) {
	fc := &fakeBrokerClient{resp: &mqpb.ConsumeMessagesResponse{Success: false, ErrorMessage: "unknown partition"}}
	c := newTestConsumer(fc)

	recs, err := c.Consume(context.Background(), "orders", 9, 0, 10)
	require.Error(t, err)
	require.Empty(t, recs)
}
