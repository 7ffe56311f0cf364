// Package mqpb holds the wire types and client/server stubs for the single
// RPC service the broker exposes (§6 of the design spec). A real deployment
// would generate this file with protoc-gen-go-grpc from a .proto; since this
// module carries no protoc build step, the message structs and service
// descriptor below are written by hand in the shape that generator emits,
// and travel over grpc-go with a JSON codec (see codec.go) instead of the
// protobuf wire format — the design spec treats on-wire encoding as an
// abstract concern, so the concrete bytes format is an implementation
// choice, not something callers should depend on.
package mqpb

// WireRecord is the on-wire shape of record.Record.
type WireRecord struct {
	Key       []byte `json:"key"`
	Value     []byte `json:"value"`
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Timestamp int64  `json:"timestamp"`
	Offset    int64  `json:"offset"`
}

type ProduceMessagesRequest struct {
	ProducerID string       `json:"producer_id"`
	Messages   []WireRecord `json:"messages"`
}

type ProduceMessagesResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ConsumeMessagesRequest struct {
	GroupID      string `json:"group_id"`
	Topic        string `json:"topic"`
	Partition    int32  `json:"partition"`
	StartOffset  int64  `json:"start_offset"`
	MaxMessages  int32  `json:"max_messages"`
}

type ConsumeMessagesResponse struct {
	Success      bool         `json:"success"`
	Messages     []WireRecord `json:"messages"`
	ErrorMessage string       `json:"error_message,omitempty"`
}

type GetMetadataRequest struct {
	Topic string `json:"topic"`
}

type PartitionMetadata struct {
	PartitionID    int32  `json:"partition_id"`
	BrokerAddress string `json:"broker_address"`
}

type GetMetadataResponse struct {
	Success      bool                `json:"success"`
	Partitions   []PartitionMetadata `json:"partitions"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

type GetBrokerAddressRequest struct {
	BrokerID string `json:"broker_id"`
}

type GetBrokerAddressResponse struct {
	Success       bool   `json:"success"`
	BrokerAddress string `json:"broker_address"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

type CommitOffsetRequest struct {
	GroupID   string `json:"group_id"`
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

type CommitOffsetResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type ShutdownRequest struct {
	BrokerID string `json:"broker_id"`
}

type ShutdownResponse struct {
	Success       bool   `json:"success"`
	BrokerAddress string `json:"broker_address,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
