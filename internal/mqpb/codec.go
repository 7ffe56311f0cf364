package mqpb

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is registered as a grpc content-subtype so calls across this
// package negotiate "application/grpc+json" instead of the protobuf default.
const codecName = "json"

// jsonCodec marshals the plain structs in messages.go as JSON instead of
// protobuf wire format. grpc-go's encoding.Codec interface does not require
// the payload type to implement proto.Message, so this is a legitimate way
// to run real grpc-go transport/framing/deadline machinery over messages
// that were not produced by protoc.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("mqpb: unmarshal: %w", err)
	}
	return nil
}

func (jsonCodec) Name() string { return codecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
