package codec

import (
	"fmt"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"google.golang.org/protobuf/proto"
)

// ProtoContentType is the content type of Protocol Buffers payloads.
const ProtoContentType = "application/x-protobuf"

// ProtoCodec is a codec that uses Protocol Buffers for marshaling and unmarshaling.
// T and U must be generated message pointer types (e.g., *pb.GetProjectRequest).
type ProtoCodec[T proto.Message, U proto.Message] struct{}

// Decode unmarshals the raw request body into a new T.
func (c *ProtoCodec[T, U]) Decode(req *common.Request) (T, error) {
	var zero T

	// ProtoReflect is safe on a nil message pointer and gives access to its type
	data, ok := zero.ProtoReflect().New().Interface().(T)
	if !ok {
		return zero, fmt.Errorf("decode proto: cannot instantiate %T", zero)
	}

	if err := proto.Unmarshal(req.RawBody, data); err != nil {
		return zero, fmt.Errorf("decode proto: %w", err)
	}

	return data, nil
}

// Encode marshals resp and writes it with the Protocol Buffers content type.
func (c *ProtoCodec[T, U]) Encode(res *common.Response, resp U) error {
	body, err := proto.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode proto: %w", err)
	}
	return res.SendBytes(ProtoContentType, body)
}

// NewProtoCodec creates a new ProtoCodec instance for the specified types.
func NewProtoCodec[T proto.Message, U proto.Message]() *ProtoCodec[T, U] {
	return &ProtoCodec[T, U]{}
}
