// Package codec provides encoding and decoding of resolver input and output for different data formats.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/Suhaibinator/SRPC/pkg/common"
)

// requestEnvelope is the JSON body of an RPC call.
type requestEnvelope struct {
	Params json.RawMessage `json:"params"`
}

// ResponseEnvelope is the JSON body of an RPC reply.
type ResponseEnvelope struct {
	Result any `json:"result"`
	Error  any `json:"error"`
}

// JSONCodec is a codec that uses JSON for marshaling and unmarshaling.
// Requests carry the input under "params"; replies carry the output under "result".
type JSONCodec[T any, U any] struct{}

// Decode decodes the "params" field of the raw request body into a value of type T.
// An empty body or missing params yields the zero value of T.
func (c *JSONCodec[T, U]) Decode(req *common.Request) (T, error) {
	var data T

	if len(req.RawBody) == 0 {
		return data, nil
	}

	var envelope requestEnvelope
	if err := json.Unmarshal(req.RawBody, &envelope); err != nil {
		return data, fmt.Errorf("decode json envelope: %w", err)
	}

	if len(envelope.Params) == 0 || string(envelope.Params) == "null" {
		return data, nil
	}

	if err := json.Unmarshal(envelope.Params, &data); err != nil {
		return data, fmt.Errorf("decode json params: %w", err)
	}

	return data, nil
}

// Encode writes resp to the response inside a result envelope.
func (c *JSONCodec[T, U]) Encode(res *common.Response, resp U) error {
	return res.JSON(ResponseEnvelope{Result: resp})
}

// NewJSONCodec creates a new JSONCodec instance for the specified types.
// T represents the input type and U represents the output type.
func NewJSONCodec[T any, U any]() *JSONCodec[T, U] {
	return &JSONCodec[T, U]{}
}
