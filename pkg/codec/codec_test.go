package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func requestWithBody(body []byte) *common.Request {
	req := common.NewRequest(context.Background())
	req.RawBody = body
	return req
}

// TestJSONCodec tests the JSONCodec
func TestJSONCodec(t *testing.T) {
	type TestInput struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}
	type TestOutput struct {
		Greeting string `json:"greeting"`
	}

	codec := NewJSONCodec[TestInput, TestOutput]()

	data, err := codec.Decode(requestWithBody([]byte(`{"params":{"name":"John","age":30}}`)))
	if err != nil {
		t.Fatalf("Failed to decode request: %v", err)
	}
	if data.Name != "John" {
		t.Errorf("Expected name to be %q, got %q", "John", data.Name)
	}
	if data.Age != 30 {
		t.Errorf("Expected age to be %d, got %d", 30, data.Age)
	}

	rec := httptest.NewRecorder()
	if err := codec.Encode(common.NewResponse(rec), TestOutput{Greeting: "Hello, John!"}); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type %q, got %q", "application/json", ct)
	}

	var envelope struct {
		Result TestOutput `json:"result"`
		Error  any        `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if envelope.Result.Greeting != "Hello, John!" {
		t.Errorf("Expected greeting %q, got %q", "Hello, John!", envelope.Result.Greeting)
	}
	if envelope.Error != nil {
		t.Errorf("Expected null error, got %v", envelope.Error)
	}
}

func TestJSONCodecEmptyParams(t *testing.T) {
	codec := NewJSONCodec[map[string]int, string]()

	for _, body := range []string{"", `{}`, `{"params":null}`} {
		data, err := codec.Decode(requestWithBody([]byte(body)))
		if err != nil {
			t.Errorf("Expected no error for body %q, got %v", body, err)
		}
		if data != nil {
			t.Errorf("Expected zero value for body %q, got %v", body, data)
		}
	}
}

func TestJSONCodecInvalid(t *testing.T) {
	codec := NewJSONCodec[int, int]()

	if _, err := codec.Decode(requestWithBody([]byte(`{"params":`))); err == nil {
		t.Error("Expected an error for a truncated envelope")
	}
	if _, err := codec.Decode(requestWithBody([]byte(`{"params":"seven"}`))); err == nil {
		t.Error("Expected an error for mistyped params")
	}
}

// TestProtoCodec tests the ProtoCodec with well-known wrapper messages
func TestProtoCodec(t *testing.T) {
	codec := NewProtoCodec[*wrapperspb.StringValue, *wrapperspb.Int64Value]()

	body, err := proto.Marshal(wrapperspb.String("project-42"))
	if err != nil {
		t.Fatalf("Failed to marshal input: %v", err)
	}

	data, err := codec.Decode(requestWithBody(body))
	if err != nil {
		t.Fatalf("Failed to decode request: %v", err)
	}
	if data.GetValue() != "project-42" {
		t.Errorf("Expected value %q, got %q", "project-42", data.GetValue())
	}

	rec := httptest.NewRecorder()
	if err := codec.Encode(common.NewResponse(rec), wrapperspb.Int64(42)); err != nil {
		t.Fatalf("Failed to encode response: %v", err)
	}
	if ct := rec.Header().Get("Content-Type"); ct != ProtoContentType {
		t.Errorf("Expected Content-Type %q, got %q", ProtoContentType, ct)
	}

	out := &wrapperspb.Int64Value{}
	if err := proto.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if out.GetValue() != 42 {
		t.Errorf("Expected value %d, got %d", 42, out.GetValue())
	}
}

func TestProtoCodecInvalid(t *testing.T) {
	codec := NewProtoCodec[*wrapperspb.StringValue, *wrapperspb.StringValue]()
	if _, err := codec.Decode(requestWithBody([]byte{0xff, 0xff, 0xff})); err == nil {
		t.Error("Expected an error for malformed proto bytes")
	}
}

func TestDecodeBase64(t *testing.T) {
	payload := []byte(`{"params":{"id":1}}?>`)

	encodings := map[string]string{
		"std":     base64.StdEncoding.EncodeToString(payload),
		"std raw": base64.RawStdEncoding.EncodeToString(payload),
		"url":     base64.URLEncoding.EncodeToString(payload),
		"url raw": base64.RawURLEncoding.EncodeToString(payload),
	}

	for name, encoded := range encodings {
		decoded, err := DecodeBase64(encoded)
		if err != nil {
			t.Errorf("%s: expected no error, got %v", name, err)
			continue
		}
		if string(decoded) != string(payload) {
			t.Errorf("%s: expected %q, got %q", name, payload, decoded)
		}
	}

	if _, err := DecodeBase64("not base64!"); !errors.Is(err, ErrInvalidBase64) {
		t.Errorf("Expected %v, got %v", ErrInvalidBase64, err)
	}
}
