package common

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestResponseJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	res := NewResponse(rec)

	if err := res.SetStatus(http.StatusCreated).JSON(map[string]int{"id": 7}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if rec.Code != http.StatusCreated {
		t.Errorf("Expected status code %d, got %d", http.StatusCreated, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type %q, got %q", "application/json", ct)
	}
	if rec.Body.String() != `{"id":7}` {
		t.Errorf("Expected body %q, got %q", `{"id":7}`, rec.Body.String())
	}
	if res.BytesWritten() != int64(len(`{"id":7}`)) {
		t.Errorf("Expected %d bytes written, got %d", len(`{"id":7}`), res.BytesWritten())
	}
}

func TestResponseSend(t *testing.T) {
	tests := []struct {
		name        string
		body        any
		contentType string
		expected    string
	}{
		{"text", "hello", "text/plain; charset=utf-8", "hello"},
		{"binary", []byte{0x01, 0x02}, "application/octet-stream", "\x01\x02"},
		{"structured", []string{"a", "b"}, "application/json", `["a","b"]`},
		{"empty", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			res := NewResponse(rec)
			if err := res.Send(tt.body); err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
				t.Errorf("Expected Content-Type %q, got %q", tt.contentType, ct)
			}
			if !bytes.Equal(rec.Body.Bytes(), []byte(tt.expected)) {
				t.Errorf("Expected body %q, got %q", tt.expected, rec.Body.String())
			}
			if !res.Sent() {
				t.Error("Expected response to be marked as sent")
			}
		})
	}
}

func TestResponseSendTwice(t *testing.T) {
	res := NewResponse(httptest.NewRecorder())
	if err := res.Send("first"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := res.JSON("second"); !errors.Is(err, ErrResponseSent) {
		t.Errorf("Expected %v, got %v", ErrResponseSent, err)
	}
}

func TestResponseDirectWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	res := NewResponse(rec)

	if res.Sent() {
		t.Error("Expected new response not to be sent")
	}
	if res.Status() != http.StatusOK {
		t.Errorf("Expected default status %d, got %d", http.StatusOK, res.Status())
	}

	res.Writer().WriteHeader(http.StatusTeapot)
	_, _ = res.Writer().Write([]byte("short and stout"))

	if !res.Sent() {
		t.Error("Expected direct writes to mark the response as sent")
	}
	if res.Status() != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, res.Status())
	}
}

func TestResponseResultSlot(t *testing.T) {
	res := NewResponse(nil)
	if _, ok := res.Result(); ok {
		t.Error("Expected result slot to be unset")
	}
	if err := res.setResult(nil); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := res.Result(); !ok {
		t.Error("Expected a nil result to still mark the slot as set")
	}
	if err := res.setResult("again"); !errors.Is(err, ErrResultAlreadySet) {
		t.Errorf("Expected %v, got %v", ErrResultAlreadySet, err)
	}
}

func TestRequestFromHTTP(t *testing.T) {
	hr := httptest.NewRequest(http.MethodPost, "/api/rpc/getProject?id=5&id=6&draft=true", strings.NewReader(`{"params":{"id":5}}`))
	hr.Header.Set("Content-Type", "application/json; charset=utf-8")
	hr.AddCookie(&http.Cookie{Name: "session", Value: "abc"})

	req, err := RequestFromHTTP(hr, []byte(`{"params":{"id":5}}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if req.Method != http.MethodPost || req.Path != "/api/rpc/getProject" {
		t.Errorf("Expected POST /api/rpc/getProject, got %s %s", req.Method, req.Path)
	}
	if req.Query["id"] != "5" || req.Query["draft"] != "true" {
		t.Errorf("Expected first query values, got %v", req.Query)
	}
	if req.Cookies["session"] != "abc" {
		t.Errorf("Expected session cookie %q, got %q", "abc", req.Cookies["session"])
	}
	body, ok := req.Body.(map[string]any)
	if !ok || body["params"] == nil {
		t.Errorf("Expected parsed JSON body, got %#v", req.Body)
	}
	if req.HTTPRequest() != hr {
		t.Error("Expected HTTPRequest to return the original request")
	}
}

func TestRequestFromHTTPInvalidJSON(t *testing.T) {
	hr := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	hr.Header.Set("Content-Type", "application/json")

	if _, err := RequestFromHTTP(hr, []byte("{")); err == nil {
		t.Error("Expected an error for an invalid JSON body")
	}
}

func TestRequestFromHTTPGetPayload(t *testing.T) {
	hr := httptest.NewRequest(http.MethodGet, "/api/rpc/getProject", nil)

	req, err := RequestFromHTTP(hr, []byte(`{"params":{"id":5}}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if body, ok := req.Body.(map[string]any); !ok || body["params"] == nil {
		t.Errorf("Expected parsed JSON body, got %#v", req.Body)
	}

	// Non-JSON payloads such as protobuf stay raw
	req, err = RequestFromHTTP(hr, []byte{0x0a, 0x02, 'h', 'i'})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if req.Body != nil {
		t.Errorf("Expected no parsed body, got %#v", req.Body)
	}
}

func TestRequestDefaults(t *testing.T) {
	req := NewRequest(nil)
	if req.Context() == nil {
		t.Fatal("Expected a non-nil context")
	}
	if req.Cookies == nil || req.Query == nil || req.Header == nil {
		t.Error("Expected maps to default to empty, not nil")
	}
	if req.Body != nil {
		t.Errorf("Expected no body, got %v", req.Body)
	}

	req.Method = http.MethodGet
	req.Path = "/api/rpc/ping"
	req.Cookies["a"] = "b"
	hr := req.HTTPRequest()
	if hr.Method != http.MethodGet || hr.URL.Path != "/api/rpc/ping" {
		t.Errorf("Expected synthesized GET /api/rpc/ping, got %s %s", hr.Method, hr.URL.Path)
	}
	if c, err := hr.Cookie("a"); err != nil || c.Value != "b" {
		t.Errorf("Expected synthesized cookie a=b, got %v (%v)", c, err)
	}

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, 1)
	req.SetContext(ctx)
	if req.HTTPRequest().Context().Value(key{}) != 1 {
		t.Error("Expected SetContext to propagate to the underlying request")
	}
}

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
		name string
	}{
		{errors.New("plain"), http.StatusInternalServerError, "Error"},
		{NewHTTPError(http.StatusBadRequest, "bad"), http.StatusBadRequest, "HTTPError"},
		{NewNotFoundError(""), http.StatusNotFound, "NotFoundError"},
		{NewAuthenticationError(""), http.StatusUnauthorized, "AuthenticationError"},
		{NewAuthorizationError(""), http.StatusForbidden, "AuthorizationError"},
	}

	for _, tt := range tests {
		wrapped := errors.Join(errors.New("context"), tt.err)
		if code := StatusCode(wrapped); code != tt.code {
			t.Errorf("Expected status %d for %v, got %d", tt.code, tt.err, code)
		}
		if name := ErrorName(wrapped); name != tt.name {
			t.Errorf("Expected name %q for %v, got %q", tt.name, tt.err, name)
		}
	}
}
