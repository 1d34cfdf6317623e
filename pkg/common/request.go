package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
)

// Request is the inbound message seen by every unit of a chain.
// One Request is created per call and shared by pointer through the chain.
type Request struct {
	Method     string
	Path       string
	RemoteAddr string
	Header     http.Header
	Cookies    map[string]string
	Query      map[string]string

	// Body holds the parsed payload, nil when absent or not JSON.
	Body any
	// RawBody holds the payload as received.
	RawBody []byte

	ctx     context.Context
	httpReq *http.Request
}

// NewRequest creates an empty request bound to ctx.
func NewRequest(ctx context.Context) *Request {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Request{
		Header:  make(http.Header),
		Cookies: make(map[string]string),
		Query:   make(map[string]string),
		ctx:     ctx,
	}
}

// RequestFromHTTP builds a Request from an incoming HTTP request and its already-read body.
// JSON bodies are parsed into Body; other content types are only kept in RawBody.
// GET payloads are parsed into Body when they are valid JSON.
func RequestFromHTTP(r *http.Request, body []byte) (*Request, error) {
	req := NewRequest(r.Context())
	req.Method = r.Method
	req.Path = r.URL.Path
	req.RemoteAddr = r.RemoteAddr
	req.Header = r.Header.Clone()
	req.RawBody = body
	req.httpReq = r

	for _, c := range r.Cookies() {
		if _, exists := req.Cookies[c.Name]; !exists {
			req.Cookies[c.Name] = c.Value
		}
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			req.Query[key] = values[0]
		}
	}

	if len(body) == 0 {
		return req, nil
	}

	var parsed any
	switch {
	case isJSON(r.Header.Get("Content-Type")):
		if err := json.Unmarshal(body, &parsed); err != nil {
			return req, fmt.Errorf("parse request body: %w", err)
		}
		req.Body = parsed
	case r.Method == http.MethodGet:
		// GET payloads come from the params query and carry no content type
		if json.Unmarshal(body, &parsed) == nil {
			req.Body = parsed
		}
	}

	return req, nil
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// Context returns the request's context. It is never nil.
func (r *Request) Context() context.Context {
	if r.ctx == nil {
		return context.Background()
	}
	return r.ctx
}

// SetContext replaces the request's context. Units invoked afterwards see the new context.
func (r *Request) SetContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	r.ctx = ctx
	if r.httpReq != nil {
		r.httpReq = r.httpReq.WithContext(ctx)
	}
}

// HTTPRequest returns the underlying *http.Request.
// Requests not created from HTTP get a synthesized one carrying the same
// method, path, headers, body and context.
func (r *Request) HTTPRequest() *http.Request {
	if r.httpReq != nil {
		return r.httpReq
	}

	method := r.Method
	if method == "" {
		method = http.MethodPost
	}
	path := r.Path
	if path == "" {
		path = "/"
	}
	hr, err := http.NewRequestWithContext(r.Context(), method, path, bytes.NewReader(r.RawBody))
	if err != nil {
		hr, _ = http.NewRequestWithContext(r.Context(), method, "/", bytes.NewReader(r.RawBody))
	}
	hr.Header = r.Header.Clone()
	hr.RemoteAddr = r.RemoteAddr
	for name, value := range r.Cookies {
		hr.AddCookie(&http.Cookie{Name: name, Value: value})
	}
	r.httpReq = hr
	return hr
}

// swapHTTPRequest installs hr as the underlying request and adopts its context.
// The returned func restores the previous request and context.
func (r *Request) swapHTTPRequest(hr *http.Request) (restore func()) {
	prevReq, prevCtx := r.httpReq, r.ctx
	r.httpReq = hr
	if hr != nil {
		r.ctx = hr.Context()
	}
	return func() {
		r.httpReq, r.ctx = prevReq, prevCtx
	}
}
