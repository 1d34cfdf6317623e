package common

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Response is the outbound message shared by every unit of a chain.
// Besides the send operations it carries the context slot and the result slot.
type Response struct {
	tw     *trackingWriter
	w      http.ResponseWriter
	status int

	ctx Ctx

	result    any
	hasResult bool
}

// NewResponse creates a Response writing to w.
// A nil w discards everything written, which is useful when running a chain outside HTTP.
func NewResponse(w http.ResponseWriter) *Response {
	if w == nil {
		w = &discardWriter{header: make(http.Header)}
	}
	tw := &trackingWriter{ResponseWriter: w}
	return &Response{
		tw:  tw,
		w:   tw,
		ctx: make(Ctx),
	}
}

// Ctx returns the context slot. The same map is returned for the lifetime of the Response.
func (r *Response) Ctx() Ctx {
	return r.ctx
}

// Result returns the terminal handler's return value.
// The second return value is false until the terminal handler has completed.
func (r *Response) Result() (any, bool) {
	return r.result, r.hasResult
}

// setResult stores the terminal handler's value. Only the executor calls it.
func (r *Response) setResult(v any) error {
	if r.hasResult {
		return ErrResultAlreadySet
	}
	r.result = v
	r.hasResult = true
	return nil
}

// Writer returns the writer downstream units should write to.
// Direct writes through it are reflected by Sent.
func (r *Response) Writer() http.ResponseWriter {
	return r.w
}

// setWriter installs w as the current writer and returns the previous one.
func (r *Response) setWriter(w http.ResponseWriter) http.ResponseWriter {
	prev := r.w
	r.w = w
	return prev
}

// Header returns the header map that will be sent.
func (r *Response) Header() http.Header {
	return r.w.Header()
}

// SetStatus records the status code used by the next send.
func (r *Response) SetStatus(code int) *Response {
	r.status = code
	return r
}

// Status returns the status code that was written, or the one that will be written.
func (r *Response) Status() int {
	if r.tw.wroteHeader {
		return r.tw.statusCode
	}
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// StatusSet reports whether SetStatus was called.
func (r *Response) StatusSet() bool {
	return r.status != 0
}

// Sent reports whether the response headers have been written.
func (r *Response) Sent() bool {
	return r.tw.wroteHeader
}

// BytesWritten returns the number of body bytes written so far.
func (r *Response) BytesWritten() int64 {
	return r.tw.bytesWritten
}

// JSON sends v encoded as JSON.
func (r *Response) JSON(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode json response: %w", err)
	}
	return r.write("application/json", body)
}

// Send sends body. Strings are sent as text, byte slices as binary,
// nil as an empty body and anything else as JSON.
func (r *Response) Send(body any) error {
	switch b := body.(type) {
	case nil:
		return r.write("", nil)
	case string:
		return r.write("text/plain; charset=utf-8", []byte(b))
	case []byte:
		return r.write("application/octet-stream", b)
	default:
		return r.JSON(b)
	}
}

// SendBytes sends body with the given content type.
func (r *Response) SendBytes(contentType string, body []byte) error {
	return r.write(contentType, body)
}

func (r *Response) write(contentType string, body []byte) error {
	if r.Sent() {
		return ErrResponseSent
	}

	h := r.w.Header()
	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}

	r.w.WriteHeader(r.Status())
	if len(body) == 0 {
		return nil
	}
	_, err := r.w.Write(body)
	return err
}

// trackingWriter is a wrapper around http.ResponseWriter that records whether
// headers were written, the status code and the body size.
type trackingWriter struct {
	http.ResponseWriter
	statusCode   int
	wroteHeader  bool
	bytesWritten int64
}

// WriteHeader captures the status code and calls the underlying ResponseWriter.WriteHeader
func (tw *trackingWriter) WriteHeader(statusCode int) {
	if tw.wroteHeader {
		return
	}
	tw.statusCode = statusCode
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the number of bytes written and calls the underlying ResponseWriter.Write
func (tw *trackingWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	n, err := tw.ResponseWriter.Write(b)
	tw.bytesWritten += int64(n)
	return n, err
}

// Flush calls the underlying ResponseWriter.Flush if it implements http.Flusher
func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the wrapped writer for http.ResponseController.
func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}

type discardWriter struct {
	header http.Header
}

func (d *discardWriter) Header() http.Header         { return d.header }
func (d *discardWriter) Write(b []byte) (int, error) { return len(b), nil }
func (d *discardWriter) WriteHeader(int)             {}
