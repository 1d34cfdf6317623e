package middleware

import (
	"context"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"github.com/google/uuid"
)

// TraceIDHeader carries the trace ID on requests and responses.
const TraceIDHeader = "X-Trace-ID"

// TraceIDCtxKey is the context slot key holding the trace ID.
const TraceIDCtxKey = "traceId"

// traceIDKey is the key used to store the trace ID in the request context
type traceIDKey struct{}

var TraceIDKey = traceIDKey{}

// TraceMiddleware creates a middleware that assigns a trace ID to each call.
// A valid UUID in the X-Trace-ID request header is reused; otherwise a new one is generated.
// The ID is stored in the context slot and the request context, and echoed in the response header.
func TraceMiddleware() Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		traceID := uuid.New().String()
		if incoming := req.Header.Get(TraceIDHeader); incoming != "" {
			if parsed, err := uuid.Parse(incoming); err == nil {
				traceID = parsed.String()
			}
		}

		res.Ctx().Set(TraceIDCtxKey, traceID)
		res.Header().Set(TraceIDHeader, traceID)
		req.SetContext(context.WithValue(req.Context(), TraceIDKey, traceID))

		return next()
	})
}

// GetTraceID extracts the trace ID from the context slot.
// Returns an empty string if no trace ID is found.
func GetTraceID(res *common.Response) string {
	traceID, _ := common.CtxValue[string](res.Ctx(), TraceIDCtxKey)
	return traceID
}

// GetTraceIDFromContext extracts the trace ID from a context.
// Returns an empty string if no trace ID is found.
func GetTraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}
