// Package middleware provides a collection of middleware components for the SRPC framework.
// Every component implements common.Middleware and can be used as global or local middleware.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"go.uber.org/zap"
)

// Use the Middleware type from the common package
type Middleware = common.Middleware

// Recovery is a middleware that recovers from panics in downstream units
// and turns them into a 500 error.
func Recovery(logger *zap.Logger) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("stack", string(debug.Stack())),
					zap.String("method", req.Method),
					zap.String("path", req.Path),
				)

				err = common.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
			}
		}()

		return next()
	})
}

// Logging is a middleware that logs calls once the rest of the chain has completed
func Logging(logger *zap.Logger) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		start := time.Now()

		err := next()

		duration := time.Since(start)
		status := res.Status()
		if err != nil && !res.Sent() {
			status = common.StatusCode(err)
		}

		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
		}
		if traceID := GetTraceID(res); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		// Use appropriate log level based on status code and duration
		switch {
		case status >= 500:
			logger.Error("Server error", append(fields, zap.String("remote_addr", req.RemoteAddr))...)
		case status >= 400:
			logger.Warn("Client error", fields...)
		case duration > 1*time.Second:
			logger.Warn("Slow request", fields...)
		default:
			logger.Debug("Request", fields...)
		}

		return err
	})
}

// MaxBodySize is a middleware that rejects calls whose payload exceeds maxSize bytes
func MaxBodySize(maxSize int64) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		if maxSize > 0 && int64(len(req.RawBody)) > maxSize {
			return common.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large")
		}
		return next()
	})
}

// Timeout is a middleware that gives downstream units a deadline.
// Units observe it through req.Context(); the chain stops at the next link once it expires.
func Timeout(timeout time.Duration) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		parent := req.Context()
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()

		req.SetContext(ctx)
		defer req.SetContext(parent)

		err := next()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil && parent.Err() == nil {
			return common.WrapHTTPError(http.StatusRequestTimeout, "Request Timeout", err)
		}
		return err
	})
}

// CORS is a middleware that adds CORS headers to the response and answers preflight calls
func CORS(origins []string, methods []string, headers []string) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		h := res.Header()
		if len(origins) > 0 {
			h.Set("Access-Control-Allow-Origin", strings.Join(origins, ", "))
		}
		if len(methods) > 0 {
			h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
		}
		if len(headers) > 0 {
			h.Set("Access-Control-Allow-Headers", strings.Join(headers, ", "))
		}

		// Handle preflight requests
		if req.Method == http.MethodOptions {
			return res.SetStatus(http.StatusOK).Send(nil)
		}

		return next()
	})
}
