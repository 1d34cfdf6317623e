// Package router provides an RPC server that runs named resolvers behind a middleware chain.
// It supports global and per-resolver middleware, typed resolvers with codecs,
// timeouts, body size limits, rate limiting, metrics and graceful shutdown.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"github.com/Suhaibinator/SRPC/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultBasePath is the path prefix resolvers are served under when none is configured.
const DefaultBasePath = "/api/rpc"

// Kind defines whether a resolver reads or changes state.
// Queries may be called with GET and POST, mutations only with POST.
type Kind string

const (
	// Query is a read-only resolver.
	Query Kind = "query"

	// Mutation is a resolver with side effects.
	Mutation Kind = "mutation"
)

// RouterConfig defines the global configuration for the router.
// It includes settings for logging, timeouts, metrics, and middleware.
type RouterConfig struct {
	Logger            *zap.Logger                 // Logger for all router operations
	Middlewares       []common.Middleware         // Global middlewares applied to all resolvers
	GlobalTimeout     time.Duration               // Default timeout for all resolvers
	GlobalMaxBodySize int64                       // Default maximum request body size in bytes
	GlobalRateLimit   *middleware.RateLimitConfig // Default rate limit for all resolvers
	IPConfig          *middleware.IPConfig        // Configuration for client IP extraction
	EnableMetrics     bool                        // Enable Prometheus metrics collection
	MetricsRegisterer prometheus.Registerer       // Registerer for metrics (default prometheus.DefaultRegisterer)
	MetricsNamespace  string                      // Namespace for metric names (default "srpc")
	EnableTraceID     bool                        // Enable trace ID generation and logging
	BasePath          string                      // Path prefix for resolvers (default /api/rpc)
	NotFoundHandler   http.Handler                // Handler for unknown resolvers and paths (optional)
	ErrorHandler      ErrorHandler                // Renders errors returned by the chain (optional)
}

// ResolverConfig defines a resolver with generic input and output types.
// The router decodes the input with Codec, runs the middleware chain and the
// resolver, and encodes the output with Codec.
type ResolverConfig[T any, U any] struct {
	Name        string                      // Resolver name, the last path segment
	Kind        Kind                        // Query or Mutation
	Middlewares []common.Middleware         // Middlewares applied to this resolver only
	Timeout     time.Duration               // Override timeout for this resolver
	MaxBodySize int64                       // Override max body size for this resolver
	RateLimit   *middleware.RateLimitConfig // Override rate limit for this resolver
	Codec       Codec[T, U]                 // Codec for decoding input and encoding output
	Handler     Resolver[T, U]              // The resolver function
}

// Middleware is an alias for common.Middleware.
type Middleware = common.Middleware

// Resolver is the terminal handler of a call.
// It receives the request context, the decoded input and the context slot
// populated by the middleware that ran before it.
type Resolver[T any, U any] func(ctx context.Context, input T, c common.Ctx) (U, error)

// ErrorHandler renders an error returned by the middleware chain.
// The response may already have been sent, in which case only logging is possible.
type ErrorHandler func(req *common.Request, res *common.Response, err error)

// Codec defines an interface for decoding resolver input and encoding resolver output.
// This allows for different data formats (e.g., JSON, Protocol Buffers).
// The framework includes implementations for JSON and Protocol Buffers in the codec package.
type Codec[T any, U any] interface {
	// Decode extracts the input of type T from the request's raw body.
	Decode(req *common.Request) (T, error)

	// Encode serializes resp and sends it, setting the appropriate Content-Type.
	Encode(res *common.Response, resp U) error
}
