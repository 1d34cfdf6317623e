package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/codec"
	"github.com/Suhaibinator/SRPC/pkg/common"
	"github.com/Suhaibinator/SRPC/pkg/metrics"
	"github.com/Suhaibinator/SRPC/pkg/middleware"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

var (
	// ErrInvalidResolver is returned when a resolver configuration is incomplete.
	ErrInvalidResolver = errors.New("invalid resolver")

	// ErrDuplicateResolver is returned when a resolver name is registered twice.
	ErrDuplicateResolver = errors.New("resolver already registered")
)

// Router is the main router struct that implements http.Handler.
// It serves registered resolvers under the base path and provides graceful shutdown.
type Router struct {
	config       RouterConfig
	router       *httprouter.Router
	logger       *zap.Logger
	basePath     string
	ipConfig     *middleware.IPConfig
	rateLimiter  middleware.RateLimiter
	metrics      *metrics.Collector
	errorHandler ErrorHandler
	resolvers    map[string]*resolver
	resolversMu  sync.RWMutex
	wg           sync.WaitGroup
	shutdown     bool
	shutdownMu   sync.RWMutex
}

// resolver is a registered resolver with its frozen middleware chain.
type resolver struct {
	name        string
	kind        Kind
	maxBodySize int64
	handler     common.Handler
	encode      func(res *common.Response, v any) error
}

// ErrorBody is the "error" member of the JSON error envelope.
type ErrorBody struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// NewRouter creates a new Router with the given configuration.
// It initializes the underlying httprouter, sets up logging and metrics, and
// mounts the resolver endpoints under the base path.
func NewRouter(config RouterConfig) *Router {
	hr := httprouter.New()

	logger := config.Logger
	if logger == nil {
		var err error
		logger, err = zap.NewProduction()
		if err != nil {
			// Fallback to a no-op logger if we can't create a production logger
			logger = zap.NewNop()
		}
	}

	basePath := strings.TrimRight(config.BasePath, "/")
	if basePath == "" {
		basePath = DefaultBasePath
	}

	ipConfig := config.IPConfig
	if ipConfig == nil {
		ipConfig = middleware.DefaultIPConfig()
	}

	r := &Router{
		config:      config,
		router:      hr,
		logger:      logger,
		basePath:    basePath,
		ipConfig:    ipConfig,
		rateLimiter: middleware.NewFixedWindowLimiter(),
		resolvers:   make(map[string]*resolver),
	}

	r.errorHandler = config.ErrorHandler
	if r.errorHandler == nil {
		r.errorHandler = r.defaultErrorHandler
	}

	if config.EnableMetrics {
		namespace := config.MetricsNamespace
		if namespace == "" {
			namespace = "srpc"
		}
		collector, err := metrics.NewCollector(config.MetricsRegisterer, namespace, "")
		if err != nil {
			logger.Error("Failed to register metrics, continuing without them", zap.Error(err))
		} else {
			r.metrics = collector
		}
	}

	path := basePath + "/:name"
	hr.POST(path, r.handleCall)
	hr.GET(path, r.handleCall)
	hr.HEAD(path, r.handleHead)
	hr.NotFound = http.HandlerFunc(r.notFound)
	hr.MethodNotAllowed = http.HandlerFunc(r.methodNotAllowed)
	hr.PanicHandler = r.panicHandler

	return r
}

// RegisterResolver registers a resolver with generic input and output types.
// This is a standalone function rather than a method because Go methods cannot have type parameters.
// The resolver's middleware chain is built and validated once, here.
func RegisterResolver[T any, U any](r *Router, cfg ResolverConfig[T, U]) error {
	if cfg.Name == "" || strings.Contains(cfg.Name, "/") {
		return fmt.Errorf("%w: name %q must be a non-empty path segment", ErrInvalidResolver, cfg.Name)
	}
	if cfg.Kind != Query && cfg.Kind != Mutation {
		return fmt.Errorf("%w: resolver %q has unknown kind %q", ErrInvalidResolver, cfg.Name, cfg.Kind)
	}
	if cfg.Handler == nil {
		return fmt.Errorf("%w: resolver %q has no handler", ErrInvalidResolver, cfg.Name)
	}
	if cfg.Codec == nil {
		return fmt.Errorf("%w: resolver %q has no codec", ErrInvalidResolver, cfg.Name)
	}

	timeout := r.getEffectiveTimeout(cfg.Timeout)
	rateLimit := r.getEffectiveRateLimit(cfg.RateLimit)

	chain := r.buildChain(cfg.Name, cfg.Kind, timeout, rateLimit, cfg.Middlewares)
	if err := chain.Validate(); err != nil {
		return fmt.Errorf("resolver %q: %w", cfg.Name, err)
	}

	terminal := func(req *common.Request, res *common.Response) (any, error) {
		input, err := cfg.Codec.Decode(req)
		if err != nil {
			return nil, common.WrapHTTPError(http.StatusBadRequest, "Failed to decode request", err)
		}

		output, err := cfg.Handler(req.Context(), input, res.Ctx())
		if err != nil {
			return nil, err
		}
		return output, nil
	}

	entry := &resolver{
		name:        cfg.Name,
		kind:        cfg.Kind,
		maxBodySize: r.getEffectiveMaxBodySize(cfg.MaxBodySize),
		handler:     chain.Then(terminal),
		encode: func(res *common.Response, v any) error {
			output, _ := v.(U)
			return cfg.Codec.Encode(res, output)
		},
	}

	r.resolversMu.Lock()
	defer r.resolversMu.Unlock()

	if _, exists := r.resolvers[cfg.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateResolver, cfg.Name)
	}
	r.resolvers[cfg.Name] = entry

	r.logger.Debug("Resolver registered",
		zap.String("resolver", cfg.Name),
		zap.String("kind", string(cfg.Kind)),
		zap.Int("middlewares", len(chain)),
	)

	return nil
}

// buildChain assembles the per-resolver chain:
// recovery, client IP, trace ID, metrics, timeout, global middleware, local middleware, rate limit.
func (r *Router) buildChain(name string, kind Kind, timeout time.Duration, rateLimit *middleware.RateLimitConfig, local []Middleware) common.MiddlewareChain {
	chain := common.NewMiddlewareChain(
		middleware.Recovery(r.logger),
		middleware.ClientIPMiddleware(r.ipConfig),
	)

	if r.config.EnableTraceID {
		chain = chain.Append(middleware.TraceMiddleware())
	}

	if r.metrics != nil {
		chain = chain.Append(r.metrics.Middleware(name, string(kind)))
	}

	if timeout > 0 {
		chain = chain.Append(middleware.Timeout(timeout))
	}

	chain = chain.Append(r.config.Middlewares...)
	chain = chain.Append(local...)

	// StrategyUser keys on users resolved by local auth middleware
	if rateLimit != nil {
		chain = chain.Append(middleware.RateLimit(rateLimit, r.rateLimiter, r.logger))
	}

	return chain
}

// Handle mounts a plain http.Handler next to the resolvers, e.g. a metrics endpoint.
func (r *Router) Handle(method, path string, handler http.Handler) {
	r.router.Handler(method, path, handler)
}

// Resolvers returns the names of the registered resolvers in sorted order.
func (r *Router) Resolvers() []string {
	r.resolversMu.RLock()
	defer r.resolversMu.RUnlock()

	names := make([]string, 0, len(r.resolvers))
	for name := range r.resolvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BasePath returns the path prefix resolvers are served under.
func (r *Router) BasePath() string {
	return r.basePath
}

// ServeHTTP implements the http.Handler interface.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

func (r *Router) lookup(name string) (*resolver, bool) {
	r.resolversMu.RLock()
	defer r.resolversMu.RUnlock()
	entry, ok := r.resolvers[name]
	return entry, ok
}

// begin registers an in-flight call. It reports false once the router is shutting down.
// The check and the wait group increment share the lock Shutdown takes before waiting,
// so no call is added once Wait may have started.
func (r *Router) begin() bool {
	r.shutdownMu.RLock()
	defer r.shutdownMu.RUnlock()

	if r.shutdown {
		return false
	}
	r.wg.Add(1)
	return true
}

// handleCall serves POST and GET calls to a resolver.
func (r *Router) handleCall(w http.ResponseWriter, hr *http.Request, ps httprouter.Params) {
	if !r.begin() {
		r.writeError(w, hr, common.NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable"))
		return
	}
	defer r.wg.Done()

	entry, ok := r.lookup(ps.ByName("name"))
	if !ok {
		r.notFound(w, hr)
		return
	}

	if hr.Method == http.MethodGet && entry.kind != Query {
		w.Header().Set("Allow", http.MethodPost)
		r.writeError(w, hr, common.NewHTTPError(http.StatusMethodNotAllowed,
			fmt.Sprintf("Resolver %q is a mutation and must be called with POST", entry.name)))
		return
	}

	body, err := r.readBody(w, hr, entry.maxBodySize)
	if err != nil {
		r.writeError(w, hr, err)
		return
	}

	req, err := common.RequestFromHTTP(hr, body)
	res := common.NewResponse(w)
	if err != nil {
		r.errorHandler(req, res, common.WrapHTTPError(http.StatusBadRequest, "Invalid request body", err))
		return
	}

	r.finish(entry, req, res, entry.handler(req, res))
}

// finish answers the call once the chain has returned.
func (r *Router) finish(entry *resolver, req *common.Request, res *common.Response, err error) {
	if err != nil {
		r.errorHandler(req, res, err)
		return
	}

	// A unit already answered, so the chain was short-circuited
	if res.Sent() {
		return
	}

	if result, ok := res.Result(); ok {
		if err := entry.encode(res, result); err != nil {
			r.errorHandler(req, res, common.WrapHTTPError(http.StatusInternalServerError, "Failed to encode response", err))
		}
		return
	}

	// The chain halted without answering
	status := http.StatusNoContent
	if res.StatusSet() {
		status = res.Status()
	}
	if err := res.SetStatus(status).Send(nil); err != nil {
		r.logger.Error("Failed to write response", r.logFields(req, res, zap.Error(err))...)
	}
}

// readBody reads the call payload. POST calls carry it in the body and GET
// calls carry it base64 encoded in the params query parameter.
func (r *Router) readBody(w http.ResponseWriter, hr *http.Request, maxBodySize int64) ([]byte, error) {
	if hr.Method == http.MethodGet {
		params := hr.URL.Query().Get("params")
		if params == "" {
			return nil, nil
		}
		body, err := codec.DecodeBase64(params)
		if err != nil {
			return nil, common.WrapHTTPError(http.StatusBadRequest, "Invalid params encoding", err)
		}
		if maxBodySize > 0 && int64(len(body)) > maxBodySize {
			return nil, common.NewHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large")
		}
		return body, nil
	}

	reader := io.Reader(hr.Body)
	if maxBodySize > 0 {
		reader = http.MaxBytesReader(w, hr.Body, maxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, common.WrapHTTPError(http.StatusRequestEntityTooLarge, "Request Entity Too Large", err)
		}
		return nil, common.WrapHTTPError(http.StatusBadRequest, "Failed to read request body", err)
	}
	return body, nil
}

// handleHead answers warm-up probes without running the chain.
func (r *Router) handleHead(w http.ResponseWriter, hr *http.Request, ps httprouter.Params) {
	if _, ok := r.lookup(ps.ByName("name")); !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (r *Router) notFound(w http.ResponseWriter, hr *http.Request) {
	if r.config.NotFoundHandler != nil {
		r.config.NotFoundHandler.ServeHTTP(w, hr)
		return
	}
	r.writeError(w, hr, common.NewNotFoundError(fmt.Sprintf("No resolver found at %s", hr.URL.Path)))
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, hr *http.Request) {
	r.writeError(w, hr, common.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"))
}

// panicHandler catches panics outside the middleware chain, e.g. in a codec.
func (r *Router) panicHandler(w http.ResponseWriter, hr *http.Request, rec any) {
	r.logger.Error("Panic recovered",
		zap.Any("panic", rec),
		zap.String("method", hr.Method),
		zap.String("path", hr.URL.Path),
	)
	r.writeError(w, hr, common.NewHTTPError(http.StatusInternalServerError, "Internal Server Error"))
}

// writeError renders err for a call that never reached the chain.
func (r *Router) writeError(w http.ResponseWriter, hr *http.Request, err error) {
	req, _ := common.RequestFromHTTP(hr, nil)
	r.errorHandler(req, common.NewResponse(w), err)
}

// defaultErrorHandler logs err and answers with the JSON error envelope.
func (r *Router) defaultErrorHandler(req *common.Request, res *common.Response, err error) {
	status := common.StatusCode(err)

	fields := r.logFields(req, res, zap.Error(err), zap.Int("status", status))
	if status >= http.StatusInternalServerError {
		r.logger.Error("Call failed", fields...)
	} else {
		r.logger.Warn("Call rejected", fields...)
	}

	if res.Sent() {
		return
	}

	envelope := codec.ResponseEnvelope{
		Error: ErrorBody{
			Name:       common.ErrorName(err),
			Message:    errorMessage(err, status),
			StatusCode: status,
		},
	}
	if writeErr := res.SetStatus(status).JSON(envelope); writeErr != nil {
		r.logger.Error("Failed to write error response", r.logFields(req, res, zap.Error(writeErr))...)
	}
}

// errorMessage returns the client-facing message for err.
// Errors that are not HTTPErrors are not exposed beyond their status text.
func errorMessage(err error, status int) string {
	var httpErr *common.HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	if status >= http.StatusInternalServerError {
		return http.StatusText(status)
	}
	return err.Error()
}

// logFields returns the common log fields for a call, led by the trace ID when enabled.
func (r *Router) logFields(req *common.Request, res *common.Response, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	}
	fields = append(fields, extra...)

	if r.config.EnableTraceID {
		if traceID := middleware.GetTraceID(res); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}
	}
	return fields
}

// Shutdown gracefully shuts down the router.
// It stops accepting new calls and waits for existing calls to complete.
// If the context is canceled before all calls complete, it returns the context's error.
func (r *Router) Shutdown(ctx context.Context) error {
	r.shutdownMu.Lock()
	r.shutdown = true
	r.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// getEffectiveTimeout returns the resolver timeout, falling back to the global one.
func (r *Router) getEffectiveTimeout(resolverTimeout time.Duration) time.Duration {
	if resolverTimeout > 0 {
		return resolverTimeout
	}
	return r.config.GlobalTimeout
}

// getEffectiveMaxBodySize returns the resolver max body size, falling back to the global one.
func (r *Router) getEffectiveMaxBodySize(resolverMaxBodySize int64) int64 {
	if resolverMaxBodySize > 0 {
		return resolverMaxBodySize
	}
	return r.config.GlobalMaxBodySize
}

// getEffectiveRateLimit returns the resolver rate limit, falling back to the global one.
func (r *Router) getEffectiveRateLimit(resolverRateLimit *middleware.RateLimitConfig) *middleware.RateLimitConfig {
	if resolverRateLimit != nil {
		return resolverRateLimit
	}
	return r.config.GlobalRateLimit
}
