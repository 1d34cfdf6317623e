package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitStrategy selects how callers are identified for rate limiting.
type RateLimitStrategy string

const (
	// StrategyIP keys on the client IP address
	StrategyIP RateLimitStrategy = "ip"
	// StrategyUser keys on the authenticated user ID, falling back to the client IP
	StrategyUser RateLimitStrategy = "user"
	// StrategyCustom keys on the result of RateLimitConfig.KeyExtractor
	StrategyCustom RateLimitStrategy = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// Unique identifier for this rate limit bucket
	// If multiple resolvers share the same BucketName, they share the same rate limit
	BucketName string

	// Maximum number of calls allowed in the time window
	Limit int

	// Time window for the rate limit (e.g., 1 minute, 1 hour)
	Window time.Duration

	// Strategy for identifying clients
	Strategy RateLimitStrategy

	// Custom key extractor function (used when Strategy is StrategyCustom)
	KeyExtractor func(req *common.Request, res *common.Response) (string, error)
}

// RateLimiter defines the interface for rate limiting algorithms
type RateLimiter interface {
	// Allow checks if a call is allowed for key.
	// It also returns the number of remaining calls and the time until the window resets.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

type windowState struct {
	start  time.Time
	window time.Duration
	count  int
}

// sweepInterval bounds how often expired windows are evicted.
const sweepInterval = time.Minute

// FixedWindowLimiter counts calls per key in fixed time windows.
// Expired windows are evicted at most once per sweepInterval.
type FixedWindowLimiter struct {
	mu        sync.Mutex
	windows   map[string]*windowState
	now       func() time.Time
	lastSweep time.Time
}

// NewFixedWindowLimiter creates a new fixed window rate limiter
func NewFixedWindowLimiter() *FixedWindowLimiter {
	return &FixedWindowLimiter{
		windows: make(map[string]*windowState),
		now:     time.Now,
	}
}

// Allow checks if a call is allowed based on the key and rate limit config
func (l *FixedWindowLimiter) Allow(key string, limit int, window time.Duration) (bool, int, time.Duration) {
	// Handle zero window (default to 1 second)
	if window <= 0 {
		window = time.Second
	}
	// Special case for zero limit (treat as 1)
	if limit <= 0 {
		limit = 1
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	state, ok := l.windows[key]
	if !ok || now.Sub(state.start) >= window {
		state = &windowState{start: now, window: window}
		l.windows[key] = state
	}

	reset := window - now.Sub(state.start)
	if state.count >= limit {
		return false, 0, reset
	}

	state.count++
	return true, limit - state.count, reset
}

// sweep drops windows that have expired. The caller holds l.mu.
func (l *FixedWindowLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now

	for key, state := range l.windows {
		if now.Sub(state.start) >= state.window {
			delete(l.windows, key)
		}
	}
}

// rateLimitKey extracts the caller key for config's strategy
func rateLimitKey(config *RateLimitConfig, req *common.Request, res *common.Response) (string, error) {
	switch config.Strategy {
	case StrategyUser:
		if id := UserID(res); id != "" {
			return id, nil
		}
	case StrategyCustom:
		if config.KeyExtractor != nil {
			return config.KeyExtractor(req, res)
		}
	}

	if ip := ClientIP(res); ip != "" {
		return ip, nil
	}
	return cleanIP(req.RemoteAddr), nil
}

// RateLimit creates a middleware that enforces rate limits.
// Calls over the limit fail with a 429 error and never reach downstream units.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		// Skip rate limiting if config is nil
		if config == nil {
			return next()
		}

		key, err := rateLimitKey(config, req, res)
		if err != nil {
			logger.Error("Failed to extract rate limit key",
				zap.Error(err),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
			return common.WrapHTTPError(http.StatusInternalServerError, "Internal Server Error", err)
		}

		// Combine bucket name and key to create a unique identifier
		allowed, remaining, reset := limiter.Allow(config.BucketName+":"+key, config.Limit, config.Window)

		h := res.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

		if !allowed {
			h.Set("Retry-After", strconv.FormatInt(int64(reset.Round(time.Second).Seconds()), 10))

			logger.Warn("Rate limit exceeded",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("key", key),
				zap.Int("limit", config.Limit),
			)

			return common.NewHTTPError(http.StatusTooManyRequests, "Too Many Requests")
		}

		return next()
	})
}

// UberThrottler paces calls per key using Uber's ratelimit library
type UberThrottler struct {
	limiters sync.Map // map[string]ratelimit.Limiter
	mu       sync.Mutex
	opts     []ratelimit.Option
}

// NewUberThrottler creates a new throttler; opts are passed to every limiter it creates
func NewUberThrottler(opts ...ratelimit.Option) *UberThrottler {
	return &UberThrottler{opts: opts}
}

// getLimiter gets or creates a limiter for the given key and rate
func (u *UberThrottler) getLimiter(key string, rps int) ratelimit.Limiter {
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	// Double-check after acquiring lock
	if limiter, ok := u.limiters.Load(key); ok {
		return limiter.(ratelimit.Limiter)
	}

	limiter := ratelimit.New(rps, u.opts...)
	u.limiters.Store(key, limiter)
	return limiter
}

// Take blocks until the limiter for key permits another call
func (u *UberThrottler) Take(key string, rps int) time.Time {
	if rps < 1 {
		rps = 1
	}
	return u.getLimiter(key, rps).Take()
}

// Throttle creates a middleware that delays calls so that each bucket key
// proceeds at most rps times per second. Unlike RateLimit it never rejects,
// but a call whose context ends while it waits fails with the context error.
func Throttle(config *RateLimitConfig, rps int, throttler *UberThrottler) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		if config == nil {
			return next()
		}

		key, err := rateLimitKey(config, req, res)
		if err != nil {
			return common.WrapHTTPError(http.StatusInternalServerError, "Internal Server Error", err)
		}

		throttler.Take(config.BucketName+":"+key, rps)

		// Take cannot be interrupted, so drop calls that ended while waiting
		if err := req.Context().Err(); err != nil {
			return err
		}
		return next()
	})
}
