package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"go.uber.org/zap"
)

const (
	// SessionUserCtxKey is the context slot key holding the authenticated user
	SessionUserCtxKey = "sessionUser"

	// UserIDCtxKey is the context slot key holding the authenticated user ID
	UserIDCtxKey = "userId"
)

// AuthProvider defines an interface for authentication providers.
// Different authentication mechanisms can implement this interface
// to be used with the AuthenticationWithProvider middleware.
type AuthProvider interface {
	// Authenticate examines the request for credentials and reports whether they are valid.
	Authenticate(req *common.Request) bool
}

// BasicAuthProvider provides HTTP Basic Authentication.
// It validates username and password credentials against a predefined map.
type BasicAuthProvider struct {
	Credentials map[string]string // username -> password
}

// Authenticate authenticates a request using HTTP Basic Authentication.
func (p *BasicAuthProvider) Authenticate(req *common.Request) bool {
	username, password, ok := req.HTTPRequest().BasicAuth()
	if !ok {
		return false
	}

	expectedPassword, exists := p.Credentials[username]
	if !exists {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(expectedPassword)) == 1
}

// BearerTokenProvider provides Bearer Token Authentication.
// It can validate tokens against a predefined map or using a custom validator function.
type BearerTokenProvider struct {
	ValidTokens map[string]bool         // token -> valid
	Validator   func(token string) bool // optional token validator
}

// Authenticate authenticates a request using Bearer Token Authentication.
func (p *BearerTokenProvider) Authenticate(req *common.Request) bool {
	token, ok := bearerToken(req)
	if !ok {
		return false
	}

	if p.Validator != nil {
		return p.Validator(token)
	}
	return p.ValidTokens[token]
}

// APIKeyProvider provides API Key Authentication.
// It can validate API keys provided in a header or query parameter.
type APIKeyProvider struct {
	ValidKeys map[string]bool // key -> valid
	Header    string          // header name (e.g., "X-API-Key")
	Query     string          // query parameter name (e.g., "api_key")
}

// Authenticate authenticates a request using API Key Authentication.
func (p *APIKeyProvider) Authenticate(req *common.Request) bool {
	if p.Header != "" {
		if key := req.Header.Get(p.Header); key != "" && p.ValidKeys[key] {
			return true
		}
	}

	if p.Query != "" {
		if key := req.Query[p.Query]; key != "" && p.ValidKeys[key] {
			return true
		}
	}

	return false
}

func bearerToken(req *common.Request) (string, bool) {
	authHeader := req.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return token, token != ""
}

// AuthenticationWithProvider is a middleware that fails calls the provider does not
// authenticate with an AuthenticationError.
func AuthenticationWithProvider(provider AuthProvider, logger *zap.Logger) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		if !provider.Authenticate(req) {
			logger.Warn("Authentication failed",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.String("remote_addr", req.RemoteAddr),
			)
			return common.NewAuthenticationError("")
		}
		return next()
	})
}

// UserAuthConfig configures user-resolving authentication.
// Authenticate resolves a bearer token to a user; UserID derives the ID stored in the context slot.
type UserAuthConfig[U any] struct {
	Authenticate func(ctx context.Context, token string) (U, bool)
	UserID       func(U) string
	Logger       *zap.Logger
}

func (c *UserAuthConfig[U]) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// authenticate resolves the caller and stores the user in the context slot.
func (c *UserAuthConfig[U]) authenticate(req *common.Request, res *common.Response) bool {
	token, ok := bearerToken(req)
	if !ok {
		return false
	}

	user, valid := c.Authenticate(req.Context(), token)
	if !valid {
		return false
	}

	res.Ctx().Set(SessionUserCtxKey, user)
	if c.UserID != nil {
		res.Ctx().Set(UserIDCtxKey, c.UserID(user))
	}
	return true
}

// AuthRequired creates a middleware that requires a valid bearer token.
// Calls without one fail with an AuthenticationError; otherwise the user is stored in the context slot.
func AuthRequired[U any](config *UserAuthConfig[U]) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.Path),
		}
		if traceID := GetTraceID(res); traceID != "" {
			fields = append([]zap.Field{zap.String("trace_id", traceID)}, fields...)
		}

		if !config.authenticate(req, res) {
			config.logger().Warn("Authentication failed", append(fields, zap.String("remote_addr", req.RemoteAddr))...)
			return common.NewAuthenticationError("")
		}

		config.logger().Debug("Authentication successful", fields...)
		return next()
	})
}

// AuthOptional creates a middleware that resolves the user when a valid bearer token is present
// and lets the call proceed either way.
func AuthOptional[U any](config *UserAuthConfig[U]) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		if config.authenticate(req, res) {
			config.logger().Debug("Authentication successful",
				zap.String("method", req.Method),
				zap.String("path", req.Path),
			)
		}
		return next()
	})
}

// Authorize creates a middleware that lets a call through only if the session user passes allowed.
// It fails with an AuthenticationError when no user is stored, and an AuthorizationError when allowed returns false.
func Authorize[U any](allowed func(U) bool) Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		user, ok := SessionUser[U](res)
		if !ok {
			return common.NewAuthenticationError("")
		}
		if !allowed(user) {
			return common.NewAuthorizationError("")
		}
		return next()
	})
}

// SessionUser returns the user stored by AuthRequired or AuthOptional.
func SessionUser[U any](res *common.Response) (U, bool) {
	return common.CtxValue[U](res.Ctx(), SessionUserCtxKey)
}

// UserID returns the user ID stored by AuthRequired or AuthOptional.
func UserID(res *common.Response) string {
	id, _ := common.CtxValue[string](res.Ctx(), UserIDCtxKey)
	return id
}
