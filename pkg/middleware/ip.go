package middleware

import (
	"context"
	"strings"

	"github.com/Suhaibinator/SRPC/pkg/common"
)

// IPSourceType defines the source for client IP addresses
type IPSourceType string

const (
	// IPSourceRemoteAddr uses the request's RemoteAddr field
	IPSourceRemoteAddr IPSourceType = "remote_addr"

	// IPSourceXForwardedFor uses the X-Forwarded-For header
	IPSourceXForwardedFor IPSourceType = "x_forwarded_for"

	// IPSourceXRealIP uses the X-Real-IP header
	IPSourceXRealIP IPSourceType = "x_real_ip"

	// IPSourceCustomHeader uses a custom header specified in the configuration
	IPSourceCustomHeader IPSourceType = "custom_header"
)

// IPConfig defines configuration for IP extraction
type IPConfig struct {
	// Source specifies where to extract the client IP from
	Source IPSourceType

	// CustomHeader is the name of the custom header to use when Source is IPSourceCustomHeader
	CustomHeader string

	// TrustProxy determines whether to trust proxy headers like X-Forwarded-For
	// If false, RemoteAddr will be used as a fallback for all sources
	TrustProxy bool
}

// DefaultIPConfig returns the default IP configuration
func DefaultIPConfig() *IPConfig {
	return &IPConfig{
		Source:     IPSourceXForwardedFor,
		TrustProxy: true,
	}
}

// contextKey is a type for context keys
type contextKey string

// ClientIPKey is the key used to store the client IP in the request context
const ClientIPKey contextKey = "client_ip"

// ClientIPCtxKey is the context slot key holding the client IP
const ClientIPCtxKey = "clientIP"

// ClientIP returns the client IP stored in the context slot
func ClientIP(res *common.Response) string {
	ip, _ := common.CtxValue[string](res.Ctx(), ClientIPCtxKey)
	return ip
}

// ClientIPFromContext returns the client IP stored in a context
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// ClientIPMiddleware creates a middleware that extracts the client IP from the request
// and stores it in the context slot and the request context
func ClientIPMiddleware(config *IPConfig) Middleware {
	if config == nil {
		config = DefaultIPConfig()
	}

	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		clientIP := extractClientIP(req, config)

		res.Ctx().Set(ClientIPCtxKey, clientIP)
		req.SetContext(context.WithValue(req.Context(), ClientIPKey, clientIP))

		return next()
	})
}

// extractClientIP extracts the client IP from the request based on the configuration
func extractClientIP(req *common.Request, config *IPConfig) string {
	var ip string

	switch config.Source {
	case IPSourceXForwardedFor:
		ip = extractIPFromXForwardedFor(req)
	case IPSourceXRealIP:
		ip = req.Header.Get("X-Real-IP")
	case IPSourceCustomHeader:
		ip = req.Header.Get(config.CustomHeader)
	case IPSourceRemoteAddr:
		ip = req.RemoteAddr
	default:
		ip = extractIPFromXForwardedFor(req)
	}

	// If we don't trust proxy headers or couldn't extract an IP, fall back to RemoteAddr
	if !config.TrustProxy || ip == "" {
		ip = req.RemoteAddr
	}

	return cleanIP(ip)
}

// extractIPFromXForwardedFor returns the leftmost (original client) address of X-Forwarded-For
func extractIPFromXForwardedFor(req *common.Request) string {
	xff := req.Header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return strings.TrimSpace(first)
}

// cleanIP removes the port from an IP address if present
func cleanIP(ip string) string {
	// IPv6 addresses with ports are formatted as [IPv6]:port
	if strings.HasPrefix(ip, "[") {
		if end := strings.LastIndex(ip, "]"); end > 0 {
			return ip[1:end]
		}
		return ip
	}

	// IPv6 without brackets never carries a port
	if strings.Count(ip, ":") > 1 {
		return ip
	}

	if end := strings.LastIndex(ip, ":"); end > 0 {
		return ip[:end]
	}

	return ip
}
