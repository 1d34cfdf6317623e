// Package config loads deployment settings for an RPC server from YAML.
// Settings are applied on top of a router.RouterConfig, which stays the primary API.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/middleware"
	"github.com/Suhaibinator/SRPC/pkg/router"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// File is the on-disk server configuration.
type File struct {
	Addr            string           `yaml:"addr"`
	BasePath        string           `yaml:"base_path"`
	Timeout         string           `yaml:"timeout"`
	ShutdownTimeout string           `yaml:"shutdown_timeout"`
	MaxBodySize     int64            `yaml:"max_body_size"`
	RateLimit       *RateLimitConfig `yaml:"rate_limit"`
	IP              IPConfig         `yaml:"ip"`
	Metrics         bool             `yaml:"metrics"`
	TraceID         bool             `yaml:"trace_id"`
	LogLevel        string           `yaml:"log_level"` // debug, info, warn, error
	CORS            *CORSConfig      `yaml:"cors"`

	timeout         time.Duration
	shutdownTimeout time.Duration
	logLevel        zapcore.Level
}

// RateLimitConfig configures the global fixed-window rate limit.
type RateLimitConfig struct {
	Bucket   string `yaml:"bucket"`
	Limit    int    `yaml:"limit"`
	Window   string `yaml:"window"`
	Strategy string `yaml:"strategy"` // ip or user

	window time.Duration
}

// IPConfig configures client IP extraction.
type IPConfig struct {
	Source     string `yaml:"source"` // remote_addr, x_forwarded_for, x_real_ip, custom_header
	Header     string `yaml:"header"`
	TrustProxy bool   `yaml:"trust_proxy"`
}

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

// DefaultFile returns the default configuration.
func DefaultFile() *File {
	return &File{
		Addr:            ":8080",
		BasePath:        router.DefaultBasePath,
		Timeout:         "30s",
		ShutdownTimeout: "10s",
		MaxBodySize:     1 << 20,
		IP: IPConfig{
			Source:     string(middleware.IPSourceXForwardedFor),
			TrustProxy: true,
		},
		LogLevel: "info",
	}
}

// Load loads configuration from a YAML file.
// A missing file yields the defaults.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration on top of the defaults, applies
// environment overrides and validates the result.
func Parse(data []byte) (*File, error) {
	f := DefaultFile()

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	f.applyEnvOverrides()

	if err := f.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return f, nil
}

// applyEnvOverrides applies environment variable overrides.
func (f *File) applyEnvOverrides() {
	if addr := os.Getenv("SRPC_ADDR"); addr != "" {
		f.Addr = addr
	}
	if level := os.Getenv("SRPC_LOG_LEVEL"); level != "" {
		f.LogLevel = level
	}
	if v := os.Getenv("SRPC_METRICS"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			f.Metrics = enabled
		}
	}
}

func (f *File) validate() error {
	var err error

	if f.Addr == "" {
		return errors.New("addr is required")
	}

	if f.timeout, err = parseDuration("timeout", f.Timeout); err != nil {
		return err
	}
	if f.shutdownTimeout, err = parseDuration("shutdown_timeout", f.ShutdownTimeout); err != nil {
		return err
	}

	if f.MaxBodySize < 0 {
		return fmt.Errorf("max_body_size must not be negative, got %d", f.MaxBodySize)
	}

	if rl := f.RateLimit; rl != nil {
		if rl.Limit <= 0 {
			return fmt.Errorf("rate_limit.limit must be positive, got %d", rl.Limit)
		}
		if rl.window, err = parseDuration("rate_limit.window", rl.Window); err != nil {
			return err
		}
		if rl.window <= 0 {
			return errors.New("rate_limit.window is required")
		}
		switch middleware.RateLimitStrategy(rl.Strategy) {
		case "":
			rl.Strategy = string(middleware.StrategyIP)
		case middleware.StrategyIP, middleware.StrategyUser:
		default:
			return fmt.Errorf("rate_limit.strategy %q is not supported", rl.Strategy)
		}
		if rl.Bucket == "" {
			rl.Bucket = "global"
		}
	}

	switch middleware.IPSourceType(f.IP.Source) {
	case middleware.IPSourceRemoteAddr, middleware.IPSourceXForwardedFor, middleware.IPSourceXRealIP:
	case middleware.IPSourceCustomHeader:
		if f.IP.Header == "" {
			return errors.New("ip.header is required for the custom_header source")
		}
	default:
		return fmt.Errorf("ip.source %q is not supported", f.IP.Source)
	}

	if f.logLevel, err = zapcore.ParseLevel(f.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, value)
	}
	return d, nil
}

// TimeoutDuration returns the parsed global call timeout.
func (f *File) TimeoutDuration() time.Duration {
	return f.timeout
}

// ShutdownTimeoutDuration returns the parsed graceful shutdown timeout.
func (f *File) ShutdownTimeoutDuration() time.Duration {
	return f.shutdownTimeout
}

// Apply copies the file settings into cfg. CORS, when configured, runs
// before the global middleware already present in cfg.
func (f *File) Apply(cfg *router.RouterConfig) {
	cfg.BasePath = f.BasePath
	cfg.GlobalTimeout = f.timeout
	cfg.GlobalMaxBodySize = f.MaxBodySize
	cfg.EnableMetrics = f.Metrics
	cfg.EnableTraceID = f.TraceID

	cfg.IPConfig = &middleware.IPConfig{
		Source:       middleware.IPSourceType(f.IP.Source),
		CustomHeader: f.IP.Header,
		TrustProxy:   f.IP.TrustProxy,
	}

	if rl := f.RateLimit; rl != nil {
		cfg.GlobalRateLimit = &middleware.RateLimitConfig{
			BucketName: rl.Bucket,
			Limit:      rl.Limit,
			Window:     rl.window,
			Strategy:   middleware.RateLimitStrategy(rl.Strategy),
		}
	}

	if f.CORS != nil {
		cors := middleware.CORS(f.CORS.Origins, f.CORS.Methods, f.CORS.Headers)
		cfg.Middlewares = append([]router.Middleware{cors}, cfg.Middlewares...)
	}
}

// Level returns the parsed log level.
func (f *File) Level() zapcore.Level {
	return f.logLevel
}

// Logger builds a production zap logger at the configured level.
// The returned level changes the running logger, e.g. after a reload.
func (f *File) Logger() (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(f.logLevel)

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, level, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, level, nil
}
