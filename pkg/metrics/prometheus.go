// Package metrics records per-resolver call metrics with Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Suhaibinator/SRPC/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics recorded for resolver calls.
type Collector struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errors   *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewCollector creates the call metrics and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer. Metrics that are already
// registered under the same names are reused, so several routers may share a registry.
func NewCollector(reg prometheus.Registerer, namespace, subsystem string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	calls, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "calls_total",
		Help:      "Total number of resolver calls.",
	}, []string{"resolver", "kind", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "call_duration_seconds",
		Help:      "Resolver call latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resolver", "kind"}))
	if err != nil {
		return nil, err
	}

	callErrors, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "call_errors_total",
		Help:      "Total number of resolver calls whose chain returned an error.",
	}, []string{"resolver", "kind"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_calls",
		Help:      "Number of resolver calls currently being served.",
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		calls:    calls,
		duration: duration,
		errors:   callErrors,
		inFlight: inFlight,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Middleware returns a chain unit that records the call in post-order.
// It should run before the units whose time it measures. A call that panics
// past it is recorded as a 500 error before the panic continues.
func (c *Collector) Middleware(resolver, kind string) common.Middleware {
	return common.MiddlewareFunc(func(req *common.Request, res *common.Response, next common.NextFunc) error {
		c.inFlight.Inc()

		start := time.Now()
		status, failed := http.StatusInternalServerError, true
		defer func() {
			c.inFlight.Dec()
			c.calls.WithLabelValues(resolver, kind, strconv.Itoa(status)).Inc()
			c.duration.WithLabelValues(resolver, kind).Observe(time.Since(start).Seconds())
			if failed {
				c.errors.WithLabelValues(resolver, kind).Inc()
			}
		}()

		err := next()
		status, failed = callStatus(res, err), err != nil
		return err
	})
}

// callStatus predicts the status the router will answer with once the chain returns.
func callStatus(res *common.Response, err error) int {
	if res.Sent() {
		return res.Status()
	}
	if err != nil {
		return common.StatusCode(err)
	}
	if _, ok := res.Result(); ok || res.StatusSet() {
		return res.Status()
	}
	return http.StatusNoContent
}

// Handler exposes the metrics gathered by g in the Prometheus text format.
// A nil g uses prometheus.DefaultGatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
