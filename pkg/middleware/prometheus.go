package middleware

import (
	"errors"
	"time"

	"github.com/Suhaibinator/SResolve/pkg/resolver"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values recorded by Metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeTimeout     = "timeout"
	OutcomeRateLimited = "rate_limited"
	OutcomePanic       = "panic"
)

// ResolverMetrics holds the Prometheus collectors used by the Metrics middleware.
type ResolverMetrics struct {
	Resolutions *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	InFlight    *prometheus.GaugeVec
}

// NewResolverMetrics creates the collectors and registers them with reg.
// A nil reg uses prometheus.DefaultRegisterer. Collectors that are already
// registered are reused.
func NewResolverMetrics(reg prometheus.Registerer, namespace, subsystem string) (*ResolverMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &ResolverMetrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolutions_total",
			Help:      "Total number of resolutions by resolver and outcome.",
		}, []string{"resolver", "outcome"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolution_duration_seconds",
			Help:      "Resolution latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"resolver"}),
		InFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolutions_in_flight",
			Help:      "Number of resolutions currently running.",
		}, []string{"resolver"}),
	}

	var err error
	if m.Resolutions, err = register(reg, m.Resolutions); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, m.Duration); err != nil {
		return nil, err
	}
	if m.InFlight, err = register(reg, m.InFlight); err != nil {
		return nil, err
	}
	return m, nil
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

// Metrics is a middleware that records Prometheus metrics for the rest of the chain
func Metrics[T, P any](m *ResolverMetrics, name string) resolver.Middleware[T, P] {
	return func(_ P, ctx resolver.Context[T]) (result T, err error) {
		inFlight := m.InFlight.WithLabelValues(name)
		inFlight.Inc()
		start := time.Now()

		outcome := OutcomePanic
		defer func() {
			inFlight.Dec()
			m.Duration.WithLabelValues(name).Observe(time.Since(start).Seconds())
			m.Resolutions.WithLabelValues(name, outcome).Inc()
		}()

		result, err = ctx.Next()
		outcome = outcomeOf(err)
		return result, err
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrTimeout):
		return OutcomeTimeout
	case errors.Is(err, ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, ErrPanic):
		return OutcomePanic
	default:
		return OutcomeError
	}
}
