package siteqa

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "siteqa"
	metricsSubsystem = "sdk"
)

// sdkMetrics holds prometheus metrics registered for the SDK.
type sdkMetrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	embeddingTokens *prometheus.CounterVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operations_total",
			Help:      "Total SDK operations by type and outcome.",
		}, []string{"operation", "outcome"}),
		// index and ask block while the server crawls and embeds
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "SDK operation duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900},
		}, []string{"operation"}),
		embeddingTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "embedding_tokens_total",
			Help:      "Embedding tokens the server reported spending on SDK calls.",
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.operations); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.embeddingTokens); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers a collector or reuses an existing one.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("siteqa: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("siteqa: metric already registered with incompatible type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer provides logging and metrics for SDK operations. A nil observer
// or one without logger and registry records nothing.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

// call describes one finished SDK operation.
type call struct {
	op      string
	start   time.Time
	session string
	tokens  int
	err     error
}

func (o *observer) observe(c call) {
	if o == nil {
		return
	}
	dur := time.Since(c.start)
	out := outcome(c.err)

	if o.metrics != nil {
		o.metrics.operations.WithLabelValues(c.op, out).Inc()
		o.metrics.duration.WithLabelValues(c.op).Observe(dur.Seconds())
		if c.tokens > 0 {
			o.metrics.embeddingTokens.WithLabelValues(c.op).Add(float64(c.tokens))
		}
	}

	if o.logger == nil {
		return
	}
	attrs := []any{"op", c.op, "session", c.session, "duration", dur}
	if c.err != nil {
		o.logger.Warn("operation failed", append(attrs, "outcome", out, "error", c.err)...)
		return
	}
	if c.tokens > 0 {
		attrs = append(attrs, "embedding_tokens", c.tokens)
	}
	o.logger.Debug("operation completed", attrs...)
}

// outcome labels an operation result: "ok", the server error code, or
// "transport_error" when no API response was decoded.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	return "transport_error"
}
