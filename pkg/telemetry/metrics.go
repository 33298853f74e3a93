package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprometheus "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig controls whether the meter provider is built at all.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

func (c *MetricsConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "deception_rl"
	}
}

// Metrics is the process-wide instrument set for engine activity, backed
// by an OTel MeterProvider whose reader is the Prometheus bridge exporter
// rather than a push-based OTLP pipeline: the engine is scraped, not
// pushed to. A nil *Metrics is safe to call methods on — every recorder
// no-ops — so callers never need a feature-flag check at the call site.
type Metrics struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	gamesActive     metric.Int64UpDownCounter
	gamesStarted    metric.Int64Counter
	gamesFinished   metric.Int64Counter
	roundsPerGame   metric.Int64Histogram
	decisionCalls   metric.Int64Counter
	decisionErrors  metric.Int64Counter
	decisionTime    metric.Float64Histogram
	opponentCalls   metric.Int64Counter
	opponentRetries metric.Int64Counter
}

// NewMetrics builds a Metrics instance, or returns nil if cfg is nil or
// disabled — the zero-cost path for local smoke runs.
func NewMetrics(cfg *MetricsConfig) *Metrics {
	if cfg == nil || !cfg.Enabled {
		return nil
	}
	cfg.setDefaults()

	registry := prometheus.NewRegistry()
	exporter, err := otelprometheus.New(otelprometheus.WithRegisterer(registry), otelprometheus.WithNamespace(cfg.Namespace))
	if err != nil {
		// The bridge exporter only fails on malformed options, none of
		// which are set here; metrics are diagnostic, not a correctness
		// concern, so degrade to no-op rather than fail game creation.
		return nil
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("deception-rl/engine")

	m := &Metrics{registry: registry, provider: provider}
	m.gamesActive, _ = meter.Int64UpDownCounter("game.active", metric.WithDescription("Number of games currently running."))
	m.gamesStarted, _ = meter.Int64Counter("game.started", metric.WithDescription("Total number of games created."))
	m.gamesFinished, _ = meter.Int64Counter("game.finished", metric.WithDescription("Total number of games that reached a terminal state, by winning team."))
	m.roundsPerGame, _ = meter.Int64Histogram("game.rounds", metric.WithDescription("Number of rounds played before a game terminated."))
	m.decisionCalls, _ = meter.Int64Counter("decision.calls", metric.WithDescription("Total decisions requested, by tool name and decider kind."))
	m.decisionErrors, _ = meter.Int64Counter("decision.errors", metric.WithDescription("Total decision failures, by tool name and error kind."))
	m.decisionTime, _ = meter.Float64Histogram("decision.duration_seconds", metric.WithDescription("Time spent waiting for a single decision's round trip."), metric.WithUnit("s"))
	m.opponentCalls, _ = meter.Int64Counter("opponent.calls", metric.WithDescription("Total opponent client invocations, by tool name."))
	m.opponentRetries, _ = meter.Int64Counter("opponent.retries", metric.WithDescription("Total opponent retry attempts, by tool name."))
	return m
}

func (m *Metrics) RecordGameStarted() {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.gamesActive.Add(ctx, 1)
	m.gamesStarted.Add(ctx, 1)
}

func (m *Metrics) RecordGameFinished(winningTeam string, rounds int) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("winning_team", winningTeam))
	m.gamesActive.Add(ctx, -1)
	m.gamesFinished.Add(ctx, 1, attrs)
	m.roundsPerGame.Record(ctx, int64(rounds))
}

func (m *Metrics) RecordDecision(toolName, decider string, duration time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("tool_name", toolName), attribute.String("decider", decider))
	m.decisionCalls.Add(ctx, 1, attrs)
	m.decisionTime.Record(ctx, duration.Seconds(), attrs)
}

func (m *Metrics) RecordDecisionError(toolName, errorKind string) {
	if m == nil {
		return
	}
	m.decisionErrors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tool_name", toolName), attribute.String("error_kind", errorKind),
	))
}

func (m *Metrics) RecordOpponentCall(toolName string) {
	if m == nil {
		return
	}
	m.opponentCalls.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tool_name", toolName)))
}

func (m *Metrics) RecordOpponentRetry(toolName string) {
	if m == nil {
		return
	}
	m.opponentRetries.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tool_name", toolName)))
}

// Handler returns the Prometheus scrape endpoint, or a 503 stub if
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
