package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcomes recorded on poll and operation instruments.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the service's instruments.
type Metrics struct {
	tokensIssued  metric.Int64Counter
	pollCycles    metric.Int64Counter
	pollDuration  metric.Float64Histogram
	operations    metric.Int64Counter
	fieldsMerged  metric.Int64Counter
	sessionsTotal metric.Int64Counter
}

// NewMetrics creates instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.tokensIssued, err = meter.Int64Counter("medscribe.tokens.issued",
		metric.WithDescription("Access tokens minted by the connection endpoint")); err != nil {
		return nil, fmt.Errorf("creating tokens counter: %w", err)
	}
	if m.pollCycles, err = meter.Int64Counter("medscribe.poll.cycles",
		metric.WithDescription("Poll cycles by task and outcome")); err != nil {
		return nil, fmt.Errorf("creating poll counter: %w", err)
	}
	if m.pollDuration, err = meter.Float64Histogram("medscribe.poll.duration",
		metric.WithDescription("Poll cycle duration"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating poll histogram: %w", err)
	}
	if m.operations, err = meter.Int64Counter("medscribe.operations",
		metric.WithDescription("User-initiated operations by name and outcome")); err != nil {
		return nil, fmt.Errorf("creating operations counter: %w", err)
	}
	if m.fieldsMerged, err = meter.Int64Counter("medscribe.fields.merged",
		metric.WithDescription("Form fields filled from extraction")); err != nil {
		return nil, fmt.Errorf("creating merge counter: %w", err)
	}
	if m.sessionsTotal, err = meter.Int64Counter("medscribe.sessions",
		metric.WithDescription("Consultation start attempts by outcome")); err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}
	return &m, nil
}

// DefaultMetrics returns instruments bound to the current global provider, which
// is a no-op unless telemetry was initialized.
func DefaultMetrics() *Metrics {
	m, err := NewMetrics(Meter(tracerName))
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) TokenIssued(ctx context.Context, room string) {
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("room", room)))
}

func (m *Metrics) PollCycle(ctx context.Context, task, outcome string, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("task", task), attribute.String("outcome", outcome))
	m.pollCycles.Add(ctx, 1, attrs)
	if outcome != OutcomeSkipped {
		m.pollDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("task", task)))
	}
}

func (m *Metrics) Operation(ctx context.Context, name string, err error) {
	m.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", name), attribute.String("outcome", outcome(err))))
}

func (m *Metrics) FieldsMerged(ctx context.Context, n int) {
	if n > 0 {
		m.fieldsMerged.Add(ctx, int64(n))
	}
}

func (m *Metrics) SessionStarted(ctx context.Context, err error) {
	m.sessionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome(err))))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}
