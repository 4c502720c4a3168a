package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumWith(t *testing.T, data metricdata.Aggregation, key, value string) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected int64 sum, got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
		}
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.TokenIssued(ctx, "web-agent")
	m.TokenIssued(ctx, "web-agent")
	m.PollCycle(ctx, "extraction", OutcomeOK, 20*time.Millisecond)
	m.PollCycle(ctx, "extraction", OutcomeSkipped, 0)
	m.Operation(ctx, "save", errors.New("boom"))
	m.FieldsMerged(ctx, 0)
	m.FieldsMerged(ctx, 3)
	m.SessionStarted(ctx, nil)

	data := collect(t, reader)
	if got := sumWith(t, data["medscribe.tokens.issued"], "room", "web-agent"); got != 2 {
		t.Errorf("tokens issued = %d", got)
	}
	if got := sumWith(t, data["medscribe.poll.cycles"], "outcome", OutcomeSkipped); got != 1 {
		t.Errorf("skipped cycles = %d", got)
	}
	if got := sumWith(t, data["medscribe.operations"], "outcome", OutcomeError); got != 1 {
		t.Errorf("failed operations = %d", got)
	}
	if got := sumWith(t, data["medscribe.sessions"], "outcome", OutcomeOK); got != 1 {
		t.Errorf("sessions = %d", got)
	}

	hist, ok := data["medscribe.poll.duration"].(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
		t.Errorf("expected one duration sample, got %+v", data["medscribe.poll.duration"])
	}
	merged, ok := data["medscribe.fields.merged"].(metricdata.Sum[int64])
	if !ok || len(merged.DataPoints) != 1 || merged.DataPoints[0].Value != 3 {
		t.Errorf("fields merged = %+v", data["medscribe.fields.merged"])
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	_, span := tp.Tracer("test").Start(context.Background(), "session.start")
	EndSpan(span, errors.New("connect failed"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != otelcodes.Error {
		t.Errorf("status = %v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestInitDisabled(t *testing.T) {
	p, err := Init(context.Background(), Config{}, "medscribe", "dev")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	if DefaultMetrics() == nil {
		t.Error("expected metrics on the global provider")
	}
}

func TestConfig(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Endpoint != "localhost:4318" || c.Interval != 15*time.Second || c.SampleRate != 1 {
		t.Errorf("unexpected defaults %+v", c)
	}
	c.SampleRate = 2
	if err := c.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
}
