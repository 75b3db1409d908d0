package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"goa.design/clue/log"

	"github.com/parlant-engine/convengine/internal/correlation"
)

type (
	// ClueLogger delegates to goa.design/clue/log.
	ClueLogger struct{}

	// ClueMetrics delegates to the global OTEL MeterProvider.
	ClueMetrics struct {
		meter metric.Meter
	}

	// ClueTracer delegates to the global OTEL TracerProvider.
	ClueTracer struct {
		tracer trace.Tracer
	}

	clueSpan struct {
		span trace.Span
	}
)

// NewClueLogger constructs a Logger backed by goa.design/clue/log. Formatting
// and debug-level settings are read from the context via log.Context.
func NewClueLogger() Logger { return ClueLogger{} }

// NewClueMetrics constructs a Metrics recorder backed by the global OTEL
// MeterProvider scoped to this engine.
func NewClueMetrics() Metrics {
	return &ClueMetrics{meter: otel.Meter("convengine/internal/engine")}
}

// NewClueTracer constructs a Tracer backed by the global OTEL TracerProvider
// scoped to this engine.
func NewClueTracer() Tracer {
	return &ClueTracer{tracer: otel.Tracer("convengine/internal/engine")}
}

// Debug emits a debug-level structured log line.
func (ClueLogger) Debug(ctx context.Context, msg string, keyvals ...any) {
	log.Debug(ctx, fielders(ctx, msg, keyvals)...)
}

// Info emits an info-level structured log line.
func (ClueLogger) Info(ctx context.Context, msg string, keyvals ...any) {
	log.Info(ctx, fielders(ctx, msg, keyvals)...)
}

// Warn emits a warn-level structured log line.
func (ClueLogger) Warn(ctx context.Context, msg string, keyvals ...any) {
	fs := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, correlationFielder(ctx)...)
	fs = append(fs, kvToClue(keyvals)...)
	log.Warn(ctx, fs...)
}

// Error emits an error-level structured log line. It passes a nil error to
// log.Error; callers carry the cause as an ordinary keyvals entry, so the
// call sites stay symmetric with Debug/Info/Warn.
func (ClueLogger) Error(ctx context.Context, msg string, keyvals ...any) {
	log.Error(ctx, nil, fielders(ctx, msg, keyvals)...)
}

// fielders builds the log.Fielder slice every level shares: the message,
// this call's position in the processing cycle (if any scope has been
// pushed via internal/correlation), then the caller's own keyvals.
func fielders(ctx context.Context, msg string, keyvals []any) []log.Fielder {
	fs := append([]log.Fielder{log.KV{K: "msg", V: msg}}, correlationFielder(ctx)...)
	return append(fs, kvToClue(keyvals)...)
}

// correlationFielder surfaces the correlation scope carried in ctx, if any,
// as a "correlation_id" field so every log line from one processing cycle
// can be grepped together.
func correlationFielder(ctx context.Context) []log.Fielder {
	scope := correlation.From(ctx)
	if scope.IsZero() {
		return nil
	}
	return []log.Fielder{log.KV{K: "correlation_id", V: scope.String()}}
}

func kvToClue(keyvals []any) []log.Fielder {
	var out []log.Fielder
	for i := 0; i+1 < len(keyvals)+1 && i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		out = append(out, log.KV{K: k, V: v})
	}
	return out
}

// IncCounter increments a named counter by value.
func (m *ClueMetrics) IncCounter(name string, value float64, tags ...string) {
	c, err := m.meter.Float64Counter(name)
	if err != nil {
		return
	}
	c.Add(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordTimer records a duration histogram.
func (m *ClueMetrics) RecordTimer(name string, d time.Duration, tags ...string) {
	h, err := m.meter.Float64Histogram(name)
	if err != nil {
		return
	}
	h.Record(context.Background(), d.Seconds(), metric.WithAttributes(tagsToAttrs(tags)...))
}

// RecordGauge records a gauge-like value. OTEL has no synchronous gauge
// instrument, so a histogram with a "_gauge" suffix stands in, matching the
// approach used elsewhere in the corpus for this gap.
func (m *ClueMetrics) RecordGauge(name string, value float64, tags ...string) {
	h, err := m.meter.Float64Histogram(name + "_gauge")
	if err != nil {
		return
	}
	h.Record(context.Background(), value, metric.WithAttributes(tagsToAttrs(tags)...))
}

func tagsToAttrs(tags []string) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(tags); i += 2 {
		v := ""
		if i+1 < len(tags) {
			v = tags[i+1]
		}
		attrs = append(attrs, attribute.String(tags[i], v))
	}
	return attrs
}

// Start begins a new span as a child of the span found in ctx, if any,
// tagging it with the correlation scope active in ctx so spans from the same
// processing cycle can be traced back to the same request.
func (t *ClueTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span) {
	newCtx, span := t.tracer.Start(ctx, name, opts...)
	if scope := correlation.From(ctx); !scope.IsZero() {
		span.SetAttributes(attribute.String("correlation_id", scope.String()))
	}
	return newCtx, &clueSpan{span: span}
}

// Span returns the current span carried in ctx.
func (t *ClueTracer) Span(ctx context.Context) Span {
	return &clueSpan{span: trace.SpanFromContext(ctx)}
}

func (s *clueSpan) End(opts ...trace.SpanEndOption) { s.span.End(opts...) }

func (s *clueSpan) AddEvent(name string, attrs ...any) {
	s.span.AddEvent(name, trace.WithAttributes(kvToAttrs(attrs)...))
}

func (s *clueSpan) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

func (s *clueSpan) RecordError(err error, opts ...trace.EventOption) {
	s.span.RecordError(err, opts...)
}

func kvToAttrs(keyvals []any) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	for i := 0; i < len(keyvals); i += 2 {
		k, _ := keyvals[i].(string)
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, ""))
		}
	}
	return attrs
}
