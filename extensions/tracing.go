package extensions

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/pumped-fn/kvo"
)

const instrumentationName = "github.com/pumped-fn/kvo"

// TracingExtension records a span per operation and counts operations and
// failures with OpenTelemetry
type TracingExtension struct {
	kvo.BaseExtension
	tracer trace.Tracer
	meter  metric.Meter

	opCounter  metric.Int64Counter
	opErrors   metric.Int64Counter
	opDuration metric.Float64Histogram
}

// TracingOption configures the TracingExtension
type TracingOption func(*TracingExtension)

// WithTracerProvider sets a custom tracer provider
func WithTracerProvider(provider trace.TracerProvider) TracingOption {
	return func(e *TracingExtension) {
		e.tracer = provider.Tracer(instrumentationName)
	}
}

// WithMeterProvider sets a custom meter provider
func WithMeterProvider(provider metric.MeterProvider) TracingOption {
	return func(e *TracingExtension) {
		e.meter = provider.Meter(instrumentationName)
	}
}

// NewTracingExtension creates a tracing extension using the global
// providers unless options replace them
func NewTracingExtension(opts ...TracingOption) (*TracingExtension, error) {
	e := &TracingExtension{
		BaseExtension: kvo.NewBaseExtension("tracing"),
		tracer:        otel.Tracer(instrumentationName),
		meter:         otel.Meter(instrumentationName),
	}

	for _, opt := range opts {
		opt(e)
	}

	var err error

	e.opCounter, err = e.meter.Int64Counter(
		"kvo.operation.count",
		metric.WithDescription("Number of property operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	e.opErrors, err = e.meter.Int64Counter(
		"kvo.operation.errors",
		metric.WithDescription("Number of failed property operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	e.opDuration, err = e.meter.Float64Histogram(
		"kvo.operation.duration",
		metric.WithDescription("Property operation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Order runs tracing outside other extensions so their time is included
func (e *TracingExtension) Order() int {
	return 10
}

func (e *TracingExtension) Wrap(ctx context.Context, next func(context.Context) (any, error), op *kvo.Operation) (any, error) {
	attrs := spanAttributes(op)
	ctx, span := e.tracer.Start(ctx, "kvo."+string(op.Kind), trace.WithAttributes(attrs...))
	defer span.End()

	kind := metric.WithAttributes(attribute.String("kvo.op", string(op.Kind)))
	e.opCounter.Add(ctx, 1, kind)

	start := time.Now()
	result, err := next(ctx)
	e.opDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, kind)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.opErrors.Add(ctx, 1, kind)
	}
	return result, err
}

func spanAttributes(op *kvo.Operation) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("kvo.op", string(op.Kind))}
	if op.Path != "" {
		attrs = append(attrs, attribute.String("kvo.path", op.Path))
	}
	if op.Key != "" {
		attrs = append(attrs, attribute.String("kvo.property", op.Key))
	}
	if id, ok := objectID(op.Object); ok {
		attrs = append(attrs, attribute.String("kvo.object", id.String()))
	}
	return attrs
}
