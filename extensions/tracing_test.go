package extensions

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pumped-fn/kvo"
)

func TestTracingExtension_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)

	ext, err := NewTracingExtension(WithTracerProvider(tp))
	if err != nil {
		t.Fatalf("NewTracingExtension() failed: %v", err)
	}
	scope := kvo.NewScope(kvo.WithExtension(ext))

	acct := &account{Owner: "ada", Balance: 1}
	_ = scope.Init(acct)
	if _, err := kvo.Get(acct, "summary"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush failed: %v", err)
	}

	spans := exporter.GetSpans()
	names := make(map[string]int)
	for _, span := range spans {
		names[span.Name]++
	}
	for _, want := range []string{"kvo.init", "kvo.get", "kvo.invoke"} {
		if names[want] != 1 {
			t.Errorf("expected one %s span, got %d", want, names[want])
		}
	}

	// the invoke span is a child of the get span
	var get, invoke *tracetest.SpanStub
	for i := range spans {
		switch spans[i].Name {
		case "kvo.get":
			get = &spans[i]
		case "kvo.invoke":
			invoke = &spans[i]
		}
	}
	if get == nil || invoke == nil {
		t.Fatal("missing get or invoke span")
	}
	if invoke.Parent.SpanID() != get.SpanContext.SpanID() {
		t.Error("expected invoke span to be nested under get")
	}

	found := false
	for _, attr := range invoke.Attributes {
		if string(attr.Key) == "kvo.property" && attr.Value.AsString() == "summary" {
			found = true
		}
	}
	if !found {
		t.Error("invoke span missing kvo.property attribute")
	}
}

func TestTracingExtension_ErrorStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
	)
	ext, err := NewTracingExtension(WithTracerProvider(tp))
	if err != nil {
		t.Fatal(err)
	}
	scope := kvo.NewScope(kvo.WithExtension(ext))

	acct := &account{Owner: "ada", Balance: -1}
	_ = scope.Init(acct)
	if _, err := kvo.Get(acct, "summary"); !errors.Is(err, errOverdrawn) {
		t.Fatalf("expected overdrawn, got %v", err)
	}

	for _, span := range exporter.GetSpans() {
		if span.Name == "kvo.init" {
			continue
		}
		if span.Status.Code != codes.Error {
			t.Errorf("%s: expected error status, got %v", span.Name, span.Status.Code)
		}
		if len(span.Events) == 0 {
			t.Errorf("%s: expected a recorded error event", span.Name)
		}
	}
}

func TestTracingExtension_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
	)

	ext, err := NewTracingExtension(WithMeterProvider(mp))
	if err != nil {
		t.Fatalf("NewTracingExtension() failed: %v", err)
	}
	scope := kvo.NewScope(kvo.WithExtension(ext))

	acct := &account{Owner: "ada", Balance: 1}
	_ = scope.Init(acct)
	_, _ = kvo.Get(acct, "summary")
	_ = kvo.Set(acct, "balance", -1)

	ctx := context.Background()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("no scope metrics collected")
	}

	totals := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, dp := range data.DataPoints {
				totals[m.Name] += dp.Value
			}
		case metricdata.Histogram[float64]:
			for _, dp := range data.DataPoints {
				totals[m.Name] += int64(dp.Count)
			}
		}
	}

	// init, get, invoke, then set, recompute, invoke
	if totals["kvo.operation.count"] != 6 {
		t.Errorf("expected 6 operations, got %d", totals["kvo.operation.count"])
	}
	if totals["kvo.operation.duration"] != 6 {
		t.Errorf("expected 6 duration samples, got %d", totals["kvo.operation.duration"])
	}
	// the failed invoke, recompute and set
	if totals["kvo.operation.errors"] != 3 {
		t.Errorf("expected 3 errors, got %d", totals["kvo.operation.errors"])
	}
}

func TestTracingExtension_Order(t *testing.T) {
	ext, err := NewTracingExtension()
	if err != nil {
		t.Fatal(err)
	}
	base := kvo.NewBaseExtension("x")
	if ext.Order() >= base.Order() {
		t.Error("expected tracing to run before default extensions")
	}
}
