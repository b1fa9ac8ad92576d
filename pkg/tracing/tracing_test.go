package tracing

import (
	"context"
	"testing"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	tp, tracer, err := InitTracer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), "test")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span from the sdk provider")
	}
	span.End()
}

func TestInitTracerWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	tp, _, err := InitTracer(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_ = tp.Shutdown(context.Background())
}
