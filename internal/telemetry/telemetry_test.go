package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDisabledSetupIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestProviderRecordsServiceName(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp := NewProvider(exp, Options{ServiceName: "clubportal-test"})

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	span.End()
	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "op", spans[0].Name)
	var found bool
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "service.name" {
			found = kv.Value.AsString() == "clubportal-test"
		}
	}
	assert.True(t, found)
	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestExporterOptions(t *testing.T) {
	assert.Len(t, exporterOptions(Options{Endpoint: "collector:4318"}), 1)
	assert.Len(t, exporterOptions(Options{Endpoint: "collector:4318", Insecure: true}), 2)
	assert.Len(t, exporterOptions(Options{Endpoint: "http://collector:4318"}), 2)
}

var _ sdktrace.SpanExporter = (*tracetest.InMemoryExporter)(nil)
