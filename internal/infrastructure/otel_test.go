package infrastructure

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"

	"specview/internal/config"
	apperrors "specview/internal/errors"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOTelInitialization(t *testing.T) {
	providers, err := InitializeOTel(nil, quietLogger())
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.MeterProvider)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.PrometheusHTTP)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, providers.Shutdown(ctx))
}

func TestOTelConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		config *OTelConfig
	}{
		{
			name: "everything enabled",
			config: &OTelConfig{
				ServiceName: "test-service", ServiceVersion: "v1.0.0", Environment: "test",
				EnableTracing: true, EnableMetrics: true, SampleRatio: 1.0,
			},
		},
		{
			name: "tracing disabled",
			config: &OTelConfig{
				ServiceName: "test-service", ServiceVersion: "v1.0.0", Environment: "test",
				EnableMetrics: true,
			},
		},
		{
			name: "metrics disabled",
			config: &OTelConfig{
				ServiceName: "test-service", ServiceVersion: "v1.0.0", Environment: "test",
				EnableTracing: true, SampleRatio: 1.0,
			},
		},
		{
			name:   "all disabled",
			config: &OTelConfig{ServiceName: "test-service"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, err := InitializeOTel(tt.config, quietLogger())
			require.NoError(t, err)

			// instruments are always usable
			assert.NotNil(t, providers.Tracer)
			assert.NotNil(t, providers.Meter)
			assert.Equal(t, tt.config.EnableTracing, providers.TracerProvider != nil)
			assert.Equal(t, tt.config.EnableMetrics, providers.PrometheusHTTP != nil)

			metrics, err := CreateDomainMetrics(providers.Meter)
			require.NoError(t, err)
			metrics.RecordParse(context.Background(), 2, 10, time.Millisecond, nil)

			assert.NoError(t, providers.Shutdown(context.Background()))
		})
	}
}

func TestOTelConfigFrom(t *testing.T) {
	cfg := config.Default().Telemetry
	oc := OTelConfigFrom(cfg)
	assert.Equal(t, "specview", oc.ServiceName)
	assert.True(t, oc.EnableTracing)
	assert.True(t, oc.EnableMetrics)
	assert.Nil(t, oc.TraceWriter)

	cfg.Enabled = false
	oc = OTelConfigFrom(cfg)
	assert.False(t, oc.EnableTracing)
	assert.False(t, oc.EnableMetrics)
}

func TestTraceCorrelation(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-operation")
	defer span.End()

	traceID := TraceIDFromContext(ctx)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, span.SpanContext().TraceID().String(), traceID)
	assert.Empty(t, TraceIDFromContext(context.Background()))
}

func TestSpanExport(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultOTelConfig()
	cfg.EnableMetrics = false
	cfg.TraceWriter = &buf

	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(t, err)

	ctx, span := providers.Tracer.Start(context.Background(), "scan.parse")
	AddSpanEvent(ctx, "catalog.built", attribute.Int("scans", 3))
	RecordError(ctx, assert.AnError)
	RecordError(ctx, nil)
	span.End()

	require.NoError(t, providers.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "scan.parse")
	assert.Contains(t, buf.String(), "catalog.built")
}

func TestPrometheusEndpoint(t *testing.T) {
	providers, err := InitializeOTel(DefaultOTelConfig(), quietLogger())
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	metrics, err := CreateDomainMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordParse(ctx, 3, 42, 5*time.Millisecond, nil)
	metrics.RecordCache(ctx, true)
	metrics.RecordCache(ctx, false)
	metrics.RecordSelection(ctx, "signal", true)
	metrics.RecordEvaluation(ctx, time.Millisecond, apperrors.NewFormulaOperandError("S and BG1 differ"))
	metrics.RecordHTTPRequest(ctx, http.MethodGet, "/api/scans", http.StatusOK, time.Millisecond)

	server := httptest.NewServer(providers.PrometheusHTTP)
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"scan_parses_total",
		"scans_parsed_total",
		"catalog_cache_hits_total",
		"column_selections_empty_total",
		"formula_errors_total",
		"http_requests_total",
		"go_goroutines",
	} {
		assert.Contains(t, string(body), name)
	}
	assert.Contains(t, string(body), `error_type="FORMULA_OPERAND"`)
}

func TestDomainMetrics_NilSafe(t *testing.T) {
	var m *DomainMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordParse(ctx, 1, 1, time.Second, nil)
		m.RecordCache(ctx, true)
		m.RecordSelection(ctx, "i0", false)
		m.RecordEvaluation(ctx, time.Second, nil)
		m.RecordHTTPRequest(ctx, "GET", "/", 200, time.Second)
	})

	metrics, err := CreateDomainMetrics(nil)
	require.NoError(t, err)
	assert.NotNil(t, metrics.ScanParsesTotal)
}

func TestSystemMetrics(t *testing.T) {
	start := time.Now().Add(-time.Minute)
	sm, err := NewSystemMetrics(nil, start)
	require.NoError(t, err)

	stats := sm.Collect(context.Background())
	assert.Positive(t, stats.GoRoutines)
	assert.Positive(t, stats.CPUCount)
	assert.GreaterOrEqual(t, stats.ProcessUptime, time.Minute)
	assert.GreaterOrEqual(t, sm.Uptime(), time.Minute)
}

func BenchmarkTraceOperations(b *testing.B) {
	cfg := DefaultOTelConfig()
	cfg.EnableMetrics = false
	providers, err := InitializeOTel(cfg, quietLogger())
	require.NoError(b, err)
	defer providers.Shutdown(context.Background())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, span := providers.Tracer.Start(context.Background(), "bench")
		span.End()
	}
}
