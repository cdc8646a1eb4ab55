package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"careplan/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

const instrumentationName = "careplan"

// Bulk upload stages and outcomes used as metric attributes.
const (
	UploadStageValidate = "validate"
	UploadStageCommit   = "commit"

	UploadOutcomeOK       = "ok"
	UploadOutcomeRejected = "rejected"
	UploadOutcomeFailed   = "failed"
)

type Telemetry interface {
	RecordBulkUpload(ctx context.Context, stage, outcome string, rows int)
	RecordPlanningSessionCreated(ctx context.Context)
	RecordSuggestionLatency(ctx context.Context, d time.Duration, candidates int)
	Shutdown(ctx context.Context) error
}

type OpenTelemetry struct {
	tracerProvider *trace.TracerProvider
	loggerProvider *sdklog.LoggerProvider
	meterProvider  *sdkmetric.MeterProvider
	config         config.TelemetryConfig

	bulkUploads       metric.Int64Counter
	bulkUploadRows    metric.Int64Counter
	sessionsCreated   metric.Int64Counter
	suggestionLatency metric.Float64Histogram
}

// Noop returns a Telemetry that records nothing.
func Noop() *OpenTelemetry {
	return &OpenTelemetry{}
}

// NewOpenTelemetry wires OTLP gRPC exporters for traces, logs and metrics.
// A disabled config yields a Telemetry whose recorders do nothing.
func NewOpenTelemetry(cfg config.TelemetryConfig) (*OpenTelemetry, error) {
	if !cfg.Enabled || cfg.ExporterURL == "" {
		slog.Info("Telemetry disabled or no exporter URL provided")
		return &OpenTelemetry{config: cfg}, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	traceExporter, err := otlptracegrpc.New(context.Background(),
		otlptracegrpc.WithEndpoint(cfg.ExporterURL),
		otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	logExporter, err := otlploggrpc.New(context.Background(),
		otlploggrpc.WithEndpoint(cfg.ExporterURL),
		otlploggrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}

	metricExporter, err := otlpmetricgrpc.New(context.Background(),
		otlpmetricgrpc.WithEndpoint(cfg.ExporterURL),
		otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(traceExporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(cfg.SamplingRatio)),
	)

	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter,
			sdkmetric.WithInterval(10*time.Second))),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	global.SetLoggerProvider(lp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel := &OpenTelemetry{
		tracerProvider: tp,
		loggerProvider: lp,
		meterProvider:  mp,
		config:         cfg,
	}

	if err := tel.initMetrics(mp.Meter(instrumentationName)); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	slog.Info("Telemetry initialized successfully",
		"service", cfg.ServiceName,
		"version", cfg.ServiceVersion,
		"environment", cfg.Environment,
		"endpoint", cfg.ExporterURL,
		"sampling_ratio", cfg.SamplingRatio,
	)

	return tel, nil
}

func (t *OpenTelemetry) initMetrics(meter metric.Meter) error {
	var err error

	t.bulkUploads, err = meter.Int64Counter(
		"careplan_bulk_uploads_total",
		metric.WithDescription("Bulk upload validations and commits by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bulk uploads counter: %w", err)
	}

	t.bulkUploadRows, err = meter.Int64Counter(
		"careplan_bulk_upload_rows_total",
		metric.WithDescription("Rows processed by bulk upload"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create bulk upload rows counter: %w", err)
	}

	t.sessionsCreated, err = meter.Int64Counter(
		"careplan_planning_sessions_created_total",
		metric.WithDescription("Planning sessions started"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create planning sessions counter: %w", err)
	}

	t.suggestionLatency, err = meter.Float64Histogram(
		"careplan_suggestion_duration_seconds",
		metric.WithDescription("Time spent scoring occupation suggestions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion latency histogram: %w", err)
	}

	return nil
}

func (t *OpenTelemetry) RecordBulkUpload(ctx context.Context, stage, outcome string, rows int) {
	if t.bulkUploads == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	)
	t.bulkUploads.Add(ctx, 1, attrs)
	t.bulkUploadRows.Add(ctx, int64(rows), attrs)
}

func (t *OpenTelemetry) RecordPlanningSessionCreated(ctx context.Context) {
	if t.sessionsCreated == nil {
		return
	}
	t.sessionsCreated.Add(ctx, 1)
}

func (t *OpenTelemetry) RecordSuggestionLatency(ctx context.Context, d time.Duration, candidates int) {
	if t.suggestionLatency == nil {
		return
	}
	t.suggestionLatency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.Int("candidates", candidates),
	))
}

func (t *OpenTelemetry) Shutdown(ctx context.Context) error {
	var errs []error

	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider shutdown: %w", err))
		}
	}

	if t.loggerProvider != nil {
		if err := t.loggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider shutdown: %w", err))
		}
	}

	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (t *OpenTelemetry) IsEnabled() bool {
	return t.config.Enabled && t.tracerProvider != nil
}
