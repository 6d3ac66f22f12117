package server

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type Observability struct {
	Tracer oteltrace.Tracer
	Meter  metric.Meter

	traceProvider   *sdktrace.TracerProvider
	RunCounter      metric.Int64Counter
	CaseDuration    metric.Int64Histogram
	Vulnerabilities metric.Int64Counter
	CapacityBlocked metric.Int64Counter
}

func SetupObservability(ctx context.Context, cfg ObservabilityConfig) (*Observability, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "redcell-api"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	sampler := sdktrace.TraceIDRatioBased(cfg.SampleRatio)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)
	if cfg.OTLPEndpoint != "" {
		exporter, exportErr := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if exportErr != nil {
			return nil, fmt.Errorf("create otlp trace exporter: %w", exportErr)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
		)
	} else {
		slog.Info("otel trace exporter not configured; using local tracer provider")
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	meter := otel.Meter(serviceName)
	tracer := otel.Tracer(serviceName)
	runCounter, _ := meter.Int64Counter("redcell_run_total")
	caseDuration, _ := meter.Int64Histogram("redcell_case_duration_ms")
	vulnerabilities, _ := meter.Int64Counter("redcell_vulnerabilities_total")
	capacityBlocked, _ := meter.Int64Counter("redcell_capacity_block_total")
	return &Observability{
		Tracer:          tracer,
		Meter:           meter,
		traceProvider:   tp,
		RunCounter:      runCounter,
		CaseDuration:    caseDuration,
		Vulnerabilities: vulnerabilities,
		CapacityBlocked: capacityBlocked,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o == nil || o.traceProvider == nil {
		return nil
	}
	return o.traceProvider.Shutdown(ctx)
}

func (o *Observability) MarkRun(ctx context.Context, status string) {
	if o == nil {
		return
	}
	o.RunCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
	))
}

func (o *Observability) MarkCase(ctx context.Context, pluginID string, durationMS int64) {
	if o == nil {
		return
	}
	o.CaseDuration.Record(ctx, durationMS, metric.WithAttributes(
		attribute.String("plugin", pluginID),
	))
}

func (o *Observability) MarkVulnerability(ctx context.Context, severity string) {
	if o == nil {
		return
	}
	o.Vulnerabilities.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", severity)))
}

func (o *Observability) MarkCapacityBlocked(ctx context.Context, reason string) {
	if o == nil {
		return
	}
	o.CapacityBlocked.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}
