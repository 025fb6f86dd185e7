//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

// Package metric exports workflow run metrics through OpenTelemetry.
package metric

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	noopm "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"

	itelemetry "trpc.group/trpc-go/trpc-workflow-go/internal/telemetry"
)

var (
	// Meter is the global OpenTelemetry meter for workflow runs.
	Meter metric.Meter = noopm.Meter{}

	nodeExecutions metric.Int64Counter     = noopm.Int64Counter{}
	runDuration    metric.Float64Histogram = noopm.Float64Histogram{}
)

// Start collects telemetry with optional configuration.
// The environment variables described below can be used for Endpoint configuration.
// OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_METRICS_ENDPOINT (default: "localhost:4317")
func Start(ctx context.Context, opts ...Option) (clean func() error, err error) {
	options := &options{
		serviceName:      itelemetry.ServiceName,
		serviceVersion:   itelemetry.ServiceVersion,
		serviceNamespace: itelemetry.ServiceNamespace,
		protocol:         itelemetry.ProtocolGRPC,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.metricsEndpoint == "" {
		options.metricsEndpoint = metricsEndpoint(options.protocol)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNamespace(options.serviceNamespace),
			semconv.ServiceName(options.serviceName),
			semconv.ServiceVersion(options.serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := newExporter(ctx, options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	if err := Use(meterProvider.Meter(itelemetry.InstrumentName)); err != nil {
		return nil, err
	}
	return func() error {
		if err := meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown MeterProvider: %w", err)
		}
		return nil
	}, nil
}

// Use installs m as the global meter and registers the workflow instruments on it.
func Use(m metric.Meter) error {
	counter, err := m.Int64Counter(itelemetry.MetricNodeExecutions,
		metric.WithDescription("Number of node executions by type and final status."))
	if err != nil {
		return fmt.Errorf("failed to create %s counter: %w", itelemetry.MetricNodeExecutions, err)
	}
	hist, err := m.Float64Histogram(itelemetry.MetricRunDuration,
		metric.WithDescription("Wall-clock duration of workflow runs."),
		metric.WithUnit(itelemetry.MetricRunDurationUnit))
	if err != nil {
		return fmt.Errorf("failed to create %s histogram: %w", itelemetry.MetricRunDuration, err)
	}
	Meter, nodeExecutions, runDuration = m, counter, hist
	return nil
}

// RecordNode counts one finished node execution.
func RecordNode(ctx context.Context, nodeType, status, errorType string) {
	nodeExecutions.Add(ctx, 1, metric.WithAttributes(
		itelemetry.NodeResultAttributes(nodeType, status, errorType)...))
}

// RecordRun records the duration of a run along with its outcome.
func RecordRun(ctx context.Context, d time.Duration, outcome string) {
	runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(itelemetry.KeyRunOutcome, outcome)))
}

func metricsEndpoint(protocol string) string {
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		return endpoint
	}
	if protocol == itelemetry.ProtocolHTTP {
		return "localhost:4318"
	}
	return "localhost:4317"
}

func newExporter(ctx context.Context, opts *options) (sdkmetric.Exporter, error) {
	if opts.protocol == itelemetry.ProtocolHTTP {
		exporter, err := otlpmetrichttp.New(ctx,
			otlpmetrichttp.WithEndpoint(opts.metricsEndpoint),
			otlpmetrichttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP metrics exporter: %w", err)
		}
		return exporter, nil
	}
	conn, err := itelemetry.NewGRPCConn(opts.metricsEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics connection: %w", err)
	}
	exporter, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	return exporter, nil
}

// Option is a function that configures meter options.
type Option func(*options)

type options struct {
	metricsEndpoint  string
	serviceName      string
	serviceVersion   string
	serviceNamespace string
	protocol         string
}

// WithEndpoint sets the metrics endpoint (host and port) the exporter connects to.
// It takes precedence over the OTEL_EXPORTER_OTLP_* environment variables.
func WithEndpoint(endpoint string) Option {
	return func(opts *options) {
		opts.metricsEndpoint = endpoint
	}
}

// WithProtocol selects "grpc" (default) or "http" export.
func WithProtocol(protocol string) Option {
	return func(opts *options) {
		opts.protocol = protocol
	}
}

// WithServiceName sets the service name reported in the resource.
func WithServiceName(name string) Option {
	return func(opts *options) {
		opts.serviceName = name
	}
}
