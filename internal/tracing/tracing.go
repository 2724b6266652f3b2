// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package tracing sets up OpenTelemetry tracing with an OTLP HTTP exporter.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/printgraph/internal/ctxlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds configuration for tracing setup.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// OTLPEndpoint is host:port only; the exporter adds the path.
	OTLPEndpoint string
	Insecure     bool
	SampleRatio  float64
}

// DefaultConfig returns a configuration for a local collector.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Environment:    "development",
		OTLPEndpoint:   "127.0.0.1:4318",
		Insecure:       true,
		SampleRatio:    1.0,
	}
}

// Setup creates a TracerProvider exporting to cfg.OTLPEndpoint and installs
// it globally. The returned function flushes and shuts it down.
func Setup(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	logger := ctxlog.FromContext(ctx)

	if cfg.OTLPEndpoint == "" {
		return nil, nil, errors.New("tracing: OTLP endpoint is required")
	}
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, nil, fmt.Errorf("tracing: sample ratio must be within [0, 1], got %v", cfg.SampleRatio)
	}

	logger.Info("Setting up tracing.", "serviceName", cfg.ServiceName, "otlpEndpoint", cfg.OTLPEndpoint, "environment", cfg.Environment)

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	logger.Debug("Tracing setup completed.")
	return tp, tp.Shutdown, nil
}

// Shutdown calls shutdown with a bounded timeout and logs the outcome.
func Shutdown(ctx context.Context, shutdown func(context.Context) error) error {
	if shutdown == nil {
		return nil
	}
	logger := ctxlog.FromContext(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := shutdown(ctx); err != nil {
		logger.Error("Failed to shut down tracing.", "error", err)
		return err
	}
	logger.Debug("Tracing shut down.")
	return nil
}
