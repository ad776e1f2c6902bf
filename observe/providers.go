// Copyright 2025 The Nestmux Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func (r *Recorder) resource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(r.serviceName),
		semconv.ServiceVersion(r.serviceVersion),
	)
}

func (r *Recorder) initMetrics(ctx context.Context) error {
	var reader sdkmetric.Reader
	switch r.metricsProvider {
	case ProviderNoop:
		return nil
	case ProviderPrometheus:
		exporter, err := otelprom.New(otelprom.WithRegisterer(r.registry))
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}
		reader = exporter
	case ProviderOTLP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(r.otlpEndpoint)}
		if r.otlpInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval))
	case ProviderStdout:
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create stdout metric exporter: %w", err)
		}
		reader = sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(r.exportInterval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(r.resource()),
		sdkmetric.WithReader(reader),
	)
	r.meterProvider = mp
	r.shutdownFns = append(r.shutdownFns, mp.Shutdown)
	return nil
}

func (r *Recorder) initTraces(ctx context.Context) error {
	var exporter sdktrace.SpanExporter
	switch r.traceProvider {
	case ProviderNoop:
		return nil
	case ProviderOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(r.otlpEndpoint)}
		if r.otlpInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP trace exporter: %w", err)
		}
		exporter = exp
	case ProviderStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout trace exporter: %w", err)
		}
		exporter = exp
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(r.resource()),
		sdktrace.WithBatcher(exporter),
	)
	r.tracerProvider = tp
	r.shutdownFns = append(r.shutdownFns, tp.Shutdown)
	return nil
}

func (r *Recorder) initInstruments() error {
	meter := r.meterProvider.Meter("github.com/nestmux/nestmux/observe")

	var err error
	r.requestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of HTTP server requests."),
	)
	if err != nil {
		return fmt.Errorf("failed to create duration histogram: %w", err)
	}
	r.requestCount, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Number of HTTP server requests."),
	)
	if err != nil {
		return fmt.Errorf("failed to create request counter: %w", err)
	}
	r.activeRequests, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP server requests."),
	)
	if err != nil {
		return fmt.Errorf("failed to create active requests counter: %w", err)
	}
	r.responseSize, err = meter.Int64Histogram("http.server.response.body.size",
		metric.WithUnit("By"),
		metric.WithDescription("Size of HTTP server response bodies."),
	)
	if err != nil {
		return fmt.Errorf("failed to create response size histogram: %w", err)
	}
	return nil
}
