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

// Package observe implements nestmux.ObservabilityRecorder on top of
// OpenTelemetry tracing and metrics, with structured access logs via slog.
//
// A Recorder combines the three pillars in one lifecycle: a server span per
// request, RED metrics labeled by route pattern, and one canonical log line
// per request. Metrics default to a Prometheus exporter on a private
// registry; traces default to off.
//
//	rec := observe.MustNew(
//	    observe.WithServiceName("orders"),
//	    observe.WithMetricsProvider(observe.ProviderPrometheus),
//	    observe.WithTraceProvider(observe.ProviderOTLP),
//	    observe.WithOTLPEndpoint("otel-collector:4318", true),
//	)
//	if err := rec.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer rec.Shutdown(context.Background())
//
//	r := nestmux.MustNew(nestmux.WithObservability(rec))
//	r.RouteService("/metrics", rec.MetricsHandler())
package observe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/nestmux/nestmux"
)

// Provider selects an exporter backend.
type Provider string

const (
	// ProviderNoop disables the pillar entirely.
	ProviderNoop Provider = "noop"
	// ProviderPrometheus exposes metrics for pull via MetricsHandler.
	// Metrics only.
	ProviderPrometheus Provider = "prometheus"
	// ProviderOTLP pushes to an OTLP HTTP collector.
	ProviderOTLP Provider = "otlp"
	// ProviderStdout prints to stdout, for development and tests.
	ProviderStdout Provider = "stdout"
)

// Recorder implements nestmux.ObservabilityRecorder. Create it with New,
// then Start it before serving; OTLP exporters need the context for
// connection setup. All request-path methods are safe for concurrent use.
type Recorder struct {
	serviceName    string
	serviceVersion string

	metricsProvider Provider
	traceProvider   Provider
	otlpEndpoint    string
	otlpInsecure    bool
	exportInterval  time.Duration

	registry    *promclient.Registry
	promHandler http.Handler

	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer
	propagator     propagation.TextMapPropagator

	requestDuration metric.Float64Histogram
	requestCount    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
	responseSize    metric.Int64Histogram

	logger    *slog.Logger
	accessLog bool

	excludePaths map[string]struct{}

	shutdownFns []func(context.Context) error
	started     bool
}

// requestState is the opaque token threaded through the recorder lifecycle.
type requestState struct {
	start time.Time
	span  trace.Span
	attrs [2]attribute.KeyValue
}

// New creates a Recorder. Exporters are not connected until Start.
func New(opts ...Option) (*Recorder, error) {
	r := &Recorder{
		serviceName:     "nestmux",
		metricsProvider: ProviderPrometheus,
		traceProvider:   ProviderNoop,
		exportInterval:  30 * time.Second,
		registry:        promclient.NewRegistry(),
		logger:          slog.Default(),
		accessLog:       true,
		excludePaths:    make(map[string]struct{}),
		meterProvider:   metricnoop.NewMeterProvider(),
		tracerProvider:  tracenoop.NewTracerProvider(),
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{},
		),
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("observe configuration validation failed: %w", err)
	}
	return r, nil
}

// MustNew creates a Recorder and panics on invalid configuration.
func MustNew(opts ...Option) *Recorder {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("observe.MustNew: %v", err))
	}
	return r
}

func (r *Recorder) validate() error {
	switch r.metricsProvider {
	case ProviderNoop, ProviderPrometheus, ProviderOTLP, ProviderStdout:
	default:
		return fmt.Errorf("unsupported metrics provider: %s", r.metricsProvider)
	}
	switch r.traceProvider {
	case ProviderNoop, ProviderOTLP, ProviderStdout:
	default:
		return fmt.Errorf("unsupported trace provider: %s", r.traceProvider)
	}
	if (r.metricsProvider == ProviderOTLP || r.traceProvider == ProviderOTLP) && r.otlpEndpoint == "" {
		return fmt.Errorf("OTLP provider selected without an endpoint")
	}
	if r.exportInterval <= 0 {
		return fmt.Errorf("export interval must be positive")
	}
	return nil
}

// Start connects the configured exporters and creates the instruments. Call
// it once before serving traffic.
func (r *Recorder) Start(ctx context.Context) error {
	if r.started {
		return nil
	}
	if err := r.initMetrics(ctx); err != nil {
		return err
	}
	if err := r.initTraces(ctx); err != nil {
		return err
	}
	if err := r.initInstruments(); err != nil {
		return err
	}
	r.tracer = r.tracerProvider.Tracer("github.com/nestmux/nestmux/observe")
	r.started = true
	r.logger.Debug("observability started",
		"metrics", string(r.metricsProvider), "traces", string(r.traceProvider))
	return nil
}

// Shutdown flushes and stops the exporters. Safe to call without Start.
func (r *Recorder) Shutdown(ctx context.Context) error {
	var firstErr error
	for i := len(r.shutdownFns) - 1; i >= 0; i-- {
		if err := r.shutdownFns[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.shutdownFns = nil
	r.started = false
	return firstErr
}

// MetricsHandler returns the Prometheus scrape handler for this recorder's
// registry. It serves an empty exposition until Start has run, and is only
// meaningful with ProviderPrometheus.
func (r *Recorder) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// OnRequestStart opens the server span and extracts remote trace context.
// Excluded paths still get the enriched context but a nil state, which tells
// the router to skip recording.
func (r *Recorder) OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any) {
	ctx = r.propagator.Extract(ctx, propagation.HeaderCarrier(req.Header))

	if _, excluded := r.excludePaths[req.URL.Path]; excluded {
		return ctx, nil
	}

	state := &requestState{start: time.Now()}
	state.attrs[0] = attribute.String("http.request.method", req.Method)

	if r.traceProvider != ProviderNoop {
		ctx, state.span = r.tracer.Start(ctx, "HTTP "+req.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				state.attrs[0],
				attribute.String("url.path", req.URL.Path),
				attribute.String("user_agent.original", req.UserAgent()),
			),
		)
	}

	if r.activeRequests != nil {
		r.activeRequests.Add(ctx, 1)
	}
	return ctx, state
}

// WrapResponseWriter wraps w to capture status code and body size. With a
// nil state the original writer is returned unchanged.
func (r *Recorder) WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter {
	if state == nil {
		return w
	}
	return wrapResponseWriter(w)
}

// OnRequestEnd records metrics, finishes the span, and writes the access log
// line. The route pattern, not the raw path, labels everything so
// cardinality stays bounded.
func (r *Recorder) OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, routePattern string) {
	st, ok := state.(*requestState)
	if !ok {
		return
	}
	elapsed := time.Since(st.start)

	status := 0
	var size int64
	if info, ok := writer.(nestmux.ResponseInfo); ok {
		status = info.StatusCode()
		size = info.Size()
	}

	st.attrs[1] = attribute.String("http.route", routePattern)
	statusAttr := attribute.Int("http.response.status_code", status)

	if r.activeRequests != nil {
		r.activeRequests.Add(ctx, -1)
	}
	if r.requestCount != nil {
		r.requestCount.Add(ctx, 1, metric.WithAttributes(st.attrs[0], st.attrs[1], statusAttr))
	}
	if r.requestDuration != nil {
		r.requestDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(st.attrs[0], st.attrs[1], statusAttr))
	}
	if r.responseSize != nil {
		r.responseSize.Record(ctx, size, metric.WithAttributes(st.attrs[0], st.attrs[1], statusAttr))
	}

	if st.span != nil {
		st.span.SetName(fmt.Sprintf("%s %s", st.attrs[0].Value.AsString(), routePattern))
		st.span.SetAttributes(st.attrs[1], statusAttr)
		if status >= http.StatusInternalServerError {
			st.span.SetStatus(codes.Error, http.StatusText(status))
		}
		st.span.End()
	}

	if r.accessLog {
		r.logger.LogAttrs(ctx, slog.LevelInfo, "request",
			slog.String("method", st.attrs[0].Value.AsString()),
			slog.String("route", routePattern),
			slog.Int("status", status),
			slog.Int64("size", size),
			slog.Duration("duration", elapsed),
		)
	}
}
