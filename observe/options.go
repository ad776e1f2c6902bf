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
	"log/slog"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Option configures a Recorder at construction time.
type Option func(*Recorder)

// WithServiceName sets the service.name resource attribute. Default
// "nestmux".
func WithServiceName(name string) Option {
	return func(r *Recorder) {
		if name != "" {
			r.serviceName = name
		}
	}
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(r *Recorder) {
		r.serviceVersion = version
	}
}

// WithMetricsProvider selects the metrics backend. Default
// ProviderPrometheus.
func WithMetricsProvider(p Provider) Option {
	return func(r *Recorder) {
		r.metricsProvider = p
	}
}

// WithTraceProvider selects the tracing backend. Default ProviderNoop.
func WithTraceProvider(p Provider) Option {
	return func(r *Recorder) {
		r.traceProvider = p
	}
}

// WithOTLPEndpoint sets the collector host:port used by ProviderOTLP.
// Insecure disables TLS, for local collectors.
func WithOTLPEndpoint(endpoint string, insecure bool) Option {
	return func(r *Recorder) {
		r.otlpEndpoint = endpoint
		r.otlpInsecure = insecure
	}
}

// WithExportInterval sets the push interval for OTLP and stdout metric
// readers. Default 30s. Prometheus is pull-based and unaffected.
func WithExportInterval(interval time.Duration) Option {
	return func(r *Recorder) {
		r.exportInterval = interval
	}
}

// WithPrometheusRegistry uses a caller-owned registry instead of a private
// one, for processes that already expose other collectors.
func WithPrometheusRegistry(registry *promclient.Registry) Option {
	return func(r *Recorder) {
		if registry != nil {
			r.registry = registry
		}
	}
}

// WithLogger sets the slog logger used for access logs and lifecycle
// messages. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithoutAccessLog disables the per-request canonical log line while keeping
// metrics and traces.
func WithoutAccessLog() Option {
	return func(r *Recorder) {
		r.accessLog = false
	}
}

// WithExcludePaths excludes exact request paths from recording, typically
// "/health" and "/metrics". Excluded requests still get trace context
// propagation.
func WithExcludePaths(paths ...string) Option {
	return func(r *Recorder) {
		for _, p := range paths {
			r.excludePaths[p] = struct{}{}
		}
	}
}
