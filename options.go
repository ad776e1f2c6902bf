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

package nestmux

import (
	"log/slog"
	"time"
)

// serverTimeouts holds the http.Server timeout configuration used by Serve
// and ServeTLS.
type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

func defaultServerTimeouts() *serverTimeouts {
	return &serverTimeouts{
		readHeader: 5 * time.Second,
		read:       15 * time.Second,
		write:      30 * time.Second,
		idle:       60 * time.Second,
	}
}

// WithLegacySyntax accepts the older ":name" and "*name" capture forms in
// route paths alongside "{name}" and "{*name}". New code should use the
// braced forms; this option exists for migrating route tables.
func WithLegacySyntax() Option {
	return func(r *Router) {
		r.path.legacySyntax = true
	}
}

// WithLogger sets the structured logger used for router lifecycle messages.
// The default logger discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObservability sets the unified observability recorder. The recorder
// sees every request with its matched route pattern, or a sentinel such as
// "_not_found" when no route matched.
func WithObservability(rec ObservabilityRecorder) Option {
	return func(r *Router) {
		r.observability = rec
	}
}

// WithDiagnostics sets the handler that receives router diagnostic events.
// If not provided, diagnostics are silently dropped; router behavior is
// identical either way.
func WithDiagnostics(handler DiagnosticHandler) Option {
	return func(r *Router) {
		r.diagnostics = handler
	}
}

// WithoutTrailingSlashRedirect disables the 308 redirect between "/path" and
// "/path/" twins. Unmatched twins then fall through to the fallback.
func WithoutTrailingSlashRedirect() Option {
	return func(r *Router) {
		r.redirectTrailingSlash = false
	}
}

// WithH2C enables HTTP/2 cleartext upgrade in Serve. Use only in development
// or behind a trusted load balancer; TLS servers negotiate HTTP/2 via ALPN
// regardless of this option.
func WithH2C(enable bool) Option {
	return func(r *Router) {
		r.enableH2C = enable
	}
}

// WithServerTimeouts overrides the production-safe defaults applied to the
// http.Server created by Serve and ServeTLS.
//
// Defaults: ReadHeaderTimeout 5s, ReadTimeout 15s, WriteTimeout 30s,
// IdleTimeout 60s.
func WithServerTimeouts(readHeader, read, write, idle time.Duration) Option {
	return func(r *Router) {
		r.serverTimeouts = &serverTimeouts{
			readHeader: readHeader,
			read:       read,
			write:      write,
			idle:       idle,
		}
	}
}
