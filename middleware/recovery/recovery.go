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

// Package recovery converts handler panics into 500 responses instead of
// torn connections, logging the panic and attaching it to the active trace
// span.
package recovery

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nestmux/nestmux"
)

// Option defines functional options for recovery middleware configuration.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	stack     bool
	onRecover func(w http.ResponseWriter, req *http.Request, v any)
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStackTrace includes the goroutine stack in the log entry. Default
// true.
func WithStackTrace(enabled bool) Option {
	return func(c *config) {
		c.stack = enabled
	}
}

// WithHandler replaces the default plain 500 response. The handler must
// write a complete response; headers may already have been sent by the
// panicking handler.
func WithHandler(h func(w http.ResponseWriter, req *http.Request, v any)) Option {
	return func(c *config) {
		if h != nil {
			c.onRecover = h
		}
	}
}

// New returns a middleware that recovers panics from downstream handlers.
// http.ErrAbortHandler is re-raised so deliberate connection aborts keep
// working.
func New(opts ...Option) nestmux.Middleware {
	cfg := &config{
		logger: slog.Default(),
		stack:  true,
	}
	cfg.onRecover = func(w http.ResponseWriter, _ *http.Request, _ any) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}

				attrs := []slog.Attr{
					slog.Any("panic", v),
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.String("route", nestmux.MatchedPath(req)),
				}
				if cfg.stack {
					attrs = append(attrs, slog.String("stack", string(debug.Stack())))
				}
				cfg.logger.LogAttrs(req.Context(), slog.LevelError, "panic recovered", attrs...)

				if span := trace.SpanFromContext(req.Context()); span.IsRecording() {
					span.AddEvent("panic", trace.WithAttributes(
						attribute.String("panic.value", valueString(v)),
					))
					span.SetStatus(codes.Error, "panic")
				}

				cfg.onRecover(w, req, v)
			}()
			next.ServeHTTP(w, req)
		})
	}
}

func valueString(v any) string {
	switch t := v.(type) {
	case error:
		return t.Error()
	case string:
		return t
	default:
		return "non-string panic value"
	}
}
