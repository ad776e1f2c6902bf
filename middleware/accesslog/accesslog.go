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

// Package accesslog writes one structured log line per request via slog.
// Use it when the full observe recorder is more than a service needs.
package accesslog

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/nestmux/nestmux"
)

// Option defines functional options for accesslog middleware configuration.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	level     slog.Level
	skipPaths map[string]struct{}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLevel sets the log level for access lines. Default slog.LevelInfo.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithSkipPaths suppresses logging for exact request paths, typically
// "/health".
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.skipPaths[p] = struct{}{}
		}
	}
}

// statusWriter records what the handler wrote.
type statusWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

// New returns a middleware that logs method, route pattern, status, size,
// and duration for every request. The matched pattern keeps log cardinality
// bounded; the raw path is logged separately for debugging.
//
//	r := nestmux.MustNew()
//	r.Layer(accesslog.New(accesslog.WithSkipPaths("/health")))
func New(opts ...Option) nestmux.Middleware {
	cfg := &config{
		logger:    slog.Default(),
		level:     slog.LevelInfo,
		skipPaths: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if _, skip := cfg.skipPaths[req.URL.Path]; skip {
				next.ServeHTTP(w, req)
				return
			}
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(sw, req)

			status := sw.status
			if status == 0 {
				status = http.StatusOK
			}
			cfg.logger.LogAttrs(req.Context(), cfg.level, "request",
				slog.String("method", req.Method),
				slog.String("route", nestmux.MatchedPath(req)),
				slog.String("path", req.URL.Path),
				slog.Int("status", status),
				slog.Int64("size", sw.size),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
