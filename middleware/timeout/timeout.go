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

// Package timeout cancels requests that run longer than a configured
// duration and answers them with 408.
//
// The handler runs on its own goroutine against a buffered response writer;
// its output is forwarded only when it finishes in time, so a late handler
// can never interleave with the timeout response. Handlers must respect
// request context cancellation for the goroutine to wind down promptly;
// the context is canceled the moment the deadline passes.
package timeout

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nestmux/nestmux"
)

// Option defines functional options for timeout middleware configuration.
type Option func(*config)

type config struct {
	duration     time.Duration
	logger       *slog.Logger
	handler      func(w http.ResponseWriter, req *http.Request, timeout time.Duration)
	skipPaths    map[string]struct{}
	skipPrefixes []string
	skipFunc     func(req *http.Request) bool
}

func defaultConfig() *config {
	return &config{
		duration:  30 * time.Second,
		logger:    slog.New(slog.DiscardHandler),
		handler:   defaultHandler,
		skipPaths: make(map[string]struct{}),
	}
}

func defaultHandler(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
	http.Error(w, http.StatusText(http.StatusRequestTimeout), http.StatusRequestTimeout)
}

// WithDuration sets the timeout. Non-positive durations are ignored, keeping
// the 30s default.
func WithDuration(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.duration = d
		}
	}
}

// WithHandler replaces the response written on timeout.
func WithHandler(h func(w http.ResponseWriter, req *http.Request, timeout time.Duration)) Option {
	return func(c *config) {
		if h != nil {
			c.handler = h
		}
	}
}

// WithLogger logs timeout events through the given logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSkipPaths exempts exact request paths, e.g. streaming endpoints.
func WithSkipPaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.skipPaths[p] = struct{}{}
		}
	}
}

// WithSkipPrefix exempts every path under the given prefixes.
func WithSkipPrefix(prefixes ...string) Option {
	return func(c *config) {
		c.skipPrefixes = append(c.skipPrefixes, prefixes...)
	}
}

// WithSkip exempts requests matched by a custom predicate.
func WithSkip(fn func(req *http.Request) bool) Option {
	return func(c *config) {
		c.skipFunc = fn
	}
}

func (c *config) shouldSkip(req *http.Request) bool {
	if _, skip := c.skipPaths[req.URL.Path]; skip {
		return true
	}
	for _, prefix := range c.skipPrefixes {
		if strings.HasPrefix(req.URL.Path, prefix) {
			return true
		}
	}
	return c.skipFunc != nil && c.skipFunc(req)
}

// bufferedWriter collects the handler's response off to the side. flush
// forwards it once the handler beat the deadline; after a timeout it is
// simply dropped.
type bufferedWriter struct {
	mu   sync.Mutex
	hdr  http.Header
	body bytes.Buffer
	code int
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{hdr: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header {
	return b.hdr
}

func (b *bufferedWriter) WriteHeader(code int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.code == 0 {
		b.code = code
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.code == 0 {
		b.code = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedWriter) flush(w http.ResponseWriter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dst := w.Header()
	for k, v := range b.hdr {
		dst[k] = v
	}
	if b.code != 0 {
		w.WriteHeader(b.code)
	}
	if b.body.Len() > 0 {
		w.Write(b.body.Bytes())
	}
}

// New returns a middleware that bounds handler execution time.
//
//	r.Layer(timeout.New(
//	    timeout.WithDuration(5 * time.Second),
//	    timeout.WithSkipPaths("/events"),
//	))
//
// A panic on the handler goroutine is re-raised on the serving goroutine, so
// a recovery middleware layered outside still catches it.
func New(opts ...Option) nestmux.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if cfg.shouldSkip(req) {
				next.ServeHTTP(w, req)
				return
			}

			ctx, cancel := context.WithTimeout(req.Context(), cfg.duration)
			defer cancel()
			req = req.WithContext(ctx)

			buf := newBufferedWriter()
			done := make(chan struct{})
			panicChan := make(chan any, 1)

			go func() {
				defer func() {
					if v := recover(); v != nil {
						panicChan <- v
					}
					close(done)
				}()
				next.ServeHTTP(buf, req)
			}()

			select {
			case <-done:
				select {
				case v := <-panicChan:
					panic(v)
				default:
				}
				buf.flush(w)
			case <-ctx.Done():
				if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
					// Client went away; nothing sensible left to write.
					return
				}
				cfg.logger.Warn("request timeout",
					slog.String("method", req.Method),
					slog.String("path", req.URL.Path),
					slog.Duration("timeout", cfg.duration),
				)
				cfg.handler(w, req, cfg.duration)
				// The handler goroutine keeps running against the buffer
				// until it observes the canceled context; a panic raised
				// there after this point is absorbed, since the response
				// is already on the wire.
			}
		})
	}
}
