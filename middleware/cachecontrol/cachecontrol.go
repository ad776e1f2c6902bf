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

// Package cachecontrol sets a Cache-Control header on successful GET and
// HEAD responses. Apply it per route group with RouteLayer, or to a nested
// static router.
package cachecontrol

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nestmux/nestmux"
)

// Option defines functional options for Cache-Control directive
// configuration.
type Option func(*config)

type config struct {
	public               bool
	private              bool
	noStore              bool
	noCache              bool
	maxAge               time.Duration
	staleWhileRevalidate time.Duration
	staleIfError         time.Duration
}

// WithPublic adds the public directive, allowing shared caches to store the
// response.
func WithPublic() Option {
	return func(c *config) {
		c.public = true
	}
}

// WithPrivate adds the private directive, restricting storage to the
// client's own cache.
func WithPrivate() Option {
	return func(c *config) {
		c.private = true
	}
}

// WithNoStore adds the no-store directive.
func WithNoStore() Option {
	return func(c *config) {
		c.noStore = true
	}
}

// WithNoCache adds the no-cache directive, requiring revalidation before a
// cached copy is used.
func WithNoCache() Option {
	return func(c *config) {
		c.noCache = true
	}
}

// WithMaxAge adds max-age. Sub-second durations truncate to whole seconds.
func WithMaxAge(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.maxAge = d
		}
	}
}

// WithStaleWhileRevalidate adds stale-while-revalidate (RFC 5861), allowing
// stale responses while a background revalidation runs.
func WithStaleWhileRevalidate(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.staleWhileRevalidate = d
		}
	}
}

// WithStaleIfError adds stale-if-error, allowing stale responses when the
// origin fails.
func WithStaleIfError(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.staleIfError = d
		}
	}
}

func (c *config) headerValue() string {
	parts := make([]string, 0, 7)
	if c.public {
		parts = append(parts, "public")
	}
	if c.private {
		parts = append(parts, "private")
	}
	if c.noStore {
		parts = append(parts, "no-store")
	}
	if c.noCache {
		parts = append(parts, "no-cache")
	}
	if c.maxAge > 0 {
		parts = append(parts, fmt.Sprintf("max-age=%d", int(c.maxAge.Seconds())))
	}
	if c.staleWhileRevalidate > 0 {
		parts = append(parts, fmt.Sprintf("stale-while-revalidate=%d", int(c.staleWhileRevalidate.Seconds())))
	}
	if c.staleIfError > 0 {
		parts = append(parts, fmt.Sprintf("stale-if-error=%d", int(c.staleIfError.Seconds())))
	}
	return strings.Join(parts, ", ")
}

// New returns a middleware that sets the configured Cache-Control value
// before the handler runs. Non-GET, non-HEAD requests pass through
// untouched; a handler that sets its own Cache-Control wins.
//
//	r.Static("/assets", "./public")
//	r.RouteLayer(cachecontrol.New(
//	    cachecontrol.WithPublic(),
//	    cachecontrol.WithMaxAge(time.Hour),
//	))
func New(opts ...Option) nestmux.Middleware {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	value := cfg.headerValue()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if value != "" && (req.Method == http.MethodGet || req.Method == http.MethodHead) {
				w.Header().Set("Cache-Control", value)
			}
			next.ServeHTTP(w, req)
		})
	}
}
