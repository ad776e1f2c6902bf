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

// Package cors handles Cross-Origin Resource Sharing headers and preflight
// requests. The default configuration allows no origins; every origin must be
// granted explicitly.
package cors

import (
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/nestmux/nestmux"
)

// Option defines functional options for cors middleware configuration.
type Option func(*config)

type config struct {
	allowedOrigins   []string
	allowedMethods   []string
	allowedHeaders   []string
	exposedHeaders   []string
	allowCredentials bool
	maxAge           int
	allowAllOrigins  bool
	allowOriginFunc  func(origin string) bool
}

func defaultConfig() *config {
	return &config{
		allowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		allowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		maxAge:         3600,
	}
}

// WithAllowedOrigins grants the listed origins. Origins are compared exactly,
// scheme included.
func WithAllowedOrigins(origins ...string) Option {
	return func(c *config) {
		c.allowedOrigins = append(c.allowedOrigins, origins...)
	}
}

// WithAllowAllOrigins answers every origin with a wildcard. Only suitable for
// public APIs without credentials.
func WithAllowAllOrigins(allow bool) Option {
	return func(c *config) {
		c.allowAllOrigins = allow
	}
}

// WithAllowOriginFunc validates origins dynamically, e.g. by suffix. It takes
// precedence over the static origin list.
func WithAllowOriginFunc(fn func(origin string) bool) Option {
	return func(c *config) {
		c.allowOriginFunc = fn
	}
}

// WithAllowedMethods replaces the default method list advertised on
// preflight responses.
func WithAllowedMethods(methods ...string) Option {
	return func(c *config) {
		c.allowedMethods = methods
	}
}

// WithAllowedHeaders replaces the default request header list advertised on
// preflight responses.
func WithAllowedHeaders(headers ...string) Option {
	return func(c *config) {
		c.allowedHeaders = headers
	}
}

// WithExposedHeaders lists response headers the browser may read.
func WithExposedHeaders(headers ...string) Option {
	return func(c *config) {
		c.exposedHeaders = headers
	}
}

// WithAllowCredentials allows cookies and authorization headers on
// cross-origin requests. Incompatible with a wildcard origin; the middleware
// echoes the specific origin instead.
func WithAllowCredentials(allow bool) Option {
	return func(c *config) {
		c.allowCredentials = allow
	}
}

// WithMaxAge sets the preflight cache lifetime in seconds.
func WithMaxAge(seconds int) Option {
	return func(c *config) {
		if seconds > 0 {
			c.maxAge = seconds
		}
	}
}

// New returns a middleware that sets CORS headers for allowed origins and
// answers preflight OPTIONS requests with 204. Requests without an Origin
// header, and requests from origins that were not granted, pass through
// without CORS headers.
//
//	r.Layer(cors.New(
//	    cors.WithAllowedOrigins("https://app.example.com"),
//	    cors.WithAllowCredentials(true),
//	))
func New(opts ...Option) nestmux.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	allowedMethodsHeader := strings.Join(cfg.allowedMethods, ", ")
	allowedHeadersHeader := strings.Join(cfg.allowedHeaders, ", ")
	exposedHeadersHeader := strings.Join(cfg.exposedHeaders, ", ")
	maxAgeHeader := strconv.Itoa(cfg.maxAge)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			origin := req.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, req)
				return
			}

			allowedOrigin := ""
			switch {
			case cfg.allowAllOrigins:
				allowedOrigin = "*"
			case cfg.allowOriginFunc != nil:
				if cfg.allowOriginFunc(origin) {
					allowedOrigin = origin
				}
			case slices.Contains(cfg.allowedOrigins, origin):
				allowedOrigin = origin
			}
			if allowedOrigin == "" {
				next.ServeHTTP(w, req)
				return
			}

			header := w.Header()
			if cfg.allowCredentials && allowedOrigin == "*" {
				// A wildcard cannot carry credentials; echo the origin.
				header.Set("Access-Control-Allow-Origin", origin)
				header.Set("Access-Control-Allow-Credentials", "true")
			} else {
				header.Set("Access-Control-Allow-Origin", allowedOrigin)
				if cfg.allowCredentials {
					header.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			if exposedHeadersHeader != "" {
				header.Set("Access-Control-Expose-Headers", exposedHeadersHeader)
			}

			if req.Method == http.MethodOptions {
				header.Set("Access-Control-Allow-Methods", allowedMethodsHeader)
				header.Set("Access-Control-Allow-Headers", allowedHeadersHeader)
				header.Set("Access-Control-Max-Age", maxAgeHeader)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
