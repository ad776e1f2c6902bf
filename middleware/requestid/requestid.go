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

// Package requestid assigns each request a unique ID for log correlation
// and distributed tracing.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nestmux/nestmux"
)

type contextKey struct{}

// Option defines functional options for requestid middleware configuration.
type Option func(*config)

type config struct {
	headerName    string
	generator     func() string
	allowClientID bool
}

func defaultConfig() *config {
	return &config{
		headerName:    "X-Request-ID",
		generator:     func() string { return uuid.New().String() },
		allowClientID: true,
	}
}

// WithHeader sets the header carrying the request ID. Default "X-Request-ID".
func WithHeader(name string) Option {
	return func(c *config) {
		if name != "" {
			c.headerName = name
		}
	}
}

// WithGenerator replaces the default UUIDv4 generator.
func WithGenerator(gen func() string) Option {
	return func(c *config) {
		if gen != nil {
			c.generator = gen
		}
	}
}

// WithAllowClientID controls whether an ID supplied by the client is kept.
// Default true; disable when IDs must be trustworthy.
func WithAllowClientID(allow bool) Option {
	return func(c *config) {
		c.allowClientID = allow
	}
}

// FromContext returns the request ID assigned by the middleware, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// New returns a middleware that assigns a request ID, stores it on the
// request context, and echoes it in the response header.
//
//	r := nestmux.MustNew()
//	r.Layer(requestid.New())
func New(opts ...Option) nestmux.Middleware {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := ""
			if cfg.allowClientID {
				id = req.Header.Get(cfg.headerName)
			}
			if id == "" {
				id = cfg.generator()
			}
			w.Header().Set(cfg.headerName, id)
			ctx := context.WithValue(req.Context(), contextKey{}, id)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
