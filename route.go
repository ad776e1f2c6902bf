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
	"net/http"
	"strconv"
)

// Middleware wraps an http.Handler with additional behavior. Middleware
// passed to Layer and RouteLayer run in the order given: the first
// middleware is outermost and sees the request first.
type Middleware func(http.Handler) http.Handler

// Route is a leaf service: an http.Handler plus whatever middleware layers
// have been applied to it. Routes are immutable; layering produces a new
// Route.
type Route struct {
	handler http.Handler
}

func newRoute(h http.Handler) *Route {
	return &Route{handler: h}
}

// layer returns a new Route with the middleware applied. The first
// middleware in the argument list becomes the outermost wrapper.
func (r *Route) layer(middleware ...Middleware) *Route {
	h := r.handler
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return newRoute(h)
}

// ServeHTTP implements http.Handler.
func (r *Route) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// notFoundHandler writes the default 404 response. It is the endpoint behind
// every default fallback and is only reached when no ancestor router
// configured a custom fallback.
func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusNotFound)
	})
}

// writeMethodNotAllowed writes the default 405 response with the Allow
// header listing the methods registered at the matched path.
func writeMethodNotAllowed(w http.ResponseWriter, allow []string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", joinAllow(allow))
	}
	w.WriteHeader(http.StatusMethodNotAllowed)
}

func joinAllow(allow []string) string {
	switch len(allow) {
	case 0:
		return ""
	case 1:
		return allow[0]
	}
	n := len(allow) - 1
	for _, m := range allow {
		n += len(m)
	}
	b := make([]byte, 0, n)
	for i, m := range allow {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, m...)
	}
	return string(b)
}

// headResponseWriter adapts a GET handler to serve a HEAD request. Header
// writes are deferred and body bytes are counted but discarded so the
// response carries the same headers and the exact Content-Length the GET
// response would have, with an empty body.
type headResponseWriter struct {
	http.ResponseWriter
	status int
	size   int64
}

func (hw *headResponseWriter) WriteHeader(code int) {
	if hw.status == 0 {
		hw.status = code
	}
}

func (hw *headResponseWriter) Write(b []byte) (int, error) {
	if hw.status == 0 {
		hw.status = http.StatusOK
	}
	hw.size += int64(len(b))
	return len(b), nil
}

// finish flushes the buffered status line. Content-Length is filled in from
// the counted body size unless the handler set it explicitly.
func (hw *headResponseWriter) finish() {
	if hw.status == 0 {
		hw.status = http.StatusOK
	}
	if hw.Header().Get("Content-Length") == "" {
		hw.Header().Set("Content-Length", strconv.FormatInt(hw.size, 10))
	}
	hw.ResponseWriter.WriteHeader(hw.status)
}
