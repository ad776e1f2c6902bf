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
	"context"
	"net/http"
	"strings"
)

type nestedPathContextKey struct{}

// NestedPathFromContext returns the full prefix at which the currently
// running handler's router is nested, "/" when it is the outermost router.
// Capture placeholders in the prefix are preserved, e.g. "/tenants/{tenant}".
func NestedPathFromContext(ctx context.Context) string {
	if np, ok := ctx.Value(nestedPathContextKey{}).(string); ok {
		return np
	}
	return "/"
}

// NestedPath is a convenience accessor for NestedPathFromContext on a
// request. A handler that builds links to its own router can prepend it to
// stay correct no matter where the router is mounted.
func NestedPath(req *http.Request) string {
	return NestedPathFromContext(req.Context())
}

// nestedPathLayer stamps the nest prefix on requests entering a nested
// route. Prefixes compose across levels of nesting, so nesting "/v1" inside
// "/api" yields "/api/v1".
func nestedPathLayer(prefix string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			full := prefix
			if prev, ok := ctx.Value(nestedPathContextKey{}).(string); ok && prev != "/" {
				full = strings.TrimSuffix(prev, "/") + prefix
			}
			ctx = context.WithValue(ctx, nestedPathContextKey{}, full)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
