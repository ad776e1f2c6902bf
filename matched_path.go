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

type matchedPathContextKey struct{}

// nestTailSuffix marks the synthetic catch-all a nested service registers
// under its prefix. It is stripped before the pattern is shown to users and
// replaced by whatever the inner router matched.
const nestTailSuffix = "/{*" + nestTailParam + "}"

// MatchedPathFromContext returns the route pattern the request matched, with
// capture placeholders intact, e.g. "/users/{id}". For nested routers the
// pattern accumulates, so a handler always sees the full pattern from the
// outermost router down. It returns "" for requests served by a fallback.
func MatchedPathFromContext(ctx context.Context) string {
	return strings.TrimSuffix(rawMatchedPath(ctx), nestTailSuffix)
}

// rawMatchedPath keeps the nest tail marker so an inner router knows where to
// splice its own pattern in.
func rawMatchedPath(ctx context.Context) string {
	mp, _ := ctx.Value(matchedPathContextKey{}).(string)
	return mp
}

// MatchedPath is a convenience accessor for MatchedPathFromContext on a
// request. Useful as a low-cardinality label for metrics and traces.
func MatchedPath(req *http.Request) string {
	return MatchedPathFromContext(req.Context())
}

// withMatchedPath records the matched pattern, joining onto whatever an outer
// router already matched. The outer pattern's nest tail marker is replaced by
// the inner pattern so the visible result reads as one route.
func withMatchedPath(ctx context.Context, routePattern string) context.Context {
	if routePattern == "" {
		return ctx
	}
	prev := rawMatchedPath(ctx)
	full := routePattern
	if prev != "" {
		trimmed := strings.TrimSuffix(prev, nestTailSuffix)
		if routePattern == "/" {
			if !strings.HasSuffix(trimmed, "/") {
				trimmed += "/"
			}
			full = trimmed
		} else {
			full = strings.TrimSuffix(trimmed, "/") + routePattern
		}
	}
	return context.WithValue(ctx, matchedPathContextKey{}, full)
}
