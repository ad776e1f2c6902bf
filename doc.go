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

// Package nestmux is a composable HTTP router for Go built around nesting
// and merging of sub-routers.
//
// Routes are registered as path patterns with named captures ("{id}") and a
// trailing catch-all ("{*rest}"), dispatched per HTTP method:
//
//	r := nestmux.MustNew()
//	r.Route("/users", nestmux.GetFunc(list).Post(http.HandlerFunc(create)))
//	r.Route("/users/{id}", nestmux.GetFunc(show))
//	r.Route("/assets/{*path}", nestmux.GetFunc(assets))
//
// Routers compose. Nest mounts a whole router under a prefix, with handlers
// inside it seeing prefix-relative paths; Merge folds two routers' route
// tables together:
//
//	api := nestmux.MustNew()
//	api.Route("/users/{id}", nestmux.GetFunc(show))
//
//	r := nestmux.MustNew()
//	r.Nest("/api", api)   // GET /api/users/{id}
//	r.Merge(admin)
//
// Handlers are plain http.Handler values. Route captures, the matched
// pattern, the nest prefix, and the pre-rewrite URI travel on the request
// context and are read with ParamsFromContext, MatchedPath, NestedPath and
// OriginalURI.
//
// Matching is method-aware: a path match without a method match answers 405
// with an accurate Allow header, HEAD is served through GET handlers with an
// exact Content-Length and no body, and a miss whose trailing-slash twin is
// registered answers a 308 redirect. Everything else goes to the fallback,
// configurable per router with Fallback.
//
// Registration is not safe for concurrent use; finish building the router
// before serving. Serving is safe for unlimited concurrency, and Clone gives
// cheap copy-on-write copies for per-tenant variants.
//
// The observe subpackage provides an ObservabilityRecorder wired to
// OpenTelemetry tracing and Prometheus metrics, and the middleware
// subpackages cover access logging, panic recovery, request IDs, and
// Location-header rewriting for nested handlers.
package nestmux
