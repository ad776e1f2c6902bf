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
)

// ObservabilityRecorder provides unified observability lifecycle hooks for
// HTTP requests. Implementations typically combine metrics, distributed
// tracing, and access logging; the observe package provides one built on
// OpenTelemetry and Prometheus.
//
// Lifecycle:
//  1. The router calls OnRequestStart(ctx, req) before matching. It returns
//     an enriched context (e.g. carrying a trace span) and an opaque state
//     token. Returning a nil state excludes the request from recording while
//     keeping the context enrichment, so downstream trace propagation still
//     works for excluded paths such as /health.
//  2. With a non-nil state the router wraps the ResponseWriter through
//     WrapResponseWriter; the wrapper should implement ResponseInfo.
//  3. After the response is written the router calls OnRequestEnd with the
//     matched route pattern, e.g. "/users/{id}", or one of the sentinels
//     "_not_found", "_method_not_allowed", "_redirect", "_unmatched".
//     Implementations should label metrics with the pattern, never the raw
//     path, to keep cardinality bounded.
//
// All methods must be safe for concurrent use.
type ObservabilityRecorder interface {
	OnRequestStart(ctx context.Context, req *http.Request) (context.Context, any)
	WrapResponseWriter(w http.ResponseWriter, state any) http.ResponseWriter
	OnRequestEnd(ctx context.Context, state any, writer http.ResponseWriter, routePattern string)
}

// ResponseInfo is implemented by response writers that track response
// metadata, letting OnRequestEnd recover status and size from the writer it
// wrapped in WrapResponseWriter.
type ResponseInfo interface {
	StatusCode() int
	Size() int64
}
