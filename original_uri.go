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
	"net/url"
)

type originalURIContextKey struct{}

// OriginalURIFromContext returns the request URI as it arrived at the
// outermost router, before any nest prefix stripping rewrote the path. It is
// nil for requests that did not pass through a Router.
func OriginalURIFromContext(ctx context.Context) *url.URL {
	u, _ := ctx.Value(originalURIContextKey{}).(*url.URL)
	return u
}

// OriginalURI is a convenience accessor for OriginalURIFromContext on a
// request.
func OriginalURI(req *http.Request) *url.URL {
	return OriginalURIFromContext(req.Context())
}

// withOriginalURI stamps the URI once. Nested routers see the outermost
// stamp, never their rewritten view.
func withOriginalURI(req *http.Request) *http.Request {
	ctx := req.Context()
	if OriginalURIFromContext(ctx) != nil {
		return req
	}
	u := *req.URL
	return req.WithContext(context.WithValue(ctx, originalURIContextKey{}, &u))
}
