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
	"net/url"
	"strings"
)

// stripPrefix removes a nest prefix from the request path before the nested
// handler runs. Unlike http.StripPrefix it works segment-wise, so a prefix
// such as "/tenants/{tenant}" strips whatever value the capture matched.
//
// Stripping happens on the escaped path, so the remainder keeps the original
// percent-encoding and a nested router matching it still sees raw capture
// values. The request is shallow-copied with a rewritten URL; the caller's
// request is left untouched.
func stripPrefix(prefix string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			rest, ok := prefixRemainder(prefix, req.URL.EscapedPath())
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			r2 := new(http.Request)
			*r2 = *req
			u2 := *req.URL
			u2.Path = rest
			u2.RawPath = ""
			if decoded, err := url.PathUnescape(rest); err == nil && decoded != rest {
				u2.Path = decoded
				u2.RawPath = rest
			}
			r2.URL = &u2
			next.ServeHTTP(w, r2)
		})
	}
}

// prefixRemainder reports the path left over after consuming prefix
// segment-by-segment. A "{name}" prefix segment consumes any non-empty path
// segment. The remainder always starts with "/"; consuming the whole path
// leaves "/".
func prefixRemainder(prefix, path string) (string, bool) {
	if prefix == "/" {
		return path, true
	}
	if len(path) == 0 || path[0] != '/' {
		return "", false
	}
	pre := strings.Split(strings.TrimPrefix(prefix, "/"), "/")
	segs := strings.Split(path[1:], "/")
	if len(segs) < len(pre) {
		return "", false
	}
	for i, ps := range pre {
		if strings.HasPrefix(ps, "{") && strings.HasSuffix(ps, "}") {
			if segs[i] == "" {
				return "", false
			}
			continue
		}
		if segs[i] != ps {
			return "", false
		}
	}
	rest := segs[len(pre):]
	if len(rest) == 0 {
		return "/", true
	}
	return "/" + strings.Join(rest, "/"), true
}
