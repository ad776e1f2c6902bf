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

// Package nestedredirect rewrites Location headers issued by nested
// handlers so they are absolute from the outer router's perspective.
//
// A handler nested under "/admin" that redirects to "/login" means its own
// "/admin/login"; without rewriting the client would land on the outer
// router's "/login". The middleware prepends NestedPath to root-relative
// Location values on redirect responses.
package nestedredirect

import (
	"net/http"
	"strings"

	"github.com/nestmux/nestmux"
)

// locationWriter rewrites the Location header at WriteHeader time, the last
// moment it can still change.
type locationWriter struct {
	http.ResponseWriter
	prefix string
	wrote  bool
}

func (w *locationWriter) WriteHeader(status int) {
	if !w.wrote {
		w.wrote = true
		if status >= 300 && status < 400 {
			w.rewrite()
		}
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *locationWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *locationWriter) rewrite() {
	loc := w.Header().Get("Location")
	if loc == "" || !strings.HasPrefix(loc, "/") || strings.HasPrefix(loc, "//") {
		return
	}
	if strings.HasPrefix(loc, w.prefix+"/") || loc == w.prefix {
		return
	}
	w.Header().Set("Location", w.prefix+loc)
}

// New returns a middleware that makes root-relative redirects from nested
// handlers absolute. It is a no-op on the outermost router, where NestedPath
// is "/". Scheme-relative ("//host") and absolute URLs are left alone.
func New() nestmux.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			prefix := nestmux.NestedPath(req)
			if prefix == "/" || prefix == "" {
				next.ServeHTTP(w, req)
				return
			}
			next.ServeHTTP(&locationWriter{ResponseWriter: w, prefix: strings.TrimSuffix(prefix, "/")}, req)
		})
	}
}
