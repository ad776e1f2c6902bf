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

import "net/http"

// Static serves files from the filesystem directory root under prefix. It is
// NestService with an http.FileServer, so the prefix is stripped before the
// file server sees the path and deeper paths all resolve inside root.
//
// http.FileServer cleans paths, which blocks traversal out of root; still,
// only point it at directories meant to be public.
//
//	r.Static("/assets", "./public")
func (r *Router) Static(prefix, root string) *Router {
	return r.StaticFS(prefix, http.Dir(root))
}

// StaticFS is Static with a caller-supplied http.FileSystem, for embedded or
// virtual filesystems.
//
//	//go:embed public
//	var public embed.FS
//	r.StaticFS("/assets", http.FS(public))
func (r *Router) StaticFS(prefix string, fs http.FileSystem) *Router {
	return r.NestService(prefix, http.FileServer(fs))
}

// StaticFile serves a single file at path, for one-off files like
// /favicon.ico or /robots.txt. HEAD is answered through the GET handler as
// with any method route.
func (r *Router) StaticFile(path, file string) *Router {
	return r.Route(path, GetFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, file)
	}))
}
