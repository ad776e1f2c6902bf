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
	"fmt"
	"maps"
	"net/http"
)

// methodOrder fixes the iteration order for Allow headers and introspection.
var methodOrder = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodOptions,
	http.MethodTrace,
	http.MethodConnect,
}

// MethodRouter dispatches a matched path by HTTP method. It is one of the
// three endpoint kinds a RouteID can resolve to.
//
// A MethodRouter carries its own fallback, used when the path matched but no
// handler covers the request method. By default that fallback is a
// method-not-allowed signal which the enclosing router resolves (a custom
// router fallback wins over the default 405; a default 404 does not).
//
// Two MethodRouters registered at the same literal path merge into one:
//
//	r.Route("/items", nestmux.Get(list)).Route("/items", nestmux.Post(create))
//
// serves both methods under a single RouteID. Registering the same method
// twice for one path is a programming error and panics.
type MethodRouter struct {
	routes         map[string]*Route
	anyRoute       *Route
	fallback       *Route
	customFallback bool
}

func newMethodRouter() *MethodRouter {
	return &MethodRouter{routes: make(map[string]*Route, 2)}
}

// Get starts a MethodRouter with a GET handler.
func Get(h http.Handler) *MethodRouter { return newMethodRouter().Get(h) }

// GetFunc starts a MethodRouter with a GET handler func.
func GetFunc(h http.HandlerFunc) *MethodRouter { return Get(h) }

// Post starts a MethodRouter with a POST handler.
func Post(h http.Handler) *MethodRouter { return newMethodRouter().Post(h) }

// PostFunc starts a MethodRouter with a POST handler func.
func PostFunc(h http.HandlerFunc) *MethodRouter { return Post(h) }

// Put starts a MethodRouter with a PUT handler.
func Put(h http.Handler) *MethodRouter { return newMethodRouter().Put(h) }

// PutFunc starts a MethodRouter with a PUT handler func.
func PutFunc(h http.HandlerFunc) *MethodRouter { return Put(h) }

// Patch starts a MethodRouter with a PATCH handler.
func Patch(h http.Handler) *MethodRouter { return newMethodRouter().Patch(h) }

// PatchFunc starts a MethodRouter with a PATCH handler func.
func PatchFunc(h http.HandlerFunc) *MethodRouter { return Patch(h) }

// Delete starts a MethodRouter with a DELETE handler.
func Delete(h http.Handler) *MethodRouter { return newMethodRouter().Delete(h) }

// DeleteFunc starts a MethodRouter with a DELETE handler func.
func DeleteFunc(h http.HandlerFunc) *MethodRouter { return Delete(h) }

// Head starts a MethodRouter with an explicit HEAD handler.
func Head(h http.Handler) *MethodRouter { return newMethodRouter().Head(h) }

// Options starts a MethodRouter with an OPTIONS handler.
func Options(h http.Handler) *MethodRouter { return newMethodRouter().Options(h) }

// Trace starts a MethodRouter with a TRACE handler.
func Trace(h http.Handler) *MethodRouter { return newMethodRouter().Trace(h) }

// Connect starts a MethodRouter with a CONNECT handler.
func Connect(h http.Handler) *MethodRouter { return newMethodRouter().Connect(h) }

// Any starts a MethodRouter with a catch-all handler invoked for any method
// without a more specific handler.
func Any(h http.Handler) *MethodRouter { return newMethodRouter().Any(h) }

// AnyFunc starts a MethodRouter with a catch-all handler func.
func AnyFunc(h http.HandlerFunc) *MethodRouter { return Any(h) }

func (m *MethodRouter) on(method string, h http.Handler) *MethodRouter {
	if h == nil {
		panic(fmt.Sprintf("nestmux: nil handler for %s", method))
	}
	if _, dup := m.routes[method]; dup {
		panic(fmt.Sprintf("nestmux: handler for %s already registered", method))
	}
	m.routes[method] = newRoute(h)
	return m
}

// Get adds a GET handler. Chainable.
func (m *MethodRouter) Get(h http.Handler) *MethodRouter { return m.on(http.MethodGet, h) }

// Post adds a POST handler. Chainable.
func (m *MethodRouter) Post(h http.Handler) *MethodRouter { return m.on(http.MethodPost, h) }

// Put adds a PUT handler. Chainable.
func (m *MethodRouter) Put(h http.Handler) *MethodRouter { return m.on(http.MethodPut, h) }

// Patch adds a PATCH handler. Chainable.
func (m *MethodRouter) Patch(h http.Handler) *MethodRouter { return m.on(http.MethodPatch, h) }

// Delete adds a DELETE handler. Chainable.
func (m *MethodRouter) Delete(h http.Handler) *MethodRouter { return m.on(http.MethodDelete, h) }

// Head adds an explicit HEAD handler, overriding HEAD-via-GET adaptation.
func (m *MethodRouter) Head(h http.Handler) *MethodRouter { return m.on(http.MethodHead, h) }

// Options adds an OPTIONS handler. Chainable.
func (m *MethodRouter) Options(h http.Handler) *MethodRouter { return m.on(http.MethodOptions, h) }

// Trace adds a TRACE handler. Chainable.
func (m *MethodRouter) Trace(h http.Handler) *MethodRouter { return m.on(http.MethodTrace, h) }

// Connect adds a CONNECT handler. Chainable.
func (m *MethodRouter) Connect(h http.Handler) *MethodRouter { return m.on(http.MethodConnect, h) }

// Any sets the catch-all handler invoked when no method-specific handler
// exists. Chainable.
func (m *MethodRouter) Any(h http.Handler) *MethodRouter {
	if m.anyRoute != nil {
		panic("nestmux: catch-all handler already registered")
	}
	m.anyRoute = newRoute(h)
	return m
}

// Fallback sets a custom handler for requests whose method has no handler,
// replacing the default method-not-allowed behavior for this path.
func (m *MethodRouter) Fallback(h http.Handler) *MethodRouter {
	m.fallback = newRoute(h)
	m.customFallback = true
	return m
}

// merge unions another MethodRouter into this one. Both covering the same
// method, or both carrying a custom fallback, is a caller bug surfaced as an
// error naming the path.
func (m *MethodRouter) merge(other *MethodRouter, path string) error {
	for method, route := range other.routes {
		if _, dup := m.routes[method]; dup {
			return fmt.Errorf("%w: %s %q", ErrDuplicateMethod, method, path)
		}
		m.routes[method] = route
	}
	if other.anyRoute != nil {
		if m.anyRoute != nil {
			return fmt.Errorf("%w: catch-all handler for %q", ErrDuplicateMethod, path)
		}
		m.anyRoute = other.anyRoute
	}
	if other.customFallback {
		if m.customFallback {
			return fmt.Errorf("cannot merge two method routers for %q that both have a fallback", path)
		}
		m.fallback = other.fallback
		m.customFallback = true
	}
	return nil
}

// clone returns a shallow copy sharing the immutable Routes. Used when a
// merge must not mutate the registered endpoint in place.
func (m *MethodRouter) clone() *MethodRouter {
	return &MethodRouter{
		routes:         maps.Clone(m.routes),
		anyRoute:       m.anyRoute,
		fallback:       m.fallback,
		customFallback: m.customFallback,
	}
}

// layer applies middleware to every handler in the method router, including
// its catch-all and custom fallback.
func (m *MethodRouter) layer(middleware ...Middleware) *MethodRouter {
	out := &MethodRouter{
		routes:         make(map[string]*Route, len(m.routes)),
		customFallback: m.customFallback,
	}
	for method, route := range m.routes {
		out.routes[method] = route.layer(middleware...)
	}
	if m.anyRoute != nil {
		out.anyRoute = m.anyRoute.layer(middleware...)
	}
	if m.fallback != nil {
		out.fallback = m.fallback.layer(middleware...)
	}
	return out
}

// allowedMethods lists the methods this router serves, in canonical order.
// HEAD is implied by GET.
func (m *MethodRouter) allowedMethods() []string {
	allow := make([]string, 0, len(m.routes)+1)
	for _, method := range methodOrder {
		if _, ok := m.routes[method]; ok {
			allow = append(allow, method)
			continue
		}
		if method == http.MethodHead {
			if _, ok := m.routes[http.MethodGet]; ok {
				allow = append(allow, http.MethodHead)
			}
		}
	}
	return allow
}

// call dispatches by method. A HEAD request with no HEAD handler runs the
// GET handler through a body-discarding writer so headers and Content-Length
// are exact. When no handler covers the method the outcome is a
// method-not-allowed signal unless this router carries a custom fallback.
func (m *MethodRouter) call(w http.ResponseWriter, req *http.Request, matched string) callOutcome {
	if route, ok := m.routes[req.Method]; ok {
		route.ServeHTTP(w, req)
		return servedOutcome(matched)
	}

	if req.Method == http.MethodHead {
		if get, ok := m.routes[http.MethodGet]; ok {
			hw := &headResponseWriter{ResponseWriter: w}
			get.ServeHTTP(hw, req)
			hw.finish()
			return servedOutcome(matched)
		}
	}

	if m.anyRoute != nil {
		m.anyRoute.ServeHTTP(w, req)
		return servedOutcome(matched)
	}

	if m.customFallback {
		m.fallback.ServeHTTP(w, req)
		return servedOutcome(matched)
	}

	return callOutcome{
		result:       dispatchMethodNotAllowed,
		routePattern: matched,
		allow:        m.allowedMethods(),
	}
}
