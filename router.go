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
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Router is a composable HTTP router built around path nesting and merging.
// Routers are cheap to clone and compose: registration happens up front on a
// single goroutine, after which the router is safe for concurrent serving.
//
// Registration mistakes (conflicting patterns, duplicate methods, invalid
// nest prefixes) panic, because they are programming errors that should stop
// the process at startup rather than surface per-request.
//
// Example:
//
//	r := nestmux.MustNew()
//	r.Route("/users", nestmux.GetFunc(listUsers).Post(createUsers))
//	r.Route("/users/{id}", nestmux.GetFunc(showUser))
//	r.Nest("/api", apiRouter)
//	log.Fatal(r.Serve(":8080"))
type Router struct {
	path           *pathRouter
	fallback       *Route
	customFallback bool
	state          any

	logger                *slog.Logger
	observability         ObservabilityRecorder
	diagnostics           DiagnosticHandler
	redirectTrailingSlash bool
	enableH2C             bool
	serverTimeouts        *serverTimeouts

	serverMu sync.Mutex
	server   *http.Server
}

// Option configures a Router at construction time.
type Option func(*Router)

// New creates a router with optional configuration. Configuration is
// validated immediately rather than at serve time.
//
// For a version that panics on invalid configuration, use MustNew.
func New(opts ...Option) (*Router, error) {
	r := &Router{
		path:                  newPathRouter(),
		fallback:              newRoute(notFoundHandler()),
		logger:                slog.New(slog.DiscardHandler),
		redirectTrailingSlash: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.validate(); err != nil {
		return nil, fmt.Errorf("router configuration validation failed: %w", err)
	}
	return r, nil
}

// MustNew creates a router and panics if the configuration is invalid. Use
// it when configuration errors should fail the application at startup.
func MustNew(opts ...Option) *Router {
	r, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("nestmux.MustNew: %v", err))
	}
	return r
}

func (r *Router) validate() error {
	if t := r.serverTimeouts; t != nil {
		if t.readHeader < 0 || t.read < 0 || t.write < 0 || t.idle < 0 {
			return ErrServerTimeoutInvalid
		}
	}
	return nil
}

func (r *Router) emit(kind DiagnosticKind, message string, fields map[string]any) {
	if r.diagnostics != nil {
		r.diagnostics.OnDiagnostic(DiagnosticEvent{Kind: kind, Message: message, Fields: fields})
	}
}

func (r *Router) must(err error) {
	if err != nil {
		panic(fmt.Sprintf("nestmux: %v", err))
	}
}

// Route registers a method router at path. Registering two method routers at
// the same literal path merges them, so GET and POST handlers for one path
// may be added in separate calls. Chainable.
func (r *Router) Route(path string, m *MethodRouter) *Router {
	r.must(r.path.route(path, m))
	r.emit(DiagRouteRegistered, "route registered", map[string]any{"path": path, "methods": m.allowedMethods()})
	return r
}

// RouteService registers a plain handler at path, serving every method.
// Passing a *Router panics: routers must be composed with Nest so prefix
// stripping and nested-path bookkeeping stay correct.
func (r *Router) RouteService(path string, svc http.Handler) *Router {
	r.must(r.path.routeService(path, svc))
	r.emit(DiagRouteRegistered, "service registered", map[string]any{"path": path})
	return r
}

// RouteServiceFunc registers a handler func at path, serving every method.
func (r *Router) RouteServiceFunc(path string, svc http.HandlerFunc) *Router {
	return r.RouteService(path, svc)
}

// Nest mounts sub under prefix. Every route of sub is re-registered here at
// the concatenated path; handlers inside sub keep seeing paths relative to
// the prefix, and NestedPath reports where they were mounted. The sub-router
// is snapshotted, so mutating it afterwards does not affect this router.
//
// Sub-routers carrying their own fallback cannot be nested: nested fallbacks
// defer to the outermost router, so an explicit one would be unreachable.
func (r *Router) Nest(prefix string, sub *Router) *Router {
	r.must(r.path.nest(prefix, sub.Clone()))
	r.emit(DiagRouteRegistered, "router nested", map[string]any{"prefix": prefix, "routes": len(sub.path.routes)})
	return r
}

// NestService mounts an opaque handler under prefix. The handler receives
// paths with the prefix stripped and is responsible for everything below it,
// including its own 404s.
func (r *Router) NestService(prefix string, svc http.Handler) *Router {
	if sub, ok := svc.(*Router); ok {
		svc = sub.Clone()
	}
	r.must(r.path.nestService(prefix, svc))
	r.emit(DiagRouteRegistered, "service nested", map[string]any{"prefix": prefix})
	return r
}

// Merge folds every route of other into r. Patterns are recompiled from
// their recorded paths, so legacy capture syntax survives a merge even when
// only one side enabled it. Method routers registered at the same literal
// path union their methods.
//
// At most one of the two routers may carry an explicit fallback; the merged
// router uses it. Application state is not merged: r keeps its own.
func (r *Router) Merge(other *Router) *Router {
	if r.customFallback && other.customFallback {
		panic("nestmux: cannot merge two routers that both have a fallback")
	}
	r.must(r.path.merge(other.path))
	if other.customFallback {
		r.fallback = other.fallback
		r.customFallback = true
	}
	return r
}

// Layer wraps middleware around every route and the fallback. The first
// middleware listed is outermost.
func (r *Router) Layer(middleware ...Middleware) *Router {
	r.path.layer(middleware...)
	r.fallback = r.fallback.layer(middleware...)
	return r
}

// RouteLayer wraps middleware around routes only, leaving the fallback bare.
// Useful for auth layers that should not challenge unmatched paths. Calling
// it before any route is registered panics, since the layer would silently
// apply to nothing.
func (r *Router) RouteLayer(middleware ...Middleware) *Router {
	r.must(r.path.routeLayer(middleware...))
	return r
}

// Fallback sets the handler for requests that match no route. It also
// receives method-not-allowed misses, overriding the default 405.
func (r *Router) Fallback(h http.Handler) *Router {
	r.fallback = newRoute(h)
	r.customFallback = true
	return r
}

// FallbackFunc sets a handler func for requests that match no route.
func (r *Router) FallbackFunc(h http.HandlerFunc) *Router {
	return r.Fallback(h)
}

// WithState attaches application state retrievable in handlers via
// StateFromContext. Nested routers' state shadows the outer router's for
// handlers below the nest point.
func (r *Router) WithState(state any) *Router {
	r.state = state
	return r
}

// Clone returns an independent copy sharing the matching trie copy-on-write.
// Registering on either copy afterwards leaves the other untouched.
func (r *Router) Clone() *Router {
	return &Router{
		path:                  r.path.clone(),
		fallback:              r.fallback,
		customFallback:        r.customFallback,
		state:                 r.state,
		logger:                r.logger,
		observability:         r.observability,
		diagnostics:           r.diagnostics,
		redirectTrailingSlash: r.redirectTrailingSlash,
		enableH2C:             r.enableH2C,
		serverTimeouts:        r.serverTimeouts,
	}
}

// RouteInfo describes one registered route for introspection.
type RouteInfo struct {
	// Path is the registered pattern, e.g. "/users/{id}".
	Path string
	// Methods lists the handled methods for method routers, nil otherwise.
	Methods []string
	// Kind is "method", "service" or "nested".
	Kind string
}

// Routes lists every registered route, sorted by path. Nest-internal tail
// registrations are reported at their visible prefix.
func (r *Router) Routes() []RouteInfo {
	infos := make([]RouteInfo, 0, len(r.path.routes))
	seen := make(map[string]bool, len(r.path.routes))
	for id, ep := range r.path.routes {
		path, ok := r.path.node.pathFor(id)
		if !ok {
			continue
		}
		info := RouteInfo{Path: strings.TrimSuffix(path, nestTailSuffix)}
		switch {
		case ep.method != nil:
			info.Kind = "method"
			info.Methods = ep.method.allowedMethods()
		case ep.route != nil:
			info.Kind = "service"
		case ep.nested != nil:
			info.Kind = "nested"
		}
		key := info.Kind + " " + info.Path
		if seen[key] {
			continue
		}
		seen[key] = true
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos
}

// dispatch runs the matching machinery without resolving misses, so nested
// routers can defer not-found handling to their ancestors.
func (r *Router) dispatch(w http.ResponseWriter, req *http.Request) callOutcome {
	req = withState(req, r.state)
	return r.path.call(w, req)
}

// ServeHTTP implements http.Handler. The outermost router owns redirect and
// fallback decisions:
//
//  1. Stamp the original URI before any nest layer rewrites the path.
//  2. Match. A hit dispatches the endpoint with params and MatchedPath set.
//  3. A miss tries the trailing-slash twin of the path and answers 308 when
//     only the twin is registered. The root path never redirects.
//  4. Remaining misses go to the fallback. A method-not-allowed signal keeps
//     precedence over the default 404 but yields to an explicit fallback.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = withOriginalURI(req)

	ctx := req.Context()
	var obsState any
	if r.observability != nil {
		enrichedCtx, state := r.observability.OnRequestStart(ctx, req)
		obsState = state
		if enrichedCtx != ctx {
			ctx = enrichedCtx
			req = req.WithContext(ctx)
		}
		if obsState != nil {
			w = r.observability.WrapResponseWriter(w, obsState)
		}
	}

	outcome := r.dispatch(w, req)

	routePattern := outcome.routePattern
	switch outcome.result {
	case dispatchServed:
		if routePattern == "" {
			routePattern = "_unmatched"
		}
	case dispatchNotFound:
		if target, ok := r.trailingSlashTwin(req); ok {
			r.emit(DiagTrailingSlashRedirect, "redirecting to trailing-slash twin", map[string]any{
				"from": req.URL.EscapedPath(), "to": target,
			})
			redirectPermanent(w, req, target)
			routePattern = "_redirect"
			break
		}
		routePattern = "_not_found"
		r.fallback.ServeHTTP(w, req)
	case dispatchMethodNotAllowed:
		routePattern = "_method_not_allowed"
		if r.customFallback {
			r.fallback.ServeHTTP(w, req)
			break
		}
		writeMethodNotAllowed(w, outcome.allow)
	}

	if r.observability != nil && obsState != nil {
		r.observability.OnRequestEnd(req.Context(), obsState, w, routePattern)
	}
}

// trailingSlashTwin reports the toggled-slash form of the request path when
// that form, and not the path itself, is routable. It works on the escaped
// path, matching what dispatch looked up.
func (r *Router) trailingSlashTwin(req *http.Request) (string, bool) {
	if !r.redirectTrailingSlash {
		return "", false
	}
	path := req.URL.EscapedPath()
	if path == "/" || path == "" {
		return "", false
	}
	// A nested endpoint can match and still report not-found when its
	// sub-router misses. Redirecting then would bounce between the twins
	// forever, so only a path that matched nothing at all redirects.
	if _, _, ok := r.path.node.lookup(path); ok {
		return "", false
	}
	var twin string
	if strings.HasSuffix(path, "/") {
		twin = strings.TrimSuffix(path, "/")
	} else {
		twin = path + "/"
	}
	if _, _, ok := r.path.node.lookup(twin); !ok {
		return "", false
	}
	return twin, true
}

// redirectPermanent answers a 308 to the escaped target path, preserving the
// query and any percent-encoding of the original path.
func redirectPermanent(w http.ResponseWriter, req *http.Request, escaped string) {
	u := *req.URL
	u.Path = escaped
	u.RawPath = ""
	if decoded, err := url.PathUnescape(escaped); err == nil && decoded != escaped {
		u.Path = decoded
		u.RawPath = escaped
	}
	http.Redirect(w, req, u.String(), http.StatusPermanentRedirect)
}
