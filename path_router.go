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
	"sort"
	"strings"

	"github.com/nestmux/nestmux/pattern"
)

// dispatchResult classifies what a call produced. Not-found and
// method-not-allowed are signals, not responses: the enclosing router's
// fallback machinery decides what to write, so a custom fallback can override
// a 405 while a default 404 cannot.
type dispatchResult int

const (
	dispatchServed dispatchResult = iota
	dispatchNotFound
	dispatchMethodNotAllowed
)

type callOutcome struct {
	result       dispatchResult
	routePattern string
	allow        []string
}

func servedOutcome(routePattern string) callOutcome {
	return callOutcome{result: dispatchServed, routePattern: routePattern}
}

// nestedRouter is the endpoint behind a nest prefix. Either router or service
// is set: a nested Router recurses into its own dispatch so misses bubble up
// to the outer fallback, while an opaque service always handles the request
// itself.
type nestedRouter struct {
	prefix     string
	router     *Router
	service    http.Handler
	middleware []Middleware
}

func (n *nestedRouter) layer(middleware ...Middleware) *nestedRouter {
	out := *n
	out.middleware = append(append([]Middleware(nil), middleware...), n.middleware...)
	return &out
}

// call strips the prefix, stamps NestedPath, and hands the request inward.
// Middleware wraps the whole of that; a middleware that short-circuits
// counts as served.
func (n *nestedRouter) call(w http.ResponseWriter, req *http.Request) callOutcome {
	outcome := servedOutcome("")
	var core http.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if n.router != nil {
			outcome = n.router.dispatch(w, req)
			return
		}
		n.service.ServeHTTP(w, req)
	})
	core = nestedPathLayer(n.prefix)(stripPrefix(n.prefix)(core))
	for i := len(n.middleware) - 1; i >= 0; i-- {
		core = n.middleware[i](core)
	}
	core.ServeHTTP(w, req)
	return outcome
}

// pathRouter owns the trie and the endpoint table. Registration conflicts are
// reported as errors here; the Router facade turns them into panics because
// they are construction-time programming mistakes.
type pathRouter struct {
	routes       map[RouteID]*endpoint
	node         *node
	sharedNode   bool
	prevRouteID  RouteID
	legacySyntax bool
}

func newPathRouter() *pathRouter {
	return &pathRouter{
		routes: make(map[RouteID]*endpoint),
		node:   newNode(),
	}
}

// clone shares the trie between the copies until either side mutates it.
func (p *pathRouter) clone() *pathRouter {
	p.sharedNode = true
	return &pathRouter{
		routes:       maps.Clone(p.routes),
		node:         p.node,
		sharedNode:   true,
		prevRouteID:  p.prevRouteID,
		legacySyntax: p.legacySyntax,
	}
}

// mutableNode deep-copies the trie if another router still holds it.
func (p *pathRouter) mutableNode() *node {
	if p.sharedNode {
		p.node = p.node.clone()
		p.sharedNode = false
	}
	return p.node
}

func (p *pathRouter) nextRouteID() RouteID {
	p.prevRouteID++
	return p.prevRouteID
}

func (p *pathRouter) compilePattern(path string) (*pattern.Pattern, error) {
	if p.legacySyntax {
		return pattern.CompileLegacy(path)
	}
	return pattern.Compile(path)
}

// route registers a method router at path, merging with an existing method
// router at the same literal path under the original RouteID.
func (p *pathRouter) route(path string, m *MethodRouter) error {
	if id, ok := p.node.idFor(path); ok {
		existing := p.routes[id]
		if existing.method == nil {
			return fmt.Errorf("%w: %q already registered as a service or nested router", ErrRouteConflict, path)
		}
		merged := existing.method.clone()
		if err := merged.merge(m, path); err != nil {
			return err
		}
		p.routes[id] = methodEndpoint(merged)
		return nil
	}
	return p.insertEndpoint(path, methodEndpoint(m))
}

// routeService registers a bare service. A *Router must go through nest
// because bare-service routing strips no prefixes and keeps no nested-path
// bookkeeping.
func (p *pathRouter) routeService(path string, svc http.Handler) error {
	if _, isRouter := svc.(*Router); isRouter {
		return fmt.Errorf("%w: cannot route a *Router as a service at %q, use Nest instead", ErrRouteConflict, path)
	}
	return p.insertEndpoint(path, routeEndpoint(newRoute(svc)))
}

func (p *pathRouter) insertEndpoint(path string, ep *endpoint) error {
	pat, err := p.compilePattern(path)
	if err != nil {
		return err
	}
	id := p.nextRouteID()
	n := p.mutableNode()
	if err := n.insert(pat, id); err != nil {
		p.prevRouteID--
		return err
	}
	p.routes[id] = ep
	return nil
}

// validNestPrefix rejects prefixes that cannot anchor a nested router. A
// wildcard prefix is ambiguous with the nested router's own matching.
func (p *pathRouter) validNestPrefix(prefix string) error {
	if len(prefix) < 2 || prefix[0] != '/' {
		return fmt.Errorf("%w: invalid nest prefix %q", ErrRouteConflict, prefix)
	}
	pat, err := p.compilePattern(prefix)
	if err != nil {
		return err
	}
	if pat.HasCatchAll() {
		return fmt.Errorf("%w: cannot nest at wildcard prefix %q", ErrRouteConflict, prefix)
	}
	return nil
}

// nest flattens the sub-router into this one. Every inner route is
// re-registered at the concatenated path behind prefix-stripping and
// nested-path layers, so the inner handler still sees its own view of the
// URL. The bare prefix and its trailing-slash twin are registered too, when
// free, so "/api" matches after nesting at "/api" even with no deeper path.
func (p *pathRouter) nest(prefix string, sub *Router) error {
	if err := p.validNestPrefix(prefix); err != nil {
		return err
	}
	if sub.customFallback {
		return fmt.Errorf("%w: cannot nest a router with its own fallback at %q", ErrRouteConflict, prefix)
	}
	trimmed := strings.TrimSuffix(prefix, "/")

	p.legacySyntax = p.legacySyntax || sub.path.legacySyntax

	nestLayers := []Middleware{nestedPathLayer(trimmed), stripPrefix(trimmed)}
	if sub.state != nil {
		state := sub.state
		nestLayers = append([]Middleware{func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, withState(req, state))
			})
		}}, nestLayers...)
	}

	ids := make([]RouteID, 0, len(sub.path.routes))
	for id := range sub.path.routes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		inner, _ := sub.path.node.pathFor(id)
		full := pathForNestedRoute(prefix, inner)
		ep := sub.path.routes[id].layer(nestLayers...)
		var err error
		if ep.method != nil {
			err = p.route(full, ep.method)
		} else {
			err = p.insertEndpoint(full, ep)
		}
		if err != nil {
			return err
		}
	}

	nested := &nestedRouter{prefix: trimmed, router: sub}
	for _, extra := range []string{trimmed, trimmed + "/"} {
		if _, taken := p.node.idFor(extra); taken {
			continue
		}
		if err := p.insertEndpoint(extra, nestedEndpoint(nested)); err != nil {
			return err
		}
	}
	return nil
}

// nestService mounts an opaque handler under a prefix. The tail wildcard
// hands every deeper path to the service; the bare prefix and its
// trailing-slash twin are covered separately because a wildcard requires a
// separator.
func (p *pathRouter) nestService(prefix string, svc http.Handler) error {
	if err := p.validNestPrefix(prefix); err != nil {
		return err
	}
	trimmed := strings.TrimSuffix(prefix, "/")
	nested := &nestedRouter{prefix: trimmed, service: svc}
	if sub, isRouter := svc.(*Router); isRouter {
		if sub.customFallback {
			return fmt.Errorf("%w: cannot nest a router with its own fallback at %q", ErrRouteConflict, prefix)
		}
		nested = &nestedRouter{prefix: trimmed, router: sub}
	}
	for _, path := range []string{trimmed, trimmed + "/", trimmed + "/{*" + nestTailParam + "}"} {
		if err := p.insertEndpoint(path, nestedEndpoint(nested)); err != nil {
			return err
		}
	}
	return nil
}

// merge re-registers every route of the other router here, preserving
// same-path method-router union semantics. The legacy syntax flag is
// OR-combined so recovered paths recompile the way they were written.
func (p *pathRouter) merge(other *pathRouter) error {
	p.legacySyntax = p.legacySyntax || other.legacySyntax
	ids := make([]RouteID, 0, len(other.routes))
	for id := range other.routes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		path, ok := other.node.pathFor(id)
		if !ok {
			return fmt.Errorf("%w: no path recorded for route %d", ErrRouteConflict, id)
		}
		ep := other.routes[id]
		var err error
		if ep.method != nil {
			err = p.route(path, ep.method.clone())
		} else {
			err = p.insertEndpoint(path, ep)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// layer wraps every endpoint. The Router facade layers its fallback
// separately.
func (p *pathRouter) layer(middleware ...Middleware) {
	for id, ep := range p.routes {
		p.routes[id] = ep.layer(middleware...)
	}
}

// routeLayer is layer minus the fallback. Calling it with nothing registered
// is almost always a statement-ordering bug, so it errors.
func (p *pathRouter) routeLayer(middleware ...Middleware) error {
	if len(p.routes) == 0 {
		return fmt.Errorf("%w: RouteLayer called before any route was registered", ErrRouteConflict)
	}
	p.layer(middleware...)
	return nil
}

// call resolves the request path to an endpoint and dispatches it. A miss is
// reported, not answered; redirect and fallback decisions belong to the
// Router.
//
// Matching runs on the escaped path, so an encoded slash stays inside its
// segment and capture values reach appendParams in their raw form, to be
// decoded exactly once there.
func (p *pathRouter) call(w http.ResponseWriter, req *http.Request) callOutcome {
	id, caps, ok := p.node.lookup(req.URL.EscapedPath())
	if !ok {
		return callOutcome{result: dispatchNotFound}
	}
	ep := p.routes[id]
	routePattern, _ := p.node.pathFor(id)

	ctx := appendParams(req.Context(), caps)
	ctx = withMatchedPath(ctx, routePattern)
	req = req.WithContext(ctx)
	matched := MatchedPathFromContext(ctx)

	switch {
	case ep.method != nil:
		return ep.method.call(w, req, matched)
	case ep.route != nil:
		ep.route.ServeHTTP(w, req)
		return servedOutcome(matched)
	case ep.nested != nil:
		return ep.nested.call(w, req)
	}
	return callOutcome{result: dispatchNotFound}
}

// pathForNestedRoute concatenates a nest prefix and an inner route path
// without doubling or dropping separators. An inner "/" collapses onto the
// bare prefix.
func pathForNestedRoute(prefix, path string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix + strings.TrimPrefix(path, "/")
	}
	if path == "/" {
		return prefix
	}
	return prefix + path
}
