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
	"strings"

	"github.com/nestmux/nestmux/pattern"
)

// RouteID is an opaque handle naming one registered endpoint within a router.
// IDs are assigned from a per-router monotonically increasing counter at
// registration time, are never reused within that router, and act as the
// join key between the routing trie and the endpoint table.
type RouteID uint32

// node is the routing trie plus the two auxiliary maps that let the router
// recover the original path string from a RouteID (needed for matched-path
// reconstruction and merging) and detect same-literal-path registrations.
//
// Thread safety: a node is mutated only during the single-threaded
// configuration phase. Router clones share a node and copy it on the next
// mutation (see pathRouter.mutableNode), so a node reachable from a serving
// router is immutable and safe for concurrent reads without locking.
type node struct {
	root          *segNode
	routeIDToPath map[RouteID]string
	pathToRouteID map[string]RouteID
}

// segEdge is a per-segment static child. Children are kept in a slice and
// scanned linearly; route sets are small enough that this beats map hashing
// during traversal.
type segEdge struct {
	label string
	node  *segNode
}

// paramEdge is the single named-capture child a node may have. Two patterns
// registering different capture names at the same position conflict at
// insertion time, so one name per position suffices.
type paramEdge struct {
	name string
	node *segNode
}

// catchAllEdge terminates a pattern with a `{*name}` capture. It has no
// child node: a catch-all consumes the remainder of the path.
type catchAllEdge struct {
	name     string
	routeID  RouteID
	pattern  string
	hasRoute bool
}

// segNode is one position in the trie. At most one route terminates at any
// given node.
type segNode struct {
	edges    []segEdge
	param    *paramEdge
	catchAll *catchAllEdge

	routeID  RouteID
	pattern  string // full registered pattern, set when hasRoute
	hasRoute bool
}

func newNode() *node {
	return &node{
		root:          &segNode{},
		routeIDToPath: make(map[RouteID]string),
		pathToRouteID: make(map[string]RouteID),
	}
}

// clone deep-copies the trie and its auxiliary maps. Used by the
// copy-on-write discipline in pathRouter when a shared node is about to be
// mutated.
func (n *node) clone() *node {
	return &node{
		root:          n.root.clone(),
		routeIDToPath: maps.Clone(n.routeIDToPath),
		pathToRouteID: maps.Clone(n.pathToRouteID),
	}
}

func (s *segNode) clone() *segNode {
	c := &segNode{
		routeID:  s.routeID,
		pattern:  s.pattern,
		hasRoute: s.hasRoute,
	}
	if len(s.edges) > 0 {
		c.edges = make([]segEdge, len(s.edges))
		for i, e := range s.edges {
			c.edges[i] = segEdge{label: e.label, node: e.node.clone()}
		}
	}
	if s.param != nil {
		c.param = &paramEdge{name: s.param.name, node: s.param.node.clone()}
	}
	if s.catchAll != nil {
		ca := *s.catchAll
		c.catchAll = &ca
	}
	return c
}

// findChild returns the static child for the given segment, or nil.
func (s *segNode) findChild(label string) *segNode {
	for i := range s.edges {
		if s.edges[i].label == label {
			return s.edges[i].node
		}
	}
	return nil
}

func (s *segNode) findOrCreateChild(label string) *segNode {
	if child := s.findChild(label); child != nil {
		return child
	}
	child := &segNode{}
	s.edges = append(s.edges, segEdge{label: label, node: child})
	return child
}

// insert adds a compiled pattern to the trie under the given RouteID.
// Structural conflicts with previously registered patterns are rejected:
// a second route terminating at the same position, a capture whose name
// differs from an earlier capture at the same position, and a second
// catch-all at the same depth. The error names the earlier registration so
// the caller can report which route the new one collides with.
func (n *node) insert(p *pattern.Pattern, id RouteID) error {
	path := p.String()
	current := n.root

	for _, seg := range p.Segments() {
		switch seg.Kind {
		case pattern.KindLiteral:
			current = current.findOrCreateChild(seg.Literal)

		case pattern.KindParam:
			if current.param == nil {
				current.param = &paramEdge{name: seg.Name, node: &segNode{}}
			} else if current.param.name != seg.Name {
				return fmt.Errorf("%w: capture {%s} in %q conflicts with capture {%s} registered at the same position",
					ErrRouteConflict, seg.Name, path, current.param.name)
			}
			current = current.param.node

		case pattern.KindCatchAll:
			if current.catchAll != nil {
				return fmt.Errorf("%w: catch-all {*%s} in %q conflicts with previously registered %q",
					ErrRouteConflict, seg.Name, path, current.catchAll.pattern)
			}
			current.catchAll = &catchAllEdge{
				name:     seg.Name,
				routeID:  id,
				pattern:  path,
				hasRoute: true,
			}
			n.recordPath(path, id)
			return nil
		}
	}

	if current.hasRoute {
		return fmt.Errorf("%w: %q conflicts with previously registered %q",
			ErrRouteConflict, path, current.pattern)
	}
	current.routeID = id
	current.pattern = path
	current.hasRoute = true
	n.recordPath(path, id)
	return nil
}

func (n *node) recordPath(path string, id RouteID) {
	n.routeIDToPath[id] = path
	n.pathToRouteID[path] = id
}

// lookup matches a request path against the trie. On a hit it returns the
// winning RouteID and the raw (undecoded) captures in path order. The trie
// reports exact matches only; trailing-slash redirect logic is layered on
// top by the caller via a second lookup with the slash toggled.
func (n *node) lookup(path string) (RouteID, []pattern.Capture, bool) {
	if path == "" || path[0] != '/' {
		return 0, nil, false
	}
	segs := strings.Split(path[1:], "/")
	return n.root.match(segs, nil)
}

// match walks the trie with backtracking. Candidates are tried in priority
// order: static edge, then named capture, then catch-all. If a higher
// priority branch dead-ends deeper in the path, the next candidate at this
// position is tried.
func (s *segNode) match(segs []string, caps []pattern.Capture) (RouteID, []pattern.Capture, bool) {
	if len(segs) == 0 {
		if s.hasRoute {
			return s.routeID, caps, true
		}
		return 0, nil, false
	}

	head, rest := segs[0], segs[1:]

	if next := s.findChild(head); next != nil {
		if id, out, ok := next.match(rest, caps); ok {
			return id, out, true
		}
	}

	if s.param != nil && head != "" {
		withCap := append(caps, pattern.Capture{Name: s.param.name, Value: head})
		if id, out, ok := s.param.node.match(rest, withCap); ok {
			return id, out, true
		}
	}

	if s.catchAll != nil {
		remainder := strings.Join(segs, "/")
		// A catch-all never matches an empty remainder: `/foo/` is not
		// matched by `/foo/{*rest}`. The router registers the slash variant
		// separately when that should resolve.
		if remainder != "" {
			withCap := append(caps, pattern.Capture{Name: s.catchAll.name, Value: remainder})
			return s.catchAll.routeID, withCap, true
		}
	}

	return 0, nil, false
}

// pathFor returns the original path string registered under id.
func (n *node) pathFor(id RouteID) (string, bool) {
	path, ok := n.routeIDToPath[id]
	return path, ok
}

// idFor returns the RouteID registered under the literal path string, used
// to detect same-path method-router merges.
func (n *node) idFor(path string) (RouteID, bool) {
	id, ok := n.pathToRouteID[path]
	return id, ok
}
