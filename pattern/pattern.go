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

// Package pattern compiles route path strings into matchable patterns.
//
// A route path is a sequence of `/`-separated segments. Three segment kinds
// are supported:
//
//   - literal segments, matched byte-for-byte: "/users/all"
//   - named captures, matching exactly one segment: "/users/{id}"
//   - a catch-all capture, matching the remainder of the path and only
//     allowed in final position: "/assets/{*filepath}"
//
// The legacy ":name" and "*name" forms are accepted only by CompileLegacy;
// Compile rejects them with a diagnostic pointing at the `{}` syntax so the
// two styles cannot be mixed accidentally.
//
// Trailing slashes are significant: "/users" and "/users/" compile to
// distinct patterns. The router layers redirect behavior on top of that
// distinction; the pattern package itself only reports exact matches.
package pattern

import (
	"fmt"
	"strings"
)

// Kind identifies what a segment matches.
type Kind int

const (
	// KindLiteral matches the segment text exactly.
	KindLiteral Kind = iota

	// KindParam matches any single non-empty segment and captures it.
	KindParam

	// KindCatchAll matches the non-empty remainder of the path and captures
	// it. Only valid as the final segment.
	KindCatchAll
)

// Segment is one compiled path segment.
type Segment struct {
	Kind    Kind
	Literal string // literal text, set for KindLiteral
	Name    string // capture name, set for KindParam and KindCatchAll
}

// Pattern is the immutable compiled form of a route path string.
// A Pattern is created once at registration time and shared read-only
// afterwards.
type Pattern struct {
	raw      string
	segments []Segment
	catchAll bool
}

// Capture is one (name, raw value) pair produced by matching. Values are the
// raw path substrings; percent-decoding is the caller's concern and happens
// after matching.
type Capture struct {
	Name  string
	Value string
}

// Compile parses a route path string using the `{name}` / `{*name}` syntax.
// Legacy `:name` / `*name` segments are rejected with a diagnostic.
func Compile(path string) (*Pattern, error) {
	return compile(path, false)
}

// CompileLegacy parses a route path string accepting both the `{name}`
// syntax and the legacy `:name` / `*name` forms.
func CompileLegacy(path string) (*Pattern, error) {
	return compile(path, true)
}

func compile(path string, legacy bool) (*Pattern, error) {
	if path == "" {
		return nil, fmt.Errorf("paths must start with a `/`; use \"/\" for root routes")
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("paths must start with a `/`, got %q", path)
	}

	rawSegments := strings.Split(path[1:], "/")
	p := &Pattern{
		raw:      path,
		segments: make([]Segment, 0, len(rawSegments)),
	}
	seen := make(map[string]struct{}, 2)

	for i, raw := range rawSegments {
		last := i == len(rawSegments)-1

		seg, err := compileSegment(raw, legacy)
		if err != nil {
			return nil, fmt.Errorf("invalid route %q: %w", path, err)
		}

		if seg.Kind == KindCatchAll {
			if !last {
				return nil, fmt.Errorf("invalid route %q: catch-all segment {*%s} must be the final segment", path, seg.Name)
			}
			p.catchAll = true
		}

		if seg.Kind != KindLiteral {
			if _, dup := seen[seg.Name]; dup {
				return nil, fmt.Errorf("invalid route %q: capture name %q used more than once", path, seg.Name)
			}
			seen[seg.Name] = struct{}{}
		}

		p.segments = append(p.segments, seg)
	}

	return p, nil
}

func compileSegment(raw string, legacy bool) (Segment, error) {
	switch {
	case strings.HasPrefix(raw, "{") && strings.HasSuffix(raw, "}") && len(raw) >= 2:
		inner := raw[1 : len(raw)-1]
		if name, ok := strings.CutPrefix(inner, "*"); ok {
			if name == "" {
				return Segment{}, fmt.Errorf("catch-all capture %q has no name", raw)
			}
			if strings.ContainsAny(name, "{}*:/") {
				return Segment{}, fmt.Errorf("capture name %q contains reserved characters", name)
			}
			return Segment{Kind: KindCatchAll, Name: name}, nil
		}
		if inner == "" {
			return Segment{}, fmt.Errorf("capture %q has no name", raw)
		}
		if strings.ContainsAny(inner, "{}*:/") {
			return Segment{}, fmt.Errorf("capture name %q contains reserved characters", inner)
		}
		return Segment{Kind: KindParam, Name: inner}, nil

	case strings.ContainsAny(raw, "{}"):
		return Segment{}, fmt.Errorf("segment %q has unbalanced capture braces", raw)

	case strings.HasPrefix(raw, ":"):
		if !legacy {
			return Segment{}, fmt.Errorf("segment %q uses legacy capture syntax; write {%s} or opt in with WithLegacySyntax", raw, raw[1:])
		}
		if raw == ":" {
			return Segment{}, fmt.Errorf("capture %q has no name", raw)
		}
		return Segment{Kind: KindParam, Name: raw[1:]}, nil

	case strings.HasPrefix(raw, "*"):
		if !legacy {
			return Segment{}, fmt.Errorf("segment %q uses legacy catch-all syntax; write {*%s} or opt in with WithLegacySyntax", raw, raw[1:])
		}
		if raw == "*" {
			return Segment{}, fmt.Errorf("catch-all capture %q has no name", raw)
		}
		return Segment{Kind: KindCatchAll, Name: raw[1:]}, nil

	default:
		return Segment{Kind: KindLiteral, Literal: raw}, nil
	}
}

// String returns the original route path the pattern was compiled from.
func (p *Pattern) String() string { return p.raw }

// Segments returns the compiled segments. The returned slice must not be
// modified.
func (p *Pattern) Segments() []Segment { return p.segments }

// HasCatchAll reports whether the final segment is a catch-all capture.
func (p *Pattern) HasCatchAll() bool { return p.catchAll }

// CaptureNames returns the capture names in declaration order.
func (p *Pattern) CaptureNames() []string {
	var names []string
	for _, seg := range p.segments {
		if seg.Kind != KindLiteral {
			names = append(names, seg.Name)
		}
	}
	return names
}

// Match matches a concrete request path against the pattern. The match is
// anchored: the entire path must be consumed. On success it returns the
// captures in declaration order with raw (undecoded) values.
func (p *Pattern) Match(path string) ([]Capture, bool) {
	if path == "" || path[0] != '/' {
		return nil, false
	}

	segs := strings.Split(path[1:], "/")
	var caps []Capture

	for i, seg := range p.segments {
		switch seg.Kind {
		case KindLiteral:
			if i >= len(segs) || segs[i] != seg.Literal {
				return nil, false
			}
		case KindParam:
			if i >= len(segs) || segs[i] == "" {
				return nil, false
			}
			caps = append(caps, Capture{Name: seg.Name, Value: segs[i]})
		case KindCatchAll:
			rest := strings.Join(segs[i:], "/")
			if rest == "" {
				return nil, false
			}
			caps = append(caps, Capture{Name: seg.Name, Value: rest})
			return caps, true
		}
	}

	if len(segs) != len(p.segments) {
		return nil, false
	}
	return caps, true
}
