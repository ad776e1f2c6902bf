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

// endpoint is what a RouteID resolves to. Exactly one field is set:
// a method dispatcher, a plain service route, or a nested sub-router
// reached through a prefix.
type endpoint struct {
	method *MethodRouter
	route  *Route
	nested *nestedRouter
}

func methodEndpoint(m *MethodRouter) *endpoint { return &endpoint{method: m} }

func routeEndpoint(r *Route) *endpoint { return &endpoint{route: r} }

func nestedEndpoint(n *nestedRouter) *endpoint { return &endpoint{nested: n} }

// layer wraps middleware around whichever variant this endpoint holds.
func (e *endpoint) layer(middleware ...Middleware) *endpoint {
	switch {
	case e.method != nil:
		return methodEndpoint(e.method.layer(middleware...))
	case e.route != nil:
		return routeEndpoint(e.route.layer(middleware...))
	case e.nested != nil:
		return nestedEndpoint(e.nested.layer(middleware...))
	}
	return e
}
