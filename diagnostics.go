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

// DiagnosticEvent represents a router diagnostic. These are informational
// events surfacing configuration decisions and edge cases; the router
// functions identically whether they are collected or not.
type DiagnosticEvent struct {
	Kind    DiagnosticKind
	Message string
	Fields  map[string]any
}

// DiagnosticKind categorizes diagnostic events.
type DiagnosticKind string

const (
	DiagRouteRegistered       DiagnosticKind = "route_registered"
	DiagTrailingSlashRedirect DiagnosticKind = "trailing_slash_redirect"
	DiagH2CEnabled            DiagnosticKind = "h2c_enabled"
)

// DiagnosticHandler receives diagnostic events from the router.
// Implementations may log, emit metrics, or ignore them.
//
// Example with logging:
//
//	handler := nestmux.DiagnosticHandlerFunc(func(e nestmux.DiagnosticEvent) {
//	    slog.Info(e.Message, "kind", e.Kind, "fields", e.Fields)
//	})
//	r := nestmux.MustNew(nestmux.WithDiagnostics(handler))
type DiagnosticHandler interface {
	OnDiagnostic(DiagnosticEvent)
}

// DiagnosticHandlerFunc is a function adapter for DiagnosticHandler.
type DiagnosticHandlerFunc func(DiagnosticEvent)

func (f DiagnosticHandlerFunc) OnDiagnostic(e DiagnosticEvent) {
	f(e)
}
