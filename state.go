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
	"context"
	"net/http"
)

type stateContextKey struct{}

// StateFromContext returns the application state attached to the router with
// WithState, or nil when none was set. Handlers that need typed access should
// assert:
//
//	db := nestmux.StateFromContext(ctx).(*pgxState).DB
func StateFromContext(ctx context.Context) any {
	return ctx.Value(stateContextKey{})
}

// State is a convenience accessor for StateFromContext on a request.
func State(req *http.Request) any {
	return StateFromContext(req.Context())
}

// withState stamps router state on the request. An inner router's own state
// shadows an outer one for handlers below it.
func withState(req *http.Request, state any) *http.Request {
	if state == nil {
		return req
	}
	ctx := context.WithValue(req.Context(), stateContextKey{}, state)
	return req.WithContext(ctx)
}
