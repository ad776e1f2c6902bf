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

import "errors"

var (
	// ErrRouteConflict indicates a route registration is structurally
	// ambiguous with an earlier registration at the same trie position.
	ErrRouteConflict = errors.New("route conflict")

	// ErrDuplicateMethod indicates the same HTTP method was registered twice
	// for one literal path.
	ErrDuplicateMethod = errors.New("duplicate method for path")

	// ErrInvalidParamEncoding indicates a captured path parameter could not
	// be percent-decoded to valid UTF-8. The value is preserved as this
	// error rather than silently dropped; handlers observe it through
	// ParamsFromContext.
	ErrInvalidParamEncoding = errors.New("invalid percent-encoding in path parameter")

	// ErrNoParams indicates no path parameters are present on the request
	// context, i.e. the request was not dispatched through a Router match.
	ErrNoParams = errors.New("no path parameters in context")

	// ErrResponseWriterNotHijacker indicates the underlying ResponseWriter
	// does not implement http.Hijacker.
	ErrResponseWriterNotHijacker = errors.New("responseWriter does not implement http.Hijacker")

	// ErrServerTimeoutInvalid indicates a server timeout value is not positive.
	ErrServerTimeoutInvalid = errors.New("server timeout must be positive")
)
