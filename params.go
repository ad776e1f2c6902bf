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
	"fmt"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/nestmux/nestmux/pattern"
)

// nestTailParam is the reserved capture name used internally when a whole
// sub-service is nested under a prefix. It never surfaces through Params.
const nestTailParam = "nestmux_nest"

type paramsContextKey struct{}

// ParamValue is a single captured path value. Captures are percent-decoded
// after matching; a value that fails to decode to valid UTF-8 is kept verbatim
// and flagged, surfacing as ErrInvalidParamEncoding on access.
type ParamValue struct {
	Key     string
	Value   string
	invalid bool
}

// Params holds the path captures accumulated across every router involved in
// dispatching the request, outermost first. Nested routers append rather than
// replace, so a handler under "/users/{id}/posts/{post}" sees both captures
// regardless of how the routers were composed.
type Params []ParamValue

// Get returns the decoded value for name. It reports ErrInvalidParamEncoding
// when the raw capture was not valid percent-encoded UTF-8, and ErrNoParams
// when the capture does not exist.
func (ps Params) Get(name string) (string, error) {
	for _, p := range ps {
		if p.Key == name {
			if p.invalid {
				return "", fmt.Errorf("%w: %q", ErrInvalidParamEncoding, name)
			}
			return p.Value, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNoParams, name)
}

// Has reports whether a capture with the given name exists.
func (ps Params) Has(name string) bool {
	for _, p := range ps {
		if p.Key == name {
			return true
		}
	}
	return false
}

// ParamsFromContext returns the accumulated path captures for the request, or
// nil when the request was not dispatched through a Router.
func ParamsFromContext(ctx context.Context) Params {
	ps, _ := ctx.Value(paramsContextKey{}).(Params)
	return ps
}

// PathParam is a convenience accessor for a single capture on a request.
func PathParam(req *http.Request, name string) (string, error) {
	ps := ParamsFromContext(req.Context())
	if ps == nil {
		return "", fmt.Errorf("%w: %q", ErrNoParams, name)
	}
	return ps.Get(name)
}

// appendParams merges freshly captured raw values into the request context.
// Values are decoded here, once, after the match; the internal nest tail
// capture is dropped. The existing slice is never mutated in place because a
// sibling nested dispatch may still hold it.
func appendParams(ctx context.Context, captures []pattern.Capture) context.Context {
	if len(captures) == 0 {
		return ctx
	}
	prev := ParamsFromContext(ctx)
	next := make(Params, len(prev), len(prev)+len(captures))
	copy(next, prev)
	for _, cap := range captures {
		if cap.Name == nestTailParam {
			continue
		}
		value, invalid := decodeParam(cap.Value)
		next = append(next, ParamValue{Key: cap.Name, Value: value, invalid: invalid})
	}
	if len(next) == len(prev) {
		return ctx
	}
	return context.WithValue(ctx, paramsContextKey{}, next)
}

func decodeParam(raw string) (string, bool) {
	decoded, err := url.PathUnescape(raw)
	if err != nil || !utf8.ValidString(decoded) {
		return raw, true
	}
	return decoded, false
}
