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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratesIDWhenMissing(t *testing.T) {
	t.Parallel()

	var seen string
	h := New()(http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		seen = FromContext(req.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestKeepsClientID(t *testing.T) {
	t.Parallel()

	var seen string
	h := New()(http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		seen = FromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "client-123", seen)
	assert.Equal(t, "client-123", rec.Header().Get("X-Request-ID"))
}

func TestRejectsClientIDWhenDisallowed(t *testing.T) {
	t.Parallel()

	var seen string
	h := New(WithAllowClientID(false))(http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		seen = FromContext(req.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotEqual(t, "client-123", seen)
	assert.NotEmpty(t, seen)
}

func TestCustomHeaderAndGenerator(t *testing.T) {
	t.Parallel()

	h := New(
		WithHeader("X-Correlation-ID"),
		WithGenerator(func() string { return "fixed" }),
	)(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "fixed", rec.Header().Get("X-Correlation-ID"))
}

func TestFromContextWithoutMiddleware(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, FromContext(req.Context()))
}
