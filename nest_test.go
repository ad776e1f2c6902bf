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
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNestBasic(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	var matched, x string
	sub.Route("/a/{x}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		matched = MatchedPath(req)
		x, _ = PathParam(req, "x")
	}))

	r := MustNew()
	r.Nest("/b", sub)

	rec := doRequest(r, http.MethodGet, "/b/a/5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/b/a/{x}", matched)
	assert.Equal(t, "5", x)
}

func TestNestBarePrefixServesInnerRoot(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("root"))
	}))
	sub.Route("/users", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("users"))
	}))

	r := MustNew()
	r.Nest("/api", sub)

	// The bare prefix and its trailing-slash twin both reach the inner root.
	rec := doRequest(r, http.MethodGet, "/api")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "root", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/api/users")
	assert.Equal(t, "users", rec.Body.String())
}

func TestNestBarePrefixWithoutInnerRoot(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/users", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	r := MustNew()
	r.Nest("/api", sub)

	// Neither twin has an inner root route. The miss must reach the outer
	// fallback as a 404, never a redirect to the other twin.
	for _, target := range []string{"/api", "/api/"} {
		rec := doRequest(r, http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
	}
}

func TestNestMissBubblesToOuterFallback(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/users", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	r := MustNew()
	r.Nest("/api", sub)
	r.FallbackFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	rec := doRequest(r, http.MethodGet, "/api/")
	assert.Equal(t, http.StatusGone, rec.Code)

	rec = doRequest(r, http.MethodGet, "/api/missing")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestNestStripsPrefixForInnerHandler(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	var innerPath string
	sub.Route("/users/{id}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		innerPath = req.URL.Path
	}))

	r := MustNew()
	r.Nest("/api", sub)

	doRequest(r, http.MethodGet, "/api/users/9")
	assert.Equal(t, "/users/9", innerPath)
}

// Prefix stripping keeps the remainder's percent-encoding, so a capture in a
// nested router is still decoded exactly once.
func TestNestKeepsEncodingForInnerCaptures(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	var got string
	var gotErr error
	sub.Route("/files/{name}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, gotErr = PathParam(req, "name")
	}))

	r := MustNew()
	r.Nest("/api", sub)

	doRequest(r, http.MethodGet, "/api/files/100%25")
	require.NoError(t, gotErr)
	assert.Equal(t, "100%", got)

	// Same through the re-matching service mount, where the sub-router runs
	// its own lookup on the stripped path.
	r2 := MustNew()
	r2.NestService("/mnt", sub)
	doRequest(r2, http.MethodGet, "/mnt/files/a%2530")
	require.NoError(t, gotErr)
	assert.Equal(t, "a%30", got)
}

func TestNestedPathComposition(t *testing.T) {
	t.Parallel()

	v1 := MustNew()
	var nested, matched, innerPath string
	v1.Route("/users", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		nested = NestedPath(req)
		matched = MatchedPath(req)
		innerPath = req.URL.Path
	}))

	api := MustNew()
	api.Nest("/v1", v1)

	r := MustNew()
	r.Nest("/api", api)

	rec := doRequest(r, http.MethodGet, "/api/v1/users")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/api/v1", nested)
	assert.Equal(t, "/api/v1/users", matched)
	assert.Equal(t, "/users", innerPath)
}

func TestNestParamsAccumulate(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	var tenant, id string
	sub.Route("/items/{id}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		tenant, _ = PathParam(req, "tenant")
		id, _ = PathParam(req, "id")
	}))

	r := MustNew()
	r.Nest("/t/{tenant}", sub)

	rec := doRequest(r, http.MethodGet, "/t/acme/items/3")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "acme", tenant)
	assert.Equal(t, "3", id)
}

func TestNestOriginalURIPreserved(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	var original, stripped string
	sub.Route("/x", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		original = OriginalURI(req).Path
		stripped = req.URL.Path
	}))

	r := MustNew()
	r.Nest("/api", sub)

	doRequest(r, http.MethodGet, "/api/x")
	assert.Equal(t, "/api/x", original)
	assert.Equal(t, "/x", stripped)
}

func TestNestCarriesSubState(t *testing.T) {
	t.Parallel()

	type subState struct{ name string }

	sub := MustNew()
	sub.WithState(&subState{name: "inner"})
	var got *subState
	sub.Route("/x", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, _ = State(req).(*subState)
	}))

	r := MustNew()
	r.WithState("outer")
	r.Nest("/api", sub)

	doRequest(r, http.MethodGet, "/api/x")
	require.NotNil(t, got)
	assert.Equal(t, "inner", got.name)
}

func TestNestSnapshotsSubRouter(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/a", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	r := MustNew()
	r.Nest("/api", sub)

	// Routes added after nesting belong only to the original sub-router.
	sub.Route("/b", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/a").Code)
	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/api/b").Code)
}

func TestNestRejectsWildcardPrefix(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/x", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	r := MustNew()
	assert.Panics(t, func() { r.Nest("/{*rest}", sub) })

	legacy := MustNew(WithLegacySyntax())
	assert.Panics(t, func() { legacy.Nest("/*rest", sub) })
}

func TestNestRejectsRootPrefix(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	r := MustNew()
	assert.Panics(t, func() { r.Nest("/", sub) })
}

func TestNestRejectsSubWithFallback(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.FallbackFunc(func(_ http.ResponseWriter, _ *http.Request) {})

	r := MustNew()
	assert.Panics(t, func() { r.Nest("/api", sub) })
}

func TestNestService(t *testing.T) {
	t.Parallel()

	var seen []string
	svc := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = append(seen, req.URL.Path)
		fmt.Fprintf(w, "nested=%s matched=%s", NestedPath(req), MatchedPath(req))
	})

	r := MustNew()
	r.NestService("/assets", svc)

	rec := doRequest(r, http.MethodGet, "/assets/css/site.css")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nested=/assets matched=/assets", rec.Body.String())

	doRequest(r, http.MethodGet, "/assets")
	doRequest(r, http.MethodGet, "/assets/")

	assert.Equal(t, []string{"/css/site.css", "/", "/"}, seen)
}

func TestNestServiceAcceptsRouter(t *testing.T) {
	t.Parallel()

	sub := MustNew()
	sub.Route("/x", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("x"))
	}))

	r := MustNew()
	r.NestService("/api", sub)
	r.FallbackFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	assert.Equal(t, "x", doRequest(r, http.MethodGet, "/api/x").Body.String())

	// A nested *Router keeps bubbling misses outward even when mounted via
	// NestService.
	assert.Equal(t, http.StatusGone, doRequest(r, http.MethodGet, "/api/missing").Code)
}

func TestNestThreeLevels(t *testing.T) {
	t.Parallel()

	leaf := MustNew()
	var matched string
	leaf.Route("/{id}", GetFunc(func(w http.ResponseWriter, req *http.Request) {
		matched = MatchedPath(req)
		id, _ := PathParam(req, "id")
		w.Write([]byte(id))
	}))

	mid := MustNew()
	mid.Nest("/posts", leaf)

	r := MustNew()
	r.Nest("/api", mid)

	rec := doRequest(r, http.MethodGet, "/api/posts/7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", rec.Body.String())
	assert.Equal(t, "/api/posts/{id}", matched)
}
