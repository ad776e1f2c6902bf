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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(r *Router, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouterBasicDispatch(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("home"))
	}))
	r.Route("/users/{id}", GetFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := PathParam(req, "id")
		require.NoError(t, err)
		fmt.Fprintf(w, "user %s", id)
	}))

	rec := doRequest(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "home", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/users/42")
	assert.Equal(t, "user 42", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterMatchedPath(t *testing.T) {
	t.Parallel()

	r := MustNew()
	var matched string
	r.Route("/users/{id}/posts/{post}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		matched = MatchedPath(req)
	}))

	doRequest(r, http.MethodGet, "/users/1/posts/2")
	assert.Equal(t, "/users/{id}/posts/{post}", matched)
}

func TestRouterParamDecoding(t *testing.T) {
	t.Parallel()

	r := MustNew()
	var got string
	var gotErr error
	r.Route("/files/{name}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, gotErr = PathParam(req, "name")
	}))

	doRequest(r, http.MethodGet, "/files/a%20b")
	require.NoError(t, gotErr)
	assert.Equal(t, "a b", got)

	// %ff decodes to a byte that is not valid UTF-8; the error must surface
	// at access time, not be swallowed.
	doRequest(r, http.MethodGet, "/files/%ff")
	assert.ErrorIs(t, gotErr, ErrInvalidParamEncoding)

	r2 := MustNew()
	r2.Route("/x", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		_, gotErr = PathParam(req, "nope")
	}))
	doRequest(r2, http.MethodGet, "/x")
	assert.ErrorIs(t, gotErr, ErrNoParams)
}

// Matching runs on the escaped path, so captures reach the handler decoded
// exactly once. Double-decoding would corrupt an encoded percent sign and
// falsely reject values whose single decode is fine.
func TestRouterParamDecodedOnce(t *testing.T) {
	t.Parallel()

	r := MustNew()
	var got string
	var gotErr error
	r.Route("/files/{name}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, gotErr = PathParam(req, "name")
	}))

	// %2530 is an encoded "%30"; a second decode would collapse it to "0".
	doRequest(r, http.MethodGet, "/files/a%2530")
	require.NoError(t, gotErr)
	assert.Equal(t, "a%30", got)

	// "100%25" decodes to "100%", which must not be re-decoded and rejected.
	doRequest(r, http.MethodGet, "/files/100%25")
	require.NoError(t, gotErr)
	assert.Equal(t, "100%", got)
}

// An encoded slash belongs to its segment and must not split the path.
func TestRouterEncodedSlashStaysInSegment(t *testing.T) {
	t.Parallel()

	r := MustNew()
	var got string
	r.Route("/files/{name}", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, _ = PathParam(req, "name")
	}))
	r.Route("/files/{name}/{file}", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("two segments"))
	}))

	rec := doRequest(r, http.MethodGet, "/files/a%2Fb")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a/b", got)
}

func TestTrailingSlashRedirect(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/foo", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("no slash"))
	}))
	r.Route("/bar/", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("slash"))
	}))

	// Registered variant serves directly.
	rec := doRequest(r, http.MethodGet, "/foo")
	assert.Equal(t, http.StatusOK, rec.Code)

	// Missing variant redirects to its twin, both directions.
	rec = doRequest(r, http.MethodGet, "/foo/")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/foo", rec.Header().Get("Location"))

	rec = doRequest(r, http.MethodGet, "/bar")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/bar/", rec.Header().Get("Location"))
}

func TestTrailingSlashBothRegistered(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/foo", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("bare"))
	}))
	r.Route("/foo/", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("slashed"))
	}))

	rec := doRequest(r, http.MethodGet, "/foo")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bare", rec.Body.String())

	rec = doRequest(r, http.MethodGet, "/foo/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "slashed", rec.Body.String())
}

func TestTrailingSlashRedirectPreservesQuery(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/foo", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(r, http.MethodGet, "/foo/?page=2")
	require.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/foo?page=2", rec.Header().Get("Location"))
}

func TestTrailingSlashRootNeverRedirects(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/other", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(r, http.MethodGet, "/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithoutTrailingSlashRedirect(t *testing.T) {
	t.Parallel()

	r := MustNew(WithoutTrailingSlashRedirect())
	r.Route("/foo", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(r, http.MethodGet, "/foo/")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomFallback(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/items", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	r.FallbackFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		w.Write([]byte("gone"))
	})

	rec := doRequest(r, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "gone", rec.Body.String())

	// An explicit fallback also takes over method-not-allowed misses.
	rec = doRequest(r, http.MethodPost, "/items")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestDefault405KeptWithDefaultFallback(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/items", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	rec := doRequest(r, http.MethodPost, "/items")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET,HEAD", rec.Header().Get("Allow"))
}

func TestMerge(t *testing.T) {
	t.Parallel()

	users := MustNew()
	users.Route("/users", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("users"))
	}))

	teams := MustNew()
	teams.Route("/teams", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("teams"))
	}))
	teams.FallbackFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	users.Merge(teams)

	assert.Equal(t, "users", doRequest(users, http.MethodGet, "/users").Body.String())
	assert.Equal(t, "teams", doRequest(users, http.MethodGet, "/teams").Body.String())

	// The explicit fallback from the merged router wins over the default.
	assert.Equal(t, http.StatusTeapot, doRequest(users, http.MethodGet, "/nope").Code)
}

func TestMergeUnionsMethodsAtSamePath(t *testing.T) {
	t.Parallel()

	a := MustNew()
	a.Route("/items", GetFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("get"))
	}))

	b := MustNew()
	b.Route("/items", PostFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("post"))
	}))

	a.Merge(b)

	assert.Equal(t, "get", doRequest(a, http.MethodGet, "/items").Body.String())
	assert.Equal(t, "post", doRequest(a, http.MethodPost, "/items").Body.String())
}

func TestMergeTwoFallbacksPanics(t *testing.T) {
	t.Parallel()

	a := MustNew()
	a.FallbackFunc(func(_ http.ResponseWriter, _ *http.Request) {})
	b := MustNew()
	b.FallbackFunc(func(_ http.ResponseWriter, _ *http.Request) {})

	assert.Panics(t, func() { a.Merge(b) })
}

func TestMergeConflictPanics(t *testing.T) {
	t.Parallel()

	a := MustNew()
	a.RouteService("/x", textHandler("a"))
	b := MustNew()
	b.RouteService("/x", textHandler("b"))

	assert.Panics(t, func() { a.Merge(b) })
}

func TestMergeCarriesLegacySyntax(t *testing.T) {
	t.Parallel()

	legacy := MustNew(WithLegacySyntax())
	legacy.Route("/old/:id", GetFunc(func(w http.ResponseWriter, req *http.Request) {
		id, _ := PathParam(req, "id")
		w.Write([]byte(id))
	}))

	modern := MustNew()
	modern.Merge(legacy)

	assert.Equal(t, "5", doRequest(modern, http.MethodGet, "/old/5").Body.String())
}

func TestRouteServiceRejectsRouter(t *testing.T) {
	t.Parallel()

	r := MustNew()
	sub := MustNew()

	assert.Panics(t, func() { r.RouteService("/sub", sub) })
}

func TestRouteServiceServesAllMethods(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.RouteService("/any", textHandler("svc"))

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodDelete} {
		rec := doRequest(r, method, "/any")
		assert.Equal(t, "svc", rec.Body.String())
	}
}

func TestLayerOrderAndFallbackCoverage(t *testing.T) {
	t.Parallel()

	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.Header().Add("X-Order", name)
				next.ServeHTTP(w, req)
			})
		}
	}

	r := MustNew()
	r.Route("/x", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	r.Layer(tag("outer"), tag("inner"))

	rec := doRequest(r, http.MethodGet, "/x")
	assert.Equal(t, []string{"outer", "inner"}, rec.Header().Values("X-Order"))

	// Layer also wraps the fallback.
	rec = doRequest(r, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, []string{"outer", "inner"}, rec.Header().Values("X-Order"))
}

func TestRouteLayerSkipsFallback(t *testing.T) {
	t.Parallel()

	mark := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-Marked", "yes")
			next.ServeHTTP(w, req)
		})
	}

	r := MustNew()
	r.Route("/x", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	r.RouteLayer(mark)

	rec := doRequest(r, http.MethodGet, "/x")
	assert.Equal(t, "yes", rec.Header().Get("X-Marked"))

	rec = doRequest(r, http.MethodGet, "/missing")
	assert.Empty(t, rec.Header().Get("X-Marked"))
}

func TestRouteLayerBeforeRoutesPanics(t *testing.T) {
	t.Parallel()

	r := MustNew()
	assert.Panics(t, func() {
		r.RouteLayer(func(next http.Handler) http.Handler { return next })
	})
}

func TestLegacySyntaxOption(t *testing.T) {
	t.Parallel()

	r := MustNew(WithLegacySyntax())
	var id string
	r.Route("/users/:id", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		id, _ = PathParam(req, "id")
	}))

	doRequest(r, http.MethodGet, "/users/7")
	assert.Equal(t, "7", id)
}

func TestLegacySyntaxRejectedByDefault(t *testing.T) {
	t.Parallel()

	r := MustNew()
	defer func() {
		v := recover()
		require.NotNil(t, v)
		assert.Contains(t, fmt.Sprint(v), "legacy capture syntax")
	}()
	r.Route("/users/:id", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
}

func TestWithState(t *testing.T) {
	t.Parallel()

	type appState struct{ name string }

	r := MustNew()
	r.WithState(&appState{name: "prod"})
	var got *appState
	r.Route("/x", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		got, _ = State(req).(*appState)
	}))

	doRequest(r, http.MethodGet, "/x")
	require.NotNil(t, got)
	assert.Equal(t, "prod", got.name)
}

func TestCloneIsIndependent(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/a", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	c := r.Clone()
	c.Route("/b", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	assert.Equal(t, http.StatusNotFound, doRequest(r, http.MethodGet, "/b").Code)
	assert.Equal(t, http.StatusOK, doRequest(c, http.MethodGet, "/a").Code)
	assert.Equal(t, http.StatusOK, doRequest(c, http.MethodGet, "/b").Code)
}

func TestRoutesIntrospection(t *testing.T) {
	t.Parallel()

	r := MustNew()
	r.Route("/users", Get(textHandler("l")).Post(textHandler("c")))
	r.RouteService("/raw", textHandler("s"))

	infos := r.Routes()
	require.Len(t, infos, 2)
	assert.Equal(t, "/raw", infos[0].Path)
	assert.Equal(t, "service", infos[0].Kind)
	assert.Equal(t, "/users", infos[1].Path)
	assert.Equal(t, "method", infos[1].Kind)
	assert.Equal(t, []string{"GET", "HEAD", "POST"}, infos[1].Methods)
}

func TestOriginalURIStamped(t *testing.T) {
	t.Parallel()

	r := MustNew()
	var uri string
	r.Route("/x", GetFunc(func(_ http.ResponseWriter, req *http.Request) {
		uri = OriginalURI(req).Path
	}))

	doRequest(r, http.MethodGet, "/x")
	assert.Equal(t, "/x", uri)
}

func TestDiagnosticsEmitted(t *testing.T) {
	t.Parallel()

	var events []DiagnosticEvent
	r := MustNew(WithDiagnostics(DiagnosticHandlerFunc(func(e DiagnosticEvent) {
		events = append(events, e)
	})))
	r.Route("/x", GetFunc(func(_ http.ResponseWriter, _ *http.Request) {}))

	require.NotEmpty(t, events)
	assert.Equal(t, DiagRouteRegistered, events[0].Kind)

	doRequest(r, http.MethodGet, "/x/")
	last := events[len(events)-1]
	assert.Equal(t, DiagTrailingSlashRedirect, last.Kind)
}

func TestServerTimeoutValidation(t *testing.T) {
	t.Parallel()

	_, err := New(WithServerTimeouts(-1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrServerTimeoutInvalid)

	r, err := New(WithServerTimeouts(1, 2, 3, 4))
	require.NoError(t, err)
	assert.NotNil(t, r.serverTimeouts)
}
