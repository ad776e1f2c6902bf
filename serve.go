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

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Serve starts an HTTP server on addr and blocks until it exits. The server
// is configured with production-safe timeouts to prevent slowloris attacks
// and resource exhaustion; override them with WithServerTimeouts. H2C is
// enabled when the router was built with WithH2C.
//
// For graceful shutdown, call Shutdown from another goroutine:
//
//	go func() {
//	    if err := r.Serve(":8080"); err != nil && err != http.ErrServerClosed {
//	        log.Fatal(err)
//	    }
//	}()
//	<-quit
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	r.Shutdown(ctx)
func (r *Router) Serve(addr string) error {
	h := http.Handler(r)
	if r.enableH2C {
		h = h2c.NewHandler(h, &http2.Server{})
		r.emit(DiagH2CEnabled, "h2c enabled; use only in dev or behind a trusted LB", nil)
	}
	srv := r.newServer(addr, h)
	r.logger.Info("starting server", "addr", addr, "h2c", r.enableH2C)
	return srv.ListenAndServe()
}

// ServeTLS starts an HTTPS server on addr and blocks until it exits. HTTP/2
// is negotiated automatically via ALPN.
func (r *Router) ServeTLS(addr, certFile, keyFile string) error {
	srv := r.newServer(addr, r)
	r.logger.Info("starting TLS server", "addr", addr)
	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (r *Router) newServer(addr string, h http.Handler) *http.Server {
	timeouts := r.serverTimeouts
	if timeouts == nil {
		timeouts = defaultServerTimeouts()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: timeouts.readHeader,
		ReadTimeout:       timeouts.read,
		WriteTimeout:      timeouts.write,
		IdleTimeout:       timeouts.idle,
	}
	r.serverMu.Lock()
	r.server = srv
	r.serverMu.Unlock()
	return srv
}

// Shutdown gracefully shuts down a server started by Serve or ServeTLS
// without interrupting active connections. It returns nil if no server is
// running.
func (r *Router) Shutdown(ctx context.Context) error {
	r.serverMu.Lock()
	srv := r.server
	r.server = nil
	r.serverMu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
