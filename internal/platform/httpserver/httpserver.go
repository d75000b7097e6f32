// Package httpserver builds the process-wide HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server tuned for this API: slow-client header protection and
// idle connection reaping, but no overall read timeout since document
// uploads may legitimately stream for minutes. Per-request deadlines come
// from the router's timeout middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}
