package httpserver

import (
	"net/http"
	"time"
)

// New builds the operational HTTP server (health, metrics, internal
// lookups). Vaulted data never crosses this surface, so the timeouts
// can stay tight.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
