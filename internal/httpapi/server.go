package httpapi

import (
	"net/http"
	"time"

	"climate-api/internal/config"
)

// NewHandler wraps mux in the middleware chain. limiter may be nil.
func NewHandler(cfg config.Config, mux *http.ServeMux, metrics *Metrics, limiter *RateLimiter) http.Handler {
	var h http.Handler = metrics.Middleware(mux)
	h = requestTimeout(cfg.RequestTimeout)(h)
	if limiter != nil {
		h = limiter.Middleware(h)
	}
	h = requestLogger(h)
	return requestID(h)
}

func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
