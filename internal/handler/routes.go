package handler

import (
	"net/http"

	"github.com/msomdec/persist/internal/service"
)

// Routes holds what RegisterRoutes mounts.
type Routes struct {
	Cache *CacheHandler
	// Tokens guards the cache API. Nil serves it without authentication.
	Tokens *service.TokenService
	// DB backs the health check. Optional.
	DB Pinger
	// Metrics is mounted at MetricsPath when non-nil.
	Metrics     http.Handler
	MetricsPath string
}

// RegisterRoutes sets up all HTTP routes on the given mux.
func RegisterRoutes(mux *http.ServeMux, routes Routes) {
	mux.HandleFunc("GET /healthz", HandleHealthz(routes.DB))
	if routes.Metrics != nil {
		mux.Handle("GET "+routes.MetricsPath, routes.Metrics)
	}

	protect := func(h http.HandlerFunc) http.Handler {
		if routes.Tokens == nil {
			return h
		}
		return RequireToken(routes.Tokens, h)
	}

	cache := routes.Cache
	mux.Handle("POST /api/cache/tidy", protect(cache.HandleTidy))
	mux.Handle("GET /api/cache/{key...}", protect(cache.HandleGet))
	mux.Handle("PUT /api/cache/{key...}", protect(cache.HandleSet))
	mux.Handle("POST /api/cache/{key...}", protect(cache.HandleCreate))
	mux.Handle("DELETE /api/cache/{key...}", protect(cache.HandleDelete))
}
