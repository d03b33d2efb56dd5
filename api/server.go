/*
server.go - HTTP router and middleware configuration

ROUTER: chi.Mux with a standard middleware stack (see below) plus the
route tree in NewRouter.

MIDDLEWARE STACK:
  1. RequestID:  unique ID per request for tracing
  2. Logger:     request logging
  3. Recoverer:  panic recovery (500 instead of crash)
  4. httpMetrics: request counts by route pattern and status code
  5. CORS:       cross-origin requests
  6. BearerAuth: static shared-secret bearer token on /v1 routes only,
                 skipped entirely when no token is configured (local/dev use)

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/kvengine: server startup
*/
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/kvengine/internal/metrics"
)

// NewRouter builds the router for h. authToken, if non-empty, requires
// every /v1/* request to carry "Authorization: Bearer <authToken>".
func NewRouter(h *Handler, authToken string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(httpMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "DELETE", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(bearerAuth(authToken))

		r.Route("/types/{type}/keys", func(r chi.Router) {
			r.Get("/", h.ListKeys)
			r.Route("/{key}", func(r chi.Router) {
				r.Put("/", h.PutValue)
				r.Get("/", h.GetValue)
				r.Head("/", h.ExistsValue)
				r.Delete("/", h.DeleteValue)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/log/tail", h.LogTail)
		})
	})

	return r
}

// httpMetrics records kvengine_http_requests_total by route pattern and
// status code without touching handler bodies.
func httpMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}

// bearerAuth requires "Authorization: Bearer <token>" on every
// request when token is non-empty. An empty token disables the check
// entirely (local/dev use); a single static shared secret, checked
// with a string comparison.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const prefix = "Bearer "
			got := r.Header.Get("Authorization")
			if !strings.HasPrefix(got, prefix) || got[len(prefix):] != token {
				writeError(w, r, http.StatusUnauthorized, "missing or invalid bearer token", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
