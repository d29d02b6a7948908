// Package handler exposes the gateway over HTTP.
package handler

import (
	"context"
	"net/http"

	"nekoscout/internal/auth"
	"nekoscout/internal/config"
	"nekoscout/internal/dispatch"
	"nekoscout/internal/middleware"
	"nekoscout/internal/provider"
	"nekoscout/internal/requestlog"
)

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps holds everything the handlers need.
type Deps struct {
	Config     *config.Config
	Registry   *provider.Registry
	Engine     *dispatch.Engine
	Auth       *auth.Manager
	RequestLog requestlog.Store

	// DB is nil when no database is configured.
	DB HealthChecker
}

// NewHandler builds the full HTTP handler: every route, served at the root
// and under /api, wrapped in the standard middleware.
func NewHandler(deps *Deps) http.Handler {
	mux := http.NewServeMux()
	RegisterRoutes(mux, deps)

	return middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logging,
		middleware.Recover,
		middleware.CORS,
	)
}

// RegisterRoutes registers all routes on mux. Each route is reachable both
// as /<route> and /api/<route>.
func RegisterRoutes(mux *http.ServeMux, deps *Deps) {
	api := http.NewServeMux()

	api.HandleFunc("GET /health", healthHandler(deps))
	api.HandleFunc("GET /status", statusHandler(deps))

	authHandlers := &authHandler{manager: deps.Auth}
	api.HandleFunc("POST /auth/validate", authHandlers.validate)
	api.HandleFunc("POST /auth/usage", authHandlers.usage)
	api.HandleFunc("POST /auth/export", authHandlers.export)

	chat := &chatCompletionsHandler{engine: deps.Engine, logs: deps.RequestLog}
	for _, path := range []string{"/chat/completions", "/v1/chat/completions"} {
		api.Handle("POST "+path, chat)
		// Any other method gets a JSON 405 instead of the mux's plain-text one.
		api.HandleFunc(path, methodNotAllowedHandler("POST"))
	}

	api.HandleFunc("GET /models", modelsHandler(deps.Engine))
	api.HandleFunc("GET /providers", providersHandler(deps.Registry))
	api.HandleFunc("GET /logs", logsHandler(deps.RequestLog))

	mux.Handle("/api/", http.StripPrefix("/api", api))
	mux.Handle("/", api)
}

func methodNotAllowedHandler(allowedMethods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allowedMethods)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", errTypeInvalidRequest)
	}
}
