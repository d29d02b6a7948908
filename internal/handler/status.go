package handler

import (
	"net/http"
)

const (
	ServiceName = "nekoscout"
	Version     = "1.0.0"
)

func statusHandler(deps *Deps) http.HandlerFunc {
	cfg := deps.Config

	servers := make([]string, len(cfg.Servers))
	for i, s := range cfg.Servers {
		servers[i] = s.Name
	}

	requestLog := "memory"
	if cfg.Database.Enabled() {
		requestLog = "postgres"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":                    ServiceName,
			"version":                    Version,
			"status":                     "operational",
			"environment":                cfg.Environment,
			"default_provider":           cfg.DefaultProvider,
			"providers":                  deps.Registry.Len(),
			"validation_servers":         servers,
			"validation_timeout_seconds": cfg.ValidationTimeout.Seconds(),
			"request_log":                requestLog,
		})
	}
}
