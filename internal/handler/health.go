package handler

import (
	"log"
	"net/http"
)

func healthHandler(deps *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]string{
			"status":  "healthy",
			"service": ServiceName,
		}

		if deps.DB == nil {
			writeJSON(w, http.StatusOK, resp)
			return
		}

		if err := deps.DB.Health(r.Context()); err != nil {
			log.Printf("health check: database unavailable: %v", err)
			resp["status"] = "degraded"
			resp["database"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}

		resp["database"] = "connected"
		writeJSON(w, http.StatusOK, resp)
	}
}
