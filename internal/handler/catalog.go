package handler

import (
	"net/http"
	"strconv"

	"nekoscout/internal/dispatch"
	"nekoscout/internal/provider"
	"nekoscout/internal/requestlog"
)

func modelsHandler(engine *dispatch.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, engine.AvailableModels(r.Context()))
	}
}

func providersHandler(registry *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"providers":  registry.Names(),
			"count":      registry.Len(),
			"categories": registry.Categories(),
		})
	}
}

func logsHandler(store requestlog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := requestlog.DefaultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer", errTypeInvalidRequest)
				return
			}
			limit = n
		}

		entries, err := store.Recent(r.Context(), requestlog.ClampLimit(limit))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load request logs", errTypeServer)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"logs":  entries,
			"count": len(entries),
		})
	}
}
