package handler

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"nekoscout/internal/auth"
)

const exportFilename = "token_validation.csv"

type authHandler struct {
	manager *auth.Manager
}

type tokenRequest struct {
	Token string `json:"token"`
}

// readToken takes the token from the JSON body, falling back to a bearer
// Authorization header. It writes the error response on failure.
func readToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	body, ok := readBody(w, r)
	if !ok {
		return "", false
	}

	var req tokenRequest
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), errTypeInvalidRequest)
			return "", false
		}
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if token == "" {
		writeError(w, http.StatusBadRequest, "token is required", errTypeInvalidRequest)
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, auth.ErrUnknownTokenFormat) {
		writeError(w, http.StatusBadRequest, "Invalid token format", errTypeInvalidRequest)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error(), errTypeServer)
}

func (h *authHandler) validate(w http.ResponseWriter, r *http.Request) {
	token, ok := readToken(w, r)
	if !ok {
		return
	}

	report, err := h.manager.Validate(r.Context(), token)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *authHandler) usage(w http.ResponseWriter, r *http.Request) {
	token, ok := readToken(w, r)
	if !ok {
		return
	}

	usage, err := h.manager.Usage(r.Context(), token)
	if err != nil {
		writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func (h *authHandler) export(w http.ResponseWriter, r *http.Request) {
	token, ok := readToken(w, r)
	if !ok {
		return
	}

	report, err := h.manager.Validate(r.Context(), token)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	if err := cw.Write(auth.ExportHeader); err != nil {
		log.Printf("failed to write export header: %v", err)
		return
	}
	if err := cw.WriteAll(report.ExportRows()); err != nil {
		log.Printf("failed to write export rows: %v", err)
	}
}
