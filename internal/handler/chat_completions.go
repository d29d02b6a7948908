package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"nekoscout/internal/dispatch"
	"nekoscout/internal/openai"
	"nekoscout/internal/provider"
	"nekoscout/internal/requestlog"
)

const requestTimeout = 5 * time.Minute

// chatCompletionsHandler handles POST /chat/completions by dispatching on
// the model name. The provider's response is returned unchanged.
//
// Gateway errors: 400 (bad body), 404 (no provider), 413, 500 (provider failed).
type chatCompletionsHandler struct {
	engine *dispatch.Engine
	logs   requestlog.Store
}

func (h *chatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}

	var req openai.ChatCompletionsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error(), errTypeInvalidRequest)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), errTypeInvalidRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.engine.ChatCompletions(ctx, &req)
	h.record(r.Context(), &req, result, err, time.Since(start))

	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, err.Error(), errTypeNotFound)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error(), errTypeServer)
		return
	}

	writeJSON(w, http.StatusOK, result.Response)
}

// record stores a request log entry. Failures are logged and never reach
// the client.
func (h *chatCompletionsHandler) record(ctx context.Context, req *openai.ChatCompletionsRequest, result dispatch.Result, dispatchErr error, elapsed time.Duration) {
	if h.logs == nil {
		return
	}

	entry := &requestlog.Entry{
		Model:      req.Model,
		Provider:   result.Provider,
		Status:     requestlog.StatusSuccess,
		DurationMS: elapsed.Milliseconds(),
	}
	if dispatchErr != nil {
		entry.Status = requestlog.StatusError
		entry.Error = dispatchErr.Error()
	}
	if result.Response != nil && result.Response.Usage != nil {
		entry.PromptTokens = result.Response.Usage.PromptTokens
		entry.CompletionTokens = result.Response.Usage.CompletionTokens
		entry.TotalTokens = result.Response.Usage.TotalTokens
	}

	// Recording outlives a cancelled client request.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := h.logs.Record(ctx, entry); err != nil {
		log.Printf("failed to record request log: model=%s provider=%s error=%v", entry.Model, entry.Provider, err)
	}
}
