package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nekoscout/internal/auth"
	"nekoscout/internal/config"
	"nekoscout/internal/dispatch"
	"nekoscout/internal/openai"
	"nekoscout/internal/provider"
	"nekoscout/internal/requestlog"
)

var (
	testNewAPIToken   = "sk-" + strings.Repeat("Ab1", 16)
	testWebscoutToken = "ws_" + strings.Repeat("Zz9y", 8)
)

type fakeDB struct{ err error }

func (f fakeDB) Health(ctx context.Context) error { return f.err }

// newTestDeps wires real components against the given billing servers.
func newTestDeps(t *testing.T, servers []config.Server, specs []provider.Spec) *Deps {
	t.Helper()

	cfg := &config.Config{
		Port:              "0",
		Environment:       "development",
		DefaultProvider:   "openai",
		Servers:           servers,
		ValidationTimeout: time.Second,
	}
	if specs == nil {
		specs = provider.Manifest(provider.APIKeys{})
	}
	registry := provider.NewRegistry(specs)

	return &Deps{
		Config:     cfg,
		Registry:   registry,
		Engine:     dispatch.NewEngine(registry, cfg.DefaultProvider),
		Auth:       auth.NewManager(auth.NewServerValidator(servers, cfg.ValidationTimeout, nil)),
		RequestLog: requestlog.NewMemoryStore(),
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), "body=%s", rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var resp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	decodeJSON(t, rec, &resp)
	return resp.Error.Message, resp.Error.Type
}

func TestHealth(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	for _, path := range []string{"/health", "/api/health"} {
		rec := doRequest(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)

		var resp map[string]string
		decodeJSON(t, rec, &resp)
		assert.Equal(t, "healthy", resp["status"], path)
		assert.Equal(t, "nekoscout", resp["service"], path)
		assert.NotContains(t, resp, "database", "%s: no database field without a DB", path)
	}
}

func TestHealth_DatabaseDown(t *testing.T) {
	deps := newTestDeps(t, nil, nil)
	deps.DB = fakeDB{err: errors.New("connection refused")}

	rec := doRequest(t, NewHandler(deps), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"unavailable"`)
}

func TestStatus(t *testing.T) {
	deps := newTestDeps(t, []config.Server{{Name: "alpha", BaseURL: "http://a"}, {Name: "beta", BaseURL: "http://b"}}, nil)

	rec := doRequest(t, NewHandler(deps), http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Service           string   `json:"service"`
		Providers         int      `json:"providers"`
		ValidationServers []string `json:"validation_servers"`
		RequestLog        string   `json:"request_log"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "nekoscout", resp.Service)
	assert.Equal(t, deps.Registry.Len(), resp.Providers)
	assert.Equal(t, []string{"alpha", "beta"}, resp.ValidationServers, "servers in config order")
	assert.Equal(t, "memory", resp.RequestLog)
}

func TestAuthValidate_UnknownFormat(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodPost, "/auth/validate", `{"token":"not-a-token"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg, typ := decodeError(t, rec)
	assert.Equal(t, "Invalid token format", msg)
	assert.Equal(t, "invalid_request_error", typ)
}

func TestAuthValidate_MissingToken(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodPost, "/auth/validate", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msg, _ := decodeError(t, rec)
	assert.Equal(t, "token is required", msg)
}

func TestAuthValidate_Webscout(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodPost, "/api/auth/validate", `{"token":"`+testWebscoutToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp auth.WebscoutReport
	decodeJSON(t, rec, &resp)
	assert.Equal(t, auth.StatusValid, resp.Status)
	assert.Equal(t, testWebscoutToken[3:13], resp.UserID)
}

func TestAuthValidate_BearerHeader(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	req := httptest.NewRequest(http.MethodPost, "/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+testWebscoutToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func billingStub(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthValidate_NewAPI(t *testing.T) {
	bad := billingStub(t, http.StatusUnauthorized, `{}`)
	good := billingStub(t, http.StatusOK, `{"hard_limit_usd":25}`)
	h := NewHandler(newTestDeps(t, []config.Server{
		{Name: "zeta", BaseURL: bad.URL},
		{Name: "alpha", BaseURL: good.URL},
	}, nil))

	rec := doRequest(t, h, http.MethodPost, "/auth/validate", `{"token":"`+testNewAPIToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code, "failing servers still yield 200")

	body := rec.Body.String()
	assert.Less(t, strings.Index(body, `"zeta"`), strings.Index(body, `"alpha"`), "servers in config order: %s", body)

	var resp struct {
		ValidServers []string `json:"valid_servers"`
		Servers      map[string]struct {
			Status  string `json:"status"`
			Balance any    `json:"balance"`
		} `json:"servers"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, []string{"alpha"}, resp.ValidServers)
	assert.Equal(t, "invalid", resp.Servers["zeta"].Status)
	assert.Equal(t, float64(25), resp.Servers["alpha"].Balance)
}

func TestAuthUsage_NewAPI(t *testing.T) {
	good := billingStub(t, http.StatusOK, `{"hard_limit_usd":3,"usage":{"total":1}}`)
	down := billingStub(t, http.StatusInternalServerError, ``)
	h := NewHandler(newTestDeps(t, []config.Server{
		{Name: "good", BaseURL: good.URL},
		{Name: "down", BaseURL: down.URL},
	}, nil))

	rec := doRequest(t, h, http.MethodPost, "/auth/usage", `{"token":"`+testNewAPIToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UsageByServer map[string]json.RawMessage `json:"usage_by_server"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.UsageByServer, 1, "only valid servers report usage")
	assert.Contains(t, resp.UsageByServer, "good")
}

func TestAuthExport(t *testing.T) {
	good := billingStub(t, http.StatusOK, `{"hard_limit_usd":9.5}`)
	bad := billingStub(t, http.StatusUnauthorized, `{}`)
	h := NewHandler(newTestDeps(t, []config.Server{
		{Name: "good", BaseURL: good.URL},
		{Name: "bad", BaseURL: bad.URL},
	}, nil))

	rec := doRequest(t, h, http.MethodPost, "/auth/export", `{"token":"`+testNewAPIToken+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"), rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"server", "status", "balance", "error", "token_type"},
		{"good", "valid", "9.5", "N/A", "newapi"},
		{"bad", "invalid", "N/A", "Invalid token", "newapi"},
	}, rows)
}

func TestChatCompletions_InvalidJSON(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodPost, "/v1/chat/completions", `{"model": "gpt-4", "messages": [`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	msg, typ := decodeError(t, rec)
	assert.Equal(t, "invalid_request_error", typ)
	assert.Contains(t, msg, "invalid JSON")
}

func TestChatCompletions_MissingModel(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodPost, "/chat/completions", `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	msg, _ := decodeError(t, rec)
	assert.Contains(t, msg, "model")
}

func TestChatCompletions_MethodNotAllowed(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodGet, "/v1/chat/completions", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Allow"))
}

func TestChatCompletions_Placeholder(t *testing.T) {
	deps := newTestDeps(t, nil, nil)
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/api/chat/completions",
		`{"model":"claude-3-opus","messages":[{"role":"user","content":"Hi"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp openai.ChatCompletionsResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.Equal(t, "claude-3-opus", resp.Model)
	require.Len(t, resp.Choices, 1)
	assert.Contains(t, resp.Choices[0].Message.Content, "placeholder")

	entries, err := deps.RequestLog.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "claude", entries[0].Provider)
	assert.Equal(t, requestlog.StatusSuccess, entries[0].Status)
	assert.Equal(t, 30, entries[0].TotalTokens)
}

func TestChatCompletions_UnknownProvider(t *testing.T) {
	deps := newTestDeps(t, nil, []provider.Spec{
		{Name: "openai", New: provider.PlaceholderFactory("openai", "OpenAI", []string{"gpt-4"})},
	})
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodPost, "/chat/completions",
		`{"model":"gemini-pro","messages":[{"role":"user","content":"Hi"}]}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	msg, typ := decodeError(t, rec)
	assert.Equal(t, "not_found_error", typ)
	assert.Contains(t, msg, "gemini")

	entries, err := deps.RequestLog.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, requestlog.StatusError, entries[0].Status)
}

type failingProvider struct{}

func (failingProvider) Name() string { return "openai" }

func (failingProvider) Chat(ctx context.Context, in provider.ChatInput) (*openai.ChatCompletionsResponse, error) {
	return nil, errors.New("rate limited upstream")
}

func (failingProvider) Models(ctx context.Context) ([]string, error) { return nil, nil }

func TestChatCompletions_ProviderFailure(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, []provider.Spec{
		{Name: "openai", New: func(provider.Params) (provider.Provider, error) { return failingProvider{}, nil }},
	}))

	rec := doRequest(t, h, http.MethodPost, "/chat/completions",
		`{"model":"gpt-4","messages":[{"role":"user","content":"Hi"}]}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msg, typ := decodeError(t, rec)
	assert.Equal(t, "server_error", typ)
	assert.Contains(t, msg, "rate limited upstream")
}

func TestModels(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodGet, "/models", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog dispatch.ModelCatalog
	decodeJSON(t, rec, &catalog)
	assert.NotZero(t, catalog.TotalProviders)
	assert.Equal(t, len(catalog.Providers), catalog.TotalProviders)
	assert.NotZero(t, catalog.Providers["gemini"].Count)
}

func TestProviders(t *testing.T) {
	deps := newTestDeps(t, nil, nil)

	rec := doRequest(t, NewHandler(deps), http.MethodGet, "/api/providers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Providers  []string            `json:"providers"`
		Count      int                 `json:"count"`
		Categories map[string][]string `json:"categories"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, deps.Registry.Len(), resp.Count)
	assert.Len(t, resp.Providers, resp.Count)
	assert.NotEmpty(t, resp.Categories["major"])
}

func TestLogs(t *testing.T) {
	deps := newTestDeps(t, nil, nil)
	for i := 0; i < 3; i++ {
		require.NoError(t, deps.RequestLog.Record(context.Background(), &requestlog.Entry{Model: "gpt-4", Provider: "openai"}))
	}
	h := NewHandler(deps)

	rec := doRequest(t, h, http.MethodGet, "/logs?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	decodeJSON(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)

	rec = doRequest(t, h, http.MethodGet, "/logs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewHandler(newTestDeps(t, nil, nil))

	rec := doRequest(t, h, http.MethodOptions, "/api/auth/validate", "")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
