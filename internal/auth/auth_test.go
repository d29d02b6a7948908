package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nekoscout/internal/config"
)

var (
	validNewAPIToken   = "sk-" + strings.Repeat("a1B2", 12)
	validWebscoutToken = "ws_" + strings.Repeat("xY9z", 8)
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  TokenType
	}{
		{"newapi", validNewAPIToken, TokenNewAPI},
		{"webscout", validWebscoutToken, TokenWebscout},
		{"newapi too short", "sk-" + strings.Repeat("a", 47), TokenUnknown},
		{"newapi too long", "sk-" + strings.Repeat("a", 49), TokenUnknown},
		{"newapi bad char", "sk-" + strings.Repeat("a", 47) + "-", TokenUnknown},
		{"webscout too short", "ws_" + strings.Repeat("a", 31), TokenUnknown},
		{"webscout bad char", "ws_" + strings.Repeat("a", 31) + "_", TokenUnknown},
		{"wrong prefix", "pk-" + strings.Repeat("a", 48), TokenUnknown},
		{"uppercase prefix", "SK-" + strings.Repeat("a", 48), TokenUnknown},
		{"empty", "", TokenUnknown},
		{"trailing newline", validNewAPIToken + "\n", TokenUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.token))
		})
	}
}

func TestValidateWebscout(t *testing.T) {
	report := ValidateWebscout(validWebscoutToken)

	assert.Equal(t, StatusValid, report.Status)
	assert.Equal(t, TokenWebscout, report.TokenType)
	assert.Equal(t, validWebscoutToken[3:13], report.UserID)
	assert.Equal(t, []string{"chat", "search", "image", "tts"}, report.Permissions)
	require.NotNil(t, report.RateLimit)
	assert.Equal(t, 60, report.RateLimit.RequestsPerMinute)
	assert.Equal(t, 1000, report.RateLimit.RequestsPerDay)
	require.NotNil(t, report.Usage)
	assert.Equal(t, 45, report.Usage.RequestsToday)
	assert.Equal(t, 12500, report.Usage.TokensUsed)
	assert.Empty(t, report.Error)
}

func TestValidateWebscout_BadFormat(t *testing.T) {
	report := ValidateWebscout("ws_short")

	assert.Equal(t, StatusInvalid, report.Status)
	assert.Equal(t, "Invalid webscout token format", report.Error)
	assert.Empty(t, report.UserID)
}

func billingServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/dashboard/billing/subscription", r.URL.Path)
		assert.Equal(t, "Bearer "+validNewAPIToken, r.Header.Get("Authorization"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func slowServer(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"hard_limit_usd":1}`))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestServerValidator_MixedOutcomes(t *testing.T) {
	invalid := billingServer(t, http.StatusUnauthorized, `{"error":"nope"}`)
	slow := slowServer(t, 2*time.Second)
	valid := billingServer(t, http.StatusOK, `{"hard_limit_usd":100.5,"usage":{"total":3}}`)

	v := NewServerValidator([]config.Server{
		{Name: "A", BaseURL: invalid.URL},
		{Name: "B", BaseURL: slow.URL},
		{Name: "C", BaseURL: valid.URL},
	}, 200*time.Millisecond, nil)

	start := time.Now()
	report := v.Validate(context.Background(), validNewAPIToken)
	elapsed := time.Since(start)

	// Concurrent: total time tracks the slowest server's timeout, not the sum.
	assert.Less(t, elapsed, time.Second)

	require.Len(t, report.Servers, 3)
	assert.Equal(t, "A", report.Servers[0].Server)
	assert.Equal(t, StatusInvalid, report.Servers[0].Status)
	assert.Equal(t, "Invalid token", report.Servers[0].Error)

	assert.Equal(t, "B", report.Servers[1].Server)
	assert.Equal(t, StatusTimeout, report.Servers[1].Status)
	assert.Equal(t, "Request timeout", report.Servers[1].Error)

	assert.Equal(t, "C", report.Servers[2].Server)
	assert.Equal(t, StatusValid, report.Servers[2].Status)
	assert.Equal(t, 100.5, report.Servers[2].Balance)
	assert.Equal(t, map[string]any{"total": float64(3)}, report.Servers[2].Usage)

	assert.Equal(t, []string{"C"}, report.ValidServers)
	assert.Equal(t, TokenNewAPI, report.TokenType)
}

func TestServerValidator_AllTimeoutsOverlap(t *testing.T) {
	const timeout = 300 * time.Millisecond

	var servers []config.Server
	for _, name := range []string{"s1", "s2", "s3", "s4"} {
		hung := slowServer(t, 5*time.Second)
		servers = append(servers, config.Server{Name: name, BaseURL: hung.URL})
	}
	v := NewServerValidator(servers, timeout, nil)

	start := time.Now()
	report := v.Validate(context.Background(), validNewAPIToken)
	elapsed := time.Since(start)

	// One timeout's worth of waiting, not one per server.
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, 2*timeout)

	require.Len(t, report.Servers, len(servers))
	for i, r := range report.Servers {
		assert.Equal(t, servers[i].Name, r.Server)
		assert.Equal(t, StatusTimeout, r.Status, r.Server)
		assert.Equal(t, "Request timeout", r.Error, r.Server)
	}
	assert.Empty(t, report.ValidServers)
}

func TestServerValidator_NoServers(t *testing.T) {
	v := NewServerValidator(nil, time.Second, nil)

	report := v.Validate(context.Background(), validNewAPIToken)

	assert.Empty(t, report.Servers)
	assert.NotNil(t, report.ValidServers)
	assert.Empty(t, report.ValidServers)

	data, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"servers":{}`)
	assert.Contains(t, string(data), `"valid_servers":[]`)
}

func TestServerValidator_MissingBalance(t *testing.T) {
	server := billingServer(t, http.StatusOK, `{"plan":"free"}`)
	v := NewServerValidator([]config.Server{{Name: "only", BaseURL: server.URL}}, time.Second, nil)

	report := v.Validate(context.Background(), validNewAPIToken)

	r, ok := report.Servers.Get("only")
	require.True(t, ok)
	assert.Equal(t, StatusValid, r.Status)
	assert.Equal(t, "Unknown", r.Balance)
	assert.Equal(t, map[string]any{}, r.Usage)
	assert.JSONEq(t, `{"plan":"free"}`, string(r.Subscription))
}

func TestServerValidator_NonJSONBody(t *testing.T) {
	server := billingServer(t, http.StatusOK, `<html>oops</html>`)
	v := NewServerValidator([]config.Server{{Name: "html", BaseURL: server.URL}}, time.Second, nil)

	report := v.Validate(context.Background(), validNewAPIToken)

	r, _ := report.Servers.Get("html")
	assert.Equal(t, StatusError, r.Status)
	assert.NotEmpty(t, r.Error)
	assert.Empty(t, report.ValidServers)
}

func TestServerValidator_HTTPError(t *testing.T) {
	server := billingServer(t, http.StatusBadGateway, `bad gateway`)
	v := NewServerValidator([]config.Server{{Name: "gw", BaseURL: server.URL}}, time.Second, nil)

	report := v.Validate(context.Background(), validNewAPIToken)

	r, _ := report.Servers.Get("gw")
	assert.Equal(t, StatusError, r.Status)
	assert.Equal(t, "HTTP 502", r.Error)
}

func TestServerValidator_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	v := NewServerValidator([]config.Server{{Name: "down", BaseURL: url}}, time.Second, nil)
	report := v.Validate(context.Background(), validNewAPIToken)

	r, _ := report.Servers.Get("down")
	assert.Equal(t, StatusError, r.Status)
	assert.NotEmpty(t, r.Error)
}

func TestNewAPIReport_JSONKeepsServerOrder(t *testing.T) {
	report := &NewAPIReport{
		Token:     validNewAPIToken,
		TokenType: TokenNewAPI,
		Servers: ServerResults{
			{Server: "zeta", Status: StatusInvalid, Error: "Invalid token"},
			{Server: "alpha", Status: StatusValid, Balance: 5.0, Usage: map[string]any{}},
		},
		ValidServers: []string{"alpha"},
	}

	data, err := json.Marshal(report)
	require.NoError(t, err)

	s := string(data)
	assert.Less(t, strings.Index(s, `"zeta"`), strings.Index(s, `"alpha"`))
	assert.Contains(t, s, `"token_type":"newapi"`)
}

type stubValidator struct {
	report *NewAPIReport
	calls  int
}

func (s *stubValidator) Validate(ctx context.Context, token string) *NewAPIReport {
	s.calls++
	s.report.Token = token
	return s.report
}

func TestManager_Validate(t *testing.T) {
	stub := &stubValidator{report: &NewAPIReport{TokenType: TokenNewAPI, ValidServers: []string{}}}
	m := NewManager(stub)

	report, err := m.Validate(context.Background(), validNewAPIToken)
	require.NoError(t, err)
	assert.Equal(t, TokenNewAPI, report.Type)
	assert.Equal(t, 1, stub.calls)

	report, err = m.Validate(context.Background(), validWebscoutToken)
	require.NoError(t, err)
	assert.Equal(t, TokenWebscout, report.Type)
	assert.Equal(t, StatusValid, report.Webscout.Status)
	assert.Equal(t, 1, stub.calls, "webscout tokens must not hit NewAPI servers")

	_, err = m.Validate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrUnknownTokenFormat)
}

func TestManager_UsageNewAPI(t *testing.T) {
	stub := &stubValidator{report: &NewAPIReport{
		TokenType: TokenNewAPI,
		Servers: ServerResults{
			{Server: "first", Status: StatusInvalid, Error: "Invalid token"},
			{Server: "second", Status: StatusValid, Balance: 12.0, Usage: map[string]any{}, Subscription: json.RawMessage(`{"hard_limit_usd":12}`)},
		},
		ValidServers: []string{"second"},
	}}
	m := NewManager(stub)

	usage, err := m.Usage(context.Background(), validNewAPIToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, usage.ServerNames)

	data, err := json.Marshal(usage)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"token": "`+validNewAPIToken+`",
		"token_type": "newapi",
		"usage_by_server": {
			"second": {"balance": 12, "usage": {}, "subscription": {"hard_limit_usd": 12}}
		}
	}`, string(data))
}

func TestManager_UsageNoValidServers(t *testing.T) {
	stub := &stubValidator{report: &NewAPIReport{TokenType: TokenNewAPI, ValidServers: []string{}}}
	m := NewManager(stub)

	usage, err := m.Usage(context.Background(), validNewAPIToken)
	require.NoError(t, err)

	data, err := json.Marshal(usage)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"usage_by_server":{}`)
}

func TestManager_UsageWebscout(t *testing.T) {
	m := NewManager(&stubValidator{})

	usage, err := m.Usage(context.Background(), validWebscoutToken)
	require.NoError(t, err)

	data, err := json.Marshal(usage)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"token": "`+validWebscoutToken+`",
		"token_type": "webscout",
		"usage": {"requests_today": 45, "tokens_used": 12500},
		"rate_limit": {"requests_per_minute": 60, "requests_per_day": 1000},
		"permissions": ["chat", "search", "image", "tts"]
	}`, string(data))
}

func TestReport_ExportRows(t *testing.T) {
	report := &Report{Type: TokenNewAPI, NewAPI: &NewAPIReport{
		Servers: ServerResults{
			{Server: "a", Status: StatusValid, Balance: 7.5},
			{Server: "b", Status: StatusTimeout, Error: "Request timeout"},
		},
	}}

	assert.Equal(t, [][]string{
		{"a", "valid", "7.5", "N/A", "newapi"},
		{"b", "timeout", "N/A", "Request timeout", "newapi"},
	}, report.ExportRows())

	ws := &Report{Type: TokenWebscout, Webscout: ValidateWebscout(validWebscoutToken)}
	assert.Equal(t, [][]string{{"webscout", "valid", "N/A", "N/A", "webscout"}}, ws.ExportRows())
}
