package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"nekoscout/internal/config"
)

const (
	subscriptionPath = "/v1/dashboard/billing/subscription"
	balanceField     = "hard_limit_usd"
	unknownBalance   = "Unknown"
	maxBillingBody   = 1 << 20 // 1 MB
)

// ServerResult is the outcome of checking a token on one NewAPI server.
type ServerResult struct {
	Server string `json:"server"`
	Status Status `json:"status"`

	// Balance is whatever the server reports as hard_limit_usd; its type is
	// not guaranteed across server implementations.
	Balance      any             `json:"balance,omitempty"`
	Usage        any             `json:"usage,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Error        string          `json:"error,omitempty"`
}

// ServerResults are per-server results in configuration order. They encode
// as a JSON object keyed by server name.
type ServerResults []ServerResult

// Get returns the result for a server name.
func (s ServerResults) Get(name string) (ServerResult, bool) {
	for _, r := range s {
		if r.Server == name {
			return r, true
		}
	}
	return ServerResult{}, false
}

func (s ServerResults) MarshalJSON() ([]byte, error) {
	keys := make([]string, len(s))
	values := make([]any, len(s))
	for i, r := range s {
		keys[i] = r.Server
		values[i] = r
	}
	return marshalOrdered(keys, values)
}

// NewAPIReport aggregates a token's validation across all configured servers.
type NewAPIReport struct {
	Token        string        `json:"token"`
	TokenType    TokenType     `json:"token_type"`
	Servers      ServerResults `json:"servers"`
	ValidServers []string      `json:"valid_servers"`
}

// ServerValidator checks NewAPI tokens against every configured server at once.
type ServerValidator struct {
	servers []config.Server
	timeout time.Duration
	client  *http.Client
}

// NewServerValidator creates a validator. A nil client uses a plain
// http.Client; the per-request timeout is applied through the context.
func NewServerValidator(servers []config.Server, timeout time.Duration, client *http.Client) *ServerValidator {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = config.DefaultValidationTimeout
	}
	return &ServerValidator{
		servers: servers,
		timeout: timeout,
		client:  client,
	}
}

// Servers returns the configured servers in order.
func (v *ServerValidator) Servers() []config.Server {
	return v.servers
}

// Validate queries every server concurrently and waits for all of them.
// Per-server failures are recorded in the report; Validate itself never fails.
func (v *ServerValidator) Validate(ctx context.Context, token string) *NewAPIReport {
	results := make(ServerResults, len(v.servers))

	// Workers never return an error, so one server can't cancel the others.
	var g errgroup.Group
	for i, server := range v.servers {
		i, server := i, server
		g.Go(func() error {
			results[i] = v.check(ctx, server, token)
			return nil
		})
	}
	_ = g.Wait()

	valid := make([]string, 0, len(results))
	for _, r := range results {
		if r.Status == StatusValid {
			valid = append(valid, r.Server)
		}
	}

	return &NewAPIReport{
		Token:        token,
		TokenType:    TokenNewAPI,
		Servers:      results,
		ValidServers: valid,
	}
}

// check issues one billing lookup bounded by the validator timeout.
func (v *ServerValidator) check(ctx context.Context, server config.Server, token string) ServerResult {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	start := time.Now()
	result := v.fetchSubscription(ctx, server, token)
	log.Printf("newapi check server=%s status=%s duration=%s", server.Name, result.Status, time.Since(start))
	return result
}

func (v *ServerValidator) fetchSubscription(ctx context.Context, server config.Server, token string) ServerResult {
	url := strings.TrimSuffix(server.BaseURL, "/") + subscriptionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return faultResult(server.Name, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return faultResult(server.Name, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close billing response body: %v", err)
		}
	}()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return ServerResult{Server: server.Name, Status: StatusInvalid, Error: "Invalid token"}
	default:
		return ServerResult{Server: server.Name, Status: StatusError, Error: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBillingBody))
	if err != nil {
		return faultResult(server.Name, err)
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return faultResult(server.Name, fmt.Errorf("decoding subscription: %w", err))
	}

	balance, ok := data[balanceField]
	if !ok || balance == nil {
		balance = unknownBalance
	}
	usage, ok := data["usage"]
	if !ok || usage == nil {
		usage = map[string]any{}
	}

	return ServerResult{
		Server:       server.Name,
		Status:       StatusValid,
		Balance:      balance,
		Usage:        usage,
		Subscription: json.RawMessage(body),
	}
}

// faultResult maps a transport or decoding failure to timeout or error.
func faultResult(server string, err error) ServerResult {
	if isTimeout(err) {
		return ServerResult{Server: server, Status: StatusTimeout, Error: "Request timeout"}
	}
	return ServerResult{Server: server, Status: StatusError, Error: err.Error()}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// marshalOrdered encodes keys and values as a JSON object in the given order.
func marshalOrdered(keys []string, values []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
