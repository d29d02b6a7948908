package auth

import (
	"context"
	"encoding/json"
	"fmt"
)

// Validator is the NewAPI server check the manager delegates to.
type Validator interface {
	Validate(ctx context.Context, token string) *NewAPIReport
}

// Manager routes tokens to the validator matching their shape.
type Manager struct {
	servers Validator
}

// NewManager creates a token manager backed by a NewAPI server validator.
func NewManager(servers Validator) *Manager {
	return &Manager{servers: servers}
}

// Report is the result of validating one token; exactly one of NewAPI and
// Webscout is set, matching Type.
type Report struct {
	Type     TokenType
	NewAPI   *NewAPIReport
	Webscout *WebscoutReport
}

func (r *Report) MarshalJSON() ([]byte, error) {
	switch r.Type {
	case TokenNewAPI:
		return json.Marshal(r.NewAPI)
	case TokenWebscout:
		return json.Marshal(r.Webscout)
	default:
		return nil, fmt.Errorf("report has no result for token type %q", r.Type)
	}
}

// Validate classifies the token and runs the matching validator.
// Only an unrecognised format is an error; upstream failures are in the report.
func (m *Manager) Validate(ctx context.Context, token string) (*Report, error) {
	switch Classify(token) {
	case TokenNewAPI:
		return &Report{Type: TokenNewAPI, NewAPI: m.servers.Validate(ctx, token)}, nil
	case TokenWebscout:
		return &Report{Type: TokenWebscout, Webscout: ValidateWebscout(token)}, nil
	default:
		return nil, ErrUnknownTokenFormat
	}
}

// ServerUsage is the usage view of one server that accepted the token.
type ServerUsage struct {
	Balance      any             `json:"balance"`
	Usage        any             `json:"usage"`
	Subscription json.RawMessage `json:"subscription"`
}

// UsageReport is the usage-focused projection of a validation report.
type UsageReport struct {
	Token     string
	TokenType TokenType

	// NewAPI tokens: valid servers in configuration order.
	ServerNames   []string
	UsageByServer []ServerUsage

	// Webscout tokens.
	Usage       *WebscoutUsage
	RateLimit   *RateLimit
	Permissions []string
}

func (u *UsageReport) MarshalJSON() ([]byte, error) {
	if u.TokenType == TokenNewAPI {
		values := make([]any, len(u.UsageByServer))
		for i, s := range u.UsageByServer {
			values[i] = s
		}
		byServer, err := marshalOrdered(u.ServerNames, values)
		if err != nil {
			return nil, err
		}
		return json.Marshal(struct {
			Token         string          `json:"token"`
			TokenType     TokenType       `json:"token_type"`
			UsageByServer json.RawMessage `json:"usage_by_server"`
		}{u.Token, u.TokenType, byServer})
	}

	permissions := u.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return json.Marshal(struct {
		Token       string         `json:"token"`
		TokenType   TokenType      `json:"token_type"`
		Usage       *WebscoutUsage `json:"usage"`
		RateLimit   *RateLimit     `json:"rate_limit"`
		Permissions []string       `json:"permissions"`
	}{u.Token, u.TokenType, u.Usage, u.RateLimit, permissions})
}

// Usage re-validates the token and projects the result onto usage data.
func (m *Manager) Usage(ctx context.Context, token string) (*UsageReport, error) {
	report, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	if report.Type == TokenWebscout {
		w := report.Webscout
		return &UsageReport{
			Token:       token,
			TokenType:   TokenWebscout,
			Usage:       w.Usage,
			RateLimit:   w.RateLimit,
			Permissions: w.Permissions,
		}, nil
	}

	usage := &UsageReport{Token: token, TokenType: TokenNewAPI}
	for _, r := range report.NewAPI.Servers {
		if r.Status != StatusValid {
			continue
		}
		usage.ServerNames = append(usage.ServerNames, r.Server)
		usage.UsageByServer = append(usage.UsageByServer, ServerUsage{
			Balance:      r.Balance,
			Usage:        r.Usage,
			Subscription: r.Subscription,
		})
	}
	return usage, nil
}

// ExportHeader is the column layout of ExportRows.
var ExportHeader = []string{"server", "status", "balance", "error", "token_type"}

// ExportRows flattens a report into tabular rows for CSV export.
// Missing balance or error values are written as "N/A".
func (r *Report) ExportRows() [][]string {
	na := func(s string) string {
		if s == "" {
			return "N/A"
		}
		return s
	}

	if r.Type == TokenWebscout {
		w := r.Webscout
		return [][]string{{"webscout", string(w.Status), "N/A", na(w.Error), string(TokenWebscout)}}
	}

	rows := make([][]string, 0, len(r.NewAPI.Servers))
	for _, s := range r.NewAPI.Servers {
		balance := ""
		if s.Balance != nil {
			balance = fmt.Sprint(s.Balance)
		}
		rows = append(rows, []string{s.Server, string(s.Status), na(balance), na(s.Error), string(TokenNewAPI)})
	}
	return rows
}
