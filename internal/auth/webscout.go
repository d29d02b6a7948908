package auth

import "strings"

const (
	webscoutPrefix      = "ws_"
	webscoutTokenLength = 35
)

// webscoutPermissions is the fixed permission set granted to webscout tokens.
var webscoutPermissions = []string{"chat", "search", "image", "tts"}

// RateLimit describes the request allowance attached to a token.
type RateLimit struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerDay    int `json:"requests_per_day"`
}

// WebscoutUsage is a usage snapshot for a webscout token.
type WebscoutUsage struct {
	RequestsToday int `json:"requests_today"`
	TokensUsed    int `json:"tokens_used"`
}

// WebscoutReport is the local validation result for a webscout token.
type WebscoutReport struct {
	Token       string         `json:"token"`
	TokenType   TokenType      `json:"token_type"`
	Status      Status         `json:"status"`
	UserID      string         `json:"user_id,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	RateLimit   *RateLimit     `json:"rate_limit,omitempty"`
	Usage       *WebscoutUsage `json:"usage,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// ValidateWebscout checks a webscout token without any network call.
// Tokens that slipped past Classify get an invalid report, not a panic.
func ValidateWebscout(token string) *WebscoutReport {
	if len(token) != webscoutTokenLength || !strings.HasPrefix(token, webscoutPrefix) {
		return &WebscoutReport{
			Token:     token,
			TokenType: TokenWebscout,
			Status:    StatusInvalid,
			Error:     "Invalid webscout token format",
		}
	}

	permissions := make([]string, len(webscoutPermissions))
	copy(permissions, webscoutPermissions)

	return &WebscoutReport{
		Token:       token,
		TokenType:   TokenWebscout,
		Status:      StatusValid,
		UserID:      token[len(webscoutPrefix) : len(webscoutPrefix)+10],
		Permissions: permissions,
		RateLimit: &RateLimit{
			RequestsPerMinute: 60,
			RequestsPerDay:    1000,
		},
		Usage: &WebscoutUsage{
			RequestsToday: 45,
			TokensUsed:    12500,
		},
	}
}
