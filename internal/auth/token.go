// Package auth classifies API tokens and validates them, either against the
// configured NewAPI servers or locally for webscout tokens.
package auth

import (
	"errors"
	"regexp"
)

// TokenType is the structural family a token belongs to.
type TokenType string

const (
	TokenNewAPI   TokenType = "newapi"
	TokenWebscout TokenType = "webscout"
	TokenUnknown  TokenType = "unknown"
)

// Status is the outcome of validating a token against one source.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
	StatusTimeout Status = "timeout"
	StatusError   Status = "error"
)

// ErrUnknownTokenFormat is returned when a token matches neither format.
var ErrUnknownTokenFormat = errors.New("invalid token format")

var (
	newAPIPattern   = regexp.MustCompile(`^sk-[A-Za-z0-9]{48}$`)
	webscoutPattern = regexp.MustCompile(`^ws_[A-Za-z0-9]{32}$`)
)

// Classify returns the token family by shape alone.
func Classify(token string) TokenType {
	switch {
	case newAPIPattern.MatchString(token):
		return TokenNewAPI
	case webscoutPattern.MatchString(token):
		return TokenWebscout
	default:
		return TokenUnknown
	}
}
