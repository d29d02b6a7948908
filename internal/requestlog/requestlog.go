// Package requestlog records one entry per dispatched chat completion.
package requestlog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Listing bounds for Recent.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Entry is one dispatched request.
type Entry struct {
	ID               uuid.UUID `json:"id"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	DurationMS       int64     `json:"duration_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists entries and lists the most recent ones, newest first.
type Store interface {
	Record(ctx context.Context, e *Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit maps a requested listing size onto [1, MaxLimit], using
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// prepare fills in the ID and timestamp if the caller left them unset.
func prepare(e *Entry) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}
