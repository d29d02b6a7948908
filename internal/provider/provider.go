package provider

import (
	"context"
	"errors"

	"nekoscout/internal/openai"
)

// Provider is a chat backend the gateway can dispatch completions to.
type Provider interface {
	// Name returns the registry key (e.g., "openai", "blackboxai")
	Name() string

	// Chat produces an OpenAI-shaped completion for the conversation
	Chat(ctx context.Context, in ChatInput) (*openai.ChatCompletionsResponse, error)

	// Models returns the model identifiers this provider serves
	Models(ctx context.Context) ([]string, error)
}

// Params are the constructor parameters an instance is bound to.
// Instances are cached per distinct Params value.
type Params struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatInput is what the dispatcher hands to Provider.Chat.
type ChatInput struct {
	Messages []openai.ChatMessage
	Stream   bool

	// Options carries every other request field (temperature, max_tokens,
	// top_p, tools, ...) untouched.
	Options map[string]any
}

// Factory builds a provider instance for the given parameters.
type Factory func(Params) (Provider, error)

// Spec describes one entry of the provider manifest.
type Spec struct {
	Name        string
	DisplayName string
	Category    string
	New         Factory
}

// Provider categories exposed by the provider listing.
const (
	CategoryMajor        = "major"
	CategoryFree         = "free"
	CategorySpecialized  = "specialized"
	CategoryExperimental = "experimental"
)

// Common errors
var (
	ErrProviderNotFound = errors.New("provider not found")
	ErrInvalidSpec      = errors.New("invalid provider spec")
	ErrUpstream         = errors.New("upstream provider error")
)
