// Package openai provides request/response contracts for the OpenAI-compatible
// chat completions surface shared by the gateway and its providers.
package openai

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	ObjectChatCompletion = "chat.completion"
	FinishReasonStop     = "stop"
	RoleAssistant        = "assistant"
)

// ChatMessage represents a single message in a chat conversation.
// Content is a plain string; multimodal array content is not supported.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionsRequest represents the request body for POST /chat/completions.
//
// Fields the gateway does not model are kept in Extra so they can be handed
// to the provider unchanged (tools, response_format, seed, ...).
type ChatCompletionsRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`

	// Pointer types distinguish unset from an explicit zero value.
	Stream      *bool    `json:"stream,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`

	Extra map[string]any `json:"-"`
}

// Validate checks the fields the dispatcher depends on.
func (r *ChatCompletionsRequest) Validate() error {
	if r.Model == "" {
		return errors.New("model is required and must not be empty")
	}

	if len(r.Messages) == 0 {
		return errors.New("messages is required and must contain at least one message")
	}

	for i, msg := range r.Messages {
		if msg.Role == "" {
			return fmt.Errorf("message at index %d: role is required and must not be empty", i)
		}
	}

	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", *r.Temperature)
	}

	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top_p must be between 0.0 and 1.0, got %f", *r.TopP)
	}

	if r.MaxTokens != nil && *r.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", *r.MaxTokens)
	}

	return nil
}

// IsStreaming reports whether the caller asked for a streamed response.
func (r *ChatCompletionsRequest) IsStreaming() bool {
	return r.Stream != nil && *r.Stream
}

// Passthrough returns every request field except model, messages and stream,
// which the dispatcher consumes itself.
func (r *ChatCompletionsRequest) Passthrough() map[string]any {
	fields := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		fields[k] = v
	}
	if r.Temperature != nil {
		fields["temperature"] = *r.Temperature
	}
	if r.MaxTokens != nil {
		fields["max_tokens"] = *r.MaxTokens
	}
	if r.TopP != nil {
		fields["top_p"] = *r.TopP
	}
	return fields
}

// knownRequestFields is the set of field names decoded into struct fields.
var knownRequestFields = map[string]bool{
	"model":       true,
	"messages":    true,
	"stream":      true,
	"temperature": true,
	"max_tokens":  true,
	"top_p":       true,
}

// UnmarshalJSON decodes the known fields and collects everything else in Extra.
func (r *ChatCompletionsRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		name string
		dst  any
	}{
		{"model", &r.Model},
		{"messages", &r.Messages},
		{"stream", &r.Stream},
		{"temperature", &r.Temperature},
		{"max_tokens", &r.MaxTokens},
		{"top_p", &r.TopP},
	}
	for _, f := range fields {
		value, ok := raw[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, f.dst); err != nil {
			return fmt.Errorf("unmarshalling field '%s': %w", f.name, err)
		}
	}

	r.Extra = nil
	for key, rawValue := range raw {
		if knownRequestFields[key] {
			continue
		}
		var value any
		if err := json.Unmarshal(rawValue, &value); err != nil {
			return fmt.Errorf("unmarshalling extra field %q: %w", key, err)
		}
		if r.Extra == nil {
			r.Extra = make(map[string]any)
		}
		r.Extra[key] = value
	}

	return nil
}

// MarshalJSON writes the known fields over Extra so the request can be
// forwarded with full fidelity.
func (r ChatCompletionsRequest) MarshalJSON() ([]byte, error) {
	result := r.Passthrough()
	if r.Model != "" {
		result["model"] = r.Model
	}
	if len(r.Messages) > 0 {
		result["messages"] = r.Messages
	}
	if r.Stream != nil {
		result["stream"] = *r.Stream
	}
	return json.Marshal(result)
}

// ChatCompletionsResponse is the non-streaming chat completion result every
// provider normalizes to.
type ChatCompletionsResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice represents a single completion choice in the response.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage contains token usage statistics for a completion request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewCompletion builds a single-choice assistant completion.
func NewCompletion(model, content string, usage Usage) *ChatCompletionsResponse {
	return &ChatCompletionsResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  ObjectChatCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      ChatMessage{Role: RoleAssistant, Content: content},
				FinishReason: FinishReasonStop,
			},
		},
		Usage: &usage,
	}
}
