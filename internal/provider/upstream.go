package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"nekoscout/internal/openai"
)

const (
	upstreamTimeout      = 30 * time.Second
	maxUpstreamErrorBody = 512
)

// Upstream forwards completions to a vendor's OpenAI-compatible
// /chat/completions endpoint using a bearer API key.
type Upstream struct {
	name        string
	displayName string
	baseURL     string
	apiKey      string
	models      []string
	params      Params
	client      *http.Client
}

// UpstreamConfig describes an OpenAI-compatible vendor endpoint.
type UpstreamConfig struct {
	Name        string
	DisplayName string
	BaseURL     string
	APIKey      string
	Models      []string

	// Client is optional; a client with a 30s timeout is used when nil.
	Client *http.Client
}

// UpstreamFactory returns a factory producing Upstream instances for cfg.
func UpstreamFactory(cfg UpstreamConfig) Factory {
	return func(params Params) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: %s has no API key", ErrInvalidSpec, cfg.Name)
		}
		client := cfg.Client
		if client == nil {
			client = &http.Client{Timeout: upstreamTimeout}
		}
		return &Upstream{
			name:        cfg.Name,
			displayName: cfg.DisplayName,
			baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
			apiKey:      cfg.APIKey,
			models:      cfg.Models,
			params:      params,
			client:      client,
		}, nil
	}
}

func (u *Upstream) Name() string {
	return u.name
}

func (u *Upstream) Models(ctx context.Context) ([]string, error) {
	models := make([]string, len(u.models))
	copy(models, u.models)
	return models, nil
}

// Chat posts the conversation upstream. Streaming is not proxied: the
// request is always sent with stream=false and the whole completion returned.
func (u *Upstream) Chat(ctx context.Context, in ChatInput) (*openai.ChatCompletionsResponse, error) {
	payload := make(map[string]any, len(in.Options)+5)
	payload["model"] = u.params.Model
	payload["max_tokens"] = u.params.MaxTokens
	payload["temperature"] = u.params.Temperature
	for k, v := range in.Options {
		payload[k] = v
	}
	payload["messages"] = in.Messages
	payload["stream"] = false

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+u.apiKey)
	req.Header.Set("User-Agent", "nekoscout/1.0")

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUpstream, u.displayName, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close upstream body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamErrorBody))
		return nil, fmt.Errorf("%w: %s API error: %d - %s", ErrUpstream, u.displayName, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var completion openai.ChatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("%w: %s: decoding response: %v", ErrUpstream, u.displayName, err)
	}
	if completion.Object == "" {
		completion.Object = openai.ObjectChatCompletion
	}
	if completion.Model == "" {
		completion.Model = u.params.Model
	}

	return &completion, nil
}
