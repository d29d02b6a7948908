package provider

import (
	"context"
	"fmt"

	"nekoscout/internal/openai"
)

// placeholderUsage is the fixed usage reported by canned completions.
var placeholderUsage = openai.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}

// Placeholder answers every conversation locally with a canned completion.
// It stands in for backends that have no upstream configured.
type Placeholder struct {
	name        string
	displayName string
	models      []string
	params      Params
}

// PlaceholderFactory returns a factory for a placeholder provider serving models.
func PlaceholderFactory(name, displayName string, models []string) Factory {
	return func(params Params) (Provider, error) {
		if len(models) == 0 {
			return nil, fmt.Errorf("%w: %s has no models", ErrInvalidSpec, name)
		}
		return &Placeholder{
			name:        name,
			displayName: displayName,
			models:      models,
			params:      params,
		}, nil
	}
}

func (p *Placeholder) Name() string {
	return p.name
}

// Chat ignores the stream flag and always returns a whole completion.
func (p *Placeholder) Chat(ctx context.Context, in ChatInput) (*openai.ChatCompletionsResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model := p.params.Model
	if model == "" {
		model = p.models[0]
	}

	content := fmt.Sprintf("I'm %s AI assistant. This is a placeholder response.", p.displayName)
	return openai.NewCompletion(model, content, placeholderUsage), nil
}

func (p *Placeholder) Models(ctx context.Context) ([]string, error) {
	models := make([]string, len(p.models))
	copy(models, p.models)
	return models, nil
}
