package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"strings"

	"nekoscout/internal/openai"
	"nekoscout/internal/provider"
)

// Parameter defaults applied when the request leaves them unset.
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// ErrProviderFailed wraps any error returned by a provider's Chat call.
var ErrProviderFailed = errors.New("provider request failed")

// Engine resolves providers for incoming requests and forwards them.
type Engine struct {
	registry        *provider.Registry
	cache           *InstanceCache
	defaultProvider string
}

// NewEngine creates an engine over a registry. Unmatched models go to
// defaultProvider.
func NewEngine(registry *provider.Registry, defaultProvider string) *Engine {
	return &Engine{
		registry:        registry,
		cache:           NewInstanceCache(),
		defaultProvider: strings.ToLower(defaultProvider),
	}
}

// Route returns the provider name a model is dispatched to.
func (e *Engine) Route(model string) string {
	return RouteModelToProvider(model, e.defaultProvider)
}

// Cache exposes the engine's instance cache.
func (e *Engine) Cache() *InstanceCache {
	return e.cache
}

// Result is a completed dispatch: the provider used and its response.
type Result struct {
	Provider string
	Response *openai.ChatCompletionsResponse
}

// ChatCompletions routes req by its model and forwards it to the cached
// provider instance. The provider's response is returned as is.
//
// The provider name is always returned when routing succeeded, even on
// error, so callers can record which backend failed.
func (e *Engine) ChatCompletions(ctx context.Context, req *openai.ChatCompletionsRequest) (Result, error) {
	name := e.Route(req.Model)
	result := Result{Provider: name}

	params := provider.Params{
		Model:       req.Model,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
	if req.MaxTokens != nil {
		params.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}

	p, err := e.cache.GetOrCreate(name, params, func() (provider.Provider, error) {
		return e.registry.New(name, params)
	})
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotFound) {
			return result, fmt.Errorf("%w: %s", provider.ErrProviderNotFound, name)
		}
		return result, fmt.Errorf("%w: %s: %w", ErrProviderFailed, name, err)
	}

	resp, err := p.Chat(ctx, provider.ChatInput{
		Messages: req.Messages,
		Stream:   req.IsStreaming(),
		Options:  req.Passthrough(),
	})
	if err != nil {
		return result, fmt.Errorf("%w: %s: %w", ErrProviderFailed, name, err)
	}

	result.Response = resp
	return result, nil
}

// ProviderModels is one provider's entry in the model catalog.
type ProviderModels struct {
	Models []string `json:"models"`
	Count  int      `json:"count"`
	Error  string   `json:"error,omitempty"`
}

// ModelCatalog aggregates the models of every registered provider.
type ModelCatalog struct {
	Providers      map[string]ProviderModels `json:"providers"`
	TotalProviders int                       `json:"total_providers"`
	TotalModels    int                       `json:"total_models"`
}

// AvailableModels asks every registered provider for its models. A provider
// that fails to build, errors or panics gets an empty entry with an error;
// the others are unaffected.
func (e *Engine) AvailableModels(ctx context.Context) *ModelCatalog {
	catalog := &ModelCatalog{
		Providers: make(map[string]ProviderModels, e.registry.Len()),
	}

	for _, spec := range e.registry.List() {
		models, err := listModels(ctx, spec)
		if err != nil {
			log.Printf("model listing failed: provider=%s error=%v", spec.Name, err)
			catalog.Providers[spec.Name] = ProviderModels{Models: []string{}, Error: err.Error()}
			continue
		}
		if models == nil {
			models = []string{}
		}
		catalog.Providers[spec.Name] = ProviderModels{Models: models, Count: len(models)}
		catalog.TotalModels += len(models)
	}

	catalog.TotalProviders = len(catalog.Providers)
	return catalog
}

// listModels builds a throwaway instance with default parameters and lists
// its models, turning a panic into an error.
func listModels(ctx context.Context, spec provider.Spec) (models []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("panic recovered: provider=%s panic=%v\n%s", spec.Name, rec, debug.Stack())
			err = fmt.Errorf("panic in %s: %v", spec.Name, rec)
		}
	}()

	p, err := spec.New(provider.Params{})
	if err != nil {
		return nil, err
	}
	return p.Models(ctx)
}
