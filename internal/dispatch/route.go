// Package dispatch routes chat completion requests to a provider chosen from
// the model name and keeps one provider instance per distinct parameter set.
package dispatch

import "strings"

type routeRule struct {
	anyOf    []string // matches if the model contains any of these
	allOf    []string // matches if the model contains all of these
	provider string
}

// routeRules are evaluated in order; the first match wins.
var routeRules = []routeRule{
	{anyOf: []string{"gpt", "openai"}, provider: "openai"},
	{anyOf: []string{"gemini", "google"}, provider: "gemini"},
	{anyOf: []string{"claude", "anthropic"}, provider: "claude"},
	{allOf: []string{"llama", "groq"}, provider: "groq"},
	{anyOf: []string{"llama", "meta"}, provider: "meta"},
	{anyOf: []string{"command", "cohere"}, provider: "cohere"},
	{anyOf: []string{"mixtral", "groq"}, provider: "groq"},
}

func (r routeRule) matches(model string) bool {
	if len(r.allOf) > 0 {
		for _, s := range r.allOf {
			if !strings.Contains(model, s) {
				return false
			}
		}
		return true
	}
	for _, s := range r.anyOf {
		if strings.Contains(model, s) {
			return true
		}
	}
	return false
}

// RouteModelToProvider picks the provider for a model name by case-insensitive
// substring rules, falling back to defaultProvider (lower-cased).
func RouteModelToProvider(model, defaultProvider string) string {
	m := strings.ToLower(model)
	for _, rule := range routeRules {
		if rule.matches(m) {
			return rule.provider
		}
	}
	return strings.ToLower(defaultProvider)
}
