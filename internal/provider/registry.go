package provider

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Registry maps lowercase provider names to their specs. It is built once
// from a manifest and is read-only afterwards, so it needs no locking.
type Registry struct {
	specs map[string]Spec
}

// NewRegistry builds a registry from a manifest. Entries that cannot be
// registered are logged and left out; a bad entry never fails startup.
func NewRegistry(specs []Spec) *Registry {
	r := &Registry{
		specs: make(map[string]Spec, len(specs)),
	}

	for _, s := range specs {
		if err := r.register(s); err != nil {
			log.Printf("provider omitted: name=%q error=%v", s.Name, err)
		}
	}

	return r
}

func (r *Registry) register(s Spec) error {
	s.Name = strings.ToLower(strings.TrimSpace(s.Name))
	if s.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSpec)
	}
	if s.New == nil {
		return fmt.Errorf("%w: no factory", ErrInvalidSpec)
	}
	if _, exists := r.specs[s.Name]; exists {
		return fmt.Errorf("%w: duplicate name", ErrInvalidSpec)
	}
	if s.DisplayName == "" {
		s.DisplayName = s.Name
	}
	r.specs[s.Name] = s
	return nil
}

// Get returns a provider spec by name (case-insensitive).
func (r *Registry) Get(name string) (Spec, error) {
	s, ok := r.specs[strings.ToLower(name)]
	if !ok {
		return Spec{}, ErrProviderNotFound
	}
	return s, nil
}

// New constructs a fresh instance of the named provider.
func (r *Registry) New(name string, params Params) (Provider, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return s.New(params)
}

// List returns all registered specs sorted by name.
func (r *Registry) List() []Spec {
	specs := make([]Spec, 0, len(r.specs))
	for _, s := range r.specs {
		specs = append(specs, s)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Names returns the names of all registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Categories groups registered provider names by category.
func (r *Registry) Categories() map[string][]string {
	categories := make(map[string][]string)
	for _, s := range r.List() {
		if s.Category == "" {
			continue
		}
		categories[s.Category] = append(categories[s.Category], s.Name)
	}
	return categories
}
