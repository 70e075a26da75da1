package adapter

import (
	"fmt"
	"strings"
)

// Registry maps provider ids and their historical aliases to adapters.
// It is filled once at startup and only read afterwards, so it carries no
// lock.
type Registry struct {
	adapters map[string]Adapter
	aliases  map[string]string
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		aliases:  make(map[string]string),
	}
}

// Register adds an adapter under its provider id plus optional aliases.
func (r *Registry) Register(a Adapter, aliases ...string) error {
	id := canonicalID(a.Provider())
	if _, exists := r.adapters[id]; exists {
		return &DuplicateProviderError{Provider: id}
	}
	if target, isAlias := r.aliases[id]; isAlias {
		return fmt.Errorf("provider id %q is already an alias of %q", id, target)
	}
	r.adapters[id] = a
	r.order = append(r.order, id)

	for _, alias := range aliases {
		if err := r.RegisterAlias(alias, id); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAlias points a legacy or alternate id at a registered provider.
func (r *Registry) RegisterAlias(alias, provider string) error {
	alias = canonicalID(alias)
	provider = canonicalID(provider)
	if _, ok := r.adapters[provider]; !ok {
		return &UnknownProviderError{Provider: provider}
	}
	if _, ok := r.adapters[alias]; ok {
		return &DuplicateProviderError{Provider: alias}
	}
	if existing, ok := r.aliases[alias]; ok && existing != provider {
		return fmt.Errorf("alias %q already points at %q", alias, existing)
	}
	r.aliases[alias] = provider
	return nil
}

// ResolveProviderAlias maps an alias to its current provider id. Unknown
// ids are returned in canonical form unchanged.
func (r *Registry) ResolveProviderAlias(id string) string {
	id = canonicalID(id)
	if target, ok := r.aliases[id]; ok {
		return target
	}
	return id
}

// Get resolves aliases first, then looks up the adapter.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[r.ResolveProviderAlias(id)]
	return a, ok
}

// Lookup is Get with an UnknownProviderError instead of a bool.
func (r *Registry) Lookup(id string) (Adapter, error) {
	a, ok := r.Get(id)
	if !ok {
		return nil, &UnknownProviderError{Provider: r.ResolveProviderAlias(id)}
	}
	return a, nil
}

// GetAll returns adapters in registration order.
func (r *Registry) GetAll() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.adapters[id])
	}
	return out
}

func canonicalID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
