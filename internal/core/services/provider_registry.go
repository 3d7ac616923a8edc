package services

import (
	"fmt"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// Ensure ProviderRegistry implements the interface.
var _ driven.ProviderRegistry = (*ProviderRegistry)(nil)

// ProviderRegistry resolves provider adapters by provider type.
type ProviderRegistry struct {
	providers map[domain.ProviderType]driven.Provider
}

// NewProviderRegistry creates a registry holding the given adapters. A later
// adapter for the same provider replaces an earlier one.
func NewProviderRegistry(providers ...driven.Provider) *ProviderRegistry {
	r := &ProviderRegistry{providers: make(map[domain.ProviderType]driven.Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Type()] = p
	}
	return r
}

// Get returns the adapter of a provider.
func (r *ProviderRegistry) Get(provider domain.ProviderType) (driven.Provider, error) {
	if p, ok := r.providers[provider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: provider %q", domain.ErrNotFound, provider)
}

// All returns the registered adapters in display order.
func (r *ProviderRegistry) All() []driven.Provider {
	all := make([]driven.Provider, 0, len(r.providers))
	for _, provider := range domain.AllProviders() {
		if p, ok := r.providers[provider]; ok {
			all = append(all, p)
		}
	}
	return all
}

// Matching returns the adapters whose URL pattern matches the project.
func (r *ProviderRegistry) Matching(project domain.Project) []driven.Provider {
	var matched []driven.Provider
	for _, p := range r.All() {
		if p.IsProjectService(project) {
			matched = append(matched, p)
		}
	}
	return matched
}
