package sync

import (
	"context"
	"fmt"
	"sort"
)

// ProviderFunc constructs a calendar client for one provider.
type ProviderFunc func(ctx context.Context) (Calendar, error)

// Registry maps provider names to calendar client factories. It is
// constructed explicitly at startup and passed by reference, keeping
// initialization order visible instead of hiding it in package-level state.
type Registry struct {
	providers map[string]ProviderFunc
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ProviderFunc)}
}

// Register adds a provider factory under the given name, replacing any
// previous registration.
func (r *Registry) Register(name string, f ProviderFunc) {
	r.providers[name] = f
}

// New constructs the calendar client for a named provider.
func (r *Registry) New(ctx context.Context, name string) (Calendar, error) {
	f, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown calendar provider %q (registered: %v)", name, r.Providers())
	}
	return f(ctx)
}

// Providers returns the registered provider names, sorted.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
