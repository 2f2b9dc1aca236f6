// Package config resolves external identity provider settings.
package config

import (
	"sort"

	"go.uber.org/fx"
)

// Provider describes one OAuth identity provider.
type Provider struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
}

// Configured reports whether the provider has credentials.
func (p Provider) Configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// Registry holds the configured identity providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from the given providers. Unconfigured
// providers are skipped.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		if p.Configured() {
			m[p.Name] = p
		}
	}
	return &Registry{providers: m}
}

// Get returns the provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names lists configured provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Module wires the provider registry from the environment.
var Module = fx.Module("auth.providerconfig",
	fx.Provide(LoadRegistry),
)
