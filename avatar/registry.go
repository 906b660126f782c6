package avatar

import (
	"net/http"
	"sort"
)

// Provider names
const (
	ProviderTwitch = "twitch"
	ProviderCustom = "custom"
)

// Provider is a named Resolver (e.g., "twitch")
type Provider interface {
	Resolver

	// Name returns the name used to select the provider
	Name() string
}

type namedClient struct {
	*Client
	name string
}

func (n namedClient) Name() string { return n.name }

// NewProvider names a Client so it can be registered
func NewProvider(name string, c *Client) Provider {
	return namedClient{Client: c, name: name}
}

// Registry manages available avatar providers
type Registry struct {
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// DefaultRegistry registers the Twitch provider and, when customEndpoint is
// set, a "custom" provider that uses it.
func DefaultRegistry(h *http.Client, customEndpoint string) *Registry {
	r := NewRegistry()
	r.Register(NewProvider(ProviderTwitch, New(WithHTTPClient(h))))
	if customEndpoint != "" {
		r.Register(NewProvider(ProviderCustom, New(WithHTTPClient(h), WithEndpoint(customEndpoint))))
	}
	return r
}

// Register adds a provider, replacing any with the same name
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// List returns all registered provider names, sorted
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
