// Package providers wires the configured avatar provider, cache store and
// fetch queue into loaders.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/briangreenhill/campavatars/avatar"
	"github.com/briangreenhill/campavatars/cache"
	"github.com/briangreenhill/campavatars/fetchqueue"
	"github.com/briangreenhill/campavatars/internal/config"
)

// Stack holds the long-lived pieces shared by every loader: the cache and
// the provider. Queues are per loader.
type Stack struct {
	Cache         *cache.Expiring
	Provider      avatar.Provider
	Registry      *avatar.Registry
	MaxConcurrent int

	log    zerolog.Logger
	closer io.Closer
}

// Setup builds the stack described by cfg
func Setup(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Stack, error) {
	httpClient := &http.Client{Timeout: cfg.Avatar.HTTPTimeout}
	registry := avatar.DefaultRegistry(httpClient, cfg.Avatar.Endpoint)

	provider, ok := registry.Get(cfg.Avatar.Provider)
	if !ok {
		return nil, fmt.Errorf("provider '%s' not found. Available providers: %v", cfg.Avatar.Provider, registry.List())
	}

	store, closer, err := cache.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open avatar store: %w", err)
	}

	return &Stack{
		Cache:         cache.NewExpiring(store, cache.WithLogger(log)),
		Provider:      provider,
		Registry:      registry,
		MaxConcurrent: cfg.Avatar.MaxConcurrent,
		log:           log,
		closer:        closer,
	}, nil
}

// NewLoader returns a loader with its own queue. One loader corresponds to
// one page load: identities are fetched at most once per loader.
func (s *Stack) NewLoader() *avatar.Loader {
	q := fetchqueue.New[avatar.Result](s.MaxConcurrent)
	return avatar.NewLoader(s.Cache, q, s.Provider, avatar.WithLoaderLogger(s.log))
}

// Close releases the store connection
func (s *Stack) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
