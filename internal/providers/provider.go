// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package providers implements the external catalog clients and the registry
// the unifier dispatches through.
package providers

import (
	"context"
	"sync"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// Provider is the capability interface one external catalog implements.
// Methods fail soft: lookups return (nil, nil) on not-found and searches
// return empty slices; only transport-level exhaustion surfaces as an error.
type Provider interface {
	Source() models.SourceTag
	FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error)
	SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error)
	GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error)
	IsAvailable(ctx context.Context) bool
}

// EpisodeLister is the optional per-provider episode capability.
type EpisodeLister interface {
	FetchEpisodes(ctx context.Context, animeID, externalID string) ([]*models.Episode, error)
}

// Registry holds registered providers in registration order. Iteration order
// is the source-iteration order the unifier's field selection depends on.
type Registry struct {
	mu        sync.RWMutex
	order     []models.SourceTag
	providers map[models.SourceTag]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[models.SourceTag]Provider)}
}

// Register adds a provider. Re-registering a source replaces it in place
// without changing its position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag := p.Source()
	if _, exists := r.providers[tag]; !exists {
		r.order = append(r.order, tag)
	}
	r.providers[tag] = p
}

// Get returns the provider registered for a source, or nil.
func (r *Registry) Get(tag models.SourceTag) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[tag]
}

// All returns the providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, tag := range r.order {
		out = append(out, r.providers[tag])
	}
	return out
}

// Sources returns the registered source tags in registration order.
func (r *Registry) Sources() []models.SourceTag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.SourceTag(nil), r.order...)
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
