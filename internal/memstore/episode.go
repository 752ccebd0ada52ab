// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// EpisodeRepo is a map-backed episode store.
type EpisodeRepo struct {
	mu    sync.RWMutex
	items map[string]*models.Episode
}

// NewEpisodeRepo creates an empty in-memory episode repository.
func NewEpisodeRepo() *EpisodeRepo {
	return &EpisodeRepo{items: make(map[string]*models.Episode)}
}

func (r *EpisodeRepo) FindByID(ctx context.Context, id string) (*models.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.items[id]
	if !ok {
		return nil, models.ErrEpisodeNotFound
	}
	clone := *ep
	return &clone, nil
}

func (r *EpisodeRepo) FindByAnimeID(ctx context.Context, animeID string) ([]*models.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Episode
	for _, ep := range r.items {
		if ep.AnimeID == animeID {
			clone := *ep
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r *EpisodeRepo) FindByNumber(ctx context.Context, animeID string, number int) (*models.Episode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ep := range r.items {
		if ep.AnimeID == animeID && ep.Number == number {
			clone := *ep
			return &clone, nil
		}
	}
	return nil, models.ErrEpisodeNotFound
}

func (r *EpisodeRepo) Save(ctx context.Context, ep *models.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *ep
	r.items[ep.ID] = &clone
	return nil
}

func (r *EpisodeRepo) SaveMany(ctx context.Context, eps []*models.Episode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ep := range eps {
		clone := *ep
		r.items[ep.ID] = &clone
	}
	return nil
}

func (r *EpisodeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return models.ErrEpisodeNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *EpisodeRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
