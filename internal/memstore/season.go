// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// SeasonRepo is a map-backed season store.
type SeasonRepo struct {
	mu    sync.RWMutex
	items map[string]*models.AnimeSeason
}

// NewSeasonRepo creates an empty in-memory season repository.
func NewSeasonRepo() *SeasonRepo {
	return &SeasonRepo{items: make(map[string]*models.AnimeSeason)}
}

func (r *SeasonRepo) FindByID(ctx context.Context, id string) (*models.AnimeSeason, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	season, ok := r.items[id]
	if !ok {
		return nil, models.ErrSeasonNotFound
	}
	clone := *season
	return &clone, nil
}

func (r *SeasonRepo) FindByAnimeID(ctx context.Context, animeID string) ([]*models.AnimeSeason, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.AnimeSeason
	for _, season := range r.items {
		if season.AnimeID == animeID {
			clone := *season
			out = append(out, &clone)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeasonNumber < out[j].SeasonNumber })
	return out, nil
}

func (r *SeasonRepo) FindByNumber(ctx context.Context, animeID string, seasonNumber int) (*models.AnimeSeason, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, season := range r.items {
		if season.AnimeID == animeID && season.SeasonNumber == seasonNumber {
			clone := *season
			return &clone, nil
		}
	}
	return nil, models.ErrSeasonNotFound
}

func (r *SeasonRepo) Save(ctx context.Context, season *models.AnimeSeason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *season
	r.items[season.ID] = &clone
	return nil
}

func (r *SeasonRepo) SaveMany(ctx context.Context, seasons []*models.AnimeSeason) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, season := range seasons {
		clone := *season
		r.items[season.ID] = &clone
	}
	return nil
}

func (r *SeasonRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return models.ErrSeasonNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *SeasonRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
