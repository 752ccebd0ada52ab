// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package memstore provides in-memory repositories with the same surface as
// the SQLite stores in internal/models. They back tests and the ephemeral
// run mode where no database path is configured.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// AnimeRepo is a map-backed anime store.
type AnimeRepo struct {
	mu    sync.RWMutex
	items map[string]*models.Anime
}

// NewAnimeRepo creates an empty in-memory anime repository.
func NewAnimeRepo() *AnimeRepo {
	return &AnimeRepo{items: make(map[string]*models.Anime)}
}

func (r *AnimeRepo) FindByID(ctx context.Context, id string) (*models.Anime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	anime, ok := r.items[id]
	if !ok {
		return nil, models.ErrAnimeNotFound
	}
	clone := *anime
	return &clone, nil
}

func (r *AnimeRepo) FindByExternalID(ctx context.Context, source models.SourceTag, externalID string) (*models.Anime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, anime := range r.items {
		for _, ext := range anime.ExternalIDs {
			if ext.Source == source && ext.ID == externalID {
				clone := *anime
				return &clone, nil
			}
		}
	}
	return nil, models.ErrAnimeNotFound
}

// SearchByTitle matches fuzzily against every title variant and synonym,
// case-insensitive, ordered by ascending Levenshtein distance to the query.
func (r *AnimeRepo) SearchByTitle(ctx context.Context, text string, limit int) ([]*models.Anime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type scored struct {
		anime *models.Anime
		rank  int
	}

	var matches []scored
	for _, anime := range r.items {
		rank := -1
		for _, variant := range titleVariants(anime) {
			if got := fuzzy.RankMatchNormalizedFold(text, variant); got >= 0 {
				if rank < 0 || got < rank {
					rank = got
				}
			}
		}
		if rank >= 0 {
			clone := *anime
			matches = append(matches, scored{anime: &clone, rank: rank})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].rank < matches[j].rank })

	out := make([]*models.Anime, 0, len(matches))
	for _, m := range matches {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, m.anime)
	}
	return out, nil
}

func titleVariants(anime *models.Anime) []string {
	variants := make([]string, 0, 3+len(anime.Title.Synonyms))
	for _, v := range []string{anime.Title.Romaji, anime.Title.English, anime.Title.Native} {
		if v != "" {
			variants = append(variants, v)
		}
	}
	variants = append(variants, anime.Title.Synonyms...)
	return variants
}

func (r *AnimeRepo) Save(ctx context.Context, anime *models.Anime) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *anime
	r.items[anime.ID] = &clone
	return nil
}

func (r *AnimeRepo) SaveMany(ctx context.Context, animes []*models.Anime) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, anime := range animes {
		clone := *anime
		r.items[anime.ID] = &clone
	}
	return nil
}

func (r *AnimeRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return models.ErrAnimeNotFound
	}
	delete(r.items, id)
	return nil
}

// FindAll pages through all records ordered by main title. page is 1-based.
func (r *AnimeRepo) FindAll(ctx context.Context, page, limit int) ([]*models.Anime, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*models.Anime, 0, len(r.items))
	for _, anime := range r.items {
		clone := *anime
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool {
		return strings.ToLower(all[i].Title.Main()) < strings.ToLower(all[j].Title.Main())
	})

	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []*models.Anime{}, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (r *AnimeRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}
