// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// TorrentRepo is a map-backed torrent store.
type TorrentRepo struct {
	mu    sync.RWMutex
	items map[string]*models.Torrent
}

// NewTorrentRepo creates an empty in-memory torrent repository.
func NewTorrentRepo() *TorrentRepo {
	return &TorrentRepo{items: make(map[string]*models.Torrent)}
}

func (r *TorrentRepo) FindByID(ctx context.Context, id string) (*models.Torrent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.items[id]
	if !ok {
		return nil, models.ErrTorrentNotFound
	}
	clone := *t
	return &clone, nil
}

func (r *TorrentRepo) FindByAnimeID(ctx context.Context, animeID string) ([]*models.Torrent, error) {
	return r.FindByFilters(ctx, models.TorrentSearchFilter{AnimeID: animeID})
}

func (r *TorrentRepo) FindByEpisodeID(ctx context.Context, episodeID string) ([]*models.Torrent, error) {
	return r.FindByFilters(ctx, models.TorrentSearchFilter{EpisodeID: episodeID})
}

// FindByFilters evaluates the shared filter predicate and returns matches
// ordered by descending seeders.
func (r *TorrentRepo) FindByFilters(ctx context.Context, filter models.TorrentSearchFilter) ([]*models.Torrent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Torrent
	for _, t := range r.items {
		if filter.Matches(t) {
			clone := *t
			out = append(out, &clone)
		}
	}
	sortBySeedersDesc(out)
	return out, nil
}

func (r *TorrentRepo) Save(ctx context.Context, t *models.Torrent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *t
	clone.EpisodeIDs = slices.Clone(t.EpisodeIDs)
	r.items[t.ID] = &clone
	return nil
}

func (r *TorrentRepo) SaveMany(ctx context.Context, torrents []*models.Torrent) error {
	for _, t := range torrents {
		if err := r.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *TorrentRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return models.ErrTorrentNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *TorrentRepo) DeleteByAnimeID(ctx context.Context, animeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.items {
		if t.AnimeID == animeID {
			delete(r.items, id)
		}
	}
	return nil
}

func (r *TorrentRepo) FindAll(ctx context.Context) ([]*models.Torrent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Torrent, 0, len(r.items))
	for _, t := range r.items {
		clone := *t
		out = append(out, &clone)
	}
	sortBySeedersDesc(out)
	return out, nil
}

func (r *TorrentRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items), nil
}

func sortBySeedersDesc(torrents []*models.Torrent) {
	sort.SliceStable(torrents, func(i, j int) bool {
		return torrents[i].Seeders > torrents[j].Seeders
	})
}
