// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"context"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// Counter is satisfied by every store's Count method.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// TorrentLister lists the full torrent set for histogram metrics.
type TorrentLister interface {
	FindAll(ctx context.Context) ([]*models.Torrent, error)
}

// StoreStats adapts the concrete stores to the collector's scrape surface.
type StoreStats struct {
	Anime    Counter
	Episodes Counter
	Seasons  Counter
	Torrent  TorrentLister
}

func (s StoreStats) AnimeCount(ctx context.Context) (int, error)   { return s.Anime.Count(ctx) }
func (s StoreStats) EpisodeCount(ctx context.Context) (int, error) { return s.Episodes.Count(ctx) }
func (s StoreStats) SeasonCount(ctx context.Context) (int, error)  { return s.Seasons.Count(ctx) }

func (s StoreStats) Torrents(ctx context.Context) ([]*models.Torrent, error) {
	return s.Torrent.FindAll(ctx)
}
