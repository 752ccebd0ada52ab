// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package indexing searches the torrent indexer for an anime's releases,
// extracts structured metadata from the raw titles, links torrents to
// episodes and seasons, and answers best-torrent and stats queries.
package indexing

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/pkg/nyaa"
)

// Searcher is the indexer collaborator surface.
type Searcher interface {
	Search(ctx context.Context, req nyaa.SearchRequest) (*nyaa.SearchResponse, error)
}

// AnimeStore is the anime lookup surface the indexing service needs.
type AnimeStore interface {
	FindByID(ctx context.Context, id string) (*models.Anime, error)
}

// EpisodeStore supports the mapper's episode look-up-or-create path.
type EpisodeStore interface {
	FindByNumber(ctx context.Context, animeID string, number int) (*models.Episode, error)
	Save(ctx context.Context, ep *models.Episode) error
}

// SeasonStore supports season linkage and the season organizer.
type SeasonStore interface {
	FindByNumber(ctx context.Context, animeID string, seasonNumber int) (*models.AnimeSeason, error)
	Save(ctx context.Context, season *models.AnimeSeason) error
	SaveMany(ctx context.Context, seasons []*models.AnimeSeason) error
}

// TorrentStore is the torrent persistence surface.
type TorrentStore interface {
	FindByAnimeID(ctx context.Context, animeID string) ([]*models.Torrent, error)
	FindByFilters(ctx context.Context, filter models.TorrentSearchFilter) ([]*models.Torrent, error)
	SaveMany(ctx context.Context, torrents []*models.Torrent) error
	DeleteByAnimeID(ctx context.Context, animeID string) error
}

// Service is the torrent indexing subsystem. It is constructed only when the
// indexer is configured; a Service with a nil searcher fails every indexing
// operation fast with domain.ErrIndexingDisabled.
type Service struct {
	searcher Searcher
	animes   AnimeStore
	episodes EpisodeStore
	seasons  SeasonStore
	torrents TorrentStore
	category string
}

// NewService creates the indexing service. searcher may be nil when the
// indexer is not configured; episodes and seasons may be nil, which disables
// the corresponding linkage (torrents are still produced).
func NewService(searcher Searcher, animes AnimeStore, episodes EpisodeStore, seasons SeasonStore, torrents TorrentStore) *Service {
	return &Service{
		searcher: searcher,
		animes:   animes,
		episodes: episodes,
		seasons:  seasons,
		torrents: torrents,
		category: nyaa.CategoryAnimeEnglish,
	}
}

// Enabled reports whether the indexer collaborator is configured.
func (s *Service) Enabled() bool {
	return s.searcher != nil
}

func (s *Service) requireIndexer() error {
	if s.searcher == nil {
		return domain.ErrIndexingDisabled
	}
	return nil
}

// IndexAnime searches the indexer once per title variant (romaji, english,
// native, in that order), maps every raw result against the anime,
// deduplicates the concatenated batch, and replaces the anime's stored
// torrent set. Variant searches run sequentially to keep indexer load
// bounded; a failed variant search is logged and skipped.
func (s *Service) IndexAnime(ctx context.Context, animeID string) ([]*models.Torrent, error) {
	if err := s.requireIndexer(); err != nil {
		return nil, err
	}

	anime, err := s.animes.FindByID(ctx, animeID)
	if err != nil {
		return nil, err
	}

	var candidates []*models.Torrent
	for _, variant := range searchVariants(anime) {
		resp, err := s.searcher.Search(ctx, nyaa.SearchRequest{
			Query:    variant,
			Category: s.category,
			SortBy:   "seeders",
			Order:    "desc",
		})
		if err != nil {
			log.Warn().
				Err(err).
				Str("animeID", animeID).
				Str("query", variant).
				Msg("indexer search failed for title variant, continuing")
			continue
		}

		for _, raw := range resp.Torrents {
			candidates = append(candidates, s.MapTorrent(ctx, raw, anime, nil))
		}
	}

	deduped := Deduplicate(candidates)

	if err := s.torrents.DeleteByAnimeID(ctx, animeID); err != nil {
		return nil, err
	}
	if err := s.torrents.SaveMany(ctx, deduped); err != nil {
		return nil, err
	}

	log.Info().
		Str("animeID", animeID).
		Int("candidates", len(candidates)).
		Int("stored", len(deduped)).
		Msg("anime torrent index refreshed")

	return deduped, nil
}

// SearchEpisode runs an episode-scoped indexer search ("<title> <number>")
// and maps results with the episode number as an explicit override. Results
// are deduplicated but not persisted.
func (s *Service) SearchEpisode(ctx context.Context, animeID string, episode int) ([]*models.Torrent, error) {
	if err := s.requireIndexer(); err != nil {
		return nil, err
	}
	if episode < 1 {
		return nil, domain.NewValidationError("episode", "must be >= 1")
	}

	anime, err := s.animes.FindByID(ctx, animeID)
	if err != nil {
		return nil, err
	}

	variants := searchVariants(anime)
	if len(variants) == 0 {
		return nil, domain.NewValidationError("anime", "has no searchable title")
	}

	resp, err := s.searcher.Search(ctx, nyaa.SearchRequest{
		Query:    variants[0] + " " + episodeQueryToken(episode),
		Category: s.category,
		SortBy:   "seeders",
		Order:    "desc",
	})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Torrent, 0, len(resp.Torrents))
	for _, raw := range resp.Torrents {
		out = append(out, s.MapTorrent(ctx, raw, anime, &episode))
	}
	return Deduplicate(out), nil
}

// Torrents returns the stored torrents for an anime, filtered.
func (s *Service) Torrents(ctx context.Context, filter models.TorrentSearchFilter) ([]*models.Torrent, error) {
	return s.torrents.FindByFilters(ctx, filter)
}

// searchVariants returns the anime's distinct non-empty titles in the fixed
// query order: romaji, english, native.
func searchVariants(anime *models.Anime) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, title := range []string{anime.Title.Romaji, anime.Title.English, anime.Title.Native} {
		if title == "" {
			continue
		}
		if _, ok := seen[title]; ok {
			continue
		}
		seen[title] = struct{}{}
		out = append(out, title)
	}
	return out
}
