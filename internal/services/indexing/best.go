// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexing

import (
	"context"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// qualityPriority is the fixed preference order for best-quality selection.
var qualityPriority = []models.VideoQuality{
	models.QualityUHD4K,
	models.QualityFullHD,
	models.QualityHD,
	models.QualitySD,
}

// BestForEpisode returns the best stored torrent covering the episode:
// an exact match on the preferred quality if one exists, else the
// highest-seeded candidate. An absent preferred quality is not an error.
func (s *Service) BestForEpisode(ctx context.Context, animeID string, episode int, preferred models.VideoQuality) (*models.Torrent, error) {
	candidates, err := s.torrents.FindByFilters(ctx, models.TorrentSearchFilter{
		AnimeID:       animeID,
		EpisodeNumber: &episode,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, models.ErrTorrentNotFound
	}

	if preferred != "" {
		for _, t := range candidates {
			if t.Metadata.Quality == preferred {
				return t, nil
			}
		}
	}

	// candidates are pre-sorted by seeders descending
	return candidates[0], nil
}

// BestQualityForEpisode walks the fixed quality priority list and returns the
// first tier with at least one covering torrent; with no tier populated it
// falls back to the top-seeded torrent's own quality.
func (s *Service) BestQualityForEpisode(ctx context.Context, animeID string, episode int) (models.VideoQuality, error) {
	candidates, err := s.torrents.FindByFilters(ctx, models.TorrentSearchFilter{
		AnimeID:       animeID,
		EpisodeNumber: &episode,
	})
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", models.ErrTorrentNotFound
	}

	for _, quality := range qualityPriority {
		for _, t := range candidates {
			if t.Metadata.Quality == quality {
				return quality, nil
			}
		}
	}

	return candidates[0].Metadata.Quality, nil
}

// TorrentStats aggregates an anime's stored torrent set.
type TorrentStats struct {
	Count          int                         `json:"count"`
	ByQuality      map[models.VideoQuality]int `json:"byQuality"`
	ByAudioLang    map[models.Language]int     `json:"byAudioLanguage"`
	ByReleaseType  map[models.ReleaseType]int  `json:"byReleaseType"`
	AverageSeeders float64                     `json:"averageSeeders"`
	TotalSizeBytes int64                       `json:"totalSizeBytes"`
}

// Stats computes the aggregate view over an anime's torrents. A torrent with
// several audio languages increments every matching language bucket.
func (s *Service) Stats(ctx context.Context, animeID string) (*TorrentStats, error) {
	torrents, err := s.torrents.FindByAnimeID(ctx, animeID)
	if err != nil {
		return nil, err
	}

	stats := &TorrentStats{
		Count:         len(torrents),
		ByQuality:     make(map[models.VideoQuality]int),
		ByAudioLang:   make(map[models.Language]int),
		ByReleaseType: make(map[models.ReleaseType]int),
	}

	var seeders int
	for _, t := range torrents {
		stats.ByQuality[t.Metadata.Quality]++
		stats.ByReleaseType[t.Metadata.ReleaseType]++
		for _, lang := range t.Metadata.AudioLanguages {
			stats.ByAudioLang[lang]++
		}
		seeders += t.Seeders
		stats.TotalSizeBytes += t.SizeBytes
	}

	if stats.Count > 0 {
		stats.AverageSeeders = float64(seeders) / float64(stats.Count)
	}

	return stats, nil
}
