// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexing

import (
	"context"
	"fmt"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/releasemeta"
	"github.com/kitsuneislife/miau-index/pkg/nyaa"
)

// MapTorrent converts one raw indexer result into a Torrent associated with
// anime. explicitEpisode overrides title-based episode extraction for
// episode-scoped searches. Mapping never fails: unextractable pieces degrade
// to zero values and broken episode/season linkage is logged and dropped.
func (s *Service) MapTorrent(ctx context.Context, raw nyaa.Torrent, anime *models.Anime, explicitEpisode *int) *models.Torrent {
	t := &models.Torrent{
		ID:          models.NewTorrentID(),
		NyaaID:      raw.ID,
		Title:       raw.Title,
		MagnetLink:  raw.MagnetLink,
		InfoHash:    infoHashFromMagnet(raw.MagnetLink),
		Size:        raw.Size,
		SizeBytes:   parseSizeBytes(raw.Size),
		Seeders:     raw.Seeders,
		Leechers:    raw.Leechers,
		Downloads:   raw.Downloads,
		PublishedAt: raw.Date,
		LastChecked: time.Now(),
		AnimeID:     anime.ID,
		Metadata:    releasemeta.Extract(raw.Title),
		Trusted:     raw.IsTrusted,
		Remake:      raw.IsRemake,
	}

	// Explicit override wins over title extraction. Ranges are tried before
	// single episodes: the single-episode patterns also match inside batch
	// spans like "01-12", so the order is load-bearing.
	if explicitEpisode != nil {
		number := *explicitEpisode
		t.EpisodeNumber = &number
	} else if r, ok := releasemeta.ExtractEpisodeRange(raw.Title); ok {
		if r.Start > r.End {
			log.Warn().
				Str("title", raw.Title).
				Int("start", r.Start).
				Int("end", r.End).
				Msg("discarding inverted episode range, storing torrent unclassified")
		} else {
			t.EpisodeRange = &models.EpisodeRange{Start: r.Start, End: r.End}
		}
	} else if number, ok := releasemeta.ExtractEpisodeNumber(raw.Title); ok {
		t.EpisodeNumber = &number
	}

	if seasonNumber, ok := releasemeta.ExtractSeasonNumber(raw.Title); ok {
		t.SeasonID = s.attachSeason(ctx, anime.ID, seasonNumber)
	}

	if t.EpisodeNumber != nil {
		if episodeID := s.attachEpisode(ctx, anime.ID, *t.EpisodeNumber); episodeID != "" {
			t.EpisodeIDs = append(t.EpisodeIDs, episodeID)
		}
	}

	return t
}

// attachSeason looks up or creates the season record for (animeID, number).
// Failures are logged and swallowed; the caller keeps the torrent without a
// season id.
func (s *Service) attachSeason(ctx context.Context, animeID string, number int) string {
	if s.seasons == nil {
		return ""
	}

	season, err := s.seasons.FindByNumber(ctx, animeID, number)
	if err == nil {
		return season.ID
	}

	now := time.Now()
	created := &models.AnimeSeason{
		ID:           models.NewSeasonID(),
		AnimeID:      animeID,
		SeasonNumber: number,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.seasons.Save(ctx, created); err != nil {
		log.Warn().
			Err(err).
			Str("animeID", animeID).
			Int("season", number).
			Msg("failed to create season for torrent linkage")
		return ""
	}
	return created.ID
}

// attachEpisode is the episode analog of attachSeason.
func (s *Service) attachEpisode(ctx context.Context, animeID string, number int) string {
	if s.episodes == nil {
		return ""
	}

	episode, err := s.episodes.FindByNumber(ctx, animeID, number)
	if err == nil {
		return episode.ID
	}

	now := time.Now()
	created := &models.Episode{
		ID:        models.NewEpisodeID(),
		AnimeID:   animeID,
		Number:    number,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.episodes.Save(ctx, created); err != nil {
		log.Warn().
			Err(err).
			Str("animeID", animeID).
			Int("episode", number).
			Msg("failed to create episode for torrent linkage")
		return ""
	}
	return created.ID
}

// infoHashFromMagnet extracts the btih hash from a magnet link, lower-cased.
// Returns "" when the link is absent or unparseable.
func infoHashFromMagnet(magnetLink string) string {
	if magnetLink == "" {
		return ""
	}
	magnet, err := metainfo.ParseMagnetUri(magnetLink)
	if err != nil {
		return ""
	}
	return magnet.InfoHash.HexString()
}

// parseSizeBytes parses human-readable sizes like "1.4 GiB" or "700 MB".
// Unparseable strings yield 0.
func parseSizeBytes(size string) int64 {
	if size == "" {
		return 0
	}
	bytes, err := humanize.ParseBytes(size)
	if err != nil {
		return 0
	}
	return int64(bytes)
}

func episodeQueryToken(episode int) string {
	return fmt.Sprintf("%02d", episode)
}
