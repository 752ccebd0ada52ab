// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexing

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// episodesPerSeason is the heuristic chunk size used absent authoritative
// season boundaries.
const episodesPerSeason = 13

// OrganizeSeasons partitions a flat, number-ordered episode list into
// consecutive seasons of at most episodesPerSeason episodes, persists them,
// and returns the created seasons in order. A list of 13 or fewer episodes
// yields exactly one season.
func (s *Service) OrganizeSeasons(ctx context.Context, animeID string, episodes []*models.Episode) ([]*models.AnimeSeason, error) {
	if s.seasons == nil {
		return nil, errors.New("season store not configured")
	}
	if len(episodes) == 0 {
		return nil, nil
	}

	now := time.Now()
	var seasons []*models.AnimeSeason

	for start := 0; start < len(episodes); start += episodesPerSeason {
		end := start + episodesPerSeason
		if end > len(episodes) {
			end = len(episodes)
		}

		chunk := make([]models.Episode, 0, end-start)
		for _, ep := range episodes[start:end] {
			chunk = append(chunk, *ep)
		}

		number := len(seasons) + 1
		season := &models.AnimeSeason{
			ID:           models.NewSeasonID(),
			AnimeID:      animeID,
			SeasonNumber: number,
			EpisodeCount: len(chunk),
			Episodes:     chunk,
			Aired:        chunkAired(chunk),
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		// a season with this number may already exist from an earlier run;
		// keep its identity so the upsert updates in place instead of
		// colliding on (anime_id, season_number)
		existing, err := s.seasons.FindByNumber(ctx, animeID, number)
		switch {
		case err == nil:
			season.ID = existing.ID
			season.CreatedAt = existing.CreatedAt
		case !errors.Is(err, models.ErrSeasonNotFound):
			return nil, err
		}
		seasons = append(seasons, season)
	}

	if err := s.seasons.SaveMany(ctx, seasons); err != nil {
		return nil, err
	}

	return seasons, nil
}

// chunkAired derives the season's aired range from its first and last
// episode dates, when known.
func chunkAired(chunk []models.Episode) models.DateRange {
	var aired models.DateRange
	if len(chunk) == 0 {
		return aired
	}
	aired.From = chunk[0].AiredDate
	aired.To = chunk[len(chunk)-1].AiredDate
	return aired
}
