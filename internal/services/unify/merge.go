// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package unify merges per-source anime records into canonical records and
// runs the multi-provider search and fetch paths that feed it.
package unify

import (
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
)

// ErrNoSourceData is returned when a unification is attempted with no
// contributing source records.
var ErrNoSourceData = errors.New("no data from any source")

// Merge combines per-source records into one canonical Anime.
//
// Scalar fields take the first defined value in input order. The options'
// PreferredSources list is accepted but does not reorder candidates; callers
// control priority through the order of records.
// Synopsis is special-cased to the longest non-empty value. Ratings and
// external ids are concatenated, never deduplicated. Array fields are either
// unioned (sorted, deduplicated) or taken from the first record, depending on
// opts.MergeArrays.
func Merge(records []*models.Anime, opts domain.UnificationOptions) (*models.Anime, error) {
	if len(records) == 0 {
		return nil, ErrNoSourceData
	}

	base := records[0]
	now := time.Now()

	out := &models.Anime{
		ID: base.ID,
		Title: models.Title{
			Romaji:  firstString(records, func(a *models.Anime) string { return a.Title.Romaji }),
			English: firstString(records, func(a *models.Anime) string { return a.Title.English }),
			Native:  firstString(records, func(a *models.Anime) string { return a.Title.Native }),
		},
		Type:            models.AnimeType(firstString(records, func(a *models.Anime) string { return string(a.Type) })),
		Status:          models.AnimeStatus(firstString(records, func(a *models.Anime) string { return string(a.Status) })),
		Season:          models.AiringSeason(firstString(records, func(a *models.Anime) string { return string(a.Season) })),
		EpisodeCount:    firstInt(records, func(a *models.Anime) int { return a.EpisodeCount }),
		DurationMinutes: firstInt(records, func(a *models.Anime) int { return a.DurationMinutes }),
		Year:            firstInt(records, func(a *models.Anime) int { return a.Year }),
		Synopsis:        longestString(records, func(a *models.Anime) string { return a.Synopsis }),
		Background:      firstString(records, func(a *models.Anime) string { return a.Background }),
		Images: models.ImageSet{
			Poster:    firstString(records, func(a *models.Anime) string { return a.Images.Poster }),
			Banner:    firstString(records, func(a *models.Anime) string { return a.Images.Banner }),
			Thumbnail: firstString(records, func(a *models.Anime) string { return a.Images.Thumbnail }),
		},
		Aired: models.DateRange{
			From: firstTime(records, func(a *models.Anime) *time.Time { return a.Aired.From }),
			To:   firstTime(records, func(a *models.Anime) *time.Time { return a.Aired.To }),
		},
		CreatedAt:    base.CreatedAt,
		UpdatedAt:    now,
		LastSyncedAt: now,
	}

	if opts.MergeArrays {
		out.Title.Synonyms = unionSorted(records, func(a *models.Anime) []string { return a.Title.Synonyms })
		out.Genres = unionSorted(records, func(a *models.Anime) []string { return a.Genres })
		out.Themes = unionSorted(records, func(a *models.Anime) []string { return a.Themes })
		out.Studios = unionSorted(records, func(a *models.Anime) []string { return a.Studios })
		out.Producers = unionSorted(records, func(a *models.Anime) []string { return a.Producers })
		out.Licensors = unionSorted(records, func(a *models.Anime) []string { return a.Licensors })
	} else {
		out.Title.Synonyms = base.Title.Synonyms
		out.Genres = base.Genres
		out.Themes = base.Themes
		out.Studios = base.Studios
		out.Producers = base.Producers
		out.Licensors = base.Licensors
	}

	for _, record := range records {
		out.Ratings = append(out.Ratings, record.Ratings...)
		out.ExternalIDs = append(out.ExternalIDs, record.ExternalIDs...)
	}

	return out, nil
}

func firstString(records []*models.Anime, get func(*models.Anime) string) string {
	for _, record := range records {
		if v := get(record); v != "" {
			return v
		}
	}
	return ""
}

func firstInt(records []*models.Anime, get func(*models.Anime) int) int {
	for _, record := range records {
		if v := get(record); v != 0 {
			return v
		}
	}
	return 0
}

func firstTime(records []*models.Anime, get func(*models.Anime) *time.Time) *time.Time {
	for _, record := range records {
		if v := get(record); v != nil {
			return v
		}
	}
	return nil
}

// longestString returns the longest non-empty value, ties broken by input
// order.
func longestString(records []*models.Anime, get func(*models.Anime) string) string {
	var best string
	for _, record := range records {
		if v := get(record); len(v) > len(best) {
			best = v
		}
	}
	return best
}

func unionSorted(records []*models.Anime, get func(*models.Anime) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, record := range records {
		for _, v := range get(record) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
