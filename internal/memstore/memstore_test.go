// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/models"
)

func sampleAnime(id, romaji string) *models.Anime {
	return &models.Anime{
		ID:    id,
		Title: models.Title{Romaji: romaji},
		ExternalIDs: []models.ExternalID{
			{Source: models.SourceMyAnimeList, ID: "mal-" + id},
		},
	}
}

func TestAnimeRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewAnimeRepo()

	require.NoError(t, repo.Save(ctx, sampleAnime("a1", "Cowboy Bebop")))

	found, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Cowboy Bebop", found.Title.Romaji)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrAnimeNotFound)

	byExt, err := repo.FindByExternalID(ctx, models.SourceMyAnimeList, "mal-a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", byExt.ID)

	_, err = repo.FindByExternalID(ctx, models.SourceKitsu, "mal-a1")
	assert.ErrorIs(t, err, models.ErrAnimeNotFound)
}

func TestAnimeRepoMutationsDoNotLeak(t *testing.T) {
	ctx := context.Background()
	repo := NewAnimeRepo()

	original := sampleAnime("a1", "Trigun")
	require.NoError(t, repo.Save(ctx, original))

	// mutating a fetched copy must not change the stored record
	fetched, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	fetched.Title.Romaji = "mutated"

	again, err := repo.FindByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Trigun", again.Title.Romaji)
}

func TestAnimeRepoSearchByTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewAnimeRepo()

	bebop := sampleAnime("a1", "Cowboy Bebop")
	op := sampleAnime("a2", "One Piece")
	op.Title.Synonyms = []string{"OP"}
	require.NoError(t, repo.SaveMany(ctx, []*models.Anime{bebop, op}))

	results, err := repo.SearchByTitle(ctx, "bebop", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ID)

	// synonyms participate in the search
	results, err = repo.SearchByTitle(ctx, "one piece", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a2", results[0].ID)

	results, err = repo.SearchByTitle(ctx, "zzzz", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnimeRepoFindAllPagination(t *testing.T) {
	ctx := context.Background()
	repo := NewAnimeRepo()

	for _, name := range []string{"Akira", "Bleach", "Clannad", "Dororo", "Eureka"} {
		require.NoError(t, repo.Save(ctx, sampleAnime(name, name)))
	}

	page1, err := repo.FindAll(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, "Akira", page1[0].Title.Romaji)
	assert.Equal(t, "Bleach", page1[1].Title.Romaji)

	page3, err := repo.FindAll(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "Eureka", page3[0].Title.Romaji)

	empty, err := repo.FindAll(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestEpisodeRepoFindByNumber(t *testing.T) {
	ctx := context.Background()
	repo := NewEpisodeRepo()

	require.NoError(t, repo.SaveMany(ctx, []*models.Episode{
		{ID: "e2", AnimeID: "a1", Number: 2},
		{ID: "e1", AnimeID: "a1", Number: 1},
		{ID: "x1", AnimeID: "other", Number: 1},
	}))

	ep, err := repo.FindByNumber(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Equal(t, "e2", ep.ID)

	_, err = repo.FindByNumber(ctx, "a1", 99)
	assert.ErrorIs(t, err, models.ErrEpisodeNotFound)

	ordered, err := repo.FindByAnimeID(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, ordered, 2)
	assert.Equal(t, 1, ordered[0].Number)
	assert.Equal(t, 2, ordered[1].Number)
}

func TestSeasonRepoOrdering(t *testing.T) {
	ctx := context.Background()
	repo := NewSeasonRepo()

	require.NoError(t, repo.SaveMany(ctx, []*models.AnimeSeason{
		{ID: "s2", AnimeID: "a1", SeasonNumber: 2},
		{ID: "s1", AnimeID: "a1", SeasonNumber: 1},
	}))

	seasons, err := repo.FindByAnimeID(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, seasons, 2)
	assert.Equal(t, 1, seasons[0].SeasonNumber)
	assert.Equal(t, 2, seasons[1].SeasonNumber)

	season, err := repo.FindByNumber(ctx, "a1", 2)
	require.NoError(t, err)
	assert.Equal(t, "s2", season.ID)
}

func TestTorrentRepoFilters(t *testing.T) {
	ctx := context.Background()
	repo := NewTorrentRepo()

	five := 5
	require.NoError(t, repo.SaveMany(ctx, []*models.Torrent{
		{
			ID: "t1", AnimeID: "a1", Seeders: 10, EpisodeNumber: &five,
			Metadata: models.TorrentMetadata{Quality: models.QualityFullHD},
		},
		{
			ID: "t2", AnimeID: "a1", Seeders: 200, Trusted: true,
			EpisodeRange: &models.EpisodeRange{Start: 1, End: 12},
			Metadata:     models.TorrentMetadata{Quality: models.QualityHD},
		},
		{ID: "t3", AnimeID: "other", Seeders: 50},
	}))

	// seeders descending
	all, err := repo.FindByAnimeID(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "t2", all[0].ID)

	// episode number filter matches both the exact episode and covering ranges
	byEpisode, err := repo.FindByFilters(ctx, models.TorrentSearchFilter{
		AnimeID:       "a1",
		EpisodeNumber: &five,
	})
	require.NoError(t, err)
	require.Len(t, byEpisode, 2)

	trusted, err := repo.FindByFilters(ctx, models.TorrentSearchFilter{TrustedOnly: true})
	require.NoError(t, err)
	require.Len(t, trusted, 1)
	assert.Equal(t, "t2", trusted[0].ID)

	quality, err := repo.FindByFilters(ctx, models.TorrentSearchFilter{Quality: models.QualityFullHD})
	require.NoError(t, err)
	require.Len(t, quality, 1)
	assert.Equal(t, "t1", quality[0].ID)
}

func TestTorrentRepoDeleteByAnimeID(t *testing.T) {
	ctx := context.Background()
	repo := NewTorrentRepo()

	require.NoError(t, repo.SaveMany(ctx, []*models.Torrent{
		{ID: "t1", AnimeID: "a1"},
		{ID: "t2", AnimeID: "a1"},
		{ID: "t3", AnimeID: "a2"},
	}))

	require.NoError(t, repo.DeleteByAnimeID(ctx, "a1"))

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = repo.FindByID(ctx, "t1")
	assert.ErrorIs(t, err, models.ErrTorrentNotFound)
}
