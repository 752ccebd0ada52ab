// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/database"
	"github.com/kitsuneislife/miau-index/internal/models"
)

func openAnimeStore(t *testing.T) *models.AnimeStore {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "miau.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return models.NewAnimeStore(db)
}

func TestSearchByTitleMatchesVariantsAndSynonyms(t *testing.T) {
	store := openAnimeStore(t)
	ctx := context.Background()

	aot := &models.Anime{ID: "a1", Title: models.Title{
		Romaji:   "Shingeki no Kyojin",
		English:  "Attack on Titan",
		Native:   "進撃の巨人",
		Synonyms: []string{"AoT"},
	}}
	bebop := &models.Anime{ID: "a2", Title: models.Title{Romaji: "Cowboy Bebop"}}
	require.NoError(t, store.SaveMany(ctx, []*models.Anime{aot, bebop}))

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"romaji substring", "kyojin", []string{"a1"}},
		{"english case-insensitive", "attack on TITAN", []string{"a1"}},
		{"native", "巨人", []string{"a1"}},
		{"synonym", "aot", []string{"a1"}},
		{"other row", "bebop", []string{"a2"}},
		{"no match", "one piece", nil},
		// JSON structure must not leak into matching
		{"json key is not a title", "romaji", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.SearchByTitle(ctx, tt.query, 10)
			require.NoError(t, err)

			var ids []string
			for _, anime := range results {
				ids = append(ids, anime.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}
