// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/models"
)

func TestRegistryOrder(t *testing.T) {
	registry := NewRegistry()
	registry.Register(NewMALClient("client-id", time.Second, 1))
	registry.Register(NewAniListClient(time.Second, 1))
	registry.Register(NewKitsuClient(time.Second, 1))

	require.Equal(t, 3, registry.Len())
	assert.Equal(t, []models.SourceTag{
		models.SourceMyAnimeList,
		models.SourceAniList,
		models.SourceKitsu,
	}, registry.Sources())

	// re-registering keeps the original position
	registry.Register(NewMALClient("другой", time.Second, 1))
	require.Equal(t, 3, registry.Len())
	assert.Equal(t, models.SourceMyAnimeList, registry.Sources()[0])

	assert.Nil(t, registry.Get(models.SourceJikan))
	assert.NotNil(t, registry.Get(models.SourceAniList))
}

func TestMALFetchAnimeByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-client", r.Header.Get("X-MAL-CLIENT-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 21,
			"title": "One Piece",
			"alternative_titles": {"en": "One Piece", "ja": "ワンピース", "synonyms": ["OP"]},
			"mean": 8.73,
			"num_scoring_users": 1500000,
			"rank": 55,
			"popularity": 20,
			"media_type": "tv",
			"status": "currently_airing",
			"num_episodes": 0,
			"average_episode_duration": 1440,
			"start_date": "1999-10-20",
			"start_season": {"year": 1999, "season": "fall"},
			"genres": [{"name": "Action"}, {"name": "Adventure"}],
			"studios": [{"name": "Toei Animation"}]
		}`))
	}))
	defer server.Close()

	client := NewMALClient("test-client", 5*time.Second, 1)
	client.baseURL = server.URL

	anime, err := client.FetchAnimeByID(context.Background(), "21")
	require.NoError(t, err)
	require.NotNil(t, anime)

	assert.Equal(t, "One Piece", anime.Title.Romaji)
	assert.Equal(t, "ワンピース", anime.Title.Native)
	assert.Equal(t, []string{"OP"}, anime.Title.Synonyms)
	assert.Equal(t, models.AnimeTypeTV, anime.Type)
	assert.Equal(t, models.StatusAiring, anime.Status)
	assert.Equal(t, 24, anime.DurationMinutes)
	assert.Equal(t, models.SeasonFall, anime.Season)
	assert.Equal(t, 1999, anime.Year)
	assert.Equal(t, []string{"Action", "Adventure"}, anime.Genres)
	assert.Equal(t, []string{"Toei Animation"}, anime.Studios)

	require.Len(t, anime.Ratings, 1)
	assert.Equal(t, models.SourceMyAnimeList, anime.Ratings[0].Source)
	assert.InDelta(t, 8.73, anime.Ratings[0].Score, 0.001)

	require.Len(t, anime.ExternalIDs, 1)
	assert.Equal(t, models.ExternalID{Source: models.SourceMyAnimeList, ID: "21"}, anime.ExternalIDs[0])
	require.NotNil(t, anime.Aired.From)
	assert.Equal(t, 1999, anime.Aired.From.Year())
}

func TestMALFetchAnimeByIDNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewMALClient("test-client", 5*time.Second, 1)
	client.baseURL = server.URL

	anime, err := client.FetchAnimeByID(context.Background(), "999999")
	require.NoError(t, err)
	assert.Nil(t, anime)
}

func TestKitsuConvertNormalizesScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {
			"id": "12",
			"attributes": {
				"canonicalTitle": "One Piece",
				"titles": {"en_jp": "One Piece", "ja_jp": "ワンピース"},
				"averageRating": "82.5",
				"userCount": 400000,
				"status": "current",
				"subtype": "TV",
				"episodeLength": 24,
				"startDate": "1999-10-20"
			}
		}}`))
	}))
	defer server.Close()

	client := NewKitsuClient(5*time.Second, 1)
	client.baseURL = server.URL

	anime, err := client.FetchAnimeByID(context.Background(), "12")
	require.NoError(t, err)
	require.NotNil(t, anime)

	require.Len(t, anime.Ratings, 1)
	assert.InDelta(t, 8.25, anime.Ratings[0].Score, 0.001)
	assert.Equal(t, models.StatusAiring, anime.Status)
	assert.Equal(t, models.SeasonFall, anime.Season)
	assert.Equal(t, 1999, anime.Year)
}

func TestParseJikanDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"24 min per ep", 24},
		{"1 hr 55 min", 115},
		{"2 hr", 120},
		{"Unknown", 0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseJikanDuration(tt.input))
		})
	}
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "Line one\nLine two", stripHTMLTags("Line one<br>Line two"))
	assert.Equal(t, "emphasis", stripHTMLTags("<i>emphasis</i>"))
	assert.Equal(t, "plain text", stripHTMLTags("plain text"))
}

func TestParseFlexibleDate(t *testing.T) {
	full := parseFlexibleDate("1999-10-20")
	require.NotNil(t, full)
	assert.Equal(t, time.Date(1999, 10, 20, 0, 0, 0, 0, time.UTC), *full)

	yearOnly := parseFlexibleDate("1999")
	require.NotNil(t, yearOnly)
	assert.Equal(t, 1999, yearOnly.Year())

	assert.Nil(t, parseFlexibleDate(""))
	assert.Nil(t, parseFlexibleDate("not a date"))
}
