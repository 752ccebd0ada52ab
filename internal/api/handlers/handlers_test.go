// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/memstore"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/providers"
	"github.com/kitsuneislife/miau-index/internal/services/indexing"
	"github.com/kitsuneislife/miau-index/internal/services/unify"
	"github.com/kitsuneislife/miau-index/pkg/titles"
)

func newAnimeRouter(t *testing.T, unifier Unifier, catalog AnimeCatalog) chi.Router {
	t.Helper()
	h := NewAnimeHandler(unifier, catalog)
	r := chi.NewRouter()
	r.Route("/anime", func(r chi.Router) {
		h.CollectionRoutes(r)
		r.Route("/{animeID}", h.ItemRoutes)
	})
	return r
}

func TestAnimeListAndGet(t *testing.T) {
	repo := memstore.NewAnimeRepo()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &models.Anime{ID: "a1", Title: models.Title{Romaji: "Akira"}}))
	require.NoError(t, repo.Save(ctx, &models.Anime{ID: "a2", Title: models.Title{Romaji: "Berserk"}}))

	r := newAnimeRouter(t, nil, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list AnimeListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Anime, 2)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/a1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var anime models.Anime
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&anime))
	assert.Equal(t, "Akira", anime.Title.Romaji)
}

func TestAnimeGetNotFound(t *testing.T) {
	r := newAnimeRouter(t, nil, memstore.NewAnimeRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnimeLocalTitleSearch(t *testing.T) {
	repo := memstore.NewAnimeRepo()
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, &models.Anime{ID: "a1", Title: models.Title{Romaji: "Cowboy Bebop"}}))
	require.NoError(t, repo.Save(ctx, &models.Anime{ID: "a2", Title: models.Title{Romaji: "Trigun"}}))

	r := newAnimeRouter(t, nil, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime?q="+url.QueryEscape("bebop"), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list AnimeListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Anime, 1)
	assert.Equal(t, "a1", list.Anime[0].ID)
}

func TestAnimeSearchEmptyQueryRejected(t *testing.T) {
	unifier := unify.NewService(providers.NewRegistry(), nil, domain.DefaultUnificationOptions())
	r := newAnimeRouter(t, unifier, memstore.NewAnimeRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnimeDelete(t *testing.T) {
	repo := memstore.NewAnimeRepo()
	require.NoError(t, repo.Save(context.Background(), &models.Anime{ID: "a1", Title: models.Title{Romaji: "Akira"}}))

	r := newAnimeRouter(t, nil, repo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/anime/a1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFetchRequiresIDs(t *testing.T) {
	unifier := unify.NewService(providers.NewRegistry(), nil, domain.DefaultUnificationOptions())
	r := newAnimeRouter(t, unifier, memstore.NewAnimeRepo())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/anime/fetch", strings.NewReader(`{"ids":[]}`))
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func newTorrentRouter(t *testing.T, indexer *indexing.Service, episodes EpisodeCatalog, seasons SeasonCatalog) chi.Router {
	t.Helper()
	h := NewTorrentHandler(indexer, episodes, seasons)
	r := chi.NewRouter()
	r.Route("/anime/{animeID}", h.Routes)
	return r
}

func TestIndexDisabledReturns503(t *testing.T) {
	indexer := indexing.NewService(nil, memstore.NewAnimeRepo(), nil, nil, memstore.NewTorrentRepo())
	r := newTorrentRouter(t, indexer, memstore.NewEpisodeRepo(), memstore.NewSeasonRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/anime/a1/index", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestEpisodeTorrentsInvalidNumber(t *testing.T) {
	indexer := indexing.NewService(nil, memstore.NewAnimeRepo(), nil, nil, memstore.NewTorrentRepo())
	r := newTorrentRouter(t, indexer, memstore.NewEpisodeRepo(), memstore.NewSeasonRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/a1/episodes/zero/torrents", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoredTorrentsFiltered(t *testing.T) {
	torrents := memstore.NewTorrentRepo()
	ctx := context.Background()
	require.NoError(t, torrents.SaveMany(ctx, []*models.Torrent{
		{ID: "t1", AnimeID: "a1", Seeders: 10, Metadata: models.TorrentMetadata{Quality: models.QualityFullHD}},
		{ID: "t2", AnimeID: "a1", Seeders: 90, Metadata: models.TorrentMetadata{Quality: models.QualityHD}},
		{ID: "t3", AnimeID: "other", Seeders: 5, Metadata: models.TorrentMetadata{Quality: models.QualityFullHD}},
	}))

	indexer := indexing.NewService(nil, memstore.NewAnimeRepo(), nil, nil, torrents)
	r := newTorrentRouter(t, indexer, memstore.NewEpisodeRepo(), memstore.NewSeasonRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/a1/torrents?quality=1080p", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list TorrentListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "t1", list.Torrents[0].ID)
}

func TestBestTorrentNotFound(t *testing.T) {
	indexer := indexing.NewService(nil, memstore.NewAnimeRepo(), nil, nil, memstore.NewTorrentRepo())
	r := newTorrentRouter(t, indexer, memstore.NewEpisodeRepo(), memstore.NewSeasonRepo())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anime/a1/episodes/1/best", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseTorrentFilter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/torrents?quality=1080p&releaseType=batch&minSeeders=5&trustedOnly=true&episodeNumber=12", nil)

	filter := parseTorrentFilter(req)

	assert.Equal(t, models.QualityFullHD, filter.Quality)
	assert.Equal(t, models.ReleaseBatch, filter.ReleaseType)
	assert.Equal(t, 5, filter.MinSeeders)
	assert.True(t, filter.TrustedOnly)
	require.NotNil(t, filter.EpisodeNumber)
	assert.Equal(t, 12, *filter.EpisodeNumber)
}

func TestTitlesParse(t *testing.T) {
	h := NewTitlesHandler(titles.NewParser())
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"names":["[SubsPlease] Frieren - 01 (1080p) [ABCD1234].mkv","[Judas] Vinland Saga (01-24) (1080p)(Batch)"]}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/titles/parse", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ParseTitlesResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 2, resp.Total)
	assert.NotEmpty(t, resp.Titles[0].Title)
}

func TestTitlesParseEmpty(t *testing.T) {
	h := NewTitlesHandler(titles.NewParser())
	r := chi.NewRouter()
	h.Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/titles/parse", strings.NewReader(`{"names":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	h := NewHealthHandler()
	r := chi.NewRouter()
	r.Route("/health", h.Routes)

	tests := []struct {
		path string
		want string
	}{
		{"/health", "ok"},
		{"/health/readiness", "ready"},
		{"/health/liveness", "alive"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		require.Equal(t, http.StatusOK, rec.Code, tt.path)

		var resp map[string]string
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, tt.want, resp["status"], tt.path)
	}
}
