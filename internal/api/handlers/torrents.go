// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/services/indexing"
)

// EpisodeCatalog lists stored episodes for an anime.
type EpisodeCatalog interface {
	FindByAnimeID(ctx context.Context, animeID string) ([]*models.Episode, error)
}

// SeasonCatalog lists stored seasons for an anime.
type SeasonCatalog interface {
	FindByAnimeID(ctx context.Context, animeID string) ([]*models.AnimeSeason, error)
}

type TorrentHandler struct {
	indexer  *indexing.Service
	episodes EpisodeCatalog
	seasons  SeasonCatalog
}

func NewTorrentHandler(indexer *indexing.Service, episodes EpisodeCatalog, seasons SeasonCatalog) *TorrentHandler {
	return &TorrentHandler{
		indexer:  indexer,
		episodes: episodes,
		seasons:  seasons,
	}
}

// Routes registers the torrent routes into an {animeID}-scoped router.
func (h *TorrentHandler) Routes(r chi.Router) {
	r.Post("/index", h.Index)
	r.Get("/torrents", h.Torrents)
	r.Get("/torrents/stats", h.Stats)
	r.Get("/episodes", h.Episodes)
	r.Route("/episodes/{number}", func(r chi.Router) {
		r.Get("/torrents", h.EpisodeTorrents)
		r.Get("/best", h.BestTorrent)
		r.Get("/best-quality", h.BestQuality)
	})
	r.Get("/seasons", h.Seasons)
	r.Post("/seasons/organize", h.OrganizeSeasons)
}

// TorrentListResponse wraps a list of indexed torrents.
type TorrentListResponse struct {
	Torrents []*models.Torrent `json:"torrents"`
	Total    int               `json:"total"`
}

// Index runs a full indexer pass for the anime: searches every title
// variant, maps and deduplicates the results and replaces the stored set.
func (h *TorrentHandler) Index(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	torrents, err := h.indexer.IndexAnime(r.Context(), animeID)
	if err != nil {
		log.Error().Err(err).Str("animeID", animeID).Msg("Indexing failed")
		RespondServiceError(w, err, "Indexing failed")
		return
	}

	RespondJSON(w, http.StatusOK, TorrentListResponse{Torrents: torrents, Total: len(torrents)})
}

// Torrents returns the stored torrents for the anime, filtered by query
// parameters and sorted by seeders descending.
func (h *TorrentHandler) Torrents(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	filter := parseTorrentFilter(r)
	filter.AnimeID = animeID

	torrents, err := h.indexer.Torrents(r.Context(), filter)
	if err != nil {
		RespondServiceError(w, err, "Failed to list torrents")
		return
	}

	RespondJSON(w, http.StatusOK, TorrentListResponse{Torrents: torrents, Total: len(torrents)})
}

// Stats aggregates quality, language and release-type counts over the
// stored torrents of the anime.
func (h *TorrentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	stats, err := h.indexer.Stats(r.Context(), animeID)
	if err != nil {
		RespondServiceError(w, err, "Failed to aggregate torrent stats")
		return
	}

	RespondJSON(w, http.StatusOK, stats)
}

// EpisodeTorrents runs a live indexer search scoped to one episode.
// Results are returned without being persisted.
func (h *TorrentHandler) EpisodeTorrents(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}
	number, ok := ParseEpisodeNumber(w, r)
	if !ok {
		return
	}

	torrents, err := h.indexer.SearchEpisode(r.Context(), animeID, number)
	if err != nil {
		RespondServiceError(w, err, "Episode search failed")
		return
	}

	RespondJSON(w, http.StatusOK, TorrentListResponse{Torrents: torrents, Total: len(torrents)})
}

// BestTorrent picks the best stored torrent for the episode, preferring
// ?quality= when given and falling back to the most seeded candidate.
func (h *TorrentHandler) BestTorrent(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}
	number, ok := ParseEpisodeNumber(w, r)
	if !ok {
		return
	}

	preferred := models.VideoQuality(strings.TrimSpace(r.URL.Query().Get("quality")))

	torrent, err := h.indexer.BestForEpisode(r.Context(), animeID, number, preferred)
	if err != nil {
		RespondServiceError(w, err, "Failed to pick torrent")
		return
	}

	RespondJSON(w, http.StatusOK, torrent)
}

// BestQualityResponse reports the highest available quality tier.
type BestQualityResponse struct {
	Quality models.VideoQuality `json:"quality"`
}

func (h *TorrentHandler) BestQuality(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}
	number, ok := ParseEpisodeNumber(w, r)
	if !ok {
		return
	}

	quality, err := h.indexer.BestQualityForEpisode(r.Context(), animeID, number)
	if err != nil {
		RespondServiceError(w, err, "Failed to determine best quality")
		return
	}

	RespondJSON(w, http.StatusOK, BestQualityResponse{Quality: quality})
}

func (h *TorrentHandler) Episodes(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	episodes, err := h.episodes.FindByAnimeID(r.Context(), animeID)
	if err != nil {
		RespondServiceError(w, err, "Failed to list episodes")
		return
	}

	RespondJSON(w, http.StatusOK, episodes)
}

func (h *TorrentHandler) Seasons(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	seasons, err := h.seasons.FindByAnimeID(r.Context(), animeID)
	if err != nil {
		RespondServiceError(w, err, "Failed to list seasons")
		return
	}

	RespondJSON(w, http.StatusOK, seasons)
}

// OrganizeSeasons partitions the stored episodes into seasons and persists
// the result.
func (h *TorrentHandler) OrganizeSeasons(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	episodes, err := h.episodes.FindByAnimeID(r.Context(), animeID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load episodes")
		return
	}

	seasons, err := h.indexer.OrganizeSeasons(r.Context(), animeID, episodes)
	if err != nil {
		log.Error().Err(err).Str("animeID", animeID).Msg("Season organization failed")
		RespondServiceError(w, err, "Season organization failed")
		return
	}

	RespondJSON(w, http.StatusOK, seasons)
}

func parseTorrentFilter(r *http.Request) models.TorrentSearchFilter {
	q := r.URL.Query()

	filter := models.TorrentSearchFilter{
		EpisodeID:        strings.TrimSpace(q.Get("episodeId")),
		SeasonID:         strings.TrimSpace(q.Get("seasonId")),
		Quality:          models.VideoQuality(strings.TrimSpace(q.Get("quality"))),
		AudioLanguage:    models.Language(strings.TrimSpace(q.Get("audioLang"))),
		SubtitleLanguage: models.Language(strings.TrimSpace(q.Get("subLang"))),
		ReleaseType:      models.ReleaseType(strings.ToUpper(strings.TrimSpace(q.Get("releaseType")))),
	}

	if v := q.Get("episodeNumber"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.EpisodeNumber = &parsed
		}
	}
	if v := q.Get("minSeeders"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			filter.MinSeeders = parsed
		}
	}
	if v := q.Get("trustedOnly"); v != "" {
		filter.TrustedOnly = v == "true" || v == "1"
	}

	return filter
}
