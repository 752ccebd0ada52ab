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
)

// Unifier runs multi-source metadata queries and merges the results.
type Unifier interface {
	Search(ctx context.Context, query string, limit int) ([]*models.Anime, error)
	Seasonal(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error)
	FetchAndUnify(ctx context.Context, ids []models.ExternalID) (*models.Anime, error)
}

// AnimeCatalog is the persisted view of unified records.
type AnimeCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Anime, error)
	FindAll(ctx context.Context, page, limit int) ([]*models.Anime, error)
	SearchByTitle(ctx context.Context, text string, limit int) ([]*models.Anime, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
}

type AnimeHandler struct {
	unifier Unifier
	catalog AnimeCatalog
}

func NewAnimeHandler(unifier Unifier, catalog AnimeCatalog) *AnimeHandler {
	return &AnimeHandler{
		unifier: unifier,
		catalog: catalog,
	}
}

// CollectionRoutes registers the routes that operate on the catalog as a
// whole. The per-anime subtree is composed by the server so that the
// torrent routes can share the same {animeID} scope.
func (h *AnimeHandler) CollectionRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/search", h.Search)
	r.Get("/seasonal", h.Seasonal)
	r.Post("/fetch", h.Fetch)
}

// ItemRoutes registers the routes scoped to a single anime.
func (h *AnimeHandler) ItemRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Delete)
}

// AnimeListResponse is the paginated catalog listing.
type AnimeListResponse struct {
	Anime []*models.Anime `json:"anime"`
	Total int             `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// List returns the local catalog, paginated. With ?q= it performs a fuzzy
// title search against stored records instead of the remote providers.
func (h *AnimeHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r, 50, 200)

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		results, err := h.catalog.SearchByTitle(r.Context(), q, p.Limit)
		if err != nil {
			log.Error().Err(err).Str("query", q).Msg("Failed to search catalog")
			RespondServiceError(w, err, "Failed to search catalog")
			return
		}
		RespondJSON(w, http.StatusOK, AnimeListResponse{Anime: results, Total: len(results), Page: 1, Limit: p.Limit})
		return
	}

	results, err := h.catalog.FindAll(r.Context(), p.Page, p.Limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list catalog")
		RespondServiceError(w, err, "Failed to list catalog")
		return
	}

	total, err := h.catalog.Count(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to count catalog")
		RespondServiceError(w, err, "Failed to list catalog")
		return
	}

	RespondJSON(w, http.StatusOK, AnimeListResponse{Anime: results, Total: total, Page: p.Page, Limit: p.Limit})
}

// Search queries every registered provider and returns unified records
// grouped by title. Results are not persisted.
func (h *AnimeHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	results, err := h.unifier.Search(r.Context(), query, limit)
	if err != nil {
		RespondServiceError(w, err, "Search failed")
		return
	}

	RespondJSON(w, http.StatusOK, AnimeListResponse{Anime: results, Total: len(results), Page: 1, Limit: limit})
}

// Seasonal returns the unified seasonal lineup for ?year= and ?season=.
func (h *AnimeHandler) Seasonal(w http.ResponseWriter, r *http.Request) {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	season := models.AiringSeason(strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("season"))))

	results, err := h.unifier.Seasonal(r.Context(), year, season)
	if err != nil {
		RespondServiceError(w, err, "Seasonal lookup failed")
		return
	}

	RespondJSON(w, http.StatusOK, AnimeListResponse{Anime: results, Total: len(results), Page: 1, Limit: len(results)})
}

// FetchRequest names one record per source to fetch and merge.
type FetchRequest struct {
	IDs []models.ExternalID `json:"ids"`
}

// Fetch retrieves the referenced records from their providers, merges them
// into one canonical record and persists it.
func (h *AnimeHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	var req FetchRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		RespondError(w, http.StatusBadRequest, "At least one external ID is required")
		return
	}

	anime, err := h.unifier.FetchAndUnify(r.Context(), req.IDs)
	if err != nil {
		RespondServiceError(w, err, "Failed to fetch anime")
		return
	}

	RespondJSON(w, http.StatusOK, anime)
}

func (h *AnimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	anime, err := h.catalog.FindByID(r.Context(), animeID)
	if err != nil {
		RespondServiceError(w, err, "Failed to load anime")
		return
	}

	RespondJSON(w, http.StatusOK, anime)
}

func (h *AnimeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	animeID, ok := ParseAnimeID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.Delete(r.Context(), animeID); err != nil {
		RespondServiceError(w, err, "Failed to delete anime")
		return
	}

	log.Info().Str("animeID", animeID).Msg("Deleted anime from catalog")
	RespondJSON(w, http.StatusNoContent, nil)
}
