// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("Failed to encode JSON response")
		}
	}
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{
		Error: message,
	})
}

// RespondServiceError maps service-layer errors onto HTTP statuses.
// Unrecognized errors get a 500 with the fallback message.
func RespondServiceError(w http.ResponseWriter, err error, fallback string) {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	var rateLimitErr *domain.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		RespondError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &notFoundErr):
		RespondError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.Is(err, models.ErrAnimeNotFound),
		errors.Is(err, models.ErrEpisodeNotFound),
		errors.Is(err, models.ErrSeasonNotFound),
		errors.Is(err, models.ErrTorrentNotFound):
		RespondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &rateLimitErr):
		RespondError(w, http.StatusTooManyRequests, rateLimitErr.Error())
	case errors.Is(err, domain.ErrIndexingDisabled):
		RespondError(w, http.StatusServiceUnavailable, "Torrent indexing is disabled")
	default:
		RespondError(w, http.StatusInternalServerError, fallback)
	}
}

// DecodeJSON decodes the request body into the provided struct.
// Returns false if decoding fails (error already sent to client).
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// ParseStringParam extracts and validates a generic string URL parameter.
// The value is trimmed of whitespace before validation.
// Returns the trimmed value and true on success, or empty string and false if missing (error already sent).
func ParseStringParam(w http.ResponseWriter, r *http.Request, paramName, displayName string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, paramName))
	if value == "" {
		RespondError(w, http.StatusBadRequest, displayName+" is required")
		return "", false
	}
	return value, true
}

// ParseAnimeID extracts and validates the anime ID from URL parameters.
func ParseAnimeID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return ParseStringParam(w, r, "animeID", "Anime ID")
}

// ParseEpisodeNumber extracts and validates the episode number from URL parameters.
// Returns the number and true on success, or 0 and false if invalid (error already sent).
func ParseEpisodeNumber(w http.ResponseWriter, r *http.Request) (int, bool) {
	str, ok := ParseStringParam(w, r, "number", "Episode number")
	if !ok {
		return 0, false
	}
	value, err := strconv.Atoi(str)
	if err != nil || value < 1 {
		RespondError(w, http.StatusBadRequest, "Invalid episode number")
		return 0, false
	}
	return value, true
}

// PaginationParams holds parsed pagination parameters.
type PaginationParams struct {
	Page  int
	Limit int
}

// ParsePagination extracts and validates pagination parameters from query string.
// Uses provided defaults and enforces maxLimit. Invalid values are silently ignored.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	p := PaginationParams{Page: 1, Limit: defaultLimit}

	if v := r.URL.Query().Get("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			p.Page = parsed
		}
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			if parsed > maxLimit {
				parsed = maxLimit
			}
			p.Limit = parsed
		}
	}

	return p
}
