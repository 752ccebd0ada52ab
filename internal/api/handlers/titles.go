// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kitsuneislife/miau-index/pkg/titles"
)

type TitlesHandler struct {
	parser *titles.Parser
}

func NewTitlesHandler(parser *titles.Parser) *TitlesHandler {
	return &TitlesHandler{parser: parser}
}

func (h *TitlesHandler) Routes(r chi.Router) {
	r.Route("/titles", func(r chi.Router) {
		r.Post("/parse", h.Parse)
	})
}

// ParseTitlesRequest carries the raw release names to parse.
type ParseTitlesRequest struct {
	Names []string `json:"names"`
}

// ParseTitlesResponse pairs each input name with its parsed fields.
type ParseTitlesResponse struct {
	Titles []titles.ParsedTitle `json:"titles"`
	Total  int                  `json:"total"`
}

// Parse runs the release-name parser over every submitted name.
func (h *TitlesHandler) Parse(w http.ResponseWriter, r *http.Request) {
	var req ParseTitlesRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Names) == 0 {
		RespondError(w, http.StatusBadRequest, "At least one release name is required")
		return
	}

	parsed := h.parser.ParseAll(r.Context(), req.Names)
	RespondJSON(w, http.StatusOK, ParseTitlesResponse{Titles: parsed, Total: len(parsed)})
}
