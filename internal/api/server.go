// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/api/handlers"
	"github.com/kitsuneislife/miau-index/internal/config"
	"github.com/kitsuneislife/miau-index/internal/services/indexing"
	"github.com/kitsuneislife/miau-index/pkg/titles"
)

// Dependencies carries everything the HTTP layer needs. Optional fields may
// be nil; their routes are simply not registered.
type Dependencies struct {
	Config *config.AppConfig

	Unifier      handlers.Unifier
	AnimeCatalog handlers.AnimeCatalog
	Episodes     handlers.EpisodeCatalog
	Seasons      handlers.SeasonCatalog
	Indexer      *indexing.Service
	TitleParser  *titles.Parser
}

type Server struct {
	deps       *Dependencies
	httpServer *http.Server
}

func NewServer(deps *Dependencies) *Server {
	s := &Server{deps: deps}

	addr := fmt.Sprintf("%s:%d", deps.Config.Config.Host, deps.Config.Config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
	}

	return s
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	animeHandler := handlers.NewAnimeHandler(s.deps.Unifier, s.deps.AnimeCatalog)
	torrentHandler := handlers.NewTorrentHandler(s.deps.Indexer, s.deps.Episodes, s.deps.Seasons)
	healthHandler := handlers.NewHealthHandler()

	r.Route("/api", func(r chi.Router) {
		r.Route("/health", healthHandler.Routes)

		r.Route("/anime", func(r chi.Router) {
			animeHandler.CollectionRoutes(r)
			r.Route("/{animeID}", func(r chi.Router) {
				animeHandler.ItemRoutes(r)
				torrentHandler.Routes(r)
			})
		})

		if s.deps.TitleParser != nil {
			handlers.NewTitlesHandler(s.deps.TitleParser).Routes(r)
		}
	})

	return r
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("Handled request")
	})
}
