// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/buildinfo"
	"github.com/kitsuneislife/miau-index/internal/config"
	"github.com/kitsuneislife/miau-index/internal/database"
	"github.com/kitsuneislife/miau-index/internal/logger"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/providers"
	"github.com/kitsuneislife/miau-index/internal/services/indexing"
	"github.com/kitsuneislife/miau-index/internal/services/unify"
	"github.com/kitsuneislife/miau-index/pkg/nyaa"
)

// app bundles the wired application components shared by the serve command
// and the one-shot CLI commands.
type app struct {
	cfg *config.AppConfig
	db  *database.DB

	animes   *models.AnimeStore
	episodes *models.EpisodeStore
	seasons  *models.SeasonStore
	torrents *models.TorrentStore

	registry *providers.Registry
	unifier  *unify.Service
	indexer  *indexing.Service
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.New(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}

	logger.Setup(cfg.Config)

	db, err := database.New(cfg.GetDatabasePath())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	a := &app{
		cfg:      cfg,
		db:       db,
		animes:   models.NewAnimeStore(db),
		episodes: models.NewEpisodeStore(db),
		seasons:  models.NewSeasonStore(db),
		torrents: models.NewTorrentStore(db),
		registry: providers.NewRegistry(),
	}

	a.registerProviders()

	a.unifier = unify.NewService(a.registry, a.animes, cfg.Config.Unification())

	var searcher indexing.Searcher
	if cfg.Config.NyaaEnabled {
		searcher = nyaa.NewClient(nyaa.Options{
			BaseURL:       cfg.Config.NyaaBaseURL,
			Timeout:       time.Duration(cfg.Config.NyaaTimeoutSeconds) * time.Second,
			UserAgent:     buildinfo.UserAgent,
			RetryAttempts: uint(cfg.Config.ProviderRetryAttempts),
		})
		log.Info().Msg("Nyaa indexer enabled")
	}
	a.indexer = indexing.NewService(searcher, a.animes, a.episodes, a.seasons, a.torrents)

	return a, nil
}

// registerProviders wires every enabled metadata provider. Registration
// order determines merge precedence during unification.
func (a *app) registerProviders() {
	cfg := a.cfg.Config
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	attempts := cfg.ProviderRetryAttempts

	if cfg.MALEnabled {
		if cfg.MALClientID == "" {
			log.Warn().Msg("MyAnimeList enabled but malClientId is not set; skipping provider")
		} else {
			a.registry.Register(providers.NewMALClient(cfg.MALClientID, timeout, attempts))
		}
	}
	if cfg.AniListEnabled {
		a.registry.Register(providers.NewAniListClient(timeout, attempts))
	}
	if cfg.KitsuEnabled {
		a.registry.Register(providers.NewKitsuClient(timeout, attempts))
	}
	if cfg.JikanEnabled {
		a.registry.Register(providers.NewJikanClient(timeout, attempts))
	}

	log.Info().Int("providers", a.registry.Len()).Msg("Registered metadata providers")
}

func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close database")
		}
	}
}
