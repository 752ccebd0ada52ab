// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kitsuneislife/miau-index/internal/api"
	"github.com/kitsuneislife/miau-index/internal/metrics"
	"github.com/kitsuneislife/miau-index/pkg/titles"
)

func RunServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Config.MetricsEnabled {
		manager := metrics.NewManager(metrics.StoreStats{
			Anime:    a.animes,
			Episodes: a.episodes,
			Seasons:  a.seasons,
			Torrent:  a.torrents,
		})
		api.StartMetricsServer(a.cfg, manager)
	}

	server := api.NewServer(&api.Dependencies{
		Config:       a.cfg,
		Unifier:      a.unifier,
		AnimeCatalog: a.animes,
		Episodes:     a.episodes,
		Seasons:      a.seasons,
		Indexer:      a.indexer,
		TitleParser:  titles.NewParser(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
