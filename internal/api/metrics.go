// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/config"
	"github.com/kitsuneislife/miau-index/internal/metrics"
)

// StartMetricsServer exposes the Prometheus registry on its own listener
// when metrics are enabled. Runs in the background; errors are logged.
func StartMetricsServer(cfg *config.AppConfig, manager *metrics.Manager) {
	if !cfg.Config.MetricsEnabled || manager == nil {
		return
	}

	addr := fmt.Sprintf("%s:%d", cfg.Config.MetricsHost, cfg.Config.MetricsPort)

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", manager.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Starting metrics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server stopped")
		}
	}()
}
