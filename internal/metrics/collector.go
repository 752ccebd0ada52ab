// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes the catalog and torrent index as Prometheus
// metrics, collected on scrape straight from the stores.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// CatalogStores is the read surface the collector scrapes.
type CatalogStores interface {
	AnimeCount(ctx context.Context) (int, error)
	EpisodeCount(ctx context.Context) (int, error)
	SeasonCount(ctx context.Context) (int, error)
	Torrents(ctx context.Context) ([]*models.Torrent, error)
}

type CatalogCollector struct {
	stores CatalogStores

	animeDesc          *prometheus.Desc
	episodeDesc        *prometheus.Desc
	seasonDesc         *prometheus.Desc
	torrentDesc        *prometheus.Desc
	torrentQualityDesc *prometheus.Desc
	torrentTypeDesc    *prometheus.Desc
	torrentBytesDesc   *prometheus.Desc
	scrapeErrorsDesc   *prometheus.Desc
}

func NewCatalogCollector(stores CatalogStores) *CatalogCollector {
	return &CatalogCollector{
		stores: stores,

		animeDesc: prometheus.NewDesc(
			"miau_anime_total",
			"Number of canonical anime records",
			nil,
			nil,
		),
		episodeDesc: prometheus.NewDesc(
			"miau_episodes_total",
			"Number of episode records",
			nil,
			nil,
		),
		seasonDesc: prometheus.NewDesc(
			"miau_seasons_total",
			"Number of season records",
			nil,
			nil,
		),
		torrentDesc: prometheus.NewDesc(
			"miau_torrents_total",
			"Number of indexed torrents",
			nil,
			nil,
		),
		torrentQualityDesc: prometheus.NewDesc(
			"miau_torrents_by_quality",
			"Number of indexed torrents by video quality",
			[]string{"quality"},
			nil,
		),
		torrentTypeDesc: prometheus.NewDesc(
			"miau_torrents_by_release_type",
			"Number of indexed torrents by release type",
			[]string{"release_type"},
			nil,
		),
		torrentBytesDesc: prometheus.NewDesc(
			"miau_torrents_size_bytes",
			"Summed size of all indexed torrents in bytes",
			nil,
			nil,
		),
		scrapeErrorsDesc: prometheus.NewDesc(
			"miau_scrape_errors_total",
			"Total number of scrape errors by subsystem",
			[]string{"subsystem"},
			nil,
		),
	}
}

func (c *CatalogCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.animeDesc
	ch <- c.episodeDesc
	ch <- c.seasonDesc
	ch <- c.torrentDesc
	ch <- c.torrentQualityDesc
	ch <- c.torrentTypeDesc
	ch <- c.torrentBytesDesc
	ch <- c.scrapeErrorsDesc
}

func (c *CatalogCollector) reportError(ch chan<- prometheus.Metric, subsystem string) {
	ch <- prometheus.MustNewConstMetric(
		c.scrapeErrorsDesc,
		prometheus.CounterValue,
		1,
		subsystem,
	)
}

func (c *CatalogCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if count, err := c.stores.AnimeCount(ctx); err != nil {
		log.Debug().Err(err).Msg("metrics: anime count failed")
		c.reportError(ch, "anime")
	} else {
		ch <- prometheus.MustNewConstMetric(c.animeDesc, prometheus.GaugeValue, float64(count))
	}

	if count, err := c.stores.EpisodeCount(ctx); err != nil {
		log.Debug().Err(err).Msg("metrics: episode count failed")
		c.reportError(ch, "episodes")
	} else {
		ch <- prometheus.MustNewConstMetric(c.episodeDesc, prometheus.GaugeValue, float64(count))
	}

	if count, err := c.stores.SeasonCount(ctx); err != nil {
		log.Debug().Err(err).Msg("metrics: season count failed")
		c.reportError(ch, "seasons")
	} else {
		ch <- prometheus.MustNewConstMetric(c.seasonDesc, prometheus.GaugeValue, float64(count))
	}

	torrents, err := c.stores.Torrents(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("metrics: torrent listing failed")
		c.reportError(ch, "torrents")
		return
	}

	ch <- prometheus.MustNewConstMetric(c.torrentDesc, prometheus.GaugeValue, float64(len(torrents)))

	byQuality := make(map[models.VideoQuality]int)
	byType := make(map[models.ReleaseType]int)
	var totalBytes int64
	for _, t := range torrents {
		byQuality[t.Metadata.Quality]++
		byType[t.Metadata.ReleaseType]++
		totalBytes += t.SizeBytes
	}

	for quality, count := range byQuality {
		ch <- prometheus.MustNewConstMetric(c.torrentQualityDesc, prometheus.GaugeValue,
			float64(count), string(quality))
	}
	for releaseType, count := range byType {
		ch <- prometheus.MustNewConstMetric(c.torrentTypeDesc, prometheus.GaugeValue,
			float64(count), string(releaseType))
	}
	ch <- prometheus.MustNewConstMetric(c.torrentBytesDesc, prometheus.GaugeValue, float64(totalBytes))
}
