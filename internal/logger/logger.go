// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logger configures the global zerolog logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kitsuneislife/miau-index/internal/domain"
)

// Setup configures the global logger from config. With a logPath set, output
// goes to both stdout and a size-rotated file.
func Setup(cfg *domain.Config) {
	level, err := zerolog.ParseLevel(cfg.NormalizedLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	var writers []io.Writer
	writers = append(writers, console)

	if cfg.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
			log.Error().Err(err).Str("path", cfg.LogPath).Msg("Failed to create log directory")
		} else {
			maxSize := cfg.LogMaxSize
			if maxSize <= 0 {
				maxSize = 50
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.LogPath,
				MaxSize:    maxSize,
				MaxBackups: cfg.LogMaxBackups,
				Compress:   true,
			})
		}
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp().Logger()

	log.Debug().Str("level", level.String()).Msg("Logger configured")
}
