// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`
	DatabasePath  string `toml:"databasePath" mapstructure:"databasePath"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// Provider toggles and credentials. A provider with no credential requirement
	// is registered whenever its toggle is on.
	MALEnabled     bool   `toml:"malEnabled" mapstructure:"malEnabled"`
	MALClientID    string `toml:"malClientId" mapstructure:"malClientId"`
	AniListEnabled bool   `toml:"anilistEnabled" mapstructure:"anilistEnabled"`
	KitsuEnabled   bool   `toml:"kitsuEnabled" mapstructure:"kitsuEnabled"`
	JikanEnabled   bool   `toml:"jikanEnabled" mapstructure:"jikanEnabled"`

	// ProviderTimeoutSeconds bounds every provider HTTP/GraphQL call.
	ProviderTimeoutSeconds int `toml:"providerTimeoutSeconds" mapstructure:"providerTimeoutSeconds"`
	// ProviderRetryAttempts is the fixed retry budget for provider calls.
	ProviderRetryAttempts int `toml:"providerRetryAttempts" mapstructure:"providerRetryAttempts"`

	// Torrent indexing is an optional subsystem. Operations depending on it fail
	// with a named configuration error when NyaaEnabled is false.
	NyaaEnabled        bool   `toml:"nyaaEnabled" mapstructure:"nyaaEnabled"`
	NyaaBaseURL        string `toml:"nyaaBaseUrl" mapstructure:"nyaaBaseUrl"`
	NyaaTimeoutSeconds int    `toml:"nyaaTimeoutSeconds" mapstructure:"nyaaTimeoutSeconds"`

	// Unification behavior, see services/unify.
	PreferredSources       []string `toml:"preferredSources" mapstructure:"preferredSources"`
	MinSourcesForConsensus int      `toml:"minSourcesForConsensus" mapstructure:"minSourcesForConsensus"`
	MergeArrays            bool     `toml:"mergeArrays" mapstructure:"mergeArrays"`
}

// UnificationOptions controls per-field selection during record unification.
type UnificationOptions struct {
	// PreferredSources is accepted for forward compatibility. The current
	// selection algorithm does not reorder candidates by it; see the unify
	// package for the recorded decision.
	PreferredSources       []string
	MinSourcesForConsensus int
	MergeArrays            bool
}

// DefaultUnificationOptions mirrors the documented defaults: array fields are
// merged, no consensus minimum.
func DefaultUnificationOptions() UnificationOptions {
	return UnificationOptions{
		MergeArrays:            true,
		MinSourcesForConsensus: 1,
	}
}

// Unification derives the unifier options from configuration.
func (c *Config) Unification() UnificationOptions {
	opts := DefaultUnificationOptions()
	opts.MergeArrays = c.MergeArrays
	if c.MinSourcesForConsensus > 0 {
		opts.MinSourcesForConsensus = c.MinSourcesForConsensus
	}
	opts.PreferredSources = append([]string(nil), c.PreferredSources...)
	return opts
}

// NormalizedLogLevel maps the configured level onto the set zerolog accepts.
func (c *Config) NormalizedLogLevel() string {
	switch strings.ToUpper(strings.TrimSpace(c.LogLevel)) {
	case "TRACE":
		return "trace"
	case "DEBUG":
		return "debug"
	case "WARN":
		return "warn"
	case "ERROR":
		return "error"
	default:
		return "info"
	}
}
