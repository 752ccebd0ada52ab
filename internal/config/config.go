// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/kitsuneislife/miau-index/internal/buildinfo"
	"github.com/kitsuneislife/miau-index/internal/domain"
)

// envPrefix separates the prefix from the snake-cased key with a double
// underscore, e.g. MIAU__DATABASE_PATH.
const envPrefix = "MIAU__"

// AppConfig wraps the parsed configuration together with the viper instance
// that produced it.
type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper

	configDir string
}

// New loads configuration from the given path. An empty path falls back to
// the default config dir, creating a commented config.toml on first run.
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	c.Config.Version = buildinfo.Version

	return c, nil
}

func (c *AppConfig) defaults() {
	c.Config = &domain.Config{
		Host:          "localhost",
		Port:          7720,
		BaseURL:       "/",
		LogLevel:      "INFO",
		LogMaxSize:    50,
		LogMaxBackups: 3,

		MetricsEnabled: false,
		MetricsHost:    "127.0.0.1",
		MetricsPort:    9074,

		AniListEnabled: true,
		KitsuEnabled:   true,
		JikanEnabled:   true,

		ProviderTimeoutSeconds: 15,
		ProviderRetryAttempts:  3,

		NyaaEnabled:        false,
		NyaaTimeoutSeconds: 30,

		MergeArrays:            true,
		MinSourcesForConsensus: 1,
	}

	c.viper.SetDefault("host", c.Config.Host)
	c.viper.SetDefault("port", c.Config.Port)
	c.viper.SetDefault("baseUrl", c.Config.BaseURL)
	c.viper.SetDefault("logLevel", c.Config.LogLevel)
	c.viper.SetDefault("logPath", c.Config.LogPath)
	c.viper.SetDefault("logMaxSize", c.Config.LogMaxSize)
	c.viper.SetDefault("logMaxBackups", c.Config.LogMaxBackups)
	c.viper.SetDefault("dataDir", c.Config.DataDir)
	c.viper.SetDefault("databasePath", c.Config.DatabasePath)
	c.viper.SetDefault("metricsEnabled", c.Config.MetricsEnabled)
	c.viper.SetDefault("metricsHost", c.Config.MetricsHost)
	c.viper.SetDefault("metricsPort", c.Config.MetricsPort)
	c.viper.SetDefault("malEnabled", c.Config.MALEnabled)
	c.viper.SetDefault("malClientId", c.Config.MALClientID)
	c.viper.SetDefault("anilistEnabled", c.Config.AniListEnabled)
	c.viper.SetDefault("kitsuEnabled", c.Config.KitsuEnabled)
	c.viper.SetDefault("jikanEnabled", c.Config.JikanEnabled)
	c.viper.SetDefault("providerTimeoutSeconds", c.Config.ProviderTimeoutSeconds)
	c.viper.SetDefault("providerRetryAttempts", c.Config.ProviderRetryAttempts)
	c.viper.SetDefault("nyaaEnabled", c.Config.NyaaEnabled)
	c.viper.SetDefault("nyaaBaseUrl", c.Config.NyaaBaseURL)
	c.viper.SetDefault("nyaaTimeoutSeconds", c.Config.NyaaTimeoutSeconds)
	c.viper.SetDefault("preferredSources", c.Config.PreferredSources)
	c.viper.SetDefault("minSourcesForConsensus", c.Config.MinSourcesForConsensus)
	c.viper.SetDefault("mergeArrays", c.Config.MergeArrays)

	c.bindEnv()
}

// bindEnv binds every config key to its MIAU__ environment variable. Viper's
// automatic binding cannot produce the snake-cased names we document, so each
// key is bound explicitly. Viper lowercases keys internally, hence the
// explicit camelCase list.
func (c *AppConfig) bindEnv() {
	keys := []string{
		"host", "port", "baseUrl",
		"logLevel", "logPath", "logMaxSize", "logMaxBackups",
		"dataDir", "databasePath",
		"metricsEnabled", "metricsHost", "metricsPort",
		"malEnabled", "malClientId",
		"anilistEnabled", "kitsuEnabled", "jikanEnabled",
		"providerTimeoutSeconds", "providerRetryAttempts",
		"nyaaEnabled", "nyaaBaseUrl", "nyaaTimeoutSeconds",
		"preferredSources", "minSourcesForConsensus", "mergeArrays",
	}
	for _, key := range keys {
		_ = c.viper.BindEnv(key, envPrefix+camelToUpperSnake(key))
	}
}

func camelToUpperSnake(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	if configPath != "" {
		if filepath.Ext(configPath) == "" {
			// Treat as a directory holding config.toml
			c.configDir = configPath
			configPath = filepath.Join(configPath, "config.toml")
		} else {
			c.configDir = filepath.Dir(configPath)
		}

		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			if err := c.writeDefaultConfig(configPath); err != nil {
				return err
			}
		}

		c.viper.SetConfigFile(configPath)
	} else {
		c.configDir = getDefaultConfigDir()
		defaultPath := filepath.Join(c.configDir, "config.toml")

		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			if err := c.writeDefaultConfig(defaultPath); err != nil {
				return err
			}
		}

		c.viper.SetConfigFile(defaultPath)
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, "failed to read config file")
	}

	return nil
}

// getDefaultConfigDir resolves the config directory. XDG_CONFIG_HOME is used
// directly when set (the Docker image sets it to /config).
func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return xdg
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "miau-index")
}

// GetDatabasePath returns the configured database path, defaulting to
// miau-index.db next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if c.Config.DatabasePath != "" {
		return c.Config.DatabasePath
	}
	if c.Config.DataDir != "" {
		return filepath.Join(c.Config.DataDir, "miau-index.db")
	}
	return filepath.Join(c.configDir, "miau-index.db")
}

// ConfigDir returns the directory the active config file lives in.
func (c *AppConfig) ConfigDir() string {
	return c.configDir
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	content := fmt.Sprintf(defaultConfigTemplate, buildinfo.Version)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrap(err, "failed to write default config")
	}

	log.Info().Str("path", path).Msg("Created default config file")
	return nil
}

const defaultConfigTemplate = `# config.toml - Auto-generated by miau-index %s

# Hostname / IP
# Default: "localhost"
host = "localhost"

# Port
# Default: 7720
port = 7720

# Base URL
# Set custom baseUrl eg /miau/ to serve in subdirectory
# Default: "/"
#baseUrl = "/"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/miau-index.log"

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "INFO"

# Database file path
# If not defined, the database is created next to this config file
# Optional
#databasePath = "miau-index.db"

# Prometheus metrics
# Default: false
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074

# Metadata providers
# MyAnimeList needs a client ID, see https://myanimelist.net/apiconfig
#malEnabled = false
#malClientId = ""
anilistEnabled = true
kitsuEnabled = true
jikanEnabled = true

# Torrent indexing (nyaa.si)
# Default: false
#nyaaEnabled = false
#nyaaBaseUrl = "https://nyaa.si"

# Unification
# Array fields (genres, studios, ...) are merged across sources
mergeArrays = true
`
