// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package titles parses release names into their scene components. It is an
// advisory view over rls used by the title-parse API endpoint; the indexing
// heuristics in internal/releasemeta stay authoritative for stored metadata.
package titles

import (
	"context"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/moistari/rls"
)

// ParsedTitle is the anime-relevant subset of a parsed release name.
type ParsedTitle struct {
	Type       string   `json:"type"`
	Title      string   `json:"title,omitempty"`
	Alt        string   `json:"alt,omitempty"`
	Year       int      `json:"year,omitempty"`
	Series     int      `json:"series,omitempty"`
	Episode    int      `json:"episode,omitempty"`
	Resolution string   `json:"resolution,omitempty"`
	Source     string   `json:"source,omitempty"`
	Codec      []string `json:"codec,omitempty"`
	Audio      []string `json:"audio,omitempty"`
	Language   []string `json:"language,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Container  string   `json:"container,omitempty"`
	Group      string   `json:"group,omitempty"`
	Site       string   `json:"site,omitempty"`
}

// Parser parses torrent titles with a TTL cache in front of rls.
type Parser struct {
	cache *ttlcache.Cache[string, ParsedTitle]
}

// NewParser creates a title parser with a five minute cache.
func NewParser() *Parser {
	return &Parser{
		cache: ttlcache.New(ttlcache.Options[string, ParsedTitle]{}.SetDefaultTTL(5 * time.Minute)),
	}
}

// Parse parses a single release name.
func (p *Parser) Parse(name string) ParsedTitle {
	if cached, found := p.cache.Get(name); found {
		return cached
	}

	release := rls.ParseString(name)
	parsed := ParsedTitle{
		Type:       release.Type.String(),
		Title:      release.Title,
		Alt:        release.Alt,
		Year:       release.Year,
		Series:     release.Series,
		Episode:    release.Episode,
		Resolution: release.Resolution,
		Source:     release.Source,
		Codec:      release.Codec,
		Audio:      release.Audio,
		Language:   release.Language,
		Collection: release.Collection,
		Container:  release.Container,
		Group:      release.Group,
		Site:       release.Site,
	}

	p.cache.Set(name, parsed, ttlcache.DefaultTTL)
	return parsed
}

// ParseAll parses a list of release names, skipping empties.
func (p *Parser) ParseAll(ctx context.Context, names []string) []ParsedTitle {
	result := make([]ParsedTitle, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return result
		default:
		}
		result = append(result, p.Parse(name))
	}
	return result
}
