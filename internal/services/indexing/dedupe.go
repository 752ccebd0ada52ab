// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexing

import (
	"sort"
	"strings"
	"unicode"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// Deduplicate collapses candidates that describe the same underlying release.
// The key is the info hash when present, else the normalized title. On
// collision the higher-seeded candidate survives. Output is sorted descending
// by seeders; best-torrent selection relies on that ordering.
func Deduplicate(candidates []*models.Torrent) []*models.Torrent {
	best := make(map[string]*models.Torrent, len(candidates))
	var order []string

	for _, candidate := range candidates {
		key := candidate.InfoHash
		if key == "" {
			key = normalizeTitle(candidate.Title)
		}

		current, ok := best[key]
		if !ok {
			best[key] = candidate
			order = append(order, key)
			continue
		}
		if candidate.Seeders > current.Seeders {
			best[key] = candidate
		}
	}

	out := make([]*models.Torrent, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Seeders > out[j].Seeders
	})
	return out
}

// normalizeTitle lower-cases and collapses every non-alphanumeric run to a
// single space, trimmed.
func normalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastSpace := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}
