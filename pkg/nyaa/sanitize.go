// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package nyaa

import (
	"strings"
	"unicode/utf8"
)

const maxQueryLength = 200

// SanitizeQuery normalizes free text before it reaches the indexer: trimmed,
// stripped of <>'" characters, inner whitespace collapsed, capped at 200
// bytes without splitting a rune.
func SanitizeQuery(query string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', '\'', '"':
			return -1
		}
		return r
	}, query)

	cleaned = strings.Join(strings.Fields(cleaned), " ")

	// cap on a rune boundary so multibyte titles are not cut mid-character
	for len(cleaned) > maxQueryLength {
		_, size := utf8.DecodeLastRuneInString(cleaned)
		cleaned = cleaned[:len(cleaned)-size]
	}
	return cleaned
}
