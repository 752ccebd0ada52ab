// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package releasemeta turns free-text release titles into structured torrent
// metadata. Extraction is a pure function with no failure mode: undetected
// attributes fall back to UNKNOWN or the documented language defaults.
package releasemeta

import (
	"regexp"
	"strings"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// releaseGroupPattern captures a bracketed token anchored to end of title.
// Known ambiguity: a trailing quality or codec tag in brackets ("[HEVC]" at
// the very end) is indistinguishable from a group name and extracts as one.
var releaseGroupPattern = regexp.MustCompile(`\[([^\[\]]+)\]\s*$`)

var subtitleMarkers = []struct {
	lang    models.Language
	markers []string
}{
	{models.LangEnglish, []string{"english", "eng"}},
	{models.LangPortugueseBR, []string{"portuguese", "pt-br", "ptbr", "por-br"}},
	{models.LangSpanish, []string{"spanish", "espanol", "spa"}},
	{models.LangFrench, []string{"french", "vostfr", "fre"}},
	{models.LangGerman, []string{"german", "ger"}},
	{models.LangItalian, []string{"italian", "ita"}},
	{models.LangRussian, []string{"russian", "rus"}},
	{models.LangChinese, []string{"chinese", "chs", "cht"}},
	{models.LangKorean, []string{"korean", "kor"}},
}

// Extract parses a raw release title into TorrentMetadata. Matching is
// case-insensitive; every attribute is resolved by first-match-wins over the
// documented priority order.
func Extract(title string) models.TorrentMetadata {
	lower := strings.ToLower(title)

	meta := models.TorrentMetadata{
		Quality:           extractQuality(lower),
		Codec:             extractCodec(lower),
		AudioLanguages:    extractAudioLanguages(lower),
		SubtitleLanguages: extractSubtitleLanguages(lower),
		ReleaseType:       extractReleaseType(lower),
		ReleaseGroup:      ExtractReleaseGroup(title),
		IsDual:            strings.Contains(lower, "dual audio"),
		IsMultiSub:        strings.Contains(lower, "multi") && strings.Contains(lower, "sub"),
		IsBatch:           strings.Contains(lower, "batch"),
		HasHardSubs:       strings.Contains(lower, "hardsub"),
	}

	return meta
}

// extractQuality checks highest resolution first so a compound title like
// "2160p ... 1080p" resolves to the higher value.
func extractQuality(lower string) models.VideoQuality {
	switch {
	case strings.Contains(lower, "2160p"), strings.Contains(lower, "4k"):
		return models.QualityUHD4K
	case strings.Contains(lower, "1080p"):
		return models.QualityFullHD
	case strings.Contains(lower, "720p"):
		return models.QualityHD
	case strings.Contains(lower, "480p"):
		return models.QualitySD
	case strings.Contains(lower, "raw"):
		return models.QualityRaw
	default:
		return models.QualityUnknown
	}
}

func extractCodec(lower string) models.VideoCodec {
	switch {
	case strings.Contains(lower, "hevc"), strings.Contains(lower, "h.265"):
		return models.CodecHEVC
	case strings.Contains(lower, "h.264"), strings.Contains(lower, "x264"):
		return models.CodecH264
	case strings.Contains(lower, "av1"):
		return models.CodecAV1
	case strings.Contains(lower, "vp9"):
		return models.CodecVP9
	case strings.Contains(lower, "xvid"):
		return models.CodecXviD
	default:
		return models.CodecUnknown
	}
}

// extractAudioLanguages defaults to Japanese when nothing matched: most
// releases are Japanese-audio unless tagged otherwise.
func extractAudioLanguages(lower string) []models.Language {
	if strings.Contains(lower, "dual audio") || strings.Contains(lower, "multi audio") {
		return []models.Language{models.LangJapanese, models.LangEnglish}
	}

	var langs []models.Language
	for _, marker := range []string{"japanese", "jpn", "jap"} {
		if strings.Contains(lower, marker) {
			langs = append(langs, models.LangJapanese)
			break
		}
	}
	for _, marker := range []string{"english", "eng", "dub"} {
		if strings.Contains(lower, marker) {
			langs = append(langs, models.LangEnglish)
			break
		}
	}
	if len(langs) == 0 {
		return []models.Language{models.LangJapanese}
	}
	return langs
}

// extractSubtitleLanguages short-circuits to MULTI for multi-sub releases and
// defaults to English when no marker matched.
func extractSubtitleLanguages(lower string) []models.Language {
	if strings.Contains(lower, "multi") &&
		(strings.Contains(lower, "sub") || strings.Contains(lower, "subtitle")) {
		return []models.Language{models.LangMulti}
	}

	var langs []models.Language
	for _, entry := range subtitleMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(lower, marker) {
				langs = append(langs, entry.lang)
				break
			}
		}
	}
	if len(langs) == 0 {
		return []models.Language{models.LangEnglish}
	}
	return langs
}

func extractReleaseType(lower string) models.ReleaseType {
	switch {
	case strings.Contains(lower, "batch"), strings.Contains(lower, "complete"):
		return models.ReleaseBatch
	case strings.Contains(lower, "season"):
		return models.ReleaseSeason
	case strings.Contains(lower, "movie"):
		return models.ReleaseMovie
	case strings.Contains(lower, "ova"):
		return models.ReleaseOVA
	case strings.Contains(lower, "special"):
		return models.ReleaseSpecial
	default:
		return models.ReleaseEpisode
	}
}

// ExtractReleaseGroup returns the trailing bracketed token of the title, or
// "" if the title does not end with one.
func ExtractReleaseGroup(title string) string {
	m := releaseGroupPattern.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
