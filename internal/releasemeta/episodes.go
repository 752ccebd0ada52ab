// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package releasemeta

import (
	"regexp"
	"strconv"

	"github.com/kitsuneislife/miau-index/internal/models"
)

// Each extractor is an ordered list of independent patterns combined by
// first-match-wins.
var (
	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)e(\d{1,4})\b`),        // E12, S01E12
		regexp.MustCompile(`(?i)episode\s+(\d{1,4})`), // Episode 12
		regexp.MustCompile(` - (\d{1,4}) `),           // Title - 12 [1080p]
		regexp.MustCompile(`(\d{1,4}) \[`),            // Title 12 [1080p]
	}

	rangePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)e(\d{1,4})\s*-\s*e(\d{1,4})`), // E01-E12
		regexp.MustCompile(`(\d{1,4})\s*-\s*(\d{1,4})`),       // 01-12
	}

	seasonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)s(\d{1,2})e\d{1,4}`),  // S02E05
		regexp.MustCompile(`(?i)season\s+(\d{1,2})`),  // Season 2
		regexp.MustCompile(`(?i)\bs(\d{1,2})\b`),      // S2
	}
)

// ExtractEpisodeNumber pulls a single episode number out of a release title.
func ExtractEpisodeNumber(title string) (int, bool) {
	for _, pattern := range episodePatterns {
		if m := pattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

// ExtractEpisodeRange pulls a batch episode span out of a release title.
// The extractor does not validate start <= end; the torrent mapper is the
// validation site for inverted ranges.
func ExtractEpisodeRange(title string) (models.EpisodeRange, bool) {
	for _, pattern := range rangePatterns {
		m := pattern.FindStringSubmatch(title)
		if m == nil {
			continue
		}
		start, err1 := strconv.Atoi(m[1])
		end, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return models.EpisodeRange{Start: start, End: end}, true
	}
	return models.EpisodeRange{}, false
}

// ExtractSeasonNumber pulls a season number out of a release title.
func ExtractSeasonNumber(title string) (int, bool) {
	for _, pattern := range seasonPatterns {
		if m := pattern.FindStringSubmatch(title); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}
