// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
)

const jikanBaseURL = "https://api.jikan.moe/v4"

// JikanClient queries the Jikan v4 API, an unauthenticated MyAnimeList
// mirror. It is the only provider with an episode list endpoint, so it also
// implements EpisodeLister. Jikan enforces a strict public rate limit, hence
// the low request rate.
type JikanClient struct {
	rest    *restClient
	baseURL string
	cache   *ttlcache.Cache[string, []*models.Anime]
}

// NewJikanClient creates a Jikan client.
func NewJikanClient(timeout time.Duration, attempts int) *JikanClient {
	return &JikanClient{
		rest:    newRESTClient(models.SourceJikan, timeout, attempts, 1),
		baseURL: jikanBaseURL,
		cache:   ttlcache.New(ttlcache.Options[string, []*models.Anime]{}.SetDefaultTTL(10 * time.Minute)),
	}
}

func (c *JikanClient) Source() models.SourceTag { return models.SourceJikan }

func (c *JikanClient) IsAvailable(ctx context.Context) bool {
	return c.rest.ping(ctx, c.baseURL)
}

type jikanAnime struct {
	MalID  int `json:"mal_id"`
	Titles []struct {
		Type  string `json:"type"`
		Title string `json:"title"`
	} `json:"titles"`
	Type       string  `json:"type"`
	Status     string  `json:"status"`
	Episodes   int     `json:"episodes"`
	Duration   string  `json:"duration"` // e.g. "24 min per ep"
	Score      float64 `json:"score"`
	ScoredBy   int     `json:"scored_by"`
	Rank       int     `json:"rank"`
	Popularity int     `json:"popularity"`
	Synopsis   string  `json:"synopsis"`
	Background string  `json:"background"`
	Season     string  `json:"season"`
	Year       int     `json:"year"`
	Images     struct {
		JPG struct {
			ImageURL      string `json:"image_url"`
			SmallImageURL string `json:"small_image_url"`
			LargeImageURL string `json:"large_image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Aired struct {
		From string `json:"from"`
		To   string `json:"to"`
	} `json:"aired"`
	Genres    []jikanNamed `json:"genres"`
	Themes    []jikanNamed `json:"themes"`
	Studios   []jikanNamed `json:"studios"`
	Producers []jikanNamed `json:"producers"`
	Licensors []jikanNamed `json:"licensors"`
}

type jikanNamed struct {
	Name string `json:"name"`
}

func (c *JikanClient) FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error) {
	if _, err := strconv.Atoi(externalID); err != nil {
		return nil, domain.NewValidationError("externalID", "jikan ids are numeric mal ids")
	}

	var resp struct {
		Data *jikanAnime `json:"data"`
	}
	found, err := c.rest.getJSON(ctx, fmt.Sprintf("%s/anime/%s", c.baseURL, externalID), &resp)
	if err != nil {
		return nil, err
	}
	if !found || resp.Data == nil {
		return nil, nil
	}
	return c.convert(*resp.Data), nil
}

func (c *JikanClient) SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := "search:" + query + ":" + strconv.Itoa(limit)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []jikanAnime `json:"data"`
	}
	searchURL := fmt.Sprintf("%s/anime?q=%s&limit=%d", c.baseURL, url.QueryEscape(query), limit)
	if _, err := c.rest.getJSON(ctx, searchURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, entry := range resp.Data {
		out = append(out, c.convert(entry))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *JikanClient) GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	cacheKey := "season:" + strconv.Itoa(year) + ":" + string(season)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []jikanAnime `json:"data"`
	}
	seasonURL := fmt.Sprintf("%s/seasons/%d/%s", c.baseURL, year, malSeasonName(season))
	if _, err := c.rest.getJSON(ctx, seasonURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, entry := range resp.Data {
		out = append(out, c.convert(entry))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

// FetchEpisodes pages through the Jikan episode list for a MAL id. animeID is
// the internal id the returned episodes are attached to.
func (c *JikanClient) FetchEpisodes(ctx context.Context, animeID, externalID string) ([]*models.Episode, error) {
	if _, err := strconv.Atoi(externalID); err != nil {
		return nil, domain.NewValidationError("externalID", "jikan ids are numeric mal ids")
	}

	var episodes []*models.Episode
	for page := 1; ; page++ {
		var resp struct {
			Data []struct {
				MalID int    `json:"mal_id"`
				Title string `json:"title"`
				Aired string `json:"aired"`
				Filler bool  `json:"filler"`
				Recap  bool  `json:"recap"`
			} `json:"data"`
			Pagination struct {
				HasNextPage bool `json:"has_next_page"`
			} `json:"pagination"`
		}

		pageURL := fmt.Sprintf("%s/anime/%s/episodes?page=%d", c.baseURL, externalID, page)
		found, err := c.rest.getJSON(ctx, pageURL, &resp)
		if err != nil {
			return nil, err
		}
		if !found {
			break
		}

		now := time.Now()
		for _, raw := range resp.Data {
			episode := &models.Episode{
				ID:      models.NewEpisodeID(),
				AnimeID: animeID,
				Number:  raw.MalID,
				Title:   raw.Title,
				Filler:  raw.Filler,
				Recap:   raw.Recap,
				ExternalIDs: []models.ExternalID{
					{Source: models.SourceJikan, ID: strconv.Itoa(raw.MalID)},
				},
				CreatedAt: now,
				UpdatedAt: now,
			}
			if t, err := time.Parse(time.RFC3339, raw.Aired); err == nil {
				episode.AiredDate = &t
			}
			episodes = append(episodes, episode)
		}

		if !resp.Pagination.HasNextPage {
			break
		}
	}

	return episodes, nil
}

func (c *JikanClient) convert(j jikanAnime) *models.Anime {
	now := time.Now()
	anime := &models.Anime{
		ID:              models.NewAnimeID(),
		Type:            jikanType(j.Type),
		Status:          jikanStatus(j.Status),
		EpisodeCount:    j.Episodes,
		DurationMinutes: parseJikanDuration(j.Duration),
		Season:          malSeason(j.Season),
		Year:            j.Year,
		Synopsis:        j.Synopsis,
		Background:      j.Background,
		Images: models.ImageSet{
			Poster:    firstNonEmpty(j.Images.JPG.LargeImageURL, j.Images.JPG.ImageURL),
			Thumbnail: j.Images.JPG.SmallImageURL,
		},
		Aired: models.DateRange{
			From: parseJikanDate(j.Aired.From),
			To:   parseJikanDate(j.Aired.To),
		},
		Genres:    namedList(j.Genres),
		Themes:    namedList(j.Themes),
		Studios:   namedList(j.Studios),
		Producers: namedList(j.Producers),
		Licensors: namedList(j.Licensors),
		ExternalIDs: []models.ExternalID{
			{Source: models.SourceJikan, ID: strconv.Itoa(j.MalID)},
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSyncedAt: now,
	}

	for _, title := range j.Titles {
		switch title.Type {
		case "Default":
			anime.Title.Romaji = title.Title
		case "English":
			anime.Title.English = title.Title
		case "Japanese":
			anime.Title.Native = title.Title
		case "Synonym":
			anime.Title.Synonyms = append(anime.Title.Synonyms, title.Title)
		}
	}

	if j.Score > 0 {
		anime.Ratings = []models.Rating{{
			Source:     models.SourceJikan,
			Score:      j.Score,
			Votes:      j.ScoredBy,
			Rank:       j.Rank,
			Popularity: j.Popularity,
		}}
	}

	return anime
}

func jikanType(t string) models.AnimeType {
	switch t {
	case "TV":
		return models.AnimeTypeTV
	case "Movie":
		return models.AnimeTypeMovie
	case "OVA":
		return models.AnimeTypeOVA
	case "ONA":
		return models.AnimeTypeONA
	case "Special", "TV Special":
		return models.AnimeTypeSpecial
	case "Music":
		return models.AnimeTypeMusic
	default:
		return ""
	}
}

func jikanStatus(status string) models.AnimeStatus {
	switch status {
	case "Currently Airing":
		return models.StatusAiring
	case "Finished Airing":
		return models.StatusFinished
	case "Not yet aired":
		return models.StatusNotYetAired
	default:
		return ""
	}
}

// parseJikanDuration extracts the leading minute count from strings like
// "24 min per ep" or "1 hr 55 min".
func parseJikanDuration(s string) int {
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d hr %d min", &hours, &minutes); err == nil {
		return hours*60 + minutes
	}
	if _, err := fmt.Sscanf(s, "%d hr", &hours); err == nil {
		return hours * 60
	}
	if _, err := fmt.Sscanf(s, "%d min", &minutes); err == nil {
		return minutes
	}
	return 0
}

func parseJikanDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t
	}
	return nil
}

func namedList(entries []jikanNamed) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Name != "" {
			out = append(out, entry.Name)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
