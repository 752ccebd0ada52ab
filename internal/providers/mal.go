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

const (
	malBaseURL = "https://api.myanimelist.net/v2"

	malFields = "id,title,alternative_titles,main_picture,synopsis,background,mean,rank,popularity," +
		"num_scoring_users,media_type,status,genres,num_episodes,average_episode_duration," +
		"start_date,end_date,start_season,studios"
)

// MALClient queries the official MyAnimeList v2 API. Requests authenticate
// with a client id header; no user OAuth flow is involved.
type MALClient struct {
	rest     *restClient
	baseURL  string
	clientID string
	cache    *ttlcache.Cache[string, []*models.Anime]
}

// NewMALClient creates a MyAnimeList client. clientID must be a registered
// MAL API client id.
func NewMALClient(clientID string, timeout time.Duration, attempts int) *MALClient {
	rest := newRESTClient(models.SourceMyAnimeList, timeout, attempts, 2)
	rest.headers = map[string]string{"X-MAL-CLIENT-ID": clientID}
	return &MALClient{
		rest:     rest,
		baseURL:  malBaseURL,
		clientID: clientID,
		cache:    ttlcache.New(ttlcache.Options[string, []*models.Anime]{}.SetDefaultTTL(10 * time.Minute)),
	}
}

func (c *MALClient) Source() models.SourceTag { return models.SourceMyAnimeList }

func (c *MALClient) IsAvailable(ctx context.Context) bool {
	if c.clientID == "" {
		return false
	}
	return c.rest.ping(ctx, c.baseURL+"/anime?q=a&limit=1")
}

type malNode struct {
	ID    int    `json:"id"`
	Title string `json:"title"`

	AlternativeTitles struct {
		Synonyms []string `json:"synonyms"`
		En       string   `json:"en"`
		Ja       string   `json:"ja"`
	} `json:"alternative_titles"`

	MainPicture struct {
		Medium string `json:"medium"`
		Large  string `json:"large"`
	} `json:"main_picture"`

	Synopsis        string  `json:"synopsis"`
	Background      string  `json:"background"`
	Mean            float64 `json:"mean"`
	Rank            int     `json:"rank"`
	Popularity      int     `json:"popularity"`
	NumScoringUsers int     `json:"num_scoring_users"`
	MediaType       string  `json:"media_type"`
	Status          string  `json:"status"`

	Genres []struct {
		Name string `json:"name"`
	} `json:"genres"`

	NumEpisodes            int    `json:"num_episodes"`
	AverageEpisodeDuration int    `json:"average_episode_duration"` // seconds
	StartDate              string `json:"start_date"`
	EndDate                string `json:"end_date"`

	StartSeason struct {
		Year   int    `json:"year"`
		Season string `json:"season"`
	} `json:"start_season"`

	Studios []struct {
		Name string `json:"name"`
	} `json:"studios"`
}

func (c *MALClient) FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error) {
	if _, err := strconv.Atoi(externalID); err != nil {
		return nil, domain.NewValidationError("externalID", "myanimelist ids are numeric")
	}

	var node malNode
	found, err := c.rest.getJSON(ctx, fmt.Sprintf("%s/anime/%s?fields=%s", c.baseURL, externalID, malFields), &node)
	if err != nil {
		return nil, err
	}
	if !found || node.ID == 0 {
		return nil, nil
	}
	return c.convert(node), nil
}

func (c *MALClient) SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := "search:" + query + ":" + strconv.Itoa(limit)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []struct {
			Node malNode `json:"node"`
		} `json:"data"`
	}
	searchURL := fmt.Sprintf("%s/anime?q=%s&limit=%d&fields=%s", c.baseURL, url.QueryEscape(query), limit, malFields)
	if _, err := c.rest.getJSON(ctx, searchURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, entry := range resp.Data {
		out = append(out, c.convert(entry.Node))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *MALClient) GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	cacheKey := "season:" + strconv.Itoa(year) + ":" + string(season)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []struct {
			Node malNode `json:"node"`
		} `json:"data"`
	}
	seasonURL := fmt.Sprintf("%s/anime/season/%d/%s?limit=100&fields=%s",
		c.baseURL, year, malSeasonName(season), malFields)
	if _, err := c.rest.getJSON(ctx, seasonURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, entry := range resp.Data {
		out = append(out, c.convert(entry.Node))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *MALClient) convert(n malNode) *models.Anime {
	now := time.Now()
	anime := &models.Anime{
		ID: models.NewAnimeID(),
		Title: models.Title{
			Romaji:   n.Title,
			English:  n.AlternativeTitles.En,
			Native:   n.AlternativeTitles.Ja,
			Synonyms: n.AlternativeTitles.Synonyms,
		},
		Type:            malMediaType(n.MediaType),
		Status:          malStatus(n.Status),
		EpisodeCount:    n.NumEpisodes,
		DurationMinutes: n.AverageEpisodeDuration / 60,
		Season:          malSeason(n.StartSeason.Season),
		Year:            n.StartSeason.Year,
		Synopsis:        n.Synopsis,
		Background:      n.Background,
		Images: models.ImageSet{
			Poster:    firstNonEmpty(n.MainPicture.Large, n.MainPicture.Medium),
			Thumbnail: n.MainPicture.Medium,
		},
		Aired: models.DateRange{
			From: parseFlexibleDate(n.StartDate),
			To:   parseFlexibleDate(n.EndDate),
		},
		ExternalIDs: []models.ExternalID{
			{Source: models.SourceMyAnimeList, ID: strconv.Itoa(n.ID)},
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSyncedAt: now,
	}

	if n.Mean > 0 {
		anime.Ratings = []models.Rating{{
			Source:     models.SourceMyAnimeList,
			Score:      n.Mean,
			Votes:      n.NumScoringUsers,
			Rank:       n.Rank,
			Popularity: n.Popularity,
		}}
	}

	for _, genre := range n.Genres {
		if genre.Name != "" {
			anime.Genres = append(anime.Genres, genre.Name)
		}
	}
	for _, studio := range n.Studios {
		if studio.Name != "" {
			anime.Studios = append(anime.Studios, studio.Name)
		}
	}

	return anime
}

func malMediaType(mediaType string) models.AnimeType {
	switch mediaType {
	case "tv":
		return models.AnimeTypeTV
	case "movie":
		return models.AnimeTypeMovie
	case "ova":
		return models.AnimeTypeOVA
	case "ona":
		return models.AnimeTypeONA
	case "special", "tv_special":
		return models.AnimeTypeSpecial
	case "music":
		return models.AnimeTypeMusic
	default:
		return ""
	}
}

func malStatus(status string) models.AnimeStatus {
	switch status {
	case "currently_airing":
		return models.StatusAiring
	case "finished_airing":
		return models.StatusFinished
	case "not_yet_aired":
		return models.StatusNotYetAired
	default:
		return ""
	}
}

func malSeason(season string) models.AiringSeason {
	switch season {
	case "winter":
		return models.SeasonWinter
	case "spring":
		return models.SeasonSpring
	case "summer":
		return models.SeasonSummer
	case "fall":
		return models.SeasonFall
	default:
		return ""
	}
}

func malSeasonName(season models.AiringSeason) string {
	switch season {
	case models.SeasonWinter:
		return "winter"
	case models.SeasonSpring:
		return "spring"
	case models.SeasonSummer:
		return "summer"
	case models.SeasonFall:
		return "fall"
	default:
		return "winter"
	}
}

// parseFlexibleDate parses the MAL date formats, which omit day or month for
// older entries.
func parseFlexibleDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
