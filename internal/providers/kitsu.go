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

	"github.com/kitsuneislife/miau-index/internal/models"
)

const kitsuBaseURL = "https://kitsu.io/api/edge"

// KitsuClient queries the Kitsu JSON:API. Kitsu reports scores on a 0-100
// scale as strings; they are normalized to 0-10 here.
type KitsuClient struct {
	rest    *restClient
	baseURL string
	cache   *ttlcache.Cache[string, []*models.Anime]
}

// NewKitsuClient creates a Kitsu client.
func NewKitsuClient(timeout time.Duration, attempts int) *KitsuClient {
	return &KitsuClient{
		rest:    newRESTClient(models.SourceKitsu, timeout, attempts, 3),
		baseURL: kitsuBaseURL,
		cache:   ttlcache.New(ttlcache.Options[string, []*models.Anime]{}.SetDefaultTTL(10 * time.Minute)),
	}
}

func (c *KitsuClient) Source() models.SourceTag { return models.SourceKitsu }

func (c *KitsuClient) IsAvailable(ctx context.Context) bool {
	return c.rest.ping(ctx, c.baseURL+"/anime?page[limit]=1")
}

type kitsuResource struct {
	ID         string `json:"id"`
	Attributes struct {
		Titles struct {
			En   string `json:"en"`
			EnJp string `json:"en_jp"`
			JaJp string `json:"ja_jp"`
		} `json:"titles"`
		CanonicalTitle    string   `json:"canonicalTitle"`
		AbbreviatedTitles []string `json:"abbreviatedTitles"`
		Synopsis          string   `json:"synopsis"`
		AverageRating     string   `json:"averageRating"`
		UserCount         int      `json:"userCount"`
		PopularityRank    int      `json:"popularityRank"`
		RatingRank        int      `json:"ratingRank"`
		StartDate         string   `json:"startDate"`
		EndDate           string   `json:"endDate"`
		Status            string   `json:"status"`
		Subtype           string   `json:"subtype"`
		EpisodeCount      int      `json:"episodeCount"`
		EpisodeLength     int      `json:"episodeLength"`
		PosterImage       struct {
			Small    string `json:"small"`
			Large    string `json:"large"`
			Original string `json:"original"`
		} `json:"posterImage"`
		CoverImage struct {
			Large    string `json:"large"`
			Original string `json:"original"`
		} `json:"coverImage"`
	} `json:"attributes"`
}

func (c *KitsuClient) FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error) {
	var resp struct {
		Data *kitsuResource `json:"data"`
	}
	found, err := c.rest.getJSON(ctx, fmt.Sprintf("%s/anime/%s", c.baseURL, url.PathEscape(externalID)), &resp)
	if err != nil {
		return nil, err
	}
	if !found || resp.Data == nil {
		return nil, nil
	}
	return c.convert(*resp.Data), nil
}

func (c *KitsuClient) SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := "search:" + query + ":" + strconv.Itoa(limit)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []kitsuResource `json:"data"`
	}
	searchURL := fmt.Sprintf("%s/anime?filter[text]=%s&page[limit]=%d", c.baseURL, url.QueryEscape(query), limit)
	if _, err := c.rest.getJSON(ctx, searchURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, resource := range resp.Data {
		out = append(out, c.convert(resource))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *KitsuClient) GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	cacheKey := "season:" + strconv.Itoa(year) + ":" + string(season)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	var resp struct {
		Data []kitsuResource `json:"data"`
	}
	seasonURL := fmt.Sprintf("%s/anime?filter[season]=%s&filter[seasonYear]=%d&page[limit]=20",
		c.baseURL, kitsuSeasonName(season), year)
	if _, err := c.rest.getJSON(ctx, seasonURL, &resp); err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data))
	for _, resource := range resp.Data {
		out = append(out, c.convert(resource))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *KitsuClient) convert(r kitsuResource) *models.Anime {
	attrs := r.Attributes
	now := time.Now()

	anime := &models.Anime{
		ID: models.NewAnimeID(),
		Title: models.Title{
			Romaji:   firstNonEmpty(attrs.Titles.EnJp, attrs.CanonicalTitle),
			English:  attrs.Titles.En,
			Native:   attrs.Titles.JaJp,
			Synonyms: attrs.AbbreviatedTitles,
		},
		Type:            kitsuSubtype(attrs.Subtype),
		Status:          kitsuStatus(attrs.Status),
		EpisodeCount:    attrs.EpisodeCount,
		DurationMinutes: attrs.EpisodeLength,
		Synopsis:        attrs.Synopsis,
		Images: models.ImageSet{
			Poster:    firstNonEmpty(attrs.PosterImage.Original, attrs.PosterImage.Large),
			Banner:    firstNonEmpty(attrs.CoverImage.Original, attrs.CoverImage.Large),
			Thumbnail: attrs.PosterImage.Small,
		},
		Aired: models.DateRange{
			From: parseFlexibleDate(attrs.StartDate),
			To:   parseFlexibleDate(attrs.EndDate),
		},
		ExternalIDs: []models.ExternalID{
			{Source: models.SourceKitsu, ID: r.ID},
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSyncedAt: now,
	}

	if from := anime.Aired.From; from != nil {
		anime.Year = from.Year()
		anime.Season = seasonOfMonth(from.Month())
	}

	if score, err := strconv.ParseFloat(attrs.AverageRating, 64); err == nil && score > 0 {
		anime.Ratings = []models.Rating{{
			Source:     models.SourceKitsu,
			Score:      score / 10,
			Votes:      attrs.UserCount,
			Rank:       attrs.RatingRank,
			Popularity: attrs.PopularityRank,
		}}
	}

	return anime
}

func kitsuSubtype(subtype string) models.AnimeType {
	switch subtype {
	case "TV":
		return models.AnimeTypeTV
	case "movie":
		return models.AnimeTypeMovie
	case "OVA":
		return models.AnimeTypeOVA
	case "ONA":
		return models.AnimeTypeONA
	case "special":
		return models.AnimeTypeSpecial
	case "music":
		return models.AnimeTypeMusic
	default:
		return ""
	}
}

func kitsuStatus(status string) models.AnimeStatus {
	switch status {
	case "current":
		return models.StatusAiring
	case "finished":
		return models.StatusFinished
	case "upcoming", "unreleased", "tba":
		return models.StatusNotYetAired
	default:
		return ""
	}
}

func kitsuSeasonName(season models.AiringSeason) string {
	switch season {
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

func seasonOfMonth(month time.Month) models.AiringSeason {
	switch {
	case month <= time.March:
		return models.SeasonWinter
	case month <= time.June:
		return models.SeasonSpring
	case month <= time.September:
		return models.SeasonSummer
	default:
		return models.SeasonFall
	}
}
