// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/pkg/errors"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
)

const anilistEndpoint = "https://graphql.anilist.co"

const anilistMediaFields = `
id
title { romaji english native }
synonyms
description(asHtml: false)
format
status
episodes
duration
season
seasonYear
startDate { year month day }
endDate { year month day }
averageScore
popularity
genres
tags { name }
studios { edges { isMain node { name } } }
coverImage { large extraLarge }
bannerImage`

// AniListClient queries the AniList GraphQL API.
type AniListClient struct {
	rest  *restClient
	cache *ttlcache.Cache[string, []*models.Anime]
}

// NewAniListClient creates an AniList client with the given transport limits.
func NewAniListClient(timeout time.Duration, attempts int) *AniListClient {
	return &AniListClient{
		rest:  newRESTClient(models.SourceAniList, timeout, attempts, 1.5),
		cache: ttlcache.New(ttlcache.Options[string, []*models.Anime]{}.SetDefaultTTL(10 * time.Minute)),
	}
}

func (c *AniListClient) Source() models.SourceTag { return models.SourceAniList }

func (c *AniListClient) IsAvailable(ctx context.Context) bool {
	return c.rest.ping(ctx, anilistEndpoint)
}

type anilistDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

func (d anilistDate) time() *time.Time {
	if d.Year == 0 {
		return nil
	}
	month, day := d.Month, d.Day
	if month == 0 {
		month = 1
	}
	if day == 0 {
		day = 1
	}
	t := time.Date(d.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return &t
}

type anilistMedia struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Synonyms     []string    `json:"synonyms"`
	Description  string      `json:"description"`
	Format       string      `json:"format"`
	Status       string      `json:"status"`
	Episodes     int         `json:"episodes"`
	Duration     int         `json:"duration"`
	Season       string      `json:"season"`
	SeasonYear   int         `json:"seasonYear"`
	StartDate    anilistDate `json:"startDate"`
	EndDate      anilistDate `json:"endDate"`
	AverageScore int         `json:"averageScore"`
	Popularity   int         `json:"popularity"`
	Genres       []string    `json:"genres"`
	Tags         []struct {
		Name string `json:"name"`
	} `json:"tags"`
	Studios struct {
		Edges []struct {
			IsMain bool `json:"isMain"`
			Node   struct {
				Name string `json:"name"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"studios"`
	CoverImage struct {
		Large      string `json:"large"`
		ExtraLarge string `json:"extraLarge"`
	} `json:"coverImage"`
	BannerImage string `json:"bannerImage"`
}

type anilistResponse struct {
	Data struct {
		Media *anilistMedia `json:"Media"`
		Page  struct {
			Media []anilistMedia `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
		Status  int    `json:"status"`
	} `json:"errors"`
}

func (c *AniListClient) query(ctx context.Context, query string, variables map[string]any) (*anilistResponse, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encoding graphql request")
	}

	var resp anilistResponse
	found, err := c.rest.doJSON(ctx, "POST", anilistEndpoint, func() (io.Reader, error) {
		return bytes.NewReader(payload), nil
	}, &resp)
	if err != nil {
		return nil, err
	}
	if !found {
		return &anilistResponse{}, nil
	}

	for _, gqlErr := range resp.Errors {
		if gqlErr.Status == 404 {
			return &anilistResponse{}, nil
		}
		return nil, domain.NewProviderError(string(models.SourceAniList), errors.Errorf("graphql: %s", gqlErr.Message))
	}

	return &resp, nil
}

func (c *AniListClient) FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error) {
	id, err := strconv.Atoi(externalID)
	if err != nil {
		return nil, domain.NewValidationError("externalID", "anilist ids are numeric")
	}

	resp, err := c.query(ctx, "query ($id: Int) { Media(id: $id, type: ANIME) {"+anilistMediaFields+"} }",
		map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if resp.Data.Media == nil {
		return nil, nil
	}
	return c.convert(*resp.Data.Media), nil
}

func (c *AniListClient) SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if limit <= 0 {
		limit = 10
	}
	cacheKey := "search:" + query + ":" + strconv.Itoa(limit)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	resp, err := c.query(ctx,
		"query ($search: String, $perPage: Int) { Page(perPage: $perPage) { media(search: $search, type: ANIME) {"+anilistMediaFields+"} } }",
		map[string]any{"search": query, "perPage": limit})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data.Page.Media))
	for _, media := range resp.Data.Page.Media {
		out = append(out, c.convert(media))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *AniListClient) GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	cacheKey := "season:" + strconv.Itoa(year) + ":" + string(season)
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	resp, err := c.query(ctx,
		"query ($season: MediaSeason, $year: Int) { Page(perPage: 50) { media(season: $season, seasonYear: $year, type: ANIME) {"+anilistMediaFields+"} } }",
		map[string]any{"season": string(season), "year": year})
	if err != nil {
		return nil, err
	}

	out := make([]*models.Anime, 0, len(resp.Data.Page.Media))
	for _, media := range resp.Data.Page.Media {
		out = append(out, c.convert(media))
	}

	c.cache.Set(cacheKey, out, ttlcache.DefaultTTL)
	return out, nil
}

func (c *AniListClient) convert(m anilistMedia) *models.Anime {
	now := time.Now()
	anime := &models.Anime{
		ID: models.NewAnimeID(),
		Title: models.Title{
			Romaji:   m.Title.Romaji,
			English:  m.Title.English,
			Native:   m.Title.Native,
			Synonyms: m.Synonyms,
		},
		Type:            anilistFormat(m.Format),
		Status:          anilistStatus(m.Status),
		EpisodeCount:    m.Episodes,
		DurationMinutes: m.Duration,
		Season:          models.AiringSeason(m.Season),
		Year:            m.SeasonYear,
		Synopsis:        stripHTMLTags(m.Description),
		Images: models.ImageSet{
			Poster:    firstNonEmpty(m.CoverImage.ExtraLarge, m.CoverImage.Large),
			Banner:    m.BannerImage,
			Thumbnail: m.CoverImage.Large,
		},
		Aired: models.DateRange{
			From: m.StartDate.time(),
			To:   m.EndDate.time(),
		},
		Genres: m.Genres,
		ExternalIDs: []models.ExternalID{
			{Source: models.SourceAniList, ID: strconv.Itoa(m.ID)},
		},
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSyncedAt: now,
	}

	if m.AverageScore > 0 {
		anime.Ratings = []models.Rating{{
			Source:     models.SourceAniList,
			Score:      float64(m.AverageScore) / 10,
			Popularity: m.Popularity,
		}}
	}

	for _, tag := range m.Tags {
		if tag.Name != "" {
			anime.Themes = append(anime.Themes, tag.Name)
		}
	}
	for _, edge := range m.Studios.Edges {
		if edge.Node.Name == "" {
			continue
		}
		if edge.IsMain {
			anime.Studios = append(anime.Studios, edge.Node.Name)
		} else {
			anime.Producers = append(anime.Producers, edge.Node.Name)
		}
	}

	return anime
}

func anilistFormat(format string) models.AnimeType {
	switch format {
	case "TV", "TV_SHORT":
		return models.AnimeTypeTV
	case "MOVIE":
		return models.AnimeTypeMovie
	case "OVA":
		return models.AnimeTypeOVA
	case "ONA":
		return models.AnimeTypeONA
	case "SPECIAL":
		return models.AnimeTypeSpecial
	case "MUSIC":
		return models.AnimeTypeMusic
	default:
		return ""
	}
}

func anilistStatus(status string) models.AnimeStatus {
	switch status {
	case "RELEASING", "HIATUS":
		return models.StatusAiring
	case "FINISHED":
		return models.StatusFinished
	case "NOT_YET_RELEASED":
		return models.StatusNotYetAired
	case "CANCELLED":
		return models.StatusCancelled
	default:
		return ""
	}
}

// stripHTMLTags removes the line-break and formatting tags AniList embeds in
// descriptions. Not a general HTML sanitizer.
func stripHTMLTags(s string) string {
	if !strings.Contains(s, "<") {
		return strings.TrimSpace(s)
	}
	replacer := strings.NewReplacer(
		"<br>", "\n", "<br/>", "\n", "<br />", "\n",
		"<i>", "", "</i>", "", "<b>", "", "</b>", "",
		"<em>", "", "</em>", "", "<strong>", "", "</strong>", "",
	)
	return strings.TrimSpace(replacer.Replace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
