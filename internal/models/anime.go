// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kitsuneislife/miau-index/internal/dbinterface"
)

var ErrAnimeNotFound = errors.New("anime not found")

// SourceTag identifies an external catalog contributing anime records.
type SourceTag string

const (
	SourceMyAnimeList SourceTag = "myanimelist"
	SourceAniList     SourceTag = "anilist"
	SourceKitsu       SourceTag = "kitsu"
	SourceJikan       SourceTag = "jikan"
	SourceNyaa        SourceTag = "nyaa"
)

// AnimeType classifies the broadcast format.
type AnimeType string

const (
	AnimeTypeTV      AnimeType = "TV"
	AnimeTypeMovie   AnimeType = "MOVIE"
	AnimeTypeOVA     AnimeType = "OVA"
	AnimeTypeONA     AnimeType = "ONA"
	AnimeTypeSpecial AnimeType = "SPECIAL"
	AnimeTypeMusic   AnimeType = "MUSIC"
)

// AnimeStatus tracks the airing lifecycle.
type AnimeStatus string

const (
	StatusAiring      AnimeStatus = "AIRING"
	StatusFinished    AnimeStatus = "FINISHED"
	StatusNotYetAired AnimeStatus = "NOT_YET_AIRED"
	StatusCancelled   AnimeStatus = "CANCELLED"
)

// AiringSeason is the broadcast season of the premiere year.
type AiringSeason string

const (
	SeasonWinter AiringSeason = "WINTER"
	SeasonSpring AiringSeason = "SPRING"
	SeasonSummer AiringSeason = "SUMMER"
	SeasonFall   AiringSeason = "FALL"
)

// Title bundles the independently selected title variants.
type Title struct {
	Romaji   string   `json:"romaji,omitempty"`
	English  string   `json:"english,omitempty"`
	Native   string   `json:"native,omitempty"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Main returns the best display title: romaji, else english, else native.
func (t Title) Main() string {
	if t.Romaji != "" {
		return t.Romaji
	}
	if t.English != "" {
		return t.English
	}
	return t.Native
}

// ImageSet holds artwork URLs.
type ImageSet struct {
	Poster    string `json:"poster,omitempty"`
	Banner    string `json:"banner,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// DateRange is a half-open aired interval; either bound may be unknown.
type DateRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Rating is one source's score entry. Ratings are never merged across sources;
// the unified record carries one entry per score-bearing source.
type Rating struct {
	Source     SourceTag `json:"source"`
	Score      float64   `json:"score"` // normalized to the 0-10 scale upstream
	Votes      int       `json:"votes,omitempty"`
	Rank       int       `json:"rank,omitempty"`
	Popularity int       `json:"popularity,omitempty"`
}

// ExternalID ties the canonical record back to one source's identifier.
type ExternalID struct {
	Source SourceTag `json:"source"`
	ID     string    `json:"id"`
}

// Anime is the canonical unified record. After unification only UpdatedAt and
// LastSyncedAt change.
type Anime struct {
	ID              string       `json:"id"`
	Title           Title        `json:"title"`
	Type            AnimeType    `json:"type,omitempty"`
	Status          AnimeStatus  `json:"status,omitempty"`
	EpisodeCount    int          `json:"episodeCount,omitempty"`
	DurationMinutes int          `json:"durationMinutes,omitempty"`
	Season          AiringSeason `json:"season,omitempty"`
	Year            int          `json:"year,omitempty"`
	Synopsis        string       `json:"synopsis,omitempty"`
	Background      string       `json:"background,omitempty"`
	Images          ImageSet     `json:"images"`
	Aired           DateRange    `json:"aired"`
	Ratings         []Rating     `json:"ratings,omitempty"`
	Genres          []string     `json:"genres,omitempty"`
	Themes          []string     `json:"themes,omitempty"`
	Studios         []string     `json:"studios,omitempty"`
	Producers       []string     `json:"producers,omitempty"`
	Licensors       []string     `json:"licensors,omitempty"`
	ExternalIDs     []ExternalID `json:"externalIds,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
	LastSyncedAt    time.Time    `json:"lastSyncedAt"`
}

// NewAnimeID generates a fresh internal anime id.
func NewAnimeID() string {
	return uuid.NewString()
}

// AnimeStore manages canonical anime records in the database.
type AnimeStore struct {
	db dbinterface.Querier
}

// NewAnimeStore creates a new AnimeStore.
func NewAnimeStore(db dbinterface.Querier) *AnimeStore {
	return &AnimeStore{db: db}
}

const animeColumns = `id, title, type, status, episode_count, duration_minutes, season, year,
	synopsis, background, images, aired, ratings, genres, themes, studios, producers,
	licensors, external_ids, created_at, updated_at, last_synced_at`

func (s *AnimeStore) scanAnime(row interface{ Scan(...any) error }) (*Anime, error) {
	var (
		a                                             Anime
		title, images, aired, ratings                 []byte
		genres, themes, studios, producers, licensors []byte
		externalIDs                                   []byte
		animeType, status, season                     sql.NullString
	)

	err := row.Scan(&a.ID, &title, &animeType, &status, &a.EpisodeCount, &a.DurationMinutes,
		&season, &a.Year, &a.Synopsis, &a.Background, &images, &aired, &ratings,
		&genres, &themes, &studios, &producers, &licensors, &externalIDs,
		&a.CreatedAt, &a.UpdatedAt, &a.LastSyncedAt)
	if err != nil {
		return nil, err
	}

	a.Type = AnimeType(animeType.String)
	a.Status = AnimeStatus(status.String)
	a.Season = AiringSeason(season.String)

	for _, col := range []struct {
		raw  []byte
		dest any
	}{
		{title, &a.Title},
		{images, &a.Images},
		{aired, &a.Aired},
		{ratings, &a.Ratings},
		{genres, &a.Genres},
		{themes, &a.Themes},
		{studios, &a.Studios},
		{producers, &a.Producers},
		{licensors, &a.Licensors},
		{externalIDs, &a.ExternalIDs},
	} {
		if len(col.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dest); err != nil {
			return nil, fmt.Errorf("decode anime column: %w", err)
		}
	}

	return &a, nil
}

// FindByID returns the anime with the given internal id.
func (s *AnimeStore) FindByID(ctx context.Context, id string) (*Anime, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+animeColumns+` FROM anime WHERE id = ?`, id)
	anime, err := s.scanAnime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnimeNotFound
	}
	return anime, err
}

// FindByExternalID resolves an anime through one of its contributing source ids.
func (s *AnimeStore) FindByExternalID(ctx context.Context, source SourceTag, externalID string) (*Anime, error) {
	// external_ids is a JSON array of {source, id} pairs
	row := s.db.QueryRowContext(ctx, `
		SELECT `+animeColumns+` FROM anime
		WHERE EXISTS (
			SELECT 1 FROM json_each(anime.external_ids)
			WHERE json_extract(json_each.value, '$.source') = ?
			  AND json_extract(json_each.value, '$.id') = ?
		)
		LIMIT 1`, string(source), externalID)
	anime, err := s.scanAnime(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnimeNotFound
	}
	return anime, err
}

// SearchByTitle matches any title variant or synonym, case-insensitively.
func (s *AnimeStore) SearchByTitle(ctx context.Context, text string, limit int) ([]*Anime, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + text + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+animeColumns+` FROM anime
		WHERE json_extract(title, '$.romaji') LIKE ? COLLATE NOCASE
		   OR json_extract(title, '$.english') LIKE ? COLLATE NOCASE
		   OR json_extract(title, '$.native') LIKE ? COLLATE NOCASE
		   OR EXISTS (SELECT 1 FROM json_each(anime.title, '$.synonyms')
		              WHERE json_each.value LIKE ? COLLATE NOCASE)
		ORDER BY updated_at DESC
		LIMIT ?`, pattern, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search anime by title: %w", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

func (s *AnimeStore) collect(rows *sql.Rows) ([]*Anime, error) {
	var out []*Anime
	for rows.Next() {
		anime, err := s.scanAnime(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, anime)
	}
	return out, rows.Err()
}

// Save upserts the anime by id.
func (s *AnimeStore) Save(ctx context.Context, anime *Anime) error {
	if anime.ID == "" {
		anime.ID = NewAnimeID()
	}
	now := time.Now()
	if anime.CreatedAt.IsZero() {
		anime.CreatedAt = now
	}
	anime.UpdatedAt = now

	cols := make(map[string][]byte, 10)
	for name, v := range map[string]any{
		"title": anime.Title, "images": anime.Images, "aired": anime.Aired,
		"ratings": anime.Ratings, "genres": anime.Genres, "themes": anime.Themes,
		"studios": anime.Studios, "producers": anime.Producers,
		"licensors": anime.Licensors, "external_ids": anime.ExternalIDs,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode anime %s: %w", name, err)
		}
		cols[name] = raw
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO anime (`+animeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title, type = excluded.type, status = excluded.status,
			episode_count = excluded.episode_count, duration_minutes = excluded.duration_minutes,
			season = excluded.season, year = excluded.year, synopsis = excluded.synopsis,
			background = excluded.background, images = excluded.images, aired = excluded.aired,
			ratings = excluded.ratings, genres = excluded.genres, themes = excluded.themes,
			studios = excluded.studios, producers = excluded.producers,
			licensors = excluded.licensors, external_ids = excluded.external_ids,
			updated_at = excluded.updated_at, last_synced_at = excluded.last_synced_at`,
		anime.ID, cols["title"], string(anime.Type), string(anime.Status),
		anime.EpisodeCount, anime.DurationMinutes, string(anime.Season), anime.Year,
		anime.Synopsis, anime.Background, cols["images"], cols["aired"], cols["ratings"],
		cols["genres"], cols["themes"], cols["studios"], cols["producers"],
		cols["licensors"], cols["external_ids"], anime.CreatedAt, anime.UpdatedAt,
		anime.LastSyncedAt)
	if err != nil {
		return fmt.Errorf("save anime: %w", err)
	}
	return nil
}

// SaveMany upserts a batch of anime.
func (s *AnimeStore) SaveMany(ctx context.Context, animes []*Anime) error {
	for _, anime := range animes {
		if err := s.Save(ctx, anime); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an anime by id.
func (s *AnimeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM anime WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete anime: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAnimeNotFound
	}
	return nil
}

// FindAll returns a page of anime, newest first. Page numbers are 1-based.
func (s *AnimeStore) FindAll(ctx context.Context, page, limit int) ([]*Anime, error) {
	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+animeColumns+` FROM anime
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list anime: %w", err)
	}
	defer rows.Close()

	return s.collect(rows)
}

// Count returns the total number of stored anime.
func (s *AnimeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anime`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count anime: %w", err)
	}
	return n, nil
}
