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

var ErrSeasonNotFound = errors.New("season not found")

// AnimeSeason is one contiguous partition of an anime's episode list.
// Season numbers are 1-based and dense: for an anime they always form
// 1..N with no gaps.
type AnimeSeason struct {
	ID           string    `json:"id"`
	AnimeID      string    `json:"animeId"`
	SeasonNumber int       `json:"seasonNumber"`
	EpisodeCount int       `json:"episodeCount"`
	Episodes     []Episode `json:"episodes,omitempty"`
	Aired        DateRange `json:"aired"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewSeasonID generates a fresh internal season id.
func NewSeasonID() string {
	return uuid.NewString()
}

// SeasonStore manages anime seasons in the database.
type SeasonStore struct {
	db dbinterface.Querier
}

// NewSeasonStore creates a new SeasonStore.
func NewSeasonStore(db dbinterface.Querier) *SeasonStore {
	return &SeasonStore{db: db}
}

const seasonColumns = `id, anime_id, season_number, episode_count, episodes, aired, created_at, updated_at`

func (s *SeasonStore) scanSeason(row interface{ Scan(...any) error }) (*AnimeSeason, error) {
	var (
		season          AnimeSeason
		episodes, aired []byte
	)
	err := row.Scan(&season.ID, &season.AnimeID, &season.SeasonNumber, &season.EpisodeCount,
		&episodes, &aired, &season.CreatedAt, &season.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(episodes) > 0 {
		if err := json.Unmarshal(episodes, &season.Episodes); err != nil {
			return nil, fmt.Errorf("decode season episodes: %w", err)
		}
	}
	if len(aired) > 0 {
		if err := json.Unmarshal(aired, &season.Aired); err != nil {
			return nil, fmt.Errorf("decode season aired range: %w", err)
		}
	}
	return &season, nil
}

// FindByID returns the season with the given id.
func (s *SeasonStore) FindByID(ctx context.Context, id string) (*AnimeSeason, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+seasonColumns+` FROM seasons WHERE id = ?`, id)
	season, err := s.scanSeason(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeasonNotFound
	}
	return season, err
}

// FindByAnimeID lists an anime's seasons ordered by season number.
func (s *SeasonStore) FindByAnimeID(ctx context.Context, animeID string) ([]*AnimeSeason, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+seasonColumns+` FROM seasons WHERE anime_id = ? ORDER BY season_number`, animeID)
	if err != nil {
		return nil, fmt.Errorf("list seasons: %w", err)
	}
	defer rows.Close()

	var out []*AnimeSeason
	for rows.Next() {
		season, err := s.scanSeason(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, season)
	}
	return out, rows.Err()
}

// FindByNumber resolves a season by its (animeID, seasonNumber) key.
func (s *SeasonStore) FindByNumber(ctx context.Context, animeID string, seasonNumber int) (*AnimeSeason, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+seasonColumns+` FROM seasons WHERE anime_id = ? AND season_number = ?`,
		animeID, seasonNumber)
	season, err := s.scanSeason(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeasonNotFound
	}
	return season, err
}

// Save upserts the season by id.
func (s *SeasonStore) Save(ctx context.Context, season *AnimeSeason) error {
	if season.ID == "" {
		season.ID = uuid.NewString()
	}
	now := time.Now()
	if season.CreatedAt.IsZero() {
		season.CreatedAt = now
	}
	season.UpdatedAt = now

	episodes, err := json.Marshal(season.Episodes)
	if err != nil {
		return fmt.Errorf("encode season episodes: %w", err)
	}
	aired, err := json.Marshal(season.Aired)
	if err != nil {
		return fmt.Errorf("encode season aired range: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO seasons (`+seasonColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			anime_id = excluded.anime_id, season_number = excluded.season_number,
			episode_count = excluded.episode_count, episodes = excluded.episodes,
			aired = excluded.aired, updated_at = excluded.updated_at`,
		season.ID, season.AnimeID, season.SeasonNumber, season.EpisodeCount,
		episodes, aired, season.CreatedAt, season.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save season: %w", err)
	}
	return nil
}

// SaveMany upserts a batch of seasons.
func (s *SeasonStore) SaveMany(ctx context.Context, seasons []*AnimeSeason) error {
	for _, season := range seasons {
		if err := s.Save(ctx, season); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a season by id.
func (s *SeasonStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM seasons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete season: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSeasonNotFound
	}
	return nil
}

// Count returns the total number of stored seasons.
func (s *SeasonStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seasons`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count seasons: %w", err)
	}
	return n, nil
}
