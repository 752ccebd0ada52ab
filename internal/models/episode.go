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

var ErrEpisodeNotFound = errors.New("episode not found")

// Episode belongs to exactly one anime. Episodes are created either by a
// provider episode fetch or lazily by the torrent mapper when a torrent
// references a number not yet known; they are never deleted by core logic.
type Episode struct {
	ID              string       `json:"id"`
	AnimeID         string       `json:"animeId"`
	Number          int          `json:"number"` // 1-based, unique per anime
	Title           string       `json:"title,omitempty"`
	Synopsis        string       `json:"synopsis,omitempty"`
	DurationMinutes int          `json:"durationMinutes,omitempty"`
	Images          ImageSet     `json:"images"`
	AiredDate       *time.Time   `json:"airedDate,omitempty"`
	Filler          bool         `json:"filler,omitempty"`
	Recap           bool         `json:"recap,omitempty"`
	ExternalIDs     []ExternalID `json:"externalIds,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// NewEpisodeID generates a fresh internal episode id.
func NewEpisodeID() string {
	return uuid.NewString()
}

// EpisodeStore manages episodes in the database.
type EpisodeStore struct {
	db dbinterface.Querier
}

// NewEpisodeStore creates a new EpisodeStore.
func NewEpisodeStore(db dbinterface.Querier) *EpisodeStore {
	return &EpisodeStore{db: db}
}

const episodeColumns = `id, anime_id, number, title, synopsis, duration_minutes,
	images, aired_date, filler, recap, external_ids, created_at, updated_at`

func (s *EpisodeStore) scanEpisode(row interface{ Scan(...any) error }) (*Episode, error) {
	var (
		e                    Episode
		images, externalIDs  []byte
		airedDate            sql.NullTime
	)
	err := row.Scan(&e.ID, &e.AnimeID, &e.Number, &e.Title, &e.Synopsis,
		&e.DurationMinutes, &images, &airedDate, &e.Filler, &e.Recap, &externalIDs,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if airedDate.Valid {
		t := airedDate.Time
		e.AiredDate = &t
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &e.Images); err != nil {
			return nil, fmt.Errorf("decode episode images: %w", err)
		}
	}
	if len(externalIDs) > 0 {
		if err := json.Unmarshal(externalIDs, &e.ExternalIDs); err != nil {
			return nil, fmt.Errorf("decode episode external ids: %w", err)
		}
	}
	return &e, nil
}

// FindByID returns the episode with the given id.
func (s *EpisodeStore) FindByID(ctx context.Context, id string) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := s.scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	return ep, err
}

// FindByAnimeID lists an anime's episodes ordered by number.
func (s *EpisodeStore) FindByAnimeID(ctx context.Context, animeID string) ([]*Episode, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+episodeColumns+` FROM episodes WHERE anime_id = ? ORDER BY number`, animeID)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []*Episode
	for rows.Next() {
		ep, err := s.scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// FindByNumber resolves an episode by its 1-based number within an anime.
func (s *EpisodeStore) FindByNumber(ctx context.Context, animeID string, number int) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+episodeColumns+` FROM episodes WHERE anime_id = ? AND number = ?`, animeID, number)
	ep, err := s.scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEpisodeNotFound
	}
	return ep, err
}

// Save upserts the episode by id.
func (s *EpisodeStore) Save(ctx context.Context, ep *Episode) error {
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	now := time.Now()
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = now
	}
	ep.UpdatedAt = now

	images, err := json.Marshal(ep.Images)
	if err != nil {
		return fmt.Errorf("encode episode images: %w", err)
	}
	externalIDs, err := json.Marshal(ep.ExternalIDs)
	if err != nil {
		return fmt.Errorf("encode episode external ids: %w", err)
	}

	var airedDate any
	if ep.AiredDate != nil {
		airedDate = *ep.AiredDate
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO episodes (`+episodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			anime_id = excluded.anime_id, number = excluded.number, title = excluded.title,
			synopsis = excluded.synopsis, duration_minutes = excluded.duration_minutes,
			images = excluded.images, aired_date = excluded.aired_date,
			filler = excluded.filler, recap = excluded.recap,
			external_ids = excluded.external_ids, updated_at = excluded.updated_at`,
		ep.ID, ep.AnimeID, ep.Number, ep.Title, ep.Synopsis, ep.DurationMinutes,
		images, airedDate, ep.Filler, ep.Recap, externalIDs, ep.CreatedAt, ep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save episode: %w", err)
	}
	return nil
}

// SaveMany upserts a batch of episodes.
func (s *EpisodeStore) SaveMany(ctx context.Context, eps []*Episode) error {
	for _, ep := range eps {
		if err := s.Save(ctx, ep); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes an episode by id.
func (s *EpisodeStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete episode: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrEpisodeNotFound
	}
	return nil
}

// Count returns the total number of stored episodes.
func (s *EpisodeStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return n, nil
}
