// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kitsuneislife/miau-index/internal/dbinterface"
)

var ErrTorrentNotFound = errors.New("torrent not found")

// VideoQuality is the detected resolution tier of a release.
type VideoQuality string

const (
	QualitySD      VideoQuality = "480p"
	QualityHD      VideoQuality = "720p"
	QualityFullHD  VideoQuality = "1080p"
	Quality2160p   VideoQuality = "2160p"
	QualityUHD4K   VideoQuality = "4K"
	QualityRaw     VideoQuality = "RAW"
	QualityUnknown VideoQuality = "UNKNOWN"
)

// VideoCodec is the detected encoding of a release.
type VideoCodec string

const (
	CodecH264    VideoCodec = "H.264"
	CodecH265    VideoCodec = "H.265"
	CodecHEVC    VideoCodec = "HEVC"
	CodecAV1     VideoCodec = "AV1"
	CodecVP9     VideoCodec = "VP9"
	CodecXviD    VideoCodec = "XviD"
	CodecUnknown VideoCodec = "UNKNOWN"
)

// Language is an audio or subtitle language marker.
type Language string

const (
	LangJapanese     Language = "JAPANESE"
	LangEnglish      Language = "ENGLISH"
	LangMulti        Language = "MULTI"
	LangPortugueseBR Language = "PORTUGUESE_BR"
	LangSpanish      Language = "SPANISH"
	LangFrench       Language = "FRENCH"
	LangGerman       Language = "GERMAN"
	LangItalian      Language = "ITALIAN"
	LangRussian      Language = "RUSSIAN"
	LangChinese      Language = "CHINESE"
	LangKorean       Language = "KOREAN"
)

// ReleaseType classifies what a torrent bundles.
type ReleaseType string

const (
	ReleaseEpisode  ReleaseType = "EPISODE"
	ReleaseBatch    ReleaseType = "BATCH"
	ReleaseSeason   ReleaseType = "SEASON"
	ReleaseComplete ReleaseType = "COMPLETE"
	ReleaseMovie    ReleaseType = "MOVIE"
	ReleaseOVA      ReleaseType = "OVA"
	ReleaseSpecial  ReleaseType = "SPECIAL"
)

// TorrentMetadata is the structured view extracted from a free-text release
// title. Language sets are never empty: undetected audio defaults to Japanese
// and undetected subtitles to English.
type TorrentMetadata struct {
	Quality           VideoQuality `json:"quality"`
	Codec             VideoCodec   `json:"codec"`
	AudioLanguages    []Language   `json:"audioLanguages"`
	SubtitleLanguages []Language   `json:"subtitleLanguages"`
	ReleaseType       ReleaseType  `json:"releaseType"`
	ReleaseGroup      string       `json:"releaseGroup,omitempty"`
	IsDual            bool         `json:"isDual"`
	IsMultiSub        bool         `json:"isMultiSub"`
	IsBatch           bool         `json:"isBatch"`
	HasHardSubs       bool         `json:"hasHardSubs"`
}

// EpisodeRange is an inclusive batch episode span; Start <= End always holds
// for stored torrents (the mapper rejects inverted ranges).
type EpisodeRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Contains reports whether the range covers the given episode number.
func (r EpisodeRange) Contains(number int) bool {
	return number >= r.Start && number <= r.End
}

// Torrent is one indexed release. Exactly one of EpisodeNumber set,
// EpisodeRange set, or neither holds: single-episode, batch, or unclassified.
type Torrent struct {
	ID            string          `json:"id"`
	NyaaID        string          `json:"nyaaId"`
	Title         string          `json:"title"` // raw release title, source of truth
	MagnetLink    string          `json:"magnetLink"`
	InfoHash      string          `json:"infoHash"` // 40 hex chars, lower case, "" if unavailable
	Size          string          `json:"size"`
	SizeBytes     int64           `json:"sizeBytes"`
	Seeders       int             `json:"seeders"`
	Leechers      int             `json:"leechers"`
	Downloads     int             `json:"downloads"`
	PublishedAt   time.Time       `json:"publishedAt"`
	LastChecked   time.Time       `json:"lastChecked"`
	AnimeID       string          `json:"animeId,omitempty"`
	EpisodeIDs    []string        `json:"episodeIds,omitempty"`
	SeasonID      string          `json:"seasonId,omitempty"`
	EpisodeNumber *int            `json:"episodeNumber,omitempty"`
	EpisodeRange  *EpisodeRange   `json:"episodeRange,omitempty"`
	Metadata      TorrentMetadata `json:"metadata"`
	Trusted       bool            `json:"trusted"`
	Remake        bool            `json:"remake"`
}

// NewTorrentID generates a fresh internal torrent id.
func NewTorrentID() string {
	return uuid.NewString()
}

// CoversEpisode reports whether the torrent carries the given episode, either
// as its single episode or inside its batch range.
func (t *Torrent) CoversEpisode(number int) bool {
	if t.EpisodeNumber != nil {
		return *t.EpisodeNumber == number
	}
	if t.EpisodeRange != nil {
		return t.EpisodeRange.Contains(number)
	}
	return false
}

// HasAudioLanguage reports whether the metadata carries the given audio language.
func (t *Torrent) HasAudioLanguage(lang Language) bool {
	return slices.Contains(t.Metadata.AudioLanguages, lang)
}

// HasSubtitleLanguage reports whether the metadata carries the given subtitle language.
func (t *Torrent) HasSubtitleLanguage(lang Language) bool {
	return slices.Contains(t.Metadata.SubtitleLanguages, lang)
}

// TorrentSearchFilter narrows torrent queries. Zero values mean "unfiltered".
type TorrentSearchFilter struct {
	AnimeID          string       `json:"animeId,omitempty"`
	EpisodeID        string       `json:"episodeId,omitempty"`
	SeasonID         string       `json:"seasonId,omitempty"`
	EpisodeNumber    *int         `json:"episodeNumber,omitempty"`
	Quality          VideoQuality `json:"quality,omitempty"`
	AudioLanguage    Language     `json:"audioLanguage,omitempty"`
	SubtitleLanguage Language     `json:"subtitleLanguage,omitempty"`
	ReleaseType      ReleaseType  `json:"releaseType,omitempty"`
	MinSeeders       int          `json:"minSeeders,omitempty"`
	TrustedOnly      bool         `json:"trustedOnly,omitempty"`
}

// Matches evaluates the filter against one torrent. Shared by the in-memory
// repository and by tests; the SQL store expresses the same predicate in its
// WHERE clause.
func (f TorrentSearchFilter) Matches(t *Torrent) bool {
	if f.AnimeID != "" && t.AnimeID != f.AnimeID {
		return false
	}
	if f.EpisodeID != "" && !slices.Contains(t.EpisodeIDs, f.EpisodeID) {
		return false
	}
	if f.SeasonID != "" && t.SeasonID != f.SeasonID {
		return false
	}
	if f.EpisodeNumber != nil && !t.CoversEpisode(*f.EpisodeNumber) {
		return false
	}
	if f.Quality != "" && t.Metadata.Quality != f.Quality {
		return false
	}
	if f.AudioLanguage != "" && !t.HasAudioLanguage(f.AudioLanguage) {
		return false
	}
	if f.SubtitleLanguage != "" && !t.HasSubtitleLanguage(f.SubtitleLanguage) {
		return false
	}
	if f.ReleaseType != "" && t.Metadata.ReleaseType != f.ReleaseType {
		return false
	}
	if f.MinSeeders > 0 && t.Seeders < f.MinSeeders {
		return false
	}
	if f.TrustedOnly && !t.Trusted {
		return false
	}
	return true
}

// TorrentStore manages indexed torrents in the database.
type TorrentStore struct {
	db dbinterface.Querier
}

// NewTorrentStore creates a new TorrentStore.
func NewTorrentStore(db dbinterface.Querier) *TorrentStore {
	return &TorrentStore{db: db}
}

const torrentColumns = `id, nyaa_id, title, magnet_link, info_hash, size, size_bytes,
	seeders, leechers, downloads, published_at, last_checked, anime_id, episode_ids,
	season_id, episode_number, episode_range, metadata, trusted, remake`

func (s *TorrentStore) scanTorrent(row interface{ Scan(...any) error }) (*Torrent, error) {
	var (
		t                              Torrent
		episodeIDs, episodeRange, meta []byte
		episodeNumber                  sql.NullInt64
		animeID, seasonID              sql.NullString
	)
	err := row.Scan(&t.ID, &t.NyaaID, &t.Title, &t.MagnetLink, &t.InfoHash, &t.Size,
		&t.SizeBytes, &t.Seeders, &t.Leechers, &t.Downloads, &t.PublishedAt,
		&t.LastChecked, &animeID, &episodeIDs, &seasonID, &episodeNumber,
		&episodeRange, &meta, &t.Trusted, &t.Remake)
	if err != nil {
		return nil, err
	}
	t.AnimeID = animeID.String
	t.SeasonID = seasonID.String
	if episodeNumber.Valid {
		n := int(episodeNumber.Int64)
		t.EpisodeNumber = &n
	}
	if len(episodeIDs) > 0 {
		if err := json.Unmarshal(episodeIDs, &t.EpisodeIDs); err != nil {
			return nil, fmt.Errorf("decode torrent episode ids: %w", err)
		}
	}
	if len(episodeRange) > 0 {
		var r EpisodeRange
		if err := json.Unmarshal(episodeRange, &r); err != nil {
			return nil, fmt.Errorf("decode torrent episode range: %w", err)
		}
		if r.Start != 0 || r.End != 0 {
			t.EpisodeRange = &r
		}
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode torrent metadata: %w", err)
		}
	}
	return &t, nil
}

// FindByID returns the torrent with the given id.
func (s *TorrentStore) FindByID(ctx context.Context, id string) (*Torrent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+torrentColumns+` FROM torrents WHERE id = ?`, id)
	t, err := s.scanTorrent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTorrentNotFound
	}
	return t, err
}

// FindByAnimeID lists an anime's torrents sorted descending by seeders.
func (s *TorrentStore) FindByAnimeID(ctx context.Context, animeID string) ([]*Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+torrentColumns+` FROM torrents WHERE anime_id = ? ORDER BY seeders DESC`, animeID)
	if err != nil {
		return nil, fmt.Errorf("list torrents by anime: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// FindByEpisodeID lists torrents linked to an episode, sorted descending by seeders.
func (s *TorrentStore) FindByEpisodeID(ctx context.Context, episodeID string) ([]*Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+torrentColumns+` FROM torrents
		WHERE EXISTS (SELECT 1 FROM json_each(torrents.episode_ids) WHERE json_each.value = ?)
		ORDER BY seeders DESC`, episodeID)
	if err != nil {
		return nil, fmt.Errorf("list torrents by episode: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// FindByFilters evaluates the full TorrentSearchFilter. Results are pre-sorted
// descending by seeders, which best-torrent selection relies on.
func (s *TorrentStore) FindByFilters(ctx context.Context, filter TorrentSearchFilter) ([]*Torrent, error) {
	query := `SELECT ` + torrentColumns + ` FROM torrents WHERE 1=1`
	var args []any

	if filter.AnimeID != "" {
		query += ` AND anime_id = ?`
		args = append(args, filter.AnimeID)
	}
	if filter.EpisodeID != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(torrents.episode_ids) WHERE json_each.value = ?)`
		args = append(args, filter.EpisodeID)
	}
	if filter.SeasonID != "" {
		query += ` AND season_id = ?`
		args = append(args, filter.SeasonID)
	}
	if filter.EpisodeNumber != nil {
		query += ` AND (episode_number = ?
			OR (json_extract(episode_range, '$.start') <= ? AND json_extract(episode_range, '$.end') >= ?))`
		args = append(args, *filter.EpisodeNumber, *filter.EpisodeNumber, *filter.EpisodeNumber)
	}
	if filter.Quality != "" {
		query += ` AND json_extract(metadata, '$.quality') = ?`
		args = append(args, string(filter.Quality))
	}
	if filter.AudioLanguage != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(torrents.metadata, '$.audioLanguages') WHERE json_each.value = ?)`
		args = append(args, string(filter.AudioLanguage))
	}
	if filter.SubtitleLanguage != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(torrents.metadata, '$.subtitleLanguages') WHERE json_each.value = ?)`
		args = append(args, string(filter.SubtitleLanguage))
	}
	if filter.ReleaseType != "" {
		query += ` AND json_extract(metadata, '$.releaseType') = ?`
		args = append(args, string(filter.ReleaseType))
	}
	if filter.MinSeeders > 0 {
		query += ` AND seeders >= ?`
		args = append(args, filter.MinSeeders)
	}
	if filter.TrustedOnly {
		query += ` AND trusted = 1`
	}
	query += ` ORDER BY seeders DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter torrents: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *TorrentStore) collect(rows *sql.Rows) ([]*Torrent, error) {
	var out []*Torrent
	for rows.Next() {
		t, err := s.scanTorrent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Save upserts the torrent by id.
func (s *TorrentStore) Save(ctx context.Context, t *Torrent) error {
	if t.ID == "" {
		t.ID = NewTorrentID()
	}
	if t.LastChecked.IsZero() {
		t.LastChecked = time.Now()
	}

	episodeIDs, err := json.Marshal(t.EpisodeIDs)
	if err != nil {
		return fmt.Errorf("encode torrent episode ids: %w", err)
	}
	var episodeRange []byte
	if t.EpisodeRange != nil {
		if episodeRange, err = json.Marshal(t.EpisodeRange); err != nil {
			return fmt.Errorf("encode torrent episode range: %w", err)
		}
	}
	meta, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode torrent metadata: %w", err)
	}

	var episodeNumber any
	if t.EpisodeNumber != nil {
		episodeNumber = *t.EpisodeNumber
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO torrents (`+torrentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			nyaa_id = excluded.nyaa_id, title = excluded.title,
			magnet_link = excluded.magnet_link, info_hash = excluded.info_hash,
			size = excluded.size, size_bytes = excluded.size_bytes,
			seeders = excluded.seeders, leechers = excluded.leechers,
			downloads = excluded.downloads, published_at = excluded.published_at,
			last_checked = excluded.last_checked, anime_id = excluded.anime_id,
			episode_ids = excluded.episode_ids, season_id = excluded.season_id,
			episode_number = excluded.episode_number, episode_range = excluded.episode_range,
			metadata = excluded.metadata, trusted = excluded.trusted, remake = excluded.remake`,
		t.ID, t.NyaaID, t.Title, t.MagnetLink, t.InfoHash, t.Size, t.SizeBytes,
		t.Seeders, t.Leechers, t.Downloads, t.PublishedAt, t.LastChecked,
		t.AnimeID, episodeIDs, t.SeasonID, episodeNumber, episodeRange, meta,
		t.Trusted, t.Remake)
	if err != nil {
		return fmt.Errorf("save torrent: %w", err)
	}
	return nil
}

// SaveMany upserts a batch of torrents.
func (s *TorrentStore) SaveMany(ctx context.Context, torrents []*Torrent) error {
	for _, t := range torrents {
		if err := s.Save(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a torrent by id.
func (s *TorrentStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM torrents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete torrent: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTorrentNotFound
	}
	return nil
}

// DeleteByAnimeID removes all torrents linked to an anime.
func (s *TorrentStore) DeleteByAnimeID(ctx context.Context, animeID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM torrents WHERE anime_id = ?`, animeID); err != nil {
		return fmt.Errorf("delete torrents by anime: %w", err)
	}
	return nil
}

// FindAll returns every stored torrent sorted descending by seeders.
func (s *TorrentStore) FindAll(ctx context.Context) ([]*Torrent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+torrentColumns+` FROM torrents ORDER BY seeders DESC`)
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// Count returns the total number of stored torrents.
func (s *TorrentStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM torrents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count torrents: %w", err)
	}
	return n, nil
}
