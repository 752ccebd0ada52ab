// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package indexing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/memstore"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/pkg/nyaa"
)

type stubSearcher struct {
	responses map[string][]nyaa.Torrent
	queries   []string
	err       error
}

func (s *stubSearcher) Search(ctx context.Context, req nyaa.SearchRequest) (*nyaa.SearchResponse, error) {
	s.queries = append(s.queries, req.Query)
	if s.err != nil {
		return nil, s.err
	}
	return &nyaa.SearchResponse{Torrents: s.responses[req.Query]}, nil
}

type fixture struct {
	svc      *Service
	searcher *stubSearcher
	animes   *memstore.AnimeRepo
	episodes *memstore.EpisodeRepo
	seasons  *memstore.SeasonRepo
	torrents *memstore.TorrentRepo
}

func newFixture(t *testing.T, searcher *stubSearcher) *fixture {
	t.Helper()

	f := &fixture{
		searcher: searcher,
		animes:   memstore.NewAnimeRepo(),
		episodes: memstore.NewEpisodeRepo(),
		seasons:  memstore.NewSeasonRepo(),
		torrents: memstore.NewTorrentRepo(),
	}
	var s Searcher
	if searcher != nil {
		s = searcher
	}
	f.svc = NewService(s, f.animes, f.episodes, f.seasons, f.torrents)
	return f
}

func seedAnime(t *testing.T, f *fixture, titles models.Title) *models.Anime {
	t.Helper()

	anime := &models.Anime{ID: models.NewAnimeID(), Title: titles}
	require.NoError(t, f.animes.Save(context.Background(), anime))
	return anime
}

func TestIndexingDisabledFailsFast(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.IndexAnime(context.Background(), "a1")
	assert.ErrorIs(t, err, domain.ErrIndexingDisabled)

	_, err = f.svc.SearchEpisode(context.Background(), "a1", 1)
	assert.ErrorIs(t, err, domain.ErrIndexingDisabled)

	assert.False(t, f.svc.Enabled())
}

func TestIndexAnimeQueriesTitleVariantsInOrder(t *testing.T) {
	searcher := &stubSearcher{responses: map[string][]nyaa.Torrent{}}
	f := newFixture(t, searcher)
	anime := seedAnime(t, f, models.Title{
		Romaji:  "Shingeki no Kyojin",
		English: "Attack on Titan",
		Native:  "進撃の巨人",
	})

	_, err := f.svc.IndexAnime(context.Background(), anime.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{"Shingeki no Kyojin", "Attack on Titan", "進撃の巨人"}, searcher.queries)
}

func TestIndexAnimeDeduplicatesAcrossVariants(t *testing.T) {
	magnet := "magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a"
	searcher := &stubSearcher{responses: map[string][]nyaa.Torrent{
		"Yofukashi no Uta": {
			{ID: "1", Title: "[Sub] Yofukashi no Uta - 01 [1080p]", MagnetLink: magnet, Seeders: 10},
		},
		"Call of the Night": {
			{ID: "2", Title: "[Sub] Yofukashi no Uta - 01 [1080p] v2", MagnetLink: magnet, Seeders: 50},
		},
	}}
	f := newFixture(t, searcher)
	anime := seedAnime(t, f, models.Title{Romaji: "Yofukashi no Uta", English: "Call of the Night"})

	stored, err := f.svc.IndexAnime(context.Background(), anime.ID)
	require.NoError(t, err)

	// same info hash collapses; higher-seeded candidate survives
	require.Len(t, stored, 1)
	assert.Equal(t, 50, stored[0].Seeders)

	persisted, err := f.torrents.FindByAnimeID(context.Background(), anime.ID)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestMapTorrentExtractsEverything(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "One Piece"})

	raw := nyaa.Torrent{
		ID:         "1770000",
		Title:      "[SubsPlease] One Piece - 1000 (1080p) [Dual Audio]",
		MagnetLink: "magnet:?xt=urn:btih:C12FE1C06BBA254A9DC9F519B335AA7C1367A88A&dn=op",
		Size:       "1.4 GiB",
		Seeders:    1543,
		Date:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		IsTrusted:  true,
	}

	torrent := f.svc.MapTorrent(context.Background(), raw, anime, nil)

	assert.Equal(t, anime.ID, torrent.AnimeID)
	assert.Equal(t, "c12fe1c06bba254a9dc9f519b335aa7c1367a88a", torrent.InfoHash)
	assert.Equal(t, int64(1503238553), torrent.SizeBytes)
	assert.Equal(t, models.QualityFullHD, torrent.Metadata.Quality)
	assert.True(t, torrent.Trusted)
	require.NotNil(t, torrent.EpisodeNumber)
	assert.Equal(t, 1000, *torrent.EpisodeNumber)

	// episode link auto-created
	require.Len(t, torrent.EpisodeIDs, 1)
	ep, err := f.episodes.FindByNumber(context.Background(), anime.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, ep.ID, torrent.EpisodeIDs[0])
}

func TestMapTorrentExplicitEpisodeOverride(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "Frieren"})

	five := 5
	torrent := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title: "Frieren - 12 [720p]",
	}, anime, &five)

	require.NotNil(t, torrent.EpisodeNumber)
	assert.Equal(t, 5, *torrent.EpisodeNumber)
}

func TestMapTorrentUnparseableBitsDegrade(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "X"})

	torrent := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title:      "weird release name",
		MagnetLink: "not a magnet",
		Size:       "many bytes",
	}, anime, nil)

	assert.Empty(t, torrent.InfoHash)
	assert.Zero(t, torrent.SizeBytes)
	assert.Nil(t, torrent.EpisodeNumber)
	assert.Nil(t, torrent.EpisodeRange)
	assert.Equal(t, models.QualityUnknown, torrent.Metadata.Quality)
}

func TestMapTorrentBatchRange(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "Vinland Saga"})

	torrent := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title: "[Judas] Vinland Saga (01-24) (1080p)(Batch)",
	}, anime, nil)

	require.NotNil(t, torrent.EpisodeRange)
	assert.Equal(t, models.EpisodeRange{Start: 1, End: 24}, *torrent.EpisodeRange)
	assert.Nil(t, torrent.EpisodeNumber)
	assert.True(t, torrent.Metadata.IsBatch)
}

func TestMapTorrentBatchRangeBeatsSingleEpisode(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "Spy x Family"})

	// both shapes contain substrings the single-episode patterns would
	// match; the whole span must win
	for _, tt := range []struct {
		title string
		want  models.EpisodeRange
	}{
		{"[Erai-raws] Spy x Family - 01-12 [1080p]", models.EpisodeRange{Start: 1, End: 12}},
		{"Spy x Family E01-E12 (720p) (Batch)", models.EpisodeRange{Start: 1, End: 12}},
	} {
		torrent := f.svc.MapTorrent(context.Background(), nyaa.Torrent{Title: tt.title}, anime, nil)
		require.NotNil(t, torrent.EpisodeRange, tt.title)
		assert.Equal(t, tt.want, *torrent.EpisodeRange, tt.title)
		assert.Nil(t, torrent.EpisodeNumber, tt.title)
	}
}

func TestMapTorrentInvertedRangeDiscarded(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "X"})

	torrent := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title: "X (12-01) (batch)",
	}, anime, nil)

	// inverted span is logged and dropped; torrent stays unclassified
	assert.Nil(t, torrent.EpisodeRange)
	assert.Nil(t, torrent.EpisodeNumber)
}

func TestMapTorrentSeasonLinkage(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	anime := seedAnime(t, f, models.Title{Romaji: "Mob Psycho 100"})

	first := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title: "Mob Psycho 100 S02E05 [1080p]",
	}, anime, nil)
	require.NotEmpty(t, first.SeasonID)

	season, err := f.seasons.FindByNumber(context.Background(), anime.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, season.ID, first.SeasonID)

	// second mapping reuses the created season
	second := f.svc.MapTorrent(context.Background(), nyaa.Torrent{
		Title: "Mob Psycho 100 S02E06 [1080p]",
	}, anime, nil)
	assert.Equal(t, first.SeasonID, second.SeasonID)
}

func TestDeduplicateKeepsMaxSeeders(t *testing.T) {
	hash := "c12fe1c06bba254a9dc9f519b335aa7c1367a88a"
	survivors := Deduplicate([]*models.Torrent{
		{ID: "t1", InfoHash: hash, Seeders: 10},
		{ID: "t2", InfoHash: hash, Seeders: 50},
	})

	require.Len(t, survivors, 1)
	assert.Equal(t, 50, survivors[0].Seeders)
}

func TestDeduplicateNormalizedTitleKey(t *testing.T) {
	survivors := Deduplicate([]*models.Torrent{
		{ID: "t1", Title: "[Group] Some Anime - 01 (1080p)", Seeders: 5},
		{ID: "t2", Title: "group SOME anime 01 1080p", Seeders: 9},
		{ID: "t3", Title: "A different release", Seeders: 7},
	})

	require.Len(t, survivors, 2)
	// sorted descending by seeders
	assert.Equal(t, "t2", survivors[0].ID)
	assert.Equal(t, "t3", survivors[1].ID)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "group some anime 01 1080p", normalizeTitle("[Group] Some Anime - 01 (1080p)"))
	assert.Equal(t, "a b", normalizeTitle("  a---b  "))
	assert.Equal(t, "", normalizeTitle("!!!"))
}

func TestBestForEpisodeQualityFallback(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	ctx := context.Background()

	one := 1
	require.NoError(t, f.torrents.SaveMany(ctx, []*models.Torrent{
		{ID: "t1", AnimeID: "a1", EpisodeNumber: &one, Seeders: 30,
			Metadata: models.TorrentMetadata{Quality: models.QualitySD}},
		{ID: "t2", AnimeID: "a1", EpisodeNumber: &one, Seeders: 80,
			Metadata: models.TorrentMetadata{Quality: models.QualityHD}},
	}))

	// exact quality present
	best, err := f.svc.BestForEpisode(ctx, "a1", 1, models.QualitySD)
	require.NoError(t, err)
	assert.Equal(t, "t1", best.ID)

	// absent preferred quality falls back to highest seeders, not an error
	best, err = f.svc.BestForEpisode(ctx, "a1", 1, models.QualityFullHD)
	require.NoError(t, err)
	assert.Equal(t, "t2", best.ID)

	_, err = f.svc.BestForEpisode(ctx, "a1", 99, models.QualityFullHD)
	assert.ErrorIs(t, err, models.ErrTorrentNotFound)
}

func TestBestQualityForEpisodePriorityList(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	ctx := context.Background()

	one := 1
	require.NoError(t, f.torrents.SaveMany(ctx, []*models.Torrent{
		{ID: "t1", AnimeID: "a1", EpisodeNumber: &one, Seeders: 90,
			Metadata: models.TorrentMetadata{Quality: models.QualityHD}},
		{ID: "t2", AnimeID: "a1", EpisodeNumber: &one, Seeders: 10,
			Metadata: models.TorrentMetadata{Quality: models.QualityFullHD}},
	}))

	quality, err := f.svc.BestQualityForEpisode(ctx, "a1", 1)
	require.NoError(t, err)
	assert.Equal(t, models.QualityFullHD, quality)
}

func TestStatsAggregation(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	ctx := context.Background()

	require.NoError(t, f.torrents.SaveMany(ctx, []*models.Torrent{
		{ID: "t1", AnimeID: "a1", Seeders: 10, SizeBytes: 100, Metadata: models.TorrentMetadata{
			Quality:        models.QualityFullHD,
			ReleaseType:    models.ReleaseEpisode,
			AudioLanguages: []models.Language{models.LangJapanese, models.LangEnglish},
		}},
		{ID: "t2", AnimeID: "a1", Seeders: 30, SizeBytes: 200, Metadata: models.TorrentMetadata{
			Quality:        models.QualityFullHD,
			ReleaseType:    models.ReleaseBatch,
			AudioLanguages: []models.Language{models.LangJapanese},
		}},
	}))

	stats, err := f.svc.Stats(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, 2, stats.ByQuality[models.QualityFullHD])
	// dual-audio torrent counts toward both language buckets
	assert.Equal(t, 2, stats.ByAudioLang[models.LangJapanese])
	assert.Equal(t, 1, stats.ByAudioLang[models.LangEnglish])
	assert.Equal(t, 1, stats.ByReleaseType[models.ReleaseBatch])
	assert.InDelta(t, 20.0, stats.AverageSeeders, 0.001)
	assert.Equal(t, int64(300), stats.TotalSizeBytes)
}

func TestOrganizeSeasonsPartition(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	ctx := context.Background()

	episodes := make([]*models.Episode, 0, 50)
	for i := 1; i <= 50; i++ {
		episodes = append(episodes, &models.Episode{
			ID:      fmt.Sprintf("e%d", i),
			AnimeID: "a1",
			Number:  i,
		})
	}

	seasons, err := f.svc.OrganizeSeasons(ctx, "a1", episodes)
	require.NoError(t, err)

	require.Len(t, seasons, 4)
	assert.Equal(t, 13, seasons[0].EpisodeCount)
	assert.Equal(t, 13, seasons[1].EpisodeCount)
	assert.Equal(t, 13, seasons[2].EpisodeCount)
	assert.Equal(t, 11, seasons[3].EpisodeCount)

	// season numbers are dense and 1-based; every episode lands exactly once
	seen := make(map[string]int)
	for i, season := range seasons {
		assert.Equal(t, i+1, season.SeasonNumber)
		for _, ep := range season.Episodes {
			seen[ep.ID]++
		}
	}
	assert.Len(t, seen, 50)
	for id, count := range seen {
		assert.Equal(t, 1, count, "episode %s assigned %d times", id, count)
	}

	persisted, err := f.seasons.FindByAnimeID(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, persisted, 4)
}

func TestOrganizeSeasonsRerunKeepsIdentity(t *testing.T) {
	f := newFixture(t, &stubSearcher{})
	ctx := context.Background()

	episodes := make([]*models.Episode, 0, 26)
	for i := 1; i <= 26; i++ {
		episodes = append(episodes, &models.Episode{
			ID:      fmt.Sprintf("e%d", i),
			AnimeID: "a1",
			Number:  i,
		})
	}

	first, err := f.svc.OrganizeSeasons(ctx, "a1", episodes)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// re-organizing must update the same rows, not mint new ones
	second, err := f.svc.OrganizeSeasons(ctx, "a1", episodes)
	require.NoError(t, err)
	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].CreatedAt, second[i].CreatedAt)
	}

	persisted, err := f.seasons.FindByAnimeID(ctx, "a1")
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestOrganizeSeasonsSingleChunk(t *testing.T) {
	f := newFixture(t, &stubSearcher{})

	episodes := []*models.Episode{{ID: "e1", Number: 1}, {ID: "e2", Number: 2}}
	seasons, err := f.svc.OrganizeSeasons(context.Background(), "a1", episodes)
	require.NoError(t, err)

	require.Len(t, seasons, 1)
	assert.Equal(t, 2, seasons[0].EpisodeCount)
}
