// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package unify

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/memstore"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/providers"
)

type stubProvider struct {
	source   models.SourceTag
	byID     map[string]*models.Anime
	searches map[string][]*models.Anime
	err      error
}

func (p *stubProvider) Source() models.SourceTag         { return p.source }
func (p *stubProvider) IsAvailable(context.Context) bool { return true }

func (p *stubProvider) FetchAnimeByID(ctx context.Context, externalID string) (*models.Anime, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.byID[externalID], nil
}

func (p *stubProvider) SearchAnime(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.searches[query], nil
}

func (p *stubProvider) GetSeasonalAnime(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.searches["seasonal"], nil
}

func newRegistry(stubs ...*stubProvider) *providers.Registry {
	registry := providers.NewRegistry()
	for _, stub := range stubs {
		registry.Register(stub)
	}
	return registry
}

func TestSearchGroupsByTitle(t *testing.T) {
	mal := &stubProvider{
		source: models.SourceMyAnimeList,
		searches: map[string][]*models.Anime{
			"frieren": {
				{
					Title:       models.Title{Romaji: "Sousou no Frieren"},
					Synopsis:    "short",
					ExternalIDs: []models.ExternalID{{Source: models.SourceMyAnimeList, ID: "52991"}},
				},
			},
		},
	}
	anilist := &stubProvider{
		source: models.SourceAniList,
		searches: map[string][]*models.Anime{
			"frieren": {
				{
					Title:       models.Title{Romaji: "Sousou no Frieren"},
					Synopsis:    "a much longer synopsis from anilist",
					ExternalIDs: []models.ExternalID{{Source: models.SourceAniList, ID: "154587"}},
				},
				{
					Title:       models.Title{Romaji: "Frieren Special"},
					ExternalIDs: []models.ExternalID{{Source: models.SourceAniList, ID: "999"}},
				},
			},
		},
	}

	svc := NewService(newRegistry(mal, anilist), nil, domain.DefaultUnificationOptions())

	results, err := svc.Search(context.Background(), "frieren", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// same romaji title collapses into one unified record
	assert.Equal(t, "Sousou no Frieren", results[0].Title.Romaji)
	assert.Equal(t, "a much longer synopsis from anilist", results[0].Synopsis)
	assert.Len(t, results[0].ExternalIDs, 2)

	assert.Equal(t, "Frieren Special", results[1].Title.Romaji)
}

func TestSearchProviderFailureIsolated(t *testing.T) {
	broken := &stubProvider{source: models.SourceMyAnimeList, err: errors.New("upstream down")}
	working := &stubProvider{
		source: models.SourceAniList,
		searches: map[string][]*models.Anime{
			"bebop": {{Title: models.Title{Romaji: "Cowboy Bebop"}}},
		},
	}

	svc := NewService(newRegistry(broken, working), nil, domain.DefaultUnificationOptions())

	results, err := svc.Search(context.Background(), "bebop", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Cowboy Bebop", results[0].Title.Romaji)
}

func TestSearchHonorsLimit(t *testing.T) {
	stub := &stubProvider{
		source: models.SourceAniList,
		searches: map[string][]*models.Anime{
			"one": {
				{Title: models.Title{Romaji: "One Piece"}},
				{Title: models.Title{Romaji: "One Punch Man"}},
				{Title: models.Title{Romaji: "One Outs"}},
			},
		},
	}

	svc := NewService(newRegistry(stub), nil, domain.DefaultUnificationOptions())

	results, err := svc.Search(context.Background(), "one", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEmptyQuery(t *testing.T) {
	svc := NewService(newRegistry(), nil, domain.DefaultUnificationOptions())

	_, err := svc.Search(context.Background(), "", 10)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
}

func TestFetchAndUnifyPersists(t *testing.T) {
	mal := &stubProvider{
		source: models.SourceMyAnimeList,
		byID: map[string]*models.Anime{
			"21": {
				ID:          models.NewAnimeID(),
				Title:       models.Title{Romaji: "One Piece"},
				ExternalIDs: []models.ExternalID{{Source: models.SourceMyAnimeList, ID: "21"}},
			},
		},
	}
	kitsu := &stubProvider{
		source: models.SourceKitsu,
		byID: map[string]*models.Anime{
			"12": {
				ID:          models.NewAnimeID(),
				Title:       models.Title{Native: "ワンピース"},
				ExternalIDs: []models.ExternalID{{Source: models.SourceKitsu, ID: "12"}},
			},
		},
	}

	repo := memstore.NewAnimeRepo()
	svc := NewService(newRegistry(mal, kitsu), repo, domain.DefaultUnificationOptions())

	unified, err := svc.FetchAndUnify(context.Background(), []models.ExternalID{
		{Source: models.SourceMyAnimeList, ID: "21"},
		{Source: models.SourceKitsu, ID: "12"},
	})
	require.NoError(t, err)
	assert.Equal(t, "One Piece", unified.Title.Romaji)
	assert.Equal(t, "ワンピース", unified.Title.Native)
	assert.Len(t, unified.ExternalIDs, 2)

	stored, err := repo.FindByID(context.Background(), unified.ID)
	require.NoError(t, err)
	assert.Equal(t, unified.Title, stored.Title)

	// refetching reuses the stored record's internal id
	again, err := svc.FetchAndUnify(context.Background(), []models.ExternalID{
		{Source: models.SourceMyAnimeList, ID: "21"},
	})
	require.NoError(t, err)
	assert.Equal(t, unified.ID, again.ID)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFetchAndUnifyAllSourcesFail(t *testing.T) {
	broken := &stubProvider{source: models.SourceMyAnimeList, err: errors.New("down")}
	svc := NewService(newRegistry(broken), memstore.NewAnimeRepo(), domain.DefaultUnificationOptions())

	_, err := svc.FetchAndUnify(context.Background(), []models.ExternalID{
		{Source: models.SourceMyAnimeList, ID: "21"},
	})
	assert.ErrorIs(t, err, ErrNoSourceData)
}
