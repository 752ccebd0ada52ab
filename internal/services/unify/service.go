// Copyright (c) 2025, kitsuneislife and the miau-index contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package unify

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/kitsuneislife/miau-index/internal/domain"
	"github.com/kitsuneislife/miau-index/internal/models"
	"github.com/kitsuneislife/miau-index/internal/providers"
)

// AnimeStore is the persistence surface the unify service needs.
type AnimeStore interface {
	FindByExternalID(ctx context.Context, source models.SourceTag, externalID string) (*models.Anime, error)
	Save(ctx context.Context, anime *models.Anime) error
}

// Service runs multi-provider searches and point lookups and unifies the
// results into canonical records.
type Service struct {
	registry *providers.Registry
	animes   AnimeStore
	opts     domain.UnificationOptions
}

// NewService creates the unify service. animes may be nil for search-only use.
func NewService(registry *providers.Registry, animes AnimeStore, opts domain.UnificationOptions) *Service {
	return &Service{
		registry: registry,
		animes:   animes,
		opts:     opts,
	}
}

type providerResult struct {
	index   int
	source  models.SourceTag
	results []*models.Anime
}

// queryAll fans one call out to every registered provider concurrently.
// Provider failures are logged and contribute an empty slice; they never
// abort the sibling queries. Results come back ordered by registration.
func (s *Service) queryAll(ctx context.Context, run func(ctx context.Context, p providers.Provider) ([]*models.Anime, error)) [][]*models.Anime {
	all := s.registry.All()
	resultCh := make(chan providerResult, len(all))

	var wg sync.WaitGroup
	for i, provider := range all {
		wg.Add(1)
		go func(index int, p providers.Provider) {
			defer wg.Done()

			results, err := run(ctx, p)
			if err != nil {
				log.Warn().
					Err(err).
					Str("provider", string(p.Source())).
					Msg("provider query failed, continuing without it")
				results = nil
			}
			resultCh <- providerResult{index: index, source: p.Source(), results: results}
		}(i, provider)
	}

	wg.Wait()
	close(resultCh)

	ordered := make([][]*models.Anime, len(all))
	for res := range resultCh {
		ordered[res.index] = res.results
	}
	return ordered
}

// Search queries every provider concurrently, groups raw results by exact
// title identity, and unifies each group. Output order follows first
// appearance in provider-registration order; it is not re-sorted by
// relevance. Nothing is persisted on this path.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]*models.Anime, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "must not be empty")
	}
	if limit <= 0 {
		limit = 10
	}

	perProvider := s.queryAll(ctx, func(ctx context.Context, p providers.Provider) ([]*models.Anime, error) {
		return p.SearchAnime(ctx, query, limit)
	})

	groups, order := groupByTitle(perProvider)

	opts := s.opts
	opts.MergeArrays = true

	unified := make([]*models.Anime, 0, len(order))
	for _, key := range order {
		merged, err := Merge(groups[key], opts)
		if err != nil {
			return nil, err
		}
		unified = append(unified, merged)
		if len(unified) >= limit {
			break
		}
	}

	return unified, nil
}

// Seasonal queries every provider for one broadcast season and unifies the
// grouped results. Like Search, this path does not persist.
func (s *Service) Seasonal(ctx context.Context, year int, season models.AiringSeason) ([]*models.Anime, error) {
	if year <= 0 {
		return nil, domain.NewValidationError("year", "must be positive")
	}

	perProvider := s.queryAll(ctx, func(ctx context.Context, p providers.Provider) ([]*models.Anime, error) {
		return p.GetSeasonalAnime(ctx, year, season)
	})

	groups, order := groupByTitle(perProvider)

	opts := s.opts
	opts.MergeArrays = true

	unified := make([]*models.Anime, 0, len(order))
	for _, key := range order {
		merged, err := Merge(groups[key], opts)
		if err != nil {
			return nil, err
		}
		unified = append(unified, merged)
	}

	return unified, nil
}

// groupKey is the exact-match identity used before unification: romaji title,
// else english title, else the record's internal id. No fuzzy matching here.
func groupKey(anime *models.Anime) string {
	if anime.Title.Romaji != "" {
		return anime.Title.Romaji
	}
	if anime.Title.English != "" {
		return anime.Title.English
	}
	return anime.ID
}

func groupByTitle(perProvider [][]*models.Anime) (map[string][]*models.Anime, []string) {
	groups := make(map[string][]*models.Anime)
	var order []string

	for _, results := range perProvider {
		for _, anime := range results {
			key := groupKey(anime)
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], anime)
		}
	}

	return groups, order
}

// FetchAndUnify fetches one anime from every provider that has an id for it,
// merges the records, and persists the canonical result. If a canonical
// record already exists for any of the ids, its internal id and creation time
// are preserved.
func (s *Service) FetchAndUnify(ctx context.Context, ids []models.ExternalID) (*models.Anime, error) {
	if len(ids) == 0 {
		return nil, domain.NewValidationError("ids", "at least one external id is required")
	}

	bySource := make(map[models.SourceTag]string, len(ids))
	for _, ext := range ids {
		bySource[ext.Source] = ext.ID
	}

	perProvider := s.queryAll(ctx, func(ctx context.Context, p providers.Provider) ([]*models.Anime, error) {
		externalID, ok := bySource[p.Source()]
		if !ok {
			return nil, nil
		}
		anime, err := p.FetchAnimeByID(ctx, externalID)
		if err != nil {
			return nil, err
		}
		if anime == nil {
			return nil, nil
		}
		return []*models.Anime{anime}, nil
	})

	var records []*models.Anime
	for _, results := range perProvider {
		records = append(records, results...)
	}
	if len(records) == 0 {
		return nil, ErrNoSourceData
	}

	merged, err := Merge(records, s.opts)
	if err != nil {
		return nil, err
	}

	if existing := s.findExisting(ctx, merged.ExternalIDs); existing != nil {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
	}

	if s.animes != nil {
		if err := s.animes.Save(ctx, merged); err != nil {
			return nil, err
		}
	}

	return merged, nil
}

func (s *Service) findExisting(ctx context.Context, ids []models.ExternalID) *models.Anime {
	if s.animes == nil {
		return nil
	}
	for _, ext := range ids {
		existing, err := s.animes.FindByExternalID(ctx, ext.Source, ext.ID)
		if err == nil && existing != nil {
			return existing
		}
	}
	return nil
}
