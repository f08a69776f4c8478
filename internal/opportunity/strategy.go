package opportunity

import (
	"context"
	"fmt"

	"slamonitor_backend/platform/logger"
)

// Fetcher is the reporting-source collaborator.
type Fetcher interface {
	FetchOpen(ctx context.Context) ([]Opportunity, error)
}

// CacheStore is the persisted snapshot cache.
type CacheStore interface {
	ListAll(ctx context.Context) ([]Opportunity, error)
	ReplaceAll(ctx context.Context, opps []Opportunity) error
}

// DataStrategy owns the opportunity snapshot and its full-refresh cache
// policy. The source of truth is always the external reporting source; the
// cache only bridges source outages between cycles.
type DataStrategy struct {
	source       Fetcher
	cache        CacheStore
	cacheEnabled bool
	log          *logger.Logger
}

func NewDataStrategy(source Fetcher, cache CacheStore, cacheEnabled bool, log *logger.Logger) *DataStrategy {
	return &DataStrategy{
		source:       source,
		cache:        cache,
		cacheEnabled: cacheEnabled,
		log:          log,
	}
}

// GetOpportunities returns the current snapshot. With forceRefresh false a
// non-empty cache wins; otherwise the source is fetched and the cache is
// atomically replaced. A failed fetch falls back to the last cached snapshot
// as a degraded response, unless the cache is empty too.
func (s *DataStrategy) GetOpportunities(ctx context.Context, forceRefresh bool) ([]Opportunity, error) {
	if s.cacheEnabled && !forceRefresh {
		cached, err := s.cache.ListAll(ctx)
		if err != nil {
			s.log.DatabaseError("opportunity cache read", err)
		} else if len(cached) > 0 {
			return cached, nil
		}
	}

	return s.RefreshCache(ctx)
}

// RefreshCache fetches the full list from the reporting source and replaces
// the cache wholesale. Never a partial merge: after a successful refresh the
// cache contains exactly the fetched snapshot.
func (s *DataStrategy) RefreshCache(ctx context.Context) ([]Opportunity, error) {
	fetched, err := s.source.FetchOpen(ctx)
	if err != nil {
		s.log.CollaboratorError("report_source", "fetch_open", err)
		return s.fallbackToCache(ctx, err)
	}

	if s.cacheEnabled {
		if replaceErr := s.cache.ReplaceAll(ctx, fetched); replaceErr != nil {
			// The fetched snapshot is still good; serving it beats failing
			// the whole pass over a cache write.
			s.log.DatabaseError("opportunity cache replace", replaceErr)
		}
	}

	return fetched, nil
}

func (s *DataStrategy) fallbackToCache(ctx context.Context, fetchErr error) ([]Opportunity, error) {
	if !s.cacheEnabled {
		return nil, fetchErr
	}

	cached, err := s.cache.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch failed (%w) and cache read failed: %v", fetchErr, err)
	}
	if len(cached) == 0 {
		return nil, fetchErr
	}

	s.log.Warn("serving stale opportunity snapshot after fetch failure", "cached", len(cached), "error", fetchErr.Error())
	return cached, nil
}
