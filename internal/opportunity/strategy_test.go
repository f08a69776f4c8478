package opportunity

import (
	"context"
	"errors"
	"testing"

	"slamonitor_backend/platform/logger"
)

type fakeFetcher struct {
	opps  []Opportunity
	err   error
	calls int
}

func (f *fakeFetcher) FetchOpen(_ context.Context) ([]Opportunity, error) {
	f.calls++
	return f.opps, f.err
}

type fakeCache struct {
	stored     []Opportunity
	listErr    error
	replaceErr error
	replaced   int
}

func (c *fakeCache) ListAll(_ context.Context) ([]Opportunity, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.stored, nil
}

func (c *fakeCache) ReplaceAll(_ context.Context, opps []Opportunity) error {
	if c.replaceErr != nil {
		return c.replaceErr
	}
	c.replaced++
	c.stored = append([]Opportunity(nil), opps...)
	return nil
}

func orders(nos ...string) []Opportunity {
	out := make([]Opportunity, 0, len(nos))
	for _, no := range nos {
		out = append(out, Opportunity{OrderNo: no, Status: StatusPendingAppointment})
	}
	return out
}

func TestGetOpportunitiesServesCacheFirst(t *testing.T) {
	fetcher := &fakeFetcher{opps: orders("GD0002")}
	cache := &fakeCache{stored: orders("GD0001")}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	got, err := s.GetOpportunities(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 0 {
		t.Fatal("expected no source fetch when cache is populated")
	}
	if len(got) != 1 || got[0].OrderNo != "GD0001" {
		t.Fatalf("expected cached snapshot, got %+v", got)
	}
}

func TestGetOpportunitiesForceRefreshBypassesCache(t *testing.T) {
	fetcher := &fakeFetcher{opps: orders("GD0002")}
	cache := &fakeCache{stored: orders("GD0001")}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	got, err := s.GetOpportunities(context.Background(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatal("expected a source fetch on force refresh")
	}
	if len(got) != 1 || got[0].OrderNo != "GD0002" {
		t.Fatalf("expected fetched snapshot, got %+v", got)
	}
	if cache.replaced != 1 {
		t.Fatal("expected the cache to be replaced after refresh")
	}
}

func TestRefreshCacheReplacesWholesale(t *testing.T) {
	fetcher := &fakeFetcher{opps: orders("GD0003")}
	cache := &fakeCache{stored: orders("GD0001", "GD0002")}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	got, err := s.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 opportunity after refresh, got %d", len(got))
	}
	// A shrinking source snapshot must shrink the cache too.
	if len(cache.stored) != 1 || cache.stored[0].OrderNo != "GD0003" {
		t.Fatalf("expected cache replaced wholesale, got %+v", cache.stored)
	}
}

func TestRefreshCacheReturnsFetchedEvenWhenReplaceFails(t *testing.T) {
	fetcher := &fakeFetcher{opps: orders("GD0002")}
	cache := &fakeCache{replaceErr: errors.New("db down")}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	got, err := s.RefreshCache(context.Background())
	if err != nil {
		t.Fatalf("expected fetched snapshot despite cache write failure, got error %v", err)
	}
	if len(got) != 1 || got[0].OrderNo != "GD0002" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestFetchFailureFallsBackToStaleCache(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("source timeout")}
	cache := &fakeCache{stored: orders("GD0001")}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	got, err := s.GetOpportunities(context.Background(), true)
	if err != nil {
		t.Fatalf("expected stale cache fallback, got error %v", err)
	}
	if len(got) != 1 || got[0].OrderNo != "GD0001" {
		t.Fatalf("expected stale cached snapshot, got %+v", got)
	}
}

func TestFetchFailureWithEmptyCacheReturnsError(t *testing.T) {
	fetchErr := errors.New("source timeout")
	fetcher := &fakeFetcher{err: fetchErr}
	cache := &fakeCache{}
	s := NewDataStrategy(fetcher, cache, true, logger.New("development"))

	_, err := s.GetOpportunities(context.Background(), true)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected the fetch error with an empty cache, got %v", err)
	}
}

func TestCacheDisabledAlwaysFetches(t *testing.T) {
	fetcher := &fakeFetcher{opps: orders("GD0002")}
	cache := &fakeCache{stored: orders("GD0001")}
	s := NewDataStrategy(fetcher, cache, false, logger.New("development"))

	got, err := s.GetOpportunities(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetcher.calls != 1 {
		t.Fatal("expected source fetch with caching disabled")
	}
	if cache.replaced != 0 {
		t.Fatal("expected no cache write with caching disabled")
	}
	if got[0].OrderNo != "GD0002" {
		t.Fatalf("expected fetched snapshot, got %+v", got)
	}
}
