package httpapi

import (
	"context"
	"time"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/settings"
	"slamonitor_backend/internal/sla"
)

// CacheReader reads the cached opportunity snapshot.
type CacheReader interface {
	ListAll(ctx context.Context) ([]opportunity.Opportunity, error)
}

// SettingsReader loads the current SLA configuration.
type SettingsReader interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// BacklogService assembles the assessed backlog from the cache and the
// current thresholds. It serves the stats endpoint in the API process,
// which shares the database with the monitor but not its memory.
type BacklogService struct {
	cache    CacheReader
	settings SettingsReader
}

func NewBacklogService(cache CacheReader, settingsReader SettingsReader) *BacklogService {
	return &BacklogService{cache: cache, settings: settingsReader}
}

func (s *BacklogService) Backlog(ctx context.Context) ([]opportunity.Opportunity, error) {
	opps, err := s.cache.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return sla.Annotate(opps, time.Now(), snap.SLA), nil
}
