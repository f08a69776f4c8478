package scheduler

import (
	"context"
	"time"

	"slamonitor_backend/internal/settings"
	"slamonitor_backend/platform/logger"
)

// SettingsLoader yields the current monitor settings. The trigger re-reads
// them before every sleep so poll interval changes take effect on the next
// cycle without a restart.
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Settings, error)
}

// MonitorTrigger enqueues one monitor run per poll interval. Dispatch and
// execution are decoupled through the queue; if a run is still active when
// the next trigger fires, the worker drops the extra task.
type MonitorTrigger struct {
	client   *Client
	settings SettingsLoader
	log      *logger.Logger
}

func NewMonitorTrigger(client *Client, loader SettingsLoader, log *logger.Logger) *MonitorTrigger {
	return &MonitorTrigger{
		client:   client,
		settings: loader,
		log:      log,
	}
}

func (t *MonitorTrigger) Run(ctx context.Context) {
	if t == nil || t.client == nil {
		return
	}

	for {
		interval := t.interval(ctx)
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		err := t.client.EnqueueMonitorRun(ctx, MonitorRunPayload{Trigger: "interval"})
		if err != nil {
			t.log.Warn("monitor trigger enqueue failed", "error", err)
		}
	}
}

func (t *MonitorTrigger) interval(ctx context.Context) time.Duration {
	s, err := t.settings.Load(ctx)
	if err != nil {
		t.log.DatabaseError("load settings for trigger", err)
		return settings.Defaults().PollInterval()
	}
	return s.PollInterval()
}
