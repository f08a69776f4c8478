package scheduler

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"slamonitor_backend/internal/orchestrator"
	"slamonitor_backend/platform/apperr"
	"slamonitor_backend/platform/config"
	"slamonitor_backend/platform/logger"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	orch   *orchestrator.Orchestrator
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, orch *orchestrator.Orchestrator, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 1
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		orch:   orch,
		log:    log,
	}

	mux.HandleFunc(TaskMonitorRun, w.handleMonitorRun)

	return w, nil
}

func (w *Worker) handleMonitorRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseMonitorRunPayload(task)
	if err != nil {
		return err
	}

	summary, err := w.orch.RunOnce(ctx, payload.Trigger, payload.ForceRefresh)
	if err != nil {
		// An overlapping trigger is dropped, not retried: the active run
		// already covers the same backlog.
		if apperr.Is(err, apperr.KindConflict) {
			w.log.Info("monitor run skipped, another run active", "trigger", payload.Trigger)
			return nil
		}
		return err
	}

	w.log.Info("monitor run finished",
		"run_id", summary.RunID.String(),
		"trigger", summary.Trigger,
		"opportunities", summary.Opportunities,
		"sent", summary.Notifications.Sent,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
