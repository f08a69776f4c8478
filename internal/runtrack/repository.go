package runtrack

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"slamonitor_backend/platform/apperr"
)

const errRepoNotConfigured = "runtrack repository not configured"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) InsertRun(ctx context.Context, run Run) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	contextJSON, err := json.Marshal(run.Context)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO monitor_runs (id, status, trigger, started_at, opportunities_processed, notifications_sent, context, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, run.ID, run.Status, run.Trigger, run.StartedAt, run.OpportunitiesProcessed, run.NotificationsSent, contextJSON, run.Errors)
	return err
}

func (r *Repository) FinishRun(ctx context.Context, run Run) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE monitor_runs
		SET status = $2, ended_at = $3, opportunities_processed = $4, notifications_sent = $5, errors = $6
		WHERE id = $1
	`, run.ID, run.Status, run.EndedAt, run.OpportunitiesProcessed, run.NotificationsSent, run.Errors)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("monitor run not found")
	}
	return nil
}

func (r *Repository) InsertStep(ctx context.Context, step Step) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	inputJSON, err := json.Marshal(step.Input)
	if err != nil {
		return err
	}
	outputJSON, err := json.Marshal(step.Output)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO monitor_run_steps (id, run_id, name, started_at, ended_at, duration_ms, input, output, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, step.ID, step.RunID, step.Name, step.StartedAt, step.EndedAt, step.DurationMS, inputJSON, outputJSON, step.Error)
	return err
}

const runColumns = `id, status, trigger, started_at, ended_at, opportunities_processed, notifications_sent, context, errors`

func scanRun(row pgx.Row) (Run, error) {
	var run Run
	var contextJSON []byte
	err := row.Scan(&run.ID, &run.Status, &run.Trigger, &run.StartedAt, &run.EndedAt,
		&run.OpportunitiesProcessed, &run.NotificationsSent, &contextJSON, &run.Errors)
	if err != nil {
		return Run{}, err
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &run.Context); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (Run, error) {
	if r == nil || r.pool == nil {
		return Run{}, errors.New(errRepoNotConfigured)
	}
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM monitor_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, apperr.NotFound("monitor run not found")
	}
	return run, err
}

func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+runColumns+` FROM monitor_runs ORDER BY started_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (r *Repository) ListSteps(ctx context.Context, runID uuid.UUID) ([]Step, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, run_id, name, started_at, ended_at, duration_ms, input, output, error
		FROM monitor_run_steps
		WHERE run_id = $1
		ORDER BY started_at ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var step Step
		var inputJSON, outputJSON []byte
		err := rows.Scan(&step.ID, &step.RunID, &step.Name, &step.StartedAt, &step.EndedAt,
			&step.DurationMS, &inputJSON, &outputJSON, &step.Error)
		if err != nil {
			return nil, err
		}
		if len(inputJSON) > 0 {
			if err := json.Unmarshal(inputJSON, &step.Input); err != nil {
				return nil, err
			}
		}
		if len(outputJSON) > 0 {
			if err := json.Unmarshal(outputJSON, &step.Output); err != nil {
				return nil, err
			}
		}
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func (r *Repository) RunStatistics(ctx context.Context, hoursBack int) (RunStats, error) {
	if r == nil || r.pool == nil {
		return RunStats{}, errors.New(errRepoNotConfigured)
	}
	since := time.Now().Add(-time.Duration(hoursBack) * time.Hour)
	stats := RunStats{WindowHours: hoursBack}
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(AVG(EXTRACT(EPOCH FROM (ended_at - started_at))) FILTER (WHERE ended_at IS NOT NULL), 0),
			COALESCE(SUM(opportunities_processed), 0),
			COALESCE(SUM(notifications_sent), 0)
		FROM monitor_runs
		WHERE started_at >= $1
	`, since).Scan(&stats.TotalRuns, &stats.CompletedRuns, &stats.FailedRuns,
		&stats.AvgDurationSeconds, &stats.TotalOpportunities, &stats.TotalNotifications)
	return stats, err
}

func (r *Repository) StepPerformance(ctx context.Context, hoursBack int) ([]StepStats, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	since := time.Now().Add(-time.Duration(hoursBack) * time.Hour)
	rows, err := r.pool.Query(ctx, `
		SELECT name,
			COUNT(*),
			COUNT(*) FILTER (WHERE error IS NOT NULL),
			AVG(duration_ms),
			MAX(duration_ms)
		FROM monitor_run_steps
		WHERE started_at >= $1
		GROUP BY name
		ORDER BY name
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []StepStats
	for rows.Next() {
		var s StepStats
		if err := rows.Scan(&s.Name, &s.Executions, &s.Failures, &s.AvgDurationMS, &s.MaxDurationMS); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

func (r *Repository) DeleteRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM monitor_runs WHERE started_at < $1 AND status <> 'running'
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
