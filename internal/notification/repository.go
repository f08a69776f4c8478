package notification

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const errRepoNotConfigured = "notification repository not configured"

const taskColumns = `id, order_no, organization, type, status, due_at, last_sent_at,
	retry_count, max_retries, cooldown_minutes, message, run_id, last_error, created_at, updated_at`

// Repository persists notification tasks.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var typ, status string
	err := row.Scan(&t.ID, &t.OrderNo, &t.Organization, &typ, &status, &t.DueAt, &t.LastSentAt,
		&t.RetryCount, &t.MaxRetries, &t.CooldownMinutes, &t.Message, &t.RunID, &t.LastError, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Task{}, err
	}
	t.Type = Type(typ)
	t.Status = Status(status)
	return t, nil
}

// Insert stores a new pending task.
func (r *Repository) Insert(ctx context.Context, t Task) (uuid.UUID, error) {
	if r == nil || r.pool == nil {
		return uuid.Nil, errors.New(errRepoNotConfigured)
	}

	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notification_tasks
		 (order_no, organization, type, status, due_at, retry_count, max_retries, cooldown_minutes, message, run_id)
		 VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8, $9)
		 RETURNING id`,
		t.OrderNo, t.Organization, string(t.Type), string(StatusPending), t.DueAt,
		t.MaxRetries, t.CooldownMinutes, t.Message, t.RunID,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// ListPending returns all pending tasks, oldest due first.
func (r *Repository) ListPending(ctx context.Context) ([]Task, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM notification_tasks
		 WHERE status = 'pending'
		 ORDER BY due_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListRecent returns the newest tasks for the ops API.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]Task, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}
	if limit < 1 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM notification_tasks
		 ORDER BY created_at DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	var results []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return results, nil
}

// HasPending reports whether a pending task exists for the given key.
func (r *Repository) HasPending(ctx context.Context, orderNo string, typ Type) (bool, error) {
	if r == nil || r.pool == nil {
		return false, errors.New(errRepoNotConfigured)
	}

	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM notification_tasks
		   WHERE order_no = $1 AND type = $2 AND status = 'pending'
		 )`, orderNo, string(typ)).Scan(&exists)
	return exists, err
}

// LastSentAt returns the most recent send time for the given key, or nil.
func (r *Repository) LastSentAt(ctx context.Context, orderNo string, typ Type) (*time.Time, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	var lastSent *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(last_sent_at) FROM notification_tasks
		 WHERE order_no = $1 AND type = $2 AND last_sent_at IS NOT NULL`,
		orderNo, string(typ)).Scan(&lastSent)
	if err != nil {
		return nil, err
	}
	return lastSent, nil
}

// RecentHistory returns tasks sent for the given order since the cutoff,
// newest first. Used as advisor context.
func (r *Repository) RecentHistory(ctx context.Context, orderNo string, since time.Time) ([]Task, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+`
		 FROM notification_tasks
		 WHERE order_no = $1 AND last_sent_at IS NOT NULL AND last_sent_at >= $2
		 ORDER BY last_sent_at DESC`, orderNo, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// PurgeLegacyEscalations deletes pending escalation rows for an organization
// that do not use the canonical synthetic key, so old per-order escalation
// rows never coexist with the aggregated one.
func (r *Repository) PurgeLegacyEscalations(ctx context.Context, organization string) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notification_tasks
		 WHERE organization = $1 AND type = 'escalation' AND status = 'pending'
		   AND order_no <> $2`,
		organization, EscalationOrderNo(organization))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkSent transitions a task to sent and stamps the send time.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE notification_tasks
		 SET status = 'sent', last_sent_at = $2, last_error = NULL, updated_at = now()
		 WHERE id = $1`, id, sentAt)
	return err
}

// RecordFailure increments the retry count and, when the budget is
// exhausted, marks the task failed. One statement so a crash cannot leave
// the count and status out of step. Returns the resulting status.
func (r *Repository) RecordFailure(ctx context.Context, id uuid.UUID, lastError string) (Status, error) {
	if r == nil || r.pool == nil {
		return "", errors.New(errRepoNotConfigured)
	}

	var status string
	err := r.pool.QueryRow(ctx,
		`UPDATE notification_tasks
		 SET retry_count = retry_count + 1,
		     status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
		     last_error = $2,
		     updated_at = now()
		 WHERE id = $1
		 RETURNING status`, id, lastError).Scan(&status)
	if err != nil {
		return "", err
	}
	return Status(status), nil
}

// DeleteTerminalBefore removes sent/failed tasks older than the cutoff.
// Pending tasks are never deleted here.
func (r *Repository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r == nil || r.pool == nil {
		return 0, errors.New(errRepoNotConfigured)
	}

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM notification_tasks
		 WHERE status IN ('sent', 'failed') AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
