package settings

import (
	"context"
	"errors"
	"fmt"
	"os"

	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/sla"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"
)

const errRepoNotConfigured = "settings repository not configured"

// Repository reads and seeds the persisted monitor configuration.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Load reads the settings row. A missing row yields the defaults.
func (r *Repository) Load(ctx context.Context) (Settings, error) {
	if r == nil || r.pool == nil {
		return Settings{}, errors.New(errRepoNotConfigured)
	}

	var s Settings
	var workdays string
	err := r.pool.QueryRow(ctx,
		`SELECT business_start_hour, business_end_hour, workdays, cache_enabled,
		        ai_enabled, ai_temperature, cooldown_minutes, max_retries,
		        retention_days, poll_interval_minutes, updated_at
		 FROM monitor_settings
		 WHERE id = 1`,
	).Scan(&s.BusinessStartHour, &s.BusinessEndHour, &workdays, &s.CacheEnabled,
		&s.AIEnabled, &s.AITemperature, &s.CooldownMinutes, &s.MaxRetries,
		&s.RetentionDays, &s.PollIntervalMinutes, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, err
	}

	s.Workdays = workdaysFromCSV(workdays)
	return s.Normalize(), nil
}

// LoadThresholds reads the per-status threshold table.
func (r *Repository) LoadThresholds(ctx context.Context) (map[opportunity.Status]sla.Thresholds, error) {
	if r == nil || r.pool == nil {
		return nil, errors.New(errRepoNotConfigured)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, reminder_hours, escalation_hours FROM sla_thresholds`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[opportunity.Status]sla.Thresholds)
	for rows.Next() {
		var status string
		var t sla.Thresholds
		if err := rows.Scan(&status, &t.ReminderHours, &t.EscalationHours); err != nil {
			return nil, err
		}
		result[opportunity.Status(status)] = t
	}
	return result, rows.Err()
}

// Snapshot loads the full configuration fresh, for one run.
func (r *Repository) Snapshot(ctx context.Context) (Snapshot, error) {
	s, err := r.Load(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load settings: %w", err)
	}

	byStatus, err := r.LoadThresholds(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load thresholds: %w", err)
	}

	return Snapshot{
		Settings: s,
		SLA: sla.Config{
			Calendar: s.Calendar(),
			ByStatus: byStatus,
			Default:  sla.Thresholds{ReminderHours: 4, EscalationHours: 8},
		},
	}, nil
}

type seedThreshold struct {
	ReminderHours   float64 `yaml:"reminder_hours"`
	EscalationHours float64 `yaml:"escalation_hours"`
}

type seedFile struct {
	Default  seedThreshold            `yaml:"default"`
	Statuses map[string]seedThreshold `yaml:"statuses"`
}

// SeedThresholds installs threshold rows from a YAML file for statuses that
// have no row yet. Existing rows are left alone so operator edits survive
// restarts.
func (r *Repository) SeedThresholds(ctx context.Context, path string) error {
	if r == nil || r.pool == nil {
		return errors.New(errRepoNotConfigured)
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read threshold seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("parse threshold seed: %w", err)
	}

	for status, t := range seed.Statuses {
		if t.ReminderHours <= 0 || t.EscalationHours <= 0 {
			continue
		}
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sla_thresholds (status, reminder_hours, escalation_hours)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (status) DO NOTHING`,
			status, t.ReminderHours, t.EscalationHours,
		)
		if err != nil {
			return err
		}
	}

	return nil
}
