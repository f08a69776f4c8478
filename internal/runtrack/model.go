// Package runtrack records monitor run lifecycles and their step timings
// for auditing and performance analysis.
package runtrack

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the monitor pipeline.
type Run struct {
	ID                     uuid.UUID      `json:"id"`
	Status                 RunStatus      `json:"status"`
	Trigger                string         `json:"trigger"`
	StartedAt              time.Time      `json:"started_at"`
	EndedAt                *time.Time     `json:"ended_at,omitempty"`
	OpportunitiesProcessed int            `json:"opportunities_processed"`
	NotificationsSent      int            `json:"notifications_sent"`
	Context                map[string]any `json:"context,omitempty"`
	Errors                 []string       `json:"errors,omitempty"`
}

// Duration is the wall time of the run, or elapsed-so-far while running.
func (r Run) Duration(now time.Time) time.Duration {
	if r.EndedAt != nil {
		return r.EndedAt.Sub(r.StartedAt)
	}
	return now.Sub(r.StartedAt)
}

// Step is one named stage inside a run.
type Step struct {
	ID         uuid.UUID      `json:"id"`
	RunID      uuid.UUID      `json:"run_id"`
	Name       string         `json:"name"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
	DurationMS int64          `json:"duration_ms"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      *string        `json:"error,omitempty"`
}

// RunStats aggregates run outcomes over a window.
type RunStats struct {
	WindowHours        int     `json:"window_hours"`
	TotalRuns          int     `json:"total_runs"`
	CompletedRuns      int     `json:"completed_runs"`
	FailedRuns         int     `json:"failed_runs"`
	AvgDurationSeconds float64 `json:"avg_duration_seconds"`
	TotalOpportunities int     `json:"total_opportunities"`
	TotalNotifications int     `json:"total_notifications"`
}

// StepStats aggregates one step name's timings over a window.
type StepStats struct {
	Name               string  `json:"name"`
	Executions         int     `json:"executions"`
	Failures           int     `json:"failures"`
	AvgDurationMS      float64 `json:"avg_duration_ms"`
	MaxDurationMS      int64   `json:"max_duration_ms"`
}
