// Package httpapi exposes the read-only ops API: run history, task state,
// backlog statistics and a manual trigger.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"slamonitor_backend/internal/notification"
	"slamonitor_backend/internal/opportunity"
	"slamonitor_backend/internal/runtrack"
	"slamonitor_backend/platform/apperr"
	"slamonitor_backend/platform/logger"
)

// RunReader reads run history and aggregates.
type RunReader interface {
	GetRun(ctx context.Context, id uuid.UUID) (runtrack.Run, error)
	ListRuns(ctx context.Context, limit int) ([]runtrack.Run, error)
	ListSteps(ctx context.Context, runID uuid.UUID) ([]runtrack.Step, error)
	RunStatistics(ctx context.Context, hoursBack int) (runtrack.RunStats, error)
	StepPerformance(ctx context.Context, hoursBack int) ([]runtrack.StepStats, error)
}

// TaskReader reads notification task state.
type TaskReader interface {
	ListRecent(ctx context.Context, limit int) ([]notification.Task, error)
}

// BacklogReader yields the current assessed backlog.
type BacklogReader interface {
	Backlog(ctx context.Context) ([]opportunity.Opportunity, error)
}

// Trigger enqueues a monitor run on demand.
type Trigger interface {
	TriggerRun(ctx context.Context, forceRefresh bool) error
}

type Handler struct {
	runs    RunReader
	tasks   TaskReader
	backlog BacklogReader
	trigger Trigger
	log     *logger.Logger
}

func NewHandler(runs RunReader, tasks TaskReader, backlog BacklogReader, trigger Trigger, log *logger.Logger) *Handler {
	return &Handler{
		runs:    runs,
		tasks:   tasks,
		backlog: backlog,
		trigger: trigger,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/runs", h.listRuns)
	group.GET("/runs/:id", h.getRun)
	group.GET("/tasks", h.listTasks)
	group.GET("/stats/runs", h.runStats)
	group.GET("/stats/steps", h.stepStats)
	group.GET("/stats/backlog", h.backlogStats)
	group.POST("/monitor/trigger", h.triggerRun)
}

func (h *Handler) listRuns(c *gin.Context) {
	limit := intQuery(c, "limit", 50, 200)
	runs, err := h.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.log.DatabaseError("list runs", err)
		Fail(c, err)
		return
	}
	OK(c, gin.H{"runs": runs, "count": len(runs)})
}

func (h *Handler) getRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		Fail(c, apperr.Validation("invalid run id"))
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), id)
	if err != nil {
		Fail(c, err)
		return
	}
	steps, err := h.runs.ListSteps(c.Request.Context(), id)
	if err != nil {
		h.log.DatabaseError("list run steps", err)
		Fail(c, err)
		return
	}
	OK(c, gin.H{
		"run":              run,
		"steps":            steps,
		"duration_seconds": run.Duration(time.Now()).Seconds(),
	})
}

func (h *Handler) listTasks(c *gin.Context) {
	limit := intQuery(c, "limit", 100, 500)
	tasks, err := h.tasks.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.log.DatabaseError("list tasks", err)
		Fail(c, err)
		return
	}
	OK(c, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (h *Handler) runStats(c *gin.Context) {
	hours := intQuery(c, "hours", 24, 24*30)
	stats, err := h.runs.RunStatistics(c.Request.Context(), hours)
	if err != nil {
		h.log.DatabaseError("run statistics", err)
		Fail(c, err)
		return
	}
	OK(c, stats)
}

func (h *Handler) stepStats(c *gin.Context) {
	hours := intQuery(c, "hours", 24, 24*30)
	stats, err := h.runs.StepPerformance(c.Request.Context(), hours)
	if err != nil {
		h.log.DatabaseError("step performance", err)
		Fail(c, err)
		return
	}
	OK(c, gin.H{"steps": stats, "window_hours": hours})
}

func (h *Handler) backlogStats(c *gin.Context) {
	snapshot, err := h.backlog.Backlog(c.Request.Context())
	if err != nil {
		h.log.DatabaseError("load backlog", err)
		Fail(c, err)
		return
	}

	byOrg := opportunity.GroupByOrganization(snapshot)
	organizations := make(map[string]opportunity.Stats, len(byOrg))
	for org, group := range byOrg {
		organizations[org] = opportunity.ComputeStats(group)
	}

	OK(c, gin.H{
		"stats":             opportunity.ComputeStats(snapshot),
		"organizations":     organizations,
		"overdue_orders":    orderNumbers(opportunity.Overdue(snapshot)),
		"escalating_orders": orderNumbers(opportunity.Escalations(snapshot)),
	})
}

func orderNumbers(opps []opportunity.Opportunity) []string {
	numbers := make([]string, 0, len(opps))
	for _, o := range opps {
		numbers = append(numbers, o.OrderNo)
	}
	return numbers
}

func (h *Handler) triggerRun(c *gin.Context) {
	forceRefresh := c.Query("force_refresh") == "true"
	if err := h.trigger.TriggerRun(c.Request.Context(), forceRefresh); err != nil {
		h.log.CollaboratorError("scheduler", "enqueue manual run", err)
		Fail(c, apperr.Unavailable("could not enqueue monitor run"))
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
}

func intQuery(c *gin.Context, name string, fallback, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	if value > max {
		return max
	}
	return value
}
