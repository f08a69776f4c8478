// Package settings owns the persisted monitor configuration. Values are read
// fresh at the start of every run and every trigger-loop tick, so edits take
// effect on the next trigger without a restart.
package settings

import (
	"strconv"
	"strings"
	"time"

	"slamonitor_backend/internal/sla"
)

// Settings is the single persisted configuration row.
type Settings struct {
	BusinessStartHour   int
	BusinessEndHour     int
	Workdays            []time.Weekday
	CacheEnabled        bool
	AIEnabled           bool
	AITemperature       float64
	CooldownMinutes     int
	MaxRetries          int
	RetentionDays       int
	PollIntervalMinutes int
	UpdatedAt           time.Time
}

// Defaults mirrors the seed row installed by the migrations.
func Defaults() Settings {
	return Settings{
		BusinessStartHour:   9,
		BusinessEndHour:     18,
		Workdays:            []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		CacheEnabled:        true,
		AIEnabled:           false,
		AITemperature:       0.3,
		CooldownMinutes:     120,
		MaxRetries:          3,
		RetentionDays:       30,
		PollIntervalMinutes: 30,
	}
}

// Cooldown returns the per-task resend cooldown.
func (s Settings) Cooldown() time.Duration {
	return time.Duration(s.CooldownMinutes) * time.Minute
}

// PollInterval returns the monitor trigger interval.
func (s Settings) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMinutes) * time.Minute
}

// Calendar builds the SLA business-time calendar.
func (s Settings) Calendar() sla.Calendar {
	workdays := make(map[time.Weekday]bool, len(s.Workdays))
	for _, day := range s.Workdays {
		workdays[day] = true
	}
	return sla.Calendar{
		StartHour: s.BusinessStartHour,
		EndHour:   s.BusinessEndHour,
		Workdays:  workdays,
	}
}

// Normalize clamps out-of-range values back to defaults so a bad edit to the
// settings row degrades the schedule instead of breaking it.
func (s Settings) Normalize() Settings {
	def := Defaults()
	if s.BusinessStartHour < 0 || s.BusinessEndHour > 24 || s.BusinessStartHour >= s.BusinessEndHour {
		s.BusinessStartHour = def.BusinessStartHour
		s.BusinessEndHour = def.BusinessEndHour
	}
	if len(s.Workdays) == 0 {
		s.Workdays = def.Workdays
	}
	if s.CooldownMinutes <= 0 {
		s.CooldownMinutes = def.CooldownMinutes
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = def.MaxRetries
	}
	if s.RetentionDays <= 0 {
		s.RetentionDays = def.RetentionDays
	}
	if s.PollIntervalMinutes <= 0 {
		s.PollIntervalMinutes = def.PollIntervalMinutes
	}
	if s.AITemperature < 0 || s.AITemperature > 2 {
		s.AITemperature = def.AITemperature
	}
	return s
}

// Snapshot bundles the settings row with the threshold table for one run.
type Snapshot struct {
	Settings Settings
	SLA      sla.Config
}

// workdaysFromCSV parses "1,2,3,4,5" (time.Weekday ordinals) as stored in the
// settings row.
func workdaysFromCSV(value string) []time.Weekday {
	var result []time.Weekday
	for _, part := range strings.Split(value, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		n, err := strconv.Atoi(trimmed)
		if err != nil || n < 0 || n > 6 {
			continue
		}
		result = append(result, time.Weekday(n))
	}
	return result
}

func workdaysToCSV(days []time.Weekday) string {
	parts := make([]string, 0, len(days))
	for _, day := range days {
		parts = append(parts, strconv.Itoa(int(day)))
	}
	return strings.Join(parts, ",")
}
