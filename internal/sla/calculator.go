// Package sla computes business-time elapsed durations and threshold flags
// for opportunities. Everything here is pure and side-effect free so it can
// be re-invoked as time advances without double-counting.
package sla

import (
	"time"

	"slamonitor_backend/internal/opportunity"
)

// Calendar describes the business-time window. Time outside the configured
// hours or on non-workdays does not accrue.
type Calendar struct {
	StartHour int // inclusive, 0-23
	EndHour   int // exclusive, 1-24
	Workdays  map[time.Weekday]bool
}

// Valid reports whether the calendar describes a non-empty business window.
func (c Calendar) Valid() bool {
	if c.StartHour < 0 || c.EndHour > 24 || c.StartHour >= c.EndHour {
		return false
	}
	for _, on := range c.Workdays {
		if on {
			return true
		}
	}
	return false
}

// Contains reports whether t falls inside the business window.
func (c Calendar) Contains(t time.Time) bool {
	if !c.Workdays[t.Weekday()] {
		return false
	}
	return t.Hour() >= c.StartHour && t.Hour() < c.EndHour
}

// Thresholds holds the reminder and escalation tiers for one status, in
// business hours.
type Thresholds struct {
	ReminderHours   float64
	EscalationHours float64
}

// Config is the externally configured threshold table plus calendar.
type Config struct {
	Calendar Calendar
	ByStatus map[opportunity.Status]Thresholds
	Default  Thresholds
}

// ThresholdsFor returns the threshold tier for a status, falling back to the
// default tier for statuses without an explicit row.
func (c Config) ThresholdsFor(status opportunity.Status) Thresholds {
	if t, ok := c.ByStatus[status]; ok {
		return t
	}
	return c.Default
}

// Assessment is the derived SLA view of one opportunity at one instant.
type Assessment struct {
	ElapsedHours    float64
	ReminderHours   float64
	EscalationHours float64
	Violation       bool
	Overdue         bool
	EscalationLevel int
}

// BusinessElapsed returns the duration between from and to that falls inside
// the calendar's business window.
func BusinessElapsed(from, to time.Time, cal Calendar) time.Duration {
	if !to.After(from) || !cal.Valid() {
		return 0
	}

	var total time.Duration
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	for !day.After(to) {
		if cal.Workdays[day.Weekday()] {
			windowStart := day.Add(time.Duration(cal.StartHour) * time.Hour)
			windowEnd := day.Add(time.Duration(cal.EndHour) * time.Hour)

			start := windowStart
			if from.After(start) {
				start = from
			}
			end := windowEnd
			if to.Before(end) {
				end = to
			}
			if end.After(start) {
				total += end.Sub(start)
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// Evaluate computes the SLA assessment for one opportunity. Statuses outside
// the monitored set never violate regardless of age.
func Evaluate(opp opportunity.Opportunity, now time.Time, cfg Config) Assessment {
	thresholds := cfg.ThresholdsFor(opp.Status)
	assessment := Assessment{
		ReminderHours:   thresholds.ReminderHours,
		EscalationHours: thresholds.EscalationHours,
	}

	if !opp.Status.IsMonitored() {
		return assessment
	}

	elapsed := BusinessElapsed(opp.CreatedAt, now, cfg.Calendar)
	assessment.ElapsedHours = elapsed.Hours()

	if thresholds.ReminderHours > 0 && assessment.ElapsedHours >= thresholds.ReminderHours {
		assessment.Violation = true
	}
	if thresholds.EscalationHours > 0 && assessment.ElapsedHours >= thresholds.EscalationHours {
		assessment.Overdue = true
		assessment.EscalationLevel = int(assessment.ElapsedHours / thresholds.EscalationHours)
	}

	return assessment
}

// Annotate returns a copy of the snapshot with derived fields filled in.
func Annotate(opps []opportunity.Opportunity, now time.Time, cfg Config) []opportunity.Opportunity {
	results := make([]opportunity.Opportunity, len(opps))
	for i, opp := range opps {
		a := Evaluate(opp, now, cfg)
		opp.ElapsedHours = a.ElapsedHours
		opp.ReminderHours = a.ReminderHours
		opp.EscalationHours = a.EscalationHours
		opp.Violation = a.Violation
		opp.Overdue = a.Overdue
		opp.EscalationLevel = a.EscalationLevel
		results[i] = opp
	}
	return results
}
