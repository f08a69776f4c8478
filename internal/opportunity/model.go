package opportunity

import (
	"time"
)

// Status is the lifecycle state of a service-work order as reported by the
// external system.
type Status string

const (
	StatusPendingAppointment Status = "pending_appointment"
	StatusNotVisiting        Status = "temporarily_not_visiting"
	StatusAppointed          Status = "appointed"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// IsMonitored reports whether orders in this status accrue SLA time.
func (s Status) IsMonitored() bool {
	switch s {
	case StatusPendingAppointment, StatusNotVisiting, StatusAppointed:
		return true
	default:
		return false
	}
}

// Opportunity is a snapshot record of one service-work item. It is recreated
// wholesale on every fetch cycle; only cached copies persist between cycles.
type Opportunity struct {
	OrderNo      string
	CustomerName string
	Address      string
	Organization string
	Supervisor   string
	Status       Status
	CreatedAt    time.Time

	// Derived fields, filled in by the SLA calculator. Never settable
	// independently of Status and CreatedAt.
	ElapsedHours    float64
	ReminderHours   float64
	EscalationHours float64
	Violation       bool
	Overdue         bool
	EscalationLevel int
}

// Stats aggregates a snapshot for the ops API and run context.
type Stats struct {
	Total         int            `json:"total"`
	Violations    int            `json:"violations"`
	Overdue       int            `json:"overdue"`
	ViolationRate float64        `json:"violationRate"`
	OverdueRate   float64        `json:"overdueRate"`
	ByStatus      map[Status]int `json:"byStatus"`
}

// Overdue returns the opportunities whose overdue flag is set.
// Pure projection over an annotated snapshot; nothing is cached.
func Overdue(opps []Opportunity) []Opportunity {
	var result []Opportunity
	for _, o := range opps {
		if o.Overdue {
			result = append(result, o)
		}
	}
	return result
}

// Escalations returns the opportunities with escalation level > 0.
func Escalations(opps []Opportunity) []Opportunity {
	var result []Opportunity
	for _, o := range opps {
		if o.EscalationLevel > 0 {
			result = append(result, o)
		}
	}
	return result
}

// GroupByOrganization buckets a snapshot by organization name.
func GroupByOrganization(opps []Opportunity) map[string][]Opportunity {
	result := make(map[string][]Opportunity)
	for _, o := range opps {
		result[o.Organization] = append(result[o.Organization], o)
	}
	return result
}

// ComputeStats aggregates counts and rates over an annotated snapshot.
func ComputeStats(opps []Opportunity) Stats {
	stats := Stats{
		Total:    len(opps),
		ByStatus: make(map[Status]int),
	}
	for _, o := range opps {
		stats.ByStatus[o.Status]++
		if o.Violation {
			stats.Violations++
		}
		if o.Overdue {
			stats.Overdue++
		}
	}
	if stats.Total > 0 {
		stats.ViolationRate = float64(stats.Violations) / float64(stats.Total)
		stats.OverdueRate = float64(stats.Overdue) / float64(stats.Total)
	}
	return stats
}
