package opportunity

import "testing"

func TestIsMonitored(t *testing.T) {
	monitored := []Status{StatusPendingAppointment, StatusNotVisiting, StatusAppointed}
	for _, s := range monitored {
		if !s.IsMonitored() {
			t.Fatalf("expected %s to be monitored", s)
		}
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, Status("unknown")} {
		if s.IsMonitored() {
			t.Fatalf("expected %s not to be monitored", s)
		}
	}
}

func TestComputeStats(t *testing.T) {
	opps := []Opportunity{
		{Status: StatusPendingAppointment, Violation: true, Overdue: true, EscalationLevel: 1},
		{Status: StatusPendingAppointment, Violation: true},
		{Status: StatusAppointed},
		{Status: StatusCompleted},
	}

	stats := ComputeStats(opps)
	if stats.Total != 4 || stats.Violations != 2 || stats.Overdue != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.ViolationRate != 0.5 || stats.OverdueRate != 0.25 {
		t.Fatalf("unexpected rates %+v", stats)
	}
	if stats.ByStatus[StatusPendingAppointment] != 2 {
		t.Fatalf("unexpected status counts %+v", stats.ByStatus)
	}
}

func TestComputeStatsEmptySnapshot(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.Total != 0 || stats.ViolationRate != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestEscalationsAndGroupByOrganization(t *testing.T) {
	opps := []Opportunity{
		{OrderNo: "GD0001", Organization: "North", EscalationLevel: 1},
		{OrderNo: "GD0002", Organization: "North"},
		{OrderNo: "GD0003", Organization: "South", EscalationLevel: 2},
	}

	esc := Escalations(opps)
	if len(esc) != 2 {
		t.Fatalf("expected 2 escalating orders, got %d", len(esc))
	}

	groups := GroupByOrganization(opps)
	if len(groups["North"]) != 2 || len(groups["South"]) != 1 {
		t.Fatalf("unexpected grouping %+v", groups)
	}
}
