package escalation

import (
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

var testNow = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func testIncident(age time.Duration) models.Incident {
	return models.Incident{
		ID:         "inc_1",
		Type:       models.IncidentTrackingStale,
		Severity:   models.SeverityWarn,
		Scope:      models.ScopeOrder,
		Subject:    "order-1",
		Status:     models.StatusOpen,
		DetectedAt: testNow.Add(-age),
		LastSeenAt: testNow,
	}
}

func testPolicy() models.EscalationPolicy {
	return models.EscalationPolicy{
		ID:        "pol_warn",
		AppliesTo: []models.IncidentType{models.IncidentTrackingStale, models.IncidentGPSAnomaly},
		Severity:  models.SeverityWarn,
		Steps: []models.EscalationStep{
			{AfterMinutes: 10, Target: models.TargetOnCallSecondary},
			{AfterMinutes: 0, Target: models.TargetOnCallPrimary},
		},
	}
}

func TestMatchesRequiresTypeAndExactSeverity(t *testing.T) {
	inc := testIncident(time.Minute)
	p := testPolicy()
	if !Matches(p, inc) {
		t.Fatalf("expected match")
	}

	p.Severity = models.SeverityCritical
	if Matches(p, inc) {
		t.Fatalf("severity must match exactly")
	}

	p = testPolicy()
	p.AppliesTo = []models.IncidentType{models.IncidentStreamLag}
	if Matches(p, inc) {
		t.Fatalf("type must be listed")
	}
}

func TestMatchPoliciesOrderedByID(t *testing.T) {
	a := testPolicy()
	a.ID = "b"
	b := testPolicy()
	b.ID = "a"
	c := testPolicy()
	c.ID = "c"
	c.Severity = models.SeverityCritical

	got := MatchPolicies([]models.EscalationPolicy{a, b, c}, testIncident(0))
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected match list: %+v", got)
	}
}

func TestOrderedSteps(t *testing.T) {
	p := testPolicy()
	p.Steps = append(p.Steps, models.EscalationStep{AfterMinutes: 10, Target: models.TargetOpsManager})

	steps := OrderedSteps(p)
	want := []models.EscalationTarget{models.TargetOnCallPrimary, models.TargetOnCallSecondary, models.TargetOpsManager}
	for i, s := range steps {
		if s.Index != i || s.Step.Target != want[i] {
			t.Fatalf("step %d: got %+v", i, s)
		}
	}
	if p.Steps[0].AfterMinutes != 10 {
		t.Fatalf("policy steps were reordered in place")
	}
}

func TestPlanMarksOnlyDueSteps(t *testing.T) {
	decisions := Plan(testIncident(5*time.Minute), testPolicy(), testNow)
	if len(decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(decisions))
	}

	due := 0
	for _, d := range decisions {
		if d.ShouldEscalate {
			due++
			if d.StepIndex != 0 || d.Action != "" {
				t.Fatalf("unexpected due decision: %+v", d)
			}
		} else if d.Action != models.ActionNotDue {
			t.Fatalf("not-due step without NOT_DUE: %+v", d)
		}
	}
	if due != 1 {
		t.Fatalf("expected exactly one due step, got %d", due)
	}
	if decisions[0].AgeMinutes != 5 {
		t.Fatalf("unexpected age %v", decisions[0].AgeMinutes)
	}
}

func TestAgeNeverNegative(t *testing.T) {
	if age := AgeMinutes(testIncident(-time.Minute), testNow); age != 0 {
		t.Fatalf("expected 0, got %v", age)
	}
}

func TestResolveTarget(t *testing.T) {
	schedules := []models.OnCallSchedule{
		{ID: "old", Team: "tracking", Primary: "alice", Secondary: "bob", EffectiveFrom: testNow.Add(-48 * time.Hour)},
		{ID: "current", Team: "tracking", Primary: "carol", EffectiveFrom: testNow.Add(-time.Hour)},
		{ID: "future", Team: "tracking", Primary: "dave", EffectiveFrom: testNow.Add(time.Hour)},
		{ID: "other", Team: "payments", Primary: "erin", EffectiveFrom: testNow.Add(-time.Minute)},
	}

	s := ActiveSchedule(schedules, "tracking", testNow)
	if s == nil || s.ID != "current" {
		t.Fatalf("unexpected schedule: %+v", s)
	}

	primary := ResolveTarget(models.TargetOnCallPrimary, s, "")
	if primary.User == nil || *primary.User != "carol" || primary.ScheduleID != "current" {
		t.Fatalf("unexpected primary: %+v", primary)
	}

	secondary := ResolveTarget(models.TargetOnCallSecondary, s, "")
	if secondary.User != nil {
		t.Fatalf("empty slot should resolve to nil user")
	}

	manager := ResolveTarget(models.TargetOpsManager, nil, "mgr")
	if manager.User == nil || *manager.User != "mgr" {
		t.Fatalf("expected manager fallback: %+v", manager)
	}

	if got := ActiveSchedule(schedules, "unknown-team", testNow); got == nil || got.ID != "other" {
		t.Fatalf("expected fallback to any team: %+v", got)
	}
	if got := ActiveSchedule(nil, "", testNow); got != nil {
		t.Fatalf("expected nil")
	}
}
