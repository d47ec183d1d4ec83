package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func TestLearningRunIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	inc := openIncident(t, e, "order-1")
	if _, err := e.incidents.Close(ctx, inc.ID, "ops-1", "false_positive"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := e.health.PublishETAError(ctx, 9000, 25); err != nil {
		t.Fatalf("publish eta: %v", err)
	}

	asOf := e.clock.Now()
	first, err := e.learning.Run(ctx, asOf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(first.Insights) != 4 || first.Stored != 4 {
		t.Fatalf("first run = %+v", first)
	}

	second, err := e.learning.Run(ctx, asOf)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if second.Stored != 0 || second.Existing != 4 {
		t.Fatalf("rerun stored %d new insights", second.Stored)
	}
	for i := range first.Insights {
		if first.Insights[i].ID != second.Insights[i].ID {
			t.Fatalf("insight %d id changed: %s != %s", i, first.Insights[i].ID, second.Insights[i].ID)
		}
	}
	if got := testutil.ToFloat64(e.metrics.LearningInsights.WithLabelValues(string(models.DomainETA))); got != 1 {
		t.Fatalf("eta insights stored = %v", got)
	}

	eta, err := e.learning.List(ctx, models.DomainETA, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(eta) != 1 || eta[0].SampleSize != 25 || eta[0].Confidence != models.InsightConfidenceMedium {
		t.Fatalf("eta insights = %+v", eta)
	}
}

func TestLearningNeverTouchesPolicies(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	seedPolicy(t, e, 10, models.EscalationStep{AfterMinutes: 0, Target: models.TargetOnCallPrimary})
	openIncident(t, e, "order-1")
	if _, err := e.escalation.Run(ctx, e.clock.Now()); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	before, err := e.oncall.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("list policies: %v", err)
	}
	e.clock.Advance(time.Hour)
	if _, err := e.learning.Run(ctx, e.clock.Now()); err != nil {
		t.Fatalf("learn: %v", err)
	}
	after, err := e.oncall.ListPolicies(ctx)
	if err != nil {
		t.Fatalf("list policies: %v", err)
	}
	if len(before) != 1 || len(after) != 1 || !after[0].UpdatedAt.Equal(before[0].UpdatedAt) ||
		after[0].SuppressionWindowMinutes != before[0].SuppressionWindowMinutes {
		t.Fatalf("learning changed policies: %+v -> %+v", before, after)
	}

	snap, err := e.learning.BuildSnapshot(ctx, e.clock.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.LastEscalationRun == nil || snap.LastEscalationRun.Emitted != 1 {
		t.Fatalf("last run missing from snapshot: %+v", snap.LastEscalationRun)
	}
}

func TestParseInsightDomain(t *testing.T) {
	tests := map[string]models.InsightDomain{
		"eta":         models.DomainETA,
		"incidents":   models.DomainIncident,
		"escalations": models.DomainEscalation,
		"killswitch":  models.DomainKillSwitch,
	}
	for segment, want := range tests {
		got, err := ParseInsightDomain(segment)
		if err != nil || got != want {
			t.Fatalf("ParseInsightDomain(%q) = %s, %v", segment, got, err)
		}
	}
	if _, err := ParseInsightDomain("ETA"); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("err = %v", err)
	}
}
