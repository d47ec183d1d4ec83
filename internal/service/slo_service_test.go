package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/detection"
	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func slaIncident(t *testing.T, e *testEnv, orderID string) *models.Incident {
	t.Helper()
	key := detection.IncidentKey(models.IncidentSLABreachRisk, models.ScopeOrder, orderID)
	inc, _, err := e.incidentsDB.Upsert(context.Background(), models.DetectedIncident{
		Type:        models.IncidentSLABreachRisk,
		Severity:    models.SeverityCritical,
		Scope:       models.ScopeOrder,
		Subject:     orderID,
		IncidentKey: key,
		IncidentID:  detection.IncidentID(key),
	}, e.clock.Now())
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return inc
}

func TestSLOSnapshot(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if _, err := e.slo.Latest(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("latest before any snapshot err = %v", err)
	}

	e.putProjection(t, "order-1", "rider-1", 10*time.Second, nil)
	e.putProjection(t, "order-2", "rider-2", 20*time.Second, func(p *models.TrackingProjection) {
		p.SLARiskLevel = models.SLARiskHigh
	})
	e.putProjection(t, "order-3", "rider-3", 60*time.Second, nil)
	e.putProjection(t, "order-4", "rider-4", 10*time.Minute, nil)

	if err := e.health.PublishETAError(ctx, 600, 4); err != nil {
		t.Fatalf("publish eta: %v", err)
	}

	saved := slaIncident(t, e, "order-2")
	missed := slaIncident(t, e, "order-5")
	slaIncident(t, e, "order-6")
	if _, err := e.incidents.Close(ctx, saved.ID, "ops-1", "rerouted"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := e.incidents.Close(ctx, missed.ID, "ops-1", SLABreachedReason); err != nil {
		t.Fatalf("close: %v", err)
	}

	e.ingest.Submit(ctx, validRequest(1, e.clock.Now()), "rider-1")

	e.clock.Advance(30 * time.Minute)
	// ages are measured at snapshot time
	snap, err := e.slo.Snapshot(ctx, e.clock.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !snap.BucketStart.Equal(testStart) {
		t.Fatalf("bucket = %v, want %v", snap.BucketStart, testStart)
	}
	if snap.Projections != 4 || snap.Offline != 4 || snap.LiveRatio != 0 {
		t.Fatalf("freshness = %+v", snap)
	}
	if snap.SLARiskHigh != 1 {
		t.Fatalf("sla risk high = %d", snap.SLARiskHigh)
	}
	if snap.ETAMeanAbsErrorSec != 150 || snap.ETASamples != 4 {
		t.Fatalf("eta = %v over %d", snap.ETAMeanAbsErrorSec, snap.ETASamples)
	}
	if snap.SLAIncidents != 3 || snap.SLAPrevented != 1 || snap.SLAPreventionRatio != 0.3333 {
		t.Fatalf("sla prevention = %d/%d (%v)", snap.SLAPrevented, snap.SLAIncidents, snap.SLAPreventionRatio)
	}
	if snap.Ingest[OutcomeAccepted] != 1 || snap.Ingest[OutcomeReceived] != 1 {
		t.Fatalf("ingest counters = %v", snap.Ingest)
	}

	// a second rollup in the same hour replaces the bucket
	e.clock.Advance(10 * time.Minute)
	if _, err := e.slo.Snapshot(ctx, e.clock.Now()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	list, err := e.slo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].GeneratedAt.Equal(testStart.Add(40*time.Minute)) {
		t.Fatalf("list = %+v", list)
	}
}

func TestSLOFreshnessPercentiles(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i, age := range []time.Duration{10 * time.Second, 20 * time.Second, 40 * time.Second} {
		e.putProjection(t, "order-"+string(rune('a'+i)), "rider-1", age, nil)
	}

	snap, err := e.slo.Snapshot(ctx, e.clock.Now())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Live != 2 || snap.Stale != 1 || snap.LiveRatio != 0.6667 {
		t.Fatalf("freshness = %+v", snap)
	}
	if snap.FreshnessAgeP50Sec != 20 || snap.FreshnessAgeP90Sec != 36 {
		t.Fatalf("p50/p90 = %v/%v", snap.FreshnessAgeP50Sec, snap.FreshnessAgeP90Sec)
	}
}
