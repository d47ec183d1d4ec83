package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func testDetection(id string, typ models.IncidentType, sev models.Severity) models.DetectedIncident {
	return models.DetectedIncident{
		Type:        typ,
		Severity:    sev,
		Scope:       models.ScopeOrder,
		Subject:     "order-1",
		IncidentKey: string(typ) + ":ORDER:order-1",
		IncidentID:  id,
		Evidence:    map[string]any{"ageSeconds": 10},
	}
}

func TestIncidentUpsertIsIdempotent(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewIncidentRepository(kv, 100)
	ctx := context.Background()
	first := clock.Now()

	inc, created, err := repo.Upsert(ctx, testDetection("inc_a", models.IncidentTrackingStale, models.SeverityWarn), first)
	if err != nil || !created {
		t.Fatalf("first upsert: created=%v err=%v", created, err)
	}

	d := testDetection("inc_a", models.IncidentTrackingStale, models.SeverityWarn)
	d.Evidence = map[string]any{"ageSeconds": 70}
	inc, created, err = repo.Upsert(ctx, d, first.Add(time.Minute))
	if err != nil || created {
		t.Fatalf("second upsert: created=%v err=%v", created, err)
	}
	if !inc.DetectedAt.Equal(first) {
		t.Fatalf("detectedAt moved: %v", inc.DetectedAt)
	}
	if !inc.LastSeenAt.Equal(first.Add(time.Minute)) {
		t.Fatalf("lastSeenAt not advanced: %v", inc.LastSeenAt)
	}

	list, err := repo.List(ctx, models.IncidentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one incident, got %d", len(list))
	}
	if got := list[0].Evidence["ageSeconds"]; got != float64(70) {
		t.Fatalf("evidence not overwritten: %v", got)
	}
}

func TestIncidentLifecycleIsMonotonic(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewIncidentRepository(kv, 100)
	ctx := context.Background()
	now := clock.Now()

	if _, _, err := repo.Upsert(ctx, testDetection("inc_b", models.IncidentSLABreachRisk, models.SeverityCritical), now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	inc, changed, err := repo.Close(ctx, "inc_b", "ops-1", "resolved", now.Add(time.Minute))
	if err != nil || !changed || inc.Status != models.StatusClosed {
		t.Fatalf("close: changed=%v err=%v inc=%+v", changed, err, inc)
	}

	inc, changed, err = repo.Ack(ctx, "inc_b", "ops-2", now.Add(2*time.Minute))
	if err != nil || changed {
		t.Fatalf("ack after close should be a no-op: changed=%v err=%v", changed, err)
	}
	if inc.Status != models.StatusClosed || inc.AckedAt != nil {
		t.Fatalf("closed incident modified by ack: %+v", inc)
	}

	// re-detection keeps the terminal status
	inc, _, err = repo.Upsert(ctx, testDetection("inc_b", models.IncidentSLABreachRisk, models.SeverityCritical), now.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if inc.Status != models.StatusClosed {
		t.Fatalf("status went backwards: %s", inc.Status)
	}

	if _, changed, _ := repo.Close(ctx, "inc_b", "ops-1", "again", now.Add(4*time.Minute)); changed {
		t.Fatalf("second close should be a no-op")
	}
}

func TestIncidentAckUnknown(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewIncidentRepository(kv, 100)

	inc, changed, err := repo.Ack(context.Background(), "nope", "ops", clock.Now())
	if err != nil || inc != nil || changed {
		t.Fatalf("expected nil result for unknown incident: inc=%v changed=%v err=%v", inc, changed, err)
	}
}

func TestIncidentListFiltersAndSkipsCorrupt(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewIncidentRepository(kv, 100)
	ctx := context.Background()
	now := clock.Now()

	_, _, _ = repo.Upsert(ctx, testDetection("inc_1", models.IncidentTrackingStale, models.SeverityWarn), now)
	_, _, _ = repo.Upsert(ctx, testDetection("inc_2", models.IncidentSLABreachRisk, models.SeverityCritical), now.Add(time.Second))
	_, _, _ = repo.Upsert(ctx, testDetection("inc_3", models.IncidentGPSAnomaly, models.SeverityWarn), now.Add(2*time.Second))
	_, _, _ = repo.Ack(ctx, "inc_3", "ops", now.Add(3*time.Second))

	if err := kv.Set(ctx, keyIncident+"junk", "{not json", 0); err != nil {
		t.Fatalf("set junk: %v", err)
	}
	if err := kv.ZAdd(ctx, keyIncidentIndex, "junk", score(now.Add(time.Hour))); err != nil {
		t.Fatalf("index junk: %v", err)
	}

	all, err := repo.List(ctx, models.IncidentFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "inc_3" {
		t.Fatalf("unexpected list order: %+v", all)
	}

	warn, _ := repo.List(ctx, models.IncidentFilter{Severity: "WARN", Status: "OPEN"})
	if len(warn) != 1 || warn[0].ID != "inc_1" {
		t.Fatalf("unexpected filtered list: %+v", warn)
	}

	limited, _ := repo.List(ctx, models.IncidentFilter{Limit: 2})
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestIncidentIndexIsCapped(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewIncidentRepository(kv, 2)
	ctx := context.Background()

	for i, id := range []string{"inc_x", "inc_y", "inc_z"} {
		if _, _, err := repo.Upsert(ctx, testDetection(id, models.IncidentTrackingStale, models.SeverityWarn), clock.Now().Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	ids, err := kv.ZRevRange(ctx, keyIncidentIndex, 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(ids) != 2 || ids[0] != "inc_z" || ids[1] != "inc_y" {
		t.Fatalf("unexpected index: %v", ids)
	}
}

// racingKV calls between once, right after the first read of key, so a second
// writer lands between the first writer's read and its put.
type racingKV struct {
	KV
	key     string
	between func()
}

func (k *racingKV) Get(ctx context.Context, key string) (string, bool, error) {
	raw, ok, err := k.KV.Get(ctx, key)
	if key == k.key && k.between != nil {
		between := k.between
		k.between = nil
		between()
	}
	return raw, ok, err
}

func TestIncidentConcurrentCloseIsNotOverwritten(t *testing.T) {
	kv, clock := openTestKV(t)
	ctx := context.Background()
	now := clock.Now()
	closer := NewIncidentRepository(kv, 100)

	if _, _, err := closer.Upsert(ctx, testDetection("inc_r", models.IncidentTrackingStale, models.SeverityWarn), now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	racing := &racingKV{KV: kv, key: keyIncident + "inc_r"}
	detector := NewIncidentRepository(racing, 100)

	racing.between = func() {
		if _, _, err := closer.Close(ctx, "inc_r", "ops-1", "resolved", now.Add(time.Minute)); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	inc, created, err := detector.Upsert(ctx, testDetection("inc_r", models.IncidentTrackingStale, models.SeverityWarn), now.Add(2*time.Minute))
	if err != nil || created {
		t.Fatalf("re-detect: created=%v err=%v", created, err)
	}
	if inc.Status != models.StatusClosed || inc.ClosedBy != "ops-1" {
		t.Fatalf("upsert regressed status: %+v", inc)
	}
	if !inc.LastSeenAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("lastSeenAt not advanced: %v", inc.LastSeenAt)
	}

	stored, err := closer.Get(ctx, "inc_r")
	if err != nil || stored.Status != models.StatusClosed {
		t.Fatalf("stored status = %+v, err=%v", stored, err)
	}
}

func TestIncidentAckLosesToConcurrentClose(t *testing.T) {
	kv, clock := openTestKV(t)
	ctx := context.Background()
	now := clock.Now()
	closer := NewIncidentRepository(kv, 100)

	if _, _, err := closer.Upsert(ctx, testDetection("inc_s", models.IncidentSLABreachRisk, models.SeverityCritical), now); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	racing := &racingKV{KV: kv, key: keyIncident + "inc_s"}
	acker := NewIncidentRepository(racing, 100)
	racing.between = func() {
		if _, _, err := closer.Close(ctx, "inc_s", "ops-1", "resolved", now.Add(time.Minute)); err != nil {
			t.Fatalf("close: %v", err)
		}
	}

	inc, changed, err := acker.Ack(ctx, "inc_s", "ops-2", now.Add(2*time.Minute))
	if err != nil || changed {
		t.Fatalf("ack over a concurrent close: changed=%v err=%v", changed, err)
	}
	if inc.Status != models.StatusClosed || inc.AckedAt != nil {
		t.Fatalf("ack result = %+v", inc)
	}

	stored, err := closer.Get(ctx, "inc_s")
	if err != nil || stored.Status != models.StatusClosed || stored.AckedBy != "" {
		t.Fatalf("stored = %+v, err=%v", stored, err)
	}
}
