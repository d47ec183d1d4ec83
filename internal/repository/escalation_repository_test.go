package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func TestClaimStepOnlyOnce(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewEscalationStateRepository(kv, 7*24*time.Hour)
	ctx := context.Background()

	claimed, err := repo.ClaimStep(ctx, "inc_1", "pol_1", 0, clock.Now())
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}
	claimed, err = repo.ClaimStep(ctx, "inc_1", "pol_1", 0, clock.Now())
	if err != nil || claimed {
		t.Fatalf("second claim must lose: claimed=%v err=%v", claimed, err)
	}
	if emitted, _ := repo.StepEmitted(ctx, "inc_1", "pol_1", 0); !emitted {
		t.Fatalf("expected step to be marked emitted")
	}
	if emitted, _ := repo.StepEmitted(ctx, "inc_1", "pol_1", 1); emitted {
		t.Fatalf("other step must be independent")
	}

	// the dedup key outlives a normal suppression window
	clock.Advance(24 * time.Hour)
	if emitted, _ := repo.StepEmitted(ctx, "inc_1", "pol_1", 0); !emitted {
		t.Fatalf("dedup key expired too early")
	}
}

func TestSuppressionWindow(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewEscalationStateRepository(kv, 0)
	ctx := context.Background()
	now := clock.Now()

	if err := repo.Suppress(ctx, "pol_1", "inc_1", now, 0); err != nil {
		t.Fatalf("zero window: %v", err)
	}
	if _, ok, _ := repo.SuppressedUntil(ctx, "pol_1", "inc_1"); ok {
		t.Fatalf("zero window must not suppress")
	}

	if err := repo.Suppress(ctx, "pol_1", "inc_1", now, 15*time.Minute); err != nil {
		t.Fatalf("suppress: %v", err)
	}
	until, ok, err := repo.SuppressedUntil(ctx, "pol_1", "inc_1")
	if err != nil || !ok {
		t.Fatalf("expected suppression: ok=%v err=%v", ok, err)
	}
	if !until.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected until: %v", until)
	}

	clock.Advance(16 * time.Minute)
	if _, ok, _ := repo.SuppressedUntil(ctx, "pol_1", "inc_1"); ok {
		t.Fatalf("suppression should have expired")
	}
}

func TestLastRunRoundTrip(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewEscalationStateRepository(kv, 0)
	ctx := context.Background()

	if run, err := repo.LastRun(ctx); err != nil || run != nil {
		t.Fatalf("expected no run: run=%v err=%v", run, err)
	}

	run := &models.EscalationRun{RunID: "run-1", At: clock.Now(), Emitted: 1}
	if err := repo.SaveLastRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.LastRun(ctx)
	if err != nil || got == nil || got.RunID != "run-1" || got.Emitted != 1 {
		t.Fatalf("unexpected run: %+v err=%v", got, err)
	}
}
