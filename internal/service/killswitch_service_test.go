package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func TestKillSwitchTransitionsAreAudited(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if got := e.killSwitch.Mode(ctx); got != models.KillSwitchCustomerReadEnabled {
		t.Fatalf("default mode = %s", got)
	}

	tr, err := e.killSwitch.SetMode(ctx, models.KillSwitchOff, "ops-1", "gps vendor outage")
	if err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if tr.Prev != models.KillSwitchCustomerReadEnabled || tr.Next != models.KillSwitchOff || tr.Actor != "ops-1" {
		t.Fatalf("transition = %+v", tr)
	}
	if got := testutil.ToFloat64(e.metrics.KillSwitchState); got != 0 {
		t.Fatalf("state gauge = %v, want 0", got)
	}

	e.clock.Advance(time.Minute)
	if _, err := e.killSwitch.SetMode(ctx, models.KillSwitchCustomerReadEnabled, "ops-2", "vendor recovered"); err != nil {
		t.Fatalf("set mode: %v", err)
	}

	state, err := e.killSwitch.State(ctx, 10)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Mode != models.KillSwitchCustomerReadEnabled || len(state.RecentTransitions) != 2 {
		t.Fatalf("state = %+v", state)
	}
	if state.RecentTransitions[0].Actor != "ops-2" {
		t.Fatalf("transitions not newest first: %+v", state.RecentTransitions)
	}
}

func TestKillSwitchRejectsUnknownMode(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.killSwitch.SetMode(context.Background(), "PANIC", "ops-1", "why not"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("err = %v", err)
	}
}

func TestKillSwitchTogglesRateLimited(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	modes := []models.KillSwitchMode{models.KillSwitchOff, models.KillSwitchIngestOnly, models.KillSwitchCustomerReadEnabled}
	for _, m := range modes {
		if _, err := e.killSwitch.SetMode(ctx, m, "ops-1", "flapping"); err != nil {
			t.Fatalf("set %s: %v", m, err)
		}
	}
	_, err := e.killSwitch.SetMode(ctx, models.KillSwitchOff, "ops-1", "one too many")
	var limited *RateLimitedError
	if !errors.As(err, &limited) || limited.RetryAfter <= 0 {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if got := e.killSwitch.Mode(ctx); got != models.KillSwitchCustomerReadEnabled {
		t.Fatalf("rate limited toggle changed mode to %s", got)
	}
}
