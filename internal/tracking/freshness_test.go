package tracking

import (
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func TestComputeFreshnessState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		lastUpdatedAt string
		stale         int
		offline       int
		want          models.FreshnessState
	}{
		{"documented example", "2025-12-31T23:58:30Z", 60, 300, models.FreshnessStale},
		{"just updated", "2026-01-01T00:00:00Z", 60, 300, models.FreshnessLive},
		{"exactly stale threshold is live", "2025-12-31T23:59:00Z", 60, 300, models.FreshnessLive},
		{"exactly offline threshold is stale", "2025-12-31T23:55:00Z", 60, 300, models.FreshnessStale},
		{"past offline threshold", "2025-12-31T23:54:59Z", 60, 300, models.FreshnessOffline},
		{"unparsable", "yesterday-ish", 60, 300, models.FreshnessOffline},
		{"empty", "", 60, 300, models.FreshnessOffline},
		{"offline clamped up to stale", "2025-12-31T23:59:30Z", 60, 10, models.FreshnessLive},
		{"zero stale clamps to one second", "2025-12-31T23:59:58Z", 0, 0, models.FreshnessOffline},
		{"future timestamp is live", "2026-01-01T00:01:00Z", 60, 300, models.FreshnessLive},
		{"fractional seconds", "2025-12-31T23:58:59.500Z", 60, 300, models.FreshnessStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeFreshnessState(tt.lastUpdatedAt, now, tt.stale, tt.offline)
			if got != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestComputeFreshnessStateIsPure(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := ComputeFreshnessState("2025-12-31T23:58:30Z", now, 60, 300)
	for i := 0; i < 10; i++ {
		if got := ComputeFreshnessState("2025-12-31T23:58:30Z", now, 60, 300); got != first {
			t.Fatalf("result changed between calls: %s vs %s", first, got)
		}
	}
}

func TestThresholdsClamp(t *testing.T) {
	got := Thresholds{StaleAfterSeconds: 100000, OfflineAfterSeconds: -5}.Clamp()
	if got.StaleAfterSeconds != 86400 || got.OfflineAfterSeconds != 86400 {
		t.Fatalf("unexpected clamp: %+v", got)
	}
}

func TestRefreshIgnoresStoredState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &models.TrackingProjection{LastUpdatedAt: "2025-12-31T23:40:00Z", FreshnessState: models.FreshnessLive}
	Refresh(p, now, Thresholds{StaleAfterSeconds: 30, OfflineAfterSeconds: 120})
	if p.FreshnessState != models.FreshnessOffline {
		t.Fatalf("expected recomputed OFFLINE, got %s", p.FreshnessState)
	}
}
