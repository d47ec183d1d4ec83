package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

func TestTimelineAppendDedupes(t *testing.T) {
	kv, clock := openTestKV(t)
	repo := NewTimelineRepository(kv)
	ctx := context.Background()
	now := clock.Now()

	note := &models.IncidentTimelineEntry{ID: "tl_1", IncidentID: "inc_1", Type: models.TimelineNote, At: now, Actor: "ops", Text: "looking"}
	if ok, err := repo.Append(ctx, note); err != nil || !ok {
		t.Fatalf("append: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.Append(ctx, note); err != nil || ok {
		t.Fatalf("duplicate append: ok=%v err=%v", ok, err)
	}

	detected := &models.IncidentTimelineEntry{ID: "tl_0", IncidentID: "inc_1", Type: models.TimelineDetected, At: now.Add(-time.Minute), Actor: "system"}
	if _, err := repo.Append(ctx, detected); err != nil {
		t.Fatalf("append detected: %v", err)
	}

	entries, err := repo.List(ctx, "inc_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Type != models.TimelineDetected || entries[1].Type != models.TimelineNote {
		t.Fatalf("entries not oldest first: %+v", entries)
	}

	other, _ := repo.List(ctx, "inc_2")
	if len(other) != 0 {
		t.Fatalf("timelines leaked across incidents")
	}
}
