package repository

import (
	"context"
	"fmt"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// TimelineRepository is the append-only incident audit log
type TimelineRepository struct {
	kv KV
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(kv KV) *TimelineRepository {
	return &TimelineRepository{kv: kv}
}

// Append stores entry unless an entry with the same id already exists.
// appended is false for duplicates, which are not errors.
func (r *TimelineRepository) Append(ctx context.Context, entry *models.IncidentTimelineEntry) (bool, error) {
	raw, err := encodeJSON(entry)
	if err != nil {
		return false, err
	}
	appended, err := r.kv.SetNX(ctx, keyTimelineEntry+entry.ID, raw, 0)
	if err != nil {
		return false, fmt.Errorf("failed to append timeline entry: %w", err)
	}
	// the index write is repeated for duplicates so a crash between the two writes heals
	if err := r.kv.ZAdd(ctx, keyTimeline+entry.IncidentID, entry.ID, score(entry.At)); err != nil {
		return false, fmt.Errorf("failed to index timeline entry: %w", err)
	}
	return appended, nil
}

// List returns the incident's entries oldest first
func (r *TimelineRepository) List(ctx context.Context, incidentID string) ([]models.IncidentTimelineEntry, error) {
	ids, err := r.kv.ZRevRange(ctx, keyTimeline+incidentID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}

	entries := make([]models.IncidentTimelineEntry, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		e, _, err := getJSON[models.IncidentTimelineEntry](ctx, r.kv, keyTimelineEntry+ids[i])
		if err != nil {
			return nil, fmt.Errorf("failed to get timeline entry: %w", err)
		}
		if e == nil || e.IncidentID != incidentID {
			continue
		}
		entries = append(entries, *e)
	}
	return entries, nil
}
