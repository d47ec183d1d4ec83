package repository

import (
	"context"
	"fmt"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// SLORepository stores hourly SLO snapshots by bucket start
type SLORepository struct {
	kv KV
}

// NewSLORepository creates a new SLO repository
func NewSLORepository(kv KV) *SLORepository {
	return &SLORepository{kv: kv}
}

// Put writes the snapshot for its bucket, replacing any earlier rollup of the same hour
func (r *SLORepository) Put(ctx context.Context, s *models.SLOSnapshot) error {
	member := unixKey(s.BucketStart)
	if err := putJSON(ctx, r.kv, keySLOSnapshot+member, s, 0); err != nil {
		return fmt.Errorf("failed to put slo snapshot: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keySLOIndex, member, score(s.BucketStart)); err != nil {
		return fmt.Errorf("failed to index slo snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot, nil if none
func (r *SLORepository) Latest(ctx context.Context) (*models.SLOSnapshot, error) {
	list, err := r.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// List returns snapshots newest first
func (r *SLORepository) List(ctx context.Context, limit int) ([]models.SLOSnapshot, error) {
	members, err := r.kv.ZRevRange(ctx, keySLOIndex, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list slo snapshots: %w", err)
	}
	snapshots := make([]models.SLOSnapshot, 0, len(members))
	for _, m := range members {
		s, _, err := getJSON[models.SLOSnapshot](ctx, r.kv, keySLOSnapshot+m)
		if err != nil {
			return nil, fmt.Errorf("failed to get slo snapshot: %w", err)
		}
		if s == nil || s.BucketStart.IsZero() {
			continue
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, nil
}
