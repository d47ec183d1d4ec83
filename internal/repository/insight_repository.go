package repository

import (
	"context"
	"fmt"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// InsightRepository is an append-only store of learning insights
type InsightRepository struct {
	kv KV
}

// NewInsightRepository creates a new insight repository
func NewInsightRepository(kv KV) *InsightRepository {
	return &InsightRepository{kv: kv}
}

// PutIfAbsent stores the insight under its content id. Re-storing the same
// content is a no-op and reports stored=false.
func (r *InsightRepository) PutIfAbsent(ctx context.Context, in *models.LearningInsight) (bool, error) {
	raw, err := encodeJSON(in)
	if err != nil {
		return false, fmt.Errorf("failed to encode insight: %w", err)
	}
	stored, err := r.kv.SetNX(ctx, keyInsight+in.ID, raw, 0)
	if err != nil {
		return false, fmt.Errorf("failed to store insight: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keyInsightIndex+string(in.Domain), in.ID, score(in.GeneratedAt)); err != nil {
		return false, fmt.Errorf("failed to index insight: %w", err)
	}
	return stored, nil
}

// Get returns an insight by id, nil if absent
func (r *InsightRepository) Get(ctx context.Context, id string) (*models.LearningInsight, error) {
	in, _, err := getJSON[models.LearningInsight](ctx, r.kv, keyInsight+id)
	if err != nil {
		return nil, fmt.Errorf("failed to get insight: %w", err)
	}
	if in == nil || in.ID != id {
		return nil, nil
	}
	return in, nil
}

// List returns a domain's insights newest first
func (r *InsightRepository) List(ctx context.Context, domain models.InsightDomain, limit int) ([]models.LearningInsight, error) {
	ids, err := r.kv.ZRevRange(ctx, keyInsightIndex+string(domain), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	insights := make([]models.LearningInsight, 0, len(ids))
	for _, id := range ids {
		in, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if in != nil && in.Domain == domain {
			insights = append(insights, *in)
		}
	}
	return insights, nil
}
