package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// OnCallRepository stores escalation policies and on-call schedules
type OnCallRepository struct {
	kv KV
}

// NewOnCallRepository creates a new on-call repository
func NewOnCallRepository(kv KV) *OnCallRepository {
	return &OnCallRepository{kv: kv}
}

// PutPolicy creates or replaces a policy
func (r *OnCallRepository) PutPolicy(ctx context.Context, p *models.EscalationPolicy) error {
	if err := putJSON(ctx, r.kv, keyPolicy+p.ID, p, 0); err != nil {
		return fmt.Errorf("failed to put policy: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keyPolicyIndex, p.ID, score(p.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to index policy: %w", err)
	}
	return nil
}

// GetPolicy returns a policy by id, nil if absent or malformed
func (r *OnCallRepository) GetPolicy(ctx context.Context, id string) (*models.EscalationPolicy, error) {
	p, _, err := getJSON[models.EscalationPolicy](ctx, r.kv, keyPolicy+id)
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	if p == nil || !validPolicy(p) || p.ID != id {
		return nil, nil
	}
	return p, nil
}

// ListPolicies returns every readable policy ordered by id
func (r *OnCallRepository) ListPolicies(ctx context.Context) ([]models.EscalationPolicy, error) {
	ids, err := r.kv.ZRevRange(ctx, keyPolicyIndex, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	policies := make([]models.EscalationPolicy, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetPolicy(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			policies = append(policies, *p)
		}
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
	return policies, nil
}

// PutSchedule creates or replaces a schedule
func (r *OnCallRepository) PutSchedule(ctx context.Context, s *models.OnCallSchedule) error {
	if err := putJSON(ctx, r.kv, keySchedule+s.ID, s, 0); err != nil {
		return fmt.Errorf("failed to put schedule: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keyScheduleIndex, s.ID, score(s.UpdatedAt)); err != nil {
		return fmt.Errorf("failed to index schedule: %w", err)
	}
	return nil
}

// GetSchedule returns a schedule by id, nil if absent or malformed
func (r *OnCallRepository) GetSchedule(ctx context.Context, id string) (*models.OnCallSchedule, error) {
	s, _, err := getJSON[models.OnCallSchedule](ctx, r.kv, keySchedule+id)
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	if s == nil || s.ID == "" || s.ID != id {
		return nil, nil
	}
	return s, nil
}

// ListSchedules returns every readable schedule ordered by id
func (r *OnCallRepository) ListSchedules(ctx context.Context) ([]models.OnCallSchedule, error) {
	ids, err := r.kv.ZRevRange(ctx, keyScheduleIndex, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	schedules := make([]models.OnCallSchedule, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSchedule(ctx, id)
		if err != nil {
			return nil, err
		}
		if s != nil {
			schedules = append(schedules, *s)
		}
	}
	sort.Slice(schedules, func(i, j int) bool { return schedules[i].ID < schedules[j].ID })
	return schedules, nil
}

func validPolicy(p *models.EscalationPolicy) bool {
	if p.ID == "" || !p.Severity.Valid() {
		return false
	}
	for _, step := range p.Steps {
		if !step.Target.Valid() || step.AfterMinutes < 0 {
			return false
		}
	}
	return true
}
