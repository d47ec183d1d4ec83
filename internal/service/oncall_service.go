package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/config"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

// OnCallService manages escalation policies and on-call schedules
type OnCallService struct {
	repo *repository.OnCallRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewOnCallService creates a new on-call service
func NewOnCallService(repo *repository.OnCallRepository, log *zap.Logger) *OnCallService {
	return &OnCallService{repo: repo, log: log, now: time.Now}
}

// ValidatePolicy checks a policy before it is stored
func ValidatePolicy(p *models.EscalationPolicy) error {
	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidPolicy)
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidPolicy, p.Severity)
	}
	if len(p.AppliesTo) == 0 {
		return fmt.Errorf("%w: appliesTo is empty", ErrInvalidPolicy)
	}
	for _, typ := range p.AppliesTo {
		if !typ.Valid() {
			return fmt.Errorf("%w: unknown incident type %q", ErrInvalidPolicy, typ)
		}
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", ErrInvalidPolicy)
	}
	for i, step := range p.Steps {
		if step.AfterMinutes < 0 {
			return fmt.Errorf("%w: step %d has negative afterMinutes", ErrInvalidPolicy, i)
		}
		if !step.Target.Valid() {
			return fmt.Errorf("%w: step %d has unknown target %q", ErrInvalidPolicy, i, step.Target)
		}
	}
	if p.SuppressionWindowMinutes < 0 {
		return fmt.Errorf("%w: suppressionWindowMinutes must not be negative", ErrInvalidPolicy)
	}
	return nil
}

// ValidateSchedule checks a schedule; an empty timezone becomes UTC
func ValidateSchedule(s *models.OnCallSchedule) error {
	s.ID = strings.TrimSpace(s.ID)
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSchedule)
	}
	if strings.TrimSpace(s.Team) == "" {
		return fmt.Errorf("%w: team is required", ErrInvalidSchedule)
	}
	if strings.TrimSpace(s.Primary) == "" {
		return fmt.Errorf("%w: primary is required", ErrInvalidSchedule)
	}
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}
	if s.EffectiveFrom.IsZero() {
		return fmt.Errorf("%w: effectiveFrom is required", ErrInvalidSchedule)
	}
	return nil
}

// PutPolicy validates and stores a policy
func (s *OnCallService) PutPolicy(ctx context.Context, p models.EscalationPolicy) (*models.EscalationPolicy, error) {
	if err := ValidatePolicy(&p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.PutPolicy(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPolicies returns all policies ordered by id
func (s *OnCallService) ListPolicies(ctx context.Context) ([]models.EscalationPolicy, error) {
	return s.repo.ListPolicies(ctx)
}

// PutSchedule validates and stores a schedule
func (s *OnCallService) PutSchedule(ctx context.Context, sched models.OnCallSchedule) (*models.OnCallSchedule, error) {
	if err := ValidateSchedule(&sched); err != nil {
		return nil, err
	}
	sched.EffectiveFrom = sched.EffectiveFrom.UTC()
	sched.UpdatedAt = s.now().UTC()
	if err := s.repo.PutSchedule(ctx, &sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListSchedules returns all schedules ordered by id
func (s *OnCallService) ListSchedules(ctx context.Context) ([]models.OnCallSchedule, error) {
	return s.repo.ListSchedules(ctx)
}

// Seed stores every policy and schedule of a seed file. It stops at the
// first invalid entry; entries before it stay written.
func (s *OnCallService) Seed(ctx context.Context, seed *config.OnCallSeed) (policies, schedules int, err error) {
	for _, p := range seed.Policies {
		if _, err := s.PutPolicy(ctx, p); err != nil {
			return policies, schedules, fmt.Errorf("policy %q: %w", p.ID, err)
		}
		policies++
	}
	for _, sched := range seed.Schedules {
		if _, err := s.PutSchedule(ctx, sched); err != nil {
			return policies, schedules, fmt.Errorf("schedule %q: %w", sched.ID, err)
		}
		schedules++
	}
	s.log.Info("on-call seed applied", zap.Int("policies", policies), zap.Int("schedules", schedules))
	return policies, schedules, nil
}
