package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/escalation"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

// EscalationService runs escalation ticks over open incidents
type EscalationService struct {
	incidents       *repository.IncidentRepository
	oncall          *repository.OnCallRepository
	state           *repository.EscalationStateRepository
	timeline        *TimelineService
	scanLimit       int
	managerFallback string
	metrics         *metrics.Metrics
	log             *zap.Logger
}

// NewEscalationService creates a new escalation runner
func NewEscalationService(incidents *repository.IncidentRepository, oncall *repository.OnCallRepository, state *repository.EscalationStateRepository,
	timeline *TimelineService, scanLimit int, managerFallback string, m *metrics.Metrics, log *zap.Logger) *EscalationService {
	if scanLimit <= 0 {
		scanLimit = 200
	}
	return &EscalationService{
		incidents:       incidents,
		oncall:          oncall,
		state:           state,
		timeline:        timeline,
		scanLimit:       scanLimit,
		managerFallback: managerFallback,
		metrics:         m,
		log:             log,
	}
}

// Run evaluates every OPEN incident against the matching policies at now.
// Per policy at most one step is emitted; the dedup key claimed through
// SetNX makes concurrent runs converge on a single emission per step.
func (s *EscalationService) Run(ctx context.Context, now time.Time) (*models.EscalationRun, error) {
	open, err := s.incidents.List(ctx, models.IncidentFilter{Status: string(models.StatusOpen), Limit: s.scanLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	policies, err := s.oncall.ListPolicies(ctx)
	if err != nil {
		return nil, err
	}
	schedules, err := s.oncall.ListSchedules(ctx)
	if err != nil {
		return nil, err
	}

	run := &models.EscalationRun{
		RunID:            uuid.NewString(),
		At:               now.UTC(),
		IncidentsScanned: len(open),
		Decisions:        []models.EscalationDecision{},
	}

	for _, inc := range open {
		for _, policy := range escalation.MatchPolicies(policies, inc) {
			run.PoliciesEvaluated++
			decisions, err := s.evaluate(ctx, inc, policy, schedules, now)
			if err != nil {
				return nil, err
			}
			run.Decisions = append(run.Decisions, decisions...)
		}
	}

	for _, d := range run.Decisions {
		s.metrics.EscalationDecisions.WithLabelValues(string(d.Action)).Inc()
		switch d.Action {
		case models.ActionEmitted:
			run.Emitted++
		case models.ActionDeduped:
			run.Deduped++
		case models.ActionSuppressed:
			run.Suppressed++
		}
	}

	if err := s.state.SaveLastRun(ctx, run); err != nil {
		return nil, err
	}
	s.metrics.EscalationRuns.Inc()
	s.log.Info("escalation run",
		zap.String("run_id", run.RunID),
		zap.Int("incidents", run.IncidentsScanned),
		zap.Int("policies", run.PoliciesEvaluated),
		zap.Int("emitted", run.Emitted),
		zap.Int("deduped", run.Deduped),
		zap.Int("suppressed", run.Suppressed),
	)
	return run, nil
}

func (s *EscalationService) evaluate(ctx context.Context, inc models.Incident, policy models.EscalationPolicy,
	schedules []models.OnCallSchedule, now time.Time) ([]models.EscalationDecision, error) {
	decisions := escalation.Plan(inc, policy, now)

	until, suppressed, err := s.state.SuppressedUntil(ctx, policy.ID, inc.ID)
	if err != nil {
		return nil, err
	}
	if suppressed && now.Before(until) {
		escalation.SuppressAll(decisions)
		return decisions, nil
	}

	emitted := false
	for i := range decisions {
		d := &decisions[i]
		if !d.ShouldEscalate {
			continue
		}
		if emitted {
			d.Action = models.ActionSuppressed
			d.Reason = models.SuppressedSameTick
			continue
		}

		done, err := s.state.StepEmitted(ctx, inc.ID, policy.ID, d.StepIndex)
		if err != nil {
			return nil, err
		}
		if done {
			d.Action = models.ActionDeduped
			d.Reason = models.DedupedByStepKey
			continue
		}

		claimed, err := s.state.ClaimStep(ctx, inc.ID, policy.ID, d.StepIndex, now)
		if err != nil {
			return nil, err
		}
		if !claimed {
			d.Action = models.ActionDeduped
			d.Reason = models.DedupedLostRace
			continue
		}

		d.Action = models.ActionEmitted
		emitted = true
		if err := s.emit(ctx, d, policy, schedules, now); err != nil {
			return nil, err
		}
	}
	return decisions, nil
}

// emit runs the side effects of a claimed step
func (s *EscalationService) emit(ctx context.Context, d *models.EscalationDecision, policy models.EscalationPolicy,
	schedules []models.OnCallSchedule, now time.Time) error {
	if err := s.state.Suppress(ctx, policy.ID, d.IncidentID, now, escalation.SuppressionWindow(policy)); err != nil {
		return err
	}

	resolved := escalation.ResolveTarget(d.Target, escalation.ActiveSchedule(schedules, policy.Team, now), s.managerFallback)
	d.Resolved = &resolved

	if err := s.timeline.Escalated(ctx, *d, now); err != nil {
		s.log.Error("failed to record escalation on timeline", zap.String("incident_id", d.IncidentID), zap.Error(err))
	}

	step := strconv.Itoa(d.StepIndex)
	s.metrics.EscalationsEmitted.WithLabelValues(string(d.Severity), step).Inc()
	if resolved.User != nil {
		s.metrics.EscalationPages.WithLabelValues(string(d.Severity), step).Inc()
	}
	return nil
}

// Status returns the last run, nil if none ran yet
func (s *EscalationService) Status(ctx context.Context) (*models.EscalationRun, error) {
	return s.state.LastRun(ctx)
}
