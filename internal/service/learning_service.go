package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/learning"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

const (
	learningIncidentWindow = 500

	// DefaultInsightListLimit caps GET learning/:domain without a limit
	DefaultInsightListLimit = 50
	MaxInsightListLimit     = 500
)

var insightDomains = map[string]models.InsightDomain{
	"eta":         models.DomainETA,
	"incidents":   models.DomainIncident,
	"escalations": models.DomainEscalation,
	"killswitch":  models.DomainKillSwitch,
}

// ParseInsightDomain maps a route segment to its domain
func ParseInsightDomain(segment string) (models.InsightDomain, error) {
	d, ok := insightDomains[segment]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, segment)
	}
	return d, nil
}

// LearningService runs the offline learning pass. It only appends insights.
type LearningService struct {
	insights   *repository.InsightRepository
	incidents  *repository.IncidentRepository
	health     *repository.HealthRepository
	escalation *repository.EscalationStateRepository
	killSwitch *repository.KillSwitchRepository
	slo        *repository.SLORepository
	metrics    *metrics.Metrics
	log        *zap.Logger
}

// NewLearningService creates a new learning runner
func NewLearningService(insights *repository.InsightRepository, incidents *repository.IncidentRepository, health *repository.HealthRepository,
	escalation *repository.EscalationStateRepository, killSwitch *repository.KillSwitchRepository, slo *repository.SLORepository,
	m *metrics.Metrics, log *zap.Logger) *LearningService {
	return &LearningService{
		insights:   insights,
		incidents:  incidents,
		health:     health,
		escalation: escalation,
		killSwitch: killSwitch,
		slo:        slo,
		metrics:    m,
		log:        log,
	}
}

// BuildSnapshot gathers the point-in-time input of a learning run
func (s *LearningService) BuildSnapshot(ctx context.Context, asOf time.Time) (models.LearningSnapshot, error) {
	snap := models.LearningSnapshot{
		AsOf:     asOf.UTC(),
		Counters: map[string]int64{},
		Gauges:   map[string]float64{},
	}

	ingest, err := s.health.IngestCounters(ctx, IngestOutcomes)
	if err != nil {
		return snap, err
	}
	for outcome, n := range ingest {
		snap.Counters["ingest_"+outcome] = n
	}

	h, err := s.health.StreamHealth(ctx)
	if err != nil {
		return snap, err
	}
	snap.Gauges["event_time_lag_seconds"] = h.EventTimeLagSeconds
	snap.Gauges["processing_time_lag_seconds"] = h.ProcessingTimeLagSeconds
	snap.Counters["hot_store_write_failures"] = h.HotStoreWriteFailures

	if snap.ETAAbsErrorSumSec, snap.ETAErrorCount, err = s.health.ETAError(ctx); err != nil {
		return snap, err
	}

	incidents, err := s.incidents.List(ctx, models.IncidentFilter{Limit: learningIncidentWindow})
	if err != nil {
		return snap, err
	}
	snap.Incidents = make([]models.IncidentOutcome, 0, len(incidents))
	for _, inc := range incidents {
		snap.Incidents = append(snap.Incidents, models.IncidentOutcome{
			ID:          inc.ID,
			Type:        inc.Type,
			Severity:    inc.Severity,
			Status:      inc.Status,
			CloseReason: inc.CloseReason,
			DetectedAt:  inc.DetectedAt,
			ClosedAt:    inc.ClosedAt,
		})
	}

	if snap.LastEscalationRun, err = s.escalation.LastRun(ctx); err != nil {
		return snap, err
	}
	if snap.KillSwitchActivation, err = s.killSwitch.Activations(ctx); err != nil {
		return snap, err
	}
	if snap.LatestSLO, err = s.slo.Latest(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// Run builds a snapshot at asOf and stores every insight not seen before
func (s *LearningService) Run(ctx context.Context, asOf time.Time) (*models.LearningRunResult, error) {
	snap, err := s.BuildSnapshot(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to build learning snapshot: %w", err)
	}

	insights, err := learning.Generate(snap)
	if err != nil {
		return nil, err
	}

	result := &models.LearningRunResult{AsOf: snap.AsOf, Insights: insights}
	for i := range insights {
		stored, err := s.insights.PutIfAbsent(ctx, &insights[i])
		if err != nil {
			return nil, err
		}
		if !stored {
			result.Existing++
			continue
		}
		result.Stored++
		s.metrics.LearningInsights.WithLabelValues(string(insights[i].Domain)).Inc()
	}

	s.metrics.LearningRuns.Inc()
	s.log.Info("learning run",
		zap.Time("as_of", result.AsOf),
		zap.Int("insights", len(insights)),
		zap.Int("stored", result.Stored),
		zap.Int("existing", result.Existing),
	)
	return result, nil
}

// List returns a domain's insights newest first
func (s *LearningService) List(ctx context.Context, domain models.InsightDomain, limit int) ([]models.LearningInsight, error) {
	if limit <= 0 {
		limit = DefaultInsightListLimit
	}
	limit = min(limit, MaxInsightListLimit)
	return s.insights.List(ctx, domain, limit)
}
