package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/detection"
	"github.com/jengzang/tracking-ops-backend/internal/learning"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

// DefaultCloseReason is used when ops close without a reason
const DefaultCloseReason = "resolved"

// IncidentService runs detection ticks and the incident lifecycle
type IncidentService struct {
	incidents  *repository.IncidentRepository
	orders     *repository.OrderRepository
	health     *repository.HealthRepository
	tracking   *TrackingService
	killSwitch ModeReader
	timeline   *TimelineService
	thresholds detection.Thresholds
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// NewIncidentService creates a new incident service
func NewIncidentService(incidents *repository.IncidentRepository, orders *repository.OrderRepository, health *repository.HealthRepository,
	tracking *TrackingService, killSwitch ModeReader, timeline *TimelineService, thresholds detection.Thresholds,
	m *metrics.Metrics, log *zap.Logger) *IncidentService {
	return &IncidentService{
		incidents:  incidents,
		orders:     orders,
		health:     health,
		tracking:   tracking,
		killSwitch: killSwitch,
		timeline:   timeline,
		thresholds: thresholds,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// RunDetection evaluates every rule at now and upserts the results.
// Re-running on an unchanged condition only moves lastSeenAt.
func (s *IncidentService) RunDetection(ctx context.Context, now time.Time) (*models.DetectionRunResult, error) {
	projections, err := s.tracking.Snapshot(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load projections: %w", err)
	}

	inputs := make([]detection.OrderInput, 0, len(projections))
	for _, p := range projections {
		order, err := s.orders.GetByID(ctx, p.OrderID)
		if err != nil {
			return nil, fmt.Errorf("failed to load order context: %w", err)
		}
		inputs = append(inputs, detection.OrderInput{Projection: p, Order: order})
	}

	global, failureTotal, err := s.globalInput(ctx)
	if err != nil {
		return nil, err
	}

	detections := detection.DetectIncidents(detection.Context{
		Now:        now,
		Orders:     inputs,
		Global:     global,
		Freshness:  s.tracking.Thresholds(),
		Thresholds: s.thresholds,
	})

	result := &models.DetectionRunResult{
		At:              now.UTC(),
		OrdersEvaluated: len(projections),
		Detections:      detections,
	}
	for _, d := range detections {
		inc, created, err := s.incidents.Upsert(ctx, d, now)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert incident: %w", err)
		}
		s.metrics.IncidentsDetected.WithLabelValues(string(d.Type), string(d.Severity)).Inc()
		if !created {
			result.Updated++
			continue
		}
		result.Created++
		s.metrics.IncidentsCreated.WithLabelValues(string(d.Type)).Inc()
		if err := s.timeline.Detected(ctx, inc); err != nil {
			s.log.Error("failed to record detection on timeline", zap.String("incident_id", inc.ID), zap.Error(err))
		}
	}

	// the watermark moves only after the run succeeded
	if err := s.health.SetHotStoreWatermark(ctx, failureTotal); err != nil {
		return nil, fmt.Errorf("failed to store hot store watermark: %w", err)
	}

	s.metrics.DetectionRuns.Inc()
	s.log.Info("detection run",
		zap.Time("at", result.At),
		zap.Int("orders", result.OrdersEvaluated),
		zap.Int("detections", len(detections)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}

// globalInput reads the fleet gauges. The hot store rule looks at the failure
// delta since the previous run; a counter that went backwards was reset.
func (s *IncidentService) globalInput(ctx context.Context) (*detection.GlobalInput, int64, error) {
	h, err := s.health.StreamHealth(ctx)
	if err != nil {
		return nil, 0, err
	}
	s.metrics.EventTimeLag.Set(h.EventTimeLagSeconds)
	s.metrics.ProcessingTimeLag.Set(h.ProcessingTimeLagSeconds)

	watermark, ok, err := s.health.HotStoreWatermark(ctx)
	if err != nil {
		return nil, 0, err
	}
	var delta int64
	switch {
	case !ok:
		delta = 0
	case h.HotStoreWriteFailures < watermark:
		delta = h.HotStoreWriteFailures
	default:
		delta = h.HotStoreWriteFailures - watermark
	}

	return &detection.GlobalInput{
		EventTimeLagSeconds:  h.EventTimeLagSeconds,
		HotStoreFailureDelta: delta,
		KillSwitchMode:       s.killSwitch.Mode(ctx),
	}, h.HotStoreWriteFailures, nil
}

// List returns incidents newest first
func (s *IncidentService) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	return s.incidents.List(ctx, filter)
}

// Get returns one incident
func (s *IncidentService) Get(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := s.incidents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrNotFound
	}
	return inc, nil
}

// Ack acknowledges an incident. Acking an ACKED or CLOSED incident returns it unchanged.
func (s *IncidentService) Ack(ctx context.Context, id, actor string) (*models.Incident, error) {
	now := s.now()
	inc, changed, err := s.incidents.Ack(ctx, id, actor, now)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrNotFound
	}
	if changed {
		s.metrics.IncidentsAcked.Inc()
		if err := s.timeline.Transition(ctx, id, models.TimelineAcknowledged, now, actor, ""); err != nil {
			s.log.Error("failed to record ack on timeline", zap.String("incident_id", id), zap.Error(err))
		}
	}
	return inc, nil
}

// Close closes an incident. Reasons prefixed false_positive feed the
// false-positive counter; every close sets the MTTR gauge of its type.
func (s *IncidentService) Close(ctx context.Context, id, actor, reason string) (*models.Incident, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCloseReason
	}

	now := s.now()
	inc, changed, err := s.incidents.Close(ctx, id, actor, reason, now)
	if err != nil {
		return nil, err
	}
	if inc == nil {
		return nil, ErrNotFound
	}
	if !changed {
		return inc, nil
	}

	s.metrics.IncidentsClosed.WithLabelValues(string(inc.Type)).Inc()
	if strings.HasPrefix(reason, learning.FalsePositivePrefix) {
		s.metrics.IncidentsFalsePositive.Inc()
	}
	s.metrics.IncidentMTTR.WithLabelValues(string(inc.Type)).Set(inc.ClosedAt.Sub(inc.DetectedAt).Seconds())

	if err := s.timeline.Transition(ctx, id, models.TimelineClosed, now, actor, reason); err != nil {
		s.log.Error("failed to record close on timeline", zap.String("incident_id", id), zap.Error(err))
	}
	return inc, nil
}

// AddNote appends a note to an existing incident's timeline
func (s *IncidentService) AddNote(ctx context.Context, id, actor, text string, at *time.Time) (*models.IncidentTimelineEntry, bool, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, false, err
	}
	when := s.now().UTC().Truncate(time.Second)
	if at != nil {
		when = at.UTC()
	}
	return s.timeline.Note(ctx, id, actor, text, when)
}

// Timeline returns an existing incident's timeline
func (s *IncidentService) Timeline(ctx context.Context, id string) ([]models.IncidentTimelineEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.timeline.List(ctx, id)
}
