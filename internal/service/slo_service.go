package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/learning"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
	"github.com/jengzang/tracking-ops-backend/internal/stats"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

// SLABreachedReason closes an SLA incident whose order actually missed its window
const SLABreachedReason = "sla_breached"

// DefaultSLOListLimit caps GET slo without a limit (one week of buckets)
const DefaultSLOListLimit = 168

// SLOService writes hourly SLO rollups
type SLOService struct {
	snapshots *repository.SLORepository
	incidents *repository.IncidentRepository
	health    *repository.HealthRepository
	tracking  *TrackingService
	metrics   *metrics.Metrics
	log       *zap.Logger
}

// NewSLOService creates a new SLO snapshotter
func NewSLOService(snapshots *repository.SLORepository, incidents *repository.IncidentRepository, health *repository.HealthRepository,
	tracking *TrackingService, m *metrics.Metrics, log *zap.Logger) *SLOService {
	return &SLOService{
		snapshots: snapshots,
		incidents: incidents,
		health:    health,
		tracking:  tracking,
		metrics:   m,
		log:       log,
	}
}

// Snapshot rolls up the hour containing now. Running it again inside the
// same hour replaces that bucket.
func (s *SLOService) Snapshot(ctx context.Context, now time.Time) (*models.SLOSnapshot, error) {
	bucket := now.UTC().Truncate(time.Hour)
	snap := &models.SLOSnapshot{
		BucketStart: bucket,
		GeneratedAt: now.UTC(),
	}

	projections, err := s.tracking.Snapshot(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load projections: %w", err)
	}
	ages := make([]float64, 0, len(projections))
	for _, p := range projections {
		snap.Projections++
		switch p.FreshnessState {
		case models.FreshnessLive:
			snap.Live++
		case models.FreshnessStale:
			snap.Stale++
		default:
			snap.Offline++
		}
		if age, ok := tracking.AgeSeconds(p.LastUpdatedAt, now); ok {
			ages = append(ages, age)
		}
		if p.SLARiskLevel == models.SLARiskHigh {
			snap.SLARiskHigh++
		}
	}
	snap.LiveRatio = stats.Round(stats.Ratio(float64(snap.Live), float64(snap.Projections)), 4)
	snap.FreshnessAgeP50Sec = stats.Round(stats.Percentile(ages, 50), 1)
	snap.FreshnessAgeP90Sec = stats.Round(stats.Percentile(ages, 90), 1)

	sum, count, err := s.health.ETAError(ctx)
	if err != nil {
		return nil, err
	}
	snap.ETASamples = count
	snap.ETAMeanAbsErrorSec = stats.Round(stats.Ratio(sum, float64(count)), 1)

	slaIncidents, err := s.incidents.List(ctx, models.IncidentFilter{
		Type:  string(models.IncidentSLABreachRisk),
		Limit: repository.MaxIncidentListLimit,
	})
	if err != nil {
		return nil, err
	}
	end := bucket.Add(time.Hour)
	for _, inc := range slaIncidents {
		if inc.DetectedAt.Before(bucket) || !inc.DetectedAt.Before(end) {
			continue
		}
		snap.SLAIncidents++
		if prevented(inc) {
			snap.SLAPrevented++
		}
	}
	snap.SLAPreventionRatio = stats.Round(stats.Ratio(float64(snap.SLAPrevented), float64(snap.SLAIncidents)), 4)

	snap.Ingest, err = s.health.IngestCounters(ctx, IngestOutcomes)
	if err != nil {
		return nil, err
	}

	if err := s.snapshots.Put(ctx, snap); err != nil {
		return nil, err
	}
	s.metrics.SLOSnapshots.Inc()
	s.log.Info("slo snapshot",
		zap.Time("bucket", bucket),
		zap.Int("projections", snap.Projections),
		zap.Float64("live_ratio", snap.LiveRatio),
		zap.Int("sla_incidents", snap.SLAIncidents),
	)
	return snap, nil
}

// an SLA risk counts as prevented when ops closed it and the window held
func prevented(inc models.Incident) bool {
	if inc.Status != models.StatusClosed {
		return false
	}
	return !strings.HasPrefix(inc.CloseReason, learning.FalsePositivePrefix) && inc.CloseReason != SLABreachedReason
}

// Latest returns the newest snapshot, ErrNotFound if none was written
func (s *SLOService) Latest(ctx context.Context) (*models.SLOSnapshot, error) {
	snap, err := s.snapshots.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, ErrNotFound
	}
	return snap, nil
}

// List returns snapshots newest first
func (s *SLOService) List(ctx context.Context, limit int) ([]models.SLOSnapshot, error) {
	if limit <= 0 {
		limit = DefaultSLOListLimit
	}
	return s.snapshots.List(ctx, limit)
}
