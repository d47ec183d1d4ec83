package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
	"github.com/jengzang/tracking-ops-backend/internal/spatial"
	"github.com/jengzang/tracking-ops-backend/internal/stream"
)

// Shared ingestion funnel counters, read back by the SLO snapshot
const (
	OutcomeReceived      = "received"
	OutcomeAccepted      = "accepted"
	OutcomeDeduped       = "deduped"
	OutcomeRateLimited   = "rate_limited"
	OutcomeRejected      = "rejected"
	OutcomePublishFailed = "publish_failed"
	OutcomeStoreFailed   = "store_failed"
)

// IngestOutcomes lists every funnel counter
var IngestOutcomes = []string{
	OutcomeReceived, OutcomeAccepted, OutcomeDeduped, OutcomeRateLimited,
	OutcomeRejected, OutcomePublishFailed, OutcomeStoreFailed,
}

const (
	maxAccuracyMeters = 5000
	maxSpeedMps       = 100
	maxClockSkew      = 5 * time.Minute
)

// IngestService is the ingestion gate for rider location samples
type IngestService struct {
	killSwitch ModeReader
	seqs       *repository.SequenceRepository
	counters   *repository.HealthRepository
	limiter    *ratelimit.Limiter
	publisher  stream.Publisher
	lastSeqTTL time.Duration
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

// NewIngestService creates a new ingestion gate
func NewIngestService(killSwitch ModeReader, seqs *repository.SequenceRepository, counters *repository.HealthRepository,
	limiter *ratelimit.Limiter, publisher stream.Publisher, lastSeqTTL time.Duration, m *metrics.Metrics, log *zap.Logger) *IngestService {
	return &IngestService{
		killSwitch: killSwitch,
		seqs:       seqs,
		counters:   counters,
		limiter:    limiter,
		publisher:  publisher,
		lastSeqTTL: lastSeqTTL,
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// Submit runs one sample through the gate: kill switch, validation, rate
// limit, seq dedup, publish, then lastSeq. lastSeq only moves after a
// successful publish, so a client retry of the same seq is never lost.
func (s *IngestService) Submit(ctx context.Context, req models.LocationRequest, authRiderID string) models.IngestResult {
	now := s.now()
	s.metrics.IngestReceived.Inc()
	s.count(ctx, OutcomeReceived)

	if !s.killSwitch.Mode(ctx).AllowsIngest() {
		s.reject(ctx, models.RejectKillSwitchOff)
		return models.IngestResult{Status: models.IngestDisabled, Reason: models.RejectKillSwitchOff}
	}

	sample, reason := ValidateLocation(req, authRiderID, now)
	if reason != "" {
		s.reject(ctx, reason)
		return models.IngestResult{Status: models.IngestRejected, Reason: reason}
	}

	d, err := s.limiter.Allow(ctx, sample.RiderID)
	if err != nil {
		return s.storeFailure(ctx, "rate limit check failed", err)
	}
	if !d.Allowed {
		s.metrics.IngestRateLimited.Inc()
		s.metrics.IngestRateLimitedByRider.WithLabelValues(sample.RiderID).Inc()
		s.count(ctx, OutcomeRateLimited)
		return models.IngestResult{Status: models.IngestRateLimited, RetryAfter: d.RetryAfter}
	}

	last, ok, err := s.seqs.LastSeq(ctx, sample.RiderID, sample.OrderID)
	if err != nil {
		return s.storeFailure(ctx, "last seq read failed", err)
	}
	if ok && sample.Seq <= last {
		s.metrics.IngestDeduped.Inc()
		s.count(ctx, OutcomeDeduped)
		return models.IngestResult{Status: models.IngestDeduped}
	}

	if err := s.publisher.Publish(ctx, sample); err != nil {
		s.log.Error("stream publish failed", zap.Error(err), zap.String("order_id", sample.OrderID), zap.Int64("seq", sample.Seq))
		s.metrics.IngestPublishFailed.Inc()
		s.count(ctx, OutcomePublishFailed)
		return models.IngestResult{Status: models.IngestPublishFail}
	}

	if err := s.seqs.Advance(ctx, sample.RiderID, sample.OrderID, sample.Seq, s.lastSeqTTL); err != nil {
		return s.storeFailure(ctx, "last seq write failed", err)
	}

	s.metrics.IngestAccepted.Inc()
	s.count(ctx, OutcomeAccepted)
	return models.IngestResult{Status: models.IngestAccepted}
}

// Malformed records a body that could not be decoded at all
func (s *IngestService) Malformed(ctx context.Context) models.IngestResult {
	s.metrics.IngestReceived.Inc()
	s.count(ctx, OutcomeReceived)
	s.reject(ctx, models.RejectMalformedBody)
	return models.IngestResult{Status: models.IngestRejected, Reason: models.RejectMalformedBody}
}

func (s *IngestService) reject(ctx context.Context, reason models.RejectReason) {
	s.metrics.IngestRejected.WithLabelValues(string(reason)).Inc()
	s.count(ctx, OutcomeRejected)
}

func (s *IngestService) storeFailure(ctx context.Context, msg string, err error) models.IngestResult {
	s.log.Error(msg, zap.Error(err))
	s.metrics.IngestStoreFailed.Inc()
	s.count(ctx, OutcomeStoreFailed)
	return models.IngestResult{Status: models.IngestStoreFail}
}

// count bumps the shared funnel counter; a failed bump never fails the request
func (s *IngestService) count(ctx context.Context, outcome string) {
	if err := s.counters.IncrIngestCounter(ctx, outcome); err != nil {
		s.log.Warn("failed to bump ingest counter", zap.String("outcome", outcome), zap.Error(err))
	}
}

// ValidateLocation checks payload shape and identity. The returned reason is
// empty when the sample is valid.
func ValidateLocation(req models.LocationRequest, authRiderID string, now time.Time) (models.LocationSample, models.RejectReason) {
	riderID := strings.TrimSpace(req.RiderID)
	orderID := strings.TrimSpace(req.OrderID)

	switch {
	case riderID == "":
		return models.LocationSample{}, models.RejectMissingRiderID
	case orderID == "":
		return models.LocationSample{}, models.RejectMissingOrderID
	case riderID != authRiderID:
		return models.LocationSample{}, models.RejectRiderMismatch
	case req.Lat == nil || req.Lng == nil:
		return models.LocationSample{}, models.RejectMissingCoords
	case !spatial.ValidLatitude(*req.Lat):
		return models.LocationSample{}, models.RejectInvalidLat
	case !spatial.ValidLongitude(*req.Lng):
		return models.LocationSample{}, models.RejectInvalidLng
	case req.AccuracyM == nil:
		return models.LocationSample{}, models.RejectMissingAccuracy
	case *req.AccuracyM < 0 || *req.AccuracyM > maxAccuracyMeters:
		return models.LocationSample{}, models.RejectInvalidAccuracy
	case req.SpeedMps != nil && (*req.SpeedMps < 0 || *req.SpeedMps > maxSpeedMps):
		return models.LocationSample{}, models.RejectInvalidSpeed
	case req.HeadingDeg != nil && (*req.HeadingDeg < 0 || *req.HeadingDeg >= 360):
		return models.LocationSample{}, models.RejectInvalidHeading
	case req.Seq == nil:
		return models.LocationSample{}, models.RejectMissingSeq
	case *req.Seq < 0:
		return models.LocationSample{}, models.RejectInvalidSeq
	}

	deviceTS, err := time.Parse(time.RFC3339Nano, req.DeviceTimestamp)
	if err != nil || deviceTS.After(now.Add(maxClockSkew)) {
		return models.LocationSample{}, models.RejectInvalidTime
	}

	return models.LocationSample{
		RiderID:          riderID,
		OrderID:          orderID,
		Lat:              *req.Lat,
		Lng:              *req.Lng,
		AccuracyMeters:   *req.AccuracyM,
		SpeedMps:         req.SpeedMps,
		HeadingDeg:       req.HeadingDeg,
		DeviceTimestamp:  deviceTS.UTC(),
		ServerReceivedAt: now.UTC(),
		Seq:              *req.Seq,
	}, ""
}
