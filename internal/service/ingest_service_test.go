package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

func validRequest(seq int64, now time.Time) models.LocationRequest {
	return models.LocationRequest{
		RiderID:         "rider-1",
		OrderID:         "order-1",
		Lat:             ptr(31.2304),
		Lng:             ptr(121.4737),
		AccuracyM:       ptr(8.0),
		SpeedMps:        ptr(4.2),
		HeadingDeg:      ptr(90.0),
		DeviceTimestamp: now.Add(-2 * time.Second).Format(time.RFC3339Nano),
		Seq:             ptr(seq),
	}
}

func outboxRows(t *testing.T, e *testEnv) int {
	t.Helper()
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM location_outbox`).Scan(&n); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	return n
}

func TestSubmitIsIdempotentOnSeq(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if got := e.ingest.Submit(ctx, validRequest(7, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
		t.Fatalf("first submit = %+v, want accepted", got)
	}
	if got := e.ingest.Submit(ctx, validRequest(7, e.clock.Now()), "rider-1"); got.Status != models.IngestDeduped {
		t.Fatalf("replay = %+v, want deduped", got)
	}
	if got := e.ingest.Submit(ctx, validRequest(6, e.clock.Now()), "rider-1"); got.Status != models.IngestDeduped {
		t.Fatalf("older seq = %+v, want deduped", got)
	}
	if got := e.ingest.Submit(ctx, validRequest(8, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
		t.Fatalf("newer seq = %+v, want accepted", got)
	}

	if n := outboxRows(t, e); n != 2 {
		t.Fatalf("outbox rows = %d, want 2", n)
	}
	if got := testutil.ToFloat64(e.metrics.IngestAccepted); got != 2 {
		t.Fatalf("accepted counter = %v", got)
	}
	if got := testutil.ToFloat64(e.metrics.IngestDeduped); got != 2 {
		t.Fatalf("deduped counter = %v", got)
	}

	counters, err := e.health.IngestCounters(ctx, IngestOutcomes)
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if counters[OutcomeReceived] != 4 || counters[OutcomeAccepted] != 2 || counters[OutcomeDeduped] != 2 {
		t.Fatalf("unexpected funnel counters: %v", counters)
	}
}

func TestSubmitRespectsKillSwitch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	if _, err := e.killSwitch.SetMode(ctx, models.KillSwitchOff, "ops-1", "incident drill"); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	got := e.ingest.Submit(ctx, validRequest(1, e.clock.Now()), "rider-1")
	if got.Status != models.IngestDisabled || got.Reason != models.RejectKillSwitchOff {
		t.Fatalf("submit with OFF = %+v", got)
	}
	if n := outboxRows(t, e); n != 0 {
		t.Fatalf("outbox rows = %d, want 0", n)
	}

	if _, err := e.killSwitch.SetMode(ctx, models.KillSwitchIngestOnly, "ops-1", "recovering"); err != nil {
		t.Fatalf("set mode: %v", err)
	}
	if got := e.ingest.Submit(ctx, validRequest(1, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
		t.Fatalf("submit with INGEST_ONLY = %+v", got)
	}
}

func TestSubmitRateLimitedPerRider(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	for seq := int64(1); seq <= testIngestLimit; seq++ {
		if got := e.ingest.Submit(ctx, validRequest(seq, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
			t.Fatalf("seq %d = %+v", seq, got)
		}
	}
	got := e.ingest.Submit(ctx, validRequest(testIngestLimit+1, e.clock.Now()), "rider-1")
	if got.Status != models.IngestRateLimited {
		t.Fatalf("over limit = %+v, want rate_limited", got)
	}
	if got.RetryAfter <= 0 || got.RetryAfter > time.Minute {
		t.Fatalf("retry after = %v", got.RetryAfter)
	}
	if v := testutil.ToFloat64(e.metrics.IngestRateLimitedByRider.WithLabelValues("rider-1")); v != 1 {
		t.Fatalf("per-rider counter = %v", v)
	}

	// another rider has its own budget
	other := validRequest(1, e.clock.Now())
	other.RiderID = "rider-2"
	if got := e.ingest.Submit(ctx, other, "rider-2"); got.Status != models.IngestAccepted {
		t.Fatalf("rider-2 = %+v", got)
	}

	e.clock.Advance(time.Minute + time.Second)
	if got := e.ingest.Submit(ctx, validRequest(testIngestLimit+1, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
		t.Fatalf("after window = %+v", got)
	}
}

type failingPublisher struct {
	calls int
}

func (p *failingPublisher) Publish(context.Context, models.LocationSample) error {
	p.calls++
	return errors.New("stream unavailable")
}

func TestPublishFailureKeepsSeqRetryable(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	seqs := repository.NewSequenceRepository(e.kv)
	limiter := ratelimit.New(e.kv, "ingest-failing", 100, time.Minute)
	pub := &failingPublisher{}
	broken := NewIngestService(e.killSwitch, seqs, e.health, limiter, pub, time.Hour, e.metrics, zap.NewNop())
	broken.now = e.clock.Now

	got := broken.Submit(ctx, validRequest(3, e.clock.Now()), "rider-1")
	if got.Status != models.IngestPublishFail {
		t.Fatalf("submit = %+v, want publish failure", got)
	}
	if _, ok, _ := seqs.LastSeq(ctx, "rider-1", "order-1"); ok {
		t.Fatalf("lastSeq advanced after failed publish")
	}

	// the client retries the same seq against a healthy gate
	if got := e.ingest.Submit(ctx, validRequest(3, e.clock.Now()), "rider-1"); got.Status != models.IngestAccepted {
		t.Fatalf("retry = %+v, want accepted", got)
	}
	if got := testutil.ToFloat64(e.metrics.IngestPublishFailed); got != 1 {
		t.Fatalf("publish failed counter = %v", got)
	}
}

func TestValidateLocation(t *testing.T) {
	now := testStart
	tests := []struct {
		name   string
		mutate func(*models.LocationRequest)
		auth   string
		want   models.RejectReason
	}{
		{"valid", func(*models.LocationRequest) {}, "rider-1", ""},
		{"missing rider", func(r *models.LocationRequest) { r.RiderID = " " }, "rider-1", models.RejectMissingRiderID},
		{"missing order", func(r *models.LocationRequest) { r.OrderID = "" }, "rider-1", models.RejectMissingOrderID},
		{"other rider", func(*models.LocationRequest) {}, "rider-9", models.RejectRiderMismatch},
		{"missing lng", func(r *models.LocationRequest) { r.Lng = nil }, "rider-1", models.RejectMissingCoords},
		{"lat out of range", func(r *models.LocationRequest) { r.Lat = ptr(91.0) }, "rider-1", models.RejectInvalidLat},
		{"lng out of range", func(r *models.LocationRequest) { r.Lng = ptr(-180.5) }, "rider-1", models.RejectInvalidLng},
		{"missing accuracy", func(r *models.LocationRequest) { r.AccuracyM = nil }, "rider-1", models.RejectMissingAccuracy},
		{"negative accuracy", func(r *models.LocationRequest) { r.AccuracyM = ptr(-1.0) }, "rider-1", models.RejectInvalidAccuracy},
		{"speed too high", func(r *models.LocationRequest) { r.SpeedMps = ptr(120.0) }, "rider-1", models.RejectInvalidSpeed},
		{"heading 360", func(r *models.LocationRequest) { r.HeadingDeg = ptr(360.0) }, "rider-1", models.RejectInvalidHeading},
		{"optional speed absent", func(r *models.LocationRequest) { r.SpeedMps = nil; r.HeadingDeg = nil }, "rider-1", ""},
		{"missing seq", func(r *models.LocationRequest) { r.Seq = nil }, "rider-1", models.RejectMissingSeq},
		{"negative seq", func(r *models.LocationRequest) { r.Seq = ptr(int64(-1)) }, "rider-1", models.RejectInvalidSeq},
		{"bad timestamp", func(r *models.LocationRequest) { r.DeviceTimestamp = "yesterday" }, "rider-1", models.RejectInvalidTime},
		{"timestamp in future", func(r *models.LocationRequest) {
			r.DeviceTimestamp = now.Add(10 * time.Minute).Format(time.RFC3339Nano)
		}, "rider-1", models.RejectInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(1, now)
			tt.mutate(&req)
			sample, reason := ValidateLocation(req, tt.auth, now)
			if reason != tt.want {
				t.Fatalf("reason = %q, want %q", reason, tt.want)
			}
			if reason == "" && (sample.RiderID != "rider-1" || !sample.ServerReceivedAt.Equal(now)) {
				t.Fatalf("unexpected sample: %+v", sample)
			}
		})
	}
}
