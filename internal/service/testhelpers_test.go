package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/database"
	"github.com/jengzang/tracking-ops-backend/internal/detection"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
	"github.com/jengzang/tracking-ops-backend/internal/stream"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

var testStart = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testClock struct {
	t time.Time
}

func (c *testClock) Now() time.Time { return c.t }

func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// testEnv wires every service over one in-memory sqlite database
type testEnv struct {
	db      *sql.DB
	kv      *repository.SQLiteKV
	clock   *testClock
	metrics *metrics.Metrics
	reg     *prometheus.Registry

	projections *repository.ProjectionRepository
	orders      *repository.OrderRepository
	health      *repository.HealthRepository
	incidentsDB *repository.IncidentRepository
	oncallDB    *repository.OnCallRepository
	escState    *repository.EscalationStateRepository
	outbox      *stream.OutboxPublisher

	killSwitch *KillSwitchService
	ingest     *IngestService
	tracking   *TrackingService
	timeline   *TimelineService
	incidents  *IncidentService
	escalation *EscalationService
	oncall     *OnCallService
	slo        *SLOService
	learning   *LearningService
}

const testIngestLimit = 5

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conn, err := database.Open(database.Config{Path: fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := database.Migrate(conn, nil); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	log := zap.NewNop()
	clock := &testClock{t: testStart}
	m, reg := metrics.NewTest()
	kv := repository.NewSQLiteKV(conn).WithClock(clock.Now)

	e := &testEnv{
		db:          conn,
		kv:          kv,
		clock:       clock,
		metrics:     m,
		reg:         reg,
		projections: repository.NewProjectionRepository(kv),
		orders:      repository.NewOrderRepository(conn),
		health:      repository.NewHealthRepository(kv),
		incidentsDB: repository.NewIncidentRepository(kv, 1000),
		oncallDB:    repository.NewOnCallRepository(kv),
		escState:    repository.NewEscalationStateRepository(kv, 7*24*time.Hour),
		outbox:      stream.NewOutboxPublisher(conn),
	}

	toggles := ratelimit.New(kv, "killswitch", 3, 15*time.Minute).WithClock(clock.Now)
	e.killSwitch = NewKillSwitchService(repository.NewKillSwitchRepository(kv), toggles, models.KillSwitchCustomerReadEnabled, 0, m, log)
	e.killSwitch.now = clock.Now

	riders := ratelimit.New(kv, "ingest", testIngestLimit, time.Minute).WithClock(clock.Now)
	e.ingest = NewIngestService(e.killSwitch, repository.NewSequenceRepository(kv), e.health, riders, e.outbox, time.Hour, m, log)
	e.ingest.now = clock.Now

	e.tracking = NewTrackingService(e.projections, e.orders, e.killSwitch, tracking.Thresholds{StaleAfterSeconds: 30, OfflineAfterSeconds: 120}, m)
	e.tracking.now = clock.Now

	e.timeline = NewTimelineService(repository.NewTimelineRepository(kv))

	e.incidents = NewIncidentService(e.incidentsDB, e.orders, e.health, e.tracking, e.killSwitch, e.timeline, detection.DefaultThresholds, m, log)
	e.incidents.now = clock.Now

	e.escalation = NewEscalationService(e.incidentsDB, e.oncallDB, e.escState, e.timeline, 200, "ops-manager", m, log)

	e.oncall = NewOnCallService(e.oncallDB, log)
	e.oncall.now = clock.Now

	sloRepo := repository.NewSLORepository(kv)
	e.slo = NewSLOService(sloRepo, e.incidentsDB, e.health, e.tracking, m, log)
	e.learning = NewLearningService(repository.NewInsightRepository(kv), e.incidentsDB, e.health, e.escState,
		repository.NewKillSwitchRepository(kv), sloRepo, m, log)
	return e
}

// putProjection stores a projection last updated age ago
func (e *testEnv) putProjection(t *testing.T, orderID, riderID string, age time.Duration, mutate func(*models.TrackingProjection)) {
	t.Helper()
	p := &models.TrackingProjection{
		OrderID:            orderID,
		RiderID:            riderID,
		Position:           models.LatLng{Lat: 31.2304, Lng: 121.4737},
		AccuracyRadiusM:    12,
		LastUpdatedAt:      e.clock.Now().Add(-age).Format(time.RFC3339),
		MovementConfidence: models.ConfidenceHigh,
		SLARiskLevel:       models.SLARiskNone,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := e.projections.Put(context.Background(), p, 6*time.Hour); err != nil {
		t.Fatalf("put projection: %v", err)
	}
}

func (e *testEnv) putOrder(t *testing.T, orderID, riderID, customerID string) {
	t.Helper()
	err := e.orders.Upsert(context.Background(), &models.OrderContext{OrderID: orderID, RiderID: riderID, CustomerID: customerID}, e.clock.Now())
	if err != nil {
		t.Fatalf("put order: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }
