package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/api"
	"github.com/jengzang/tracking-ops-backend/internal/config"
	"github.com/jengzang/tracking-ops-backend/internal/database"
	"github.com/jengzang/tracking-ops-backend/internal/detection"
	"github.com/jengzang/tracking-ops-backend/internal/handler"
	"github.com/jengzang/tracking-ops-backend/internal/logger"
	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
	"github.com/jengzang/tracking-ops-backend/internal/service"
	"github.com/jengzang/tracking-ops-backend/internal/stream"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

// app holds everything a command needs, wired once
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *sql.DB
	kv      *repository.SQLiteKV
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	outbox  *stream.OutboxPublisher

	killSwitch *service.KillSwitchService
	ingest     *service.IngestService
	tracking   *service.TrackingService
	incidents  *service.IncidentService
	escalation *service.EscalationService
	oncall     *service.OnCallService
	slo        *service.SLOService
	learning   *service.LearningService
}

func newApp() (*app, error) {
	// 加载配置
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}

	// 初始化数据库
	if !strings.Contains(cfg.DBPath, "mode=memory") && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	if err := database.Init(database.Config{Path: cfg.DBPath}, log); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	db := database.GetDB()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	kv := repository.NewSQLiteKV(db)
	a := &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		kv:      kv,
		reg:     reg,
		metrics: m,
		outbox:  stream.NewOutboxPublisher(db),
	}

	projections := repository.NewProjectionRepository(kv)
	orders := repository.NewOrderRepository(db)
	health := repository.NewHealthRepository(kv)
	incidents := repository.NewIncidentRepository(kv, cfg.Detection.IndexCap)
	oncall := repository.NewOnCallRepository(kv)
	escState := repository.NewEscalationStateRepository(kv, cfg.Escalation.DedupTTL)
	killSwitchRepo := repository.NewKillSwitchRepository(kv)
	sloRepo := repository.NewSLORepository(kv)

	toggles := ratelimit.New(kv, "killswitch", cfg.KillSwitch.ToggleLimit, cfg.KillSwitch.ToggleWindow)
	a.killSwitch = service.NewKillSwitchService(killSwitchRepo, toggles, models.KillSwitchMode(cfg.KillSwitch.DefaultMode),
		cfg.KillSwitch.CacheTTL, m, log)

	riders := ratelimit.New(kv, "ingest", cfg.Ingest.RateLimitMax, cfg.Ingest.RateLimitWindow)
	a.ingest = service.NewIngestService(a.killSwitch, repository.NewSequenceRepository(kv), health, riders, a.outbox,
		cfg.Ingest.LastSeqTTL, m, log)

	a.tracking = service.NewTrackingService(projections, orders, a.killSwitch, tracking.Thresholds{
		StaleAfterSeconds:   cfg.Tracking.StaleAfterSeconds,
		OfflineAfterSeconds: cfg.Tracking.OfflineAfterSeconds,
	}, m)

	timeline := service.NewTimelineService(repository.NewTimelineRepository(kv))
	a.incidents = service.NewIncidentService(incidents, orders, health, a.tracking, a.killSwitch, timeline,
		detection.FromConfig(cfg.Detection), m, log)
	a.escalation = service.NewEscalationService(incidents, oncall, escState, timeline,
		cfg.Escalation.ScanLimit, cfg.Escalation.OpsManagerUser, m, log)
	a.oncall = service.NewOnCallService(oncall, log)
	a.slo = service.NewSLOService(sloRepo, incidents, health, a.tracking, m, log)
	a.learning = service.NewLearningService(repository.NewInsightRepository(kv), incidents, health, escState,
		killSwitchRepo, sloRepo, m, log)

	return a, nil
}

func (a *app) handlers() *api.Handlers {
	return &api.Handlers{
		Ingest:     handler.NewIngestHandler(a.ingest),
		Tracking:   handler.NewTrackingHandler(a.tracking),
		Incident:   handler.NewIncidentHandler(a.incidents),
		OnCall:     handler.NewOnCallHandler(a.oncall),
		Escalation: handler.NewEscalationHandler(a.escalation),
		Learning:   handler.NewLearningHandler(a.learning),
		KillSwitch: handler.NewKillSwitchHandler(a.killSwitch),
		SLO:        handler.NewSLOHandler(a.slo),
	}
}

func (a *app) close() {
	if err := database.Close(); err != nil {
		a.log.Warn("failed to close database", zap.Error(err))
	}
	_ = a.log.Sync()
}
