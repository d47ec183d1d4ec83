package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jengzang/tracking-ops-backend/internal/metrics"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/ratelimit"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

const toggleLimitKey = "toggle"

// ModeReader is the read path of the kill switch
type ModeReader interface {
	Mode(ctx context.Context) models.KillSwitchMode
}

// KillSwitchService owns the process-wide tracking interlock.
// Reads are cached for a short TTL; writes replace the cache immediately.
type KillSwitchService struct {
	repo        *repository.KillSwitchRepository
	limiter     *ratelimit.Limiter
	defaultMode models.KillSwitchMode
	cacheTTL    time.Duration
	metrics     *metrics.Metrics
	log         *zap.Logger
	now         func() time.Time

	mu       sync.Mutex
	cached   models.KillSwitchMode
	cachedAt time.Time
}

// NewKillSwitchService creates a new kill switch service
func NewKillSwitchService(repo *repository.KillSwitchRepository, limiter *ratelimit.Limiter, defaultMode models.KillSwitchMode,
	cacheTTL time.Duration, m *metrics.Metrics, log *zap.Logger) *KillSwitchService {
	if !defaultMode.Valid() {
		defaultMode = models.KillSwitchCustomerReadEnabled
	}
	return &KillSwitchService{
		repo:        repo,
		limiter:     limiter,
		defaultMode: defaultMode,
		cacheTTL:    cacheTTL,
		metrics:     m,
		log:         log,
		now:         time.Now,
	}
}

// Mode returns the current mode. Store failures fall back to the configured default.
func (s *KillSwitchService) Mode(ctx context.Context) models.KillSwitchMode {
	now := s.now()

	s.mu.Lock()
	if s.cacheTTL > 0 && s.cached != "" && now.Sub(s.cachedAt) < s.cacheTTL {
		mode := s.cached
		s.mu.Unlock()
		return mode
	}
	s.mu.Unlock()

	mode, ok, err := s.repo.Mode(ctx)
	if err != nil {
		s.log.Warn("kill switch read failed, using default", zap.Error(err), zap.String("default", string(s.defaultMode)))
		return s.defaultMode
	}
	if !ok {
		mode = s.defaultMode
	}

	s.mu.Lock()
	s.cached = mode
	s.cachedAt = now
	s.mu.Unlock()

	s.metrics.KillSwitchState.Set(float64(mode.Ordinal()))
	return mode
}

// SetMode switches to next, writes the audit record and invalidates the cache.
// The reason requirement is enforced by the HTTP boundary.
func (s *KillSwitchService) SetMode(ctx context.Context, next models.KillSwitchMode, actor, reason string) (*models.KillSwitchTransition, error) {
	if !next.Valid() {
		return nil, ErrInvalidMode
	}

	d, err := s.limiter.Allow(ctx, toggleLimitKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check toggle limit: %w", err)
	}
	if !d.Allowed {
		return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
	}

	prev, ok, err := s.repo.Mode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read kill switch mode: %w", err)
	}
	if !ok {
		prev = s.defaultMode
	}

	if err := s.repo.SetMode(ctx, next); err != nil {
		return nil, err
	}

	now := s.now()
	s.mu.Lock()
	s.cached = next
	s.cachedAt = now
	s.mu.Unlock()

	t := models.KillSwitchTransition{
		Type:   "killswitch_transition",
		Prev:   prev,
		Next:   next,
		Actor:  actor,
		Reason: reason,
		TS:     now.UTC(),
	}
	s.log.Info("kill switch transition",
		zap.String("type", t.Type),
		zap.String("prev", string(t.Prev)),
		zap.String("next", string(t.Next)),
		zap.String("actor", t.Actor),
		zap.String("reason", t.Reason),
		zap.Time("ts", t.TS),
	)
	if err := s.repo.AppendAudit(ctx, t); err != nil {
		s.log.Error("failed to persist kill switch audit", zap.Error(err))
	}

	s.metrics.KillSwitchState.Set(float64(next.Ordinal()))
	s.metrics.KillSwitchTransitions.WithLabelValues(string(next)).Inc()
	return &t, nil
}

// State returns the mode and the most recent transitions
func (s *KillSwitchService) State(ctx context.Context, limit int) (*models.KillSwitchState, error) {
	if limit <= 0 {
		limit = 20
	}
	transitions, err := s.repo.RecentTransitions(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &models.KillSwitchState{
		Mode:              s.Mode(ctx),
		RecentTransitions: transitions,
	}, nil
}
