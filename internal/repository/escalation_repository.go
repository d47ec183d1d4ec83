package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// EscalationStateRepository holds the dedup and suppression keys that make
// escalation ticks converge across instances, plus the last run record
type EscalationStateRepository struct {
	kv       KV
	dedupTTL time.Duration
}

// NewEscalationStateRepository creates a new escalation state repository
func NewEscalationStateRepository(kv KV, dedupTTL time.Duration) *EscalationStateRepository {
	if dedupTTL <= 0 {
		dedupTTL = 7 * 24 * time.Hour
	}
	return &EscalationStateRepository{kv: kv, dedupTTL: dedupTTL}
}

func dedupKey(incidentID, policyID string, step int) string {
	return keyEscalationDedup + incidentID + ":" + policyID + ":" + strconv.Itoa(step)
}

func suppressKey(policyID, incidentID string) string {
	return keyEscalationSuppress + policyID + ":" + incidentID
}

// StepEmitted reports whether the step was already claimed
func (r *EscalationStateRepository) StepEmitted(ctx context.Context, incidentID, policyID string, step int) (bool, error) {
	_, ok, err := r.kv.Get(ctx, dedupKey(incidentID, policyID, step))
	if err != nil {
		return false, fmt.Errorf("failed to read dedup key: %w", err)
	}
	return ok, nil
}

// ClaimStep sets the dedup key if absent. Only the caller that gets true may emit.
func (r *EscalationStateRepository) ClaimStep(ctx context.Context, incidentID, policyID string, step int, now time.Time) (bool, error) {
	claimed, err := r.kv.SetNX(ctx, dedupKey(incidentID, policyID, step), now.UTC().Format(time.RFC3339Nano), r.dedupTTL)
	if err != nil {
		return false, fmt.Errorf("failed to claim escalation step: %w", err)
	}
	return claimed, nil
}

// SuppressedUntil returns the end of the policy's suppression window for the
// incident. The stored value is compared against the tick's now, so replayed
// ticks see the same answer.
func (r *EscalationStateRepository) SuppressedUntil(ctx context.Context, policyID, incidentID string) (time.Time, bool, error) {
	raw, ok, err := r.kv.Get(ctx, suppressKey(policyID, incidentID))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read suppression key: %w", err)
	}
	if !ok {
		return time.Time{}, false, nil
	}
	until, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

// Suppress opens a suppression window of the given length starting at now
func (r *EscalationStateRepository) Suppress(ctx context.Context, policyID, incidentID string, now time.Time, window time.Duration) error {
	if window <= 0 {
		return nil
	}
	until := now.Add(window)
	if err := r.kv.Set(ctx, suppressKey(policyID, incidentID), until.UTC().Format(time.RFC3339Nano), window); err != nil {
		return fmt.Errorf("failed to set suppression key: %w", err)
	}
	return nil
}

// SaveLastRun records the most recent escalation run
func (r *EscalationStateRepository) SaveLastRun(ctx context.Context, run *models.EscalationRun) error {
	if err := putJSON(ctx, r.kv, keyEscalationLastRun, run, 0); err != nil {
		return fmt.Errorf("failed to save escalation run: %w", err)
	}
	return nil
}

// LastRun returns the most recent escalation run, nil if none
func (r *EscalationStateRepository) LastRun(ctx context.Context) (*models.EscalationRun, error) {
	run, _, err := getJSON[models.EscalationRun](ctx, r.kv, keyEscalationLastRun)
	if err != nil {
		return nil, fmt.Errorf("failed to read escalation run: %w", err)
	}
	if run == nil || run.RunID == "" {
		return nil, nil
	}
	return run, nil
}
