package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// killSwitchAuditCap bounds the transition log
const killSwitchAuditCap = 200

// KillSwitchRepository stores the process-wide mode and its audit trail
type KillSwitchRepository struct {
	kv KV
}

// NewKillSwitchRepository creates a new kill switch repository
func NewKillSwitchRepository(kv KV) *KillSwitchRepository {
	return &KillSwitchRepository{kv: kv}
}

// Mode returns the stored mode. ok is false when nothing valid is stored.
func (r *KillSwitchRepository) Mode(ctx context.Context) (models.KillSwitchMode, bool, error) {
	raw, ok, err := r.kv.Get(ctx, keyKillSwitchMode)
	if err != nil {
		return "", false, fmt.Errorf("failed to read kill switch mode: %w", err)
	}
	mode := models.KillSwitchMode(raw)
	if !ok || !mode.Valid() {
		return "", false, nil
	}
	return mode, true, nil
}

// SetMode stores mode
func (r *KillSwitchRepository) SetMode(ctx context.Context, mode models.KillSwitchMode) error {
	if err := r.kv.Set(ctx, keyKillSwitchMode, string(mode), 0); err != nil {
		return fmt.Errorf("failed to write kill switch mode: %w", err)
	}
	return nil
}

// AppendAudit records a transition in the capped audit index and bumps the
// activation counter of the mode switched to
func (r *KillSwitchRepository) AppendAudit(ctx context.Context, t models.KillSwitchTransition) error {
	raw, err := encodeJSON(t)
	if err != nil {
		return fmt.Errorf("failed to encode transition: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keyKillSwitchAudit, raw, score(t.TS)); err != nil {
		return fmt.Errorf("failed to append kill switch audit: %w", err)
	}
	if err := r.kv.ZTrim(ctx, keyKillSwitchAudit, killSwitchAuditCap); err != nil {
		return fmt.Errorf("failed to trim kill switch audit: %w", err)
	}
	if _, _, err := r.kv.IncrBy(ctx, keyKillSwitchActivations+string(t.Next), 1, 0); err != nil {
		return fmt.Errorf("failed to count activation: %w", err)
	}
	return nil
}

// RecentTransitions returns the audit trail newest first
func (r *KillSwitchRepository) RecentTransitions(ctx context.Context, limit int) ([]models.KillSwitchTransition, error) {
	members, err := r.kv.ZRevRange(ctx, keyKillSwitchAudit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read kill switch audit: %w", err)
	}
	out := make([]models.KillSwitchTransition, 0, len(members))
	for _, m := range members {
		var t models.KillSwitchTransition
		if err := decodeJSON(m, &t); err != nil || !t.Next.Valid() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Activations returns how many times each mode has been switched to
func (r *KillSwitchRepository) Activations(ctx context.Context) (map[models.KillSwitchMode]int64, error) {
	out := make(map[models.KillSwitchMode]int64, len(models.KillSwitchModes))
	for _, mode := range models.KillSwitchModes {
		raw, ok, err := r.kv.Get(ctx, keyKillSwitchActivations+string(mode))
		if err != nil {
			return nil, fmt.Errorf("failed to read activations: %w", err)
		}
		if !ok {
			out[mode] = 0
			continue
		}
		n, _ := strconv.ParseInt(raw, 10, 64)
		out[mode] = n
	}
	return out, nil
}
