package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// SequenceRepository tracks the last accepted seq per (rider, order)
type SequenceRepository struct {
	kv KV
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(kv KV) *SequenceRepository {
	return &SequenceRepository{kv: kv}
}

func lastSeqKey(riderID, orderID string) string {
	return keyLastSeq + riderID + ":" + orderID
}

// LastSeq returns the last accepted seq, ok=false when none is recorded
func (r *SequenceRepository) LastSeq(ctx context.Context, riderID, orderID string) (int64, bool, error) {
	raw, ok, err := r.kv.Get(ctx, lastSeqKey(riderID, orderID))
	if err != nil {
		return 0, false, fmt.Errorf("failed to read last seq: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	seq, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// a corrupt watermark must not block the rider forever
		return 0, false, nil
	}
	return seq, true, nil
}

// Advance records seq as the last accepted value
func (r *SequenceRepository) Advance(ctx context.Context, riderID, orderID string, seq int64, ttl time.Duration) error {
	if err := r.kv.Set(ctx, lastSeqKey(riderID, orderID), strconv.FormatInt(seq, 10), ttl); err != nil {
		return fmt.Errorf("failed to advance last seq: %w", err)
	}
	return nil
}
