package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/tracking"
)

// Projection drop reasons
const (
	DropDecodeError     = "decode_error"
	DropVersionMismatch = "version_mismatch"
	DropMissingFields   = "missing_fields"
)

// ProjectionRepository reads the per-order tracking projections written by the enrichment worker
type ProjectionRepository struct {
	kv KV

	// OnDrop is called when a stored record is treated as absent
	OnDrop func(reason string)
	// OnRead is called for every successfully decoded record
	OnRead func()
}

// NewProjectionRepository creates a new projection repository
func NewProjectionRepository(kv KV) *ProjectionRepository {
	return &ProjectionRepository{kv: kv}
}

// Get returns the current projection of an order, or nil if absent, expired or malformed
func (r *ProjectionRepository) Get(ctx context.Context, orderID string) (*models.TrackingProjection, error) {
	p, corrupt, err := getJSON[models.TrackingProjection](ctx, r.kv, keyProjection+orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get projection: %w", err)
	}
	if corrupt {
		r.drop(DropDecodeError)
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}
	if p.Version != models.ProjectionSchemaVersion {
		r.drop(DropVersionMismatch)
		return nil, nil
	}
	if p.OrderID == "" || p.OrderID != orderID {
		r.drop(DropMissingFields)
		return nil, nil
	}
	if r.OnRead != nil {
		r.OnRead()
	}
	return p, nil
}

// Put stores a projection with a TTL and marks the order active.
// This is the enrichment worker's side of the contract.
func (r *ProjectionRepository) Put(ctx context.Context, p *models.TrackingProjection, ttl time.Duration) error {
	if p.Version == 0 {
		p.Version = models.ProjectionSchemaVersion
	}
	if err := putJSON(ctx, r.kv, keyProjection+p.OrderID, p, ttl); err != nil {
		return fmt.Errorf("failed to put projection: %w", err)
	}
	updated, ok := tracking.ParseTimestamp(p.LastUpdatedAt)
	if !ok {
		updated = time.Time{}
	}
	if err := r.kv.ZAdd(ctx, keyActiveOrders, p.OrderID, score(updated)); err != nil {
		return fmt.Errorf("failed to index projection: %w", err)
	}
	return nil
}

// ActiveOrders lists order ids with a projection, most recently updated first
func (r *ProjectionRepository) ActiveOrders(ctx context.Context, limit int) ([]string, error) {
	ids, err := r.kv.ZRevRange(ctx, keyActiveOrders, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list active orders: %w", err)
	}
	return ids, nil
}

// Forget removes an order from the active index once its projection has expired
func (r *ProjectionRepository) Forget(ctx context.Context, orderID string) error {
	return r.kv.ZRem(ctx, keyActiveOrders, orderID)
}

func (r *ProjectionRepository) drop(reason string) {
	if r.OnDrop != nil {
		r.OnDrop(reason)
	}
}
