package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// OrderRepository reads the order context table maintained by the order service
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByID retrieves an order's context, nil if unknown
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*models.OrderContext, error) {
	query := `SELECT order_id, rider_id, customer_id, promised_window_end
		FROM order_context WHERE order_id = ?`

	var oc models.OrderContext
	var windowEnd sql.NullString
	err := r.db.QueryRowContext(ctx, query, orderID).Scan(&oc.OrderID, &oc.RiderID, &oc.CustomerID, &windowEnd)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order context: %w", err)
	}

	if windowEnd.Valid && windowEnd.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, windowEnd.String); err == nil {
			oc.PromisedWindowEnd = &t
		}
	}
	return &oc, nil
}

// Upsert writes an order's context. Used by seeding and tests; the order service owns the table.
func (r *OrderRepository) Upsert(ctx context.Context, oc *models.OrderContext, now time.Time) error {
	var windowEnd any
	if oc.PromisedWindowEnd != nil {
		windowEnd = oc.PromisedWindowEnd.UTC().Format(time.RFC3339Nano)
	}

	query := `INSERT INTO order_context (order_id, rider_id, customer_id, promised_window_end, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(order_id) DO UPDATE SET
			rider_id = excluded.rider_id,
			customer_id = excluded.customer_id,
			promised_window_end = excluded.promised_window_end,
			updated_at = excluded.updated_at`

	_, err := r.db.ExecContext(ctx, query, oc.OrderID, oc.RiderID, oc.CustomerID, windowEnd, now.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to upsert order context: %w", err)
	}
	return nil
}
