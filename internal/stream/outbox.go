// Package stream hands accepted location samples to the event stream. The
// default publisher writes an outbox table that the external relay drains.
package stream

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

const (
	OutboxStatusPending = "pending"
	OutboxStatusRelayed = "relayed"
)

// Publisher delivers an accepted sample to the event stream
type Publisher interface {
	Publish(ctx context.Context, sample models.LocationSample) error
}

// OutboxRecord is one pending or relayed sample
type OutboxRecord struct {
	ID        int64
	RiderID   string
	OrderID   string
	Seq       int64
	Payload   json.RawMessage
	Status    string
	CreatedAt time.Time
	RelayedAt *time.Time
}

// OutboxPublisher stores samples in location_outbox.
// (rider_id, order_id, seq) is unique, so republishing after a failed
// lastSeq write is a no-op rather than a duplicate event.
type OutboxPublisher struct {
	db *sql.DB
}

// NewOutboxPublisher creates a new outbox publisher
func NewOutboxPublisher(db *sql.DB) *OutboxPublisher {
	return &OutboxPublisher{db: db}
}

// Publish appends the sample to the outbox
func (p *OutboxPublisher) Publish(ctx context.Context, sample models.LocationSample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}

	query := `INSERT INTO location_outbox (rider_id, order_id, seq, payload_json, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rider_id, order_id, seq) DO NOTHING`

	_, err = p.db.ExecContext(ctx, query, sample.RiderID, sample.OrderID, sample.Seq, string(payload),
		OutboxStatusPending, sample.ServerReceivedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to publish sample: %w", err)
	}
	return nil
}

// ListPending returns the oldest pending records
func (p *OutboxPublisher) ListPending(ctx context.Context, limit int) ([]OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, rider_id, order_id, seq, payload_json, status, created_at, relayed_at
		FROM location_outbox WHERE status = ? ORDER BY id LIMIT ?`

	rows, err := p.db.QueryContext(ctx, query, OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var records []OutboxRecord
	for rows.Next() {
		var rec OutboxRecord
		var payload string
		var createdAt int64
		var relayedAt sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.RiderID, &rec.OrderID, &rec.Seq, &payload, &rec.Status, &createdAt, &relayedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox record: %w", err)
		}
		rec.Payload = json.RawMessage(payload)
		rec.CreatedAt = time.UnixMilli(createdAt).UTC()
		if relayedAt.Valid {
			t := time.UnixMilli(relayedAt.Int64).UTC()
			rec.RelayedAt = &t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkRelayed flags records as handed to the stream
func (p *OutboxPublisher) MarkRelayed(ctx context.Context, ids []int64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := []interface{}{OutboxStatusRelayed, now.UnixMilli()}
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := `UPDATE location_outbox SET status = ?, relayed_at = ?
		WHERE id IN (` + strings.Join(placeholders, ",") + `)`

	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark outbox relayed: %w", err)
	}
	return nil
}

// PurgeRelayed deletes relayed records older than cutoff
func (p *OutboxPublisher) PurgeRelayed(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := p.db.ExecContext(ctx, `DELETE FROM location_outbox WHERE status = ? AND relayed_at < ?`,
		OutboxStatusRelayed, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge outbox: %w", err)
	}
	return result.RowsAffected()
}
