package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// DefaultIncidentListLimit caps list reads when no limit is given
const DefaultIncidentListLimit = 100

// MaxIncidentListLimit is the largest page the store returns
const MaxIncidentListLimit = 500

// IncidentRepository persists incidents by id plus a capped, most-recent-first index
type IncidentRepository struct {
	kv       KV
	indexCap int
}

// NewIncidentRepository creates a new incident repository
func NewIncidentRepository(kv KV, indexCap int) *IncidentRepository {
	if indexCap <= 0 {
		indexCap = 1000
	}
	return &IncidentRepository{kv: kv, indexCap: indexCap}
}

// Get retrieves an incident by id. Absent and malformed records both return nil.
func (r *IncidentRepository) Get(ctx context.Context, id string) (*models.Incident, error) {
	inc, _, err := getJSON[models.Incident](ctx, r.kv, keyIncident+id)
	if err != nil {
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}
	if inc == nil || !validIncident(inc) || inc.ID != id {
		return nil, nil
	}
	return inc, nil
}

// Put writes the record and refreshes its position in the index
func (r *IncidentRepository) Put(ctx context.Context, inc *models.Incident) error {
	if err := putJSON(ctx, r.kv, keyIncident+inc.ID, inc, 0); err != nil {
		return fmt.Errorf("failed to put incident: %w", err)
	}
	if err := r.kv.ZAdd(ctx, keyIncidentIndex, inc.ID, score(inc.LastSeenAt)); err != nil {
		return fmt.Errorf("failed to index incident: %w", err)
	}
	if err := r.kv.ZTrim(ctx, keyIncidentIndex, r.indexCap); err != nil {
		return fmt.Errorf("failed to trim incident index: %w", err)
	}
	return nil
}

// Upsert records a detection. An existing incident keeps its status and
// detectedAt; only lastSeenAt and evidence move. created reports a new record.
func (r *IncidentRepository) Upsert(ctx context.Context, d models.DetectedIncident, now time.Time) (*models.Incident, bool, error) {
	existing, err := r.Get(ctx, d.IncidentID)
	if err != nil {
		return nil, false, err
	}

	if existing != nil {
		if now.After(existing.LastSeenAt) {
			existing.LastSeenAt = now
		}
		existing.Evidence = d.Evidence
		if _, err := r.keepFurtherStatus(ctx, existing); err != nil {
			return nil, false, err
		}
		if err := r.Put(ctx, existing); err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	inc := &models.Incident{
		ID:         d.IncidentID,
		Type:       d.Type,
		Severity:   d.Severity,
		Scope:      d.Scope,
		Subject:    d.Subject,
		Status:     models.StatusOpen,
		DetectedAt: now,
		LastSeenAt: now,
		Evidence:   d.Evidence,
	}
	if err := r.Put(ctx, inc); err != nil {
		return nil, false, err
	}
	return inc, true, nil
}

// Ack moves an OPEN incident to ACKED. changed is false when the incident
// was already ACKED or CLOSED; the current record is returned either way.
func (r *IncidentRepository) Ack(ctx context.Context, id, actor string, now time.Time) (*models.Incident, bool, error) {
	inc, err := r.Get(ctx, id)
	if err != nil || inc == nil {
		return nil, false, err
	}
	if inc.Status.Rank() >= models.StatusAcked.Rank() {
		return inc, false, nil
	}

	at := now
	inc.Status = models.StatusAcked
	inc.AckedAt = &at
	inc.AckedBy = actor
	if current, err := r.keepFurtherStatus(ctx, inc); err != nil {
		return nil, false, err
	} else if current != nil {
		return current, false, nil
	}
	if err := r.Put(ctx, inc); err != nil {
		return nil, false, err
	}
	return inc, true, nil
}

// Close moves an incident to CLOSED. Closing a CLOSED incident is a no-op.
func (r *IncidentRepository) Close(ctx context.Context, id, actor, reason string, now time.Time) (*models.Incident, bool, error) {
	inc, err := r.Get(ctx, id)
	if err != nil || inc == nil {
		return nil, false, err
	}
	if inc.Status == models.StatusClosed {
		return inc, false, nil
	}

	at := now
	inc.Status = models.StatusClosed
	inc.ClosedAt = &at
	inc.ClosedBy = actor
	inc.CloseReason = reason
	if current, err := r.keepFurtherStatus(ctx, inc); err != nil {
		return nil, false, err
	} else if current != nil {
		return current, false, nil
	}
	if err := r.Put(ctx, inc); err != nil {
		return nil, false, err
	}
	return inc, true, nil
}

// List returns incidents newest first, filtered by status, type and severity
func (r *IncidentRepository) List(ctx context.Context, filter models.IncidentFilter) ([]models.Incident, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultIncidentListLimit
	}
	if limit > MaxIncidentListLimit {
		limit = MaxIncidentListLimit
	}

	ids, err := r.kv.ZRevRange(ctx, keyIncidentIndex, r.indexCap)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	incidents := make([]models.Incident, 0, limit)
	for _, id := range ids {
		inc, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if inc == nil {
			continue
		}
		if filter.Status != "" && string(inc.Status) != filter.Status {
			continue
		}
		if filter.Type != "" && string(inc.Type) != filter.Type {
			continue
		}
		if filter.Severity != "" && string(inc.Severity) != filter.Severity {
			continue
		}
		incidents = append(incidents, *inc)
		if len(incidents) >= limit {
			break
		}
	}
	return incidents, nil
}

// keepFurtherStatus re-reads the stored record just before a write. When a
// concurrent ack or close already moved it at least as far as inc, the stored
// lifecycle fields are copied onto inc and the stored record is returned, so
// a writer never puts OPEN over ACKED or ACKED over CLOSED.
func (r *IncidentRepository) keepFurtherStatus(ctx context.Context, inc *models.Incident) (*models.Incident, error) {
	stored, err := r.Get(ctx, inc.ID)
	if err != nil || stored == nil {
		return nil, err
	}
	if stored.Status.Rank() < inc.Status.Rank() {
		return nil, nil
	}
	if stored.Status == inc.Status && inc.Status == models.StatusOpen {
		return nil, nil
	}
	inc.Status = stored.Status
	inc.AckedAt = stored.AckedAt
	inc.AckedBy = stored.AckedBy
	inc.ClosedAt = stored.ClosedAt
	inc.ClosedBy = stored.ClosedBy
	inc.CloseReason = stored.CloseReason
	return stored, nil
}

func validIncident(inc *models.Incident) bool {
	return inc.ID != "" &&
		inc.Type.Valid() &&
		inc.Severity.Valid() &&
		inc.Status.Rank() >= 0 &&
		!inc.DetectedAt.IsZero()
}
