package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/fingerprint"
	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/repository"
)

// SystemActor is the actor of entries written by tick jobs
const SystemActor = "system"

// TimelineService writes the incident audit log. Every entry id is a content
// hash, so retries collapse into one entry.
type TimelineService struct {
	repo *repository.TimelineRepository
}

// NewTimelineService creates a new timeline service
func NewTimelineService(repo *repository.TimelineRepository) *TimelineService {
	return &TimelineService{repo: repo}
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Detected records the first detection of an incident
func (s *TimelineService) Detected(ctx context.Context, inc *models.Incident) error {
	_, err := s.repo.Append(ctx, &models.IncidentTimelineEntry{
		ID:         fingerprint.Of("tl_", inc.ID, string(models.TimelineDetected), ts(inc.DetectedAt)),
		IncidentID: inc.ID,
		Type:       models.TimelineDetected,
		At:         inc.DetectedAt,
		Actor:      SystemActor,
		Data:       map[string]any{"type": string(inc.Type), "severity": string(inc.Severity), "subject": inc.Subject},
	})
	return err
}

// Escalated records an emitted step. One entry per (incident, policy, step).
func (s *TimelineService) Escalated(ctx context.Context, d models.EscalationDecision, at time.Time) error {
	data := map[string]any{
		"policyId":     d.PolicyID,
		"stepIndex":    d.StepIndex,
		"target":       string(d.Target),
		"afterMinutes": d.AfterMinutes,
	}
	if d.Resolved != nil && d.Resolved.User != nil {
		data["user"] = *d.Resolved.User
	}
	_, err := s.repo.Append(ctx, &models.IncidentTimelineEntry{
		ID:         fingerprint.Of("tl_", d.IncidentID, string(models.TimelineEscalated), d.PolicyID, strconv.Itoa(d.StepIndex)),
		IncidentID: d.IncidentID,
		Type:       models.TimelineEscalated,
		At:         at,
		Actor:      SystemActor,
		Data:       data,
	})
	return err
}

// Transition records an ack or close
func (s *TimelineService) Transition(ctx context.Context, incidentID string, typ models.TimelineEntryType, at time.Time, actor, text string) error {
	_, err := s.repo.Append(ctx, &models.IncidentTimelineEntry{
		ID:         fingerprint.Of("tl_", incidentID, string(typ), ts(at), actor),
		IncidentID: incidentID,
		Type:       typ,
		At:         at,
		Actor:      actor,
		Text:       text,
	})
	return err
}

// Note appends a free-text note. The same text from the same actor at the
// same instant is stored once; appended is false for the duplicate.
func (s *TimelineService) Note(ctx context.Context, incidentID, actor, text string, at time.Time) (*models.IncidentTimelineEntry, bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false, ErrInvalidNote
	}

	entry := &models.IncidentTimelineEntry{
		ID:         fingerprint.Of("tl_", incidentID, string(models.TimelineNote), ts(at), actor, text),
		IncidentID: incidentID,
		Type:       models.TimelineNote,
		At:         at,
		Actor:      actor,
		Text:       text,
	}
	appended, err := s.repo.Append(ctx, entry)
	if err != nil {
		return nil, false, err
	}
	return entry, appended, nil
}

// List returns an incident's timeline oldest first
func (s *TimelineService) List(ctx context.Context, incidentID string) ([]models.IncidentTimelineEntry, error) {
	return s.repo.List(ctx, incidentID)
}
