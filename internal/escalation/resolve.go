package escalation

import (
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
)

// ActiveSchedule picks the schedule in force at now: the latest effectiveFrom
// not after now, preferring the policy's team when it has one
func ActiveSchedule(schedules []models.OnCallSchedule, team string, now time.Time) *models.OnCallSchedule {
	var best *models.OnCallSchedule
	for i := range schedules {
		s := &schedules[i]
		if s.EffectiveFrom.After(now) {
			continue
		}
		if team != "" && s.Team != team {
			continue
		}
		if best == nil || s.EffectiveFrom.After(best.EffectiveFrom) ||
			(s.EffectiveFrom.Equal(best.EffectiveFrom) && s.ID < best.ID) {
			best = s
		}
	}
	if best == nil && team != "" {
		return ActiveSchedule(schedules, "", now)
	}
	return best
}

// ResolveTarget maps an abstract target to a person. A missing schedule or
// an empty slot resolves to a nil user; escalation still fires.
func ResolveTarget(target models.EscalationTarget, schedule *models.OnCallSchedule, managerFallback string) models.ResolvedTarget {
	out := models.ResolvedTarget{Target: target}

	var user string
	if schedule != nil {
		out.ScheduleID = schedule.ID
		switch target {
		case models.TargetOnCallPrimary:
			user = schedule.Primary
		case models.TargetOnCallSecondary:
			user = schedule.Secondary
		case models.TargetOpsManager:
			user = schedule.Manager
		}
	}
	if user == "" && target == models.TargetOpsManager {
		user = managerFallback
	}
	if user != "" {
		out.User = &user
	}
	return out
}
