package tracking

import (
	"time"

	"github.com/jengzang/tracking-ops-backend/internal/models"
	"github.com/jengzang/tracking-ops-backend/internal/spatial"
)

// Hidden is the view returned whenever customers may not see tracking
func Hidden(orderID string) *models.CustomerTrackingView {
	return &models.CustomerTrackingView{OrderID: orderID, Visibility: models.VisibilityHidden}
}

// CustomerView maps a projection to what a customer may see. The raw fix is
// never copied: the worker's marker is used when present, otherwise one is
// derived from the smoothed (or raw) position.
func CustomerView(p *models.TrackingProjection, now time.Time, th Thresholds) *models.CustomerTrackingView {
	marker := p.Marker
	if marker == nil {
		pos := p.Position
		if p.SmoothedPosition != nil {
			pos = *p.SmoothedPosition
		}
		if spatial.ValidCoordinate(pos.Lat, pos.Lng) {
			m := spatial.PrivacyMarker(pos.Lat, pos.Lng, p.AccuracyRadiusM)
			marker = &m
		}
	}

	view := &models.CustomerTrackingView{
		OrderID:         p.OrderID,
		Visibility:      models.VisibilityVisible,
		Marker:          marker,
		CheckpointState: p.CheckpointState,
		FreshnessState:  ComputeFreshnessState(p.LastUpdatedAt, now, th.StaleAfterSeconds, th.OfflineAfterSeconds),
		ETAP50:          p.ETAP50,
		ETAP90:          p.ETAP90,
	}
	// an offline marker would point customers at a stale spot
	if view.FreshnessState == models.FreshnessOffline {
		view.Marker = nil
	}
	return view
}
