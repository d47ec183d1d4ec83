package spatial

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/jengzang/tracking-ops-backend/internal/models"
)

const (
	// markerCellLevel is ~150m cells; customers see the cell centre, never the raw fix
	markerCellLevel = 16
	// regionCellLevel is ~10km cells used to group fleet risk
	regionCellLevel = 10

	markerRadiusStepM = 50
	markerMinRadiusM  = 100
)

// PrivacyMarker snaps a position to its s2 cell centre and rounds the
// accuracy radius up to a 50m step with a 100m floor
func PrivacyMarker(lat, lng, accuracyM float64) models.Marker {
	cell := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(markerCellLevel)
	centre := cell.LatLng()

	radius := int(math.Ceil(accuracyM/markerRadiusStepM)) * markerRadiusStepM
	if radius < markerMinRadiusM {
		radius = markerMinRadiusM
	}

	return models.Marker{
		Lat:     round6(centre.Lat.Degrees()),
		Lng:     round6(centre.Lng.Degrees()),
		RadiusM: radius,
	}
}

// RegionToken returns the s2 token of the coarse region containing the point
func RegionToken(lat, lng float64) string {
	if !ValidCoordinate(lat, lng) {
		return ""
	}
	return s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(regionCellLevel).ToToken()
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
