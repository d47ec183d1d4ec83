package spatial

import (
	"github.com/golang/geo/s2"
)

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// ValidCoordinate reports whether lat/lng are finite and in range
func ValidCoordinate(lat, lng float64) bool {
	return ValidLatitude(lat) && ValidLongitude(lng)
}

// ValidLatitude reports whether lat is within [-90, 90]
func ValidLatitude(lat float64) bool {
	return s2.LatLngFromDegrees(lat, 0).IsValid()
}

// ValidLongitude reports whether lng is within [-180, 180]
func ValidLongitude(lng float64) bool {
	return s2.LatLngFromDegrees(0, lng).IsValid()
}

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)
