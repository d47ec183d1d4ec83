package spatial

import (
	"math"
	"testing"
)

func TestValidCoordinate(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     bool
	}{
		{31.2304, 121.4737, true},
		{89.9999, 179.9999, true},
		{-89.9999, -179.9999, true},
		{90.0001, 0, false},
		{0, 180.5, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	}
	for _, c := range cases {
		if got := ValidCoordinate(c.lat, c.lng); got != c.want {
			t.Fatalf("ValidCoordinate(%v, %v) = %v, want %v", c.lat, c.lng, got, c.want)
		}
	}
}

func TestPrivacyMarkerHidesRawPosition(t *testing.T) {
	lat, lng := 31.230416, 121.473701
	m := PrivacyMarker(lat, lng, 12)

	if m.RadiusM != markerMinRadiusM {
		t.Fatalf("expected radius floor %d, got %d", markerMinRadiusM, m.RadiusM)
	}
	if m.Lat == lat && m.Lng == lng {
		t.Fatalf("marker must not echo the raw fix")
	}
	if d := HaversineDistance(lat, lng, m.Lat, m.Lng); d > 300 {
		t.Fatalf("marker too far from fix: %.1fm", d)
	}

	// the cell centre maps back onto the same marker
	if PrivacyMarker(m.Lat, m.Lng, 12) != m {
		t.Fatalf("expected marker to be stable under re-snapping")
	}

	if got := PrivacyMarker(lat, lng, 151).RadiusM; got != 200 {
		t.Fatalf("expected 200m rounded radius, got %d", got)
	}
}

func TestRegionToken(t *testing.T) {
	if RegionToken(31.23, 121.47) == "" {
		t.Fatalf("expected token")
	}
	if RegionToken(31.23, 121.47) == RegionToken(39.90, 116.40) {
		t.Fatalf("expected distant cities in different regions")
	}
	if RegionToken(200, 0) != "" {
		t.Fatalf("expected empty token for invalid point")
	}
}
