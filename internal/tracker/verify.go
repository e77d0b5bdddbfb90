package tracker

import (
	"time"

	"github.com/dumacp/gpsnmea"
	"github.com/golang/geo/s2"

	"github.com/dumacp/go-tracker/internal/gnss"
)

const timeLayout = "150405"

// Plausible checks that the movement between two consecutive fixes does
// not imply a speed above maxKmh. Fixes whose timestamps cannot be
// compared are accepted; the check only rejects what it can measure.
func Plausible(prev, cur gnss.Fix, maxKmh float64) bool {
	t0, err := time.Parse(timeLayout, clockPart(prev.Time))
	if err != nil {
		return true
	}
	t1, err := time.Parse(timeLayout, clockPart(cur.Time))
	if err != nil {
		return true
	}
	if !t1.After(t0) {
		return true
	}
	hours := t1.Sub(t0).Hours()

	p0 := s2.LatLngFromDegrees(prev.Latitude, prev.Longitude)
	p1 := s2.LatLngFromDegrees(cur.Latitude, cur.Longitude)
	km := p0.Distance(p1).Degrees() * 111.139

	return km/hours <= maxKmh
}

// Moved reports whether cur is at least minMeters away from prev.
func Moved(prev, cur gnss.Fix, minMeters float64) bool {
	km := gpsnmea.Distance(prev.Latitude, prev.Longitude, cur.Latitude, cur.Longitude, "K")
	return km > minMeters*0.90/1000
}

// clockPart strips the fractional seconds from an hhmmss.ss field.
func clockPart(t string) string {
	if len(t) > 6 {
		return t[:6]
	}
	return t
}
