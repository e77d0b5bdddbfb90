package tracker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dumacp/go-tracker/internal/gnss"
)

// Report is the position document posted to the configured endpoint.
type Report struct {
	DeviceID    string  `json:"device_id"`
	TimestampMs int64   `json:"timestampMs"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	Altitude    float64 `json:"altitude"`
	SpeedKnots  float64 `json:"speed_knots"`
	CourseDeg   float64 `json:"course_deg"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
}

func NewReport(deviceID string, fix gnss.Fix, now time.Time) Report {
	return Report{
		DeviceID:    deviceID,
		TimestampMs: now.UnixNano() / int64(time.Millisecond),
		Lat:         fix.Latitude,
		Lng:         fix.Longitude,
		Altitude:    fix.Altitude,
		SpeedKnots:  fix.SpeedKnots,
		CourseDeg:   fix.CourseDeg,
		Date:        fix.Date,
		Time:        fix.Time,
	}
}

func (r Report) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// Summary renders a fix for SMS bodies and log lines.
func Summary(fix gnss.Fix) string {
	return fmt.Sprintf("lat=%.6f lng=%.6f alt=%.1fm speed=%.1fkn course=%.1f utc=%s %s",
		fix.Latitude, fix.Longitude, fix.Altitude, fix.SpeedKnots, fix.CourseDeg,
		fix.Date, fix.Time)
}
