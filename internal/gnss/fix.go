package gnss

import (
	"math"
	"strconv"
	"strings"
)

// Markers of the position and satellite query responses.
const (
	InfoMarker = "+CGPSINFO:"
	SatMarker  = "+CGNSSINFO:"
)

const fixFields = 9

// Fix is one resolved position report. An invalid Fix carries a zero
// payload and must never reach the notification or posting paths.
type Fix struct {
	Latitude   float64 `json:"lat"`         // signed decimal degrees
	Longitude  float64 `json:"lng"`         // signed decimal degrees
	Altitude   float64 `json:"altitude"`    // meters
	SpeedKnots float64 `json:"speed_knots"` // speed over ground
	CourseDeg  float64 `json:"course_deg"`  // course over ground
	Date       string  `json:"date"`        // raw ddmmyy
	Time       string  `json:"time"`        // raw UTC hhmmss.ss
	Valid      bool    `json:"valid"`
}

// ParseFix extracts a Fix from a raw position query exchange. The response
// line is "+CGPSINFO: lat,N/S,lon,E/W,date,utc,alt,speed,course"; a module
// without a fix answers with all nine fields empty. Anything short of nine
// fields, or an empty latitude, yields an invalid Fix.
func ParseFix(raw string) Fix {
	idx := strings.Index(raw, InfoMarker)
	if idx < 0 {
		return Fix{}
	}
	rest := raw[idx+len(InfoMarker):]
	if end := strings.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	fields := strings.Split(strings.TrimSpace(rest), ",")
	if len(fields) < fixFields || fields[0] == "" {
		return Fix{}
	}
	return Fix{
		Latitude:   degrees(fields[0], fields[1]),
		Longitude:  degrees(fields[2], fields[3]),
		Date:       fields[4],
		Time:       fields[5],
		Altitude:   float(fields[6]),
		SpeedKnots: float(fields[7]),
		CourseDeg:  float(fields[8]),
		Valid:      true,
	}
}

// ParseSatCount extracts the visible satellite count from a raw satellite
// query exchange. It returns -1 when there was no recognizable response at
// all, and 0 when the module answered but has not reported a count yet.
// Callers rely on that distinction to tell a silent modem from one that is
// alive and still scanning.
func ParseSatCount(raw string) int {
	idx := strings.Index(raw, SatMarker)
	if idx < 0 {
		return -1
	}
	rest := raw[idx+len(SatMarker):]
	if end := strings.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	fields := strings.Split(strings.TrimSpace(rest), ",")
	if len(fields) < 2 {
		return -1
	}
	if fields[0] == "" || fields[1] == "" {
		return 0
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return n
}

// degrees converts a DDDMM.mmmmmm coordinate plus hemisphere into signed
// decimal degrees. Malformed input converts to 0.
func degrees(value, hemisphere string) float64 {
	v := float(value)
	whole := math.Floor(v / 100)
	deg := whole + (v-whole*100)/60
	if hemisphere == "S" || hemisphere == "W" {
		deg = -deg
	}
	return deg
}

// float parses a plain decimal field, 0 on malformed text. A zero is not
// distinguishable from an absent field; validity is tracked separately.
func float(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
