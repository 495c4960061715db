// Package timegrid maps wall-clock time onto the continuous decimal-hour axis
// of a single day and back onto pixels.
package timegrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// HoursPerDay is the length of the day axis.
	HoursPerDay = 24.0
	// Granularity is the snapping step (15 minutes).
	Granularity = 0.25
	// MinDuration is the shortest block a resize can produce.
	MinDuration = 0.25
)

// Scale is a pixels-per-hour factor. The same value must be used to read
// pointer deltas and to render.
type Scale float64

const (
	ScaleNormal Scale = 60
	ScaleZoomed Scale = 120
)

// PixelsPerHour returns the scale as a float, falling back to ScaleNormal
// for non-positive values.
func (s Scale) PixelsPerHour() float64 {
	if s <= 0 {
		return float64(ScaleNormal)
	}
	return float64(s)
}

// ToY converts an hour offset into a pixel offset.
func ToY(hour, pixelsPerHour float64) float64 {
	return hour * pixelsPerHour
}

// ToHour converts a pixel offset into an hour offset.
func ToHour(pixels, pixelsPerHour float64) float64 {
	if pixelsPerHour <= 0 {
		pixelsPerHour = float64(ScaleNormal)
	}
	return pixels / pixelsPerHour
}

// Snap rounds hour to the nearest quarter hour.
func Snap(hour float64) float64 {
	return SnapTo(hour, Granularity)
}

// SnapTo rounds hour to the nearest multiple of granularity.
func SnapTo(hour, granularity float64) float64 {
	if granularity <= 0 {
		return hour
	}
	return math.Round(hour/granularity) * granularity
}

// ClampStart keeps a block of the given duration inside [0, 24].
func ClampStart(start, duration float64) float64 {
	limit := HoursPerDay - ClampDuration(duration)
	if start > limit {
		start = limit
	}
	if start < 0 || math.IsNaN(start) {
		start = 0
	}
	return start
}

// ClampDuration keeps duration within [MinDuration, 24].
func ClampDuration(duration float64) float64 {
	if duration < MinDuration || math.IsNaN(duration) {
		return MinDuration
	}
	if duration > HoursPerDay {
		return HoursPerDay
	}
	return duration
}

// Place snaps start and duration and clamps the pair so the block stays on the day.
func Place(start, duration float64) (float64, float64) {
	duration = ClampDuration(Snap(duration))
	start = ClampStart(Snap(ClampStart(start, duration)), duration)
	return start, duration
}

// HourOf projects t onto the decimal-hour axis of its own calendar day.
func HourOf(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60 + float64(t.Second())/3600
}

// ClockToHour parses "HH:MM" into decimal hours.
func ClockToHour(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return float64(h) + float64(m)/60, nil
}

// HourToClock renders decimal hours as "HH:MM", rounded to the minute.
func HourToClock(hour float64) string {
	mins := int(math.Round(hour * 60))
	if mins < 0 {
		mins = 0
	}
	if mins > 24*60 {
		mins = 24 * 60
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// At returns the instant at hour on day in loc.
func At(day time.Time, hour float64, loc *time.Location) time.Time {
	y, m, d := day.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(math.Round(hour * float64(time.Hour))))
}
