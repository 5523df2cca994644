// internal/schedule/window.go
// Decides, per subscriber and in the subscriber's own zone, whether an instant
// falls inside the send window around their preferred time.

package schedule

import (
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the +/- minute window around the preferred time
const DefaultTolerance = 2

// MatchMode selects how the window treats hour boundaries
type MatchMode string

const (
	// SameHour only matches instants in the preferred hour, so 19:59 does not
	// match 20:01. This is the production behaviour.
	SameHour MatchMode = "same-hour"
	// CrossHour compares minute-of-day distance on a 24h clock
	CrossHour MatchMode = "cross-hour"
)

// ParseMatchMode maps a config value to a MatchMode; unknown values fall back to SameHour
func ParseMatchMode(s string) MatchMode {
	if MatchMode(strings.ToLower(strings.TrimSpace(s))) == CrossHour {
		return CrossHour
	}
	return SameHour
}

// Matcher carries the window settings used by the scheduler
type Matcher struct {
	Tolerance int
	Mode      MatchMode
}

// NewMatcher creates a new Matcher. A negative tolerance is treated as the default.
func NewMatcher(tolerance int, mode MatchMode) Matcher {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}
	if mode == "" {
		mode = SameHour
	}
	return Matcher{Tolerance: tolerance, Mode: mode}
}

// ShouldFire reports whether now, seen in timezone, is within the window of
// preferredTime. It never fails: an unknown zone or an unparsable time yields false.
func (m Matcher) ShouldFire(now time.Time, timezone, preferredTime string, force bool) bool {
	if force {
		return true
	}

	local, ok := LocalNow(now, timezone)
	if !ok {
		return false
	}

	hour, minute, ok := ParseClock(preferredTime)
	if !ok {
		return false
	}

	if m.Mode == CrossHour {
		diff := abs(local.Hour()*60 + local.Minute() - (hour*60 + minute))
		if diff > 12*60 {
			diff = 24*60 - diff
		}
		return diff <= m.Tolerance
	}

	return local.Hour() == hour && abs(local.Minute()-minute) <= m.Tolerance
}

// ShouldFire applies the same-hour rule with the given tolerance
func ShouldFire(now time.Time, timezone, preferredTime string, tolerance int, force bool) bool {
	return NewMatcher(tolerance, SameHour).ShouldFire(now, timezone, preferredTime, force)
}

// LocalNow converts now into the named zone. ok is false for an empty,
// "Local" or unknown zone name.
func LocalNow(now time.Time, timezone string) (time.Time, bool) {
	if timezone == "" || strings.EqualFold(timezone, "local") {
		return time.Time{}, false
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, false
	}
	return now.In(loc), true
}

// ParseClock parses a 24-hour "HH:MM" string
func ParseClock(s string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(s), ":")
	if !found || len(h) == 0 || len(h) > 2 || len(m) != 2 || !isDigits(h) || !isDigits(m) {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
