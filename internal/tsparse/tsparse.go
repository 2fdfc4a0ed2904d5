// Package tsparse normalizes the handful of timestamp representations
// OpenTSDB accepts: epoch numbers (seconds or milliseconds, disambiguated
// by magnitude), "now", relative "<n><unit>-ago" specs, and ISO-8601
// strings. Both the ingest path (§4.5) and the query time-range fields
// (§6.2) share this rule, so it lives in one place.
package tsparse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// epochSplitPoint is the magnitude rule from §6.2/§4.5: a whole-second
// epoch fits in 10 digits (up to ~2286-11-20); anything larger, or any
// value with a fractional component that still exceeds that range once
// truncated, is treated as milliseconds.
const epochSplitPoint = 1e10

// NumberToTime converts a bare numeric epoch value, applying the
// seconds-vs-milliseconds disambiguation rule shared by ingest and query.
func NumberToTime(v float64) time.Time {
	if v <= epochSplitPoint {
		sec := math.Floor(v)
		frac := v - sec
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	millis := int64(v)
	return time.UnixMilli(millis).UTC()
}

var relativeSpec = regexp.MustCompile(`^(\d+)(ms|s|m|h|d|w|n|y)-ago$`)

// unitDuration maps a relative-spec unit to its duration. "n" (month) and
// "y" (year) use fixed 30-day/365-day approximations, matching OpenTSDB's
// own relative-time handling rather than calendar-aware arithmetic.
func unitDuration(unit string) time.Duration {
	switch unit {
	case "ms":
		return time.Millisecond
	case "s":
		return time.Second
	case "m":
		return time.Minute
	case "h":
		return time.Hour
	case "d":
		return 24 * time.Hour
	case "w":
		return 7 * 24 * time.Hour
	case "n":
		return 30 * 24 * time.Hour
	case "y":
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// ParseTimeSpec parses one of: "now", "<n><unit>-ago", a numeric epoch
// (seconds or millis per NumberToTime), or an RFC3339/ISO-8601 string.
func ParseTimeSpec(spec string, now time.Time) (time.Time, error) {
	if spec == "" || spec == "now" {
		return now, nil
	}

	if m := relativeSpec.FindStringSubmatch(spec); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid relative time spec %q: %w", spec, err)
		}
		d := unitDuration(m[2]) * time.Duration(n)
		return now.Add(-d), nil
	}

	if f, err := strconv.ParseFloat(spec, 64); err == nil {
		return NumberToTime(f), nil
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05", spec); err == nil {
		return t.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("unrecognized time spec %q", spec)
}
