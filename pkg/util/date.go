package util

import (
	"strconv"
	"time"
)

// ParseTime tries RFC3339, RFC3339Nano, YYYY-MM-DD and unix seconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return time.Unix(ts, 0), true
	}
	return time.Time{}, false
}

// ResolveRange turns optional unix-second bounds into a concrete window.
// A missing to means now; a missing from means to minus def. Inverted
// bounds are swapped.
func ResolveRange(from, to int64, def time.Duration, now time.Time) (time.Time, time.Time) {
	end := now
	if to > 0 {
		end = time.Unix(to, 0)
	}
	start := end.Add(-def)
	if from > 0 {
		start = time.Unix(from, 0)
	}
	if start.After(end) {
		start, end = end, start
	}
	return start.UTC(), end.UTC()
}

// AlignFromTo truncates both bounds to a multiple of step. A step below one
// second aligns to the minute.
func AlignFromTo(from, to time.Time, step time.Duration) (time.Time, time.Time) {
	if step < time.Second {
		step = time.Minute
	}
	return from.Truncate(step), to.Truncate(step)
}
