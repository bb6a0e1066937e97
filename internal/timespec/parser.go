// Package timespec parses the --since and --until flags.
package timespec

import (
	"fmt"
	"time"
)

// Parse turns a duration ("90s", "1h30m", taken as that long before now) or
// an RFC3339 timestamp into Unix milliseconds.
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}
	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("negative duration: %s", spec)
		}
		return now.Add(-d).UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid time specification: %s (use a duration like '15m' or RFC3339 like '2026-10-19T09:00:00Z')", spec)
}

// ParseRange parses both bounds. Empty inputs yield 0, meaning unbounded.
func ParseRange(since, until string, now time.Time) (sinceMs, untilMs int64, err error) {
	if since != "" {
		if sinceMs, err = Parse(since, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if untilMs, err = Parse(until, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}
	if sinceMs > 0 && untilMs > 0 && sinceMs >= untilMs {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}
	return sinceMs, untilMs, nil
}
