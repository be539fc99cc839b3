package domain

import "time"

// DecomposeTime splits a timestamp into multi-resolution components for
// time-bucketed aggregation. Pure and idempotent. Weekday is Monday=0
// through Sunday=6.
func DecomposeTime(t time.Time) TimeParts {
	return TimeParts{
		Hour:    t.Hour(),
		Day:     t.Day(),
		Weekday: (int(t.Weekday()) + 6) % 7,
		Month:   int(t.Month()),
		Year:    t.Year(),
	}
}

// EnrichTemporal attaches the decomposition of the record's primary timestamp.
// A zero primary timestamp is a no-op, not an error: malformed late records
// pass through and the caller decides whether to keep them.
func EnrichTemporal(rec *CanonicalRecord) {
	if rec.PrimaryTime.IsZero() {
		return
	}
	rec.Clock = DecomposeTime(rec.PrimaryTime)
}
