package services

import (
	"strings"
	"time"

	"kigaligo/internal/domain/entities"
	"kigaligo/internal/geo"
)

// sinceLayouts are tried in order. Layouts without a zone offset are read
// as UTC.
var sinceLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseSince parses an ISO-8601 cursor. Failure is a *geo.ValidationError.
func ParseSince(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, geo.NewValidationError("since", "cursor is empty")
	}
	for _, layout := range sinceLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, geo.NewValidationError("since", "cannot parse %q as an ISO-8601 timestamp", raw)
}

// ClampSince returns max(since, now-maxAge).
func ClampSince(since, now time.Time, maxAge time.Duration) time.Time {
	floor := now.Add(-maxAge)
	if since.Before(floor) {
		return floor
	}
	return since
}

// IsIncrementalMatch reports whether v belongs in an incremental result for
// the given cursor: updated at or after since, or flagged always-visible.
func IsIncrementalMatch(v *entities.Vehicle, since time.Time) bool {
	return !v.UpdatedAt.Before(since) || v.AlwaysVisible
}
