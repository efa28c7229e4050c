package store

import (
	"time"

	"github.com/google/uuid"
)

// TimeFormat is the canonical timestamp layout. Millisecond precision UTC,
// chosen so lexicographic order equals chronological order.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// Now returns the current UTC time in the canonical layout. Every created_at,
// updated_at and date_time in the store goes through this single clock.
func Now() string {
	return FormatTime(time.Now())
}

// FormatTime renders t in the canonical layout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a canonical timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeFormat, s)
}

// GenerateID returns a fresh record identifier.
func GenerateID() string {
	return uuid.NewString()
}
