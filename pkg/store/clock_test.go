package store

import (
	"testing"
	"time"
)

func TestTimestampOrderIsLexicographic(t *testing.T) {
	base := time.Date(2026, 8, 9, 23, 59, 59, 999_000_000, time.UTC)
	earlier := FormatTime(base)
	later := FormatTime(base.Add(time.Millisecond))
	if !(earlier < later) {
		t.Fatalf("expected %q < %q", earlier, later)
	}
	if earlier != "2026-08-09T23:59:59.999Z" {
		t.Fatalf("unexpected layout %q", earlier)
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	stamp := Now()
	parsed, err := ParseTime(stamp)
	if err != nil {
		t.Fatalf("parse %q: %v", stamp, err)
	}
	if FormatTime(parsed) != stamp {
		t.Fatalf("round trip changed %q to %q", stamp, FormatTime(parsed))
	}
}

func TestGenerateIDIsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := GenerateID()
		if id == "" || seen[id] {
			t.Fatalf("duplicate or empty id %q", id)
		}
		seen[id] = true
	}
}
