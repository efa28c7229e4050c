package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestNewWritesStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "core-test", Output: &buf})

	logg.Info(context.Background(), "hello")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if payload["service"] != "core-test" {
		t.Fatalf("expected service field, got %v", payload["service"])
	}
	if payload["message"] != "hello" {
		t.Fatalf("expected message field, got %v", payload["message"])
	}
}

func TestContextFieldsPropagate(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "core-test", Output: &buf})

	ctx := logg.WithUserID(context.Background(), "user-1")
	ctx = logg.WithBusinessID(ctx, "biz-1")
	ctx = logg.WithBookID(ctx, "book-1")
	logg.Info(ctx, "scoped")

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if payload["user_id"] != "user-1" || payload["business_id"] != "biz-1" || payload["book_id"] != "book-1" {
		t.Fatalf("expected scoped fields, got %v", payload)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "core-test", Level: zerolog.WarnLevel, Output: &buf})

	logg.Info(context.Background(), "suppressed")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}

	logg.Warn(context.Background(), "visible")
	if buf.Len() == 0 {
		t.Fatalf("warn should be emitted")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != zerolog.DebugLevel {
		t.Fatalf("expected debug level")
	}
	if ParseLevel(" ") != zerolog.InfoLevel {
		t.Fatalf("blank input should default to info")
	}
	if ParseLevel("bogus") != zerolog.InfoLevel {
		t.Fatalf("unknown input should default to info")
	}
}
