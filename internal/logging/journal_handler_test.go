package logging

import (
	"context"
	"log/slog"
	"maps"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

type sentEntry struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func captureJournal(level slog.Level) (*JournalHandler, *[]sentEntry) {
	var sent []sentEntry
	h := NewJournalHandler(level)
	h.send = func(message string, priority journal.Priority, fields map[string]string) error {
		sent = append(sent, sentEntry{message, priority, maps.Clone(fields)})
		return nil
	}
	return h, &sent
}

func TestJournalFields(t *testing.T) {
	h, sent := captureJournal(slog.LevelDebug)
	logger := slog.New(h).With("module", "renderer", "renderer_id", "r1")

	logger.Warn("Optional stage unavailable",
		"stage", "video-flip",
		"context.type", "gst.gl.GLDisplay",
		"message", "shadowed",
		"fps", 29.97,
		slog.Group("caps", "width", 1280, "height", 720),
	)

	if len(*sent) != 1 {
		t.Fatalf("sent %d entries, want 1", len(*sent))
	}
	got := (*sent)[0]
	if got.priority != journal.PriWarning || got.message != "Optional stage unavailable" {
		t.Errorf("entry = %q at %d", got.message, got.priority)
	}
	want := map[string]string{
		"MESSAGE":           "Optional stage unavailable",
		"PRIORITY":          "4",
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
		"MODULE":            "renderer",
		"RENDERER_ID":       "r1",
		"STAGE":             "video-flip",
		"CONTEXT_TYPE":      "gst.gl.GLDisplay",
		"ATTR_MESSAGE":      "shadowed",
		"FPS":               "29.97",
		"CAPS_WIDTH":        "1280",
		"CAPS_HEIGHT":       "720",
	}
	if !maps.Equal(got.fields, want) {
		t.Errorf("fields = %v\nwant %v", got.fields, want)
	}
}

func TestJournalGroups(t *testing.T) {
	h, sent := captureJournal(slog.LevelInfo)
	logger := slog.New(h).WithGroup("encoder").With("codec", "vp8").WithGroup("tuning")

	logger.Info("Applied", "deadline", 1, slog.Group("nested", "a", true))
	fields := (*sent)[0].fields
	for key, want := range map[string]string{
		"ENCODER_CODEC":           "vp8",
		"ENCODER_TUNING_DEADLINE": "1",
		"ENCODER_TUNING_NESTED_A": "true",
	} {
		if fields[key] != want {
			t.Errorf("%s = %q, want %q (fields %v)", key, fields[key], want, fields)
		}
	}
}

func TestJournalLevelAndValues(t *testing.T) {
	var level slog.LevelVar
	level.Set(slog.LevelWarn)
	h, sent := captureJournal(slog.LevelDebug)
	h.level = &level
	logger := slog.New(h)

	logger.Info("dropped")
	if len(*sent) != 0 {
		t.Fatal("info sent below warn level")
	}
	level.Set(slog.LevelDebug)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	logger.Debug("kept", "at", at, "wait", 1500*time.Millisecond, "_private", "x", "2pass", "y")

	fields := (*sent)[0].fields
	if (*sent)[0].priority != journal.PriDebug {
		t.Errorf("priority = %d", (*sent)[0].priority)
	}
	for key, want := range map[string]string{
		"AT":      "2026-10-01T12:00:00Z",
		"WAIT":    "1.5s",
		"PRIVATE": "x",
		"F_2PASS": "y",
	} {
		if fields[key] != want {
			t.Errorf("%s = %q, want %q", key, fields[key], want)
		}
	}
}

func TestFieldName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"renderer_id", "RENDERER_ID"},
		{"context-type", "CONTEXT_TYPE"},
		{"__x", "X"},
		{"9lives", "F_9LIVES"},
		{"---", ""},
	}
	for _, tt := range tests {
		if got := fieldName(tt.in); got != tt.want {
			t.Errorf("fieldName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJournalEnabled(t *testing.T) {
	h, _ := captureJournal(slog.LevelWarn)
	if h.Enabled(context.Background(), slog.LevelInfo) || !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("Enabled does not follow the level")
	}
}
