package ffmpeg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"[warning] deprecated pixel format used", "warning", "deprecated pixel format used"},
		{"[h264 @ 0x55d1c] [error] no frame!", "error", "[h264 @ 0x55d1c] no frame!"},
		{"[h264 @ 0x55d1c] decoding", "info", "[h264 @ 0x55d1c] decoding"},
		{"Input #0, v4l2, from '/dev/video0':", "info", "Input #0, v4l2, from '/dev/video0':"},
		{"[]", "info", "[]"},
	}
	for _, tt := range tests {
		level, msg := ParseLogLevel(tt.line)
		if level != tt.wantLevel || msg != tt.wantMsg {
			t.Errorf("ParseLogLevel(%q) = %q, %q, want %q, %q", tt.line, level, msg, tt.wantLevel, tt.wantMsg)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"fatal":   slog.LevelError,
		"error":   slog.LevelError,
		"warning": slog.LevelWarn,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelDebug,
		"trace":   slog.LevelDebug,
	}
	for level, want := range tests {
		if got := slogLevel(level); got != want {
			t.Errorf("slogLevel(%s) = %v, want %v", level, got, want)
		}
	}
}

func TestLogStderr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	logStderr(logger, []byte("[info] starting\n\n[error] broken pipe\n"))

	out := buf.String()
	if strings.Contains(out, "starting") {
		t.Errorf("info line passed a warn handler: %s", out)
	}
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "broken pipe") {
		t.Errorf("error line missing: %s", out)
	}
}

func TestParseLine(t *testing.T) {
	level, msg := ParseLine("[h264 @ 0x55d1c] [warning] missing picture")
	if level != slog.LevelWarn || msg != "[h264 @ 0x55d1c] missing picture" {
		t.Errorf("ParseLine = %v %q", level, msg)
	}
}
