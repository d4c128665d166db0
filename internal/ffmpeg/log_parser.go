package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strings"
)

// ParseLogLevel splits an ffmpeg line printed with "-loglevel level+..."
// into its level and message. Lines look like "[warning] message" or
// "[component @ 0x...] [error] message"; the component prefix is kept.
// Lines without a level are info.
func ParseLogLevel(line string) (level, msg string) {
	if len(line) < 3 || line[0] != '[' {
		return "info", line
	}

	end := strings.Index(line, "] ")
	if end == -1 {
		return "info", line
	}

	if bracket := line[1:end]; isLogLevel(bracket) {
		return bracket, line[end+2:]
	}

	component, rest := line[:end+2], line[end+2:]
	if len(rest) > 2 && rest[0] == '[' {
		if next := strings.Index(rest, "] "); next != -1 && isLogLevel(rest[1:next]) {
			return rest[1:next], component + rest[next+2:]
		}
	}
	return "info", line
}

func isLogLevel(s string) bool {
	switch s {
	case "quiet", "panic", "fatal", "error", "warning", "info", "verbose", "debug", "trace":
		return true
	}
	return false
}

// slogLevel maps an ffmpeg level to the closest slog level.
func slogLevel(level string) slog.Level {
	switch level {
	case "panic", "fatal", "error":
		return slog.LevelError
	case "warning":
		return slog.LevelWarn
	case "verbose", "debug", "trace":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// ParseLine is ParseLogLevel with the level mapped to slog. It fits
// process.LogParser.
func ParseLine(line string) (slog.Level, string) {
	level, msg := ParseLogLevel(line)
	return slogLevel(level), msg
}

// logStderr forwards each ffmpeg stderr line to logger at its own level.
func logStderr(logger *slog.Logger, stderr []byte) {
	scanner := bufio.NewScanner(bytes.NewReader(stderr))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		level, msg := ParseLogLevel(line)
		logger.Log(context.Background(), slogLevel(level), msg, "source", "ffmpeg")
	}
}
