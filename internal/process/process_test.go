package process

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcess(command string, opts ...Option) *Process {
	opts = append([]Option{WithTimeouts(100*time.Millisecond, 100*time.Millisecond)}, opts...)
	return New("test", command, testLogger(), opts...)
}

func runAsync(ctx context.Context, p *Process) <-chan int {
	done := make(chan int, 1)
	go func() {
		done <- p.Run(ctx)
	}()
	return done
}

func waitForExit(t *testing.T, done <-chan int, timeout time.Duration) int {
	t.Helper()
	select {
	case code := <-done:
		return code
	case <-time.After(timeout):
		t.Fatal("timeout waiting for process to exit")
		return -1
	}
}

func waitForState(t *testing.T, p *Process, want State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for p.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", p.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    int
	}{
		{"success", "true", 0},
		{"exit status", "sh -c 'exit 42'", 42},
		{"unclosed quote", `echo "unclosed`, 1},
		{"empty", "", 1},
		{"missing binary", "/nonexistent/command/that/does/not/exist", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProcess(tt.command)
			if code := p.Run(context.Background()); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
			if p.State() != StateExited {
				t.Errorf("state = %s", p.State())
			}
		})
	}
}

func TestGracefulShutdown(t *testing.T) {
	p := New("test", `sh -c "trap 'exit 0' INT; while :; do sleep 0.05; done"`, testLogger(),
		WithTimeouts(time.Second, 100*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	waitForState(t, p, StateRunning)
	time.Sleep(50 * time.Millisecond)
	cancel()

	if code := waitForExit(t, done, 2*time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestForceKillOnTimeout(t *testing.T) {
	p := newTestProcess(`sh -c "trap '' INT; sleep 10"`)

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, p)
	waitForState(t, p, StateRunning)
	cancel()

	if code := waitForExit(t, done, time.Second); code != ExitKilled {
		t.Errorf("exit code = %d, want %d", code, ExitKilled)
	}
}

func TestRestartSwapsCommand(t *testing.T) {
	p := newTestProcess("sleep 10")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := runAsync(ctx, p)
	waitForState(t, p, StateRunning)

	if !p.Restart("true") {
		t.Fatal("restart refused")
	}
	if code := waitForExit(t, done, 2*time.Second); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
	if p.Command() != "true" || p.Restarts() != 1 {
		t.Errorf("command = %q, restarts = %d", p.Command(), p.Restarts())
	}
}

func TestRestartAlreadyPending(t *testing.T) {
	p := newTestProcess("sleep 10")

	if !p.Restart("echo first") {
		t.Fatal("first restart refused")
	}
	if p.Restart("echo second") {
		t.Error("second restart accepted while one is pending")
	}
	if got := <-p.restartCh; got != "echo first" {
		t.Errorf("pending = %q, want %q", got, "echo first")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOutputIsLeveledByParser(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn}))
	parser := func(line string) (slog.Level, string) {
		if msg, ok := strings.CutPrefix(line, "E "); ok {
			return slog.LevelError, msg
		}
		return slog.LevelInfo, line
	}

	p := newTestProcess(`sh -c "echo plain; echo 'E broken pipe' 1>&2"`, WithLogParser(logger, parser))
	if code := p.Run(context.Background()); code != 0 {
		t.Fatalf("exit code = %d", code)
	}

	got := out.String()
	if strings.Contains(got, "plain") {
		t.Errorf("info line passed the warn filter: %s", got)
	}
	if !strings.Contains(got, "level=ERROR") || !strings.Contains(got, `msg="broken pipe"`) || !strings.Contains(got, "source=stderr") {
		t.Errorf("output = %s", got)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    []string
	}{
		{"words", "ffmpeg -hide_banner -i in.h264", []string{"ffmpeg", "-hide_banner", "-i", "in.h264"}},
		{"double quotes", `ffmpeg -vf "format=yuv420p,hflip" -f sdl "main preview"`, []string{"ffmpeg", "-vf", "format=yuv420p,hflip", "-f", "sdl", "main preview"}},
		{"single quotes", `sh -c 'exit 42'`, []string{"sh", "-c", "exit 42"}},
		{"escaped space", `echo hello\ world`, []string{"echo", "hello world"}},
		{"escaped quote", `echo "say \"hi\""`, []string{"echo", `say "hi"`}},
		{"empty argument", `ffmpeg -i ""`, []string{"ffmpeg", "-i", ""}},
		{"extra spaces", "  a   b  ", []string{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand(tt.command)
			if err != nil {
				t.Fatal(err)
			}
			if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
				t.Errorf("ParseCommand(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}

	if _, err := ParseCommand(`echo "unclosed`); err == nil {
		t.Error("expected error for unclosed quote")
	}
}
