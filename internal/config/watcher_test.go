package config

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startWatcher(t *testing.T, path string, loader func(string) (Tuning, error), opts ...WatcherOption[Tuning]) *Watcher[Tuning] {
	t.Helper()
	opts = append([]WatcherOption[Tuning]{WithDebounce[Tuning](50 * time.Millisecond)}, opts...)
	w := NewWatcher(path, loader, quietLogger(), opts...)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)
	return w
}

func TestWatcherReload(t *testing.T) {
	path := writeFile(t, "tuning.toml", "[encoders.vp8enc]\ncpu-used = -6\n")

	w := startWatcher(t, path, LoadTuning)
	received := make(chan Tuning, 1)
	w.OnReload(func(tuning Tuning) { received <- tuning })

	if err := os.WriteFile(path, []byte("[encoders.vp8enc]\ncpu-used = -4\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case tuning := <-received:
		if got := tuning.Encoders["vp8enc"]["cpu-used"]; got != int64(-4) {
			t.Errorf("cpu-used = %v, want -4", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherDebounce(t *testing.T) {
	path := writeFile(t, "tuning.toml", "")

	var loads atomic.Int32
	loader := func(p string) (Tuning, error) {
		loads.Add(1)
		return LoadTuning(p)
	}
	w := startWatcher(t, path, loader, WithDebounce[Tuning](200*time.Millisecond))
	received := make(chan Tuning, 10)
	w.OnReload(func(tuning Tuning) { received <- tuning })

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("[preference]\nVP8 = [\"vp8enc\"]\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
	time.Sleep(300 * time.Millisecond)

	if n := loads.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestWatcherUnsubscribe(t *testing.T) {
	path := writeFile(t, "tuning.toml", "")

	w := startWatcher(t, path, LoadTuning)
	first := make(chan Tuning, 1)
	second := make(chan Tuning, 1)
	unsub := w.OnReload(func(tuning Tuning) { first <- tuning })
	w.OnReload(func(tuning Tuning) { second <- tuning })
	unsub()

	if err := os.WriteFile(path, []byte("[preference]\nH264 = []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for remaining handler")
	}
	select {
	case <-first:
		t.Error("unsubscribed handler was called")
	default:
	}
}

func TestWatcherErrorHandler(t *testing.T) {
	path := writeFile(t, "tuning.toml", "")

	errs := make(chan error, 1)
	w := startWatcher(t, path, LoadTuning, WithErrorHandler[Tuning](func(err error) { errs <- err }))
	w.OnReload(func(Tuning) { t.Error("handler called for a broken file") })

	if err := os.WriteFile(path, []byte("[encoders\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		if err == nil {
			t.Error("nil error delivered")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func TestWatcherStartMissingFile(t *testing.T) {
	w := NewWatcher("/nonexistent/tuning.toml", func(string) (Tuning, error) {
		return Tuning{}, errors.New("unreachable")
	}, quietLogger())
	if err := w.Start(); err == nil {
		t.Fatal("expected error watching a missing file")
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop after failed Start: %v", err)
	}
}
