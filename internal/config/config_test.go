package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Address   string   `toml:"server.address" env:"SERVER_ADDRESS"`
	Mobile    bool     `toml:"platform.mobile" env:"PLATFORM_MOBILE"`
	MTU       uint32   `toml:"payload.mtu" env:"PAYLOAD_MTU"`
	RTXTime   int      `toml:"payload.rtx_time" env:"PAYLOAD_RTX_TIME"`
	Framerate float64  `toml:"payload.framerate" env:"PAYLOAD_FRAMERATE"`
	Codecs    []string `toml:"payload.codecs" env:"PAYLOAD_CODECS"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const sampleConfig = `
[server]
address = ":9000"

[platform]
mobile = true

[payload]
mtu = 1400
rtx_time = 250
framerate = 29.97
codecs = ["H264", "VP8"]
`

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeFile(t, "mediagraph.toml", sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	want := testOptions{
		Config:    opts.Config,
		Address:   ":9000",
		Mobile:    true,
		MTU:       1400,
		RTXTime:   250,
		Framerate: 29.97,
		Codecs:    []string{"H264", "VP8"},
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("got %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv(EnvPrefix+"SERVER_ADDRESS", ":9100")
	t.Setenv(EnvPrefix+"PAYLOAD_MTU", "900")
	t.Setenv(EnvPrefix+"PAYLOAD_CODECS", "VP9, Opus")

	opts := &testOptions{Config: writeFile(t, "mediagraph.toml", sampleConfig)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Address != ":9100" {
		t.Errorf("Address = %q, want :9100", opts.Address)
	}
	if opts.MTU != 900 {
		t.Errorf("MTU = %d, want 900", opts.MTU)
	}
	if !reflect.DeepEqual(opts.Codecs, []string{"VP9", "Opus"}) {
		t.Errorf("Codecs = %v, want [VP9 Opus]", opts.Codecs)
	}
	if opts.RTXTime != 250 {
		t.Errorf("RTXTime = %d, want value from file", opts.RTXTime)
	}
}

func TestLoadConfigChangedFlagWins(t *testing.T) {
	t.Setenv(EnvPrefix+"SERVER_ADDRESS", ":9100")

	cmd := &cobra.Command{Use: "test"}
	opts := &testOptions{Config: writeFile(t, "mediagraph.toml", sampleConfig)}
	cmd.Flags().StringVar(&opts.Address, "address", ":8080", "")
	if err := cmd.Flags().Set("address", ":7000"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.Address != ":7000" {
		t.Errorf("Address = %q, want the CLI value :7000", opts.Address)
	}
	if opts.MTU != 1400 {
		t.Errorf("MTU = %d, want 1400 from file", opts.MTU)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Address: ":8080"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if opts.Address != ":8080" {
		t.Errorf("Address = %q, default should survive", opts.Address)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeFile(t, "bad.toml", "[server\naddress = ")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("expected error for non-pointer opts")
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":           "port",
		"LoggingLevel":   "logging-level",
		"TuningFile":     "tuning-file",
		"PlatformMobile": "platform-mobile",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"payload": map[string]any{"mtu": int64(1200)},
		"flat":    "x",
	}
	tests := []struct {
		path string
		want any
	}{
		{"payload.mtu", int64(1200)},
		{"flat", "x"},
		{"payload.missing", nil},
		{"flat.deeper", nil},
	}
	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, "mediagraph.toml", `
[logging]
level = "debug"
format = "json"
renderer = "warn"

[logging.modules]
encoders = "error"
`)
	cfg := LoadLoggingConfig(path)
	if cfg.Level != "debug" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q", cfg.Level, cfg.Format)
	}
	if cfg.Modules["renderer"] != "warn" {
		t.Errorf("renderer level = %q, want warn", cfg.Modules["renderer"])
	}
	if cfg.Modules["encoders"] != "error" {
		t.Errorf("encoders level = %q, want error", cfg.Modules["encoders"])
	}

	def := LoadLoggingConfig("")
	if def.Level != "info" || def.Format != "text" {
		t.Errorf("defaults = %+v", def)
	}
}

func TestLoadTuning(t *testing.T) {
	path := writeFile(t, "tuning.toml", `
[preference]
H264 = ["x264enc", "openh264enc"]

[encoders.x264enc]
speed-preset = "superfast"
threads = 2
`)
	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got := tuning.Preference["H264"]; !reflect.DeepEqual(got, []string{"x264enc", "openh264enc"}) {
		t.Errorf("preference = %v", got)
	}
	if got := tuning.Encoders["x264enc"]["speed-preset"]; got != "superfast" {
		t.Errorf("speed-preset = %v", got)
	}
	if got := tuning.Encoders["x264enc"]["threads"]; got != int64(2) {
		t.Errorf("threads = %v (%T), want int64 2", got, got)
	}

	empty, err := LoadTuning(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil || len(empty.Encoders) != 0 {
		t.Errorf("missing tuning file = %+v, %v", empty, err)
	}
}
