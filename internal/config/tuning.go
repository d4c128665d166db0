package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Tuning is the hot-reloadable encoder tuning file.
//
//	[preference]
//	H264 = ["x264enc", "openh264enc"]
//
//	[encoders.x264enc]
//	speed-preset = "superfast"
//
// Preference replaces the built-in candidate order for a codec. Encoder tables
// set stage properties after the built-in tuning for that implementation ran.
type Tuning struct {
	Preference map[string][]string       `toml:"preference"`
	Encoders   map[string]map[string]any `toml:"encoders"`
}

// LoadTuning reads a tuning file. A missing file yields an empty Tuning.
func LoadTuning(path string) (Tuning, error) {
	var t Tuning
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	return t, nil
}
