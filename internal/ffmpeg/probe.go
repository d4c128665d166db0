// Package ffmpeg exposes the host ffmpeg as a media engine: it probes the
// installed encoders, decoders and filters, installs the stage factories
// they can stand in for, and renders built graphs as ffmpeg command lines.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strings"

	"github.com/smazurov/mediagraph/internal/logging"
)

// ErrNotInstalled means no ffmpeg binary was found.
var ErrNotInstalled = errors.New("ffmpeg is not installed or not in PATH")

// DefaultBinary is the ffmpeg executable looked up in PATH.
const DefaultBinary = "ffmpeg"

// MediaKind is the media flag ffmpeg reports for a component.
type MediaKind string

const (
	MediaVideo    MediaKind = "V"
	MediaAudio    MediaKind = "A"
	MediaSubtitle MediaKind = "S"
	MediaUnknown  MediaKind = "?"
)

// Component is one encoder, decoder or filter reported by ffmpeg.
type Component struct {
	Media       MediaKind `json:"media" toml:"media"`
	Name        string    `json:"name" toml:"name"`
	Description string    `json:"description" toml:"description"`
	HWAccel     bool      `json:"hwaccel" toml:"hwaccel"`
}

// Inventory is what the host ffmpeg provides.
type Inventory struct {
	Encoders []Component `json:"encoders" toml:"encoders"`
	Decoders []Component `json:"decoders" toml:"decoders"`
	Filters  []Component `json:"filters" toml:"filters"`
}

// HasEncoder reports whether ffmpeg lists encoder name.
func (inv *Inventory) HasEncoder(name string) bool { return contains(inv.Encoders, name) }

// HasDecoder reports whether ffmpeg lists decoder name.
func (inv *Inventory) HasDecoder(name string) bool { return contains(inv.Decoders, name) }

// HasFilter reports whether ffmpeg lists filter name.
func (inv *Inventory) HasFilter(name string) bool { return contains(inv.Filters, name) }

func contains(list []Component, name string) bool {
	for _, c := range list {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Runner executes a command and returns its stdout and stderr.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Prober lists the components of an ffmpeg binary.
type Prober struct {
	Binary string
	Run    Runner
	logger *slog.Logger
}

// NewProber creates a prober for binary. An empty binary uses DefaultBinary
// and a nil runner uses ExecRunner.
func NewProber(binary string, run Runner) *Prober {
	if binary == "" {
		binary = DefaultBinary
	}
	if run == nil {
		run = ExecRunner
	}
	return &Prober{Binary: binary, Run: run, logger: logging.GetLogger("ffmpeg")}
}

// IsInstalled checks if the default ffmpeg binary is in PATH.
func IsInstalled() bool {
	_, err := exec.LookPath(DefaultBinary)
	return err == nil
}

// Probe runs the encoder, decoder and filter listings.
func (p *Prober) Probe(ctx context.Context) (*Inventory, error) {
	encoders, err := p.list(ctx, "-encoders", "Encoders:", parseCodecLine)
	if err != nil {
		return nil, err
	}
	decoders, err := p.list(ctx, "-decoders", "Decoders:", parseCodecLine)
	if err != nil {
		return nil, err
	}
	filters, err := p.list(ctx, "-filters", "Filters:", parseFilterLine)
	if err != nil {
		return nil, err
	}

	inv := &Inventory{Encoders: encoders, Decoders: decoders, Filters: filters}
	p.logger.Info("Probed ffmpeg", "binary", p.Binary,
		"encoders", len(encoders), "decoders", len(decoders), "filters", len(filters))
	return inv, nil
}

func (p *Prober) list(ctx context.Context, flag, header string, parse func(string) (Component, bool)) ([]Component, error) {
	stdout, stderr, err := p.Run(ctx, p.Binary, "-hide_banner", "-loglevel", "level+warning", flag)
	logStderr(p.logger, stderr)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrNotInstalled
		}
		return nil, fmt.Errorf("failed to execute %s %s: %w", p.Binary, flag, err)
	}
	components, err := parseListing(string(stdout), header, parse)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s output: %w", flag, err)
	}
	return components, nil
}

var (
	codecLineRegex  = regexp.MustCompile(`^\s*([VASFXBD\.]{6})\s+(\S+)\s+(.+)$`)
	filterLineRegex = regexp.MustCompile(`^\s*([TSC\.]{2,3})\s+(\S+)\s+(\S*->\S*)\s+(.+)$`)
	hwaccelRegex    = regexp.MustCompile(`(?i)(nvenc|nvdec|cuvid|qsv|amf|vaapi|videotoolbox|vdpau|cuda|dxva2|d3d11va|opencl|vulkan|v4l2m2m|rkmpp|omx)`)
)

// parseListing skips the legend up to header and parses each following line.
func parseListing(output, header string, parse func(string) (Component, bool)) ([]Component, error) {
	var out []Component
	scanner := bufio.NewScanner(strings.NewReader(output))
	started := false
	for scanner.Scan() {
		line := scanner.Text()
		if !started {
			if strings.Contains(line, header) {
				started = true
			}
			continue
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "---") {
			continue
		}
		if c, ok := parse(line); ok {
			out = append(out, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// parseCodecLine parses " V....D libx264   libx264 H.264 / AVC ..." lines
// from -encoders and -decoders.
func parseCodecLine(line string) (Component, bool) {
	m := codecLineRegex.FindStringSubmatch(line)
	// Legend lines look like " V..... = Video".
	if len(m) != 4 || m[2] == "=" {
		return Component{}, false
	}
	flags, name, desc := m[1], m[2], m[3]
	return Component{
		Media:       mediaKind(flags[:1]),
		Name:        name,
		Description: desc,
		HWAccel:     hwaccelRegex.MatchString(name) || hwaccelRegex.MatchString(desc),
	}, true
}

// parseFilterLine parses " ..C scale  V->V  Scale the input video size ..."
// lines from -filters.
func parseFilterLine(line string) (Component, bool) {
	m := filterLineRegex.FindStringSubmatch(line)
	if len(m) != 5 {
		return Component{}, false
	}
	name, io, desc := m[2], m[3], m[4]
	return Component{
		Media:       mediaKind(io[:1]),
		Name:        name,
		Description: desc,
		HWAccel:     hwaccelRegex.MatchString(name),
	}, true
}

func mediaKind(flag string) MediaKind {
	switch flag {
	case "V":
		return MediaVideo
	case "A":
		return MediaAudio
	case "S":
		return MediaSubtitle
	default:
		return MediaUnknown
	}
}
