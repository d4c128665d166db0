package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/renderer"
)

// Params are the parts of an ffmpeg command line.
type Params struct {
	Binary   string
	LogLevel string // -loglevel, e.g. level+warning for ParseLogLevel

	// Input configuration
	InputFormat string // -f before -i, e.g. v4l2 or lavfi
	Decoder     string // -c:v before -i
	Input       string

	VideoFilters string

	// Encoder configuration
	Encoder     string
	EncoderArgs []string

	// Output
	OutputFormat string // sdl, rtp, null
	Output       string
}

// BuildCommand renders p as a single command line.
func BuildCommand(p *Params) string {
	var cmd strings.Builder

	binary := p.Binary
	if binary == "" {
		binary = DefaultBinary
	}
	cmd.WriteString(binary + " -hide_banner")
	if p.LogLevel != "" {
		cmd.WriteString(" -loglevel " + p.LogLevel)
	}

	if p.InputFormat != "" {
		cmd.WriteString(" -f " + p.InputFormat)
	}
	if p.Decoder != "" {
		cmd.WriteString(" -c:v " + p.Decoder)
	}
	cmd.WriteString(" -i " + quote(p.Input))

	if p.VideoFilters != "" {
		cmd.WriteString(" -vf " + quote(p.VideoFilters))
	}

	if p.Encoder != "" {
		cmd.WriteString(" -c:v " + p.Encoder)
		for _, arg := range p.EncoderArgs {
			cmd.WriteString(" " + arg)
		}
	}

	if p.OutputFormat != "" {
		cmd.WriteString(" -f " + p.OutputFormat)
	}
	cmd.WriteString(" " + quote(p.Output))
	return cmd.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " ,;'\"") {
		return strconv.Quote(s)
	}
	return s
}

// Flip methods rendered as ffmpeg filters, indexed by renderer flip method.
var flipFilters = []string{
	renderer.FlipNone:               "",
	renderer.FlipClockwise:          "transpose=clock",
	renderer.FlipRotate180:          "hflip,vflip",
	renderer.FlipCounterclockwise:   "transpose=cclock",
	renderer.FlipHorizontal:         "hflip",
	renderer.FlipVertical:           "vflip",
	renderer.FlipUpperLeftDiagonal:  "transpose=cclock_flip",
	renderer.FlipUpperRightDiagonal: "transpose=clock_flip",
}

// ConvertFormat is the pixel format the color convert stage produces.
const ConvertFormat = "yuv420p"

// BuildFilterChain renders the filtering stages of a graph, in order, as an
// ffmpeg -vf chain. Stages that need no filter are skipped.
func BuildFilterChain(stages []engine.Stage) (string, error) {
	var chain []string
	for _, s := range stages {
		switch s.Factory() {
		case renderer.FactoryColorConvert:
			chain = append(chain, "format="+ConvertFormat)

		case renderer.FactoryColorBalance:
			cb, ok := s.(engine.ColorBalance)
			if !ok {
				return "", fmt.Errorf("stage %s exposes no color channels", s.Name())
			}
			if f := eqFilter(cb); f != "" {
				chain = append(chain, f)
			}

		case renderer.FactoryFlip:
			v, _ := s.Get("method")
			method, ok := v.(int)
			if !ok {
				method = renderer.FlipNone
			}
			if method < 0 || method >= len(flipFilters) {
				return "", fmt.Errorf("stage %s has unknown flip method %d", s.Name(), method)
			}
			if f := flipFilters[method]; f != "" {
				chain = append(chain, f)
			}
		}
	}
	return strings.Join(chain, ","), nil
}

// Channels the eq filter has an option for.
var eqOptions = map[string]bool{"saturation": true, "brightness": true, "contrast": true, "gamma": true}

func eqFilter(cb engine.ColorBalance) string {
	var args []string
	for _, ch := range cb.BalanceChannels() {
		option := strings.ToLower(ch.Label)
		v, ok := cb.Balance(ch.Label)
		if !ok || !eqOptions[option] {
			continue
		}
		args = append(args, option+"="+strconv.FormatFloat(float64(v)/1000, 'f', -1, 64))
	}
	if len(args) == 0 {
		return ""
	}
	return "eq=" + strings.Join(args, ":")
}

// RenderPlan turns built render stages into an ffmpeg command reading input
// and showing it in a window titled title.
func RenderPlan(stages []engine.Stage, input, title string) (*Params, error) {
	filters, err := BuildFilterChain(stages)
	if err != nil {
		return nil, err
	}
	p := &Params{
		Input:        input,
		VideoFilters: filters,
		OutputFormat: "sdl",
		Output:       title,
	}
	for _, s := range stages {
		if t, ok := LookupTarget(s.Factory()); ok && t.Kind == KindDecoder {
			p.Decoder = t.Name
			break
		}
	}
	return p, nil
}

type flagMapping struct {
	property string
	flag     string
	format   func(any) (string, bool)
}

var encoderFlags = map[string][]flagMapping{
	capability.FactoryOpenH264Enc: {
		{"bitrate", "-b:v", plain},
		{"rate-control", "-rc_mode", plain},
	},
	capability.FactoryX264Enc: {
		{"bitrate", "-b:v", kilobits},
		{"speed-preset", "-preset", plain},
		{"tune", "-tune", x264Tune},
	},
	capability.FactoryVTEncH264: {
		{"bitrate", "-b:v", kilobits},
		{"realtime", "-realtime", boolean},
		{"allow-frame-reordering", "-bf", reorderFrames},
	},
	capability.FactoryVP8Enc: vpxFlags,
	capability.FactoryVP9Enc: vpxFlags,
}

var vpxFlags = []flagMapping{
	{"target-bitrate", "-b:v", plain},
	{"deadline", "-deadline", vpxDeadline},
	{"cpu-used", "-cpu-used", plain},
	{"min-quantizer", "-qmin", plain},
	{"max-quantizer", "-qmax", plain},
	{"lag-in-frames", "-lag-in-frames", plain},
	{"error-resilient", "-error-resilient", plain},
}

// EncoderArgs translates the tuned properties of an encoder stage into
// ffmpeg options. It returns the ffmpeg encoder name and its arguments.
func EncoderArgs(enc engine.Stage) (string, []string, error) {
	t, ok := LookupTarget(enc.Factory())
	if !ok || t.Kind != KindEncoder {
		return "", nil, fmt.Errorf("stage %s is not an ffmpeg encoder", enc.Name())
	}
	var args []string
	for _, m := range encoderFlags[enc.Factory()] {
		v, set := enc.Get(m.property)
		if !set {
			continue
		}
		if s, ok := m.format(v); ok {
			args = append(args, m.flag, s)
		}
	}
	return t.Name, args, nil
}

func plain(v any) (string, bool) {
	return fmt.Sprint(v), true
}

func kilobits(v any) (string, bool) {
	return fmt.Sprint(v) + "k", true
}

func boolean(v any) (string, bool) {
	b, ok := v.(bool)
	if !ok {
		return "", false
	}
	if b {
		return "1", true
	}
	return "0", true
}

func reorderFrames(v any) (string, bool) {
	if b, ok := v.(bool); ok && !b {
		return "0", true
	}
	return "", false
}

func x264Tune(v any) (string, bool) {
	s, ok := v.(string)
	return strings.ReplaceAll(s, "+", ","), ok
}

func vpxDeadline(v any) (string, bool) {
	if fmt.Sprint(v) == "1" {
		return "realtime", true
	}
	return "", false
}
