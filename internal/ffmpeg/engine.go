package ffmpeg

import (
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/payload"
	"github.com/smazurov/mediagraph/internal/renderer"
)

// TargetKind is the ffmpeg component class a stage factory maps to.
type TargetKind int

const (
	// KindBuiltin stages need nothing beyond ffmpeg itself.
	KindBuiltin TargetKind = iota
	KindEncoder
	KindDecoder
	KindFilter
)

// Target is what a stage factory runs as under ffmpeg.
type Target struct {
	Kind TargetKind
	// Name is the ffmpeg encoder, decoder or filter.
	Name string
	// Requires lists further filters the stage renders into.
	Requires []string
}

func (t Target) available(inv *Inventory) bool {
	var ok bool
	switch t.Kind {
	case KindEncoder:
		ok = inv.HasEncoder(t.Name)
	case KindDecoder:
		ok = inv.HasDecoder(t.Name)
	case KindFilter:
		ok = inv.HasFilter(t.Name)
	default:
		ok = true
	}
	for _, f := range t.Requires {
		ok = ok && inv.HasFilter(f)
	}
	return ok
}

var targets = map[string]Target{
	capability.FactoryOpenH264Enc: {Kind: KindEncoder, Name: "libopenh264"},
	capability.FactoryX264Enc:     {Kind: KindEncoder, Name: "libx264"},
	capability.FactoryVTEncH264:   {Kind: KindEncoder, Name: "h264_videotoolbox"},
	capability.FactoryOMXH264Enc:  {Kind: KindEncoder, Name: "h264_omx"},
	capability.FactoryVP8Enc:      {Kind: KindEncoder, Name: "libvpx"},
	capability.FactoryVP9Enc:      {Kind: KindEncoder, Name: "libvpx-vp9"},
	capability.FactoryMulawEnc:    {Kind: KindEncoder, Name: "pcm_mulaw"},
	capability.FactoryAlawEnc:     {Kind: KindEncoder, Name: "pcm_alaw"},
	capability.FactoryOpusEnc:     {Kind: KindEncoder, Name: "libopus"},

	capability.FactoryOpenH264Dec: {Kind: KindDecoder, Name: "libopenh264"},
	capability.FactoryAVDecH264:   {Kind: KindDecoder, Name: "h264"},
	capability.FactoryVTDecH264:   {Kind: KindDecoder, Name: "h264"},
	capability.FactoryVP8Dec:      {Kind: KindDecoder, Name: "vp8"},
	capability.FactoryVP9Dec:      {Kind: KindDecoder, Name: "vp9"},
	capability.FactoryMulawDec:    {Kind: KindDecoder, Name: "pcm_mulaw"},
	capability.FactoryAlawDec:     {Kind: KindDecoder, Name: "pcm_alaw"},
	capability.FactoryOpusDec:     {Kind: KindDecoder, Name: "opus"},

	capability.FactoryH264Parse: {Kind: KindBuiltin},

	renderer.FactoryUpload:       {Kind: KindBuiltin},
	renderer.FactoryColorConvert: {Kind: KindFilter, Name: "format"},
	renderer.FactoryColorBalance: {Kind: KindFilter, Name: "eq"},
	renderer.FactoryFlip:         {Kind: KindFilter, Name: "transpose", Requires: []string{"hflip", "vflip"}},
	renderer.FactorySink:         {Kind: KindBuiltin},
}

func init() {
	// RTP payloading is done by ffmpeg's rtp muxer and demuxer.
	for _, codec := range media.AllCodecs {
		if pay, ok := payload.PayFactory(codec); ok {
			targets[pay] = Target{Kind: KindBuiltin}
		}
		if depay, ok := payload.DepayFactory(codec); ok {
			targets[depay] = Target{Kind: KindBuiltin}
		}
	}
}

// LookupTarget returns the ffmpeg target of a stage factory.
func LookupTarget(factory string) (Target, bool) {
	t, ok := targets[factory]
	return t, ok
}

// Color channels of the eq filter, in thousandths.
var eqChannels = []engine.BalanceChannel{
	{Label: "SATURATION", Min: 0, Max: 2000},
	{Label: "BRIGHTNESS", Min: -1000, Max: 1000},
	{Label: "CONTRAST", Min: 0, Max: 2000},
}

// Engine is an engine.Engine whose factories are the ones the probed ffmpeg
// can stand in for. Stages are plain descriptions; nothing runs until the
// graph is rendered with BuildCommand.
type Engine struct {
	*engine.Memory
	inventory *Inventory
}

// NewEngine installs every factory whose ffmpeg target is in inv.
func NewEngine(inv *Inventory) *Engine {
	m := engine.NewMemory()
	for factory, target := range targets {
		if !target.available(inv) {
			continue
		}
		spec := engine.FactorySpec{Name: factory}
		switch factory {
		case renderer.FactoryColorBalance:
			spec.Balance = eqChannels
		case renderer.FactorySink:
			spec.Overlay = true
		}
		m.Register(spec)
	}
	return &Engine{Memory: m, inventory: inv}
}

// Inventory returns the probed components.
func (e *Engine) Inventory() *Inventory {
	return e.inventory
}
