// Package capability answers what a source advertises and which encoder,
// decoder and parser implementations the engine can instantiate for a codec.
package capability

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
)

// Query probes the engine. Probe instances never outlive the call.
type Query struct {
	engine   engine.Engine
	platform Platform
	logger   *slog.Logger

	mu         sync.RWMutex
	preference map[media.CodecType][]string
}

// NewQuery creates a query against eng for platform.
func NewQuery(eng engine.Engine, platform Platform) *Query {
	return &Query{
		engine:     eng,
		platform:   platform,
		logger:     logging.GetLogger("capability"),
		preference: make(map[media.CodecType][]string),
	}
}

func (q *Query) Platform() Platform     { return q.platform }
func (q *Query) Engine() engine.Engine { return q.engine }

// SetPreference replaces the encoder candidate order for codec. An empty
// list restores the platform default.
func (q *Query) SetPreference(codec media.CodecType, factories []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(factories) == 0 {
		delete(q.preference, codec)
		return
	}
	q.preference[codec] = slices.Clone(factories)
}

// EncoderCandidates returns the encoder candidates for codec in preference order.
func (q *Query) EncoderCandidates(codec media.CodecType) []string {
	q.mu.RLock()
	pref, ok := q.preference[codec]
	q.mu.RUnlock()
	if ok {
		return slices.Clone(pref)
	}
	return q.platform.EncoderCandidates(codec)
}

// Capabilities reads the capability facts of src.
func (q *Query) Capabilities(src Source) media.SourceCapabilities {
	return media.SourceCapabilities{
		HardwareColorBalance: src.SupportsColorBalance(),
		HardwareOrientation:  src.SupportsOrientation(),
		Codec:                src.CodecType(),
		Media:                src.MediaType(),
	}
}

// ProbeEncoder returns the first instantiable encoder for codec.
func (q *Query) ProbeEncoder(codec media.CodecType) (string, bool) {
	return q.probe(q.EncoderCandidates(codec))
}

// ProbeDecoder returns the first instantiable decoder for codec.
func (q *Query) ProbeDecoder(codec media.CodecType) (string, bool) {
	return q.probe(q.platform.DecoderCandidates(codec))
}

// ProbeParser returns the parser for codec, if the codec has one and it is installed.
func (q *Query) ProbeParser(codec media.CodecType) (string, bool) {
	return q.probe(q.platform.ParserCandidates(codec))
}

func (q *Query) probe(candidates []string) (string, bool) {
	stage, factory, ok := q.TryCandidates(candidates, "")
	if !ok {
		return "", false
	}
	stage.Release()
	return factory, true
}

// TryCandidates instantiates the first candidate the engine provides. With a
// non-empty prefix the stage is named prefix_<factory>_<n>.
func (q *Query) TryCandidates(candidates []string, prefix string) (engine.Stage, string, bool) {
	for _, factory := range candidates {
		name := factory
		if prefix != "" {
			name = q.engine.Namer().Next(prefix + "_" + factory + "_")
		}
		if stage, ok := q.engine.Instantiate(factory, name); ok {
			return stage, factory, true
		}
		q.logger.Debug("Candidate not available", "factory", factory)
	}
	return nil, "", false
}

// CreateDecoder instantiates a decoder for codec.
func (q *Query) CreateDecoder(codec media.CodecType) (engine.Stage, bool) {
	stage, _, ok := q.TryCandidates(q.platform.DecoderCandidates(codec), "decoder")
	return stage, ok
}

// CreateParser instantiates a parser for codec.
func (q *Query) CreateParser(codec media.CodecType) (engine.Stage, bool) {
	stage, _, ok := q.TryCandidates(q.platform.ParserCandidates(codec), "parser")
	return stage, ok
}

// CodecReport is the probe outcome for one codec.
type CodecReport struct {
	Codec     string `toml:"codec" json:"codec" example:"H264" doc:"Codec name"`
	Media     string `toml:"media" json:"media" example:"video" doc:"Media type"`
	Encoder   string `toml:"encoder,omitempty" json:"encoder,omitempty" example:"openh264enc" doc:"Selected encoder implementation"`
	Decoder   string `toml:"decoder,omitempty" json:"decoder,omitempty" example:"avdec_h264" doc:"Selected decoder implementation"`
	Parser    string `toml:"parser,omitempty" json:"parser,omitempty" example:"h264parse" doc:"Parser implementation"`
	Supported bool   `toml:"supported" json:"supported" doc:"Both an encoder and a decoder are available"`
}

// Report is the probe outcome for every codec.
type Report struct {
	Platform string        `toml:"platform" json:"platform" example:"linux" doc:"Host operating system"`
	Mobile   bool          `toml:"mobile" json:"mobile" doc:"Mobile tuning constants in effect"`
	Codecs   []CodecReport `toml:"codecs" json:"codecs" doc:"Per-codec probe results"`
}

// Codec returns the report entry for codec.
func (r Report) Codec(codec media.CodecType) (CodecReport, bool) {
	for _, c := range r.Codecs {
		if c.Codec == codec.String() {
			return c, true
		}
	}
	return CodecReport{}, false
}

// Report probes every known codec.
func (q *Query) Report() Report {
	report := Report{Platform: q.platform.OS, Mobile: q.platform.Mobile}
	for _, codec := range media.AllCodecs {
		entry := CodecReport{Codec: codec.String(), Media: codec.MediaType().String()}
		entry.Encoder, _ = q.ProbeEncoder(codec)
		entry.Decoder, _ = q.ProbeDecoder(codec)
		entry.Parser, _ = q.ProbeParser(codec)
		entry.Supported = entry.Encoder != "" && entry.Decoder != ""
		report.Codecs = append(report.Codecs, entry)
	}
	q.logger.Debug("Probed codecs", "platform", report.Platform, "codecs", len(report.Codecs))
	return report
}
