package capability

import (
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
)

// Source is the part of a media source the renderer and negotiator consult.
type Source interface {
	MediaType() media.MediaType
	CodecType() media.CodecType
	SupportsColorBalance() bool
	SupportsOrientation() bool
	// Bin is the source's own graph, or nil when it exposes none.
	Bin() engine.Bin
}

// StaticSource is a Source with fixed answers.
type StaticSource struct {
	Media        media.MediaType
	Codec        media.CodecType
	ColorBalance bool
	Orientation  bool
	Graph        engine.Bin
}

func (s StaticSource) MediaType() media.MediaType { return s.Media }
func (s StaticSource) CodecType() media.CodecType { return s.Codec }
func (s StaticSource) SupportsColorBalance() bool { return s.ColorBalance }
func (s StaticSource) SupportsOrientation() bool  { return s.Orientation }
func (s StaticSource) Bin() engine.Bin            { return s.Graph }

// VideoSource describes a video source by codec name. An empty name or
// "raw" is unencoded video; audio codecs are rejected.
func VideoSource(codecName string, colorBalance, orientation bool) (StaticSource, error) {
	src := StaticSource{
		Media:        media.MediaTypeVideo,
		ColorBalance: colorBalance,
		Orientation:  orientation,
	}
	if codecName == "" {
		return src, nil
	}
	codec, ok := media.ParseCodecType(codecName)
	if !ok || (!codec.IsRaw() && codec.MediaType() != media.MediaTypeVideo) {
		return src, media.UnsupportedCodecError(codec, "video source "+codecName)
	}
	src.Codec = codec
	return src, nil
}
