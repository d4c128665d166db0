// Package payload builds negotiation descriptors, packetizers and
// depacketizers for outbound and inbound payloads.
package payload

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
)

// RTP encoding names advertised per codec.
const (
	EncodingPCMU = "PCMU"
	EncodingPCMA = "PCMA"
	EncodingOpus = "X-GST-OPUS-DRAFT-SPITTKA-00"
	EncodingH264 = "H264"
	EncodingVP8  = "VP8-DRAFT-IETF-01"
	EncodingVP9  = "VP9-DRAFT-IETF-01"
)

// Caps media type names.
const (
	MimeRTP      = "application/x-rtp"
	MimeRawAudio = "audio/x-raw"
	MimeRawVideo = "video/x-raw"
	MimeH264     = "video/x-h264"
	MimeVP8      = "video/x-vp8"
	MimeVP9      = "video/x-vp9"
)

// Raw video defaults used when the payload leaves geometry unset.
const (
	DefaultRawWidth     = 640
	DefaultRawHeight    = 480
	DefaultRawFramerate = 30.0
)

// ErrStageUnavailable means the engine has no implementation of a required
// packetizer or depacketizer.
var ErrStageUnavailable = errors.New("stage unavailable")

type codecNames struct {
	encoding string
	pay      string
	depay    string
}

var codecTable = map[media.CodecType]codecNames{
	media.CodecPCMU: {EncodingPCMU, "rtppcmupay", "rtppcmudepay"},
	media.CodecPCMA: {EncodingPCMA, "rtppcmapay", "rtppcmadepay"},
	media.CodecOpus: {EncodingOpus, "rtpopuspay", "rtpopusdepay"},
	media.CodecH264: {EncodingH264, "rtph264pay", "rtph264depay"},
	media.CodecVP8:  {EncodingVP8, "rtpvp8pay", "rtpvp8depay"},
	media.CodecVP9:  {EncodingVP9, "rtpvp9pay", "rtpvp9depay"},
}

// EncodingName returns the RTP encoding name for codec.
func EncodingName(codec media.CodecType) (string, bool) {
	n, ok := codecTable[codec]
	return n.encoding, ok
}

// PayFactory returns the packetizer factory for codec.
func PayFactory(codec media.CodecType) (string, bool) {
	n, ok := codecTable[codec]
	return n.pay, ok
}

// DepayFactory returns the depacketizer factory for codec.
func DepayFactory(codec media.CodecType) (string, bool) {
	n, ok := codecTable[codec]
	return n.depay, ok
}

// Negotiator builds caps and RTP stages for payloads.
type Negotiator struct {
	query  *capability.Query
	logger *slog.Logger
}

// NewNegotiator creates a negotiator probing through query.
func NewNegotiator(query *capability.Query) *Negotiator {
	return &Negotiator{query: query, logger: logging.GetLogger("payload")}
}

// BuildRTPCaps describes the RTP stream of p. Video payloads carry the
// keyframe and loss recovery feedback flags, audio payloads carry the channel
// count only when it is known.
func (n *Negotiator) BuildRTPCaps(p *media.Payload) (*media.Caps, error) {
	encoding, ok := EncodingName(p.CodecType())
	if !ok {
		return nil, media.UnsupportedCodecError(p.CodecType(), "rtp encoding name")
	}

	s := media.NewStructure(MimeRTP).
		Set("encoding-name", encoding).
		Set("payload", int(p.PayloadType())).
		Set("clock-rate", int(p.ClockRate())).
		Set("media", p.MediaType().String())

	switch p.MediaType() {
	case media.MediaTypeVideo:
		v := p.Video()
		s.Set("rtcp-fb-ccm-fir", v.CCMFIR).Set("rtcp-fb-nack-pli", v.NackPLI)
	case media.MediaTypeAudio:
		if ch := p.Audio().Channels; ch > 0 {
			s.Set("channels", int(ch))
		}
	}
	return media.NewCaps(s), nil
}

// BuildRawCaps describes the unencoded media feeding the encoder of p.
func (n *Negotiator) BuildRawCaps(p *media.Payload) (*media.Caps, error) {
	switch p.MediaType() {
	case media.MediaTypeAudio:
		s := media.NewStructure(MimeRawAudio).Set("rate", int(p.ClockRate()))
		if ch := p.Audio().Channels; ch > 0 {
			s.Set("channels", int(ch))
		}
		return media.NewCaps(s), nil

	case media.MediaTypeVideo:
		v := p.Video()
		width, height, fps := int(v.Width), int(v.Height), v.Framerate
		if width <= 0 {
			width = DefaultRawWidth
		}
		if height <= 0 {
			height = DefaultRawHeight
		}
		if fps <= 0 {
			fps = DefaultRawFramerate
		}
		s := media.NewStructure(MimeRawVideo).
			Set("width", width).
			Set("height", height).
			Set("framerate", media.FractionFromFloat(fps))
		// Apple H264 encoders take frames in platform memory.
		s.AnyFeatures = p.CodecType() == media.CodecH264 && n.query.Platform().Apple()
		return media.NewCaps(s), nil

	default:
		return nil, media.UnsupportedCodecError(p.CodecType(), "raw caps for media type "+p.MediaType().String())
	}
}

// BuildEncodedCaps describes the encoded stream produced for codec. Codecs
// without a fixed description get any caps.
func (n *Negotiator) BuildEncodedCaps(codec media.CodecType) *media.Caps {
	switch codec {
	case media.CodecH264:
		return media.NewCaps(
			media.NewStructure(MimeH264).Set("profile", "baseline"),
			media.NewStructure(MimeH264).Set("profile", "constrained-baseline"),
		)
	case media.CodecVP8:
		return media.NewCaps(media.NewStructure(MimeVP8))
	case media.CodecVP9:
		return media.NewCaps(media.NewStructure(MimeVP9))
	default:
		return media.AnyCaps()
	}
}

// IsCodecSupported reports whether both an encoder and a decoder can be
// instantiated for codec.
func (n *Negotiator) IsCodecSupported(codec media.CodecType) bool {
	_, hasEncoder := n.query.ProbeEncoder(codec)
	_, hasDecoder := n.query.ProbeDecoder(codec)
	n.logger.Debug("Codec support", "codec", codec, "encoder", hasEncoder, "decoder", hasDecoder)
	return hasEncoder && hasDecoder
}

func stageUnavailable(factory string) error {
	return fmt.Errorf("%w: %s", ErrStageUnavailable, factory)
}
