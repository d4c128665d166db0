package capability

import "github.com/smazurov/mediagraph/internal/media"

// Factory names of the implementations the core knows how to drive.
const (
	FactoryOpenH264Enc = "openh264enc"
	FactoryX264Enc     = "x264enc"
	FactoryVTEncH264   = "vtenc_h264"
	FactoryOMXH264Enc  = "omxh264enc"
	FactoryVP8Enc      = "vp8enc"
	FactoryVP9Enc      = "vp9enc"
	FactoryMulawEnc    = "mulawenc"
	FactoryAlawEnc     = "alawenc"
	FactoryOpusEnc     = "opusenc"

	FactoryOpenH264Dec = "openh264dec"
	FactoryAVDecH264   = "avdec_h264"
	FactoryVTDecH264   = "vtdec"
	FactoryVP8Dec      = "vp8dec"
	FactoryVP9Dec      = "vp9dec"
	FactoryMulawDec    = "mulawdec"
	FactoryAlawDec     = "alawdec"
	FactoryOpusDec     = "opusdec"

	FactoryH264Parse = "h264parse"
)

// EncoderCandidates returns encoder factories for codec in preference order.
func (p Platform) EncoderCandidates(codec media.CodecType) []string {
	switch codec {
	case media.CodecH264:
		switch {
		case p.Apple():
			return []string{FactoryVTEncH264, FactoryOpenH264Enc, FactoryX264Enc}
		case p.Android():
			return []string{FactoryOMXH264Enc, FactoryOpenH264Enc}
		default:
			return []string{FactoryOpenH264Enc, FactoryX264Enc, FactoryOMXH264Enc}
		}
	case media.CodecVP8:
		return []string{FactoryVP8Enc}
	case media.CodecVP9:
		return []string{FactoryVP9Enc}
	case media.CodecPCMU:
		return []string{FactoryMulawEnc}
	case media.CodecPCMA:
		return []string{FactoryAlawEnc}
	case media.CodecOpus:
		return []string{FactoryOpusEnc}
	default:
		return nil
	}
}

// DecoderCandidates returns decoder factories for codec in preference order.
func (p Platform) DecoderCandidates(codec media.CodecType) []string {
	switch codec {
	case media.CodecH264:
		if p.Apple() {
			return []string{FactoryVTDecH264, FactoryOpenH264Dec, FactoryAVDecH264}
		}
		return []string{FactoryOpenH264Dec, FactoryAVDecH264}
	case media.CodecVP8:
		return []string{FactoryVP8Dec}
	case media.CodecVP9:
		return []string{FactoryVP9Dec}
	case media.CodecPCMU:
		return []string{FactoryMulawDec}
	case media.CodecPCMA:
		return []string{FactoryAlawDec}
	case media.CodecOpus:
		return []string{FactoryOpusDec}
	default:
		return nil
	}
}

// ParserCandidates returns parser factories for codec. Only H264 has a
// distinct parser stage.
func (p Platform) ParserCandidates(codec media.CodecType) []string {
	if codec == media.CodecH264 {
		return []string{FactoryH264Parse}
	}
	return nil
}
