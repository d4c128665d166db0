package media

import "strings"

// MediaType identifies the kind of media a payload or source carries.
type MediaType int

const (
	MediaTypeUnknown MediaType = iota
	MediaTypeAudio
	MediaTypeVideo
)

// String returns the lowercase media type name used in negotiation descriptors.
func (m MediaType) String() string {
	switch m {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return "unknown"
	}
}

// CodecType identifies a codec. CodecNone means raw, unencoded media.
type CodecType int

const (
	CodecNone CodecType = iota
	CodecPCMU
	CodecPCMA
	CodecOpus
	CodecH264
	CodecVP8
	CodecVP9
)

// AllCodecs lists every encoded codec in declaration order.
var AllCodecs = []CodecType{CodecPCMU, CodecPCMA, CodecOpus, CodecH264, CodecVP8, CodecVP9}

func (c CodecType) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecPCMU:
		return "PCMU"
	case CodecPCMA:
		return "PCMA"
	case CodecOpus:
		return "Opus"
	case CodecH264:
		return "H264"
	case CodecVP8:
		return "VP8"
	case CodecVP9:
		return "VP9"
	default:
		return "unknown"
	}
}

// MediaType returns the media type a codec belongs to.
func (c CodecType) MediaType() MediaType {
	switch c {
	case CodecPCMU, CodecPCMA, CodecOpus:
		return MediaTypeAudio
	case CodecH264, CodecVP8, CodecVP9:
		return MediaTypeVideo
	default:
		return MediaTypeUnknown
	}
}

// IsRaw reports whether the codec carries unencoded media.
func (c CodecType) IsRaw() bool {
	return c == CodecNone
}

// IsKnown reports whether c is one of the declared codec types.
func (c CodecType) IsKnown() bool {
	return c >= CodecNone && c <= CodecVP9
}

// ParseCodecType maps a case-insensitive codec name to a CodecType.
func ParseCodecType(name string) (CodecType, bool) {
	switch strings.ToLower(name) {
	case "none", "raw":
		return CodecNone, true
	case "pcmu":
		return CodecPCMU, true
	case "pcma":
		return CodecPCMA, true
	case "opus":
		return CodecOpus, true
	case "h264":
		return CodecH264, true
	case "vp8":
		return CodecVP8, true
	case "vp9":
		return CodecVP9, true
	default:
		return CodecNone, false
	}
}

// CapsMime returns the caps media type name for a source of the given media and codec type.
func CapsMime(media MediaType, codec CodecType) string {
	switch codec {
	case CodecPCMU:
		return "audio/x-mulaw"
	case CodecPCMA:
		return "audio/x-alaw"
	case CodecOpus:
		return "audio/x-opus"
	case CodecH264:
		return "video/x-h264"
	case CodecVP8:
		return "video/x-vp8"
	case CodecVP9:
		return "video/x-vp9"
	}
	if media == MediaTypeAudio {
		return "audio/x-raw"
	}
	return "video/x-raw"
}
