package payload

import (
	"fmt"

	"github.com/smazurov/mediagraph/internal/media"
)

// Settings is the wire form of a payload, as accepted by the API and CLI.
type Settings struct {
	Codec          string  `json:"codec" toml:"codec" example:"VP8" doc:"Codec name (PCMU, PCMA, Opus, H264, VP8, VP9)"`
	PayloadType    uint32  `json:"payload_type" toml:"payload_type" example:"96" doc:"RTP payload type, 0-127"`
	ClockRate      uint32  `json:"clock_rate,omitempty" toml:"clock_rate" example:"90000" doc:"RTP clock rate, defaults per codec"`
	MTU            uint32  `json:"mtu,omitempty" toml:"mtu" example:"1200" doc:"Maximum RTP packet size"`
	Bitrate        uint32  `json:"bitrate,omitempty" toml:"bitrate" doc:"Target bitrate in bits per second, 0 estimates one"`
	RTXPayloadType *int    `json:"rtx_payload_type,omitempty" toml:"rtx_payload_type" example:"97" doc:"RTX payload type, 96-127"`
	Adaptive       bool    `json:"adaptive,omitempty" toml:"adaptive" doc:"Enable congestion adaptation"`
	Width          uint32  `json:"width,omitempty" toml:"width" example:"640" doc:"Video width"`
	Height         uint32  `json:"height,omitempty" toml:"height" example:"480" doc:"Video height"`
	Framerate      float64 `json:"framerate,omitempty" toml:"framerate" example:"15" doc:"Video framerate"`
	CCMFIR         bool    `json:"ccm_fir,omitempty" toml:"ccm_fir" doc:"Advertise keyframe request feedback"`
	NackPLI        bool    `json:"nack_pli,omitempty" toml:"nack_pli" doc:"Advertise loss recovery feedback"`
	Channels       uint32  `json:"channels,omitempty" toml:"channels" example:"2" doc:"Audio channels"`
	PTime          uint32  `json:"ptime,omitempty" toml:"ptime" example:"20" doc:"Audio packetization time in milliseconds"`
}

// DefaultClockRate returns the usual RTP clock rate of codec.
func DefaultClockRate(codec media.CodecType) uint32 {
	switch codec {
	case media.CodecPCMU, media.CodecPCMA:
		return 8000
	case media.CodecOpus:
		return 48000
	default:
		return 90000
	}
}

// Payload creates the payload s describes.
func (s Settings) Payload() (*media.Payload, error) {
	codec, ok := media.ParseCodecType(s.Codec)
	if !ok || codec.IsRaw() {
		return nil, media.UnsupportedCodecError(codec, fmt.Sprintf("payload codec %q", s.Codec))
	}

	clockRate := s.ClockRate
	if clockRate == 0 {
		clockRate = DefaultClockRate(codec)
	}

	var (
		p   *media.Payload
		err error
	)
	if codec.MediaType() == media.MediaTypeAudio {
		p, err = media.NewAudioPayload(codec, s.PayloadType, clockRate, media.AudioSettings{
			Channels: s.Channels,
			PTime:    s.PTime,
		})
	} else {
		p, err = media.NewVideoPayload(codec, s.PayloadType, clockRate, media.VideoSettings{
			Width:     s.Width,
			Height:    s.Height,
			Framerate: s.Framerate,
			CCMFIR:    s.CCMFIR,
			NackPLI:   s.NackPLI,
		})
	}
	if err != nil {
		return nil, media.NewError(media.ErrCodeInvalidSetting, "payload settings", err)
	}

	if s.MTU != 0 {
		p.SetMTU(s.MTU)
	}
	if s.Bitrate != 0 {
		p.SetBitrate(s.Bitrate)
	}
	if s.RTXPayloadType != nil {
		if err := p.SetRTXPayloadType(*s.RTXPayloadType); err != nil {
			return nil, media.NewError(media.ErrCodeInvalidSetting, "payload settings", err)
		}
	}
	if s.Adaptive {
		p.SetAdaptation(media.AdaptationSCReAM)
	}
	return p, nil
}

// WebRTCCodec is the WebRTC codec a payload negotiates as.
type WebRTCCodec struct {
	MimeType    string   `json:"mime_type" example:"video/VP8" doc:"WebRTC codec mime type"`
	ClockRate   uint32   `json:"clock_rate" example:"90000" doc:"Clock rate"`
	Channels    uint16   `json:"channels,omitempty" doc:"Audio channels"`
	SDPFmtpLine string   `json:"sdp_fmtp_line,omitempty" doc:"SDP fmtp line"`
	Feedback    []string `json:"feedback,omitempty" example:"nack pli" doc:"RTCP feedback lines"`
}

// StreamMedia is the restreaming description of a payload as go2rtc sees it.
type StreamMedia struct {
	Kind        string `json:"kind" example:"video" doc:"Media kind"`
	Direction   string `json:"direction" example:"sendonly" doc:"Media direction"`
	Codec       string `json:"codec" example:"VP8" doc:"go2rtc codec name"`
	ClockRate   uint32 `json:"clock_rate" example:"90000" doc:"Clock rate"`
	PayloadType uint8  `json:"payload_type" example:"96" doc:"RTP payload type"`
	FmtpLine    string `json:"fmtp_line,omitempty" doc:"SDP fmtp line"`
}

// Description collects everything negotiated for one payload.
type Description struct {
	Codec       string      `json:"codec" example:"VP8" doc:"Codec"`
	Supported   bool        `json:"supported" doc:"Both an encoder and a decoder are available"`
	RTPCaps     string      `json:"rtp_caps" doc:"RTP stream caps"`
	RawCaps     string      `json:"raw_caps" doc:"Unencoded input caps"`
	EncodedCaps string      `json:"encoded_caps" doc:"Encoded stream caps"`
	WebRTC      WebRTCCodec `json:"webrtc" doc:"WebRTC codec parameters"`
	Stream      StreamMedia `json:"stream" doc:"Restreaming media description"`
}

// Describe negotiates every caps form of p.
func (n *Negotiator) Describe(p *media.Payload) (*Description, error) {
	rtpCaps, err := n.BuildRTPCaps(p)
	if err != nil {
		return nil, err
	}
	rawCaps, err := n.BuildRawCaps(p)
	if err != nil {
		return nil, err
	}
	params, err := n.CodecParameters(p)
	if err != nil {
		return nil, err
	}
	m, err := n.Media(p)
	if err != nil {
		return nil, err
	}
	codec := m.Codecs[0]

	d := &Description{
		Codec:       p.CodecType().String(),
		Supported:   n.IsCodecSupported(p.CodecType()),
		RTPCaps:     rtpCaps.String(),
		RawCaps:     rawCaps.String(),
		EncodedCaps: n.BuildEncodedCaps(p.CodecType()).String(),
		WebRTC: WebRTCCodec{
			MimeType:    params.MimeType,
			ClockRate:   params.ClockRate,
			Channels:    params.Channels,
			SDPFmtpLine: params.SDPFmtpLine,
		},
		Stream: StreamMedia{
			Kind:        m.Kind,
			Direction:   m.Direction,
			Codec:       codec.Name,
			ClockRate:   codec.ClockRate,
			PayloadType: codec.PayloadType,
			FmtpLine:    codec.FmtpLine,
		},
	}
	for _, fb := range params.RTCPFeedback {
		line := fb.Type
		if fb.Parameter != "" {
			line += " " + fb.Parameter
		}
		d.WebRTC.Feedback = append(d.WebRTC.Feedback, line)
	}
	return d, nil
}
