package payload

import (
	"fmt"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/interceptor/pkg/stats"
	"github.com/pion/interceptor/pkg/twcc"
	pion "github.com/pion/webrtc/v4"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/media"
)

// NACKBufferSize is the number of packets kept for retransmission.
// At 50Mbit/s with ~1400 byte packets this is ~1.8 seconds.
const NACKBufferSize = 8192

// SRTPReplayProtectionWindow must be at least as large as NACKBufferSize.
const SRTPReplayProtectionWindow = 10000

const (
	mimeTypeRTX = "video/rtx"

	fmtpH264 = "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"
	fmtpOpus = "minptime=10;useinbandfec=1"
)

// CodecParameters maps p to the WebRTC codec it is negotiated as. Feedback
// follows the payload's own video settings.
func (n *Negotiator) CodecParameters(p *media.Payload) (pion.RTPCodecParameters, error) {
	var rc pion.RTPCodecCapability
	switch p.CodecType() {
	case media.CodecPCMU:
		rc.MimeType = pion.MimeTypePCMU
	case media.CodecPCMA:
		rc.MimeType = pion.MimeTypePCMA
	case media.CodecOpus:
		rc.MimeType = pion.MimeTypeOpus
		rc.SDPFmtpLine = fmtpOpus
	case media.CodecH264:
		rc.MimeType = pion.MimeTypeH264
		rc.SDPFmtpLine = fmtpH264
	case media.CodecVP8:
		rc.MimeType = pion.MimeTypeVP8
	case media.CodecVP9:
		rc.MimeType = pion.MimeTypeVP9
	default:
		return pion.RTPCodecParameters{}, media.UnsupportedCodecError(p.CodecType(), "webrtc codec")
	}
	rc.ClockRate = p.ClockRate()

	switch p.MediaType() {
	case media.MediaTypeAudio:
		rc.Channels = uint16(p.Audio().Channels)
	case media.MediaTypeVideo:
		v := p.Video()
		if v.CCMFIR {
			rc.RTCPFeedback = append(rc.RTCPFeedback, pion.RTCPFeedback{Type: pion.TypeRTCPFBCCM, Parameter: "fir"})
		}
		if v.NackPLI {
			rc.RTCPFeedback = append(rc.RTCPFeedback,
				pion.RTCPFeedback{Type: pion.TypeRTCPFBNACK},
				pion.RTCPFeedback{Type: pion.TypeRTCPFBNACK, Parameter: "pli"},
			)
		}
		if p.Adaptation() == media.AdaptationSCReAM {
			rc.RTCPFeedback = append(rc.RTCPFeedback, pion.RTCPFeedback{Type: pion.TypeRTCPFBTransportCC})
		}
	}

	return pion.RTPCodecParameters{
		RTPCodecCapability: rc,
		PayloadType:        pion.PayloadType(p.PayloadType()),
	}, nil
}

// Media describes p as a go2rtc send-only media for restreaming.
func (n *Negotiator) Media(p *media.Payload) (*core.Media, error) {
	var name, fmtp string
	switch p.CodecType() {
	case media.CodecPCMU:
		name = core.CodecPCMU
	case media.CodecPCMA:
		name = core.CodecPCMA
	case media.CodecOpus:
		name, fmtp = core.CodecOpus, fmtpOpus
	case media.CodecH264:
		name, fmtp = core.CodecH264, fmtpH264
	case media.CodecVP8:
		name = core.CodecVP8
	case media.CodecVP9:
		name = core.CodecVP9
	default:
		return nil, media.UnsupportedCodecError(p.CodecType(), "stream description")
	}

	codec := &core.Codec{
		Name:        name,
		ClockRate:   p.ClockRate(),
		FmtpLine:    fmtp,
		PayloadType: uint8(p.PayloadType()),
	}
	return &core.Media{
		Kind:      core.GetKind(name),
		Direction: core.DirectionSendonly,
		Codecs:    []*core.Codec{codec},
	}, nil
}

// NewAPI creates a WebRTC API whose media engine offers exactly payloads.
// Payloads with an RTX payload type get a matching retransmission codec and
// SCReAM adaptation turns on transport-wide congestion control feedback.
// Keyframe requests from the remote peer are published on bus.
func (n *Negotiator) NewAPI(payloads []*media.Payload, bus *events.Bus) (*pion.API, error) {
	m := &pion.MediaEngine{}
	adaptive := false

	for _, p := range payloads {
		params, err := n.CodecParameters(p)
		if err != nil {
			return nil, err
		}
		kind := rtpCodecType(p.MediaType())
		if err := m.RegisterCodec(params, kind); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", p.CodecType(), err)
		}

		if rtx := p.RTXPayloadType(); rtx != media.RTXDisabled && kind == pion.RTPCodecTypeVideo {
			err := m.RegisterCodec(pion.RTPCodecParameters{
				RTPCodecCapability: pion.RTPCodecCapability{
					MimeType:    mimeTypeRTX,
					ClockRate:   p.ClockRate(),
					SDPFmtpLine: fmt.Sprintf("apt=%d", p.PayloadType()),
				},
				PayloadType: pion.PayloadType(rtx),
			}, kind)
			if err != nil {
				return nil, fmt.Errorf("failed to register rtx for %s: %w", p.CodecType(), err)
			}
		}
		if p.Adaptation() == media.AdaptationSCReAM {
			adaptive = true
		}
	}

	i := &interceptor.Registry{}
	if err := configureInterceptors(m, i, adaptive); err != nil {
		return nil, err
	}
	i.Add(&keyframeInterceptorFactory{bus: bus})

	s := pion.SettingEngine{}
	s.SetSRTPReplayProtectionWindow(SRTPReplayProtectionWindow)

	n.logger.Debug("Created WebRTC API", "payloads", len(payloads), "adaptive", adaptive)
	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(s),
	), nil
}

func rtpCodecType(m media.MediaType) pion.RTPCodecType {
	if m == media.MediaTypeAudio {
		return pion.RTPCodecTypeAudio
	}
	return pion.RTPCodecTypeVideo
}

// configureInterceptors sets up NACK, RTCP reports, stats and, when adaptive,
// TWCC.
func configureInterceptors(m *pion.MediaEngine, i *interceptor.Registry, adaptive bool) error {
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return err
	}
	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(NACKBufferSize))
	if err != nil {
		return err
	}
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack"}, pion.RTPCodecTypeVideo)
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack", Parameter: "pli"}, pion.RTPCodecTypeVideo)
	i.Add(responder)
	i.Add(generator)

	receiver, err := report.NewReceiverInterceptor()
	if err != nil {
		return err
	}
	sender, err := report.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(receiver)
	i.Add(sender)

	statsInterceptor, err := stats.NewInterceptor()
	if err != nil {
		return err
	}
	i.Add(statsInterceptor)

	if !adaptive {
		return nil
	}
	m.RegisterFeedback(pion.RTCPFeedback{Type: pion.TypeRTCPFBTransportCC}, pion.RTPCodecTypeVideo)
	m.RegisterFeedback(pion.RTCPFeedback{Type: pion.TypeRTCPFBTransportCC}, pion.RTPCodecTypeAudio)
	twccGenerator, err := twcc.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(twccGenerator)
	return nil
}
