package payload

import (
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
)

// H264ConfigInterval makes the H264 packetizer send parameter sets with every keyframe.
const H264ConfigInterval = 1

// Packetizer is the RTP packetizer of an outbound payload. The engine stage
// and the in-process packetizer both follow the payload MTU, and audio
// packetizers follow its packetization time.
type Packetizer struct {
	Stage   engine.Stage
	Factory string
	Codec   media.CodecType

	payloadType uint8
	clockRate   uint32
	ssrc        uint32
	payloader   rtp.Payloader
	sequencer   rtp.Sequencer
	logger      *slog.Logger

	mu         sync.Mutex
	packetizer rtp.Packetizer
	mtu        uint32
	ptime      uint32
	params     *parameterSets

	bindings []*media.Binding
}

// BuildPacketizer instantiates the packetizer for p and binds the payload MTU
// and, for audio, the packetization time to it.
func (n *Negotiator) BuildPacketizer(p *media.Payload) (*Packetizer, error) {
	codec := p.CodecType()
	factory, ok := PayFactory(codec)
	if !ok {
		return nil, media.UnsupportedCodecError(codec, "packetizer")
	}
	eng := n.query.Engine()
	stage, ok := eng.Instantiate(factory, eng.Namer().Next("pay_"+factory+"_"))
	if !ok {
		return nil, stageUnavailable(factory)
	}

	pk := &Packetizer{
		Stage:       stage,
		Factory:     factory,
		Codec:       codec,
		payloadType: uint8(p.PayloadType()),
		clockRate:   p.ClockRate(),
		ssrc:        rand.Uint32(),
		payloader:   newPayloader(codec),
		sequencer:   rtp.NewRandomSequencer(),
		logger:      n.logger,
	}

	pk.bindings = append(pk.bindings, p.BindMTU(pk.setMTU))

	switch p.MediaType() {
	case media.MediaTypeAudio:
		pk.bindings = append(pk.bindings, p.BindPTime(pk.setPTime))
	case media.MediaTypeVideo:
		if codec == media.CodecH264 {
			if err := stage.Set("config-interval", H264ConfigInterval); err != nil {
				n.logger.Warn("Failed to set config interval", "stage", stage.Name(), "error", err)
			}
			pk.params = &parameterSets{}
		}
	}

	n.logger.Debug("Built packetizer", "stage", stage.Name(), "codec", codec, "mtu", pk.MTU())
	return pk, nil
}

func newPayloader(codec media.CodecType) rtp.Payloader {
	switch codec {
	case media.CodecH264:
		return &codecs.H264Payloader{}
	case media.CodecVP8:
		return &codecs.VP8Payloader{EnablePictureID: true}
	case media.CodecVP9:
		return &codecs.VP9Payloader{}
	case media.CodecOpus:
		return &codecs.OpusPayloader{}
	default:
		return &codecs.G711Payloader{}
	}
}

func (pk *Packetizer) setMTU(mtu uint32) {
	if err := pk.Stage.Set("mtu", mtu); err != nil {
		pk.logger.Warn("Failed to apply MTU", "stage", pk.Stage.Name(), "error", err)
	}
	size := min(mtu, math.MaxUint16)

	pk.mu.Lock()
	pk.mtu = mtu
	pk.packetizer = rtp.NewPacketizer(uint16(size), pk.payloadType, pk.ssrc, pk.payloader, pk.sequencer, pk.clockRate)
	pk.mu.Unlock()
}

func (pk *Packetizer) setPTime(ptime uint32) {
	for _, property := range []string{"min-ptime", "max-ptime"} {
		if err := pk.Stage.Set(property, ptime); err != nil {
			pk.logger.Warn("Failed to apply packetization time", "stage", pk.Stage.Name(), "property", property, "error", err)
		}
	}

	pk.mu.Lock()
	pk.ptime = ptime
	pk.mu.Unlock()
}

// MTU returns the MTU currently applied.
func (pk *Packetizer) MTU() uint32 {
	pk.mu.Lock()
	defer pk.mu.Unlock()
	return pk.mtu
}

// PTime returns the packetization time currently applied, in milliseconds.
func (pk *Packetizer) PTime() uint32 {
	pk.mu.Lock()
	defer pk.mu.Unlock()
	return pk.ptime
}

// SSRC returns the synchronization source of produced packets.
func (pk *Packetizer) SSRC() uint32 { return pk.ssrc }

// SetParameterSets seeds the H264 SPS and PPS from an fmtp line carrying
// sprop-parameter-sets. It is a no-op for other codecs.
func (pk *Packetizer) SetParameterSets(fmtpLine string) {
	pk.mu.Lock()
	defer pk.mu.Unlock()
	if pk.params != nil {
		pk.params.seed(fmtpLine)
	}
}

// Packetize splits one encoded frame into RTP packets. samples is the frame
// duration in clock rate units. H264 frames are Annex-B access units.
func (pk *Packetizer) Packetize(frame []byte, samples uint32) []*rtp.Packet {
	pk.mu.Lock()
	defer pk.mu.Unlock()
	if pk.params != nil {
		frame = pk.params.process(frame)
	}
	return pk.packetizer.Packetize(frame, samples)
}

// Release detaches the payload bindings and releases the stage.
func (pk *Packetizer) Release() {
	for _, b := range pk.bindings {
		b.Unbind()
	}
	pk.Stage.Release()
}
