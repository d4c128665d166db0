package payload

import (
	"errors"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
)

// Depacketizer is the RTP depacketizer of an inbound payload.
type Depacketizer struct {
	Stage   engine.Stage
	Factory string
	Codec   media.CodecType

	depacketizer rtp.Depacketizer
}

// BuildDepacketizer instantiates the depacketizer for codec.
func (n *Negotiator) BuildDepacketizer(codec media.CodecType) (*Depacketizer, error) {
	factory, ok := DepayFactory(codec)
	if !ok {
		return nil, media.UnsupportedCodecError(codec, "depacketizer")
	}
	eng := n.query.Engine()
	stage, ok := eng.Instantiate(factory, eng.Namer().Next("depay_"+factory+"_"))
	if !ok {
		return nil, stageUnavailable(factory)
	}
	return &Depacketizer{
		Stage:        stage,
		Factory:      factory,
		Codec:        codec,
		depacketizer: newDepacketizer(codec),
	}, nil
}

func newDepacketizer(codec media.CodecType) rtp.Depacketizer {
	switch codec {
	case media.CodecH264:
		return &codecs.H264Packet{}
	case media.CodecVP8:
		return &codecs.VP8Packet{}
	case media.CodecVP9:
		return &codecs.VP9Packet{}
	case media.CodecOpus:
		return &codecs.OpusPacket{}
	default:
		return g711Packet{}
	}
}

// Depacketize returns the codec payload carried by pkt. H264 payloads come
// out as Annex-B.
func (d *Depacketizer) Depacketize(pkt *rtp.Packet) ([]byte, error) {
	return d.depacketizer.Unmarshal(pkt.Payload)
}

// FrameStart reports whether pkt begins a new frame.
func (d *Depacketizer) FrameStart(pkt *rtp.Packet) bool {
	return d.depacketizer.IsPartitionHead(pkt.Payload)
}

// FrameEnd reports whether pkt completes a frame.
func (d *Depacketizer) FrameEnd(pkt *rtp.Packet) bool {
	return d.depacketizer.IsPartitionTail(pkt.Marker, pkt.Payload)
}

// Release releases the stage.
func (d *Depacketizer) Release() {
	d.Stage.Release()
}

var errEmptyPayload = errors.New("empty payload")

// g711Packet carries G.711 samples verbatim; every packet is a whole frame.
type g711Packet struct{}

func (g711Packet) Unmarshal(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, errEmptyPayload
	}
	return payload, nil
}

func (g711Packet) IsPartitionHead([]byte) bool { return true }

func (g711Packet) IsPartitionTail(bool, []byte) bool { return true }
