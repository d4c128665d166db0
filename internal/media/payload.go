package media

import (
	"fmt"
	"sync"
)

const (
	DefaultMTU     = 1200
	DefaultBitrate = 0
	DefaultRTXTime = 0

	// RTXDisabled is the RTX payload type meaning no retransmission.
	RTXDisabled = -1

	MaxPayloadType = 127
	MaxClockRate   = 90000
	minRTXType     = 96
)

// AdaptationMode selects the congestion adaptation algorithm for a payload.
type AdaptationMode int

const (
	AdaptationDisabled AdaptationMode = iota
	AdaptationSCReAM
)

func (a AdaptationMode) String() string {
	if a == AdaptationSCReAM {
		return "scream"
	}
	return "disabled"
}

// VideoSettings are the video specific payload settings.
type VideoSettings struct {
	Width     uint32
	Height    uint32
	Framerate float64
	// CCMFIR advertises keyframe request (ccm fir) feedback support.
	CCMFIR bool
	// NackPLI advertises loss recovery (nack pli) feedback support.
	NackPLI bool
}

// AudioSettings are the audio specific payload settings.
type AudioSettings struct {
	Channels uint32
	// PTime is the packetization time in milliseconds.
	PTime uint32
}

// Payload describes how one media stream is encoded and transported.
// Codec and media type are fixed at construction; everything else is mutated
// by the owning session through the typed setters, which synchronously notify
// live bindings.
type Payload struct {
	codec CodecType
	media MediaType

	mu             sync.RWMutex
	payloadType    uint32
	clockRate      uint32
	mtu            uint32
	bitrate        uint32
	rtxPayloadType int
	rtxTime        uint32
	adaptation     AdaptationMode
	video          VideoSettings
	audio          AudioSettings

	bindings    map[bindingKind]map[uint64]func(uint32)
	nextBinding uint64
}

type bindingKind int

const (
	bindBitrate bindingKind = iota
	bindMTU
	bindPTime
)

// NewPayload creates a payload for the given media type and codec.
func NewPayload(media MediaType, codec CodecType, payloadType, clockRate uint32) (*Payload, error) {
	if payloadType > MaxPayloadType {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPayloadType, payloadType)
	}
	if clockRate > MaxClockRate {
		return nil, fmt.Errorf("%w: %d", ErrInvalidClockRate, clockRate)
	}
	return &Payload{
		codec:          codec,
		media:          media,
		payloadType:    payloadType,
		clockRate:      clockRate,
		mtu:            DefaultMTU,
		bitrate:        DefaultBitrate,
		rtxPayloadType: RTXDisabled,
		rtxTime:        DefaultRTXTime,
		bindings:       make(map[bindingKind]map[uint64]func(uint32)),
	}, nil
}

// NewVideoPayload creates a video payload with the given video settings.
func NewVideoPayload(codec CodecType, payloadType, clockRate uint32, video VideoSettings) (*Payload, error) {
	p, err := NewPayload(MediaTypeVideo, codec, payloadType, clockRate)
	if err != nil {
		return nil, err
	}
	p.video = video
	return p, nil
}

// NewAudioPayload creates an audio payload with the given audio settings.
func NewAudioPayload(codec CodecType, payloadType, clockRate uint32, audio AudioSettings) (*Payload, error) {
	p, err := NewPayload(MediaTypeAudio, codec, payloadType, clockRate)
	if err != nil {
		return nil, err
	}
	p.audio = audio
	return p, nil
}

func (p *Payload) CodecType() CodecType { return p.codec }
func (p *Payload) MediaType() MediaType { return p.media }

func (p *Payload) PayloadType() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.payloadType
}

func (p *Payload) ClockRate() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clockRate
}

func (p *Payload) MTU() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mtu
}

// Bitrate returns the configured bitrate in bits per second, 0 meaning automatic.
func (p *Payload) Bitrate() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.bitrate
}

func (p *Payload) RTXPayloadType() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rtxPayloadType
}

// RTXTime returns how long packets are kept for retransmission, in milliseconds.
func (p *Payload) RTXTime() uint32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rtxTime
}

func (p *Payload) Adaptation() AdaptationMode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.adaptation
}

func (p *Payload) Video() VideoSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.video
}

func (p *Payload) Audio() AudioSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.audio
}

// SetMTU sets the maximum RTP packet size in bytes.
func (p *Payload) SetMTU(mtu uint32) {
	p.mu.Lock()
	p.mtu = mtu
	fns := p.snapshot(bindMTU)
	p.mu.Unlock()
	notify(fns, mtu)
}

// SetBitrate sets the encoder bitrate in bits per second.
func (p *Payload) SetBitrate(bitrate uint32) {
	p.mu.Lock()
	p.bitrate = bitrate
	fns := p.snapshot(bindBitrate)
	p.mu.Unlock()
	notify(fns, bitrate)
}

// SetRTXPayloadType sets the retransmission payload type. Only -1 (disabled)
// and 96-127 are accepted.
func (p *Payload) SetRTXPayloadType(pt int) error {
	if pt != RTXDisabled && (pt < minRTXType || pt > MaxPayloadType) {
		return fmt.Errorf("%w: %d", ErrInvalidRTXPayloadType, pt)
	}
	p.mu.Lock()
	p.rtxPayloadType = pt
	p.mu.Unlock()
	return nil
}

func (p *Payload) SetRTXTime(ms uint32) {
	p.mu.Lock()
	p.rtxTime = ms
	p.mu.Unlock()
}

func (p *Payload) SetAdaptation(mode AdaptationMode) {
	p.mu.Lock()
	p.adaptation = mode
	p.mu.Unlock()
}

func (p *Payload) SetVideo(video VideoSettings) {
	p.mu.Lock()
	p.video = video
	p.mu.Unlock()
}

func (p *Payload) SetAudio(audio AudioSettings) {
	p.mu.Lock()
	p.audio = audio
	fns := p.snapshot(bindPTime)
	p.mu.Unlock()
	notify(fns, audio.PTime)
}

// Binding is a live link from a payload setting to a consumer. Unbind stops
// further notifications.
type Binding struct {
	once   sync.Once
	unbind func()
}

// Unbind detaches the binding. It is safe to call more than once.
func (b *Binding) Unbind() {
	if b == nil {
		return
	}
	b.once.Do(b.unbind)
}

// BindBitrate calls fn with the current bitrate and again on every change.
func (p *Payload) BindBitrate(fn func(bitrate uint32)) *Binding {
	return p.bind(bindBitrate, fn, p.Bitrate)
}

// BindMTU calls fn with the current MTU and again on every change.
func (p *Payload) BindMTU(fn func(mtu uint32)) *Binding {
	return p.bind(bindMTU, fn, p.MTU)
}

// BindPTime calls fn with the current audio packetization time and again on every change.
func (p *Payload) BindPTime(fn func(ptime uint32)) *Binding {
	return p.bind(bindPTime, fn, func() uint32 { return p.Audio().PTime })
}

func (p *Payload) bind(kind bindingKind, fn func(uint32), current func() uint32) *Binding {
	p.mu.Lock()
	p.nextBinding++
	id := p.nextBinding
	if p.bindings[kind] == nil {
		p.bindings[kind] = make(map[uint64]func(uint32))
	}
	p.bindings[kind][id] = fn
	p.mu.Unlock()

	fn(current())

	return &Binding{unbind: func() {
		p.mu.Lock()
		delete(p.bindings[kind], id)
		p.mu.Unlock()
	}}
}

// snapshot must be called with p.mu held.
func (p *Payload) snapshot(kind bindingKind) []func(uint32) {
	fns := make([]func(uint32), 0, len(p.bindings[kind]))
	for _, fn := range p.bindings[kind] {
		fns = append(fns, fn)
	}
	return fns
}

func notify(fns []func(uint32), v uint32) {
	for _, fn := range fns {
		fn(v)
	}
}
