package media

import (
	"errors"
	"testing"
)

func TestNewPayloadDefaults(t *testing.T) {
	p, err := NewPayload(MediaTypeVideo, CodecVP8, 100, 90000)
	if err != nil {
		t.Fatalf("NewPayload: %v", err)
	}
	if p.MTU() != DefaultMTU {
		t.Errorf("MTU = %d, want %d", p.MTU(), DefaultMTU)
	}
	if p.RTXPayloadType() != RTXDisabled {
		t.Errorf("RTXPayloadType = %d, want %d", p.RTXPayloadType(), RTXDisabled)
	}
	if p.Bitrate() != 0 {
		t.Errorf("Bitrate = %d, want 0 (auto)", p.Bitrate())
	}
	if p.CodecType() != CodecVP8 || p.MediaType() != MediaTypeVideo {
		t.Errorf("codec/media = %v/%v", p.CodecType(), p.MediaType())
	}
}

func TestNewPayloadValidation(t *testing.T) {
	tests := []struct {
		name      string
		pt, clock uint32
		wantErr   error
	}{
		{"max payload type", 127, 90000, nil},
		{"payload type too large", 128, 90000, ErrInvalidPayloadType},
		{"clock rate too large", 96, 90001, ErrInvalidClockRate},
		{"zero values", 0, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPayload(MediaTypeAudio, CodecOpus, tt.pt, tt.clock)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetRTXPayloadType(t *testing.T) {
	tests := []struct {
		pt      int
		wantErr bool
	}{
		{-1, false},
		{96, false},
		{127, false},
		{110, false},
		{95, true},
		{128, true},
		{0, true},
		{-2, true},
	}
	for _, tt := range tests {
		p, _ := NewPayload(MediaTypeVideo, CodecH264, 96, 90000)
		if err := p.SetRTXPayloadType(97); err != nil {
			t.Fatalf("SetRTXPayloadType(97): %v", err)
		}
		err := p.SetRTXPayloadType(tt.pt)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidRTXPayloadType) {
				t.Errorf("SetRTXPayloadType(%d) = %v, want ErrInvalidRTXPayloadType", tt.pt, err)
			}
			if p.RTXPayloadType() != 97 {
				t.Errorf("rejected value %d changed the setting to %d", tt.pt, p.RTXPayloadType())
			}
			continue
		}
		if err != nil {
			t.Errorf("SetRTXPayloadType(%d) = %v, want nil", tt.pt, err)
		}
		if p.RTXPayloadType() != tt.pt {
			t.Errorf("RTXPayloadType = %d, want %d", p.RTXPayloadType(), tt.pt)
		}
	}
}

func TestBindingsNotifySynchronously(t *testing.T) {
	p, _ := NewAudioPayload(CodecOpus, 111, 48000, AudioSettings{Channels: 2, PTime: 20})

	var bitrates, mtus, ptimes []uint32
	b1 := p.BindBitrate(func(v uint32) { bitrates = append(bitrates, v) })
	b2 := p.BindMTU(func(v uint32) { mtus = append(mtus, v) })
	b3 := p.BindPTime(func(v uint32) { ptimes = append(ptimes, v) })

	p.SetBitrate(64000)
	p.SetMTU(1400)
	p.SetAudio(AudioSettings{Channels: 2, PTime: 40})

	if len(bitrates) != 2 || bitrates[0] != 0 || bitrates[1] != 64000 {
		t.Errorf("bitrate notifications = %v, want [0 64000]", bitrates)
	}
	if len(mtus) != 2 || mtus[0] != DefaultMTU || mtus[1] != 1400 {
		t.Errorf("mtu notifications = %v, want [1200 1400]", mtus)
	}
	if len(ptimes) != 2 || ptimes[0] != 20 || ptimes[1] != 40 {
		t.Errorf("ptime notifications = %v, want [20 40]", ptimes)
	}

	b1.Unbind()
	b2.Unbind()
	b3.Unbind()
	b3.Unbind()
	p.SetBitrate(1)
	p.SetMTU(1)
	if len(bitrates) != 2 || len(mtus) != 2 {
		t.Errorf("notifications after Unbind: bitrates=%v mtus=%v", bitrates, mtus)
	}
}

func TestBindingCallbackMaySetPayload(t *testing.T) {
	p, _ := NewPayload(MediaTypeVideo, CodecVP8, 100, 90000)
	var seen uint32
	p.BindMTU(func(v uint32) {
		seen = v
		_ = p.Bitrate()
	})
	p.SetMTU(900)
	if seen != 900 {
		t.Errorf("seen = %d, want 900", seen)
	}
}
