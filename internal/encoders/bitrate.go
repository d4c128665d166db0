package encoders

import (
	"math"

	"github.com/smazurov/mediagraph/internal/media"
)

// Defaults used when the payload leaves video geometry unset.
const (
	DefaultWidth     = 640
	DefaultHeight    = 480
	DefaultFramerate = 30.0

	// BitsPerPixel scales the pixel rate into a bitrate. The value is kept
	// as the tuning table has always had it, even though 640x480@15 then
	// lands near 460 kbit/s rather than the 768 kbit/s it was meant to hit.
	BitsPerPixel = 0.1
)

// EstimateBitrate returns the payload bitrate when one is set, otherwise a
// pixel-rate estimate in bits per second.
func EstimateBitrate(p *media.Payload) uint32 {
	if b := p.Bitrate(); b != 0 {
		return b
	}
	v := p.Video()
	return estimate(v.Width, v.Height, v.Framerate)
}

func estimate(width, height uint32, framerate float64) uint32 {
	w, h, fps := float64(width), float64(height), framerate
	if width == 0 {
		w = DefaultWidth
	}
	if height == 0 {
		h = DefaultHeight
	}
	if !(framerate > 0) {
		fps = DefaultFramerate
	}
	bits := w * h * fps * BitsPerPixel
	if bits >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(bits)
}
