package media

import (
	"fmt"
	"math"
)

// RendererSettings configure one renderer instance. Tag is fixed at construction.
type RendererSettings struct {
	Width        uint32
	Height       uint32
	MaxFramerate float64
	// Rotation in clockwise quarter turns, 0-3.
	Rotation uint8
	Mirror   bool
	Disabled bool
	Tag      string
}

// Validate checks the rotation range and the max framerate.
func (s RendererSettings) Validate() error {
	if s.Rotation > 3 {
		return NewError(ErrCodeInvalidSetting, fmt.Sprintf("rotation %d", s.Rotation), ErrInvalidRotation)
	}
	return ValidateMaxFramerate(s.MaxFramerate)
}

// ValidateMaxFramerate accepts 0 (unconstrained) and positive finite rates.
func ValidateMaxFramerate(fps float64) error {
	if fps < 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return NewError(ErrCodeInvalidSetting, fmt.Sprintf("max framerate %v", fps), ErrInvalidFramerate)
	}
	return nil
}

// SourceCapabilities are the queried facts about a media source.
type SourceCapabilities struct {
	HardwareColorBalance bool
	HardwareOrientation  bool
	Codec                CodecType
	Media                MediaType
}

// Encoded reports whether the source delivers encoded media.
func (c SourceCapabilities) Encoded() bool {
	return !c.Codec.IsRaw()
}
