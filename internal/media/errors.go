package media

import (
	"errors"
	"fmt"
)

var (
	// ErrNoEncoderAvailable means no encoder implementation for a codec could be instantiated.
	ErrNoEncoderAvailable = errors.New("no encoder available")
	// ErrUnsupportedCodec means negotiation was requested for a codec with no known mapping.
	ErrUnsupportedCodec = errors.New("unsupported codec")
	// ErrGraphLinkFailure means a render graph could not be linked end to end.
	ErrGraphLinkFailure = errors.New("graph link failure")
	// ErrInvalidRTXPayloadType means the RTX payload type is neither -1 nor within 96-127.
	ErrInvalidRTXPayloadType = errors.New("invalid rtx payload type")
	// ErrInvalidPayloadType means the payload type number is outside 0-127.
	ErrInvalidPayloadType = errors.New("invalid payload type")
	// ErrInvalidClockRate means the clock rate is outside 0-90000.
	ErrInvalidClockRate = errors.New("invalid clock rate")
	// ErrInvalidRotation means the rotation is not 0-3 quarter turns.
	ErrInvalidRotation = errors.New("invalid rotation")
	// ErrInvalidFramerate means a framerate is negative or not finite.
	ErrInvalidFramerate = errors.New("invalid framerate")
)

// Error codes carried by Error.
const (
	ErrCodeNoEncoder      = "NO_ENCODER_AVAILABLE"
	ErrCodeUnsupported    = "UNSUPPORTED_CODEC"
	ErrCodeGraphLink      = "GRAPH_LINK_FAILURE"
	ErrCodeInvalidSetting = "INVALID_SETTING"
)

// Error is a coded media error wrapping one of the sentinel errors.
type Error struct {
	Code    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new coded media error.
func NewError(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NoEncoderError reports that no candidate encoder for codec could be instantiated.
func NoEncoderError(codec CodecType, tried []string) error {
	return NewError(ErrCodeNoEncoder, fmt.Sprintf("codec %s, tried %v", codec, tried), ErrNoEncoderAvailable)
}

// UnsupportedCodecError reports a codec with no negotiation mapping.
func UnsupportedCodecError(codec CodecType, what string) error {
	return NewError(ErrCodeUnsupported, fmt.Sprintf("no %s for codec %s", what, codec), ErrUnsupportedCodec)
}

// LinkError reports a failed link between two named stages.
func LinkError(upstream, downstream string, cause error) error {
	msg := fmt.Sprintf("%s -> %s", upstream, downstream)
	if cause == nil {
		return NewError(ErrCodeGraphLink, msg, ErrGraphLinkFailure)
	}
	return NewError(ErrCodeGraphLink, msg, fmt.Errorf("%w: %w", ErrGraphLinkFailure, cause))
}
