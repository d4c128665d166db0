package encoders

import (
	"log/slog"
	"sync"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/media"
)

// Tuner configures a freshly instantiated encoder for a payload. It returns
// the live bitrate binding it installed, or nil when it bound nothing.
type Tuner func(enc engine.Stage, p *media.Payload, platform capability.Platform, logger *slog.Logger) *media.Binding

// Registry maps concrete implementation identifiers to tuners. Codec
// fallbacks apply to implementations without their own entry.
type Registry struct {
	mu       sync.RWMutex
	tuners   map[string]Tuner
	fallback map[media.CodecType]Tuner
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tuners:   make(map[string]Tuner),
		fallback: make(map[media.CodecType]Tuner),
	}
}

// Register sets the tuner for one implementation.
func (r *Registry) Register(implementation string, t Tuner) {
	r.mu.Lock()
	r.tuners[implementation] = t
	r.mu.Unlock()
}

// RegisterFallback sets the tuner used for implementations of codec that
// have no entry of their own.
func (r *Registry) RegisterFallback(codec media.CodecType, t Tuner) {
	r.mu.Lock()
	r.fallback[codec] = t
	r.mu.Unlock()
}

// Lookup returns the tuner for implementation, falling back to the codec tuner.
func (r *Registry) Lookup(implementation string, codec media.CodecType) (Tuner, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.tuners[implementation]; ok {
		return t, true
	}
	t, ok := r.fallback[codec]
	return t, ok
}

// DefaultRegistry returns the built-in tuning table.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(capability.FactoryOpenH264Enc, tuneOpenH264)
	r.Register(capability.FactoryX264Enc, tuneX264)
	r.Register(capability.FactoryVTEncH264, tuneVTEnc)
	// omxh264enc takes its bitrate in an unknown unit, so it stays unbound.
	r.Register(capability.FactoryOMXH264Enc, tuneNothing)
	r.Register(capability.FactoryVP8Enc, tuneVP8)
	r.Register(capability.FactoryVP9Enc, tuneVP9)
	r.RegisterFallback(media.CodecH264, tuneGenericH264)
	return r
}
