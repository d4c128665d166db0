// Package encoders picks and tunes the encoder stage for an outbound payload.
package encoders

import (
	"log/slog"
	"maps"
	"sync"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
)

// Encoder is a tuned encoder stage. Release detaches the bitrate binding
// before releasing the stage.
type Encoder struct {
	Stage          engine.Stage
	Implementation string
	Codec          media.CodecType

	binding *media.Binding
}

// Release unbinds the payload and releases the stage.
func (e *Encoder) Release() {
	if e == nil {
		return
	}
	e.binding.Unbind()
	if e.Stage != nil {
		e.Stage.Release()
	}
}

// Selector instantiates the first available encoder candidate for a payload
// and applies the tuning registered for it.
type Selector struct {
	query    *capability.Query
	registry *Registry
	bus      *events.Bus
	logger   *slog.Logger

	mu        sync.RWMutex
	overrides map[string]map[string]any
}

// NewSelector creates a selector. registry defaults to DefaultRegistry and bus may be nil.
func NewSelector(query *capability.Query, registry *Registry, bus *events.Bus) *Selector {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Selector{
		query:     query,
		registry:  registry,
		bus:       bus,
		logger:    logging.GetLogger("encoders"),
		overrides: make(map[string]map[string]any),
	}
}

// SelectEncoder creates and tunes an encoder for p. For H264, VP8 and VP9 the
// effective bitrate is written back to p so later readers see it. When no
// candidate can be instantiated nothing is held and the error wraps
// media.ErrNoEncoderAvailable.
func (s *Selector) SelectEncoder(p *media.Payload) (*Encoder, error) {
	codec := p.CodecType()
	candidates := s.query.EncoderCandidates(codec)

	stage, implementation, ok := s.query.TryCandidates(candidates, "encoder")
	if !ok {
		s.logger.Warn("No encoder available", "codec", codec, "tried", candidates)
		s.bus.Publish(events.EncoderUnavailableEvent{Codec: codec.String(), Tried: candidates})
		return nil, media.NoEncoderError(codec, candidates)
	}

	enc := &Encoder{Stage: stage, Implementation: implementation, Codec: codec}
	if tune, ok := s.registry.Lookup(implementation, codec); ok {
		enc.binding = tune(stage, p, s.query.Platform(), s.logger)
	}
	s.applyOverrides(stage, implementation)

	if autoBitrate(codec) {
		p.SetBitrate(EstimateBitrate(p))
	}

	s.logger.Info("Selected encoder",
		"codec", codec,
		"implementation", implementation,
		"stage", stage.Name(),
		"bitrate", p.Bitrate())
	s.bus.Publish(events.EncoderSelectedEvent{
		Codec:          codec.String(),
		Implementation: implementation,
		Bitrate:        p.Bitrate(),
	})
	return enc, nil
}

// SetOverrides replaces the per-implementation property overrides applied
// after built-in tuning.
func (s *Selector) SetOverrides(overrides map[string]map[string]any) {
	next := make(map[string]map[string]any, len(overrides))
	for impl, props := range overrides {
		next[impl] = maps.Clone(props)
	}
	s.mu.Lock()
	s.overrides = next
	s.mu.Unlock()
}

func (s *Selector) applyOverrides(stage engine.Stage, implementation string) {
	s.mu.RLock()
	props := s.overrides[implementation]
	s.mu.RUnlock()
	for property, value := range props {
		if err := stage.Set(property, value); err != nil {
			s.logger.Warn("Ignoring tuning override", "implementation", implementation, "property", property, "error", err)
		}
	}
}

func autoBitrate(codec media.CodecType) bool {
	switch codec {
	case media.CodecH264, media.CodecVP8, media.CodecVP9:
		return true
	default:
		return false
	}
}
