// Package renderer builds and maintains the display-side processing graph of
// a video renderer: decode, upload, software color and orientation correction
// where the source lacks them, and the display sink.
package renderer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
)

// Stage factories of the render graph.
const (
	FactoryUpload       = "glupload"
	FactoryColorConvert = "glcolorconvert"
	FactoryColorBalance = "glcolorbalance"
	FactoryFlip         = "glvideoflip"
	FactorySink         = "glimagesink"
)

// Element names inside the render graph.
const (
	StageUpload  = "video-renderer-upload"
	StageConvert = "video-renderer-convert"
	StageBalance = "video-renderer-balance"
	StageFlip    = "video-renderer-flip"
	StageSink    = "video-renderer-sink"
)

// Logical names of optional stages, reported when they are left out.
const (
	OptionalColorBalance = "color-balance"
	OptionalOrientation  = "orientation"
)

// Properties set on render stages.
const (
	propFlipMethod       = "method"
	propEnableLastSample = "enable-last-sample"
)

// SinkFactory creates the display sink of a graph. It reports false when no
// sink implementation is available.
type SinkFactory func(eng engine.Engine) (engine.Stage, bool)

// DefaultSink instantiates the GL image sink.
func DefaultSink(eng engine.Engine) (engine.Stage, bool) {
	return eng.Instantiate(FactorySink, StageSink)
}

// Downgrade records an optional stage that could not be inserted.
type Downgrade struct {
	Stage   string
	Factory string
}

// Graph is one built render graph. Stages are in link order and the first
// one is the single external input.
type Graph struct {
	Name       string
	Stages     []engine.Stage
	Balance    engine.ColorBalance
	Flip       engine.Stage
	Sink       engine.Stage
	Bus        *engine.Bus
	Downgrades []Downgrade

	releaseOnce sync.Once
}

// Input is the stage the source links into.
func (g *Graph) Input() engine.Stage {
	return g.Stages[0]
}

// Factories lists the stage factories in link order.
func (g *Graph) Factories() []string {
	out := make([]string, len(g.Stages))
	for i, s := range g.Stages {
		out[i] = s.Factory()
	}
	return out
}

// Contains reports whether a stage of factory is part of the graph.
func (g *Graph) Contains(factory string) bool {
	for _, s := range g.Stages {
		if s.Factory() == factory {
			return true
		}
	}
	return false
}

// Release tears down every stage. It is safe to call more than once.
func (g *Graph) Release() {
	g.releaseOnce.Do(func() {
		releaseAll(g.Stages)
	})
}

func releaseAll(stages []engine.Stage) {
	for i := len(stages) - 1; i >= 0; i-- {
		stages[i].Release()
	}
}

// Builder composes render graphs on an engine.
type Builder struct {
	query  *capability.Query
	sink   SinkFactory
	logger *slog.Logger
}

// NewBuilder creates a builder. A nil sink uses DefaultSink.
func NewBuilder(query *capability.Query, sink SinkFactory) *Builder {
	if sink == nil {
		sink = DefaultSink
	}
	return &Builder{
		query:  query,
		sink:   sink,
		logger: logging.GetLogger("renderer"),
	}
}

// Query returns the capability query the builder consults.
func (b *Builder) Query() *capability.Query {
	return b.query
}

// Build composes a graph for a source with caps. On failure every stage
// created so far is released and the error wraps media.ErrGraphLinkFailure.
func (b *Builder) Build(caps media.SourceCapabilities, settings media.RendererSettings) (*Graph, error) {
	eng := b.query.Engine()
	g := &Graph{
		Name: eng.Namer().Next("video-renderer-bin-"),
		Bus:  engine.NewBus(eng.Bus()),
	}

	fail := func(err error) (*Graph, error) {
		releaseAll(g.Stages)
		b.logger.Error("Render graph build failed", "graph", g.Name, "error", err)
		return nil, err
	}

	if caps.Encoded() {
		if parser, ok := b.query.CreateParser(caps.Codec); ok {
			g.Stages = append(g.Stages, parser)
		}
		decoder, ok := b.query.CreateDecoder(caps.Codec)
		if !ok {
			return fail(missingStage("decoder for " + caps.Codec.String()))
		}
		g.Stages = append(g.Stages, decoder)
	}

	upload, ok := eng.Instantiate(FactoryUpload, StageUpload)
	if !ok {
		return fail(missingStage(FactoryUpload))
	}
	g.Stages = append(g.Stages, upload)

	if !caps.HardwareColorBalance {
		b.addColorBalance(eng, g, settings.Disabled)
	}
	if !caps.HardwareOrientation {
		b.addOrientation(eng, g, settings)
	}

	sink, ok := b.sink(eng)
	if !ok {
		return fail(missingStage(FactorySink))
	}
	b.disableLastSample(sink)
	g.Sink = sink
	g.Stages = append(g.Stages, sink)

	for i := 1; i < len(g.Stages); i++ {
		up, down := g.Stages[i-1], g.Stages[i]
		if err := eng.Link(up, down); err != nil {
			return fail(media.LinkError(up.Name(), down.Name(), err))
		}
	}

	b.logger.Debug("Render graph built", "graph", g.Name, "stages", g.Factories())
	return g, nil
}

// addColorBalance inserts the convert and balance pair. Both stages go in or
// neither does.
func (b *Builder) addColorBalance(eng engine.Engine, g *Graph, disabled bool) {
	balance, ok := eng.Instantiate(FactoryColorBalance, StageBalance)
	if !ok {
		g.downgrade(b.logger, OptionalColorBalance, FactoryColorBalance)
		return
	}
	convert, ok := eng.Instantiate(FactoryColorConvert, StageConvert)
	if !ok {
		balance.Release()
		g.downgrade(b.logger, OptionalColorBalance, FactoryColorConvert)
		return
	}
	g.Stages = append(g.Stages, convert, balance)

	cb, ok := balance.(engine.ColorBalance)
	if !ok {
		b.logger.Warn("Balance stage exposes no color channels", "stage", balance.Name())
		return
	}
	g.Balance = cb
	if err := applyDisabled(cb, disabled); err != nil {
		b.logger.Warn("Failed to apply disabled state", "stage", balance.Name(), "error", err)
	}
}

func (b *Builder) addOrientation(eng engine.Engine, g *Graph, settings media.RendererSettings) {
	flip, ok := eng.Instantiate(FactoryFlip, StageFlip)
	if !ok {
		g.downgrade(b.logger, OptionalOrientation, FactoryFlip)
		return
	}
	g.Flip = flip
	g.Stages = append(g.Stages, flip)
	if err := flip.Set(propFlipMethod, FlipMethod(settings.Rotation, settings.Mirror)); err != nil {
		b.logger.Warn("Failed to set flip method", "stage", flip.Name(), "error", err)
	}
}

// disableLastSample turns off sample retention on the sink and on every sink
// nested inside it.
func (b *Builder) disableLastSample(sink engine.Stage) {
	engine.Walk(sink, func(s engine.Stage) {
		if _, isBin := s.(engine.Bin); isBin {
			return
		}
		if err := s.Set(propEnableLastSample, false); err != nil {
			b.logger.Debug("Sink keeps last sample", "stage", s.Name(), "error", err)
		}
	})
}

func (g *Graph) downgrade(logger *slog.Logger, stage, factory string) {
	logger.Warn("Optional stage unavailable", "graph", g.Name, "stage", stage, "factory", factory)
	g.Downgrades = append(g.Downgrades, Downgrade{Stage: stage, Factory: factory})
}

func missingStage(what string) error {
	return media.NewError(media.ErrCodeGraphLink, "missing "+what, fmt.Errorf("%w: no stage to link", media.ErrGraphLinkFailure))
}
