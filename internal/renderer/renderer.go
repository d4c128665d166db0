package renderer

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/engine"
	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/logging"
	"github.com/smazurov/mediagraph/internal/media"
	"github.com/smazurov/mediagraph/internal/windows"
)

// ContextResolver supplies an external device context for a context type.
// It reports false when it has nothing for the type.
type ContextResolver func(contextType string) (any, bool)

// Option configures a Renderer.
type Option func(*Renderer)

// WithRegistry makes a tagged renderer wait for its window in registry.
func WithRegistry(registry *windows.Registry) Option {
	return func(r *Renderer) { r.registry = registry }
}

// WithEvents publishes renderer events on bus and, for tagged renderers,
// listens for window handle announcements.
func WithEvents(bus *events.Bus) Option {
	return func(r *Renderer) { r.bus = bus }
}

// Renderer owns one render graph and rebuilds it when the source or the
// window changes. All methods are safe for concurrent use.
type Renderer struct {
	id       string
	tag      string
	builder  *Builder
	registry *windows.Registry
	bus      *events.Bus
	logger   *slog.Logger

	settingsMu sync.RWMutex
	settings   media.RendererSettings
	source     capability.Source

	// mu serializes graph rebuilds; window announcements arrive on their
	// own goroutines.
	mu          sync.Mutex
	graph       *Graph
	handle      uintptr
	removeSync  func()
	unsubscribe func()
	closed      bool

	resolverMu      sync.Mutex
	resolver        ContextResolver
	releaseResolver func()
}

// New creates a renderer for source, which may be nil until SetSource. An
// untagged renderer builds its graph immediately. A tagged one registers its
// tag and builds once a window handle is known.
func New(builder *Builder, source capability.Source, settings media.RendererSettings, opts ...Option) (*Renderer, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{
		id:       uuid.NewString(),
		tag:      settings.Tag,
		builder:  builder,
		settings: settings,
		source:   source,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.GetLogger("renderer").With("renderer_id", r.id)

	if r.tag == "" {
		if err := r.OnSourceChanged(); err != nil {
			return nil, err
		}
		return r, nil
	}

	r.unsubscribe = r.bus.Subscribe(func(e events.WindowHandleEvent) {
		if err := r.OnTagHandleReady(e.Tag, e.Handle); err != nil {
			r.logger.Error("Rebuild on window handle failed", "tag", e.Tag, "error", err)
		}
	})
	if r.registry != nil {
		if handle, ok := r.registry.Register(r.tag, r.id); ok {
			if err := r.OnTagHandleReady(r.tag, handle); err != nil {
				r.Close()
				return nil, err
			}
		}
	}
	return r, nil
}

// ID returns the renderer instance identifier.
func (r *Renderer) ID() string { return r.id }

// Tag returns the display tag, empty for untagged renderers.
func (r *Renderer) Tag() string { return r.tag }

// Settings returns a copy of the current settings.
func (r *Renderer) Settings() media.RendererSettings {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.settings
}

// Source returns the current source.
func (r *Renderer) Source() capability.Source {
	r.settingsMu.RLock()
	defer r.settingsMu.RUnlock()
	return r.source
}

// Graph returns the active graph, or nil when none is built.
func (r *Renderer) Graph() *Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.graph
}

// SetSource replaces the source and rebuilds.
func (r *Renderer) SetSource(source capability.Source) error {
	r.settingsMu.Lock()
	r.source = source
	r.settingsMu.Unlock()
	return r.OnSourceChanged()
}

// OnSourceChanged discards the current graph and builds a new one. A tagged
// renderer without a window keeps waiting.
func (r *Renderer) OnSourceChanged() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if r.tag != "" && r.handle == 0 {
		r.logger.Debug("Source changed before window is available", "tag", r.tag)
		return nil
	}
	r.teardownLocked()
	return r.rebuildLocked()
}

// OnTagHandleReady reacts to a window announcement. Announcements for other
// tags are ignored. A zero handle tears the graph down.
func (r *Renderer) OnTagHandleReady(tag string, handle uintptr) error {
	if r.tag == "" || tag != r.tag {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}

	r.teardownLocked()
	r.handle = handle
	if handle == 0 {
		r.logger.Info("Window revoked", "tag", tag)
		return nil
	}
	return r.rebuildLocked()
}

// OnContextNeeded asks the installed resolver for a context. It never runs
// concurrently with SetContextResolver.
func (r *Renderer) OnContextNeeded(contextType string) (any, bool) {
	r.resolverMu.Lock()
	defer r.resolverMu.Unlock()
	if r.resolver == nil {
		return nil, false
	}
	return r.resolver(contextType)
}

// SetContextResolver installs resolver. The previous resolver's release
// function runs once no resolution is in flight. Either argument may be nil.
func (r *Renderer) SetContextResolver(resolver ContextResolver, release func()) {
	r.resolverMu.Lock()
	defer r.resolverMu.Unlock()
	if r.releaseResolver != nil {
		r.releaseResolver()
	}
	r.resolver = resolver
	r.releaseResolver = release
}

// SetRotation sets clockwise quarter turns, 0-3.
func (r *Renderer) SetRotation(rotation uint8) error {
	if rotation > 3 {
		return media.NewError(media.ErrCodeInvalidSetting, fmt.Sprintf("rotation %d", rotation), media.ErrInvalidRotation)
	}
	r.settingsMu.Lock()
	r.settings.Rotation = rotation
	r.settingsMu.Unlock()
	r.applyOrientation()
	return nil
}

// SetMirror sets horizontal mirroring.
func (r *Renderer) SetMirror(mirror bool) {
	r.settingsMu.Lock()
	r.settings.Mirror = mirror
	r.settingsMu.Unlock()
	r.applyOrientation()
}

// SetDisabled switches rendering between enabled and disabled.
func (r *Renderer) SetDisabled(disabled bool) {
	r.settingsMu.Lock()
	r.settings.Disabled = disabled
	r.settingsMu.Unlock()
	r.applyDisabledState()
}

// SetWidth constrains the rendered width. 0 leaves it open.
func (r *Renderer) SetWidth(width uint32) {
	r.settingsMu.Lock()
	r.settings.Width = width
	r.settingsMu.Unlock()
}

// SetHeight constrains the rendered height. 0 leaves it open.
func (r *Renderer) SetHeight(height uint32) {
	r.settingsMu.Lock()
	r.settings.Height = height
	r.settingsMu.Unlock()
}

// SetMaxFramerate caps the rendered framerate. 0 leaves it open.
func (r *Renderer) SetMaxFramerate(fps float64) error {
	if err := media.ValidateMaxFramerate(fps); err != nil {
		return err
	}
	r.settingsMu.Lock()
	r.settings.MaxFramerate = fps
	r.settingsMu.Unlock()
	return nil
}

// Caps describes what the renderer accepts from its source. Size and
// framerate appear only when constrained.
func (r *Renderer) Caps() *media.Caps {
	r.settingsMu.RLock()
	settings, source := r.settings, r.source
	r.settingsMu.RUnlock()

	if source == nil {
		return media.AnyCaps()
	}
	s := media.NewStructure(media.CapsMime(source.MediaType(), source.CodecType()))
	s.AnyFeatures = true
	if settings.Width > 0 {
		s.Set("width", int(settings.Width))
	}
	if settings.Height > 0 {
		s.Set("height", int(settings.Height))
	}
	if settings.MaxFramerate > 0 {
		s.Set("framerate", media.FractionFromFloat(settings.MaxFramerate))
	}
	return media.NewCaps(s)
}

// Close unregisters the renderer and releases its resolver and graph.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.teardownLocked()
	r.mu.Unlock()

	// Handlers already queued see closed and return without taking action.
	if unsubscribe != nil {
		unsubscribe()
	}
	if r.registry != nil && r.tag != "" {
		r.registry.Unregister(r.tag, r.id)
	}

	r.SetContextResolver(nil, nil)
	r.logger.Debug("Renderer closed")
}

func (r *Renderer) teardownLocked() {
	if r.graph == nil {
		return
	}
	if r.removeSync != nil {
		r.removeSync()
		r.removeSync = nil
	}
	r.graph.Release()
	r.logger.Debug("Render graph released", "graph", r.graph.Name)
	r.graph = nil
}

func (r *Renderer) rebuildLocked() error {
	settings, source := r.Settings(), r.Source()
	if source == nil {
		return nil
	}

	g, err := r.builder.Build(r.builder.Query().Capabilities(source), settings)
	if err != nil {
		r.bus.Publish(events.GraphRebuiltEvent{RendererID: r.id, Tag: r.tag, Error: err.Error()})
		return err
	}

	if r.handle != 0 {
		if ov, ok := engine.FindOverlay(g.Sink); ok {
			ov.SetWindowHandle(r.handle)
		} else {
			r.logger.Warn("Sink cannot take a window handle", "sink", g.Sink.Name())
		}
	}
	r.removeSync = g.Bus.AddSyncHandler(r.handleSyncMessage)
	r.graph = g

	for _, d := range g.Downgrades {
		r.bus.Publish(events.CapabilityDowngradeEvent{RendererID: r.id, Stage: d.Stage, Factory: d.Factory})
	}
	r.bus.Publish(events.GraphRebuiltEvent{RendererID: r.id, Tag: r.tag, Stages: g.Factories()})
	r.logger.Info("Render graph rebuilt", "graph", g.Name, "stages", g.Factories())
	return nil
}

// handleSyncMessage resolves context requests on the posting goroutine. A
// resolved request is dropped, anything else travels on to the engine bus.
func (r *Renderer) handleSyncMessage(msg engine.Message) engine.SyncReply {
	if msg.Type != engine.MessageNeedContext {
		return engine.Pass
	}

	value, ok := r.OnContextNeeded(msg.ContextType)
	if ok {
		if setter, isSetter := msg.Source.(engine.ContextSetter); isSetter {
			setter.SetContext(msg.ContextType, value)
		} else {
			ok = false
		}
	}
	r.bus.Publish(events.ContextRequestEvent{RendererID: r.id, ContextType: msg.ContextType, Resolved: ok})
	if !ok {
		r.logger.Debug("Context request passed on", "context_type", msg.ContextType)
		return engine.Pass
	}
	return engine.Drop
}

// applyOrientation and applyDisabledState read the settings under mu so
// concurrent setters apply in the order the settings last changed.
func (r *Renderer) applyOrientation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings, source := r.Settings(), r.Source()
	method := FlipMethod(settings.Rotation, settings.Mirror)
	if r.graph != nil && r.graph.Flip != nil {
		if err := r.graph.Flip.Set(propFlipMethod, method); err != nil {
			r.logger.Warn("Failed to set flip method", "error", err)
		}
		return
	}
	if source == nil || !source.SupportsOrientation() || source.Bin() == nil {
		return
	}
	element, ok := source.Bin().ByName(SourceOrientationElement)
	if !ok {
		r.logger.Warn("Source has no orientation element", "element", SourceOrientationElement)
		return
	}
	if err := element.Set(propSourceOrientation, method); err != nil {
		r.logger.Warn("Failed to set source orientation", "error", err)
	}
}

func (r *Renderer) applyDisabledState() {
	r.mu.Lock()
	defer r.mu.Unlock()
	settings, source := r.Settings(), r.Source()
	target := r.sourceBalance(source)
	if r.graph != nil && r.graph.Balance != nil {
		target = r.graph.Balance
	}
	if target == nil {
		r.logger.Debug("No color balance to apply disabled state to")
		return
	}
	if err := applyDisabled(target, settings.Disabled); err != nil {
		r.logger.Warn("Failed to apply disabled state", "error", err)
	}
}

func (r *Renderer) sourceBalance(source capability.Source) engine.ColorBalance {
	if source == nil || source.Bin() == nil {
		return nil
	}
	cb, _ := engine.FindColorBalance(source.Bin())
	return cb
}
