// Package windows tracks native window handles by display tag. A renderer may
// register its tag before the window exists; the handle is announced to every
// subscriber as a WindowHandleEvent once it is set.
package windows

import (
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/smazurov/mediagraph/internal/events"
	"github.com/smazurov/mediagraph/internal/logging"
)

// Registry maps display tags to window handles. It is safe for concurrent use.
type Registry struct {
	bus    *events.Bus
	logger *slog.Logger

	mu        sync.RWMutex
	handles   map[string]uintptr
	renderers map[string]map[string]struct{}
}

// NewRegistry creates a registry announcing handle changes on bus.
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		bus:       bus,
		logger:    logging.GetLogger("windows"),
		handles:   make(map[string]uintptr),
		renderers: make(map[string]map[string]struct{}),
	}
}

// Register records that renderer id displays tag and returns the handle
// already set for the tag, if any.
func (r *Registry) Register(tag, id string) (uintptr, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.renderers[tag]
	if !ok {
		set = make(map[string]struct{})
		r.renderers[tag] = set
	}
	set[id] = struct{}{}

	handle, ok := r.handles[tag]
	r.logger.Debug("Renderer registered", "tag", tag, "renderer_id", id, "has_handle", ok)
	return handle, ok
}

// Unregister removes renderer id from tag. Unknown pairs are ignored.
func (r *Registry) Unregister(tag, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.renderers[tag]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(r.renderers, tag)
	}
	r.logger.Debug("Renderer unregistered", "tag", tag, "renderer_id", id)
}

// SetHandle stores handle for tag and announces it. A zero handle revokes.
func (r *Registry) SetHandle(tag string, handle uintptr) {
	r.mu.Lock()
	if handle == 0 {
		delete(r.handles, tag)
	} else {
		r.handles[tag] = handle
	}
	listeners := len(r.renderers[tag])
	r.mu.Unlock()

	r.logger.Info("Window handle changed", "tag", tag, "handle", handle, "renderers", listeners)
	r.bus.Publish(events.WindowHandleEvent{Tag: tag, Handle: handle})
}

// Revoke clears the handle for tag.
func (r *Registry) Revoke(tag string) {
	r.SetHandle(tag, 0)
}

// Handle returns the current handle for tag.
func (r *Registry) Handle(tag string) (uintptr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[tag]
	return h, ok
}

// Renderers lists the renderer ids registered for tag in sorted order.
func (r *Registry) Renderers(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.renderers[tag]))
}

// Tags lists every tag with a handle or a registered renderer.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{}, len(r.handles)+len(r.renderers))
	for tag := range r.handles {
		seen[tag] = struct{}{}
	}
	for tag := range r.renderers {
		seen[tag] = struct{}{}
	}
	return slices.Sorted(maps.Keys(seen))
}
