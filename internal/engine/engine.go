// Package engine defines the boundary to the media execution engine: stage
// instantiation by factory name, linking, composite stages and the message
// bus used for context requests.
//
// Memory is an in-process implementation used by tests and by backends that
// only need a graph description (see internal/ffmpeg).
package engine

import "errors"

var (
	ErrUnknownProperty = errors.New("unknown property")
	ErrReleased        = errors.New("stage released")
	ErrLinkRefused     = errors.New("link refused")
	ErrUnknownChannel  = errors.New("unknown color balance channel")
)

// Stage is one instantiated processing element.
type Stage interface {
	Name() string
	Factory() string
	Set(property string, value any) error
	Get(property string) (any, bool)
	// Properties returns a copy of every property explicitly set on the stage.
	Properties() map[string]any
	Release()
}

// BalanceChannel is one adjustable color channel with its reported range.
type BalanceChannel struct {
	Label string
	Min   int
	Max   int
}

// Midpoint is the neutral value of the channel.
func (c BalanceChannel) Midpoint() int {
	return (c.Min + c.Max) / 2
}

// ColorBalance is implemented by stages (and sources) exposing color channels.
type ColorBalance interface {
	BalanceChannels() []BalanceChannel
	SetBalance(label string, value int) error
	Balance(label string) (int, bool)
}

// Bin is a composite stage.
type Bin interface {
	Stage
	Children() []Stage
	ByName(name string) (Stage, bool)
}

// Overlay is implemented by sinks that render into a native window.
type Overlay interface {
	SetWindowHandle(handle uintptr)
	WindowHandle() uintptr
}

// ContextSetter is implemented by stages that accept an external device context.
type ContextSetter interface {
	SetContext(contextType string, value any)
	Context(contextType string) (any, bool)
}

// Engine instantiates and links stages.
type Engine interface {
	// Instantiate returns false when no implementation of factory is installed.
	Instantiate(factory, name string) (Stage, bool)
	Link(upstream, downstream Stage) error
	// Bus is the engine-wide bus that graph buses forward unhandled messages to.
	Bus() *Bus
	// Namer generates stage names unique within this engine.
	Namer() *Namer
}

// Walk visits s and, for bins, every nested child depth first.
func Walk(s Stage, fn func(Stage)) {
	fn(s)
	if bin, ok := s.(Bin); ok {
		for _, child := range bin.Children() {
			Walk(child, fn)
		}
	}
}

// FindColorBalance returns the first stage under s that exposes color channels.
func FindColorBalance(s Stage) (ColorBalance, bool) {
	var found ColorBalance
	Walk(s, func(st Stage) {
		if found != nil {
			return
		}
		if cb, ok := st.(ColorBalance); ok && len(cb.BalanceChannels()) > 0 {
			found = cb
		}
	})
	return found, found != nil
}

// FindOverlay returns the first stage under s that accepts a window handle.
func FindOverlay(s Stage) (Overlay, bool) {
	var found Overlay
	Walk(s, func(st Stage) {
		if found != nil {
			return
		}
		if ov, ok := st.(Overlay); ok {
			found = ov
		}
	})
	return found, found != nil
}
