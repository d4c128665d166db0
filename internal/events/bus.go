package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Delivery is asynchronous.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Usage: bus.Publish(WindowHandleEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case WindowHandleEvent:
		event.Publish(b.dispatcher, e)
	case GraphRebuiltEvent:
		event.Publish(b.dispatcher, e)
	case CapabilityDowngradeEvent:
		event.Publish(b.dispatcher, e)
	case ContextRequestEvent:
		event.Publish(b.dispatcher, e)
	case EncoderSelectedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderUnavailableEvent:
		event.Publish(b.dispatcher, e)
	case KeyframeRequestEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type of its parameter and
// returns an unsubscribe function. Unknown handler types get a no-op.
// Usage: unsub := bus.Subscribe(func(e WindowHandleEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(WindowHandleEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(GraphRebuiltEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(CapabilityDowngradeEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ContextRequestEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderSelectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderUnavailableEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(KeyframeRequestEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
