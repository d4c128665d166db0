package events

import "github.com/kelindar/event"

// SubscribeToChannel forwards events of type T into ch without blocking.
// Events are dropped while ch is full. Used by the SSE endpoint, which
// selects over a channel instead of taking callbacks.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
