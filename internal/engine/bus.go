package engine

import (
	"slices"
	"sync"
)

// MessageType identifies bus messages the core reacts to.
type MessageType int

const (
	MessageNeedContext MessageType = iota + 1
	MessageHaveContext
	MessageError
)

func (t MessageType) String() string {
	switch t {
	case MessageNeedContext:
		return "need-context"
	case MessageHaveContext:
		return "have-context"
	case MessageError:
		return "error"
	default:
		return "unknown"
	}
}

// Message is delivered synchronously on the posting goroutine.
type Message struct {
	Type        MessageType
	Source      Stage
	ContextType string
	Err         error
}

// SyncReply is a sync handler's verdict on a message.
type SyncReply int

const (
	// Pass lets the message continue to later handlers and the parent bus.
	Pass SyncReply = iota
	// Drop stops propagation.
	Drop
)

// SyncHandler runs on the goroutine that posted the message.
type SyncHandler func(Message) SyncReply

// MaxUnhandled is how many unhandled messages a root bus keeps. Older ones
// are dropped first.
const MaxUnhandled = 64

// Bus delivers messages to sync handlers and forwards what they pass to the
// parent bus. The last MaxUnhandled messages that reach a root bus unhandled
// are kept until drained.
type Bus struct {
	parent *Bus

	mu        sync.Mutex
	handlers  map[uint64]SyncHandler
	order     []uint64
	nextID    uint64
	unhandled []Message
}

// NewBus creates a bus forwarding to parent, which may be nil.
func NewBus(parent *Bus) *Bus {
	return &Bus{parent: parent, handlers: make(map[uint64]SyncHandler)}
}

// AddSyncHandler installs h and returns a function that removes it.
func (b *Bus) AddSyncHandler(h SyncHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Post delivers msg and reports whether some handler dropped it.
func (b *Bus) Post(msg Message) bool {
	b.mu.Lock()
	handlers := make([]SyncHandler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.Unlock()

	for _, h := range handlers {
		if h(msg) == Drop {
			return true
		}
	}

	if b.parent != nil {
		return b.parent.Post(msg)
	}

	b.mu.Lock()
	if len(b.unhandled) == MaxUnhandled {
		b.unhandled = slices.Delete(b.unhandled, 0, 1)
	}
	b.unhandled = append(b.unhandled, msg)
	b.mu.Unlock()
	return false
}

// Drain returns and clears the messages that reached this root bus unhandled.
func (b *Bus) Drain() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.unhandled
	b.unhandled = nil
	return out
}
