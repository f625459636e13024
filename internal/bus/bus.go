// Package bus is the in-process publish/subscribe channel that propagates
// state deltas between otherwise-unconnected stores. Delivery is synchronous
// and best-effort: it is a latency optimization layered on top of polling,
// never the source of truth.
package bus

import (
	"log"
	"sync"
	"time"

	"github.com/aveline/souk/internal/models"
)

// Event names.
const (
	// ConversationUpdate carries an Update: one conversation's preview or
	// unread count changed and list views should merge it without a refetch.
	ConversationUpdate = "conversation:update"
	// ConversationsRefresh carries a Refresh: cached lists are possibly
	// stale and should refetch in the background now.
	ConversationsRefresh = "conversations:refresh"
)

// Update is the payload for ConversationUpdate events.
type Update struct {
	ConversationID int
	LastMessage    models.LastMessage
	LastMessageAt  *time.Time
	UnreadDelta    int
	HasUnreadDelta bool // distinguishes "delta of 0" from "no delta supplied"
}

// Refresh is the payload for ConversationsRefresh events.
type Refresh struct {
	Reason string
}

// Handler receives an event payload. Handlers run synchronously on the
// emitter's goroutine and must not block.
type Handler func(payload any)

// Bus is a process-wide broadcast channel. One instance is created at app
// start and shared by every store; it is never torn down.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]Handler
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string]map[int]Handler)}
}

// Subscribe registers a handler for an event and returns its unsubscribe
// function. A handler attached after an emit never sees that emit: there is
// no queuing and no replay.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[event][id] = h
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[event], id)
	}
}

// Emit delivers payload to every handler subscribed to event. Each handler
// invocation is individually guarded: a panicking handler is logged and must
// not prevent delivery to the others.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	hs := make([]Handler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		invoke(event, h, payload)
	}
}

func invoke(event string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("bus: handler for %s panicked: %v", event, r)
		}
	}()
	h(payload)
}
