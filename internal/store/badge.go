package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/notify"
)

// badgeAPI is the slice of the API client the badge aggregator uses.
type badgeAPI interface {
	ConversationsUnread(ctx context.Context) (int, error)
	NotificationsUnread(ctx context.Context) (int, error)
}

// Badge combines the authoritative message and notification unread totals
// into the counters shown in persistent UI, and turns rising deltas into
// alerts.
//
// The first refresh after construction only seeds the baseline: pre-existing
// unread items are not news, so no alert fires no matter how large the
// counts are. Only rises on subsequent cycles alert. Deltas attributed to
// the conversation the viewer currently has open raise the expected baseline
// instead of alerting; the viewer is already looking at it.
type Badge struct {
	api  badgeAPI
	bus  *bus.Bus
	sink notify.Sink

	mu            sync.Mutex
	messages      int
	notifications int
	expected      int // message baseline adjusted for suppressed/optimistic deltas
	active        int // open conversation id; 0 = none
	seeded        bool
	closed        bool
	unsub         func()
}

// BadgeOpts holds parameters for creating a Badge.
type BadgeOpts struct {
	API  badgeAPI
	Bus  *bus.Bus
	Sink notify.Sink // alert destination, typically a notify.Fanout; nil disables alerts
}

// NewBadge creates a Badge subscribed to conversation updates.
func NewBadge(opts BadgeOpts) (*Badge, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("store: badge: api client is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("store: badge: bus is required")
	}
	b := &Badge{api: opts.API, bus: opts.Bus, sink: opts.Sink}
	b.unsub = opts.Bus.Subscribe(bus.ConversationUpdate, b.onUpdate)
	return b, nil
}

// Refresh fetches both unread totals together. Satisfies FetchFunc so a
// Poller can drive it; background is irrelevant here, there is no loading UI.
func (b *Badge) Refresh(ctx context.Context, background bool) error {
	messages, err := b.api.ConversationsUnread(ctx)
	if err != nil {
		return fmt.Errorf("store: badge: message count: %w", err)
	}
	notifications, err := b.api.NotificationsUnread(ctx)
	if err != nil {
		return fmt.Errorf("store: badge: notification count: %w", err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	if !b.seeded {
		b.messages = messages
		b.notifications = notifications
		b.expected = messages
		b.seeded = true
		b.mu.Unlock()
		return nil
	}

	msgDelta := messages - b.expected
	notifDelta := notifications - b.notifications
	b.messages = messages
	b.notifications = notifications
	b.expected = messages
	b.mu.Unlock()

	if msgDelta > 0 {
		b.alert(ctx, notify.Alert{
			Title: "New messages",
			Body:  notify.Pluralize(msgDelta, "new message"),
			Count: msgDelta,
			Sound: true,
		})
	}
	if notifDelta > 0 {
		b.alert(ctx, notify.Alert{
			Title: "New notifications",
			Body:  notify.Pluralize(notifDelta, "new notification"),
			Count: notifDelta,
			Sound: true,
		})
	}
	return nil
}

// Counts returns the current unread message and notification totals.
func (b *Badge) Counts() (messages, notifications int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages, b.notifications
}

// SetActiveConversation records which conversation the viewer has open.
// Unread rises attributed to it are suppressed until cleared.
func (b *Badge) SetActiveConversation(conversationID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = conversationID
}

// ClearActiveConversation clears the open-conversation suppression.
func (b *Badge) ClearActiveConversation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = 0
}

// MarkMessagesRead optimistically subtracts a just-opened conversation's
// unread messages from the badge, independent of the next poll cycle.
// Idempotent with the poll: the next refresh replaces both counters.
func (b *Badge) MarkMessagesRead(conversationID, unread int) {
	if unread <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = clampZero(b.messages - unread)
	b.expected = clampZero(b.expected - unread)
}

// Close unsubscribes from the bus.
func (b *Badge) Close() {
	b.mu.Lock()
	b.closed = true
	unsub := b.unsub
	b.unsub = nil
	b.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// onUpdate folds bus-announced unread deltas into the baseline. A rise in
// the open conversation bumps both counters so the next poll sees nothing
// new; a fall (mark-read) lowers them ahead of the poll.
func (b *Badge) onUpdate(payload any) {
	u, ok := payload.(bus.Update)
	if !ok || !u.HasUnreadDelta || u.UnreadDelta == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || !b.seeded {
		return
	}
	switch {
	case u.UnreadDelta < 0:
		b.messages = clampZero(b.messages + u.UnreadDelta)
		b.expected = clampZero(b.expected + u.UnreadDelta)
	case u.ConversationID == b.active && b.active != 0:
		b.messages += u.UnreadDelta
		b.expected += u.UnreadDelta
	}
}

func (b *Badge) alert(ctx context.Context, alert notify.Alert) {
	if b.sink == nil {
		return
	}
	if err := b.sink.Notify(ctx, alert); err != nil {
		log.Printf("store: badge: alert: %v", err)
	}
}

func clampZero(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
