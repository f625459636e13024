package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/models"
)

// ErrConversationBlocked is returned when a send is refused client-side
// because the conversation is blocked. No network call is made.
var ErrConversationBlocked = errors.New("store: cannot send into a blocked conversation")

// ErrSendInFlight is returned when a send is attempted while a previous one
// has not completed. The caller keeps the content and may retry.
var ErrSendInFlight = errors.New("store: a send is already in flight")

// threadAPI is the slice of the API client the thread store uses.
type threadAPI interface {
	ListMessages(ctx context.Context, params api.ListMessagesParams) (api.Page[models.Message], error)
	SendMessage(ctx context.Context, conversationID int, content string) (models.Message, error)
	MarkAllMessagesRead(ctx context.Context, conversationID int) error
}

// ThreadStore holds the ordered message history for one open conversation.
// Messages are deduplicated by id and sorted ascending by created_at; the
// merged sequence contains each id exactly once regardless of fetch overlap
// or arrival order.
//
// The viewport contract replaces browser scroll semantics: while pinned the
// consumer renders the tail and new messages are considered seen; while
// unpinned, messages from the other participant accumulate in PendingCount
// until JumpToLatest (or SetPinned(true)) clears it.
type ThreadStore struct {
	api            threadAPI
	bus            *bus.Bus
	conversationID int
	viewerID       int

	mu       sync.Mutex
	messages []models.Message
	seen     map[int]bool
	blocked  bool
	pinned   bool
	pending  int
	primed   bool // first merge done; later arrivals are news, history is not
	sending  bool
	closed   bool
}

// ThreadStoreOpts holds parameters for creating a ThreadStore.
type ThreadStoreOpts struct {
	API            threadAPI
	Bus            *bus.Bus
	ConversationID int
	ViewerID       int  // current user's id; self-sent messages never count as unseen
	Blocked        bool // conversation's is_blocked at open time
}

// NewThreadStore creates a store for one open conversation.
func NewThreadStore(opts ThreadStoreOpts) (*ThreadStore, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("store: thread: api client is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("store: thread: bus is required")
	}
	if opts.ConversationID <= 0 {
		return nil, fmt.Errorf("store: thread: conversation id is required")
	}
	return &ThreadStore{
		api:            opts.API,
		bus:            opts.Bus,
		conversationID: opts.ConversationID,
		viewerID:       opts.ViewerID,
		blocked:        opts.Blocked,
		seen:           make(map[int]bool),
		pinned:         true,
	}, nil
}

// Fetch loads the message page for the conversation, merges it into local
// history, and republishes the newest message as the conversation preview so
// the list view updates without its own refetch. Unread messages from the
// other participant that arrive after the initial load ride along as a
// positive unread delta, which is what lets the badge attribute the rise to
// this conversation before the next poll sees it.
func (t *ThreadStore) Fetch(ctx context.Context, background bool) error {
	page, err := t.api.ListMessages(ctx, api.ListMessagesParams{ConversationID: t.conversationID})
	if err != nil {
		return fmt.Errorf("store: thread: fetch %d: %w", t.conversationID, err)
	}

	added, arrivals := t.merge(page.Results)
	if added == 0 {
		return nil
	}
	t.emitPreview(arrivals)
	return nil
}

// merge folds fetched messages into local history: dedupe by id, then sort
// ascending by created_at. Returns how many messages were new and how many of
// those were unread arrivals from the other participant. The initial merge
// loads history, so nothing in it counts as an arrival. Messages from the
// other participant arriving while unpinned bump the pending counter.
func (t *ThreadStore) merge(incoming []models.Message) (added, arrivals int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, 0
	}

	for _, m := range incoming {
		if t.seen[m.ID] {
			continue
		}
		t.seen[m.ID] = true
		t.messages = append(t.messages, m)
		added++
		if m.Sender != t.viewerID {
			if t.primed && !m.IsRead {
				arrivals++
			}
			if !t.pinned {
				t.pending++
			}
		}
	}
	if added > 0 {
		sort.SliceStable(t.messages, func(i, j int) bool {
			return t.messages[i].Before(t.messages[j])
		})
	}
	t.primed = true
	return added, arrivals
}

// emitPreview publishes the newest message as the conversation preview, with
// the count of unread arrivals as the delta. A plain preview refresh carries
// no delta; the poll stays authoritative for counts.
func (t *ThreadStore) emitPreview(arrivals int) {
	t.mu.Lock()
	if len(t.messages) == 0 {
		t.mu.Unlock()
		return
	}
	last := t.messages[len(t.messages)-1]
	t.mu.Unlock()

	at := last.CreatedAt
	t.bus.Emit(bus.ConversationUpdate, bus.Update{
		ConversationID: t.conversationID,
		LastMessage: models.LastMessage{
			Content:    last.Content,
			SenderName: last.SenderName,
			CreatedAt:  &at,
		},
		LastMessageAt:  &at,
		UnreadDelta:    arrivals,
		HasUnreadDelta: arrivals > 0,
	})
}

// Send posts a text message. Blank content is a no-op, not an error. Sending
// into a blocked conversation is refused before any network call, and a send
// while another is still in flight returns ErrSendInFlight. On success
// the confirmed message joins local history (the next poll's copy dedupes by
// id) and the list view is told the preview changed with an unread delta of
// zero: a self-sent message never increments the sender's own unread count.
func (t *ThreadStore) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	if t.blocked {
		t.mu.Unlock()
		return ErrConversationBlocked
	}
	if t.sending {
		t.mu.Unlock()
		return ErrSendInFlight
	}
	t.sending = true
	t.mu.Unlock()

	msg, err := t.api.SendMessage(ctx, t.conversationID, content)

	t.mu.Lock()
	t.sending = false
	t.mu.Unlock()
	if err != nil {
		return fmt.Errorf("store: thread: send: %w", err)
	}

	t.merge([]models.Message{msg})

	// Sending snaps the viewport to the newest message.
	t.JumpToLatest()

	at := msg.CreatedAt
	t.bus.Emit(bus.ConversationUpdate, bus.Update{
		ConversationID: t.conversationID,
		LastMessage: models.LastMessage{
			Content:    msg.Content,
			SenderName: msg.SenderName,
			CreatedAt:  &at,
		},
		LastMessageAt:  &at,
		UnreadDelta:    0,
		HasUnreadDelta: true,
	})
	return nil
}

// MarkRead marks the whole conversation read server-side and flips local
// read flags.
func (t *ThreadStore) MarkRead(ctx context.Context) error {
	if err := t.api.MarkAllMessagesRead(ctx, t.conversationID); err != nil {
		return fmt.Errorf("store: thread: mark read: %w", err)
	}
	now := time.Now()
	t.mu.Lock()
	for i := range t.messages {
		if !t.messages[i].IsRead {
			t.messages[i].IsRead = true
			t.messages[i].ReadAt = &now
		}
	}
	t.mu.Unlock()
	return nil
}

// Messages returns a copy of the merged, ordered history.
func (t *ThreadStore) Messages() []models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// ConversationID returns the owning conversation's id.
func (t *ThreadStore) ConversationID() int { return t.conversationID }

// SetBlocked records the conversation's block state; Send refuses while set.
func (t *ThreadStore) SetBlocked(blocked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blocked = blocked
}

// SetPinned records whether the consumer is rendering the tail of the
// thread. Re-pinning counts everything as seen.
func (t *ThreadStore) SetPinned(pinned bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pinned = pinned
	if pinned {
		t.pending = 0
	}
}

// Pinned reports whether the viewport is at the tail.
func (t *ThreadStore) Pinned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pinned
}

// PendingCount is the number of messages from the other participant that
// arrived while the viewer was reading history.
func (t *ThreadStore) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// JumpToLatest moves the viewport to the newest message and clears the
// pending counter, the "scroll to bottom" affordance.
func (t *ThreadStore) JumpToLatest() {
	t.SetPinned(true)
}

// Close drops late fetch results.
func (t *ThreadStore) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}
