package store

import (
	"context"
	"fmt"
	"log"
	"reflect"
	"sort"
	"sync"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/models"
)

// conversationAPI is the slice of the API client the conversation store uses.
type conversationAPI interface {
	ListConversations(ctx context.Context, params api.ListConversationsParams) (api.Page[models.Conversation], error)
	MarkAllMessagesRead(ctx context.Context, conversationID int) error
	ArchiveConversation(ctx context.Context, id int) error
	UnarchiveConversation(ctx context.Context, id int) error
	BlockConversation(ctx context.Context, id int) (api.BlockResult, error)
	UnblockConversation(ctx context.Context, id int) (api.BlockResult, error)
}

// ConversationStore holds the working set of conversations for one view
// (active, archived, or blocked). It owns its slice of state exclusively:
// updates arrive only through its own fetches and bus-driven merges.
type ConversationStore struct {
	api  conversationAPI
	bus  *bus.Bus
	view string

	mu            sync.Mutex
	conversations []models.Conversation
	loading       bool
	refreshing    bool
	generation    uint64
	closed        bool
	unsubs        []func()
}

// ConversationStoreOpts holds parameters for creating a ConversationStore.
type ConversationStoreOpts struct {
	API  conversationAPI
	Bus  *bus.Bus
	View string // models.StatusActive, StatusArchived, or StatusBlocked
}

// NewConversationStore creates a store subscribed to conversation updates
// and refresh signals. Callers must Close it when the view unmounts.
func NewConversationStore(opts ConversationStoreOpts) (*ConversationStore, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("store: conversations: api client is required")
	}
	if opts.Bus == nil {
		return nil, fmt.Errorf("store: conversations: bus is required")
	}
	view := opts.View
	if view == "" {
		view = models.StatusActive
	}
	s := &ConversationStore{api: opts.API, bus: opts.Bus, view: view}
	s.unsubs = append(s.unsubs,
		opts.Bus.Subscribe(bus.ConversationUpdate, s.onUpdate),
		opts.Bus.Subscribe(bus.ConversationsRefresh, s.onRefresh),
	)
	return s, nil
}

// Fetch loads the first page of conversations for this view. A background
// fetch never toggles the loading flag and never replaces state that is
// structurally identical, so frequent polling cannot cause flicker.
func (s *ConversationStore) Fetch(ctx context.Context, background bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	if background {
		s.refreshing = true
	} else {
		s.loading = true
	}
	s.mu.Unlock()

	page, err := s.api.ListConversations(ctx, api.ListConversationsParams{Status: s.view})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	s.refreshing = false
	if err != nil {
		return fmt.Errorf("store: conversations: fetch %s: %w", s.view, err)
	}
	if s.closed {
		// The view unmounted while the request was in flight; drop it.
		return nil
	}
	sortConversations(page.Results)
	if background && reflect.DeepEqual(page.Results, s.conversations) {
		return nil
	}
	s.conversations = page.Results
	s.generation++
	return nil
}

// MarkRead marks every message in a conversation read, then optimistically
// zeroes its local unread count. Safe because the zeroing is idempotent and
// self-corrects on the next poll.
func (s *ConversationStore) MarkRead(ctx context.Context, conversationID int) error {
	if err := s.api.MarkAllMessagesRead(ctx, conversationID); err != nil {
		return fmt.Errorf("store: conversations: mark read %d: %w", conversationID, err)
	}

	var cleared int
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			cleared = s.conversations[i].UnreadCount
			s.conversations[i].UnreadCount = 0
			s.generation++
			break
		}
	}
	s.mu.Unlock()

	if cleared > 0 {
		s.bus.Emit(bus.ConversationUpdate, bus.Update{
			ConversationID: conversationID,
			UnreadDelta:    -cleared,
			HasUnreadDelta: true,
		})
	}
	return nil
}

// Archive moves a conversation to the archived bucket and removes it from
// this view immediately.
func (s *ConversationStore) Archive(ctx context.Context, conversationID int) error {
	if err := s.api.ArchiveConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("store: conversations: archive %d: %w", conversationID, err)
	}
	s.removeAndAnnounce(conversationID, "archived")
	return nil
}

// Unarchive returns a conversation to the active bucket and removes it from
// this view immediately.
func (s *ConversationStore) Unarchive(ctx context.Context, conversationID int) error {
	if err := s.api.UnarchiveConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("store: conversations: unarchive %d: %w", conversationID, err)
	}
	s.removeAndAnnounce(conversationID, "unarchived")
	return nil
}

// Block blocks the other participant. The server decides scope: every
// conversation with that user may be affected, so the result carries the
// authoritative count for the caller to surface.
func (s *ConversationStore) Block(ctx context.Context, conversationID int) (api.BlockResult, error) {
	res, err := s.api.BlockConversation(ctx, conversationID)
	if err != nil {
		return api.BlockResult{}, fmt.Errorf("store: conversations: block %d: %w", conversationID, err)
	}
	s.removeAndAnnounce(conversationID, "blocked")
	return res, nil
}

// Unblock lifts a block and removes the conversation from this view.
func (s *ConversationStore) Unblock(ctx context.Context, conversationID int) (api.BlockResult, error) {
	res, err := s.api.UnblockConversation(ctx, conversationID)
	if err != nil {
		return api.BlockResult{}, fmt.Errorf("store: conversations: unblock %d: %w", conversationID, err)
	}
	s.removeAndAnnounce(conversationID, "unblocked")
	return res, nil
}

// removeAndAnnounce drops a conversation from the in-memory list (it belongs
// to a different bucket now) and tells every other view to refetch.
func (s *ConversationStore) removeAndAnnounce(conversationID int, reason string) {
	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			s.generation++
			break
		}
	}
	s.mu.Unlock()
	s.bus.Emit(bus.ConversationsRefresh, bus.Refresh{Reason: reason})
}

// Conversations returns a copy of the current view's conversations.
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// UnreadCount is the sum of unread counts across the loaded page. This is a
// page-local approximation; the badge aggregator uses the dedicated unread
// endpoint for global totals.
func (s *ConversationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// Loading reports whether a foreground fetch is in flight.
func (s *ConversationStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Generation increments every time the visible state is replaced. A
// background fetch returning identical data leaves it unchanged.
func (s *ConversationStore) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Group is one display entry: all conversations sharing the same other user,
// expandable to the individual per-ad conversations. Grouping is purely a
// view concern derived from other_user identity, not a server concept.
type Group struct {
	OtherUser     models.User
	Conversations []models.Conversation
}

// UnreadCount sums unread messages across the group.
func (g Group) UnreadCount() int {
	total := 0
	for _, c := range g.Conversations {
		total += c.UnreadCount
	}
	return total
}

// Grouped returns the conversations grouped by other user, preserving the
// list order of each user's first appearance.
func (s *ConversationStore) Grouped() []Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	index := make(map[int]int)
	var groups []Group
	for _, c := range s.conversations {
		if i, ok := index[c.OtherUser.ID]; ok {
			groups[i].Conversations = append(groups[i].Conversations, c)
			continue
		}
		index[c.OtherUser.ID] = len(groups)
		groups = append(groups, Group{OtherUser: c.OtherUser, Conversations: []models.Conversation{c}})
	}
	return groups
}

// Close unsubscribes from the bus and drops late fetch results.
func (s *ConversationStore) Close() {
	s.mu.Lock()
	s.closed = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// onUpdate merges a preview/unread delta into the matching conversation,
// leaving the others untouched.
func (s *ConversationStore) onUpdate(payload any) {
	u, ok := payload.(bus.Update)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for i := range s.conversations {
		c := &s.conversations[i]
		if c.ID != u.ConversationID {
			continue
		}
		if u.LastMessage.Content != "" {
			c.LastMessage = u.LastMessage
		}
		if u.LastMessageAt != nil {
			c.LastMessageAt = *u.LastMessageAt
		}
		if u.HasUnreadDelta {
			c.UnreadCount += u.UnreadDelta
			if c.UnreadCount < 0 {
				c.UnreadCount = 0
			}
		}
		sortConversations(s.conversations)
		s.generation++
		return
	}
}

// onRefresh treats the cached list as possibly stale and refetches in the
// background. The fetch runs on its own goroutine so the bus emitter is
// never blocked on a network round trip.
func (s *ConversationStore) onRefresh(payload any) {
	go func() {
		if err := s.Fetch(context.Background(), true); err != nil {
			log.Printf("store: conversations: refresh: %v", err)
		}
	}()
}

// sortConversations orders newest activity first, the list display order.
func sortConversations(convs []models.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastMessageAt.After(convs[j].LastMessageAt)
	})
}
