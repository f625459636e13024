package store

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/models"
)

// notificationAPI is the slice of the API client the notification store uses.
type notificationAPI interface {
	ListNotifications(ctx context.Context, params api.ListNotificationsParams) (api.Page[models.Notification], error)
	MarkNotificationRead(ctx context.Context, id int) error
	MarkAllNotificationsRead(ctx context.Context) error
	NotificationsUnread(ctx context.Context) (int, error)
	ClearNotifications(ctx context.Context) error
}

// NotificationStore holds the viewer's cross-cutting notifications and a
// derived unread count, polled independently of the conversation list.
type NotificationStore struct {
	api notificationAPI

	mu            sync.Mutex
	notifications []models.Notification
	unread        int
	closed        bool
}

// NotificationStoreOpts holds parameters for creating a NotificationStore.
type NotificationStoreOpts struct {
	API notificationAPI
}

// NewNotificationStore creates a NotificationStore.
func NewNotificationStore(opts NotificationStoreOpts) (*NotificationStore, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("store: notifications: api client is required")
	}
	return &NotificationStore{api: opts.API}, nil
}

// Fetch loads one page of notifications, optionally filtered.
func (s *NotificationStore) Fetch(ctx context.Context, params api.ListNotificationsParams) error {
	page, err := s.api.ListNotifications(ctx, params)
	if err != nil {
		return fmt.Errorf("store: notifications: fetch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.notifications = page.Results
	s.recountLocked()
	return nil
}

// MarkRead marks one notification read and flips its local flag.
func (s *NotificationStore) MarkRead(ctx context.Context, id int) error {
	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("store: notifications: mark read %d: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].IsRead = true
			break
		}
	}
	s.recountLocked()
	return nil
}

// MarkAllRead marks every notification read. The derived unread count drops
// to zero immediately, without waiting for a refetch.
func (s *NotificationStore) MarkAllRead(ctx context.Context) error {
	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		return fmt.Errorf("store: notifications: mark all read: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		s.notifications[i].IsRead = true
	}
	s.unread = 0
	return nil
}

// ClearAll deletes the read set server-side and empties the local list.
func (s *NotificationStore) ClearAll(ctx context.Context) error {
	if err := s.api.ClearNotifications(ctx); err != nil {
		return fmt.Errorf("store: notifications: clear: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = nil
	s.unread = 0
	return nil
}

// FetchUnreadCount refreshes the unread counter from the dedicated
// lightweight endpoint.
func (s *NotificationStore) FetchUnreadCount(ctx context.Context) (int, error) {
	n, err := s.api.NotificationsUnread(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: notifications: unread count: %w", err)
	}
	s.mu.Lock()
	if !s.closed {
		s.unread = n
	}
	s.mu.Unlock()
	return n, nil
}

// MarkConversationRead marks every unread notification that references the
// given conversation. Best-effort: each mark runs independently and a failed
// one is logged without aborting the others or being surfaced to the caller.
func (s *NotificationStore) MarkConversationRead(ctx context.Context, conversationID int) {
	unread := false
	page, err := s.api.ListNotifications(ctx, api.ListNotificationsParams{IsRead: &unread})
	if err != nil {
		log.Printf("store: notifications: list for conversation %d: %v", conversationID, err)
		return
	}

	var wg sync.WaitGroup
	for _, n := range page.Results {
		if n.ConversationID == nil || *n.ConversationID != conversationID {
			continue
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := s.api.MarkNotificationRead(ctx, id); err != nil {
				log.Printf("store: notifications: mark %d read: %v", id, err)
				return
			}
			s.mu.Lock()
			for i := range s.notifications {
				if s.notifications[i].ID == id {
					s.notifications[i].IsRead = true
					break
				}
			}
			s.recountLocked()
			s.mu.Unlock()
		}(n.ID)
	}
	wg.Wait()
}

// Notifications returns a copy of the loaded notifications.
func (s *NotificationStore) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// UnreadCount returns the derived unread counter.
func (s *NotificationStore) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Close drops late fetch results.
func (s *NotificationStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *NotificationStore) recountLocked() {
	n := 0
	for _, notif := range s.notifications {
		if !notif.IsRead {
			n++
		}
	}
	s.unread = n
}
