package store

import (
	"context"
	"sync"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/notify"
)

// mockConversationAPI implements conversationAPI for testing.
type mockConversationAPI struct {
	mu            sync.Mutex
	page          api.Page[models.Conversation]
	listErr       error
	listCalls     int
	listFn        func() // runs inside ListConversations, before returning
	markReadCalls []int
	archiveCalls  []int
	blockCalls    []int
	blockResult   api.BlockResult
	err           error // returned by every mutation when set
}

func (m *mockConversationAPI) ListConversations(ctx context.Context, params api.ListConversationsParams) (api.Page[models.Conversation], error) {
	m.mu.Lock()
	m.listCalls++
	fn := m.listFn
	page, err := m.page, m.listErr
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return page, err
}

func (m *mockConversationAPI) setPage(convs ...models.Conversation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = api.Page[models.Conversation]{Count: len(convs), Results: convs}
}

func (m *mockConversationAPI) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

func (m *mockConversationAPI) MarkAllMessagesRead(ctx context.Context, conversationID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadCalls = append(m.markReadCalls, conversationID)
	return m.err
}

func (m *mockConversationAPI) ArchiveConversation(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archiveCalls = append(m.archiveCalls, id)
	return m.err
}

func (m *mockConversationAPI) UnarchiveConversation(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archiveCalls = append(m.archiveCalls, id)
	return m.err
}

func (m *mockConversationAPI) BlockConversation(ctx context.Context, id int) (api.BlockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls = append(m.blockCalls, id)
	return m.blockResult, m.err
}

func (m *mockConversationAPI) UnblockConversation(ctx context.Context, id int) (api.BlockResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls = append(m.blockCalls, id)
	return m.blockResult, m.err
}

// mockThreadAPI implements threadAPI for testing.
type mockThreadAPI struct {
	mu            sync.Mutex
	page          api.Page[models.Message]
	listErr       error
	listCalls     int
	sendResult    models.Message
	sendErr       error
	sendCalls     int
	sendFn        func() // runs inside SendMessage, before returning
	markReadCalls int
}

func (m *mockThreadAPI) ListMessages(ctx context.Context, params api.ListMessagesParams) (api.Page[models.Message], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return m.page, m.listErr
}

func (m *mockThreadAPI) SendMessage(ctx context.Context, conversationID int, content string) (models.Message, error) {
	m.mu.Lock()
	m.sendCalls++
	fn := m.sendFn
	msg, err := m.sendResult, m.sendErr
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return msg, err
}

func (m *mockThreadAPI) MarkAllMessagesRead(ctx context.Context, conversationID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markReadCalls++
	return nil
}

func (m *mockThreadAPI) setPage(msgs ...models.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.page = api.Page[models.Message]{Count: len(msgs), Results: msgs}
}

// mockNotificationAPI implements notificationAPI for testing.
type mockNotificationAPI struct {
	mu            sync.Mutex
	page          api.Page[models.Notification]
	listErr       error
	unread        int
	unreadErr     error
	markReadCalls []int
	markReadErrs  map[int]error
	markAllCalls  int
	clearCalls    int
}

func (m *mockNotificationAPI) ListNotifications(ctx context.Context, params api.ListNotificationsParams) (api.Page[models.Notification], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.page, m.listErr
}

func (m *mockNotificationAPI) MarkNotificationRead(ctx context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.markReadErrs[id]; err != nil {
		return err
	}
	m.markReadCalls = append(m.markReadCalls, id)
	return nil
}

func (m *mockNotificationAPI) MarkAllNotificationsRead(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markAllCalls++
	return nil
}

func (m *mockNotificationAPI) NotificationsUnread(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unread, m.unreadErr
}

func (m *mockNotificationAPI) ClearNotifications(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	return nil
}

func (m *mockNotificationAPI) marked() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.markReadCalls))
	copy(out, m.markReadCalls)
	return out
}

// mockBadgeAPI implements badgeAPI for testing.
type mockBadgeAPI struct {
	mu            sync.Mutex
	messages      int
	notifications int
	err           error
}

func (m *mockBadgeAPI) ConversationsUnread(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages, m.err
}

func (m *mockBadgeAPI) NotificationsUnread(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifications, m.err
}

func (m *mockBadgeAPI) set(messages, notifications int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = messages
	m.notifications = notifications
}

// mockSink records alerts for testing.
type mockSink struct {
	mu     sync.Mutex
	alerts []notify.Alert
}

func (m *mockSink) Notify(ctx context.Context, alert notify.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockSink) Close() error { return nil }

func (m *mockSink) recorded() []notify.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
