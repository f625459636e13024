package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/models"
)

const viewerID = 100

func msg(id, sender int, content string, at time.Time) models.Message {
	return models.Message{ID: id, ConversationID: 1, Sender: sender, Content: content, CreatedAt: at}
}

func newThread(t *testing.T, mock *mockThreadAPI, b *bus.Bus) *ThreadStore {
	t.Helper()
	s, err := NewThreadStore(ThreadStoreOpts{API: mock, Bus: b, ConversationID: 1, ViewerID: viewerID})
	if err != nil {
		t.Fatalf("new thread: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewThreadStore_Required(t *testing.T) {
	b := bus.New()
	if _, err := NewThreadStore(ThreadStoreOpts{Bus: b, ConversationID: 1}); err == nil {
		t.Error("expected error for nil api")
	}
	if _, err := NewThreadStore(ThreadStoreOpts{API: &mockThreadAPI{}, Bus: b}); err == nil {
		t.Error("expected error for missing conversation id")
	}
}

func TestThreadStore_MergeIsIdempotent(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := &mockThreadAPI{}
	b := bus.New()
	s := newThread(t, mock, b)

	mock.setPage(
		msg(1, 200, "one", t0),
		msg(2, viewerID, "two", t0.Add(time.Minute)),
		msg(3, 200, "three", t0.Add(2*time.Minute)),
	)
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// Overlapping fetch, out of order.
	mock.setPage(
		msg(4, 200, "four", t0.Add(3*time.Minute)),
		msg(2, viewerID, "two", t0.Add(time.Minute)),
		msg(3, 200, "three", t0.Add(2*time.Minute)),
	)
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	got := s.Messages()
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4 (deduped)", len(got))
	}
	for i, want := range []int{1, 2, 3, 4} {
		if got[i].ID != want {
			t.Errorf("position %d = id %d, want %d", i, got[i].ID, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].CreatedAt.Before(got[i-1].CreatedAt) {
			t.Errorf("messages not ascending by created_at at %d", i)
		}
	}
}

func TestThreadStore_FetchEmitsPreview(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := &mockThreadAPI{}
	b := bus.New()
	s := newThread(t, mock, b)

	var got bus.Update
	b.Subscribe(bus.ConversationUpdate, func(p any) { got = p.(bus.Update) })

	mock.setPage(msg(1, 200, "old", t0), msg(2, 200, "newest", t0.Add(time.Hour)))
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if got.ConversationID != 1 || got.LastMessage.Content != "newest" {
		t.Errorf("preview update = %+v", got)
	}
	if got.HasUnreadDelta {
		t.Error("fetch preview must not carry an unread delta; polling owns counts")
	}
}

func TestThreadStore_LaterArrivalsCarryUnreadDelta(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mock := &mockThreadAPI{}
	b := bus.New()
	s := newThread(t, mock, b)

	var got bus.Update
	b.Subscribe(bus.ConversationUpdate, func(p any) { got = p.(bus.Update) })

	// Initial load: history, not news.
	mock.setPage(msg(1, 200, "old", t0))
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.HasUnreadDelta {
		t.Errorf("initial load emitted a delta: %+v", got)
	}

	// The other participant replies while the thread is open.
	mock.setPage(
		msg(1, 200, "old", t0),
		msg(2, 200, "reply", t0.Add(time.Minute)),
		msg(3, 200, "and again", t0.Add(2*time.Minute)),
	)
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !got.HasUnreadDelta || got.UnreadDelta != 2 {
		t.Errorf("arrival update = %+v, want unread delta 2", got)
	}

	// The viewer's own messages echoed back are not arrivals.
	got = bus.Update{}
	mock.setPage(msg(4, viewerID, "mine", t0.Add(3*time.Minute)))
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.HasUnreadDelta {
		t.Errorf("own echoed message emitted a delta: %+v", got)
	}
}

func TestThreadStore_SendBlankIsNoop(t *testing.T) {
	mock := &mockThreadAPI{}
	s := newThread(t, mock, bus.New())

	if err := s.Send(context.Background(), "   \n"); err != nil {
		t.Fatalf("blank send should be a silent no-op, got %v", err)
	}
	if mock.sendCalls != 0 {
		t.Errorf("blank send issued %d network calls, want 0", mock.sendCalls)
	}
}

func TestThreadStore_SendBlockedRefusedWithoutNetwork(t *testing.T) {
	mock := &mockThreadAPI{}
	b := bus.New()
	s, err := NewThreadStore(ThreadStoreOpts{API: mock, Bus: b, ConversationID: 1, ViewerID: viewerID, Blocked: true})
	if err != nil {
		t.Fatalf("new thread: %v", err)
	}

	err = s.Send(context.Background(), "hello")
	if !errors.Is(err, ErrConversationBlocked) {
		t.Errorf("err = %v, want ErrConversationBlocked", err)
	}
	if mock.sendCalls != 0 {
		t.Errorf("blocked send issued %d network calls, want 0", mock.sendCalls)
	}
}

func TestThreadStore_SendWhileInFlightReturnsBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mock := &mockThreadAPI{sendResult: msg(1, viewerID, "first", time.Now())}
	mock.sendFn = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	s := newThread(t, mock, bus.New())

	done := make(chan error, 1)
	go func() { done <- s.Send(context.Background(), "first") }()
	<-entered

	// The overlapping send is refused, not silently swallowed.
	if err := s.Send(context.Background(), "second"); !errors.Is(err, ErrSendInFlight) {
		t.Errorf("overlapping send = %v, want ErrSendInFlight", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}

	// Once the first completes, sending works again.
	if err := s.Send(context.Background(), "third"); err != nil {
		t.Errorf("send after completion: %v", err)
	}
}

func TestThreadStore_SendNeverSelfCounts(t *testing.T) {
	t0 := time.Now()
	mock := &mockThreadAPI{sendResult: msg(9, viewerID, "hello", t0)}
	b := bus.New()
	s := newThread(t, mock, b)

	var got bus.Update
	b.Subscribe(bus.ConversationUpdate, func(p any) { got = p.(bus.Update) })

	if err := s.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if !got.HasUnreadDelta || got.UnreadDelta != 0 {
		t.Errorf("self-send must emit unreadDelta=0, got %+v", got)
	}
	if len(s.Messages()) != 1 {
		t.Errorf("sent message should join history")
	}

	// The next poll returns the same message; dedupe by id prevents a double.
	mock.setPage(msg(9, viewerID, "hello", t0))
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(s.Messages()) != 1 {
		t.Errorf("poll after send must not double-append, got %d", len(s.Messages()))
	}
}

func TestThreadStore_PendingWhileUnpinned(t *testing.T) {
	t0 := time.Now()
	mock := &mockThreadAPI{}
	s := newThread(t, mock, bus.New())

	// Viewer scrolled up to read history.
	s.SetPinned(false)

	mock.setPage(msg(1, 200, "from other", t0))
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.Pinned() {
		t.Error("new message must not move the viewport while unpinned")
	}
	if s.PendingCount() != 1 {
		t.Errorf("pending = %d, want 1", s.PendingCount())
	}

	// Another message from the other participant.
	mock.setPage(msg(1, 200, "from other", t0), msg(2, 200, "again", t0.Add(time.Second)))
	if err := s.Fetch(context.Background(), true); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if s.PendingCount() != 2 {
		t.Errorf("pending = %d, want 2", s.PendingCount())
	}

	// Returning to the bottom clears the badge.
	s.JumpToLatest()
	if !s.Pinned() || s.PendingCount() != 0 {
		t.Errorf("jump to latest should pin and reset, pinned=%v pending=%d", s.Pinned(), s.PendingCount())
	}
}

func TestThreadStore_SelfMessagesNeverPending(t *testing.T) {
	t0 := time.Now()
	mock := &mockThreadAPI{sendResult: msg(5, viewerID, "mine", t0)}
	s := newThread(t, mock, bus.New())

	s.SetPinned(false)
	if err := s.Send(context.Background(), "mine"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if s.PendingCount() != 0 {
		t.Errorf("own message counted as pending: %d", s.PendingCount())
	}
	if !s.Pinned() {
		t.Error("sending should snap the viewport to the newest message")
	}
}

func TestThreadStore_MarkReadFlipsLocalFlags(t *testing.T) {
	t0 := time.Now()
	mock := &mockThreadAPI{}
	s := newThread(t, mock, bus.New())
	mock.setPage(msg(1, 200, "a", t0), msg(2, 200, "b", t0.Add(time.Second)))
	if err := s.Fetch(context.Background(), false); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if err := s.MarkRead(context.Background()); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if mock.markReadCalls != 1 {
		t.Errorf("mark read calls = %d, want 1", mock.markReadCalls)
	}
	for _, m := range s.Messages() {
		if !m.IsRead || m.ReadAt == nil {
			t.Errorf("message %d not marked read locally", m.ID)
		}
	}
}

func TestThreadStore_SendUnblocksAfterStateChange(t *testing.T) {
	mock := &mockThreadAPI{sendResult: msg(1, viewerID, "hi", time.Now())}
	b := bus.New()
	s, err := NewThreadStore(ThreadStoreOpts{API: mock, Bus: b, ConversationID: 1, ViewerID: viewerID, Blocked: true})
	if err != nil {
		t.Fatalf("new thread: %v", err)
	}

	s.SetBlocked(false)
	if err := s.Send(context.Background(), "hi"); err != nil {
		t.Fatalf("send after unblock: %v", err)
	}
	if mock.sendCalls != 1 {
		t.Errorf("send calls = %d, want 1", mock.sendCalls)
	}
}
