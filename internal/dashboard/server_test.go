package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aveline/souk/internal/models"
)

// stubSource implements Source with fixed data.
type stubSource struct {
	messages      int
	notifications int
	conversations []models.Conversation
	notifs        []models.Notification
}

func (s *stubSource) Counts() (int, int)                   { return s.messages, s.notifications }
func (s *stubSource) Conversations() []models.Conversation { return s.conversations }
func (s *stubSource) Notifications() []models.Notification { return s.notifs }

func TestStart_NilSource(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	if err == nil {
		t.Fatal("expected error for nil source")
	}
	if !strings.Contains(err.Error(), "source is required") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "source is required")
	}
}

func TestEmbeddedTemplates(t *testing.T) {
	data, err := templatesFS.ReadFile("templates/index.html")
	if err != nil {
		t.Fatalf("index.html not embedded: %v", err)
	}
	if len(data) == 0 {
		t.Error("index.html is empty")
	}
	if _, err := parseTemplates(); err != nil {
		t.Errorf("parse templates: %v", err)
	}
}

func TestRouter_BadgeJSON(t *testing.T) {
	router, err := newRouter(&stubSource{messages: 4, notifications: 2})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/badge", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var payload struct {
		Messages      int `json:"messages"`
		Notifications int `json:"notifications"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Messages != 4 || payload.Notifications != 2 {
		t.Errorf("badge = %+v, want 4/2", payload)
	}
}

func TestRouter_ConversationsJSON(t *testing.T) {
	source := &stubSource{conversations: []models.Conversation{
		{ID: 1, Ad: models.Ad{Title: "bike"}, OtherUser: models.User{Name: "Mara"}, UnreadCount: 2},
	}}
	router, err := newRouter(source)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"unread_count":2`) {
		t.Errorf("body missing conversation data: %s", rec.Body.String())
	}
}

func TestRouter_IndexRendersCounts(t *testing.T) {
	router, err := newRouter(&stubSource{messages: 7, notifications: 1})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, ">7<") {
		t.Errorf("index does not render the message badge: %s", body)
	}
}

func TestRouter_SSESendsInitialBadge(t *testing.T) {
	router, err := newRouter(&stubSource{messages: 3, notifications: 5})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("content type = %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: badge") {
		t.Errorf("stream missing badge event: %q", body)
	}
	if !strings.Contains(body, `"messages":3`) || !strings.Contains(body, `"notifications":5`) {
		t.Errorf("stream missing initial counts: %q", body)
	}
}
