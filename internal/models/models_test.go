package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestLastMessage_UnmarshalString(t *testing.T) {
	var lm LastMessage
	if err := json.Unmarshal([]byte(`"see you tomorrow"`), &lm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lm.Content != "see you tomorrow" {
		t.Errorf("content = %q, want %q", lm.Content, "see you tomorrow")
	}
	if lm.SenderName != "" || lm.CreatedAt != nil {
		t.Errorf("string form should leave sender/created empty, got %+v", lm)
	}
}

func TestLastMessage_UnmarshalObject(t *testing.T) {
	var lm LastMessage
	raw := `{"content":"is it still available?","sender_name":"Mara","created_at":"2026-03-01T10:00:00Z"}`
	if err := json.Unmarshal([]byte(raw), &lm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lm.Content != "is it still available?" {
		t.Errorf("content = %q", lm.Content)
	}
	if lm.SenderName != "Mara" {
		t.Errorf("sender = %q, want Mara", lm.SenderName)
	}
	if lm.CreatedAt == nil || !lm.CreatedAt.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("created_at = %v", lm.CreatedAt)
	}
}

func TestLastMessage_UnmarshalNull(t *testing.T) {
	lm := LastMessage{Content: "stale"}
	if err := json.Unmarshal([]byte(`null`), &lm); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if lm.Content != "" {
		t.Errorf("null should reset, got %q", lm.Content)
	}
}

func TestMessage_BeforeOrdersByCreatedAtThenID(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a := Message{ID: 9, CreatedAt: t0}
	b := Message{ID: 3, CreatedAt: t0.Add(time.Second)}
	if !a.Before(b) {
		t.Error("earlier created_at should order first even with higher id")
	}
	c := Message{ID: 1, CreatedAt: t0}
	if !c.Before(a) || a.Before(c) {
		t.Error("equal created_at should fall back to id")
	}
}

func TestConversation_Status(t *testing.T) {
	tests := []struct {
		name string
		conv Conversation
		want string
	}{
		{"active", Conversation{IsActive: true}, StatusActive},
		{"archived", Conversation{IsActive: false}, StatusArchived},
		{"blocked wins", Conversation{IsActive: true, IsBlocked: true}, StatusBlocked},
	}
	for _, tt := range tests {
		if got := tt.conv.Status(); got != tt.want {
			t.Errorf("%s: status = %q, want %q", tt.name, got, tt.want)
		}
	}
}
