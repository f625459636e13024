package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Conversation view states.
const (
	StatusActive   = "active"
	StatusArchived = "archived"
	StatusBlocked  = "blocked"
)

// User is the minimal participant projection the messaging endpoints embed.
type User struct {
	ID     int    `json:"id"`
	Name   string `json:"name" gorm:"size:128"`
	Avatar string `json:"avatar,omitempty" gorm:"size:512"`
}

// Ad is the listing a conversation is attached to.
type Ad struct {
	ID    int    `json:"id"`
	Title string `json:"title" gorm:"size:256"`
	Price string `json:"price,omitempty" gorm:"size:32"`
	Image string `json:"image,omitempty" gorm:"size:512"`
}

// Conversation is a buyer/seller thread about one ad.
type Conversation struct {
	ID            int         `json:"id" gorm:"primaryKey"`
	Ad            Ad          `json:"ad" gorm:"embedded;embeddedPrefix:ad_"`
	OtherUser     User        `json:"other_user" gorm:"embedded;embeddedPrefix:other_user_"`
	LastMessage   LastMessage `json:"last_message" gorm:"embedded;embeddedPrefix:last_message_"`
	LastMessageAt time.Time   `json:"last_message_at" gorm:"index"`
	UnreadCount   int         `json:"unread_count"`
	IsActive      bool        `json:"is_active" gorm:"default:true"`
	IsBlocked     bool        `json:"is_blocked"`
	BlockedBy     *int        `json:"blocked_by,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Status derives the view a conversation belongs to. Blocked wins over the
// active flag so a blocked thread never shows in the active list.
func (c Conversation) Status() string {
	switch {
	case c.IsBlocked:
		return StatusBlocked
	case !c.IsActive:
		return StatusArchived
	default:
		return StatusActive
	}
}

// LastMessage is a conversation's preview line. The server serializes it
// either as a bare string or as an object with sender and timestamp; both
// forms normalize into this struct.
type LastMessage struct {
	Content    string     `json:"content" gorm:"type:text"`
	SenderName string     `json:"sender_name,omitempty" gorm:"size:128"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

func (l *LastMessage) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = LastMessage{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = LastMessage{Content: s}
		return nil
	}
	type plain LastMessage
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = LastMessage(p)
	return nil
}
