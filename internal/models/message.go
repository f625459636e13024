// Package models defines the marketplace messaging domain types. The same
// structs decode the REST API's JSON and persist to the local cache via GORM.
package models

import "time"

// Message types.
const (
	MessageText   = "text"
	MessageImage  = "image"
	MessageSystem = "system"
)

// Message is a single directed communication within one conversation.
// Ordering key is CreatedAt, not ID: ids are not guaranteed to be assigned
// in creation order under concurrent senders.
type Message struct {
	ID             int        `json:"id" gorm:"primaryKey"`
	ConversationID int        `json:"conversation" gorm:"index"`
	Sender         int        `json:"sender"`
	SenderName     string     `json:"sender_name" gorm:"size:128"`
	Type           string     `json:"message_type" gorm:"size:16;default:text"`
	Content        string     `json:"content" gorm:"type:text"`
	Image          string     `json:"image,omitempty" gorm:"size:512"`
	IsRead         bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}

// Before reports whether m orders strictly before other in a thread.
// Ties on CreatedAt fall back to ID so the order is total and stable.
func (m Message) Before(other Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
