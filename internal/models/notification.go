package models

import "time"

// Notification types.
const (
	NotifyNewMessage      = "new_message"
	NotifyNewConversation = "new_conversation"
	NotifyAdApproved      = "ad_approved"
	NotifyAdRejected      = "ad_rejected"
	NotifyAdExpired       = "ad_expired"
	NotifyAdExpiringSoon  = "ad_expiring_soon"
	NotifySystem          = "system"
)

// Notification is a cross-cutting event surfaced independent of any open
// conversation. Created server-side only; the client only ever flips IsRead.
type Notification struct {
	ID             int        `json:"id" gorm:"primaryKey"`
	Type           string     `json:"notification_type" gorm:"size:32;index"`
	Title          string     `json:"title" gorm:"size:256"`
	Message        string     `json:"message" gorm:"type:text"`
	ActionURL      string     `json:"action_url,omitempty" gorm:"size:512"`
	ConversationID *int       `json:"conversation,omitempty" gorm:"index"`
	AdID           *int       `json:"ad,omitempty"`
	IsRead         bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"index"`
}
