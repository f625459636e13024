package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aveline/souk/internal/models"
)

// ListConversationsParams filters the conversation list.
type ListConversationsParams struct {
	Status string // active, archived, blocked; empty means server default
	Page   int    // 1-based; 0 means first page
	AdID   int    // restrict to one ad; 0 means all
}

// ListConversations returns one page of conversations for the viewer.
func (c *Client) ListConversations(ctx context.Context, params ListConversationsParams) (Page[models.Conversation], error) {
	q := url.Values{}
	if params.Status != "" {
		q.Set("status", params.Status)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	if params.AdID > 0 {
		q.Set("ad", strconv.Itoa(params.AdID))
	}
	var page Page[models.Conversation]
	if err := c.get(ctx, "/conversations", q, &page); err != nil {
		return Page[models.Conversation]{}, err
	}
	return page, nil
}

// GetConversation loads a single conversation.
func (c *Client) GetConversation(ctx context.Context, id int) (models.Conversation, error) {
	var conv models.Conversation
	if err := c.get(ctx, fmt.Sprintf("/conversations/%d", id), nil, &conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// CreateConversation starts a new conversation on an ad, optionally with an
// opening message.
func (c *Client) CreateConversation(ctx context.Context, adID int, content string) (models.Conversation, error) {
	body := map[string]any{"ad": adID}
	if content != "" {
		body["message"] = content
	}
	var conv models.Conversation
	if err := c.postJSON(ctx, "/conversations", body, &conv); err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}

// ArchiveConversation moves a conversation to the archived bucket.
func (c *Client) ArchiveConversation(ctx context.Context, id int) error {
	return c.postJSON(ctx, fmt.Sprintf("/conversations/%d/archive", id), nil, nil)
}

// UnarchiveConversation returns an archived conversation to the active bucket.
func (c *Client) UnarchiveConversation(ctx context.Context, id int) error {
	return c.postJSON(ctx, fmt.Sprintf("/conversations/%d/unarchive", id), nil, nil)
}

// BlockResult reports the server-side scope of a block or unblock. Blocking
// one conversation may affect every conversation with the same other user;
// the returned count is authoritative and must not be second-guessed.
type BlockResult struct {
	BlockedCount    int    `json:"blocked_count"`
	BlockedUserName string `json:"blocked_user_name"`
}

// BlockConversation blocks the other participant.
func (c *Client) BlockConversation(ctx context.Context, id int) (BlockResult, error) {
	var res BlockResult
	if err := c.postJSON(ctx, fmt.Sprintf("/conversations/%d/block", id), nil, &res); err != nil {
		return BlockResult{}, err
	}
	return res, nil
}

// UnblockConversation lifts a block.
func (c *Client) UnblockConversation(ctx context.Context, id int) (BlockResult, error) {
	var res BlockResult
	if err := c.postJSON(ctx, fmt.Sprintf("/conversations/%d/unblock", id), nil, &res); err != nil {
		return BlockResult{}, err
	}
	return res, nil
}

// ConversationsUnread returns the authoritative total of unread messages
// across all of the viewer's conversations.
func (c *Client) ConversationsUnread(ctx context.Context) (int, error) {
	var payload struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.get(ctx, "/conversations/unread", nil, &payload); err != nil {
		return 0, err
	}
	return payload.UnreadCount, nil
}

// ConversationStats holds per-bucket conversation counts.
type ConversationStats struct {
	Active   int `json:"active"`
	Archived int `json:"archived"`
	Blocked  int `json:"blocked"`
	Unread   int `json:"unread_count"`
}

// GetConversationStats returns per-bucket conversation counts.
func (c *Client) GetConversationStats(ctx context.Context) (ConversationStats, error) {
	var stats ConversationStats
	if err := c.get(ctx, "/conversations/stats", nil, &stats); err != nil {
		return ConversationStats{}, err
	}
	return stats, nil
}
