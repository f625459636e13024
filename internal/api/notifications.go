package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/aveline/souk/internal/models"
)

// ListNotificationsParams filters the notification list.
type ListNotificationsParams struct {
	IsRead *bool  // filter by read state; nil means all
	Type   string // notification_type filter; empty means all
	Page   int    // 1-based; 0 means first page
}

// ListNotifications returns one page of the viewer's notifications.
func (c *Client) ListNotifications(ctx context.Context, params ListNotificationsParams) (Page[models.Notification], error) {
	q := url.Values{}
	if params.IsRead != nil {
		q.Set("is_read", strconv.FormatBool(*params.IsRead))
	}
	if params.Type != "" {
		q.Set("type", params.Type)
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	var page Page[models.Notification]
	if err := c.get(ctx, "/notifications", q, &page); err != nil {
		return Page[models.Notification]{}, err
	}
	return page, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int) error {
	return c.postJSON(ctx, fmt.Sprintf("/notifications/%d/mark_read", id), nil, nil)
}

// MarkAllNotificationsRead marks every notification read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.postJSON(ctx, "/notifications/mark_all_read", nil, nil)
}

// NotificationsUnread returns the count of unread notifications.
func (c *Client) NotificationsUnread(ctx context.Context) (int, error) {
	var payload struct {
		UnreadCount int `json:"unread_count"`
	}
	if err := c.get(ctx, "/notifications/unread", nil, &payload); err != nil {
		return 0, err
	}
	return payload.UnreadCount, nil
}

// ClearNotifications deletes every read notification server-side.
func (c *Client) ClearNotifications(ctx context.Context) error {
	return c.delete(ctx, "/notifications/clear")
}
