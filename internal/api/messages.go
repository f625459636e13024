package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/aveline/souk/internal/models"
)

// ListMessagesParams filters the message list.
type ListMessagesParams struct {
	ConversationID int
	Type           string // text, image, system; empty means all
	Unread         *bool  // filter by read state; nil means all
	Page           int    // 1-based; 0 means first page
}

// ListMessages returns one page of messages, oldest first as served. Callers
// must not rely on server order; stores re-sort by created_at after merge.
func (c *Client) ListMessages(ctx context.Context, params ListMessagesParams) (Page[models.Message], error) {
	q := url.Values{}
	if params.ConversationID > 0 {
		q.Set("conversation_id", strconv.Itoa(params.ConversationID))
	}
	if params.Type != "" {
		q.Set("type", params.Type)
	}
	if params.Unread != nil {
		q.Set("unread", strconv.FormatBool(*params.Unread))
	}
	if params.Page > 0 {
		q.Set("page", strconv.Itoa(params.Page))
	}
	var page Page[models.Message]
	if err := c.get(ctx, "/messages", q, &page); err != nil {
		return Page[models.Message]{}, err
	}
	return page, nil
}

// SendMessage posts a text message and returns the server-confirmed message.
func (c *Client) SendMessage(ctx context.Context, conversationID int, content string) (models.Message, error) {
	body := map[string]any{
		"conversation_id": conversationID,
		"message_type":    models.MessageText,
		"content":         content,
	}
	var msg models.Message
	if err := c.postJSON(ctx, "/messages", body, &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// SendImageMessage posts an image message as a multipart upload.
func (c *Client) SendImageMessage(ctx context.Context, conversationID int, filename string, image io.Reader) (models.Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("conversation_id", strconv.Itoa(conversationID)); err != nil {
		return models.Message{}, fmt.Errorf("api: build upload: %w", err)
	}
	if err := w.WriteField("message_type", models.MessageImage); err != nil {
		return models.Message{}, fmt.Errorf("api: build upload: %w", err)
	}
	part, err := w.CreateFormFile("image", filename)
	if err != nil {
		return models.Message{}, fmt.Errorf("api: build upload: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return models.Message{}, fmt.Errorf("api: read image: %w", err)
	}
	if err := w.Close(); err != nil {
		return models.Message{}, fmt.Errorf("api: build upload: %w", err)
	}

	var msg models.Message
	if err := c.do(ctx, "POST", "/messages", nil, &buf, w.FormDataContentType(), &msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// MarkMessageRead marks one message read.
func (c *Client) MarkMessageRead(ctx context.Context, id int) error {
	return c.postJSON(ctx, fmt.Sprintf("/messages/%d/mark_read", id), nil, nil)
}

// MarkAllMessagesRead marks every message in a conversation read.
func (c *Client) MarkAllMessagesRead(ctx context.Context, conversationID int) error {
	body := map[string]any{"conversation_id": conversationID}
	return c.postJSON(ctx, "/messages/mark_all_read", body, nil)
}
