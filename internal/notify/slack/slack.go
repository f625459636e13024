// Package slack implements the notify Sink for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/aveline/souk/internal/notify"
)

// alertColor is the attachment sidebar color for alerts.
const alertColor = "#36a64f"

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Sink posts alerts to one Slack channel.
type Sink struct {
	client    slackClient
	channelID string
}

// SinkOpts holds parameters for creating a Slack Sink.
type SinkOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Sink and verifies the token.
func New(opts SinkOpts) (*Sink, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}

	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	if _, err := client.AuthTest(); err != nil {
		return nil, fmt.Errorf("slack: auth test: %w", err)
	}
	return &Sink{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts the alert as an attachment message.
func (s *Sink) Notify(ctx context.Context, alert notify.Alert) error {
	attachment := slackapi.Attachment{
		Title: alert.Title,
		Text:  alert.Body,
		Color: alertColor,
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// Close is a no-op; the web API client holds no connection.
func (s *Sink) Close() error { return nil }
