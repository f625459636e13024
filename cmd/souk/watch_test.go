package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/notify"
)

func TestBuildSinks_EmptyConfigIsSafe(t *testing.T) {
	sink, err := buildSinks(&config.Config{})
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	defer sink.Close()

	// Empty fanout delivers nowhere but must not fail.
	if err := sink.Notify(context.Background(), notify.Alert{Title: "x"}); err != nil {
		t.Errorf("notify on empty fanout: %v", err)
	}
}

func TestPruneStaleConversations(t *testing.T) {
	c, err := cache.Open(config.CacheConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "cache.db")})
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer c.Close()

	err = c.UpsertConversations([]models.Conversation{
		{ID: 1, IsActive: true},
		{ID: 2, IsActive: true},
	})
	if err != nil {
		t.Fatalf("seed conversations: %v", err)
	}
	if err := c.UpsertMessages([]models.Message{{ID: 10, ConversationID: 2, Content: "bye"}}); err != nil {
		t.Fatalf("seed messages: %v", err)
	}

	// The server stopped returning conversation 2.
	live := []models.Conversation{{ID: 1, IsActive: true}}
	if err := pruneStaleConversations(c, live); err != nil {
		t.Fatalf("prune: %v", err)
	}

	got, err := c.Conversations(models.StatusActive)
	if err != nil {
		t.Fatalf("load conversations: %v", err)
	}
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("cached conversations after prune = %+v, want only id 1", got)
	}
	msgs, err := c.Messages(2)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("pruned conversation kept %d messages", len(msgs))
	}
}

func TestBuildSinks_CommandSink(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Command = "notify-send '{{.Body}}'"
	cfg.Notify.SoundCommand = "paplay ding.oga"

	sink, err := buildSinks(cfg)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	sink.Close()
}
