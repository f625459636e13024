// Package cache persists fetched conversations, messages, and notifications
// locally so inbox commands can render offline and the watch daemon survives
// restarts without refetching history.
package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
)

// Cache is a write-through mirror of server state keyed by server ids.
type Cache struct {
	db *gorm.DB
}

// Open connects to the configured backend and migrates the schema. The
// sqlite parent directory is created if missing.
func Open(cfg config.CacheConfig) (*Cache, error) {
	db, err := connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("cache: auto-migrate: %w", err)
	}
	return &Cache{db: db}, nil
}

func connect(cfg config.CacheConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	switch cfg.Driver {
	case "", "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("cache: create directory for %s: %w", cfg.Path, err)
		}
		db, err := gorm.Open(sqlite.Open(cfg.Path), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("cache: open sqlite %s: %w", cfg.Path, err)
		}
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(cfg.MySQL)), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("cache: connect to %s:%d/%s: %w",
				cfg.MySQL.Host, cfg.MySQL.Port, cfg.MySQL.Database, err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}

// DSN builds the MySQL DSN for the configured cache database.
func DSN(cfg config.MySQLConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)
}

func allModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	}
}

// UpsertConversations writes fetched conversations, replacing existing rows
// by id. The fetch is authoritative: every column updates.
func (c *Cache) UpsertConversations(convs []models.Conversation) error {
	if len(convs) == 0 {
		return nil
	}
	result := c.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&convs)
	if result.Error != nil {
		return fmt.Errorf("cache: upsert conversations: %w", result.Error)
	}
	return nil
}

// UpsertMessages writes fetched messages, replacing existing rows by id.
func (c *Cache) UpsertMessages(msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	result := c.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&msgs)
	if result.Error != nil {
		return fmt.Errorf("cache: upsert messages: %w", result.Error)
	}
	return nil
}

// UpsertNotifications writes fetched notifications, replacing existing rows
// by id.
func (c *Cache) UpsertNotifications(notifs []models.Notification) error {
	if len(notifs) == 0 {
		return nil
	}
	result := c.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&notifs)
	if result.Error != nil {
		return fmt.Errorf("cache: upsert notifications: %w", result.Error)
	}
	return nil
}

// Conversations loads cached conversations for one view, newest activity
// first. An empty status loads everything.
func (c *Cache) Conversations(status string) ([]models.Conversation, error) {
	var convs []models.Conversation
	q := c.db.Order("last_message_at DESC")
	switch status {
	case "":
	case models.StatusBlocked:
		q = q.Where("is_blocked = ?", true)
	case models.StatusArchived:
		q = q.Where("is_blocked = ? AND is_active = ?", false, false)
	case models.StatusActive:
		q = q.Where("is_blocked = ? AND is_active = ?", false, true)
	default:
		return nil, fmt.Errorf("cache: unknown status %q", status)
	}
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("cache: load conversations: %w", err)
	}
	return convs, nil
}

// Messages loads one conversation's cached messages, oldest first.
func (c *Cache) Messages(conversationID int) ([]models.Message, error) {
	var msgs []models.Message
	err := c.db.Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("cache: load messages for %d: %w", conversationID, err)
	}
	return msgs, nil
}

// Notifications loads cached notifications, newest first.
func (c *Cache) Notifications(unreadOnly bool) ([]models.Notification, error) {
	var notifs []models.Notification
	q := c.db.Order("created_at DESC")
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	if err := q.Find(&notifs).Error; err != nil {
		return nil, fmt.Errorf("cache: load notifications: %w", err)
	}
	return notifs, nil
}

// DeleteConversation removes a conversation and its messages, used when the
// server stops returning it (blocked by the other side, deleted ad).
func (c *Cache) DeleteConversation(conversationID int) error {
	if err := c.db.Delete(&models.Conversation{}, conversationID).Error; err != nil {
		return fmt.Errorf("cache: delete conversation %d: %w", conversationID, err)
	}
	if err := c.db.Where("conversation_id = ?", conversationID).Delete(&models.Message{}).Error; err != nil {
		return fmt.Errorf("cache: delete messages for %d: %w", conversationID, err)
	}
	return nil
}

// Reset drops every cached row, keeping the schema.
func (c *Cache) Reset() error {
	for _, m := range allModels() {
		if err := c.db.Where("1 = 1").Delete(m).Error; err != nil {
			return fmt.Errorf("cache: reset: %w", err)
		}
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("cache: close: %w", err)
	}
	return sqlDB.Close()
}
