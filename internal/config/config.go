// Package config provides YAML-based configuration loading for souk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level souk configuration, loaded from souk.yaml.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Poll      PollConfig      `yaml:"poll"`
	Notify    NotifyConfig    `yaml:"notify"`
	Digest    DigestConfig    `yaml:"digest"`
	Cache     CacheConfig     `yaml:"cache"`
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// APIConfig holds connection settings for the marketplace REST API.
type APIConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`      // inline token (discouraged; use token_file)
	TokenEnv  string `yaml:"token_env"`  // environment variable holding the token
	TokenFile string `yaml:"token_file"` // file holding the token
}

// PollConfig holds refresh cadences in seconds.
type PollConfig struct {
	ConversationsSec int `yaml:"conversations_sec"`
	MessagesSec      int `yaml:"messages_sec"`
	BadgeSec         int `yaml:"badge_sec"`
}

// NotifyConfig selects alert sinks for new-item notifications.
type NotifyConfig struct {
	Command      string        `yaml:"command"`       // shell template, e.g. "notify-send 'Souk' '{{.Body}}'"
	SoundCommand string        `yaml:"sound_command"` // shell command that plays the alert sound
	Slack        SlackConfig   `yaml:"slack"`
	Discord      DiscordConfig `yaml:"discord"`
}

// SlackConfig enables the Slack sink when both fields are set.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig enables the Discord sink when both fields are set.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DigestConfig schedules the periodic unread digest.
type DigestConfig struct {
	Cron string `yaml:"cron"` // 5-field cron expression; empty disables the digest
}

// CacheConfig selects the local cache backend.
type CacheConfig struct {
	Driver string      `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string      `yaml:"path"`   // sqlite database file
	MySQL  MySQLConfig `yaml:"mysql"`
}

// MySQLConfig holds connection settings for a MySQL-backed cache.
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// DashboardConfig holds settings for the local web dashboard.
type DashboardConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.API.TokenEnv == "" {
		c.API.TokenEnv = "SOUK_TOKEN"
	}
	if c.Poll.ConversationsSec == 0 {
		c.Poll.ConversationsSec = 10
	}
	if c.Poll.MessagesSec == 0 {
		c.Poll.MessagesSec = 5
	}
	if c.Poll.BadgeSec == 0 {
		c.Poll.BadgeSec = 10
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "sqlite"
	}
	if c.Cache.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Cache.Path = filepath.Join(home, ".souk", "cache.db")
		}
	}
	if c.Cache.MySQL.Host == "" {
		c.Cache.MySQL.Host = "127.0.0.1"
	}
	if c.Cache.MySQL.Port == 0 {
		c.Cache.MySQL.Port = 3306
	}
	if c.Cache.MySQL.Database == "" {
		c.Cache.MySQL.Database = "souk"
	}
	if c.Cache.MySQL.User == "" {
		c.Cache.MySQL.User = "root"
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8640
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	} else if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errs = append(errs, "api.base_url must be an http(s) URL")
	}
	switch c.Cache.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported (sqlite, mysql)", c.Cache.Driver))
	}
	if c.Notify.Slack.BotToken != "" && c.Notify.Slack.ChannelID == "" {
		errs = append(errs, "notify.slack.channel_id is required when a bot token is set")
	}
	if c.Notify.Discord.BotToken != "" && c.Notify.Discord.ChannelID == "" {
		errs = append(errs, "notify.discord.channel_id is required when a bot token is set")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolveToken returns the API bearer token, checking the inline value, the
// environment variable, and the token file, in that order.
func (c *Config) ResolveToken() (string, error) {
	if c.API.Token != "" {
		return c.API.Token, nil
	}
	if c.API.TokenEnv != "" {
		if v := os.Getenv(c.API.TokenEnv); v != "" {
			return strings.TrimSpace(v), nil
		}
	}
	if c.API.TokenFile != "" {
		data, err := os.ReadFile(c.API.TokenFile)
		if err != nil {
			return "", fmt.Errorf("config: read token file %s: %w", c.API.TokenFile, err)
		}
		if tok := strings.TrimSpace(string(data)); tok != "" {
			return tok, nil
		}
	}
	return "", fmt.Errorf("config: no API token configured (set api.token, $%s, or api.token_file)", c.API.TokenEnv)
}
