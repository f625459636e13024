package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/notify"
	"github.com/aveline/souk/internal/notify/discord"
	"github.com/aveline/souk/internal/notify/slack"
	"github.com/aveline/souk/internal/store"
)

func newWatchCmd() *cobra.Command {
	var (
		configPath string
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch for new messages and notifications",
		Long:  "Polls the marketplace for unread changes and delivers alerts to the configured sinks: desktop command, sound, Slack, Discord. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath, noCache)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "skip the local cache write-through")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string, noCache bool) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	sink, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	b := bus.New()

	convs, err := store.NewConversationStore(store.ConversationStoreOpts{
		API:  client,
		Bus:  b,
		View: models.StatusActive,
	})
	if err != nil {
		return err
	}
	defer convs.Close()

	badge, err := store.NewBadge(store.BadgeOpts{API: client, Bus: b, Sink: sink})
	if err != nil {
		return err
	}
	defer badge.Close()

	var mirror *cache.Cache
	if !noCache {
		mirror, err = cache.Open(cfg.Cache)
		if err != nil {
			return err
		}
		defer mirror.Close()
	}

	notifs, err := store.NewNotificationStore(store.NotificationStoreOpts{API: client})
	if err != nil {
		return err
	}
	defer notifs.Close()

	// Fetches flow through to the cache so inbox/bell/thread --cached and
	// the next daemon start have warm data. Conversations the server stopped
	// returning are pruned so the cached view does not hold blocked or
	// deleted threads forever.
	convFetch := func(ctx context.Context, background bool) error {
		if err := convs.Fetch(ctx, background); err != nil {
			return err
		}
		if mirror != nil {
			live := convs.Conversations()
			if err := mirror.UpsertConversations(live); err != nil {
				log.Printf("watch: cache conversations: %v", err)
			}
			if err := pruneStaleConversations(mirror, live); err != nil {
				log.Printf("watch: cache prune: %v", err)
			}
		}
		return nil
	}
	notifFetch := func(ctx context.Context, background bool) error {
		if err := notifs.Fetch(ctx, api.ListNotificationsParams{}); err != nil {
			return err
		}
		if mirror != nil {
			if err := mirror.UpsertNotifications(notifs.Notifications()); err != nil {
				log.Printf("watch: cache notifications: %v", err)
			}
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	convPoller := store.NewPoller(time.Duration(cfg.Poll.ConversationsSec)*time.Second, convFetch)
	badgePoller := store.NewPoller(time.Duration(cfg.Poll.BadgeSec)*time.Second, badge.Refresh)
	notifPoller := store.NewPoller(time.Duration(cfg.Poll.ConversationsSec)*time.Second, notifFetch)
	defer convPoller.Stop()
	defer badgePoller.Stop()
	defer notifPoller.Stop()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); convPoller.Run(ctx) }()
	go func() { defer wg.Done(); badgePoller.Run(ctx) }()
	go func() { defer wg.Done(); notifPoller.Run(ctx) }()

	if cfg.Digest.Cron != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runDigest(ctx, cfg.Digest.Cron, convs, badge, sink)
		}()
	}

	fmt.Fprintln(out, "Watching for new messages... (Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(out, "\nShutting down...")
	wg.Wait()
	return nil
}

// pruneStaleConversations deletes cached active conversations the server no
// longer returns, blocked by the other side or removed with their ad.
func pruneStaleConversations(mirror *cache.Cache, live []models.Conversation) error {
	cached, err := mirror.Conversations(models.StatusActive)
	if err != nil {
		return err
	}
	keep := make(map[int]bool, len(live))
	for _, c := range live {
		keep[c.ID] = true
	}
	for _, c := range cached {
		if keep[c.ID] {
			continue
		}
		if err := mirror.DeleteConversation(c.ID); err != nil {
			return err
		}
	}
	return nil
}

// buildSinks assembles the alert fanout from configuration. An empty config
// yields an empty fanout, which delivers nowhere but is safe to use.
func buildSinks(cfg *config.Config) (*notify.Fanout, error) {
	var sinks []notify.Sink

	if cfg.Notify.Command != "" || cfg.Notify.SoundCommand != "" {
		cs, err := notify.NewCommandSink(notify.CommandSinkOpts{
			Command: cfg.Notify.Command,
			Sound:   cfg.Notify.SoundCommand,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, cs)
	}
	if cfg.Notify.Slack.BotToken != "" {
		ss, err := slack.New(slack.SinkOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ss)
	}
	if cfg.Notify.Discord.BotToken != "" {
		ds, err := discord.New(discord.SinkOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, ds)
	}
	return notify.NewFanout(sinks...), nil
}

// runDigest delivers the periodic unread summary on the configured cron
// schedule. A cycle with nothing unread is skipped.
func runDigest(ctx context.Context, cronExpr string, convs *store.ConversationStore, badge *store.Badge, sink notify.Sink) {
	for {
		wait := notify.NextCronDuration(cronExpr)
		if wait <= 0 {
			log.Printf("watch: digest: invalid cron %q, digest disabled", cronExpr)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		withUnread := 0
		for _, c := range convs.Conversations() {
			if c.UnreadCount > 0 {
				withUnread++
			}
		}
		messages, notifications := badge.Counts()
		alert := notify.BuildDigest(notify.DigestStats{
			Conversations:       withUnread,
			UnreadMessages:      messages,
			UnreadNotifications: notifications,
		})
		if alert == nil {
			continue
		}
		if err := sink.Notify(ctx, *alert); err != nil {
			log.Printf("watch: digest: %v", err)
		}
	}
}
