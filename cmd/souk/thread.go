package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/store"
)

func newThreadCmd() *cobra.Command {
	var (
		configPath string
		send       string
		follow     bool
		keepUnread bool
		cached     bool
	)

	cmd := &cobra.Command{
		Use:   "thread <conversation-id>",
		Short: "Show one conversation's messages",
		Long:  "Shows the message history for one conversation and marks it read. Use --send to reply, --follow to keep polling for new messages, and --cached to read the local cache offline.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid conversation id %q", args[0])
			}
			if cached {
				if send != "" || follow {
					return fmt.Errorf("--cached cannot be combined with --send or --follow")
				}
				return runThreadCached(cmd.OutOrStdout(), configPath, id)
			}
			return runThread(cmd, configPath, id, send, follow, keepUnread)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().StringVar(&send, "send", "", "send this message to the conversation")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep polling and print new messages as they arrive")
	cmd.Flags().BoolVar(&keepUnread, "keep-unread", false, "do not mark the conversation read")
	cmd.Flags().BoolVar(&cached, "cached", false, "read from the local cache instead of the API")
	return cmd
}

func runThread(cmd *cobra.Command, configPath string, id int, send string, follow, keepUnread bool) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	conv, err := client.GetConversation(cmd.Context(), id)
	if err != nil {
		return err
	}

	b := bus.New()

	// ViewerID is left zero: the CLI renders the full tail, so the unpinned
	// pending count never applies here.
	s, err := store.NewThreadStore(store.ThreadStoreOpts{
		API:            client,
		Bus:            b,
		ConversationID: id,
		Blocked:        conv.IsBlocked,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Fetch(cmd.Context(), false); err != nil {
		return err
	}

	// Fetched history flows through to the cache so thread --cached can
	// render this conversation offline.
	mirror, err := cache.Open(cfg.Cache)
	if err != nil {
		log.Printf("thread: cache: %v", err)
	} else {
		defer mirror.Close()
	}
	mirrorMessages := func() {
		if mirror == nil {
			return
		}
		if err := mirror.UpsertMessages(s.Messages()); err != nil {
			log.Printf("thread: cache messages: %v", err)
		}
	}
	mirrorMessages()

	fmt.Fprintf(out, "%s — %s with %s\n\n", conv.Ad.Title, conv.Status(), conv.OtherUser.Name)
	msgs := s.Messages()
	for _, m := range msgs {
		printThreadMessage(out, conv, m)
	}
	printed := len(msgs)

	if !keepUnread && conv.UnreadCount > 0 {
		if err := s.MarkRead(cmd.Context()); err != nil {
			fmt.Fprintf(out, "mark read failed: %v\n", err)
		}
	}

	if send != "" {
		if err := s.Send(cmd.Context(), send); err != nil {
			return err
		}
		for _, m := range s.Messages()[printed:] {
			printThreadMessage(out, conv, m)
		}
		printed = len(s.Messages())
		mirrorMessages()
	}

	if !follow {
		return nil
	}

	// While following, the configured sinks keep alerting for rises in other
	// conversations; rises in this one are announced on the shared bus by the
	// thread poll, so the badge attributes them here and stays quiet.
	sink, err := buildSinks(cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	badge, err := store.NewBadge(store.BadgeOpts{API: client, Bus: b, Sink: sink})
	if err != nil {
		return err
	}
	defer badge.Close()

	badge.SetActiveConversation(id)
	defer badge.ClearActiveConversation()
	if !keepUnread {
		badge.MarkMessagesRead(id, conv.UnreadCount)
	}

	fmt.Fprintln(out, "\nFollowing... (Ctrl+C to stop)")
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	badgePoller := store.NewPoller(time.Duration(cfg.Poll.BadgeSec)*time.Second, badge.Refresh)
	defer badgePoller.Stop()
	go badgePoller.Run(ctx)

	poller := store.NewPoller(time.Duration(cfg.Poll.MessagesSec)*time.Second,
		func(ctx context.Context, background bool) error {
			if err := s.Fetch(ctx, background); err != nil {
				return err
			}
			msgs := s.Messages()
			for _, m := range msgs[printed:] {
				printThreadMessage(out, conv, m)
			}
			if len(msgs) > printed {
				printed = len(msgs)
				mirrorMessages()
			}
			return nil
		})
	defer poller.Stop()
	poller.Run(ctx)
	return nil
}

// runThreadCached renders one conversation entirely from the local cache,
// populated by earlier thread runs and the watch daemon.
func runThreadCached(out io.Writer, configPath string, id int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	convs, err := c.Conversations("")
	if err != nil {
		return err
	}
	var conv models.Conversation
	found := false
	for _, cc := range convs {
		if cc.ID == id {
			conv = cc
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("conversation %d is not in the cache", id)
	}

	msgs, err := c.Messages(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s — %s with %s\n\n", conv.Ad.Title, conv.Status(), conv.OtherUser.Name)
	for _, m := range msgs {
		printThreadMessage(out, conv, m)
	}
	return nil
}

func printThreadMessage(out io.Writer, conv models.Conversation, m models.Message) {
	who := m.SenderName
	if m.Sender != conv.OtherUser.ID {
		who = "you"
	}
	body := m.Content
	if m.Type == models.MessageImage && m.Image != "" {
		body = fmt.Sprintf("[image] %s", m.Image)
	}
	fmt.Fprintf(out, "%s  %-12s %s\n", m.CreatedAt.Local().Format("Jan 02 15:04"), who, body)
}
