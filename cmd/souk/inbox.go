package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/store"
)

func newInboxCmd() *cobra.Command {
	var (
		configPath string
		status     string
		group      bool
		cached     bool
	)

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List conversations",
		Long:  "Lists your marketplace conversations with unread counts and last-message previews. Use --status to switch between the active, archived, and blocked views.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInbox(cmd, configPath, status, group, cached)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().StringVarP(&status, "status", "s", models.StatusActive, "view to list (active, archived, blocked)")
	cmd.Flags().BoolVarP(&group, "group", "g", false, "group conversations by the other participant")
	cmd.Flags().BoolVar(&cached, "cached", false, "read from the local cache instead of the API")
	return cmd
}

func runInbox(cmd *cobra.Command, configPath, status string, group, cached bool) error {
	out := cmd.OutOrStdout()

	if cached {
		return runInboxCached(out, configPath, status)
	}

	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}

	s, err := store.NewConversationStore(store.ConversationStoreOpts{
		API:  client,
		Bus:  bus.New(),
		View: status,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Fetch(cmd.Context(), false); err != nil {
		return err
	}

	if group {
		printGroupedConversations(out, s.Grouped())
		return nil
	}
	printConversations(out, s.Conversations())
	return nil
}

func runInboxCached(out io.Writer, configPath, status string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	convs, err := c.Conversations(status)
	if err != nil {
		return err
	}
	printConversations(out, convs)
	return nil
}

func printConversations(out io.Writer, convs []models.Conversation) {
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return
	}
	for _, c := range convs {
		fmt.Fprintf(out, "%5d  %-4s %-20s %-24s %s %s\n",
			c.ID,
			formatAge(c.LastMessageAt),
			truncate(c.OtherUser.Name, 20),
			truncate(c.Ad.Title, 24),
			truncate(c.LastMessage.Content, 40),
			unreadBadge(c.UnreadCount),
		)
	}
}

func printGroupedConversations(out io.Writer, groups []store.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(out, "No conversations.")
		return
	}
	for _, g := range groups {
		fmt.Fprintf(out, "%s %s\n", g.OtherUser.Name, unreadBadge(g.UnreadCount()))
		for _, c := range g.Conversations {
			fmt.Fprintf(out, "  %5d  %-4s %-24s %s %s\n",
				c.ID,
				formatAge(c.LastMessageAt),
				truncate(c.Ad.Title, 24),
				truncate(c.LastMessage.Content, 40),
				unreadBadge(c.UnreadCount),
			)
		}
	}
}
