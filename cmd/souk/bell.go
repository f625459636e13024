package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/store"
)

func newBellCmd() *cobra.Command {
	var (
		configPath  string
		unreadOnly  bool
		notifType   string
		markAllRead bool
		clear       bool
		cached      bool
	)

	cmd := &cobra.Command{
		Use:   "bell",
		Short: "List notifications",
		Long:  "Lists your marketplace notifications: new messages, ad approvals, expiries. Use --mark-all-read to clear the unread badge, --clear to delete read notifications, or --cached to read the local cache offline.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cached {
				if markAllRead || clear {
					return fmt.Errorf("--cached cannot be combined with --mark-all-read or --clear")
				}
				return runBellCached(cmd.OutOrStdout(), configPath, unreadOnly)
			}
			return runBell(cmd, configPath, unreadOnly, notifType, markAllRead, clear)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().BoolVarP(&unreadOnly, "unread", "u", false, "only unread notifications")
	cmd.Flags().StringVarP(&notifType, "type", "t", "", "filter by notification type")
	cmd.Flags().BoolVar(&markAllRead, "mark-all-read", false, "mark every notification read")
	cmd.Flags().BoolVar(&clear, "clear", false, "delete read notifications")
	cmd.Flags().BoolVar(&cached, "cached", false, "read from the local cache instead of the API")
	return cmd
}

// runBellCached lists notifications from the local cache, populated by the
// watch daemon.
func runBellCached(out io.Writer, configPath string, unreadOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	notifs, err := c.Notifications(unreadOnly)
	if err != nil {
		return err
	}
	printNotifications(out, notifs)

	unread := 0
	for _, n := range notifs {
		if !n.IsRead {
			unread++
		}
	}
	fmt.Fprintf(out, "\n%d unread\n", unread)
	return nil
}

func runBell(cmd *cobra.Command, configPath string, unreadOnly bool, notifType string, markAllRead, clear bool) error {
	_, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	s, err := store.NewNotificationStore(store.NotificationStoreOpts{API: client})
	if err != nil {
		return err
	}
	defer s.Close()

	if markAllRead {
		if err := s.MarkAllRead(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "All notifications marked read.")
		return nil
	}
	if clear {
		if err := s.ClearAll(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "Read notifications cleared.")
		return nil
	}

	params := api.ListNotificationsParams{Type: notifType}
	if unreadOnly {
		isRead := false
		params.IsRead = &isRead
	}
	if err := s.Fetch(ctx, params); err != nil {
		return err
	}

	printNotifications(out, s.Notifications())
	fmt.Fprintf(out, "\n%d unread\n", s.UnreadCount())
	return nil
}

func printNotifications(out io.Writer, notifs []models.Notification) {
	if len(notifs) == 0 {
		fmt.Fprintln(out, "No notifications.")
		return
	}
	for _, n := range notifs {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %5d  %-4s %-18s %s\n",
			marker, n.ID, formatAge(n.CreatedAt), n.Type, truncate(n.Message, 60))
	}
}
