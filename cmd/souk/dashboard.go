package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/bus"
	"github.com/aveline/souk/internal/dashboard"
	"github.com/aveline/souk/internal/models"
	"github.com/aveline/souk/internal/store"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Start the local web dashboard",
		Long:  "Launches a local web view of your inbox with live unread badges over SSE.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDashboard(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default: dashboard.port from config)")
	return cmd
}

func runDashboard(cmd *cobra.Command, configPath string, port int) error {
	cfg, client, err := clientFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Dashboard.Port
	}

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

	notifs, err := store.NewNotificationStore(store.NotificationStoreOpts{API: client})
	if err != nil {
		return err
	}
	defer notifs.Close()

	badge, err := store.NewBadge(store.BadgeOpts{API: client, Bus: b})
	if err != nil {
		return err
	}
	defer badge.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifFetch := func(ctx context.Context, background bool) error {
		return notifs.Fetch(ctx, api.ListNotificationsParams{})
	}

	pollers := []*store.Poller{
		store.NewPoller(time.Duration(cfg.Poll.ConversationsSec)*time.Second, convs.Fetch),
		store.NewPoller(time.Duration(cfg.Poll.BadgeSec)*time.Second, badge.Refresh),
		store.NewPoller(time.Duration(cfg.Poll.ConversationsSec)*time.Second, notifFetch),
	}

	var wg sync.WaitGroup
	for _, p := range pollers {
		wg.Add(1)
		go func(p *store.Poller) {
			defer wg.Done()
			p.Run(ctx)
		}(p)
	}
	defer func() {
		for _, p := range pollers {
			p.Stop()
		}
		wg.Wait()
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
	}()

	return dashboard.Start(ctx, dashboard.StartOpts{
		Source: &liveSource{convs: convs, notifs: notifs, badge: badge},
		Port:   port,
		Out:    cmd.OutOrStdout(),
	})
}

// liveSource adapts the polling stores to the dashboard's data interface.
type liveSource struct {
	convs  *store.ConversationStore
	notifs *store.NotificationStore
	badge  *store.Badge
}

func (s *liveSource) Counts() (int, int) { return s.badge.Counts() }

func (s *liveSource) Conversations() []models.Conversation { return s.convs.Conversations() }

func (s *liveSource) Notifications() []models.Notification { return s.notifs.Notifications() }
