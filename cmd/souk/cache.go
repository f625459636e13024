package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aveline/souk/internal/cache"
	"github.com/aveline/souk/internal/config"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Local cache management commands",
	}

	cmd.AddCommand(newCacheInitCmd())
	cmd.AddCommand(newCacheResetCmd())
	return cmd
}

func newCacheInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the local cache",
		Long:  "Opens the configured cache backend and migrates the schema.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	return cmd
}

func runCacheInit(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	if cfg.Cache.Driver == "mysql" {
		fmt.Fprintf(cmd.OutOrStdout(), "Cache ready at %s:%d/%s\n",
			cfg.Cache.MySQL.Host, cfg.Cache.MySQL.Port, cfg.Cache.MySQL.Database)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Cache ready at %s\n", cfg.Cache.Path)
	}
	return nil
}

func newCacheResetCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop all cached data",
		Long:  "Deletes every cached conversation, message, and notification. The next watch or inbox run repopulates from the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheReset(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	return cmd
}

func runCacheReset(cmd *cobra.Command, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	c, err := cache.Open(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Reset(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
	return nil
}
