package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/config"
)

func newLoginCmd() *cobra.Command {
	var (
		configPath string
		tokenFile  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token",
		Long:  "Prompts for a marketplace API token, verifies it against the server, and writes it to the token file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, configPath, tokenFile)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to souk config file")
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "where to write the token (default: api.token_file from config, or ~/.souk/token)")
	return cmd
}

func runLogin(cmd *cobra.Command, configPath, tokenFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if tokenFile == "" {
		tokenFile = cfg.API.TokenFile
	}
	if tokenFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		tokenFile = filepath.Join(home, ".souk", "token")
	}

	fmt.Fprint(out, "API token: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return fmt.Errorf("empty token")
	}

	// Verify before persisting: a cheap authenticated endpoint.
	client, err := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   api.StaticToken(token),
	})
	if err != nil {
		return err
	}
	if _, err := client.NotificationsUnread(cmd.Context()); err != nil {
		if errors.Is(err, api.ErrSessionExpired) {
			return fmt.Errorf("token rejected by %s", cfg.API.BaseURL)
		}
		return fmt.Errorf("verify token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(tokenFile), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(tokenFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	fmt.Fprintf(out, "Token verified and saved to %s\n", tokenFile)
	return nil
}
