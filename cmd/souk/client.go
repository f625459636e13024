package main

import (
	"fmt"

	"github.com/aveline/souk/internal/api"
	"github.com/aveline/souk/internal/config"
)

// defaultConfigPath is where commands look for the config file by default.
const defaultConfigPath = "souk.yaml"

// clientFromConfig loads the config and builds an authenticated API client.
func clientFromConfig(configPath string) (*config.Config, *api.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, nil, err
	}
	client, err := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   api.StaticToken(token),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build API client: %w", err)
	}
	return cfg, client, nil
}
