// anchorctl is the command-line client for the ContextAnchor Enterprise RAG
// Platform.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/contextanchor/anchorctl/config"
	"github.com/contextanchor/anchorctl/internal/api"
	"github.com/contextanchor/anchorctl/internal/credstore"
)

var (
	cfgPath string
	baseURL string
)

func main() {
	root := &cobra.Command{
		Use:           "anchorctl",
		Short:         "Client for the ContextAnchor Enterprise RAG Platform",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default: ./anchorctl.yaml, ~/.config/anchorctl/anchorctl.yaml)")
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "platform API root (overrides config)")

	root.AddCommand(
		loginCmd(), registerCmd(), logoutCmd(), whoamiCmd(),
		docsCmd(), chatCmd(), keysCmd(), auditCmd(), healthCmd(),
		devserverCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "anchorctl: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return cfg, nil
}

func newClient() (*api.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	client := api.NewClient(api.Options{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Store:   store,
		Timeout: cfg.Timeout,
		OnSessionExpired: func() {
			fmt.Fprintln(os.Stderr, "session expired; run 'anchorctl login' to authenticate again")
		},
	})
	return client, cfg, nil
}

func newStore(cfg *config.Config) (api.CredentialStore, error) {
	switch cfg.Credentials.Backend {
	case "memory":
		return credstore.NewMemoryStore(), nil
	case "redis":
		r := cfg.Credentials.Redis
		return credstore.NewRedisStore(r.Addr, r.Password, r.DB), nil
	default:
		path := cfg.Credentials.Path
		if path == "" {
			p, err := credstore.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return credstore.NewFileStore(path)
	}
}
