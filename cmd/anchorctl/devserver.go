package main

import (
	"github.com/spf13/cobra"

	"github.com/contextanchor/anchorctl/internal/devserver"
)

func devserverCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local in-memory stand-in for the platform",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.DevServer.Addr
			}
			srv := devserver.New(devserver.Config{
				JWTSecret:    cfg.DevServer.JWTSecret,
				AccessTTL:    cfg.DevServer.AccessTTL,
				RefreshTTL:   cfg.DevServer.RefreshTTL,
				PipelineStep: cfg.DevServer.PipelineStep,
			})
			return srv.Start(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	return cmd
}
