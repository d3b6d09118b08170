package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contextanchor/anchorctl/internal/api"
)

func auditCmd() *cobra.Command {
	var page, size int
	var action, userID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Browse the tenant audit trail",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			var result *api.Page[api.AuditEntry]
			if userID != "" {
				result, err = client.AuditLogsByUser(cmd.Context(), userID, page, size)
			} else {
				result, err = client.AuditLogs(cmd.Context(), page, size, action)
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tACTION\tUSER\tRESOURCE\tOK")
			for _, e := range result.Content {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\t%v\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.UserEmail, e.ResourceType, e.ResourceID, e.Success)
			}
			w.Flush()
			fmt.Printf("page %d/%d (%d entries)\n", result.Number+1, result.TotalPages, result.TotalElements)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "page number (0-based)")
	cmd.Flags().IntVar(&size, "size", 20, "page size")
	cmd.Flags().StringVar(&action, "action", "", "filter by action")
	cmd.Flags().StringVar(&userID, "user", "", "show entries for one user")
	return cmd
}

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check platform health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			h, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s (up %s)\n", h.Service, h.Status, h.Uptime)
			if db, ok := h.Database["status"]; ok {
				fmt.Printf("database: %s\n", db)
			}
			if provider, ok := h.AI["provider"]; ok {
				fmt.Printf("ai: %s (%s)\n", provider, h.AI["mode"])
			}
			return nil
		},
	}
}
