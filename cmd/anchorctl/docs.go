package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contextanchor/anchorctl/config"
	"github.com/contextanchor/anchorctl/internal/api"
	"github.com/contextanchor/anchorctl/internal/poller"
)

func docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage knowledge-base documents",
	}
	cmd.AddCommand(docsListCmd(), docsGetCmd(), docsUploadCmd(), docsWatchCmd(), docsRmCmd())
	return cmd
}

func docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			docs, err := client.ListDocuments(cmd.Context())
			if err != nil {
				return err
			}
			printDocs(docs)
			return nil
		},
	}
}

func docsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			doc, err := client.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s\t%d bytes\t%d chunks\t%s\n", doc.ID, doc.OriginalName, doc.FileSize, doc.ChunkCount, doc.Status)
			if doc.ErrorMessage != "" {
				fmt.Printf("error: %s\n", doc.ErrorMessage)
			}
			return nil
		},
	}
}

func docsUploadCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload documents for ingestion",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient()
			if err != nil {
				return err
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				name := filepath.Base(path)
				doc, err := client.UploadDocument(cmd.Context(), name, data, func(pct int) {
					fmt.Printf("\r%s: %3d%%", name, pct)
				})
				if err != nil {
					fmt.Println()
					return err
				}
				fmt.Printf("\r%s: uploaded as %s (%s)\n", name, doc.ID, doc.Status)
			}
			if watch {
				return watchDocuments(cmd.Context(), client, cfg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "poll until processing finishes")
	return cmd
}

func docsWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Poll the collection until every document reaches a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := newClient()
			if err != nil {
				return err
			}
			return watchDocuments(cmd.Context(), client, cfg)
		},
	}
}

func watchDocuments(ctx context.Context, client *api.Client, cfg *config.Config) error {
	p := poller.New(cfg.PollInterval, client.ListDocuments, func(d api.Document) bool {
		return d.Status.Terminal()
	})
	for docs := range p.Run(ctx) {
		pending := 0
		for _, d := range docs {
			if !d.Status.Terminal() {
				pending++
			}
		}
		fmt.Printf("%d document(s), %d still processing\n", len(docs), pending)
		if pending == 0 {
			printDocs(docs)
		}
	}
	return ctx.Err()
}

func docsRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a document and its embeddings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			if err := client.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}

func printDocs(docs []api.Document) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tCHUNKS\tSTATUS\tUPLOADED")
	for _, d := range docs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			d.ID, d.OriginalName, d.FileSize, d.ChunkCount, d.Status, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
