package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contextanchor/anchorctl/internal/conversation"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions about your documents",
	}
	cmd.AddCommand(chatAskCmd(), chatListCmd(), chatShowCmd(), chatRmCmd())
	return cmd
}

func chatAskCmd() *cobra.Command {
	var docIDs []string
	var convID string
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Send a question against the selected documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}

			log := conversation.NewLog(client)
			if convID != "" {
				conv, err := client.GetConversation(cmd.Context(), convID)
				if err != nil {
					return err
				}
				log.Load(conv)
			}

			resp, err := log.Send(cmd.Context(), args[0], docIDs)
			if err != nil {
				if draft := log.Draft(); draft != "" {
					fmt.Fprintf(os.Stderr, "question not sent, kept as draft: %q\n", draft)
				}
				return err
			}

			fmt.Println(resp.Answer)
			if len(resp.Sources) > 0 {
				fmt.Println("\nsources:")
				for _, src := range resp.Sources {
					fmt.Printf("  - %s (chunk %d, score %.2f)\n", src.DocumentName, src.ChunkIndex, src.SimilarityScore)
				}
			}
			if convID == "" {
				fmt.Printf("\nconversation: %s\n", log.ID())
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&docIDs, "docs", nil, "document IDs to search (required)")
	cmd.Flags().StringVar(&convID, "conversation", "", "continue an existing conversation")
	return cmd
}

func chatListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			convs, err := client.ListConversations(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tUPDATED")
			for _, c := range convs {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Title, c.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}

func chatShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			conv, err := client.GetConversation(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("%s\n\n", conv.Title)
			for _, m := range conv.Messages {
				fmt.Printf("[%s] %s\n", m.Role, m.Content)
			}
			return nil
		},
	}
}

func chatRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm ID",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newClient()
			if err != nil {
				return err
			}
			if err := client.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("deleted", args[0])
			return nil
		},
	}
}
