package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"case-rag/internal/chat"
	"case-rag/internal/helper"
	"case-rag/internal/models"
)

var (
	askCaseID     string
	askDocumentID string
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about a case or a single document",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askCaseID, "case", "", "case id to search")
	askCmd.Flags().StringVar(&askDocumentID, "document", "", "document id to search")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full response as JSON")
	askCmd.MarkFlagsMutuallyExclusive("case", "document")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	req := chat.AskRequest{Question: strings.Join(args, " ")}
	switch {
	case askCaseID != "":
		req.Scope, req.OwnerID = models.ScopeCase, askCaseID
	case askDocumentID != "":
		req.Scope, req.OwnerID = models.ScopeDocument, askDocumentID
	default:
		return errors.New("one of --case or --document is required")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.chatService()
	if err != nil {
		return err
	}
	resp, err := svc.Ask(ctx, req)
	if err != nil {
		return err
	}

	if askJSON {
		return helper.PrettyPrint(cmd.OutOrStdout(), resp)
	}
	cmd.Println(resp.Content)
	if len(resp.Sources) > 0 {
		cmd.Println()
		cmd.Println("Sources: " + strings.Join(resp.Sources, ", "))
	}
	return nil
}
