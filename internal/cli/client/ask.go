package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// AskRequest is the body of a question
type AskRequest struct {
	Question          string `json:"question"`
	ConversationID    string `json:"conversationId,omitempty"`
	StartConversation bool   `json:"startConversation,omitempty"`
}

// Answer is the API's reply to a question
type Answer struct {
	Answer         string                  `json:"answer"`
	Sources        []domain.SourceCitation `json:"sources"`
	ConversationID string                  `json:"conversationId"`
	Confidence     float64                 `json:"confidence"`
}

// AskCmd creates the ask command
func AskCmd() *cobra.Command {
	var (
		conversationID string
		newID          string
	)

	cmd := &cobra.Command{
		Use:   "ask <document-id> <question>...",
		Short: "Ask a question about a document",
		Long: `Ask a question about an analyzed document. Without --conversation a new
conversation is started; pass the printed conversation ID to continue it.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if conversationID != "" && newID != "" {
				return fmt.Errorf("--conversation and --new are mutually exclusive")
			}

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			req := AskRequest{
				Question:       strings.Join(args[1:], " "),
				ConversationID: conversationID,
			}
			if newID != "" {
				req.ConversationID = newID
				req.StartConversation = true
			}

			answer, err := client.Ask(args[0], req)
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), answer, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "Continue an existing conversation")
	cmd.Flags().StringVar(&newID, "new", "", "Start a conversation with this ID")

	return cmd
}

// Ask posts a question about documentID
func (c *APIClient) Ask(documentID string, req AskRequest) (*Answer, error) {
	if err := c.RequireUser(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}

	resp, err := c.Post("/documents/"+url.PathEscape(documentID)+"/questions", req)
	if err != nil {
		return nil, err
	}

	var answer Answer
	if err := decodeData(resp, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

func printAnswer(w io.Writer, a *Answer, outputJSON bool) error {
	if outputJSON {
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintln(w, a.Answer)
	fmt.Fprintln(w)

	if len(a.Sources) > 0 {
		fmt.Fprintln(w, "Sources:")
		for i, s := range a.Sources {
			fmt.Fprintf(w, "  [%d] %s (%.0f%%)\n", i+1, s.Title, s.Confidence*100)
			if s.Snippet != "" {
				fmt.Fprintf(w, "      %s\n", s.Snippet)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Confidence: %.0f%%\n", a.Confidence*100)
	fmt.Fprintf(w, "Conversation: %s\n", a.ConversationID)
	return nil
}
