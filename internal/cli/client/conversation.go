package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Message is one transcript entry as returned by the API
type Message struct {
	ID        string                  `json:"id"`
	Role      string                  `json:"role"`
	Content   string                  `json:"content"`
	Timestamp time.Time               `json:"timestamp"`
	Sources   []domain.SourceCitation `json:"sources,omitempty"`
}

// Conversation is a full transcript as returned by the API
type Conversation struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Messages   []Message `json:"messages"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// ConversationPage is one page of conversation summaries
type ConversationPage struct {
	Items   []domain.ConversationSummary `json:"items"`
	Cursor  string                       `json:"cursor,omitempty"`
	HasMore bool                         `json:"has_more"`
}

// ConversationCmd creates the conversation parent command
func ConversationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversation",
		Aliases: []string{"conv"},
		Short:   "Browse your conversations",
	}

	cmd.AddCommand(conversationListCmd())
	cmd.AddCommand(conversationShowCmd())

	return cmd
}

func conversationListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list <document-id>",
		Short: "List your conversations about a document, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			page, err := client.ListConversations(args[0], cursor, limit)
			if err != nil {
				return err
			}
			return printConversationPage(cmd.OutOrStdout(), page, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func conversationShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			conv, err := client.GetConversation(args[0])
			if err != nil {
				if IsNotFound(err) {
					return fmt.Errorf("conversation %s not found", args[0])
				}
				return err
			}
			return printConversation(cmd.OutOrStdout(), conv, outputJSON)
		},
	}

	return cmd
}

// ListConversations fetches one page of the user's conversations about documentID
func (c *APIClient) ListConversations(documentID, cursor string, limit int) (*ConversationPage, error) {
	if err := c.RequireUser(); err != nil {
		return nil, err
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	path := "/documents/" + url.PathEscape(documentID) + "/conversations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.Get(path)
	if err != nil {
		return nil, err
	}

	var page ConversationPage
	if err := decodeData(resp, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetConversation fetches a transcript owned by the user
func (c *APIClient) GetConversation(id string) (*Conversation, error) {
	if err := c.RequireUser(); err != nil {
		return nil, err
	}

	resp, err := c.Get("/conversations/" + url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var conv Conversation
	if err := decodeData(resp, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func printConversationPage(w io.Writer, page *ConversationPage, outputJSON bool) error {
	if outputJSON {
		data, err := json.MarshalIndent(page, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No conversations found")
		return nil
	}

	for _, c := range page.Items {
		fmt.Fprintf(w, "%s  %3d messages  updated %s\n", c.ID, c.MessageCount, c.UpdatedAt.Local().Format(time.DateTime))
	}
	if page.HasMore {
		fmt.Fprintf(w, "\nMore results: --cursor %s\n", page.Cursor)
	}
	return nil
}

func printConversation(w io.Writer, conv *Conversation, outputJSON bool) error {
	if outputJSON {
		data, err := json.MarshalIndent(conv, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	fmt.Fprintf(w, "Conversation %s (document %s)\n\n", conv.ID, conv.DocumentID)
	for _, m := range conv.Messages {
		fmt.Fprintf(w, "[%s] %s\n", m.Role, m.Timestamp.Local().Format(time.DateTime))
		fmt.Fprintln(w, m.Content)
		for _, s := range m.Sources {
			fmt.Fprintf(w, "  - %s\n", s.Title)
		}
		fmt.Fprintln(w)
	}
	return nil
}
