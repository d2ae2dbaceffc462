package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/spf13/cobra"
)

// IndexReport mirrors the server's indexing outcome
type IndexReport struct {
	DocumentID string `json:"documentId"`
	Passages   int    `json:"passages"`
	Embedded   int    `json:"embedded"`
	Failed     int    `json:"failed"`
	Skipped    bool   `json:"skipped"`
}

// PurgeReport mirrors the server's purge outcome
type PurgeReport struct {
	DocumentID    string `json:"documentId"`
	Embeddings    int    `json:"embeddings"`
	Conversations int    `json:"conversations"`
}

// SuggestCmd creates the suggest command
func SuggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <document-id>",
		Short: "Suggest questions worth asking about a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			questions, err := client.SuggestQuestions(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(w, map[string][]string{"questions": questions})
			}
			for i, q := range questions {
				fmt.Fprintf(w, "%d. %s\n", i+1, q)
			}
			return nil
		},
	}
}

// IndexCmd creates the index command
func IndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <document-id>",
		Short: "Build a document's embedding index ahead of the first question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			report, err := client.IndexDocument(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(w, report)
			}
			if report.Skipped {
				fmt.Fprintf(w, "Document %s is already indexed\n", report.DocumentID)
				return nil
			}
			fmt.Fprintf(w, "Indexed %d of %d passages (%d failed)\n", report.Passages-report.Failed, report.Passages, report.Failed)
			return nil
		},
	}
}

// PurgeCmd creates the purge command
func PurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <document-id>",
		Short: "Drop a document's embeddings and conversations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			client, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			report, err := client.PurgeDocument(args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if outputJSON {
				return writeJSON(w, report)
			}
			fmt.Fprintf(w, "Removed %d embeddings and %d conversations\n", report.Embeddings, report.Conversations)
			return nil
		},
	}
}

// SuggestQuestions fetches suggested questions for documentID
func (c *APIClient) SuggestQuestions(documentID string) ([]string, error) {
	resp, err := c.Get("/documents/" + url.PathEscape(documentID) + "/suggestions")
	if err != nil {
		return nil, err
	}

	var out struct {
		Questions []string `json:"questions"`
	}
	if err := decodeData(resp, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// IndexDocument asks the server to index documentID
func (c *APIClient) IndexDocument(documentID string) (*IndexReport, error) {
	resp, err := c.Post("/documents/"+url.PathEscape(documentID)+"/index", nil)
	if err != nil {
		return nil, err
	}

	var report IndexReport
	if err := decodeData(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// PurgeDocument asks the server to drop everything derived from documentID
func (c *APIClient) PurgeDocument(documentID string) (*PurgeReport, error) {
	resp, err := c.Delete("/documents/" + url.PathEscape(documentID) + "/index")
	if err != nil {
		return nil, err
	}

	var report PurgeReport
	if err := decodeData(resp, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
