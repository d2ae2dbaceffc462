package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/service"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <document-id>",
		Short: "Build the embedding index of a document",
		Long:  "Embed every passage of an analyzed document. Documents that are already indexed are left untouched.",
		Args:  cobra.ExactArgs(1),
		RunE:  runIndex,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg)

	b, err := openBackends(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer b.Close()

	svc, closeLock, err := newQAService(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	defer closeLock()

	report, err := svc.IndexDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}

	return printIndexReport(cmd.OutOrStdout(), outputFormat, report)
}

func printIndexReport(w io.Writer, outputFormat string, report *service.IndexReport) error {
	if outputFormat == "json" {
		jsonBytes, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}

	if report.Skipped {
		fmt.Fprintf(w, "Document %s is already indexed\n", report.DocumentID)
		return nil
	}
	fmt.Fprintf(w, "Indexed document %s: %d passages, %d embeddings, %d failed\n",
		report.DocumentID, report.Passages, report.Embedded, report.Failed)
	return nil
}

func PurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge <document-id>",
		Short: "Delete the embeddings and conversations of a document",
		Args:  cobra.ExactArgs(1),
		RunE:  runPurge,
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runPurge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	outputFormat, _ := cmd.Flags().GetString("output")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg)

	b, err := openBackends(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer b.Close()

	// Purging never calls the model, so no LLM client is built here.
	svc := service.NewQAService(b.documents, b.embeddings, b.conversations, nil, nil, nil, service.DefaultQAConfig())

	report, err := svc.PurgeDocument(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to purge document: %w", err)
	}

	return printPurgeReport(cmd.OutOrStdout(), outputFormat, report)
}

func printPurgeReport(w io.Writer, outputFormat string, report *service.PurgeReport) error {
	if outputFormat == "json" {
		jsonBytes, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(jsonBytes))
		return nil
	}

	fmt.Fprintf(w, "Purged document %s: %d embeddings, %d conversations\n",
		report.DocumentID, report.Embeddings, report.Conversations)
	return nil
}
