package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/repository"
)

// ImportFile is the on-disk form of an analyzed document
type ImportFile struct {
	Document *domain.Document `json:"document"`
	Analysis *domain.Analysis `json:"analysis"`
}

func ImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an analyzed document",
		Long: `Import a document and its completed analysis from a JSON file of the form
{"document": {...}, "analysis": {...}}. Embeddings built from an earlier
import of the same document are dropped so the next question re-indexes it.`,
		RunE: runImport,
	}

	cmd.Flags().StringP("file", "f", "", "Path to the JSON file, - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	path, _ := cmd.Flags().GetString("file")

	in, err := readImportFile(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(cfg)

	if cfg.StoreBackend == config.BackendMemory {
		return errors.New("the memory backend does not outlive this command, nothing to import into")
	}

	b, err := openBackends(ctx, cfg, logger, false)
	if err != nil {
		return err
	}
	defer b.Close()

	switch {
	case b.analyses != nil:
		if err := b.analyses.PutDocument(ctx, in.Document); err != nil {
			return fmt.Errorf("failed to store document: %w", err)
		}
		if err := b.analyses.PutAnalysis(ctx, in.Analysis); err != nil {
			return fmt.Errorf("failed to store analysis: %w", err)
		}
		if _, err := b.embeddings.DeleteByDocument(ctx, in.Document.ID); err != nil {
			return fmt.Errorf("failed to drop stale embeddings: %w", err)
		}
	case b.pool != nil:
		runner := repository.NewTxRunner(b.pool, cfg.EmbeddingDimensions)
		err := runner.WithTx(ctx, func(repos *repository.TxRepositories) error {
			if err := repos.Documents().Save(ctx, in.Document); err != nil {
				return err
			}
			if err := repos.Documents().SaveAnalysis(ctx, in.Analysis); err != nil {
				return err
			}
			_, err := repos.Embeddings().DeleteByDocument(ctx, in.Document.ID)
			return err
		})
		if err != nil {
			return fmt.Errorf("failed to import document: %w", err)
		}
	default:
		return fmt.Errorf("backend %q has no writable document source", cfg.StoreBackend)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported document %s with %d passages\n", in.Document.ID, len(in.Analysis.Passages))
	return nil
}

func readImportFile(stdin io.Reader, path string) (*ImportFile, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in ImportFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode import file: %w", err)
	}
	if err := validateImport(&in); err != nil {
		return nil, err
	}
	return &in, nil
}

func validateImport(in *ImportFile) error {
	if err := domain.ValidateDocument(in.Document); err != nil {
		return err
	}
	if in.Analysis == nil {
		return errors.New("analysis is required")
	}
	if in.Analysis.DocumentID == "" {
		in.Analysis.DocumentID = in.Document.ID
	}
	if in.Analysis.DocumentID != in.Document.ID {
		return fmt.Errorf("analysis belongs to document %q, not %q", in.Analysis.DocumentID, in.Document.ID)
	}
	return domain.ValidateAnalysis(in.Analysis)
}
