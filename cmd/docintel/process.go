package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kirillkom/document-intelligence/internal/bootstrap"
	"github.com/kirillkom/document-intelligence/internal/config"
	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
	"github.com/kirillkom/document-intelligence/internal/observability/logging"
)

func newProcessCmd() *cobra.Command {
	var (
		document string
		dir      string
		output   string
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Analyze a document or every document in a directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (document == "") == (dir == "") {
				return errors.New("exactly one of --document or --dir is required")
			}
			cfg := config.Load()
			if output == "" {
				output = cfg.OutputDir
			}

			files := []string{document}
			if dir != "" {
				var err error
				if files, err = listFiles(dir); err != nil {
					return err
				}
			}

			logger := logging.NewJSONLoggerTo(os.Stderr, "docintel", cfg.LogLevel)
			app, err := bootstrap.New(cmd.Context(), cfg, bootstrap.Options{Service: "docintel", Logger: logger})
			if err != nil {
				return err
			}
			defer app.Close()

			failed, err := processFiles(cmd.Context(), app.Documents, files, output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d documents failed", failed, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&document, "document", "", "path of a single document to analyze")
	cmd.Flags().StringVar(&dir, "dir", "", "directory whose files are analyzed")
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for <document_id>.json results (default OUTPUT_DIR)")
	return cmd
}

func listFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// processFiles analyzes files one by one, writing every produced result. The
// returned count covers documents that ended without a stored result or
// with status failed.
func processFiles(ctx context.Context, svc ports.DocumentService, files []string, outDir string, out io.Writer) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}

	failed := 0
	for _, path := range files {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "%s: read failed: %v\n", path, err)
			failed++
			continue
		}
		result, err := svc.Process(ctx, raw, filepath.Base(path))
		if result == nil {
			fmt.Fprintf(out, "%s: %s: %v\n", path, domain.ErrorCode(err), err)
			failed++
			continue
		}
		if err := writeResult(outDir, result); err != nil {
			return failed, err
		}
		if result.ProcessingStatus == domain.StatusFailed {
			failed++
		}
		fmt.Fprintf(out, "%s -> %s (%s, type=%s, actions=%d)\n",
			path, result.DocumentID, result.ProcessingStatus, result.Classification.Type, len(result.ActionableItems))
	}
	return failed, nil
}

func writeResult(outDir string, result *domain.DocumentResult) error {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	path := filepath.Join(outDir, result.DocumentID+".json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
