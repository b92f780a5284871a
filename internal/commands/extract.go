package commands

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-review/internal/checks"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/filestore"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/dvloznov/statement-review/internal/records/inmemory"
	"github.com/spf13/cobra"
)

type extractResult struct {
	Outcome *pipeline.Outcome `json:"outcome"`
	Checks  []checks.Result   `json:"checks,omitempty"`
}

func newExtractCommand(e *env) *cobra.Command {
	var path string
	var mimeType string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract transactions from a local statement file and run the checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, e, path, mimeType)
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "path to the statement (PDF or image)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().StringVar(&mimeType, "mime", "", "MIME type (detected from the extension when empty)")

	return cmd
}

func runExtract(cmd *cobra.Command, e *env, path, mimeType string) error {
	ctx := e.context(cmd)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
		if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
			mimeType = mt
		}
	}

	files, err := filestore.NewLocal(filepath.Dir(path))
	if err != nil {
		return err
	}
	records := inmemory.NewStore()

	f := &domain.File{
		Filename:     filepath.Base(path),
		OriginalName: filepath.Base(path),
		MimeType:     mimeType,
		Size:         info.Size(),
	}
	if err := records.CreateFile(ctx, f); err != nil {
		return err
	}

	// Unsupported files are skipped before any model is built.
	var model pipeline.DocumentModelClient = unusedModel{}
	if pipeline.SupportedMIME(mimeType) {
		if model, err = openModel(ctx, e.cfg.Model); err != nil {
			return err
		}
	}

	coordinator := pipeline.NewCoordinator(files, records, model)

	extractCtx, cancel := context.WithTimeout(ctx, e.cfg.Model.Timeout)
	defer cancel()

	outcome, extractErr := coordinator.Extract(extractCtx, f.ID)
	if outcome == nil {
		return extractErr
	}

	res := extractResult{Outcome: outcome}
	if outcome.Status == domain.StatusCompleted {
		res.Checks = checks.DefaultRunner().RunAll(outcome.Transactions)
	}

	out := cmd.OutOrStdout()
	if e.jsonOut {
		if err := writeJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Status: %s\n", outcome.Status)
		if outcome.Error != "" {
			fmt.Fprintf(out, "Error:  %s\n", outcome.Error)
		}
		if outcome.Status == domain.StatusCompleted {
			fmt.Fprintln(out)
			printTransactions(out, outcome.Transactions)
			fmt.Fprintln(out)
			printResults(out, res.Checks)
		}
	}

	if extractErr != nil {
		return extractErr
	}
	if errorSeverityFailure(res.Checks) {
		return ErrChecksFailed
	}
	return nil
}

// unusedModel stands in when the file type means no model call can happen.
type unusedModel struct{}

func (unusedModel) Complete(ctx context.Context, req pipeline.ModelRequest) (string, error) {
	return "", fmt.Errorf("no document model configured")
}
