package commands

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-review/internal/app"
	"github.com/dvloznov/statement-review/internal/domain"
	"github.com/dvloznov/statement-review/internal/logger"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/dvloznov/statement-review/internal/review"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newUploadCommand(e *env) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Store a statement in the configured file store and register it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)
			log := logger.FromContext(ctx)

			fh, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			defer fh.Close()

			files, err := app.OpenFiles(ctx, e.cfg.Files)
			if err != nil {
				return err
			}
			defer files.Close()

			store, err := app.OpenRecords(ctx, e.cfg.Records)
			if err != nil {
				return err
			}
			defer store.Close()

			ext := strings.ToLower(filepath.Ext(path))
			mimeType, _, _ := mime.ParseMediaType(mime.TypeByExtension(ext))
			filename := uuid.New().String() + ext

			size, err := files.Write(ctx, filename, mimeType, fh)
			if err != nil {
				return err
			}

			f := &domain.File{
				Filename:     filename,
				OriginalName: filepath.Base(path),
				MimeType:     mimeType,
				Size:         size,
			}
			if err := store.CreateFile(ctx, f); err != nil {
				if delErr := files.Delete(context.WithoutCancel(ctx), filename); delErr != nil {
					log.Warn().Err(delErr).Str("filename", filename).Msg("Failed to remove orphaned upload")
				}
				return err
			}

			log.Info().
				Str("file_id", f.ID).
				Str("filename", filename).
				Int64("size", size).
				Msg("Statement uploaded")

			if e.jsonOut {
				return writeJSON(cmd.OutOrStdout(), f)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s\n", path, f.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "path to the statement (PDF or image)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newReextractCommand(e *env) *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "reextract",
		Short: "Run extraction again for a registered file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)

			files, err := app.OpenFiles(ctx, e.cfg.Files)
			if err != nil {
				return err
			}
			defer files.Close()

			store, err := app.OpenRecords(ctx, e.cfg.Records)
			if err != nil {
				return err
			}
			defer store.Close()

			model, err := openModel(ctx, e.cfg.Model)
			if err != nil {
				return err
			}

			coordinator := pipeline.NewCoordinator(files, store, model,
				pipeline.WithStaleAfter(e.cfg.Extraction.StaleAfter))

			extractCtx, cancel := context.WithTimeout(ctx, e.cfg.Model.Timeout)
			defer cancel()

			outcome, err := coordinator.Extract(extractCtx, fileID)
			if outcome != nil {
				out := cmd.OutOrStdout()
				if e.jsonOut {
					if werr := writeJSON(out, outcome); werr != nil {
						return werr
					}
				} else {
					fmt.Fprintf(out, "Status: %s\n", outcome.Status)
					if outcome.Error != "" {
						fmt.Fprintf(out, "Error:  %s\n", outcome.Error)
					}
					if outcome.Status == domain.StatusCompleted {
						fmt.Fprintf(out, "Transactions: %d\n", len(outcome.Transactions))
					}
				}
			}
			return err
		},
	}

	cmd.Flags().StringVar(&fileID, "id", "", "file ID to extract")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

type inspectResult struct {
	File   *domain.File   `json:"file"`
	Report *review.Report `json:"report,omitempty"`
}

func newInspectCommand(e *env) *cobra.Command {
	var fileID string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show a file record and, once completed, its transactions and checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)

			store, err := app.OpenRecords(ctx, e.cfg.Records)
			if err != nil {
				return err
			}
			defer store.Close()

			f, err := store.GetFile(ctx, fileID)
			if err != nil {
				return err
			}

			res := inspectResult{File: f}
			if f.Status == domain.StatusCompleted {
				svc, err := review.NewService(store, nil)
				if err != nil {
					return err
				}
				defer svc.Close()
				if res.Report, err = svc.Evaluate(ctx, fileID); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if e.jsonOut {
				return writeJSON(out, res)
			}

			printFile(out, f)
			if res.Report != nil {
				fmt.Fprintf(out, "\n=== Transactions (%d) ===\n", res.Report.TransactionCount)
				printTransactions(out, f.VisibleTransactions())
				fmt.Fprintln(out, "\n=== Checks ===")
				printResults(out, res.Report.Results)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fileID, "id", "", "file ID to inspect")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
