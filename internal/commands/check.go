package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/statement-review/internal/checks"
	"github.com/dvloznov/statement-review/internal/pipeline"
	"github.com/spf13/cobra"
)

func newCheckCommand(e *env) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run the risk checks over a JSON transaction list",
		Long: "Run the risk checks over a JSON transaction list. The input is an object\n" +
			"with a \"transactions\" key, optionally wrapped in a markdown code fence.\n" +
			"Use --input - to read standard input.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)

			raw, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			txs, err := pipeline.ParseModelResponse(ctx, string(raw))
			if err != nil {
				return fmt.Errorf("parsing %s: %w", input, err)
			}

			results := checks.DefaultRunner().RunAll(txs)

			out := cmd.OutOrStdout()
			if e.jsonOut {
				if err := writeJSON(out, results); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "%d transactions\n\n", len(txs))
				printResults(out, results)
			}

			if errorSeverityFailure(results) {
				return ErrChecksFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "path to the transactions JSON, or - for stdin")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return b, nil
}
