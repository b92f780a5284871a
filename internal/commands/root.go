// Package commands implements the statement review CLI.
package commands

import (
	"context"
	"errors"
	"os"

	"github.com/dvloznov/statement-review/internal/app"
	"github.com/dvloznov/statement-review/internal/config"
	"github.com/dvloznov/statement-review/internal/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// ErrChecksFailed is returned when a check failed with error severity.
var ErrChecksFailed = errors.New("one or more checks failed with error severity")

// openModel is replaced in tests.
var openModel = app.OpenModel

// env carries the loaded configuration and logger to subcommands.
type env struct {
	configPath string
	jsonOut    bool

	cfg *config.Config
	log zerolog.Logger
}

func (e *env) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), e.log)
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	e := &env{}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Extract bank statement transactions and review them for risk signals",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			log, err := logger.NewFromConfig(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = log
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", os.Getenv("STATEMENT_REVIEW_CONFIG"), "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&e.jsonOut, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(
		newExtractCommand(e),
		newCheckCommand(e),
		newUploadCommand(e),
		newReextractCommand(e),
		newInspectCommand(e),
		newMigrateCommand(e),
	)

	return rootCmd
}
