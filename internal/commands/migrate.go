package commands

import (
	"fmt"
	"os/user"

	"github.com/dvloznov/statement-review/internal/app"
	"github.com/spf13/cobra"
)

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the record store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := e.context(cmd)

			store, err := app.OpenRecords(ctx, e.cfg.Records)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := app.Migrate(ctx, store, appliedBy()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Record store %q is up to date.\n", e.cfg.Records.Driver)
			return nil
		},
	}
}

func appliedBy() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "cli"
}
