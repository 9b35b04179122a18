package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <bundle>",
		Short: "Upgrade a bundle to the current schema version",
		Long: `Take a backup, then upgrade the bundle to the current schema version
by creating the files each newer version requires. The source file is
never rewritten. A bundle already at the current version is a no-op.

Bundles written by a newer application are refused outright.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, args[0], cmd)
		},
	}
}

func runMigrate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Migrate(commandContext(cmd), path)
	if err != nil {
		return failErr(formatter, err)
	}

	return formatter.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "Bundle: %s\n", path)
		if !report.Report.Migrated {
			fmt.Fprintln(w, "✓ Already at the current schema version")
			return
		}
		fmt.Fprintf(w, "Backup: %s\n", report.Backup.Location)
		fmt.Fprintf(w, "✓ Migrated %s -> %s\n", report.Report.From, report.Report.To)
		for _, action := range report.Report.Actions {
			fmt.Fprintf(w, "  - %s\n", action)
		}
	})
}
