package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewRepairCommand creates the repair command.
func NewRepairCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repair <bundle>",
		Short: "Repair a bundle, preserving its source text",
		Long: `Take a backup, then run the repair sequence: synthesize missing
metadata, rebuild a corrupted replication history from the source
text, and remove interrupted-write markers.

The source file's bytes are never modified. Repair refuses to run at
all when the source cannot be read.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(opts, args[0], cmd)
		},
	}
}

func runRepair(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Repair(commandContext(cmd), path)
	if err != nil {
		return failErr(formatter, err)
	}

	return formatter.Success(report, func(w io.Writer) {
		fmt.Fprintf(w, "Bundle: %s\n", path)
		fmt.Fprintf(w, "Backup: %s (%s)\n", report.Backup.Location, report.Backup.SizeString())
		if len(report.Result.Actions) == 0 {
			fmt.Fprintln(w, "✓ Bundle was already healthy, nothing to repair")
			return
		}
		fmt.Fprintf(w, "✓ Repaired with %d action(s):\n", len(report.Result.Actions))
		for _, action := range report.Result.Actions {
			fmt.Fprintf(w, "  - %s\n", action.Detail)
		}
	})
}
