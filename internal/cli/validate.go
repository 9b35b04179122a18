package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <bundle>",
		Short: "Check a bundle's integrity without changing it",
		Long: `Run a read-only validation pass over a bundle: required files for its
declared schema version, the replication history container's envelope,
history/source content agreement, and interrupted-write markers.

Exits 1 when the bundle is unhealthy.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.Validate(commandContext(cmd), path)
	if err != nil {
		return failErr(formatter, err)
	}

	if err := formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "Bundle:         %s\n", path)
		if svc.CheckForPartialSync(path) {
			fmt.Fprintln(w, "Partial sync:   interrupted-write markers present")
		}
		renderValidation(w, result)
	}); err != nil {
		return err
	}

	if !result.Healthy {
		return NewExitError(ExitFailure, fmt.Sprintf("bundle is unhealthy (%d issues)", len(result.Issues)))
	}
	return nil
}
