package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vellum-editor/vellum/internal/health"
	"github.com/vellum-editor/vellum/internal/workspace"
)

// NewOpenCommand creates the open command.
func NewOpenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "open <bundle>",
		Short: "Run the full open-time flow on a bundle",
		Long: `Run the open-time flow on a bundle: classify its schema version,
migrate it (after a backup) when it is older than the application,
validate it, and repair it (after a backup) when it is unhealthy.

Bundles written by a newer application are refused outright.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(opts, args[0], cmd)
		},
	}
}

func runOpen(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.Open(commandContext(cmd), path)
	if err != nil {
		return failErr(formatter, err)
	}

	return formatter.Success(report, func(w io.Writer) {
		renderOpenReport(w, report)
	})
}

func renderOpenReport(w io.Writer, report workspace.OpenReport) {
	fmt.Fprintf(w, "Bundle:         %s\n", report.Bundle)
	fmt.Fprintf(w, "Classification: %s\n", report.Classification)
	if report.PartialSync {
		fmt.Fprintln(w, "Partial sync:   interrupted-write markers were present")
	}
	if report.Migration != nil {
		fmt.Fprintf(w, "Migrated:       %s -> %s (backup: %s)\n",
			report.Migration.Report.From, report.Migration.Report.To,
			report.Migration.Backup.Location)
		for _, action := range report.Migration.Report.Actions {
			fmt.Fprintf(w, "  - %s\n", action)
		}
	}
	if report.Repair != nil {
		fmt.Fprintf(w, "Repaired:       %d action(s) (backup: %s)\n",
			len(report.Repair.Result.Actions), report.Repair.Backup.Location)
		for _, action := range report.Repair.Result.Actions {
			fmt.Fprintf(w, "  - %s\n", action.Detail)
		}
	}
	renderValidation(w, report.Validation)
}

func renderValidation(w io.Writer, result health.Result) {
	if result.Healthy {
		fmt.Fprintln(w, "Health:         ✓ healthy")
	} else {
		fmt.Fprintf(w, "Health:         ✗ %d issue(s)\n", len(result.Issues))
		for _, issue := range result.Issues {
			fmt.Fprintf(w, "  [%s] %s: %s\n", issue.Severity, issue.Kind, issue.Description)
		}
	}
	fmt.Fprintf(w, "History:        present=%t source=%d bytes history=%d bytes ratio=%.2f\n",
		result.HasCRDTState, result.SourceBytes, result.HistoryBytes, result.SizeRatio())
}
