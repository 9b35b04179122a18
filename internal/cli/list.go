package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vellum-editor/vellum/internal/catalog"
)

// listReport is the list command's payload: the catalog's bundles and every
// retained backup.
type listReport struct {
	Bundles []catalog.BundleRecord `json:"bundles"`
	Backups []catalog.BackupRecord `json:"backups"`
}

// NewListCommand creates the list command.
func NewListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List catalogued bundles and retained backups",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	cat := svc.Catalog()
	if cat == nil {
		return fail(formatter, ExitCommandError, "NO_CATALOG",
			"no catalog configured; pass --catalog or set catalog_path in the config file")
	}

	ctx := commandContext(cmd)
	bundles, err := cat.ListBundles(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, "OPERATION_FAILED", err.Error())
	}
	backups, err := cat.ListAllBackups(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, "OPERATION_FAILED", err.Error())
	}

	report := listReport{Bundles: bundles, Backups: backups}
	return formatter.Success(report, func(w io.Writer) {
		renderList(w, report)
	})
}

func renderList(w io.Writer, report listReport) {
	if len(report.Bundles) == 0 {
		fmt.Fprintln(w, "No bundles catalogued.")
		return
	}
	fmt.Fprintf(w, "Bundles (%d):\n", len(report.Bundles))
	for _, rec := range report.Bundles {
		verdict := "unvalidated"
		if rec.Healthy != nil {
			if *rec.Healthy {
				verdict = "healthy"
			} else {
				verdict = "unhealthy"
			}
		}
		version := "legacy"
		if rec.SchemaVersion != nil {
			version = fmt.Sprintf("v%d", *rec.SchemaVersion)
		}
		fmt.Fprintf(w, "  %-30s %s  %s  %s\n", rec.Title, rec.ID, version, verdict)
		fmt.Fprintf(w, "    %s\n", rec.Path)
	}
	if len(report.Backups) == 0 {
		return
	}
	fmt.Fprintf(w, "Backups (%d):\n", len(report.Backups))
	for _, b := range report.Backups {
		fmt.Fprintf(w, "  %s  %s  %s (%s)\n",
			b.CreatedAt.Format("2006-01-02 15:04:05"), b.Reason, b.Location, b.SizeString())
	}
}
