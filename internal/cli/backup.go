package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewBackupCommand creates the backup command.
func NewBackupCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "backup <bundle>",
		Short:         "Snapshot a bundle to a timestamped sibling directory",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(opts, args[0], cmd)
		},
	}
}

func runBackup(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	desc, err := svc.Backup(commandContext(cmd), path)
	if err != nil {
		return failErr(formatter, err)
	}

	return formatter.Success(desc, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Backed up %q\n", desc.Title)
		fmt.Fprintf(w, "Location: %s\n", desc.Location)
		fmt.Fprintf(w, "Size:     %s\n", desc.SizeString())
		fmt.Fprintf(w, "Checksum: %s\n", desc.Checksum)
	})
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <backup>",
		Short: "Check that a backup is complete",
		Long: `Check that a backup contains every file required by its own declared
schema version. Exits 1 when the backup is not restorable.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}
}

func runVerify(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.VerifyBackup(path)
	if err != nil {
		return failErr(formatter, err)
	}

	if err := formatter.Success(report, func(w io.Writer) {
		if report.Valid {
			fmt.Fprintf(w, "✓ Backup %s is valid\n", path)
			return
		}
		fmt.Fprintf(w, "✗ Backup %s has %d issue(s):\n", path, len(report.Issues))
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
	}); err != nil {
		return err
	}

	if !report.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("backup is invalid (%d issues)", len(report.Issues)))
	}
	return nil
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup> <destination>",
		Short: "Restore a bundle from a backup, all-or-nothing",
		Long: `Replace the destination bundle with the backup. The backup is verified
first and a backup with issues is refused before anything on disk
changes; on any failure the destination is left exactly as it was.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(opts, args[0], args[1], cmd)
		},
	}
}

func runRestore(opts *RootOptions, backupPath, dest string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	svc, cleanup, err := newService(opts)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := svc.Restore(commandContext(cmd), backupPath, dest); err != nil {
		return failErr(formatter, err)
	}

	data := map[string]string{"backup": backupPath, "destination": dest}
	return formatter.Success(data, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Restored %s from %s\n", dest, backupPath)
	})
}
