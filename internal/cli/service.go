package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/vellum-editor/vellum/internal/backup"
	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/catalog"
	"github.com/vellum-editor/vellum/internal/health"
	"github.com/vellum-editor/vellum/internal/history"
	"github.com/vellum-editor/vellum/internal/migrate"
	"github.com/vellum-editor/vellum/internal/workspace"
)

// newFormatter builds the command's output formatter. Verbose logs go to
// stderr so JSON output stays parseable.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newService wires a workspace service for one command invocation. The
// returned cleanup closes the catalog, when one is configured.
func newService(opts *RootOptions) (*workspace.Service, func(), error) {
	var cat *catalog.Catalog
	if opts.cfg.CatalogPath != "" {
		var err error
		cat, err = catalog.Open(opts.cfg.CatalogPath)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open catalog", err)
		}
	}
	svc := workspace.New(history.NewSingleWriter(), bundle.SystemClock{}, cat)
	cleanup := func() {
		if cat == nil {
			return
		}
		if err := cat.Close(); err != nil {
			slog.Error("error closing catalog", "error", err)
		}
	}
	return svc, cleanup, nil
}

// commandContext returns the command's context, which tests may inject.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// errorCode maps domain errors to their stable string codes for output.
func errorCode(err error) string {
	var me *migrate.MigrationError
	if errors.As(err, &me) {
		return string(me.Code)
	}
	var re *health.RepairError
	if errors.As(err, &re) {
		return string(re.Code)
	}
	var be *backup.BackupError
	if errors.As(err, &be) {
		return string(be.Code)
	}
	return "OPERATION_FAILED"
}

// fail prints the error in the configured format and returns an ExitError
// carrying both the code string and the exit status.
func fail(f *OutputFormatter, exitCode int, code, message string) error {
	_ = f.Error(code, message, nil)
	return NewExitError(exitCode, fmt.Sprintf("%s: %s", code, message))
}

// failErr is fail for wrapped domain errors: the exit code is 1 for refusals
// this subsystem defines (newer-than-app, invalid backup, unreadable source)
// and 2 for plain command errors.
func failErr(f *OutputFormatter, err error) error {
	exit := ExitCommandError
	switch {
	case migrate.IsNewerThanApp(err), backup.IsInvalidBackup(err), health.IsSourceNotReadable(err):
		exit = ExitFailure
	}
	return fail(f, exit, errorCode(err), err.Error())
}
