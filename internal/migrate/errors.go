package migrate

import (
	"errors"
	"fmt"
)

// MigrationError represents a refusal or failure to migrate a bundle. None
// of these is retryable by this subsystem and none implies data loss: the
// bundle's source and metadata are exactly as they were before the attempt.
type MigrationError struct {
	// Code identifies the error category.
	Code MigrationErrorCode

	// Message is a human-readable description.
	Message string

	// Bundle is the path of the affected bundle.
	Bundle string

	// Err is the underlying cause, when one exists.
	Err error
}

// MigrationErrorCode categorizes migration errors.
type MigrationErrorCode string

const (
	// ErrCodeNewerThanApp indicates the bundle was written by a newer
	// application. Fatal: the bundle is refused, not partially opened.
	ErrCodeNewerThanApp MigrationErrorCode = "NEWER_THAN_APP"

	// ErrCodeUnsupportedVersion indicates the stored version number is not
	// one this build recognizes (for example zero or negative).
	ErrCodeUnsupportedVersion MigrationErrorCode = "UNSUPPORTED_VERSION"

	// ErrCodeMissingFile indicates a file migration needs to read is absent.
	ErrCodeMissingFile MigrationErrorCode = "MISSING_FILE"

	// ErrCodeCorruptedDocument indicates the bundle's metadata or structure
	// could not be parsed.
	ErrCodeCorruptedDocument MigrationErrorCode = "CORRUPTED_DOCUMENT"

	// ErrCodeMigrationFailed indicates a migration step failed with an
	// underlying I/O error.
	ErrCodeMigrationFailed MigrationErrorCode = "MIGRATION_FAILED"
)

// Error implements the error interface.
func (e *MigrationError) Error() string {
	if e.Bundle != "" {
		return fmt.Sprintf("%s: %s (bundle=%s)", e.Code, e.Message, e.Bundle)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *MigrationError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the migration error code from err, or "" when err is not a
// MigrationError. Uses errors.As to handle wrapped errors.
func CodeOf(err error) MigrationErrorCode {
	var me *MigrationError
	if errors.As(err, &me) {
		return me.Code
	}
	return ""
}

// IsNewerThanApp returns true if the error is the refusal to open a bundle
// written by a newer application.
func IsNewerThanApp(err error) bool {
	return CodeOf(err) == ErrCodeNewerThanApp
}
