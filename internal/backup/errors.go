package backup

import (
	"errors"
	"fmt"
)

// BackupError represents a failure in the backup service.
type BackupError struct {
	// Code identifies the error category.
	Code BackupErrorCode

	// Message is a human-readable description.
	Message string

	// Path is the backup or destination location involved.
	Path string

	// Err is the underlying cause, when one exists.
	Err error
}

// BackupErrorCode categorizes backup errors.
type BackupErrorCode string

const (
	// ErrCodeBackupFailed indicates the snapshot copy itself failed.
	ErrCodeBackupFailed BackupErrorCode = "BACKUP_FAILED"

	// ErrCodeInvalidBackup indicates a backup failed verification; restores
	// from it are refused before any destructive step.
	ErrCodeInvalidBackup BackupErrorCode = "INVALID_BACKUP"

	// ErrCodeRestoreFailed indicates a restore aborted. The destination is
	// guaranteed untouched.
	ErrCodeRestoreFailed BackupErrorCode = "RESTORE_FAILED"
)

// Error implements the error interface.
func (e *BackupError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *BackupError) Unwrap() error {
	return e.Err
}

// IsInvalidBackup returns true if the error is a refusal to restore from a
// backup that failed verification. Uses errors.As to handle wrapped errors.
func IsInvalidBackup(err error) bool {
	var be *BackupError
	if errors.As(err, &be) {
		return be.Code == ErrCodeInvalidBackup
	}
	return false
}

// IsRestoreFailed returns true if the error is an aborted restore.
func IsRestoreFailed(err error) bool {
	var be *BackupError
	if errors.As(err, &be) {
		return be.Code == ErrCodeRestoreFailed
	}
	return false
}
