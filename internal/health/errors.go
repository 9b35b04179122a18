package health

import (
	"errors"
	"fmt"
)

// RepairError represents a failure while repairing a bundle.
//
// Repair refuses to run at all when the source file cannot be read: with no
// authoritative text there is nothing safe to rebuild from. Failures in later
// steps report what was attempted.
type RepairError struct {
	// Code identifies the error category.
	Code RepairErrorCode

	// Message is a human-readable description.
	Message string

	// Bundle is the path of the affected bundle.
	Bundle string

	// Err is the underlying cause, when one exists.
	Err error
}

// RepairErrorCode categorizes repair errors.
type RepairErrorCode string

const (
	// ErrCodeSourceNotReadable indicates the authoritative source file could
	// not be read, so repair did not start.
	ErrCodeSourceNotReadable RepairErrorCode = "SOURCE_NOT_READABLE"

	// ErrCodeRepairFailed indicates a repair step failed after the source
	// gate passed.
	ErrCodeRepairFailed RepairErrorCode = "REPAIR_FAILED"
)

// Error implements the error interface.
func (e *RepairError) Error() string {
	if e.Bundle != "" {
		return fmt.Sprintf("%s: %s (bundle=%s)", e.Code, e.Message, e.Bundle)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is/As.
func (e *RepairError) Unwrap() error {
	return e.Err
}

// IsSourceNotReadable returns true if the error is the repair gate refusing
// to run without a readable source file. Uses errors.As to handle wrapped
// errors.
func IsSourceNotReadable(err error) bool {
	var re *RepairError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSourceNotReadable
	}
	return false
}

// NewSourceNotReadableError creates a RepairError for the source gate.
func NewSourceNotReadableError(bundlePath string, cause error) *RepairError {
	return &RepairError{
		Code:    ErrCodeSourceNotReadable,
		Message: "source file is not readable, nothing safe to rebuild from",
		Bundle:  bundlePath,
		Err:     cause,
	}
}

// NewRepairFailedError creates a RepairError for a failed repair step.
func NewRepairFailedError(bundlePath, step string, cause error) *RepairError {
	return &RepairError{
		Code:    ErrCodeRepairFailed,
		Message: fmt.Sprintf("repair step %q failed", step),
		Bundle:  bundlePath,
		Err:     cause,
	}
}
