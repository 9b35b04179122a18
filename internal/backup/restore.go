package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
)

// Restore replaces the bundle at dest with the backup at backupPath,
// all-or-nothing. The backup is verified first; a backup with issues is
// refused with INVALID_BACKUP before anything on disk changes.
//
// The swap is two-phase: the backup is staged as a full copy next to the
// destination, the destination is moved aside, the staged copy is renamed
// into place, and only then is the aside discarded. A failure at any point
// before the final rename puts the original back, so the destination is
// never left missing or half-written.
func (s *Service) Restore(backupPath, dest string) error {
	report, err := s.Verify(backupPath)
	if err != nil {
		return err
	}
	if !report.Valid {
		return &BackupError{
			Code:    ErrCodeInvalidBackup,
			Message: fmt.Sprintf("backup failed verification: %v", report.Issues),
			Path:    backupPath,
		}
	}

	parent := filepath.Dir(dest)
	staged := filepath.Join(parent, "."+filepath.Base(dest)+".restore-staging")
	aside := filepath.Join(parent, "."+filepath.Base(dest)+".restore-aside")

	// Leftovers from an interrupted earlier restore. The aside is only
	// removed once a restore fully succeeds, so a present aside means the
	// previous attempt died before its final rename and dest is intact.
	if err := multierr.Combine(os.RemoveAll(staged), os.RemoveAll(aside)); err != nil {
		return &BackupError{Code: ErrCodeRestoreFailed, Message: "clear stale staging", Path: dest, Err: err}
	}

	if err := os.Mkdir(staged, 0o755); err != nil {
		return &BackupError{Code: ErrCodeRestoreFailed, Message: "stage restore copy", Path: dest, Err: err}
	}
	if _, _, err := copyBundleDir(backupPath, staged); err != nil {
		err = multierr.Append(err, os.RemoveAll(staged))
		return &BackupError{Code: ErrCodeRestoreFailed, Message: "stage restore copy", Path: dest, Err: err}
	}

	destExists := false
	if _, err := os.Stat(dest); err == nil {
		destExists = true
		if err := os.Rename(dest, aside); err != nil {
			err = multierr.Append(err, os.RemoveAll(staged))
			return &BackupError{Code: ErrCodeRestoreFailed, Message: "move destination aside", Path: dest, Err: err}
		}
	}

	if err := os.Rename(staged, dest); err != nil {
		// Put the original back; the staged copy is discarded.
		if destExists {
			err = multierr.Append(err, os.Rename(aside, dest))
		}
		err = multierr.Append(err, os.RemoveAll(staged))
		return &BackupError{Code: ErrCodeRestoreFailed, Message: "swap restored bundle into place", Path: dest, Err: err}
	}

	if destExists {
		if err := os.RemoveAll(aside); err != nil {
			slog.Warn("restore succeeded but the old bundle copy was not removed",
				"dest", dest, "aside", aside, "error", err)
		}
	}

	slog.Info("bundle restored", "backup", backupPath, "dest", dest)
	return nil
}
