// Package backup snapshots document bundles before risky operations.
//
// A backup is a full, independent copy of a bundle directory placed next to
// the original with a timestamped name. Backups are never mutated in place:
// verification reads them, restore copies them back, and only the user
// discards them.
package backup

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/crypto/blake2b"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/schema"
)

// stampLayout names backups down to the second; a second run within the same
// second gets a numeric suffix rather than overwriting.
const stampLayout = "20060102-150405"

// Descriptor records one snapshot. It is what the catalog retains so the
// user can find and discard backups later.
type Descriptor struct {
	// Location is the backup directory path.
	Location string `json:"location"`

	// BundleName is the original bundle's directory name.
	BundleName string `json:"bundle_name"`

	// Title is the document title at snapshot time, best-effort: an
	// unreadable metadata record leaves it as the bundle name.
	Title string `json:"title"`

	// CreatedAt is the snapshot instant.
	CreatedAt time.Time `json:"created_at"`

	// SizeBytes is the total size of every file copied.
	SizeBytes int64 `json:"size_bytes"`

	// Checksum is the hex BLAKE2b-256 digest over the copied files, in name
	// order. Diagnostic: catalog entries carry it so a later verify can spot
	// bit rot, not just missing files.
	Checksum string `json:"checksum"`
}

// SizeString renders SizeBytes for display: plain bytes below 1 KB,
// kilobytes below 1 MB, megabytes above.
func (d Descriptor) SizeString() string {
	switch {
	case d.SizeBytes < 1024:
		return fmt.Sprintf("%d bytes", d.SizeBytes)
	case d.SizeBytes < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(d.SizeBytes)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(d.SizeBytes)/(1024*1024))
	}
}

// VerifyReport is the outcome of checking a backup's completeness.
type VerifyReport struct {
	// Valid is true when no issues were found.
	Valid bool `json:"valid"`

	// Issues describes each problem in plain text.
	Issues []string `json:"issues,omitempty"`
}

// Service takes, verifies and restores bundle snapshots. The clock stamps
// backup names and descriptors; inject a fixed one under test.
type Service struct {
	clock bundle.Clock
}

// NewService returns a backup service stamping time from clock.
func NewService(clock bundle.Clock) *Service {
	return &Service{clock: clock}
}

// Backup copies the whole bundle to a timestamped sibling directory and
// returns its descriptor. Every regular file is copied, transient markers
// included: a snapshot is the bundle exactly as it stood.
func (s *Service) Backup(ctx context.Context, b bundle.Bundle) (Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return Descriptor{}, err
	}
	if !b.Exists() {
		return Descriptor{}, &BackupError{
			Code:    ErrCodeBackupFailed,
			Message: "bundle directory does not exist",
			Path:    b.Path(),
		}
	}

	now := s.clock.Now()
	location, err := s.reserveLocation(b, now)
	if err != nil {
		return Descriptor{}, &BackupError{Code: ErrCodeBackupFailed, Message: "reserve backup location", Path: b.Path(), Err: err}
	}

	size, checksum, err := copyBundleDir(b.Path(), location)
	if err != nil {
		os.RemoveAll(location)
		return Descriptor{}, &BackupError{Code: ErrCodeBackupFailed, Message: "copy bundle", Path: b.Path(), Err: err}
	}

	desc := Descriptor{
		Location:   location,
		BundleName: filepath.Base(b.Path()),
		Title:      b.Name(),
		CreatedAt:  now.UTC(),
		SizeBytes:  size,
		Checksum:   checksum,
	}
	if meta, err := b.ReadMetadata(); err == nil && meta.Title != "" {
		desc.Title = meta.Title
	}

	slog.Info("bundle backed up",
		"bundle", b.Path(),
		"backup", location,
		"size", desc.SizeString())
	return desc, nil
}

// Verify checks that the backup at path contains every file its own declared
// schema version requires. Each absence becomes one issue. A backup whose
// metadata is unreadable is held to the legacy file set, with the
// unreadability itself reported.
func (s *Service) Verify(path string) (VerifyReport, error) {
	b := bundle.At(path)
	if !b.Exists() {
		return VerifyReport{}, &BackupError{
			Code:    ErrCodeInvalidBackup,
			Message: "backup directory does not exist",
			Path:    path,
		}
	}

	var report VerifyReport
	declared := schema.Oldest
	meta, err := b.ReadMetadata()
	if err != nil {
		report.Issues = append(report.Issues, fmt.Sprintf("metadata is unreadable: %v", err))
	} else {
		declared = schema.Check(meta.SchemaVersion).FileSetVersion()
	}

	for _, name := range schema.ExpectedFiles(declared) {
		if !b.HasFile(name) {
			report.Issues = append(report.Issues, fmt.Sprintf("required file %s is missing", name))
		}
	}
	report.Valid = len(report.Issues) == 0
	return report, nil
}

// reserveLocation creates the backup directory, disambiguating if a backup
// from the same second already exists.
func (s *Service) reserveLocation(b bundle.Bundle, now time.Time) (string, error) {
	parent := filepath.Dir(b.Path())
	base := strings.TrimSuffix(filepath.Base(b.Path()), bundle.Ext)
	stamp := now.UTC().Format(stampLayout)

	for i := 0; ; i++ {
		name := fmt.Sprintf("%s-backup-%s", base, stamp)
		if i > 0 {
			name = fmt.Sprintf("%s-backup-%s-%d", base, stamp, i)
		}
		location := filepath.Join(parent, name+bundle.Ext)
		err := os.Mkdir(location, 0o755)
		if err == nil {
			return location, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}

// copyBundleDir copies every regular file from src into dst (which must
// exist), returning the total bytes copied and a BLAKE2b-256 digest over the
// file contents in name order.
func copyBundleDir(src, dst string) (int64, string, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, "", err
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return 0, "", err
	}

	var total int64
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		n, err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name()), hasher)
		if err != nil {
			return 0, "", fmt.Errorf("copy %s: %w", entry.Name(), err)
		}
		total += n
	}
	return total, fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// copyFile copies one file, teeing its bytes into hasher. Close errors are
// aggregated with any copy error so a failing flush is never swallowed.
func copyFile(src, dst string, hasher io.Writer) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, in.Close()) }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	defer func() { err = multierr.Append(err, out.Close()) }()

	n, err = io.Copy(io.MultiWriter(out, hasher), in)
	return n, err
}
