// Package bundle provides typed access to a document bundle: the on-disk
// directory holding one Vellum document. A bundle always contains the
// authoritative plain-text source and a metadata record; bibliography data,
// typesetting settings and the replication history container accrue with the
// schema version (see internal/schema).
//
// The package owns the transient filesystem conventions shared with the
// external writer collaborators: atomic writes go through a dotted temp file
// in the bundle directory, so an interrupted write leaves exactly the marker
// that partial-sync detection looks for on the next launch.
package bundle

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vellum-editor/vellum/internal/schema"
)

// Ext is the directory extension the editor gives document bundles.
// It is cosmetic: a bundle is identified by its metadata, not its name.
const Ext = ".vellum"

// Transient marker conventions. Both are produced by external writers (the
// replication engine and the sync transport) and by this package's atomic
// writer; they are consumed only by partial-sync detection.
const (
	// SyncSentinelName is the zero-byte sentinel an external writer creates
	// before an in-flight write and removes after it completes.
	SyncSentinelName = ".sync-in-flight"

	// TempPrefix starts every dotted temporary filename.
	TempPrefix = "."
)

// TempSuffixes are the recognized temporary-file suffixes. A filename that
// starts with TempPrefix and ends with one of these is evidence of an
// interrupted write.
var TempSuffixes = []string{".tmp", ".partial"}

// Bundle addresses one document bundle directory. The zero value is not
// usable; construct with At.
type Bundle struct {
	path string
}

// At returns a Bundle for the directory at path. It does not touch the
// filesystem; a Bundle may address a directory that does not exist yet.
func At(path string) Bundle {
	return Bundle{path: filepath.Clean(path)}
}

// Path returns the bundle directory path.
func (b Bundle) Path() string { return b.path }

// Name returns the bundle's display name: the directory base name with the
// bundle extension stripped. Repair uses it to synthesize a title when the
// metadata record is missing.
func (b Bundle) Name() string {
	return strings.TrimSuffix(filepath.Base(b.path), Ext)
}

// FilePath resolves a bundle-relative filename.
func (b Bundle) FilePath(name string) string {
	return filepath.Join(b.path, name)
}

// Exists reports whether the bundle directory itself exists.
func (b Bundle) Exists() bool {
	info, err := os.Stat(b.path)
	return err == nil && info.IsDir()
}

// HasFile reports whether the named file exists inside the bundle.
func (b Bundle) HasFile(name string) bool {
	info, err := os.Stat(b.FilePath(name))
	return err == nil && info.Mode().IsRegular()
}

// FileSize returns the size in bytes of the named file, or 0 when the file
// does not exist. Other stat failures are returned as errors.
func (b Bundle) FileSize(name string) (int64, error) {
	info, err := os.Stat(b.FilePath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.Size(), nil
}

// ReadSource returns the bytes of the authoritative source file.
func (b Bundle) ReadSource() ([]byte, error) {
	data, err := os.ReadFile(b.FilePath(schema.SourceFile))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	return data, nil
}

// ReadHistory returns the bytes of the replication history container.
// A missing file returns fs.ErrNotExist wrapped.
func (b Bundle) ReadHistory() ([]byte, error) {
	data, err := os.ReadFile(b.FilePath(schema.HistoryFile))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return data, nil
}

// WriteHistory atomically replaces the history container.
func (b Bundle) WriteHistory(blob []byte) error {
	return WriteFileAtomic(b.FilePath(schema.HistoryFile), blob, 0o644)
}

// ReadMetadata reads and decodes the bundle's metadata record.
func (b Bundle) ReadMetadata() (Metadata, error) {
	data, err := os.ReadFile(b.FilePath(schema.MetadataFile))
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata: %w", err)
	}
	return DecodeMetadata(data)
}

// WriteMetadata encodes and atomically writes the metadata record.
func (b Bundle) WriteMetadata(m Metadata) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	return WriteFileAtomic(b.FilePath(schema.MetadataFile), data, 0o644)
}

// List returns the names of the regular files in the bundle directory,
// including dotted transient files. Subdirectories are skipped.
func (b Bundle) List() ([]string, error) {
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return nil, fmt.Errorf("list bundle: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
