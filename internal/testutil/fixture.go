package testutil

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/schema"
)

// DefaultSource is the document text fixtures carry unless overridden.
const DefaultSource = "# Field Notes\n\nThe quick brown fox jumps over the lazy dog.\n"

// BundleSpec describes the bundle a Fixture should lay out on disk. The zero
// value produces a complete, healthy bundle at the current schema version.
type BundleSpec struct {
	// Name is the bundle directory name; defaults to "thesis.vellum".
	Name string

	// Version is the schema version to stamp and lay out files for.
	// Zero means schema.Current.
	Version schema.Version

	// Legacy makes the metadata record no schema version at all.
	Legacy bool

	// Source overrides DefaultSource. An explicitly empty source is
	// expressed with Source = "\x00"; fixtures never need that in practice,
	// tests that want an empty file rewrite it afterwards.
	Source string

	// Title and Authors seed the metadata record. Title defaults to the
	// bundle name without extension.
	Title   string
	Authors []string

	// History, when non-nil, is written verbatim as the history container.
	History []byte

	// Markers lists interruption-marker filenames to create (the sync
	// sentinel or dotted temp names), each as an empty file.
	Markers []string

	// Omit lists required filenames to leave off disk.
	Omit []string
}

// Fixture builds bundles under a test's temp directory with deterministic
// timestamps.
type Fixture struct {
	t     *testing.T
	clock *Clock
}

// NewFixture returns a fixture bound to t, stamping with a fresh Clock.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{t: t, clock: NewClock()}
}

// Clock returns the fixture's clock, for services under test to share.
func (f *Fixture) Clock() *Clock {
	return f.clock
}

// Bundle lays out the described bundle in a fresh temp directory and returns it.
func (f *Fixture) Bundle(spec BundleSpec) bundle.Bundle {
	f.t.Helper()

	if spec.Name == "" {
		spec.Name = "thesis" + bundle.Ext
	}
	if spec.Version == 0 {
		spec.Version = schema.Current
	}
	if spec.Source == "" {
		spec.Source = DefaultSource
	}

	dir := filepath.Join(f.t.TempDir(), spec.Name)
	require.NoError(f.t, os.Mkdir(dir, 0o755))
	b := bundle.At(dir)

	if !slices.Contains(spec.Omit, schema.SourceFile) {
		f.write(b, schema.SourceFile, []byte(spec.Source))
	}
	if !slices.Contains(spec.Omit, schema.MetadataFile) {
		title := spec.Title
		if title == "" {
			title = b.Name()
		}
		meta := bundle.NewMetadata(f.clock, title, spec.Authors)
		switch {
		case spec.Legacy:
			meta.SchemaVersion = nil
		case spec.Version != schema.Current:
			v := int(spec.Version)
			meta.SchemaVersion = &v
		}
		require.NoError(f.t, b.WriteMetadata(meta))
	}

	content := map[string]string{
		schema.BibliographyFile: "@book{knuth1984, title={The TeXbook}}\n",
		schema.SettingsFile:     "{}\n",
	}
	for _, name := range schema.ExpectedFiles(spec.Version) {
		if name == schema.SourceFile || name == schema.MetadataFile {
			continue
		}
		if slices.Contains(spec.Omit, name) {
			continue
		}
		f.write(b, name, []byte(content[name]))
	}

	if spec.History != nil {
		f.write(b, schema.HistoryFile, spec.History)
	}
	for _, name := range spec.Markers {
		f.write(b, name, nil)
	}
	return b
}

func (f *Fixture) write(b bundle.Bundle, name string, data []byte) {
	f.t.Helper()
	require.NoError(f.t, os.WriteFile(b.FilePath(name), data, 0o644))
}
