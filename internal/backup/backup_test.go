package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/schema"
	"github.com/vellum-editor/vellum/internal/testutil"
)

func TestBackupCopiesWholeBundle(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Title: "Field Notes", Authors: []string{"Ada Lovelace"}})
	svc := NewService(f.Clock())

	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, "thesis.vellum", desc.BundleName)
	assert.Equal(t, "Field Notes", desc.Title, "title comes from metadata when readable")
	assert.Equal(t, testutil.Base, desc.CreatedAt)
	assert.NotEmpty(t, desc.Checksum)

	name := filepath.Base(desc.Location)
	assert.True(t, strings.HasPrefix(name, "thesis-backup-"), "got %s", name)
	assert.True(t, strings.HasSuffix(name, bundle.Ext))

	copied := bundle.At(desc.Location)
	var total int64
	for _, file := range schema.ExpectedFiles(schema.Current) {
		require.True(t, copied.HasFile(file), "backup missing %s", file)

		want, err := os.ReadFile(b.FilePath(file))
		require.NoError(t, err)
		got, err := os.ReadFile(copied.FilePath(file))
		require.NoError(t, err)
		assert.Equal(t, want, got, "%s differs in backup", file)
		total += int64(len(want))
	}
	assert.Equal(t, total, desc.SizeBytes)
}

// A backup is the bundle exactly as it stood, interruption markers included.
func TestBackupIncludesMarkers(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Markers: []string{bundle.SyncSentinelName}})

	desc, err := NewService(f.Clock()).Backup(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, bundle.At(desc.Location).HasFile(bundle.SyncSentinelName))
}

func TestBackupTwiceInOneSecondDisambiguates(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	svc := NewService(f.Clock())

	first, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)
	second, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)
	assert.NotEqual(t, first.Location, second.Location)
}

func TestBackupMissingBundle(t *testing.T) {
	f := testutil.NewFixture(t)
	_, err := NewService(f.Clock()).Backup(context.Background(), bundle.At(filepath.Join(t.TempDir(), "gone.vellum")))
	require.Error(t, err)
	var be *BackupError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, ErrCodeBackupFailed, be.Code)
}

func TestSizeString(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1024*1024 - 1, "1024.0 KB"},
		{1024 * 1024, "1.0 MB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Descriptor{SizeBytes: tc.bytes}.SizeString(), "%d bytes", tc.bytes)
	}
}

func TestVerifyCompleteBackup(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	svc := NewService(f.Clock())

	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)

	report, err := svc.Verify(desc.Location)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
}

// Verification holds a backup to its own declared version: a v1 backup
// without a bibliography is complete.
func TestVerifyUsesBackupOwnVersion(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Clock())

	v1 := f.Bundle(testutil.BundleSpec{Version: schema.V1})
	desc, err := svc.Backup(context.Background(), v1)
	require.NoError(t, err)
	report, err := svc.Verify(desc.Location)
	require.NoError(t, err)
	assert.True(t, report.Valid, "issues: %v", report.Issues)
}

func TestVerifyReportsEachMissingFile(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	svc := NewService(f.Clock())

	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(desc.Location, schema.SourceFile)))
	require.NoError(t, os.Remove(filepath.Join(desc.Location, schema.SettingsFile)))

	report, err := svc.Verify(desc.Location)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 2)
	assert.Contains(t, report.Issues[0], schema.SourceFile)
	assert.Contains(t, report.Issues[1], schema.SettingsFile)
}

func TestVerifyMissingBackupDirectory(t *testing.T) {
	f := testutil.NewFixture(t)
	_, err := NewService(f.Clock()).Verify(filepath.Join(t.TempDir(), "nope.vellum"))
	require.Error(t, err)
	assert.True(t, IsInvalidBackup(err))
}

func TestRestoreOverwritesDestination(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Clock())

	b := f.Bundle(testutil.BundleSpec{Source: "the good draft\n"})
	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)

	// Ruin the original after the snapshot.
	require.NoError(t, os.WriteFile(b.FilePath(schema.SourceFile), []byte("mangled"), 0o644))
	require.NoError(t, os.Remove(b.FilePath(schema.SettingsFile)))

	require.NoError(t, svc.Restore(desc.Location, b.Path()))

	source, err := b.ReadSource()
	require.NoError(t, err)
	assert.Equal(t, "the good draft\n", string(source))
	assert.True(t, b.HasFile(schema.SettingsFile))
}

func TestRestoreIntoFreshLocation(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Clock())

	b := f.Bundle(testutil.BundleSpec{})
	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)

	dest := filepath.Join(t.TempDir(), "recovered.vellum")
	require.NoError(t, svc.Restore(desc.Location, dest))
	assert.True(t, bundle.At(dest).HasFile(schema.SourceFile))
}

// A backup that fails verification is refused before any destructive step:
// the destination keeps every byte it had.
func TestRestoreRefusesInvalidBackup(t *testing.T) {
	f := testutil.NewFixture(t)
	svc := NewService(f.Clock())

	b := f.Bundle(testutil.BundleSpec{Source: "irreplaceable\n"})
	desc, err := svc.Backup(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(desc.Location, schema.SourceFile)))

	err = svc.Restore(desc.Location, b.Path())
	require.Error(t, err)
	assert.True(t, IsInvalidBackup(err))

	source, err := b.ReadSource()
	require.NoError(t, err)
	assert.Equal(t, "irreplaceable\n", string(source), "destination untouched after refused restore")
}

func TestRestoreMissingBackup(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	err := NewService(f.Clock()).Restore(filepath.Join(t.TempDir(), "nope.vellum"), b.Path())
	require.Error(t, err)
	assert.True(t, IsInvalidBackup(err))
	assert.True(t, b.HasFile(schema.SourceFile))
}
