package migrate

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellum-editor/vellum/internal/schema"
	"github.com/vellum-editor/vellum/internal/testutil"
)

func TestMigrateCurrentBundleIsNoOp(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	before, err := b.ReadMetadata()
	require.NoError(t, err)

	report, err := New(f.Clock()).Migrate(context.Background(), b)
	require.NoError(t, err)

	assert.False(t, report.Migrated)
	assert.Empty(t, report.Actions)
	assert.Equal(t, schema.Current, report.From)
	assert.Equal(t, schema.Current, report.To)

	after, err := b.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, before, after, "a no-op migration rewrites nothing")
}

func TestMigrateV1ToCurrent(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Version: schema.V1, Source: "original draft\n"})
	f.Clock().Advance(time.Hour)

	report, err := New(f.Clock()).Migrate(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, report.Migrated)
	assert.Equal(t, schema.V1, report.From)
	assert.Equal(t, schema.Current, report.To)
	require.Len(t, report.Actions, 2)
	assert.Contains(t, report.Actions[0], schema.BibliographyFile)
	assert.Contains(t, report.Actions[1], schema.SettingsFile)

	for _, name := range schema.ExpectedFiles(schema.Current) {
		assert.True(t, b.HasFile(name), "missing %s after migration", name)
	}

	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	require.NotNil(t, meta.SchemaVersion)
	assert.Equal(t, int(schema.Current), *meta.SchemaVersion)
	assert.Equal(t, schema.AppVersion, meta.AppVersion)
	assert.Equal(t, testutil.Base.Add(time.Hour), meta.ModifiedAt)
	assert.Equal(t, testutil.Base, meta.CreatedAt, "creation stamp survives migration")

	source, err := b.ReadSource()
	require.NoError(t, err)
	assert.Equal(t, "original draft\n", string(source), "migration never rewrites the source")
}

func TestMigrateLegacyBundle(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Version: schema.V1, Legacy: true})

	report, err := New(f.Clock()).Migrate(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, report.Migrated)
	assert.Equal(t, schema.Oldest, report.From, "legacy bundles migrate from the oldest known version")
	assert.Equal(t, schema.ClassLegacy, report.Class.Kind)

	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	require.NotNil(t, meta.SchemaVersion)
	assert.Equal(t, int(schema.Current), *meta.SchemaVersion)
}

// Migration steps skip files that already exist, so a v2 bundle that
// somehow carries a settings file keeps it verbatim.
func TestMigratePreservesExistingFiles(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Version: schema.V2})
	require.NoError(t, os.WriteFile(b.FilePath(schema.SettingsFile), []byte(`{"paper_size":"letter"}`), 0o644))

	bibBefore, err := os.ReadFile(b.FilePath(schema.BibliographyFile))
	require.NoError(t, err)

	report, err := New(f.Clock()).Migrate(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, report.Migrated)
	assert.Empty(t, report.Actions, "nothing to create when every file already exists")

	settings, err := os.ReadFile(b.FilePath(schema.SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, `{"paper_size":"letter"}`, string(settings))

	bibAfter, err := os.ReadFile(b.FilePath(schema.BibliographyFile))
	require.NoError(t, err)
	assert.Equal(t, bibBefore, bibAfter)
}

func TestMigrateIsIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Version: schema.V1})
	m := New(f.Clock())

	first, err := m.Migrate(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, first.Migrated)

	second, err := m.Migrate(context.Background(), b)
	require.NoError(t, err)
	assert.False(t, second.Migrated)
	assert.Empty(t, second.Actions)
}

func TestMigrateRefusesNewerThanApp(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	newer := int(schema.Current) + 2
	meta.SchemaVersion = &newer
	require.NoError(t, b.WriteMetadata(meta))

	_, err = New(f.Clock()).Migrate(context.Background(), b)
	require.Error(t, err)
	assert.True(t, IsNewerThanApp(err))
	assert.Contains(t, err.Error(), "NEWER_THAN_APP")

	after, err := b.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, newer, *after.SchemaVersion, "refusal leaves the bundle untouched")
}

func TestMigrateUnsupportedVersion(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	zero := 0
	meta.SchemaVersion = &zero
	require.NoError(t, b.WriteMetadata(meta))

	_, err = New(f.Clock()).Migrate(context.Background(), b)
	require.Error(t, err)
	assert.Equal(t, ErrCodeUnsupportedVersion, CodeOf(err))
}

func TestMigrateMissingFiles(t *testing.T) {
	f := testutil.NewFixture(t)

	noSource := f.Bundle(testutil.BundleSpec{Omit: []string{schema.SourceFile}})
	_, err := New(f.Clock()).Migrate(context.Background(), noSource)
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingFile, CodeOf(err))
	assert.Contains(t, err.Error(), schema.SourceFile)

	noMeta := f.Bundle(testutil.BundleSpec{Omit: []string{schema.MetadataFile}})
	_, err = New(f.Clock()).Migrate(context.Background(), noMeta)
	require.Error(t, err)
	assert.Equal(t, ErrCodeMissingFile, CodeOf(err))
	assert.Contains(t, err.Error(), schema.MetadataFile)
}

func TestMigrateCorruptedMetadata(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{})
	require.NoError(t, os.WriteFile(b.FilePath(schema.MetadataFile), []byte("{ not json"), 0o644))

	_, err := New(f.Clock()).Migrate(context.Background(), b)
	require.Error(t, err)
	assert.Equal(t, ErrCodeCorruptedDocument, CodeOf(err))
}

func TestMigrateCancelledContext(t *testing.T) {
	f := testutil.NewFixture(t)
	b := f.Bundle(testutil.BundleSpec{Version: schema.V1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(f.Clock()).Migrate(ctx, b)
	assert.ErrorIs(t, err, context.Canceled)
}
