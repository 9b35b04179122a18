package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/schema"
)

func TestFixtureDefaultBundleIsComplete(t *testing.T) {
	f := NewFixture(t)
	b := f.Bundle(BundleSpec{})

	for _, name := range schema.ExpectedFiles(schema.Current) {
		assert.True(t, b.HasFile(name), "missing %s", name)
	}
	assert.False(t, b.HasFile(schema.HistoryFile))

	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	assert.Equal(t, "thesis", meta.Title)
	require.NotNil(t, meta.SchemaVersion)
	assert.Equal(t, int(schema.Current), *meta.SchemaVersion)
	assert.Equal(t, Base, meta.CreatedAt)
}

func TestFixtureVersionedLayout(t *testing.T) {
	f := NewFixture(t)
	b := f.Bundle(BundleSpec{Version: schema.V1})

	assert.True(t, b.HasFile(schema.SourceFile))
	assert.False(t, b.HasFile(schema.BibliographyFile))
	assert.False(t, b.HasFile(schema.SettingsFile))

	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	require.NotNil(t, meta.SchemaVersion)
	assert.Equal(t, 1, *meta.SchemaVersion)
}

func TestFixtureLegacyOmitAndMarkers(t *testing.T) {
	f := NewFixture(t)
	b := f.Bundle(BundleSpec{
		Legacy:  true,
		Omit:    []string{schema.SettingsFile},
		Markers: []string{bundle.SyncSentinelName, ".document.md.tmp"},
	})

	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	assert.Nil(t, meta.SchemaVersion)

	assert.False(t, b.HasFile(schema.SettingsFile))
	assert.True(t, b.HasFile(bundle.SyncSentinelName))
	assert.True(t, b.HasFile(".document.md.tmp"))
}
