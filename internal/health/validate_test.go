package health

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/history"
	"github.com/vellum-editor/vellum/internal/schema"
)

const sampleSource = "# Field Notes\n\nThe quick brown fox jumps over the lazy dog.\n"

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testClock = fixedClock{t: time.Date(2024, 6, 2, 17, 45, 10, 0, time.UTC)}

// newTestBundle builds a complete bundle at the given schema version with
// sampleSource as its document text and no collaboration history.
func newTestBundle(t *testing.T, v schema.Version) bundle.Bundle {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "thesis.vellum")
	require.NoError(t, os.Mkdir(dir, 0o755))
	b := bundle.At(dir)

	require.NoError(t, os.WriteFile(b.FilePath(schema.SourceFile), []byte(sampleSource), 0o644))
	meta := bundle.NewMetadata(testClock, "Field Notes", []string{"Ada Lovelace"})
	if v != schema.Current {
		stored := int(v)
		meta.SchemaVersion = &stored
	}
	require.NoError(t, b.WriteMetadata(meta))

	extras := map[string]string{
		schema.BibliographyFile: "@book{knuth1984, title={The TeXbook}}\n",
		schema.SettingsFile:     "{}\n",
	}
	for _, name := range schema.ExpectedFiles(v) {
		if name == schema.SourceFile || name == schema.MetadataFile {
			continue
		}
		require.NoError(t, os.WriteFile(b.FilePath(name), []byte(extras[name]), 0o644))
	}
	return b
}

func seedHistory(t *testing.T, b bundle.Bundle, engine history.Engine, text string) {
	t.Helper()
	blob, err := engine.Seed([]byte(text))
	require.NoError(t, err)
	require.NoError(t, b.WriteHistory(blob))
}

func findIssue(result Result, kind IssueKind) (Issue, bool) {
	for _, issue := range result.Issues {
		if issue.Kind == kind {
			return issue, true
		}
	}
	return Issue{}, false
}

func TestValidateHealthyBundle(t *testing.T) {
	engine := history.NewSingleWriter()
	b := newTestBundle(t, schema.Current)
	seedHistory(t, b, engine, sampleSource)

	result, err := NewValidator(engine).Validate(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, result.Healthy)
	assert.Empty(t, result.Issues)
	assert.True(t, result.HasCRDTState)
	assert.Equal(t, int64(len(sampleSource)), result.SourceBytes)
	assert.Greater(t, result.HistoryBytes, int64(0))
	assert.False(t, result.Markers.Any())
}

func TestValidateNoHistoryIsHealthy(t *testing.T) {
	b := newTestBundle(t, schema.Current)

	result, err := NewValidator(history.NewSingleWriter()).Validate(context.Background(), b)
	require.NoError(t, err)

	assert.True(t, result.Healthy)
	assert.False(t, result.HasCRDTState)
	assert.Equal(t, int64(0), result.HistoryBytes)
}

func TestValidateMissingMetadata(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.Remove(b.FilePath(schema.MetadataFile)))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)

	require.False(t, result.Healthy)
	issue, ok := findIssue(result, IssueMissingFile)
	require.True(t, ok, "expected a missing-file issue")
	assert.Contains(t, issue.Description, schema.MetadataFile)
	assert.Equal(t, SeverityWarning, issue.Severity)
}

func TestValidateMissingSourceIsCritical(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.Remove(b.FilePath(schema.SourceFile)))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)

	require.False(t, result.Healthy)
	issue, ok := findIssue(result, IssueMissingFile)
	require.True(t, ok)
	assert.Contains(t, issue.Description, schema.SourceFile)
	assert.Equal(t, SeverityCritical, issue.Severity)
	assert.Equal(t, int64(0), result.SourceBytes)
}

// The declared schema version governs which files are required. A v1 bundle
// without a bibliography or settings file is complete; a v3 bundle missing
// its settings file is not.
func TestValidateDeclaredVersionGovernsFileSet(t *testing.T) {
	v1 := newTestBundle(t, schema.V1)
	result, err := NewValidator(nil).Validate(context.Background(), v1)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "v1 bundle should not be held to v3 layout: %+v", result.Issues)

	v3 := newTestBundle(t, schema.Current)
	require.NoError(t, os.Remove(v3.FilePath(schema.SettingsFile)))
	result, err = NewValidator(nil).Validate(context.Background(), v3)
	require.NoError(t, err)
	require.False(t, result.Healthy)
	issue, ok := findIssue(result, IssueMissingFile)
	require.True(t, ok)
	assert.Contains(t, issue.Description, schema.SettingsFile)
}

// A bundle whose metadata omits the schema version entirely is held to the
// legacy layout.
func TestValidateLegacyBundle(t *testing.T) {
	b := newTestBundle(t, schema.V1)
	meta, err := b.ReadMetadata()
	require.NoError(t, err)
	meta.SchemaVersion = nil
	require.NoError(t, b.WriteMetadata(meta))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "issues: %+v", result.Issues)
}

func TestValidateHistorySignature(t *testing.T) {
	engine := history.NewSingleWriter()

	t.Run("garbage blob is corrupted", func(t *testing.T) {
		b := newTestBundle(t, schema.Current)
		require.NoError(t, os.WriteFile(b.FilePath(schema.HistoryFile), []byte("not a container"), 0o644))

		result, err := NewValidator(engine).Validate(context.Background(), b)
		require.NoError(t, err)
		require.False(t, result.Healthy)
		issue, ok := findIssue(result, IssueHistoryCorrupted)
		require.True(t, ok)
		assert.Contains(t, issue.Description, schema.HistoryFile)
		assert.True(t, result.HasCRDTState)
	})

	t.Run("signed blob with trailing garbage passes", func(t *testing.T) {
		b := newTestBundle(t, schema.Current)
		blob, err := engine.Seed([]byte(sampleSource))
		require.NoError(t, err)
		blob = append(blob, []byte("trailing garbage the envelope check must ignore")...)
		require.NoError(t, b.WriteHistory(blob))

		result, err := NewValidator(engine).Validate(context.Background(), b)
		require.NoError(t, err)
		_, ok := findIssue(result, IssueHistoryCorrupted)
		assert.False(t, ok, "signature check reads only the leading bytes")
	})

	t.Run("zero-length blob is no collaboration state", func(t *testing.T) {
		b := newTestBundle(t, schema.Current)
		require.NoError(t, os.WriteFile(b.FilePath(schema.HistoryFile), nil, 0o644))

		result, err := NewValidator(engine).Validate(context.Background(), b)
		require.NoError(t, err)
		assert.True(t, result.Healthy)
		assert.False(t, result.HasCRDTState)
	})
}

// A signed container in a format this engine cannot materialize gets no
// content check and no issue; the envelope already passed.
func TestValidateOpaqueHistorySkipsContentCheck(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	blob := append([]byte{}, history.Signature[:]...)
	blob = append(blob, 0x7F)
	blob = append(blob, []byte("delta format from the full engine")...)
	require.NoError(t, b.WriteHistory(blob))

	result, err := NewValidator(history.NewSingleWriter()).Validate(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, result.Healthy, "issues: %+v", result.Issues)
	assert.True(t, result.HasCRDTState)
}

func TestValidateContentMismatch(t *testing.T) {
	engine := history.NewSingleWriter()
	b := newTestBundle(t, schema.Current)
	seedHistory(t, b, engine, "an earlier draft of the document\n")

	result, err := NewValidator(engine).Validate(context.Background(), b)
	require.NoError(t, err)

	require.False(t, result.Healthy)
	issue, ok := findIssue(result, IssueContentMismatch)
	require.True(t, ok)
	assert.Equal(t, SeverityWarning, issue.Severity)
}

// Unicode normalization differences are not divergence: a decomposed source
// and a precomposed history are the same text.
func TestValidateContentComparesNFC(t *testing.T) {
	engine := history.NewSingleWriter()
	b := newTestBundle(t, schema.Current)

	decomposed := "café au lait\n"
	precomposed := "café au lait\n"
	require.NoError(t, os.WriteFile(b.FilePath(schema.SourceFile), []byte(decomposed), 0o644))
	seedHistory(t, b, engine, precomposed)

	result, err := NewValidator(engine).Validate(context.Background(), b)
	require.NoError(t, err)
	_, ok := findIssue(result, IssueContentMismatch)
	assert.False(t, ok, "NFC-equal texts must not mismatch")
}

func TestValidateNilEngineSkipsContentCheck(t *testing.T) {
	engine := history.NewSingleWriter()
	b := newTestBundle(t, schema.Current)
	seedHistory(t, b, engine, "diverged text")

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)
	assert.True(t, result.Healthy)
}

func TestValidateSizeRatio(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.WriteFile(b.FilePath(schema.SourceFile), []byte(strings.Repeat("a", 1000)), 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(schema.HistoryFile), []byte(strings.Repeat("b", 2000)), 0o644))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), result.SourceBytes)
	assert.Equal(t, int64(2000), result.HistoryBytes)
	assert.Equal(t, 2.0, result.SizeRatio())
}

func TestValidateSizeRatioEmptySource(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.WriteFile(b.FilePath(schema.SourceFile), nil, 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(schema.HistoryFile), []byte(strings.Repeat("b", 512)), 0o644))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, result.SizeRatio(), "empty source never divides by zero")
}

func TestValidateReportsPartialSync(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.WriteFile(b.FilePath(bundle.SyncSentinelName), nil, 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(".document.md.tmp"), []byte("partial"), 0o644))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)

	require.False(t, result.Healthy)
	issue, ok := findIssue(result, IssuePartialSync)
	require.True(t, ok)
	assert.Equal(t, SeverityInfo, issue.Severity)
	assert.True(t, result.Markers.InFlight)
	assert.Equal(t, []string{".document.md.tmp"}, result.Markers.TempFiles)
}

// One failing check never hides another: a bundle with a missing settings
// file, a corrupt history, and a stray sentinel reports all three.
func TestValidateReportsEveryIssue(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.Remove(b.FilePath(schema.SettingsFile)))
	require.NoError(t, os.WriteFile(b.FilePath(schema.HistoryFile), []byte("garbage"), 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(bundle.SyncSentinelName), nil, 0o644))

	result, err := NewValidator(nil).Validate(context.Background(), b)
	require.NoError(t, err)

	require.False(t, result.Healthy)
	assert.Len(t, result.Issues, 3)
	for _, kind := range []IssueKind{IssueMissingFile, IssueHistoryCorrupted, IssuePartialSync} {
		_, ok := findIssue(result, kind)
		assert.True(t, ok, "missing %s issue", kind)
	}
}

func TestValidateMissingBundleDirectory(t *testing.T) {
	b := bundle.At(filepath.Join(t.TempDir(), "gone.vellum"))
	_, err := NewValidator(nil).Validate(context.Background(), b)
	assert.Error(t, err)
}

func TestCheckForPartialSync(t *testing.T) {
	clean := newTestBundle(t, schema.Current)
	assert.False(t, CheckForPartialSync(clean))

	dirty := newTestBundle(t, schema.Current)
	require.NoError(t, os.WriteFile(dirty.FilePath(".references.bib.partial"), []byte("x"), 0o644))
	assert.True(t, CheckForPartialSync(dirty))
}

func TestScanMarkers(t *testing.T) {
	b := newTestBundle(t, schema.Current)
	require.NoError(t, os.WriteFile(b.FilePath(bundle.SyncSentinelName), nil, 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(".document.md.tmp"), nil, 0o644))
	require.NoError(t, os.WriteFile(b.FilePath(".gitignore"), []byte("*.log\n"), 0o644))

	markers, err := ScanMarkers(b)
	require.NoError(t, err)
	assert.True(t, markers.InFlight)
	assert.Equal(t, []string{".document.md.tmp"}, markers.TempFiles, "dotfiles without a temp suffix are not markers")
	assert.True(t, markers.Any())
}

func TestIssueKindRoundTrip(t *testing.T) {
	for kind, name := range map[IssueKind]string{
		IssueMissingFile:      "missing-file",
		IssueHistoryCorrupted: "history-corrupted",
		IssueContentMismatch:  "content-mismatch",
		IssuePartialSync:      "partial-sync",
		IssueStaleHistory:     "stale-history",
	} {
		assert.Equal(t, name, kind.String())
		var parsed IssueKind
		require.NoError(t, parsed.UnmarshalText([]byte(name)))
		assert.Equal(t, kind, parsed)
	}
	var k IssueKind
	assert.Error(t, k.UnmarshalText([]byte("exploded")))
}
