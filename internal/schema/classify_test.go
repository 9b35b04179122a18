package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(n int) *int { return &n }

func TestCheckEveryOlderVersionNeedsMigration(t *testing.T) {
	for n := int(Oldest); n < int(Current); n++ {
		cls := Check(intp(n))
		assert.Equal(t, ClassNeedsMigration, cls.Kind, "version %d", n)
		assert.Equal(t, Version(n), cls.From, "version %d", n)
	}
}

func TestCheckCurrent(t *testing.T) {
	cls := Check(intp(int(Current)))
	assert.Equal(t, ClassCurrent, cls.Kind)
}

func TestCheckNilIsLegacy(t *testing.T) {
	cls := Check(nil)
	assert.Equal(t, ClassLegacy, cls.Kind)
	assert.Equal(t, Oldest, cls.From, "legacy bundles are treated as the oldest known version")
}

func TestCheckNewerThanApp(t *testing.T) {
	for _, n := range []int{int(Current) + 1, int(Current) + 5, 99} {
		cls := Check(intp(n))
		assert.Equal(t, ClassNewerThanApp, cls.Kind, "version %d", n)
		assert.Equal(t, n, cls.Raw, "raw stored number is carried verbatim")
	}
}

func TestFileSetVersion(t *testing.T) {
	assert.Equal(t, Current, Check(intp(int(Current))).FileSetVersion())
	assert.Equal(t, V2, Check(intp(2)).FileSetVersion())
	assert.Equal(t, Oldest, Check(nil).FileSetVersion())
	assert.Equal(t, Current, Check(intp(99)).FileSetVersion(), "unknown newer layouts are held to the newest known set")
}

func TestCanOpen(t *testing.T) {
	assert.True(t, Check(nil).CanOpen())
	for n := int(Oldest); n <= int(Current); n++ {
		assert.True(t, Check(intp(n)).CanOpen(), "version %d", n)
	}
	assert.False(t, Check(intp(int(Current)+1)).CanOpen())
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "current", Check(intp(int(Current))).String())
	assert.Equal(t, "legacy", Check(nil).String())
	assert.Equal(t, "needs-migration(from v1)", Check(intp(1)).String())
	assert.Equal(t, "newer-than-app(9)", Check(intp(9)).String())
}

func TestExpectedFilesGrowStrictly(t *testing.T) {
	prev := ExpectedFiles(Oldest)
	for v := Oldest + 1; v <= Current; v++ {
		cur := ExpectedFiles(v)
		require.Greater(t, len(cur), len(prev), "file set must strictly grow at %s", v)
		for _, name := range prev {
			assert.Contains(t, cur, name, "%s dropped a file required at %s", v, v-1)
		}
		prev = cur
	}
}

func TestExpectedFilesOldestSubsetOfCurrent(t *testing.T) {
	current := ExpectedFiles(Current)
	for _, name := range ExpectedFiles(Oldest) {
		assert.Contains(t, current, name)
	}
}

func TestExpectedFilesReturnsCopy(t *testing.T) {
	a := ExpectedFiles(Current)
	a[0] = "mutated"
	b := ExpectedFiles(Current)
	assert.Equal(t, SourceFile, b[0])
}

func TestHistoryIsKnownButNeverRequired(t *testing.T) {
	for v := Oldest; v <= Current; v++ {
		assert.NotContains(t, ExpectedFiles(v), HistoryFile, "%s", v)
		assert.Contains(t, KnownFiles(v), HistoryFile, "%s", v)
	}
}

func TestFromInt(t *testing.T) {
	v, ok := FromInt(2)
	assert.True(t, ok)
	assert.Equal(t, V2, v)

	_, ok = FromInt(0)
	assert.False(t, ok)
	_, ok = FromInt(int(Current) + 1)
	assert.False(t, ok)
}
