package schema

import "fmt"

// AppVersion is the application version stamped into bundle metadata by
// every writer in this process. Bundle schema compatibility is governed by
// Version, not by AppVersion; the latter is diagnostic.
const AppVersion = "0.4.0"

// Version is a bundle schema version. Versions are a small, totally ordered,
// integer-backed set: a bundle written at version N contains at least the
// files required by N, and the required file set only grows as the version
// increases.
type Version int

const (
	// V1 is the original bundle layout: source plus metadata. Bundles whose
	// metadata records no version at all are treated as V1.
	V1 Version = 1

	// V2 added the bibliography file.
	V2 Version = 2

	// V3 added per-document typesetting settings and introduced the optional
	// replication history container as a known filename.
	V3 Version = 3

	// Current is the schema version this build of the application writes.
	Current = V3

	// Oldest is the lowest version this build can migrate from.
	Oldest = V1
)

// Bundle filenames. These are fixed: every component that touches a bundle
// resolves file paths through these constants.
const (
	// SourceFile is the authoritative plain-text document source.
	SourceFile = "document.md"

	// MetadataFile is the versioned metadata record.
	MetadataFile = "metadata.json"

	// BibliographyFile holds bibliography data. May be empty, must exist
	// from V2 on.
	BibliographyFile = "references.bib"

	// SettingsFile holds per-document typesetting settings. Required from V3.
	SettingsFile = "settings.json"

	// HistoryFile is the replication engine's binary container. Optional at
	// every version; its presence means the document has collaboration
	// history.
	HistoryFile = "history.crdt"
)

// Valid reports whether v is a version this build knows the file set for.
func (v Version) Valid() bool {
	return v >= Oldest && v <= Current
}

// String returns the version in its textual "v<N>" form.
func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// FromInt converts a raw stored version number to a Version, reporting
// whether the number names a version this build knows.
func FromInt(n int) (Version, bool) {
	v := Version(n)
	return v, v.Valid()
}

// ExpectedFiles returns the minimum file set a conformant bundle of version v
// must contain. The validator flags each absent name as a missing-file issue
// and migration creates the names the target version adds. The returned slice
// is a fresh copy.
func ExpectedFiles(v Version) []string {
	var files []string
	switch {
	case v >= V3:
		files = []string{SourceFile, MetadataFile, BibliographyFile, SettingsFile}
	case v >= V2:
		files = []string{SourceFile, MetadataFile, BibliographyFile}
	default:
		files = []string{SourceFile, MetadataFile}
	}
	out := make([]string, len(files))
	copy(out, files)
	return out
}

// KnownFiles returns every filename a bundle of version v may legitimately
// contain: the required set plus optional names. The history container is
// optional at every version (a document with no collaboration history is
// still a valid document).
func KnownFiles(v Version) []string {
	return append(ExpectedFiles(v), HistoryFile)
}
