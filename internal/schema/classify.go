package schema

import "fmt"

// ClassKind enumerates the four outcomes of comparing a bundle's stored
// schema version against Current. Every call site switches over all four;
// there is no nullable-integer special casing anywhere else in the system.
type ClassKind int

const (
	// ClassCurrent means the bundle was written at exactly Current.
	ClassCurrent ClassKind = iota

	// ClassNeedsMigration means the bundle records an older version and must
	// be migrated (after a backup) before normal use.
	ClassNeedsMigration

	// ClassNewerThanApp means the bundle was written by a newer application.
	// Opening is refused outright: this build cannot know what that version's
	// file set or metadata fields mean, and a partial open risks data loss.
	ClassNewerThanApp

	// ClassLegacy means the metadata records no version at all. Legacy
	// bundles predate version stamping and are treated as Oldest.
	ClassLegacy
)

// String returns the kind's stable textual name, as used in reports and logs.
func (k ClassKind) String() string {
	switch k {
	case ClassCurrent:
		return "current"
	case ClassNeedsMigration:
		return "needs-migration"
	case ClassNewerThanApp:
		return "newer-than-app"
	case ClassLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("ClassKind(%d)", int(k))
	}
}

// Classification is the tagged result of a version check.
//
// From is the version the bundle effectively stands at: the stored version
// for current and migratable bundles, Oldest for legacy ones. It is not set
// for ClassNewerThanApp; Raw carries that case's stored number verbatim,
// which need not be a Version this build knows.
type Classification struct {
	Kind ClassKind
	From Version
	Raw  int
}

// Check classifies a bundle's stored schema version against Current.
// A nil stored version means the metadata records no version (legacy).
func Check(stored *int) Classification {
	switch {
	case stored == nil:
		return Classification{Kind: ClassLegacy, From: Oldest}
	case *stored == int(Current):
		return Classification{Kind: ClassCurrent, From: Current}
	case *stored < int(Current):
		return Classification{Kind: ClassNeedsMigration, From: Version(*stored)}
	default:
		return Classification{Kind: ClassNewerThanApp, Raw: *stored}
	}
}

// FileSetVersion returns the schema version whose file set a bundle of this
// classification is held to. Newer-than-app bundles are held to the newest
// layout this build knows; everything else answers for its own version.
func (c Classification) FileSetVersion() Version {
	if c.Kind == ClassNewerThanApp {
		return Current
	}
	return c.From
}

// CanOpen reports whether a bundle with this classification may be opened.
// Every classification is openable except newer-than-app.
func (c Classification) CanOpen() bool {
	return c.Kind != ClassNewerThanApp
}

// String renders the classification for logs and text reports.
func (c Classification) String() string {
	switch c.Kind {
	case ClassNeedsMigration:
		return fmt.Sprintf("needs-migration(from %s)", c.From)
	case ClassNewerThanApp:
		return fmt.Sprintf("newer-than-app(%d)", c.Raw)
	default:
		return c.Kind.String()
	}
}
