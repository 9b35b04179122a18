// Package migrate upgrades bundles from older schema versions to the
// current one. Migrations are additive: each version step creates the files
// that version introduced and nothing else, so the source file is never
// rewritten and a migrated bundle keeps every byte of its content.
package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/schema"
)

// defaultSettings is the settings record v2→v3 writes for bundles that
// predate per-document typesetting settings.
const defaultSettings = `{
  "paper_size": "a4",
  "base_font_size": 11,
  "margins": "default"
}
`

// Report describes what one migration pass did.
type Report struct {
	// Class is the classification that drove the pass.
	Class schema.Classification `json:"-"`

	// From and To are the version range covered. Equal when the bundle was
	// already current and nothing happened.
	From schema.Version `json:"from"`
	To   schema.Version `json:"to"`

	// Migrated is true when any version step ran.
	Migrated bool `json:"migrated"`

	// Actions lists what each step did, in order.
	Actions []string `json:"actions,omitempty"`
}

// Migrator upgrades bundles in place. The clock stamps the metadata's
// modification time after a successful pass.
type Migrator struct {
	clock bundle.Clock
}

// New returns a migrator stamping time from clock.
func New(clock bundle.Clock) *Migrator {
	return &Migrator{clock: clock}
}

// Migrate brings the bundle to the current schema version.
//
// A bundle already at current is a successful no-op; running Migrate twice
// is the same as running it once. Newer-than-app bundles are refused, as are
// bundles whose stored version this build does not recognize. On any error
// the bundle's source and existing metadata are exactly as they were.
func (m *Migrator) Migrate(ctx context.Context, b bundle.Bundle) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	if !b.HasFile(schema.SourceFile) {
		return Report{}, &MigrationError{
			Code:    ErrCodeMissingFile,
			Message: fmt.Sprintf("required file %s is missing", schema.SourceFile),
			Bundle:  b.Path(),
		}
	}
	if !b.HasFile(schema.MetadataFile) {
		return Report{}, &MigrationError{
			Code:    ErrCodeMissingFile,
			Message: fmt.Sprintf("required file %s is missing", schema.MetadataFile),
			Bundle:  b.Path(),
		}
	}

	meta, err := b.ReadMetadata()
	if err != nil {
		return Report{}, &MigrationError{
			Code:    ErrCodeCorruptedDocument,
			Message: "metadata is unparseable",
			Bundle:  b.Path(),
			Err:     err,
		}
	}

	class := schema.Check(meta.SchemaVersion)
	report := Report{Class: class, To: schema.Current}

	switch class.Kind {
	case schema.ClassNewerThanApp:
		return Report{}, &MigrationError{
			Code: ErrCodeNewerThanApp,
			Message: fmt.Sprintf("bundle schema version %d is newer than this application understands (current %d)",
				class.Raw, int(schema.Current)),
			Bundle: b.Path(),
		}
	case schema.ClassCurrent:
		report.From = schema.Current
		return report, nil
	}

	from := class.From
	if !from.Valid() {
		return Report{}, &MigrationError{
			Code:    ErrCodeUnsupportedVersion,
			Message: fmt.Sprintf("stored schema version %d is not recognized", int(from)),
			Bundle:  b.Path(),
		}
	}
	report.From = from

	for v := from + 1; v <= schema.Current; v++ {
		action, err := m.step(b, v)
		if err != nil {
			return report, &MigrationError{
				Code:    ErrCodeMigrationFailed,
				Message: fmt.Sprintf("step to %s failed", v),
				Bundle:  b.Path(),
				Err:     err,
			}
		}
		if action != "" {
			report.Actions = append(report.Actions, action)
		}
	}

	// Stamp the metadata last, so an interrupted migration re-runs its
	// remaining (idempotent) steps next time instead of looking complete.
	current := int(schema.Current)
	meta.SchemaVersion = &current
	meta.ModifiedAt = m.clock.Now().UTC()
	meta.AppVersion = schema.AppVersion
	if err := b.WriteMetadata(meta); err != nil {
		return report, &MigrationError{
			Code:    ErrCodeMigrationFailed,
			Message: "write migrated metadata",
			Bundle:  b.Path(),
			Err:     err,
		}
	}
	report.Migrated = true

	slog.Info("bundle migrated",
		"bundle", b.Path(),
		"from", from.String(),
		"to", schema.Current.String(),
		"steps", len(report.Actions))
	return report, nil
}

// step creates what version v added, skipping files that already exist so
// re-running after an interruption never clobbers content.
func (m *Migrator) step(b bundle.Bundle, v schema.Version) (string, error) {
	switch v {
	case schema.V2:
		if b.HasFile(schema.BibliographyFile) {
			return "", nil
		}
		if err := bundle.WriteFileAtomic(b.FilePath(schema.BibliographyFile), nil, 0o644); err != nil {
			return "", err
		}
		return fmt.Sprintf("created empty %s", schema.BibliographyFile), nil
	case schema.V3:
		if b.HasFile(schema.SettingsFile) {
			return "", nil
		}
		if err := bundle.WriteFileAtomic(b.FilePath(schema.SettingsFile), []byte(defaultSettings), 0o644); err != nil {
			return "", err
		}
		return fmt.Sprintf("created %s with default typesetting settings", schema.SettingsFile), nil
	default:
		return "", fmt.Errorf("no step defined for %s", v)
	}
}
