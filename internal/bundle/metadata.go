package bundle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blang/semver/v4"
	"github.com/google/uuid"

	"github.com/vellum-editor/vellum/internal/schema"
)

// Metadata is the versioned record stored in the bundle's metadata file.
//
// Timestamps are normalized to UTC on encode so that the textual form is
// timezone-stable regardless of where the document was last written.
// SchemaVersion is a pointer because its absence is meaningful: bundles
// written before version stamping record nothing and classify as legacy.
type Metadata struct {
	// ID is the stable document identifier. Together with the bundle's
	// location it forms the bundle's identity.
	ID uuid.UUID `json:"id"`

	// Title is the user-visible document title.
	Title string `json:"title"`

	// Authors lists the document authors in display order.
	Authors []string `json:"authors"`

	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`

	// LinkedDocument optionally references the external source document this
	// bundle was imported from (for example a cloud document URL).
	LinkedDocument string `json:"linked_document,omitempty"`

	// AppVersion is the application version that last wrote this record,
	// in semver form. Diagnostic only; compatibility is governed by
	// SchemaVersion.
	AppVersion string `json:"app_version"`

	// SchemaVersion is the bundle schema version, absent for legacy bundles.
	SchemaVersion *int `json:"schema_version,omitempty"`
}

// NewMetadata returns a metadata record for a freshly created document:
// current schema version, a new document ID, and creation/modification
// stamps from clock.
func NewMetadata(clock Clock, title string, authors []string) Metadata {
	now := clock.Now().UTC()
	v := int(schema.Current)
	if authors == nil {
		authors = []string{}
	}
	return Metadata{
		ID:            uuid.New(),
		Title:         title,
		Authors:       authors,
		CreatedAt:     now,
		ModifiedAt:    now,
		AppVersion:    schema.AppVersion,
		SchemaVersion: &v,
	}
}

// StoredVersion returns the recorded schema version, nil for legacy records.
// The returned pointer aliases a copy, never the record itself.
func (m Metadata) StoredVersion() *int {
	if m.SchemaVersion == nil {
		return nil
	}
	v := *m.SchemaVersion
	return &v
}

// normalized returns a copy with timestamps converted to UTC and stripped of
// monotonic clock readings, and with a non-nil author list. Encoding always
// goes through this, which is what makes encode/decode a lossless
// round-trip: the textual form is already in normal form.
func (m Metadata) normalized() Metadata {
	out := m
	out.CreatedAt = m.CreatedAt.Round(0).UTC()
	out.ModifiedAt = m.ModifiedAt.Round(0).UTC()
	if out.Authors == nil {
		out.Authors = []string{}
	}
	return out
}

// Encode serializes the record to its canonical textual form: two-space
// indented JSON, UTC RFC 3339 timestamps, trailing newline.
func (m Metadata) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.normalized()); err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMetadata parses a metadata record from its textual form.
func DecodeMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

// Validate checks the record's internal consistency: a non-nil document ID,
// a parseable AppVersion when one is recorded, and a positive schema version
// when one is recorded. It does not consult the schema ladder; that is the
// version checker's job.
func (m Metadata) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("metadata: document id is unset")
	}
	if m.AppVersion != "" {
		if _, err := semver.Parse(m.AppVersion); err != nil {
			return fmt.Errorf("metadata: app version %q: %w", m.AppVersion, err)
		}
	}
	if m.SchemaVersion != nil && *m.SchemaVersion < 1 {
		return fmt.Errorf("metadata: schema version %d out of range", *m.SchemaVersion)
	}
	return nil
}

// WrittenByNewerApp reports whether the record was last written by an
// application release newer than this build. Purely diagnostic: schema
// version, not app version, decides openability.
func (m Metadata) WrittenByNewerApp() bool {
	if m.AppVersion == "" {
		return false
	}
	recorded, err := semver.Parse(m.AppVersion)
	if err != nil {
		return false
	}
	current, err := semver.Parse(schema.AppVersion)
	if err != nil {
		return false
	}
	return recorded.GT(current)
}
