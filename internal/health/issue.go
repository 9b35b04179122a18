package health

import "fmt"

// IssueKind enumerates the problems validation can report about a bundle.
type IssueKind int

const (
	// IssueMissingFile: a file required by the bundle's declared schema
	// version is absent from disk.
	IssueMissingFile IssueKind = iota

	// IssueHistoryCorrupted: the history container is non-empty but does not
	// start with the replication engine's signature.
	IssueHistoryCorrupted

	// IssueContentMismatch: the text the history container converges to
	// differs from the authoritative source file.
	IssueContentMismatch

	// IssuePartialSync: write-interruption markers are present in the bundle
	// directory.
	IssuePartialSync

	// IssueStaleHistory: the history container is disproportionately large
	// for the source it tracks. Never emitted by this validator; the
	// size ratio is exposed as a diagnostic and the verdict is left to the
	// replication engine, pending a product decision on thresholds.
	IssueStaleHistory
)

var issueKindNames = map[IssueKind]string{
	IssueMissingFile:      "missing-file",
	IssueHistoryCorrupted: "history-corrupted",
	IssueContentMismatch:  "content-mismatch",
	IssuePartialSync:      "partial-sync",
	IssueStaleHistory:     "stale-history",
}

// String returns the kind's stable textual name.
func (k IssueKind) String() string {
	if name, ok := issueKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IssueKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler so issues serialize with
// readable kind names in reports and the catalog journal.
func (k IssueKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *IssueKind) UnmarshalText(text []byte) error {
	for kind, name := range issueKindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown issue kind %q", text)
}

// Severity grades an issue.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityInfo:     "info",
	SeverityWarning:  "warning",
	SeverityCritical: "critical",
}

// String returns the severity's stable textual name.
func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	for sev, name := range severityNames {
		if name == string(text) {
			*s = sev
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Issue is one problem found during validation.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Suggestion  string    `json:"suggestion"`
}

// Result aggregates one validation pass over a bundle.
type Result struct {
	// Healthy is true when the pass found no issues at all.
	Healthy bool `json:"healthy"`

	// Issues lists everything the pass found, in detection order.
	Issues []Issue `json:"issues"`

	// HasCRDTState is true when a non-empty history container is present.
	// A document with no collaboration history is a valid document, so a
	// false here is not an issue by itself.
	HasCRDTState bool `json:"has_crdt_state"`

	// SourceBytes and HistoryBytes are the on-disk sizes observed during
	// the pass.
	SourceBytes  int64 `json:"source_bytes"`
	HistoryBytes int64 `json:"history_bytes"`

	// Markers is the write-interruption snapshot taken during the pass.
	Markers SyncMarkers `json:"markers"`
}

// SizeRatio returns history size over source size, the diagnostic signal for
// a history container that has grown out of proportion. Zero when the source
// is empty. No verdict is derived from it here.
func (r Result) SizeRatio() float64 {
	if r.SourceBytes == 0 {
		return 0
	}
	return float64(r.HistoryBytes) / float64(r.SourceBytes)
}

// add appends an issue and flips the verdict.
func (r *Result) add(issue Issue) {
	r.Issues = append(r.Issues, issue)
	r.Healthy = false
}
