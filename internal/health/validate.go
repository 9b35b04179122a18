package health

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/text/unicode/norm"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/history"
	"github.com/vellum-editor/vellum/internal/schema"
)

// Validator runs read-only integrity checks over a bundle. It never writes;
// turning its findings into fixes is the Repairer's job.
type Validator struct {
	engine history.Engine
}

// NewValidator returns a validator. The engine is used to materialize the
// text a history container converges to; pass nil to skip the content
// comparison entirely (envelope checks still run).
func NewValidator(engine history.Engine) *Validator {
	return &Validator{engine: engine}
}

// Validate performs one full pass over the bundle: required files for the
// declared schema version, history container envelope, history/source
// content agreement, and write-interruption markers. The pass is additive;
// one failing check never hides another.
func (v *Validator) Validate(ctx context.Context, b bundle.Bundle) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !b.Exists() {
		return Result{}, fmt.Errorf("validate %s: bundle directory missing", b.Path())
	}

	result := Result{Healthy: true}

	declared := v.declaredVersion(b)
	for _, name := range schema.ExpectedFiles(declared) {
		if b.HasFile(name) {
			continue
		}
		severity := SeverityWarning
		if name == schema.SourceFile {
			severity = SeverityCritical
		}
		result.add(Issue{
			Kind:        IssueMissingFile,
			Severity:    severity,
			Description: fmt.Sprintf("required file %s is missing", name),
			Suggestion:  "run repair to recreate recoverable files",
		})
	}

	sourceSize, err := b.FileSize(schema.SourceFile)
	if err != nil {
		return Result{}, fmt.Errorf("validate %s: %w", b.Path(), err)
	}
	historySize, err := b.FileSize(schema.HistoryFile)
	if err != nil {
		return Result{}, fmt.Errorf("validate %s: %w", b.Path(), err)
	}
	result.SourceBytes = sourceSize
	result.HistoryBytes = historySize
	result.HasCRDTState = historySize > 0

	if result.HasCRDTState {
		v.checkHistory(b, &result)
	}

	markers, err := ScanMarkers(b)
	if err != nil {
		return Result{}, fmt.Errorf("validate %s: %w", b.Path(), err)
	}
	result.Markers = markers
	if markers.Any() {
		result.add(Issue{
			Kind:        IssuePartialSync,
			Severity:    SeverityInfo,
			Description: describeMarkers(markers),
			Suggestion:  "run repair to clear interrupted-write leftovers",
		})
	}

	slog.Debug("bundle validated",
		"bundle", b.Path(),
		"healthy", result.Healthy,
		"issues", len(result.Issues),
		"size_ratio", result.SizeRatio())
	return result, nil
}

// declaredVersion reads the schema version the bundle claims for itself. A
// bundle whose metadata cannot be read or parsed is held to the legacy file
// set; migration surfaces the underlying corruption with a proper error.
func (v *Validator) declaredVersion(b bundle.Bundle) schema.Version {
	meta, err := b.ReadMetadata()
	if err != nil {
		slog.Warn("metadata unreadable, assuming legacy layout",
			"bundle", b.Path(),
			"error", err)
		return schema.Oldest
	}
	return schema.Check(meta.SchemaVersion).FileSetVersion()
}

// checkHistory validates the non-empty history container: the envelope
// signature first, then, when an engine is wired in, whether the text the
// container converges to matches the source file.
func (v *Validator) checkHistory(b bundle.Bundle, result *Result) {
	blob, err := b.ReadHistory()
	if err != nil {
		slog.Warn("history unreadable", "bundle", b.Path(), "error", err)
		return
	}
	if !history.HasSignature(blob) {
		result.add(Issue{
			Kind:        IssueHistoryCorrupted,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("%s does not begin with the replication container signature", schema.HistoryFile),
			Suggestion:  "run repair to rebuild collaboration history from the source file",
		})
		return
	}
	if v.engine == nil {
		return
	}

	text, err := v.engine.Text(blob)
	if err != nil {
		// A signed container this engine cannot materialize is left to the
		// full replication engine; the envelope already passed.
		if !errors.Is(err, history.ErrOpaqueHistory) {
			slog.Debug("history text unavailable", "bundle", b.Path(), "error", err)
		}
		return
	}
	source, err := b.ReadSource()
	if err != nil {
		slog.Warn("source unreadable during content check", "bundle", b.Path(), "error", err)
		return
	}
	if norm.NFC.String(text) != norm.NFC.String(string(source)) {
		result.add(Issue{
			Kind:        IssueContentMismatch,
			Severity:    SeverityWarning,
			Description: fmt.Sprintf("collaboration history converges to different text than %s", schema.SourceFile),
			Suggestion:  "the source file is authoritative; rebuild history if the divergence persists",
		})
	}
}

func describeMarkers(m SyncMarkers) string {
	switch {
	case m.InFlight && len(m.TempFiles) > 0:
		return fmt.Sprintf("synchronization was interrupted: %s present plus %d temporary file(s)",
			bundle.SyncSentinelName, len(m.TempFiles))
	case m.InFlight:
		return fmt.Sprintf("synchronization was interrupted: %s present", bundle.SyncSentinelName)
	default:
		return fmt.Sprintf("synchronization was interrupted: %d temporary file(s) left behind", len(m.TempFiles))
	}
}
