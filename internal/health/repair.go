package health

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/vellum-editor/vellum/internal/bundle"
	"github.com/vellum-editor/vellum/internal/history"
	"github.com/vellum-editor/vellum/internal/schema"
)

// ActionKind enumerates the changes repair is allowed to make.
type ActionKind int

const (
	ActionMetadataSynthesized ActionKind = iota
	ActionHistoryRebuilt
	ActionMarkersRemoved
)

var actionKindNames = map[ActionKind]string{
	ActionMetadataSynthesized: "metadata-synthesized",
	ActionHistoryRebuilt:      "history-rebuilt",
	ActionMarkersRemoved:      "markers-removed",
}

// String returns the kind's stable textual name.
func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Action is one change repair made, described for the report.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Detail string     `json:"detail"`
}

// RepairResult reports what a repair pass did.
type RepairResult struct {
	// Success is true when every applicable step completed.
	Success bool `json:"success"`

	// Actions lists the changes made, in step order. A healthy bundle
	// produces an empty list.
	Actions []Action `json:"actions"`
}

// Repairer applies the fixed repair sequence to a bundle. Every step is
// conditional on the defect it fixes, so running repair on a healthy bundle
// changes nothing, and running it twice is the same as running it once.
//
// Repair never rewrites the source file, and writes metadata only when the
// file is absent.
type Repairer struct {
	engine history.Engine
	clock  bundle.Clock
}

// NewRepairer returns a repairer that rebuilds history through engine and
// stamps synthesized metadata with times from clock.
func NewRepairer(engine history.Engine, clock bundle.Clock) *Repairer {
	return &Repairer{engine: engine, clock: clock}
}

// Repair runs the sequence: source gate, metadata synthesis, history
// rebuild, marker removal. It refuses to start when the source file cannot
// be read, reporting SOURCE_NOT_READABLE.
func (r *Repairer) Repair(ctx context.Context, b bundle.Bundle) (RepairResult, error) {
	if err := ctx.Err(); err != nil {
		return RepairResult{}, err
	}

	source, err := b.ReadSource()
	if err != nil {
		return RepairResult{}, NewSourceNotReadableError(b.Path(), err)
	}

	var result RepairResult

	if !b.HasFile(schema.MetadataFile) {
		meta := bundle.NewMetadata(r.clock, b.Name(), nil)
		if err := b.WriteMetadata(meta); err != nil {
			return result, NewRepairFailedError(b.Path(), "synthesize metadata", err)
		}
		result.Actions = append(result.Actions, Action{
			Kind: ActionMetadataSynthesized,
			Detail: fmt.Sprintf("%s was missing, synthesized a default record titled %q",
				schema.MetadataFile, meta.Title),
		})
		slog.Info("repair synthesized metadata", "bundle", b.Path(), "title", meta.Title)
	}

	rebuild, err := r.historyNeedsRebuild(b)
	if err != nil {
		return result, NewRepairFailedError(b.Path(), "inspect history", err)
	}
	if rebuild {
		if r.engine == nil {
			return result, NewRepairFailedError(b.Path(), "rebuild history",
				fmt.Errorf("no replication engine available"))
		}
		blob, err := r.engine.Seed(source)
		if err != nil {
			return result, NewRepairFailedError(b.Path(), "rebuild history", err)
		}
		if err := b.WriteHistory(blob); err != nil {
			return result, NewRepairFailedError(b.Path(), "rebuild history", err)
		}
		result.Actions = append(result.Actions, Action{
			Kind: ActionHistoryRebuilt,
			Detail: fmt.Sprintf("rebuilt %s as a fresh single-writer history seeded from %s",
				schema.HistoryFile, schema.SourceFile),
		})
		slog.Info("repair rebuilt history", "bundle", b.Path(), "bytes", len(blob))
	}

	removed, err := r.removeMarkers(b)
	if err != nil {
		return result, NewRepairFailedError(b.Path(), "remove sync markers", err)
	}
	if len(removed) > 0 {
		result.Actions = append(result.Actions, Action{
			Kind:   ActionMarkersRemoved,
			Detail: "removed interrupted-write markers: " + strings.Join(removed, ", "),
		})
		slog.Info("repair removed sync markers", "bundle", b.Path(), "markers", removed)
	}

	result.Success = true
	return result, nil
}

// historyNeedsRebuild decides the history arm. Two defects qualify: a
// non-empty container that fails the signature check, and a container that
// vanished mid-write, leaving its temp file but no final blob. An absent or
// empty container with no such evidence is a valid no-collaboration state
// and is left alone.
func (r *Repairer) historyNeedsRebuild(b bundle.Bundle) (bool, error) {
	size, err := b.FileSize(schema.HistoryFile)
	if err != nil {
		return false, err
	}
	if size > 0 {
		blob, err := b.ReadHistory()
		if err != nil {
			return false, err
		}
		return !history.HasSignature(blob), nil
	}

	markers, err := ScanMarkers(b)
	if err != nil {
		return false, err
	}
	for _, name := range markers.TempFiles {
		if target, ok := bundle.TempTarget(name); ok && target == schema.HistoryFile {
			return true, nil
		}
	}
	return false, nil
}

// removeMarkers deletes the sync sentinel and every temp file, returning the
// names removed.
func (r *Repairer) removeMarkers(b bundle.Bundle) ([]string, error) {
	markers, err := ScanMarkers(b)
	if err != nil {
		return nil, err
	}
	var removed []string
	if markers.InFlight {
		if err := os.Remove(b.FilePath(bundle.SyncSentinelName)); err != nil {
			return removed, err
		}
		removed = append(removed, bundle.SyncSentinelName)
	}
	for _, name := range markers.TempFiles {
		if err := os.Remove(b.FilePath(name)); err != nil {
			return removed, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}
