package health

import (
	"fmt"
	"log/slog"

	"github.com/vellum-editor/vellum/internal/bundle"
)

// SyncMarkers is a snapshot of the write-interruption evidence inside a
// bundle directory. Editors take it once per validation pass; there is no
// reason to rescan between checks within the same pass.
type SyncMarkers struct {
	// InFlight reports the presence of the sync sentinel the writer drops
	// before a multi-file update and removes after it completes.
	InFlight bool `json:"in_flight"`

	// TempFiles lists leftover atomic-write temporaries, by name.
	TempFiles []string `json:"temp_files,omitempty"`
}

// Any reports whether the snapshot holds any interruption evidence.
func (m SyncMarkers) Any() bool {
	return m.InFlight || len(m.TempFiles) > 0
}

// ScanMarkers walks the bundle directory once and collects every
// write-interruption marker.
func ScanMarkers(b bundle.Bundle) (SyncMarkers, error) {
	names, err := b.List()
	if err != nil {
		return SyncMarkers{}, fmt.Errorf("scan sync markers: %w", err)
	}
	var markers SyncMarkers
	for _, name := range names {
		switch {
		case name == bundle.SyncSentinelName:
			markers.InFlight = true
		case bundle.IsTempName(name):
			markers.TempFiles = append(markers.TempFiles, name)
		}
	}
	return markers, nil
}

// CheckForPartialSync is the launch-time trigger: it reports whether the
// bundle shows any evidence of an interrupted synchronization. An unreadable
// bundle directory reports false; the subsequent open will surface the real
// error.
func CheckForPartialSync(b bundle.Bundle) bool {
	markers, err := ScanMarkers(b)
	if err != nil {
		slog.Warn("partial sync check failed", "bundle", b.Path(), "error", err)
		return false
	}
	return markers.Any()
}
