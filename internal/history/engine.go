package history

// Engine is the interface the integrity layer holds to the replication
// engine. Two narrow operations are all it ever needs: seeding a fresh
// single-writer history from authoritative source text (repair discards a
// corrupted history and requests exactly this), and materializing the text a
// container converges to (validation compares it against the source file).
//
// Implementations must treat the source bytes as UTF-8 and must never write
// to the filesystem themselves; the caller decides where containers live.
type Engine interface {
	// Seed produces a brand-new history container whose converged text is
	// exactly source, with no prior causal history.
	Seed(source []byte) ([]byte, error)

	// Text returns the plain text the container converges to. Engines that
	// cannot interpret the container's interior format return
	// ErrOpaqueHistory; callers then skip text-level checks.
	Text(blob []byte) (string, error)
}
