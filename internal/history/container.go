// Package history is the narrow envelope over the replication engine's
// binary container. The engine owns everything inside the container: merge
// semantics, causal history, the peer sync protocol. This subsystem never
// parses that interior; it checks the fixed leading signature, asks the
// engine to materialize text or to seed a fresh history, and nothing more.
package history

import (
	"bytes"
	"errors"
)

// Signature is the fixed 4-byte magic every non-empty history container
// starts with. A non-empty history file whose leading bytes differ is
// corrupted (typically a torn or interleaved write).
var Signature = [4]byte{0x85, 0x6F, 0x4A, 0x83}

// Sentinel container errors.
var (
	// ErrNoSignature marks a container whose leading bytes are not the
	// engine signature.
	ErrNoSignature = errors.New("history container: bad signature")

	// ErrOpaqueHistory marks a container that carries the signature but a
	// format this process cannot materialize text from. Validation treats
	// such containers as healthy and skips the content comparison.
	ErrOpaqueHistory = errors.New("history container: format is opaque to this process")

	// ErrTruncated marks a container that ends before its declared payload.
	ErrTruncated = errors.New("history container: truncated")
)

// HasSignature reports whether blob begins with the engine's container
// signature. It inspects only the leading four bytes; trailing content is
// the engine's business.
func HasSignature(blob []byte) bool {
	return len(blob) >= len(Signature) && bytes.Equal(blob[:len(Signature)], Signature[:])
}
