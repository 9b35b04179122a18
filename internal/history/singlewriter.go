package history

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// formatSnapshot is the container format byte SingleWriter writes: a plain
// snapshot container holding one actor and the full source text. The
// replication engine accepts it as a valid fresh single-writer document and
// upgrades it to its richer internal format on first merge.
const formatSnapshot byte = 0x01

// snapshotHeaderLen is signature + format byte + actor ID + payload length.
const snapshotHeaderLen = 4 + 1 + 16 + 8

// SingleWriter is the bootstrap Engine used by the repair tooling when the
// full replication engine is not linked into the process. It can seed a
// snapshot container and read back only containers it produced itself;
// every other container format is reported opaque.
type SingleWriter struct {
	// Actor identifies this writer in seeded containers.
	Actor uuid.UUID
}

// NewSingleWriter returns a SingleWriter with a fresh actor identity.
func NewSingleWriter() *SingleWriter {
	return &SingleWriter{Actor: uuid.New()}
}

// Seed implements Engine. The produced container is: signature, format byte,
// 16-byte actor ID, big-endian payload length, UTF-8 source snapshot.
func (w *SingleWriter) Seed(source []byte) ([]byte, error) {
	blob := make([]byte, 0, snapshotHeaderLen+len(source))
	blob = append(blob, Signature[:]...)
	blob = append(blob, formatSnapshot)
	blob = append(blob, w.Actor[:]...)
	blob = binary.BigEndian.AppendUint64(blob, uint64(len(source)))
	blob = append(blob, source...)
	return blob, nil
}

// Text implements Engine for snapshot containers.
func (w *SingleWriter) Text(blob []byte) (string, error) {
	if !HasSignature(blob) {
		return "", ErrNoSignature
	}
	if len(blob) < snapshotHeaderLen {
		return "", ErrTruncated
	}
	if blob[4] != formatSnapshot {
		return "", ErrOpaqueHistory
	}
	size := binary.BigEndian.Uint64(blob[21:snapshotHeaderLen])
	payload := blob[snapshotHeaderLen:]
	if uint64(len(payload)) < size {
		return "", fmt.Errorf("%w: payload %d of %d bytes", ErrTruncated, len(payload), size)
	}
	return string(payload[:size]), nil
}
