// Package snapshot persists whole-engine state images. A snapshot is
// the gob encoding of every book's exported state, zstd-compressed and
// sealed with a blake3 digest. Loading the newest snapshot and
// replaying the journal past its sequence reproduces the engine
// exactly.
package snapshot

import (
	"time"

	"tyr/domain/orderbook"
)

// FormatVersion guards the payload layout. A loader refuses images
// written by a different version instead of misreading them.
const FormatVersion = 1

type Snapshot struct {
	Version int
	// ID names this image uniquely across restarts and machines.
	ID string
	// Seq is the last command applied before the image was taken.
	Seq     uint64
	Created time.Time
	Books   []orderbook.BookState
}
