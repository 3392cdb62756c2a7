package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"tyr/domain/orderbook"
)

// file layout: [magic:8][digest:32][zstd(gob(Snapshot))...]
var magic = [8]byte{'T', 'Y', 'R', 'S', 'N', 'A', 'P', '1'}

const headerLen = 8 + 32

type Writer struct {
	dir string
	enc *zstd.Encoder
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	return &Writer{dir: dir, enc: enc}, nil
}

func fileFor(dir string, seq uint64) string {
	return filepath.Join(dir, fmt.Sprintf("snapshot-%020d.snap", seq))
}

// Write seals one image. The file lands under a temporary name and is
// renamed into place, so a crash never leaves a half-written snapshot
// with a valid name.
func (w *Writer) Write(seq uint64, books []orderbook.BookState) (string, error) {
	s := Snapshot{
		Version: FormatVersion,
		ID:      uuid.NewString(),
		Seq:     seq,
		Created: time.Now().UTC(),
		Books:   books,
	}

	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&s); err != nil {
		return "", err
	}
	compressed := w.enc.EncodeAll(payload.Bytes(), make([]byte, 0, payload.Len()/2))
	digest := blake3.Sum256(compressed)

	buf := make([]byte, 0, headerLen+len(compressed))
	buf = append(buf, magic[:]...)
	buf = append(buf, digest[:]...)
	buf = append(buf, compressed...)

	path := fileFor(w.dir, seq)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return s.ID, nil
}

// Prune deletes all but the newest keep snapshots.
func (w *Writer) Prune(keep int) error {
	seqs, err := listSnapshots(w.dir)
	if err != nil {
		return err
	}
	if len(seqs) <= keep {
		return nil
	}
	for _, seq := range seqs[:len(seqs)-keep] {
		if err := os.Remove(fileFor(w.dir, seq)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
