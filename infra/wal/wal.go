// Package wal is the engine's write-ahead command journal. Commands
// are framed into fixed-header records, checksummed, and appended to
// size-rotated segment files. Replaying the journal over the last
// snapshot rebuilds the exact book state.
package wal

import (
	"encoding/binary"
	"fmt"
	"os"
)

type Config struct {
	Dir         string
	SegmentSize int64
	// Fsync makes every append durable on its own. Leave it off and
	// call Sync per batch for throughput.
	Fsync bool
}

const DefaultSegmentSize = 64 << 20

type WAL struct {
	dir     string
	segSize int64
	fsync   bool

	current  *segment
	segIndex int
	lastSeq  uint64
}

// Open creates the journal directory if needed and resumes appending
// to the highest existing segment. A torn frame left at the tail by a
// crash is trimmed off so the segment stays appendable; the sequence
// guard picks up where the last complete frame left it.
func Open(cfg Config) (*WAL, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("wal: empty dir")
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	idxs, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	index := 0
	if len(idxs) > 0 {
		index = idxs[len(idxs)-1]
	}

	path := segmentPath(cfg.Dir, index)
	valid, lastSeq, err := recoverTail(path)
	if err != nil {
		return nil, err
	}
	if st, err := os.Stat(path); err == nil && st.Size() > valid {
		if err := os.Truncate(path, valid); err != nil {
			return nil, err
		}
	}
	// A rotation can leave the newest segment empty; the sequence
	// bound then lives in an earlier segment.
	for i := len(idxs) - 2; i >= 0 && lastSeq == 0; i-- {
		s, err := maxSeqInSegment(segmentPath(cfg.Dir, idxs[i]))
		if err != nil {
			return nil, err
		}
		lastSeq = s
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		fsync:    cfg.Fsync,
		current:  seg,
		segIndex: index,
		lastSeq:  lastSeq,
	}, nil
}

// Append frames and writes one record. Appends must carry strictly
// increasing sequence numbers; replay enforces the same rule.
func (w *WAL) Append(r *Record) error {
	if r.Seq <= w.lastSeq {
		return fmt.Errorf("wal: non-monotonic seq %d after %d", r.Seq, w.lastSeq)
	}
	payloadLen := uint32(len(r.Data))

	buf := make([]byte, headerSize+int(payloadLen)+4)
	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)
	crc := checksum(buf[:headerSize+int(payloadLen)])
	binary.BigEndian.PutUint32(buf[headerSize+int(payloadLen):], crc)

	if err := w.current.append(buf); err != nil {
		return err
	}
	w.lastSeq = r.Seq

	if w.fsync {
		if err := w.current.sync(); err != nil {
			return err
		}
	}
	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// Sync flushes the current segment to stable storage.
func (w *WAL) Sync() error {
	return w.current.sync()
}

// LastSeq is the sequence of the most recent complete append, restored
// from disk when the journal is reopened.
func (w *WAL) LastSeq() uint64 {
	return w.lastSeq
}

func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	if err := w.current.close(); err != nil {
		return err
	}
	w.segIndex++
	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes whole segments whose records are all at or
// below seq. The open segment is never removed. Used after a snapshot
// lands.
func (w *WAL) TruncateBefore(seq uint64) error {
	idxs, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	for _, i := range idxs {
		if i == w.segIndex {
			continue
		}
		path := segmentPath(w.dir, i)
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			_ = os.Remove(path)
		}
	}
	return nil
}

func (w *WAL) Close() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	return w.current.close()
}
