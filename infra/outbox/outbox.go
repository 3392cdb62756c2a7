// Package outbox persists matcher events between the engine and the
// downstream publishers. Events are staged in the same transaction
// batch per command, then walked and marked by the broadcaster, so a
// crash between matching and publishing never loses an event.
package outbox

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// ---------------- State ---------------- //

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	default:
		return "UNKNOWN"
	}
}

// ---------------- Entry ---------------- //

// Entry is one staged event. Seq is the command sequence it came from,
// Index its position inside that command's event buffer.
type Entry struct {
	Seq         uint64
	Index       uint32
	State       State
	Attempts    uint32
	LastAttempt int64
	Payload     []byte
}

const metaSize = 1 + 4 + 8

// value encoding: [state:1][attempts:4][lastAttempt:8][payload...]
func encodeValue(state State, attempts uint32, lastAttempt int64, payload []byte) []byte {
	buf := make([]byte, metaSize+len(payload))
	buf[0] = byte(state)
	binary.BigEndian.PutUint32(buf[1:5], attempts)
	binary.BigEndian.PutUint64(buf[5:13], uint64(lastAttempt))
	copy(buf[metaSize:], payload)
	return buf
}

func decodeValue(b []byte) (State, uint32, int64, []byte, error) {
	if len(b) < metaSize {
		return 0, 0, 0, nil, errors.New("outbox: short value")
	}
	return State(b[0]),
		binary.BigEndian.Uint32(b[1:5]),
		int64(binary.BigEndian.Uint64(b[5:13])),
		b[metaSize:],
		nil
}

// ---------------- Keys ---------------- //

const keyPrefix = "evt/"

func keyFor(seq uint64, index uint32) []byte {
	return []byte(fmt.Sprintf("evt/%020d/%04d", seq, index))
}

func parseKey(b []byte) (uint64, uint32, error) {
	var seq uint64
	var idx uint32
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d/%d", &seq, &idx)
	return seq, idx, err
}

// ---------------- Outbox ---------------- //

type Outbox struct {
	db *pebble.DB
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Stage writes every payload of one command in a single synced batch.
// Either all of a command's events are staged or none are.
func (o *Outbox) Stage(seq uint64, payloads [][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	b := o.db.NewBatch()
	defer b.Close()
	for i, p := range payloads {
		if err := b.Set(keyFor(seq, uint32(i)), encodeValue(StateNew, 0, 0, p), nil); err != nil {
			return err
		}
	}
	return o.db.Apply(b, pebble.Sync)
}

// Scan walks entries in key order, filtered by state, at most limit
// (0 means unlimited). The callback may not retain Payload.
func (o *Outbox) Scan(state State, limit int, fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	n := 0
	for iter.First(); iter.Valid(); iter.Next() {
		st, attempts, last, payload, err := decodeValue(iter.Value())
		if err != nil {
			return err
		}
		if st != state {
			continue
		}
		seq, idx, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		if err := fn(Entry{
			Seq:         seq,
			Index:       idx,
			State:       st,
			Attempts:    attempts,
			LastAttempt: last,
			Payload:     payload,
		}); err != nil {
			return err
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	return iter.Error()
}

// MarkSent flips an entry to SENT and counts the attempt.
func (o *Outbox) MarkSent(seq uint64, index uint32) error {
	return o.transition(seq, index, StateSent, true)
}

// MarkAcked flips an entry to ACKED once the broker confirmed it.
func (o *Outbox) MarkAcked(seq uint64, index uint32) error {
	return o.transition(seq, index, StateAcked, false)
}

func (o *Outbox) transition(seq uint64, index uint32, to State, attempt bool) error {
	key := keyFor(seq, index)
	val, closer, err := o.db.Get(key)
	if err != nil {
		return err
	}
	_, attempts, _, payload, err := decodeValue(val)
	if err != nil {
		closer.Close()
		return err
	}
	if attempt {
		attempts++
	}
	out := encodeValue(to, attempts, time.Now().UnixNano(), payload)
	closer.Close()
	return o.db.Set(key, out, pebble.Sync)
}

// TruncateAckedBefore deletes ACKED entries with Seq < seq in one
// batch. NEW and SENT entries are kept regardless of age.
func (o *Outbox) TruncateAckedBefore(seq uint64) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: keyFor(seq, 0),
	})
	if err != nil {
		return err
	}

	b := o.db.NewBatch()
	for iter.First(); iter.Valid(); iter.Next() {
		st, _, _, _, err := decodeValue(iter.Value())
		if err != nil {
			iter.Close()
			b.Close()
			return err
		}
		if st != StateAcked {
			continue
		}
		key := append([]byte(nil), iter.Key()...)
		if err := b.Delete(key, nil); err != nil {
			iter.Close()
			b.Close()
			return err
		}
	}
	if err := iter.Close(); err != nil {
		b.Close()
		return err
	}
	return o.db.Apply(b, pebble.Sync)
}
