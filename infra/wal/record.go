package wal

import "time"

type RecordType uint8

const (
	// RecordCommand frames one wire-encoded order command.
	RecordCommand RecordType = iota
	// RecordSymbol frames a wire-encoded symbol spec. Written when a
	// symbol is admitted so replay can rebuild books that never traded.
	RecordSymbol
)

// Record is one journal entry. Seq is the engine's global command
// sequence; replay insists it is strictly increasing across segments.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// headerSize is the fixed frame prefix:
// [type:1][seq:8][time:8][len:4]. The payload follows, then a crc:4
// over header+payload.
const headerSize = 1 + 8 + 8 + 4
