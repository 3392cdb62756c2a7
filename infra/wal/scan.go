package wal

import (
	"encoding/binary"
	"io"
	"os"
)

// recoverTail walks a segment frame by frame and returns the offset
// just past the last complete frame, plus that frame's sequence.
// Anything beyond the offset is the torn remainder of a crashed
// append; Open truncates it so the segment is appendable again.
// Checksums are not verified here, that stays with replay.
func recoverTail(path string) (offset int64, lastSeq uint64, err error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return 0, 0, err
	}
	size := st.Size()

	header := make([]byte, headerSize)
	for {
		if offset+int64(headerSize) > size {
			return offset, lastSeq, nil
		}
		if _, err := f.ReadAt(header, offset); err != nil {
			return offset, lastSeq, err
		}
		payloadLen := int64(binary.BigEndian.Uint32(header[17:21]))
		end := offset + int64(headerSize) + payloadLen + 4
		if end > size {
			return offset, lastSeq, nil
		}
		lastSeq = binary.BigEndian.Uint64(header[1:9])
		offset = end
	}
}

// maxSeqInSegment scans one segment and returns the highest sequence
// it holds. Only headers are read; payloads are seeked over. Used for
// snapshot-based truncation.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}
		seq := binary.BigEndian.Uint64(header[1:9])
		if seq > max {
			max = seq
		}
		payloadLen := binary.BigEndian.Uint32(header[17:21])
		if _, err := f.Seek(int64(payloadLen)+4, io.SeekCurrent); err != nil {
			return max, err
		}
	}
}
