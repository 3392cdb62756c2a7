package wal

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const segmentPattern = "segment-*.wal"

type segment struct {
	file   *os.File
	offset int64
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.wal", index))
}

// openSegment opens or creates a segment for appending. The write
// offset picks up at the current end so a reopened journal rotates at
// the right size.
func openSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &segment{file: f, offset: st.Size()}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.file.Write(b)
	if err != nil {
		return err
	}
	s.offset += int64(n)
	return nil
}

func (s *segment) sync() error {
	return s.file.Sync()
}

func (s *segment) close() error {
	return s.file.Close()
}

// listSegments returns the existing segment indexes in ascending
// order. The zero-padded naming keeps glob order and numeric order in
// agreement, but the indexes are parsed rather than trusted.
func listSegments(dir string) ([]int, error) {
	paths, err := filepath.Glob(filepath.Join(dir, segmentPattern))
	if err != nil {
		return nil, err
	}
	idxs := make([]int, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		num := strings.TrimSuffix(strings.TrimPrefix(base, "segment-"), ".wal")
		i, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs, nil
}
