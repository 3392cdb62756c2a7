package snapshot

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

// listSnapshots returns the sequence numbers with an image on disk,
// ascending.
func listSnapshots(dir string) ([]uint64, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "snapshot-*.snap"))
	if err != nil {
		return nil, err
	}
	seqs := make([]uint64, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		num := strings.TrimSuffix(strings.TrimPrefix(base, "snapshot-"), ".snap")
		seq, err := strconv.ParseUint(num, 10, 64)
		if err != nil {
			continue
		}
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	return seqs, nil
}

// LoadLatest opens the newest image in dir. No directory or no images
// is not an error; it returns nil and the engine starts cold.
func LoadLatest(dir string) (*Snapshot, error) {
	seqs, err := listSnapshots(dir)
	if err != nil {
		return nil, err
	}
	if len(seqs) == 0 {
		return nil, nil
	}
	return Load(fileFor(dir, seqs[len(seqs)-1]))
}

// Load reads and verifies one image.
func Load(path string) (*Snapshot, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) < headerLen || !bytes.Equal(buf[:8], magic[:]) {
		return nil, fmt.Errorf("snapshot %s: not a snapshot file", path)
	}
	compressed := buf[headerLen:]
	digest := blake3.Sum256(compressed)
	if !bytes.Equal(digest[:], buf[8:headerLen]) {
		return nil, fmt.Errorf("snapshot %s: digest mismatch", path)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	payload, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}

	var s Snapshot
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&s); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	if s.Version != FormatVersion {
		return nil, fmt.Errorf("snapshot %s: format version %d, want %d", path, s.Version, FormatVersion)
	}
	return &s, nil
}
