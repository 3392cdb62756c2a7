package snapshot

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"tyr/api"
	"tyr/domain/orderbook"
)

func bookState(t *testing.T, symbol uint32, orders int) orderbook.BookState {
	t.Helper()
	b := orderbook.NewOrderBook(api.SymbolSpec{SymbolID: symbol}, orderbook.Config{PoolCapacity: 64})
	for i := 0; i < orders; i++ {
		cmd := &api.OrderCommand{
			UID:     1,
			OrderID: uint64(i + 1),
			Symbol:  symbol,
			Action:  api.ActionBid,
			Type:    api.GTC,
			Price:   int64(100 - i),
			Size:    10,
		}
		b.Apply(cmd)
		require.Empty(t, cmd.Events)
	}
	return *b.ExportState()
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	books := []orderbook.BookState{bookState(t, 1, 5), bookState(t, 2, 3)}
	id, err := w.Write(42, books)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	s, err := LoadLatest(dir)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, FormatVersion, s.Version)
	require.Equal(t, id, s.ID)
	require.EqualValues(t, 42, s.Seq)
	require.Len(t, s.Books, 2)
	require.Len(t, s.Books[0].Orders, 5)

	// the restored image must build working books
	rb, err := orderbook.NewOrderBookFromState(&s.Books[0])
	require.NoError(t, err)
	require.Equal(t, 5, rb.Live())
}

func TestLoadLatestPicksNewest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	for _, seq := range []uint64{10, 30, 20} {
		_, err := w.Write(seq, []orderbook.BookState{bookState(t, 1, 1)})
		require.NoError(t, err)
	}

	s, err := LoadLatest(dir)
	require.NoError(t, err)
	require.EqualValues(t, 30, s.Seq)
}

func TestLoadLatestColdStart(t *testing.T) {
	s, err := LoadLatest(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = LoadLatest("/nonexistent/path")
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestLoadRejectsTamperedImage(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	_, err = w.Write(7, []orderbook.BookState{bookState(t, 1, 2)})
	require.NoError(t, err)

	path := fileFor(dir, 7)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	buf[len(buf)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, buf, 0o644))

	_, err = Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "digest mismatch")
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)
	for seq := uint64(1); seq <= 5; seq++ {
		_, err := w.Write(seq, []orderbook.BookState{bookState(t, 1, 1)})
		require.NoError(t, err)
	}

	require.NoError(t, w.Prune(2))

	seqs, err := listSnapshots(dir)
	require.NoError(t, err)
	require.Equal(t, []uint64{4, 5}, seqs)
}
