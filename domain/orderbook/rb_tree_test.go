package orderbook

import (
	"sort"
	"testing"
)

func treePrices(tr *RBTree) []int64 {
	var out []int64
	tr.ForEachAscending(func(lvl *PriceLevel) bool {
		out = append(out, lvl.Price)
		return true
	})
	return out
}

func TestTreeOrderedTraversal(t *testing.T) {
	tr := NewRBTree()
	prices := []int64{50, 20, 80, 10, 30, 70, 90, 25, 85, 60}
	for _, p := range prices {
		tr.GetOrCreate(p)
	}
	if tr.Size() != len(prices) {
		t.Fatalf("size %d", tr.Size())
	}

	want := append([]int64(nil), prices...)
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	got := treePrices(tr)
	if len(got) != len(want) {
		t.Fatalf("traversal covered %d of %d levels", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ascending walk out of order: %v", got)
		}
	}

	i := len(want)
	tr.ForEachDescending(func(lvl *PriceLevel) bool {
		i--
		if lvl.Price != want[i] {
			t.Fatalf("descending walk out of order at %d: %d", i, lvl.Price)
		}
		return true
	})
}

func TestTreeBestTracksExtremes(t *testing.T) {
	tr := NewRBTree()
	for _, p := range []int64{50, 20, 80, 10, 90} {
		tr.GetOrCreate(p)
	}
	if tr.BestMin().Price != 10 || tr.BestMax().Price != 90 {
		t.Fatalf("extremes %d/%d", tr.BestMin().Price, tr.BestMax().Price)
	}

	tr.Delete(10)
	if tr.BestMin().Price != 20 {
		t.Errorf("min after delete: %d", tr.BestMin().Price)
	}
	tr.Delete(90)
	if tr.BestMax().Price != 80 {
		t.Errorf("max after delete: %d", tr.BestMax().Price)
	}
	tr.Delete(50)
	if got := treePrices(tr); len(got) != 2 || got[0] != 20 || got[1] != 80 {
		t.Errorf("levels after middle delete: %v", got)
	}

	tr.Delete(20)
	tr.Delete(80)
	if tr.Size() != 0 || tr.BestMin() != nil || tr.BestMax() != nil {
		t.Error("empty tree must report no best level")
	}
}

func TestTreeGetOrCreateIdempotent(t *testing.T) {
	tr := NewRBTree()
	a := tr.GetOrCreate(100)
	b := tr.GetOrCreate(100)
	if a != b {
		t.Error("same price must map to one level")
	}
	if tr.Size() != 1 {
		t.Errorf("size %d", tr.Size())
	}
	if tr.Find(101) != nil {
		t.Error("find of absent price must be nil")
	}
	if tr.Delete(101) {
		t.Error("delete of absent price must report false")
	}
}

func TestTreeChurn(t *testing.T) {
	tr := NewRBTree()
	live := map[int64]bool{}

	// deterministic mixed insert/delete load
	x := uint64(88172645463325252)
	next := func() uint64 {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
		return x
	}
	for i := 0; i < 4000; i++ {
		p := int64(next()%512) + 1
		if live[p] {
			tr.Delete(p)
			delete(live, p)
		} else {
			tr.GetOrCreate(p)
			live[p] = true
		}
	}

	if tr.Size() != len(live) {
		t.Fatalf("size %d, want %d", tr.Size(), len(live))
	}
	got := treePrices(tr)
	prev := int64(0)
	for _, p := range got {
		if !live[p] {
			t.Fatalf("walk produced deleted price %d", p)
		}
		if p <= prev {
			t.Fatalf("walk out of order: %d after %d", p, prev)
		}
		prev = p
	}
	if len(got) > 0 {
		if tr.BestMin().Price != got[0] || tr.BestMax().Price != got[len(got)-1] {
			t.Errorf("cached extremes %d/%d, walk says %d/%d",
				tr.BestMin().Price, tr.BestMax().Price, got[0], got[len(got)-1])
		}
	}
}
