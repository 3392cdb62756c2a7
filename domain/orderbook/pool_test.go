package orderbook

import "testing"

func TestPoolInsertRemoveReuse(t *testing.T) {
	p := NewOrderPool(2)

	h1, err := p.Insert(RestingOrder{OrderID: 1})
	if err != nil || h1 != 0 {
		t.Fatalf("first insert: handle %d err %v", h1, err)
	}
	h2, err := p.Insert(RestingOrder{OrderID: 2})
	if err != nil || h2 != 1 {
		t.Fatalf("second insert: handle %d err %v", h2, err)
	}
	if _, err := p.Insert(RestingOrder{OrderID: 3}); err != ErrPoolExhausted {
		t.Fatalf("expected exhaustion, got %v", err)
	}
	if !p.Full() || p.Live() != 2 {
		t.Errorf("live %d cap %d", p.Live(), p.Cap())
	}

	p.Remove(h1)
	if p.Get(h1) != nil {
		t.Error("freed slot must read as nil")
	}
	h3, err := p.Insert(RestingOrder{OrderID: 3})
	if err != nil || h3 != h1 {
		t.Fatalf("freed handle should be reused first, got %d err %v", h3, err)
	}
	if o := p.Get(h3); o == nil || o.OrderID != 3 {
		t.Errorf("slot content after reuse: %+v", o)
	}
}

func TestPoolGetOutOfRange(t *testing.T) {
	p := NewOrderPool(1)
	if p.Get(NilHandle) != nil || p.Get(5) != nil {
		t.Error("out of range handles must read as nil")
	}
}

func TestPoolForEachOrder(t *testing.T) {
	p := NewOrderPool(4)
	for i := uint64(1); i <= 3; i++ {
		if _, err := p.Insert(RestingOrder{OrderID: i}); err != nil {
			t.Fatal(err)
		}
	}
	p.Remove(1)

	var seen []uint64
	p.ForEach(func(h Handle, o *RestingOrder) bool {
		seen = append(seen, o.OrderID)
		return true
	})
	if len(seen) != 2 || seen[0] != 1 || seen[1] != 3 {
		t.Errorf("expected live slots in handle order, got %v", seen)
	}
}

func TestPoolRestore(t *testing.T) {
	p := NewOrderPool(4)
	if err := p.Restore(2, RestingOrder{OrderID: 7}); err != nil {
		t.Fatal(err)
	}
	if err := p.Restore(2, RestingOrder{OrderID: 8}); err == nil {
		t.Error("double restore of one slot must fail")
	}
	p.ResetFree()

	if o := p.Get(2); o == nil || o.OrderID != 7 {
		t.Fatalf("restored slot lost: %+v", o)
	}
	h, err := p.Insert(RestingOrder{OrderID: 9})
	if err != nil || h != 0 {
		t.Fatalf("lowest free slot should come first after reset, got %d err %v", h, err)
	}
	if p.Live() != 2 {
		t.Errorf("live %d", p.Live())
	}
}
