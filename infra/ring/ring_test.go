package ring

import (
	"sync"
	"testing"
)

func TestOfferPollOrder(t *testing.T) {
	r := New[int](8)
	for i := 0; i < 8; i++ {
		if !r.Offer(i) {
			t.Fatalf("offer %d refused", i)
		}
	}
	if r.Offer(99) {
		t.Error("full ring must refuse")
	}
	if r.Len() != 8 {
		t.Errorf("len %d", r.Len())
	}
	for i := 0; i < 8; i++ {
		v, ok := r.Poll()
		if !ok || v != i {
			t.Fatalf("poll %d: got %d ok=%v", i, v, ok)
		}
	}
	if _, ok := r.Poll(); ok {
		t.Error("empty ring must report empty")
	}
}

func TestWrapAround(t *testing.T) {
	r := New[int](4)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			if !r.Offer(round*10 + i) {
				t.Fatal("offer refused with room left")
			}
		}
		for i := 0; i < 3; i++ {
			v, ok := r.Poll()
			if !ok || v != round*10+i {
				t.Fatalf("round %d: got %d ok=%v", round, v, ok)
			}
		}
	}
}

func TestDrainBatches(t *testing.T) {
	r := New[int](16)
	for i := 0; i < 10; i++ {
		r.Offer(i)
	}
	out := make([]int, 4)
	if n := r.Drain(out); n != 4 || out[0] != 0 || out[3] != 3 {
		t.Fatalf("first drain: n=%d out=%v", n, out)
	}
	if n := r.Drain(out); n != 4 || out[0] != 4 {
		t.Fatalf("second drain: n=%d out=%v", n, out)
	}
	if n := r.Drain(out); n != 2 || out[0] != 8 || out[1] != 9 {
		t.Fatalf("tail drain: n=%d out=%v", n, out)
	}
	if n := r.Drain(out); n != 0 {
		t.Fatalf("empty drain moved %d", n)
	}
}

func TestBadSizePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("non power of two size must panic")
		}
	}()
	New[int](6)
}

func TestProducerConsumer(t *testing.T) {
	const total = 1 << 16
	r := New[uint64](1 << 10)

	var wg sync.WaitGroup
	wg.Add(1)
	var sum uint64
	go func() {
		defer wg.Done()
		got := 0
		for got < total {
			v, ok := r.Poll()
			if !ok {
				continue
			}
			sum += v
			got++
		}
	}()

	for i := uint64(1); i <= total; i++ {
		for !r.Offer(i) {
		}
	}
	wg.Wait()

	want := uint64(total) * (total + 1) / 2
	if sum != want {
		t.Fatalf("sum %d, want %d", sum, want)
	}
}
