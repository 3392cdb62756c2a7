package sequence

import (
	"sync"
	"testing"
)

func TestMonotonic(t *testing.T) {
	var s Sequencer
	if s.Current() != 0 {
		t.Fatalf("fresh sequencer at %d", s.Current())
	}
	for i := uint64(1); i <= 100; i++ {
		if got := s.Next(); got != i {
			t.Fatalf("next %d, want %d", got, i)
		}
	}
	s.Reset(1000)
	if got := s.Next(); got != 1001 {
		t.Fatalf("after reset got %d", got)
	}
}

func TestConcurrentUnique(t *testing.T) {
	var s Sequencer
	const workers, per = 8, 1000

	out := make([][]uint64, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				out[w] = append(out[w], s.Next())
			}
		}(w)
	}
	wg.Wait()

	seen := make(map[uint64]bool, workers*per)
	for _, vs := range out {
		for _, v := range vs {
			if seen[v] {
				t.Fatalf("sequence %d issued twice", v)
			}
			seen[v] = true
		}
	}
	if s.Current() != workers*per {
		t.Fatalf("current %d", s.Current())
	}
}
