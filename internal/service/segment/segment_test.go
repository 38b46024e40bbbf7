package segment

import (
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := New()

	seg0 := gen.Next("segment")
	if seg0 != "segment_0" {
		t.Errorf("expected 'segment_0', got %s", seg0)
	}

	seg1 := gen.Next("segment")
	if seg1 != "segment_1" {
		t.Errorf("expected 'segment_1', got %s", seg1)
	}
}

func TestGenerator_FreshGeneratorRestarts(t *testing.T) {
	a, b := New(), New()
	a.Next("segment")

	if got := b.Next("segment"); got != "segment_0" {
		t.Errorf("expected independent counter 'segment_0', got %s", got)
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := New()
	numGoroutines := 100
	resultsPerGoroutine := 10

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*resultsPerGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < resultsPerGoroutine; j++ {
				results <- gen.Next("segment")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for seg := range results {
		if seen[seg] {
			t.Errorf("duplicate segment ID generated: %s", seg)
		}
		seen[seg] = true
	}

	expectedCount := numGoroutines * resultsPerGoroutine
	if len(seen) != expectedCount {
		t.Errorf("expected %d unique segment IDs, got %d", expectedCount, len(seen))
	}
}
