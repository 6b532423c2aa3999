package models

import "testing"

func TestAllocateEvenlyUnevenSplit(t *testing.T) {
	// 20-image batch, 3 healthy nodes -> {n1:7, n2:7, n3:6}.
	allocation := AllocateEvenly(20, []string{"n1", "n2", "n3"})

	want := map[string]int{"n1": 7, "n2": 7, "n3": 6}
	for id, count := range want {
		if allocation[id] != count {
			t.Errorf("allocation[%s] = %d, want %d", id, allocation[id], count)
		}
	}

	sum := 0
	for _, c := range allocation {
		sum += c
	}
	if sum != 20 {
		t.Errorf("total allocation = %d, want 20", sum)
	}
}

func TestAllocateEvenlyExactSplit(t *testing.T) {
	allocation := AllocateEvenly(20, []string{"n1", "n2", "n3", "n4"})
	for _, id := range []string{"n1", "n2", "n3", "n4"} {
		if allocation[id] != 5 {
			t.Errorf("allocation[%s] = %d, want 5", id, allocation[id])
		}
	}
}

func TestAllocateEvenlyNoNodes(t *testing.T) {
	allocation := AllocateEvenly(20, nil)
	if len(allocation) != 0 {
		t.Errorf("expected empty allocation, got %v", allocation)
	}
}

func TestBatchMarkTerminalClosesAtTotal(t *testing.T) {
	batch := NewBatch("sess-1", 0, 3, map[string]int{"n1": 3})
	if batch.IsClosed() {
		t.Fatal("new batch should be open")
	}

	batch.MarkTerminal()
	batch.MarkTerminal()
	if batch.IsClosed() {
		t.Fatal("batch should still be open after 2 of 3 terminal")
	}

	batch.MarkTerminal()
	if !batch.IsClosed() {
		t.Fatal("batch should close once completed reaches total")
	}
}
