package slot

import "testing"

func TestAddFitsIntoFreedBlock(t *testing.T) {
	a := New()
	h1 := a.Add(64)
	h2 := a.Add(64)
	a.Remove(h1)

	h3 := a.Add(32)
	if h3.Offset != h1.Offset {
		t.Fatalf("expected first-fit reuse at offset %d, got %d", h1.Offset, h3.Offset)
	}
	_ = h2
}

func TestDisjointHandlesStableAcrossRemove(t *testing.T) {
	a := New()
	h1 := a.Add(16)
	h2 := a.Add(16)
	h3 := a.Add(16)

	a.Remove(h2)

	if h1.Offset != 0 || h1.Size != 16 {
		t.Fatalf("h1 mutated: %+v", h1)
	}
	if h3.Offset != 32 || h3.Size != 16 {
		t.Fatalf("h3 mutated: %+v", h3)
	}
}

func TestHighWaterMarkShrinksOnTailFree(t *testing.T) {
	a := New()
	h1 := a.Add(16)
	h2 := a.Add(16)

	if got := a.UsedSpace(); got != 32 {
		t.Fatalf("expected used space 32, got %d", got)
	}

	a.Remove(h2)
	if got := a.UsedSpace(); got != 16 {
		t.Fatalf("expected used space to shrink to 16 after freeing tail, got %d", got)
	}
	_ = h1
}

func TestAddZeroSizeReturnsEmptyHandle(t *testing.T) {
	a := New()
	h := a.Add(0)
	if h.Valid() {
		t.Fatalf("expected invalid handle for zero-size add")
	}
}

func TestFixedAllocReusesFreedIndex(t *testing.T) {
	f := NewFixed()
	a := f.Alloc()
	b := f.Alloc()
	f.Free(a)
	c := f.Alloc()
	if c != a {
		t.Fatalf("expected reuse of freed index %d, got %d", a, c)
	}
	if f.Tail() != 2 {
		t.Fatalf("expected tail 2, got %d", f.Tail())
	}
	_ = b
}
