package gigabuf

import "testing"

func TestAddAssignsDisjointRanges(t *testing.T) {
	b := New(nil, "test", 0, 1024)
	h1, err := b.Add(100)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	h2, err := b.Add(200)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if h1.Offset+h1.Size > h2.Offset && h2.Offset+h2.Size > h1.Offset {
		t.Fatalf("ranges overlap: %+v %+v", h1, h2)
	}
}

func TestRemoveMakesRangeReusable(t *testing.T) {
	b := New(nil, "test", 0, 1024)
	h1, _ := b.Add(256)
	b.Remove(h1)
	h2, err := b.Add(256)
	if err != nil {
		t.Fatalf("Add after Remove: %v", err)
	}
	if h2.Offset != h1.Offset {
		t.Fatalf("expected freed range %d to be reused, got %d", h1.Offset, h2.Offset)
	}
}

func TestZeroSizeAddIsAnError(t *testing.T) {
	b := New(nil, "test", 0, 1024)
	if _, err := b.Add(0); err == nil {
		t.Fatal("expected zero-size allocation to error")
	}
}

// TestFillRemoveAddCycle is §8's boundary behaviour: filling to
// capacity, removing a block, and re-adding the same size must
// succeed without growing the address space.
func TestFillRemoveAddCycle(t *testing.T) {
	b := New(nil, "test", 0, 1<<20)
	var handles []Handle
	for i := 0; i < 16; i++ {
		h, err := b.Add(1 << 16)
		if err != nil {
			t.Fatalf("fill Add %d: %v", i, err)
		}
		handles = append(handles, h)
	}

	victim := handles[7]
	b.Remove(victim)
	h, err := b.Add(1 << 16)
	if err != nil {
		t.Fatalf("Add after Remove: %v", err)
	}
	if h.Offset != victim.Offset {
		t.Fatalf("expected the freed hole at %d to be refilled, got %d", victim.Offset, h.Offset)
	}
}

func TestCapacityTrackedWithoutDevice(t *testing.T) {
	b := New(nil, "test", 0, 64)
	if _, err := b.Add(128); err != nil {
		t.Fatalf("expected device-less growth to be tracked, got %v", err)
	}
	if b.Size() < 128 {
		t.Fatalf("expected tracked capacity >= 128, got %d", b.Size())
	}
}
