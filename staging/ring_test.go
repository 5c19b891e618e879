package staging

import "testing"

func newTestRing(t *testing.T, size uint64) *Ring {
	t.Helper()
	r, err := New(nil, size)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestAdvanceReturnsPreviousCursor(t *testing.T) {
	r := newTestRing(t, 1024)
	if off := r.Advance(100); off != 0 {
		t.Fatalf("expected first advance at 0, got %d", off)
	}
	if off := r.Advance(50); off != 100 {
		t.Fatalf("expected second advance at 100, got %d", off)
	}
}

func TestResetRewindsCursor(t *testing.T) {
	r := newTestRing(t, 1024)
	r.Advance(512)
	r.Reset()
	if off := r.Advance(1); off != 0 {
		t.Fatalf("expected cursor back at 0 after Reset, got %d", off)
	}
}

func TestCanFitHonorsEmergencyReserve(t *testing.T) {
	r := newTestRing(t, 1000)
	r.SetEmergencyReserve(100)

	if !r.CanFit(900, false) {
		t.Fatal("900 bytes should fit outside the reserve")
	}
	if r.CanFit(901, false) {
		t.Fatal("901 bytes should be refused without the reserve")
	}
	if !r.CanFit(1000, true) {
		t.Fatal("the full capacity should fit when the reserve is granted")
	}
	if r.CanFit(1001, true) {
		t.Fatal("capacity is a hard ceiling even with the reserve")
	}
}

func TestReserveKeepsCriticalWritesPossibleWhenBulkFills(t *testing.T) {
	r := newTestRing(t, 1000)
	r.SetEmergencyReserve(64)

	// A bulk producer eats everything it is allowed to.
	for r.CanFit(100, false) {
		r.Advance(100)
	}
	// The critical UBO write still fits through the reserve (§7).
	if !r.CanFit(64, true) {
		t.Fatal("expected the emergency reserve to keep a small critical write possible")
	}
}

func TestDefaultSize(t *testing.T) {
	r := newTestRing(t, 0)
	if r.Size() != DefaultSizeBytes {
		t.Fatalf("expected default %d, got %d", DefaultSizeBytes, r.Size())
	}
}
