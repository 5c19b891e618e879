package bindless

import (
	"testing"

	"github.com/gekko3d/renderer/slot"
)

func TestLayoutEntriesCoverAllBindings(t *testing.T) {
	entries := layoutEntries()
	seen := make(map[uint32]bool)
	for _, e := range entries {
		seen[e.Binding] = true
	}
	for b := uint32(BindingScene); b <= BindingTextures; b++ {
		if !seen[b] {
			t.Fatalf("binding %d missing from layout", b)
		}
	}
}

func TestTextureSlotReuse(t *testing.T) {
	tbl := &Table{texSlots: slot.NewFixed()}
	a := tbl.texSlots.Alloc()
	b := tbl.texSlots.Alloc()
	if a == b {
		t.Fatal("expected distinct slots")
	}
	tbl.texSlots.Free(a)
	c := tbl.texSlots.Alloc()
	if c != a {
		t.Fatalf("expected freed slot %d to be reused, got %d", a, c)
	}
}
