package ddgi

import (
	"testing"

	"github.com/gekko3d/renderer/asset"
)

func TestProbeIndexForFloorsTowardZero(t *testing.T) {
	idx := ProbeIndexFor([3]float32{1.5, 0, 3.0})
	if idx[0] != 1 || idx[2] != 2 {
		t.Fatalf("expected probe index {1,_,2}, got %+v", idx)
	}
}

func TestAtlasTranslateNoShiftBelowOneProbeStep(t *testing.T) {
	a := &Atlas{}
	r := a.Translate([3]float32{0.1, 0, 0})
	if r.Shifted {
		t.Fatalf("expected no shift for sub-probe-step movement, got %+v", r)
	}
}

func TestAtlasTranslateShiftsByOneProbeStep(t *testing.T) {
	a := &Atlas{}
	r := a.Translate([3]float32{ProbeStep, 0, 0})
	if !r.Shifted || r.DeltaX != 1 || r.DeltaY != 0 || r.DeltaZ != 0 {
		t.Fatalf("expected shift of {1,0,0}, got %+v", r)
	}

	// A second call at the same position reports no further shift.
	r2 := a.Translate([3]float32{ProbeStep, 0, 0})
	if r2.Shifted {
		t.Fatalf("expected no shift on repeated call at same position, got %+v", r2)
	}
}

func TestAtlasTranslateAccumulatesDelta(t *testing.T) {
	a := &Atlas{}
	a.Translate([3]float32{ProbeStep, 0, 0})
	r := a.Translate([3]float32{3 * ProbeStep, 0, 0})
	if !r.Shifted || r.DeltaX != 2 {
		t.Fatalf("expected delta of 2 probe steps, got %+v", r)
	}
}

func TestBakerAdvanceCyclesThroughLayersThenCompletes(t *testing.T) {
	var b Baker
	tile := asset.TileIndex{X: 2, Z: 3}
	b.StartBake(tile, 3)

	if !b.Active() {
		t.Fatalf("expected baker active after StartBake")
	}
	if b.Tile() != tile {
		t.Fatalf("expected tile %+v, got %+v", tile, b.Tile())
	}

	layer, done := b.Advance()
	if layer != 0 || done {
		t.Fatalf("expected layer 0, not done; got layer=%d done=%v", layer, done)
	}
	layer, done = b.Advance()
	if layer != 1 || done {
		t.Fatalf("expected layer 1, not done; got layer=%d done=%v", layer, done)
	}
	layer, done = b.Advance()
	if layer != 2 || !done {
		t.Fatalf("expected layer 2, done; got layer=%d done=%v", layer, done)
	}
	if b.Active() {
		t.Fatalf("expected baker inactive after final layer")
	}
}

func TestBakerStopBakeDefersOneFrame(t *testing.T) {
	var b Baker
	b.StartBake(asset.TileIndex{}, 10)
	b.Advance()

	invoked := false
	b.StopBake(func(asset.Texture) { invoked = true })

	if _, ready := b.TakeStopReady(); ready {
		t.Fatal("expected stop to defer one frame")
	}
	if !b.Active() {
		t.Fatal("expected baker still active during the deferred frame")
	}

	cb, ready := b.TakeStopReady()
	if !ready || cb == nil {
		t.Fatal("expected stop ready on the second poll")
	}
	if b.Active() {
		t.Fatal("expected baker inactive once stop is taken")
	}
	cb(asset.Texture{})
	if !invoked {
		t.Fatal("expected the registered callback to be the one handed back")
	}
}

func TestBakeDimsMatchProbeGrid(t *testing.T) {
	w, h := BakeDims(AtlasDims{ProbesX: 8, ProbesY: 4, ProbesZ: 8})
	if w != 8*ProbePixelSize {
		t.Fatalf("expected width %d, got %d", 8*ProbePixelSize, w)
	}
	if h != 8*4*ProbePixelSize {
		t.Fatalf("expected height %d, got %d", 8*4*ProbePixelSize, h)
	}
}
