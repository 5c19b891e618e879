package upload

import (
	"testing"

	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/gigabuf"
)

func newTestQueue() *Queue {
	return New(nil, gigabuf.New(nil, "v", 0, 0), gigabuf.New(nil, "i", 0, 0), nil)
}

func bigMesh() asset.Mesh {
	return asset.Mesh{
		ID:       asset.NewID(),
		Vertices: make([]asset.Vertex, 1024),
		Indices:  make([]uint32, 3072),
	}
}

// TestModelUploadResumesAcrossBudgetedFrames is §8 S6's CPU half: a
// model too large for one frame's budget advances mesh by mesh across
// Process calls instead of stalling or losing progress.
func TestModelUploadResumesAcrossBudgetedFrames(t *testing.T) {
	q := newTestQueue()
	meshes := []asset.Mesh{bigMesh(), bigMesh(), bigMesh()}
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{meshes[0].ID, meshes[1].ID, meshes[2].ID}}
	q.EnqueueModel(model, meshes)

	perMesh := uint64(1024*vertexStride + 3072*4)

	if err := q.Process(nil, perMesh+1); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := len(q.DrainCompletedMeshes()); got != 0 {
		t.Fatalf("expected no completions while the model is partial, got %d", got)
	}
	if !q.Pending() {
		t.Fatal("expected the model to remain pending mid-upload")
	}
	if q.pendingModels[0].currentMeshIndex != 1 {
		t.Fatalf("expected resume cursor at mesh 1, got %d", q.pendingModels[0].currentMeshIndex)
	}

	if err := q.Process(nil, 3*perMesh); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := len(q.DrainCompletedMeshes()); got != 3 {
		t.Fatalf("expected all 3 meshes reported once the model completes, got %d", got)
	}
	if q.Pending() {
		t.Fatal("expected the queue drained")
	}
}

func TestCancelModelFreesPartialPlacements(t *testing.T) {
	q := newTestQueue()
	meshes := []asset.Mesh{bigMesh(), bigMesh()}
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{meshes[0].ID, meshes[1].ID}}
	q.EnqueueModel(model, meshes)

	perMesh := uint64(1024*vertexStride + 3072*4)
	if err := q.Process(nil, perMesh+1); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var freed []MeshPlacement
	q.CancelModel(model.ID, func(mp MeshPlacement) { freed = append(freed, mp) })

	if len(freed) != 1 {
		t.Fatalf("expected 1 partial placement handed back, got %d", len(freed))
	}
	if q.Pending() {
		t.Fatal("expected cancelled model gone from the queue")
	}
}

func TestMeshVertexBytesStride(t *testing.T) {
	m := asset.Mesh{
		Vertices: []asset.Vertex{{}, {}},
		Indices:  []uint32{0, 1, 2},
	}
	vb := meshVertexBytes(m)
	if len(vb) != 2*vertexStride {
		t.Fatalf("expected %d bytes, got %d", 2*vertexStride, len(vb))
	}
	ib := meshIndexBytes(m)
	if len(ib) != 3*4 {
		t.Fatalf("expected 12 index bytes, got %d", len(ib))
	}
}

func TestBytesPerRowAlignment(t *testing.T) {
	got := bytesPerRow(asset.FormatRGBA8Unorm, 100)
	if got%256 != 0 {
		t.Fatalf("expected 256 byte aligned stride, got %d", got)
	}
	if got < 100*4 {
		t.Fatalf("stride %d too small for width 100 rgba8", got)
	}
}

func TestBytesPerRowBlockCompressed(t *testing.T) {
	got := bytesPerRow(asset.FormatBC7Unorm, 64)
	// 64/4 = 16 blocks * 16 bytes/block = 256, already aligned.
	if got != 256 {
		t.Fatalf("expected 256, got %d", got)
	}
}
