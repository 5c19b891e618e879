package asset

import "testing"

func TestGPURenderableToBytesSize(t *testing.T) {
	r := GPURenderable{}
	b := r.ToBytes()
	if len(b)%16 != 0 {
		t.Fatalf("GPURenderable record not 16 byte aligned: %d bytes", len(b))
	}
}

func TestGPUMeshInfoToBytesSize(t *testing.T) {
	m := GPUMeshInfo{VertexOffset: 10, IndexOffset: 20, IndexCount: 30, BLASDeviceAddress: 0xdeadbeef}
	b := m.ToBytes()
	if len(b) != GPUMeshInfoSize {
		t.Fatalf("expected %d bytes, got %d", GPUMeshInfoSize, len(b))
	}
}

func TestDrawIndexedIndirectCommandToBytes(t *testing.T) {
	c := DrawIndexedIndirectCommand{IndexCount: 3, InstanceCount: 1, RenderableIndex: 7}
	b := c.ToBytes()
	if len(b) != 32 {
		t.Fatalf("expected 32 bytes, got %d", len(b))
	}
}

func TestSceneDataToBytesSize(t *testing.T) {
	s := SceneData{ScreenWidth: 1920, ScreenHeight: 1080}
	b := s.ToBytes()
	if len(b)%16 != 0 {
		t.Fatalf("SceneData record not 16 byte aligned: %d bytes", len(b))
	}
}

func TestUpdateIsEmpty(t *testing.T) {
	var u Update
	if !u.IsEmpty() {
		t.Fatal("zero-value Update should be empty")
	}
	u.AddedLights = append(u.AddedLights, Light{ID: NewID()})
	if u.IsEmpty() {
		t.Fatal("Update with an added light should not be empty")
	}
}

func TestUpdateMerge(t *testing.T) {
	a := Update{AddedModels: []Model{{ID: NewID()}}}
	b := Update{RemovedModels: []ID{NewID()}}
	m := a.Merge(b)
	if len(m.AddedModels) != 1 || len(m.RemovedModels) != 1 {
		t.Fatalf("merge lost entries: %+v", m)
	}
}
