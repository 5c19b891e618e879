package catalogue

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/renderer/accel"
	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/deletion"
	"github.com/gekko3d/renderer/gigabuf"
	"github.com/gekko3d/renderer/upload"
)

// newTestCatalogue builds a device-less catalogue: every subsystem
// that can run CPU-side (slot allocators, deletion queue, upload
// bookkeeping, accel manager) is real, only wgpu traffic is skipped.
func newTestCatalogue() *Catalogue {
	vb := gigabuf.New(nil, "v", 0, 0)
	ib := gigabuf.New(nil, "i", 0, 0)
	return New(Deps{
		Uploads:          upload.New(nil, vb, ib, nil),
		Accel:            accel.New(nil, vb, ib, nil),
		Deletion:         deletion.New(2),
		VertexBuffer:     vb,
		IndexBuffer:      ib,
		MultiBufferCount: 2,
		RTEnabled:        true,
	})
}

func cubeMesh() asset.Mesh {
	verts := make([]asset.Vertex, 8)
	idx := make([]uint32, 36)
	for i := range idx {
		idx[i] = uint32(i % 8)
	}
	return asset.Mesh{
		ID:       asset.NewID(),
		Vertices: verts,
		Indices:  idx,
		AABBMin:  mgl32.Vec3{-1, -1, -1},
		AABBMax:  mgl32.Vec3{1, 1, 1},
	}
}

func TestAddRemoveRenderableMarksChangedForEverySlot(t *testing.T) {
	c := newTestCatalogue()
	r := asset.Renderable{ID: asset.NewID()}

	require.False(t, c.renderablesChanged.take(0))

	c.addRenderable(r)
	require.True(t, c.renderablesChanged.take(0))
	require.True(t, c.renderablesChanged.take(1), "every frame slot refreshes at least once")
	require.False(t, c.renderablesChanged.take(0), "flag clears per slot after take")
	require.Equal(t, uint32(1), c.RenderableCount())

	c.removeRenderable(r.ID)
	require.True(t, c.renderablesChanged.take(0))
	require.Equal(t, uint32(1), c.RenderableCount(), "slot freed but tail doesn't shrink")
}

func TestRenderableSlotReuse(t *testing.T) {
	c := newTestCatalogue()
	a := asset.Renderable{ID: asset.NewID()}
	b := asset.Renderable{ID: asset.NewID()}

	c.addRenderable(a)
	c.addRenderable(b)
	require.Equal(t, uint32(0), c.renderables[a.ID].index)
	require.Equal(t, uint32(1), c.renderables[b.ID].index)

	c.removeRenderable(a.ID)
	third := asset.Renderable{ID: asset.NewID()}
	c.addRenderable(third)
	require.Equal(t, uint32(0), c.renderables[third.ID].index, "freed slot 0 should be reused")
}

func TestApplyOrderRemovesBeforeAdds(t *testing.T) {
	c := newTestCatalogue()
	existing := asset.Renderable{ID: asset.NewID()}
	c.addRenderable(existing)

	fresh := asset.Renderable{ID: asset.NewID()}
	u := asset.Update{
		RemovedRenderables: []asset.ID{existing.ID},
		AddedRenderables:   []asset.Renderable{fresh},
	}
	require.NoError(t, c.Apply(u))

	_, stillThere := c.renderables[existing.ID]
	require.False(t, stillThere)
	_, added := c.renderables[fresh.ID]
	require.True(t, added)
}

func TestUpdateMaterialMarksDependentRenderablesDirty(t *testing.T) {
	c := newTestCatalogue()
	mat := asset.Material{ID: asset.NewID()}
	c.addMaterial(mat)
	r := asset.Renderable{ID: asset.NewID(), MaterialIDs: []asset.ID{mat.ID}}
	c.addRenderable(r)
	c.renderablesChanged.take(0)
	c.materialsChanged.take(0)

	mat.BaseColorFactor[0] = 0.5
	c.updateMaterial(mat)

	require.True(t, c.materialsChanged.take(0))
	require.True(t, c.renderablesChanged.take(0))
}

func TestRemoveModelCascadesRenderables(t *testing.T) {
	c := newTestCatalogue()
	mesh := cubeMesh()
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{mesh.ID}}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}}))

	r := asset.Renderable{ID: asset.NewID(), ModelID: model.ID}
	require.NoError(t, c.Apply(asset.Update{AddedRenderables: []asset.Renderable{r}}))

	require.NoError(t, c.Apply(asset.Update{RemovedModels: []asset.ID{model.ID}}))
	_, stillThere := c.renderables[r.ID]
	require.False(t, stillThere, "renderable referencing a removed model must go with it")
}

func TestModelResourcesFreedAfterDeletionQueueDrains(t *testing.T) {
	c := newTestCatalogue()
	mesh := cubeMesh()
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{mesh.ID}}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}}))
	c.RegisterMeshes(model.ID, []asset.Mesh{mesh})

	// Drain the upload CPU-side and pick up the completion.
	require.NoError(t, c.uploadQueue.Process(nil, upload.DefaultBytesPerFrame))
	require.NoError(t, c.DrainUploads())
	require.NotZero(t, c.accelMgr.Address(mesh.ID), "BLAS built on upload completion")

	c.BeginFrame(5)
	require.NoError(t, c.Apply(asset.Update{RemovedModels: []asset.ID{model.ID}}))
	require.NotZero(t, c.accelMgr.Address(mesh.ID), "BLAS survives until N frames later")

	c.deletionQueue.Execute(5 + 2) // N=2 frames elapsed
	require.Zero(t, c.accelMgr.Address(mesh.ID), "BLAS destroyed once deletion queue drained")
}

func TestSkeletonJointSlotsFreedOnRemove(t *testing.T) {
	c := newTestCatalogue()
	sk := asset.Skeleton{ID: asset.NewID(), Joints: make([]asset.Joint, 3), RootIsJoint: true}
	c.addSkeleton(sk)
	require.Equal(t, uint64(3), c.skeletonJointSlots.UsedSpace())

	c.removeSkeleton(sk.ID)
	_, stillThere := c.skeletons[sk.ID]
	require.False(t, stillThere)

	reused := asset.Skeleton{ID: asset.NewID(), Joints: make([]asset.Joint, 3), RootIsJoint: true}
	c.addSkeleton(reused)
	require.Equal(t, uint64(0), c.skeletons[reused.ID].jointRange.Offset, "freed joint range should be reused")
	require.Equal(t, uint64(3), c.skeletonJointSlots.UsedSpace(), "high-water mark shouldn't grow when reusing freed range")
}

func TestShadowCasterSlotsGrantedFCFS(t *testing.T) {
	c := newTestCatalogue()
	var ids []asset.ID
	for i := 0; i < MaxShadowCasters+2; i++ {
		l := asset.Light{ID: asset.NewID(), ShadowCaster: true, Enabled: true, Range: 10}
		ids = append(ids, l.ID)
		c.addLight(l)
	}
	for i := 0; i < MaxShadowCasters; i++ {
		require.Equal(t, uint32(i), c.lights[ids[i]].shadowSlot)
	}
	for i := MaxShadowCasters; i < MaxShadowCasters+2; i++ {
		require.Equal(t, asset.NoShadowSlot, c.lights[ids[i]].shadowSlot, "overflow lights get no slot")
	}

	// Removing a granted light frees its slot for the next claimant.
	c.removeLight(ids[0])
	waiting := c.lights[ids[MaxShadowCasters]]
	c.grantShadowSlot(waiting)
	require.Equal(t, uint32(0), waiting.shadowSlot)
}

func TestPackRenderablesSkipsNonResident(t *testing.T) {
	c := newTestCatalogue()
	mesh := cubeMesh()
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{mesh.ID}}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}}))
	r := asset.Renderable{ID: asset.NewID(), ModelID: model.ID, Visible: true, WorldTransform: mgl32.Ident4()}
	require.NoError(t, c.Apply(asset.Update{AddedRenderables: []asset.Renderable{r}}))

	// Meshes not registered yet: renderable is not prerequisite-resident.
	out, _, _, allResident := c.packRenderables()
	require.False(t, allResident)
	require.Equal(t, uint32(0), out[0].NumMeshes, "non-resident renderable emitted as zero record")

	c.RegisterMeshes(model.ID, []asset.Mesh{mesh})
	require.NoError(t, c.uploadQueue.Process(nil, upload.DefaultBytesPerFrame))
	require.NoError(t, c.DrainUploads())

	out, modelIdx, matIdx, allResident := c.packRenderables()
	require.True(t, allResident)
	require.Equal(t, uint32(1), out[0].NumMeshes)
	require.Equal(t, uint32(1), out[0].Visible)
	require.Len(t, modelIdx, 1)
	require.Len(t, matIdx, 1)
	require.Equal(t, asset.NoTextureSlot, matIdx[0], "no material bound")
}

func TestMeshInfoRecordsElementOffsets(t *testing.T) {
	c := newTestCatalogue()
	mesh := cubeMesh()
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{mesh.ID}}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}}))
	c.RegisterMeshes(model.ID, []asset.Mesh{mesh})
	require.NoError(t, c.uploadQueue.Process(nil, upload.DefaultBytesPerFrame))
	require.NoError(t, c.DrainUploads())

	info := c.meshInfos[0]
	require.Equal(t, uint32(0), info.VertexOffset, "first mesh starts at vertex 0")
	require.Equal(t, uint32(0), info.IndexOffset)
	require.Equal(t, uint32(36), info.IndexCount)
	require.NotZero(t, info.BLASDeviceAddress, "invariant 3: BLAS present means non-zero address")
}

func TestDynamicCopiesBuildWithinBudget(t *testing.T) {
	c := newTestCatalogue()
	meshes := make([]asset.Mesh, 7)
	meshIDs := make([]asset.ID, 7)
	for i := range meshes {
		meshes[i] = cubeMesh()
		meshIDs[i] = meshes[i].ID
	}
	model := asset.Model{ID: asset.NewID(), Meshes: meshIDs}
	sk := asset.Skeleton{ID: asset.NewID(), Joints: make([]asset.Joint, 4), RootIsJoint: true}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}, AddedSkeletons: []asset.Skeleton{sk}}))
	c.RegisterMeshes(model.ID, meshes)
	require.NoError(t, c.uploadQueue.Process(nil, upload.DefaultBytesPerFrame))
	require.NoError(t, c.DrainUploads())

	r := asset.Renderable{ID: asset.NewID(), ModelID: model.ID, SkeletonID: sk.ID, Visible: true, WorldTransform: mgl32.Ident4()}
	require.NoError(t, c.Apply(asset.Update{AddedRenderables: []asset.Renderable{r}}))

	c.QueueDynamicWork()

	// Frame 1: only 5 of the 7 copies fit the budget.
	done, err := c.accelMgr.ProcessDynamicCopies(nil)
	require.NoError(t, err)
	require.Empty(t, done)
	require.True(t, c.accelMgr.DynamicPending(r.ID))

	// Frame 2: the remaining 2 complete.
	done, err = c.accelMgr.ProcessDynamicCopies(nil)
	require.NoError(t, err)
	require.Len(t, done, 1)
	c.DrainDynamic(done)

	rec := c.renderables[r.ID]
	require.Len(t, rec.dynamicMeshes, 7)
	for _, dm := range rec.dynamicMeshes {
		require.NotEqual(t, dm.SourceMeshID, dm.MeshID, "dynamic copies carry distinct mesh ids")
		require.NotZero(t, dm.Address)
	}

	// TLAS instances for the animated renderable reference the dynamic
	// addresses, not the statics.
	instances := c.TLASInstances()
	require.Len(t, instances, 7)
	static := c.accelMgr.Address(meshIDs[0])
	for _, in := range instances {
		require.NotEqual(t, static, in.BLASAddress)
	}
}

func TestEmitMirrorsClearsFlagsPerSlot(t *testing.T) {
	c := newTestCatalogue()
	c.addLight(asset.Light{ID: asset.NewID(), Enabled: true, Range: 5})

	require.NoError(t, c.EmitMirrors(nil, nil, 0, asset.TileIndex{}))
	// Slot 0 consumed; slot 1 still pending.
	require.False(t, c.lightsChanged.per[0])
	require.True(t, c.lightsChanged.per[1])
}

func TestEmitMirrorsRetriesWhileRenderableNotResident(t *testing.T) {
	c := newTestCatalogue()
	mesh := cubeMesh()
	model := asset.Model{ID: asset.NewID(), Meshes: []asset.ID{mesh.ID}}
	require.NoError(t, c.Apply(asset.Update{AddedModels: []asset.Model{model}}))
	r := asset.Renderable{ID: asset.NewID(), ModelID: model.ID, Visible: true}
	require.NoError(t, c.Apply(asset.Update{AddedRenderables: []asset.Renderable{r}}))

	// Meshes not uploaded yet: the flag survives the emission so the
	// next frame retries (§7 "asset prerequisite missing").
	require.NoError(t, c.EmitMirrors(nil, nil, 0, asset.TileIndex{}))
	require.True(t, c.renderablesChanged.per[0])

	c.RegisterMeshes(model.ID, []asset.Mesh{mesh})
	require.NoError(t, c.uploadQueue.Process(nil, upload.DefaultBytesPerFrame))
	require.NoError(t, c.DrainUploads())

	require.NoError(t, c.EmitMirrors(nil, nil, 0, asset.TileIndex{}))
	require.False(t, c.renderablesChanged.per[0], "flag clears once prerequisites are resident")
}

func TestPackTileWindowMarksUnknownTiles(t *testing.T) {
	c := newTestCatalogue()
	tex := asset.NewID()
	c.tiles[asset.TileIndex{X: 1, Z: 0}] = asset.TileInfo{Index: asset.TileIndex{X: 1, Z: 0}, DDGIAtlasTexture: tex}

	window := c.packTileWindow(asset.TileIndex{})
	side := 2*TileWindowRadius + 1
	require.Len(t, window, side*side)
	for _, e := range window {
		if e.X == 1 && e.Z == 0 {
			// Texture id known but not resident in the bindless table
			// (device-less), so it still resolves to the no-slot marker.
			require.Equal(t, asset.NoTextureSlot, e.DDGIAtlasSlot)
		} else {
			require.Equal(t, asset.NoTextureSlot, e.DDGIAtlasSlot, "tiles without info carry the no-slot marker")
		}
	}
}

func TestApplyEmptyUpdateIsNoOp(t *testing.T) {
	c := newTestCatalogue()
	require.NoError(t, c.Apply(asset.Update{}))
	require.False(t, c.renderablesChanged.take(0))
	require.False(t, c.materialsChanged.take(0))
	require.False(t, c.lightsChanged.take(0))
	require.False(t, c.modelsChanged.take(0))
	require.False(t, c.tileInfosChanged.take(0))
}
