// Package catalogue implements the asset catalogue: the single
// mutable owner of every CPU-side asset record, its GPU mirror buffer
// slot, and the dirty bookkeeping that decides what gets re-uploaded
// this frame.
//
// Grounded on original_source's RenderContext.h (AssetUpdate) and the
// Internal{Mesh,Model,Renderable,Material,Texture,Light}.h record
// shapes, combined with manager.go's UpdateScene/UpdateVoxelData
// re-emit-through-staging pattern.
package catalogue

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/accel"
	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/bindless"
	"github.com/gekko3d/renderer/deletion"
	"github.com/gekko3d/renderer/gigabuf"
	"github.com/gekko3d/renderer/internal/rlog"
	"github.com/gekko3d/renderer/slot"
	"github.com/gekko3d/renderer/upload"
)

// MaxShadowCasters is the fixed number of point-light cube-map shadow
// channels, granted first-come-first-served among lights with
// ShadowCaster set (§4.6 step 12, GLOSSARY "Shadow caster slot").
const MaxShadowCasters = 4

// TileWindowRadius is the half-extent of the GPU tile-info window
// re-emitted around the camera's tile each frame: (2R+1)^2 entries,
// entries outside any known tile recorded with no atlas slot (§4.6).
const TileWindowRadius = 10

// modelRecord tracks one Model's dense mesh-table range plus each
// mesh's giga-buffer placement, keyed by model id.
type modelRecord struct {
	model         asset.Model
	meshInfoRange slot.Handle // dense mesh-table index range, ModelOffset/NumMeshes source
	meshes        []asset.Mesh
	placements    []upload.MeshPlacement // parallel to model.Meshes, zero until uploaded
	uploaded      []bool
}

func (r *modelRecord) resident() bool {
	if len(r.uploaded) == 0 {
		return false
	}
	for _, u := range r.uploaded {
		if !u {
			return false
		}
	}
	return true
}

type materialRecord struct {
	material asset.Material
	index    uint32
}

type textureRecord struct {
	texture  asset.Texture
	slot     uint32
	gpuTex   *wgpu.Texture
	view     *wgpu.TextureView
	resident bool
}

type renderableRecord struct {
	renderable asset.Renderable
	index      uint32

	// Per-frame re-emission offsets, recomputed by packRenderables:
	// where this renderable's mesh-index run starts in the model
	// buffer and its per-mesh material run in the material-index
	// buffer.
	modelOffset        uint32
	firstMaterialIndex uint32
	dynamicModelOffset uint32

	dynamicMeshes []accel.DynamicMesh
	dynamicRange  slot.Handle // dense mesh-table range the copies occupy
}

type lightRecord struct {
	light      asset.Light
	index      uint32
	shadowSlot uint32 // asset.NoShadowSlot if not granted
}

type skeletonRecord struct {
	skeleton   asset.Skeleton
	jointRange slot.Handle // contiguous run, one unit per joint
}

// changedFlags is one *_changed[N] array (§4.6): marking sets every
// multi-buffer slot, taking clears only the queried slot, so each
// frame in flight re-emits at least once.
type changedFlags struct {
	per []bool
}

func newChangedFlags(n int) changedFlags { return changedFlags{per: make([]bool, n)} }

func (c *changedFlags) mark() {
	for i := range c.per {
		c.per[i] = true
	}
}

func (c *changedFlags) take(slot int) bool {
	d := c.per[slot]
	c.per[slot] = false
	return d
}

func (c *changedFlags) remark(slot int) { c.per[slot] = true }

// Deps bundles what the catalogue needs from its owner.
type Deps struct {
	Device   *wgpu.Device
	Bindless *bindless.Table
	Uploads  *upload.Queue
	Accel    *accel.Manager
	Deletion *deletion.Queue

	VertexBuffer *gigabuf.Buffer
	IndexBuffer  *gigabuf.Buffer

	MultiBufferCount int
	RTEnabled        bool
	Log              rlog.Logger
}

// Catalogue owns every live asset record and its GPU-mirror buffers.
// It is single-writer (the orchestrator calls Apply once per frame
// before recording any draw commands, §5).
type Catalogue struct {
	device *wgpu.Device
	log    rlog.Logger

	bindlessTable *bindless.Table
	uploadQueue   *upload.Queue
	accelMgr      *accel.Manager
	deletionQueue *deletion.Queue
	vertexBuf     *gigabuf.Buffer
	indexBuf      *gigabuf.Buffer

	rtEnabled bool
	frame     uint64

	// meshInfoSlots and skeletonJointSlots hand out contiguous
	// multi-unit runs (one model can own several meshes, one skeleton
	// several joints), so they use the byte-range allocator with each
	// "byte" standing for one dense unit. materialSlots/renderableSlots/
	// lightSlots only ever allocate one unit at a time, so the simpler
	// dense-index Fixed allocator fits them.
	meshInfoSlots      *slot.Allocator
	skeletonJointSlots *slot.Allocator
	materialSlots      *slot.Fixed
	renderableSlots    *slot.Fixed
	lightSlots         *slot.Fixed

	models      map[asset.ID]*modelRecord
	materials   map[asset.ID]*materialRecord
	textures    map[asset.ID]*textureRecord
	renderables map[asset.ID]*renderableRecord
	lights      map[asset.ID]*lightRecord
	skeletons   map[asset.ID]*skeletonRecord
	tiles       map[asset.TileIndex]asset.TileInfo
	animators   map[asset.ID]asset.Animator

	meshInfos     []asset.GPUMeshInfo // dense, indexed by meshInfoSlots units
	jointMatrices []mgl32.Mat4        // dense, indexed by skeletonJointSlots units

	shadowCasters [MaxShadowCasters]asset.ID

	meshIDToModel map[asset.ID]asset.ID // reverse index for upload completion routing

	renderablesChanged changedFlags
	materialsChanged   changedFlags
	lightsChanged      changedFlags
	modelsChanged      changedFlags // covers mesh-info, model and material-index buffers
	skeletonsChanged   changedFlags
	tileInfosChanged   changedFlags

	renderableMirror mirror
	materialMirror   mirror
	matIndexMirror   mirror
	modelMirror      mirror
	meshInfoMirror   mirror
	lightMirror      mirror
	pointShadowM     mirror
	skeletonMirror   mirror
	tileInfoMirror   mirror
}

// New creates an empty catalogue backed by the given subsystems.
func New(d Deps) *Catalogue {
	log := d.Log
	if log == nil {
		log = rlog.Nop()
	}
	n := d.MultiBufferCount
	if n <= 0 {
		n = 2
	}
	c := &Catalogue{
		device:        d.Device,
		log:           log,
		bindlessTable: d.Bindless,
		uploadQueue:   d.Uploads,
		accelMgr:      d.Accel,
		deletionQueue: d.Deletion,
		vertexBuf:     d.VertexBuffer,
		indexBuf:      d.IndexBuffer,
		rtEnabled:     d.RTEnabled,

		meshInfoSlots:      slot.New(),
		skeletonJointSlots: slot.New(),
		materialSlots:      slot.NewFixed(),
		renderableSlots:    slot.NewFixed(),
		lightSlots:         slot.NewFixed(),

		models:      make(map[asset.ID]*modelRecord),
		materials:   make(map[asset.ID]*materialRecord),
		textures:    make(map[asset.ID]*textureRecord),
		renderables: make(map[asset.ID]*renderableRecord),
		lights:      make(map[asset.ID]*lightRecord),
		skeletons:   make(map[asset.ID]*skeletonRecord),
		tiles:       make(map[asset.TileIndex]asset.TileInfo),
		animators:   make(map[asset.ID]asset.Animator),

		meshIDToModel: make(map[asset.ID]asset.ID),

		renderablesChanged: newChangedFlags(n),
		materialsChanged:   newChangedFlags(n),
		lightsChanged:      newChangedFlags(n),
		modelsChanged:      newChangedFlags(n),
		skeletonsChanged:   newChangedFlags(n),
		tileInfosChanged:   newChangedFlags(n),

		renderableMirror: mirror{device: d.Device, label: "Renderables"},
		materialMirror:   mirror{device: d.Device, label: "Materials"},
		matIndexMirror:   mirror{device: d.Device, label: "MaterialIndices"},
		modelMirror:      mirror{device: d.Device, label: "Models"},
		meshInfoMirror:   mirror{device: d.Device, label: "MeshInfos"},
		lightMirror:      mirror{device: d.Device, label: "Lights"},
		pointShadowM:     mirror{device: d.Device, label: "PointShadows", uniform: true},
		skeletonMirror:   mirror{device: d.Device, label: "Skeletons"},
		tileInfoMirror:   mirror{device: d.Device, label: "TileInfos"},
	}
	for i := range c.shadowCasters {
		c.shadowCasters[i] = asset.NilID
	}
	return c
}

// BeginFrame tells the catalogue which frame deletions enqueued from
// now on belong to. Called by the orchestrator before Apply/Emit.
func (c *Catalogue) BeginFrame(frame uint64) { c.frame = frame }

// Apply processes one Update in the fixed processing order of §4.6:
// tile infos first, then model removals (with renderable cascade),
// model adds, texture removes/adds, materials, animations, skeletons,
// renderable removes/adds, lights last.
func (c *Catalogue) Apply(u asset.Update) error {
	// 1. Tile infos.
	for _, idx := range u.RemovedTileInfos {
		if _, ok := c.tiles[idx]; !ok {
			c.log.Warnf("catalogue: remove of unknown tile (%d,%d)", idx.X, idx.Z)
			continue
		}
		delete(c.tiles, idx)
		c.tileInfosChanged.mark()
	}
	for _, ti := range u.AddedTileInfos {
		c.tiles[ti.Index] = ti
		c.tileInfosChanged.mark()
	}
	for _, ti := range u.UpdatedTileInfos {
		c.tiles[ti.Index] = ti
		c.tileInfosChanged.mark()
	}

	// 2. Removed models: BLAS + giga-buffer handles to the deletion
	//    queue, cascade-remove renderables still referencing them.
	for _, id := range u.RemovedModels {
		c.removeModel(id)
	}

	// 3. Id maps: map-backed, so removal already left them consistent;
	//    the dense mesh table is compacted lazily by the free-list.

	// 4. Added models.
	for _, m := range u.AddedModels {
		if err := c.addModel(m); err != nil {
			return fmt.Errorf("catalogue: add model %s: %w", m.ID, err)
		}
	}

	// 5. Removed textures.
	for _, id := range u.RemovedTextures {
		c.removeTexture(id)
	}

	// 6. Added/updated textures.
	for _, t := range u.AddedTextures {
		if err := c.addTexture(t); err != nil {
			return fmt.Errorf("catalogue: add texture %s: %w", t.ID, err)
		}
	}
	for _, t := range u.UpdatedTextures {
		c.updateTexture(t)
	}

	// 7. Materials.
	for _, id := range u.RemovedMaterials {
		c.removeMaterial(id)
	}
	for _, m := range u.AddedMaterials {
		c.addMaterial(m)
	}
	for _, m := range u.UpdatedMaterials {
		c.updateMaterial(m)
	}

	// 8. Animations are pass-through ids the out-of-scope animation
	//    updater keys playback state by; animator records are only
	//    stored here. Joint matrices reach the skeleton buffer through
	//    SetJointMatrices, not through animator updates.
	for _, a := range u.UpdatedAnimators {
		c.animators[a.RenderableID] = a
	}

	// 9. Skeletons.
	for _, id := range u.RemovedSkeletons {
		c.removeSkeleton(id)
	}
	for _, s := range u.AddedSkeletons {
		c.addSkeleton(s)
	}

	// 10. Removed renderables (dynamic-mesh teardown included).
	for _, id := range u.RemovedRenderables {
		c.removeRenderable(id)
	}

	// 11. Added/updated renderables.
	for _, r := range u.AddedRenderables {
		c.addRenderable(r)
	}
	for _, r := range u.UpdatedRenderables {
		c.updateRenderable(r)
	}

	// 12. Lights.
	for _, id := range u.RemovedLights {
		c.removeLight(id)
	}
	for _, l := range u.AddedLights {
		c.addLight(l)
	}
	for _, l := range u.UpdatedLights {
		c.updateLight(l)
	}

	return nil
}

func (c *Catalogue) addModel(m asset.Model) error {
	if _, dup := c.models[m.ID]; dup {
		c.log.Warnf("catalogue: duplicate model %s ignored", m.ID)
		return nil
	}
	rec := &modelRecord{
		model:         m,
		meshInfoRange: c.meshInfoSlots.Add(uint64(len(m.Meshes))),
		placements:    make([]upload.MeshPlacement, len(m.Meshes)),
		uploaded:      make([]bool, len(m.Meshes)),
	}
	c.models[m.ID] = rec
	c.growMeshInfos(rec.meshInfoRange)
	for _, meshID := range m.Meshes {
		c.meshIDToModel[meshID] = m.ID
	}
	return nil
}

// RegisterMeshes supplies the actual Mesh payloads for a model that
// was just added, queuing them for upload. Kept separate from
// addModel because AssetUpdate only carries Model (mesh-id list); the
// mesh bytes arrive from the importer via this side channel, mirroring
// InternalModel.h's separation of model metadata from mesh payload.
func (c *Catalogue) RegisterMeshes(modelID asset.ID, meshes []asset.Mesh) {
	rec, ok := c.models[modelID]
	if !ok {
		c.log.Warnf("catalogue: meshes for unknown model %s dropped", modelID)
		return
	}
	rec.meshes = meshes
	if c.uploadQueue != nil {
		c.uploadQueue.EnqueueModel(rec.model, meshes)
	}
}

func (c *Catalogue) removeModel(id asset.ID) {
	rec, ok := c.models[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown model %s", id)
		return
	}

	// In-flight upload jobs for this model are dropped; any ranges
	// they already placed free with the same deferred closure below.
	var partial []upload.MeshPlacement
	if c.uploadQueue != nil {
		c.uploadQueue.CancelModel(id, func(mp upload.MeshPlacement) {
			partial = append(partial, mp)
		})
	}

	placements := append(partial, rec.placements...)
	meshIDs := append([]asset.ID(nil), rec.model.Meshes...)
	if c.deletionQueue != nil {
		frame := c.frame
		vb, ib, am := c.vertexBuf, c.indexBuf, c.accelMgr
		c.deletionQueue.Enqueue(frame, "model "+id.String(), func() {
			for _, mp := range placements {
				if vb != nil && mp.VertexHandle.Valid() {
					vb.Remove(mp.VertexHandle)
				}
				if ib != nil && mp.IndexHandle.Valid() {
					ib.Remove(mp.IndexHandle)
				}
			}
			if am != nil {
				for _, meshID := range meshIDs {
					am.RemoveMesh(meshID)
				}
			}
		})
	}

	for i := rec.meshInfoRange.Offset; i < rec.meshInfoRange.Offset+rec.meshInfoRange.Size; i++ {
		if int(i) < len(c.meshInfos) {
			c.meshInfos[i] = asset.GPUMeshInfo{}
		}
	}
	c.meshInfoSlots.Remove(rec.meshInfoRange)
	for _, meshID := range rec.model.Meshes {
		delete(c.meshIDToModel, meshID)
	}
	delete(c.models, id)
	c.modelsChanged.mark()

	// Cascade: a renderable whose model disappeared must go with it
	// (§4.6 step 2).
	for rid, rr := range c.renderables {
		if rr.renderable.ModelID == id {
			c.removeRenderable(rid)
		}
	}
}

func (c *Catalogue) addTexture(t asset.Texture) error {
	if _, dup := c.textures[t.ID]; dup {
		c.log.Warnf("catalogue: duplicate texture %s ignored", t.ID)
		return nil
	}

	rec := &textureRecord{texture: t, slot: asset.NoTextureSlot}
	if c.device != nil {
		gpuTex, err := c.device.CreateTexture(&wgpu.TextureDescriptor{
			Label:         t.ID.String(),
			Size:          wgpu.Extent3D{Width: t.Width, Height: t.Height, DepthOrArrayLayers: 1},
			Format:        textureFormat(t.Format),
			Dimension:     wgpu.TextureDimension2D,
			MipLevelCount: uint32(len(t.Mips)),
			SampleCount:   1,
			Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create texture: %w", err)
		}
		view, err := gpuTex.CreateView(nil)
		if err != nil {
			return fmt.Errorf("create texture view: %w", err)
		}
		rec.gpuTex = gpuTex
		rec.view = view
		if c.bindlessTable != nil {
			rec.slot = c.bindlessTable.AssignTexture(view)
		}
	}
	c.textures[t.ID] = rec
	if c.uploadQueue != nil {
		c.uploadQueue.EnqueueTexture(t, rec.gpuTex)
	}
	return nil
}

func (c *Catalogue) updateTexture(t asset.Texture) {
	rec, ok := c.textures[t.ID]
	if !ok {
		c.log.Warnf("catalogue: update of unknown texture %s", t.ID)
		return
	}
	rec.texture = t
	rec.resident = false
	if c.uploadQueue != nil {
		c.uploadQueue.EnqueueTexture(t, rec.gpuTex)
	}
}

func (c *Catalogue) removeTexture(id asset.ID) {
	rec, ok := c.textures[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown texture %s", id)
		return
	}
	if c.uploadQueue != nil {
		c.uploadQueue.CancelTexture(id)
	}
	// The image, its view, and the bindless slot all outlive the
	// in-flight frames together; the slot is returned to the allocator
	// only once nothing can reference the old binding (invariant 4).
	if c.deletionQueue != nil {
		bt := c.bindlessTable
		slotIdx := rec.slot
		gpuTex := rec.gpuTex
		view := rec.view
		c.deletionQueue.Enqueue(c.frame, "texture "+id.String(), func() {
			if bt != nil && slotIdx != asset.NoTextureSlot {
				bt.FreeTexture(slotIdx)
			}
			if view != nil {
				view.Release()
			}
			if gpuTex != nil {
				gpuTex.Release()
			}
		})
	} else if c.bindlessTable != nil && rec.slot != asset.NoTextureSlot {
		c.bindlessTable.FreeTexture(rec.slot)
	}
	delete(c.textures, id)
	c.materialsChanged.mark()
}

func (c *Catalogue) addMaterial(m asset.Material) {
	if _, dup := c.materials[m.ID]; dup {
		c.log.Warnf("catalogue: duplicate material %s ignored", m.ID)
		return
	}
	idx := c.materialSlots.Alloc()
	c.materials[m.ID] = &materialRecord{material: m, index: idx}
	c.materialsChanged.mark()
}

func (c *Catalogue) updateMaterial(m asset.Material) {
	rec, ok := c.materials[m.ID]
	if !ok {
		c.log.Warnf("catalogue: update of unknown material %s", m.ID)
		return
	}
	rec.material = m
	c.materialsChanged.mark()
	c.markRenderablesUsingMaterialDirty(m.ID)
}

func (c *Catalogue) removeMaterial(id asset.ID) {
	rec, ok := c.materials[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown material %s", id)
		return
	}
	c.materialSlots.Free(rec.index)
	delete(c.materials, id)
	c.materialsChanged.mark()
}

func (c *Catalogue) markRenderablesUsingMaterialDirty(matID asset.ID) {
	for _, r := range c.renderables {
		for _, id := range r.renderable.MaterialIDs {
			if id == matID {
				c.renderablesChanged.mark()
				return
			}
		}
	}
}

func (c *Catalogue) addSkeleton(s asset.Skeleton) {
	if _, dup := c.skeletons[s.ID]; dup {
		c.log.Warnf("catalogue: duplicate skeleton %s ignored", s.ID)
		return
	}
	rng := c.skeletonJointSlots.Add(uint64(s.JointCount()))
	c.skeletons[s.ID] = &skeletonRecord{skeleton: s, jointRange: rng}
	c.growJointMatrices(rng)
	// Until the animation updater writes real skinning matrices, the
	// joints mirror their inverse bind pose.
	for i := 0; i < s.JointCount() && i < len(s.Joints); i++ {
		c.jointMatrices[rng.Offset+uint64(i)] = s.Joints[i].InverseBindMatrix
	}
	c.skeletonsChanged.mark()
}

func (c *Catalogue) removeSkeleton(id asset.ID) {
	rec, ok := c.skeletons[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown skeleton %s", id)
		return
	}
	c.skeletonJointSlots.Remove(rec.jointRange)
	delete(c.skeletons, id)
	c.skeletonsChanged.mark()
}

// SetJointMatrices installs the animation updater's pre-interpolated
// joint globals for one skeleton (§3: the renderer consumes them and
// writes the skeleton buffer).
func (c *Catalogue) SetJointMatrices(skeletonID asset.ID, mats []mgl32.Mat4) {
	rec, ok := c.skeletons[skeletonID]
	if !ok {
		return
	}
	for i, m := range mats {
		if uint64(i) >= rec.jointRange.Size {
			break
		}
		c.jointMatrices[rec.jointRange.Offset+uint64(i)] = m
	}
	c.skeletonsChanged.mark()
}

func (c *Catalogue) addRenderable(r asset.Renderable) {
	if _, dup := c.renderables[r.ID]; dup {
		c.log.Warnf("catalogue: duplicate renderable %s ignored", r.ID)
		return
	}
	idx := c.renderableSlots.Alloc()
	c.renderables[r.ID] = &renderableRecord{renderable: r, index: idx}
	c.renderablesChanged.mark()
	// Skinned + RT: the dynamic model copy is queued once the source
	// meshes are resident; QueueDynamicWork picks it up (§4.6 step 11).
}

func (c *Catalogue) updateRenderable(r asset.Renderable) {
	rec, ok := c.renderables[r.ID]
	if !ok {
		c.log.Warnf("catalogue: update of unknown renderable %s", r.ID)
		return
	}
	rec.renderable = r
	c.renderablesChanged.mark()
}

func (c *Catalogue) removeRenderable(id asset.ID) {
	rec, ok := c.renderables[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown renderable %s", id)
		return
	}
	if c.accelMgr != nil {
		// Cancel purges any in-flight copy job immediately; completed
		// copies were referenced by submitted frames, so their ranges
		// and BLASes drain through the deletion queue (§4.6 step 10).
		done := c.accelMgr.CancelDynamic(id)
		if len(done) > 0 {
			if rec.dynamicRange.Valid() {
				for i := rec.dynamicRange.Offset; i < rec.dynamicRange.Offset+rec.dynamicRange.Size; i++ {
					if int(i) < len(c.meshInfos) {
						c.meshInfos[i] = asset.GPUMeshInfo{}
					}
				}
				c.meshInfoSlots.Remove(rec.dynamicRange)
			}
			am := c.accelMgr
			if c.deletionQueue != nil {
				c.deletionQueue.Enqueue(c.frame, "dynamic meshes of "+id.String(), func() {
					for _, dm := range done {
						am.ReleaseDynamicMesh(dm)
					}
				})
			} else {
				for _, dm := range done {
					am.ReleaseDynamicMesh(dm)
				}
			}
			c.modelsChanged.mark()
		}
	}
	c.renderableSlots.Free(rec.index)
	delete(c.renderables, id)
	c.renderablesChanged.mark()
}

func (c *Catalogue) addLight(l asset.Light) {
	if _, dup := c.lights[l.ID]; dup {
		c.log.Warnf("catalogue: duplicate light %s ignored", l.ID)
		return
	}
	idx := c.lightSlots.Alloc()
	rec := &lightRecord{light: l, index: idx, shadowSlot: asset.NoShadowSlot}
	c.lights[l.ID] = rec
	c.grantShadowSlot(rec)
	c.lightsChanged.mark()
}

func (c *Catalogue) updateLight(l asset.Light) {
	rec, ok := c.lights[l.ID]
	if !ok {
		c.log.Warnf("catalogue: update of unknown light %s", l.ID)
		return
	}
	rec.light = l
	if !l.ShadowCaster {
		c.releaseShadowSlot(rec)
	} else {
		c.grantShadowSlot(rec)
	}
	if rec.shadowSlot != asset.NoShadowSlot {
		rec.light.FaceViewProj = cubeFaceMatrices(l.Position, l.Range)
	}
	c.lightsChanged.mark()
}

func (c *Catalogue) removeLight(id asset.ID) {
	rec, ok := c.lights[id]
	if !ok {
		c.log.Warnf("catalogue: remove of unknown light %s", id)
		return
	}
	c.releaseShadowSlot(rec)
	c.lightSlots.Free(rec.index)
	delete(c.lights, id)
	c.lightsChanged.mark()
}

// grantShadowSlot hands the light a cube-map channel if it wants one
// and any is free. First come, first served; a light keeps its slot
// until removed or demoted (§4.6 step 12).
func (c *Catalogue) grantShadowSlot(rec *lightRecord) {
	if !rec.light.ShadowCaster || rec.shadowSlot != asset.NoShadowSlot {
		return
	}
	for i := range c.shadowCasters {
		if c.shadowCasters[i].IsNil() {
			c.shadowCasters[i] = rec.light.ID
			rec.shadowSlot = uint32(i)
			rec.light.FaceViewProj = cubeFaceMatrices(rec.light.Position, rec.light.Range)
			return
		}
	}
}

func (c *Catalogue) releaseShadowSlot(rec *lightRecord) {
	if rec.shadowSlot == asset.NoShadowSlot {
		return
	}
	c.shadowCasters[rec.shadowSlot] = asset.NilID
	rec.shadowSlot = asset.NoShadowSlot
}

// cubeFaceMatrices builds the 6 cube-face view-projection matrices a
// shadow caster pre-computes: 90 degree FOV, unit aspect, far plane at
// the light's range (§3 Light).
func cubeFaceMatrices(pos mgl32.Vec3, rng float32) [6]mgl32.Mat4 {
	if rng <= 0 {
		rng = 1
	}
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.1, rng)
	dirs := [6]mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}
	ups := [6]mgl32.Vec3{
		{0, -1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
		{0, -1, 0}, {0, -1, 0},
	}
	var out [6]mgl32.Mat4
	for i := 0; i < 6; i++ {
		view := mgl32.LookAtV(pos, pos.Add(dirs[i]), ups[i])
		out[i] = proj.Mul4(view)
	}
	return out
}

func (c *Catalogue) growMeshInfos(rng slot.Handle) {
	need := rng.Offset + rng.Size
	for uint64(len(c.meshInfos)) < need {
		c.meshInfos = append(c.meshInfos, asset.GPUMeshInfo{})
	}
}

func (c *Catalogue) growJointMatrices(rng slot.Handle) {
	need := rng.Offset + rng.Size
	for uint64(len(c.jointMatrices)) < need {
		c.jointMatrices = append(c.jointMatrices, mgl32.Ident4())
	}
}

// prerequisitesResident reports whether every asset a renderable
// transitively references has finished uploading (§3 invariant 1,
// GLOSSARY "Prerequisite-resident"): its model's meshes and every
// referenced material's textures.
func (c *Catalogue) prerequisitesResident(rec *renderableRecord) bool {
	mrec, ok := c.models[rec.renderable.ModelID]
	if !ok || !mrec.resident() {
		return false
	}
	for _, matID := range rec.renderable.MaterialIDs {
		if matID.IsNil() {
			continue
		}
		mat, ok := c.materials[matID]
		if !ok {
			return false
		}
		if !c.materialTexturesResident(mat.material) {
			return false
		}
	}
	if !rec.renderable.SkeletonID.IsNil() {
		if _, ok := c.skeletons[rec.renderable.SkeletonID]; !ok {
			return false
		}
	}
	return true
}

func (c *Catalogue) materialTexturesResident(m asset.Material) bool {
	for _, texID := range m.TextureIDs() {
		if texID.IsNil() {
			continue
		}
		trec, ok := c.textures[texID]
		if !ok || (!trec.resident && c.device != nil) {
			return false
		}
	}
	return true
}

// DrainUploads pulls completed mesh/texture uploads off the upload
// queue, builds the newly-uploaded meshes' BLAS, and records their
// placements into the dense mesh table.
func (c *Catalogue) DrainUploads() error {
	if c.uploadQueue == nil {
		return nil
	}
	for _, mp := range c.uploadQueue.DrainCompletedMeshes() {
		modelID, ok := c.meshIDToModel[mp.MeshID]
		if !ok {
			// Model was removed while the upload was in flight; the
			// cancel path already freed the placement (§7).
			continue
		}
		rec := c.models[modelID]
		meshIdx := indexOfMesh(rec.model.Meshes, mp.MeshID)
		if meshIdx < 0 || meshIdx >= len(rec.meshes) {
			continue
		}
		mesh := rec.meshes[meshIdx]

		var addr accel.DeviceAddress
		if c.rtEnabled && c.accelMgr != nil {
			var err error
			addr, err = c.accelMgr.BuildMesh(mesh)
			if err != nil {
				return fmt.Errorf("catalogue: build BLAS for mesh %s: %w", mp.MeshID, err)
			}
		}

		rec.placements[meshIdx] = mp
		rec.uploaded[meshIdx] = true

		dense := rec.meshInfoRange.Offset + uint64(meshIdx)
		c.growMeshInfos(slot.Handle{Offset: dense, Size: 1})
		c.meshInfos[dense] = asset.GPUMeshInfo{
			AABBMin:           mesh.AABBMin,
			AABBMax:           mesh.AABBMax,
			VertexOffset:      uint32(mp.VertexHandle.Offset / upload.VertexStrideBytes),
			IndexOffset:       uint32(mp.IndexHandle.Offset / 4),
			IndexCount:        uint32(len(mesh.Indices)),
			BLASDeviceAddress: uint64(addr),
		}
		c.modelsChanged.mark()
		c.renderablesChanged.mark()
	}

	for _, tp := range c.uploadQueue.DrainCompletedTextures() {
		if trec, ok := c.textures[tp.TextureID]; ok {
			trec.resident = true
		}
		c.materialsChanged.mark()
		c.renderablesChanged.mark()
	}
	return nil
}

// QueueDynamicWork scans for skinned renderables whose source meshes
// are resident but whose dynamic copies haven't been queued yet, and
// hands them to the AS manager (§4.8: on first frame of such a
// renderable, duplicate every mesh of its model).
func (c *Catalogue) QueueDynamicWork() {
	if !c.rtEnabled || c.accelMgr == nil {
		return
	}
	for id, rec := range c.renderables {
		if !rec.renderable.IsSkinned() || len(rec.dynamicMeshes) > 0 {
			continue
		}
		if c.accelMgr.DynamicPending(id) {
			continue
		}
		mrec, ok := c.models[rec.renderable.ModelID]
		if !ok || !mrec.resident() {
			continue
		}
		srcVtx := make([]gigabuf.Handle, len(mrec.meshes))
		srcIdx := make([]gigabuf.Handle, len(mrec.meshes))
		for i, mp := range mrec.placements {
			srcVtx[i] = mp.VertexHandle
			srcIdx[i] = mp.IndexHandle
		}
		c.accelMgr.QueueDynamicCopy(id, mrec.meshes, srcVtx, srcIdx)
	}
}

// DrainDynamic installs completed dynamic-copy sets: the copies get
// their own dense mesh-table range so the model buffer can reference
// them, and the owning renderable's DynamicModelOffset flips over on
// the next re-emission.
func (c *Catalogue) DrainDynamic(completed []accel.CompletedDynamic) {
	for _, cd := range completed {
		rec, ok := c.renderables[cd.RenderableID]
		if !ok {
			// Renderable removed mid-copy: CancelDynamic already ran,
			// but the completion raced it; free the copies now.
			if c.accelMgr != nil {
				for _, dm := range cd.Meshes {
					c.accelMgr.ReleaseDynamicMesh(dm)
				}
			}
			continue
		}
		mrec := c.models[rec.renderable.ModelID]
		rng := c.meshInfoSlots.Add(uint64(len(cd.Meshes)))
		c.growMeshInfos(rng)
		for i, dm := range cd.Meshes {
			var src asset.GPUMeshInfo
			if mrec != nil {
				srcIdx := indexOfMesh(mrec.model.Meshes, dm.SourceMeshID)
				if srcIdx >= 0 {
					src = c.meshInfos[mrec.meshInfoRange.Offset+uint64(srcIdx)]
				}
			}
			c.meshInfos[rng.Offset+uint64(i)] = asset.GPUMeshInfo{
				AABBMin:           src.AABBMin,
				AABBMax:           src.AABBMax,
				VertexOffset:      uint32(dm.VertexHandle.Offset / upload.VertexStrideBytes),
				IndexOffset:       uint32(dm.IndexHandle.Offset / 4),
				IndexCount:        src.IndexCount,
				BLASDeviceAddress: uint64(dm.Address),
			}
		}
		rec.dynamicMeshes = cd.Meshes
		rec.dynamicRange = rng
		c.modelsChanged.mark()
		c.renderablesChanged.mark()
	}
}

// TLASInstances builds the frame's instance list: one entry per
// (renderable, mesh) pair whose prerequisites are resident, pointing
// at the static BLAS — or the dynamic copy's for animated renderables
// (§4.8 TLAS).
func (c *Catalogue) TLASInstances() []accel.Instance {
	var out []accel.Instance
	for _, rec := range c.renderables {
		if !rec.renderable.Visible || !c.prerequisitesResident(rec) {
			continue
		}
		mrec := c.models[rec.renderable.ModelID]
		b := rec.renderable.Bounds
		r := mgl32.Vec3{b.Radius, b.Radius, b.Radius}
		min, max := b.Center.Sub(r), b.Center.Add(r)

		if len(rec.dynamicMeshes) > 0 {
			for _, dm := range rec.dynamicMeshes {
				out = append(out, accel.Instance{
					Transform:       rec.renderable.WorldTransform,
					BoundsMin:       min,
					BoundsMax:       max,
					BLASAddress:     dm.Address,
					RenderableIndex: rec.index,
				})
			}
			continue
		}
		for i := range mrec.model.Meshes {
			info := c.meshInfos[mrec.meshInfoRange.Offset+uint64(i)]
			out = append(out, accel.Instance{
				Transform:       rec.renderable.WorldTransform,
				BoundsMin:       min,
				BoundsMax:       max,
				BLASAddress:     accel.DeviceAddress(info.BLASDeviceAddress),
				RenderableIndex: rec.index,
			})
		}
	}
	return out
}

// RenderableCount is the high-water mark of the renderable slot table.
func (c *Catalogue) RenderableCount() uint32 { return c.renderableSlots.Tail() }

// LiveRenderables reports how many renderables currently exist.
func (c *Catalogue) LiveRenderables() int { return len(c.renderables) }

// MeshCount reports the mesh-table high-water mark in units; freed
// holes below the highest live entry are still counted.
func (c *Catalogue) MeshCount() uint64 { return c.meshInfoSlots.UsedSpace() }

func indexOfMesh(meshes []asset.ID, id asset.ID) int {
	for i, m := range meshes {
		if m == id {
			return i
		}
	}
	return -1
}

func textureFormat(f asset.Format) wgpu.TextureFormat {
	switch f {
	case asset.FormatRGBA8Srgb:
		return wgpu.TextureFormatRGBA8UnormSrgb
	case asset.FormatRGB8Srgb, asset.FormatRGB8Unorm:
		return wgpu.TextureFormatRGBA8Unorm // RGB8 has no native wgpu format; expanded at import time
	case asset.FormatRG8Unorm:
		return wgpu.TextureFormatRG8Unorm
	case asset.FormatR8Unorm:
		return wgpu.TextureFormatR8Unorm
	case asset.FormatR16Unorm:
		return wgpu.TextureFormatR16Uint
	case asset.FormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float
	case asset.FormatBC7Srgb:
		return wgpu.TextureFormatBC7RGBAUnormSrgb
	case asset.FormatBC7Unorm:
		return wgpu.TextureFormatBC7RGBAUnorm
	case asset.FormatBC5Unorm:
		return wgpu.TextureFormatBC5RGUnorm
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}
