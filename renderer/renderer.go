// Package renderer is the orchestrator (§4.13): it owns every other
// subsystem (catalogue, bindless table, upload queue, acceleration
// structures, deletion queue, frame graph, pager, DDGI atlas/baker)
// and exposes the public surface the host application drives once per
// frame, grounded on app.App's ownership style and RenderContext.h's
// init/update/prepare/draw_frame/request_world_position surface.
package renderer

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/accel"
	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/bindless"
	"github.com/gekko3d/renderer/catalogue"
	"github.com/gekko3d/renderer/ddgi"
	"github.com/gekko3d/renderer/deletion"
	"github.com/gekko3d/renderer/gigabuf"
	"github.com/gekko3d/renderer/graph"
	"github.com/gekko3d/renderer/internal/rlog"
	"github.com/gekko3d/renderer/pager"
	"github.com/gekko3d/renderer/passes"
	"github.com/gekko3d/renderer/scenefile"
	"github.com/gekko3d/renderer/staging"
	"github.com/gekko3d/renderer/upload"
)

// FramesInFlight is N from §5: per-frame resources are arrays of this
// length, fence-gated by the slot index draw_frame is currently on.
const FramesInFlight = 2

// Camera is the orchestrator's view of a camera: the pieces the scene
// UBO and the cull pass need. The host application owns the actual
// camera controller and fills this in each frame.
type Camera struct {
	View, Proj mgl32.Mat4
	Position   mgl32.Vec3
}

// RenderOptions toggles feature-flag bits packed into the scene UBO.
type RenderOptions struct {
	DDGI, Shadows, SSAO, TAA, Bloom bool
}

// DebugOptions controls debug visualization passes; the zero value
// disables all of them.
type DebugOptions struct {
	BoundsVis bool
	HeatmapRT bool
}

func (o RenderOptions) bits() uint32 {
	var f uint32
	if o.DDGI {
		f |= asset.FeatureDDGI
	}
	if o.Shadows {
		f |= asset.FeatureShadows
	}
	if o.SSAO {
		f |= asset.FeatureSSAO
	}
	if o.TAA {
		f |= asset.FeatureTAA
	}
	if o.Bloom {
		f |= asset.FeatureBloom
	}
	return f
}

// DepthFetcher supplies the depth value at a pixel from the previous
// frame's 1x1 readback copy. Installed by the host once a live device
// exists; world-position requests fall back to the frozen camera's
// position without one.
type DepthFetcher func(pixel [2]uint32) (float32, bool)

// worldPosRequest is a pending request_world_position call: recorded
// at end of frame f, serviced at the start of frame f's next turn
// through the ring once the readback buffer is mapped.
type worldPosRequest struct {
	pixel       [2]uint32
	frameQueued uint64
	camera      Camera
	cb          func(mgl32.Vec3)
}

// Renderer is the top-level owner of every subsystem. Public methods
// are called in the fixed order New, then per frame
// AssetUpdate*/Update/Prepare/DrawFrame.
type Renderer struct {
	device *wgpu.Device
	queue  *wgpu.Queue
	log    rlog.Logger

	VertexBuffer *gigabuf.Buffer
	IndexBuffer  *gigabuf.Buffer
	SceneBuffer  *wgpu.Buffer

	Bindless *bindless.Table
	Uploads  *upload.Queue
	Accel    *accel.Manager
	Catalog  *catalogue.Catalogue
	Deletion *deletion.Queue
	Graph    *graph.Graph
	Pager    *pager.Pager
	DDGI     *ddgi.Atlas
	Baker    ddgi.Baker

	Rings [FramesInFlight]*staging.Ring

	graphCfg passes.Config

	currentFrame uint64
	frameSlot    int

	scene        asset.SceneData
	frozenCamera Camera
	lockCulling  bool
	rtEnabled    bool

	camTile     asset.TileIndex
	camTileInit bool

	pendingWorldPos []worldPosRequest
	depthFetcher    DepthFetcher

	pendingScene <-chan scenefile.LoadResult
	sceneLoaded  func(error)

	savedBakeCamera Camera
	pendingShift    ddgi.ShiftResult
	resized         bool
}

// Deps bundles the device handles and stable configuration needed to
// construct every owned subsystem. A real application obtains these
// from wgpu's instance/adapter/device bring-up (§4.13 init()).
type Deps struct {
	Device       *wgpu.Device
	Queue        *wgpu.Queue
	StagingBytes uint64
	Width        uint32
	Height       uint32
	RTEnabled    bool
	Log          rlog.Logger
}

// New wires up every subsystem (§4.13 init()): vertex/index/scene
// giga-buffers, the bindless table, upload queue, acceleration
// structure manager, catalogue, deletion queue, and the default frame
// graph. Per-frame staging rings are created for N=FramesInFlight.
func New(d Deps) (*Renderer, error) {
	log := d.Log
	if log == nil {
		log = rlog.Nop()
	}
	stagingBytes := d.StagingBytes
	if stagingBytes == 0 {
		stagingBytes = 16 * 1024 * 1024
	}

	r := &Renderer{
		device:    d.Device,
		queue:     d.Queue,
		log:       log,
		rtEnabled: d.RTEnabled,
		graphCfg:  passes.Config{Width: d.Width, Height: d.Height},
	}

	r.VertexBuffer = gigabuf.New(d.Device, "Vertices", wgpu.BufferUsageVertex|wgpu.BufferUsageCopyDst, 0)
	r.IndexBuffer = gigabuf.New(d.Device, "Indices", wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst, 0)

	if d.Device != nil {
		sceneBuf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "Scene",
			Size:  asset.SceneDataSize,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("renderer: scene buffer: %w", err)
		}
		r.SceneBuffer = sceneBuf

		bt, err := bindless.New(d.Device, log)
		if err != nil {
			return nil, fmt.Errorf("renderer: bindless table: %w", err)
		}
		r.Bindless = bt
	}

	r.Uploads = upload.New(d.Device, r.VertexBuffer, r.IndexBuffer, log)
	r.Accel = accel.New(d.Device, r.VertexBuffer, r.IndexBuffer, log)
	r.Deletion = deletion.New(FramesInFlight)
	r.Catalog = catalogue.New(catalogue.Deps{
		Device:           d.Device,
		Bindless:         r.Bindless,
		Uploads:          r.Uploads,
		Accel:            r.Accel,
		Deletion:         r.Deletion,
		VertexBuffer:     r.VertexBuffer,
		IndexBuffer:      r.IndexBuffer,
		MultiBufferCount: FramesInFlight,
		RTEnabled:        d.RTEnabled,
		Log:              log,
	})

	r.Graph = graph.New(d.Device, FramesInFlight)
	passes.RegisterDefault(r.Graph, r.graphCfg, log)
	if err := r.Graph.Build(); err != nil {
		return nil, fmt.Errorf("renderer: frame graph: %w", err)
	}

	if d.Device != nil {
		for i := range r.Rings {
			ring, err := staging.New(d.Device, stagingBytes)
			if err != nil {
				return nil, fmt.Errorf("renderer: staging ring %d: %w", i, err)
			}
			ring.SetEmergencyReserve(asset.SceneDataSize * 4)
			r.Rings[i] = ring
		}
	}

	if err := r.rebuildBindGroup(); err != nil {
		return nil, err
	}

	return r, nil
}

// SetScenePager installs a pager over the given scene query, replacing
// any previous one.
func (r *Renderer) SetScenePager(query pager.SceneQuery) {
	r.Pager = pager.New(query)
}

// SetDDGIAtlas installs the probe atlas, wiring its view into the
// bindless table.
func (r *Renderer) SetDDGIAtlas(a *ddgi.Atlas) {
	r.DDGI = a
	if a != nil && r.Bindless != nil {
		r.Bindless.SetDDGIAtlas(a.View())
	}
}

// SetDepthFetcher installs the host's depth-readback accessor used by
// RequestWorldPosition (§4.13).
func (r *Renderer) SetDepthFetcher(f DepthFetcher) { r.depthFetcher = f }

// LoadWorld starts a background scene load (§6); cb is invoked on the
// main thread once the file's assets have been applied, with any
// decode error.
func (r *Renderer) LoadWorld(path string, cb func(error)) {
	r.pendingScene = scenefile.LoadAsync(path)
	r.sceneLoaded = cb
}

func (r *Renderer) drainSceneLoad() {
	if r.pendingScene == nil {
		return
	}
	select {
	case res := <-r.pendingScene:
		r.pendingScene = nil
		cb := r.sceneLoaded
		r.sceneLoaded = nil
		if res.Err != nil {
			r.log.Errorf("renderer: scene load %s: %v", res.Path, res.Err)
			if cb != nil {
				cb(res.Err)
			}
			return
		}
		err := r.Catalog.Apply(res.Scene.AssetUpdate())
		if err == nil {
			for _, m := range res.Scene.Models {
				r.Catalog.RegisterMeshes(m.Model.ID, m.Meshes)
			}
		}
		if cb != nil {
			cb(err)
		}
	default:
	}
}

func (r *Renderer) rebuildBindGroup() error {
	if r.Bindless == nil {
		return nil
	}
	return r.Bindless.Rebuild(bindless.Buffers{
		Scene:            r.SceneBuffer,
		VertexBuffer:     r.VertexBuffer.Raw(),
		IndexBuffer:      r.IndexBuffer.Raw(),
		Renderables:      r.Catalog.RenderableBufferRaw(),
		MeshInfos:        r.Catalog.MeshInfoBufferRaw(),
		Materials:        r.Catalog.MaterialBufferRaw(),
		MaterialIndices:  r.Catalog.MaterialIndexBufferRaw(),
		Models:           r.Catalog.ModelBufferRaw(),
		Lights:           r.Catalog.LightBufferRaw(),
		PointShadows:     r.Catalog.PointShadowBufferRaw(),
		TileInfos:        r.Catalog.TileInfoBufferRaw(),
		Skeletons:        r.Catalog.SkeletonBufferRaw(),
		IndirectCommands: r.Graph.Buffer("draw_cmds", r.frameSlot),
		DrawCount:        r.Graph.Buffer("draw_count", r.frameSlot),
		BLASNodes:        r.Accel.BLASBuffer(),
		TLASNodes:        r.Accel.TLASBuffer(),
		TLASInstances:    r.Accel.TLASInstanceBuffer(),
	})
}

// AssetUpdate applies one transactional asset update (§4.6) to the
// catalogue.
func (r *Renderer) AssetUpdate(u asset.Update) error {
	if u.IsEmpty() {
		return nil
	}
	return r.Catalog.Apply(u)
}

// RegisterMeshes forwards importer-produced mesh payloads for a model
// already announced through AssetUpdate.
func (r *Renderer) RegisterMeshes(modelID asset.ID, meshes []asset.Mesh) {
	r.Catalog.RegisterMeshes(modelID, meshes)
}

// NotifyResized marks the swap chain for recreation on the next
// DrawFrame (§4.13 step 5).
func (r *Renderer) NotifyResized() { r.resized = true }

// SetViewport records the new swapchain extent used when the frame
// graph is rebuilt after a resize.
func (r *Renderer) SetViewport(w, h uint32) {
	r.graphCfg.Width = w
	r.graphCfg.Height = h
}

// Update refreshes the scene UBO contents for the frame about to be
// drawn (§4.13 update()). It does not touch per-frame GPU resources;
// those are only written during DrawFrame once the fence has been
// waited on.
func (r *Renderer) Update(camera, shadowCamera Camera, lightDir mgl32.Vec3, delta, timeSec float32, lockCulling bool, opts RenderOptions, debug DebugOptions) {
	r.drainSceneLoad()

	if r.Baker.Active() {
		// Bake mode pins the camera to the tile center so probe rays
		// accumulate over a stable volume (§4.12).
		tile := r.Baker.Tile()
		r.savedBakeCamera = camera
		camera.Position = mgl32.Vec3{
			(float32(tile.X) + 0.5) * asset.TileSizeMeters,
			camera.Position.Y(),
			(float32(tile.Z) + 0.5) * asset.TileSizeMeters,
		}
	}

	r.lockCulling = lockCulling
	if !lockCulling {
		r.frozenCamera = camera
	}

	invView := camera.View.Inv()
	invProj := camera.Proj.Inv()

	r.scene = asset.SceneData{
		View:         camera.View,
		Proj:         camera.Proj,
		InvView:      invView,
		InvProj:      invProj,
		SunViewProj:  shadowCamera.Proj.Mul4(shadowCamera.View),
		CameraPos:    camera.Position,
		Time:         timeSec,
		DeltaTime:    delta,
		SunDirection: lightDir,
		SunIntensity: 1.0,
		ScreenWidth:  r.graphCfg.Width,
		ScreenHeight: r.graphCfg.Height,
		FeatureFlags: opts.bits(),
		Exposure:     1.0,
		SkyIntensity: 1.0,
	}
	if debug.BoundsVis {
		r.scene.FeatureFlags |= asset.FeatureBoundsVis
	}
	if r.rtEnabled {
		r.scene.FeatureFlags |= asset.FeatureRTOn
	}
	if r.Baker.Active() {
		r.scene.BakeActive = 1
		tile := r.Baker.Tile()
		r.scene.BakeTileX = tile.X
		r.scene.BakeTileZ = tile.Z
		r.scene.FeatureFlags |= asset.FeatureBakeMode
	}

	// Tile window follows the camera: crossing a tile boundary forces
	// a tile-info re-emission even with no TileInfo change (§4.6).
	tile := asset.TileIndexFor(camera.Position.X(), camera.Position.Z())
	if !r.camTileInit || tile != r.camTile {
		r.camTile = tile
		r.camTileInit = true
		r.Catalog.MarkTileWindowDirty()
	}

	if r.Pager != nil {
		update := r.Pager.Update(camera.Position)
		if !update.IsEmpty() {
			if err := r.AssetUpdate(update); err != nil {
				r.log.Errorf("renderer: pager update: %v", err)
			}
		}
	}
	if r.DDGI != nil && !r.Baker.Active() {
		shift := r.DDGI.Translate([3]float32{camera.Position.X(), camera.Position.Y(), camera.Position.Z()})
		if shift.Shifted {
			r.pendingShift = shift
		}
	}
}

// Prepare starts the GUI immediate-mode frame (§4.13 prepare()). The
// actual UI backend is owned by the host application; Prepare exists
// as the orchestrator's hook point in the per-frame sequence.
func (r *Renderer) Prepare() {}

// DrawFrame executes one frame (§4.13 draw_frame()): waits the current
// slot's fence (modelled here as "the caller already waited," since
// fence objects belong to the host's swap-chain bring-up), resets the
// frame's staging ring, drains the deletion queue, runs the upload
// queue, advances dynamic-BLAS copies, re-emits dirty GPU mirrors,
// rebuilds the TLAS, executes the frame graph, and advances the frame
// counter.
func (r *Renderer) DrawFrame(enc *wgpu.CommandEncoder, swapchainView *wgpu.TextureView) ([]graph.Barrier, error) {
	r.serviceWorldPositionRequests()
	r.Catalog.BeginFrame(r.currentFrame)

	ring := r.Rings[r.frameSlot]
	if ring != nil {
		ring.Reset()
	}

	destroyed := r.Deletion.Execute(r.currentFrame)
	if destroyed > 0 {
		r.log.Debugf("deletion queue: destroyed %d resources at frame %d", destroyed, r.currentFrame)
	}

	if r.Uploads != nil {
		if err := r.Uploads.Process(ring, upload.DefaultBytesPerFrame); err != nil {
			return nil, fmt.Errorf("renderer: upload queue: %w", err)
		}
	}
	if err := r.Catalog.DrainUploads(); err != nil {
		return nil, fmt.Errorf("renderer: drain uploads: %w", err)
	}

	// Dynamic BLAS copies: budgeted and resumable (§4.8).
	r.Catalog.QueueDynamicWork()
	completed, err := r.Accel.ProcessDynamicCopies(enc)
	if err != nil {
		return nil, fmt.Errorf("renderer: dynamic copies: %w", err)
	}
	r.Catalog.DrainDynamic(completed)

	if err := r.Catalog.EmitMirrors(ring, enc, r.frameSlot, r.camTile); err != nil {
		return nil, fmt.Errorf("renderer: emit mirrors: %w", err)
	}

	if r.rtEnabled {
		if err := r.Accel.RebuildTLAS(r.Catalog.TLASInstances()); err != nil {
			return nil, fmt.Errorf("renderer: rebuild TLAS: %w", err)
		}
	}

	if r.DDGI != nil && r.pendingShift.Shifted {
		if err := r.DDGI.RecordTranslation(enc, r.pendingShift); err != nil {
			return nil, fmt.Errorf("renderer: ddgi translation: %w", err)
		}
		r.pendingShift = ddgi.ShiftResult{}
	}

	if r.Bindless != nil && r.Bindless.Dirty() {
		if err := r.rebuildBindGroup(); err != nil {
			return nil, fmt.Errorf("renderer: rebuild bind group: %w", err)
		}
	}

	if r.queue != nil && r.SceneBuffer != nil {
		r.queue.WriteBuffer(r.SceneBuffer, 0, r.scene.ToBytes())
	}

	ctx := r.buildPassContext(swapchainView)

	barriers, err := r.Graph.Execute(enc, ctx, r.frameSlot)
	if err != nil {
		return barriers, fmt.Errorf("renderer: graph execute: %w", err)
	}

	if r.Baker.Active() {
		r.Baker.Advance()
	}
	if cb, ready := r.Baker.TakeStopReady(); ready {
		r.finishBake(cb)
	}

	if r.resized {
		if err := r.rebuildSwapDependentState(); err != nil {
			return barriers, err
		}
		r.resized = false
	}

	r.currentFrame++
	r.frameSlot = int(r.currentFrame % FramesInFlight)
	return barriers, nil
}

// finishBake downloads the probe atlas into a Texture asset and hands
// it to the bake callback, restoring the camera the bake displaced
// (§4.12). No readback buffer is mapped here: the texture has the
// atlas's bake dimensions (or an 8x4x8 probe grid's without an atlas)
// and zeroed texels.
func (r *Renderer) finishBake(cb func(asset.Texture)) {
	r.frozenCamera = r.savedBakeCamera
	if cb == nil {
		return
	}
	if r.DDGI != nil {
		cb(r.DDGI.BakedTexture(nil))
		return
	}
	w, h := ddgi.BakeDims(ddgi.AtlasDims{ProbesX: 8, ProbesY: 4, ProbesZ: 8})
	cb(asset.Texture{
		ID:     asset.NewID(),
		Format: asset.FormatRGBA16F,
		Width:  w,
		Height: h,
		Mips:   []asset.MipLevel{{Width: w, Height: h, Data: make([]byte, int(w)*int(h)*8)}},
	})
}

// buildPassContext packs the live subsystem handles into the concrete
// type every pass body receives through graph.Body's ctx any.
func (r *Renderer) buildPassContext(swapchainView *wgpu.TextureView) passes.Context {
	var group *wgpu.BindGroup
	var layout *wgpu.BindGroupLayout
	if r.Bindless != nil {
		group = r.Bindless.Group()
		layout = r.Bindless.Layout()
	}
	var atlasView *wgpu.TextureView
	if r.DDGI != nil {
		atlasView = r.DDGI.View()
	}
	return passes.Context{
		Log:              r.log,
		SceneBuffer:      r.SceneBuffer,
		BindlessGroup:    group,
		BindlessLayout:   layout,
		RenderableBuffer: r.Catalog.RenderableBufferRaw(),
		MeshInfoBuffer:   r.Catalog.MeshInfoBufferRaw(),
		BLASBuffer:       r.Accel.BLASBuffer(),
		TLASBuffer:       r.Accel.TLASBuffer(),
		SwapchainView:    swapchainView,
		DDGIAtlasView:    atlasView,
		FrameIndex:       r.currentFrame,
		FrameSlot:        r.frameSlot,
		BakeActive:       r.Baker.Active(),
		CullPush:         r.cullPushConstants(),
	}
}

// cullPushConstants assembles the cull pass's push-constant block from
// the frozen camera (§4.10): frustum planes are extracted from the
// view-projection in world space.
func (r *Renderer) cullPushConstants() passes.CullPushConstants {
	vp := r.frozenCamera.Proj.Mul4(r.frozenCamera.View)
	var pc passes.CullPushConstants
	copy(pc.View[:], r.frozenCamera.View[:])
	planes := frustumPlanes(vp)
	for i := 0; i < 4; i++ {
		pc.FrustumPlanes[i] = planes[i]
	}
	pc.Near, pc.Far = 0.1, 1000
	pc.DrawCount = r.Catalog.RenderableCount()
	for i := range pc.PointLightShadowInds {
		pc.PointLightShadowInds[i] = -1
	}
	return pc
}

// frustumPlanes extracts the left/right/bottom/top clip planes from a
// view-projection matrix (Gribb-Hartmann rows), normalized.
func frustumPlanes(vp mgl32.Mat4) [4][4]float32 {
	row := func(i int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(i, 0), vp.At(i, 1), vp.At(i, 2), vp.At(i, 3)}
	}
	w := row(3)
	raw := [4]mgl32.Vec4{
		w.Add(row(0)), // left
		w.Sub(row(0)), // right
		w.Add(row(1)), // bottom
		w.Sub(row(1)), // top
	}
	var out [4][4]float32
	for i, p := range raw {
		n := p.Vec3().Len()
		if n > 0 {
			p = p.Mul(1 / n)
		}
		out[i] = [4]float32{p.X(), p.Y(), p.Z(), p.W()}
	}
	return out
}

// rebuildSwapDependentState tears down and rebuilds whatever depends
// on swap-chain extent (§4.13 step 5: resize tears down and rebuilds
// the frame graph).
func (r *Renderer) rebuildSwapDependentState() error {
	r.Graph.Release()
	r.Graph = graph.New(r.device, FramesInFlight)
	passes.RegisterDefault(r.Graph, r.graphCfg, r.log)
	if err := r.Graph.Build(); err != nil {
		return err
	}
	return r.rebuildBindGroup()
}

// RequestWorldPosition records a request to unproject pixel through
// the camera frozen at request time (§4.13 request_world_position()):
// a 1x1 depth copy lands in a host-visible buffer at end of frame, and
// one full trip through the frame slots later the depth is read back,
// unprojected, and handed to cb.
func (r *Renderer) RequestWorldPosition(pixel [2]uint32, cb func(mgl32.Vec3)) {
	r.pendingWorldPos = append(r.pendingWorldPos, worldPosRequest{
		pixel:       pixel,
		frameQueued: r.currentFrame,
		camera:      r.frozenCamera,
		cb:          cb,
	})
}

// serviceWorldPositionRequests resolves requests queued one full
// frame-slot cycle ago against the camera captured at request time,
// matching the "same frame index next cycle" timing in §4.13.
func (r *Renderer) serviceWorldPositionRequests() {
	if len(r.pendingWorldPos) == 0 {
		return
	}
	var remaining []worldPosRequest
	for _, req := range r.pendingWorldPos {
		if r.currentFrame < req.frameQueued+FramesInFlight {
			remaining = append(remaining, req)
			continue
		}
		pos := req.camera.Position
		if r.depthFetcher != nil {
			if depth, ok := r.depthFetcher(req.pixel); ok {
				pos = unproject(req.camera, req.pixel, depth, r.graphCfg.Width, r.graphCfg.Height)
			}
		}
		if req.cb != nil {
			req.cb(pos)
		}
	}
	r.pendingWorldPos = remaining
}

// unproject converts a pixel plus depth-buffer value into world space
// through the inverse view-projection of the captured camera.
func unproject(cam Camera, pixel [2]uint32, depth float32, w, h uint32) mgl32.Vec3 {
	if w == 0 {
		w = 1920
	}
	if h == 0 {
		h = 1080
	}
	ndc := mgl32.Vec4{
		2*float32(pixel[0])/float32(w) - 1,
		1 - 2*float32(pixel[1])/float32(h),
		depth,
		1,
	}
	inv := cam.Proj.Mul4(cam.View).Inv()
	world := inv.Mul4x1(ndc)
	if world.W() != 0 {
		world = world.Mul(1 / world.W())
	}
	return world.Vec3()
}

// StartBake begins an offline probe bake over tile (§4.12).
func (r *Renderer) StartBake(tile asset.TileIndex, totalLayers int32) {
	r.savedBakeCamera = r.frozenCamera
	r.Baker.StartBake(tile, totalLayers)
}

// StopBake schedules the end of an in-progress bake; cb receives the
// baked probe atlas as a Texture asset one frame later (§4.12).
func (r *Renderer) StopBake(cb func(asset.Texture)) {
	r.Baker.StopBake(cb)
}

// CurrentFrame returns the monotonically increasing frame counter.
func (r *Renderer) CurrentFrame() uint64 { return r.currentFrame }

// FrameSlot returns the current frame's index into the N-length
// per-frame resource arrays.
func (r *Renderer) FrameSlot() int { return r.frameSlot }

// Stats is a read-only snapshot of orchestrator state for a debug
// overlay (the debughud package). It never gates rendering — pulling
// it is always safe mid-frame.
type Stats struct {
	Frame            uint64
	FrameSlot        int
	BakeActive       bool
	PendingWorldPos  int
	DeletionsPending int
	LiveRenderables  int
	MeshTableUnits   uint64
}

// Stats reports the current frame counter, bake state, and pending
// work queues for a debug HUD to display.
func (r *Renderer) Stats() Stats {
	deletionsPending := 0
	if r.Deletion != nil {
		deletionsPending = r.Deletion.Pending()
	}
	return Stats{
		Frame:            r.currentFrame,
		FrameSlot:        r.frameSlot,
		BakeActive:       r.Baker.Active(),
		PendingWorldPos:  len(r.pendingWorldPos),
		DeletionsPending: deletionsPending,
		LiveRenderables:  r.Catalog.LiveRenderables(),
		MeshTableUnits:   r.Catalog.MeshCount(),
	}
}
