package catalogue

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/staging"
)

// mirror is one GPU mirror buffer: a growable device buffer the
// catalogue rewrites wholesale whenever its category's changed flag
// is set for the current frame slot. Writes go through the staging
// ring and a recorded copy (transfer -> consumer, §4.6); when the
// ring can't fit, the write is deferred and the caller re-marks the
// flag for the next frame. Only without a ring or encoder does it fall
// back to a direct queue write.
type mirror struct {
	device  *wgpu.Device
	label   string
	uniform bool

	buf  *wgpu.Buffer
	size uint64
}

func (m *mirror) Raw() *wgpu.Buffer { return m.buf }

func (m *mirror) ensure(n uint64) error {
	if m.device == nil || n == 0 {
		return nil
	}
	if m.buf != nil && m.size >= n {
		return nil
	}
	newSize := n
	if m.size*3/2 > newSize {
		newSize = m.size * 3 / 2
	}
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	if m.uniform {
		usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
	}
	buf, err := m.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: m.label,
		Size:  newSize,
		Usage: usage,
	})
	if err != nil {
		return fmt.Errorf("mirror %s: create: %w", m.label, err)
	}
	if m.buf != nil {
		m.buf.Release()
	}
	m.buf = buf
	m.size = newSize
	return nil
}

// upload stages data and records the copy into the mirror. A nil ring
// or encoder falls back to a direct queue write; a nil device is the
// CPU-side test mode and skips GPU traffic entirely.
func (m *mirror) upload(ring *staging.Ring, enc *wgpu.CommandEncoder, data []byte) (bool, error) {
	if len(data) == 0 {
		return true, nil
	}
	if err := m.ensure(uint64(len(data))); err != nil {
		return false, err
	}
	if m.device == nil {
		return true, nil
	}
	n := uint64(len(data))
	if ring != nil && enc != nil && ring.CanFit(n, false) {
		off := ring.Advance(n)
		ring.Write(off, data)
		enc.CopyBufferToBuffer(ring.Raw(), off, m.buf, 0, n)
		return true, nil
	}
	if ring != nil && enc != nil {
		// Ring full: defer to next frame rather than stalling (§7).
		return false, nil
	}
	m.device.GetQueue().WriteBuffer(m.buf, 0, data)
	return true, nil
}

// Buffer accessors for bindless wiring.
func (c *Catalogue) RenderableBufferRaw() *wgpu.Buffer    { return c.renderableMirror.Raw() }
func (c *Catalogue) MeshInfoBufferRaw() *wgpu.Buffer      { return c.meshInfoMirror.Raw() }
func (c *Catalogue) MaterialBufferRaw() *wgpu.Buffer      { return c.materialMirror.Raw() }
func (c *Catalogue) MaterialIndexBufferRaw() *wgpu.Buffer { return c.matIndexMirror.Raw() }
func (c *Catalogue) ModelBufferRaw() *wgpu.Buffer         { return c.modelMirror.Raw() }
func (c *Catalogue) LightBufferRaw() *wgpu.Buffer         { return c.lightMirror.Raw() }
func (c *Catalogue) PointShadowBufferRaw() *wgpu.Buffer   { return c.pointShadowM.Raw() }
func (c *Catalogue) SkeletonBufferRaw() *wgpu.Buffer      { return c.skeletonMirror.Raw() }
func (c *Catalogue) TileInfoBufferRaw() *wgpu.Buffer      { return c.tileInfoMirror.Raw() }

// EmitMirrors re-writes every GPU mirror whose changed flag is set
// for the given frame slot (§4.6 per-frame re-emission). camTile is
// the camera's current tile, the center of the tile-info window.
// Categories whose prerequisites aren't resident yet keep their flag
// set so the next frame retries (§7).
func (c *Catalogue) EmitMirrors(ring *staging.Ring, enc *wgpu.CommandEncoder, frameSlot int, camTile asset.TileIndex) error {
	emitModels := c.modelsChanged.take(frameSlot)
	emitRenderables := c.renderablesChanged.take(frameSlot) || emitModels

	if emitRenderables {
		gpuRenderables, modelIndices, materialIndices, allResident := c.packRenderables()
		ok1, err := c.renderableMirror.upload(ring, enc, renderablesToBytes(gpuRenderables))
		if err != nil {
			return err
		}
		ok2, err := c.modelMirror.upload(ring, enc, u32sToBytes(modelIndices))
		if err != nil {
			return err
		}
		ok3, err := c.matIndexMirror.upload(ring, enc, u32sToBytes(materialIndices))
		if err != nil {
			return err
		}
		if !allResident || !ok1 || !ok2 || !ok3 {
			c.renderablesChanged.remark(frameSlot)
		}
	}

	if emitModels {
		data := make([]byte, 0, len(c.meshInfos)*asset.GPUMeshInfoSize)
		for _, mi := range c.meshInfos {
			data = append(data, mi.ToBytes()...)
		}
		ok, err := c.meshInfoMirror.upload(ring, enc, data)
		if err != nil {
			return err
		}
		if !ok {
			c.modelsChanged.remark(frameSlot)
		}
	}

	if c.materialsChanged.take(frameSlot) {
		materials, allResident := c.packMaterials()
		data := make([]byte, 0, len(materials)*asset.GPUMaterialSize)
		for _, m := range materials {
			data = append(data, m.ToBytes()...)
		}
		ok, err := c.materialMirror.upload(ring, enc, data)
		if err != nil {
			return err
		}
		if !allResident || !ok {
			c.materialsChanged.remark(frameSlot)
		}
	}

	if c.lightsChanged.take(frameSlot) {
		lights, cubes := c.packLights()
		data := make([]byte, 0, len(lights)*asset.GPULightSize)
		for _, l := range lights {
			data = append(data, l.ToBytes()...)
		}
		ok1, err := c.lightMirror.upload(ring, enc, data)
		if err != nil {
			return err
		}
		ok2, err := c.pointShadowM.upload(ring, enc, cubesToBytes(cubes))
		if err != nil {
			return err
		}
		if !ok1 || !ok2 {
			c.lightsChanged.remark(frameSlot)
		}
	}

	if c.skeletonsChanged.take(frameSlot) {
		data := make([]byte, 0, len(c.jointMatrices)*asset.GPUJointSize)
		for _, m := range c.jointMatrices {
			data = append(data, asset.GPUJoint{Matrix: m}.ToBytes()...)
		}
		ok, err := c.skeletonMirror.upload(ring, enc, data)
		if err != nil {
			return err
		}
		if !ok {
			c.skeletonsChanged.remark(frameSlot)
		}
	}

	if c.tileInfosChanged.take(frameSlot) {
		tiles := c.packTileWindow(camTile)
		data := make([]byte, 0, len(tiles)*asset.GPUTileInfoSize)
		for _, t := range tiles {
			data = append(data, t.ToBytes()...)
		}
		ok, err := c.tileInfoMirror.upload(ring, enc, data)
		if err != nil {
			return err
		}
		if !ok {
			c.tileInfosChanged.remark(frameSlot)
		}
	}

	return nil
}

// MarkTileWindowDirty forces a tile-window re-emission: the window is
// keyed by camera tile, so the orchestrator calls this when the
// camera crosses a tile boundary even if no TileInfo changed.
func (c *Catalogue) MarkTileWindowDirty() { c.tileInfosChanged.mark() }

// packRenderables produces the dense GPURenderable array plus the
// model (mesh-index) and material-index buffers it references. A
// renderable whose prerequisites aren't resident is emitted as a
// zeroed, invisible record and retried next frame (§7).
func (c *Catalogue) packRenderables() ([]asset.GPURenderable, []uint32, []uint32, bool) {
	out := make([]asset.GPURenderable, c.renderableSlots.Tail())
	var modelIndices []uint32
	var materialIndices []uint32
	allResident := true

	for _, rec := range c.renderables {
		if !c.prerequisitesResident(rec) {
			allResident = false
			continue
		}
		mrec := c.models[rec.renderable.ModelID]

		rec.modelOffset = uint32(len(modelIndices))
		for i := range mrec.model.Meshes {
			modelIndices = append(modelIndices, uint32(mrec.meshInfoRange.Offset)+uint32(i))
		}
		rec.dynamicModelOffset = rec.modelOffset
		if len(rec.dynamicMeshes) > 0 {
			rec.dynamicModelOffset = uint32(len(modelIndices))
			for i := range rec.dynamicMeshes {
				modelIndices = append(modelIndices, uint32(rec.dynamicRange.Offset)+uint32(i))
			}
		}

		rec.firstMaterialIndex = uint32(len(materialIndices))
		for i := range mrec.model.Meshes {
			matIdx := asset.NoTextureSlot
			if i < len(rec.renderable.MaterialIDs) {
				if mat, ok := c.materials[rec.renderable.MaterialIDs[i]]; ok {
					matIdx = mat.index
				}
			}
			materialIndices = append(materialIndices, matIdx)
		}

		skeletonOffset := uint32(0xFFFFFFFF)
		if !rec.renderable.SkeletonID.IsNil() {
			if srec, ok := c.skeletons[rec.renderable.SkeletonID]; ok {
				skeletonOffset = uint32(srec.jointRange.Offset)
			}
		}

		visible := uint32(0)
		if rec.renderable.Visible {
			visible = 1
		}
		out[rec.index] = asset.GPURenderable{
			Transform:          rec.renderable.WorldTransform,
			BoundsCenter:       rec.renderable.Bounds.Center,
			BoundsRadius:       rec.renderable.Bounds.Radius,
			Tint:               rec.renderable.Tint,
			ModelOffset:        rec.modelOffset,
			NumMeshes:          uint32(len(mrec.model.Meshes)),
			SkeletonOffset:     skeletonOffset,
			Visible:            visible,
			FirstMaterialIndex: rec.firstMaterialIndex,
			DynamicModelOffset: rec.dynamicModelOffset,
		}
	}
	return out, modelIndices, materialIndices, allResident
}

// packMaterials produces the dense GPUMaterial array. A material
// referencing a texture that hasn't finished uploading is skipped
// this frame (zero record, flag stays set) per §4.6.
func (c *Catalogue) packMaterials() ([]asset.GPUMaterial, bool) {
	out := make([]asset.GPUMaterial, c.materialSlots.Tail())
	allResident := true
	for _, rec := range c.materials {
		if !c.materialTexturesResident(rec.material) {
			allResident = false
			continue
		}
		m := rec.material
		out[rec.index] = asset.GPUMaterial{
			BaseColorFactor:  m.BaseColorFactor,
			EmissiveColor:    m.EmissiveColor,
			EmissiveStrength: m.EmissiveStrength,
			MetallicFactor:   m.MetallicFactor,
			RoughnessFactor:  m.RoughnessFactor,
			AlbedoSlot:       c.textureSlot(m.AlbedoTexture),
			MetalRoughSlot:   c.textureSlot(m.MetalRoughTexture),
			NormalSlot:       c.textureSlot(m.NormalTexture),
			EmissiveSlot:     c.textureSlot(m.EmissiveTexture),
		}
	}
	return out, allResident
}

func (c *Catalogue) textureSlot(id asset.ID) uint32 {
	if id.IsNil() {
		return asset.NoTextureSlot
	}
	if rec, ok := c.textures[id]; ok {
		return rec.slot
	}
	return asset.NoTextureSlot
}

// packLights produces the dense GPULight array and the fixed-size
// point-light shadow cube block: one 6-matrix entry per shadow-caster
// slot, identity for empty slots (§4.6).
func (c *Catalogue) packLights() ([]asset.GPULight, [MaxShadowCasters][6]mgl32.Mat4) {
	out := make([]asset.GPULight, c.lightSlots.Tail())
	var cubes [MaxShadowCasters][6]mgl32.Mat4
	for i := range cubes {
		for f := range cubes[i] {
			cubes[i][f] = mgl32.Ident4()
		}
	}
	for _, rec := range c.lights {
		enabled := uint32(0)
		if rec.light.Enabled {
			enabled = 1
		}
		out[rec.index] = asset.GPULight{
			Position:   rec.light.Position,
			Range:      rec.light.Range,
			Color:      rec.light.Color,
			Enabled:    enabled,
			ShadowSlot: rec.shadowSlot,
		}
		if rec.shadowSlot != asset.NoShadowSlot {
			cubes[rec.shadowSlot] = rec.light.FaceViewProj
		}
	}
	return out, cubes
}

// packTileWindow produces the fixed (2R+1)^2 window around the
// camera's tile: entries with a known TileInfo resolve their DDGI
// atlas texture to its bindless slot, everything else records no slot
// (§4.6: "-1 for ddgi_atlas_tex").
func (c *Catalogue) packTileWindow(center asset.TileIndex) []asset.GPUTileInfo {
	side := 2*TileWindowRadius + 1
	out := make([]asset.GPUTileInfo, 0, side*side)
	for dz := -TileWindowRadius; dz <= TileWindowRadius; dz++ {
		for dx := -TileWindowRadius; dx <= TileWindowRadius; dx++ {
			idx := asset.TileIndex{X: center.X + int32(dx), Z: center.Z + int32(dz)}
			entry := asset.GPUTileInfo{X: idx.X, Z: idx.Z, DDGIAtlasSlot: asset.NoTextureSlot}
			if ti, ok := c.tiles[idx]; ok && !ti.DDGIAtlasTexture.IsNil() {
				entry.DDGIAtlasSlot = c.textureSlot(ti.DDGIAtlasTexture)
			}
			out = append(out, entry)
		}
	}
	return out
}

func renderablesToBytes(rs []asset.GPURenderable) []byte {
	var out []byte
	for _, r := range rs {
		out = append(out, r.ToBytes()...)
	}
	return out
}

func u32sToBytes(vs []uint32) []byte {
	out := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		out = append(out, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return out
}

func cubesToBytes(cubes [MaxShadowCasters][6]mgl32.Mat4) []byte {
	out := make([]byte, 0, MaxShadowCasters*6*64)
	for i := range cubes {
		for f := range cubes[i] {
			out = append(out, asset.GPUJoint{Matrix: cubes[i][f]}.ToBytes()...)
		}
	}
	return out
}
