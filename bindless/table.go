// Package bindless implements the renderer's single global bind group:
// a fixed set of storage-buffer bindings plus one variable-size
// combined-image-sampler array indexed by the bindless texture slot
// stored in every GPURenderable/Material record.
//
// wgpu has no update-after-bind descriptor semantics, unlike the
// Vulkan-class API this mirrors (see DESIGN.md C7): instead
// of patching one binding in place, the whole bind group is recreated
// whenever a texture slot is assigned or freed. Every other binding in
// the layout is stable across a recreation, so this only costs a
// single vkUpdateDescriptorSet-equivalent per texture change, not a
// pipeline stall.
//
// Grounded on manager.go's bind group construction (createBindGroup/
// updateBindGroup) generalized from the voxel renderer's fixed binding
// list to this package's 22 bindings (0..21).
package bindless

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/renderer/internal/rlog"
	"github.com/gekko3d/renderer/slot"
)

// MaxTextures bounds the bindless texture array's declared size. wgpu
// requires a fixed array size at layout-creation time even though the
// array is logically "variable length" at the API boundary.
const MaxTextures = 4096

// Binding indices, fixed across the renderer's lifetime (§4.7).
const (
	BindingScene            = 0
	BindingVertexBuffer     = 1
	BindingIndexBuffer      = 2
	BindingRenderables      = 3
	BindingMeshInfos        = 4
	BindingMaterials        = 5
	BindingMaterialIndices  = 6
	BindingModels           = 7
	BindingLights           = 8
	BindingPointShadows     = 9
	BindingTileInfos        = 10
	BindingSkeletons        = 11
	BindingIndirectCommands = 12
	BindingDrawCount        = 13
	BindingBLASNodes        = 14
	BindingTLASNodes        = 15
	BindingTLASInstances    = 16
	BindingDDGIProbes       = 17
	BindingDDGIAtlas        = 18
	BindingShadowAtlas      = 19
	BindingLinearSampler    = 20
	BindingTextures         = 21 // variable-size combined-image-sampler array, always last
)

// Buffers bundles the fixed storage-buffer bindings the table wires on
// every (re)creation. Any of these may be nil before its owning
// subsystem has allocated a backing buffer yet; a nil entry is bound
// as a 16 byte placeholder buffer so layout validation never fails on
// an empty scene.
type Buffers struct {
	Scene            *wgpu.Buffer
	VertexBuffer     *wgpu.Buffer
	IndexBuffer      *wgpu.Buffer
	Renderables      *wgpu.Buffer
	MeshInfos        *wgpu.Buffer
	Materials        *wgpu.Buffer
	MaterialIndices  *wgpu.Buffer
	Models           *wgpu.Buffer
	Lights           *wgpu.Buffer
	PointShadows     *wgpu.Buffer
	TileInfos        *wgpu.Buffer
	Skeletons        *wgpu.Buffer
	IndirectCommands *wgpu.Buffer
	DrawCount        *wgpu.Buffer
	BLASNodes        *wgpu.Buffer
	TLASNodes        *wgpu.Buffer
	TLASInstances    *wgpu.Buffer
	DDGIProbes       *wgpu.Buffer
}

// Table owns the global bind group layout, the live bind group, the
// texture slot allocator, and the placeholder buffer used to satisfy
// bindings not yet backed by a real allocation.
type Table struct {
	device *wgpu.Device
	log    rlog.Logger

	layout    *wgpu.BindGroupLayout
	group     *wgpu.BindGroup
	sampler   *wgpu.Sampler
	placeholder *wgpu.Buffer

	texSlots *slot.Fixed
	textures []*wgpu.TextureView // indexed by slot; nil entries use the 1x1 fallback
	fallback *wgpu.TextureView

	ddgiAtlas   *wgpu.TextureView
	shadowAtlas *wgpu.TextureView

	dirty bool
}

// New builds the layout and a 1x1 white fallback texture; the bind
// group stays nil until Rebuild creates it. Callers must call Rebuild
// once real resources exist before the first DrawFrame.
func New(device *wgpu.Device, log rlog.Logger) (*Table, error) {
	if log == nil {
		log = rlog.Nop()
	}
	layout, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "BindlessLayout",
		Entries: layoutEntries(),
	})
	if err != nil {
		return nil, fmt.Errorf("bindless: create layout: %w", err)
	}

	sampler, err := device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:        "BindlessLinearSampler",
		AddressModeU: wgpu.AddressModeRepeat,
		AddressModeV: wgpu.AddressModeRepeat,
		AddressModeW: wgpu.AddressModeRepeat,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
		MipmapFilter: wgpu.MipmapFilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("bindless: create sampler: %w", err)
	}

	placeholder, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "BindlessPlaceholder",
		Size:  16,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("bindless: create placeholder buffer: %w", err)
	}

	fallbackTex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "BindlessFallback1x1",
		Size:          wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("bindless: create fallback texture: %w", err)
	}
	fallbackView, err := fallbackTex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("bindless: create fallback view: %w", err)
	}
	device.GetQueue().WriteTexture(
		&wgpu.ImageCopyTexture{Texture: fallbackTex},
		[]byte{255, 255, 255, 255},
		&wgpu.TextureDataLayout{BytesPerRow: 4, RowsPerImage: 1},
		&wgpu.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)

	return &Table{
		device:      device,
		log:         log,
		layout:      layout,
		sampler:     sampler,
		placeholder: placeholder,
		fallback:    fallbackView,
		texSlots:    slot.NewFixed(),
		textures:    make([]*wgpu.TextureView, 0, 64),
		dirty:       true,
	}, nil
}

// Layout returns the bind group layout every pipeline is created with.
func (t *Table) Layout() *wgpu.BindGroupLayout { return t.layout }

// Group returns the current bind group. Valid only after at least one
// Rebuild.
func (t *Table) Group() *wgpu.BindGroup { return t.group }

// AssignTexture grants tex a bindless slot, growing the backing slice
// as needed, and marks the table dirty so the next Rebuild picks it
// up. Mirrors the teacher's SlotAllocator.Alloc + texture array resize.
func (t *Table) AssignTexture(view *wgpu.TextureView) uint32 {
	idx := t.texSlots.Alloc()
	for uint32(len(t.textures)) <= idx {
		t.textures = append(t.textures, nil)
	}
	t.textures[idx] = view
	t.dirty = true
	return idx
}

// FreeTexture releases a previously assigned slot. The caller must
// have routed the underlying texture through the deletion queue first
// (invariant 4: no in-flight frame may still reference the slot).
func (t *Table) FreeTexture(idx uint32) {
	if int(idx) < len(t.textures) {
		t.textures[idx] = nil
	}
	t.texSlots.Free(idx)
	t.dirty = true
}

// SetDDGIAtlas updates the DDGI irradiance atlas binding.
func (t *Table) SetDDGIAtlas(view *wgpu.TextureView) {
	t.ddgiAtlas = view
	t.dirty = true
}

// SetShadowAtlas updates the shadow atlas binding.
func (t *Table) SetShadowAtlas(view *wgpu.TextureView) {
	t.shadowAtlas = view
	t.dirty = true
}

// Dirty reports whether a Rebuild is needed before the next submission.
func (t *Table) Dirty() bool { return t.dirty }

// Rebuild recreates the bind group from the current buffer set and
// texture slots. Cheap relative to a full pipeline rebuild, but still
// a real allocation — callers should check Dirty() and only call this
// once per frame at most.
func (t *Table) Rebuild(buffers Buffers) error {
	entries := make([]wgpu.BindGroupEntry, 0, BindingTextures+1)
	entries = append(entries,
		t.bufferEntry(BindingScene, buffers.Scene),
		t.bufferEntry(BindingVertexBuffer, buffers.VertexBuffer),
		t.bufferEntry(BindingIndexBuffer, buffers.IndexBuffer),
		t.bufferEntry(BindingRenderables, buffers.Renderables),
		t.bufferEntry(BindingMeshInfos, buffers.MeshInfos),
		t.bufferEntry(BindingMaterials, buffers.Materials),
		t.bufferEntry(BindingMaterialIndices, buffers.MaterialIndices),
		t.bufferEntry(BindingModels, buffers.Models),
		t.bufferEntry(BindingLights, buffers.Lights),
		t.bufferEntry(BindingPointShadows, buffers.PointShadows),
		t.bufferEntry(BindingTileInfos, buffers.TileInfos),
		t.bufferEntry(BindingSkeletons, buffers.Skeletons),
		t.bufferEntry(BindingIndirectCommands, buffers.IndirectCommands),
		t.bufferEntry(BindingDrawCount, buffers.DrawCount),
		t.bufferEntry(BindingBLASNodes, buffers.BLASNodes),
		t.bufferEntry(BindingTLASNodes, buffers.TLASNodes),
		t.bufferEntry(BindingTLASInstances, buffers.TLASInstances),
		t.bufferEntry(BindingDDGIProbes, buffers.DDGIProbes),
	)

	if t.ddgiAtlas != nil {
		entries = append(entries, wgpu.BindGroupEntry{Binding: BindingDDGIAtlas, TextureView: t.ddgiAtlas})
	} else {
		entries = append(entries, wgpu.BindGroupEntry{Binding: BindingDDGIAtlas, TextureView: t.fallback})
	}
	if t.shadowAtlas != nil {
		entries = append(entries, wgpu.BindGroupEntry{Binding: BindingShadowAtlas, TextureView: t.shadowAtlas})
	} else {
		entries = append(entries, wgpu.BindGroupEntry{Binding: BindingShadowAtlas, TextureView: t.fallback})
	}
	entries = append(entries, wgpu.BindGroupEntry{Binding: BindingLinearSampler, Sampler: t.sampler})

	views := make([]*wgpu.TextureView, len(t.textures))
	for i, v := range t.textures {
		if v == nil {
			views[i] = t.fallback
		} else {
			views[i] = v
		}
	}
	for len(views) < 1 {
		views = append(views, t.fallback) // wgpu rejects a zero-length binding array
	}
	entries = append(entries, wgpu.BindGroupEntry{Binding: BindingTextures, TextureViewArray: views})

	group, err := t.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "BindlessGroup",
		Layout:  t.layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("bindless: rebuild bind group: %w", err)
	}
	if t.group != nil {
		t.group.Release()
	}
	t.group = group
	t.dirty = false
	return nil
}

func (t *Table) bufferEntry(binding uint32, buf *wgpu.Buffer) wgpu.BindGroupEntry {
	if buf == nil {
		return wgpu.BindGroupEntry{Binding: binding, Buffer: t.placeholder, Size: t.placeholder.GetSize()}
	}
	return wgpu.BindGroupEntry{Binding: binding, Buffer: buf, Size: buf.GetSize()}
}

func layoutEntries() []wgpu.BindGroupLayoutEntry {
	storage := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeStorage,
			},
		}
	}
	uniform := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeUniform,
			},
		}
	}
	texture := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageFragment | wgpu.ShaderStageCompute,
			Texture:    wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat},
		}
	}

	return []wgpu.BindGroupLayoutEntry{
		uniform(BindingScene),
		storage(BindingVertexBuffer),
		storage(BindingIndexBuffer),
		storage(BindingRenderables),
		storage(BindingMeshInfos),
		storage(BindingMaterials),
		storage(BindingMaterialIndices),
		storage(BindingModels),
		storage(BindingLights),
		uniform(BindingPointShadows),
		storage(BindingTileInfos),
		storage(BindingSkeletons),
		storage(BindingIndirectCommands),
		storage(BindingDrawCount),
		storage(BindingBLASNodes),
		storage(BindingTLASNodes),
		storage(BindingTLASInstances),
		storage(BindingDDGIProbes),
		texture(BindingDDGIAtlas),
		texture(BindingShadowAtlas),
		{
			Binding:    BindingLinearSampler,
			Visibility: wgpu.ShaderStageFragment,
			Sampler:    wgpu.SamplerBindingLayout{Type: wgpu.SamplerBindingTypeFiltering},
		},
		{
			Binding:         BindingTextures,
			Visibility:      wgpu.ShaderStageFragment,
			Texture:         wgpu.TextureBindingLayout{SampleType: wgpu.TextureSampleTypeFloat},
			Count:           MaxTextures,
		},
	}
}
