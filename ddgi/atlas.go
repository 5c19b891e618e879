// Package ddgi implements DDGI probe atlas streaming: a regular-grid
// irradiance atlas that shifts under the camera as it moves (instead
// of rebuilding from scratch), plus a bake-mode controller that fills
// one probe layer per frame.
//
// Grounded on manager.go's uploadBrick/WriteTexture atlas-offset math
// and the AtlasBricksPerSide/AtlasSize constants (same "regular grid
// atlas, translate by shifting pixel blocks" shape, applied to DDGI
// probes instead of voxel bricks); see spec.md §4.12/§4.13 bake scenario.
package ddgi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/internal/rlog"
)

// ProbeStep is the world-space spacing between adjacent probes along
// each axis (meters). One probe-step of camera movement triggers one
// Translation pass (§8 scenario: "moving to (1.5,0,0), one probe step
// in x, one Translator pass executes").
const ProbeStep = 1.5

// AtlasDims is the probe grid's extent in probes per axis.
type AtlasDims struct {
	ProbesX, ProbesY, ProbesZ int32
}

// ProbePixelSize is the per-probe octahedral footprint in the atlas
// texture, in texels.
const ProbePixelSize = 8

// Atlas owns the irradiance atlas texture and tracks which probe-space
// origin it currently represents, so camera movement can be resolved
// into a cheap shift-copy instead of a full rebuild.
type Atlas struct {
	device *wgpu.Device
	log    rlog.Logger

	dims    AtlasDims
	texture *wgpu.Texture
	view    *wgpu.TextureView
	temp    *wgpu.Texture

	// originIndex is the probe-space index (not world space) the
	// atlas's (0,0,0) texel currently corresponds to.
	originIndex [3]int32
}

// New creates an irradiance atlas texture sized for dims.
func New(device *wgpu.Device, dims AtlasDims, log rlog.Logger) (*Atlas, error) {
	if log == nil {
		log = rlog.Nop()
	}
	width := uint32(dims.ProbesX * ProbePixelSize)
	height := uint32(dims.ProbesY * ProbePixelSize)
	depth := uint32(dims.ProbesZ)
	if depth == 0 {
		depth = 1
	}

	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "DDGIAtlas",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: depth},
		Format:        wgpu.TextureFormatRGBA16Float,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc | wgpu.TextureUsageStorageBinding,
	})
	if err != nil {
		return nil, fmt.Errorf("ddgi: create atlas texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("ddgi: create atlas view: %w", err)
	}

	return &Atlas{device: device, log: log, dims: dims, texture: tex, view: view}, nil
}

// View is the atlas texture view bound into the bindless table.
func (a *Atlas) View() *wgpu.TextureView { return a.view }

// Dims is the probe grid extent the atlas was created for.
func (a *Atlas) Dims() AtlasDims { return a.dims }

// ProbeIndexFor converts a world position into the probe-space index
// the translation logic tracks (§8 scenario math).
func ProbeIndexFor(pos [3]float32) [3]int32 {
	return [3]int32{
		int32(pos[0] / ProbeStep),
		int32(pos[1] / ProbeStep),
		int32(pos[2] / ProbeStep),
	}
}

// ShiftResult describes the translation the caller's compute pass must
// perform: whether the camera crossed a probe step, and the
// probe-space delta along each axis.
type ShiftResult struct {
	Shifted  bool
	DeltaX, DeltaY, DeltaZ int32 // probe-space delta since the last Translate call
}

// Translate recomputes the shift needed when the camera has moved by
// at least one probe step. It updates originIndex and reports the
// delta; the caller's IrradianceProbeTranslation pass calls
// RecordTranslation with it to issue the actual copies, leaving the
// vacated column/row for re-raytracing over the next frames.
func (a *Atlas) Translate(camWorldPos [3]float32) ShiftResult {
	newIdx := ProbeIndexFor(camWorldPos)
	delta := [3]int32{
		newIdx[0] - a.originIndex[0],
		newIdx[1] - a.originIndex[1],
		newIdx[2] - a.originIndex[2],
	}
	if delta[0] == 0 && delta[1] == 0 && delta[2] == 0 {
		return ShiftResult{}
	}
	a.originIndex = newIdx
	return ShiftResult{Shifted: true, DeltaX: delta[0], DeltaY: delta[1], DeltaZ: delta[2]}
}

// RecordTranslation records the shift-copy dance for a one-probe
// translation (§4.12): the whole atlas is copied to a temporary
// image, then each horizontal slab is copied back offset by
// ±ProbePixelSize, preserving every probe except the strip along the
// newly exposed edge. Only the (x,z) axes shift; y movement leaves the
// atlas alone. Deltas larger than one probe record no copies at all:
// the atlas keeps its old contents and the ray-tracing pass refills
// it layer by layer.
func (a *Atlas) RecordTranslation(enc *wgpu.CommandEncoder, shift ShiftResult) error {
	if !shift.Shifted || enc == nil || a.texture == nil {
		return nil
	}
	if abs32(shift.DeltaX) > 1 || abs32(shift.DeltaZ) > 1 {
		return nil
	}
	if err := a.ensureTemp(); err != nil {
		return err
	}

	w := uint32(a.dims.ProbesX * ProbePixelSize)
	h := uint32(a.dims.ProbesY * ProbePixelSize)
	depth := uint32(a.dims.ProbesZ)
	if depth == 0 {
		depth = 1
	}

	// Pass one: atlas (TRANSFER_SRC) -> temp (TRANSFER_DST), whole image.
	enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: a.texture},
		&wgpu.ImageCopyTexture{Texture: a.temp},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: depth},
	)

	// Pass two: temp (now TRANSFER_SRC) -> atlas, shifted by one probe
	// footprint along the moved axis. The strip of width ProbePixelSize
	// on the exposed edge keeps stale probes until fresh rays land.
	var srcX, dstX uint32
	copyW := w
	if shift.DeltaX > 0 {
		srcX, dstX, copyW = ProbePixelSize, 0, w-ProbePixelSize
	} else if shift.DeltaX < 0 {
		srcX, dstX, copyW = 0, ProbePixelSize, w-ProbePixelSize
	}
	enc.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: a.temp, Origin: wgpu.Origin3D{X: srcX}},
		&wgpu.ImageCopyTexture{Texture: a.texture, Origin: wgpu.Origin3D{X: dstX}},
		&wgpu.Extent3D{Width: copyW, Height: h, DepthOrArrayLayers: depth},
	)

	if shift.DeltaZ != 0 && depth > 1 {
		var srcZ, dstZ uint32
		copyD := depth - 1
		if shift.DeltaZ > 0 {
			srcZ, dstZ = 1, 0
		} else {
			srcZ, dstZ = 0, 1
		}
		enc.CopyTextureToTexture(
			&wgpu.ImageCopyTexture{Texture: a.temp, Origin: wgpu.Origin3D{Z: srcZ}},
			&wgpu.ImageCopyTexture{Texture: a.texture, Origin: wgpu.Origin3D{Z: dstZ}},
			&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: copyD},
		)
	}
	return nil
}

func (a *Atlas) ensureTemp() error {
	if a.temp != nil {
		return nil
	}
	width := uint32(a.dims.ProbesX * ProbePixelSize)
	height := uint32(a.dims.ProbesY * ProbePixelSize)
	depth := uint32(a.dims.ProbesZ)
	if depth == 0 {
		depth = 1
	}
	tmp, err := a.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "DDGIAtlasTemp",
		Size:          wgpu.Extent3D{Width: width, Height: height, DepthOrArrayLayers: depth},
		Format:        wgpu.TextureFormatRGBA16Float,
		Dimension:     wgpu.TextureDimension2D,
		MipLevelCount: 1,
		SampleCount:   1,
		Usage:         wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("ddgi: create temp atlas: %w", err)
	}
	a.temp = tmp
	return nil
}

// BakedTexture assembles the atlas contents into a Texture asset with
// the bake output dimensions (probe_pixel*probesXZ,
// probe_pixel*probesXZ*probesY) in RGBA16F (§8 round-trip). data may
// be nil in device-less runs, in which case the mip blob is
// zero-filled at the correct size.
func (a *Atlas) BakedTexture(data []byte) asset.Texture {
	w, h := BakeDims(a.dims)
	need := int(w) * int(h) * 8 // RGBA16F texels
	if data == nil {
		data = make([]byte, need)
	}
	return asset.Texture{
		ID:     asset.NewID(),
		Format: asset.FormatRGBA16F,
		Width:  w,
		Height: h,
		Mips:   []asset.MipLevel{{Width: w, Height: h, Data: data}},
	}
}

// BakeDims reports the baked atlas texture's dimensions for the given
// probe grid.
func BakeDims(dims AtlasDims) (w, h uint32) {
	xz := dims.ProbesX
	if dims.ProbesZ > 0 {
		xz = dims.ProbesZ
	}
	w = uint32(ProbePixelSize * dims.ProbesX)
	h = uint32(ProbePixelSize * xz * dims.ProbesY)
	return w, h
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Baker drives the renderer's offline bake mode: instead of streaming
// probes around a moving camera, it fills every probe layer of a fixed
// tile over consecutive frames and reports completion.
type Baker struct {
	active       bool
	tile         asset.TileIndex
	currentLayer int32
	totalLayers  int32

	stopCB        func(asset.Texture)
	stopCountdown int
}

// StartBake begins baking tile's probe volume over totalLayers frames
// (one IrradianceProbeRayTracing layer per frame, per §4.10's
// "Ray-tracing pass fills one probe layer per frame").
func (b *Baker) StartBake(tile asset.TileIndex, totalLayers int32) {
	b.active = true
	b.tile = tile
	b.currentLayer = 0
	b.totalLayers = totalLayers
	b.stopCB = nil
	b.stopCountdown = 0
}

// StopBake schedules the end of a bake: the readback defers one frame
// so the final layer's rays land before the atlas is downloaded, then
// the orchestrator invokes cb with the baked texture (§4.12).
func (b *Baker) StopBake(cb func(asset.Texture)) {
	if !b.active {
		return
	}
	b.stopCB = cb
	b.stopCountdown = 1
}

// TakeStopReady is polled once per frame by the orchestrator. It
// counts the one-frame deferral down and, when due, deactivates the
// bake and hands back the callback the readback must invoke.
func (b *Baker) TakeStopReady() (func(asset.Texture), bool) {
	if b.stopCB == nil {
		return nil, false
	}
	if b.stopCountdown > 0 {
		b.stopCountdown--
		return nil, false
	}
	cb := b.stopCB
	b.stopCB = nil
	b.active = false
	b.currentLayer = 0
	return cb, true
}

// Active reports whether a bake is in progress.
func (b *Baker) Active() bool { return b.active }

// Advance is called once per frame while Active; it returns the layer
// to ray-trace this frame and reports whether the bake has finished.
func (b *Baker) Advance() (layer int32, done bool) {
	if !b.active {
		return 0, true
	}
	layer = b.currentLayer
	b.currentLayer++
	if b.currentLayer >= b.totalLayers {
		b.active = false
		return layer, true
	}
	return layer, false
}

// Tile is the tile currently being baked.
func (b *Baker) Tile() asset.TileIndex { return b.tile }
