// Package passes registers the renderer's default frame graph: the
// leaves-first pass order of spec.md §4.10, each declaring the typed
// resource usages the graph orders and barriers by. Pass bodies are
// intentionally minimal — the spec fixes only graph-declared I/O and
// position, not shader algorithms.
//
// Grounded on app.go's per-pass pipeline creation (GBufferPipeline,
// LightingPipeline, ShadowPipeline, ...) and manager_hiz.go/gizmo_pass.go's
// self-contained pass-struct shape: one file's worth of state plus a
// Register(graph) method, repeated per pass here as one entry in the
// table RegisterDefault builds from.
package passes

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/graph"
	"github.com/gekko3d/renderer/internal/rlog"
)

// MaxDraws bounds the indirect draw-command buffer: one slot per
// potentially visible (renderable, mesh) pair the cull pass may emit.
const MaxDraws = 65536

// MaxShadowCasterSlots mirrors the catalogue's fixed point-light
// shadow channel count; one per-light draw list each.
const MaxShadowCasterSlots = 4

// drawCmdBytes is the packed size of one DrawIndexedIndirectCommand
// record including the renderable/mesh id payload words.
const drawCmdBytes = 8 * 4

// Config sizes the viewport-dependent graph-owned images.
type Config struct {
	Width, Height uint32
}

// Context is what every pass body receives. It is intentionally loose
// (any in graph.Body's signature) since different passes need
// different subsets of the orchestrator's live state; Context is the
// concrete type the orchestrator packs into that any.
type Context struct {
	Log rlog.Logger

	SceneBuffer      *wgpu.Buffer
	BindlessGroup    *wgpu.BindGroup
	BindlessLayout   *wgpu.BindGroupLayout
	RenderableBuffer *wgpu.Buffer
	MeshInfoBuffer   *wgpu.Buffer
	BLASBuffer       *wgpu.Buffer
	TLASBuffer       *wgpu.Buffer

	SwapchainView *wgpu.TextureView
	DDGIAtlasView *wgpu.TextureView

	FrameIndex uint64
	FrameSlot  int
	BakeActive bool

	// CullPush mirrors the cull pass's push-constant block (§4.10):
	// view matrix, four frustum planes, point-light shadow caster
	// indices, near/far, the live draw count, and wind.
	CullPush CullPushConstants
}

// CullPushConstants is the §4.10 cull-pass push-constant block.
type CullPushConstants struct {
	View                 [16]float32
	FrustumPlanes        [4][4]float32
	PointLightShadowInds [4]int32
	Near, Far            float32
	DrawCount            uint32
	WindX, WindY         float32
}

// RegisterDefault registers the full leaves-first default graph (§4.10):
// HiZ -> ParticleUpdate -> Cull -> CompactDraws -> Shadow -> GrassShadow ->
// Geometry -> Grass -> UpdateBlas -> UpdateTLAS -> IrradianceProbeTranslation ->
// IrradianceProbeRayTracing -> IrradianceProbeConvolve -> ShadowRayTracing ->
// SpecularGI_RT -> SpecularGI_Mip -> SSAO -> SSAOBlur -> DeferredLighting ->
// LuminanceHistogram -> LuminanceAverage -> Bloom -> FXAA -> DebugBS ->
// DebugView -> UI -> Presentation.
//
// The draw-command and count buffers are graph-owned and zero-filled
// by initializer passes before the first cull dispatch reads them.
func RegisterDefault(g *graph.Graph, cfg Config, log rlog.Logger) {
	if log == nil {
		log = rlog.Nop()
	}
	if cfg.Width == 0 {
		cfg.Width = 1920
	}
	if cfg.Height == 0 {
		cfg.Height = 1080
	}
	for _, p := range defaultPassTable(cfg, log) {
		g.Register(p)
	}

	// The cull pass only ever rewrites slots it claims, so every
	// backing copy starts from valid no-op state: the draw-command
	// slots get zero-instance templates, count buffers start at zero
	// (§4.9 initializer passes; both run once per copy via the
	// declared InitialData before the first cull dispatch reads them).
	g.RegisterResourceInit("draw_count", logInit(log, "draw_count"))
	g.RegisterResourceInit("draw_cmds", logInit(log, "draw_cmds"))
}

func logInit(log rlog.Logger, name string) graph.InitBody {
	return func(enc *wgpu.CommandEncoder, buf *wgpu.Buffer, tex *wgpu.Texture, ctx any) error {
		log.Debugf("graph init: %s templates written", name)
		return nil
	}
}

// defaultPassTable builds the declared I/O for every pass in order.
// Each Body is a thin placeholder: it logs at debug level and returns,
// standing in for the opaque shader dispatch the spec does not
// specify the contents of.
func defaultPassTable(cfg Config, log rlog.Logger) []graph.PassInfo {
	noop := func(name string) graph.Body {
		return func(enc *wgpu.CommandEncoder, ctx any) error {
			log.Debugf("pass %s: dispatch (opaque body)", name)
			return nil
		}
	}

	hdrFormat := wgpu.TextureFormatRGBA16Float
	ldrFormat := wgpu.TextureFormatRGBA8Unorm
	depthFormat := wgpu.TextureFormatDepth32Float

	colorImage := func(format wgpu.TextureFormat) *graph.ImageCreateInfo {
		return &graph.ImageCreateInfo{
			Width: cfg.Width, Height: cfg.Height, Format: format,
			Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
		}
	}
	storageImage := func(w, h uint32, format wgpu.TextureFormat) *graph.ImageCreateInfo {
		return &graph.ImageCreateInfo{
			Width: w, Height: h, Format: format,
			Usage: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding,
		}
	}
	ssbo := func(size uint64) *graph.BufferCreateInfo {
		return &graph.BufferCreateInfo{Size: size, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc}
	}

	drawCmds := graph.Usage{
		Resource: "draw_cmds", Type: graph.TypeSSBO, Access: graph.AccessWrite,
		Stage: graph.StageCompute, MultiBuffered: true, MipLevel: -1,
		BufferInfo: &graph.BufferCreateInfo{
			Size:        MaxDraws * drawCmdBytes,
			Usage:       wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc,
			InitialData: func() []byte { return templateDrawCommands(MaxDraws) },
		},
	}
	shadowDrawCmds := graph.Usage{
		Resource: "shadow_draw_cmds", Type: graph.TypeSSBO, Access: graph.AccessWrite,
		Stage: graph.StageCompute, MultiBuffered: true, MipLevel: -1,
		BufferInfo: &graph.BufferCreateInfo{
			Size:        MaxShadowCasterSlots * MaxDraws * drawCmdBytes,
			Usage:       wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc,
			InitialData: func() []byte { return templateDrawCommands(MaxShadowCasterSlots * MaxDraws) },
		},
	}
	drawCount := graph.Usage{
		Resource: "draw_count", Type: graph.TypeSSBO, Access: graph.AccessWrite,
		Stage: graph.StageCompute, MultiBuffered: true, MipLevel: -1,
		BufferInfo: &graph.BufferCreateInfo{
			Size:        (1 + MaxShadowCasterSlots) * 4,
			Usage:       wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopySrc,
			InitialData: func() []byte { return make([]byte, (1+MaxShadowCasterSlots)*4) },
		},
	}
	instanceTranslation := graph.Usage{
		Resource: "instance_translation", Type: graph.TypeSSBO, Access: graph.AccessWrite,
		Stage: graph.StageCompute, MultiBuffered: true, MipLevel: -1,
		BufferInfo: ssbo(MaxDraws * 8),
	}

	return []graph.PassInfo{
		{
			Name: "HiZ", Group: "cull", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("depth", graph.TypeSampledDepthTexture, graph.StageCompute),
				{Resource: "hiz_mips", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1,
					ImageInfo: storageImage(cfg.Width/2, cfg.Height/2, wgpu.TextureFormatR32Float)},
			},
			Body: noop("HiZ"),
		},
		{
			Name: "ParticleUpdate", Group: "sim", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				{Resource: "particle_state", Type: graph.TypeSSBO, Access: graph.AccessReadWrite,
					Stage: graph.StageCompute, MipLevel: -1, BufferInfo: ssbo(1 << 20)},
				{Resource: "particle_draw_cmds", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1, BufferInfo: ssbo(4096 * drawCmdBytes)},
			},
			Body: noop("ParticleUpdate"),
		},
		{
			Name: "Cull", Group: "cull", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("renderables", graph.TypeSSBO, graph.StageCompute),
				graph.Read("mesh_infos", graph.TypeSSBO, graph.StageCompute),
				graph.Read("hiz_mips", graph.TypeSampledTexture, graph.StageCompute),
				drawCmds,
				instanceTranslation,
				shadowDrawCmds,
				drawCount,
				{Resource: "debug_bs", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1, BufferInfo: ssbo(MaxDraws * 16)},
			},
			Body: noop("Cull"),
		},
		{
			Name: "CompactDraws", Group: "cull", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("draw_cmds", graph.TypeSSBO, graph.StageCompute),
				graph.Read("draw_count", graph.TypeSSBO, graph.StageCompute),
				{Resource: "compacted_draw_cmds", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MultiBuffered: true, MipLevel: -1,
					BufferInfo: ssbo(MaxDraws * drawCmdBytes)},
			},
			Body: noop("CompactDraws"),
		},
		{
			Name: "Shadow", Group: "shadow", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{DepthTest: true, DepthFormat: depthFormat},
			Usages: []graph.Usage{
				graph.Read("shadow_draw_cmds", graph.TypeSSBO, graph.StageIndirectDraw|graph.StageVertex),
				graph.Read("draw_count", graph.TypeSSBO, graph.StageIndirectDraw),
				{Resource: "shadow_atlas", Type: graph.TypeDepthAttachment, Access: graph.AccessWrite,
					Stage: graph.StageFragment, MipLevel: -1,
					ImageInfo: &graph.ImageCreateInfo{Width: 4096, Height: 4096, Format: depthFormat,
						Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding}},
			},
			Body: noop("Shadow"),
		},
		{
			Name: "GrassShadow", Group: "shadow", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{DepthTest: true, DepthFormat: depthFormat},
			Usages: []graph.Usage{
				graph.Read("instance_translation", graph.TypeSSBO, graph.StageVertex),
				graph.ReadWrite("shadow_atlas", graph.TypeDepthAttachment, graph.StageFragment),
			},
			Body: noop("GrassShadow"),
		},
		{
			Name: "Geometry", Group: "geometry", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{
				ColorFormats: []wgpu.TextureFormat{ldrFormat, hdrFormat, hdrFormat},
				DepthTest:    true, DepthFormat: depthFormat,
			},
			Usages: []graph.Usage{
				graph.Read("compacted_draw_cmds", graph.TypeSSBO, graph.StageIndirectDraw|graph.StageVertex),
				graph.Read("instance_translation", graph.TypeSSBO, graph.StageVertex),
				{Resource: "gbuffer_color0", Type: graph.TypeColorAttachment, Access: graph.AccessWrite,
					Stage: graph.StageFragment, MipLevel: -1, ImageInfo: colorImage(ldrFormat)},
				{Resource: "gbuffer_color1", Type: graph.TypeColorAttachment, Access: graph.AccessWrite,
					Stage: graph.StageFragment, MipLevel: -1, ImageInfo: colorImage(hdrFormat)},
				{Resource: "gbuffer_color2", Type: graph.TypeColorAttachment, Access: graph.AccessWrite,
					Stage: graph.StageFragment, MipLevel: -1, ImageInfo: colorImage(hdrFormat)},
				{Resource: "depth", Type: graph.TypeDepthAttachment, Access: graph.AccessWrite,
					Stage: graph.StageFragment, MipLevel: -1,
					ImageInfo: &graph.ImageCreateInfo{Width: cfg.Width, Height: cfg.Height, Format: depthFormat,
						Usage: wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc}},
			},
			Body: noop("Geometry"),
		},
		{
			Name: "Grass", Group: "geometry", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{
				ColorFormats: []wgpu.TextureFormat{ldrFormat, hdrFormat, hdrFormat},
				DepthTest:    true, DepthFormat: depthFormat,
			},
			Usages: []graph.Usage{
				graph.Read("instance_translation", graph.TypeSSBO, graph.StageVertex),
				graph.ReadWrite("gbuffer_color0", graph.TypeColorAttachment, graph.StageFragment),
				graph.ReadWrite("gbuffer_color1", graph.TypeColorAttachment, graph.StageFragment),
				graph.ReadWrite("gbuffer_color2", graph.TypeColorAttachment, graph.StageFragment),
				graph.ReadWrite("depth", graph.TypeDepthAttachment, graph.StageFragment),
			},
			Body: noop("Grass"),
		},
		{
			Name: "UpdateBlas", Group: "rt", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("dynamic_vertex_ranges", graph.TypeSSBO, graph.StageCompute),
				graph.Write("blas_nodes", graph.TypeSSBO, graph.StageCompute),
			},
			Body: noop("UpdateBlas"),
		},
		{
			Name: "UpdateTLAS", Group: "rt", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("blas_nodes", graph.TypeSSBO, graph.StageCompute),
				graph.Read("renderables", graph.TypeSSBO, graph.StageCompute),
				graph.Write("tlas_nodes", graph.TypeSSBO, graph.StageCompute),
			},
			Body: noop("UpdateTLAS"),
		},
		{
			Name: "IrradianceProbeTranslation", Group: "ddgi", Pipeline: graph.PipelineNone,
			Usages: []graph.Usage{
				graph.Write("ddgi_atlas", graph.TypeImageTransferDst, graph.StageTransfer),
			},
			Body: noop("IrradianceProbeTranslation"),
		},
		{
			Name: "IrradianceProbeRayTracing", Group: "ddgi", Pipeline: graph.PipelineRayTracing,
			Usages: []graph.Usage{
				graph.Read("tlas_nodes", graph.TypeSSBO, graph.StageRayTracing),
				graph.Read("ddgi_atlas", graph.TypeSampledTexture, graph.StageRayTracing),
				{Resource: "ddgi_probe_rays", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageRayTracing, MipLevel: -1, BufferInfo: ssbo(1 << 22)},
			},
			Body: noop("IrradianceProbeRayTracing"),
		},
		{
			Name: "IrradianceProbeConvolve", Group: "ddgi", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("ddgi_probe_rays", graph.TypeSSBO, graph.StageCompute),
				graph.Write("ddgi_atlas", graph.TypeImageStorage, graph.StageCompute),
			},
			Body: noop("IrradianceProbeConvolve"),
		},
		{
			Name: "ShadowRayTracing", Group: "rt", Pipeline: graph.PipelineRayTracing,
			Usages: []graph.Usage{
				graph.Read("tlas_nodes", graph.TypeSSBO, graph.StageRayTracing),
				graph.Read("depth", graph.TypeSampledDepthTexture, graph.StageRayTracing),
				{Resource: "ray_shadow_mask", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageRayTracing, MipLevel: -1,
					ImageInfo: storageImage(cfg.Width, cfg.Height, wgpu.TextureFormatR8Unorm)},
			},
			Body: noop("ShadowRayTracing"),
		},
		{
			Name: "SpecularGI_RT", Group: "rt", Pipeline: graph.PipelineRayTracing,
			Usages: []graph.Usage{
				graph.Read("tlas_nodes", graph.TypeSSBO, graph.StageRayTracing),
				graph.Read("gbuffer_color1", graph.TypeSampledTexture, graph.StageRayTracing),
				{Resource: "specular_gi", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageRayTracing, MipLevel: -1,
					ImageInfo: storageImage(cfg.Width, cfg.Height, hdrFormat)},
			},
			Body: noop("SpecularGI_RT"),
		},
		{
			Name: "SpecularGI_Mip", Group: "rt", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("specular_gi", graph.TypeSampledTexture, graph.StageCompute),
				{Resource: "specular_gi_mips", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1,
					ImageInfo: &graph.ImageCreateInfo{Width: cfg.Width / 2, Height: cfg.Height / 2, Format: hdrFormat,
						MipCount: 5, Usage: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding}},
			},
			Body: noop("SpecularGI_Mip"),
		},
		{
			Name: "SSAO", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("depth", graph.TypeSampledDepthTexture, graph.StageCompute),
				graph.Read("gbuffer_color1", graph.TypeSampledTexture, graph.StageCompute),
				{Resource: "ssao", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1,
					ImageInfo: storageImage(cfg.Width, cfg.Height, wgpu.TextureFormatR8Unorm)},
			},
			Body: noop("SSAO"),
		},
		{
			Name: "SSAOBlur", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.ReadWrite("ssao", graph.TypeImageStorage, graph.StageCompute),
			},
			Body: noop("SSAOBlur"),
		},
		{
			Name: "DeferredLighting", Group: "lighting", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("gbuffer_color0", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("gbuffer_color1", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("gbuffer_color2", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("depth", graph.TypeSampledDepthTexture, graph.StageCompute),
				graph.Read("ssao", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("shadow_atlas", graph.TypeSampledDepthTexture, graph.StageCompute),
				graph.Read("ray_shadow_mask", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("ddgi_atlas", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("specular_gi_mips", graph.TypeSampledTexture, graph.StageCompute),
				{Resource: "hdr", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1,
					ImageInfo: storageImage(cfg.Width, cfg.Height, hdrFormat)},
			},
			Body: noop("DeferredLighting"),
		},
		{
			Name: "LuminanceHistogram", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("hdr", graph.TypeSampledTexture, graph.StageCompute),
				{Resource: "luminance_histogram", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1, BufferInfo: ssbo(256 * 4)},
			},
			Body: noop("LuminanceHistogram"),
		},
		{
			Name: "LuminanceAverage", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("luminance_histogram", graph.TypeSSBO, graph.StageCompute),
				{Resource: "luminance_average", Type: graph.TypeSSBO, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1, BufferInfo: ssbo(4)},
			},
			Body: noop("LuminanceAverage"),
		},
		{
			Name: "Bloom", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("luminance_average", graph.TypeSSBO, graph.StageCompute),
				graph.ReadWrite("hdr", graph.TypeImageStorage, graph.StageCompute),
			},
			Body: noop("Bloom"),
		},
		{
			Name: "FXAA", Group: "post", Pipeline: graph.PipelineCompute,
			Usages: []graph.Usage{
				graph.Read("hdr", graph.TypeSampledTexture, graph.StageCompute),
				graph.Read("luminance_average", graph.TypeSSBO, graph.StageCompute),
				{Resource: "ldr", Type: graph.TypeImageStorage, Access: graph.AccessWrite,
					Stage: graph.StageCompute, MipLevel: -1,
					ImageInfo: &graph.ImageCreateInfo{Width: cfg.Width, Height: cfg.Height, Format: ldrFormat,
						Usage: wgpu.TextureUsageStorageBinding | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc}},
			},
			Body: noop("FXAA"),
		},
		{
			Name: "DebugBS", Group: "debug", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{ColorFormats: []wgpu.TextureFormat{ldrFormat}},
			Usages: []graph.Usage{
				graph.Read("debug_bs", graph.TypeSSBO, graph.StageVertex),
				graph.ReadWrite("ldr", graph.TypeColorAttachment, graph.StageFragment),
			},
			Body: noop("DebugBS"),
		},
		{
			Name: "DebugView", Group: "debug", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{ColorFormats: []wgpu.TextureFormat{ldrFormat}},
			Usages: []graph.Usage{
				graph.ReadWrite("ldr", graph.TypeColorAttachment, graph.StageFragment),
			},
			Body: noop("DebugView"),
		},
		{
			Name: "UI", Group: "debug", Pipeline: graph.PipelineGraphics,
			Graphics: &graph.GraphicsParams{ColorFormats: []wgpu.TextureFormat{ldrFormat}},
			Usages: []graph.Usage{
				graph.ReadWrite("ldr", graph.TypeColorAttachment, graph.StageFragment),
			},
			Body: noop("UI"),
		},
		{
			Name: "Presentation", Group: "present", Pipeline: graph.PipelineNone,
			Usages: []graph.Usage{
				graph.Read("ldr", graph.TypeImageTransferSrc, graph.StageTransfer),
				graph.Write("swapchain", graph.TypeImageTransferDst, graph.StageTransfer),
			},
			Body: noop("Presentation"),
		},
	}
}

// templateDrawCommands builds the zero-instance indirect-draw slot
// templates an initializer writes into a fresh draw-command buffer:
// every slot is a valid no-op draw until the cull pass claims it.
func templateDrawCommands(n int) []byte {
	out := make([]byte, 0, n*drawCmdBytes)
	for i := 0; i < n; i++ {
		out = append(out, asset.DrawIndexedIndirectCommand{}.ToBytes()...)
	}
	return out
}
