// Package graph implements the frame graph: passes declare typed
// usages of named resources, the graph topologically orders them,
// creates the resources it is asked to own, runs one-time initializer
// passes per backing copy, and inserts the minimal barrier before each
// pass when executing the ordered list against one frame's command
// encoder.
//
// No single teacher file does this — app.go/rt_main.go run a fixed,
// hand-written pass sequence rather than a declarative graph — so this
// is implemented fresh in the teacher's procedural, struct-of-slices
// idiom (see spec.md §4.9 and the design note on cyclic-graph
// detection as a build-time error).
package graph

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Access is how a pass touches a resource.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessReadWrite
)

func (a Access) writes() bool { return a != AccessRead }
func (a Access) reads() bool  { return a != AccessWrite }

// ResourceType classifies a usage so the graph can derive the image
// layout (and barrier scope) a pass expects the resource in.
type ResourceType int

const (
	TypeSSBO ResourceType = iota
	TypeUBO
	TypeColorAttachment
	TypeDepthAttachment
	TypeSampledTexture
	TypeSampledDepthTexture
	TypeImageStorage
	TypeImageTransferSrc
	TypeImageTransferDst
)

// Stage is a pipeline-stage bitset a usage occurs in.
type Stage uint32

const (
	StageIndirectDraw Stage = 1 << iota
	StageVertex
	StageFragment
	StageCompute
	StageRayTracing
	StageTransfer
)

// Layout is the image layout a usage requires; buffers always report
// LayoutNone. The values mirror the Vulkan-class layouts the spec's
// barrier rules are written in terms of, even though wgpu tracks
// layouts internally — Execute reports the transitions it would emit
// so tests (and a future native backend) can check placement.
type Layout int

const (
	LayoutNone Layout = iota
	LayoutColorAttachment
	LayoutDepthAttachment
	LayoutShaderReadOnly
	LayoutGeneral
	LayoutTransferSrc
	LayoutTransferDst
	LayoutPresent
)

// layoutFor derives the layout a resource must be in for a usage type.
func layoutFor(t ResourceType) Layout {
	switch t {
	case TypeColorAttachment:
		return LayoutColorAttachment
	case TypeDepthAttachment:
		return LayoutDepthAttachment
	case TypeSampledTexture, TypeSampledDepthTexture:
		return LayoutShaderReadOnly
	case TypeImageStorage:
		return LayoutGeneral
	case TypeImageTransferSrc:
		return LayoutTransferSrc
	case TypeImageTransferDst:
		return LayoutTransferDst
	}
	return LayoutNone
}

// SamplerFlags tweak how a sampled usage filters.
type SamplerFlags uint32

const (
	SamplerNoFilter SamplerFlags = 1 << iota
	SamplerClampToEdge
	SamplerClampToBorder
	SamplerMaxReduction
)

// BufferCreateInfo asks the graph to own a buffer for this resource.
type BufferCreateInfo struct {
	Size  uint64
	Usage wgpu.BufferUsage
	// InitialData, when non-nil, is uploaded into every backing copy
	// once, before any pass reads the resource.
	InitialData func() []byte
}

// ImageCreateInfo asks the graph to own a texture for this resource.
type ImageCreateInfo struct {
	Width, Height uint32
	Format        wgpu.TextureFormat
	MipCount      uint32
	Usage         wgpu.TextureUsage
}

// Usage is one (resource, type, access, stage) declaration a pass
// makes when it registers (§4.9 ResourceUsage).
type Usage struct {
	Resource string
	Type     ResourceType
	Access   Access
	Stage    Stage

	MultiBuffered bool
	Bindless      bool
	SamplerFlags  SamplerFlags

	MipLevel   int // -1 for all mips
	ArrayIndex int

	BufferInfo *BufferCreateInfo
	ImageInfo  *ImageCreateInfo
}

// Read is shorthand for a read-only buffer usage in the given stages.
func Read(resource string, t ResourceType, stage Stage) Usage {
	return Usage{Resource: resource, Type: t, Access: AccessRead, Stage: stage, MipLevel: -1}
}

// Write is shorthand for a write usage in the given stages.
func Write(resource string, t ResourceType, stage Stage) Usage {
	return Usage{Resource: resource, Type: t, Access: AccessWrite, Stage: stage, MipLevel: -1}
}

// ReadWrite is shorthand for an in-place read-modify-write usage.
func ReadWrite(resource string, t ResourceType, stage Stage) Usage {
	return Usage{Resource: resource, Type: t, Access: AccessReadWrite, Stage: stage, MipLevel: -1}
}

// PipelineKind tags what kind of pipeline a pass binds (§9: passes are
// tagged variants, not a class hierarchy).
type PipelineKind int

const (
	PipelineNone PipelineKind = iota
	PipelineGraphics
	PipelineCompute
	PipelineRayTracing
)

// GraphicsParams carries the graphics-pipeline fixed state a graphics
// pass declares at registration (§4.9 step 4).
type GraphicsParams struct {
	ColorFormats []wgpu.TextureFormat
	DepthTest    bool
	DepthFormat  wgpu.TextureFormat
}

// Barrier is a transition the graph inserts before a pass runs,
// computed from the previous access of a resource and the new pass's
// declared usage.
type Barrier struct {
	Resource string
	Pass     string // pass the barrier runs before

	SrcStage Stage
	DstStage Stage
	// SrcWrite is true when the prior access was a write, requiring a
	// full read-after-write/write-after-write barrier rather than a
	// no-op read-after-read.
	SrcWrite bool
	DstWrite bool

	OldLayout Layout
	NewLayout Layout
}

// Body is the executable part of a pass: record commands against enc
// given the pass context. The orchestrator supplies ctx as an
// any-typed bag (scene data, bindless group, catalogue) rather than an
// interface, since passes need different subsets and the graph itself
// never inspects ctx.
type Body func(enc *wgpu.CommandEncoder, ctx any) error

// InitBody fills one backing copy of a graph-owned resource before
// any pass reads it (§4.9 registerResourceInitExe). It runs once per
// multi-buffer copy.
type InitBody func(enc *wgpu.CommandEncoder, buf *wgpu.Buffer, tex *wgpu.Texture, ctx any) error

// PassInfo is one node of the graph: its declared usages and the body
// that executes when the graph reaches it.
type PassInfo struct {
	Name  string
	Group string

	Usages   []Usage
	Pipeline PipelineKind
	Graphics *GraphicsParams // set when Pipeline == PipelineGraphics

	Body Body
}

// ownedResource is a buffer or texture the graph created from a
// declared create-info. Multi-buffered resources carry one backing
// copy per frame slot.
type ownedResource struct {
	name          string
	multiBuffered bool

	buffers  []*wgpu.Buffer
	textures []*wgpu.Texture
	views    []*wgpu.TextureView

	init     InitBody
	initData func() []byte
	initDone []bool
}

// compiledPass is a PassInfo plus the barriers computed for it.
type compiledPass struct {
	info     PassInfo
	barriers []Barrier
}

// Graph is a DAG of passes, registered then compiled once per graph
// shape (the default pass list rarely changes topology at runtime,
// only the DDGI bake-mode subgraph toggles passes in/out).
type Graph struct {
	device           *wgpu.Device
	multiBufferCount int

	passes   []PassInfo
	inits    map[string]InitBody
	owned    map[string]*ownedResource
	compiled []compiledPass
	built    bool
}

// New creates an empty graph. device may be nil, in which case the
// graph orders and barriers passes but creates no GPU resources (the
// mode every CPU-side test runs in).
func New(device *wgpu.Device, multiBufferCount int) *Graph {
	if multiBufferCount <= 0 {
		multiBufferCount = 1
	}
	return &Graph{
		device:           device,
		multiBufferCount: multiBufferCount,
		inits:            make(map[string]InitBody),
		owned:            make(map[string]*ownedResource),
	}
}

// Register adds a pass. Order of registration is the tie-break order
// when two passes have no dependency relation to each other, matching
// the teacher's fixed pass-sequence intent as closely as a declarative
// graph can.
func (g *Graph) Register(p PassInfo) {
	g.passes = append(g.passes, p)
	g.built = false
}

// RegisterResourceInit installs an initializer for a graph-owned
// resource: it runs once per backing copy, before any pass that reads
// the resource (§4.9). Used to fill draw-command buffers with
// zero-instance templates, zero count buffers, and the like.
func (g *Graph) RegisterResourceInit(resource string, body InitBody) {
	g.inits[resource] = body
	g.built = false
}

// Build computes topological order, per-pass barriers, and creates
// every declared graph-owned resource. Returns an error if the
// declared usages describe a cycle (§9: "cycle detection is a
// build-time error").
func (g *Graph) Build() error {
	order, err := topologicalOrder(g.passes)
	if err != nil {
		return err
	}

	if err := g.createOwnedResources(); err != nil {
		return err
	}

	type lastAccess struct {
		stage  Stage
		write  bool
		layout Layout
		seen   bool
	}
	last := make(map[string]lastAccess)

	compiled := make([]compiledPass, len(order))
	for i, passIdx := range order {
		p := g.passes[passIdx]
		var barriers []Barrier
		for _, u := range p.Usages {
			newLayout := layoutFor(u.Type)
			prev, seen := last[u.Resource]
			// A barrier is needed after any write, before any write, and
			// on a layout change; back-to-back reads in the same layout
			// need nothing.
			if seen && (prev.write || u.Access.writes() || prev.layout != newLayout) {
				barriers = append(barriers, Barrier{
					Resource:  u.Resource,
					Pass:      p.Name,
					SrcStage:  prev.stage,
					DstStage:  u.Stage,
					SrcWrite:  prev.write,
					DstWrite:  u.Access.writes(),
					OldLayout: prev.layout,
					NewLayout: newLayout,
				})
			}
			last[u.Resource] = lastAccess{stage: u.Stage, write: u.Access.writes(), layout: newLayout, seen: true}
		}
		compiled[i] = compiledPass{info: p, barriers: barriers}
	}

	g.compiled = compiled
	g.built = true
	return nil
}

// createOwnedResources walks every usage carrying a create-info and
// allocates the backing buffer/texture copies.
func (g *Graph) createOwnedResources() error {
	for _, p := range g.passes {
		for _, u := range p.Usages {
			if u.BufferInfo == nil && u.ImageInfo == nil {
				continue
			}
			if _, ok := g.owned[u.Resource]; ok {
				continue
			}
			res := &ownedResource{
				name:          u.Resource,
				multiBuffered: u.MultiBuffered,
				init:          g.inits[u.Resource],
			}
			copies := 1
			if u.MultiBuffered {
				copies = g.multiBufferCount
			}
			res.initDone = make([]bool, copies)

			if g.device != nil {
				for c := 0; c < copies; c++ {
					if u.BufferInfo != nil {
						buf, err := g.device.CreateBuffer(&wgpu.BufferDescriptor{
							Label: u.Resource,
							Size:  u.BufferInfo.Size,
							Usage: u.BufferInfo.Usage | wgpu.BufferUsageCopyDst,
						})
						if err != nil {
							return fmt.Errorf("graph: create buffer %q: %w", u.Resource, err)
						}
						res.buffers = append(res.buffers, buf)
					} else {
						mips := u.ImageInfo.MipCount
						if mips == 0 {
							mips = 1
						}
						tex, err := g.device.CreateTexture(&wgpu.TextureDescriptor{
							Label:         u.Resource,
							Size:          wgpu.Extent3D{Width: u.ImageInfo.Width, Height: u.ImageInfo.Height, DepthOrArrayLayers: 1},
							Format:        u.ImageInfo.Format,
							Dimension:     wgpu.TextureDimension2D,
							MipLevelCount: mips,
							SampleCount:   1,
							Usage:         u.ImageInfo.Usage,
						})
						if err != nil {
							return fmt.Errorf("graph: create image %q: %w", u.Resource, err)
						}
						view, err := tex.CreateView(nil)
						if err != nil {
							return fmt.Errorf("graph: create view %q: %w", u.Resource, err)
						}
						res.textures = append(res.textures, tex)
						res.views = append(res.views, view)
					}
				}
			}
			if u.BufferInfo != nil {
				res.initData = u.BufferInfo.InitialData
			}
			g.owned[u.Resource] = res
		}
	}
	return nil
}

// Buffer returns the backing buffer copy of a graph-owned buffer
// resource for the given frame slot, or nil if the graph doesn't own
// it (device-less build or externally-owned resource).
func (g *Graph) Buffer(resource string, frameSlot int) *wgpu.Buffer {
	res, ok := g.owned[resource]
	if !ok || len(res.buffers) == 0 {
		return nil
	}
	return res.buffers[res.copyIndex(frameSlot)]
}

// View returns the backing texture view copy of a graph-owned image
// resource for the given frame slot.
func (g *Graph) View(resource string, frameSlot int) *wgpu.TextureView {
	res, ok := g.owned[resource]
	if !ok || len(res.views) == 0 {
		return nil
	}
	return res.views[res.copyIndex(frameSlot)]
}

func (r *ownedResource) copyIndex(frameSlot int) int {
	if !r.multiBuffered {
		return 0
	}
	return frameSlot % len(r.initDone)
}

// runInits executes pending initializer work for the frame slot's
// backing copies: declared InitialData uploads and registered
// InitBody callbacks, each exactly once per copy.
func (g *Graph) runInits(enc *wgpu.CommandEncoder, ctx any, frameSlot int) error {
	for _, res := range g.owned {
		c := res.copyIndex(frameSlot)
		if res.initDone[c] {
			continue
		}
		res.initDone[c] = true

		var buf *wgpu.Buffer
		var tex *wgpu.Texture
		if len(res.buffers) > c {
			buf = res.buffers[c]
		}
		if len(res.textures) > c {
			tex = res.textures[c]
		}
		if res.initData != nil && buf != nil && g.device != nil {
			g.device.GetQueue().WriteBuffer(buf, 0, res.initData())
		}
		if res.init != nil {
			if err := res.init(enc, buf, tex, ctx); err != nil {
				return fmt.Errorf("graph: init %q: %w", res.name, err)
			}
		}
	}
	return nil
}

// Execute runs every compiled pass in order against one command
// encoder, running pending resource initializers first and inserting
// each pass's precomputed barriers. A barrier in this software graph
// is a no-op marker (wgpu's automatic resource tracking already
// serializes hazards within one encoder); it exists so Execute's
// behavior matches the Vulkan-class model the spec describes, and so
// tests can assert on barrier placement.
func (g *Graph) Execute(enc *wgpu.CommandEncoder, ctx any, frameSlot int) ([]Barrier, error) {
	if !g.built {
		return nil, fmt.Errorf("graph: Execute called before Build")
	}
	if err := g.runInits(enc, ctx, frameSlot); err != nil {
		return nil, err
	}
	var allBarriers []Barrier
	for _, cp := range g.compiled {
		allBarriers = append(allBarriers, cp.barriers...)
		if cp.info.Body != nil {
			if err := cp.info.Body(enc, ctx); err != nil {
				return allBarriers, fmt.Errorf("graph: pass %q: %w", cp.info.Name, err)
			}
		}
	}
	return allBarriers, nil
}

// Release frees every graph-owned GPU resource. Called on frame-graph
// teardown during swap-chain recreation.
func (g *Graph) Release() {
	for _, res := range g.owned {
		for _, v := range res.views {
			v.Release()
		}
		for _, t := range res.textures {
			t.Release()
		}
		for _, b := range res.buffers {
			b.Release()
		}
	}
	g.owned = make(map[string]*ownedResource)
	g.built = false
}

// PassNames returns the compiled pass order's names, for diagnostics
// and tests.
func (g *Graph) PassNames() []string {
	names := make([]string, len(g.compiled))
	for i, cp := range g.compiled {
		names[i] = cp.info.Name
	}
	return names
}

// BarriersFor returns the barriers compiled before the named pass.
func (g *Graph) BarriersFor(pass string) []Barrier {
	for _, cp := range g.compiled {
		if cp.info.Name == pass {
			return cp.barriers
		}
	}
	return nil
}

// topologicalOrder computes a dependency order where pass A must run
// before pass B if A is the most recent (in registration order) writer
// of a resource B reads or writes. Detects cycles via the standard
// three-color DFS.
func topologicalOrder(passes []PassInfo) ([]int, error) {
	n := len(passes)
	deps := make([][]int, n)

	// lastWriterIdx is built incrementally as passes are scanned in
	// registration order, so a pass only ever depends on writers that
	// precede it — not on a later pass that happens to write the same
	// resource again.
	lastWriterIdx := make(map[string]int)
	for i, p := range passes {
		seen := make(map[int]bool)
		for _, u := range p.Usages {
			if wIdx, ok := lastWriterIdx[u.Resource]; ok && wIdx != i && !seen[wIdx] {
				deps[i] = append(deps[i], wIdx)
				seen[wIdx] = true
			}
		}
		for _, u := range p.Usages {
			if u.Access.writes() {
				lastWriterIdx[u.Resource] = i
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, n)
	var order []int
	var visit func(i int) error
	visit = func(i int) error {
		color[i] = gray
		for _, d := range deps[i] {
			switch color[d] {
			case white:
				if err := visit(d); err != nil {
					return err
				}
			case gray:
				return fmt.Errorf("graph: cycle detected involving pass %q", passes[i].Name)
			}
		}
		color[i] = black
		order = append(order, i)
		return nil
	}

	for i := range passes {
		if color[i] == white {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
