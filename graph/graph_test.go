package graph

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestBuildOrdersByDependency(t *testing.T) {
	g := New(nil, 2)
	g.Register(PassInfo{Name: "gbuffer", Usages: []Usage{
		Write("gbuffer", TypeColorAttachment, StageFragment),
	}})
	g.Register(PassInfo{Name: "lighting", Usages: []Usage{
		Read("gbuffer", TypeSampledTexture, StageCompute),
		Write("hdr", TypeImageStorage, StageCompute),
	}})
	g.Register(PassInfo{Name: "tonemap", Usages: []Usage{
		Read("hdr", TypeSampledTexture, StageCompute),
		Write("ldr", TypeImageStorage, StageCompute),
	}})

	if err := g.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	names := g.PassNames()
	if len(names) != 3 || names[0] != "gbuffer" || names[1] != "lighting" || names[2] != "tonemap" {
		t.Fatalf("unexpected order: %v", names)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	g := New(nil, 2)
	g.Register(PassInfo{Name: "a", Usages: []Usage{
		Read("y", TypeSSBO, StageCompute),
		Write("x", TypeSSBO, StageCompute),
	}})
	g.Register(PassInfo{Name: "b", Usages: []Usage{
		Read("x", TypeSSBO, StageCompute),
		Write("y", TypeSSBO, StageCompute),
	}})

	if err := g.Build(); err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestBarriersCarryLayoutTransitions(t *testing.T) {
	g := New(nil, 2)
	g.Register(PassInfo{Name: "gbuffer", Usages: []Usage{
		Write("albedo", TypeColorAttachment, StageFragment),
	}})
	g.Register(PassInfo{Name: "lighting", Usages: []Usage{
		Read("albedo", TypeSampledTexture, StageCompute),
	}})

	if err := g.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	barriers := g.BarriersFor("lighting")
	if len(barriers) != 1 {
		t.Fatalf("expected one barrier before lighting, got %v", barriers)
	}
	b := barriers[0]
	if !b.SrcWrite || b.SrcStage != StageFragment || b.DstStage != StageCompute {
		t.Fatalf("unexpected barrier scopes: %+v", b)
	}
	if b.OldLayout != LayoutColorAttachment || b.NewLayout != LayoutShaderReadOnly {
		t.Fatalf("expected color-attachment -> shader-read transition, got %+v", b)
	}
}

func TestBackToBackReadsNeedNoBarrier(t *testing.T) {
	g := New(nil, 2)
	g.Register(PassInfo{Name: "produce", Usages: []Usage{
		Write("data", TypeSSBO, StageCompute),
	}})
	g.Register(PassInfo{Name: "consumeA", Usages: []Usage{
		Read("data", TypeSSBO, StageCompute),
	}})
	g.Register(PassInfo{Name: "consumeB", Usages: []Usage{
		Read("data", TypeSSBO, StageCompute),
	}})

	if err := g.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := g.BarriersFor("consumeA"); len(got) != 1 {
		t.Fatalf("expected write->read barrier before consumeA, got %v", got)
	}
	if got := g.BarriersFor("consumeB"); len(got) != 0 {
		t.Fatalf("expected no barrier between two reads, got %v", got)
	}
}

func TestExecuteRunsPassesInOrderAndCollectsBarriers(t *testing.T) {
	// Bodies take a *wgpu.CommandEncoder, which needs a live device to
	// construct; this exercises the nil-body path (topological order +
	// barrier collection) which is what Execute does regardless of
	// whether a pass has a body.
	g := New(nil, 2)
	g.Register(PassInfo{Name: "depth", Usages: []Usage{
		Write("depth", TypeDepthAttachment, StageFragment),
	}})
	g.Register(PassInfo{Name: "gbuffer", Usages: []Usage{
		Read("depth", TypeSampledDepthTexture, StageFragment),
		Write("gbuffer", TypeColorAttachment, StageFragment),
	}})
	g.Register(PassInfo{Name: "lighting", Usages: []Usage{
		Read("gbuffer", TypeSampledTexture, StageCompute),
		Read("depth", TypeSampledDepthTexture, StageCompute),
		Write("hdr", TypeImageStorage, StageCompute),
	}})

	if err := g.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	barriers, err := g.Execute(nil, nil, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(barriers) == 0 {
		t.Fatal("expected at least one barrier for the lighting pass reading depth+gbuffer")
	}
}

func TestExecuteBeforeBuildErrors(t *testing.T) {
	g := New(nil, 2)
	g.Register(PassInfo{Name: "a"})
	if _, err := g.Execute(nil, nil, 0); err == nil {
		t.Fatal("expected error when Execute called before Build")
	}
}

func TestResourceInitRunsOncePerBackingCopy(t *testing.T) {
	g := New(nil, 3)
	g.Register(PassInfo{Name: "cull", Usages: []Usage{
		{Resource: "draws", Type: TypeSSBO, Access: AccessWrite, Stage: StageCompute,
			MultiBuffered: true, MipLevel: -1,
			BufferInfo: &BufferCreateInfo{Size: 64}},
	}})

	runs := 0
	g.RegisterResourceInit("draws", func(enc *wgpu.CommandEncoder, buf *wgpu.Buffer, tex *wgpu.Texture, ctx any) error {
		runs++
		return nil
	})

	if err := g.Build(); err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Cycling through every frame slot twice: the init must run exactly
	// once per backing copy (3), not once per Execute (6).
	for frame := 0; frame < 6; frame++ {
		if _, err := g.Execute(nil, nil, frame%3); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}
	if runs != 3 {
		t.Fatalf("expected init to run once per backing copy (3), ran %d times", runs)
	}
}
