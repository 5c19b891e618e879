package passes

import (
	"testing"

	"github.com/gekko3d/renderer/graph"
)

func buildDefault(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.New(nil, 2)
	RegisterDefault(g, Config{Width: 1280, Height: 720}, nil)
	if err := g.Build(); err != nil {
		t.Fatalf("default graph has a cycle or other build error: %v", err)
	}
	return g
}

func TestRegisterDefaultBuildsWithoutCycle(t *testing.T) {
	buildDefault(t)
}

func TestRegisterDefaultOrdersCullBeforeGeometry(t *testing.T) {
	names := buildDefault(t).PassNames()
	cullIdx, geomIdx := -1, -1
	for i, n := range names {
		if n == "Cull" {
			cullIdx = i
		}
		if n == "Geometry" {
			geomIdx = i
		}
	}
	if cullIdx == -1 || geomIdx == -1 {
		t.Fatalf("missing expected passes in %v", names)
	}
	if cullIdx >= geomIdx {
		t.Fatalf("expected Cull (%d) before Geometry (%d)", cullIdx, geomIdx)
	}
}

func TestRegisterDefaultEndsWithPresentation(t *testing.T) {
	names := buildDefault(t).PassNames()
	if names[len(names)-1] != "Presentation" {
		t.Fatalf("expected Presentation last, got %v", names)
	}
}

func TestDepthTransitionsToShaderReadAtFirstSampledUse(t *testing.T) {
	// After Grass finishes writing depth as an attachment, the first
	// pass sampling it (ShadowRayTracing) carries the layout
	// transition; later sampled reads (SSAO, DeferredLighting) reuse
	// the layout with no further barrier.
	g := buildDefault(t)
	found := false
	for _, b := range g.BarriersFor("ShadowRayTracing") {
		if b.Resource == "depth" {
			found = true
			if b.OldLayout != graph.LayoutDepthAttachment || b.NewLayout != graph.LayoutShaderReadOnly {
				t.Fatalf("expected depth-attachment -> shader-read transition, got %+v", b)
			}
		}
	}
	if !found {
		t.Fatal("expected a depth barrier before ShadowRayTracing")
	}
	for _, b := range g.BarriersFor("DeferredLighting") {
		if b.Resource == "depth" {
			t.Fatalf("expected no redundant depth barrier before DeferredLighting, got %+v", b)
		}
	}
}

func TestTemplateDrawCommandsAreZeroInstance(t *testing.T) {
	data := templateDrawCommands(4)
	if len(data) != 4*drawCmdBytes {
		t.Fatalf("expected %d bytes, got %d", 4*drawCmdBytes, len(data))
	}
	for i, b := range data {
		if b != 0 {
			t.Fatalf("expected all-zero template (instance_count=0), found byte %d at %d", b, i)
		}
	}
}
