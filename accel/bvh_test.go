package accel

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestBuildSingleLeaf(t *testing.T) {
	bounds := [][2]mgl32.Vec3{{{0, 0, 0}, {1, 1, 1}}}
	nodes := Build(bounds)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 node, got %d", len(nodes))
	}
	if nodes[0].LeafCount != 1 || nodes[0].LeafFirst != 0 {
		t.Fatalf("expected leaf at index 0, got %+v", nodes[0])
	}
}

func TestBuildMultipleLeavesCoverAllIndices(t *testing.T) {
	bounds := [][2]mgl32.Vec3{
		{{0, 0, 0}, {1, 1, 1}},
		{{5, 0, 0}, {6, 1, 1}},
		{{10, 0, 0}, {11, 1, 1}},
		{{15, 0, 0}, {16, 1, 1}},
	}
	nodes := Build(bounds)

	seen := make(map[int32]bool)
	var walk func(i int32)
	walk = func(i int32) {
		n := nodes[i]
		if n.LeafCount == 1 {
			seen[n.LeafFirst] = true
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(0)

	if len(seen) != len(bounds) {
		t.Fatalf("expected %d leaves reachable, got %d", len(bounds), len(seen))
	}
}

func TestNodeToBytesSize(t *testing.T) {
	n := Node{Min: mgl32.Vec3{1, 2, 3}, Max: mgl32.Vec3{4, 5, 6}, LeafFirst: 2, LeafCount: 1}
	b := n.ToBytes()
	if len(b) != NodeSize {
		t.Fatalf("expected %d bytes, got %d", NodeSize, len(b))
	}
}

func TestBuildEmptyReturnsPlaceholderRoot(t *testing.T) {
	nodes := Build(nil)
	if len(nodes) != 1 {
		t.Fatalf("expected 1 placeholder node for empty input, got %d", len(nodes))
	}
}
