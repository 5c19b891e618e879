// Package accel implements software acceleration structures standing
// in for the Vulkan-class API's native BLAS/TLAS objects: wgpu has no
// ray tracing extension, so both levels are built as a flat,
// byte-packed bounding volume hierarchy the GPU can traverse itself in
// a compute pass (§ Open Questions decision 4).
//
// Grounded on voxelrt/rt/bvh.TLASBuilder, generalized to two levels:
// one BLAS per Mesh built over its triangles, and one TLAS per frame
// built over the visible Renderables' world-space bounds.
package accel

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// Node mirrors the GPU-traversed BVH node layout: two vec4 AABB
// corners, left/right child indices (or leaf first/count), 64 bytes
// total matching bvh.BVHNode's WGSL struct.
type Node struct {
	Min       mgl32.Vec3
	Max       mgl32.Vec3
	Left      int32
	Right     int32
	LeafFirst int32
	LeafCount int32
}

// NodeSize is the packed byte size of one Node.
const NodeSize = 64

// ToBytes packs the node in the layout the GPU traversal shader reads.
func (n Node) ToBytes() []byte {
	buf := make([]byte, NodeSize)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(n.Min.X()))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(n.Min.Y()))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(n.Min.Z()))
	binary.LittleEndian.PutUint32(buf[12:16], 0)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(n.Max.X()))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(n.Max.Y()))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(n.Max.Z()))
	binary.LittleEndian.PutUint32(buf[28:32], 0)
	binary.LittleEndian.PutUint32(buf[32:36], uint32(n.Left))
	binary.LittleEndian.PutUint32(buf[36:40], uint32(n.Right))
	binary.LittleEndian.PutUint32(buf[40:44], uint32(n.LeafFirst))
	binary.LittleEndian.PutUint32(buf[44:48], uint32(n.LeafCount))
	return buf
}

// item is one leaf's bounds and its original index, carried through
// the median-split sort.
type item struct {
	min, max, centroid mgl32.Vec3
	index              int32
}

// Build constructs a flat BVH over the given [min,max] bound pairs via
// recursive median-split on the widest axis. Used for both BLAS (one
// triangle-pair range per mesh) and TLAS (one renderable bound per
// instance) — the distinction is purely what bounds are passed in.
func Build(bounds [][2]mgl32.Vec3) []Node {
	if len(bounds) == 0 {
		return []Node{{}}
	}
	items := make([]item, len(bounds))
	for i, b := range bounds {
		items[i] = item{min: b[0], max: b[1], centroid: b[0].Add(b[1]).Mul(0.5), index: int32(i)}
	}
	var nodes []Node
	recursiveBuild(items, &nodes)
	return nodes
}

func recursiveBuild(items []item, nodes *[]Node) int32 {
	idx := int32(len(*nodes))
	*nodes = append(*nodes, Node{Left: -1, Right: -1, LeafFirst: -1, LeafCount: 0})

	minB := mgl32.Vec3{float32(math.Inf(1)), float32(math.Inf(1)), float32(math.Inf(1))}
	maxB := mgl32.Vec3{float32(math.Inf(-1)), float32(math.Inf(-1)), float32(math.Inf(-1))}
	for _, it := range items {
		minB = componentMin(minB, it.min)
		maxB = componentMax(maxB, it.max)
	}
	(*nodes)[idx].Min = minB
	(*nodes)[idx].Max = maxB

	if len(items) == 1 {
		(*nodes)[idx].LeafFirst = items[0].index
		(*nodes)[idx].LeafCount = 1
		return idx
	}

	extent := maxB.Sub(minB)
	axis := 0
	if extent.Y() > extent.X() {
		axis = 1
	}
	if extent.Z() > extent[axis] {
		axis = 2
	}

	sort.Slice(items, func(i, j int) bool { return items[i].centroid[axis] < items[j].centroid[axis] })
	mid := len(items) / 2

	left := recursiveBuild(items[:mid], nodes)
	right := recursiveBuild(items[mid:], nodes)
	(*nodes)[idx].Left = left
	(*nodes)[idx].Right = right
	return idx
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{minF(a.X(), b.X()), minF(a.Y(), b.Y()), minF(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{maxF(a.X(), b.X()), maxF(a.Y(), b.Y()), maxF(a.Z(), b.Z())}
}

func minF(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// ToBytes packs a full node list in traversal order.
func ToBytes(nodes []Node) []byte {
	buf := make([]byte, 0, len(nodes)*NodeSize)
	for _, n := range nodes {
		buf = append(buf, n.ToBytes()...)
	}
	return buf
}
