package asset

import "github.com/go-gl/mathgl/mgl32"

// Vertex is the fat vertex format every Mesh is uploaded in: position,
// normal, tangent+handedness, uv, color, and up to 4 skinning
// joints/weights (§3 Mesh attributes).
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	Tangent  mgl32.Vec4 // xyz = tangent, w = handedness
	UV       mgl32.Vec2
	Color    mgl32.Vec4
	Joints   [4]int16
	Weights  [4]float32
}

// Mesh is an immutable triangle mesh (§3). Offsets into the giga
// buffers are assigned on upload and remain valid until the owning
// handle is freed (invariant: "once uploaded, vertex_offset/index_offset
// remain valid until its owning handle is freed").
type Mesh struct {
	ID ID

	Vertices []Vertex
	Indices  []uint32

	AABBMin mgl32.Vec3
	AABBMax mgl32.Vec3
}

// Model is a named, ordered sequence of Mesh ids, immutable after
// creation (§3).
type Model struct {
	ID    ID
	Name  string
	Meshes []ID
}
