package asset

import "github.com/go-gl/mathgl/mgl32"

// BoundingSphere is the renderable's cull volume.
type BoundingSphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Renderable is a component on a scene node (§3): references a model,
// an optional skeleton, per-mesh materials, and carries the transform
// the frame graph's cull pass tests against the frustum.
type Renderable struct {
	ID ID

	ModelID    ID
	SkeletonID ID // NilID if not skinned

	MaterialIDs []ID // one per mesh of ModelID, in mesh order

	Tint           mgl32.Vec4
	Bounds         BoundingSphere
	Visible        bool
	WorldTransform mgl32.Mat4
}

// IsSkinned reports whether this renderable references a skeleton.
func (r Renderable) IsSkinned() bool { return !r.SkeletonID.IsNil() }
