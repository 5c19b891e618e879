package asset

import "github.com/go-gl/mathgl/mgl32"

// Joint is one entry of a Skeleton's ordered joint list (§3).
type Joint struct {
	InternalID       ID
	InverseBindMatrix mgl32.Mat4
	NodeRef          ID
}

// Skeleton is an ordered list of joint references. The renderer keeps
// one flat joint-matrix buffer keyed by a per-skeleton offset handle
// allocated from the slot allocator (C1); RootIsJoint controls whether
// the size computation subtracts 1 for a non-joint root (§4.6 step 9).
type Skeleton struct {
	ID         ID
	Joints     []Joint
	RootIsJoint bool
}

// JointCount is the number of matrix slots this skeleton needs in the
// flat skeleton buffer.
func (s Skeleton) JointCount() int {
	n := len(s.Joints)
	if !s.RootIsJoint && n > 0 {
		n--
	}
	return n
}

// Animation is consumed by the (out-of-scope) animation updater, which
// produces per-joint global matrices the renderer writes into the
// skeleton buffer. Kept here only so AssetUpdate can add/remove it
// (§3, §4.6 step 8).
type Animation struct {
	ID   ID
	Name string
}

// Animator is the per-renderable animation playback state. Supplemented
// from original_source's AnimationUpdater/Animator.h: the distilled
// spec only mentions that the renderer "consumes pre-interpolated
// joint globals from the animation updater", but AssetUpdate's
// "updated Animators" (§4.6) needs somewhere to live.
type Animator struct {
	RenderableID ID
	AnimationID  ID
	Time         float64
	Speed        float32
	Loop         bool
}
