package scenefile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/renderer/asset"
)

func sampleScene() Scene {
	mesh := asset.Mesh{
		ID:      asset.NewID(),
		AABBMin: mgl32.Vec3{-1, -2, -3},
		AABBMax: mgl32.Vec3{1, 2, 3},
		Vertices: []asset.Vertex{
			{
				Position: mgl32.Vec3{1, 2, 3},
				Normal:   mgl32.Vec3{0, 1, 0},
				Tangent:  mgl32.Vec4{1, 0, 0, 1},
				UV:       mgl32.Vec2{0.5, 0.25},
				Color:    mgl32.Vec4{1, 1, 1, 1},
				Joints:   [4]int16{0, 1, 2, 3},
				Weights:  [4]float32{0.4, 0.3, 0.2, 0.1},
			},
		},
		Indices: []uint32{0, 0, 0},
	}
	model := Model{
		Model:  asset.Model{ID: asset.NewID(), Name: "crate", Meshes: []asset.ID{mesh.ID}},
		Meshes: []asset.Mesh{mesh},
	}
	tex := asset.Texture{
		ID:          asset.NewID(),
		Format:      asset.FormatRGBA8Srgb,
		Width:       4,
		Height:      4,
		ClampToEdge: true,
		Mips:        []asset.MipLevel{{Width: 4, Height: 4, Data: bytes.Repeat([]byte{0x80}, 64)}},
	}
	mat := asset.Material{
		ID:              asset.NewID(),
		BaseColorFactor: mgl32.Vec4{1, 0.5, 0.25, 1},
		AlbedoTexture:   tex.ID,
		MetallicFactor:  0.5,
		RoughnessFactor: 0.7,
	}
	sk := asset.Skeleton{
		ID:          asset.NewID(),
		RootIsJoint: true,
		Joints: []asset.Joint{
			{InternalID: asset.NewID(), InverseBindMatrix: mgl32.Translate3D(1, 2, 3), NodeRef: asset.NewID()},
		},
	}
	anim := asset.Animation{ID: asset.NewID(), Name: "walk"}
	r := asset.Renderable{
		ID:             asset.NewID(),
		ModelID:        model.Model.ID,
		SkeletonID:     sk.ID,
		MaterialIDs:    []asset.ID{mat.ID},
		Tint:           mgl32.Vec4{1, 1, 1, 1},
		Bounds:         asset.BoundingSphere{Center: mgl32.Vec3{0, 1, 0}, Radius: 2.5},
		Visible:        true,
		WorldTransform: mgl32.Translate3D(4, 5, 6),
	}
	return Scene{
		Textures:    []asset.Texture{tex},
		Models:      []Model{model},
		Materials:   []asset.Material{mat},
		Animations:  []asset.Animation{anim},
		Skeletons:   []asset.Skeleton{sk},
		Animators:   []asset.Animator{{RenderableID: r.ID, AnimationID: anim.ID, Time: 1.25, Speed: 2, Loop: true}},
		Renderables: []asset.Renderable{r},
	}
}

func TestRoundTripReproducesScene(t *testing.T) {
	s := sampleScene()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestRoundTripReproducesAssetUpdate(t *testing.T) {
	s := sampleScene()

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, s))
	got, err := Read(&buf)
	require.NoError(t, err)

	require.Equal(t, s.AssetUpdate(), got.AssetUpdate())
}

func TestReadRejectsWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Scene{}))
	data := buf.Bytes()
	data[0] = Version + 1

	_, err := Read(bytes.NewReader(data))
	require.Error(t, err)
}

func TestReadRejectsTruncatedFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleScene()))
	data := buf.Bytes()

	_, err := Read(bytes.NewReader(data[:len(data)-7]))
	require.Error(t, err)
}

func TestSaveAndLoadAsync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.scene")
	s := sampleScene()
	require.NoError(t, Save(path, s))

	res := <-LoadAsync(path)
	require.NoError(t, res.Err)
	require.Equal(t, s, res.Scene)
}
