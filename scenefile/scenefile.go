// Package scenefile implements the versioned binary scene format the
// orchestrator loads and saves worlds through (§6): a one-byte
// version, eight section offsets, then per-section variable-length
// blobs (prefabs, textures, models, materials, animations, skeletons,
// animators, renderables). Serialising and deserialising a scene
// reproduces identical AssetUpdate results.
//
// The byte-level packing follows the same manual little-endian style
// as the GPU record encoders in asset/ (grounded on manager.go's
// binary.LittleEndian buffer writers).
package scenefile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/renderer/asset"
)

// Version is the current format revision.
const Version uint8 = 1

// sectionCount is fixed by the header layout: prefabs, textures,
// models, materials, animations, skeletons, animators, renderables.
const sectionCount = 8

const (
	secPrefabs = iota
	secTextures
	secModels
	secMaterials
	secAnimations
	secSkeletons
	secAnimators
	secRenderables
)

// Model bundles a model's metadata with its mesh payloads, since the
// wire format carries both while AssetUpdate carries only the
// metadata (mesh bytes travel to the catalogue via RegisterMeshes).
type Model struct {
	Model  asset.Model
	Meshes []asset.Mesh
}

// Scene is one world's full asset content.
type Scene struct {
	Textures    []asset.Texture
	Models      []Model
	Materials   []asset.Material
	Animations  []asset.Animation
	Skeletons   []asset.Skeleton
	Animators   []asset.Animator
	Renderables []asset.Renderable
}

// AssetUpdate converts the scene into the transactional update the
// catalogue consumes. Mesh payloads are delivered separately (see
// Model).
func (s Scene) AssetUpdate() asset.Update {
	u := asset.Update{
		AddedTextures:    append([]asset.Texture(nil), s.Textures...),
		AddedMaterials:   append([]asset.Material(nil), s.Materials...),
		AddedAnimations:  append([]asset.Animation(nil), s.Animations...),
		AddedSkeletons:   append([]asset.Skeleton(nil), s.Skeletons...),
		UpdatedAnimators: append([]asset.Animator(nil), s.Animators...),
		AddedRenderables: append([]asset.Renderable(nil), s.Renderables...),
	}
	for _, m := range s.Models {
		u.AddedModels = append(u.AddedModels, m.Model)
	}
	return u
}

// Write serialises the scene.
func Write(w io.Writer, s Scene) error {
	sections := make([][]byte, sectionCount)
	sections[secPrefabs] = nil // reserved: prefab authoring lives outside the renderer
	sections[secTextures] = encodeTextures(s.Textures)
	sections[secModels] = encodeModels(s.Models)
	sections[secMaterials] = encodeMaterials(s.Materials)
	sections[secAnimations] = encodeAnimations(s.Animations)
	sections[secSkeletons] = encodeSkeletons(s.Skeletons)
	sections[secAnimators] = encodeAnimators(s.Animators)
	sections[secRenderables] = encodeRenderables(s.Renderables)

	headerSize := 1 + sectionCount*4
	var header bytes.Buffer
	header.WriteByte(Version)
	offset := uint32(headerSize)
	for _, sec := range sections {
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], offset)
		header.Write(b[:])
		offset += uint32(len(sec))
	}

	if _, err := w.Write(header.Bytes()); err != nil {
		return fmt.Errorf("scenefile: write header: %w", err)
	}
	for _, sec := range sections {
		if _, err := w.Write(sec); err != nil {
			return fmt.Errorf("scenefile: write section: %w", err)
		}
	}
	return nil
}

// Read deserialises a scene written by Write.
func Read(r io.Reader) (Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Scene{}, fmt.Errorf("scenefile: read: %w", err)
	}
	headerSize := 1 + sectionCount*4
	if len(data) < headerSize {
		return Scene{}, fmt.Errorf("scenefile: truncated header (%d bytes)", len(data))
	}
	if v := data[0]; v != Version {
		return Scene{}, fmt.Errorf("scenefile: unsupported version %d", v)
	}

	offsets := make([]uint32, sectionCount)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(data[1+i*4:])
	}
	section := func(i int) ([]byte, error) {
		start := offsets[i]
		end := uint32(len(data))
		if i+1 < sectionCount {
			end = offsets[i+1]
		}
		if start > end || end > uint32(len(data)) {
			return nil, fmt.Errorf("scenefile: section %d out of bounds [%d,%d)", i, start, end)
		}
		return data[start:end], nil
	}

	var s Scene
	for i := 0; i < sectionCount; i++ {
		blob, err := section(i)
		if err != nil {
			return Scene{}, err
		}
		d := &decoder{data: blob}
		switch i {
		case secPrefabs:
			// reserved
		case secTextures:
			s.Textures, err = decodeTextures(d)
		case secModels:
			s.Models, err = decodeModels(d)
		case secMaterials:
			s.Materials, err = decodeMaterials(d)
		case secAnimations:
			s.Animations, err = decodeAnimations(d)
		case secSkeletons:
			s.Skeletons, err = decodeSkeletons(d)
		case secAnimators:
			s.Animators, err = decodeAnimators(d)
		case secRenderables:
			s.Renderables, err = decodeRenderables(d)
		}
		if err != nil {
			return Scene{}, err
		}
	}
	return s, nil
}

// encoder helpers

type encoder struct {
	buf bytes.Buffer
}

func (e *encoder) u8(v uint8)   { e.buf.WriteByte(v) }
func (e *encoder) b(v bool)     { if v { e.u8(1) } else { e.u8(0) } }
func (e *encoder) u16(v uint16) { var b [2]byte; binary.LittleEndian.PutUint16(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) u32(v uint32) { var b [4]byte; binary.LittleEndian.PutUint32(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) u64(v uint64) { var b [8]byte; binary.LittleEndian.PutUint64(b[:], v); e.buf.Write(b[:]) }
func (e *encoder) f32(v float32) { e.u32(math.Float32bits(v)) }
func (e *encoder) f64(v float64) { e.u64(math.Float64bits(v)) }

func (e *encoder) id(v asset.ID) { e.buf.Write(v[:]) }

func (e *encoder) str(v string) {
	e.u32(uint32(len(v)))
	e.buf.WriteString(v)
}

func (e *encoder) bytes(v []byte) {
	e.u32(uint32(len(v)))
	e.buf.Write(v)
}

func (e *encoder) vec2(v mgl32.Vec2) { e.f32(v.X()); e.f32(v.Y()) }
func (e *encoder) vec3(v mgl32.Vec3) { e.f32(v.X()); e.f32(v.Y()); e.f32(v.Z()) }
func (e *encoder) vec4(v mgl32.Vec4) { e.f32(v.X()); e.f32(v.Y()); e.f32(v.Z()); e.f32(v.W()) }

func (e *encoder) mat4(m mgl32.Mat4) {
	for _, f := range m {
		e.f32(f)
	}
}

type decoder struct {
	data []byte
	pos  int
	err  error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.pos+n > len(d.data) {
		d.err = fmt.Errorf("scenefile: truncated record at %d (+%d of %d)", d.pos, n, len(d.data))
		return nil
	}
	out := d.data[d.pos : d.pos+n]
	d.pos += n
	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) b() bool { return d.u8() != 0 }

func (d *decoder) u16() uint16 {
	b := d.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) f32() float32 { return math.Float32frombits(d.u32()) }
func (d *decoder) f64() float64 { return math.Float64frombits(d.u64()) }

func (d *decoder) id() asset.ID {
	b := d.take(16)
	var out asset.ID
	if b != nil {
		copy(out[:], b)
	}
	return out
}

func (d *decoder) str() string {
	n := d.u32()
	b := d.take(int(n))
	return string(b)
}

func (d *decoder) bytes() []byte {
	n := d.u32()
	b := d.take(int(n))
	return append([]byte(nil), b...)
}

func (d *decoder) vec2() mgl32.Vec2 { return mgl32.Vec2{d.f32(), d.f32()} }
func (d *decoder) vec3() mgl32.Vec3 { return mgl32.Vec3{d.f32(), d.f32(), d.f32()} }
func (d *decoder) vec4() mgl32.Vec4 { return mgl32.Vec4{d.f32(), d.f32(), d.f32(), d.f32()} }

func (d *decoder) mat4() mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = d.f32()
	}
	return m
}

// sections

func encodeTextures(ts []asset.Texture) []byte {
	e := &encoder{}
	e.u32(uint32(len(ts)))
	for _, t := range ts {
		e.id(t.ID)
		e.u32(uint32(t.Format))
		e.u32(t.Width)
		e.u32(t.Height)
		e.b(t.ClampToEdge)
		e.u32(uint32(len(t.Mips)))
		for _, m := range t.Mips {
			e.u32(m.Width)
			e.u32(m.Height)
			e.bytes(m.Data)
		}
	}
	return e.buf.Bytes()
}

func decodeTextures(d *decoder) ([]asset.Texture, error) {
	n := d.u32()
	out := make([]asset.Texture, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		t := asset.Texture{
			ID:          d.id(),
			Format:      asset.Format(d.u32()),
			Width:       d.u32(),
			Height:      d.u32(),
			ClampToEdge: d.b(),
		}
		mips := d.u32()
		for m := uint32(0); m < mips && d.err == nil; m++ {
			t.Mips = append(t.Mips, asset.MipLevel{Width: d.u32(), Height: d.u32(), Data: d.bytes()})
		}
		out = append(out, t)
	}
	return out, d.err
}

func encodeModels(ms []Model) []byte {
	e := &encoder{}
	e.u32(uint32(len(ms)))
	for _, m := range ms {
		e.id(m.Model.ID)
		e.str(m.Model.Name)
		e.u32(uint32(len(m.Model.Meshes)))
		for _, id := range m.Model.Meshes {
			e.id(id)
		}
		e.u32(uint32(len(m.Meshes)))
		for _, mesh := range m.Meshes {
			encodeMesh(e, mesh)
		}
	}
	return e.buf.Bytes()
}

func encodeMesh(e *encoder, m asset.Mesh) {
	e.id(m.ID)
	e.vec3(m.AABBMin)
	e.vec3(m.AABBMax)
	e.u32(uint32(len(m.Vertices)))
	for _, v := range m.Vertices {
		e.vec3(v.Position)
		e.vec3(v.Normal)
		e.vec4(v.Tangent)
		e.vec2(v.UV)
		e.vec4(v.Color)
		for _, j := range v.Joints {
			e.u16(uint16(j))
		}
		for _, w := range v.Weights {
			e.f32(w)
		}
	}
	e.u32(uint32(len(m.Indices)))
	for _, idx := range m.Indices {
		e.u32(idx)
	}
}

func decodeModels(d *decoder) ([]Model, error) {
	n := d.u32()
	out := make([]Model, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		var m Model
		m.Model.ID = d.id()
		m.Model.Name = d.str()
		meshIDs := d.u32()
		for j := uint32(0); j < meshIDs && d.err == nil; j++ {
			m.Model.Meshes = append(m.Model.Meshes, d.id())
		}
		meshes := d.u32()
		for j := uint32(0); j < meshes && d.err == nil; j++ {
			m.Meshes = append(m.Meshes, decodeMesh(d))
		}
		out = append(out, m)
	}
	return out, d.err
}

func decodeMesh(d *decoder) asset.Mesh {
	m := asset.Mesh{
		ID:      d.id(),
		AABBMin: d.vec3(),
		AABBMax: d.vec3(),
	}
	verts := d.u32()
	for i := uint32(0); i < verts && d.err == nil; i++ {
		var v asset.Vertex
		v.Position = d.vec3()
		v.Normal = d.vec3()
		v.Tangent = d.vec4()
		v.UV = d.vec2()
		v.Color = d.vec4()
		for j := range v.Joints {
			v.Joints[j] = int16(d.u16())
		}
		for j := range v.Weights {
			v.Weights[j] = d.f32()
		}
		m.Vertices = append(m.Vertices, v)
	}
	idxs := d.u32()
	for i := uint32(0); i < idxs && d.err == nil; i++ {
		m.Indices = append(m.Indices, d.u32())
	}
	return m
}

func encodeMaterials(ms []asset.Material) []byte {
	e := &encoder{}
	e.u32(uint32(len(ms)))
	for _, m := range ms {
		e.id(m.ID)
		e.vec4(m.BaseColorFactor)
		e.vec3(m.EmissiveColor)
		e.f32(m.EmissiveStrength)
		e.f32(m.MetallicFactor)
		e.f32(m.RoughnessFactor)
		e.id(m.AlbedoTexture)
		e.id(m.MetalRoughTexture)
		e.id(m.NormalTexture)
		e.id(m.EmissiveTexture)
	}
	return e.buf.Bytes()
}

func decodeMaterials(d *decoder) ([]asset.Material, error) {
	n := d.u32()
	out := make([]asset.Material, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		out = append(out, asset.Material{
			ID:                d.id(),
			BaseColorFactor:   d.vec4(),
			EmissiveColor:     d.vec3(),
			EmissiveStrength:  d.f32(),
			MetallicFactor:    d.f32(),
			RoughnessFactor:   d.f32(),
			AlbedoTexture:     d.id(),
			MetalRoughTexture: d.id(),
			NormalTexture:     d.id(),
			EmissiveTexture:   d.id(),
		})
	}
	return out, d.err
}

func encodeAnimations(as []asset.Animation) []byte {
	e := &encoder{}
	e.u32(uint32(len(as)))
	for _, a := range as {
		e.id(a.ID)
		e.str(a.Name)
	}
	return e.buf.Bytes()
}

func decodeAnimations(d *decoder) ([]asset.Animation, error) {
	n := d.u32()
	out := make([]asset.Animation, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		out = append(out, asset.Animation{ID: d.id(), Name: d.str()})
	}
	return out, d.err
}

func encodeSkeletons(ss []asset.Skeleton) []byte {
	e := &encoder{}
	e.u32(uint32(len(ss)))
	for _, s := range ss {
		e.id(s.ID)
		e.b(s.RootIsJoint)
		e.u32(uint32(len(s.Joints)))
		for _, j := range s.Joints {
			e.id(j.InternalID)
			e.mat4(j.InverseBindMatrix)
			e.id(j.NodeRef)
		}
	}
	return e.buf.Bytes()
}

func decodeSkeletons(d *decoder) ([]asset.Skeleton, error) {
	n := d.u32()
	out := make([]asset.Skeleton, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		s := asset.Skeleton{ID: d.id(), RootIsJoint: d.b()}
		joints := d.u32()
		for j := uint32(0); j < joints && d.err == nil; j++ {
			s.Joints = append(s.Joints, asset.Joint{
				InternalID:        d.id(),
				InverseBindMatrix: d.mat4(),
				NodeRef:           d.id(),
			})
		}
		out = append(out, s)
	}
	return out, d.err
}

func encodeAnimators(as []asset.Animator) []byte {
	e := &encoder{}
	e.u32(uint32(len(as)))
	for _, a := range as {
		e.id(a.RenderableID)
		e.id(a.AnimationID)
		e.f64(a.Time)
		e.f32(a.Speed)
		e.b(a.Loop)
	}
	return e.buf.Bytes()
}

func decodeAnimators(d *decoder) ([]asset.Animator, error) {
	n := d.u32()
	out := make([]asset.Animator, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		out = append(out, asset.Animator{
			RenderableID: d.id(),
			AnimationID:  d.id(),
			Time:         d.f64(),
			Speed:        d.f32(),
			Loop:         d.b(),
		})
	}
	return out, d.err
}

func encodeRenderables(rs []asset.Renderable) []byte {
	e := &encoder{}
	e.u32(uint32(len(rs)))
	for _, r := range rs {
		e.id(r.ID)
		e.id(r.ModelID)
		e.id(r.SkeletonID)
		e.u32(uint32(len(r.MaterialIDs)))
		for _, id := range r.MaterialIDs {
			e.id(id)
		}
		e.vec4(r.Tint)
		e.vec3(r.Bounds.Center)
		e.f32(r.Bounds.Radius)
		e.b(r.Visible)
		e.mat4(r.WorldTransform)
	}
	return e.buf.Bytes()
}

func decodeRenderables(d *decoder) ([]asset.Renderable, error) {
	n := d.u32()
	out := make([]asset.Renderable, 0, n)
	for i := uint32(0); i < n && d.err == nil; i++ {
		r := asset.Renderable{
			ID:         d.id(),
			ModelID:    d.id(),
			SkeletonID: d.id(),
		}
		mats := d.u32()
		for j := uint32(0); j < mats && d.err == nil; j++ {
			r.MaterialIDs = append(r.MaterialIDs, d.id())
		}
		r.Tint = d.vec4()
		r.Bounds.Center = d.vec3()
		r.Bounds.Radius = d.f32()
		r.Visible = d.b()
		r.WorldTransform = d.mat4()
		out = append(out, r)
	}
	return out, d.err
}
