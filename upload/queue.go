// Package upload implements the resumable, per-frame-budgeted asset
// upload queue: meshes and textures handed to the catalogue are queued
// here and drained a bounded number of bytes at a time so a single
// large import never stalls a frame.
//
// Grounded on original_source's UploadQueue.h/UploadContext.h: a FIFO
// of pending jobs, each tracking how far it has progressed so the next
// frame's budget picks up where the last left off.
package upload

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/renderer/asset"
	"github.com/gekko3d/renderer/gigabuf"
	"github.com/gekko3d/renderer/internal/rlog"
	"github.com/gekko3d/renderer/staging"
)

// DefaultBytesPerFrame bounds how much staging traffic one Process
// call will issue before yielding back to the frame (§4.5).
const DefaultBytesPerFrame = 32 * 1024 * 1024

// MeshPlacement is returned once a mesh's vertex/index ranges have
// been uploaded; the catalogue stores these in its GPUMeshInfo record.
type MeshPlacement struct {
	MeshID       asset.ID
	VertexHandle gigabuf.Handle
	IndexHandle  gigabuf.Handle
}

// TexturePlacement is returned once all of a texture's mips have been
// copied into its device image.
type TexturePlacement struct {
	TextureID asset.ID
	Texture   *wgpu.Texture
	View      *wgpu.TextureView
}

// modelJob uploads every mesh of one Model, mesh by mesh, resuming at
// currentMeshIndex across Process calls that run out of budget.
type modelJob struct {
	model           asset.Model
	meshes          []asset.Mesh
	currentMeshIndex int
	done            []MeshPlacement
}

// textureJob uploads one Texture's mip chain, mip by mip, resuming at
// currentMipIndex across Process calls.
type textureJob struct {
	texture        asset.Texture
	gpuTexture     *wgpu.Texture
	currentMipIndex int
}

// Queue drains queued model and texture uploads under a per-frame byte
// budget, writing through the staging ring into giga-buffers and
// device textures.
type Queue struct {
	device *wgpu.Device
	log    rlog.Logger

	vertexBuf *gigabuf.Buffer
	indexBuf  *gigabuf.Buffer

	pendingModels   []*modelJob
	pendingTextures []*textureJob

	completedMeshes   []MeshPlacement
	completedTextures []TexturePlacement
}

// New creates an upload queue writing into the given giga-buffers.
func New(device *wgpu.Device, vertexBuf, indexBuf *gigabuf.Buffer, log rlog.Logger) *Queue {
	if log == nil {
		log = rlog.Nop()
	}
	return &Queue{device: device, log: log, vertexBuf: vertexBuf, indexBuf: indexBuf}
}

// EnqueueModel queues every mesh of a model for upload.
func (q *Queue) EnqueueModel(model asset.Model, meshes []asset.Mesh) {
	q.pendingModels = append(q.pendingModels, &modelJob{model: model, meshes: meshes})
}

// EnqueueTexture queues a texture's mip chain for upload once its
// device image has been created by the caller (bindless slot
// assignment happens before any bytes are copied). A texture carrying
// only its base level has the rest of its chain generated here.
func (q *Queue) EnqueueTexture(tex asset.Texture, gpuTex *wgpu.Texture) {
	if len(tex.Mips) == 1 {
		tex.Mips = GenerateMips(tex.Mips[0], tex.Format)
	}
	q.pendingTextures = append(q.pendingTextures, &textureJob{texture: tex, gpuTexture: gpuTex})
}

// CancelModel drops a pending or partially uploaded model job. Any
// already-placed mesh ranges are handed to freePlacement so the caller
// can route them through the deletion queue (§7: an upload-queue item
// referencing a deleted asset is dropped and its partial state freed).
func (q *Queue) CancelModel(modelID asset.ID, freePlacement func(MeshPlacement)) {
	for i, job := range q.pendingModels {
		if job.model.ID != modelID {
			continue
		}
		if freePlacement != nil {
			for _, mp := range job.done {
				freePlacement(mp)
			}
		}
		q.pendingModels = append(q.pendingModels[:i], q.pendingModels[i+1:]...)
		q.log.Debugf("upload: cancelled model %s at mesh %d", modelID, job.currentMeshIndex)
		return
	}
}

// CancelTexture drops a pending texture job; already-copied mips stay
// in the device image, whose lifetime the caller owns.
func (q *Queue) CancelTexture(textureID asset.ID) {
	for i, job := range q.pendingTextures {
		if job.texture.ID != textureID {
			continue
		}
		q.pendingTextures = append(q.pendingTextures[:i], q.pendingTextures[i+1:]...)
		q.log.Debugf("upload: cancelled texture %s at mip %d", textureID, job.currentMipIndex)
		return
	}
}

// Pending reports whether any job remains queued or partially done.
func (q *Queue) Pending() bool {
	return len(q.pendingModels) > 0 || len(q.pendingTextures) > 0
}

// DrainCompletedMeshes returns and clears the meshes finished since the
// last call.
func (q *Queue) DrainCompletedMeshes() []MeshPlacement {
	out := q.completedMeshes
	q.completedMeshes = nil
	return out
}

// DrainCompletedTextures returns and clears the textures finished
// since the last call.
func (q *Queue) DrainCompletedTextures() []TexturePlacement {
	out := q.completedTextures
	q.completedTextures = nil
	return out
}

// Process spends up to budgetBytes of staging traffic draining queued
// jobs, recording a command encoder of the copies it issues. Models
// are drained before textures, matching the original's priority (mesh
// data gates first-frame visibility, textures can pop in later).
func (q *Queue) Process(ring *staging.Ring, budgetBytes uint64) error {
	var encoder *wgpu.CommandEncoder
	if q.device != nil {
		var err error
		encoder, err = q.device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("upload: create encoder: %w", err)
		}
	}

	var spent uint64
	for spent < budgetBytes && len(q.pendingModels) > 0 {
		job := q.pendingModels[0]
		n, err := q.processModelJob(ring, encoder, job, budgetBytes-spent)
		if err != nil {
			return err
		}
		spent += n
		if job.currentMeshIndex >= len(job.meshes) {
			q.completedMeshes = append(q.completedMeshes, job.done...)
			q.pendingModels = q.pendingModels[1:]
		}
		if n == 0 {
			break // budget too small even for one mesh; try again next frame
		}
	}

	for spent < budgetBytes && len(q.pendingTextures) > 0 {
		job := q.pendingTextures[0]
		n, err := q.processTextureJob(ring, encoder, job, budgetBytes-spent)
		if err != nil {
			return err
		}
		spent += n
		if job.currentMipIndex >= len(job.texture.Mips) {
			q.completedTextures = append(q.completedTextures, TexturePlacement{
				TextureID: job.texture.ID,
				Texture:   job.gpuTexture,
			})
			q.pendingTextures = q.pendingTextures[1:]
		}
		if n == 0 {
			break
		}
	}

	if encoder != nil {
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return fmt.Errorf("upload: finish encoder: %w", err)
		}
		q.device.GetQueue().Submit(cmd)
	}
	return nil
}

func (q *Queue) processModelJob(ring *staging.Ring, encoder *wgpu.CommandEncoder, job *modelJob, budget uint64) (uint64, error) {
	var spent uint64
	for job.currentMeshIndex < len(job.meshes) {
		mesh := job.meshes[job.currentMeshIndex]
		vertBytes := meshVertexBytes(mesh)
		idxBytes := meshIndexBytes(mesh)
		need := uint64(len(vertBytes) + len(idxBytes))
		if need > budget-spent {
			return spent, nil
		}

		vh, err := q.vertexBuf.Add(uint64(len(vertBytes)))
		if err != nil {
			return spent, fmt.Errorf("upload: vertex alloc for mesh %s: %w", mesh.ID, err)
		}
		ih, err := q.indexBuf.Add(uint64(len(idxBytes)))
		if err != nil {
			return spent, fmt.Errorf("upload: index alloc for mesh %s: %w", mesh.ID, err)
		}

		if ring != nil && encoder != nil && ring.CanFit(need, false) {
			vOff := ring.Advance(uint64(len(vertBytes)))
			ring.Write(vOff, vertBytes)
			encoder.CopyBufferToBuffer(ring.Raw(), vOff, q.vertexBuf.Raw(), vh.Offset, uint64(len(vertBytes)))

			iOff := ring.Advance(uint64(len(idxBytes)))
			ring.Write(iOff, idxBytes)
			encoder.CopyBufferToBuffer(ring.Raw(), iOff, q.indexBuf.Raw(), ih.Offset, uint64(len(idxBytes)))
		} else {
			q.vertexBuf.WriteAt(vh, vertBytes)
			q.indexBuf.WriteAt(ih, idxBytes)
		}

		job.done = append(job.done, MeshPlacement{MeshID: mesh.ID, VertexHandle: vh, IndexHandle: ih})
		job.currentMeshIndex++
		spent += need
	}
	return spent, nil
}

func (q *Queue) processTextureJob(ring *staging.Ring, encoder *wgpu.CommandEncoder, job *textureJob, budget uint64) (uint64, error) {
	var spent uint64
	for job.currentMipIndex < len(job.texture.Mips) {
		mip := job.texture.Mips[job.currentMipIndex]
		need := uint64(len(mip.Data))
		if need > budget-spent {
			return spent, nil
		}
		if need == 0 {
			job.currentMipIndex++
			continue
		}

		if ring == nil || encoder == nil || job.gpuTexture == nil {
			// Device-less run: advance the job state only.
			job.currentMipIndex++
			spent += need
			continue
		}
		if !ring.CanFit(need, false) {
			return spent, nil
		}
		off := ring.Advance(need)
		ring.Write(off, mip.Data)

		encoder.CopyBufferToTexture(
			&wgpu.ImageCopyBuffer{
				Buffer: ring.Raw(),
				Layout: wgpu.TextureDataLayout{
					Offset:       off,
					BytesPerRow:  bytesPerRow(job.texture.Format, mip.Width),
					RowsPerImage: mip.Height,
				},
			},
			&wgpu.ImageCopyTexture{
				Texture:  job.gpuTexture,
				MipLevel: uint32(job.currentMipIndex),
			},
			&wgpu.Extent3D{Width: mip.Width, Height: mip.Height, DepthOrArrayLayers: 1},
		)

		job.currentMipIndex++
		spent += need
	}
	return spent, nil
}

func meshVertexBytes(m asset.Mesh) []byte {
	buf := make([]byte, 0, len(m.Vertices)*vertexStride)
	for _, v := range m.Vertices {
		buf = append(buf, vertexToBytes(v)...)
	}
	return buf
}

func meshIndexBytes(m asset.Mesh) []byte {
	buf := make([]byte, 0, len(m.Indices)*4)
	for _, idx := range m.Indices {
		buf = appendU32(buf, idx)
	}
	return buf
}

// bytesPerRow computes the copy stride for a given texel format and
// row width, rounded up to wgpu's 256 byte alignment requirement.
func bytesPerRow(format asset.Format, width uint32) uint32 {
	texelSize := uint32(4)
	switch format {
	case asset.FormatR8Unorm:
		texelSize = 1
	case asset.FormatRG8Unorm:
		texelSize = 2
	case asset.FormatR16Unorm:
		texelSize = 2
	case asset.FormatRGBA16F:
		texelSize = 8
	case asset.FormatBC7Srgb, asset.FormatBC7Unorm, asset.FormatBC5Unorm:
		// Block-compressed: one block covers 4x4 texels; stride is
		// per-block, not per-texel.
		blocksWide := (width + 3) / 4
		return align256(blocksWide * 16)
	}
	return align256(width * texelSize)
}

func align256(n uint32) uint32 {
	return (n + 255) &^ 255
}
