// Package gigabuf implements the "fat" vertex/index buffers: one large
// device buffer, sub-allocated by a slot.Allocator, that every mesh
// upload carves a range out of.
package gigabuf

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/renderer/slot"
)

// DefaultSizeBytes is the giga-buffer's default capacity (§4.2: 512 MiB
// for each of the vertex and index buffers).
const DefaultSizeBytes = 512 * 1024 * 1024

// Usage beyond BufferUsageCopyDst/CopySrc that every giga-buffer needs
// in addition to its role-specific flag (vertex, index, ...): it must
// also be readable as a storage buffer (bindless SSBO access) and hold
// a device address for AS builds.
const baseUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc

// Buffer owns one device buffer and the byte-range allocator over it.
type Buffer struct {
	device *wgpu.Device
	label  string
	role   wgpu.BufferUsage // BufferUsageVertex or BufferUsageIndex, ORed into every allocation

	buf   *wgpu.Buffer
	alloc *slot.Allocator
	size  uint64
}

// New creates a giga-buffer of the given role (vertex or index) and
// initial size. The underlying device buffer is created lazily on the
// first Add, since an empty buffer of size 0 is invalid in WebGPU.
func New(device *wgpu.Device, label string, role wgpu.BufferUsage, sizeBytes uint64) *Buffer {
	if sizeBytes == 0 {
		sizeBytes = DefaultSizeBytes
	}
	return &Buffer{
		device: device,
		label:  label,
		role:   role,
		alloc:  slot.New(),
		size:   sizeBytes,
	}
}

// Handle is a sub-range of the giga-buffer, returned by Add and
// consumed by Remove and WriteAt; its Offset is the byte offset.
type Handle struct {
	slot.Handle
}

// Raw returns the underlying device buffer, or nil if nothing has been
// uploaded yet.
func (b *Buffer) Raw() *wgpu.Buffer { return b.buf }

// Size returns the current capacity of the backing buffer in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Add reserves byteSize bytes and returns a handle to them. The device
// buffer grows (geometrically, preserving content) if needed.
func (b *Buffer) Add(byteSize uint64) (Handle, error) {
	if byteSize == 0 {
		return Handle{}, fmt.Errorf("gigabuf %s: zero-size allocation", b.label)
	}
	h := b.alloc.Add(byteSize)
	if err := b.ensureCapacity(h.Offset + h.Size); err != nil {
		b.alloc.Remove(h)
		return Handle{}, err
	}
	return Handle{h}, nil
}

// Remove returns h's range to the free list. Mesh invariant 1 of §3
// requires callers to have routed the underlying buffer's GPU
// lifetime through the deletion queue first if the range was in use.
func (b *Buffer) Remove(h Handle) {
	b.alloc.Remove(h.Handle)
}

// WriteAt uploads data at h's offset directly via the queue (used for
// small, synchronous writes; bulk uploads go through the staging ring
// and a recorded copy instead, see upload.Queue).
func (b *Buffer) WriteAt(h Handle, data []byte) {
	if b.buf == nil || !h.Valid() {
		return
	}
	b.device.GetQueue().WriteBuffer(b.buf, h.Offset, data)
}

// ensureCapacity grows the backing buffer (geometric 1.5x growth,
// content-preserving copy) so that at least `needed` bytes fit.
// Grounded on gpu.GpuBufferManager.ensureBuffer.
func (b *Buffer) ensureCapacity(needed uint64) error {
	if b.buf != nil && b.buf.GetSize() >= needed {
		return nil
	}
	if b.device == nil && b.size >= needed {
		return nil
	}

	newSize := needed
	if b.buf != nil {
		grown := uint64(float64(b.buf.GetSize()) * 1.5)
		if grown > newSize {
			newSize = grown
		}
	}
	if newSize < b.size {
		newSize = b.size
	}

	// No device: track capacity only (CPU-side tests and dry runs).
	if b.device == nil {
		b.size = newSize
		return nil
	}

	desc := &wgpu.BufferDescriptor{
		Label:            b.label,
		Size:             newSize,
		Usage:            b.role | baseUsage,
		MappedAtCreation: false,
	}
	newBuf, err := b.device.CreateBuffer(desc)
	if err != nil {
		return fmt.Errorf("gigabuf %s: create buffer: %w", b.label, err)
	}

	if b.buf != nil {
		encoder, err := b.device.CreateCommandEncoder(nil)
		if err != nil {
			return fmt.Errorf("gigabuf %s: create copy encoder: %w", b.label, err)
		}
		encoder.CopyBufferToBuffer(b.buf, 0, newBuf, 0, b.buf.GetSize())
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return fmt.Errorf("gigabuf %s: finish copy encoder: %w", b.label, err)
		}
		b.device.GetQueue().Submit(cmd)
		b.buf.Release()
	}

	b.buf = newBuf
	b.size = newSize
	return nil
}
