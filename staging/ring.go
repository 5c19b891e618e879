// Package staging implements the per-frame CPU-writable staging ring:
// a bump allocator over one host-coherent buffer, reset at the start
// of every frame.
package staging

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// DefaultSizeBytes is the staging ring's default capacity (§4.3: 128 MiB).
const DefaultSizeBytes = 128 * 1024 * 1024

// Ring is a single frame-slot's staging buffer. The orchestrator owns
// N of these (one per multi-buffer slot) and calls Reset on the
// active one at the start of each frame.
//
// Grounded on StagingBuffer.h, ported near-verbatim (currentOffset,
// emergencyReserve, canFit/advance/reset).
type Ring struct {
	device *wgpu.Device
	buf    *wgpu.Buffer

	size            uint64
	currentOffset   uint64
	emergencyReserve uint64
}

// New creates a staging ring of the given size (0 means DefaultSizeBytes).
func New(device *wgpu.Device, sizeBytes uint64) (*Ring, error) {
	if sizeBytes == 0 {
		sizeBytes = DefaultSizeBytes
	}
	if device == nil {
		// Cursor bookkeeping only; Write becomes a no-op.
		return &Ring{size: sizeBytes}, nil
	}
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "StagingRing",
		Size:             sizeBytes,
		Usage:            wgpu.BufferUsageCopySrc | wgpu.BufferUsageMapWrite,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, err
	}
	return &Ring{device: device, buf: buf, size: sizeBytes}, nil
}

// SetEmergencyReserve reserves bytes at the tail of the ring that only
// CanFit(n, useReserve=true) callers may consume — used so small
// critical writes (scene UBOs) always succeed even when bulk uploads
// have filled the ring (§7: "Staging ring full").
func (r *Ring) SetEmergencyReserve(bytes uint64) {
	r.emergencyReserve = bytes
}

// Reset rewinds the bump cursor to 0. Called once at the start of
// every frame, after the frame's fence has been waited on.
func (r *Ring) Reset() {
	r.currentOffset = 0
}

// CanFit reports whether `bytes` more can be written without exceeding
// capacity. With useReserve=false the emergency reserve is excluded
// from the available space.
func (r *Ring) CanFit(bytes uint64, useReserve bool) bool {
	if useReserve {
		return r.currentOffset+bytes <= r.size
	}
	return r.currentOffset+bytes <= r.size-r.emergencyReserve
}

// Advance bumps the cursor by `bytes` and returns the offset it was at
// before advancing — the offset callers should write their payload at.
func (r *Ring) Advance(bytes uint64) uint64 {
	prev := r.currentOffset
	r.currentOffset += bytes
	return prev
}

// Write stages `data` at the given offset (obtained from Advance) via
// a host-coherent queue write. The GPU observes it through a
// vkCmdCopyBuffer-equivalent recorded in the same frame's command
// buffer (see upload.Queue / gigabuf.Buffer.WriteAt callers).
func (r *Ring) Write(offset uint64, data []byte) {
	if len(data) == 0 || r.buf == nil {
		return
	}
	r.device.GetQueue().WriteBuffer(r.buf, offset, data)
}

// Raw returns the backing device buffer, source side of every copy
// that drains this ring into a giga-buffer or texture this frame.
func (r *Ring) Raw() *wgpu.Buffer { return r.buf }

// Size is the ring's total capacity in bytes.
func (r *Ring) Size() uint64 { return r.size }
