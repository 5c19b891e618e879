// Package slot implements the dense index / byte-range allocator used
// throughout the renderer: bindless texture slots, skeleton joint-matrix
// offsets, and giga-buffer sub-allocation all go through it.
package slot

import "sort"

// Handle identifies an allocated block. The zero Handle is the "empty"
// handle returned on allocation failure; callers must check Valid().
type Handle struct {
	Offset uint64
	Size   uint64
}

// Valid reports whether h refers to a real allocation.
func (h Handle) Valid() bool { return h.Size > 0 }

type freeBlock struct {
	offset uint64
	size   uint64
}

// Allocator is a free-list allocator over [0, N) with a lazily
// recomputed high-water mark. It is not safe for concurrent use; the
// renderer's single-writer model (§5) means every caller already owns
// the main thread when touching an Allocator.
//
// Grounded on BufferMemoryInterface (addData/removeData/FreeBlock) for
// variable-size blocks.
type Allocator struct {
	free            []freeBlock
	firstFreeOffset uint64
}

// New creates an allocator. Variable-size blocks may be requested via
// Add; there is no fixed capacity, the allocator only tracks offsets.
func New() *Allocator {
	return &Allocator{}
}

// Add reserves a contiguous block of the given size. It first tries to
// fit into an existing free block (first-fit), falling back to
// extending the high-water mark. Returns the empty Handle if size==0.
func (a *Allocator) Add(size uint64) Handle {
	if size == 0 {
		return Handle{}
	}

	for i, fb := range a.free {
		if fb.size >= size {
			h := Handle{Offset: fb.offset, Size: size}
			if fb.size == size {
				a.free = append(a.free[:i], a.free[i+1:]...)
			} else {
				a.free[i] = freeBlock{offset: fb.offset + size, size: fb.size - size}
			}
			return h
		}
	}

	h := Handle{Offset: a.firstFreeOffset, Size: size}
	a.firstFreeOffset += size
	return h
}

// Remove returns h's range to the free list. Coalescing of adjacent
// free blocks is performed opportunistically but is not required for
// correctness (handles allocated before Remove with disjoint ranges
// stay stable).
func (a *Allocator) Remove(h Handle) {
	if !h.Valid() {
		return
	}
	a.free = append(a.free, freeBlock{offset: h.Offset, size: h.Size})
	a.coalesce()
	a.recalculateFirstFreeOffset()
}

func (a *Allocator) coalesce() {
	if len(a.free) < 2 {
		return
	}
	sort.Slice(a.free, func(i, j int) bool { return a.free[i].offset < a.free[j].offset })
	merged := a.free[:1]
	for _, fb := range a.free[1:] {
		last := &merged[len(merged)-1]
		if last.offset+last.size == fb.offset {
			last.size += fb.size
		} else {
			merged = append(merged, fb)
		}
	}
	a.free = merged
}

// recalculateFirstFreeOffset shrinks the high-water mark when the tail
// of the address space became free, so repeated add/remove cycles at
// the end of the range don't leak address space.
func (a *Allocator) recalculateFirstFreeOffset() {
	for {
		shrunk := false
		for i, fb := range a.free {
			if fb.offset+fb.size == a.firstFreeOffset {
				a.firstFreeOffset = fb.offset
				a.free = append(a.free[:i], a.free[i+1:]...)
				shrunk = true
				break
			}
		}
		if !shrunk {
			return
		}
	}
}

// UsedSpace reports the current high-water mark: one past the end of
// the highest live block. It shrinks when the tail block is removed.
func (a *Allocator) UsedSpace() uint64 { return a.firstFreeOffset }

// Fixed is a dense-index variant for single-unit slots (bindless
// texture indices and the catalogue's material, renderable and light
// slots). Grounded on gpu.SlotAllocator.
type Fixed struct {
	tail uint32
	free []uint32
}

// NewFixed creates a fixed-size slot allocator over [0, N).
func NewFixed() *Fixed {
	return &Fixed{}
}

// Alloc returns the next free slot index, reusing a freed one if any
// is available.
func (f *Fixed) Alloc() uint32 {
	if n := len(f.free); n > 0 {
		idx := f.free[n-1]
		f.free = f.free[:n-1]
		return idx
	}
	idx := f.tail
	f.tail++
	return idx
}

// Free returns idx to the free list. Per invariant 4 of the data
// model, callers must not call Free until the deletion queue has
// confirmed no in-flight frame references the slot.
func (f *Fixed) Free(idx uint32) {
	f.free = append(f.free, idx)
}

// Tail is the current high-water mark (one past the highest index
// ever allocated).
func (f *Fixed) Tail() uint32 { return f.tail }
