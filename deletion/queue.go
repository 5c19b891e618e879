// Package deletion implements the FIFO of GPU resources awaiting
// destruction once every frame that might still reference them has
// retired.
package deletion

// Resource is anything destroyable: a closure that releases a wgpu
// buffer, image+view+sampler triple, acceleration-structure buffer, or
// descriptor-pool-bound object. Wrapping destruction in a closure lets
// one queue handle every resource kind uniformly.
type Resource func()

type entry struct {
	resource    Resource
	enqueuedAt  uint64
	description string
}

// Queue is the deletion queue (§4.4). multiBufferCount is N, the
// number of frames in flight; an entry is destroyed once
// currentFrame - enqueuedAt >= multiBufferCount.
type Queue struct {
	multiBufferCount uint64
	entries          []entry
}

// New creates a deletion queue for a renderer with the given
// multi-buffer depth (N=2 per §5).
func New(multiBufferCount uint64) *Queue {
	if multiBufferCount == 0 {
		multiBufferCount = 1
	}
	return &Queue{multiBufferCount: multiBufferCount}
}

// Enqueue schedules r for destruction once N frames have elapsed since
// `frame`. description is used only for debug logging.
func (q *Queue) Enqueue(frame uint64, description string, r Resource) {
	if r == nil {
		return
	}
	q.entries = append(q.entries, entry{resource: r, enqueuedAt: frame, description: description})
}

// Execute runs at the start of every frame (§4.4): any entry enqueued
// at least multiBufferCount frames ago is destroyed and dropped from
// the queue. Returns the number of resources destroyed.
func (q *Queue) Execute(currentFrame uint64) int {
	if len(q.entries) == 0 {
		return 0
	}

	kept := q.entries[:0]
	destroyed := 0
	for _, e := range q.entries {
		if currentFrame-e.enqueuedAt >= q.multiBufferCount {
			e.resource()
			destroyed++
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return destroyed
}

// Pending reports how many resources are still awaiting destruction.
func (q *Queue) Pending() int { return len(q.entries) }
