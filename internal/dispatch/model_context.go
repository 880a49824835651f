// Package dispatch holds per-model dispatch state (C5): an inference
// buffer, the owned runtime handle, and the pending response channels
// awaited by callers who pushed into that buffer. It is consumed by the
// public dispatchservice package, which owns the registry of these
// contexts and the background flush protocol.
package dispatch

import (
	"sync"

	"github.com/galemind/dispatch-core/internal/buffer"
	"github.com/galemind/dispatch-core/internal/runtime"
)

// PendingRequest pairs a buffered request with the one-shot channel its
// caller is awaiting a response on. The channel is buffered to size 1 so a
// flush's send never blocks on a caller that has stopped listening.
type PendingRequest struct {
	Request  runtime.InferenceRequest
	Response chan runtime.InferenceResponse
}

// ModelContext is uniquely owned by one dispatcher registry entry. Its
// mutex protects {buffer, pending} as a single invariant set: both fields
// are only ever read or mutated while holding it. AddRequest appends to both
// under the same critical section and the buffer drains oldest first, so the
// drained requests line up with the newest entries of the drained pending
// list. The two lists have equal length unless the ring overwrote entries;
// then the pending list is longer by the number of evicted requests.
type ModelContext struct {
	mu      sync.Mutex
	buf     *buffer.InferenceBuffer
	runtime runtime.Runtime
	pending []PendingRequest
}

// New creates a model context for runtime rt with the given buffer
// capacity, threshold fraction, and event emitter.
func New(rt runtime.Runtime, capacity int, threshold float64, emitter buffer.EventEmitter) *ModelContext {
	return &ModelContext{
		buf:     buffer.New(rt.ModelID(), capacity, threshold, emitter),
		runtime: rt,
	}
}

// Runtime returns the runtime handle this context owns.
func (c *ModelContext) Runtime() runtime.Runtime {
	return c.runtime
}

// AddRequest pushes req into the buffer and appends resp to the pending
// list atomically with respect to other AddRequest/drain calls.
func (c *ModelContext) AddRequest(req runtime.InferenceRequest, resp chan runtime.InferenceResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf.Push(req)
	c.pending = append(c.pending, PendingRequest{Request: req, Response: resp})
}

// BufferInfo returns (len, capacity, fillPct) for the owned buffer.
func (c *ModelContext) BufferInfo() (int, int, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.buf.Len(), c.buf.Capacity(), c.buf.FillPercentage()
}

// The buffer drain and the pending-list take always happen together during
// a flush, under the single critical section of DrainForFlush, so the two
// results remain index-aligned.

// DrainForFlush atomically drains the buffer and takes the pending list,
// returning both under a single lock acquisition per spec.md §4.6.1 step
// 2. New pushes arriving after this call accumulate into a fresh buffer
// and pending list, to be flushed on the next threshold crossing.
func (c *ModelContext) DrainForFlush() ([]runtime.InferenceRequest, []PendingRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	reqs := c.buf.DrainContents()
	pending := c.pending
	c.pending = nil

	return reqs, pending
}
