// Package buffer implements the inference buffer (C2): a ring buffer of
// pending requests wrapped with threshold tracking and best-effort
// lifecycle event emission, plus the event channel (C4) those events
// travel on.
package buffer

import (
	"github.com/galemind/dispatch-core/internal/modelid"
	"github.com/galemind/dispatch-core/internal/ringbuffer"
	"github.com/galemind/dispatch-core/internal/runtime"
)

// defaultCapacity is substituted when a caller requests capacity < 1,
// matching the teacher's ringbuffer/topic default-substitution behavior
// rather than failing construction.
const defaultCapacity = 1000

// InferenceBuffer wraps a fixed-capacity ring of InferenceRequest with
// watermark tracking. It is not internally synchronized; the dispatcher's
// model context holds the single mutex that protects a buffer together
// with its pending-response list (see internal/dispatch).
type InferenceBuffer struct {
	ring      *ringbuffer.RingBuffer[runtime.InferenceRequest]
	modelID   modelid.ModelID
	threshold float64
	emitter   EventEmitter
	wasAbove  bool
}

// New creates an inference buffer for modelID with the given capacity
// (a value below 1 is replaced by defaultCapacity) and threshold fraction
// in [0, 1]. emitter may be nil, in
// which case events are silently discarded.
func New(modelID modelid.ModelID, capacity int, threshold float64, emitter EventEmitter) *InferenceBuffer {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	return &InferenceBuffer{
		ring:      ringbuffer.New[runtime.InferenceRequest](capacity),
		modelID:   modelID,
		threshold: threshold,
		emitter:   emitter,
	}
}

// Push adds req to the buffer, then evaluates watermark crossings in
// order: a rising-edge ThresholdReached event, a cleared flag once fill
// drops back below threshold (so the next crossing can re-trigger), and a
// BufferFull event if this push brought the buffer to capacity.
func (b *InferenceBuffer) Push(req runtime.InferenceRequest) {
	wasFull := b.ring.IsFull()
	b.ring.Push(req)

	fill := float64(b.ring.Len()) / float64(b.ring.Capacity())

	if fill >= b.threshold && !b.wasAbove {
		b.emit(BufferEvent{
			Kind:     ThresholdReached,
			ModelID:  b.modelID,
			Size:     b.ring.Len(),
			Capacity: b.ring.Capacity(),
			FillPct:  fill * 100,
		})
		b.wasAbove = true
	}
	if fill < b.threshold {
		b.wasAbove = false
	}

	if !wasFull && b.ring.IsFull() {
		b.emit(BufferEvent{
			Kind:     BufferFull,
			ModelID:  b.modelID,
			Size:     b.ring.Len(),
			Capacity: b.ring.Capacity(),
			FillPct:  fill * 100,
			Contents: append([]runtime.InferenceRequest(nil), b.ring.Items()...),
		})
	}
}

func (b *InferenceBuffer) emit(ev BufferEvent) {
	if b.emitter == nil {
		return
	}
	b.emitter.Emit(ev)
}

// DrainContents returns all buffered requests and empties the buffer,
// resetting the rising-edge tracker so the next fill can re-trigger a
// ThresholdReached event.
func (b *InferenceBuffer) DrainContents() []runtime.InferenceRequest {
	out := b.ring.Drain()
	b.wasAbove = false
	return out
}

// Len returns the number of currently buffered requests.
func (b *InferenceBuffer) Len() int {
	return b.ring.Len()
}

// Capacity returns the buffer's fixed capacity.
func (b *InferenceBuffer) Capacity() int {
	return b.ring.Capacity()
}

// FillPercentage returns 100*len/capacity, or 0 if capacity is 0 (a
// configuration forbidden in practice but guarded here defensively).
func (b *InferenceBuffer) FillPercentage() float64 {
	if b.ring.Capacity() == 0 {
		return 0
	}
	return 100 * float64(b.ring.Len()) / float64(b.ring.Capacity())
}
