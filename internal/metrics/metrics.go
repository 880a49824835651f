// Package metrics tracks dispatch engine counters: per-model flush and
// eviction activity plus global totals, adapted from the teacher's
// pub/sub metrics collector to the dispatch domain.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Metrics aggregates dispatch-engine counters across all models.
type Metrics struct {
	totalModels    uint64
	totalFlushed   uint64
	totalEvicted   uint64
	totalProtocol  uint64 // runtime protocol violations
	mu             sync.RWMutex
	perModel       map[string]*ModelMetrics
}

// ModelMetrics tracks counters for a single model.
type ModelMetrics struct {
	Flushed  uint64
	Evicted  uint64
	Protocol uint64
}

// New creates an empty Metrics collector.
func New() *Metrics {
	return &Metrics{perModel: make(map[string]*ModelMetrics)}
}

// IncModels increments the registered-model counter.
func (m *Metrics) IncModels() {
	atomic.AddUint64(&m.totalModels, 1)
}

// IncFlushed records n responses successfully flushed for model.
func (m *Metrics) IncFlushed(model string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.totalFlushed, uint64(n))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(model).Flushed += uint64(n)
}

// IncEvicted records n pending requests dropped due to ring overflow.
func (m *Metrics) IncEvicted(model string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.totalEvicted, uint64(n))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(model).Evicted += uint64(n)
}

// IncProtocolViolation records n pending requests that received
// RuntimeProtocolError because the runtime returned too few responses.
func (m *Metrics) IncProtocolViolation(model string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&m.totalProtocol, uint64(n))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entry(model).Protocol += uint64(n)
}

// entry must be called with mu held.
func (m *Metrics) entry(model string) *ModelMetrics {
	mm, ok := m.perModel[model]
	if !ok {
		mm = &ModelMetrics{}
		m.perModel[model] = mm
	}
	return mm
}

// Snapshot returns a JSON-friendly view of global and per-model counters.
func (m *Metrics) Snapshot() map[string]interface{} {
	snapshot := make(map[string]interface{})
	snapshot["global"] = map[string]interface{}{
		"models":               atomic.LoadUint64(&m.totalModels),
		"flushed":              atomic.LoadUint64(&m.totalFlushed),
		"evicted":              atomic.LoadUint64(&m.totalEvicted),
		"protocol_violations":  atomic.LoadUint64(&m.totalProtocol),
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	perModel := make(map[string]map[string]uint64, len(m.perModel))
	for name, mm := range m.perModel {
		perModel[name] = map[string]uint64{
			"flushed":             mm.Flushed,
			"evicted":             mm.Evicted,
			"protocol_violations": mm.Protocol,
		}
	}
	snapshot["models"] = perModel

	return snapshot
}
