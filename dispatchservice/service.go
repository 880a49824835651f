// Package dispatchservice implements the model registry and dispatcher
// (C6): a concurrent mapping from model identity to model context, safe
// concurrent intake from many producer goroutines, and a background
// consumer that drains buffers into batch execution and routes responses
// back to waiting callers.
package dispatchservice

import (
	"context"
	"sync"

	"github.com/galemind/dispatch-core/internal/buffer"
	"github.com/galemind/dispatch-core/internal/dispatch"
	"github.com/galemind/dispatch-core/internal/dispatcherr"
	"github.com/galemind/dispatch-core/internal/metrics"
	"github.com/galemind/dispatch-core/internal/modelid"
	"github.com/galemind/dispatch-core/internal/runtime"
)

// ModelStat is a point-in-time snapshot of one model's buffer state.
type ModelStat struct {
	ModelID  string  `json:"model_id"`
	Len      int     `json:"len"`
	Capacity int     `json:"capacity"`
	FillPct  float64 `json:"fill_pct"`
}

// Dispatcher is the public intake/registration/stats surface the (out of
// scope) protocol front-ends and the discovery service consume.
type Dispatcher interface {
	// RegisterModel creates a model context for rt.ModelID() and inserts
	// it into the registry. Per spec: idempotent; if a context already
	// exists for that model id, the existing one is retained and rt is
	// ignored.
	RegisterModel(rt runtime.Runtime) error

	// EnsureModel registers a context for id using factory() only if one
	// doesn't already exist; it reports whether a new context was created.
	// Used by discovery, which locates ids but doesn't own runtimes.
	EnsureModel(id modelid.ModelID, factory func() runtime.Runtime) bool

	// ProcessInference looks up the model, pushes the request into its
	// buffer, and blocks until a flush produces a response (or the
	// dispatcher becomes unavailable).
	ProcessInference(ctx context.Context, req runtime.InferenceRequest) runtime.InferenceResponse

	// ModelStats snapshots buffer occupancy across every registered model.
	ModelStats() []ModelStat

	// SetBufferConfig validates and updates the capacity/threshold applied
	// to models registered from this point forward.
	SetBufferConfig(capacity int, thresholdPct float64) error

	// HasModel reports whether a model id is currently registered.
	HasModel(id modelid.ModelID) bool

	// Shutdown disables the event emitter and signals the consumer
	// goroutine to exit, then resolves any requests still sitting in
	// buffers that never get to flush to a DispatcherUnavailable response.
	Shutdown(ctx context.Context) error
}

type entry struct {
	ctx *dispatch.ModelContext
}

type dispatcherImpl struct {
	mu      sync.RWMutex
	entries map[modelid.ModelID]*entry

	emitter *buffer.ChannelEmitter
	events  <-chan buffer.BufferEvent

	cfgMu            sync.Mutex
	defaultCapacity  int
	defaultThreshold float64 // fraction in [0, 1]

	metrics *metrics.Metrics

	shutdownOnce sync.Once
	quit         chan struct{}
	done         chan struct{}
}

// Option configures a Dispatcher at construction time.
type Option func(*dispatcherImpl)

// WithDefaultBuffer sets the capacity and threshold percentage (0-100)
// applied to models registered without an explicit override.
func WithDefaultBuffer(capacity int, thresholdPct float64) Option {
	return func(d *dispatcherImpl) {
		d.defaultCapacity = capacity
		d.defaultThreshold = thresholdPct / 100
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *dispatcherImpl) { d.metrics = m }
}

// WithEventChannelSize bounds the buffer event channel.
func WithEventChannelSize(size int) Option {
	return func(d *dispatcherImpl) {
		d.emitter, d.events = buffer.NewEventChannel(size)
	}
}

// New creates a Dispatcher, spawning its background event-consumer
// goroutine immediately.
func New(opts ...Option) Dispatcher {
	d := &dispatcherImpl{
		entries:          make(map[modelid.ModelID]*entry),
		defaultCapacity:  100,
		defaultThreshold: 0.8,
		quit:             make(chan struct{}),
		done:             make(chan struct{}),
	}

	for _, opt := range opts {
		opt(d)
	}

	if d.emitter == nil {
		d.emitter, d.events = buffer.NewEventChannel(256)
	}
	if d.metrics == nil {
		d.metrics = metrics.New()
	}

	go d.consume()

	return d
}

func (d *dispatcherImpl) RegisterModel(rt runtime.Runtime) error {
	id := rt.ModelID()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[id]; exists {
		// Idempotent per spec.md §4.6 and §9's resolved open question:
		// retain the existing context, ignore the new runtime.
		return nil
	}

	d.cfgMu.Lock()
	capacity, threshold := d.defaultCapacity, d.defaultThreshold
	d.cfgMu.Unlock()

	d.entries[id] = &entry{ctx: dispatch.New(rt, capacity, threshold, d.emitter)}
	if d.metrics != nil {
		d.metrics.IncModels()
	}
	return nil
}

func (d *dispatcherImpl) EnsureModel(id modelid.ModelID, factory func() runtime.Runtime) bool {
	d.mu.RLock()
	_, exists := d.entries[id]
	d.mu.RUnlock()
	if exists {
		return false
	}

	rt := factory()
	_ = d.RegisterModel(rt)

	d.mu.RLock()
	_, created := d.entries[id]
	d.mu.RUnlock()
	return created
}

func (d *dispatcherImpl) HasModel(id modelid.ModelID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.entries[id]
	return exists
}

func (d *dispatcherImpl) lookup(id modelid.ModelID) (*dispatch.ModelContext, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[id]
	if !ok {
		return nil, false
	}
	return e.ctx, true
}

func (d *dispatcherImpl) ProcessInference(ctx context.Context, req runtime.InferenceRequest) runtime.InferenceResponse {
	id := modelid.FromString(req.ModelName)

	modelCtx, ok := d.lookup(id)
	if !ok {
		return runtime.NewFailure("ModelNotFound", dispatcherr.ErrModelNotFound.Error())
	}

	respCh := make(chan runtime.InferenceResponse, 1)
	modelCtx.AddRequest(req, respCh)

	select {
	case resp, ok := <-respCh:
		if !ok {
			return runtime.NewFailure("DispatcherUnavailable", dispatcherr.ErrDispatcherUnavailable.Error())
		}
		return resp
	case <-ctx.Done():
		return runtime.NewFailure("DispatcherUnavailable", ctx.Err().Error())
	}
}

func (d *dispatcherImpl) ModelStats() []ModelStat {
	d.mu.RLock()
	ids := make([]modelid.ModelID, 0, len(d.entries))
	ctxs := make([]*dispatch.ModelContext, 0, len(d.entries))
	for id, e := range d.entries {
		ids = append(ids, id)
		ctxs = append(ctxs, e.ctx)
	}
	d.mu.RUnlock()

	stats := make([]ModelStat, len(ids))
	for i, id := range ids {
		length, capacity, fillPct := ctxs[i].BufferInfo()
		stats[i] = ModelStat{ModelID: id.String(), Len: length, Capacity: capacity, FillPct: fillPct}
	}
	return stats
}

func (d *dispatcherImpl) SetBufferConfig(capacity int, thresholdPct float64) error {
	if thresholdPct < 0 || thresholdPct > 100 {
		return dispatcherr.ErrInvalidConfiguration
	}

	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	d.defaultCapacity = capacity
	d.defaultThreshold = thresholdPct / 100
	return nil
}

func (d *dispatcherImpl) Shutdown(ctx context.Context) error {
	d.shutdownOnce.Do(func() {
		d.emitter.Close()
		close(d.quit)
		<-d.done

		d.mu.Lock()
		defer d.mu.Unlock()
		for _, e := range d.entries {
			_, pending := e.ctx.DrainForFlush()
			for _, p := range pending {
				select {
				case p.Response <- runtime.NewFailure("DispatcherUnavailable", dispatcherr.ErrDispatcherUnavailable.Error()):
				default:
				}
			}
		}
	})
	return nil
}

// consume is the dispatcher's background event-consumer goroutine. It
// selects between buffer events and d.quit rather than ranging over the
// events channel, since the events channel is never closed (Shutdown only
// flips the emitter's closed flag, so a producer racing Shutdown never
// sends on a closed channel); d.quit is the consumer's own exit signal.
func (d *dispatcherImpl) consume() {
	defer close(d.done)

	for {
		select {
		case ev := <-d.events:
			switch ev.Kind {
			case buffer.ThresholdReached:
				d.flush(ev.ModelID)
			case buffer.BufferFull:
				d.handleBufferFull(ev)
			case buffer.BufferStats:
				// Advisory heartbeat only; no state change.
			}
		case <-d.quit:
			return
		}
	}
}

// flush implements the flush protocol (§4.6.1): drain under the model
// context's lock, release before calling the runtime, then route
// responses back to their pending channels.
func (d *dispatcherImpl) flush(id modelid.ModelID) {
	modelCtx, ok := d.lookup(id)
	if !ok {
		return
	}

	reqs, pending := modelCtx.DrainForFlush()
	if len(reqs) == 0 {
		return
	}

	d.runBatchAndRespond(id, modelCtx, reqs, pending)
}

// handleBufferFull runs the runtime on the event's snapshot contents, but
// sources the authoritative pending list from a fresh drain of the model
// context, per spec.md §4.6 step 2: the snapshot may already be stale by
// the time this goroutine observes it.
func (d *dispatcherImpl) handleBufferFull(ev buffer.BufferEvent) {
	modelCtx, ok := d.lookup(ev.ModelID)
	if !ok {
		return
	}

	_, pending := modelCtx.DrainForFlush()
	if len(ev.Contents) == 0 {
		return
	}

	d.runBatchAndRespond(ev.ModelID, modelCtx, ev.Contents, pending)
}

// runBatchAndRespond executes the alignment contract: if the pending list
// is longer than the drained request batch (ring overflow truncated
// requests but not yet-appended pending entries), the oldest surplus
// pending entries, whose requests were evicted from the ring, resolve to
// DispatcherUnavailable, and the remainder align positionally with the
// runtime's batch response.
func (d *dispatcherImpl) runBatchAndRespond(id modelid.ModelID, modelCtx *dispatch.ModelContext, reqs []runtime.InferenceRequest, pending []dispatch.PendingRequest) {
	if overflow := len(pending) - len(reqs); overflow > 0 {
		evicted := pending[:overflow]
		pending = pending[overflow:]

		for _, p := range evicted {
			select {
			case p.Response <- runtime.NewFailure("DispatcherUnavailable", dispatcherr.ErrDispatcherUnavailable.Error()):
			default:
			}
		}
		if d.metrics != nil {
			d.metrics.IncEvicted(id.String(), overflow)
		}
	}

	responses := modelCtx.Runtime().ProcessBatch(context.Background(), reqs)

	n := len(responses)
	if n > len(pending) {
		n = len(pending)
	}
	for i := 0; i < n; i++ {
		select {
		case pending[i].Response <- responses[i]:
		default:
			// Caller abandoned its receiver; response discarded.
		}
	}
	if d.metrics != nil {
		d.metrics.IncFlushed(id.String(), n)
	}

	if len(pending) > len(responses) {
		surplus := pending[len(responses):]
		for _, p := range surplus {
			select {
			case p.Response <- runtime.NewFailure("RuntimeProtocolError", dispatcherr.ErrRuntimeProtocol.Error()):
			default:
			}
		}
		if d.metrics != nil {
			d.metrics.IncProtocolViolation(id.String(), len(surplus))
		}
	}
}
