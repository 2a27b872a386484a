package xchat

import (
	"sync"
	"sync/atomic"
	"time"
)

// ObserverPool runs observers on worker goroutines so a slow observer never
// stalls Publish or a consumer loop.
//
// Chat traffic produces a published and a delivered event per message, so
// those go through a bounded queue that drops on overflow. Lifecycle events
// (sources starting or stopping, lag, errors, subscriptions) use a separate
// queue that workers always serve first, so a burst of chat cannot push them
// out.
type ObserverPool struct {
	traffic   chan *Event
	lifecycle chan *Event
	quit      chan struct{}
	workers   int
	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped          atomic.Uint64
	droppedLifecycle atomic.Uint64
	processed        atomic.Uint64
	panics           atomic.Uint64
}

const (
	defaultPoolWorkers = 2
	defaultPoolBuffer  = 1024
	// lifecycleBuffer is small: a handful of sources and subscribers.
	lifecycleBuffer = 64
)

// NewObserverPool starts workers goroutines sharing a traffic queue of
// bufferSize events. Non-positive values fall back to 2 workers and 1024.
func NewObserverPool(workers, bufferSize int) *ObserverPool {
	if workers < 1 {
		workers = defaultPoolWorkers
	}
	if bufferSize < 1 {
		bufferSize = defaultPoolBuffer
	}
	op := &ObserverPool{
		traffic:   make(chan *Event, bufferSize),
		lifecycle: make(chan *Event, lifecycleBuffer),
		quit:      make(chan struct{}),
		workers:   workers,
	}
	for range workers {
		op.wg.Add(1)
		go op.worker()
	}
	return op
}

func isTraffic(t EventType) bool {
	switch t {
	case Published, Delivered, Forwarded:
		return true
	default:
		return false
	}
}

// Notify queues e for observers without blocking.
func (op *ObserverPool) Notify(e Event, observers []Observer) {
	if len(observers) == 0 {
		return
	}
	e.observers = observers

	q, drops := op.lifecycle, &op.droppedLifecycle
	if isTraffic(e.Type) {
		q, drops = op.traffic, &op.dropped
	}
	select {
	case <-op.quit:
		drops.Add(1)
	case q <- &e:
	default:
		drops.Add(1)
	}
}

func (op *ObserverPool) worker() {
	defer op.wg.Done()
	for {
		// Lifecycle first, then whatever arrives.
		select {
		case e := <-op.lifecycle:
			op.dispatch(e)
			continue
		default:
		}
		select {
		case e := <-op.lifecycle:
			op.dispatch(e)
		case e := <-op.traffic:
			op.dispatch(e)
		case <-op.quit:
			op.drain()
			return
		}
	}
}

// drain empties both queues after Close; other workers may be draining too.
func (op *ObserverPool) drain() {
	for {
		select {
		case e := <-op.lifecycle:
			op.dispatch(e)
		case e := <-op.traffic:
			op.dispatch(e)
		default:
			return
		}
	}
}

func (op *ObserverPool) dispatch(e *Event) {
	for _, obs := range e.observers {
		if obs != nil {
			op.call(obs, *e)
		}
	}
	op.processed.Add(1)
}

// call isolates one observer; a panic is counted and the next observer runs.
func (op *ObserverPool) call(obs Observer, e Event) {
	defer func() {
		if r := recover(); r != nil {
			op.panics.Add(1)
		}
	}()
	obs.OnEvent(e)
}

// Close stops accepting events and waits up to timeout for queued ones to be
// dispatched. Idempotent.
func (op *ObserverPool) Close(timeout time.Duration) error {
	op.closeOnce.Do(func() { close(op.quit) })

	done := make(chan struct{})
	go func() {
		op.wg.Wait()
		close(done)
	}()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return ErrObserverPoolShutdownTimeout
	}
}

func (op *ObserverPool) Stats() PoolStats {
	return PoolStats{
		Dropped:          op.dropped.Load(),
		DroppedLifecycle: op.droppedLifecycle.Load(),
		Processed:        op.processed.Load(),
		Panics:           op.panics.Load(),
		Queued:           len(op.traffic) + len(op.lifecycle),
		Workers:          op.workers,
		BufferSize:       cap(op.traffic),
	}
}
