package xchat

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// DefaultCapacity is the number of messages the hub retains for slow subscribers.
const DefaultCapacity = 100

// Hub is a bounded multi-producer, multi-consumer broadcast channel.
//
// Every published message is written once into a ring shared by all
// subscriptions; each Subscription keeps its own read cursor. Publish never
// waits on a subscriber. A subscriber that falls more than capacity messages
// behind gets a *LaggedError from its next Recv and resumes at the oldest
// retained message. Subscriptions start at the current tail, so a late
// subscriber never sees earlier messages.
type Hub struct {
	clock        xclock.Clock
	logger       *xlog.Logger
	codec        Codec
	middlewares  []Middleware
	observerPool *ObserverPool
	observersMu  sync.RWMutex
	observers    []Observer
	metrics      *hubMetrics
	closed       atomic.Bool
	closeOnce    sync.Once

	mu   sync.Mutex
	ring []Message
	// next is the sequence number the next published message will get.
	next uint64
	// wake is closed and replaced on every publish and on Close.
	wake chan struct{}
	subs map[string]*Subscription
}

// hubMetrics uses lock-free atomics for telemetry.
type hubMetrics struct {
	published     atomic.Uint64
	delivered     atomic.Uint64
	handlerErrors atomic.Uint64
	lagSignals    atomic.Uint64
	missed        atomic.Uint64
	handlerNs     atomic.Int64
}

func newHub(capacity int, clock xclock.Clock, logger *xlog.Logger, codec Codec) *Hub {
	return &Hub{
		clock:   clock,
		logger:  logger,
		codec:   codec,
		metrics: &hubMetrics{},
		ring:    make([]Message, capacity),
		wake:    make(chan struct{}),
		subs:    make(map[string]*Subscription),
	}
}

// Capacity is the retention window of the hub.
func (h *Hub) Capacity() int { return len(h.ring) }

// Codec returns the configured codec (Strategy).
func (h *Hub) Codec() Codec { return h.codec }

// Logger returns the hub logger.
func (h *Hub) Logger() *xlog.Logger { return h.logger }

// Publish appends msg to the ring and wakes waiting subscribers.
func (h *Hub) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.ring[h.next%uint64(len(h.ring))] = msg
	h.next++
	wake := h.wake
	h.wake = make(chan struct{})
	h.mu.Unlock()
	close(wake)

	h.metrics.published.Add(1)
	h.notifyAsync(Event{Type: Published, Source: msg.Source.String()})
	return nil
}

// Subscribe registers a new subscription positioned at the current tail.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	s := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		cursor: h.next,
		done:   make(chan struct{}),
	}
	h.subs[s.id] = s
	h.mu.Unlock()

	h.notifyAsync(Event{Type: Subscribed, Subscriber: s.id})
	return s
}

// oldest is the lowest sequence number still held by the ring. Caller holds h.mu.
func (h *Hub) oldest() uint64 {
	c := uint64(len(h.ring))
	if h.next <= c {
		return 0
	}
	return h.next - c
}

func (h *Hub) unsubscribe(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s.id)
	h.mu.Unlock()
	h.notifyAsync(Event{Type: Unsubscribed, Subscriber: s.id})
}

// Consume reads sub until ctx is done or the hub closes, passing each message
// through the hub middleware chain to handler. Lag is logged and reported to
// observers; handler errors are counted and never stop the loop.
func (h *Hub) Consume(ctx context.Context, sub *Subscription, consumer string, handler Handler) error {
	// Always enable panic recovery first for dependability.
	base := RecoveryMiddleware()(handler)
	wh := Chain(base, h.middlewares...)

	hctx := InjectAll(ctx, h.codec, h.logger.With(xlog.Str("consumer", consumer)), h.clock)

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			var lag *LaggedError
			switch {
			case errors.As(err, &lag):
				h.logger.Warn().
					Str("consumer", consumer).
					Str("missed", strconv.FormatUint(lag.Missed, 10)).
					Msg("xchat: consumer lagged")
				continue
			case errors.Is(err, ErrHubClosed), errors.Is(err, ErrSubscriptionClosed):
				return nil
			default:
				return err
			}
		}

		start := h.clock.Now()
		herr := wh(hctx, msg)
		d := h.clock.Since(start)
		h.recordHandlerTime(d.Nanoseconds())
		h.metrics.delivered.Add(1)
		if herr != nil {
			h.metrics.handlerErrors.Add(1)
			h.notifyAsync(Event{Type: Error, Consumer: consumer, Subscriber: sub.id, Source: msg.Source.String(), Err: herr})
			continue
		}
		h.notifyAsync(Event{Type: Delivered, Consumer: consumer, Subscriber: sub.id, Source: msg.Source.String(), Duration: d})
	}
}

// GetMetrics returns current hub metrics.
func (h *Hub) GetMetrics() Metrics {
	h.mu.Lock()
	subs := len(h.subs)
	h.mu.Unlock()

	m := Metrics{
		Published:        h.metrics.published.Load(),
		Delivered:        h.metrics.delivered.Load(),
		HandlerErrors:    h.metrics.handlerErrors.Load(),
		LagSignals:       h.metrics.lagSignals.Load(),
		Missed:           h.metrics.missed.Load(),
		Subscribers:      subs,
		AvgHandlerTimeMs: float64(h.metrics.handlerNs.Load()) / 1e6,
	}
	if h.observerPool != nil {
		m.EventsDropped = h.observerPool.Stats().Dropped
	}
	return m
}

// Health reports "degraded" once more than 5% of deliveries failed or
// subscribers have missed more than one ring of messages in total.
func (h *Hub) Health(_ context.Context) HealthStatus {
	if h.closed.Load() {
		return HealthStatus{
			Status:    "unhealthy",
			Timestamp: h.clock.Now(),
			Message:   "hub is closed",
		}
	}

	m := h.GetMetrics()
	status := "healthy"
	msg := ""
	if m.HandlerErrors > 0 && m.Delivered > 0 {
		if float64(m.HandlerErrors)/float64(m.Delivered) > 0.05 {
			status = "degraded"
			msg = "handler error rate above 5%"
		}
	}
	if m.Missed > uint64(h.Capacity()) {
		status = "degraded"
		msg = "subscribers are lagging"
	}

	return HealthStatus{
		Status:    status,
		Metrics:   m,
		Timestamp: h.clock.Now(),
		Message:   msg,
	}
}

// Close stops accepting publishes. Subscribers drain what is buffered and
// then receive ErrHubClosed. Idempotent.
func (h *Hub) Close(_ context.Context) error {
	var closeErr error

	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed.Store(true)
		close(h.wake)
		h.wake = make(chan struct{})
		h.mu.Unlock()

		if h.observerPool != nil {
			if err := h.observerPool.Close(5 * time.Second); err != nil {
				h.logger.Warn().Err(err).Msg("xchat: observer pool shutdown timeout")
				closeErr = err
			}
		}
	})

	return closeErr
}

// AddObserver registers an observer (thread-safe).
func (h *Hub) AddObserver(obs Observer) {
	if obs == nil {
		return
	}
	h.observersMu.Lock()
	h.observers = append(h.observers, obs)
	h.observersMu.Unlock()
}

// RemoveObserver removes an observer.
func (h *Hub) RemoveObserver(obs Observer) {
	if obs == nil {
		return
	}
	h.observersMu.Lock()
	defer h.observersMu.Unlock()

	for i, o := range h.observers {
		if o == obs {
			h.observers = append(h.observers[:i], h.observers[i+1:]...)
			break
		}
	}
}

// notifyAsync hands e to the observer pool, or calls observers inline when
// the hub was built without one.
func (h *Hub) notifyAsync(e Event) {
	h.observersMu.RLock()
	if len(h.observers) == 0 {
		h.observersMu.RUnlock()
		return
	}
	observers := make([]Observer, len(h.observers))
	copy(observers, h.observers)
	h.observersMu.RUnlock()

	if h.observerPool != nil {
		if h.closed.Load() {
			return
		}
		h.observerPool.Notify(e, observers)
		return
	}
	for _, o := range observers {
		o.OnEvent(e)
	}
}

// recordHandlerTime keeps an exponential moving average of handler time.
func (h *Hub) recordHandlerTime(ns int64) {
	const alpha = 0.2
	current := h.metrics.handlerNs.Load()
	if current == 0 {
		h.metrics.handlerNs.Store(ns)
		return
	}
	h.metrics.handlerNs.Store(int64(float64(ns)*alpha + float64(current)*(1-alpha)))
}

// Subscription is one consumer's independent view of the hub.
type Subscription struct {
	id     string
	hub    *Hub
	cursor uint64 // guarded by hub.mu
	closed bool   // guarded by hub.mu

	done      chan struct{}
	closeOnce sync.Once
}

// ID identifies the subscription in logs and events.
func (s *Subscription) ID() string { return s.id }

// Recv returns the next message in publish order. It blocks until a message
// is available, ctx is done, the subscription is closed, or the hub is
// closed and drained. A *LaggedError means messages were skipped; the next
// call continues from the oldest retained message.
func (s *Subscription) Recv(ctx context.Context) (Message, error) {
	h := s.hub
	for {
		h.mu.Lock()
		if s.closed {
			h.mu.Unlock()
			return Message{}, ErrSubscriptionClosed
		}
		if oldest := h.oldest(); s.cursor < oldest {
			missed := oldest - s.cursor
			s.cursor = oldest
			h.mu.Unlock()

			h.metrics.lagSignals.Add(1)
			h.metrics.missed.Add(missed)
			h.notifyAsync(Event{Type: Lagged, Subscriber: s.id, Missed: missed})
			return Message{}, &LaggedError{Missed: missed}
		}
		if s.cursor < h.next {
			msg := h.ring[s.cursor%uint64(len(h.ring))]
			s.cursor++
			h.mu.Unlock()
			return msg, nil
		}
		if h.closed.Load() {
			h.mu.Unlock()
			return Message{}, ErrHubClosed
		}
		wake := h.wake
		h.mu.Unlock()

		select {
		case <-wake:
		case <-s.done:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Pending is the number of messages published since the subscription's
// cursor, including ones already evicted.
func (s *Subscription) Pending() uint64 {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	return s.hub.next - s.cursor
}

// Close detaches the subscription; a blocked Recv returns ErrSubscriptionClosed.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		s.closed = true
		s.hub.mu.Unlock()
		close(s.done)
		s.hub.unsubscribe(s)
	})
	return nil
}
