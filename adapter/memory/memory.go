// Package memory is an in-process xchat.Transport. Forward and Mirror can be
// exercised against it without a broker.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xchat"
)

const TransportName = "memory"

var ErrClosed = errors.New("memory: transport closed")

func init() {
	if err := xchat.RegisterTransport(TransportName, func(cfg map[string]any) (xchat.Transport, error) {
		return New(ConfigFromMap(cfg)), nil
	}); err != nil {
		panic(fmt.Errorf("xchat/memory: failed to register transport: %w", err))
	}
}

type Config struct {
	// BufferSize is the per-group queue length.
	BufferSize int
	// RedeliveryDelay is the wait before a nacked envelope is queued again.
	RedeliveryDelay time.Duration
	// MaxRedeliveries drops an envelope after this many nacks; 0 means never redeliver.
	MaxRedeliveries int
}

func Defaults() Config {
	return Config{BufferSize: 1024, MaxRedeliveries: 3}
}

func ConfigFromMap(m map[string]any) Config {
	c := Defaults()
	if v, ok := m["buffer_size"].(int); ok && v > 0 {
		c.BufferSize = v
	}
	switch v := m["redelivery_delay"].(type) {
	case time.Duration:
		c.RedeliveryDelay = v
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			c.RedeliveryDelay = d
		}
	}
	if v, ok := m["max_redeliveries"].(int); ok && v >= 0 {
		c.MaxRedeliveries = v
	}
	return c
}

// Stats is a snapshot of transport counters.
type Stats struct {
	Published   uint64
	Dropped     uint64
	Acked       uint64
	Nacked      uint64
	Redelivered uint64
}

// Transport fans each envelope out to every group on a topic. Within a group
// a single worker delivers in publish order.
type Transport struct {
	cfg Config

	mu     sync.Mutex
	topics map[string]map[string]*group

	seq    atomic.Uint64
	closed atomic.Bool

	published   atomic.Uint64
	dropped     atomic.Uint64
	acked       atomic.Uint64
	nacked      atomic.Uint64
	redelivered atomic.Uint64
}

var _ xchat.Transport = (*Transport)(nil)

func New(cfg Config) *Transport {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = Defaults().BufferSize
	}
	return &Transport{cfg: cfg, topics: make(map[string]map[string]*group)}
}

type group struct {
	queue chan *task
}

type task struct {
	env      *xchat.Envelope
	attempts int
}

// Publish enqueues envs for every group subscribed to topic. Topics without
// groups drop the envelope, like a stream nobody reads.
func (t *Transport) Publish(ctx context.Context, topic string, envs ...*xchat.Envelope) error {
	if t.closed.Load() {
		return ErrClosed
	}
	t.mu.Lock()
	groups := make([]*group, 0, len(t.topics[topic]))
	for _, g := range t.topics[topic] {
		groups = append(groups, g)
	}
	t.mu.Unlock()

	for _, env := range envs {
		if env == nil {
			continue
		}
		if env.ID == "" {
			env.ID = "mem-" + strconv.FormatUint(t.seq.Add(1), 10)
		}
		if len(groups) == 0 {
			t.dropped.Add(1)
			continue
		}
		for _, g := range groups {
			select {
			case g.queue <- &task{env: env}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		t.published.Add(1)
	}
	return nil
}

type subscription struct {
	once  sync.Once
	close func()
}

func (s *subscription) Close() error {
	s.once.Do(s.close)
	return nil
}

func (t *Transport) Subscribe(ctx context.Context, topic, groupName string, handler func(xchat.Delivery)) (xchat.TransportSubscription, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	g := t.ensureGroup(topic, groupName)

	innerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-innerCtx.Done():
				return
			case tk := <-g.queue:
				handler(&delivery{t: t, g: g, task: tk})
			}
		}
	}()

	return &subscription{close: func() {
		cancel()
		<-done
	}}, nil
}

func (t *Transport) ensureGroup(topic, name string) *group {
	t.mu.Lock()
	defer t.mu.Unlock()
	groups, ok := t.topics[topic]
	if !ok {
		groups = make(map[string]*group)
		t.topics[topic] = groups
	}
	g, ok := groups[name]
	if !ok {
		g = &group{queue: make(chan *task, t.cfg.BufferSize)}
		groups[name] = g
	}
	return g
}

func (t *Transport) Stats() Stats {
	return Stats{
		Published:   t.published.Load(),
		Dropped:     t.dropped.Load(),
		Acked:       t.acked.Load(),
		Nacked:      t.nacked.Load(),
		Redelivered: t.redelivered.Load(),
	}
}

func (t *Transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	t.mu.Lock()
	t.topics = make(map[string]map[string]*group)
	t.mu.Unlock()
	return nil
}

type delivery struct {
	t    *Transport
	g    *group
	task *task
	once sync.Once
}

func (d *delivery) Envelope() *xchat.Envelope { return d.task.env }

func (d *delivery) Ack(context.Context) error {
	d.once.Do(func() { d.t.acked.Add(1) })
	return nil
}

// Nack requeues the envelope until MaxRedeliveries is reached.
func (d *delivery) Nack(ctx context.Context, _ error) error {
	d.once.Do(func() {
		d.t.nacked.Add(1)
		if d.task.attempts >= d.t.cfg.MaxRedeliveries {
			d.t.dropped.Add(1)
			return
		}
		d.task.attempts++
		d.t.redelivered.Add(1)
		requeue := func() {
			select {
			case d.g.queue <- d.task:
			default:
				d.t.dropped.Add(1)
			}
		}
		if d.t.cfg.RedeliveryDelay <= 0 {
			requeue()
			return
		}
		time.AfterFunc(d.t.cfg.RedeliveryDelay, func() {
			if ctx.Err() == nil {
				requeue()
			}
		})
	})
	return nil
}
