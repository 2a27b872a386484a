package redisstream

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xchat"
)

// Stats is a snapshot of transport counters.
type Stats struct {
	Published     uint64
	Consumed      uint64
	Acked         uint64
	Nacked        uint64
	PublishErrors uint64
	ReadErrors    uint64
}

type transportMetrics struct {
	published     atomic.Uint64
	consumed      atomic.Uint64
	acked         atomic.Uint64
	nacked        atomic.Uint64
	publishErrors atomic.Uint64
	readErrors    atomic.Uint64
}

type transport struct {
	cfg     Config
	client  *redis.Client
	closed  atomic.Bool
	metrics transportMetrics
}

var _ xchat.Transport = (*transport)(nil)

func newTransport(cfg Config) (*transport, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: 3,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: cfg.TLSServerName,
		}
	}
	client := redis.NewClient(opts)
	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &transport{cfg: cfg, client: client}, nil
}

// Publish XADDs envelopes in one pipeline, trimming the stream approximately
// when MaxLenApprox is set.
func (t *transport) Publish(ctx context.Context, topic string, envs ...*xchat.Envelope) error {
	if len(envs) == 0 {
		return nil
	}
	if t.closed.Load() {
		return xchat.ErrHubClosed
	}
	pipe := t.client.Pipeline()
	for _, env := range envs {
		args := &redis.XAddArgs{Stream: topic, ID: "*", Values: encodeEnvelope(env)}
		if t.cfg.MaxLenApprox > 0 {
			args.MaxLen = t.cfg.MaxLenApprox
			args.Approx = true
		}
		pipe.XAdd(ctx, args)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		t.metrics.publishErrors.Add(uint64(len(envs)))
		return fmt.Errorf("redisstream: publish to %s: %w", topic, err)
	}
	t.metrics.published.Add(uint64(len(envs)))
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

// Subscribe reads topic as a member of group and hands entries to handler
// from Concurrency workers. With a single worker, delivery order matches
// stream order.
func (t *transport) Subscribe(ctx context.Context, topic, group string, handler func(xchat.Delivery)) (xchat.TransportSubscription, error) {
	if t.cfg.AutoCreate {
		err := t.client.XGroupCreateMkStream(ctx, topic, group, t.cfg.StartID).Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return nil, fmt.Errorf("redisstream: create group %s/%s: %w", topic, group, err)
		}
	}

	innerCtx, cancel := context.WithCancel(ctx)
	var wg, producers sync.WaitGroup

	workers := max(1, t.cfg.Concurrency)
	work := make(chan *delivery, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range work {
				handler(d)
			}
		}()
	}

	producers.Add(1)
	go func() {
		defer producers.Done()
		t.readLoop(innerCtx, topic, group, work)
	}()
	if t.cfg.ClaimMinIdle > 0 && t.cfg.ClaimInterval > 0 {
		producers.Add(1)
		go func() {
			defer producers.Done()
			t.claimLoop(innerCtx, topic, group, work)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		producers.Wait()
		close(work)
	}()

	return &subscription{close: func() {
		cancel()
		wg.Wait()
	}}, nil
}

func (t *transport) readLoop(ctx context.Context, topic, group string, work chan<- *delivery) {
	args := &redis.XReadGroupArgs{
		Group:    group,
		Consumer: t.cfg.Consumer,
		Streams:  []string{topic, ">"},
		Count:    int64(max(1, t.cfg.BatchSize)),
		Block:    t.cfg.Block,
	}
	const minBackoff, maxBackoff = 100 * time.Millisecond, 5 * time.Second
	backoff := minBackoff

	for ctx.Err() == nil {
		res, err := t.client.XReadGroup(ctx, args).Result()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, redis.Nil) {
				backoff = minBackoff
				continue
			}
			t.metrics.readErrors.Add(1)
			select {
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			case <-ctx.Done():
				return
			}
			continue
		}
		backoff = minBackoff

		for _, stream := range res {
			for _, x := range stream.Messages {
				t.metrics.consumed.Add(1)
				d := &delivery{t: t, topic: topic, group: group, id: x.ID, env: decodeEnvelope(x.ID, x.Values)}
				select {
				case work <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// claimLoop takes over entries another consumer left pending for longer than
// ClaimMinIdle and hands them to this subscription's workers.
func (t *transport) claimLoop(ctx context.Context, topic, group string, work chan<- *delivery) {
	ticker := time.NewTicker(t.cfg.ClaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pending, err := t.client.XPendingExt(ctx, &redis.XPendingExtArgs{
			Stream: topic,
			Group:  group,
			Start:  "-",
			End:    "+",
			Count:  int64(max(1, t.cfg.ClaimBatch)),
			Idle:   t.cfg.ClaimMinIdle,
		}).Result()
		if err != nil || len(pending) == 0 {
			continue
		}
		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			ids = append(ids, p.ID)
		}
		msgs, err := t.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   topic,
			Group:    group,
			Consumer: t.cfg.Consumer,
			MinIdle:  t.cfg.ClaimMinIdle,
			Messages: ids,
		}).Result()
		if err != nil {
			t.metrics.readErrors.Add(1)
			continue
		}
		for _, x := range msgs {
			t.metrics.consumed.Add(1)
			d := &delivery{t: t, topic: topic, group: group, id: x.ID, env: decodeEnvelope(x.ID, x.Values)}
			select {
			case work <- d:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (t *transport) Stats() Stats {
	return Stats{
		Published:     t.metrics.published.Load(),
		Consumed:      t.metrics.consumed.Load(),
		Acked:         t.metrics.acked.Load(),
		Nacked:        t.metrics.nacked.Load(),
		PublishErrors: t.metrics.publishErrors.Load(),
		ReadErrors:    t.metrics.readErrors.Load(),
	}
}

func (t *transport) Close(_ context.Context) error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.client.Close()
}

func ping(c *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := c.Ping(ctx).Result()
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("redisstream: ping timeout: %w", err)
		}
		return fmt.Errorf("redisstream: ping: %w", err)
	}
	if !strings.EqualFold(res, "PONG") {
		return fmt.Errorf("redisstream: unexpected ping reply %q", res)
	}
	return nil
}
