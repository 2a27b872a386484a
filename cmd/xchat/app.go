package main

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
	"github.com/trickstertwo/xlog/adapter/zerolog"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/adapter/redisstream"
	"github.com/trickstertwo/xchat/internal/config"
	"github.com/trickstertwo/xchat/sink/printer"
	"github.com/trickstertwo/xchat/sink/relay"
	"github.com/trickstertwo/xchat/sink/store"
	"github.com/trickstertwo/xchat/source/dgg"
	"github.com/trickstertwo/xchat/source/kick"
	"github.com/trickstertwo/xchat/source/youtube"
)

type app struct {
	cfg    config.Config
	logger *xlog.Logger
	hub    *xchat.Hub
	out    io.Writer
}

type runOptions struct {
	adapters []xchat.Adapter
	print    bool
	relay    bool
	store    bool
	// forward copies hub traffic to redis; mirror feeds the hub from redis.
	forward bool
	mirror  bool
}

func newLogger(c config.LogConfig) *xlog.Logger {
	zc := zerolog.Config{
		MinLevel:          xlog.LevelInfo,
		Console:           c.Console,
		ConsoleTimeFormat: time.RFC3339,
		Caller:            c.Caller,
		CallerSkip:        5,
	}
	switch strings.ToLower(c.Level) {
	case "debug":
		zc.MinLevel = xlog.LevelDebug
	case "warn":
		zc.MinLevel = xlog.LevelWarn
	case "error":
		zc.MinLevel = xlog.LevelError
	}
	return zerolog.Use(zc).With(xlog.Str("app", "xchat"))
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	logger := newLogger(cfg.Log)
	b := xchat.NewHubBuilder().
		WithCapacity(cfg.Hub.Capacity).
		WithLogger(logger).
		WithClock(xclock.Default()).
		WithMiddleware(xchat.TimeoutMiddleware(10 * time.Second))
	if cfg.Hub.ObserverWorkers > 0 {
		b = b.WithObserverPool(cfg.Hub.ObserverWorkers, cfg.Hub.ObserverBuffer)
	}
	hub, err := b.Build()
	if err != nil {
		return nil, err
	}
	xchat.SetDefault(hub)
	return &app{cfg: cfg, logger: logger, hub: hub, out: out}, nil
}

func dggAdapter(c config.Config) xchat.Adapter {
	return dgg.New(dgg.Config{URL: c.Dgg.URL, Origin: c.Dgg.Origin})
}

func kickAdapter(c config.Config) xchat.Adapter {
	return kick.New(kick.Config{
		URL:        c.Kick.URL,
		AppKey:     c.Kick.AppKey,
		Cluster:    c.Kick.Cluster,
		ChatroomID: c.Kick.ChatroomID,
	})
}

func youtubeAdapter(c config.Config) xchat.Adapter {
	return youtube.New(youtube.Config{
		Channel:      c.YouTube.Channel,
		Continuation: c.YouTube.Continuation,
		PollInterval: c.YouTube.PollInterval,
		RetryDelay:   c.YouTube.RetryDelay,
	})
}

func enabledAdapters(c config.Config) []xchat.Adapter {
	var out []xchat.Adapter
	if c.Dgg.Enabled {
		out = append(out, dggAdapter(c))
	}
	if c.Kick.Enabled {
		out = append(out, kickAdapter(c))
	}
	if c.YouTube.Enabled {
		out = append(out, youtubeAdapter(c))
	}
	return out
}

func (a *app) redis() (xchat.Transport, error) {
	rc := redisstream.Defaults()
	rc.Addr = a.cfg.Redis.Addr
	rc.Password = a.cfg.Redis.Password
	rc.DB = a.cfg.Redis.DB
	rc.Group = a.cfg.Redis.Group
	rc.MaxLenApprox = a.cfg.Redis.MaxLen
	return redisstream.Open(rc)
}

// run subscribes the local consumers before starting the sources so nothing
// published at startup is missed. It returns once the sources have all
// stopped (or ctx is done) and the consumers have drained.
func (a *app) run(ctx context.Context, opts runOptions) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Consumers stop when the hub closes, not on cancel, so buffered
	// messages still reach the store on shutdown.
	drainCtx := context.WithoutCancel(ctx)

	var (
		drain sync.WaitGroup
		wg    sync.WaitGroup
		mu    sync.Mutex
		errs  []error
	)
	fail := func(name string, err error) {
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		a.logger.With(xlog.Str("component", name)).Error().Err(err).Msg("xchat: component failed")
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
		cancel()
	}
	consume := func(name string, h xchat.Handler) {
		sub := a.hub.Subscribe()
		drain.Add(1)
		go func() {
			defer drain.Done()
			defer sub.Close()
			fail(name, a.hub.Consume(drainCtx, sub, name, h))
		}()
	}

	if opts.print {
		consume("printer", printer.New(a.out, plainIfNotTTY(a.out)...).Handle)
	}

	if opts.store {
		st, err := store.Open(ctx, a.cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		consume("store", xchat.Chain(st.Handle, xchat.RetryMiddleware(xchat.RetryConfig{
			MaxAttempts: 3,
			Backoff:     xchat.ExponentialBackoff(50*time.Millisecond, time.Second),
			Jitter:      20 * time.Millisecond,
		})))
	}

	if opts.relay {
		srv := relay.New(a.hub, relay.Config{
			Addr:   a.cfg.Relay.Addr,
			Path:   a.cfg.Relay.Path,
			Format: relay.Format(a.cfg.Relay.Format),
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail("relay", srv.ListenAndServe(ctx))
		}()
	}

	if opts.forward || opts.mirror {
		tr, err := a.redis()
		if err != nil {
			return err
		}
		defer tr.Close(context.Background())
		topic := a.cfg.Redis.Stream
		if opts.forward {
			drain.Add(1)
			go func() {
				defer drain.Done()
				fail("forward", xchat.Forward(drainCtx, a.hub, tr, topic))
			}()
		}
		if opts.mirror {
			wg.Add(1)
			go func() {
				defer wg.Done()
				fail("mirror", xchat.Mirror(ctx, tr, topic, a.cfg.Redis.Group, a.hub))
			}()
		}
	}

	if len(opts.adapters) > 0 {
		policy := xchat.RestartPolicy{}
		if a.cfg.Reconnect {
			policy = xchat.DefaultReconnect()
		}
		fail("supervisor", xchat.NewSupervisor(a.hub, policy, opts.adapters...).Run(ctx))
	} else {
		<-ctx.Done()
	}

	closeCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()
	if err := a.hub.Close(closeCtx); err != nil {
		a.logger.Warn().Err(err).Msg("xchat: hub close")
	}
	if !waitTimeout(&drain, shutdownTimeout) {
		a.logger.With(xlog.Dur("timeout", shutdownTimeout)).Warn().Msg("xchat: consumers did not drain in time")
	}
	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return errors.Join(errs...)
}

// waitTimeout reports whether wg finished within d.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-done:
		return true
	case <-t.C:
		return false
	}
}
