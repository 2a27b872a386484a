package xchat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/trickstertwo/xlog"
)

// RestartPolicy decides whether a failed source is started again.
// The zero value never restarts: a lost connection ends that source.
type RestartPolicy struct {
	// MaxRestarts bounds restarts per source; negative means unlimited.
	MaxRestarts int
	// Backoff computes the wait before restart n (1-based).
	Backoff func(attempt int) time.Duration
	// Jitter adds up to [0, Jitter] to each wait.
	Jitter time.Duration
	// RestartIf filters which errors are restartable. Defaults to
	// ErrConnectionLost only, so layout errors stay fatal.
	RestartIf func(err error) bool
}

// DefaultReconnect restarts on connection loss forever, backing off from 1s to 1m.
func DefaultReconnect() RestartPolicy {
	return RestartPolicy{
		MaxRestarts: -1,
		Backoff:     ExponentialBackoff(time.Second, time.Minute),
		Jitter:      500 * time.Millisecond,
	}
}

func (p RestartPolicy) allows(attempt int, err error) bool {
	if p.MaxRestarts == 0 {
		return false
	}
	if p.MaxRestarts > 0 && attempt > p.MaxRestarts {
		return false
	}
	if p.RestartIf != nil {
		return p.RestartIf(err)
	}
	return errors.Is(err, ErrConnectionLost)
}

// Supervisor runs each Adapter on its own goroutine against a Hub.
// A source that fails stops alone; the others keep publishing.
type Supervisor struct {
	hub     *Hub
	policy  RestartPolicy
	sources []Adapter
}

func NewSupervisor(hub *Hub, policy RestartPolicy, sources ...Adapter) *Supervisor {
	return &Supervisor{hub: hub, policy: policy, sources: sources}
}

// Run blocks until every source has stopped. Sources ending because ctx was
// canceled are not errors; the rest are joined into the returned error.
func (s *Supervisor) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, src := range s.sources {
		wg.Add(1)
		go func(src Adapter) {
			defer wg.Done()
			if err := s.runSource(ctx, src); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
				mu.Unlock()
			}
		}(src)
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (s *Supervisor) runSource(ctx context.Context, src Adapter) error {
	name := src.Name()
	lg := s.hub.logger.With(xlog.Str("source", name))
	sctx := InjectAll(ctx, s.hub.codec, lg, s.hub.clock)

	for attempt := 1; ; attempt++ {
		s.hub.notifyAsync(Event{Type: SourceStart, Source: name})
		err := runGuarded(sctx, src, s.hub)
		if ctx.Err() != nil {
			s.hub.notifyAsync(Event{Type: SourceStop, Source: name})
			return nil
		}
		s.hub.notifyAsync(Event{Type: SourceStop, Source: name, Err: err})
		if err == nil {
			return nil
		}
		if !s.policy.allows(attempt, err) {
			return err
		}

		var wait time.Duration
		if s.policy.Backoff != nil {
			wait = s.policy.Backoff(attempt)
		}
		lg.With(xlog.Dur("backoff", wait), xlog.Str("attempt", strconv.Itoa(attempt))).Warn().Err(err).Msg("xchat: restarting source")
		if sleepWithJitter(ctx, wait, s.policy.Jitter) != nil {
			return nil
		}
	}
}

// runGuarded converts a panicking source into an error.
func runGuarded(ctx context.Context, src Adapter, pub Publisher) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source panic: %v", r)
		}
	}()
	return src.Run(ctx, pub)
}
