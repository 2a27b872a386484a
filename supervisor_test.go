package xchat

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name string
	runs atomic.Int32
	run  func(ctx context.Context, pub Publisher, attempt int32) error
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Run(ctx context.Context, pub Publisher) error {
	return f.run(ctx, pub, f.runs.Add(1))
}

func TestSupervisorFailureIsolated(t *testing.T) {
	h := newTestHub(t, 16)
	sub := h.Subscribe()

	broken := &fakeAdapter{name: "broken", run: func(context.Context, Publisher, int32) error {
		return fmt.Errorf("dial: %w", ErrConnectionLost)
	}}
	healthy := &fakeAdapter{name: "healthy", run: func(ctx context.Context, pub Publisher, _ int32) error {
		for i := 0; i < 3; i++ {
			time.Sleep(5 * time.Millisecond)
			if err := pub.Publish(ctx, msgN(i)); err != nil {
				return err
			}
		}
		return nil
	}}

	err := NewSupervisor(h, RestartPolicy{}, broken, healthy).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Contains(t, err.Error(), "broken")
	assert.EqualValues(t, 1, broken.runs.Load())

	got := recvN(t, sub, 3)
	assert.Equal(t, "user2", got[2].Author)
}

func TestSupervisorRestartsOnConnectionLoss(t *testing.T) {
	h := newTestHub(t, 4)
	src := &fakeAdapter{name: "flaky", run: func(_ context.Context, _ Publisher, attempt int32) error {
		if attempt < 3 {
			return ErrConnectionLost
		}
		return nil
	}}
	policy := RestartPolicy{MaxRestarts: 5, Backoff: func(int) time.Duration { return time.Millisecond }}
	require.NoError(t, NewSupervisor(h, policy, src).Run(context.Background()))
	assert.EqualValues(t, 3, src.runs.Load())
}

func TestSupervisorDoesNotRestartOtherErrors(t *testing.T) {
	h := newTestHub(t, 4)
	layout := errors.New("layout changed")
	src := &fakeAdapter{name: "scrape", run: func(context.Context, Publisher, int32) error { return layout }}
	err := NewSupervisor(h, DefaultReconnect(), src).Run(context.Background())
	assert.ErrorIs(t, err, layout)
	assert.EqualValues(t, 1, src.runs.Load())
}

func TestSupervisorMaxRestarts(t *testing.T) {
	h := newTestHub(t, 4)
	src := &fakeAdapter{name: "dead", run: func(context.Context, Publisher, int32) error { return ErrConnectionLost }}
	err := NewSupervisor(h, RestartPolicy{MaxRestarts: 2}, src).Run(context.Background())
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.EqualValues(t, 3, src.runs.Load())
}

func TestSupervisorRecoversPanics(t *testing.T) {
	h := newTestHub(t, 4)
	src := &fakeAdapter{name: "panicky", run: func(context.Context, Publisher, int32) error { panic("oops") }}
	err := NewSupervisor(h, RestartPolicy{}, src).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	h := newTestHub(t, 4)
	src := &fakeAdapter{name: "blocking", run: func(ctx context.Context, _ Publisher, _ int32) error {
		_, ok := LoggerFromContext(ctx)
		assert.True(t, ok)
		<-ctx.Done()
		return ctx.Err()
	}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewSupervisor(h, DefaultReconnect(), src).Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
