package xchat

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	mu    sync.Mutex
	types []EventType
	gate  chan struct{}
	once  sync.Once
}

func (r *recordingObserver) OnEvent(e Event) {
	if r.gate != nil {
		r.once.Do(func() { <-r.gate })
	}
	r.mu.Lock()
	r.types = append(r.types, e.Type)
	r.mu.Unlock()
}

func (r *recordingObserver) seen() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventType(nil), r.types...)
}

func TestObserverPoolLifecycleBeatsTraffic(t *testing.T) {
	op := NewObserverPool(1, 1)
	obs := &recordingObserver{gate: make(chan struct{})}
	observers := []Observer{obs}

	// The first event parks the only worker inside the observer.
	op.Notify(Event{Type: Subscribed}, observers)
	require.Eventually(t, func() bool { return op.Stats().Queued == 0 }, time.Second, time.Millisecond)

	for range 5 {
		op.Notify(Event{Type: Published}, observers)
	}
	op.Notify(Event{Type: SourceStop}, observers)
	close(obs.gate)

	require.Eventually(t, func() bool { return len(obs.seen()) == 3 }, time.Second, time.Millisecond)
	assert.Equal(t, []EventType{Subscribed, SourceStop, Published}, obs.seen())

	st := op.Stats()
	assert.Equal(t, uint64(4), st.Dropped)
	assert.Zero(t, st.DroppedLifecycle)
	require.NoError(t, op.Close(time.Second))
}

func TestObserverPoolIsolatesPanics(t *testing.T) {
	op := NewObserverPool(2, 16)
	good := &recordingObserver{}
	bad := ObserverFunc(func(Event) { panic("observer bug") })

	op.Notify(Event{Type: Error}, []Observer{bad, good})
	require.Eventually(t, func() bool { return len(good.seen()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), op.Stats().Panics)
	require.NoError(t, op.Close(time.Second))
}

func TestObserverPoolCloseDrains(t *testing.T) {
	op := NewObserverPool(1, 64)
	obs := &recordingObserver{}
	for range 10 {
		op.Notify(Event{Type: Delivered}, []Observer{obs})
	}
	require.NoError(t, op.Close(time.Second))
	assert.Len(t, obs.seen(), 10)
	assert.Equal(t, uint64(10), op.Stats().Processed)

	require.NoError(t, op.Close(time.Second))
	op.Notify(Event{Type: Delivered}, []Observer{obs})
	assert.Len(t, obs.seen(), 10)
}

func TestObserverPoolDefaults(t *testing.T) {
	op := NewObserverPool(0, 0)
	defer op.Close(time.Second)
	st := op.Stats()
	assert.Equal(t, 2, st.Workers)
	assert.Equal(t, 1024, st.BufferSize)
}
