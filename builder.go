package xchat

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// HubBuilder constructs Hub instances (Builder pattern).
type HubBuilder struct {
	capacity int

	codecName string
	codecInst Codec

	middlewares []Middleware
	observers   []Observer
	logger      *xlog.Logger
	clock       xclock.Clock

	poolWorkers int
	poolBuffer  int
}

// NewHubBuilder returns a new builder with sensible defaults.
func NewHubBuilder() *HubBuilder {
	return &HubBuilder{
		capacity:  DefaultCapacity,
		codecName: "json",
	}
}

// WithCapacity sets how many messages a subscriber may fall behind before
// it is reported as lagged.
func (hb *HubBuilder) WithCapacity(n int) *HubBuilder {
	hb.capacity = n
	return hb
}

func (hb *HubBuilder) WithCodec(name string) *HubBuilder {
	hb.codecName = name
	return hb
}

// WithCodecInstance accepts a ready Codec instance.
func (hb *HubBuilder) WithCodecInstance(c Codec) *HubBuilder {
	hb.codecInst = c
	return hb
}

// WithMiddleware adds consumer middlewares applied by Consume.
func (hb *HubBuilder) WithMiddleware(mw ...Middleware) *HubBuilder {
	if len(mw) == 0 {
		return hb
	}
	hb.middlewares = append(hb.middlewares, mw...)
	return hb
}

func (hb *HubBuilder) WithObserver(obs ...Observer) *HubBuilder {
	for _, o := range obs {
		if o != nil {
			hb.observers = append(hb.observers, o)
		}
	}
	return hb
}

// WithObserverPool dispatches observer events asynchronously.
// Without it observers run inline on the publishing goroutine.
func (hb *HubBuilder) WithObserverPool(workers, buffer int) *HubBuilder {
	hb.poolWorkers = workers
	hb.poolBuffer = buffer
	return hb
}

func (hb *HubBuilder) WithLogger(l *xlog.Logger) *HubBuilder {
	hb.logger = l
	return hb
}

func (hb *HubBuilder) WithClock(c xclock.Clock) *HubBuilder {
	hb.clock = c
	return hb
}

func (hb *HubBuilder) Build() (*Hub, error) {
	if hb.capacity < 1 {
		return nil, ErrInvalidCapacity
	}

	var cd Codec
	if hb.codecInst != nil {
		cd = hb.codecInst
	} else {
		var err error
		cd, err = NewCodec(hb.codecName)
		if err != nil {
			return nil, err
		}
	}

	clk := hb.clock
	if clk == nil {
		clk = xclock.Default()
	}
	lg := hb.logger
	if lg == nil {
		lg = xlog.Default()
	}

	h := newHub(hb.capacity, clk, lg, cd)
	h.middlewares = hb.middlewares
	if hb.poolWorkers > 0 {
		h.observerPool = NewObserverPool(hb.poolWorkers, hb.poolBuffer)
	}

	hasLoggingObserver := false
	for _, o := range hb.observers {
		if _, ok := o.(LoggingObserver); ok {
			hasLoggingObserver = true
			break
		}
	}
	if !hasLoggingObserver {
		h.AddObserver(LoggingObserver{Logger: lg})
	}
	for _, o := range hb.observers {
		h.AddObserver(o)
	}

	return h, nil
}

// New constructs a Hub via Builder and returns a close func for convenience.
func New(init func(b *HubBuilder)) (*Hub, func() error, error) {
	b := NewHubBuilder()
	if init != nil {
		init(b)
	}
	hub, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() error { return hub.Close(context.Background()) }
	return hub, closeFn, nil
}
