package xchat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

func TestContextScopeLayers(t *testing.T) {
	ctx := context.Background()
	_, ok := LoggerFromContext(ctx)
	assert.False(t, ok)
	assert.NotNil(t, Logger(ctx))

	lg := xlog.Default()
	clk := xclock.Default()
	ctx = InjectAll(ctx, JSONCodec{}, lg, clk)

	gotLg, ok := LoggerFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, lg, gotLg)
	gotClk, ok := ClockFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, clk, gotClk)

	// Replacing one field keeps the others.
	other := lg.With(xlog.Str("consumer", "printer"))
	inner := WithLogger(ctx, other)
	gotLg, _ = LoggerFromContext(inner)
	assert.Same(t, other, gotLg)
	c, ok := CodecFromContext(inner)
	assert.True(t, ok)
	assert.Equal(t, "json", c.Name())

	// The outer context is untouched and nil arguments change nothing.
	gotLg, _ = LoggerFromContext(ctx)
	assert.Same(t, lg, gotLg)
	same := InjectAll(ctx, nil, nil, nil)
	gotLg, _ = LoggerFromContext(same)
	assert.Same(t, lg, gotLg)
	assert.Equal(t, ctx, WithLogger(ctx, nil))
}
