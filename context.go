package xchat

import (
	"context"

	"github.com/trickstertwo/xclock"
	"github.com/trickstertwo/xlog"
)

// scope is what the hub hands down to sources and handlers. It travels as a
// single context value; each helper copies it and replaces one field.
type scope struct {
	codec  Codec
	logger *xlog.Logger
	clock  xclock.Clock
}

type scopeKey struct{}

func scopeFrom(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, edit func(*scope)) context.Context {
	s := scopeFrom(ctx)
	edit(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

func injectCodec(ctx context.Context, c Codec) context.Context {
	if c == nil {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.codec = c })
}

func injectClock(ctx context.Context, c xclock.Clock) context.Context {
	if c == nil {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.clock = c })
}

// WithLogger returns ctx carrying l. A nil l leaves ctx unchanged.
func WithLogger(ctx context.Context, l *xlog.Logger) context.Context {
	if l == nil {
		return ctx
	}
	return withScope(ctx, func(s *scope) { s.logger = l })
}

// InjectAll attaches the hub's codec, logger and clock in one step. Nil
// arguments keep whatever ctx already carries.
func InjectAll(ctx context.Context, codec Codec, logger *xlog.Logger, clock xclock.Clock) context.Context {
	return withScope(ctx, func(s *scope) {
		if codec != nil {
			s.codec = codec
		}
		if logger != nil {
			s.logger = logger
		}
		if clock != nil {
			s.clock = clock
		}
	})
}

func CodecFromContext(ctx context.Context) (Codec, bool) {
	c := scopeFrom(ctx).codec
	return c, c != nil
}

func LoggerFromContext(ctx context.Context) (*xlog.Logger, bool) {
	l := scopeFrom(ctx).logger
	return l, l != nil
}

func ClockFromContext(ctx context.Context) (xclock.Clock, bool) {
	c := scopeFrom(ctx).clock
	return c, c != nil
}

// Logger returns the logger carried by ctx, falling back to xlog.Default().
// Sources call it once at the top of Run.
func Logger(ctx context.Context) *xlog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return xlog.Default()
}
