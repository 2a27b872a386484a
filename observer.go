package xchat

import (
	"strconv"

	"github.com/trickstertwo/xlog"
)

// ObserverFunc lets a plain function satisfy Observer.
type ObserverFunc func(e Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

// LoggingObserver writes hub events to an xlog logger. Builders install one
// by default.
type LoggingObserver struct {
	Logger *xlog.Logger
}

func (o LoggingObserver) OnEvent(e Event) {
	if o.Logger == nil {
		return
	}
	ev := o.Logger.With(
		xlog.Str("type", string(e.Type)),
		xlog.Str("source", e.Source),
		xlog.Str("subscriber", e.Subscriber),
		xlog.Str("consumer", e.Consumer),
	)
	switch e.Type {
	case Error:
		ev.Warn().Err(e.Err).Msg("xchat event")
	case Lagged:
		ev.With(xlog.Str("missed", strconv.FormatUint(e.Missed, 10))).Warn().Msg("xchat subscriber lagged")
	case SourceStop:
		if e.Err != nil {
			ev.Error().Err(e.Err).Msg("xchat source stopped")
			return
		}
		ev.Info().Msg("xchat source stopped")
	case SourceStart:
		ev.Info().Msg("xchat source started")
	default:
		if e.Duration > 0 {
			ev = ev.With(xlog.Dur("duration", e.Duration))
		}
		if e.Err != nil {
			ev.Debug().Err(e.Err).Msg("xchat event")
			return
		}
		ev.Debug().Msg("xchat event")
	}
}
