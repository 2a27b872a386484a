package xchat

import (
	"errors"
	"fmt"
)

var (
	ErrHubClosed          = errors.New("xchat: hub closed")
	ErrSubscriptionClosed = errors.New("xchat: subscription closed")
	ErrLagged             = errors.New("xchat: subscriber lagged")
	// ErrConnectionLost is returned by socket-backed sources when the upstream
	// connection drops. It ends that source only.
	ErrConnectionLost              = errors.New("xchat: upstream connection lost")
	ErrObserverPoolShutdownTimeout = errors.New("xchat: observer pool shutdown timeout")
	ErrInvalidCapacity             = errors.New("xchat: hub capacity must be > 0")
	ErrInvalidTopic                = errors.New("xchat: topic must not be empty")
)

// LaggedError reports how many messages a subscriber missed because it
// fell behind the hub's retention window.
type LaggedError struct {
	Missed uint64
}

func (e *LaggedError) Error() string { return fmt.Sprintf("xchat: subscriber lagged, missed %d messages", e.Missed) }

func (e *LaggedError) Is(target error) bool { return target == ErrLagged }

type ErrUnknownTransport struct{ name string }

func (e ErrUnknownTransport) Error() string { return fmt.Sprintf("unknown transport: %s", e.name) }
