package xchat

import (
	"time"
)

// EventType enumerates internal lifecycle events for Observer pattern.
type EventType string

const (
	Published    EventType = "published"
	Delivered    EventType = "delivered"
	Lagged       EventType = "lagged"
	Subscribed   EventType = "subscribed"
	Unsubscribed EventType = "unsubscribed"
	SourceStart  EventType = "source_start"
	SourceStop   EventType = "source_stop"
	Forwarded    EventType = "forwarded"
	Error        EventType = "error"
)

// Event carries telemetry for observers.
type Event struct {
	Type       EventType
	Source     string
	Subscriber string
	Consumer   string
	Missed     uint64
	Duration   time.Duration
	Err        error

	// Internal: attached for async dispatch
	observers []Observer
}
