package xchat

import (
	"time"
)

// PoolStats is a snapshot of an ObserverPool.
type PoolStats struct {
	Dropped          uint64 // traffic events lost to a full queue
	DroppedLifecycle uint64
	Processed        uint64
	Panics           uint64 // observer calls that panicked
	Queued           int
	Workers          int
	BufferSize       int // traffic queue capacity
}

// Metrics defines observable telemetry for the hub.
type Metrics struct {
	Published        uint64
	Delivered        uint64
	HandlerErrors    uint64
	LagSignals       uint64
	Missed           uint64
	Subscribers      int
	EventsDropped    uint64
	AvgHandlerTimeMs float64
}

// HealthStatus indicates hub health for probes.
type HealthStatus struct {
	Status    string // "healthy", "degraded", "unhealthy"
	Metrics   Metrics
	Timestamp time.Time
	Message   string
}
