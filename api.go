package xchat

import (
	"context"
)

// Handler processes a single message delivered to a consumer.
type Handler func(ctx context.Context, msg Message) error

// Middleware composes processing concerns around a Handler.
type Middleware func(next Handler) Handler

// Publisher accepts canonical messages. Sources only ever see this side of the hub.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}

// Adapter is a single upstream chat backend. Run blocks until ctx is done or
// the backend fails; messages are published in feed order.
type Adapter interface {
	Name() string
	Run(ctx context.Context, pub Publisher) error
}

// Observer receives hub lifecycle events. Implementations should be non-blocking.
type Observer interface {
	OnEvent(e Event)
}

// HealthChecker provides health status for production monitoring.
type HealthChecker interface {
	Health(ctx context.Context) HealthStatus
}

// API represents the complete hub surface.
type API interface {
	Publisher
	Subscribe() *Subscription
	Consume(ctx context.Context, sub *Subscription, consumer string, handler Handler) error
	Close(ctx context.Context) error
	GetMetrics() Metrics
	Health(ctx context.Context) HealthStatus
	AddObserver(obs Observer)
	RemoveObserver(obs Observer)
}

var (
	_ API           = (*Hub)(nil)
	_ HealthChecker = (*Hub)(nil)
)
