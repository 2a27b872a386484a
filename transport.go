package xchat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Envelope is a hub message encoded for a cross-process Transport.
type Envelope struct {
	ID         string            // Transport-assigned identifier
	Name       string            // Source name, used for routing/metrics
	Payload    []byte            // Codec-encoded Message
	Metadata   map[string]string // Headers
	ProducedAt time.Time
}

// Delivery encapsulates a received envelope with Ack/Nack semantics.
type Delivery interface {
	Envelope() *Envelope
	Ack(ctx context.Context) error
	Nack(ctx context.Context, reason error) error
}

// TransportSubscription is an active transport subscription.
type TransportSubscription interface {
	Close() error
}

// Transport is the Strategy interface for brokers that carry hub traffic
// between processes.
type Transport interface {
	// Publish sends envelopes to a topic/stream.
	Publish(ctx context.Context, topic string, envs ...*Envelope) error
	// Subscribe binds a handler to a topic/stream within a consumer group.
	// The transport drives delivery in background and honors ctx.
	Subscribe(ctx context.Context, topic, group string, handler func(Delivery)) (TransportSubscription, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// TransportFactory constructs transports from a config blob.
type TransportFactory func(cfg map[string]any) (Transport, error)

var (
	transportRegistryMu sync.RWMutex
	transportRegistry   = map[string]TransportFactory{}
)

// RegisterTransport registers a backend adapter.
func RegisterTransport(name string, factory TransportFactory) error {
	if name == "" {
		return errors.New("transport name must not be empty")
	}
	if factory == nil {
		return errors.New("transport factory must not be nil")
	}
	transportRegistryMu.Lock()
	transportRegistry[name] = factory
	transportRegistryMu.Unlock()
	return nil
}

// NewTransport constructs a transport by name with config.
func NewTransport(name string, cfg map[string]any) (Transport, error) {
	transportRegistryMu.RLock()
	f, ok := transportRegistry[name]
	transportRegistryMu.RUnlock()
	if !ok {
		return nil, ErrUnknownTransport{name: name}
	}
	return f(cfg)
}
