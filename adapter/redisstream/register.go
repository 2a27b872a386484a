package redisstream

import (
	"fmt"

	"github.com/trickstertwo/xchat"
)

const TransportName = "redis-streams"

func init() {
	if err := xchat.RegisterTransport(TransportName, func(cfg map[string]any) (xchat.Transport, error) {
		c := ConfigFromMap(cfg)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return newTransport(c)
	}); err != nil {
		panic(fmt.Errorf("xchat: failed to register transport %q: %w", TransportName, err))
	}
}

// Open validates cfg and connects through the transport registry.
func Open(cfg Config) (xchat.Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return xchat.NewTransport(TransportName, cfg.toMap())
}
