package xchat

import (
	"context"
	"fmt"
	"sync"
)

var (
	defaultHub   *Hub
	defaultHubMu sync.Mutex
)

// Default returns the process-wide singleton Hub, building one with
// defaults on first use.
func Default() *Hub {
	defaultHubMu.Lock()
	defer defaultHubMu.Unlock()

	if defaultHub != nil {
		return defaultHub
	}

	hub, err := NewHubBuilder().Build()
	if err != nil {
		panic(fmt.Sprintf("xchat: failed to initialize default hub: %v", err))
	}
	defaultHub = hub
	return defaultHub
}

// SetDefault replaces the process-wide default Hub.
func SetDefault(h *Hub) {
	if h == nil {
		panic("xchat: SetDefault called with nil Hub")
	}
	defaultHubMu.Lock()
	defaultHub = h
	defaultHubMu.Unlock()
}

// Publish is the Facade using the default hub.
func Publish(ctx context.Context, msg Message) error {
	return Default().Publish(ctx, msg)
}

// Subscribe is the Facade using the default hub.
func Subscribe() *Subscription {
	return Default().Subscribe()
}
