// Package wsclient is the small WebSocket client shared by the socket-backed
// chat sources. It ties a golang.org/x/net/websocket connection to a context.
package wsclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// ErrClosed is returned by reads after the connection has been closed.
var ErrClosed = errors.New("wsclient: connection closed")

// Conn is a text-frame WebSocket connection bound to the context it was
// dialed with: cancelling the context closes the socket and unblocks reads.
type Conn struct {
	ws        *websocket.Conn
	stop      func() bool
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial opens rawURL. origin is sent as the Origin header; header entries are
// added to the handshake request.
func Dial(ctx context.Context, rawURL, origin string, header http.Header) (*Conn, error) {
	cfg, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, fmt.Errorf("wsclient: config %s: %w", rawURL, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			cfg.Header.Add(k, v)
		}
	}
	ws, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("wsclient: dial %s: %w", rawURL, err)
	}
	c := &Conn{ws: ws}
	c.stop = context.AfterFunc(ctx, func() { _ = c.Close() })
	return c, nil
}

// ReadText blocks for the next frame and returns its payload as a string.
func (c *Conn) ReadText() (string, error) {
	var frame string
	if err := websocket.Message.Receive(c.ws, &frame); err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrClosed
		}
		return "", err
	}
	return frame, nil
}

// WriteText sends s as a single text frame.
func (c *Conn) WriteText(s string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.Message.Send(c.ws, s)
}

// WriteJSON marshals v and sends it as a text frame.
func (c *Conn) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return websocket.JSON.Send(c.ws, v)
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			c.stop()
		}
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
