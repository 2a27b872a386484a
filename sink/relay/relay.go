// Package relay serves hub traffic to browsers over WebSocket. Every
// connection gets its own hub subscription, so one slow client only lags
// itself.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/trickstertwo/xlog"
	"golang.org/x/net/websocket"

	"github.com/trickstertwo/xchat"
)

const (
	DefaultAddr = "127.0.0.1:8080"
	DefaultPath = "/ws"
)

// Format selects how a message is rendered before it is sent.
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

type Config struct {
	Addr   string
	Path   string
	Format Format
}

func Defaults() Config {
	return Config{Addr: DefaultAddr, Path: DefaultPath, Format: FormatHTML}
}

// Server relays every hub message to connected WebSocket clients.
type Server struct {
	hub    *xchat.Hub
	cfg    Config
	logger *xlog.Logger
	active atomic.Int64
	served atomic.Uint64
}

func New(hub *xchat.Hub, cfg Config) *Server {
	d := Defaults()
	if cfg.Addr == "" {
		cfg.Addr = d.Addr
	}
	if cfg.Path == "" {
		cfg.Path = d.Path
	}
	if cfg.Format == "" {
		cfg.Format = d.Format
	}
	return &Server{hub: hub, cfg: cfg, logger: hub.Logger()}
}

// Active is the number of connected clients.
func (s *Server) Active() int64 { return s.active.Load() }

// Served counts frames written to clients.
func (s *Server) Served() uint64 { return s.served.Load() }

// Handler exposes the WebSocket endpoint and an "/up" probe.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		if s.hub.Health(r.Context()).Status == "unhealthy" {
			http.Error(w, "hub closed", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	ws := websocket.Server{
		Handler: websocket.Handler(s.serveConn),
		// Browsers from any origin may watch the relay.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
	}
	mux.HandleFunc(s.cfg.Path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ws.ServeHTTP(w, r)
	})
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.logger.With(xlog.Str("addr", ln.Addr().String()), xlog.Str("path", s.cfg.Path)).Info().Msg("relay: listening")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) render(msg xchat.Message) (string, error) {
	switch s.cfg.Format {
	case FormatJSON:
		b, err := xchat.EncodeMessage(context.Background(), msg)
		return string(b), err
	case FormatText:
		return msg.String(), nil
	default:
		return msg.HTML(), nil
	}
}

func (s *Server) serveConn(conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(conn.Request().Context())
	defer cancel()
	defer conn.Close()

	sub := s.hub.Subscribe()
	defer sub.Close()

	n := s.active.Add(1)
	defer s.active.Add(-1)
	lg := s.logger.With(xlog.Str("peer", conn.Request().RemoteAddr), xlog.Str("subscriber", sub.ID()))
	lg.With(xlog.Str("clients", strconv.FormatInt(n, 10))).Info().Msg("relay: client connected")

	// Clients never send anything meaningful; a failed read means they left.
	go func() {
		defer cancel()
		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			var lag *xchat.LaggedError
			if errors.As(err, &lag) {
				lg.With(xlog.Str("missed", strconv.FormatUint(lag.Missed, 10))).Warn().Msg("relay: client lagged")
				continue
			}
			lg.Info().Err(err).Msg("relay: client done")
			return
		}
		frame, err := s.render(msg)
		if err != nil {
			lg.Warn().Err(err).Msg("relay: render failed")
			continue
		}
		if err := websocket.Message.Send(conn, frame); err != nil {
			lg.Info().Err(err).Msg("relay: send failed")
			return
		}
		s.served.Add(1)
	}
}
