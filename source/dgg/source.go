// Package dgg reads the destiny.gg chat socket. Frames are "TYPE {json}";
// only MSG frames become messages.
package dgg

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/internal/wsclient"
)

const (
	DefaultURL    = "wss://chat.destiny.gg/ws"
	DefaultOrigin = "https://www.destiny.gg"
	Name          = "dgg"
)

type Config struct {
	URL       string
	Origin    string
	UserAgent string
}

func Defaults() Config {
	return Config{
		URL:       DefaultURL,
		Origin:    DefaultOrigin,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; rv:121.0) Gecko/20100101 Firefox/121.0",
	}
}

// Source is the community chat adapter.
type Source struct {
	cfg Config
}

var _ xchat.Adapter = (*Source)(nil)

func New(cfg Config) *Source {
	d := Defaults()
	if cfg.URL == "" {
		cfg.URL = d.URL
	}
	if cfg.Origin == "" {
		cfg.Origin = d.Origin
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = d.UserAgent
	}
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return Name }

// Run reads frames until the socket closes or ctx is done. Malformed MSG
// frames are logged and skipped; losing the socket returns an error
// wrapping xchat.ErrConnectionLost.
func (s *Source) Run(ctx context.Context, pub xchat.Publisher) error {
	lg := xchat.Logger(ctx)

	header := http.Header{}
	if s.cfg.UserAgent != "" {
		header.Set("User-Agent", s.cfg.UserAgent)
	}
	lg.With(xlog.Str("url", s.cfg.URL)).Info().Msg("dgg: connecting")
	conn, err := wsclient.Dial(ctx, s.cfg.URL, s.cfg.Origin, header)
	if err != nil {
		return fmt.Errorf("dgg: %w: %w", xchat.ErrConnectionLost, err)
	}
	defer conn.Close()
	lg.Info().Msg("dgg: connected")

	for {
		frame, err := conn.ReadText()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("dgg: %w: %w", xchat.ErrConnectionLost, err)
		}

		msg, ok, err := ParseFrame(frame)
		if err != nil {
			if !errors.Is(err, ErrEmptyFrame) {
				lg.With(xlog.Str("frame", frame)).Warn().Err(err).Msg("dgg: skipping frame")
			}
			continue
		}
		if !ok {
			continue
		}
		if err := pub.Publish(ctx, msg); err != nil {
			return err
		}
	}
}
