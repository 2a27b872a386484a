// Package youtube reads YouTube live chat without the official API: a single
// scrape of the channel's live page yields an API key and a continuation
// token, after which get_live_chat is polled with a rolling continuation.
package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xchat"
)

const (
	Name                   = "youtube"
	DefaultBaseURL         = "https://www.youtube.com"
	DefaultPollInterval    = 10 * time.Second
	DefaultRetryDelay      = 2 * time.Second
	DefaultMinPollInterval = time.Second
)

type Config struct {
	// Channel is the handle without the leading "@".
	Channel string
	// PageURL overrides the live page location; "%s" is replaced by Channel.
	PageURL string
	// BaseURL is the scheme and host of the polling API.
	BaseURL string
	// Continuation seeds polling and skips the initial data lookup.
	Continuation    string
	PollInterval    time.Duration
	MinPollInterval time.Duration
	RetryDelay      time.Duration
	HTTPTimeout     time.Duration
}

func Defaults() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		PollInterval:    DefaultPollInterval,
		MinPollInterval: DefaultMinPollInterval,
		RetryDelay:      DefaultRetryDelay,
		HTTPTimeout:     15 * time.Second,
	}
}

// LivePageURL is the page scraped during bootstrap.
func (c Config) LivePageURL() string {
	if c.PageURL != "" {
		if strings.Contains(c.PageURL, "%s") {
			return fmt.Sprintf(c.PageURL, url.PathEscape(c.Channel))
		}
		return c.PageURL
	}
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return base + "/@" + url.PathEscape(c.Channel) + "/live"
}

// Option customizes a Source.
type Option func(*Source)

// WithHTTPClient replaces the HTTP client used for bootstrap and polling.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// Source is the polling scrape chat adapter.
type Source struct {
	cfg    Config
	client *http.Client
}

var _ xchat.Adapter = (*Source)(nil)

func New(cfg Config, opts ...Option) *Source {
	d := Defaults()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = d.PollInterval
	}
	if cfg.MinPollInterval <= 0 {
		cfg.MinPollInterval = d.MinPollInterval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = d.RetryDelay
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = d.HTTPTimeout
	}
	s := &Source{cfg: cfg, client: &http.Client{Timeout: cfg.HTTPTimeout}}
	for _, o := range opts {
		if o != nil {
			o(s)
		}
	}
	return s
}

func (s *Source) Name() string { return Name }

// Run bootstraps once and then polls until ctx is done or the feed ends.
// Bootstrap failures and ErrFeedEnded are returned; any other poll failure
// is logged and retried after RetryDelay with the last good continuation.
func (s *Source) Run(ctx context.Context, pub xchat.Publisher) error {
	lg := xchat.Logger(ctx)

	sess, err := GetSession(ctx, s.client, s.cfg)
	if err != nil {
		return fmt.Errorf("youtube: bootstrap: %w", err)
	}
	lg.With(xlog.Str("stream", sess.StreamID), xlog.Str("channel", s.cfg.Channel)).Info().Msg("youtube: session ready")

	poller := NewPoller(s.client, s.cfg.BaseURL, s.cfg.PollInterval)
	for {
		batch, err := poller.Poll(ctx, sess)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrFeedEnded) {
				return err
			}
			lg.With(xlog.Dur("retry", s.cfg.RetryDelay)).Warn().Err(err).Msg("youtube: poll failed")
			if err := sleep(ctx, s.cfg.RetryDelay); err != nil {
				return err
			}
			continue
		}

		for _, derr := range batch.Errors {
			lg.Warn().Err(derr).Msg("youtube: skipping action")
		}
		for _, msg := range sess.Advance(batch) {
			if err := pub.Publish(ctx, msg); err != nil {
				return err
			}
		}

		if err := sleep(ctx, max(batch.Interval, s.cfg.MinPollInterval)); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
