// Package kick reads kick.com chat through its Pusher relay socket.
// Every frame is a {event, data, channel} envelope whose data is itself
// JSON encoded as a string.
package kick

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/trickstertwo/xlog"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/internal/wsclient"
)

const (
	DefaultAppKey     = "eb1d5f283081a78b932c"
	DefaultCluster    = "us2"
	DefaultChatroomID = 1764849
	Name              = "kick"
)

type Config struct {
	// URL overrides the Pusher endpoint built from Cluster and AppKey.
	URL        string
	AppKey     string
	Cluster    string
	ChatroomID int64
	// Channels to subscribe to; defaults to the chatroom channel.
	Channels []string
	Origin   string
}

func Defaults() Config {
	return Config{
		AppKey:     DefaultAppKey,
		Cluster:    DefaultCluster,
		ChatroomID: DefaultChatroomID,
		Origin:     "https://kick.com",
	}
}

// Endpoint is the Pusher socket URL for cfg.
func (c Config) Endpoint() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("wss://ws-%s.pusher.com/app/%s?protocol=7&client=js&version=7.6.0&flash=false", c.Cluster, c.AppKey)
}

// SubscribeChannels returns the channels to join, "chatrooms.<id>.v2" by default.
func (c Config) SubscribeChannels() []string {
	if len(c.Channels) > 0 {
		return c.Channels
	}
	return []string{"chatrooms." + strconv.FormatInt(c.ChatroomID, 10) + ".v2"}
}

// Source is the push relay chat adapter.
type Source struct {
	cfg Config
}

var _ xchat.Adapter = (*Source)(nil)

func New(cfg Config) *Source {
	d := Defaults()
	if cfg.AppKey == "" {
		cfg.AppKey = d.AppKey
	}
	if cfg.Cluster == "" {
		cfg.Cluster = d.Cluster
	}
	if cfg.ChatroomID == 0 {
		cfg.ChatroomID = d.ChatroomID
	}
	if cfg.Origin == "" {
		cfg.Origin = d.Origin
	}
	return &Source{cfg: cfg}
}

func (s *Source) Name() string { return Name }

// Run subscribes to the configured channels and publishes chat events until
// the socket drops or ctx is done. Frames that are not chat events are
// ignored; frames that fail to decode are logged and skipped.
func (s *Source) Run(ctx context.Context, pub xchat.Publisher) error {
	lg := xchat.Logger(ctx)

	endpoint := s.cfg.Endpoint()
	lg.With(xlog.Str("url", endpoint)).Info().Msg("kick: connecting")
	conn, err := wsclient.Dial(ctx, endpoint, s.cfg.Origin, nil)
	if err != nil {
		return fmt.Errorf("kick: %w: %w", xchat.ErrConnectionLost, err)
	}
	defer conn.Close()

	for _, ch := range s.cfg.SubscribeChannels() {
		if err := conn.WriteJSON(SubscribeFrame(ch)); err != nil {
			return fmt.Errorf("kick: subscribe %s: %w: %w", ch, xchat.ErrConnectionLost, err)
		}
		lg.With(xlog.Str("channel", ch)).Info().Msg("kick: subscribed")
	}

	for {
		frame, err := conn.ReadText()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("kick: %w: %w", xchat.ErrConnectionLost, err)
		}
		if strings.TrimSpace(frame) == "" {
			continue
		}

		env, err := DecodeEnvelope(frame)
		if err != nil {
			lg.With(xlog.Str("frame", frame)).Warn().Err(err).Msg("kick: skipping frame")
			continue
		}

		switch env.Event {
		case EventChatMessage:
			msg, err := DecodeChat(env, frame)
			if err != nil {
				lg.With(xlog.Str("frame", frame)).Warn().Err(err).Msg("kick: skipping chat event")
				continue
			}
			if err := pub.Publish(ctx, msg); err != nil {
				return err
			}
		case EventPing:
			if err := conn.WriteJSON(PongFrame()); err != nil {
				return fmt.Errorf("kick: pong: %w: %w", xchat.ErrConnectionLost, err)
			}
		case EventError:
			lg.With(xlog.Str("data", string(env.Data))).Warn().Msg("kick: pusher error")
		case EventConnectionEstablished, EventSubscriptionSucceeded, EventPong,
			EventMessageDeleted, EventUserBanned:
			lg.With(xlog.Str("event", env.Event)).Debug().Msg("kick: ignored event")
		default:
			lg.With(xlog.Str("event", env.Event)).Debug().Msg("kick: ignored event")
		}
	}
}
