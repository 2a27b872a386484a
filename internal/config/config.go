// Package config loads xchat settings from defaults, an optional TOML file
// and XCHAT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const DefaultPath = "xchat.toml"

type Config struct {
	Log     LogConfig     `toml:"log"`
	Hub     HubConfig     `toml:"hub"`
	Dgg     DggConfig     `toml:"dgg"`
	Kick    KickConfig    `toml:"kick"`
	YouTube YouTubeConfig `toml:"youtube"`
	Relay   RelayConfig   `toml:"relay"`
	Store   StoreConfig   `toml:"store"`
	Redis   RedisConfig   `toml:"redis"`
	// Reconnect restarts sources that lose their upstream connection.
	Reconnect bool `toml:"reconnect" env:"XCHAT_RECONNECT"`
}

type LogConfig struct {
	Level   string `toml:"level"   env:"XCHAT_LOG_LEVEL"`
	Console bool   `toml:"console" env:"XCHAT_LOG_CONSOLE"`
	Caller  bool   `toml:"caller"  env:"XCHAT_LOG_CALLER"`
}

type HubConfig struct {
	Capacity        int `toml:"capacity"         env:"XCHAT_HUB_CAPACITY"`
	ObserverWorkers int `toml:"observer_workers" env:"XCHAT_HUB_OBSERVER_WORKERS"`
	ObserverBuffer  int `toml:"observer_buffer"  env:"XCHAT_HUB_OBSERVER_BUFFER"`
}

type DggConfig struct {
	Enabled bool   `toml:"enabled" env:"XCHAT_DGG_ENABLED"`
	URL     string `toml:"url"     env:"XCHAT_DGG_URL"`
	Origin  string `toml:"origin"  env:"XCHAT_DGG_ORIGIN"`
}

type KickConfig struct {
	Enabled    bool   `toml:"enabled"     env:"XCHAT_KICK_ENABLED"`
	URL        string `toml:"url"         env:"XCHAT_KICK_URL"`
	AppKey     string `toml:"app_key"     env:"XCHAT_KICK_APP_KEY"`
	Cluster    string `toml:"cluster"     env:"XCHAT_KICK_CLUSTER"`
	ChatroomID int64  `toml:"chatroom_id" env:"XCHAT_KICK_CHATROOM_ID"`
}

type YouTubeConfig struct {
	Enabled      bool          `toml:"enabled"       env:"XCHAT_YOUTUBE_ENABLED"`
	Channel      string        `toml:"channel"       env:"XCHAT_YOUTUBE_CHANNEL"`
	Continuation string        `toml:"continuation"  env:"XCHAT_YOUTUBE_CONTINUATION"`
	PollInterval time.Duration `toml:"poll_interval" env:"XCHAT_YOUTUBE_POLL_INTERVAL"`
	RetryDelay   time.Duration `toml:"retry_delay"   env:"XCHAT_YOUTUBE_RETRY_DELAY"`
}

type RelayConfig struct {
	Enabled bool   `toml:"enabled" env:"XCHAT_RELAY_ENABLED"`
	Addr    string `toml:"addr"    env:"XCHAT_RELAY_ADDR"`
	Path    string `toml:"path"    env:"XCHAT_RELAY_PATH"`
	// Format is one of html, json or text.
	Format string `toml:"format" env:"XCHAT_RELAY_FORMAT"`
}

type StoreConfig struct {
	Enabled bool   `toml:"enabled" env:"XCHAT_STORE_ENABLED"`
	Path    string `toml:"path"    env:"XCHAT_STORE_PATH"`
}

type RedisConfig struct {
	Enabled  bool   `toml:"enabled"  env:"XCHAT_REDIS_ENABLED"`
	Addr     string `toml:"addr"     env:"XCHAT_REDIS_ADDR"`
	Password string `toml:"password" env:"XCHAT_REDIS_PASSWORD"`
	DB       int    `toml:"db"       env:"XCHAT_REDIS_DB"`
	Stream   string `toml:"stream"   env:"XCHAT_REDIS_STREAM"`
	Group    string `toml:"group"    env:"XCHAT_REDIS_GROUP"`
	MaxLen   int64  `toml:"max_len"  env:"XCHAT_REDIS_MAX_LEN"`
}

func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info", Console: true},
		Hub: HubConfig{Capacity: 100, ObserverWorkers: 2, ObserverBuffer: 1024},
		Dgg: DggConfig{
			Enabled: true,
			URL:     "wss://chat.destiny.gg/ws",
			Origin:  "https://www.destiny.gg",
		},
		Kick: KickConfig{
			Enabled:    true,
			AppKey:     "eb1d5f283081a78b932c",
			Cluster:    "us2",
			ChatroomID: 1764849,
		},
		YouTube: YouTubeConfig{
			Enabled:      true,
			Channel:      "destiny",
			PollInterval: 10 * time.Second,
			RetryDelay:   2 * time.Second,
		},
		Relay: RelayConfig{Enabled: true, Addr: "127.0.0.1:8080", Path: "/ws", Format: "html"},
		Store: StoreConfig{Enabled: true, Path: "tmp/messages.sqlite3"},
		Redis: RedisConfig{
			Addr:   "127.0.0.1:6379",
			Stream: "chat",
			Group:  "xchat-relay",
			MaxLen: 10_000,
		},
	}
}

// Load applies the TOML file at path (if it exists) and then the
// environment on top of Defaults. An empty path means DefaultPath.
func Load(path string) (Config, error) {
	cfg := Defaults()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if explicit {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	if c.Hub.Capacity < 1 {
		errs = append(errs, fmt.Errorf("hub.capacity must be > 0, got %d", c.Hub.Capacity))
	}
	if c.Hub.ObserverWorkers < 0 || c.Hub.ObserverBuffer < 0 {
		errs = append(errs, errors.New("hub observer pool sizes must not be negative"))
	}
	if c.Dgg.Enabled && c.Dgg.URL == "" {
		errs = append(errs, errors.New("dgg.url is required"))
	}
	if c.Kick.Enabled && c.Kick.URL == "" && (c.Kick.AppKey == "" || c.Kick.Cluster == "") {
		errs = append(errs, errors.New("kick needs url or app_key and cluster"))
	}
	if c.Kick.Enabled && c.Kick.ChatroomID <= 0 {
		errs = append(errs, errors.New("kick.chatroom_id must be > 0"))
	}
	if c.YouTube.Enabled && c.YouTube.Channel == "" {
		errs = append(errs, errors.New("youtube.channel is required"))
	}
	if c.YouTube.PollInterval < 0 || c.YouTube.RetryDelay < 0 {
		errs = append(errs, errors.New("youtube intervals must not be negative"))
	}
	if c.Relay.Enabled {
		if c.Relay.Addr == "" {
			errs = append(errs, errors.New("relay.addr is required"))
		}
		if !strings.HasPrefix(c.Relay.Path, "/") {
			errs = append(errs, fmt.Errorf("relay.path %q must start with /", c.Relay.Path))
		}
		switch c.Relay.Format {
		case "html", "json", "text":
		default:
			errs = append(errs, fmt.Errorf("relay.format %q is not one of html, json, text", c.Relay.Format))
		}
	}
	if c.Store.Enabled && strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Redis.Enabled && (c.Redis.Addr == "" || c.Redis.Stream == "" || c.Redis.Group == "") {
		errs = append(errs, errors.New("redis needs addr, stream and group"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
