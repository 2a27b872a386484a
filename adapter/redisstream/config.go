package redisstream

import (
	"fmt"
	"os"
	"time"
)

// Config for the Redis Streams transport.
type Config struct {
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	Group       string
	Consumer    string
	Concurrency int
	BatchSize   int
	Block       time.Duration
	AutoCreate  bool
	// StartID is where a freshly created group starts reading. "$" skips history.
	StartID string

	AutoDeleteOnAck bool
	DeadLetter      string
	MaxLenApprox    int64

	// Pending entry recovery. Disabled while ClaimMinIdle is zero.
	ClaimMinIdle  time.Duration
	ClaimBatch    int
	ClaimInterval time.Duration
}

func Defaults() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "xchat"
	}
	return Config{
		Addr:          "127.0.0.1:6379",
		Group:         "xchat",
		Consumer:      fmt.Sprintf("xchat-%s-%d", hostname, os.Getpid()),
		Concurrency:   1,
		BatchSize:     64,
		Block:         5 * time.Second,
		AutoCreate:    true,
		StartID:       "$",
		MaxLenApprox:  10_000,
		ClaimBatch:    64,
		ClaimInterval: 15 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redisstream: addr required")
	}
	if c.Group == "" {
		return fmt.Errorf("redisstream: group required")
	}
	if c.Consumer == "" {
		return fmt.Errorf("redisstream: consumer required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("redisstream: concurrency must be >= 1, got %d", c.Concurrency)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("redisstream: batch_size must be >= 1, got %d", c.BatchSize)
	}
	if c.Block <= 0 {
		return fmt.Errorf("redisstream: block must be > 0, got %v", c.Block)
	}
	if c.ClaimMinIdle > 0 && c.ClaimInterval <= 0 {
		return fmt.Errorf("redisstream: claim_interval must be > 0 when claim_min_idle is set")
	}
	return nil
}

func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":               c.Addr,
		"username":           c.Username,
		"password":           c.Password,
		"db":                 c.DB,
		"tls":                c.TLS,
		"tls_server_name":    c.TLSServerName,
		"group":              c.Group,
		"consumer":           c.Consumer,
		"concurrency":        c.Concurrency,
		"batch_size":         c.BatchSize,
		"block":              c.Block,
		"auto_create":        c.AutoCreate,
		"start_id":           c.StartID,
		"auto_delete_on_ack": c.AutoDeleteOnAck,
		"dead_letter":        c.DeadLetter,
		"max_len_approx":     c.MaxLenApprox,
		"claim_min_idle":     c.ClaimMinIdle,
		"claim_batch":        c.ClaimBatch,
		"claim_interval":     c.ClaimInterval,
	}
}

// ConfigFromMap overlays recognised keys onto Defaults. Durations may be
// given as time.Duration or a string such as "5s".
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	str := func(k string, dst *string, allowEmpty bool) {
		if v, ok := m[k].(string); ok && (allowEmpty || v != "") {
			*dst = v
		}
	}
	num := func(k string, dst *int) {
		switch v := m[k].(type) {
		case int:
			*dst = v
		case int64:
			*dst = int(v)
		case float64:
			*dst = int(v)
		}
	}
	flag := func(k string, dst *bool) {
		if v, ok := m[k].(bool); ok {
			*dst = v
		}
	}
	dur := func(k string, dst *time.Duration) {
		switch v := m[k].(type) {
		case time.Duration:
			*dst = v
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("addr", &c.Addr, false)
	str("username", &c.Username, true)
	str("password", &c.Password, true)
	num("db", &c.DB)
	flag("tls", &c.TLS)
	str("tls_server_name", &c.TLSServerName, true)
	str("group", &c.Group, false)
	str("consumer", &c.Consumer, false)
	num("concurrency", &c.Concurrency)
	num("batch_size", &c.BatchSize)
	dur("block", &c.Block)
	flag("auto_create", &c.AutoCreate)
	str("start_id", &c.StartID, false)
	flag("auto_delete_on_ack", &c.AutoDeleteOnAck)
	str("dead_letter", &c.DeadLetter, true)
	switch v := m["max_len_approx"].(type) {
	case int64:
		c.MaxLenApprox = v
	case int:
		c.MaxLenApprox = int64(v)
	}
	dur("claim_min_idle", &c.ClaimMinIdle)
	num("claim_batch", &c.ClaimBatch)
	dur("claim_interval", &c.ClaimInterval)

	return c
}
