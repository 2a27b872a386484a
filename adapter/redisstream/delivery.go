package redisstream

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/trickstertwo/xchat"
)

type delivery struct {
	t     *transport
	topic string
	group string
	id    string
	env   *xchat.Envelope

	once sync.Once
}

func (d *delivery) Envelope() *xchat.Envelope { return d.env }

// Ack XACKs the entry once; later calls are no-ops.
func (d *delivery) Ack(ctx context.Context) error {
	var err error
	d.once.Do(func() {
		err = d.t.client.XAck(ctx, d.topic, d.group, d.id).Err()
		if err != nil {
			return
		}
		d.t.metrics.acked.Add(1)
		if d.t.cfg.AutoDeleteOnAck {
			_ = d.t.client.XDel(ctx, d.topic, d.id).Err()
		}
	})
	return err
}

// Nack copies the entry to the dead-letter stream and acks it when one is
// configured. Otherwise the entry stays pending for the claim loop.
func (d *delivery) Nack(ctx context.Context, reason error) error {
	d.t.metrics.nacked.Add(1)
	dl := d.t.cfg.DeadLetter
	if dl == "" {
		return nil
	}
	vals := encodeEnvelope(d.env)
	vals["orig_topic"] = d.topic
	vals["orig_id"] = d.id
	if reason != nil {
		vals["error"] = reason.Error()
	}
	if err := d.t.client.XAdd(ctx, &redis.XAddArgs{Stream: dl, ID: "*", Values: vals}).Err(); err != nil {
		return err
	}
	return d.Ack(ctx)
}
