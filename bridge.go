package xchat

import (
	"context"
	"fmt"
)

// Forward copies every message published on hub to topic on tr until ctx is
// done or the hub closes. Forwarding is a regular consumer, so a slow broker
// shows up as lag on this subscription only.
func Forward(ctx context.Context, hub *Hub, tr Transport, topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	sub := hub.Subscribe()
	defer sub.Close()

	return hub.Consume(ctx, sub, "forward:"+topic, func(hctx context.Context, msg Message) error {
		data, err := EncodeMessage(hctx, msg)
		if err != nil {
			return fmt.Errorf("xchat: encode for %s: %w", topic, err)
		}
		env := &Envelope{
			Name:       msg.Source.String(),
			Payload:    data,
			Metadata:   map[string]string{"author": msg.Author},
			ProducedAt: hub.clock.Now(),
		}
		if err := tr.Publish(hctx, topic, env); err != nil {
			return err
		}
		hub.notifyAsync(Event{Type: Forwarded, Source: env.Name, Consumer: "forward:" + topic})
		return nil
	})
}

// Mirror republishes envelopes arriving on topic into hub, so a process
// without sources can serve local consumers. It blocks until ctx is done.
// Envelopes that cannot be decoded are nacked.
func Mirror(ctx context.Context, tr Transport, topic, group string, hub *Hub) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	dctx := injectCodec(ctx, hub.codec)
	ts, err := tr.Subscribe(ctx, topic, group, func(d Delivery) {
		msg, err := DecodeMessage(dctx, d.Envelope().Payload)
		if err != nil {
			hub.notifyAsync(Event{Type: Error, Consumer: "mirror:" + topic, Err: err})
			_ = d.Nack(ctx, err)
			return
		}
		if err := hub.Publish(ctx, msg); err != nil {
			_ = d.Nack(ctx, err)
			return
		}
		_ = d.Ack(ctx)
	})
	if err != nil {
		return fmt.Errorf("xchat: mirror subscribe %s: %w", topic, err)
	}
	<-ctx.Done()
	return ts.Close()
}
