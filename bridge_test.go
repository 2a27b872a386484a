package xchat_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xchat"
	"github.com/trickstertwo/xchat/adapter/memory"
)

func TestForwardAndMirrorOverTransport(t *testing.T) {
	tr, err := xchat.NewTransport(memory.TransportName, map[string]any{"buffer_size": 64})
	require.NoError(t, err)
	defer tr.Close(context.Background())

	producer, err := xchat.NewHubBuilder().WithCapacity(16).Build()
	require.NoError(t, err)
	consumer, err := xchat.NewHubBuilder().WithCapacity(16).Build()
	require.NoError(t, err)
	defer consumer.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrorDone := make(chan error, 1)
	go func() { mirrorDone <- xchat.Mirror(ctx, tr, "chat", "relay", consumer) }()
	forwardDone := make(chan error, 1)
	go func() { forwardDone <- xchat.Forward(ctx, producer, tr, "chat") }()

	sub := consumer.Subscribe()
	// Let Forward subscribe and Mirror bind its group before publishing.
	require.Eventually(t, func() bool { return producer.GetMetrics().Subscribers == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	ts := time.Date(2024, 3, 1, 20, 15, 0, 0, time.UTC)
	sent := xchat.NewMessage(xchat.SourceYouTube, ts, "viewer", "gg :kappa: wp", `{"addChatItemAction":{}}`)
	require.NoError(t, producer.Publish(ctx, sent))

	rctx, rcancel := context.WithTimeout(ctx, 2*time.Second)
	defer rcancel()
	got, err := sub.Recv(rctx)
	require.NoError(t, err)
	assert.Equal(t, sent.Source, got.Source)
	assert.Equal(t, sent.Author, got.Author)
	assert.Equal(t, sent.Text, got.Text)
	assert.Equal(t, sent.Raw, got.Raw)
	assert.True(t, sent.Timestamp.Equal(got.Timestamp))

	// Closing the producer ends Forward cleanly.
	require.NoError(t, producer.Close(context.Background()))
	select {
	case err := <-forwardDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("forward did not stop")
	}

	cancel()
	select {
	case err := <-mirrorDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
}

func TestMirrorNacksUndecodableEnvelopes(t *testing.T) {
	tr := memory.New(memory.Config{BufferSize: 8})
	defer tr.Close(context.Background())
	hub, err := xchat.NewHubBuilder().Build()
	require.NoError(t, err)
	defer hub.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- xchat.Mirror(ctx, tr, "chat", "g", hub) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, tr.Publish(ctx, "chat", &xchat.Envelope{Name: "dgg", Payload: []byte(`{"source":"irc"}`)}))
	require.Eventually(t, func() bool { return tr.Stats().Nacked == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, hub.GetMetrics().Published)

	cancel()
	<-done
}

func TestForwardRejectsEmptyTopic(t *testing.T) {
	hub, err := xchat.NewHubBuilder().Build()
	require.NoError(t, err)
	defer hub.Close(context.Background())
	assert.ErrorIs(t, xchat.Forward(context.Background(), hub, memory.New(memory.Defaults()), ""), xchat.ErrInvalidTopic)
}

func TestUnknownTransport(t *testing.T) {
	_, err := xchat.NewTransport("carrier-pigeon", nil)
	assert.Error(t, err)
}
