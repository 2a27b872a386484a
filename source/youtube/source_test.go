package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xchat"
)

type collector struct {
	mu   sync.Mutex
	msgs []xchat.Message
}

func (c *collector) Publish(_ context.Context, msg xchat.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Text)
	}
	return out
}

// fakeYouTube serves a live page and a scripted get_live_chat sequence keyed
// by the continuation the client sends.
type fakeYouTube struct {
	mu       sync.Mutex
	polls    []string
	keys     []string
	failOnce map[string]bool
	replies  map[string]string
}

func (f *fakeYouTube) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /@destiny/live", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(livePage(pageOpts{})))
	})
	mux.HandleFunc("POST /youtubei/v1/live_chat/get_live_chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Context struct {
				Client map[string]any `json:"client"`
			} `json:"context"`
			Continuation string `json:"continuation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Context.Client == nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.polls = append(f.polls, req.Continuation)
		f.keys = append(f.keys, r.URL.Query().Get("key"))
		fail := f.failOnce[req.Continuation]
		delete(f.failOnce, req.Continuation)
		reply, ok := f.replies[req.Continuation]
		f.mu.Unlock()

		if fail {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			reply = endedBody
		}
		_, _ = w.Write([]byte(reply))
	})
	return mux
}

func (f *fakeYouTube) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.polls...)
}

func testConfig(base string) Config {
	return Config{
		Channel:         "destiny",
		BaseURL:         base,
		PollInterval:    time.Millisecond,
		MinPollInterval: time.Millisecond,
		RetryDelay:      time.Millisecond,
	}
}

func TestRunSkipsHistoryAndEndsWithFeed(t *testing.T) {
	history := pollBody("C1", 1, textAction("h", "old", "1700000000000000", textRun("history")))
	live := pollBody("C2", 1,
		textAction("a", "alice", "1700000001000000", textRun("gg "), emojiRun("UC/kappa", ":kappa:", true), textRun(" wp")),
		textAction("b", "bob", "1700000002000000", textRun("second")),
	)
	fake := &fakeYouTube{
		failOnce: map[string]bool{"C1": true},
		replies:  map[string]string{"LIVE-CONT": history, "C1": live},
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	pub := &collector{}
	src := New(testConfig(srv.URL), WithHTTPClient(srv.Client()))
	assert.Equal(t, "youtube", src.Name())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := src.Run(ctx, pub)

	require.ErrorIs(t, err, ErrFeedEnded)
	assert.Equal(t, []string{"gg :kappa: wp", "second"}, pub.texts())
	assert.Equal(t, []string{"LIVE-CONT", "C1", "C1", "C2"}, fake.seen())
	for _, k := range fake.keys {
		assert.Equal(t, "KEY123", k)
	}
}

func TestRunSeedContinuation(t *testing.T) {
	fake := &fakeYouTube{replies: map[string]string{
		"SEED": pollBody("N1", 1),
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Continuation = "SEED"
	err := New(cfg, WithHTTPClient(srv.Client())).Run(context.Background(), &collector{})

	require.ErrorIs(t, err, ErrFeedEnded)
	assert.Equal(t, []string{"SEED", "N1"}, fake.seen())
}

func TestRunBootstrapFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	err := New(testConfig(srv.URL), WithHTTPClient(srv.Client())).Run(context.Background(), &collector{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetch)
	assert.Contains(t, err.Error(), "bootstrap")
}

func TestRunStopsOnCancel(t *testing.T) {
	fake := &fakeYouTube{replies: map[string]string{
		"LIVE-CONT": pollBody("LIVE-CONT", 1),
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(testConfig(srv.URL), WithHTTPClient(srv.Client())).Run(ctx, &collector{})
	}()

	require.Eventually(t, func() bool { return len(fake.seen()) >= 3 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLivePageURL(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/@destiny/live", Config{Channel: "destiny"}.LivePageURL())
	assert.Equal(t, "http://x/live/destiny", Config{Channel: "destiny", PageURL: "http://x/live/%s"}.LivePageURL())
	assert.Equal(t, "http://fixed", Config{Channel: "destiny", PageURL: "http://fixed"}.LivePageURL())
}
