package relay

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/trickstertwo/xchat"
)

func newHub(t *testing.T) *xchat.Hub {
	t.Helper()
	h, err := xchat.NewHubBuilder().WithCapacity(16).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var frame string
	require.NoError(t, websocket.Message.Receive(conn, &frame))
	return frame
}

func sample() xchat.Message {
	return xchat.NewMessage(xchat.SourceKick, time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC), "bob", "<b>hi</b>", "")
}

func TestRelaySendsRenderedMessages(t *testing.T) {
	cases := []struct {
		format Format
		check  func(t *testing.T, frame string)
	}{
		{FormatHTML, func(t *testing.T, frame string) {
			assert.Contains(t, frame, `class="chat-msg"`)
			assert.Contains(t, frame, "&lt;b&gt;hi&lt;/b&gt;")
		}},
		{FormatJSON, func(t *testing.T, frame string) {
			assert.Contains(t, frame, `"source":"kick"`)
			assert.Contains(t, frame, `"author":"bob"`)
		}},
		{FormatText, func(t *testing.T, frame string) {
			assert.Equal(t, sample().String(), frame)
		}},
	}
	for _, tc := range cases {
		t.Run(string(tc.format), func(t *testing.T) {
			hub := newHub(t)
			rs := New(hub, Config{Format: tc.format})
			srv := httptest.NewServer(rs.Handler())
			defer srv.Close()

			conn := dial(t, srv, DefaultPath)
			require.Eventually(t, func() bool { return rs.Active() == 1 }, 5*time.Second, time.Millisecond)

			require.NoError(t, hub.Publish(context.Background(), sample()))
			tc.check(t, receive(t, conn))
			assert.Eventually(t, func() bool { return rs.Served() == 1 }, time.Second, time.Millisecond)
		})
	}
}

func TestRelayFansOutToEveryClient(t *testing.T) {
	hub := newHub(t)
	rs := New(hub, Config{Format: FormatText})
	srv := httptest.NewServer(rs.Handler())
	defer srv.Close()

	a := dial(t, srv, DefaultPath)
	b := dial(t, srv, DefaultPath)
	require.Eventually(t, func() bool { return rs.Active() == 2 }, 5*time.Second, time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), sample()))
	assert.Equal(t, receive(t, a), receive(t, b))

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return rs.Active() == 1 }, 5*time.Second, time.Millisecond)
}

func TestRelayUpProbe(t *testing.T) {
	hub := newHub(t)
	srv := httptest.NewServer(New(hub, Config{}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/up")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, hub.Close(context.Background()))
	resp, err = http.Get(srv.URL + "/up")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRelayRejectsPost(t *testing.T) {
	srv := httptest.NewServer(New(newHub(t), Config{}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+DefaultPath, "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	rs := New(newHub(t), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/up")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
