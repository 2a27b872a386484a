package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xchat"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "messages.sqlite3"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreInsertAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 30, 0, 123456000, time.UTC)

	first := xchat.NewMessage(xchat.SourceDgg, ts, "alice", "hello", `MSG {"nick":"alice"}`)
	second := xchat.NewMessage(xchat.SourceKick, ts.Add(time.Second), "bob", "hi there", `{"content":"hi there"}`)

	id1, err := s.Insert(ctx, first)
	require.NoError(t, err)
	require.NoError(t, s.Handle(ctx, second))

	recs, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "kick", recs[0].Service)
	assert.Equal(t, "bob", recs[0].Message.Author)
	assert.Equal(t, second.Raw, recs[0].Message.Raw)

	assert.Equal(t, id1, recs[1].ID)
	assert.Equal(t, "dgg", recs[1].Service)
	assert.True(t, first.Timestamp.Equal(recs[1].Message.Timestamp))
	assert.Equal(t, first.Text, recs[1].Message.Text)
}

func TestStoreCountBySource(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		_, err := s.Insert(ctx, xchat.NewMessage(xchat.SourceYouTube, now, "viewer", "gg", "{}"))
		require.NoError(t, err)
	}
	_, err := s.Insert(ctx, xchat.NewMessage(xchat.SourceDgg, now, "a", "b", "MSG {}"))
	require.NoError(t, err)

	n, err := s.Count(ctx, xchat.SourceYouTube)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = s.Count(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestStoreReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.sqlite3")
	ctx := context.Background()

	s, err := Open(ctx, path)
	require.NoError(t, err)
	_, err = s.Insert(ctx, xchat.NewMessage(xchat.SourceDgg, time.Now(), "a", "b", "MSG {}"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	n, err := s.Count(ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestStorePublishedAtFormat(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678901000, time.UTC)
	_, err := s.Insert(ctx, xchat.NewMessage(xchat.SourceDgg, ts, "a", "b", "MSG {}"))
	require.NoError(t, err)

	var raw string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT published_at FROM msgs`).Scan(&raw))
	assert.Equal(t, "2024-01-02T03:04:05.678901Z", raw)

	parsed, err := PublishedAt(raw)
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	assert.Error(t, err)
}

func TestUpSection(t *testing.T) {
	got := upSection("-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;")
	assert.Equal(t, "\nCREATE TABLE a(x);\n", got)
}
