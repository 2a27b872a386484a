package printer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trickstertwo/xchat"
)

func TestHandle_PlainLine(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, WithPlain())

	ts := time.Date(2024, 1, 11, 20, 15, 0, 0, time.UTC)
	msg := xchat.NewMessage(xchat.SourceDgg, ts, "bob", "hello there", "MSG {}")
	require.NoError(t, p.Handle(context.Background(), msg))

	want := "[dgg     " + ts.Local().Format("15:04") + " bob] hello there\n"
	assert.Equal(t, want, buf.String())
}

func TestHandle_StyledContainsFields(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf)

	msg := xchat.NewMessage(xchat.SourceYouTube, time.Now(), "alice", "gg :kappa: wp", "{}")
	require.NoError(t, p.Handle(context.Background(), msg))

	out := buf.String()
	assert.Contains(t, out, "youtube")
	assert.Contains(t, out, "alice")
	assert.True(t, strings.HasSuffix(out, "gg :kappa: wp\n"))
}

func TestHandle_OneLinePerMessage(t *testing.T) {
	var buf bytes.Buffer
	p := New(&buf, WithPlain())

	for _, src := range xchat.Sources {
		require.NoError(t, p.Handle(context.Background(), xchat.NewMessage(src, time.Now(), "a", "b", "")))
	}
	assert.Equal(t, len(xchat.Sources), strings.Count(buf.String(), "\n"))
}
