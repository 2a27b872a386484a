// Package printer writes messages to a terminal, one line each, with the
// source label colored per source.
package printer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/trickstertwo/xchat"
)

// Printer is an xchat.Handler that writes console lines.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	plain  bool
	styles map[xchat.Source]lipgloss.Style
	author lipgloss.Style
}

type Option func(*Printer)

// WithPlain disables styling, which keeps output stable for pipes and tests.
func WithPlain() Option {
	return func(p *Printer) { p.plain = true }
}

func New(w io.Writer, opts ...Option) *Printer {
	p := &Printer{
		w:      w,
		styles: make(map[xchat.Source]lipgloss.Style, len(xchat.Sources)),
		author: lipgloss.NewStyle().Bold(true),
	}
	for _, src := range xchat.Sources {
		p.styles[src] = lipgloss.NewStyle().Foreground(lipgloss.Color(src.Color()))
	}
	for _, o := range opts {
		if o != nil {
			o(p)
		}
	}
	return p
}

// Format renders "[label HH:MM author] text" in local time.
func (p *Printer) Format(msg xchat.Message) string {
	if p.plain {
		return msg.String()
	}
	label := msg.Source.Label()
	if st, ok := p.styles[msg.Source]; ok {
		label = st.Render(label)
	}
	return fmt.Sprintf("[%s %s %s] %s",
		label,
		msg.Timestamp.Local().Format("15:04"),
		p.author.Render(msg.Author),
		msg.Text,
	)
}

// Handle prints msg. It satisfies xchat.Handler.
func (p *Printer) Handle(_ context.Context, msg xchat.Message) error {
	line := p.Format(msg)
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, line)
	return err
}
