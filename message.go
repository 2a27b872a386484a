package xchat

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the chat backend a Message came from.
type Source uint8

const (
	// SourceDgg is the destiny.gg community chat (line protocol over WebSocket).
	SourceDgg Source = iota + 1
	// SourceKick is kick.com chat relayed through a Pusher socket.
	SourceKick
	// SourceYouTube is YouTube live chat obtained by page scrape and polling.
	SourceYouTube
)

// Sources lists every known Source in display order.
var Sources = []Source{SourceDgg, SourceYouTube, SourceKick}

func (s Source) String() string {
	switch s {
	case SourceDgg:
		return "dgg"
	case SourceKick:
		return "kick"
	case SourceYouTube:
		return "youtube"
	default:
		return fmt.Sprintf("source(%d)", uint8(s))
	}
}

// Label is the fixed-width name used in console output.
func (s Source) Label() string {
	switch s {
	case SourceDgg:
		return "dgg    "
	case SourceKick:
		return "kick   "
	case SourceYouTube:
		return "youtube"
	default:
		return fmt.Sprintf("%-7s", s.String())
	}
}

// Color is the ANSI-256 terminal color for the source label.
func (s Source) Color() string {
	switch s {
	case SourceDgg:
		return "12"
	case SourceKick:
		return "10"
	case SourceYouTube:
		return "9"
	default:
		return "7"
	}
}

// CSSColor is the color name used when rendering HTML.
func (s Source) CSSColor() string {
	switch s {
	case SourceDgg:
		return "blue"
	case SourceKick:
		return "green"
	case SourceYouTube:
		return "red"
	default:
		return "gray"
	}
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceDgg, SourceKick, SourceYouTube:
		return true
	default:
		return false
	}
}

// ParseSource maps a source name back to its Source.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dgg":
		return SourceDgg, nil
	case "kick":
		return SourceKick, nil
	case "youtube":
		return SourceYouTube, nil
	default:
		return 0, fmt.Errorf("xchat: unknown source %q", name)
	}
}

func (s Source) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("xchat: cannot marshal %s", s)
	}
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	v, err := ParseSource(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Message is the normalized chat event every source produces.
// It only holds value fields, so a copy handed to a consumer can never
// alias another consumer's copy.
type Message struct {
	Source    Source    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	// Raw is the verbatim payload the message was decoded from.
	Raw string `json:"raw"`
}

// NewMessage builds a Message, normalizing ts to UTC.
func NewMessage(src Source, ts time.Time, author, text, raw string) Message {
	return Message{
		Source:    src,
		Timestamp: ts.UTC(),
		Author:    author,
		Text:      text,
		Raw:       raw,
	}
}

// String renders the console line "[label HH:MM author] text" in local time.
func (m Message) String() string {
	return fmt.Sprintf("[%s %s %s] %s", m.Source.Label(), m.Timestamp.Local().Format("15:04"), m.Author, m.Text)
}
