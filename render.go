package xchat

import (
	"html/template"
	"strings"
)

var htmlTemplate = template.Must(template.New("chat-msg").Parse(
	`<div class="chat-msg"><span style="color: {{.Color}}">{{.Label}}</span> {{.Time}} <b>{{.Author}}</b>: {{.Text}}</div>`,
))

type htmlView struct {
	Color  string
	Label  string
	Time   string
	Author string
	Text   string
}

// HTML renders the message as a single escaped markup fragment for web relays.
func (m Message) HTML() string {
	var b strings.Builder
	_ = htmlTemplate.Execute(&b, htmlView{
		Color:  m.Source.CSSColor(),
		Label:  strings.TrimSpace(m.Source.Label()),
		Time:   m.Timestamp.Local().Format("15:04"),
		Author: m.Author,
		Text:   m.Text,
	})
	return b.String()
}
