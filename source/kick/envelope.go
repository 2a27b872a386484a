package kick

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/trickstertwo/xchat"
)

// Pusher event names seen on the chat socket.
const (
	EventChatMessage           = `App\Events\ChatMessageEvent`
	EventMessageDeleted        = `App\Events\MessageDeletedEvent`
	EventUserBanned            = `App\Events\UserBannedEvent`
	EventConnectionEstablished = "pusher:connection_established"
	EventSubscriptionSucceeded = "pusher_internal:subscription_succeeded"
	EventPing                  = "pusher:ping"
	EventPong                  = "pusher:pong"
	EventSubscribe             = "pusher:subscribe"
	EventError                 = "pusher:error"
)

var ErrDataNotString = errors.New("kick: envelope data is not a JSON string")

// Envelope is the outer Pusher frame. Data usually holds a JSON document
// encoded as a string; control frames may carry an object instead.
type Envelope struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Channel string          `json:"channel,omitempty"`
}

// ChatData is the decoded Data of a chat message event.
type ChatData struct {
	ID         string `json:"id"`
	ChatroomID int64  `json:"chatroom_id"`
	Content    string `json:"content"`
	Type       string `json:"type"`
	CreatedAt  string `json:"created_at"`
	Sender     Sender `json:"sender"`
}

type Sender struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Slug     string `json:"slug"`
}

// DecodeEnvelope parses the outer frame.
func DecodeEnvelope(frame string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(frame), &env); err != nil {
		return Envelope{}, fmt.Errorf("kick: decode envelope: %w", err)
	}
	return env, nil
}

// InnerJSON returns the JSON document carried as a string in Data.
func (e Envelope) InnerJSON() ([]byte, error) {
	var inner string
	if err := json.Unmarshal(e.Data, &inner); err != nil {
		return nil, ErrDataNotString
	}
	return []byte(inner), nil
}

// DecodeChat performs the second decode of a chat event and builds the
// message; raw is the full outer frame.
func DecodeChat(env Envelope, raw string) (xchat.Message, error) {
	inner, err := env.InnerJSON()
	if err != nil {
		return xchat.Message{}, err
	}
	var data ChatData
	if err := json.Unmarshal(inner, &data); err != nil {
		return xchat.Message{}, fmt.Errorf("kick: decode chat data: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, data.CreatedAt)
	if err != nil {
		return xchat.Message{}, fmt.Errorf("kick: created_at: %w", err)
	}
	return xchat.NewMessage(xchat.SourceKick, ts, data.Sender.Username, StripEmotes(data.Content), raw), nil
}

var emoteToken = regexp.MustCompile(`\[emote:\d+:([^\]]*)\]`)

// StripEmotes rewrites "[emote:123:name]" tokens to "name".
func StripEmotes(s string) string {
	return emoteToken.ReplaceAllString(s, "$1")
}

// SubscribeFrame is the request that joins a channel.
func SubscribeFrame(channel string) map[string]any {
	return map[string]any{
		"event": EventSubscribe,
		"data":  map[string]string{"auth": "", "channel": channel},
	}
}

// PongFrame answers a server ping.
func PongFrame() map[string]any {
	return map[string]any{"event": EventPong, "data": map[string]any{}}
}
