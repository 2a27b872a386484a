package dgg

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trickstertwo/xchat"
)

// FrameType is the leading token of a chat frame.
type FrameType string

const (
	FrameMsg       FrameType = "MSG"
	FrameJoin      FrameType = "JOIN"
	FrameQuit      FrameType = "QUIT"
	FrameNames     FrameType = "NAMES"
	FrameBroadcast FrameType = "BROADCAST"
	FramePrivMsg   FrameType = "PRIVMSG"
	FrameMute      FrameType = "MUTE"
	FrameBan       FrameType = "BAN"
	FrameUnban     FrameType = "UNBAN"
	FrameSubOnly   FrameType = "SUBONLY"
	FramePing      FrameType = "PING"
	FramePong      FrameType = "PONG"
	FrameRefresh   FrameType = "REFRESH"
	FrameErr       FrameType = "ERR"
)

var (
	ErrEmptyFrame       = errors.New("dgg: empty frame")
	ErrMissingTimestamp = errors.New("dgg: chat payload has no timestamp")
)

// ChatPayload is the JSON body of a MSG frame.
type ChatPayload struct {
	ID          int64     `json:"id"`
	Nick        string    `json:"nick"`
	Roles       []string  `json:"roles"`
	Features    []string  `json:"features"`
	CreatedDate string    `json:"createdDate"`
	Timestamp   int64     `json:"timestamp"` // unix ms
	Data        string    `json:"data"`
	Watching    *Watching `json:"watching,omitempty"`
}

type Watching struct {
	Platform string `json:"platform"`
	ID       string `json:"id"`
}

// SplitFrame cuts a frame at the first space into its type and payload.
// A frame without a space is all type.
func SplitFrame(frame string) (FrameType, string) {
	typ, payload, _ := strings.Cut(frame, " ")
	return FrameType(typ), payload
}

// ParseFrame converts one raw frame into a message. ok is false for frame
// kinds that carry no chat content.
func ParseFrame(frame string) (msg xchat.Message, ok bool, err error) {
	if strings.TrimSpace(frame) == "" {
		return xchat.Message{}, false, ErrEmptyFrame
	}
	typ, payload := SplitFrame(frame)
	switch typ {
	case FrameMsg:
		var p ChatPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return xchat.Message{}, false, fmt.Errorf("dgg: decode MSG payload: %w", err)
		}
		if p.Timestamp == 0 {
			return xchat.Message{}, false, ErrMissingTimestamp
		}
		return xchat.NewMessage(xchat.SourceDgg, time.UnixMilli(p.Timestamp), p.Nick, p.Data, frame), true, nil
	case FrameJoin, FrameQuit, FrameNames, FrameBroadcast, FramePrivMsg,
		FrameMute, FrameBan, FrameUnban, FrameSubOnly,
		FramePing, FramePong, FrameRefresh, FrameErr:
		return xchat.Message{}, false, nil
	default:
		return xchat.Message{}, false, nil
	}
}
