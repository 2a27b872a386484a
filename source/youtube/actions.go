package youtube

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/trickstertwo/xchat"
)

// ActionKind is the single key that names a live chat action.
type ActionKind string

const (
	ActionAddChatItem           ActionKind = "addChatItemAction"
	ActionRemoveChatItem        ActionKind = "removeChatItemAction"
	ActionRemoveByAuthor        ActionKind = "removeChatItemByAuthorAction"
	ActionMarkDeletedByAuthor   ActionKind = "markChatItemsByAuthorAsDeletedAction"
	ActionReplaceChatItem       ActionKind = "replaceChatItemAction"
	ActionAddTickerItem         ActionKind = "addLiveChatTickerItemAction"
	ActionAddBanner             ActionKind = "addBannerToLiveChatCommand"
	ActionRemoveBanner          ActionKind = "removeBannerForLiveChatCommand"
	ActionUpdatePoll            ActionKind = "updateLiveChatPollAction"
	ActionShowPoll              ActionKind = "showLiveChatActionPanelAction"
	ActionCloseActionPanel      ActionKind = "closeLiveChatActionPanelAction"
	ActionModerationStateReport ActionKind = "liveChatReportModerationStateCommand"
)

// RendererKind is the single key that names the payload of an added item.
type RendererKind string

const (
	RendererTextMessage      RendererKind = "liveChatTextMessageRenderer"
	RendererPaidMessage      RendererKind = "liveChatPaidMessageRenderer"
	RendererPaidSticker      RendererKind = "liveChatPaidStickerRenderer"
	RendererMembershipItem   RendererKind = "liveChatMembershipItemRenderer"
	RendererViewerEngagement RendererKind = "liveChatViewerEngagementMessageRenderer"
	RendererPlaceholder      RendererKind = "liveChatPlaceholderItemRenderer"
	RendererModeChange       RendererKind = "liveChatModeChangeMessageRenderer"
	RendererGiftPurchase     RendererKind = "liveChatSponsorshipsGiftPurchaseAnnouncementRenderer"
	RendererGiftRedemption   RendererKind = "liveChatSponsorshipsGiftRedemptionAnnouncementRenderer"
)

// trackingKey rides along with some actions and never names a kind.
const trackingKey = "clickTrackingParams"

// Run is one fragment of a message body: either text or an emoji.
type Run struct {
	Text  *string `json:"text,omitempty"`
	Emoji *Emoji  `json:"emoji,omitempty"`
}

type Emoji struct {
	EmojiID       string   `json:"emojiId"`
	Shortcuts     []string `json:"shortcuts"`
	IsCustomEmoji bool     `json:"isCustomEmoji"`
}

// String is the plain-text form of the run.
func (r Run) String() string {
	switch {
	case r.Emoji != nil:
		if r.Emoji.IsCustomEmoji && len(r.Emoji.Shortcuts) > 0 {
			return r.Emoji.Shortcuts[0]
		}
		return r.Emoji.EmojiID
	case r.Text != nil:
		return *r.Text
	default:
		return ""
	}
}

// JoinRuns concatenates runs in order.
func JoinRuns(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		b.WriteString(r.String())
	}
	return b.String()
}

type textMessageRenderer struct {
	ID      string `json:"id"`
	Message struct {
		Runs []Run `json:"runs"`
	} `json:"message"`
	AuthorName struct {
		SimpleText string `json:"simpleText"`
	} `json:"authorName"`
	TimestampUsec string `json:"timestampUsec"`
}

// soleKey returns the only meaningful key of obj.
func soleKey(obj map[string]json.RawMessage) (string, bool) {
	var key string
	n := 0
	for k := range obj {
		if k == trackingKey {
			continue
		}
		key = k
		n++
	}
	return key, n == 1
}

// decodeAction turns one action into a message. ok is false for every
// action that is not a plain text chat message.
func decodeAction(raw json.RawMessage) (msg xchat.Message, ok bool, err error) {
	var action map[string]json.RawMessage
	if err := json.Unmarshal(raw, &action); err != nil {
		return xchat.Message{}, false, fmt.Errorf("youtube: decode action: %w", err)
	}
	kind, single := soleKey(action)
	if !single {
		return xchat.Message{}, false, nil
	}

	switch ActionKind(kind) {
	case ActionAddChatItem:
		var add struct {
			Item json.RawMessage `json:"item"`
		}
		if err := json.Unmarshal(action[kind], &add); err != nil {
			return xchat.Message{}, false, fmt.Errorf("youtube: decode %s: %w", kind, err)
		}
		if len(add.Item) == 0 {
			return xchat.Message{}, false, &PathError{Path: kind + ".item"}
		}
		return decodeItem(add.Item)
	case ActionRemoveChatItem, ActionRemoveByAuthor, ActionMarkDeletedByAuthor,
		ActionReplaceChatItem, ActionAddTickerItem, ActionAddBanner, ActionRemoveBanner,
		ActionUpdatePoll, ActionShowPoll, ActionCloseActionPanel, ActionModerationStateReport:
		return xchat.Message{}, false, nil
	default:
		return xchat.Message{}, false, nil
	}
}

func decodeItem(item json.RawMessage) (xchat.Message, bool, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil {
		return xchat.Message{}, false, fmt.Errorf("youtube: decode item: %w", err)
	}
	kind, single := soleKey(fields)
	if !single {
		return xchat.Message{}, false, nil
	}

	switch RendererKind(kind) {
	case RendererTextMessage:
		var r textMessageRenderer
		if err := json.Unmarshal(fields[kind], &r); err != nil {
			return xchat.Message{}, false, fmt.Errorf("youtube: decode %s: %w", kind, err)
		}
		if r.TimestampUsec == "" {
			return xchat.Message{}, false, &PathError{Path: kind + ".timestampUsec"}
		}
		usec, err := strconv.ParseInt(r.TimestampUsec, 10, 64)
		if err != nil {
			return xchat.Message{}, false, fmt.Errorf("youtube: timestampUsec %q: %w", r.TimestampUsec, err)
		}
		var compact bytes.Buffer
		if err := json.Compact(&compact, item); err != nil {
			return xchat.Message{}, false, fmt.Errorf("youtube: compact item: %w", err)
		}
		return xchat.NewMessage(
			xchat.SourceYouTube,
			time.UnixMicro(usec),
			r.AuthorName.SimpleText,
			JoinRuns(r.Message.Runs),
			compact.String(),
		), true, nil
	case RendererPaidMessage, RendererPaidSticker, RendererMembershipItem, RendererViewerEngagement,
		RendererPlaceholder, RendererModeChange, RendererGiftPurchase, RendererGiftRedemption:
		return xchat.Message{}, false, nil
	default:
		return xchat.Message{}, false, nil
	}
}
