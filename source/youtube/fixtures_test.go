package youtube

import (
	"encoding/json"
	"fmt"
	"strings"
)

const testStreamID = "abc123XYZ"

type pageOpts struct {
	noMarker     bool
	apiKey       string
	canonical    string
	initialData  string
	dataAssigner string
}

func livePage(o pageOpts) string {
	key := o.apiKey
	if key == "" {
		key = "KEY123"
	}
	canonical := o.canonical
	if canonical == "" {
		canonical = "https://www.youtube.com/watch?v=" + testStreamID + "&feature=share"
	}
	marker := ytplayerMarker
	if o.noMarker {
		marker = "(function() {window.other={};"
	}
	data := o.initialData
	if data == "" {
		data = initialData("Live chat", "LIVE-CONT")
	}
	assigner := o.dataAssigner
	if assigner == "" {
		assigner = "var ytInitialData = "
	}
	return `<!DOCTYPE html><html><head>
<link rel="canonical" href="` + canonical + `">
<script nonce="x">` + marker + `ytcfg.set({"INNERTUBE_API_KEY":"` + key + `","INNERTUBE_CLIENT_VERSION":"2.0"}); window.ytcfg.obfuscatedData_ = [];})();</script>
</head><body>
<script nonce="y">` + assigner + data + `;var meta = {};</script>
</body></html>`
}

func initialData(title, cont string) string {
	return `{"contents":{"twoColumnWatchNextResults":{"conversationBar":{"liveChatRenderer":{"header":{"liveChatHeaderRenderer":{"viewSelector":{"sortFilterSubMenuRenderer":{"subMenuItems":[` +
		`{"title":"Top chat","continuation":{"reloadContinuationData":{"continuation":"TOP-CONT"}}},` +
		`{"title":"` + title + `","continuation":{"reloadContinuationData":{"continuation":"` + cont + `"}}}` +
		`]}}}}}}}}}`
}

func textAction(id, author, usec string, runs ...string) string {
	return `{"clickTrackingParams":"CAEQ","addChatItemAction":{"item":{"liveChatTextMessageRenderer":{"id":"` + id +
		`","message":{"runs":[` + strings.Join(runs, ",") + `]},"authorName":{"simpleText":"` + author +
		`"},"timestampUsec":"` + usec + `"}},"clientId":"c1"}}`
}

func textRun(s string) string {
	b, _ := json.Marshal(s)
	return `{"text":` + string(b) + `}`
}

func emojiRun(id, shortcut string, custom bool) string {
	return fmt.Sprintf(`{"emoji":{"emojiId":%q,"shortcuts":[%q],"isCustomEmoji":%t}}`, id, shortcut, custom)
}

func pollBody(next string, timeoutMs int, actions ...string) string {
	return `{"responseContext":{},"continuationContents":{"liveChatContinuation":{"continuations":[{"invalidationContinuationData":{"continuation":"` +
		next + `","timeoutMs":` + fmt.Sprint(timeoutMs) + `}}],"actions":[` + strings.Join(actions, ",") + `]}}}`
}

const endedBody = `{"responseContext":{},"continuationContents":{"liveChatContinuation":{"actions":[]}}}`
