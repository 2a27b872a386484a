package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
)

const (
	ytplayerMarker    = "(function() {window.ytplayer={};"
	ytcfgStart        = "ytcfg.set("
	ytcfgEnd          = "); window.ytcfg.obfuscatedData_"
	subMenuItemsPath  = "contents.twoColumnWatchNextResults.conversationBar.liveChatRenderer.header.liveChatHeaderRenderer.viewSelector.sortFilterSubMenuRenderer.subMenuItems"
	liveChatMenuTitle = "Live chat"
	maxPageBytes      = 16 << 20
)

var initialDataMarkers = []string{"var ytInitialData = ", `window["ytInitialData"] = `}

var (
	headScripts   = cascadia.MustCompile("head > script")
	allScripts    = cascadia.MustCompile("script")
	canonicalLink = cascadia.MustCompile("head > link[rel=canonical]")
)

// Session is the polling state of one adapter task. It is created by
// bootstrap, advanced after every successful poll and never shared.
type Session struct {
	APIKey       string
	StreamID     string
	Continuation string

	// firstBatchSeen flips on the first successful poll. That batch is the
	// history already rendered on the page and is not emitted.
	firstBatchSeen bool
}

// GetSession loads the channel's live page and extracts the API key, stream
// id and seed continuation. A transport or status failure is a *FetchError;
// any markup mismatch is a *LayoutError naming the stage that broke.
func GetSession(ctx context.Context, client *http.Client, cfg Config) (*Session, error) {
	if cfg.Channel == "" && cfg.PageURL == "" {
		return nil, ErrChannelRequired
	}
	page, err := fetchPage(ctx, client, cfg.LivePageURL())
	if err != nil {
		return nil, err
	}
	return ParsePage(page, cfg.Continuation)
}

func fetchPage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header = pageHeaders()
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return body, nil
}

// ParsePage extracts a Session from a live page. When seed is non-empty it
// is used as the continuation and the initial data blob is not required.
func ParsePage(page []byte, seed string) (*Session, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, layoutErr(StageConfigScript, "page is not parseable HTML", err)
	}

	cfg, err := extractConfig(doc)
	if err != nil {
		return nil, err
	}
	key := gjson.GetBytes(cfg, "INNERTUBE_API_KEY")
	if key.Type != gjson.String || key.String() == "" {
		return nil, layoutErr(StageAPIKey, "INNERTUBE_API_KEY missing from ytcfg", nil)
	}

	streamID, err := extractStreamID(doc)
	if err != nil {
		return nil, err
	}

	cont := seed
	if cont == "" {
		if cont, err = extractContinuation(doc); err != nil {
			return nil, err
		}
	}

	return &Session{APIKey: key.String(), StreamID: streamID, Continuation: cont}, nil
}

func extractConfig(doc *html.Node) ([]byte, error) {
	for _, n := range headScripts.MatchAll(doc) {
		text := nodeText(n)
		if !strings.Contains(text, ytplayerMarker) {
			continue
		}
		_, rest, ok := strings.Cut(text, ytcfgStart)
		if !ok {
			return nil, layoutErr(StageConfigScript, "ytcfg.set( not found in player script", nil)
		}
		raw, _, ok := strings.Cut(rest, ytcfgEnd)
		if !ok {
			return nil, layoutErr(StageConfigScript, "ytcfg end delimiter not found", nil)
		}
		if !gjson.Valid(raw) {
			return nil, layoutErr(StageConfigScript, "ytcfg is not valid JSON", nil)
		}
		return []byte(raw), nil
	}
	return nil, layoutErr(StageConfigScript, "no head script contains the ytplayer marker", nil)
}

func extractStreamID(doc *html.Node) (string, error) {
	link := canonicalLink.MatchFirst(doc)
	if link == nil {
		return "", layoutErr(StageStreamID, "canonical link not found", nil)
	}
	href := attr(link, "href")
	_, id, ok := strings.Cut(href, "v=")
	if !ok || id == "" {
		return "", layoutErr(StageStreamID, fmt.Sprintf("canonical link %q has no v= parameter", href), nil)
	}
	id, _, _ = strings.Cut(id, "&")
	return id, nil
}

func extractContinuation(doc *html.Node) (string, error) {
	data, err := extractInitialData(doc)
	if err != nil {
		return "", err
	}
	items := gjson.GetBytes(data, subMenuItemsPath)
	if !items.IsArray() {
		return "", layoutErr(StageContinuation, "live chat sub menu items not found", nil)
	}
	var cont string
	items.ForEach(func(_, item gjson.Result) bool {
		if item.Get("title").String() != liveChatMenuTitle {
			return true
		}
		cont = item.Get("continuation.reloadContinuationData.continuation").String()
		return false
	})
	if cont == "" {
		return "", layoutErr(StageContinuation, "no \"Live chat\" item with a reload continuation", nil)
	}
	return cont, nil
}

func extractInitialData(doc *html.Node) ([]byte, error) {
	for _, n := range allScripts.MatchAll(doc) {
		text := nodeText(n)
		for _, marker := range initialDataMarkers {
			_, rest, ok := strings.Cut(text, marker)
			if !ok {
				continue
			}
			var raw json.RawMessage
			if err := json.NewDecoder(strings.NewReader(rest)).Decode(&raw); err != nil {
				return nil, layoutErr(StageInitialData, "ytInitialData is not valid JSON", err)
			}
			return raw, nil
		}
	}
	return nil, layoutErr(StageInitialData, "no script contains ytInitialData", nil)
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
