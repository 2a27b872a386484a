package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/trickstertwo/xchat"
)

const (
	continuationsPath = "continuationContents.liveChatContinuation.continuations[0]"
	maxResponseBytes  = 8 << 20
)

// Batch is the decoded result of one poll.
type Batch struct {
	Continuation string
	// Interval is how long the server asks the client to wait.
	Interval time.Duration
	Messages []xchat.Message
	// Errors holds per-action decode failures; those actions were skipped.
	Errors []error
}

type pollResponse struct {
	ContinuationContents *struct {
		LiveChatContinuation *struct {
			Continuations []continuation    `json:"continuations"`
			Actions       []json.RawMessage `json:"actions"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

type continuation struct {
	Invalidation *continuationData `json:"invalidationContinuationData"`
	Timed        *continuationData `json:"timedContinuationData"`
	Reload       *continuationData `json:"reloadContinuationData"`
}

type continuationData struct {
	Continuation string `json:"continuation"`
	TimeoutMs    int64  `json:"timeoutMs"`
}

func (c continuation) data() *continuationData {
	for _, d := range []*continuationData{c.Invalidation, c.Timed, c.Reload} {
		if d != nil && d.Continuation != "" {
			return d
		}
	}
	return nil
}

// ParseResponse decodes a get_live_chat response. A missing next
// continuation wraps ErrFeedEnded; a body that is not JSON is returned as a
// plain decode error so the caller can retry.
func ParseResponse(body []byte, defaultInterval time.Duration) (Batch, error) {
	var resp pollResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Batch{}, fmt.Errorf("youtube: decode poll response: %w", err)
	}
	if resp.ContinuationContents == nil || resp.ContinuationContents.LiveChatContinuation == nil {
		return Batch{}, fmt.Errorf("%w: %w", ErrFeedEnded, &PathError{Path: "continuationContents.liveChatContinuation"})
	}
	lc := resp.ContinuationContents.LiveChatContinuation
	if len(lc.Continuations) == 0 || lc.Continuations[0].data() == nil {
		return Batch{}, fmt.Errorf("%w: %w", ErrFeedEnded, &PathError{Path: continuationsPath})
	}
	next := lc.Continuations[0].data()

	b := Batch{
		Continuation: next.Continuation,
		Interval:     defaultInterval,
	}
	if next.TimeoutMs > 0 {
		b.Interval = time.Duration(next.TimeoutMs) * time.Millisecond
	}
	for _, raw := range lc.Actions {
		msg, ok, err := decodeAction(raw)
		if err != nil {
			b.Errors = append(b.Errors, err)
			continue
		}
		if ok {
			b.Messages = append(b.Messages, msg)
		}
	}
	return b, nil
}

// Advance records a successful poll and returns the messages to emit. The
// first batch of a session only moves the continuation forward.
func (s *Session) Advance(b Batch) []xchat.Message {
	s.Continuation = b.Continuation
	if !s.firstBatchSeen {
		s.firstBatchSeen = true
		return nil
	}
	return b.Messages
}

// Poller performs get_live_chat requests.
type Poller struct {
	client          *http.Client
	baseURL         string
	identity        ClientContext
	defaultInterval time.Duration
}

func NewPoller(client *http.Client, baseURL string, defaultInterval time.Duration) *Poller {
	return &Poller{
		client:          client,
		baseURL:         baseURL,
		identity:        DefaultClient(),
		defaultInterval: defaultInterval,
	}
}

// Endpoint is the get_live_chat URL for apiKey.
func (p *Poller) Endpoint(apiKey string) string {
	return p.baseURL + "/youtubei/v1/live_chat/get_live_chat?key=" + url.QueryEscape(apiKey) + "&prettyPrint=false"
}

// Poll fetches the page of chat after sess.Continuation. It does not modify sess.
func (p *Poller) Poll(ctx context.Context, sess *Session) (Batch, error) {
	body, err := json.Marshal(newPollRequest(p.identity, sess.Continuation))
	if err != nil {
		return Batch{}, err
	}
	endpoint := p.Endpoint(sess.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Batch{}, &FetchError{URL: endpoint, Err: err}
	}
	req.Header = pollHeaders(p.baseURL)

	resp, err := p.client.Do(req)
	if err != nil {
		return Batch{}, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Batch{}, &FetchError{URL: endpoint, StatusCode: resp.StatusCode}
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Batch{}, &FetchError{URL: endpoint, Err: err}
	}
	return ParseResponse(raw, p.defaultInterval)
}
