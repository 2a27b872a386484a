package youtube

import (
	"net/http"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	pollUserAgent    = "Mozilla/5.0 (Windows NT 10.0; rv:121.0) Gecko/20100101 Firefox/121.0"
	acceptHTML       = "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"
)

// pageHeaders mimics a top-level browser navigation. Accept-Encoding is left
// to net/http so compressed bodies are decoded transparently.
func pageHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", browserUserAgent)
	h.Set("Accept", acceptHTML)
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	return h
}

func pollHeaders(origin string) http.Header {
	h := http.Header{}
	h.Set("Accept", "*/*")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Type", "application/json")
	h.Set("DNT", "1")
	h.Set("Origin", origin)
	h.Set("Pragma", "no-cache")
	h.Set("Sec-Fetch-Dest", "empty")
	h.Set("Sec-Fetch-Mode", "same-origin")
	h.Set("Sec-Fetch-Site", "same-origin")
	h.Set("Sec-GPC", "1")
	h.Set("User-Agent", pollUserAgent)
	h.Set("X-Youtube-Bootstrap-Logged-In", "false")
	h.Set("X-Youtube-Client-Name", "1")
	return h
}

// ClientContext is the fixed client identity sent with every poll.
type ClientContext struct {
	HL                 string `json:"hl"`
	GL                 string `json:"gl"`
	DeviceMake         string `json:"deviceMake"`
	DeviceModel        string `json:"deviceModel"`
	UserAgent          string `json:"userAgent"`
	ClientName         string `json:"clientName"`
	ClientVersion      string `json:"clientVersion"`
	OSName             string `json:"osName"`
	OSVersion          string `json:"osVersion"`
	Platform           string `json:"platform"`
	ClientFormFactor   string `json:"clientFormFactor"`
	TimeZone           string `json:"timeZone"`
	BrowserName        string `json:"browserName"`
	BrowserVersion     string `json:"browserVersion"`
	AcceptHeader       string `json:"acceptHeader"`
	ScreenWidthPoints  int    `json:"screenWidthPoints"`
	ScreenHeightPoints int    `json:"screenHeightPoints"`
	ScreenPixelDensity int    `json:"screenPixelDensity"`
	ScreenDensityFloat int    `json:"screenDensityFloat"`
	UTCOffsetMinutes   int    `json:"utcOffsetMinutes"`
	UserInterfaceTheme string `json:"userInterfaceTheme"`
}

// DefaultClient is a desktop Firefox 121 web client.
func DefaultClient() ClientContext {
	return ClientContext{
		HL:                 "en",
		GL:                 "CA",
		UserAgent:          pollUserAgent + ",gzip(gfe)",
		ClientName:         "WEB",
		ClientVersion:      "2.20240111.00.00",
		OSName:             "Windows",
		OSVersion:          "10.0",
		Platform:           "DESKTOP",
		ClientFormFactor:   "UNKNOWN_FORM_FACTOR",
		TimeZone:           "UTC",
		BrowserName:        "Firefox",
		BrowserVersion:     "121.0",
		AcceptHeader:       acceptHTML,
		ScreenWidthPoints:  425,
		ScreenHeightPoints: 550,
		ScreenPixelDensity: 1,
		ScreenDensityFloat: 1,
		UTCOffsetMinutes:   0,
		UserInterfaceTheme: "USER_INTERFACE_THEME_LIGHT",
	}
}

type pollRequest struct {
	Context struct {
		Client ClientContext `json:"client"`
	} `json:"context"`
	Continuation string `json:"continuation"`
}

func newPollRequest(client ClientContext, continuation string) pollRequest {
	var r pollRequest
	r.Context.Client = client
	r.Continuation = continuation
	return r
}
