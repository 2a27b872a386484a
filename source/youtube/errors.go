package youtube

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch marks failures to retrieve a page or API response at all.
	ErrFetch = errors.New("youtube: fetch failed")
	// ErrLayoutChanged marks bootstrap failures caused by page markup that
	// no longer matches what the scraper expects.
	ErrLayoutChanged = errors.New("youtube: page layout changed")
	// ErrFeedEnded means a poll response carried no next continuation.
	ErrFeedEnded = errors.New("youtube: live chat feed ended")
	// ErrChannelRequired is returned when no channel handle was configured.
	ErrChannelRequired = errors.New("youtube: channel is required")
)

// Stage names the scraping assumption that broke during bootstrap.
type Stage string

const (
	StageConfigScript Stage = "config-script"
	StageAPIKey       Stage = "api-key"
	StageStreamID     Stage = "stream-id"
	StageInitialData  Stage = "initial-data"
	StageContinuation Stage = "continuation"
)

// FetchError is a network or HTTP status failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("youtube: fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("youtube: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// LayoutError reports which bootstrap stage could not find what it expected.
type LayoutError struct {
	Stage  Stage
	Detail string
	Err    error
}

func (e *LayoutError) Error() string {
	msg := fmt.Sprintf("youtube: page layout changed at %s: %s", e.Stage, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LayoutError) Unwrap() error { return e.Err }

func (e *LayoutError) Is(target error) bool { return target == ErrLayoutChanged }

func layoutErr(stage Stage, detail string, err error) error {
	return &LayoutError{Stage: stage, Detail: detail, Err: err}
}

// PathError reports a response field that was expected but absent.
type PathError struct {
	Path string
}

func (e *PathError) Error() string { return "youtube: missing " + e.Path }
