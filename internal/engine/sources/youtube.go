package sources

// YouTube implementation is split across files by responsibility:
//   youtube.go            - Upstream, Page and video identity
//   youtube_innertube.go  - Innertube API types, constants, page config scraping
//   youtube_token.go      - proof-of-origin token discovery and appending
//   youtube_tracks.go     - caption track resolution
//   youtube_transcript.go - acquisition pipeline (strategy order, exhaustion)
//   youtube_timedtext.go  - strategy: direct timedtext download
//   youtube_panel.go      - strategy: get_transcript API via the page context
//   youtube_live.go       - strategy: in-page ytInitialData walk
//   youtube_dom.go        - strategy: transcript panel scrape
//   session.go            - per-video transcript state and caching

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/engine"
)

var (
	// ErrNotFound means no caption source exists for the video at all.
	ErrNotFound = errors.New("no caption source")
	// ErrEmpty means a source existed but every strategy yielded no cues.
	ErrEmpty = errors.New("transcript empty")
	// ErrUnavailable means the video changed while its transcript was loading.
	ErrUnavailable = errors.New("video changed during fetch")
	// ErrBusy means a transcript load for the current video is already running.
	ErrBusy = errors.New("transcript load in progress")
)

// Upstream performs HTTP requests on behalf of one execution context.
// The privileged context uses Direct; the page context is reached over the bridge.
type Upstream interface {
	FetchText(ctx context.Context, rawURL string) ([]byte, error)
	PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) ([]byte, error)
}

// Direct is the privileged context's own upstream, backed by the engine HTTP stack.
type Direct struct{}

func (Direct) FetchText(ctx context.Context, rawURL string) ([]byte, error) {
	return engine.FetchText(ctx, rawURL, map[string]string{
		"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
}

func (Direct) PostJSON(ctx context.Context, rawURL string, body any, headers map[string]string) ([]byte, error) {
	return engine.PostJSON(ctx, rawURL, body, headers)
}

// Page is a fetched watch page. HTML is the raw document; it is never parsed
// as a whole, only searched for embedded payloads.
type Page struct {
	URL     string
	VideoID string
	HTML    string
}

// LoadPage fetches videoURL through up.
func LoadPage(ctx context.Context, up Upstream, videoURL string) (*Page, error) {
	body, err := up.FetchText(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	return &Page{URL: videoURL, VideoID: VideoID(videoURL), HTML: string(body)}, nil
}

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/(?:watch\?(?:.*&)?v=|shorts/|embed/|live/)|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// VideoID pulls the 11-char video ID from any YouTube URL format.
// A bare 11-char ID is returned as-is.
func VideoID(rawURL string) string {
	if m := videoIDRE.FindStringSubmatch(rawURL); len(m) >= 2 {
		return m[1]
	}
	if u, err := url.Parse(rawURL); err == nil {
		if v := u.Query().Get("v"); len(v) == 11 {
			return v
		}
	}
	if s := strings.TrimSpace(rawURL); len(s) == 11 && !strings.ContainsAny(s, "/?=&.:") {
		return s
	}
	return ""
}

// WatchURL is the canonical watch page for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
