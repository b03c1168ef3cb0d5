package sources

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
)

// fakeUpstream answers by longest matching URL prefix and records calls.
type fakeUpstream struct {
	mu    sync.Mutex
	text  map[string]string
	json  map[string]string
	err   error
	calls []string
	posts []map[string]any
}

func newFake() *fakeUpstream {
	return &fakeUpstream{text: map[string]string{}, json: map[string]string{}}
}

func match(m map[string]string, rawURL string) (string, bool) {
	best, found := "", false
	bestLen := -1
	for prefix, body := range m {
		if strings.HasPrefix(rawURL, prefix) && len(prefix) > bestLen {
			best, found, bestLen = body, true, len(prefix)
		}
	}
	return best, found
}

func (f *fakeUpstream) FetchText(_ context.Context, rawURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "GET "+rawURL)
	if f.err != nil {
		return nil, f.err
	}
	body, ok := match(f.text, rawURL)
	if !ok {
		return nil, errors.New("not found: " + rawURL)
	}
	return []byte(body), nil
}

func (f *fakeUpstream) PostJSON(_ context.Context, rawURL string, body any, _ map[string]string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "POST "+rawURL)
	var payload map[string]any
	if data, err := json.Marshal(body); err == nil {
		_ = json.Unmarshal(data, &payload)
	}
	f.posts = append(f.posts, payload)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := match(f.json, rawURL)
	if !ok {
		return nil, errors.New("not found: " + rawURL)
	}
	return []byte(resp), nil
}

func (f *fakeUpstream) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

const (
	testVideoID  = "dQw4w9WgXcQ"
	testWatchURL = "https://www.youtube.com/watch?v=" + testVideoID
	testTrackURL = "https://www.youtube.com/api/timedtext?v=" + testVideoID + "&lang=en"
)

// innertubeConfigHTML is the ytcfg block a logged-out watch page carries.
const innertubeConfigHTML = `<script>ytcfg.set({"INNERTUBE_API_KEY":"AIzaTestKey","INNERTUBE_CONTEXT":{"client":{"clientName":"WEB","clientVersion":"2.20250222.10.00"}},"INNERTUBE_CONTEXT_CLIENT_NAME":1,"INNERTUBE_CLIENT_VERSION":"2.20250222.10.00","VISITOR_DATA":"CgtWaXNpdG9y"});</script>`

func playerHTML(playerJSON string) string {
	return `<html><head></head><body><script>var ytInitialPlayerResponse = ` + playerJSON + `;</script></body></html>`
}

func tracksJSON(baseURL string) string {
	return `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"` + baseURL + `","languageCode":"en","name":{"simpleText":"English"}}]}}}`
}
