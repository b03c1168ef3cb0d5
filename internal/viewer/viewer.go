// Package viewer is the sandboxed UI side of the bridge. It has no network
// identity of its own: caption tracks and transcripts are requested from the
// privileged context, and every failure on that path degrades to an empty
// result.
package viewer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
	"github.com/anatolykoptev/go_subsearch/internal/search"
)

// Bridge actions the viewer sends.
const (
	ActionCaptionTracks  = "YT.GET_CAPTION_TRACKS"
	ActionPlayerCaptions = "YT.GET_PLAYER_CAPTIONS"
	ActionSkip           = "SKIP"
)

// Default bridge timeouts for the two data calls.
const (
	DefaultCaptionsTimeout  = 10 * time.Second
	DefaultSubtitlesTimeout = 15 * time.Second
)

// Viewer holds the word corpus of the video being searched.
type Viewer struct {
	client           *bridge.Client
	captionsTimeout  time.Duration
	subtitlesTimeout time.Duration

	mu     sync.RWMutex
	url    string
	corpus []cue.Word
}

// New returns a viewer calling the privileged context through client.
// Non-positive timeouts take the defaults.
func New(client *bridge.Client, captionsTimeout, subtitlesTimeout time.Duration) *Viewer {
	if captionsTimeout <= 0 {
		captionsTimeout = DefaultCaptionsTimeout
	}
	if subtitlesTimeout <= 0 {
		subtitlesTimeout = DefaultSubtitlesTimeout
	}
	return &Viewer{client: client, captionsTimeout: captionsTimeout, subtitlesTimeout: subtitlesTimeout}
}

// CaptionTracks lists the caption tracks of videoURL.
func (v *Viewer) CaptionTracks(ctx context.Context, videoURL string) []sources.CaptionTrack {
	env, err := v.client.Call(ctx, ActionCaptionTracks, map[string]string{"url": videoURL}, v.captionsTimeout)
	if err != nil {
		slog.Debug("viewer: caption tracks unavailable", slog.String("url", videoURL), slog.Any("error", err))
		return []sources.CaptionTrack{}
	}
	var tracks []sources.CaptionTrack
	if _, err := env.Field("tracks", &tracks); err != nil || tracks == nil {
		return []sources.CaptionTrack{}
	}
	return tracks
}

// Subtitles loads the transcript of videoURL and makes it the search corpus,
// replacing the corpus of any previous video.
// No track means captions are off and nothing is requested.
func (v *Viewer) Subtitles(ctx context.Context, videoURL string, track *sources.CaptionTrack) []cue.Word {
	if track == nil {
		return []cue.Word{}
	}
	v.mu.Lock()
	if v.url == videoURL && len(v.corpus) > 0 {
		words := v.corpus
		v.mu.Unlock()
		return words
	}
	if v.url != videoURL {
		v.url, v.corpus = videoURL, nil
	}
	v.mu.Unlock()

	env, err := v.client.Call(ctx, ActionPlayerCaptions, map[string]string{"url": videoURL}, v.subtitlesTimeout)
	if err != nil {
		slog.Debug("viewer: transcript unavailable", slog.String("url", videoURL), slog.Any("error", err))
		return []cue.Word{}
	}
	var cues []cue.Cue
	if _, err := env.Field("transcriptCues", &cues); err != nil {
		slog.Debug("viewer: transcript cues malformed", slog.Any("error", err))
		return []cue.Word{}
	}
	words := cue.Flatten(cues)
	if len(words) > 0 {
		v.mu.Lock()
		if v.url == videoURL {
			v.corpus = words
		}
		v.mu.Unlock()
	}
	return words
}

// Search matches query against the loaded corpus, first DefaultWindow hits.
func (v *Viewer) Search(query string) []search.Result {
	v.mu.RLock()
	corpus := v.corpus
	v.mu.RUnlock()
	return search.Window(search.Search(query, corpus), search.DefaultWindow)
}

// Skip asks the player to seek to r and returns the target in seconds.
func (v *Viewer) Skip(ctx context.Context, r search.Result) (float64, error) {
	sec := r.SeekSeconds()
	return sec, v.client.Notify(ctx, ActionSkip, sec)
}
