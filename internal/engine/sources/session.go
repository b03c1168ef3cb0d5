package sources

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/toolutil"
)

// State is the transcript lifecycle for the current video.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Session owns the transcript state of the video currently on the page.
// A cached transcript is served only while the state is ready and the cache
// belongs to the current video; navigating to another video drops it.
type Session struct {
	resolver *Resolver
	pipeline *Pipeline
	langs    []string

	mu      sync.Mutex
	videoID string
	state   State
	loads   uint64 // bumped by every load; the latest one owns state
	cached  *Transcript
	tracks  []CaptionTrack
}

// NewSession returns an idle session with no current video.
func NewSession(resolver *Resolver, pipeline *Pipeline, langs []string) *Session {
	return &Session{
		resolver: resolver,
		pipeline: pipeline,
		langs:    toolutil.NormLangs(langs),
		state:    StateIdle,
	}
}

// Navigate makes videoURL the current page. A different video resets the
// state to idle and drops the cached transcript; the same video keeps it.
func (s *Session) Navigate(videoURL string) {
	id := VideoID(videoURL)
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == s.videoID {
		return
	}
	s.videoID = id
	s.state = StateIdle
	s.cached = nil
	s.tracks = nil
}

// Current returns the current video ID and its state.
func (s *Session) Current() (string, State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoID, s.state
}

// Tracks returns the caption tracks found by the last load of the current video.
func (s *Session) Tracks() []CaptionTrack {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracks
}

// CaptionTracks resolves tracks for videoURL without touching session state.
func (s *Session) CaptionTracks(ctx context.Context, videoURL string) []CaptionTrack {
	return s.resolver.ResolveCaptionTracks(ctx, videoURL)
}

// Transcript returns the current video's transcript, loading it if needed.
// If the video changes while loading, the result is discarded with
// ErrUnavailable. Navigate has already reset the state, and a load started
// for the new video keeps it.
func (s *Session) Transcript(ctx context.Context) (Transcript, error) {
	s.mu.Lock()
	id := s.videoID
	switch {
	case id == "":
		s.mu.Unlock()
		return Transcript{}, ErrNotFound
	case s.state == StateReady && s.cached != nil && s.cached.VideoID == id:
		t := *s.cached
		s.mu.Unlock()
		return t, nil
	case s.state == StateLoading:
		s.mu.Unlock()
		return Transcript{}, ErrBusy
	}
	s.state = StateLoading
	s.loads++
	gen := s.loads
	s.mu.Unlock()

	t, tracks, err := s.load(ctx, id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.videoID != id || s.loads != gen {
		return Transcript{}, ErrUnavailable
	}
	if tracks != nil {
		s.tracks = tracks
	}
	if err != nil {
		s.state = StateError
		return Transcript{}, err
	}
	s.cached = &t
	s.state = StateReady
	return t, nil
}

func (s *Session) langKey() string { return strings.Join(s.langs, ",") }

// load goes through the engine cache, then the transcript store, then the
// acquisition pipeline. Fresh results are written back to both tiers.
func (s *Session) load(ctx context.Context, videoID string) (Transcript, []CaptionTrack, error) {
	key := engine.CacheKey("transcript", videoID, s.langKey())
	if t, ok := toolutil.CacheLoadJSON[Transcript](ctx, key); ok && len(t.Cues) > 0 {
		return t, nil, nil
	}

	store := engine.Store()
	if store != nil {
		if st, ok, err := store.Load(ctx, videoID, s.langKey()); err != nil {
			slog.Warn("youtube: transcript store load failed", slog.String("video", videoID), slog.Any("error", err))
		} else if ok {
			var t Transcript
			if err := json.Unmarshal(st.Data, &t); err == nil && len(t.Cues) > 0 {
				engine.IncrStoreHit()
				toolutil.CacheStoreJSON(ctx, key, t)
				return t, nil, nil
			}
		}
	}

	req := Request{VideoID: videoID}
	var tracks []CaptionTrack
	page, err := LoadPage(ctx, s.resolver.Direct, WatchURL(videoID))
	if err != nil {
		slog.Warn("youtube: watch page unavailable", slog.String("video", videoID), slog.Any("error", err))
	} else {
		req.Page = page
		tracks = s.resolver.Resolve(ctx, page)
		if track, ok := PickTrack(tracks, s.langs); ok {
			req.Track = &track
		}
	}

	var t Transcript
	err = engine.TrackOperation(ctx, "transcript:"+videoID, func(ctx context.Context) error {
		var err error
		t, err = s.pipeline.Acquire(ctx, req)
		return err
	})
	if err != nil {
		return Transcript{}, tracks, err
	}

	toolutil.CacheStoreJSON(ctx, key, t)
	if store != nil {
		data, merr := json.Marshal(t)
		if merr == nil {
			merr = store.Save(ctx, engine.StoredTranscript{VideoID: videoID, Lang: s.langKey(), Strategy: t.Strategy, Data: data})
		}
		if merr != nil && !errors.Is(merr, context.Canceled) {
			slog.Warn("youtube: transcript store save failed", slog.String("video", videoID), slog.Any("error", merr))
		}
	}
	return t, tracks, nil
}
