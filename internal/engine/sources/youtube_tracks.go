package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/extract"
)

// CaptionTrack is one caption track listed by the player. BaseURL may carry
// the proof-of-origin token as the pot query parameter.
type CaptionTrack struct {
	BaseURL        string    `json:"baseUrl"`
	LanguageCode   string    `json:"languageCode"`
	Kind           string    `json:"kind,omitempty"` // "asr" = auto-generated
	Name           TrackName `json:"name,omitempty"`
	VssID          string    `json:"vssId,omitempty"`
	IsTranslatable bool      `json:"isTranslatable,omitempty"`
}

// IsAutoGenerated reports whether the track is speech recognition output.
func (t CaptionTrack) IsAutoGenerated() bool { return t.Kind == "asr" }

// TrackName is a track's display name. The player emits it as
// {"simpleText": ...} or {"runs": [...]}; it is re-emitted as a plain string.
type TrackName string

func (n *TrackName) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = TrackName(s)
		return nil
	}
	var t textRuns
	if err := json.Unmarshal(b, &t); err != nil {
		return err
	}
	*n = TrackName(t.String())
	return nil
}

// Resolver lists caption tracks for a video. Direct fetches the watch page;
// Page reaches the page context for authenticated Innertube calls.
type Resolver struct {
	Direct Upstream
	Page   Upstream
}

// ResolveCaptionTracks fetches videoURL and resolves its tracks. It never
// fails: every internal error degrades to the next step or to an empty list.
func (r *Resolver) ResolveCaptionTracks(ctx context.Context, videoURL string) []CaptionTrack {
	page, err := LoadPage(ctx, r.Direct, videoURL)
	if err != nil {
		slog.Warn("youtube: caption tracks page fetch failed", slog.String("url", videoURL), slog.Any("error", err))
		return []CaptionTrack{}
	}
	return r.Resolve(ctx, page)
}

// Resolve runs track resolution against an already fetched page, in order:
// embedded player response with token, authenticated player call for a
// missing token, authenticated player call from scratch, legacy array scan.
func (r *Resolver) Resolve(ctx context.Context, page *Page) []CaptionTrack {
	engine.IncrTrackResolution()
	log := slog.With(slog.String("video", page.VideoID))

	pr, _ := extractPlayerResponse(page.HTML)
	tracks := pr.tracks()

	if len(tracks) > 0 {
		if tok := discoverToken(tracks, pr); tok != "" {
			return AppendToken(tracks, tok)
		}
		tok, err := r.recoverToken(ctx, page)
		if err != nil {
			log.Debug("youtube: token recovery failed", slog.Any("error", err))
		}
		if tok != "" {
			engine.IncrTokenRecovery()
			return AppendToken(tracks, tok)
		}
		return tracks
	}

	if fresh, tok, err := r.fetchPlayer(ctx, page); err != nil {
		log.Debug("youtube: player call failed", slog.Any("error", err))
	} else if len(fresh) > 0 {
		return AppendToken(fresh, tok)
	}

	if legacy := legacyTracks(page.HTML); len(legacy) > 0 {
		return AppendToken(legacy, scanRawToken(page.HTML))
	}
	return []CaptionTrack{}
}

// recoverToken makes one authenticated /player call to obtain a token for
// tracks that already exist. Any missing page config field aborts this step.
func (r *Resolver) recoverToken(ctx context.Context, page *Page) (string, error) {
	cfg, err := scrapeInnertubeConfig(page.HTML)
	if err != nil {
		return "", err
	}
	pr, err := r.callPlayer(ctx, cfg, page.VideoID)
	if err != nil {
		return "", err
	}
	return discoverToken(pr.tracks(), pr), nil
}

// fetchPlayer asks /player for tracks from scratch, falling back to the
// anonymous WEB identity when the page has no config.
func (r *Resolver) fetchPlayer(ctx context.Context, page *Page) ([]CaptionTrack, string, error) {
	if page.VideoID == "" {
		return nil, "", ErrNotFound
	}
	cfg, err := scrapeInnertubeConfig(page.HTML)
	if err != nil {
		cfg = defaultInnertubeConfig()
	}
	pr, err := r.callPlayer(ctx, cfg, page.VideoID)
	if err != nil {
		return nil, "", err
	}
	tracks := pr.tracks()
	return tracks, discoverToken(tracks, pr), nil
}

func (r *Resolver) callPlayer(ctx context.Context, cfg innertubeConfig, videoID string) (*playerResponse, error) {
	if r.Page == nil {
		return nil, ErrNotFound
	}
	body, err := postInnertube(ctx, r.Page, ytPlayerURL, cfg, map[string]any{
		"videoId":        videoID,
		"racyCheckOk":    true,
		"contentCheckOk": true,
	})
	if err != nil {
		return nil, err
	}
	var pr playerResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return nil, malformed(err)
	}
	return &pr, nil
}

// legacyTracks recovers a raw captionTracks array by bracket-depth extraction.
func legacyTracks(html string) []CaptionTrack {
	raw, ok := extract.ArrayAfter(html, markerCaptionTracks)
	if !ok {
		return nil
	}
	var tracks []CaptionTrack
	if err := json.Unmarshal(raw, &tracks); err != nil {
		slog.Debug("youtube: legacy captionTracks malformed", slog.Any("error", err))
		return nil
	}
	return tracks
}

// PickTrack selects the best track for the given language preferences:
// manual in a preferred language, then auto-generated in a preferred
// language, then any English track, then the first.
func PickTrack(tracks []CaptionTrack, langs []string) (CaptionTrack, bool) {
	if len(tracks) == 0 {
		return CaptionTrack{}, false
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if langMatches(t.LanguageCode, lang) && !t.IsAutoGenerated() {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range tracks {
			if langMatches(t.LanguageCode, lang) {
				return t, true
			}
		}
	}
	for _, t := range tracks {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return tracks[0], true
}

func langMatches(code, want string) bool {
	code, want = strings.ToLower(code), strings.ToLower(want)
	return code == want || strings.HasPrefix(code, want+"-")
}
