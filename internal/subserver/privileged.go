package subserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
	"github.com/anatolykoptev/go_subsearch/internal/viewer"
)

// Privileged-context actions proxied to the page host.
const (
	ActionFetchText = "YT.FETCH_TEXT"
	ActionPostJSON  = "YT.POST_JSON"
)

type videoPayload struct {
	URL string `json:"url"`
}

func (r *Runtime) newPrivilegedHost(policy bridge.OriginPolicy) *bridge.Host {
	h := bridge.NewHost("privileged", policy)
	h.Handle(viewer.ActionCaptionTracks, r.handleCaptionTracks)
	h.Handle(viewer.ActionPlayerCaptions, r.handlePlayerCaptions)
	h.Handle(viewer.ActionSkip, r.handleSkip)
	h.Handle(ActionFetchText, bridge.Forward(r.pageClient, ActionPageFetchText, engine.Cfg.PageTimeout))
	h.Handle(ActionPostJSON, bridge.Forward(r.pageClient, ActionPagePostJSON, engine.Cfg.PageTimeout))
	return h
}

func (r *Runtime) handleCaptionTracks(ctx context.Context, req *bridge.Envelope) (map[string]any, error) {
	var p videoPayload
	if err := req.DecodePayload(&p); err != nil {
		return nil, err
	}
	if p.URL == "" {
		return nil, errNoURL
	}
	return map[string]any{"tracks": r.Session.CaptionTracks(ctx, p.URL)}, nil
}

// handlePlayerCaptions answers with the current video's transcript. A url in
// the payload navigates first. Videos without a transcript get empty cues,
// not an error; only a load already in flight is refused.
func (r *Runtime) handlePlayerCaptions(ctx context.Context, req *bridge.Envelope) (map[string]any, error) {
	var p videoPayload
	if err := req.DecodePayload(&p); err != nil {
		return nil, err
	}
	if p.URL != "" {
		r.Session.Navigate(p.URL)
	}

	t, err := r.Session.Transcript(ctx)
	switch {
	case err == nil:
	case errors.Is(err, sources.ErrEmpty), errors.Is(err, sources.ErrNotFound), errors.Is(err, sources.ErrUnavailable):
		slog.Debug("subserver: no transcript", slog.String("url", p.URL), slog.Any("reason", err))
		t = sources.Transcript{Cues: []cue.Cue{}}
	default:
		return nil, err
	}

	captions := r.Session.Tracks()
	if captions == nil {
		captions = []sources.CaptionTrack{}
	}
	return map[string]any{
		"captions":       captions,
		"transcriptCues": t.Cues,
		"strategy":       t.Strategy,
	}, nil
}

func (r *Runtime) handleSkip(_ context.Context, req *bridge.Envelope) (map[string]any, error) {
	var sec float64
	if err := req.DecodePayload(&sec); err != nil {
		return nil, err
	}
	r.seek(sec)
	slog.Debug("subserver: seek", slog.Float64("seconds", sec))
	return nil, nil
}
