package sources

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anatolykoptev/go_subsearch/internal/bridge"
	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
)

// Request is what the pipeline knows about the video being acquired.
// Track and Page may each be nil.
type Request struct {
	VideoID string
	Track   *CaptionTrack
	Page    *Page
}

// Transcript is an acquired transcript in canonical cue form.
type Transcript struct {
	VideoID  string    `json:"videoId"`
	Lang     string    `json:"lang,omitempty"`
	Strategy string    `json:"strategy"`
	Cues     []cue.Cue `json:"cues"`
}

// Words flattens the transcript into the search corpus.
func (t Transcript) Words() []cue.Word { return cue.Flatten(t.Cues) }

// Strategy is one way of acquiring cues. A miss is (nil, nil); an error is
// logged by the pipeline and treated as a miss.
type Strategy interface {
	Name() string
	Acquire(ctx context.Context, req Request) ([]cue.Cue, error)
}

// Pipeline runs strategies in order; the first non-empty result wins.
type Pipeline struct {
	strategies []Strategy
}

// NewPipeline returns a pipeline running strategies in the given order.
func NewPipeline(strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies}
}

// PanelOpener returns the transcript panel driver for a page.
type PanelOpener func(page *Page) (TranscriptPanel, error)

// PipelineFromPolicy builds the pipeline in the order named by policy.
// direct serves track downloads; page serves Innertube calls; panels drives
// the DOM scrape and may be nil to disable it.
func PipelineFromPolicy(policy engine.Policy, direct, page Upstream, panels PanelOpener) *Pipeline {
	var out []Strategy
	for _, name := range policy.Strategies {
		switch name {
		case engine.StrategyTimedText:
			out = append(out, &TimedText{Up: direct})
		case engine.StrategyTranscript:
			out = append(out, &TranscriptAPI{Up: page})
		case engine.StrategyInitialData:
			out = append(out, InitialData{})
		case engine.StrategyDOM:
			if panels != nil {
				out = append(out, &DOMScrape{Open: panels, Poll: policy.DOM})
			}
		}
	}
	return NewPipeline(out...)
}

// Strategies returns the strategy names in run order.
func (p *Pipeline) Strategies() []string {
	names := make([]string, len(p.strategies))
	for i, s := range p.strategies {
		names[i] = s.Name()
	}
	return names
}

// Acquire runs the strategies for req. Exhaustion yields ErrEmpty when a
// source existed (a track or a page), else ErrNotFound.
func (p *Pipeline) Acquire(ctx context.Context, req Request) (Transcript, error) {
	engine.IncrTranscriptRequest()
	if req.Track == nil && req.Page == nil {
		engine.IncrTranscriptFailure()
		return Transcript{}, ErrNotFound
	}
	log := slog.With(slog.String("video", req.VideoID))

	for _, s := range p.strategies {
		if err := ctx.Err(); err != nil {
			return Transcript{}, err
		}
		cues, err := s.Acquire(ctx, req)
		if err != nil {
			level := slog.LevelWarn
			if errors.Is(err, ErrNotFound) || errors.Is(err, bridge.ErrTimeout) {
				level = slog.LevelDebug
			}
			log.Log(ctx, level, "youtube: strategy failed, trying next",
				slog.String("strategy", s.Name()), slog.Any("error", err))
			continue
		}
		if len(cues) == 0 {
			log.Debug("youtube: strategy returned nothing", slog.String("strategy", s.Name()))
			continue
		}
		engine.IncrStrategyHit(s.Name())
		t := Transcript{VideoID: req.VideoID, Strategy: s.Name(), Cues: cues}
		if req.Track != nil {
			t.Lang = req.Track.LanguageCode
		}
		return t, nil
	}

	engine.IncrTranscriptFailure()
	return Transcript{}, ErrEmpty
}
