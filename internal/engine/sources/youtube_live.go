package sources

import (
	"context"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/extract"
)

// InitialData reads the transcript straight out of the page's ytInitialData
// object when the panel content was server-rendered into it. No network call.
type InitialData struct{}

func (InitialData) Name() string { return "initial_data" }

func (InitialData) Acquire(_ context.Context, req Request) ([]cue.Cue, error) {
	if req.Page == nil {
		return nil, nil
	}
	raw, ok := extract.ObjectAfter(req.Page.HTML, markerInitialData)
	if !ok {
		return nil, nil
	}
	cues, err := deepWalkCues(raw)
	if err != nil {
		return nil, malformed(err)
	}
	// The same transcript usually appears twice (panel and search list).
	return cue.Dedup(cues), nil
}
