package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"regexp"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
)

// TranscriptAPI scrapes the transcript panel's continuation params from the
// watch page and calls /get_transcript through the page context.
type TranscriptAPI struct {
	Up Upstream
}

func (*TranscriptAPI) Name() string { return "transcript_api" }

// Marker patterns for the getTranscriptEndpoint params, tried in order:
// plain JSON, JSON inside a JSON-encoded string, and \x-escaped inline script.
var transcriptParamsREs = []*regexp.Regexp{
	regexp.MustCompile(`"getTranscriptEndpoint":\s*\{\s*"params":\s*"([^"]+)"`),
	regexp.MustCompile(`\\"getTranscriptEndpoint\\":\s*\{\s*\\"params\\":\s*\\"([^"\\]+)\\"`),
	regexp.MustCompile(`getTranscriptEndpoint\\x22:\\x7b\\x22params\\x22:\\x22([^\\]+)\\x22`),
}

// transcriptParams returns the params blob, URL-decoded when it was encoded.
func transcriptParams(html string) (string, bool) {
	for _, re := range transcriptParamsREs {
		if m := re.FindStringSubmatch(html); len(m) >= 2 {
			// /get_transcript expects the raw base64 form.
			if decoded, err := url.PathUnescape(m[1]); err == nil {
				return decoded, true
			}
			return m[1], true
		}
	}
	return "", false
}

func (s *TranscriptAPI) Acquire(ctx context.Context, req Request) ([]cue.Cue, error) {
	if req.Page == nil {
		return nil, nil
	}
	params, ok := transcriptParams(req.Page.HTML)
	if !ok {
		return nil, nil
	}
	cfg, err := scrapeInnertubeConfig(req.Page.HTML)
	if err != nil {
		cfg = defaultInnertubeConfig()
	}
	body, err := postInnertube(ctx, s.Up, ytGetTranscriptURL, cfg, map[string]any{"params": params})
	if err != nil {
		return nil, fmt.Errorf("/get_transcript: %w", err)
	}
	return decodeTranscriptResponse(body)
}

// transcriptShape is one known layout of a /get_transcript response.
type transcriptShape struct {
	name   string
	decode func([]byte) ([]cue.Cue, error)
}

var transcriptShapes = []transcriptShape{
	{"cue_groups", decodeCueGroups},
	{"segment_list", decodeSegmentList},
	{"deep_walk", deepWalkCues},
}

// decodeTranscriptResponse tries each shape in order; the first that yields
// at least one cue wins.
func decodeTranscriptResponse(body []byte) ([]cue.Cue, error) {
	var errs []error
	for _, shape := range transcriptShapes {
		cues, err := shape.decode(body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", shape.name, err))
			continue
		}
		if len(cues) > 0 {
			return cues, nil
		}
	}
	if len(errs) == len(transcriptShapes) {
		return nil, malformed(errors.Join(errs...))
	}
	return nil, nil
}

// --- renderers ---

type cueRenderer struct {
	StartOffsetMs flexInt  `json:"startOffsetMs"`
	DurationMs    flexInt  `json:"durationMs"`
	Cue           textRuns `json:"cue"`
}

func (r cueRenderer) cue() cue.Cue {
	return cue.Cue{StartMs: int64(r.StartOffsetMs), Text: r.Cue.String()}
}

type segmentRenderer struct {
	StartMs flexInt  `json:"startMs"`
	EndMs   flexInt  `json:"endMs"`
	Snippet textRuns `json:"snippet"`
}

func (r segmentRenderer) cue() cue.Cue {
	return cue.Cue{StartMs: int64(r.StartMs), Text: r.Snippet.String()}
}

func appendCue(cues []cue.Cue, c cue.Cue) []cue.Cue {
	if c.Text == "" {
		return cues
	}
	return append(cues, c)
}

// --- shape 1: transcriptBodyRenderer cue groups ---

type cueGroupsResp struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Body struct {
						TranscriptBodyRenderer struct {
							CueGroups []struct {
								TranscriptCueGroupRenderer struct {
									Cues []struct {
										TranscriptCueRenderer *cueRenderer `json:"transcriptCueRenderer"`
									} `json:"cues"`
								} `json:"transcriptCueGroupRenderer"`
							} `json:"cueGroups"`
						} `json:"transcriptBodyRenderer"`
					} `json:"body"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

func decodeCueGroups(body []byte) ([]cue.Cue, error) {
	var resp cueGroupsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	var cues []cue.Cue
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		groups := action.UpdateEngagementPanelAction.Content.TranscriptRenderer.Body.TranscriptBodyRenderer.CueGroups
		for _, g := range groups {
			for _, c := range g.TranscriptCueGroupRenderer.Cues {
				if c.TranscriptCueRenderer != nil {
					cues = appendCue(cues, c.TranscriptCueRenderer.cue())
				}
			}
		}
	}
	return cues, nil
}

// --- shape 2: searchable panel segment list ---

type segmentListResp struct {
	Actions []struct {
		UpdateEngagementPanelAction *struct {
			Content struct {
				TranscriptRenderer struct {
					Content struct {
						TranscriptSearchPanelRenderer struct {
							Body struct {
								TranscriptSegmentListRenderer struct {
									InitialSegments []struct {
										TranscriptSegmentRenderer *segmentRenderer `json:"transcriptSegmentRenderer"`
									} `json:"initialSegments"`
								} `json:"transcriptSegmentListRenderer"`
							} `json:"body"`
						} `json:"transcriptSearchPanelRenderer"`
					} `json:"content"`
				} `json:"transcriptRenderer"`
			} `json:"content"`
		} `json:"updateEngagementPanelAction"`
	} `json:"actions"`
}

func decodeSegmentList(body []byte) ([]cue.Cue, error) {
	var resp segmentListResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	var cues []cue.Cue
	for _, action := range resp.Actions {
		if action.UpdateEngagementPanelAction == nil {
			continue
		}
		segs := action.UpdateEngagementPanelAction.Content.
			TranscriptRenderer.Content.
			TranscriptSearchPanelRenderer.Body.
			TranscriptSegmentListRenderer.InitialSegments
		for _, seg := range segs {
			if seg.TranscriptSegmentRenderer != nil {
				cues = appendCue(cues, seg.TranscriptSegmentRenderer.cue())
			}
		}
	}
	return cues, nil
}

// --- shape 3: deep walk ---

// deepWalkCues streams through any JSON document in order and collects every
// transcriptSegmentRenderer and transcriptCueRenderer it meets, wherever they
// are nested.
func deepWalkCues(body []byte) ([]cue.Cue, error) {
	dec := json.NewDecoder(bytes.NewReader(body))

	type frame struct {
		object  bool
		wantKey bool
	}
	var stack []frame
	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].wantKey = true
		}
	}

	var cues []cue.Cue
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return cues, nil
		}
		if err != nil {
			return cues, err
		}

		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{':
				stack = append(stack, frame{object: true, wantKey: true})
			case '[':
				stack = append(stack, frame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone()
			}
			continue
		}

		n := len(stack)
		if n == 0 || !stack[n-1].object || !stack[n-1].wantKey {
			valueDone()
			continue
		}

		key, _ := tok.(string)
		stack[n-1].wantKey = false
		switch key {
		case "transcriptSegmentRenderer":
			var r segmentRenderer
			if err := dec.Decode(&r); err != nil {
				return cues, err
			}
			cues = appendCue(cues, r.cue())
			valueDone()
		case "transcriptCueRenderer":
			var r cueRenderer
			if err := dec.Decode(&r); err != nil {
				return cues, err
			}
			cues = appendCue(cues, r.cue())
			valueDone()
		}
	}
}
