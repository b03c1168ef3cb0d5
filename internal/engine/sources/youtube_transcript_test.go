package sources

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/extract"
)

type stubStrategy struct {
	name  string
	cues  []cue.Cue
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Acquire(context.Context, Request) ([]cue.Cue, error) {
	s.calls++
	return s.cues, s.err
}

const srv3Body = `<?xml version="1.0" encoding="utf-8" ?><timedtext format="3"><body>` +
	`<p t="0" d="1500"><s ac="0">hello</s><s t="300" ac="0"> world</s></p>` +
	`<p t="1500" d="1000">it&amp;#39;s fine</p>` +
	`<p t="2600" d="10"></p>` +
	`</body></timedtext>`

const legacyTimedTextBody = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.5" dur="1.2">one &amp;amp; two</text>` +
	`<text start="2" dur="1">&lt;font color=&quot;#E5E5E5&quot;&gt;three&lt;/font&gt;</text>` +
	`</transcript>`

func TestParseTimedText_Srv3(t *testing.T) {
	cues, err := parseTimedText([]byte(srv3Body))
	require.NoError(t, err)
	assert.Equal(t, []cue.Cue{
		{StartMs: 0, Text: "hello world"},
		{StartMs: 1500, Text: "it's fine"},
	}, cues)
}

func TestParseTimedText_Legacy(t *testing.T) {
	cues, err := parseTimedText([]byte(legacyTimedTextBody))
	require.NoError(t, err)
	assert.Equal(t, []cue.Cue{
		{StartMs: 500, Text: "one & two"},
		{StartMs: 2000, Text: "three"},
	}, cues)

	words := cue.Flatten(cues)
	assert.Len(t, words, 3, "one two three")
	assert.Equal(t, int64(500), words[1].TimeMs)
}

func TestTimedText_Acquire(t *testing.T) {
	direct := newFake()
	direct.text["https://www.youtube.com/api/timedtext"] = srv3Body
	s := &TimedText{Up: direct}

	cues, err := s.Acquire(context.Background(), Request{Track: &CaptionTrack{BaseURL: testTrackURL + "&fmt=json3"}})

	require.NoError(t, err)
	assert.Len(t, cues, 2)
	require.Len(t, direct.calls, 1)
	assert.Contains(t, direct.calls[0], "fmt=srv3")
	assert.NotContains(t, direct.calls[0], "fmt=json3")
}

func TestTimedText_EmptyBodyIsMiss(t *testing.T) {
	direct := newFake()
	direct.text["https://www.youtube.com/api/timedtext"] = "  \n"
	s := &TimedText{Up: direct}

	cues, err := s.Acquire(context.Background(), Request{Track: &CaptionTrack{BaseURL: testTrackURL}})

	assert.NoError(t, err)
	assert.Empty(t, cues)
}

func TestTimedText_NoTrack(t *testing.T) {
	cues, err := (&TimedText{Up: newFake()}).Acquire(context.Background(), Request{Page: testPage("")})
	assert.NoError(t, err)
	assert.Empty(t, cues)
}

func TestDecodeTranscriptResponse(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []cue.Cue
	}{
		{"cue groups", cueGroupsBody, []cue.Cue{
			{StartMs: 1000, Text: "hello there"},
			{StartMs: 3500, Text: "general kenobi"},
		}},
		{"segment list", segmentListBody, []cue.Cue{
			{StartMs: 0, Text: "first"},
			{StartMs: 1200, Text: "second"},
		}},
		{"deep walk", deepWalkBody, []cue.Cue{
			{StartMs: 500, Text: "deep one"},
			{StartMs: 900, Text: "deep two"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cues, err := decodeTranscriptResponse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cues)
		})
	}
}

func TestDecodeTranscriptResponse_Malformed(t *testing.T) {
	_, err := decodeTranscriptResponse([]byte(`<html>rate limited</html>`))
	assert.ErrorIs(t, err, extract.ErrMalformed)

	cues, err := decodeTranscriptResponse([]byte(`{"responseContext":{}}`))
	assert.NoError(t, err)
	assert.Empty(t, cues)
}

func TestTranscriptParams(t *testing.T) {
	tests := []struct {
		name, html, want string
	}{
		{"plain", `"getTranscriptEndpoint":{"params":"CgtkUXc0%3D"}`, "CgtkUXc0="},
		{"json string", `"{\"getTranscriptEndpoint\":{\"params\":\"QUJD\"}}"`, "QUJD"},
		{"hex escaped", `'getTranscriptEndpoint\x22:\x7b\x22params\x22:\x22WFla\x22'`, "WFla"},
		{"keeps plus", `"getTranscriptEndpoint":{"params":"a+b"}`, "a+b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := transcriptParams(tt.html)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := transcriptParams(`<html></html>`)
	assert.False(t, ok)
}

func TestTranscriptAPI_Acquire(t *testing.T) {
	page := newFake()
	page.json[ytGetTranscriptURL] = segmentListBody
	s := &TranscriptAPI{Up: page}
	html := `<script>{"getTranscriptEndpoint":{"params":"CgtkUXc0%3D"}}</script>` + innertubeConfigHTML

	cues, err := s.Acquire(context.Background(), Request{Page: testPage(html)})

	require.NoError(t, err)
	assert.Len(t, cues, 2)
	require.Len(t, page.posts, 1)
	assert.Equal(t, "CgtkUXc0=", page.posts[0]["params"])
	assert.Equal(t, 1, page.callCount("POST "+ytGetTranscriptURL+"?key=AIzaTestKey"))
}

func TestTranscriptAPI_NoParamsIsMiss(t *testing.T) {
	page := newFake()
	cues, err := (&TranscriptAPI{Up: page}).Acquire(context.Background(), Request{Page: testPage(`<html></html>`)})
	assert.NoError(t, err)
	assert.Empty(t, cues)
	assert.Zero(t, page.callCount("POST"))
}

func TestInitialData_DedupsRepeatedSegments(t *testing.T) {
	html := `<script>var ytInitialData = ` + initialDataJSON + `;</script>`

	cues, err := InitialData{}.Acquire(context.Background(), Request{Page: testPage(html)})

	require.NoError(t, err)
	assert.Equal(t, []cue.Cue{
		{StartMs: 1000, Text: "hello"},
		{StartMs: 2000, Text: "world"},
	}, cues)
}

func TestInitialData_NoObject(t *testing.T) {
	cues, err := InitialData{}.Acquire(context.Background(), Request{Page: testPage(`<html></html>`)})
	assert.NoError(t, err)
	assert.Empty(t, cues)
}

func TestPipeline_FallsThroughEmptyBody(t *testing.T) {
	direct := newFake()
	direct.text["https://www.youtube.com/api/timedtext"] = ""
	second := &stubStrategy{name: "stub", cues: []cue.Cue{
		{StartMs: 0, Text: "a"}, {StartMs: 1000, Text: "b"}, {StartMs: 2000, Text: "c"},
	}}
	p := NewPipeline(&TimedText{Up: direct}, second)
	track := &CaptionTrack{BaseURL: testTrackURL, LanguageCode: "en"}

	tr, err := p.Acquire(context.Background(), Request{VideoID: testVideoID, Track: track})

	require.NoError(t, err)
	assert.Len(t, tr.Cues, 3)
	assert.Equal(t, "stub", tr.Strategy)
	assert.Equal(t, "en", tr.Lang)
	assert.Equal(t, testVideoID, tr.VideoID)
	assert.Equal(t, 1, second.calls)
}

func TestPipeline_ErrorIsMiss(t *testing.T) {
	first := &stubStrategy{name: "broken", err: errors.New("boom")}
	second := &stubStrategy{name: "ok", cues: []cue.Cue{{StartMs: 1, Text: "x"}}}
	third := &stubStrategy{name: "unused", cues: []cue.Cue{{StartMs: 2, Text: "y"}}}

	tr, err := NewPipeline(first, second, third).Acquire(context.Background(), Request{Page: testPage("")})

	require.NoError(t, err)
	assert.Equal(t, "ok", tr.Strategy)
	assert.Zero(t, third.calls, "first non-empty result wins")
}

func TestPipeline_NoSource(t *testing.T) {
	s := &stubStrategy{name: "s"}
	_, err := NewPipeline(s).Acquire(context.Background(), Request{VideoID: testVideoID})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.calls)
}

func TestPipeline_Exhausted(t *testing.T) {
	p := NewPipeline(&stubStrategy{name: "a"}, &stubStrategy{name: "b", err: ErrNotFound})
	_, err := p.Acquire(context.Background(), Request{Page: testPage("")})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &stubStrategy{name: "s", cues: []cue.Cue{{Text: "x"}}}

	_, err := NewPipeline(s).Acquire(ctx, Request{Page: testPage("")})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, s.calls)
}

func TestPipelineFromPolicy(t *testing.T) {
	p := PipelineFromPolicy(engine.DefaultPolicy(), newFake(), newFake(), SnapshotPanels)
	assert.Equal(t, []string{"timedtext", "transcript_api", "initial_data", "dom"}, p.Strategies())

	p = PipelineFromPolicy(engine.DefaultPolicy(), newFake(), newFake(), nil)
	assert.Equal(t, []string{"timedtext", "transcript_api", "initial_data"}, p.Strategies())

	policy := engine.DefaultPolicy().WithStrategies([]string{"initial_data", "timedtext"})
	p = PipelineFromPolicy(policy, newFake(), newFake(), nil)
	assert.Equal(t, []string{"initial_data", "timedtext"}, p.Strategies())
}
