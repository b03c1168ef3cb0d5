package subserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
	"github.com/anatolykoptev/go_subsearch/internal/search"
	"github.com/anatolykoptev/go_subsearch/internal/toolutil"
)

const previewRunes = 280

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

// RegisterTools registers the transcript tools on server:
// caption_tracks, transcript_get, subtitle_search, transcript_copy.
func RegisterTools(server *mcp.Server, rt *Runtime) {
	registerCaptionTracks(server, rt)
	registerTranscriptGet(server, rt)
	registerSubtitleSearch(server, rt)
	registerTranscriptCopy(server, rt)
}

// videoURL accepts a URL or a bare video ID and returns the watch URL and ID.
func videoURL(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", fmt.Errorf("url is required")
	}
	id := sources.VideoID(raw)
	if id == "" {
		return "", "", fmt.Errorf("not a YouTube video: %q", raw)
	}
	if !strings.Contains(raw, "/") {
		raw = sources.WatchURL(id)
	}
	return raw, id, nil
}

func registerCaptionTracks(server *mcp.Server, rt *Runtime) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "caption_tracks",
		Description: "List the caption tracks of a YouTube video: language code, display name, auto-generated flag and the timedtext URL (with proof-of-origin token when one was found).",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, rt.captionTracks)
}

func (rt *Runtime) captionTracks(ctx context.Context, _ *mcp.CallToolRequest, input CaptionTracksInput) (*mcp.CallToolResult, CaptionTracksOutput, error) {
	url, id, err := videoURL(input.URL)
	if err != nil {
		return nil, CaptionTracksOutput{}, err
	}

	cacheKey := engine.CacheKey("caption_tracks", id)
	if out, ok := toolutil.CacheLoadJSON[CaptionTracksOutput](ctx, cacheKey); ok {
		return nil, out, nil
	}

	out := CaptionTracksOutput{VideoID: id, Tracks: rt.Viewer.CaptionTracks(ctx, url)}
	if len(out.Tracks) > 0 {
		toolutil.CacheStoreJSON(ctx, cacheKey, out)
	}
	return nil, out, nil
}

// transcript navigates the session to url and returns its transcript.
func (rt *Runtime) transcript(ctx context.Context, url string) (sources.Transcript, error) {
	rt.Session.Navigate(url)
	t, err := rt.Session.Transcript(ctx)
	if err != nil {
		return sources.Transcript{}, err
	}
	return t, nil
}

// noTranscript reports errors that mean "no transcript for this request":
// none exists, or the page moved to another video while it was loading.
func noTranscript(err error) bool {
	return errors.Is(err, sources.ErrEmpty) ||
		errors.Is(err, sources.ErrNotFound) ||
		errors.Is(err, sources.ErrUnavailable)
}

func registerTranscriptGet(server *mcp.Server, rt *Runtime) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_get",
		Description: "Fetch the time-indexed transcript of a YouTube video. Tries the caption track download, the transcript API, embedded page data and the transcript panel in turn. Returns cues with start times in milliseconds.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, rt.transcriptGet)
}

func (rt *Runtime) transcriptGet(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptOutput, error) {
	url, id, err := videoURL(input.URL)
	if err != nil {
		return nil, TranscriptOutput{}, err
	}
	t, err := rt.transcript(ctx, url)
	if noTranscript(err) {
		return nil, TranscriptOutput{VideoID: id, Cues: []cue.Cue{}}, nil
	}
	if err != nil {
		return nil, TranscriptOutput{}, fmt.Errorf("transcript %s: %w", id, err)
	}
	return nil, TranscriptOutput{
		VideoID:   id,
		Lang:      t.Lang,
		Strategy:  t.Strategy,
		Cues:      t.Cues,
		WordCount: len(t.Words()),
		Preview:   engine.TruncateRunes(cue.FormatCues(t.Cues), previewRunes, "..."),
	}, nil
}

func registerSubtitleSearch(server *mcp.Server, rt *Runtime) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "subtitle_search",
		Description: "Search a YouTube video's subtitles for a phrase. Each query word matches as a prefix of consecutive transcript words, so partial words autocomplete. Returns matches in chronological order with up to three following words and a seek position.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, rt.subtitleSearch)
}

func (rt *Runtime) subtitleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SubtitleSearchInput) (*mcp.CallToolResult, SubtitleSearchOutput, error) {
	url, _, err := videoURL(input.URL)
	if err != nil {
		return nil, SubtitleSearchOutput{}, err
	}
	if strings.TrimSpace(input.Query) == "" {
		return nil, SubtitleSearchOutput{}, fmt.Errorf("query is required")
	}

	tracks := rt.Viewer.CaptionTracks(ctx, url)
	var track *sources.CaptionTrack
	if t, ok := sources.PickTrack(tracks, toolutil.NormLangs(nil)); ok {
		track = &t
	}
	words := rt.Viewer.Subtitles(ctx, url, track)

	all := search.Search(input.Query, words)
	hits := search.Window(all, input.Limit)
	out := SubtitleSearchOutput{Query: input.Query, Total: len(all), Results: make([]SearchHit, 0, len(hits))}
	for _, h := range hits {
		out.Results = append(out.Results, SearchHit{
			Time:        h.Time,
			Timestamp:   search.FormatTime(h.Time),
			Word:        h.Word,
			Right:       h.Right,
			Label:       h.Label(),
			SeekSeconds: h.SeekSeconds(),
		})
	}

	if input.Seek && len(hits) > 0 {
		if _, err := rt.Viewer.Skip(ctx, hits[0]); err != nil {
			slog.Warn("subtitle_search: seek failed", slog.Any("error", err))
		} else {
			pos := hits[0].SeekSeconds()
			out.Position = &pos
		}
	}
	return nil, out, nil
}

func registerTranscriptCopy(server *mcp.Server, rt *Runtime) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "transcript_copy",
		Description: "Copy a YouTube video's transcript to the system clipboard as \"m:ss text\" lines. The text is returned as well, so the tool is useful where no clipboard exists.",
	}, rt.transcriptCopy)
}

func (rt *Runtime) transcriptCopy(ctx context.Context, _ *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, TranscriptCopyOutput, error) {
	url, id, err := videoURL(input.URL)
	if err != nil {
		return nil, TranscriptCopyOutput{}, err
	}
	t, err := rt.transcript(ctx, url)
	if noTranscript(err) {
		return nil, TranscriptCopyOutput{VideoID: id}, nil
	}
	if err != nil {
		return nil, TranscriptCopyOutput{}, fmt.Errorf("transcript %s: %w", id, err)
	}

	text := cue.FormatCues(t.Cues)
	out := TranscriptCopyOutput{VideoID: id, Lines: len(t.Cues), Text: text}
	if clipboard.Unsupported {
		slog.Debug("transcript_copy: no clipboard on this system")
		return nil, out, nil
	}
	if err := writeClipboard(text); err != nil {
		slog.Warn("transcript_copy: clipboard write failed", slog.Any("error", err))
		return nil, out, nil
	}
	out.Copied = true
	return nil, out, nil
}
