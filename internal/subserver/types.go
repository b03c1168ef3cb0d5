package subserver

import (
	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine/sources"
)

// CaptionTracksInput is the input for caption_tracks.
type CaptionTracksInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL (watch, shorts, youtu.be) or 11-char video ID"`
}

// CaptionTracksOutput lists the tracks of one video.
type CaptionTracksOutput struct {
	VideoID string                 `json:"video_id"`
	Tracks  []sources.CaptionTrack `json:"tracks"`
}

// TranscriptInput is the input for transcript_get and transcript_copy.
type TranscriptInput struct {
	URL string `json:"url" jsonschema:"YouTube video URL (watch, shorts, youtu.be) or 11-char video ID"`
}

// TranscriptOutput is an acquired transcript.
type TranscriptOutput struct {
	VideoID   string    `json:"video_id"`
	Lang      string    `json:"lang,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	Cues      []cue.Cue `json:"cues"`
	WordCount int       `json:"word_count"`
	Preview   string    `json:"preview,omitempty"`
}

// SubtitleSearchInput is the input for subtitle_search.
type SubtitleSearchInput struct {
	URL   string `json:"url" jsonschema:"YouTube video URL (watch, shorts, youtu.be) or 11-char video ID"`
	Query string `json:"query" jsonschema:"Words to find; each word matches as a prefix of consecutive transcript words"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max results (default 8)"`
	Seek  bool   `json:"seek,omitempty" jsonschema:"Seek the player to the first result"`
}

// SearchHit is one match with its display label.
type SearchHit struct {
	Time        int64    `json:"time"`
	Timestamp   string   `json:"timestamp"`
	Word        string   `json:"word"`
	Right       []string `json:"right"`
	Label       string   `json:"label"`
	SeekSeconds float64  `json:"seek_seconds"`
}

// SubtitleSearchOutput holds the windowed matches.
type SubtitleSearchOutput struct {
	Query    string      `json:"query"`
	Results  []SearchHit `json:"results"`
	Total    int         `json:"total"`
	Position *float64    `json:"position,omitempty"`
}

// TranscriptCopyOutput reports a clipboard copy.
type TranscriptCopyOutput struct {
	VideoID string `json:"video_id"`
	Copied  bool   `json:"copied"`
	Lines   int    `json:"lines"`
	Text    string `json:"text"`
}
