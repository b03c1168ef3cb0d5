package sources

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
)

// TimedText downloads the track URL directly in srv3 format, which lists one
// <p t="ms"> paragraph per caption with word-level <s> children.
type TimedText struct {
	Up Upstream
}

func (*TimedText) Name() string { return "timedtext" }

func (s *TimedText) Acquire(ctx context.Context, req Request) ([]cue.Cue, error) {
	if req.Track == nil || req.Track.BaseURL == "" {
		return nil, nil
	}
	body, err := s.Up.FetchText(ctx, srv3URL(req.Track.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	// An empty body is a valid answer for token-gated tracks.
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return parseTimedText(body)
}

// srv3URL replaces any fmt parameter with fmt=srv3.
func srv3URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("fmt", "srv3")
	u.RawQuery = q.Encode()
	return u.String()
}

// parseTimedText reads srv3 <p t="ms"> nodes, or legacy <text start="s"> nodes
// when no paragraphs exist. Nodes with no text are skipped.
func parseTimedText(body []byte) ([]cue.Cue, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, malformed(fmt.Errorf("parse timedtext: %w", err))
	}

	var cues []cue.Cue
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		ms, _ := strconv.ParseInt(p.AttrOr("t", "0"), 10, 64)
		if text := timedTextContent(p); text != "" {
			cues = append(cues, cue.Cue{StartMs: ms, Text: text})
		}
	})
	if len(cues) > 0 {
		return cues, nil
	}

	doc.Find("text").Each(func(_ int, t *goquery.Selection) {
		sec, _ := strconv.ParseFloat(t.AttrOr("start", "0"), 64)
		if text := timedTextContent(t); text != "" {
			cues = append(cues, cue.Cue{StartMs: int64(sec * 1000), Text: text})
		}
	})
	return cues, nil
}

// timedTextContent is the node's text with a second entity pass: legacy
// timedtext double-escapes, so "&amp;#39;" must end up as "'" and escaped
// <font> markup must end up stripped.
func timedTextContent(s *goquery.Selection) string {
	return engine.CleanHTML(html.UnescapeString(s.Text()))
}
