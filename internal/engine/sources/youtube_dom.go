package sources

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
	"github.com/anatolykoptev/go_subsearch/internal/engine"
)

// Segment is one rendered transcript entry. Structured is set when the entry
// has separate timestamp and text children.
type Segment struct {
	Structured bool
	TimeText   string
	BodyText   string
	InnerText  string
}

// TranscriptPanel drives the page's transcript panel.
type TranscriptPanel interface {
	HasToggle(ctx context.Context) (bool, error)
	// Conceal applies a transient style that keeps the panel from shifting the
	// layout while it is open. The returned function removes it.
	Conceal(ctx context.Context) (restore func(), err error)
	Open(ctx context.Context) error
	Segments(ctx context.Context) ([]Segment, error)
	Close(ctx context.Context) error
}

// DOMScrape opens the transcript panel, waits for it to render, and reads the
// entries back.
type DOMScrape struct {
	Open PanelOpener
	Poll engine.DOMPolicy
}

func (*DOMScrape) Name() string { return "dom" }

func (s *DOMScrape) Acquire(ctx context.Context, req Request) ([]cue.Cue, error) {
	if req.Page == nil || s.Open == nil {
		return nil, nil
	}
	panel, err := s.Open(req.Page)
	if err != nil {
		return nil, fmt.Errorf("open panel driver: %w", err)
	}
	ok, err := panel.HasToggle(ctx)
	if err != nil || !ok {
		return nil, err
	}

	restore, err := panel.Conceal(ctx)
	if err != nil {
		return nil, fmt.Errorf("conceal panel: %w", err)
	}
	defer restore()

	if err := panel.Open(ctx); err != nil {
		return nil, fmt.Errorf("open panel: %w", err)
	}
	defer func() {
		if err := panel.Close(ctx); err != nil {
			slog.Debug("youtube: transcript panel close failed", slog.Any("error", err))
		}
	}()

	segs, err := engine.Poll(ctx, s.Poll.SegmentsInterval, s.Poll.SegmentsTimeout,
		func(ctx context.Context) ([]Segment, bool, error) {
			segs, err := panel.Segments(ctx)
			return segs, len(segs) > 0, err
		})
	if errors.Is(err, engine.ErrPollTimeout) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// Entries appear before their text is filled in; an entry that is still
	// blank after the deadline counts as rendered empty.
	segs, err = engine.Poll(ctx, s.Poll.TextInterval, s.Poll.TextTimeout,
		func(ctx context.Context) ([]Segment, bool, error) {
			segs, err := panel.Segments(ctx)
			return segs, len(segs) > 0 && strings.TrimSpace(segs[0].InnerText) != "", err
		})
	if errors.Is(err, engine.ErrPollTimeout) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cues []cue.Cue
	for _, seg := range segs {
		if c, ok := parseSegment(seg); ok {
			cues = append(cues, c)
		}
	}
	return cues, nil
}

var leadingTimestampRE = regexp.MustCompile(`^(\d+:\d+(?::\d+)?)\s*(.*)`)

var lineBreakRE = regexp.MustCompile(`[\r\n]+`)

// parseSegment reads an entry's timestamp and text: structured children
// first, then the first line of multi-line text as the timestamp, then a
// leading timestamp on a single line.
func parseSegment(seg Segment) (cue.Cue, bool) {
	var timeText, text string
	if seg.Structured {
		timeText, text = strings.TrimSpace(seg.TimeText), strings.TrimSpace(seg.BodyText)
	} else {
		var lines []string
		for _, l := range lineBreakRE.Split(strings.TrimSpace(seg.InnerText), -1) {
			if strings.TrimSpace(l) != "" {
				lines = append(lines, strings.TrimSpace(l))
			}
		}
		switch {
		case len(lines) >= 2:
			timeText, text = lines[0], strings.Join(lines[1:], " ")
		case len(lines) == 1:
			if m := leadingTimestampRE.FindStringSubmatch(lines[0]); m != nil {
				timeText, text = m[1], m[2]
			} else {
				text = lines[0]
			}
		}
	}
	if text == "" {
		return cue.Cue{}, false
	}
	var ms int64
	if timeText != "" {
		ms = cue.ParseTimestamp(timeText)
	}
	return cue.Cue{StartMs: ms, Text: text}, true
}

// --- snapshot driver ---

const (
	selToggle      = "ytd-video-description-transcript-section-renderer button"
	selEngagement  = `ytd-engagement-panel-section-list-renderer[target-id="engagement-panel-searchable-transcript"]`
	selPanel       = "ytd-transcript-renderer, " + selEngagement
	selSegment     = "ytd-transcript-segment-renderer"
	selTimestamp   = `.segment-timestamp, [class*="timestamp"]`
	selText        = `.segment-text, [class*="text"], yt-formatted-string`
	selClose       = "#visibility-button button"
	concealStyleID = "subsearch-conceal"
	concealCSS     = selEngagement + ` { opacity: 0 !important; pointer-events: none !important; position: fixed !important; top: 0 !important; left: 0 !important; }`
)

// SnapshotPanel drives the transcript panel of a static DOM snapshot. Opening
// and closing are recorded, not performed: the snapshot already contains
// whatever the panel rendered.
//
// Watch HTML fetched over HTTP has no rendered engagement panels, so over
// SnapshotPanels the dom strategy misses at HasToggle. It only yields cues
// for snapshots taken from a rendered page, or behind a TranscriptPanel that
// drives a live browser.
type SnapshotPanel struct {
	doc    *goquery.Document
	opened bool
	closed bool
}

// NewSnapshotPanel parses html into a snapshot driver.
func NewSnapshotPanel(htmlText string) (*SnapshotPanel, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return nil, err
	}
	return &SnapshotPanel{doc: doc}, nil
}

// SnapshotPanels is a PanelOpener over the fetched page document. See
// SnapshotPanel for why this rarely finds a panel in server-fetched HTML.
func SnapshotPanels(page *Page) (TranscriptPanel, error) {
	return NewSnapshotPanel(page.HTML)
}

func (p *SnapshotPanel) HasToggle(context.Context) (bool, error) {
	return p.doc.Find(selToggle).Length() > 0, nil
}

func (p *SnapshotPanel) Conceal(context.Context) (func(), error) {
	p.doc.Find("head").AppendHtml(`<style id="` + concealStyleID + `">` + concealCSS + `</style>`)
	return func() { p.doc.Find("style#" + concealStyleID).Remove() }, nil
}

// Concealed reports whether the transient style is currently applied.
func (p *SnapshotPanel) Concealed() bool {
	return p.doc.Find("style#"+concealStyleID).Length() > 0
}

// Closed reports whether the panel's close button was found and used.
func (p *SnapshotPanel) Closed() bool { return p.closed }

func (p *SnapshotPanel) Open(context.Context) error {
	p.opened = true
	return nil
}

func (p *SnapshotPanel) Segments(context.Context) ([]Segment, error) {
	if !p.opened {
		return nil, nil
	}
	var segs []Segment
	p.doc.Find(selPanel).First().Find(selSegment).Each(func(_ int, s *goquery.Selection) {
		seg := Segment{InnerText: innerText(s)}
		ts, txt := s.Find(selTimestamp).First(), s.Find(selText).First()
		if ts.Length() > 0 && txt.Length() > 0 {
			seg.Structured = true
			seg.TimeText = innerText(ts)
			seg.BodyText = innerText(txt)
		}
		segs = append(segs, seg)
	})
	return segs, nil
}

func (p *SnapshotPanel) Close(context.Context) error {
	if p.doc.Find(selEngagement).Find(selClose).Length() > 0 {
		p.closed = true
	}
	p.opened = false
	return nil
}

// blockElements break lines in innerText.
var blockElements = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true, "tr": true,
	"section": true, "header": true, "footer": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// innerText approximates the rendered text of a selection: text nodes in
// order, with line breaks around block elements and at <br>.
func innerText(s *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				sb.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			sb.WriteByte('\n')
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.TrimSpace(sb.String())
}
