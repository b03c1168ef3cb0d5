package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/extract"
)

// YouTube Innertube API: constants, payload types, and page config scraping.

const (
	ytPlayerURL        = "https://www.youtube.com/youtubei/v1/player"
	ytGetTranscriptURL = "https://www.youtube.com/youtubei/v1/get_transcript"
	ytWebVersion       = "2.20250222.10.00"
	ytWebClientName    = 1
)

// Markers for values embedded in the watch page.
const (
	markerPlayerResponse    = "ytInitialPlayerResponse"
	markerPlayerResponseStr = `"PLAYER_RESPONSE":"`
	markerInitialData       = "ytInitialData"
	markerCaptionTracks     = "captionTracks"
	markerAPIKey            = `"INNERTUBE_API_KEY":"`
	markerContext           = `"INNERTUBE_CONTEXT":`
	markerClientName        = `"INNERTUBE_CONTEXT_CLIENT_NAME":`
	markerClientVersion     = `"INNERTUBE_CLIENT_VERSION":"`
	markerVisitorData       = `"VISITOR_DATA":"`
	markerPoTokenValue      = `"poToken":"`
)

// --- /player response ---

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []CaptionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	ServiceIntegrityDimensions *struct {
		PoToken string `json:"poToken"`
	} `json:"serviceIntegrityDimensions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (p *playerResponse) tracks() []CaptionTrack {
	if p == nil || p.Captions == nil {
		return nil
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

func (p *playerResponse) poToken() string {
	if p == nil || p.ServiceIntegrityDimensions == nil {
		return ""
	}
	return p.ServiceIntegrityDimensions.PoToken
}

// extractPlayerResponse reads the embedded player response: first the
// ytInitialPlayerResponse object, then the JSON-encoded PLAYER_RESPONSE string.
func extractPlayerResponse(html string) (*playerResponse, bool) {
	var pr playerResponse
	if err := extract.DecodeObjectAfter(html, markerPlayerResponse, &pr); err == nil {
		return &pr, true
	}
	if s, ok := extract.StringValueAfter(html, markerPlayerResponseStr); ok {
		var pr playerResponse
		if json.Unmarshal([]byte(s), &pr) == nil {
			return &pr, true
		}
	}
	return nil, false
}

// --- shared text shapes ---

// textRuns is Innertube's formatted string: either simpleText or a list of runs.
type textRuns struct {
	SimpleText string `json:"simpleText"`
	Runs       []struct {
		Text string `json:"text"`
	} `json:"runs"`
}

func (t textRuns) String() string {
	if t.SimpleText != "" {
		return t.SimpleText
	}
	var sb strings.Builder
	for _, r := range t.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// flexInt decodes integers that Innertube emits either as numbers or strings.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("flexInt %q: %w", s, err)
	}
	*n = flexInt(v)
	return nil
}

// --- WEB client context ---

type ytWebClientCtx struct {
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	VisitorData   string `json:"visitorData,omitempty"`
	Hl            string `json:"hl,omitempty"`
	Gl            string `json:"gl,omitempty"`
}

type ytWebUser struct {
	EnableSafetyMode bool `json:"enableSafetyMode"`
}

type ytWebReqCtx struct {
	UseSsl bool `json:"useSsl"`
}

// generateVisitorData creates a random 11-char visitor ID for Innertube requests.
func generateVisitorData() string {
	const chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	b := make([]byte, 11)
	for i := range b {
		b[i] = chars[rand.Intn(len(chars))] //nolint:gosec // non-cryptographic use
	}
	return string(b)
}

// ytWebContext builds the standard WEB client context for Innertube payloads.
func ytWebContext(visitorData string) map[string]any {
	return map[string]any{
		"client": ytWebClientCtx{
			ClientName:    "WEB",
			ClientVersion: ytWebVersion,
			VisitorData:   visitorData,
			Hl:            "en",
			Gl:            "US",
		},
		"user":    ytWebUser{EnableSafetyMode: false},
		"request": ytWebReqCtx{UseSsl: true},
	}
}

// --- page config ---

// innertubeConfig is the client identity scraped from a watch page.
type innertubeConfig struct {
	APIKey        string
	Context       json.RawMessage
	ClientName    int64
	ClientVersion string
	VisitorData   string
}

var errConfigField = errors.New("innertube config field missing")

func malformed(err error) error { return errors.Join(extract.ErrMalformed, err) }

// scrapeInnertubeConfig reads each field independently; the first missing one
// is reported and the rest are not needed.
func scrapeInnertubeConfig(html string) (innertubeConfig, error) {
	var c innertubeConfig
	var ok bool
	if c.APIKey, ok = extract.StringValueAfter(html, markerAPIKey); !ok || c.APIKey == "" {
		return c, fmt.Errorf("%w: INNERTUBE_API_KEY", errConfigField)
	}
	raw, ok := extract.ObjectAfter(html, markerContext)
	if !ok || !json.Valid(raw) {
		return c, fmt.Errorf("%w: INNERTUBE_CONTEXT", errConfigField)
	}
	c.Context = raw
	if c.ClientName, ok = extract.NumberAfter(html, markerClientName); !ok {
		return c, fmt.Errorf("%w: INNERTUBE_CONTEXT_CLIENT_NAME", errConfigField)
	}
	if c.ClientVersion, ok = extract.StringValueAfter(html, markerClientVersion); !ok || c.ClientVersion == "" {
		return c, fmt.Errorf("%w: INNERTUBE_CLIENT_VERSION", errConfigField)
	}
	if c.VisitorData, ok = extract.StringValueAfter(html, markerVisitorData); !ok || c.VisitorData == "" {
		return c, fmt.Errorf("%w: VISITOR_DATA", errConfigField)
	}
	return c, nil
}

// defaultInnertubeConfig is the anonymous WEB identity used when the page
// carries no config.
func defaultInnertubeConfig() innertubeConfig {
	visitor := generateVisitorData()
	raw, _ := json.Marshal(ytWebContext(visitor))
	return innertubeConfig{
		Context:       raw,
		ClientName:    ytWebClientName,
		ClientVersion: ytWebVersion,
		VisitorData:   visitor,
	}
}

func (c innertubeConfig) headers() map[string]string {
	h := map[string]string{
		"X-Youtube-Client-Name":    strconv.FormatInt(c.ClientName, 10),
		"X-Youtube-Client-Version": c.ClientVersion,
		"Origin":                   "https://www.youtube.com",
	}
	if c.VisitorData != "" {
		h["X-Goog-Visitor-Id"] = c.VisitorData
	}
	return h
}

func (c innertubeConfig) endpoint(base string) string {
	if c.APIKey == "" {
		return base + "?prettyPrint=false"
	}
	return base + "?key=" + c.APIKey + "&prettyPrint=false"
}

// postInnertube POSTs payload to an Innertube endpoint through up, adding the
// client context and identity headers from c.
func postInnertube(ctx context.Context, up Upstream, base string, c innertubeConfig, payload map[string]any) ([]byte, error) {
	payload["context"] = c.Context
	body, err := up.PostJSON(ctx, c.endpoint(base), payload, c.headers())
	if err != nil {
		return nil, fmt.Errorf("innertube [%s]: %w", base, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("innertube [%s]: empty response", base)
	}
	return body, nil
}
