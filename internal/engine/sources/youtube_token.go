package sources

import (
	"net/url"
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/extract"
)

// tokenParam is the query parameter carrying the proof-of-origin token.
const tokenParam = "pot"

// URLToken returns the token carried by a track URL, or "".
func URLToken(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(tokenParam)
}

func hasToken(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Query().Has(tokenParam)
	}
	return strings.Contains(rawURL, "&"+tokenParam+"=") || strings.Contains(rawURL, "?"+tokenParam+"=")
}

// WithToken appends token to rawURL. A URL that already carries a token, or an
// empty token, leaves rawURL unchanged.
func WithToken(rawURL, token string) string {
	if token == "" || rawURL == "" || hasToken(rawURL) {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + tokenParam + "=" + url.QueryEscape(token)
}

// AppendToken returns a copy of tracks with token added to every URL missing one.
// Applying it twice gives the same result as applying it once.
func AppendToken(tracks []CaptionTrack, token string) []CaptionTrack {
	out := make([]CaptionTrack, len(tracks))
	for i, t := range tracks {
		t.BaseURL = WithToken(t.BaseURL, token)
		out[i] = t
	}
	return out
}

// TrackIdentity is the track URL without its token. Two tracks whose URLs
// differ only by the token are the same track. The remaining parameters keep
// their order and escaping.
func TrackIdentity(rawURL string) string {
	base, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return rawURL
	}
	query, frag, hasFrag := strings.Cut(query, "#")
	parts := strings.Split(query, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == tokenParam || strings.HasPrefix(p, tokenParam+"=") {
			continue
		}
		kept = append(kept, p)
	}
	out := base
	if len(kept) > 0 {
		out += "?" + strings.Join(kept, "&")
	}
	if hasFrag {
		out += "#" + frag
	}
	return out
}

// discoverToken finds a token on any track URL, else in the player response.
func discoverToken(tracks []CaptionTrack, pr *playerResponse) string {
	for _, t := range tracks {
		if tok := URLToken(t.BaseURL); tok != "" {
			return tok
		}
	}
	return pr.poToken()
}

// scanRawToken recovers a token from raw page text by substring search.
func scanRawToken(html string) string {
	if tok, ok := extract.StringValueAfter(html, markerPoTokenValue); ok && tok != "" {
		return tok
	}
	for _, marker := range []string{`\u0026` + tokenParam + "=", "&" + tokenParam + "=", "?" + tokenParam + "="} {
		i := strings.Index(html, marker)
		if i < 0 {
			continue
		}
		rest := html[i+len(marker):]
		end := strings.IndexAny(rest, "&\"'\\ <")
		if end < 0 {
			end = len(rest)
		}
		if tok, err := url.QueryUnescape(rest[:end]); err == nil && tok != "" {
			return tok
		}
	}
	return ""
}
