package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithToken(t *testing.T) {
	tests := []struct {
		name, url, token, want string
	}{
		{"appends with ampersand", "https://x/t?v=1", "TOK", "https://x/t?v=1&pot=TOK"},
		{"appends with question mark", "https://x/t", "TOK", "https://x/t?pot=TOK"},
		{"keeps existing token", "https://x/t?v=1&pot=OLD", "NEW", "https://x/t?v=1&pot=OLD"},
		{"empty token", "https://x/t?v=1", "", "https://x/t?v=1"},
		{"escapes token", "https://x/t?v=1", "a+b/c", "https://x/t?v=1&pot=a%2Bb%2Fc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithToken(tt.url, tt.token))
		})
	}
}

func TestAppendToken_Idempotent(t *testing.T) {
	tracks := []CaptionTrack{
		{BaseURL: "https://x/t?lang=en"},
		{BaseURL: "https://x/t?lang=de&pot=KEEP"},
	}
	once := AppendToken(tracks, "TOK")
	twice := AppendToken(once, "TOK")

	assert.Equal(t, once, twice)
	assert.Equal(t, "https://x/t?lang=en&pot=TOK", once[0].BaseURL)
	assert.Equal(t, "https://x/t?lang=de&pot=KEEP", once[1].BaseURL)
	assert.Equal(t, "https://x/t?lang=en", tracks[0].BaseURL, "input must not be modified")
}

func TestTrackIdentity(t *testing.T) {
	a := "https://x/t?lang=en&v=1"
	b := WithToken(a, "TOK")
	assert.NotEqual(t, a, b)
	assert.Equal(t, TrackIdentity(a), TrackIdentity(b))
	assert.Equal(t, "TOK", URLToken(b))
	assert.Empty(t, URLToken(a))
}

func TestTrackIdentity_KeepsQueryOrder(t *testing.T) {
	tests := []struct {
		name, url, want string
	}{
		{
			"unsorted timedtext",
			"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&ei=abc&caps=asr&xoaf=5&hl=en&ip=0.0.0.0&sparams=ip%2Cipbits&signature=A1.B2&key=yt8&kind=asr&lang=en&pot=TOK",
			"https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&ei=abc&caps=asr&xoaf=5&hl=en&ip=0.0.0.0&sparams=ip%2Cipbits&signature=A1.B2&key=yt8&kind=asr&lang=en",
		},
		{"token in the middle", "https://x/t?v=1&pot=TOK&lang=en", "https://x/t?v=1&lang=en"},
		{"token only", "https://x/t?pot=TOK", "https://x/t"},
		{"fragment kept", "https://x/t?v=1&pot=TOK#frag", "https://x/t?v=1#frag"},
		{"no query", "https://x/t", "https://x/t"},
		{"lookalike param kept", "https://x/t?pots=1&v=1", "https://x/t?pots=1&v=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrackIdentity(tt.url))
		})
	}

	plain := "https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en"
	assert.Equal(t, TrackIdentity(plain), TrackIdentity(WithToken(plain, "TOK")),
		"tracks differing only by token share an identity")
	assert.Equal(t, plain, TrackIdentity(WithToken(plain, "TOK")))
}

func TestScanRawToken(t *testing.T) {
	tests := []struct {
		name, html, want string
	}{
		{"poToken field", `{"serviceIntegrityDimensions":{"poToken":"PT123"}}`, "PT123"},
		{"unicode-escaped ampersand", `"baseUrl":"https://x/t?v=1\u0026pot=ESC1\u0026lang=en"`, "ESC1"},
		{"raw query", `<a href="https://x/t?v=1&pot=RAW2&lang=en">`, "RAW2"},
		{"leading query", `"https://x/t?pot=Q3"`, "Q3"},
		{"none", `<html>nothing here</html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scanRawToken(tt.html))
		})
	}
}
