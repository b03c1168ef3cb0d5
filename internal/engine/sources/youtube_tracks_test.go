package sources

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPage(html string) *Page {
	return &Page{URL: testWatchURL, VideoID: testVideoID, HTML: html}
}

func TestResolve_TokenAlreadyInURL(t *testing.T) {
	page := newFake()
	r := &Resolver{Direct: newFake(), Page: page}

	tracks := r.Resolve(context.Background(), testPage(playerHTML(tracksJSON(testTrackURL+"&pot=URLTOK"))))

	require.Len(t, tracks, 1)
	assert.Equal(t, "URLTOK", URLToken(tracks[0].BaseURL))
	assert.Equal(t, "English", string(tracks[0].Name))
	assert.Zero(t, page.callCount("POST"), "no player call when the token is known")
}

func TestResolve_TokenInPlayerResponse(t *testing.T) {
	pr := `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"` + testTrackURL + `","languageCode":"en"}]}},"serviceIntegrityDimensions":{"poToken":"PRTOK"}}`
	r := &Resolver{Direct: newFake(), Page: newFake()}

	tracks := r.Resolve(context.Background(), testPage(playerHTML(pr)))

	require.Len(t, tracks, 1)
	assert.Equal(t, testTrackURL+"&pot=PRTOK", tracks[0].BaseURL)
}

func TestResolve_RecoversTokenThroughPage(t *testing.T) {
	page := newFake()
	page.json[ytPlayerURL] = `{"serviceIntegrityDimensions":{"poToken":"RECOVERED"}}`
	r := &Resolver{Direct: newFake(), Page: page}

	html := playerHTML(tracksJSON(testTrackURL)) + innertubeConfigHTML
	tracks := r.Resolve(context.Background(), testPage(html))

	require.Len(t, tracks, 1)
	assert.Equal(t, "RECOVERED", URLToken(tracks[0].BaseURL))
	assert.Equal(t, 1, page.callCount("POST "+ytPlayerURL+"?key=AIzaTestKey"))
	require.Len(t, page.posts, 1)
	assert.Equal(t, testVideoID, page.posts[0]["videoId"])
	assert.NotNil(t, page.posts[0]["context"])
}

func TestResolve_MissingConfigKeepsTracks(t *testing.T) {
	page := newFake()
	r := &Resolver{Direct: newFake(), Page: page}

	tracks := r.Resolve(context.Background(), testPage(playerHTML(tracksJSON(testTrackURL))))

	require.Len(t, tracks, 1)
	assert.Equal(t, testTrackURL, tracks[0].BaseURL)
	assert.Zero(t, page.callCount("POST"))
}

func TestResolve_FromScratch(t *testing.T) {
	page := newFake()
	page.json[ytPlayerURL] = `{"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[{"baseUrl":"` + testTrackURL + `","languageCode":"en"}]}},"serviceIntegrityDimensions":{"poToken":"FRESH"}}`
	r := &Resolver{Direct: newFake(), Page: page}

	tracks := r.Resolve(context.Background(), testPage(`<html><body>no player here</body></html>`))

	require.Len(t, tracks, 1)
	assert.Equal(t, testTrackURL+"&pot=FRESH", tracks[0].BaseURL)
	assert.Equal(t, 1, page.callCount("POST "+ytPlayerURL+"?prettyPrint=false"), "anonymous identity has no key")
}

func TestResolve_LegacyScan(t *testing.T) {
	html := `<script>window.cfg = {"captionTracks":[{"baseUrl":"https://www.youtube.com/api/timedtext?lang=de","languageCode":"de"}],"poToken":"LEGTOK"};</script>`
	r := &Resolver{Direct: newFake()}

	tracks := r.Resolve(context.Background(), testPage(html))

	require.Len(t, tracks, 1)
	assert.Equal(t, "de", tracks[0].LanguageCode)
	assert.Equal(t, "LEGTOK", URLToken(tracks[0].BaseURL))
}

func TestResolve_NothingFound(t *testing.T) {
	r := &Resolver{Direct: newFake(), Page: newFake()}

	tracks := r.Resolve(context.Background(), testPage(`<html></html>`))

	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)
}

func TestResolveCaptionTracks_PageFetchFails(t *testing.T) {
	r := &Resolver{Direct: newFake(), Page: newFake()}

	tracks := r.ResolveCaptionTracks(context.Background(), testWatchURL)

	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)
}

func TestResolveCaptionTracks_FetchesPage(t *testing.T) {
	direct := newFake()
	direct.text[testWatchURL] = playerHTML(tracksJSON(testTrackURL + "&pot=T"))
	r := &Resolver{Direct: direct}

	tracks := r.ResolveCaptionTracks(context.Background(), testWatchURL)

	require.Len(t, tracks, 1)
	assert.Equal(t, 1, direct.callCount("GET "+testWatchURL))
}

func TestExtractPlayerResponse_EncodedString(t *testing.T) {
	encoded, err := json.Marshal(tracksJSON(testTrackURL))
	require.NoError(t, err)
	html := `<script>var cfg = {"PLAYER_RESPONSE":` + string(encoded) + `};</script>`

	pr, ok := extractPlayerResponse(html)

	require.True(t, ok)
	require.Len(t, pr.tracks(), 1)
	assert.Equal(t, testTrackURL, pr.tracks()[0].BaseURL)
}

func TestPlayerResponse_NilSafe(t *testing.T) {
	var pr *playerResponse
	assert.Nil(t, pr.tracks())
	assert.Empty(t, pr.poToken())
}

func TestScrapeInnertubeConfig(t *testing.T) {
	c, err := scrapeInnertubeConfig(innertubeConfigHTML)
	require.NoError(t, err)
	assert.Equal(t, "AIzaTestKey", c.APIKey)
	assert.EqualValues(t, 1, c.ClientName)
	assert.Equal(t, "2.20250222.10.00", c.ClientVersion)
	assert.Equal(t, "CgtWaXNpdG9y", c.VisitorData)
	assert.True(t, json.Valid(c.Context))

	_, err = scrapeInnertubeConfig(`{"INNERTUBE_API_KEY":"k"}`)
	assert.ErrorIs(t, err, errConfigField)
	assert.Contains(t, err.Error(), "INNERTUBE_CONTEXT")
}

func TestPickTrack(t *testing.T) {
	tracks := []CaptionTrack{
		{LanguageCode: "de", BaseURL: "de"},
		{LanguageCode: "en", Kind: "asr", BaseURL: "en-asr"},
		{LanguageCode: "en-GB", BaseURL: "en-gb"},
		{LanguageCode: "fr", Kind: "asr", BaseURL: "fr-asr"},
	}
	tests := []struct {
		name  string
		langs []string
		want  string
	}{
		{"manual preferred over asr", []string{"en"}, "en-gb"},
		{"asr when only asr matches", []string{"fr"}, "fr-asr"},
		{"first preference wins", []string{"de", "en"}, "de"},
		{"english fallback", []string{"ja"}, "en-asr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PickTrack(tracks, tt.langs)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.BaseURL)
		})
	}

	_, ok := PickTrack(nil, []string{"en"})
	assert.False(t, ok)

	got, ok := PickTrack([]CaptionTrack{{LanguageCode: "ja", BaseURL: "ja"}}, []string{"ko"})
	require.True(t, ok)
	assert.Equal(t, "ja", got.BaseURL)
}

func TestTrackName_Shapes(t *testing.T) {
	var tracks []CaptionTrack
	err := json.Unmarshal([]byte(`[
		{"baseUrl":"a","languageCode":"en","name":{"simpleText":"English"}},
		{"baseUrl":"b","languageCode":"de","name":{"runs":[{"text":"Deutsch"},{"text":" (auto)"}]}},
		{"baseUrl":"c","languageCode":"fr","name":"Français"}
	]`), &tracks)
	require.NoError(t, err)
	assert.Equal(t, "English", string(tracks[0].Name))
	assert.Equal(t, "Deutsch (auto)", string(tracks[1].Name))
	assert.Equal(t, "Français", string(tracks[2].Name))
}

func TestVideoID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/live/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/page", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, VideoID(tt.in))
		})
	}
}
