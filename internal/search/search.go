// Package search implements subtitle autocomplete over a flattened word corpus.
// There is no index: every query is a linear scan, which is fast enough for
// transcripts of a few tens of thousands of words.
package search

import (
	"strings"

	"github.com/anatolykoptev/go_subsearch/internal/cue"
)

const (
	// RightContext is the number of words shown after a match.
	RightContext = 3
	// DefaultWindow is how many suggestions the search box shows.
	DefaultWindow = 8
)

// Result is one match: the time and word where the match starts, plus up to
// RightContext following words.
type Result struct {
	Time  int64    `json:"time"`
	Word  string   `json:"word"`
	Right []string `json:"right"`
}

// Search returns every corpus position where the query matches, in corpus order.
// Query words are normalized like transcript text; the j-th query word must be
// a prefix of the word at position i+j.
func Search(query string, corpus []cue.Word) []Result {
	words := cue.Words(query)
	if len(words) == 0 {
		return []Result{}
	}

	results := []Result{}
	for i := range corpus {
		if !matchAt(corpus, i, words) {
			continue
		}
		end := min(i+1+RightContext, len(corpus))
		right := make([]string, 0, end-i-1)
		for _, w := range corpus[i+1 : end] {
			right = append(right, w.Word)
		}
		results = append(results, Result{
			Time:  corpus[i].TimeMs,
			Word:  corpus[i].Word,
			Right: right,
		})
	}
	return results
}

func matchAt(corpus []cue.Word, i int, words []string) bool {
	if i+len(words) > len(corpus) {
		return false
	}
	for j, w := range words {
		if !strings.HasPrefix(corpus[i+j].Word, w) {
			return false
		}
	}
	return true
}

// Window returns at most n results. n <= 0 means DefaultWindow.
func Window(results []Result, n int) []Result {
	if n <= 0 {
		n = DefaultWindow
	}
	if len(results) <= n {
		return results
	}
	return results[:n]
}

// SeekSeconds is the player position for a result.
func (r Result) SeekSeconds() float64 {
	return float64(r.Time) / 1000
}

// Label renders a result the way the suggestion list shows it:
// "<word> <right...> (<timestamp>)".
func (r Result) Label() string {
	var sb strings.Builder
	sb.WriteString(r.Word)
	if len(r.Right) > 0 {
		sb.WriteByte(' ')
		sb.WriteString(strings.Join(r.Right, " "))
	}
	sb.WriteString(" (")
	sb.WriteString(FormatTime(r.Time))
	sb.WriteByte(')')
	return sb.String()
}

// FormatTime renders a result time for display.
func FormatTime(ms int64) string {
	return cue.FormatTimestamp(ms)
}
