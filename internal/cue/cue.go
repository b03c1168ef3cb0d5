// Package cue holds the canonical transcript representation every acquisition
// strategy converges on, plus the helpers that flatten it into a searchable
// word corpus.
package cue

// Cue is one transcript unit: a start time and the raw, un-normalized text.
type Cue struct {
	StartMs int64  `json:"startMs"`
	Text    string `json:"text"`
}

// Word is one normalized token carrying the start time of the cue it came from.
type Word struct {
	Word   string `json:"word"`
	TimeMs int64  `json:"time"`
}

// Flatten splits every cue into normalized words. Order follows the cues, and
// within a cue the token order.
func Flatten(cues []Cue) []Word {
	words := make([]Word, 0, len(cues)*4)
	for _, c := range cues {
		for _, w := range Words(c.Text) {
			words = append(words, Word{Word: w, TimeMs: c.StartMs})
		}
	}
	return words
}

type dedupKey struct {
	startMs int64
	text    string
}

// Dedup drops exact (StartMs, Text) repeats. The first occurrence wins.
func Dedup(cues []Cue) []Cue {
	if len(cues) == 0 {
		return cues
	}
	seen := make(map[dedupKey]struct{}, len(cues))
	out := make([]Cue, 0, len(cues))
	for _, c := range cues {
		k := dedupKey{c.StartMs, c.Text}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}
