package cue

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimestamp converts "m:ss" or "h:mm:ss" into milliseconds.
// Parts that are not numbers count as zero; any other shape yields 0.
func ParseTimestamp(s string) int64 {
	parts := strings.Split(strings.TrimSpace(s), ":")
	nums := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			n = 0
		}
		nums[i] = n
	}
	switch len(nums) {
	case 2:
		return (nums[0]*60 + nums[1]) * 1000
	case 3:
		return (nums[0]*3600 + nums[1]*60 + nums[2]) * 1000
	}
	return 0
}

// FormatTimestamp renders ms as "m:ss", or "h:mm:ss" past the first hour.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatCues renders the transcript for copying, one "<timestamp> <text>" line per cue.
func FormatCues(cues []Cue) string {
	var sb strings.Builder
	for i, c := range cues {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(FormatTimestamp(c.StartMs))
		sb.WriteByte(' ')
		sb.WriteString(c.Text)
	}
	return sb.String()
}
