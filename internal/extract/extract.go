// Package extract pulls JSON values out of larger text blobs (watch page HTML,
// inline scripts) without parsing the blob as a whole. Values are located by a
// marker token and cut out by depth counting.
package extract

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the marker or the value after it is absent.
	ErrNotFound = errors.New("extract: marker not found")
	// ErrMalformed means a value was cut out but did not decode.
	ErrMalformed = errors.New("extract: malformed payload")
)

// ObjectAfter returns the balanced JSON object that starts at the first '{'
// after marker.
func ObjectAfter(haystack, marker string) ([]byte, bool) {
	return balancedAfter(haystack, marker, '{', '}')
}

// ArrayAfter returns the balanced JSON array that starts at the first '['
// after marker.
func ArrayAfter(haystack, marker string) ([]byte, bool) {
	return balancedAfter(haystack, marker, '[', ']')
}

func balancedAfter(haystack, marker string, open, close byte) ([]byte, bool) {
	i := strings.Index(haystack, marker)
	if i < 0 {
		return nil, false
	}
	start := strings.IndexByte(haystack[i+len(marker):], open)
	if start < 0 {
		return nil, false
	}
	start += i + len(marker)
	end := Balanced(haystack[start:], open, close)
	if end < 0 {
		return nil, false
	}
	return []byte(haystack[start : start+end]), true
}

// Balanced returns the length of the balanced open/close run at the start of s,
// or -1 when s does not start with open or never closes. Delimiters inside
// string literals are ignored.
func Balanced(s string, open, close byte) int {
	if len(s) == 0 || s[0] != open {
		return -1
	}
	depth := 0
	inStr := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// StringValueAfter reads the JSON string literal whose opening quote is the
// last byte of marker (e.g. `"PLAYER_RESPONSE":"`) and returns it decoded.
// Escapes are honoured while scanning, so `\"` never terminates the value.
func StringValueAfter(haystack, marker string) (string, bool) {
	i := strings.Index(haystack, marker)
	if i < 0 {
		return "", false
	}
	rest := haystack[i+len(marker):]
	end := -1
	for j := 0; j < len(rest); j++ {
		if rest[j] == '\\' {
			j++
			continue
		}
		if rest[j] == '"' {
			end = j
			break
		}
	}
	if end < 0 {
		return "", false
	}
	lit := `"` + rest[:end] + `"`
	var out string
	if err := json.Unmarshal([]byte(lit), &out); err != nil {
		// Inline scripts also use JS-only escapes such as \x22.
		if out, err = strconv.Unquote(lit); err != nil {
			return "", false
		}
	}
	return out, true
}

// NumberAfter reads the integer literal that follows marker, skipping spaces
// and an optional quote (client ids are sometimes emitted as strings).
func NumberAfter(haystack, marker string) (int64, bool) {
	i := strings.Index(haystack, marker)
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimLeft(haystack[i+len(marker):], " \t\"")
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, false
	}
	v, err := strconv.ParseInt(rest[:n], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DecodeObjectAfter cuts out the object after marker and unmarshals it into v.
func DecodeObjectAfter(haystack, marker string, v any) error {
	raw, ok := ObjectAfter(haystack, marker)
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.Join(ErrMalformed, err)
	}
	return nil
}
