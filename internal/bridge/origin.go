package bridge

import "regexp"

// PageOriginPattern matches the video site's origins (www, m, music, ...).
const PageOriginPattern = `^https://.+youtube\.com$`

// OriginPolicy decides whether an inbound message may be processed.
// Messages from untrusted origins are dropped without an error.
type OriginPolicy interface {
	Trusted(origin string) bool
}

// OriginPattern trusts origins matching a regular expression.
type OriginPattern struct {
	re *regexp.Regexp
}

// MatchOrigin compiles pattern into an OriginPattern.
func MatchOrigin(pattern string) (OriginPattern, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return OriginPattern{}, err
	}
	return OriginPattern{re: re}, nil
}

// MustMatchOrigin is MatchOrigin for patterns known at compile time.
func MustMatchOrigin(pattern string) OriginPattern {
	return OriginPattern{re: regexp.MustCompile(pattern)}
}

func (p OriginPattern) Trusted(origin string) bool {
	return p.re != nil && p.re.MatchString(origin)
}

// ExactOrigin trusts a single origin.
type ExactOrigin string

func (o ExactOrigin) Trusted(origin string) bool {
	return o != "" && string(o) == origin
}
