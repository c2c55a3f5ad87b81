package translate

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var punctuationOnly = regexp.MustCompile(`^[.,।॥…\s]+$`)

// Sanitize returns out unless it looks like a degenerate translation, in
// which case the source text src is kept.
func Sanitize(src, out string) string {
	s := strings.TrimSpace(out)
	switch n := utf8.RuneCountInString(s); {
	case n < 2 || n > 300:
		return src
	case punctuationOnly.MatchString(s):
		return src
	case strings.Contains(s, "…"):
		return src
	case strings.Count(s, ",") > 5 || strings.Count(s, ".") > 5:
		return src
	}
	return s
}

// sanitizeAll pairs each source with its translation. Missing entries fall
// back to the source.
func sanitizeAll(src, out []string) []string {
	res := make([]string, len(src))
	for i, s := range src {
		if i < len(out) {
			res[i] = Sanitize(s, out[i])
		} else {
			res[i] = s
		}
	}
	return res
}
