package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases and strips all whitespace. District names come
// back from the service with inconsistent spacing and the Arabic/English
// halves swapped around, comparisons only work on the squashed form.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

// StripParenthetical removes a trailing "(...)" annotation, e.g. the
// English gloss on "شقق (Apartment)".
func StripParenthetical(name string) string {
	idx := strings.IndexByte(name, '(')
	if idx < 0 {
		return name
	}
	return strings.Trim(name[:idx], " \t")
}
