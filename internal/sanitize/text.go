package sanitize

import (
	"regexp"
	"strings"
)

var lineBreaks = regexp.MustCompile(`\r\n|\r|\n`)

// UTF8 drops byte sequences that are not valid UTF-8.
func UTF8(s string) string {
	return strings.ToValidUTF8(s, "")
}

// StripLineBreaks removes CR, LF and CRLF sequences. Pages inject them inside
// otherwise matchable literals.
func StripLineBreaks(s string) string {
	return lineBreaks.ReplaceAllString(s, "")
}

// PageText prepares fetched page text for pattern matching.
func PageText(s string) string {
	return StripLineBreaks(UTF8(s))
}
