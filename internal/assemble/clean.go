package assemble

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"github.com/mrlokans/recall/internal/content"
)

var (
	lineBreak  = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockClose = regexp.MustCompile(`(?i)</(?:p|div|h[1-6]|li|tr|blockquote)\s*>`)
	anyTag     = regexp.MustCompile(`<[^<>]*>`)
)

// CleanText turns a slice of markup into display text: tags are removed,
// line breaks and block ends become newlines, entities are decoded,
// whitespace is collapsed within each line and empty lines are dropped. The
// result is NFC normalized.
func CleanText(b []byte, enc content.Encoding) (string, error) {
	s, err := enc.Decode(b)
	if err != nil {
		return "", err
	}
	s = dropDebris(s)
	s = lineBreak.ReplaceAllString(s, "\n")
	s = blockClose.ReplaceAllString(s, "\n")
	s = anyTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return norm.NFC.String(strings.Join(out, "\n")), nil
}

// dropDebris removes a tag cut by either end of the slice.
func dropDebris(s string) string {
	if gt := strings.IndexByte(s, '>'); gt >= 0 && !strings.Contains(s[:gt], "<") {
		s = s[gt+1:]
	}
	if lt := strings.LastIndexByte(s, '<'); lt >= 0 && !strings.Contains(s[lt:], ">") {
		s = s[:lt]
	}
	return s
}
