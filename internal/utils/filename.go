package utils

import (
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a book title safe to use as a file name for
// exported highlights.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	filename = strings.ReplaceAll(filename, "#", "")
	filename = strings.ReplaceAll(filename, "[", "(")
	filename = strings.ReplaceAll(filename, "]", ")")

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > 200 {
		filename = strings.TrimSpace(truncateUTF8(filename, 200))
	}

	if filename == "" {
		filename = "Untitled"
	}

	return filename
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

var (
	isbnNoise    = regexp.MustCompile(`\s*-?\s*\d{10,13}\b`)
	orderNoise   = regexp.MustCompile(`(?i)\s*-?\s*Order\s*-[A-Za-z0-9-]+`)
	mailNoise    = regexp.MustCompile(`(?i)\s*-?\s*[A-Za-z0-9_.+-]+-[A-Za-z0-9-]+-(?:gmail|yahoo|hotmail|outlook|icloud|protonmail)-com-?\s*`)
	trailingDash = regexp.MustCompile(`[\s-]+$`)
	leadingDash  = regexp.MustCompile(`^[\s-]+`)
)

// CleanTitle strips the noise Kindle leaves in side-loaded file names
// (ISBNs, order identifiers, e-mail addresses with dots turned into dashes)
// so a file stem can stand in for a missing title. The input is returned
// unchanged when nothing would be left.
func CleanTitle(raw string) string {
	title := isbnNoise.ReplaceAllString(raw, "")
	title = orderNoise.ReplaceAllString(title, "")
	title = mailNoise.ReplaceAllString(title, "")
	title = trailingDash.ReplaceAllString(title, "")
	title = leadingDash.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	if title == "" {
		return raw
	}
	return title
}
