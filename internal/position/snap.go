package position

import (
	"bytes"
	"regexp"
)

const maxEntityLen = 40

var entityPattern = regexp.MustCompile(`^&(?:#[0-9]{1,7}|#[xX][0-9a-fA-F]{1,6}|[A-Za-z][A-Za-z0-9]{0,31});`)

// Snap widens [start, end) so neither boundary cuts a tag or a character
// entity: a start inside one moves back to its first byte, an end inside one
// moves forward past its last byte. Snap is idempotent.
func Snap(data []byte, start, end int) (int, int) {
	if lt, _, ok := tagAround(data, start); ok {
		start = lt
	}
	if _, gt, ok := tagAround(data, end); ok {
		end = gt + 1
	}
	if amp, _, ok := entityAround(data, start); ok {
		start = amp
	}
	if _, semi, ok := entityAround(data, end); ok {
		end = semi + 1
	}
	return start, end
}

// tagAround finds the tag [lt, gt] with lt < p <= gt. A tag opens with '<'
// and a name, slash, '!' or '?', and closes at the first '>' with no '<' in
// between.
func tagAround(data []byte, p int) (lt, gt int, ok bool) {
	if p <= 0 || p > len(data) {
		return 0, 0, false
	}
	lt = bytes.LastIndexByte(data[:p], '<')
	if lt < 0 || lt+1 >= len(data) || !opensTag(data[lt+1]) {
		return 0, 0, false
	}
	if bytes.IndexByte(data[lt:p], '>') >= 0 {
		return 0, 0, false
	}
	rel := bytes.IndexAny(data[p:], "<>")
	if rel < 0 || data[p+rel] != '>' {
		return 0, 0, false
	}
	return lt, p + rel, true
}

func opensTag(c byte) bool {
	return c == '/' || c == '!' || c == '?' || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

// entityAround finds the entity [amp, semi] with amp < p <= semi.
func entityAround(data []byte, p int) (amp, semi int, ok bool) {
	if p <= 0 || p > len(data) {
		return 0, 0, false
	}
	lo := p - maxEntityLen
	if lo < 0 {
		lo = 0
	}
	rel := bytes.LastIndexByte(data[lo:p], '&')
	if rel < 0 {
		return 0, 0, false
	}
	amp = lo + rel
	hi := amp + maxEntityLen
	if hi > len(data) {
		hi = len(data)
	}
	m := entityPattern.Find(data[amp:hi])
	if m == nil {
		return 0, 0, false
	}
	semi = amp + len(m) - 1
	if p > semi {
		return 0, 0, false
	}
	return amp, semi, true
}
