// Package content holds the reconstructed byte sequence a book's position
// tokens are valid against.
package content

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/mrlokans/recall/internal/faults"
)

// Space names the coordinate convention tokens use for a buffer.
type Space string

const (
	// SpaceByte means logical positions are byte offsets into Bytes.
	SpaceByte Space = "byte"
	// SpaceRune means logical positions count characters and must be mapped
	// to byte offsets with Locate. End positions are inclusive.
	SpaceRune Space = "rune"
)

type Encoding string

const (
	UTF8        Encoding = "utf-8"
	Windows1252 Encoding = "cp1252"
)

// EncodingForCodepage maps a MOBI text encoding field to an Encoding.
func EncodingForCodepage(cp uint32) Encoding {
	if cp == 1252 {
		return Windows1252
	}
	return UTF8
}

// Decode converts raw buffer bytes to UTF-8 text.
func (e Encoding) Decode(b []byte) (string, error) {
	if e == Windows1252 {
		out, err := charmap.Windows1252.NewDecoder().Bytes(b)
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", e, err)
		}
		return string(out), nil
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// Buffer is immutable once built.
type Buffer struct {
	data     []byte
	space    Space
	encoding Encoding
	sections map[string]int
	// runeStarts[i] is the byte offset of character i; only set for SpaceRune.
	runeStarts []int
}

// Option configures a Buffer under construction.
type Option func(*Buffer)

func WithEncoding(e Encoding) Option {
	return func(b *Buffer) { b.encoding = e }
}

func WithSpace(s Space) Option {
	return func(b *Buffer) { b.space = s }
}

// WithSections registers section ids and their byte offsets. Later
// registrations of the same id do not override earlier ones.
func WithSections(sections map[string]int) Option {
	return func(b *Buffer) {
		for id, off := range sections {
			if _, ok := b.sections[id]; !ok {
				b.sections[id] = off
			}
		}
	}
}

// New builds a buffer over data. The buffer keeps data; callers must not
// modify it afterwards.
func New(data []byte, opts ...Option) *Buffer {
	b := &Buffer{
		data:     data,
		space:    SpaceByte,
		encoding: UTF8,
		sections: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.space == SpaceRune {
		b.runeStarts = make([]int, 0, len(data))
		for i := 0; i < len(data); {
			b.runeStarts = append(b.runeStarts, i)
			_, size := utf8.DecodeRune(data[i:])
			i += size
		}
	}
	return b
}

// Bytes returns the reconstructed sequence. Callers must treat it as read-only.
func (b *Buffer) Bytes() []byte      { return b.data }
func (b *Buffer) Len() int           { return len(b.data) }
func (b *Buffer) Space() Space       { return b.space }
func (b *Buffer) Encoding() Encoding { return b.encoding }

// Slice returns data[start:end] or ErrOutOfRange.
func (b *Buffer) Slice(start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(b.data) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d bytes", faults.ErrOutOfRange, start, end, len(b.data))
	}
	return b.data[start:end], nil
}

// SectionOffset returns the byte offset where section id starts.
func (b *Buffer) SectionOffset(id string) (int, bool) {
	off, ok := b.sections[id]
	return off, ok
}

// Sections returns the section ids sorted by offset, then id.
func (b *Buffer) Sections() []string {
	ids := make([]string, 0, len(b.sections))
	for id := range b.sections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi, oj := b.sections[ids[i]], b.sections[ids[j]]
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Locate maps a logical position to a byte offset. In SpaceByte it is the
// identity; in SpaceRune position len(characters) maps to len(Bytes).
func (b *Buffer) Locate(pos int64) (int, error) {
	if pos < 0 {
		return 0, fmt.Errorf("%w: negative position %d", faults.ErrOutOfRange, pos)
	}
	if b.space != SpaceRune {
		if pos > int64(len(b.data)) {
			return 0, fmt.Errorf("%w: offset %d beyond %d bytes", faults.ErrOutOfRange, pos, len(b.data))
		}
		return int(pos), nil
	}
	switch {
	case pos < int64(len(b.runeStarts)):
		return b.runeStarts[pos], nil
	case pos == int64(len(b.runeStarts)):
		return len(b.data), nil
	}
	return 0, fmt.Errorf("%w: position %d beyond %d characters", faults.ErrOutOfRange, pos, len(b.runeStarts))
}

// Position maps a byte offset back to a logical position. Offsets inside a
// multi-byte character map to that character.
func (b *Buffer) Position(offset int) int64 {
	if b.space != SpaceRune {
		return int64(offset)
	}
	i := sort.SearchInts(b.runeStarts, offset+1) - 1
	if i < 0 {
		return 0
	}
	if offset >= len(b.data) {
		return int64(len(b.runeStarts))
	}
	return int64(i)
}
