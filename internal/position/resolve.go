package position

import (
	"fmt"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
)

// Range is a validated byte range of a content buffer.
// 0 <= Start <= End <= buffer length always holds.
type Range struct {
	Start int
	End   int
	// Location is the logical position of the unsnapped start.
	Location int64
	Record   annotation.Record
}

func (r Range) Len() int { return r.End - r.Start }

// Overlaps reports whether r and o share at least one byte.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// Resolve maps a start/end token pair onto buf and snaps the result to
// markup boundaries.
func Resolve(buf *content.Buffer, start, end annotation.Token) (Range, error) {
	s, loc, err := resolveToken(buf, start)
	if err != nil {
		return Range{}, fmt.Errorf("start %q: %w", start, err)
	}
	e, _, err := resolveToken(buf, end)
	if err != nil {
		return Range{}, fmt.Errorf("end %q: %w", end, err)
	}
	if buf.Space() == content.SpaceRune {
		// character positions name the last highlighted character
		if e, err = nextChar(buf, e); err != nil {
			return Range{}, fmt.Errorf("end %q: %w", end, err)
		}
	}
	if err := check(buf, s, e); err != nil {
		return Range{}, err
	}
	s, e = Snap(buf.Bytes(), s, e)
	return Range{Start: s, End: e, Location: loc}, nil
}

// ResolveRecord resolves rec and attaches it to the range. Bookmarks mark a
// single point: only the start token addresses the buffer.
func ResolveRecord(buf *content.Buffer, rec annotation.Record) (Range, error) {
	if rec.Kind == annotation.KindBookmark {
		s, loc, err := resolveToken(buf, rec.Start)
		if err != nil {
			return Range{}, fmt.Errorf("start %q: %w", rec.Start, err)
		}
		s, _ = Snap(buf.Bytes(), s, s)
		return Range{Start: s, End: s, Location: loc, Record: rec}, nil
	}
	r, err := Resolve(buf, rec.Start, rec.End)
	if err != nil {
		return Range{}, err
	}
	r.Record = rec
	return r, nil
}

func resolveToken(buf *content.Buffer, raw annotation.Token) (int, int64, error) {
	tok, err := ParseToken(raw)
	if err != nil {
		return 0, 0, err
	}
	var pos int64
	switch t := tok.(type) {
	case RawOffset:
		pos = t.Offset
	case CompoundOffset:
		pos = t.Start
	case FragmentRelative:
		base, ok := buf.SectionOffset(t.Fragment)
		if !ok {
			return 0, 0, fmt.Errorf("%w: unknown fragment %q", faults.ErrAmbiguousToken, t.Fragment)
		}
		pos = buf.Position(base) + t.Offset
		if pos < t.Offset {
			return 0, 0, fmt.Errorf("%w: fragment %q offset %d overflows", faults.ErrOutOfRange, t.Fragment, t.Offset)
		}
	}
	off, err := buf.Locate(pos)
	if err != nil {
		return 0, 0, err
	}
	return off, pos, nil
}

func nextChar(buf *content.Buffer, off int) (int, error) {
	if off >= buf.Len() {
		return 0, fmt.Errorf("%w: inclusive end at end of buffer", faults.ErrOutOfRange)
	}
	return buf.Locate(buf.Position(off) + 1)
}

func check(buf *content.Buffer, start, end int) error {
	switch {
	case start < 0 || end > buf.Len():
		return fmt.Errorf("%w: range [%d, %d) outside %d bytes", faults.ErrOutOfRange, start, end, buf.Len())
	case end < start:
		return fmt.Errorf("%w: end %d precedes start %d", faults.ErrOutOfRange, end, start)
	}
	return nil
}
