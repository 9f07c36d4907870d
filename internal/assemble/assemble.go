// Package assemble turns resolved ranges into the final, ordered list of
// highlights: overlapping highlights are merged, notes are attached to the
// highlight they were written on, and text is cleaned for display.
package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/position"
	"github.com/mrlokans/recall/internal/tagged"
)

// Span is a byte range of the content buffer.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type Highlight struct {
	Text        string          `json:"text"`
	Kind        annotation.Kind `json:"kind"`
	Note        string          `json:"note,omitempty"`
	Range       Span            `json:"range"`
	Location    int64           `json:"location"`
	Page        string          `json:"page,omitempty"`
	Section     string          `json:"section,omitempty"`
	Chapter     string          `json:"chapter,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	Style       tagged.Value    `json:"style"`
	RecordIndex int             `json:"record_index"`
	// Merged lists the other highlight records folded into this one.
	Merged []int `json:"merged,omitempty"`
	// Notes lists the note records attached to this highlight.
	Notes []int `json:"notes,omitempty"`
}

// group is a run of overlapping highlight ranges. lead supplies metadata.
type group struct {
	span    Span
	lead    position.Range
	members []position.Range
}

// Assemble builds the highlight list for one book. Records whose range
// cannot be used are reported and skipped.
func Assemble(ranges []position.Range, buf *content.Buffer) ([]Highlight, []faults.RecordError) {
	var (
		highlights, notes, bookmarks []position.Range
		skipped                      []faults.RecordError
	)
	for _, r := range ranges {
		if r.Start < 0 || r.End > buf.Len() || r.Start > r.End {
			skipped = append(skipped, inconsistent(r, "range [%d, %d) outside %d bytes", r.Start, r.End, buf.Len()))
			continue
		}
		switch r.Record.Kind {
		case annotation.KindHighlight:
			if r.Start == r.End {
				skipped = append(skipped, inconsistent(r, "empty highlight range at %d", r.Start))
				continue
			}
			highlights = append(highlights, r)
		case annotation.KindNote:
			notes = append(notes, r)
		default:
			bookmarks = append(bookmarks, r)
		}
	}

	var out []Highlight
	for _, g := range merge(highlights) {
		text, err := CleanText(buf.Bytes()[g.span.Start:g.span.End], buf.Encoding())
		if err != nil || text == "" {
			skipped = append(skipped, inconsistent(g.lead, "highlight [%d, %d) has no text", g.span.Start, g.span.End))
			continue
		}
		h := fromRange(g.lead, g.span)
		h.Text = text
		for _, m := range g.members {
			if m.Location < h.Location {
				h.Location = m.Location
			}
			if m.Record.Index != g.lead.Record.Index {
				h.Merged = append(h.Merged, m.Record.Index)
			}
		}
		sort.Ints(h.Merged)
		out = append(out, h)
	}

	// Notes attach to merged highlights only, never to another loose note.
	highlightCount := len(out)
	sortRanges(notes)
	for _, n := range notes {
		if i := containing(out[:highlightCount], n.End); i >= 0 {
			if out[i].Note != "" {
				out[i].Note += "\n"
			}
			out[i].Note += n.Record.Note
			out[i].Notes = append(out[i].Notes, n.Record.Index)
			continue
		}
		h := fromRange(n, Span{Start: n.Start, End: n.End})
		h.Note = n.Record.Note
		h.Text, _ = CleanText(buf.Bytes()[n.Start:n.End], buf.Encoding())
		out = append(out, h)
	}
	for _, b := range bookmarks {
		out = append(out, fromRange(b, Span{Start: b.Start, End: b.End}))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Range.Start != out[j].Range.Start {
			return out[i].Range.Start < out[j].Range.Start
		}
		return out[i].RecordIndex < out[j].RecordIndex
	})
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].RecordIndex < skipped[j].RecordIndex })
	return out, skipped
}

func fromRange(r position.Range, span Span) Highlight {
	return Highlight{
		Kind:        r.Record.Kind,
		Range:       span,
		Location:    r.Location,
		CreatedAt:   r.Record.CreatedAt,
		Style:       r.Record.Style,
		RecordIndex: r.Record.Index,
	}
}

// containing returns the first highlight whose span holds offset, or -1.
func containing(hs []Highlight, offset int) int {
	for i, h := range hs {
		if h.Range.Start <= offset && offset <= h.Range.End {
			return i
		}
	}
	return -1
}

func sortRanges(rs []position.Range) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Start != rs[j].Start {
			return rs[i].Start < rs[j].Start
		}
		return rs[i].Record.Index < rs[j].Record.Index
	})
}

// merge folds ranges sharing at least one byte. The result does not depend
// on input order.
func merge(ranges []position.Range) []group {
	sorted := append([]position.Range(nil), ranges...)
	sortRanges(sorted)

	var groups []group
	for _, r := range sorted {
		if n := len(groups); n > 0 && r.Start < groups[n-1].span.End {
			g := &groups[n-1]
			if r.End > g.span.End {
				g.span.End = r.End
			}
			if longer(r, g.lead) {
				g.lead = r
			}
			g.members = append(g.members, r)
			continue
		}
		groups = append(groups, group{span: Span{Start: r.Start, End: r.End}, lead: r, members: []position.Range{r}})
	}
	return groups
}

func longer(a, b position.Range) bool {
	if a.Len() != b.Len() {
		return a.Len() > b.Len()
	}
	return a.Record.Index < b.Record.Index
}

func inconsistent(r position.Range, format string, args ...any) faults.RecordError {
	return faults.RecordError{
		RecordIndex: r.Record.Index,
		Err:         fmt.Errorf("%w: %s", faults.ErrAssemblyInconsistency, fmt.Sprintf(format, args...)),
	}
}

// Stats summarizes an assembled list.
type Stats struct {
	Highlights int       `json:"highlights"`
	Notes      int       `json:"notes"`
	Bookmarks  int       `json:"bookmarks"`
	Earliest   time.Time `json:"earliest"`
	Latest     time.Time `json:"latest"`
}

// Summarize counts entries by kind. Notes attached to a highlight count as
// notes too. The date span covers entries with a creation time.
func Summarize(hs []Highlight) Stats {
	var s Stats
	for _, h := range hs {
		switch h.Kind {
		case annotation.KindHighlight:
			s.Highlights++
			s.Notes += len(h.Notes)
		case annotation.KindNote:
			s.Notes++
		case annotation.KindBookmark:
			s.Bookmarks++
		}
		if h.CreatedAt.IsZero() {
			continue
		}
		if s.Earliest.IsZero() || h.CreatedAt.Before(s.Earliest) {
			s.Earliest = h.CreatedAt
		}
		if h.CreatedAt.After(s.Latest) {
			s.Latest = h.CreatedAt
		}
	}
	return s
}
