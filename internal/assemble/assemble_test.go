package assemble

import (
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/position"
	"github.com/mrlokans/recall/internal/tagged"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		enc  content.Encoding
		want string
	}{
		{"tags", `<p>Hello <b>world</b></p>`, content.UTF8, "Hello world"},
		{"leading debris", `ss="x">Hello`, content.UTF8, "Hello"},
		{"trailing debris", `Hello <spa`, content.UTF8, "Hello"},
		{"breaks and blocks", `line<br/>two</p><p>three</H2>four`, content.UTF8, "line\ntwo\nthree\nfour"},
		{"entities", `Tom &amp; Jerry&#8217;s &lt;tag&gt;`, content.UTF8, "Tom & Jerry’s <tag>"},
		{"whitespace", "  a \t b \n\n  c ", content.UTF8, "a b\nc"},
		{"nfc", "cafe\u0301", content.UTF8, "caf\u00e9"},
		{"cp1252", "caf\xe9 \x93q\x94", content.Windows1252, "café “q”"},
		{"only markup", `<p></p><br>`, content.UTF8, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CleanText([]byte(tt.in), tt.enc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func rng(kind annotation.Kind, index, start, end int) position.Range {
	return position.Range{
		Start:    start,
		End:      end,
		Location: int64(start),
		Record:   annotation.Record{Kind: kind, Index: index},
	}
}

func TestAssembleMergesOverlappingHighlights(t *testing.T) {
	data := strings.Repeat("abcdefghij", 30)
	buf := content.New([]byte(data))

	first := rng(annotation.KindHighlight, 0, 100, 150)
	first.Record.Style = tagged.String("yellow")
	first.Record.CreatedAt = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	second := rng(annotation.KindHighlight, 1, 140, 200)
	second.Record.Style = tagged.String("blue")
	second.Record.CreatedAt = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

	out, skipped := Assemble([]position.Range{first, second}, buf)
	require.Empty(t, skipped)
	require.Len(t, out, 1)

	h := out[0]
	assert.Equal(t, Span{Start: 100, End: 200}, h.Range)
	assert.Equal(t, data[100:200], h.Text)
	assert.Equal(t, 1, h.RecordIndex)
	assert.Equal(t, "blue", h.Style.String())
	assert.Equal(t, second.Record.CreatedAt, h.CreatedAt)
	assert.Equal(t, []int{0}, h.Merged)
	assert.Equal(t, int64(100), h.Location)
}

func TestAssembleNestedLooseNotesStaySeparate(t *testing.T) {
	data := "<p>Outer note covers this inner passage too.</p>"
	buf := content.New([]byte(data))

	outer := rng(annotation.KindNote, 0, 3, 44)
	outer.Record.Note = "outer"
	inner := rng(annotation.KindNote, 1, 26, 39)
	inner.Record.Note = "inner"

	out, skipped := Assemble([]position.Range{outer, inner}, buf)
	require.Empty(t, skipped)
	require.Len(t, out, 2)

	assert.Equal(t, annotation.KindNote, out[0].Kind)
	assert.Equal(t, "outer", out[0].Note)
	assert.Empty(t, out[0].Notes)
	assert.Equal(t, annotation.KindNote, out[1].Kind)
	assert.Equal(t, "inner", out[1].Note)
	assert.Equal(t, "inner passage", out[1].Text)

	assert.Equal(t, Stats{Notes: 2}, Summarize(out))
}

func TestAssembleNotesAndBookmarks(t *testing.T) {
	data := "<p>First highlight.</p><p>Second part of the book.</p>"
	buf := content.New([]byte(data))

	hl := rng(annotation.KindHighlight, 0, 3, 19)
	attached := rng(annotation.KindNote, 1, 19, 19)
	attached.Record.Note = "my thought"
	loose := rng(annotation.KindNote, 2, 26, 32)
	loose.Record.Note = "loose"
	mark := rng(annotation.KindBookmark, 3, 0, 0)

	out, skipped := Assemble([]position.Range{loose, mark, attached, hl}, buf)
	require.Empty(t, skipped)
	require.Len(t, out, 3)

	assert.Equal(t, annotation.KindBookmark, out[0].Kind)
	assert.Equal(t, "", out[0].Text)

	assert.Equal(t, annotation.KindHighlight, out[1].Kind)
	assert.Equal(t, "First highlight.", out[1].Text)
	assert.Equal(t, "my thought", out[1].Note)
	assert.Equal(t, []int{1}, out[1].Notes)

	assert.Equal(t, annotation.KindNote, out[2].Kind)
	assert.Equal(t, "loose", out[2].Note)
	assert.Equal(t, "Second", out[2].Text)

	stats := Summarize(out)
	assert.Equal(t, Stats{Highlights: 1, Notes: 2, Bookmarks: 1}, stats)
}

func TestAssembleSkipsUnusableRanges(t *testing.T) {
	buf := content.New([]byte("<p></p>plain text"))

	out, skipped := Assemble([]position.Range{
		rng(annotation.KindHighlight, 0, 0, 7),
		rng(annotation.KindHighlight, 1, 4, 4),
		rng(annotation.KindHighlight, 2, 10, 99),
		rng(annotation.KindHighlight, 3, 7, 12),
	}, buf)

	require.Len(t, out, 1)
	assert.Equal(t, "plain", out[0].Text)
	require.Len(t, skipped, 3)
	for i, want := range []int{0, 1, 2} {
		assert.Equal(t, want, skipped[i].RecordIndex)
		assert.ErrorIs(t, skipped[i], faults.ErrAssemblyInconsistency)
		assert.Equal(t, faults.KindAssemblyInconsistency, skipped[i].Kind())
	}
}

func TestMergeTiesAndChains(t *testing.T) {
	groups := merge([]position.Range{
		rng(annotation.KindHighlight, 3, 0, 10),
		rng(annotation.KindHighlight, 1, 5, 15),
		rng(annotation.KindHighlight, 5, 14, 24),
		rng(annotation.KindHighlight, 6, 24, 30),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, Span{Start: 0, End: 24}, groups[0].span)
	assert.Equal(t, 1, groups[0].lead.Record.Index)
	assert.Equal(t, Span{Start: 24, End: 30}, groups[1].span)
}

func TestSummarizeDateSpan(t *testing.T) {
	early := time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2022, 5, 1, 0, 0, 0, 0, time.UTC)
	s := Summarize([]Highlight{
		{Kind: annotation.KindHighlight, CreatedAt: late},
		{Kind: annotation.KindHighlight},
		{Kind: annotation.KindNote, CreatedAt: early},
	})
	assert.Equal(t, early, s.Earliest)
	assert.Equal(t, late, s.Latest)
	assert.Equal(t, 2, s.Highlights)
	assert.Equal(t, 1, s.Notes)
}

func rangesFrom(seeds []uint16) []position.Range {
	rs := make([]position.Range, len(seeds))
	for i, v := range seeds {
		start := int(v % 250)
		rs[i] = rng(annotation.KindHighlight, i, start, start+int(v/250%40)+1)
	}
	return rs
}

type summary struct {
	span Span
	lead int
}

func summarize(groups []group) []summary {
	out := make([]summary, len(groups))
	for i, g := range groups {
		out[i] = summary{span: g.span, lead: g.lead.Record.Index}
	}
	return out
}

func TestMergeProperties(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("merge ignores input order", prop.ForAll(
		func(seeds []uint16, shift int) bool {
			rs := rangesFrom(seeds)
			perm := make([]position.Range, 0, len(rs))
			for i := len(rs) - 1; i >= 0; i-- {
				perm = append(perm, rs[(i+shift)%max(len(rs), 1)])
			}
			return assert.ObjectsAreEqual(summarize(merge(rs)), summarize(merge(perm)))
		},
		gen.SliceOf(gen.UInt16()), gen.IntRange(0, 64),
	))

	properties.Property("merge is idempotent", prop.ForAll(
		func(seeds []uint16) bool {
			once := merge(rangesFrom(seeds))
			again := make([]position.Range, len(once))
			for i, g := range once {
				r := g.lead
				r.Start, r.End = g.span.Start, g.span.End
				again[i] = r
			}
			return assert.ObjectsAreEqual(summarize(once), summarize(merge(again)))
		},
		gen.SliceOf(gen.UInt16()),
	))

	properties.Property("merged spans are disjoint and ordered", prop.ForAll(
		func(seeds []uint16) bool {
			groups := merge(rangesFrom(seeds))
			for i := 1; i < len(groups); i++ {
				if groups[i].span.Start < groups[i-1].span.End {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt16()),
	))

	properties.TestingRun(t)
}
