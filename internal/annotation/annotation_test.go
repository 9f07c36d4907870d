package annotation

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/tagged"
	"github.com/mrlokans/recall/internal/tagged/taggedtest"
)

func highlight(start, end string, created int64) tagged.Value {
	return tagged.Map(
		tagged.Field("startPosition", tagged.String(start)),
		tagged.Field("endPosition", tagged.String(end)),
		tagged.Field("creationTime", tagged.Int(created)),
		tagged.Field("template", tagged.String("0￼0")),
	)
}

func cache(lists ...tagged.Entry) tagged.Value {
	return tagged.Map(tagged.Field(CacheObject, tagged.Map(lists...)))
}

func TestDecode(t *testing.T) {
	data := taggedtest.Stream(1, nil,
		tagged.Map(tagged.Field("font.prefs", tagged.String("serif"))),
		cache(
			tagged.Field(HighlightList, tagged.List(
				highlight("412", "430", 1700000000000),
				highlight("100:0:5000:QUJD", "150:0:5000:QUJD", 1700000001000),
			)),
			tagged.Field(NoteList, tagged.List(tagged.Map(
				tagged.Field("startPosition", tagged.String("430")),
				tagged.Field("endPosition", tagged.String("430")),
				tagged.Field("note", tagged.String("remember this")),
			))),
			tagged.Field(BookmarkList, tagged.List(tagged.Map(
				tagged.Field("startPosition", tagged.Int(77)),
			))),
		),
	)

	doc, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(1), doc.Version)
	require.Len(t, doc.Records, 4)
	require.Len(t, doc.Metadata, 1)
	assert.Equal(t, "font.prefs", doc.Metadata[0].Name)

	first := doc.Records[0]
	assert.Equal(t, KindHighlight, first.Kind)
	assert.Equal(t, Token("412"), first.Start)
	assert.Equal(t, Token("430"), first.End)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), first.CreatedAt)
	style, _ := first.Style.AsString()
	assert.Equal(t, "0￼0", style)
	assert.Equal(t, 0, first.Index)

	assert.Equal(t, Token("100:0:5000:QUJD"), doc.Records[1].Start)

	note := doc.Records[2]
	assert.Equal(t, KindNote, note.Kind)
	assert.Equal(t, "remember this", note.Note)
	assert.True(t, note.CreatedAt.IsZero())

	bookmark := doc.Records[3]
	assert.Equal(t, KindBookmark, bookmark.Kind)
	assert.Equal(t, Token("77"), bookmark.Start)
	assert.Equal(t, Token("77"), bookmark.End)
	assert.Equal(t, 3, bookmark.Index)

	assert.Equal(t, 2, doc.Count(KindHighlight))
	assert.Equal(t, 1, doc.Count(KindNote))
}

func TestDecodeSymbolTokens(t *testing.T) {
	var b taggedtest.Builder
	b.Header(2).Symbols("startPosition", "endPosition", "kindle:pos:fid:0001")
	b.MapHeader(1).Key(CacheObject).
		MapHeader(1).Key(HighlightList).
		ListHeader(1).
		MapHeader(3).
		SymRef(0).Value(tagged.String("part0001:12")).
		SymRef(1).SymDecl("part0001:40").
		Key("creationTime").Value(tagged.String("2023-05-01T10:00:00Z"))

	doc, err := Decode(b.Bytes())
	require.NoError(t, err)
	require.Len(t, doc.Records, 1)

	rec := doc.Records[0]
	assert.Equal(t, Token("part0001:12"), rec.Start)
	assert.Equal(t, Token("part0001:40"), rec.End)
	assert.Equal(t, time.Date(2023, 5, 1, 10, 0, 0, 0, time.UTC), rec.CreatedAt)
}

func TestDecodeInlineSymbolsRequireVersion2(t *testing.T) {
	var b taggedtest.Builder
	b.Header(1).Symbols()
	b.MapHeader(1).SymDecl("x").Value(tagged.Bool(true))

	_, err := Decode(b.Bytes())
	assert.ErrorIs(t, err, faults.ErrMalformedStream)
}

func TestDecodeSkipsPaddingAndExtensions(t *testing.T) {
	var b taggedtest.Builder
	b.Header(1).Symbols().
		Pad(4).
		Ext(0xE7, []byte{1, 2, 3, 4, 5}).
		Value(cache(tagged.Field(HighlightList, tagged.List(highlight("1", "2", 0))))).
		Pad(16)

	doc, err := Decode(b.Bytes())
	require.NoError(t, err)
	assert.Len(t, doc.Records, 1)
}

func TestDecodeErrors(t *testing.T) {
	valid := taggedtest.Stream(1, nil, cache(tagged.Field(HighlightList, tagged.List(highlight("1", "2", 0)))))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"version zero", taggedtest.Stream(0, nil), faults.ErrUnsupportedVersion},
		{"version three", taggedtest.Stream(3, nil), faults.ErrUnsupportedVersion},
		{"bad magic", append([]byte("XXXXXXXX"), valid[8:]...), faults.ErrMalformedStream},
		{"truncated declared length", valid[:len(valid)-3], faults.ErrMalformedStream},
		{"missing symbol table", new(taggedtest.Builder).Header(1).Bytes(), faults.ErrMalformedStream},
		{"top level not a map", taggedtest.Stream(1, nil, tagged.String("loose")), faults.ErrMalformedStream},
		{"record without start", taggedtest.Stream(1, nil, cache(tagged.Field(HighlightList, tagged.List(
			tagged.Map(tagged.Field("endPosition", tagged.String("5"))),
		)))), faults.ErrMalformedStream},
		{"highlight without end", taggedtest.Stream(1, nil, cache(tagged.Field(HighlightList, tagged.List(
			tagged.Map(tagged.Field("startPosition", tagged.String("5"))),
		)))), faults.ErrMalformedStream},
		{"token of wrong type", taggedtest.Stream(1, nil, cache(tagged.Field(HighlightList, tagged.List(
			tagged.Map(tagged.Field("startPosition", tagged.Bool(true)), tagged.Field("endPosition", tagged.String("5"))),
		)))), faults.ErrMalformedStream},
		{"extension past end", new(taggedtest.Builder).Header(1).Symbols().Raw(0xE1).Uint32(64).Bytes(), faults.ErrMalformedStream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Decode(tt.data)
			assert.Nil(t, doc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeTruncationAnywhereFails(t *testing.T) {
	data := taggedtest.Stream(2, []string{"alpha"},
		cache(tagged.Field(HighlightList, tagged.List(highlight("10", "20", 5), highlight("30", "40", 6)))),
	)

	prefix := taggedtest.Stream(2, []string{"alpha"})

	// Cutting inside the top-level value must never yield a partial document.
	for cut := len(data) - 1; cut > len(prefix); cut-- {
		_, err := Decode(data[:cut])
		require.Error(t, err, "cut at %d", cut)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("repeated decodes agree", prop.ForAll(
		func(starts []uint16, meta map[string]string) bool {
			items := make([]tagged.Value, 0, len(starts))
			for _, s := range starts {
				items = append(items, highlight(tagged.Uint(uint64(s)).String(), tagged.Uint(uint64(s)+5).String(), int64(s)))
			}
			tops := []tagged.Value{cache(tagged.Field(HighlightList, tagged.List(items...)))}
			for k, v := range meta {
				tops = append(tops, tagged.Map(tagged.Field(k, tagged.String(v))))
			}
			data := taggedtest.Stream(1, nil, tops...)

			a, errA := Decode(data)
			b, errB := Decode(data)
			if errA != nil || errB != nil || len(a.Records) != len(b.Records) || len(a.Metadata) != len(b.Metadata) {
				return false
			}
			for i := range a.Records {
				if a.Records[i].Start != b.Records[i].Start || a.Records[i].Index != i {
					return false
				}
			}
			for i := range a.Metadata {
				if a.Metadata[i].Name != b.Metadata[i].Name || !a.Metadata[i].Value.Equal(b.Metadata[i].Value) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt16()),
		gen.MapOf(gen.AlphaString(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}
