package position

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
)

func TestParseToken(t *testing.T) {
	tests := []struct {
		in      string
		want    Token
		wantErr error
	}{
		{in: "412", want: RawOffset{Offset: 412}},
		{in: "0", want: RawOffset{Offset: 0}},
		{in: "1200:3:9000:a1b2", want: CompoundOffset{Start: 1200, Spine: 3, Total: 9000, Blob: "a1b2"}},
		{in: "1200:3:9000:", want: CompoundOffset{Start: 1200, Spine: 3, Total: 9000}},
		{in: "kfx_section_7:35", want: FragmentRelative{Fragment: "kfx_section_7", Offset: 35}},
		{in: "", wantErr: faults.ErrAmbiguousToken},
		{in: "12a", wantErr: faults.ErrAmbiguousToken},
		{in: "a:b:c:d", wantErr: faults.ErrAmbiguousToken},
		{in: ":35", wantErr: faults.ErrAmbiguousToken},
		{in: "frag:", wantErr: faults.ErrAmbiguousToken},
		{in: "1:2:3", wantErr: faults.ErrAmbiguousToken},
		{in: "-5", wantErr: faults.ErrAmbiguousToken},
		{in: "99999999999999999999", wantErr: faults.ErrOutOfRange},
		{in: "1:99999999999999999999:3:x", wantErr: faults.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseToken(annotation.Token(tt.in))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if _, ok := got.(CompoundOffset); !ok {
				assert.Equal(t, tt.in, got.String())
			}
		})
	}
}

func TestResolveByteSpace(t *testing.T) {
	data := `<p>One <b>two</b> three &amp; four</p>`
	buf := content.New([]byte(data), content.WithSections(map[string]int{"para": 3}))

	tests := []struct {
		name       string
		start, end string
		want       string
	}{
		{"plain", "3", "6", "One"},
		{"compound", "3:0:0:blob", "6:1:1:", "One"},
		{"fragment relative", "para:0", "para:3", "One"},
		{"start inside tag", "8", "13", "<b>two"},
		{"end inside tag", "10", "15", "two</b>"},
		{"entity", "24", "26", "&amp;"},
		{"empty", "5", "5", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Resolve(buf, annotation.Token(tt.start), annotation.Token(tt.end))
			require.NoError(t, err)
			assert.Equal(t, tt.want, data[r.Start:r.End])
		})
	}
}

func TestResolveErrors(t *testing.T) {
	buf := content.New([]byte("0123456789"), content.WithSections(map[string]int{"s": 2}))

	tests := []struct {
		name       string
		start, end string
		want       error
	}{
		{"end before start", "5", "2", faults.ErrOutOfRange},
		{"past end", "5", "11", faults.ErrOutOfRange},
		{"fragment past end", "s:3", "s:20", faults.ErrOutOfRange},
		{"unknown fragment", "missing:1", "missing:2", faults.ErrAmbiguousToken},
		{"garbage", "a/b", "4", faults.ErrAmbiguousToken},
		{"overflow", "1", "18446744073709551616", faults.ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(buf, annotation.Token(tt.start), annotation.Token(tt.end))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolveRuneSpaceEndIsInclusive(t *testing.T) {
	data := "Größe zählt."
	buf := content.New([]byte(data), content.WithSpace(content.SpaceRune))

	r, err := Resolve(buf, "0", "4")
	require.NoError(t, err)
	assert.Equal(t, "Größe", data[r.Start:r.End])
	assert.Equal(t, int64(0), r.Location)

	r, err = Resolve(buf, "6", "11")
	require.NoError(t, err)
	assert.Equal(t, "zählt.", data[r.Start:r.End])
	assert.Equal(t, int64(6), r.Location)

	_, err = Resolve(buf, "6", "12")
	assert.ErrorIs(t, err, faults.ErrOutOfRange)
}

func TestResolveRecord(t *testing.T) {
	data := "<p>Some text</p>"
	buf := content.New([]byte(data))

	r, err := ResolveRecord(buf, annotation.Record{Kind: annotation.KindBookmark, Start: "1", End: "9", Index: 4})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 0, r.End)
	assert.Equal(t, 4, r.Record.Index)

	r, err = ResolveRecord(buf, annotation.Record{Kind: annotation.KindHighlight, Start: "3", End: "12", Index: 2})
	require.NoError(t, err)
	assert.Equal(t, "Some text", data[r.Start:r.End])
	assert.Equal(t, 2, r.Record.Index)
}

func TestSnap(t *testing.T) {
	data := []byte(`a<i class="x">b</i>c &#233; d a < b`)

	tests := []struct {
		name               string
		start, end         int
		wantStart, wantEnd int
	}{
		{"untouched", 0, 1, 0, 1},
		{"start in opening tag", 5, 15, 1, 15},
		{"start on closing bracket", 13, 15, 1, 15},
		{"end in closing tag", 14, 17, 14, 19},
		{"end in entity", 20, 24, 20, 27},
		{"start in entity", 23, 28, 21, 28},
		{"stray less-than is text", 32, 35, 32, 35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := Snap(data, tt.start, tt.end)
			assert.Equal(t, tt.wantStart, s)
			assert.Equal(t, tt.wantEnd, e)
		})
	}
}

func TestSnapProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	alphabet := []string{"<", ">", "a", "b", " ", "/", "&", ";", "#", "1", "x", "p", "<p>", "</p>", "&amp;", "&#10;"}
	doc := gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(parts []int) string {
		var sb strings.Builder
		for _, p := range parts {
			sb.WriteString(alphabet[p])
		}
		return sb.String()
	})

	properties.Property("snap is idempotent and only widens", prop.ForAll(
		func(s string, a, b uint16) bool {
			data := []byte(s)
			start, end := int(a)%(len(data)+1), int(b)%(len(data)+1)
			if start > end {
				start, end = end, start
			}
			s1, e1 := Snap(data, start, end)
			s2, e2 := Snap(data, s1, e1)
			return s1 == s2 && e1 == e2 &&
				s1 <= start && e1 >= end &&
				s1 >= 0 && e1 <= len(data)
		},
		doc, gen.UInt16(), gen.UInt16(),
	))

	properties.Property("resolved ranges stay inside the buffer", prop.ForAll(
		func(s string, a, b uint16) bool {
			buf := content.New([]byte(s))
			r, err := Resolve(buf, annotation.Token(itoa(int(a)%(len(s)+8))), annotation.Token(itoa(int(b)%(len(s)+8))))
			if err != nil {
				return faults.KindOf(err) == faults.KindOutOfRange
			}
			return 0 <= r.Start && r.Start <= r.End && r.End <= buf.Len()
		},
		doc, gen.UInt16(), gen.UInt16(),
	))

	properties.TestingRun(t)
}

func itoa(n int) string {
	return RawOffset{Offset: int64(n)}.String()
}
