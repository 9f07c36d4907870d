package mobi

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/mobi/mobitest"
)

func TestOpenRejectsShortFiles(t *testing.T) {
	_, err := Open([]byte("tiny"))
	assert.ErrorIs(t, err, faults.ErrUnsupportedStructure)

	head := make([]byte, 78)
	binary.BigEndian.PutUint16(head[76:], 40)
	_, err = Open(head)
	assert.ErrorIs(t, err, faults.ErrUnsupportedStructure)
}

func TestReadHeader(t *testing.T) {
	raw := mobitest.Build(mobitest.Book{
		Name:     "Short_Name",
		FullName: "The Full Name",
		Text:     bytes.Repeat([]byte("abcdefgh"), 1000),
		Codepage: 1252,
		EXTH: []mobitest.Exth{
			{Type: ExthAuthor, Data: []byte("Ann Author")},
			{Type: ExthAuthor, Data: []byte("Bob Writer")},
			{Type: ExthTitle, Data: []byte("Updated Title")},
			{Type: ExthPublished, Data: []byte("2019-03-04T00:00:00+00:00")},
		},
	})

	db, err := Open(raw)
	require.NoError(t, err)
	assert.Equal(t, "Short_Name", db.Name)
	assert.True(t, db.IsBookMobi())

	h, err := ReadHeader(db, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(CompressionNone), h.Compression)
	assert.Equal(t, uint32(8000), h.TextLength)
	assert.Equal(t, uint16(2), h.TextRecordCount)
	assert.Equal(t, uint32(1252), h.Codepage)
	assert.Equal(t, uint32(6), h.Version)
	assert.Equal(t, "The Full Name", h.FullName)
	assert.False(t, h.IsKF8())
	assert.Equal(t, "Updated Title", h.ExthString(ExthTitle))
	assert.Equal(t, []string{"Ann Author", "Bob Writer"}, h.ExthStrings(ExthAuthor))
	assert.Equal(t, -1, KF8Start(db, h))
}

func TestReadHeaderEncrypted(t *testing.T) {
	db, err := Open(mobitest.Build(mobitest.Book{Text: []byte("secret"), Encryption: 2}))
	require.NoError(t, err)
	_, err = ReadHeader(db, 0)
	assert.ErrorIs(t, err, faults.ErrDrmProtected)
}

func TestTrimTrailingEntries(t *testing.T) {
	tests := []struct {
		name  string
		rec   []byte
		flags uint16
		want  string
	}{
		{"no flags", []byte("text"), 0, "text"},
		{"one entry", []byte("text\xAA\xBB\x83"), 0x2, "text"},
		{"two entries", []byte("text\x11\x82\x22\x33\x83"), 0x6, "text"},
		{"multibyte", []byte("text\xE2\x80\x01"), 0x1, "text\xE2"},
		{"entry and multibyte", []byte("tex\xC3\x00\x81"), 0x3, "tex\xC3"},
		{"entry larger than record", []byte("\x00\xFF"), 0x2, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(TrimTrailingEntries(tt.rec, tt.flags)))
		})
	}
}

func TestUnpackPalmDOC(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"plain bytes", []byte("hello"), "hello"},
		{"literal run", []byte{3, 0xC1, 0x00, 'x'}, "\xC1\x00x"},
		{"space pair", []byte{'a', 0xE2}, "a b"},
		// distance 3, length 5: "abc" -> "abcabcab"
		{"overlapping back reference", []byte{'a', 'b', 'c', 0x80, 0x1A}, "abcabcab"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnpackPalmDOC(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	_, err := UnpackPalmDOC([]byte{'a', 0x80, 0x50})
	assert.ErrorIs(t, err, faults.ErrUnsupportedStructure)
}

func TestRawTextPalmDOCWithTrailingEntries(t *testing.T) {
	text := bytes.Repeat([]byte("<p>Lorem ipsum dolor sit amet.</p>\n"), 300)
	raw := mobitest.Build(mobitest.Book{
		Text:        text,
		Compression: CompressionPalmDOC,
		Trailing:    []byte{0x01, 0x02, 0x83},
		ExtraFlags:  0x2,
	})
	db, err := Open(raw)
	require.NoError(t, err)
	h, err := ReadHeader(db, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x2), h.ExtraFlags)

	got, err := RawText(db, h)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

// huffFixture builds a HUFF table with 8-bit codes: byte b maps to phrase
// 255-b, and a CDIC holding phrases for a few letters.
func huffFixture(t *testing.T) (*HuffReader, map[byte]string) {
	t.Helper()
	huff := make([]byte, 24+256*4+64*4)
	copy(huff, "HUFF\x00\x00\x00\x18")
	binary.BigEndian.PutUint32(huff[8:], 24)
	binary.BigEndian.PutUint32(huff[12:], 24+256*4)
	for i := 0; i < 256; i++ {
		// codelen 8, terminal, maxcode 255
		binary.BigEndian.PutUint32(huff[24+4*i:], 255<<8|0x80|8)
	}

	phrases := map[byte]string{}
	var offsets, body bytes.Buffer
	for i := 0; i < 256; i++ {
		code := byte(255 - i)
		s := string([]byte{'a' + byte(i%26)})
		phrases[code] = s
		binary.Write(&offsets, binary.BigEndian, uint16(2*256+body.Len()))
		binary.Write(&body, binary.BigEndian, uint16(0x8000|len(s)))
		body.WriteString(s)
	}
	cdic := append([]byte("CDIC\x00\x00\x00\x10"), 0, 0, 1, 0, 0, 0, 0, 8)
	cdic = append(cdic, offsets.Bytes()...)
	cdic = append(cdic, body.Bytes()...)

	r, err := NewHuffReader(huff, [][]byte{cdic})
	require.NoError(t, err)
	return r, phrases
}

func TestHuffReader(t *testing.T) {
	r, phrases := huffFixture(t)

	data := []byte{255, 254, 253}
	got, err := r.Unpack(data)
	require.NoError(t, err)
	assert.Equal(t, phrases[255]+phrases[254]+phrases[253], string(got))
	assert.Equal(t, "abc", string(got))
}

func TestHuffReaderRejectsBadTables(t *testing.T) {
	_, err := NewHuffReader([]byte("HUFF"), nil)
	assert.ErrorIs(t, err, faults.ErrUnsupportedStructure)
}

func TestReadSkeletonsAndFragments(t *testing.T) {
	raw := mobitest.Build(mobitest.Book{
		Version: 8,
		Text:    []byte("<html><body></body></html>FRAG"),
		FDST:    []int{0},
		Skeletons: []mobitest.SkeletonRow{
			{Name: "SKEL0000000000", FragCount: 1, Pos: 0, Len: 26},
		},
		Fragments: []mobitest.FragmentRow{
			{InsertPos: 12, AID: "0", FileNum: 0, SeqNum: 0, StartPos: 0, Len: 4},
		},
	})
	db, err := Open(raw)
	require.NoError(t, err)
	h, err := ReadHeader(db, 0)
	require.NoError(t, err)
	require.True(t, h.IsKF8())
	assert.Equal(t, 0, KF8Start(db, h))

	skels, err := ReadSkeletons(db, h)
	require.NoError(t, err)
	assert.Equal(t, []Skeleton{{Name: "SKEL0000000000", FragCount: 1, Pos: 0, Len: 26}}, skels)

	frags, err := ReadFragments(db, h)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 12, frags[0].InsertPos)
	assert.Equal(t, "P-//*[@aid='0']", frags[0].Selector)
	assert.Equal(t, "0", frags[0].AID())
	assert.Equal(t, 4, frags[0].Len)

	raw, err = RawText(db, h)
	require.NoError(t, err)
	flows, err := Flows(db, h, raw)
	require.NoError(t, err)
	require.Len(t, flows, 1)

	parts, err := Splice(flows[0], skels, frags)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "part0000", parts[0].Name)
	assert.Equal(t, "<html><body>FRAG</body></html>", string(parts[0].Data))
}

func TestSpliceRepairsInsertPositionInsideTag(t *testing.T) {
	skeleton := `<html><body><div aid="7"></div></body></html>`
	text := []byte(skeleton + "X")
	skels := []Skeleton{{Name: "SKEL", FragCount: 1, Pos: 0, Len: len(skeleton)}}
	// Offset 16 lands inside <div aid="7">; the anchor tag ends at offset 24.
	frags := []Fragment{{InsertPos: 16, Selector: "P-//*[@aid='7']", Len: 1}}

	parts, err := Splice(text, skels, frags)
	require.NoError(t, err)
	assert.Equal(t, `<html><body><div aid="7">X</div></body></html>`, string(JoinParts(parts)))
}

func TestSpliceMultipleSkeletons(t *testing.T) {
	// Each skeleton is followed by the fragments spliced into it.
	text := []byte("<a></a>12<b></b>345")
	skels := []Skeleton{
		{Name: "S0", FragCount: 1, Pos: 0, Len: 7},
		{Name: "S1", FragCount: 2, Pos: 9, Len: 7},
	}
	frags := []Fragment{
		{InsertPos: 3, FileNum: 0, Len: 2},
		{InsertPos: 12, FileNum: 1, Len: 1},
		{InsertPos: 13, FileNum: 1, StartPos: 1, Len: 2},
	}

	parts, err := Splice(text, skels, frags)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "<a>12</a>", string(parts[0].Data))
	assert.Equal(t, 0, parts[0].Offset)
	assert.Equal(t, "part0001", parts[1].Name)
	assert.Equal(t, "<b>345</b>", string(parts[1].Data))
	assert.Equal(t, 9, parts[1].Offset)

	_, err = Splice(text, skels, frags[:1])
	assert.ErrorIs(t, err, faults.ErrUnsupportedStructure)
}

func TestKF8StartInCombinationFile(t *testing.T) {
	raw := mobitest.BuildCombination(
		mobitest.Book{Name: "combo", Text: []byte("<p>old</p>")},
		mobitest.Book{Version: 8, Text: []byte("<p>new</p>"), FDST: []int{0}},
	)
	db, err := Open(raw)
	require.NoError(t, err)
	first, err := ReadHeader(db, 0)
	require.NoError(t, err)

	start := KF8Start(db, first)
	require.Greater(t, start, 0)
	h, err := ReadHeader(db, start)
	require.NoError(t, err)
	assert.True(t, h.IsKF8())

	got, err := RawText(db, h)
	require.NoError(t, err)
	assert.Equal(t, "<p>new</p>", string(got))
}
