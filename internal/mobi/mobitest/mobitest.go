// Package mobitest assembles small PalmDB books for tests.
package mobitest

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Exth is one EXTH record.
type Exth struct {
	Type uint32
	Data []byte
}

// SkeletonRow and FragmentRow mirror the KF8 index tables.
type SkeletonRow struct {
	Name      string
	FragCount int
	Pos       int
	Len       int
}

type FragmentRow struct {
	InsertPos int
	AID       string
	FileNum   int
	SeqNum    int
	StartPos  int
	Len       int
}

// Book describes the file to build. Zero values pick sensible defaults:
// uncompressed text, 4096 byte records, UTF-8, MOBI version 6.
type Book struct {
	Name        string
	FullName    string
	Text        []byte
	RecordSize  int
	Compression uint16
	Codepage    uint32
	Version     uint32
	Encryption  uint16
	EXTH        []Exth
	// Trailing is appended to every text record; ExtraFlags must describe it.
	Trailing   []byte
	ExtraFlags uint16
	// FDST lists flow start offsets; a KF8 book needs at least one.
	FDST      []int
	Skeletons []SkeletonRow
	Fragments []FragmentRow
}

const mobiHeaderLen = 264

// Build returns a complete PalmDB file for b.
func Build(b Book) []byte {
	return assemble(b.Name, records(b))
}

// BuildCombination returns a MOBI6 book followed by a BOUNDARY record and a
// KF8 book, the layout of combination AZW files.
func BuildCombination(mobi6, kf8 Book) []byte {
	boundary := len(records(mobi6))
	mobi6.EXTH = append(mobi6.EXTH, Exth{Type: 121, Data: be32(uint32(boundary))})
	all := append(records(mobi6), []byte("BOUNDARY"))
	all = append(all, records(kf8)...)
	return assemble(mobi6.Name, all)
}

func records(b Book) [][]byte {
	if b.RecordSize == 0 {
		b.RecordSize = 4096
	}
	if b.Compression == 0 {
		b.Compression = 1
	}
	if b.Codepage == 0 {
		b.Codepage = 65001
	}
	if b.Version == 0 {
		b.Version = 6
	}

	var text [][]byte
	for off := 0; off < len(b.Text); off += b.RecordSize {
		end := off + b.RecordSize
		if end > len(b.Text) {
			end = len(b.Text)
		}
		chunk := b.Text[off:end]
		if b.Compression == 2 {
			chunk = PackLiterals(chunk)
		}
		rec := append(append([]byte(nil), chunk...), b.Trailing...)
		text = append(text, rec)
	}

	next := 1 + len(text)
	fdst, skel, frag := uint32(0xFFFFFFFF), uint32(0xFFFFFFFF), uint32(0xFFFFFFFF)
	var extra [][]byte
	if len(b.FDST) > 0 {
		fdst = uint32(next)
		extra = append(extra, fdstRecord(b.FDST))
		next++
	}
	if len(b.Skeletons) > 0 {
		skel = uint32(next)
		recs := skeletonIndex(b.Skeletons)
		extra = append(extra, recs...)
		next += len(recs)
	}
	if len(b.Fragments) > 0 {
		frag = uint32(next)
		recs := fragmentIndex(b.Fragments)
		extra = append(extra, recs...)
		next += len(recs)
	}

	rec0 := header(b, len(text), fdst, uint32(len(b.FDST)), skel, frag)
	return append(append([][]byte{rec0}, text...), extra...)
}

func header(b Book, textRecords int, fdst, fdstCount, skel, frag uint32) []byte {
	rec := make([]byte, 16+mobiHeaderLen)
	binary.BigEndian.PutUint16(rec[0:], b.Compression)
	binary.BigEndian.PutUint32(rec[4:], uint32(len(b.Text)))
	binary.BigEndian.PutUint16(rec[8:], uint16(textRecords))
	binary.BigEndian.PutUint16(rec[10:], uint16(b.RecordSize))
	binary.BigEndian.PutUint16(rec[12:], b.Encryption)
	for i := 16 + 8; i < len(rec); i += 4 {
		binary.BigEndian.PutUint32(rec[i:], 0xFFFFFFFF)
	}
	copy(rec[16:], "MOBI")
	binary.BigEndian.PutUint32(rec[20:], mobiHeaderLen)
	binary.BigEndian.PutUint32(rec[24:], 2)
	binary.BigEndian.PutUint32(rec[28:], b.Codepage)
	binary.BigEndian.PutUint32(rec[36:], b.Version)
	binary.BigEndian.PutUint32(rec[112:], 0)
	binary.BigEndian.PutUint32(rec[116:], 0)
	binary.BigEndian.PutUint32(rec[192:], fdst)
	binary.BigEndian.PutUint32(rec[196:], fdstCount)
	binary.BigEndian.PutUint32(rec[240:], 0)
	binary.BigEndian.PutUint16(rec[242:], b.ExtraFlags)
	binary.BigEndian.PutUint32(rec[248:], frag)
	binary.BigEndian.PutUint32(rec[252:], skel)

	var exth []byte
	flags := uint32(0)
	if len(b.EXTH) > 0 {
		flags = 0x40
		var body bytes.Buffer
		for _, e := range b.EXTH {
			body.Write(be32(e.Type))
			body.Write(be32(uint32(8 + len(e.Data))))
			body.Write(e.Data)
		}
		exth = append([]byte("EXTH"), be32(uint32(12+body.Len()))...)
		exth = append(exth, be32(uint32(len(b.EXTH)))...)
		exth = append(exth, body.Bytes()...)
	}
	binary.BigEndian.PutUint32(rec[128:], flags)

	rec = append(rec, exth...)
	if b.FullName != "" {
		binary.BigEndian.PutUint32(rec[84:], uint32(len(rec)))
		binary.BigEndian.PutUint32(rec[88:], uint32(len(b.FullName)))
		rec = append(rec, b.FullName...)
	} else {
		binary.BigEndian.PutUint32(rec[84:], 0)
		binary.BigEndian.PutUint32(rec[88:], 0)
	}
	return rec
}

func assemble(name string, recs [][]byte) []byte {
	var out bytes.Buffer
	head := make([]byte, 78)
	copy(head, name)
	copy(head[60:], "BOOKMOBI")
	binary.BigEndian.PutUint16(head[76:], uint16(len(recs)))
	out.Write(head)

	offset := 78 + 8*len(recs) + 2
	for i, r := range recs {
		out.Write(be32(uint32(offset)))
		out.Write(be32(uint32(i * 2)))
		offset += len(r)
	}
	out.Write([]byte{0, 0})
	for _, r := range recs {
		out.Write(r)
	}
	return out.Bytes()
}

// PackLiterals encodes data as a PalmDOC stream of literal runs.
func PackLiterals(data []byte) []byte {
	var out bytes.Buffer
	for off := 0; off < len(data); off += 8 {
		end := off + 8
		if end > len(data) {
			end = len(data)
		}
		out.WriteByte(byte(end - off))
		out.Write(data[off:end])
	}
	return out.Bytes()
}

func fdstRecord(starts []int) []byte {
	rec := append([]byte("FDST"), be32(12)...)
	rec = append(rec, be32(uint32(len(starts)))...)
	for i, s := range starts {
		rec = append(rec, be32(uint32(s))...)
		// The end column is ignored by readers; fill it with the next start.
		next := s
		if i+1 < len(starts) {
			next = starts[i+1]
		}
		rec = append(rec, be32(uint32(next))...)
	}
	return rec
}

type tag struct{ tag, values, mask, end byte }

type entry struct {
	text    string
	control byte
	values  []uint32
}

func skeletonIndex(rows []SkeletonRow) [][]byte {
	tags := []tag{{1, 1, 0x03, 0}, {6, 2, 0x0C, 0}, {0, 0, 0, 1}}
	entries := make([]entry, len(rows))
	for i, r := range rows {
		entries[i] = entry{
			text:    r.Name,
			control: 0x01 | 0x04,
			values:  []uint32{uint32(r.FragCount), uint32(r.Pos), uint32(r.Len)},
		}
	}
	return index(tags, entries, nil)
}

func fragmentIndex(rows []FragmentRow) [][]byte {
	tags := []tag{{2, 1, 0x01, 0}, {3, 1, 0x02, 0}, {4, 1, 0x04, 0}, {6, 2, 0x08, 0}, {0, 0, 0, 1}}
	var cncx bytes.Buffer
	entries := make([]entry, len(rows))
	for i, r := range rows {
		off := cncx.Len()
		selector := fmt.Sprintf("P-//*[@aid='%s']", r.AID)
		cncx.Write(Varint(uint32(len(selector))))
		cncx.WriteString(selector)
		entries[i] = entry{
			text:    fmt.Sprintf("%010d", r.InsertPos),
			control: 0x0F,
			values:  []uint32{uint32(off), uint32(r.FileNum), uint32(r.SeqNum), uint32(r.StartPos), uint32(r.Len)},
		}
	}
	return index(tags, entries, cncx.Bytes())
}

const indxHeaderLen = 56

func indxHeader(start, count, nctoc uint32) []byte {
	h := make([]byte, indxHeaderLen)
	copy(h, "INDX")
	binary.BigEndian.PutUint32(h[4:], indxHeaderLen)
	binary.BigEndian.PutUint32(h[20:], start)
	binary.BigEndian.PutUint32(h[24:], count)
	binary.BigEndian.PutUint32(h[52:], nctoc)
	return h
}

func index(tags []tag, entries []entry, cncx []byte) [][]byte {
	nctoc := uint32(0)
	if cncx != nil {
		nctoc = 1
	}
	main := indxHeader(0, 1, nctoc)
	main = append(main, "TAGX"...)
	main = append(main, be32(uint32(12+4*len(tags)))...)
	main = append(main, be32(1)...)
	for _, t := range tags {
		main = append(main, t.tag, t.values, t.mask, t.end)
	}

	var body bytes.Buffer
	var positions []int
	for _, e := range entries {
		positions = append(positions, indxHeaderLen+body.Len())
		body.WriteByte(byte(len(e.text)))
		body.WriteString(e.text)
		body.WriteByte(e.control)
		for _, v := range e.values {
			body.Write(Varint(v))
		}
	}
	idxt := indxHeaderLen + body.Len()
	rec := indxHeader(uint32(idxt), uint32(len(entries)), 0)
	rec = append(rec, body.Bytes()...)
	rec = append(rec, "IDXT"...)
	for _, p := range positions {
		rec = binary.BigEndian.AppendUint16(rec, uint16(p))
	}

	out := [][]byte{main, rec}
	if cncx != nil {
		out = append(out, cncx)
	}
	return out
}

// Varint encodes v as a forward index varint.
func Varint(v uint32) []byte {
	out := []byte{byte(v&0x7F) | 0x80}
	for v >>= 7; v > 0; v >>= 7 {
		out = append([]byte{byte(v & 0x7F)}, out...)
	}
	return out
}

func be32(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}
