package mobi

import (
	"bytes"
	"encoding/binary"
	"math/bits"
)

// IndexEntry is one row of an INDX table: the entry label and its tag values.
type IndexEntry struct {
	Text []byte
	Tags map[uint8][]uint32
}

// Index is a decoded INDX table with its CNCX strings keyed by offset.
type Index struct {
	Entries []IndexEntry
	CNCX    map[uint32]string
}

type tagDef struct {
	tag            uint8
	valuesPerEntry uint8
	mask           uint8
	endFlag        uint8
}

type indxHeader struct {
	length uint32
	start  uint32
	count  uint32
	nctoc  uint32
}

func readIndxHeader(rec []byte) (indxHeader, error) {
	if len(rec) < 56 || string(rec[:4]) != "INDX" {
		return indxHeader{}, structural("record is not an INDX header")
	}
	return indxHeader{
		length: binary.BigEndian.Uint32(rec[4:]),
		start:  binary.BigEndian.Uint32(rec[20:]),
		count:  binary.BigEndian.Uint32(rec[24:]),
		nctoc:  binary.BigEndian.Uint32(rec[52:]),
	}, nil
}

// ReadIndex decodes the INDX table whose main record is at first (relative to
// h). The main record is followed by count entry records, then nctoc CNCX
// string records.
func ReadIndex(db *Database, h *Header, first uint32) (*Index, error) {
	main, err := h.Rec(db, first)
	if err != nil {
		return nil, err
	}
	hdr, err := readIndxHeader(main)
	if err != nil {
		return nil, err
	}

	idx := &Index{CNCX: map[uint32]string{}}
	for j := uint32(0); j < hdr.nctoc; j++ {
		rec, err := h.Rec(db, first+hdr.count+1+j)
		if err != nil {
			return nil, err
		}
		for off, text := range readCNCX(rec) {
			idx.CNCX[off+j*0x10000] = text
		}
	}

	controlBytes, tags, err := readTagx(main, int(hdr.length))
	if err != nil {
		return nil, err
	}

	for i := uint32(1); i <= hdr.count; i++ {
		rec, err := h.Rec(db, first+i)
		if err != nil {
			return nil, err
		}
		part, err := readIndxHeader(rec)
		if err != nil {
			return nil, err
		}
		idxt := int(part.start)
		if idxt+4+2*int(part.count) > len(rec) {
			return nil, structural("IDXT of index record %d runs past record", i)
		}
		positions := make([]int, 0, part.count+1)
		for j := 0; j < int(part.count); j++ {
			positions = append(positions, int(binary.BigEndian.Uint16(rec[idxt+4+2*j:])))
		}
		positions = append(positions, idxt)

		for j := 0; j < int(part.count); j++ {
			start, end := positions[j], positions[j+1]
			if start >= end || end > len(rec) {
				return nil, structural("index entry %d spans [%d, %d)", j, start, end)
			}
			textLen := int(rec[start])
			if start+1+textLen > end {
				return nil, structural("index entry %d label runs past entry", j)
			}
			text := rec[start+1 : start+1+textLen]
			tagMap, err := readTagMap(controlBytes, tags, rec, start+1+textLen, end)
			if err != nil {
				return nil, err
			}
			idx.Entries = append(idx.Entries, IndexEntry{Text: text, Tags: tagMap})
		}
	}
	return idx, nil
}

func readTagx(rec []byte, start int) (int, []tagDef, error) {
	if start+12 > len(rec) || !bytes.Equal(rec[start:start+4], []byte("TAGX")) {
		return 0, nil, structural("index has no TAGX section")
	}
	firstEntry := int(binary.BigEndian.Uint32(rec[start+4:]))
	controlBytes := int(binary.BigEndian.Uint32(rec[start+8:]))
	if start+firstEntry > len(rec) {
		return 0, nil, structural("TAGX section runs past record")
	}
	var tags []tagDef
	for i := 12; i+4 <= firstEntry; i += 4 {
		p := start + i
		tags = append(tags, tagDef{tag: rec[p], valuesPerEntry: rec[p+1], mask: rec[p+2], endFlag: rec[p+3]})
	}
	return controlBytes, tags, nil
}

type pendingTag struct {
	tag            uint8
	valueCount     int
	valueBytes     int
	valuesPerEntry int
}

func readTagMap(controlBytes int, tags []tagDef, rec []byte, start, end int) (map[uint8][]uint32, error) {
	if start+controlBytes > end {
		return nil, structural("index entry control bytes run past entry")
	}
	dataStart := start + controlBytes
	controlIndex := 0
	var pending []pendingTag

	for _, t := range tags {
		if t.endFlag == 0x01 {
			controlIndex++
			continue
		}
		if controlIndex >= controlBytes {
			break
		}
		mask := t.mask
		value := rec[start+controlIndex] & mask
		if value == 0 {
			continue
		}
		if value == mask {
			if bits.OnesCount8(mask) > 1 {
				consumed, n, err := forwardVarint(rec, dataStart, end)
				if err != nil {
					return nil, err
				}
				dataStart += consumed
				pending = append(pending, pendingTag{tag: t.tag, valueCount: -1, valueBytes: int(n), valuesPerEntry: int(t.valuesPerEntry)})
			} else {
				pending = append(pending, pendingTag{tag: t.tag, valueCount: 1, valuesPerEntry: int(t.valuesPerEntry)})
			}
			continue
		}
		for mask&1 == 0 {
			mask >>= 1
			value >>= 1
		}
		pending = append(pending, pendingTag{tag: t.tag, valueCount: int(value), valuesPerEntry: int(t.valuesPerEntry)})
	}

	out := make(map[uint8][]uint32, len(pending))
	for _, p := range pending {
		var values []uint32
		if p.valueCount >= 0 {
			for i := 0; i < p.valueCount*p.valuesPerEntry; i++ {
				consumed, v, err := forwardVarint(rec, dataStart, end)
				if err != nil {
					return nil, err
				}
				dataStart += consumed
				values = append(values, v)
			}
		} else {
			for total := 0; total < p.valueBytes; {
				consumed, v, err := forwardVarint(rec, dataStart, end)
				if err != nil {
					return nil, err
				}
				dataStart += consumed
				total += consumed
				values = append(values, v)
			}
		}
		out[p.tag] = values
	}
	return out, nil
}

// forwardVarint reads a big-endian base-128 value whose final byte has the
// high bit set.
func forwardVarint(rec []byte, pos, end int) (int, uint32, error) {
	var value uint32
	for consumed := 0; pos+consumed < end; {
		v := rec[pos+consumed]
		consumed++
		value = value<<7 | uint32(v&0x7F)
		if v&0x80 != 0 {
			return consumed, value, nil
		}
	}
	return 0, 0, structural("unterminated index value at %d", pos)
}

func readCNCX(rec []byte) map[uint32]string {
	out := map[uint32]string{}
	for off := 0; off < len(rec); {
		if rec[off] == 0 {
			break
		}
		start := off
		consumed, n, err := forwardVarint(rec, off, len(rec))
		if err != nil {
			break
		}
		off += consumed
		if off+int(n) > len(rec) {
			break
		}
		out[uint32(start)] = string(rec[off : off+int(n)])
		off += int(n)
	}
	return out
}
