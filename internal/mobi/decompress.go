package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TrimTrailingEntries removes the per-record trailing entries announced by
// the header's extra data flags. Bit 0 marks multibyte overlap bytes; every
// higher set bit adds one entry whose size is stored as a backward varint
// at the end of the record.
func TrimTrailingEntries(rec []byte, flags uint16) []byte {
	size := len(rec)
	for f := flags >> 1; f != 0; f >>= 1 {
		if f&1 != 0 {
			size -= trailingEntrySize(rec[:size])
			if size <= 0 {
				return nil
			}
		}
	}
	if flags&1 != 0 && size > 0 {
		size -= int(rec[size-1]&0x3) + 1
	}
	if size < 0 {
		return nil
	}
	return rec[:size]
}

func trailingEntrySize(rec []byte) int {
	result, shift := 0, 0
	for i := len(rec) - 1; i >= 0; i-- {
		v := rec[i]
		result |= int(v&0x7F) << shift
		shift += 7
		if v&0x80 != 0 || shift >= 28 {
			break
		}
	}
	return result
}

// UnpackPalmDOC expands one PalmDOC (LZ77 variant) compressed record.
func UnpackPalmDOC(in []byte) ([]byte, error) {
	out := make([]byte, 0, len(in)*2)
	for p := 0; p < len(in); {
		c := in[p]
		p++
		switch {
		case c >= 1 && c <= 8:
			if p+int(c) > len(in) {
				return nil, structural("PalmDOC literal run past end of record")
			}
			out = append(out, in[p:p+int(c)]...)
			p += int(c)
		case c < 0x80:
			out = append(out, c)
		case c >= 0xC0:
			out = append(out, ' ', c^0x80)
		default:
			if p >= len(in) {
				return out, nil
			}
			pair := int(c)<<8 | int(in[p])
			p++
			dist := (pair >> 3) & 0x7FF
			n := pair&7 + 3
			if dist == 0 || dist > len(out) {
				return nil, structural("PalmDOC back reference %d with %d bytes of output", dist, len(out))
			}
			// Copy byte by byte; the source may overlap the bytes being written.
			from := len(out) - dist
			for i := 0; i < n; i++ {
				out = append(out, out[from+i])
			}
		}
	}
	return out, nil
}

type huffCode struct {
	length  uint
	term    bool
	maxCode uint64
}

type cdicEntry struct {
	data     []byte
	resolved bool
}

// HuffReader decodes HUFF/CDIC compressed text records.
type HuffReader struct {
	dict1   [256]huffCode
	minCode [33]uint64
	maxCode [33]uint64
	phrases []*cdicEntry
	depth   int
}

// NewHuffReader loads the HUFF table followed by its CDIC records.
func NewHuffReader(huff []byte, cdics [][]byte) (*HuffReader, error) {
	if len(huff) < 24 || !bytes.Equal(huff[:8], []byte("HUFF\x00\x00\x00\x18")) {
		return nil, structural("bad HUFF record")
	}
	off1 := int(binary.BigEndian.Uint32(huff[8:]))
	off2 := int(binary.BigEndian.Uint32(huff[12:]))
	if off1+256*4 > len(huff) || off2+64*4 > len(huff) {
		return nil, structural("HUFF tables run past record")
	}

	r := &HuffReader{}
	for i := 0; i < 256; i++ {
		v := binary.BigEndian.Uint32(huff[off1+4*i:])
		code := huffCode{length: uint(v & 0x1F), term: v&0x80 != 0}
		if code.length == 0 || code.length <= 8 && !code.term {
			return nil, structural("HUFF code %d has invalid length %d", i, code.length)
		}
		code.maxCode = ((uint64(v>>8) + 1) << (32 - code.length)) - 1
		r.dict1[i] = code
	}
	r.maxCode[0] = (1 << 32) - 1
	for l := 1; l <= 32; l++ {
		lo := uint64(binary.BigEndian.Uint32(huff[off2+8*(l-1):]))
		hi := uint64(binary.BigEndian.Uint32(huff[off2+8*(l-1)+4:]))
		r.minCode[l] = lo << (32 - l)
		r.maxCode[l] = ((hi + 1) << (32 - l)) - 1
	}

	for i, cdic := range cdics {
		if err := r.loadCDIC(cdic); err != nil {
			return nil, fmt.Errorf("CDIC %d: %w", i, err)
		}
	}
	return r, nil
}

func (r *HuffReader) loadCDIC(cdic []byte) error {
	if len(cdic) < 16 || !bytes.Equal(cdic[:8], []byte("CDIC\x00\x00\x00\x10")) {
		return structural("bad CDIC record")
	}
	phrases := int(binary.BigEndian.Uint32(cdic[8:]))
	bits := binary.BigEndian.Uint32(cdic[12:])
	n := phrases - len(r.phrases)
	if bits < 31 && 1<<bits < n {
		n = 1 << bits
	}
	for i := 0; i < n; i++ {
		if 16+2*i+2 > len(cdic) {
			return structural("CDIC offset table truncated")
		}
		off := int(binary.BigEndian.Uint16(cdic[16+2*i:]))
		if 16+off+2 > len(cdic) {
			return structural("CDIC phrase %d offset %d past record", i, off)
		}
		blen := binary.BigEndian.Uint16(cdic[16+off:])
		start := 18 + off
		end := start + int(blen&0x7FFF)
		if end > len(cdic) {
			return structural("CDIC phrase %d past record", i)
		}
		r.phrases = append(r.phrases, &cdicEntry{data: cdic[start:end], resolved: blen&0x8000 != 0})
	}
	return nil
}

// Unpack decodes one compressed record.
func (r *HuffReader) Unpack(data []byte) ([]byte, error) {
	r.depth++
	defer func() { r.depth-- }()
	if r.depth > 32 {
		return nil, structural("HUFF phrase recursion too deep")
	}

	bitsLeft := len(data) * 8
	padded := make([]byte, len(data)+8)
	copy(padded, data)

	var out []byte
	pos := 0
	x := binary.BigEndian.Uint64(padded[pos:])
	n := 32
	for {
		if n <= 0 {
			pos += 4
			if pos+8 > len(padded) {
				break
			}
			x = binary.BigEndian.Uint64(padded[pos:])
			n += 32
		}
		code := (x >> uint(n)) & 0xFFFFFFFF
		entry := r.dict1[code>>24]
		length, maxCode := entry.length, entry.maxCode
		if !entry.term {
			for length < 32 && code < r.minCode[length] {
				length++
			}
			maxCode = r.maxCode[length]
		}
		n -= int(length)
		bitsLeft -= int(length)
		if bitsLeft < 0 {
			break
		}
		idx := (maxCode - code) >> (32 - length)
		if idx >= uint64(len(r.phrases)) {
			return nil, structural("HUFF phrase %d of %d", idx, len(r.phrases))
		}
		phrase := r.phrases[idx]
		if !phrase.resolved {
			expanded, err := r.Unpack(phrase.data)
			if err != nil {
				return nil, err
			}
			phrase.data, phrase.resolved = expanded, true
		}
		out = append(out, phrase.data...)
	}
	return out, nil
}
