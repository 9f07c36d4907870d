package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mrlokans/recall/internal/faults"
)

// Compression schemes of the PalmDOC header.
const (
	CompressionNone    = 1
	CompressionPalmDOC = 2
	CompressionHuff    = 17480
)

// EXTH record types read by this package.
const (
	ExthAuthor    = 100
	ExthPublished = 106
	ExthBoundary  = 121
	ExthTitle     = 503
)

const mobiOffset = 16

// Header is the record-0 header of one book inside a PalmDB file. Combination
// files carry two: the MOBI6 one at record 0 and the KF8 one after the
// boundary record. All record indices are relative to Start.
type Header struct {
	Start           int
	Compression     uint16
	TextLength      uint32
	TextRecordCount uint16
	Encryption      uint16
	HeaderLength    uint32
	Codepage        uint32
	Version         uint32
	FullName        string
	HuffRecord      uint32
	HuffCount       uint32
	FDSTRecord      uint32
	FDSTCount       uint32
	ExtraFlags      uint16
	FragmentIndex   uint32
	SkeletonIndex   uint32
	EXTH            map[uint32][][]byte
}

// ReadHeader parses the header stored in record start of db.
func ReadHeader(db *Database, start int) (*Header, error) {
	rec, err := db.Record(start)
	if err != nil {
		return nil, err
	}
	if len(rec) < mobiOffset {
		return nil, structural("record %d too short for a PalmDOC header", start)
	}
	h := &Header{
		Start:           start,
		Compression:     binary.BigEndian.Uint16(rec[0:]),
		TextLength:      binary.BigEndian.Uint32(rec[4:]),
		TextRecordCount: binary.BigEndian.Uint16(rec[8:]),
		Encryption:      binary.BigEndian.Uint16(rec[12:]),
		Codepage:        1252,
		HuffRecord:      NoIndex,
		FDSTRecord:      NoIndex,
		FragmentIndex:   NoIndex,
		SkeletonIndex:   NoIndex,
		EXTH:            map[uint32][][]byte{},
	}
	if h.Encryption != 0 {
		return nil, fmt.Errorf("%w: encryption type %d", faults.ErrDrmProtected, h.Encryption)
	}

	// PalmDOC files without a MOBI header are plain text.
	if len(rec) < mobiOffset+8 || string(rec[mobiOffset:mobiOffset+4]) != "MOBI" {
		return h, nil
	}

	h.HeaderLength = u32(rec, 20)
	h.Codepage = u32(rec, 28)
	h.Version = u32(rec, 36)
	if off, n := u32(rec, 84), u32(rec, 88); n > 0 && int(off)+int(n) <= len(rec) {
		h.FullName = string(rec[off : off+n])
	}
	if h.Compression == CompressionHuff {
		h.HuffRecord = u32(rec, 112)
		h.HuffCount = u32(rec, 116)
	}
	end := mobiOffset + int(h.HeaderLength)
	if h.HeaderLength >= 0xE4 && h.Version >= 5 {
		h.ExtraFlags = binary.BigEndian.Uint16(pad(rec, 242, 2))
	}
	if h.Version >= 8 {
		h.FDSTRecord = u32(rec, 192)
		h.FDSTCount = u32(rec, 196)
		h.FragmentIndex = u32(rec, 248)
		h.SkeletonIndex = u32(rec, 252)
	}
	if u32(rec, 128)&0x40 != 0 && end+12 <= len(rec) {
		if err := h.readEXTH(rec[end:]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// u32 reads a big-endian uint32 at off, treating bytes past the end as 0xFF
// so that absent trailing header fields read as NoIndex.
func u32(rec []byte, off int) uint32 {
	return binary.BigEndian.Uint32(pad(rec, off, 4))
}

func pad(rec []byte, off, n int) []byte {
	if off+n <= len(rec) {
		return rec[off : off+n]
	}
	out := bytes.Repeat([]byte{0xFF}, n)
	if off < len(rec) {
		copy(out, rec[off:])
	}
	return out
}

func (h *Header) readEXTH(data []byte) error {
	if string(data[:4]) != "EXTH" {
		return nil
	}
	count := binary.BigEndian.Uint32(data[8:12])
	pos := 12
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(data) {
			return structural("EXTH record %d runs past header", i)
		}
		typ := binary.BigEndian.Uint32(data[pos:])
		size := int(binary.BigEndian.Uint32(data[pos+4:]))
		if size < 8 || pos+size > len(data) {
			return structural("EXTH record %d has size %d", i, size)
		}
		h.EXTH[typ] = append(h.EXTH[typ], data[pos+8:pos+size])
		pos += size
	}
	return nil
}

// IsKF8 reports whether this header describes KF8 content.
func (h *Header) IsKF8() bool { return h.Version == 8 }

// ExthString returns the first EXTH record of type typ as text.
func (h *Header) ExthString(typ uint32) string {
	values := h.EXTH[typ]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(string(values[0]))
}

// ExthStrings returns every EXTH record of type typ as text.
func (h *Header) ExthStrings(typ uint32) []string {
	var out []string
	for _, v := range h.EXTH[typ] {
		if s := strings.TrimSpace(string(v)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ExthUint returns an EXTH record of type typ decoded as a big-endian integer.
func (h *Header) ExthUint(typ uint32) (uint32, bool) {
	values := h.EXTH[typ]
	if len(values) == 0 || len(values[0]) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(values[0]), true
}

// KF8Start locates the KF8 header of db. It returns 0 when record 0 is
// already KF8 and -1 when the file carries no KF8 part.
func KF8Start(db *Database, first *Header) int {
	if first.IsKF8() {
		return 0
	}
	boundary, ok := first.ExthUint(ExthBoundary)
	if !ok || boundary == NoIndex || int(boundary) >= len(db.Records) {
		return -1
	}
	b := int(boundary)
	if bytes.HasPrefix(db.Records[b], []byte("BOUNDARY")) {
		b++
	}
	if b >= len(db.Records) {
		return -1
	}
	return b
}

// Rec returns a record addressed relative to the header.
func (h *Header) Rec(db *Database, i uint32) ([]byte, error) {
	if i == NoIndex {
		return nil, structural("absent record index")
	}
	return db.Record(h.Start + int(i))
}
