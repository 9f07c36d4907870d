package mobi

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// RawText decompresses every text record of the book described by h, strips
// trailing entries and concatenates the result.
func RawText(db *Database, h *Header) ([]byte, error) {
	unpack, err := unpacker(db, h)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	out.Grow(int(h.TextLength))
	for i := 1; i <= int(h.TextRecordCount); i++ {
		rec, err := db.Record(h.Start + i)
		if err != nil {
			return nil, fmt.Errorf("text record %d: %w", i, err)
		}
		text, err := unpack(TrimTrailingEntries(rec, h.ExtraFlags))
		if err != nil {
			return nil, fmt.Errorf("text record %d: %w", i, err)
		}
		out.Write(text)
	}
	return out.Bytes(), nil
}

func unpacker(db *Database, h *Header) (func([]byte) ([]byte, error), error) {
	switch h.Compression {
	case CompressionNone:
		return func(b []byte) ([]byte, error) { return b, nil }, nil
	case CompressionPalmDOC:
		return UnpackPalmDOC, nil
	case CompressionHuff:
		huff, err := h.Rec(db, h.HuffRecord)
		if err != nil {
			return nil, fmt.Errorf("HUFF record: %w", err)
		}
		var cdics [][]byte
		for i := uint32(1); i < h.HuffCount; i++ {
			cdic, err := h.Rec(db, h.HuffRecord+i)
			if err != nil {
				return nil, fmt.Errorf("CDIC record: %w", err)
			}
			cdics = append(cdics, cdic)
		}
		reader, err := NewHuffReader(huff, cdics)
		if err != nil {
			return nil, err
		}
		return reader.Unpack, nil
	}
	return nil, structural("unknown compression type %d", h.Compression)
}

// Flows splits raw text into the flows listed by the FDST record. Without an
// FDST record the whole text is flow 0.
func Flows(db *Database, h *Header, raw []byte) ([][]byte, error) {
	if h.FDSTRecord == NoIndex {
		return [][]byte{raw}, nil
	}
	rec, err := h.Rec(db, h.FDSTRecord)
	if err != nil {
		return nil, err
	}
	if len(rec) < 12 || string(rec[:4]) != "FDST" {
		return nil, structural("FDST record has bad magic")
	}
	count := int(binary.BigEndian.Uint32(rec[8:]))
	if count == 0 || 12+8*count > len(rec) {
		return nil, structural("FDST table of %d flows runs past record", count)
	}
	starts := make([]int, 0, count+1)
	for i := 0; i < count; i++ {
		starts = append(starts, int(binary.BigEndian.Uint32(rec[12+8*i:])))
	}
	starts = append(starts, len(raw))

	flows := make([][]byte, count)
	for i := 0; i < count; i++ {
		start, end := starts[i], starts[i+1]
		if start > end || end > len(raw) {
			return nil, structural("flow %d spans [%d, %d) of %d bytes", i, start, end, len(raw))
		}
		flows[i] = raw[start:end]
	}
	return flows, nil
}
