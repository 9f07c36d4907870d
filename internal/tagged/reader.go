// Package tagged reads the compact tagged, length-prefixed value grammar used
// by annotation sidecars and by KFX container entity payloads.
//
// Every value starts with a one byte tag. Scalars carry fixed-width
// big-endian payloads, strings and blobs carry a uint32 length, lists and maps
// carry a uint32 element count. Symbol references point into a SymbolTable
// that the caller threads through the Reader, so several streams can be
// decoded concurrently without sharing state.
package tagged

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/mrlokans/recall/internal/faults"
)

// Wire tags.
const (
	TagPad        byte = 0x00
	TagFalse      byte = 0x01
	TagTrue       byte = 0x02
	TagInt8       byte = 0x10
	TagInt16      byte = 0x11
	TagInt32      byte = 0x12
	TagInt64      byte = 0x13
	TagUint8      byte = 0x18
	TagUint16     byte = 0x19
	TagUint32     byte = 0x1A
	TagUint64     byte = 0x1B
	TagString     byte = 0x20
	TagBlob       byte = 0x21
	TagList       byte = 0x30
	TagMap        byte = 0x31
	TagSymbolRef  byte = 0x40
	TagSymbolDecl byte = 0x41
	TagExtFirst   byte = 0xE0
	TagExtLast    byte = 0xEF
)

// MaxDepth bounds container nesting.
const MaxDepth = 64

// StreamMagic opens every annotation stream; a uint16 version follows it.
var StreamMagic = []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x1A, 0xB1, 0x26}

// IsExtension reports whether tag belongs to the skippable extension range.
func IsExtension(tag byte) bool {
	return tag >= TagExtFirst && tag <= TagExtLast
}

// Reader decodes values from an in-memory stream.
type Reader struct {
	data        []byte
	pos         int
	symbols     *SymbolTable
	inlineDecls bool
}

// NewReader returns a Reader over data. symbols may be nil when the stream
// carries no symbol references.
func NewReader(data []byte, symbols *SymbolTable) *Reader {
	return &Reader{data: data, symbols: symbols}
}

// AllowInlineSymbols enables TagSymbolDecl, which appends to the symbol table
// at the point of the stream where it appears.
func (r *Reader) AllowInlineSymbols(allow bool) {
	r.inlineDecls = allow
}

func (r *Reader) Pos() int       { return r.pos }
func (r *Reader) Remaining() int { return len(r.data) - r.pos }
func (r *Reader) EOF() bool      { return r.pos >= len(r.data) }

func (r *Reader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d", faults.ErrMalformedStream, fmt.Sprintf(format, args...), r.pos)
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, r.malformed("declared length %d exceeds remaining %d bytes", n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes consumes exactly n raw bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	return r.take(n)
}

// ReadUint16 consumes a raw big-endian uint16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) readUint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// ReadHeader checks StreamMagic and returns the version that follows it.
func (r *Reader) ReadHeader() (uint16, error) {
	magic, err := r.take(len(StreamMagic))
	if err != nil {
		return 0, r.malformed("stream shorter than header")
	}
	for i := range magic {
		if magic[i] != StreamMagic[i] {
			return 0, fmt.Errorf("%w: bad magic % x", faults.ErrMalformedStream, magic)
		}
	}
	return r.ReadUint16()
}

// PeekTag returns the next tag without consuming it.
func (r *Reader) PeekTag() (byte, bool) {
	if r.EOF() {
		return 0, false
	}
	return r.data[r.pos], true
}

// SkipFiller consumes padding bytes and extension values. It stops at the
// first tag that is neither.
func (r *Reader) SkipFiller() error {
	for !r.EOF() {
		tag := r.data[r.pos]
		switch {
		case tag == TagPad:
			r.pos++
		case IsExtension(tag):
			r.pos++
			n, err := r.readUint32()
			if err != nil {
				return err
			}
			if _, err := r.take(int(n)); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// ReadValue decodes the next complete value.
func (r *Reader) ReadValue() (Value, error) {
	return r.readValue(0)
}

func (r *Reader) readValue(depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, r.malformed("nesting deeper than %d", MaxDepth)
	}
	tagPos := r.pos
	tb, err := r.take(1)
	if err != nil {
		return Value{}, r.malformed("missing value tag")
	}
	tag := tb[0]

	switch tag {
	case TagFalse:
		return Bool(false), nil
	case TagTrue:
		return Bool(true), nil
	case TagInt8, TagInt16, TagInt32, TagInt64:
		width := 1 << (tag - TagInt8)
		b, err := r.take(width)
		if err != nil {
			return Value{}, err
		}
		return Int(signExtend(b)), nil
	case TagUint8, TagUint16, TagUint32, TagUint64:
		width := 1 << (tag - TagUint8)
		b, err := r.take(width)
		if err != nil {
			return Value{}, err
		}
		return Uint(unsigned(b)), nil
	case TagString:
		s, err := r.readText()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case TagBlob:
		n, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		b, err := r.take(int(n))
		if err != nil {
			return Value{}, err
		}
		return Blob(append([]byte(nil), b...)), nil
	case TagList:
		n, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		if int64(n) > int64(r.Remaining()) {
			return Value{}, r.malformed("list declares %d elements with %d bytes left", n, r.Remaining())
		}
		items := make([]Value, 0, n)
		for i := uint32(0); i < n; i++ {
			item, err := r.readValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return List(items...), nil
	case TagMap:
		n, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		if 2*int64(n) > int64(r.Remaining()) {
			return Value{}, r.malformed("map declares %d entries with %d bytes left", n, r.Remaining())
		}
		entries := make([]Entry, 0, n)
		for i := uint32(0); i < n; i++ {
			key, err := r.readKey()
			if err != nil {
				return Value{}, err
			}
			val, err := r.readValue(depth + 1)
			if err != nil {
				return Value{}, err
			}
			entries = append(entries, Entry{Key: key, Value: val})
		}
		return Map(entries...), nil
	case TagSymbolRef:
		id, err := r.readUint32()
		if err != nil {
			return Value{}, err
		}
		text, ok := r.symbols.Lookup(id)
		if !ok {
			return Value{}, r.malformed("symbol %d not declared", id)
		}
		return Symbol(id, text), nil
	case TagSymbolDecl:
		if !r.inlineDecls || r.symbols == nil {
			r.pos = tagPos
			return Value{}, r.malformed("inline symbol declaration not allowed")
		}
		text, err := r.readText()
		if err != nil {
			return Value{}, err
		}
		id := r.symbols.Declare(text)
		return Symbol(id, text), nil
	}

	r.pos = tagPos
	return Value{}, r.malformed("unknown tag 0x%02x", tag)
}

func (r *Reader) readText() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", r.malformed("string is not valid UTF-8")
	}
	return string(b), nil
}

func (r *Reader) readKey() (string, error) {
	tag, ok := r.PeekTag()
	if !ok {
		return "", r.malformed("missing map key")
	}
	if tag != TagString && tag != TagSymbolRef && tag != TagSymbolDecl {
		return "", r.malformed("map key has tag 0x%02x", tag)
	}
	v, err := r.readValue(0)
	if err != nil {
		return "", err
	}
	s, _ := v.AsString()
	return s, nil
}

func signExtend(b []byte) int64 {
	switch len(b) {
	case 1:
		return int64(int8(b[0]))
	case 2:
		return int64(int16(binary.BigEndian.Uint16(b)))
	case 4:
		return int64(int32(binary.BigEndian.Uint32(b)))
	default:
		return int64(binary.BigEndian.Uint64(b))
	}
}

func unsigned(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(b))
	case 4:
		return uint64(binary.BigEndian.Uint32(b))
	default:
		return binary.BigEndian.Uint64(b)
	}
}

// Decode reads a single value that must span all of data, apart from
// trailing filler.
func Decode(data []byte) (Value, error) {
	r := NewReader(data, nil)
	v, err := r.ReadValue()
	if err != nil {
		return Value{}, err
	}
	if err := r.SkipFiller(); err != nil {
		return Value{}, err
	}
	if !r.EOF() {
		return Value{}, r.malformed("trailing data after value")
	}
	return v, nil
}
