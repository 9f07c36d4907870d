// Package taggedtest encodes tagged value streams for tests. Production code
// only ever reads the format.
package taggedtest

import (
	"bytes"
	"encoding/binary"

	"github.com/mrlokans/recall/internal/tagged"
)

// Builder appends raw wire data.
type Builder struct {
	buf bytes.Buffer
}

func (b *Builder) Bytes() []byte { return append([]byte(nil), b.buf.Bytes()...) }

// Raw appends bytes verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf.Write(p)
	return b
}

func (b *Builder) Uint16(v uint16) *Builder {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *Builder) Uint32(v uint32) *Builder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *Builder) Uint64(v uint64) *Builder {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

// Header appends the stream magic and version.
func (b *Builder) Header(version uint16) *Builder {
	b.buf.Write(tagged.StreamMagic)
	return b.Uint16(version)
}

// Symbols appends a symbol table as a list of strings.
func (b *Builder) Symbols(texts ...string) *Builder {
	items := make([]tagged.Value, len(texts))
	for i, t := range texts {
		items[i] = tagged.String(t)
	}
	return b.Value(tagged.List(items...))
}

// Pad appends n padding bytes.
func (b *Builder) Pad(n int) *Builder {
	for i := 0; i < n; i++ {
		b.buf.WriteByte(tagged.TagPad)
	}
	return b
}

// Ext appends an extension value that readers must skip.
func (b *Builder) Ext(tag byte, payload []byte) *Builder {
	b.buf.WriteByte(tag)
	b.Uint32(uint32(len(payload)))
	b.buf.Write(payload)
	return b
}

// SymRef appends a symbol reference.
func (b *Builder) SymRef(id uint32) *Builder {
	b.buf.WriteByte(tagged.TagSymbolRef)
	return b.Uint32(id)
}

// SymDecl appends an inline symbol declaration.
func (b *Builder) SymDecl(text string) *Builder {
	b.buf.WriteByte(tagged.TagSymbolDecl)
	b.Uint32(uint32(len(text)))
	b.buf.WriteString(text)
	return b
}

// MapHeader starts a map of n entries; the caller appends keys and values.
func (b *Builder) MapHeader(n uint32) *Builder {
	b.buf.WriteByte(tagged.TagMap)
	return b.Uint32(n)
}

// ListHeader starts a list of n items.
func (b *Builder) ListHeader(n uint32) *Builder {
	b.buf.WriteByte(tagged.TagList)
	return b.Uint32(n)
}

// Key appends a string map key.
func (b *Builder) Key(k string) *Builder {
	return b.Value(tagged.String(k))
}

// Value appends the canonical encoding of v. Symbols are written as
// references to their id; integers use the narrowest width that fits.
func (b *Builder) Value(v tagged.Value) *Builder {
	switch v.Type() {
	case tagged.TypeBool:
		x, _ := v.AsBool()
		if x {
			b.buf.WriteByte(tagged.TagTrue)
		} else {
			b.buf.WriteByte(tagged.TagFalse)
		}
	case tagged.TypeInt:
		x, _ := v.AsInt()
		b.int(x)
	case tagged.TypeUint:
		b.uint(v)
	case tagged.TypeString:
		s, _ := v.AsString()
		b.buf.WriteByte(tagged.TagString)
		b.Uint32(uint32(len(s)))
		b.buf.WriteString(s)
	case tagged.TypeBlob:
		p, _ := v.AsBlob()
		b.buf.WriteByte(tagged.TagBlob)
		b.Uint32(uint32(len(p)))
		b.buf.Write(p)
	case tagged.TypeSymbol:
		b.SymRef(v.SymbolID())
	case tagged.TypeList:
		items := v.Items()
		b.ListHeader(uint32(len(items)))
		for _, item := range items {
			b.Value(item)
		}
	case tagged.TypeMap:
		entries := v.Entries()
		b.MapHeader(uint32(len(entries)))
		for _, e := range entries {
			b.Key(e.Key)
			b.Value(e.Value)
		}
	}
	return b
}

func (b *Builder) int(x int64) {
	switch {
	case x >= -1<<7 && x < 1<<7:
		b.buf.WriteByte(tagged.TagInt8)
		b.buf.WriteByte(byte(int8(x)))
	case x >= -1<<15 && x < 1<<15:
		b.buf.WriteByte(tagged.TagInt16)
		b.Uint16(uint16(int16(x)))
	case x >= -1<<31 && x < 1<<31:
		b.buf.WriteByte(tagged.TagInt32)
		b.Uint32(uint32(int32(x)))
	default:
		b.buf.WriteByte(tagged.TagInt64)
		b.Uint64(uint64(x))
	}
}

func (b *Builder) uint(v tagged.Value) {
	u, _ := v.AsUint()
	switch {
	case u <= 0xFF:
		b.buf.WriteByte(tagged.TagUint8)
		b.buf.WriteByte(byte(u))
	case u <= 0xFFFF:
		b.buf.WriteByte(tagged.TagUint16)
		b.Uint16(uint16(u))
	case u <= 0xFFFFFFFF:
		b.buf.WriteByte(tagged.TagUint32)
		b.Uint32(uint32(u))
	default:
		b.buf.WriteByte(tagged.TagUint64)
		b.Uint64(u)
	}
}

// Encode returns the canonical encoding of a single value.
func Encode(v tagged.Value) []byte {
	var b Builder
	return b.Value(v).Bytes()
}

// Stream returns a complete stream: header, symbol table and top-level values.
func Stream(version uint16, symbols []string, tops ...tagged.Value) []byte {
	var b Builder
	b.Header(version).Symbols(symbols...)
	for _, top := range tops {
		b.Value(top)
	}
	return b.Bytes()
}
