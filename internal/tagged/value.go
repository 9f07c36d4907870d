package tagged

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
)

// Type identifies the shape of a decoded value.
type Type uint8

const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeUint
	TypeString
	TypeBlob
	TypeList
	TypeMap
	TypeSymbol
)

func (t Type) String() string {
	switch t {
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeString:
		return "string"
	case TypeBlob:
		return "blob"
	case TypeList:
		return "list"
	case TypeMap:
		return "map"
	case TypeSymbol:
		return "symbol"
	default:
		return "invalid"
	}
}

// Value is one decoded node of a tagged object graph. The zero Value is
// TypeInvalid and is what lookups return for missing keys.
type Value struct {
	typ     Type
	b       bool
	i       int64
	u       uint64
	s       string
	blob    []byte
	list    []Value
	entries []Entry
	sym     uint32
}

// Entry is one key/value pair of an ordered map.
type Entry struct {
	Key   string
	Value Value
}

func Bool(b bool) Value      { return Value{typ: TypeBool, b: b} }
func Int(i int64) Value      { return Value{typ: TypeInt, i: i} }
func Uint(u uint64) Value    { return Value{typ: TypeUint, u: u} }
func String(s string) Value  { return Value{typ: TypeString, s: s} }
func Blob(b []byte) Value    { return Value{typ: TypeBlob, blob: b} }
func List(vs ...Value) Value { return Value{typ: TypeList, list: vs} }
func Map(es ...Entry) Value  { return Value{typ: TypeMap, entries: es} }
func Field(key string, v Value) Entry {
	return Entry{Key: key, Value: v}
}

// Symbol is a reference to symbol id whose text has already been resolved.
func Symbol(id uint32, text string) Value {
	return Value{typ: TypeSymbol, sym: id, s: text}
}

func (v Value) Type() Type       { return v.typ }
func (v Value) IsValid() bool    { return v.typ != TypeInvalid }
func (v Value) SymbolID() uint32 { return v.sym }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) {
	return v.b, v.typ == TypeBool
}

// AsInt returns signed and unsigned integers as int64 when they fit.
func (v Value) AsInt() (int64, bool) {
	switch v.typ {
	case TypeInt:
		return v.i, true
	case TypeUint:
		if v.u > math.MaxInt64 {
			return 0, false
		}
		return int64(v.u), true
	}
	return 0, false
}

// AsUint returns non-negative integers as uint64.
func (v Value) AsUint() (uint64, bool) {
	switch v.typ {
	case TypeUint:
		return v.u, true
	case TypeInt:
		if v.i < 0 {
			return 0, false
		}
		return uint64(v.i), true
	}
	return 0, false
}

// AsString returns the text of strings and resolved symbols.
func (v Value) AsString() (string, bool) {
	if v.typ == TypeString || v.typ == TypeSymbol {
		return v.s, true
	}
	return "", false
}

func (v Value) AsBlob() ([]byte, bool) {
	return v.blob, v.typ == TypeBlob
}

// Items returns the elements of a list, nil for any other type.
func (v Value) Items() []Value {
	if v.typ != TypeList {
		return nil
	}
	return v.list
}

// Entries returns the entries of a map in stream order.
func (v Value) Entries() []Entry {
	if v.typ != TypeMap {
		return nil
	}
	return v.entries
}

// Get returns the first entry named key.
func (v Value) Get(key string) (Value, bool) {
	for _, e := range v.Entries() {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

// String renders scalars as plain text and containers as JSON. It is the
// pass-through form used when an opaque value has to be stored as text.
func (v Value) String() string {
	switch v.typ {
	case TypeInvalid:
		return ""
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeUint:
		return strconv.FormatUint(v.u, 10)
	case TypeString, TypeSymbol:
		return v.s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(out)
}

// Equal reports deep equality, including map entry order.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ {
		return false
	}
	switch v.typ {
	case TypeBool:
		return v.b == o.b
	case TypeInt:
		return v.i == o.i
	case TypeUint:
		return v.u == o.u
	case TypeString:
		return v.s == o.s
	case TypeSymbol:
		return v.s == o.s && v.sym == o.sym
	case TypeBlob:
		return bytes.Equal(v.blob, o.blob)
	case TypeList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case TypeMap:
		if len(v.entries) != len(o.entries) {
			return false
		}
		for i := range v.entries {
			if v.entries[i].Key != o.entries[i].Key || !v.entries[i].Value.Equal(o.entries[i].Value) {
				return false
			}
		}
		return true
	}
	return true
}

// MarshalJSON keeps map entries in stream order.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeInvalid:
		return []byte("null"), nil
	case TypeBool:
		return json.Marshal(v.b)
	case TypeInt:
		return json.Marshal(v.i)
	case TypeUint:
		return json.Marshal(v.u)
	case TypeString, TypeSymbol:
		return json.Marshal(v.s)
	case TypeBlob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.blob))
	case TypeList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			out, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(out)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case TypeMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			out, err := e.Value.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(out)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return []byte("null"), nil
}
