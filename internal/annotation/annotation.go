// Package annotation decodes e-reader annotation sidecars into ordered
// records. Position tokens are kept opaque; the position package interprets
// them against a reconstructed book.
package annotation

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/tagged"
)

const (
	MinVersion = 1
	MaxVersion = 2
)

// Object and field names used by annotation sidecars.
const (
	CacheObject   = "annotation.cache.object"
	HighlightList = "annotation.personal.highlight"
	NoteList      = "annotation.personal.note"
	BookmarkList  = "annotation.personal.bookmark"
	fieldStart    = "startPosition"
	fieldEnd      = "endPosition"
	fieldCreated  = "creationTime"
	fieldModified = "lastModificationTime"
	fieldTemplate = "template"
	fieldNoteText = "note"
)

type Kind int

const (
	KindHighlight Kind = iota
	KindNote
	KindBookmark
)

func (k Kind) String() string {
	switch k {
	case KindHighlight:
		return "highlight"
	case KindNote:
		return "note"
	case KindBookmark:
		return "bookmark"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func kindForList(name string) (Kind, bool) {
	switch name {
	case HighlightList:
		return KindHighlight, true
	case NoteList:
		return KindNote, true
	case BookmarkList:
		return KindBookmark, true
	}
	return 0, false
}

// Token is an uninterpreted position reference.
type Token string

// Record is one user annotation in stream order.
type Record struct {
	Kind       Kind
	Start      Token
	End        Token
	CreatedAt  time.Time
	ModifiedAt time.Time
	Note       string
	// Style is the highlight color/template marker, passed through as read.
	Style tagged.Value
	Index int
}

// MetadataEntry is a top-level object other than the annotation cache.
type MetadataEntry struct {
	Name  string
	Value tagged.Value
}

type Document struct {
	Version  uint16
	Records  []Record
	Metadata []MetadataEntry
}

// Count returns how many records of kind the document holds.
func (d *Document) Count(kind Kind) int {
	n := 0
	for _, r := range d.Records {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// Decode parses a complete annotation stream.
func Decode(data []byte) (*Document, error) {
	symbols := tagged.NewSymbolTable()
	r := tagged.NewReader(data, symbols)

	version, err := r.ReadHeader()
	if err != nil {
		return nil, err
	}
	if version < MinVersion || version > MaxVersion {
		return nil, fmt.Errorf("%w: version %d", faults.ErrUnsupportedVersion, version)
	}

	if err := readSymbolTable(r, symbols); err != nil {
		return nil, err
	}
	r.AllowInlineSymbols(version >= 2)

	doc := &Document{Version: version}
	for {
		if err := r.SkipFiller(); err != nil {
			return nil, err
		}
		if r.EOF() {
			break
		}
		offset := r.Pos()
		top, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		if top.Type() != tagged.TypeMap {
			return nil, fmt.Errorf("%w: top-level %s at offset %d", faults.ErrMalformedStream, top.Type(), offset)
		}
		for _, obj := range top.Entries() {
			if obj.Key != CacheObject {
				doc.Metadata = append(doc.Metadata, MetadataEntry{Name: obj.Key, Value: obj.Value})
				continue
			}
			if err := doc.addCache(obj.Value); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

func readSymbolTable(r *tagged.Reader, symbols *tagged.SymbolTable) error {
	v, err := r.ReadValue()
	if err != nil {
		return err
	}
	if v.Type() != tagged.TypeList {
		return fmt.Errorf("%w: symbol table is %s", faults.ErrMalformedStream, v.Type())
	}
	for i, item := range v.Items() {
		if item.Type() != tagged.TypeString {
			return fmt.Errorf("%w: symbol %d is %s", faults.ErrMalformedStream, i, item.Type())
		}
		text, _ := item.AsString()
		symbols.Declare(text)
	}
	return nil
}

func (d *Document) addCache(cache tagged.Value) error {
	if cache.Type() != tagged.TypeMap {
		return fmt.Errorf("%w: %s is %s", faults.ErrMalformedStream, CacheObject, cache.Type())
	}
	for _, list := range cache.Entries() {
		kind, ok := kindForList(list.Key)
		if !ok {
			d.Metadata = append(d.Metadata, MetadataEntry{Name: CacheObject + "." + list.Key, Value: list.Value})
			continue
		}
		if list.Value.Type() != tagged.TypeList {
			return fmt.Errorf("%w: %s is %s", faults.ErrMalformedStream, list.Key, list.Value.Type())
		}
		for _, item := range list.Value.Items() {
			rec, err := decodeRecord(kind, item)
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", list.Key, len(d.Records), err)
			}
			rec.Index = len(d.Records)
			d.Records = append(d.Records, rec)
		}
	}
	return nil
}

func decodeRecord(kind Kind, v tagged.Value) (Record, error) {
	if v.Type() != tagged.TypeMap {
		return Record{}, fmt.Errorf("%w: record is %s", faults.ErrMalformedStream, v.Type())
	}
	rec := Record{Kind: kind}

	start, ok := v.Get(fieldStart)
	if !ok {
		return Record{}, fmt.Errorf("%w: record without %s", faults.ErrMalformedStream, fieldStart)
	}
	var err error
	if rec.Start, err = token(start); err != nil {
		return Record{}, err
	}

	if end, ok := v.Get(fieldEnd); ok {
		if rec.End, err = token(end); err != nil {
			return Record{}, err
		}
	} else if kind == KindBookmark {
		rec.End = rec.Start
	} else {
		return Record{}, fmt.Errorf("%w: %s without %s", faults.ErrMalformedStream, kind, fieldEnd)
	}

	if created, ok := v.Get(fieldCreated); ok {
		rec.CreatedAt = timestamp(created)
	}
	if modified, ok := v.Get(fieldModified); ok {
		rec.ModifiedAt = timestamp(modified)
	}
	if style, ok := v.Get(fieldTemplate); ok {
		rec.Style = style
	}
	if note, ok := v.Get(fieldNoteText); ok {
		rec.Note, _ = note.AsString()
	}
	return rec, nil
}

func token(v tagged.Value) (Token, error) {
	switch v.Type() {
	case tagged.TypeString, tagged.TypeSymbol:
		s, _ := v.AsString()
		return Token(s), nil
	case tagged.TypeInt, tagged.TypeUint:
		return Token(v.String()), nil
	}
	return "", fmt.Errorf("%w: position token is %s", faults.ErrMalformedStream, v.Type())
}

// timestamp accepts milliseconds since the epoch or an RFC 3339 string.
// Unparseable values yield the zero time.
func timestamp(v tagged.Value) time.Time {
	if ms, ok := v.AsInt(); ok {
		return time.UnixMilli(ms).UTC()
	}
	s, ok := v.AsString()
	if !ok || s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC()
	}
	return time.Time{}
}
