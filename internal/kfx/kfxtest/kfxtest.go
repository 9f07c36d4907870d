// Package kfxtest assembles KFX containers for tests.
package kfxtest

import (
	"encoding/binary"

	"github.com/mrlokans/recall/internal/kfx"
	"github.com/mrlokans/recall/internal/tagged"
	"github.com/mrlokans/recall/internal/tagged/taggedtest"
)

// Entity is a typed payload to store in the container.
type Entity struct {
	Type  uint32
	Value tagged.Value
}

func Section(name, content string) Entity {
	return Entity{Type: kfx.TypeSection, Value: tagged.Map(
		tagged.Field("name", tagged.String(name)),
		tagged.Field("content", tagged.String(content)),
	)}
}

// Place is a position index row.
type Place struct {
	Section  string
	Position int64
	Length   int64
}

func PositionIndex(rows ...Place) Entity {
	items := make([]tagged.Value, len(rows))
	for i, r := range rows {
		items[i] = tagged.Map(
			tagged.Field("section", tagged.String(r.Section)),
			tagged.Field("position", tagged.Int(r.Position)),
			tagged.Field("length", tagged.Int(r.Length)),
		)
	}
	return Entity{Type: kfx.TypePositionIndex, Value: tagged.List(items...)}
}

func Metadata(title, issueDate string, authors ...string) Entity {
	list := make([]tagged.Value, len(authors))
	for i, a := range authors {
		list[i] = tagged.String(a)
	}
	return Entity{Type: kfx.TypeMetadata, Value: tagged.Map(
		tagged.Field("title", tagged.String(title)),
		tagged.Field("authors", tagged.List(list...)),
		tagged.Field("issue_date", tagged.String(issueDate)),
	)}
}

// Navigation takes page labels and TOC entries already shaped as values.
func Navigation(pages, toc []tagged.Value) Entity {
	return Entity{Type: kfx.TypeNavigation, Value: tagged.Map(
		tagged.Field("pages", tagged.List(pages...)),
		tagged.Field("toc", tagged.List(toc...)),
	)}
}

func Page(label string, position int64) tagged.Value {
	return tagged.Map(
		tagged.Field("label", tagged.String(label)),
		tagged.Field("position", tagged.Int(position)),
	)
}

func TOC(label string, position int64, children ...tagged.Value) tagged.Value {
	return tagged.Map(
		tagged.Field("label", tagged.String(label)),
		tagged.Field("position", tagged.Int(position)),
		tagged.Field("children", tagged.List(children...)),
	)
}

// Build writes a version 1 container. Payloads are stored in reverse entity
// order so that file order never matches table order.
func Build(entities ...Entity) []byte {
	payloads := make([][]byte, len(entities))
	for i, e := range entities {
		payloads[i] = taggedtest.Encode(e.Value)
	}

	head := make([]byte, 10)
	copy(head, kfx.Magic)
	binary.BigEndian.PutUint16(head[4:], 1)
	binary.BigEndian.PutUint32(head[6:], uint32(len(entities)))

	offsets := make([]uint64, len(entities))
	off := uint64(10 + 24*len(entities))
	for i := len(entities) - 1; i >= 0; i-- {
		offsets[i] = off
		off += uint64(len(payloads[i]))
	}

	out := head
	for i, e := range entities {
		out = binary.BigEndian.AppendUint32(out, uint32(i+1))
		out = binary.BigEndian.AppendUint32(out, e.Type)
		out = binary.BigEndian.AppendUint64(out, offsets[i])
		out = binary.BigEndian.AppendUint64(out, uint64(len(payloads[i])))
	}
	for i := len(entities) - 1; i >= 0; i-- {
		out = append(out, payloads[i]...)
	}
	return out
}
