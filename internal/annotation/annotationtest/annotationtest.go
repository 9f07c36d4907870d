// Package annotationtest builds annotation sidecar streams for tests.
package annotationtest

import (
	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/tagged"
	"github.com/mrlokans/recall/internal/tagged/taggedtest"
)

func Highlight(start, end string, createdMillis int64) tagged.Value {
	return tagged.Map(
		tagged.Field("startPosition", tagged.String(start)),
		tagged.Field("endPosition", tagged.String(end)),
		tagged.Field("creationTime", tagged.Int(createdMillis)),
		tagged.Field("template", tagged.String("0")),
	)
}

func Note(start, end, text string) tagged.Value {
	return tagged.Map(
		tagged.Field("startPosition", tagged.String(start)),
		tagged.Field("endPosition", tagged.String(end)),
		tagged.Field("note", tagged.String(text)),
	)
}

func Bookmark(start string) tagged.Value {
	return tagged.Map(tagged.Field("startPosition", tagged.String(start)))
}

// Sidecar is the entry lists of one annotation cache.
type Sidecar struct {
	Highlights []tagged.Value
	Notes      []tagged.Value
	Bookmarks  []tagged.Value
}

// Bytes encodes s as a version 1 stream.
func (s Sidecar) Bytes() []byte {
	var lists []tagged.Entry
	if s.Highlights != nil {
		lists = append(lists, tagged.Field(annotation.HighlightList, tagged.List(s.Highlights...)))
	}
	if s.Notes != nil {
		lists = append(lists, tagged.Field(annotation.NoteList, tagged.List(s.Notes...)))
	}
	if s.Bookmarks != nil {
		lists = append(lists, tagged.Field(annotation.BookmarkList, tagged.List(s.Bookmarks...)))
	}
	return taggedtest.Stream(1, nil, tagged.Map(tagged.Field(annotation.CacheObject, tagged.Map(lists...))))
}
