package formats

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type metaTag struct {
	name    string
	content string
}

// markupIndex collects the structural landmarks of an (X)HTML buffer along
// with the byte offset of the tag that carries each of them.
type markupIndex struct {
	ids        map[string]int
	pageBreaks []int
	pageIDs    []PageAnchor
	metas      []metaTag
	title      string
}

var pageIDPattern = regexp.MustCompile(`^page(\d+)$`)

func scanMarkup(data []byte) markupIndex {
	idx := markupIndex{ids: map[string]int{}}
	z := html.NewTokenizer(bytes.NewReader(data))
	offset := 0
	inTitle := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return idx
		}
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			name, more := z.TagName()
			tag := string(name)
			var meta metaTag
			for more {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch string(key) {
				case "id", "aid":
					id := string(val)
					if _, seen := idx.ids[id]; !seen {
						idx.ids[id] = start
					}
					if m := pageIDPattern.FindStringSubmatch(id); m != nil && string(key) == "id" {
						label := strings.TrimLeft(m[1], "0")
						if label == "" {
							label = "0"
						}
						idx.pageIDs = append(idx.pageIDs, PageAnchor{Label: label, Offset: start})
					}
				case "name":
					meta.name = strings.ToLower(strings.TrimSpace(string(val)))
				case "content":
					meta.content = strings.TrimSpace(string(val))
				}
			}
			switch tag {
			case "mbp:pagebreak":
				idx.pageBreaks = append(idx.pageBreaks, start)
			case "meta":
				if meta.name != "" {
					idx.metas = append(idx.metas, meta)
				}
			case "title":
				inTitle = tt == html.StartTagToken
			}
		case html.TextToken:
			if inTitle && idx.title == "" {
				idx.title = strings.TrimSpace(string(z.Text()))
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "title" {
				inTitle = false
			}
		}
	}
}

// pageBreakAnchors numbers <mbp:pagebreak> markers sequentially from 1.
func (idx markupIndex) pageBreakAnchors() []PageAnchor {
	anchors := make([]PageAnchor, 0, len(idx.pageBreaks))
	for i, off := range idx.pageBreaks {
		anchors = append(anchors, PageAnchor{Label: strconv.Itoa(i + 1), Offset: off})
	}
	return anchors
}

// metaMetadata reads title, authors and year from <meta> tags, falling back
// to <title>.
func (idx markupIndex) metaMetadata() Metadata {
	var md Metadata
	for _, m := range idx.metas {
		switch m.name {
		case "title", "dc.title":
			if md.Title == "" {
				md.Title = m.content
			}
		case "author", "dc.creator", "creator":
			if m.content != "" {
				md.Authors = append(md.Authors, m.content)
			}
		case "date", "dc.date", "dc.date.issued", "pubdate":
			if md.Year == "" {
				md.Year = yearOf(m.content)
			}
		}
	}
	if md.Title == "" {
		md.Title = idx.title
	}
	return md
}
