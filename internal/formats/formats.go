// Package formats rebuilds the content buffer of a book file so that the
// positions stored in its annotation sidecar can be resolved against it.
//
// Each supported container has an Adapter. Adapters register themselves in
// init and are looked up by Format.
package formats

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
)

type Format string

const (
	FormatUnknown Format = ""
	FormatKFX     Format = "kfx"
	FormatKF8     Format = "kf8"
	FormatMOBI    Format = "mobi"
	FormatHTMLZ   Format = "htmlz"
)

// ParseFormat accepts format names and common file extensions.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "kfx":
		return FormatKFX, nil
	case "kf8", "azw3":
		return FormatKF8, nil
	case "mobi", "mobi6", "azw", "prc":
		return FormatMOBI, nil
	case "htmlz":
		return FormatHTMLZ, nil
	}
	return FormatUnknown, fmt.Errorf("unknown book format %q", s)
}

type Metadata struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Year    string   `json:"year,omitempty"`
}

// PageAnchor marks where a page starts in the content buffer.
type PageAnchor struct {
	Label  string `json:"label"`
	Offset int    `json:"offset"`
}

// TOCEntry is a table of contents node with its byte offset in the buffer.
type TOCEntry struct {
	Label    string     `json:"label"`
	Offset   int        `json:"offset"`
	Children []TOCEntry `json:"children,omitempty"`
}

// Book is a reconstructed book.
type Book interface {
	Content() *content.Buffer
	Metadata() Metadata
	PageAnchors() []PageAnchor
}

// Navigator is implemented by books that carry a table of contents.
type Navigator interface {
	TableOfContents() []TOCEntry
}

// Adapter reconstructs one container format.
type Adapter interface {
	Reconstruct(raw []byte) (Book, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[Format]Adapter{}
)

// Register installs the adapter used for f.
func Register(f Format, a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[f] = a
}

func Lookup(f Format) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := registry[f]
	return a, ok
}

// Reconstruct rebuilds raw with the adapter registered for hint.
func Reconstruct(raw []byte, hint Format) (Book, error) {
	a, ok := Lookup(hint)
	if !ok {
		return nil, fmt.Errorf("%w: no adapter for format %q", faults.ErrUnsupportedStructure, hint)
	}
	return a.Reconstruct(raw)
}

// book is the Book implementation shared by all adapters.
type book struct {
	buf     *content.Buffer
	meta    Metadata
	anchors []PageAnchor
}

func (b *book) Content() *content.Buffer  { return b.buf }
func (b *book) Metadata() Metadata        { return b.meta }
func (b *book) PageAnchors() []PageAnchor { return b.anchors }

func sortAnchors(anchors []PageAnchor) []PageAnchor {
	sort.SliceStable(anchors, func(i, j int) bool { return anchors[i].Offset < anchors[j].Offset })
	return anchors
}

// PageAt returns the label of the last anchor at or before offset.
func PageAt(anchors []PageAnchor, offset int) string {
	i := sort.Search(len(anchors), func(i int) bool { return anchors[i].Offset > offset })
	if i == 0 {
		return ""
	}
	return anchors[i-1].Label
}

// SectionAt returns the labels of the top-level entry and its child that
// contain offset.
func SectionAt(toc []TOCEntry, offset int) (section, chapter string) {
	var top *TOCEntry
	for i := range toc {
		if toc[i].Offset > offset {
			break
		}
		top = &toc[i]
	}
	if top == nil {
		return "", ""
	}
	for _, child := range top.Children {
		if child.Offset > offset {
			break
		}
		chapter = child.Label
	}
	return top.Label, chapter
}

var yearPattern = regexp.MustCompile(`\d{4}`)

// yearOf extracts the leading four digit year from a date string.
func yearOf(date string) string {
	date = strings.TrimSpace(date)
	if loc := yearPattern.FindStringIndex(date); loc != nil && loc[0] == 0 {
		return date[:4]
	}
	return ""
}

// Detect guesses the format from magic bytes, falling back to the file
// extension of name.
func Detect(raw []byte, name string) (Format, error) {
	switch {
	case hasPrefix(raw, "\xeaDRMION\xee"), hasPrefix(raw, "CONT"):
		return FormatKFX, nil
	case hasPrefix(raw, "PK\x03\x04"):
		return FormatHTMLZ, nil
	case len(raw) >= 68 && (string(raw[60:68]) == "BOOKMOBI" || string(raw[60:68]) == "TEXtREAd"):
		if isKF8(raw) {
			return FormatKF8, nil
		}
		return FormatMOBI, nil
	}
	if ext := filepath.Ext(name); ext != "" {
		return ParseFormat(ext)
	}
	return FormatUnknown, fmt.Errorf("%w: unrecognised book file", faults.ErrUnsupportedStructure)
}

func hasPrefix(raw []byte, magic string) bool {
	return len(raw) >= len(magic) && string(raw[:len(magic)]) == magic
}
