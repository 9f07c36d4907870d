package kfx

import (
	"strings"

	"github.com/mrlokans/recall/internal/tagged"
)

type Section struct {
	Name    string
	Content string
}

// Placement is one row of the position index: where a section starts in the
// book's character position space and how many characters it spans.
type Placement struct {
	Section  string
	Position int64
	Length   int64
}

type Metadata struct {
	Title     string
	Authors   []string
	IssueDate string
}

type PageLabel struct {
	Label    string
	Position int64
}

type TOCEntry struct {
	Label    string
	Position int64
	Children []TOCEntry
}

type Navigation struct {
	Pages []PageLabel
	TOC   []TOCEntry
}

func str(v tagged.Value, key string) string {
	f, _ := v.Get(key)
	s, _ := f.AsString()
	return s
}

func integer(v tagged.Value, key string) (int64, bool) {
	f, ok := v.Get(key)
	if !ok {
		return 0, false
	}
	return f.AsInt()
}

// Sections returns the section entities keyed by name.
func (c *Container) Sections() (map[string]Section, error) {
	out := map[string]Section{}
	for _, e := range c.ByType(TypeSection) {
		v, err := e.Value()
		if err != nil {
			return nil, err
		}
		s := Section{Name: str(v, "name"), Content: str(v, "content")}
		if s.Name == "" {
			return nil, structural("section entity %d has no name", e.ID)
		}
		if _, dup := out[s.Name]; dup {
			return nil, structural("duplicate section %q", s.Name)
		}
		out[s.Name] = s
	}
	return out, nil
}

// PositionIndex returns the placements of the first position index entity.
func (c *Container) PositionIndex() ([]Placement, error) {
	entities := c.ByType(TypePositionIndex)
	if len(entities) == 0 {
		return nil, structural("container has no position index")
	}
	v, err := entities[0].Value()
	if err != nil {
		return nil, err
	}
	if v.Type() != tagged.TypeList {
		return nil, structural("position index is %s", v.Type())
	}
	out := make([]Placement, 0, len(v.Items()))
	for i, item := range v.Items() {
		p := Placement{Section: str(item, "section")}
		var okPos, okLen bool
		p.Position, okPos = integer(item, "position")
		p.Length, okLen = integer(item, "length")
		if p.Section == "" || !okPos || !okLen || p.Position < 0 || p.Length < 0 {
			return nil, structural("position index row %d is incomplete", i)
		}
		out = append(out, p)
	}
	return out, nil
}

// Metadata returns the book metadata; a container without it yields zero values.
func (c *Container) Metadata() (Metadata, error) {
	entities := c.ByType(TypeMetadata)
	if len(entities) == 0 {
		return Metadata{}, nil
	}
	v, err := entities[0].Value()
	if err != nil {
		return Metadata{}, err
	}
	md := Metadata{Title: strings.TrimSpace(str(v, "title")), IssueDate: str(v, "issue_date")}
	authors, _ := v.Get("authors")
	switch authors.Type() {
	case tagged.TypeList:
		for _, a := range authors.Items() {
			if s, ok := a.AsString(); ok && strings.TrimSpace(s) != "" {
				md.Authors = append(md.Authors, strings.TrimSpace(s))
			}
		}
	case tagged.TypeString:
		s, _ := authors.AsString()
		if s = strings.TrimSpace(s); s != "" {
			md.Authors = []string{s}
		}
	}
	return md, nil
}

// Navigation returns the page list and table of contents.
func (c *Container) Navigation() (Navigation, error) {
	entities := c.ByType(TypeNavigation)
	if len(entities) == 0 {
		return Navigation{}, nil
	}
	v, err := entities[0].Value()
	if err != nil {
		return Navigation{}, err
	}
	var nav Navigation
	pages, _ := v.Get("pages")
	for _, p := range pages.Items() {
		pos, ok := integer(p, "position")
		label := str(p, "label")
		if !ok || label == "" {
			continue
		}
		nav.Pages = append(nav.Pages, PageLabel{Label: label, Position: pos})
	}
	toc, _ := v.Get("toc")
	nav.TOC = tocEntries(toc, 0)
	return nav, nil
}

func tocEntries(v tagged.Value, depth int) []TOCEntry {
	if depth > tagged.MaxDepth {
		return nil
	}
	var out []TOCEntry
	for _, item := range v.Items() {
		pos, ok := integer(item, "position")
		if !ok {
			continue
		}
		children, _ := item.Get("children")
		out = append(out, TOCEntry{
			Label:    str(item, "label"),
			Position: pos,
			Children: tocEntries(children, depth+1),
		})
	}
	return out
}
