package formats

import (
	"strings"
	"unicode/utf8"

	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/kfx"
)

func init() {
	Register(FormatKFX, KFXAdapter{})
}

// KFXAdapter replays the container's position index. Positions count
// characters; gaps between sections are filled with newlines so every
// position in the index stays addressable.
type KFXAdapter struct{}

type kfxBook struct {
	*book
	toc []TOCEntry
}

func (b *kfxBook) TableOfContents() []TOCEntry { return b.toc }

func (KFXAdapter) Reconstruct(raw []byte) (Book, error) {
	c, err := kfx.Open(raw)
	if err != nil {
		return nil, err
	}
	sections, err := c.Sections()
	if err != nil {
		return nil, err
	}
	index, err := c.PositionIndex()
	if err != nil {
		return nil, err
	}

	// Padding is bounded by the container size so a corrupt index cannot
	// demand an arbitrary allocation.
	limit := int64(len(raw))
	var text strings.Builder
	var cursor int64
	starts := make(map[string]int64, len(index))
	for _, p := range index {
		s, ok := sections[p.Section]
		if !ok {
			return nil, structuralf("position index names missing section %q", p.Section)
		}
		if p.Position < 0 || p.Length < 0 || p.Position > limit || p.Length > limit-p.Position {
			return nil, structuralf("section %q placed at %d with length %d lies outside the %d byte container", p.Section, p.Position, p.Length, limit)
		}
		if p.Position < cursor {
			return nil, structuralf("section %q at %d overlaps previous section ending at %d", p.Section, p.Position, cursor)
		}
		n := int64(utf8.RuneCountInString(s.Content))
		if n > p.Length {
			return nil, structuralf("section %q holds %d characters but is placed with length %d", p.Section, n, p.Length)
		}
		text.WriteString(strings.Repeat("\n", int(p.Position-cursor)))
		text.WriteString(s.Content)
		text.WriteString(strings.Repeat("\n", int(p.Length-n)))
		if _, seen := starts[p.Section]; !seen {
			starts[p.Section] = p.Position
		}
		cursor = p.Position + p.Length
	}

	data := []byte(text.String())
	probe := content.New(data, content.WithSpace(content.SpaceRune))
	offsets := make(map[string]int, len(starts))
	for name, pos := range starts {
		off, err := probe.Locate(pos)
		if err != nil {
			return nil, structuralf("section %q: %v", name, err)
		}
		offsets[name] = off
	}
	buf := content.New(data, content.WithSpace(content.SpaceRune), content.WithSections(offsets))

	md, err := c.Metadata()
	if err != nil {
		return nil, err
	}
	nav, err := c.Navigation()
	if err != nil {
		return nil, err
	}

	var anchors []PageAnchor
	for _, p := range nav.Pages {
		if off, err := buf.Locate(p.Position); err == nil {
			anchors = append(anchors, PageAnchor{Label: p.Label, Offset: off})
		}
	}

	return &kfxBook{
		book: &book{
			buf:     buf,
			meta:    Metadata{Title: md.Title, Authors: md.Authors, Year: yearOf(md.IssueDate)},
			anchors: sortAnchors(anchors),
		},
		toc: tocOffsets(buf, nav.TOC),
	}, nil
}

func tocOffsets(buf *content.Buffer, entries []kfx.TOCEntry) []TOCEntry {
	var out []TOCEntry
	for _, e := range entries {
		off, err := buf.Locate(e.Position)
		if err != nil {
			continue
		}
		out = append(out, TOCEntry{Label: e.Label, Offset: off, Children: tocOffsets(buf, e.Children)})
	}
	return out
}
