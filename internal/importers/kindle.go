package importers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/formats"
)

// KindleConverter flattens one extraction result.
type KindleConverter struct {
	Result   *extract.Result
	FilePath string
}

func NewKindleConverter(result *extract.Result, filePath string) *KindleConverter {
	return &KindleConverter{Result: result, FilePath: filePath}
}

// SourceName is the source a result is stored under. HTMLZ books come out of
// calibre conversions, everything else straight off a Kindle.
func SourceName(format formats.Format) string {
	if format == formats.FormatHTMLZ {
		return "calibre"
	}
	return "kindle"
}

func styleOf(kind annotation.Kind) entities.HighlightStyle {
	switch kind {
	case annotation.KindNote:
		return entities.HighlightStyleNoteOnly
	case annotation.KindBookmark:
		return entities.HighlightStyleBookmark
	default:
		return entities.HighlightStyleHighlight
	}
}

func (c *KindleConverter) Convert() ([]RawHighlight, Source) {
	source := Source{Name: SourceName(c.Result.Format), FilePath: c.FilePath}
	md := c.Result.Metadata
	year, _ := strconv.Atoi(md.Year)
	author := strings.Join(md.Authors, ", ")

	highlights := make([]RawHighlight, 0, len(c.Result.Highlights))
	for _, h := range c.Result.Highlights {
		highlights = append(highlights, RawHighlight{
			BookTitle:      md.Title,
			BookAuthor:     author,
			BookYear:       year,
			BookFormat:     string(c.Result.Format),
			BookExternalID: c.Result.BookID,
			Text:           h.Text,
			Note:           h.Note,
			Page:           h.Page,
			LocationType:   entities.LocationTypePosition,
			LocationValue:  int(h.Location),
			Section:        h.Section,
			Chapter:        h.Chapter,
			Color:          h.Style.String(),
			Style:          styleOf(h.Kind),
			HighlightedAt:  h.CreatedAt,
			ExternalID:     fmt.Sprintf("%s-%s-%d", source.Name, c.Result.BookID, h.RecordIndex),
			FilePath:       c.FilePath,
		})
	}
	return highlights, source
}

var _ Converter = (*KindleConverter)(nil)
