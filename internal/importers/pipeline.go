package importers

import (
	"time"

	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/services"
)

// RawHighlight represents a highlight from any import source, flattened
// together with the metadata of the book it belongs to.
type RawHighlight struct {
	BookTitle      string
	BookAuthor     string
	BookYear       int
	BookFormat     string
	BookExternalID string
	Text           string
	Note           string
	Page           string
	LocationType   entities.LocationType
	LocationValue  int
	Section        string
	Chapter        string
	Color          string
	Style          entities.HighlightStyle
	HighlightedAt  time.Time
	ExternalID     string
	FilePath       string
}

// GroupKey returns a unique identifier for grouping highlights by book.
func (h RawHighlight) GroupKey() string {
	return h.BookAuthor + "|" + h.BookTitle
}

// Source provides metadata about the import source for each book.
type Source struct {
	Name     string
	FilePath string
}

// Converter transforms raw highlights into entities ready for export.
type Converter interface {
	// Convert returns the highlights and the source metadata.
	Convert() ([]RawHighlight, Source)
}

// Exporter persists books to storage.
type Exporter interface {
	Export(books []entities.Book) (services.ExportResult, error)
}

// Pipeline handles the common import workflow:
// convert → group by book → deduplicate → save.
type Pipeline struct {
	exporter Exporter
}

// NewPipeline creates a new import pipeline with the given exporter.
func NewPipeline(exporter Exporter) *Pipeline {
	return &Pipeline{exporter: exporter}
}

// Import processes highlights from a converter and exports them.
func (p *Pipeline) Import(converter Converter) (services.ImportResult, error) {
	highlights, source := converter.Convert()

	if len(highlights) == 0 {
		return services.ImportResult{}, nil
	}

	books := groupHighlightsByBook(highlights, source)

	exportResult, err := p.exporter.Export(books)
	if err != nil {
		return services.ImportResult{}, err
	}

	return services.ImportResult(exportResult), nil
}

// ImportBooks directly exports pre-grouped books.
func (p *Pipeline) ImportBooks(books []entities.Book) (services.ImportResult, error) {
	if len(books) == 0 {
		return services.ImportResult{}, nil
	}

	exportResult, err := p.exporter.Export(books)
	if err != nil {
		return services.ImportResult{}, err
	}

	return services.ImportResult(exportResult), nil
}

// groupHighlightsByBook groups raw highlights by book (title + author),
// keeping books and highlights in input order.
func groupHighlightsByBook(highlights []RawHighlight, source Source) []entities.Book {
	bookMap := make(map[string]*entities.Book)
	var order []string

	for _, h := range highlights {
		key := h.GroupKey()

		book, exists := bookMap[key]
		if !exists {
			filePath := h.FilePath
			if filePath == "" {
				filePath = source.FilePath
			}
			book = &entities.Book{
				Title:           h.BookTitle,
				Author:          h.BookAuthor,
				PublicationYear: h.BookYear,
				Format:          h.BookFormat,
				ExternalID:      h.BookExternalID,
				FilePath:        filePath,
				Source:          entities.Source{Name: source.Name},
			}
			bookMap[key] = book
			order = append(order, key)
		}

		highlight := entities.Highlight{
			Text:          h.Text,
			Note:          h.Note,
			Page:          h.Page,
			LocationType:  h.LocationType,
			LocationValue: h.LocationValue,
			Section:       h.Section,
			Chapter:       h.Chapter,
			Color:         h.Color,
			Style:         h.Style,
			HighlightedAt: h.HighlightedAt,
			ExternalID:    h.ExternalID,
		}

		book.Highlights = append(book.Highlights, highlight)
	}

	books := make([]entities.Book, 0, len(bookMap))
	for _, key := range order {
		books = append(books, *bookMap[key])
	}

	return books
}
