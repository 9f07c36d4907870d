package exporters

import (
	"fmt"
	"log"

	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/services"
)

// DatabaseExporter saves books into the database and, when a markdown
// exporter is configured, writes a notebook file for each saved book.
type DatabaseExporter struct {
	db               *database.Database
	markdownExporter *MarkdownExporter
}

// NewDatabaseExporter creates an exporter. An empty exportDir disables the
// markdown notebooks.
func NewDatabaseExporter(db *database.Database, exportDir string) *DatabaseExporter {
	exporter := &DatabaseExporter{db: db}
	if exportDir != "" {
		exporter.markdownExporter = NewMarkdownExporter(exportDir)
	}
	return exporter
}

func (exporter *DatabaseExporter) Export(books []entities.Book) (services.ExportResult, error) {
	result := services.ExportResult{}

	saved := make([]entities.Book, 0, len(books))
	for i := range books {
		book := &books[i]
		err := exporter.db.SaveBook(book)
		if err != nil {
			log.Printf("Failed to save book '%s' by %s to database: %v", book.Title, book.Author, err)
			result.BooksFailed++
			result.HighlightsFailed += len(book.Highlights)
			continue
		}
		result.BooksProcessed++
		result.HighlightsProcessed += len(book.Highlights)
		result.BookIDs = append(result.BookIDs, book.ID)
		log.Printf("Successfully saved book '%s' by %s to database with ID %d", book.Title, book.Author, book.ID)
		saved = append(saved, *book)
	}

	if exporter.markdownExporter != nil && len(saved) > 0 {
		// Re-read so the notebook holds every highlight of the book, not only this batch.
		for i := range saved {
			if full, err := exporter.db.GetBookByID(saved[i].ID); err == nil {
				saved[i] = *full
			}
		}
		markdownResult, err := exporter.markdownExporter.Export(saved)
		if err != nil {
			return result, fmt.Errorf("failed to export to markdown: %w", err)
		}
		result.BooksFailed += markdownResult.BooksFailed
		result.HighlightsFailed += markdownResult.HighlightsFailed
	}

	log.Printf("Export completed: %d books processed, %d highlights processed, %d books failed, %d highlights failed",
		result.BooksProcessed, result.HighlightsProcessed, result.BooksFailed, result.HighlightsFailed)

	return result, nil
}

// GetAllBooks retrieves all books from the database.
func (exporter *DatabaseExporter) GetAllBooks() ([]entities.Book, error) {
	return exporter.db.GetAllBooks()
}

// GetBookByTitleAndAuthor retrieves a specific book from the database.
func (exporter *DatabaseExporter) GetBookByTitleAndAuthor(title, author string) (*entities.Book, error) {
	return exporter.db.GetBookByTitleAndAuthor(title, author)
}

// GetBookByID retrieves a book by its ID from the database.
func (exporter *DatabaseExporter) GetBookByID(id uint) (*entities.Book, error) {
	return exporter.db.GetBookByID(id)
}

// SearchBooks searches books by title or author (case-insensitive partial match).
func (exporter *DatabaseExporter) SearchBooks(query string) ([]entities.Book, error) {
	return exporter.db.SearchBooks(query)
}

// Compile-time interface implementation checks
var _ services.BookReader = (*DatabaseExporter)(nil)
var _ services.BookExporter = (*DatabaseExporter)(nil)
var _ services.BookExporter = (*MarkdownExporter)(nil)
