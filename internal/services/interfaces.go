package services

import "github.com/mrlokans/recall/internal/entities"

// BookReader provides read-only access to books and highlights.
// Use this interface when you only need to query books.
type BookReader interface {
	GetAllBooks() ([]entities.Book, error)
	GetBookByID(id uint) (*entities.Book, error)
	GetBookByTitleAndAuthor(title, author string) (*entities.Book, error)
	SearchBooks(query string) ([]entities.Book, error)
}

// BookExporter handles exporting books to storage (database + files).
// Use this interface when you need to persist books.
type BookExporter interface {
	Export(books []entities.Book) (ExportResult, error)
}

// RunRecorder keeps the history of pipeline runs.
type RunRecorder interface {
	SaveExtractionRun(run *entities.ExtractionRun) error
	GetExtractionRuns(limit int) ([]entities.ExtractionRun, error)
	GetExtractionRunPage(status entities.RunStatus, limit, offset int) ([]entities.ExtractionRun, int64, error)
	GetExtractionRunsForBook(bookID uint) ([]entities.ExtractionRun, error)
}

// ExportResult contains the outcome of an export operation. BookIDs lists
// the database ids of the saved books.
type ExportResult struct {
	BooksProcessed      int    `json:"books_processed"`
	HighlightsProcessed int    `json:"highlights_processed"`
	BooksFailed         int    `json:"books_failed"`
	HighlightsFailed    int    `json:"highlights_failed"`
	BookIDs             []uint `json:"book_ids,omitempty"`
}

// ImportResult contains the outcome of an import operation.
type ImportResult struct {
	BooksProcessed      int    `json:"books_processed"`
	HighlightsProcessed int    `json:"highlights_processed"`
	BooksFailed         int    `json:"books_failed"`
	HighlightsFailed    int    `json:"highlights_failed"`
	BookIDs             []uint `json:"book_ids,omitempty"`
}
