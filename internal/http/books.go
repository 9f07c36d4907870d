package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/services"
)

type BooksController struct {
	reader services.BookReader
}

func NewBooksController(reader services.BookReader) *BooksController {
	return &BooksController{
		reader: reader,
	}
}

// GetAllBooks handles GET /api/books, narrowed by ?q= to titles and authors.
func (controller *BooksController) GetAllBooks(c *gin.Context) {
	var (
		books []entities.Book
		err   error
	)
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		books, err = controller.reader.SearchBooks(q)
	} else {
		books, err = controller.reader.GetAllBooks()
	}
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": books, "count": len(books)})
}

// GetBook handles GET /api/books/:id
func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.reader.GetBookByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondNotFound(c, "book")
		return
	}
	if err != nil {
		respondInternalError(c, err, "get book")
		return
	}

	c.IndentedJSON(http.StatusOK, book)
}

// GetBookByTitleAndAuthor handles GET /api/books/lookup?title=&author=
func (controller *BooksController) GetBookByTitleAndAuthor(c *gin.Context) {
	title := c.Query("title")
	author := c.Query("author")

	if title == "" {
		respondBadRequest(c, "title query parameter is required")
		return
	}

	book, err := controller.reader.GetBookByTitleAndAuthor(title, author)
	if err != nil {
		respondNotFound(c, "book")
		return
	}

	c.IndentedJSON(http.StatusOK, book)
}

// GetBookStats handles GET /api/books/stats
func (controller *BooksController) GetBookStats(c *gin.Context) {
	books, err := controller.reader.GetAllBooks()
	if err != nil {
		respondInternalError(c, err, "book stats")
		return
	}

	totalHighlights := 0
	for _, book := range books {
		totalHighlights += len(book.Highlights)
	}

	stats := gin.H{
		"total_books":      len(books),
		"total_highlights": totalHighlights,
	}

	c.IndentedJSON(http.StatusOK, stats)
}
