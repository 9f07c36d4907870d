package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/entities"
)

func seedBooks(t *testing.T, db *database.Database) []entities.Book {
	t.Helper()
	at := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	books := []entities.Book{
		{
			Title:  "Moby Dick",
			Author: "Herman Melville",
			Source: entities.Source{Name: "kindle"},
			Highlights: []entities.Highlight{
				{Text: "Call me Ishmael.", LocationValue: 0, HighlightedAt: at},
				{Text: "Some years ago.", LocationValue: 17, HighlightedAt: at},
			},
		},
		{
			Title:      "Walden",
			Author:     "Henry David Thoreau",
			Source:     entities.Source{Name: "calibre"},
			Highlights: []entities.Highlight{{Text: "Simplify, simplify.", LocationValue: 5}},
		},
	}
	for i := range books {
		require.NoError(t, db.SaveBook(&books[i]))
	}
	return books
}

func booksRouter(db *database.Database) *gin.Engine {
	controller := NewBooksController(db)
	router := gin.New()
	router.GET("/api/books", controller.GetAllBooks)
	router.GET("/api/books/stats", controller.GetBookStats)
	router.GET("/api/books/lookup", controller.GetBookByTitleAndAuthor)
	router.GET("/api/books/:id", controller.GetBook)
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestBooksController_GetAllBooks(t *testing.T) {
	t.Run("returns empty list when no books", func(t *testing.T) {
		w := get(booksRouter(setupTestDB(t)), "/api/books")
		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, float64(0), response["count"])
		assert.Empty(t, response["books"])
	})

	t.Run("returns books with count", func(t *testing.T) {
		db := setupTestDB(t)
		seedBooks(t, db)

		w := get(booksRouter(db), "/api/books")
		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Books []entities.Book `json:"books"`
			Count int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, 2, response.Count)
		assert.Equal(t, "Moby Dick", response.Books[0].Title)
		assert.Len(t, response.Books[0].Highlights, 2)
	})

	t.Run("filters with q", func(t *testing.T) {
		db := setupTestDB(t)
		seedBooks(t, db)

		w := get(booksRouter(db), "/api/books?q=thoreau")
		var response struct {
			Books []entities.Book `json:"books"`
			Count int             `json:"count"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		require.Equal(t, 1, response.Count)
		assert.Equal(t, "Walden", response.Books[0].Title)
	})
}

func TestBooksController_GetBook(t *testing.T) {
	db := setupTestDB(t)
	books := seedBooks(t, db)
	router := booksRouter(db)

	t.Run("returns book", func(t *testing.T) {
		w := get(router, "/api/books/"+strconv.FormatUint(uint64(books[1].ID), 10))
		assert.Equal(t, http.StatusOK, w.Code)

		var book entities.Book
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &book))
		assert.Equal(t, "Walden", book.Title)
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/api/books/9999").Code)
	})

	t.Run("returns 400 for invalid id", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, get(router, "/api/books/abc").Code)
	})
}

func TestBooksController_GetBookByTitleAndAuthor(t *testing.T) {
	db := setupTestDB(t)
	seedBooks(t, db)
	router := booksRouter(db)

	t.Run("returns 400 when title is missing", func(t *testing.T) {
		w := get(router, "/api/books/lookup?author=Herman%20Melville")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "title query parameter is required")
	})

	t.Run("returns 404 when book not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get(router, "/api/books/lookup?title=Nope&author=Nobody").Code)
	})

	t.Run("returns book when found", func(t *testing.T) {
		w := get(router, "/api/books/lookup?title=Moby%20Dick&author=Herman%20Melville")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Call me Ishmael.")
	})
}

func TestBooksController_GetBookStats(t *testing.T) {
	db := setupTestDB(t)
	seedBooks(t, db)

	w := get(booksRouter(db), "/api/books/stats")
	assert.Equal(t, http.StatusOK, w.Code)

	var stats map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats["total_books"])
	assert.Equal(t, 3, stats["total_highlights"])
}
