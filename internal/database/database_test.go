package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mrlokans/recall/internal/entities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB creates a fresh test database
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func kindleBook(highlights ...entities.Highlight) *entities.Book {
	return &entities.Book{
		Title:      "Moby Dick",
		Author:     "Herman Melville",
		Format:     "kfx",
		ExternalID: "moby-dick",
		Source:     entities.Source{Name: "kindle"},
		Highlights: highlights,
	}
}

func TestDatabase(t *testing.T) {
	db := setupTestDB(t)
	at := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)

	t.Run("SaveBook creates new book", func(t *testing.T) {
		book := kindleBook(entities.Highlight{
			Text:          "Call me Ishmael.",
			LocationType:  entities.LocationTypePosition,
			LocationValue: 10,
			Page:          "1",
			HighlightedAt: at,
		})

		err := db.SaveBook(book)
		require.NoError(t, err)
		assert.NotZero(t, book.ID)
		assert.NotZero(t, book.Highlights[0].ID)
		assert.Equal(t, book.ID, book.Highlights[0].BookID)
		assert.Equal(t, "kindle", book.Source.Name)
		assert.NotZero(t, book.SourceID)
		assert.Equal(t, book.SourceID, book.Highlights[0].SourceID)
	})

	t.Run("SaveBook does not duplicate a re-extracted highlight", func(t *testing.T) {
		again := kindleBook(
			entities.Highlight{Text: "Call me Ishmael.", LocationValue: 10, HighlightedAt: at},
			entities.Highlight{Text: "Some years ago.", LocationValue: 30, HighlightedAt: at.Add(time.Minute)},
		)
		require.NoError(t, db.SaveBook(again))

		book, err := db.GetBookByTitleAndAuthor("Moby Dick", "Herman Melville")
		require.NoError(t, err)
		require.Len(t, book.Highlights, 2)
		assert.Equal(t, "Call me Ishmael.", book.Highlights[0].Text)
		assert.Equal(t, "Some years ago.", book.Highlights[1].Text)
		assert.Equal(t, "kindle", book.Source.Name)
	})

	t.Run("same text at another location is a new highlight", func(t *testing.T) {
		require.NoError(t, db.SaveBook(kindleBook(
			entities.Highlight{Text: "Call me Ishmael.", LocationValue: 900, HighlightedAt: at},
		)))

		book, err := db.GetBookByTitleAndAuthor("Moby Dick", "Herman Melville")
		require.NoError(t, err)
		assert.Len(t, book.Highlights, 3)
		assert.Equal(t, 900, book.Highlights[2].LocationValue)
	})

	t.Run("GetAllBooks and SearchBooks", func(t *testing.T) {
		require.NoError(t, db.SaveBook(&entities.Book{
			Title:      "Walden",
			Author:     "Henry David Thoreau",
			Source:     entities.Source{Name: "calibre"},
			Highlights: []entities.Highlight{{Text: "Simplify, simplify.", LocationValue: 5}},
		}))

		books, err := db.GetAllBooks()
		require.NoError(t, err)
		require.Len(t, books, 2)
		assert.Equal(t, "Moby Dick", books[0].Title)
		assert.Equal(t, "Walden", books[1].Title)

		found, err := db.SearchBooks("thoreau")
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Walden", found[0].Title)
		assert.Equal(t, "calibre", found[0].Source.Name)
	})

	t.Run("GetBookByID returns error for nonexistent ID", func(t *testing.T) {
		_, err := db.GetBookByID(99999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})

	t.Run("GetStats counts books and highlights", func(t *testing.T) {
		books, highlights, err := db.GetStats()
		require.NoError(t, err)
		assert.Equal(t, int64(2), books)
		assert.Equal(t, int64(4), highlights)
	})
}

func TestSeedSources(t *testing.T) {
	db := setupTestDB(t)

	sources, err := db.GetAllSources()
	require.NoError(t, err)
	assert.Len(t, sources, len(defaultSources))

	_, err = db.GetSourceByName("nonexistent")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExtractionRuns(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	runs := []entities.ExtractionRun{
		{BookName: "war", BookID: 1, Status: entities.RunStatusCompleted, HighlightsCount: 3, StartedAt: base},
		{BookName: "broken", Status: entities.RunStatusFailed, FailureKind: "drm_protected", StartedAt: base.Add(time.Hour)},
		{BookName: "war", BookID: 1, Status: entities.RunStatusCompleted, SkippedCount: 1, StartedAt: base.Add(2 * time.Hour)},
	}
	for i := range runs {
		require.NoError(t, db.SaveExtractionRun(&runs[i]))
		assert.NotZero(t, runs[i].ID)
	}

	t.Run("most recent first", func(t *testing.T) {
		got, err := db.GetExtractionRuns(0)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, runs[2].ID, got[0].ID)
		assert.Equal(t, runs[0].ID, got[2].ID)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := db.GetExtractionRuns(1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "war", got[0].BookName)
		assert.Equal(t, 1, got[0].SkippedCount)
	})

	t.Run("per book", func(t *testing.T) {
		got, err := db.GetExtractionRunsForBook(1)
		require.NoError(t, err)
		assert.Len(t, got, 2)
		for _, r := range got {
			assert.Equal(t, entities.RunStatusCompleted, r.Status)
		}
	})
}
