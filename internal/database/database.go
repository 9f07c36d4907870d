package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/recall/internal/database/runs"
	"github.com/mrlokans/recall/internal/entities"
)

var defaultSources = []entities.Source{
	{Name: "kindle", DisplayName: "Amazon Kindle"},
	{Name: "calibre", DisplayName: "Calibre HTMLZ"},
	{Name: "manual", DisplayName: "Manual Import"},
}

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Source{},
		&entities.Book{},
		&entities.Highlight{},
		&entities.ExtractionRun{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}

	if err := database.seedSources(); err != nil {
		return nil, fmt.Errorf("failed to seed sources: %w", err)
	}

	log.Printf("Database initialized successfully at %s", dbPath)

	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedSources() error {
	for _, source := range defaultSources {
		var existing entities.Source
		result := d.DB.Where("name = ?", source.Name).First(&existing)
		if result.Error == gorm.ErrRecordNotFound {
			if err := d.DB.Create(&source).Error; err != nil {
				return fmt.Errorf("failed to create source %s: %w", source.Name, err)
			}
			log.Printf("Created source: %s", source.DisplayName)
		}
	}
	return nil
}

func (d *Database) GetSourceByName(name string) (*entities.Source, error) {
	var source entities.Source
	err := d.DB.Where("name = ?", name).First(&source).Error
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (d *Database) GetAllSources() ([]entities.Source, error) {
	var sources []entities.Source
	err := d.DB.Find(&sources).Error
	return sources, err
}

func highlightKey(h entities.Highlight) string {
	return fmt.Sprintf("%s|%d|%s", h.Text, h.LocationValue, h.HighlightedAt.Format("2006-01-02 15:04:05"))
}

// Upserts a book and its highlights, deduplicating by text + location + timestamp.
// Re-extracting the same sidecar therefore never duplicates highlights.
func (d *Database) SaveBook(book *entities.Book) error {
	// If Source.Name is set but SourceID is 0, look up the source
	// Preserve the original source info for callers who need it after save
	originalSource := book.Source
	if book.SourceID == 0 && book.Source.Name != "" {
		source, err := d.GetSourceByName(book.Source.Name)
		if err == nil && source != nil {
			book.SourceID = source.ID
			originalSource = *source
		}
	}

	for i := range book.Highlights {
		if book.Highlights[i].SourceID == 0 {
			if book.Highlights[i].Source.Name == "" {
				book.Highlights[i].SourceID = book.SourceID
				continue
			}
			source, err := d.GetSourceByName(book.Highlights[i].Source.Name)
			if err == nil && source != nil {
				book.Highlights[i].SourceID = source.ID
			}
		}
	}

	var existingBook entities.Book
	result := d.DB.Preload("Highlights").Where("title = ? AND author = ?", book.Title, book.Author).First(&existingBook)

	var saveErr error
	if result.Error == nil {
		book.ID = existingBook.ID
		book.CreatedAt = existingBook.CreatedAt

		existingHighlights := make(map[string]uint)
		for _, h := range existingBook.Highlights {
			existingHighlights[highlightKey(h)] = h.ID
		}

		var newHighlights []entities.Highlight
		for _, h := range book.Highlights {
			if existingID, exists := existingHighlights[highlightKey(h)]; exists {
				h.ID = existingID
			}
			h.BookID = book.ID
			newHighlights = append(newHighlights, h)
		}
		book.Highlights = newHighlights

		// Use Omit to prevent GORM from upserting Source associations
		saveErr = d.DB.Session(&gorm.Session{FullSaveAssociations: true}).Omit("Source", "Highlights.Source").Save(book).Error
	} else if result.Error == gorm.ErrRecordNotFound {
		saveErr = d.DB.Omit("Source", "Highlights.Source").Create(book).Error
	} else {
		saveErr = result.Error
	}

	// Restore the source info for callers
	book.Source = originalSource

	return saveErr
}

func orderedHighlights(db *gorm.DB) *gorm.DB {
	return db.Order("location_value ASC, highlighted_at ASC")
}

func (d *Database) GetBookByTitleAndAuthor(title, author string) (*entities.Book, error) {
	var book entities.Book
	err := d.DB.Preload("Highlights", orderedHighlights).Preload("Source").
		Where("title = ? AND author = ?", title, author).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (d *Database) GetBookByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := d.DB.Preload("Highlights", orderedHighlights).Preload("Source").First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (d *Database) GetAllBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := d.DB.Preload("Highlights", orderedHighlights).Preload("Source").Order("title ASC").Find(&books).Error
	return books, err
}

func (d *Database) SearchBooks(query string) ([]entities.Book, error) {
	var books []entities.Book
	searchPattern := "%" + query + "%"
	err := d.DB.Preload("Highlights", orderedHighlights).Preload("Source").
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?)", searchPattern, searchPattern).
		Order("title ASC").
		Find(&books).Error
	return books, err
}

func (d *Database) DeleteBook(id uint) error {
	return d.DB.Delete(&entities.Book{}, id).Error
}

func (d *Database) GetStats() (totalBooks int64, totalHighlights int64, err error) {
	err = d.DB.Model(&entities.Book{}).Count(&totalBooks).Error
	if err != nil {
		return
	}
	err = d.DB.Model(&entities.Highlight{}).Count(&totalHighlights).Error
	return
}

// Runs returns the repository holding the extraction run history.
func (d *Database) Runs() *runs.Repository {
	return runs.NewRepository(d.DB)
}

// SaveExtractionRun records the outcome of one pipeline run.
func (d *Database) SaveExtractionRun(run *entities.ExtractionRun) error {
	return d.Runs().Save(run)
}

// GetExtractionRuns returns the most recent runs first. A non-positive limit
// returns every run.
func (d *Database) GetExtractionRuns(limit int) ([]entities.ExtractionRun, error) {
	return d.Runs().Recent(limit)
}

// GetExtractionRunPage returns one page of runs with the total matching status.
func (d *Database) GetExtractionRunPage(status entities.RunStatus, limit, offset int) ([]entities.ExtractionRun, int64, error) {
	return d.Runs().Page(status, limit, offset)
}

// GetExtractionRunsForBook returns the runs that saved highlights into bookID.
func (d *Database) GetExtractionRunsForBook(bookID uint) ([]entities.ExtractionRun, error) {
	return d.Runs().ForBook(bookID)
}
