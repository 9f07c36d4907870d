// Package runs stores the history of extraction runs.
package runs

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/recall/internal/entities"
)

const defaultPageSize = 50

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save records a run, stamping StartedAt when the caller left it empty.
func (r *Repository) Save(run *entities.ExtractionRun) error {
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return r.db.Create(run).Error
}

func newestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("started_at DESC, id DESC")
}

// Recent returns the most recent runs first. A non-positive limit returns
// every run.
func (r *Repository) Recent(limit int) ([]entities.ExtractionRun, error) {
	var runs []entities.ExtractionRun
	query := r.db.Scopes(newestFirst)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&runs).Error
	return runs, err
}

// Page returns one page of runs, newest first, and the number of runs
// matching status. An empty status matches every run.
func (r *Repository) Page(status entities.RunStatus, limit, offset int) ([]entities.ExtractionRun, int64, error) {
	var runs []entities.ExtractionRun
	var total int64

	query := r.db.Model(&entities.ExtractionRun{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	err := query.Scopes(newestFirst).Limit(limit).Offset(offset).Find(&runs).Error
	return runs, total, err
}

// ForBook returns the runs that saved highlights into bookID.
func (r *Repository) ForBook(bookID uint) ([]entities.ExtractionRun, error) {
	var runs []entities.ExtractionRun
	err := r.db.Where("book_id = ?", bookID).Scopes(newestFirst).Find(&runs).Error
	return runs, err
}

// DeleteOlderThan removes runs that started before cutoff and returns how
// many were removed.
func (r *Repository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("started_at < ?", cutoff).Delete(&entities.ExtractionRun{})
	return result.RowsAffected, result.Error
}

// Prune removes runs older than retention.
func (r *Repository) Prune(retention time.Duration) (int, error) {
	deleted, err := r.DeleteOlderThan(time.Now().Add(-retention))
	return int(deleted), err
}
