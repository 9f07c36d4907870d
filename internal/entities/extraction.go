package entities

import "time"

type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ExtractionRun records one pass of the pipeline over a book and its
// annotation sidecar.
type ExtractionRun struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	BookID          uint      `gorm:"index" json:"book_id,omitempty"` // Zero when the book failed or was not persisted
	BookName        string    `gorm:"index;size:512" json:"book_name"`
	Format          string    `gorm:"size:10" json:"format,omitempty"`
	Status          RunStatus `gorm:"size:20" json:"status"`
	FailureKind     string    `gorm:"size:32" json:"failure_kind,omitempty"`
	Error           string    `gorm:"type:text" json:"error,omitempty"`
	HighlightsCount int       `json:"highlights_count"`
	NotesCount      int       `json:"notes_count"`
	BookmarksCount  int       `json:"bookmarks_count"`
	SkippedCount    int       `json:"skipped_count"`
	ReportFile      string    `gorm:"size:256" json:"report_file,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	CompletedAt     time.Time `json:"completed_at"`
}

func (ExtractionRun) TableName() string {
	return "extraction_runs"
}
