package entities

import (
	"time"

	"gorm.io/gorm"
)

type LocationType string

const (
	LocationTypePosition LocationType = "position" // Logical position in the book's own coordinate space
	LocationTypeNone     LocationType = "none"
)

type HighlightStyle string

const (
	HighlightStyleHighlight HighlightStyle = "highlight"
	HighlightStyleNoteOnly  HighlightStyle = "note_only"
	HighlightStyleBookmark  HighlightStyle = "bookmark"
)

type Source struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:50" json:"name"`   // e.g., "kindle", "htmlz"
	DisplayName string    `gorm:"size:100" json:"display_name"`      // e.g., "Amazon Kindle"
	CreatedAt   time.Time `json:"created_at"`
}

type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"index;size:512" json:"title"`
	Author          string         `gorm:"index;size:256" json:"author"`
	PublicationYear int            `json:"publication_year,omitempty"`
	Format          string         `gorm:"size:10" json:"format,omitempty"`
	FilePath        string         `gorm:"size:1024" json:"file_path,omitempty"`
	ExternalID      string         `gorm:"size:256" json:"external_id,omitempty"` // File stem the book was extracted from
	SourceID        uint           `gorm:"index" json:"source_id"`
	Source          Source         `gorm:"foreignKey:SourceID" json:"source,omitempty"`
	Highlights      []Highlight    `gorm:"foreignKey:BookID" json:"highlights,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type Highlight struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	BookID uint   `gorm:"index" json:"book_id"`
	Text   string `gorm:"type:text" json:"text"`
	Note   string `gorm:"type:text" json:"note,omitempty"`

	// Location information
	LocationType  LocationType `gorm:"size:20;default:'position'" json:"location_type"`
	LocationValue int          `json:"location_value,omitempty"`
	Page          string       `gorm:"size:32" json:"page,omitempty"` // Page label, not always numeric
	Section       string       `gorm:"size:256" json:"section,omitempty"`
	Chapter       string       `gorm:"size:256" json:"chapter,omitempty"`

	// Styling
	Color string         `gorm:"size:64" json:"color,omitempty"` // Reader style marker, stored as text
	Style HighlightStyle `gorm:"size:20;default:'highlight'" json:"style,omitempty"`

	HighlightedAt time.Time `json:"highlighted_at,omitempty"` // When the reader made the highlight

	// Source tracking
	ExternalID string `gorm:"size:256" json:"external_id,omitempty"`
	SourceID   uint   `gorm:"index" json:"source_id"`
	Source     Source `gorm:"foreignKey:SourceID" json:"source,omitempty"`

	Book Book `gorm:"foreignKey:BookID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Source) TableName() string {
	return "sources"
}
