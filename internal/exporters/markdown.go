package exporters

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/services"
	"github.com/mrlokans/recall/internal/utils"
)

// MarkdownExporter writes one notebook file per book into ExportDir.
type MarkdownExporter struct {
	ExportDir string
}

func NewMarkdownExporter(exportDir string) *MarkdownExporter {
	return &MarkdownExporter{ExportDir: exportDir}
}

// BookPath returns the file a book is exported to.
func (exporter *MarkdownExporter) BookPath(book entities.Book) string {
	return filepath.Join(exporter.ExportDir, utils.SanitizeFilename(book.Title)+".md")
}

func (exporter *MarkdownExporter) Export(books []entities.Book) (services.ExportResult, error) {
	result := services.ExportResult{}

	if err := os.MkdirAll(exporter.ExportDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create export directory: %w", err)
	}

	for i := range books {
		book := &books[i]
		outputPath := exporter.BookPath(*book)
		if err := os.WriteFile(outputPath, []byte(GenerateMarkdown(book)), 0644); err != nil {
			log.Printf("Failed to export book '%s' to %s: %v", book.Title, outputPath, err)
			result.BooksFailed++
			result.HighlightsFailed += len(book.Highlights)
			continue
		}
		log.Printf("Exported book '%s' to %s", book.Title, outputPath)
		result.BooksProcessed++
		result.HighlightsProcessed += len(book.Highlights)
		if book.ID != 0 {
			result.BookIDs = append(result.BookIDs, book.ID)
		}
	}

	return result, nil
}

// Citation renders an APA style reference for the book.
func Citation(book *entities.Book) string {
	var b strings.Builder
	switch {
	case book.Author != "" && book.PublicationYear != 0:
		fmt.Fprintf(&b, "%s (%d). ", book.Author, book.PublicationYear)
	case book.Author != "":
		fmt.Fprintf(&b, "%s. ", book.Author)
	case book.PublicationYear != 0:
		fmt.Fprintf(&b, "(%d). ", book.PublicationYear)
	}
	fmt.Fprintf(&b, "*%s* [Kindle version]. Retrieved from Amazon.com", book.Title)
	return b.String()
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// Summary renders the one line overview printed under the citation.
func Summary(book *entities.Book) string {
	var highlights, notes int
	sections := map[string]bool{}
	var first, last string
	for _, h := range book.Highlights {
		switch h.Style {
		case entities.HighlightStyleNoteOnly:
			notes++
		case entities.HighlightStyleBookmark:
		default:
			highlights++
			if h.Note != "" {
				notes++
			}
		}
		if h.Section != "" {
			sections[h.Section] = true
		}
		if h.HighlightedAt.IsZero() {
			continue
		}
		day := h.HighlightedAt.UTC().Format("2006-01-02")
		if first == "" || day < first {
			first = day
		}
		if day > last {
			last = day
		}
	}

	parts := []string{plural(highlights, "highlight")}
	if notes > 0 {
		parts = append(parts, plural(notes, "note"))
	}
	if len(sections) > 0 {
		parts = append(parts, plural(len(sections), "section"))
	}
	switch {
	case first == "":
	case first == last:
		parts = append(parts, first)
	default:
		parts = append(parts, first+" to "+last)
	}
	return strings.Join(parts, " | ")
}

func GenerateMarkdown(book *entities.Book) string {
	var builder strings.Builder

	sourceName := "unknown"
	if book.Source.Name != "" {
		sourceName = book.Source.Name
	}

	fmt.Fprintf(&builder, "---\n")
	fmt.Fprintf(&builder, "content_source: %s\n", sourceName)
	fmt.Fprintf(&builder, "content_type: book_highlights\n")
	fmt.Fprintf(&builder, "title: \"%s\"\n", strings.ReplaceAll(book.Title, "\"", "\\\""))
	fmt.Fprintf(&builder, "author: \"%s\"\n", strings.ReplaceAll(book.Author, "\"", "\\\""))
	if book.Format != "" {
		fmt.Fprintf(&builder, "format: %s\n", book.Format)
	}
	fmt.Fprintf(&builder, "tags: highlights, books\n")
	fmt.Fprintf(&builder, "---\n\n")

	fmt.Fprintf(&builder, "# %s\n\n", book.Title)
	if book.Author != "" {
		fmt.Fprintf(&builder, "**%s**\n\n", book.Author)
	}
	fmt.Fprintf(&builder, "Citation (APA): %s\n\n", Citation(book))
	fmt.Fprintf(&builder, "%s\n\n---\n\n", Summary(book))

	currentSection := ""
	for _, h := range book.Highlights {
		if h.Style == entities.HighlightStyleBookmark {
			continue
		}
		if h.Section != "" && h.Section != currentSection {
			fmt.Fprintf(&builder, "## %s\n\n", h.Section)
			currentSection = h.Section
		}

		var meta []string
		if h.Chapter != "" {
			meta = append(meta, h.Chapter)
		}
		if h.Page != "" {
			meta = append(meta, "Page "+h.Page)
		}
		meta = append(meta, fmt.Sprintf("Location %d", h.LocationValue))
		heading := "**Highlight**"
		if h.Style == entities.HighlightStyleNoteOnly {
			heading = "**Note**"
		}
		fmt.Fprintf(&builder, "%s - %s\n\n", heading, strings.Join(meta, " > "))

		if h.Style == entities.HighlightStyleNoteOnly {
			fmt.Fprintf(&builder, "%s\n\n", h.Note)
		}
		if h.Text != "" {
			fmt.Fprintf(&builder, "> %s\n\n", strings.ReplaceAll(h.Text, "\n", "\n> "))
		}
		if h.Style != entities.HighlightStyleNoteOnly && h.Note != "" {
			fmt.Fprintf(&builder, "**Note:** %s\n\n", h.Note)
		}
	}

	return builder.String()
}
