package exporters

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mrlokans/recall/internal/extract"
)

var csvHeader = []string{"type", "text", "note", "section", "chapter", "page", "location", "created_at"}

// WriteResultCSV writes one row per assembled entry of an extraction.
func WriteResultCSV(w io.Writer, res *extract.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, h := range res.Highlights {
		created := ""
		if !h.CreatedAt.IsZero() {
			created = h.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			h.Kind.String(),
			h.Text,
			h.Note,
			h.Section,
			h.Chapter,
			h.Page,
			strconv.FormatInt(h.Location, 10),
			created,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
