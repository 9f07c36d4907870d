package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mrlokans/recall/internal/audit"
	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/exporters"
	"github.com/mrlokans/recall/internal/runner"
)

// storage is what a command needs to persist its results.
type storage struct {
	DatabasePath string
	ReportDir    string
	MarkdownDir  string
}

// open builds a runner over the configured stores. A dry run opens nothing.
func (s storage) open(out io.Writer, dryRun bool) (*runner.Runner, func(), error) {
	if dryRun {
		return runner.New(nil, nil, nil), func() {}, nil
	}

	absDBPath, err := filepath.Abs(s.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get absolute path for database: %w", err)
	}
	fmt.Fprintf(out, "Saving to database: %s\n", absDBPath)

	db, err := database.NewDatabase(absDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	markdownDir := ""
	if s.MarkdownDir != "" {
		if markdownDir, err = filepath.Abs(s.MarkdownDir); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to get absolute path for markdown: %w", err)
		}
		fmt.Fprintf(out, "Exporting notebooks to: %s\n", markdownDir)
	}

	var auditor *audit.Auditor
	if s.ReportDir != "" {
		auditor = audit.NewAuditor(s.ReportDir)
	}

	run := runner.New(exporters.NewDatabaseExporter(db, markdownDir), db, auditor)
	return run, func() { db.Close() }, nil
}

// writeJSON writes v indented to path, or to out when path is "-".
func writeJSON(out io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	data = append(data, '\n')
	if path == "-" {
		_, err = out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
