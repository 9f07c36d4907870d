// Package audit keeps a JSON report of every extraction run: the records
// that were skipped, the failure that stopped a book, the pairing warnings of
// a batch.
package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/recall/internal/assemble"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/faults"
)

type Auditor struct {
	AuditDir string
}

func NewAuditor(auditDir string) *Auditor {
	return &Auditor{
		AuditDir: auditDir,
	}
}

// SaveJSON saves the provided data as JSON to a file with UUID4 filename
func (a *Auditor) SaveJSON(data any) (string, error) {
	if err := a.ensureAuditDir(); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	auditID := uuid.New()
	filename := fmt.Sprintf("%s.json", auditID.String())
	path := filepath.Join(a.AuditDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	log.Printf("Saved audit file: %s", path)
	return filename, nil
}

// BookReport is the outcome of one book within a report.
type BookReport struct {
	Book        string               `json:"book"`
	Annotations string               `json:"annotations"`
	Format      string               `json:"format,omitempty"`
	Title       string               `json:"title,omitempty"`
	Status      string               `json:"status"`
	FailureKind faults.Kind          `json:"failure_kind,omitempty"`
	Error       string               `json:"error,omitempty"`
	Stats       *assemble.Stats      `json:"stats,omitempty"`
	Skipped     []faults.RecordError `json:"skipped,omitempty"`
}

// Report covers one invocation of the pipeline over one or more books.
type Report struct {
	CreatedAt time.Time    `json:"created_at"`
	Trigger   string       `json:"trigger"` // cli, batch, http, task
	Books     []BookReport `json:"books"`
	Warnings  []string     `json:"warnings,omitempty"`
}

// NewBookReport summarizes the outcome of extract.Run for one pair.
func NewBookReport(pair extract.Pair, res *extract.Result, err error) BookReport {
	r := BookReport{Book: pair.Book, Annotations: pair.Annotations, Status: "completed"}
	if err != nil {
		r.Status = "failed"
		r.FailureKind = extract.FailureKind(err)
		r.Error = err.Error()
		return r
	}
	r.Format = string(res.Format)
	r.Title = res.Metadata.Title
	stats := res.Stats
	r.Stats = &stats
	r.Skipped = res.Skipped
	return r
}

// SaveReport stamps and stores a report, returning its file name.
func (a *Auditor) SaveReport(report Report) (string, error) {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	return a.SaveJSON(report)
}

// Prune deletes report files last modified before now minus retention.
func (a *Auditor) Prune(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(a.AuditDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read audit directory: %w", err)
	}

	cutoff := time.Now().Add(-retention)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return deleted, err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(a.AuditDir, e.Name())); err != nil {
			return deleted, fmt.Errorf("failed to remove audit file: %w", err)
		}
		deleted++
	}
	return deleted, nil
}

// ensureAuditDir creates the audit directory if it doesn't exist
func (a *Auditor) ensureAuditDir() error {
	if _, err := os.Stat(a.AuditDir); os.IsNotExist(err) {
		if err := os.MkdirAll(a.AuditDir, 0755); err != nil {
			return fmt.Errorf("failed to create audit directory: %w", err)
		}
	}
	return nil
}
