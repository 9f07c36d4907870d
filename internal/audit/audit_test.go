package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mrlokans/recall/internal/assemble"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditor(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "reports")
	auditor := NewAuditor(tempDir)

	t.Run("SaveJSON creates audit directory and saves file", func(t *testing.T) {
		testData := map[string]interface{}{
			"test_field": "test_value",
			"number":     42,
		}

		filename, err := auditor.SaveJSON(testData)
		require.NoError(t, err)
		assert.Contains(t, filename, ".json")

		fileContent, err := os.ReadFile(filepath.Join(tempDir, filename))
		require.NoError(t, err)

		var savedData map[string]interface{}
		require.NoError(t, json.Unmarshal(fileContent, &savedData))
		assert.Equal(t, "test_value", savedData["test_field"])
		assert.Equal(t, float64(42), savedData["number"]) // JSON unmarshals numbers as float64
	})

	t.Run("SaveJSON generates unique filenames", func(t *testing.T) {
		filename1, err := auditor.SaveJSON(map[string]string{"key": "value"})
		require.NoError(t, err)
		filename2, err := auditor.SaveJSON(map[string]string{"key": "value"})
		require.NoError(t, err)
		assert.NotEqual(t, filename1, filename2)
	})

	t.Run("SaveJSON handles nil auditor", func(t *testing.T) {
		var nilAuditor *Auditor
		assert.Panics(t, func() {
			nilAuditor.SaveJSON(map[string]string{"key": "value"})
		})
	})
}

func TestNewBookReport(t *testing.T) {
	pair := extract.Pair{Book: "/lib/war.kfx", Annotations: "/lib/war.yjr"}

	t.Run("completed run keeps stats and skipped records", func(t *testing.T) {
		res := &extract.Result{
			Format:   formats.FormatKFX,
			Metadata: formats.Metadata{Title: "War"},
			Stats:    assemble.Stats{Highlights: 2, Notes: 1},
			Skipped: []faults.RecordError{
				{RecordIndex: 4, Err: fmt.Errorf("%w: offset 99", faults.ErrOutOfRange)},
			},
		}

		r := NewBookReport(pair, res, nil)

		assert.Equal(t, "completed", r.Status)
		assert.Equal(t, "kfx", r.Format)
		assert.Equal(t, "War", r.Title)
		require.NotNil(t, r.Stats)
		assert.Equal(t, 2, r.Stats.Highlights)
		require.Len(t, r.Skipped, 1)
		assert.Equal(t, faults.KindOutOfRange, r.Skipped[0].Kind())
	})

	t.Run("failed run records the kind", func(t *testing.T) {
		err := &faults.BookError{BookID: "war", Err: faults.ErrDrmProtected}

		r := NewBookReport(pair, nil, err)

		assert.Equal(t, "failed", r.Status)
		assert.Equal(t, faults.KindDrmProtected, r.FailureKind)
		assert.Contains(t, r.Error, "DRM")
		assert.Nil(t, r.Stats)
	})

	t.Run("io failures", func(t *testing.T) {
		r := NewBookReport(pair, nil, errors.New("permission denied"))
		assert.Equal(t, faults.KindIO, r.FailureKind)
	})
}

func TestSaveReport(t *testing.T) {
	auditor := NewAuditor(t.TempDir())
	report := Report{
		Trigger: "batch",
		Books: []BookReport{{
			Book:    "a.kfx",
			Status:  "completed",
			Skipped: []faults.RecordError{{RecordIndex: 1, Err: faults.ErrAmbiguousToken}},
		}},
		Warnings: []string{"orphan.yjr: no book claims this sidecar"},
	}

	filename, err := auditor.SaveReport(report)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(auditor.AuditDir, filename))
	require.NoError(t, err)

	var saved struct {
		CreatedAt time.Time `json:"created_at"`
		Trigger   string    `json:"trigger"`
		Books     []struct {
			Skipped []struct {
				RecordIndex int    `json:"record_index"`
				Kind        string `json:"kind"`
			} `json:"skipped"`
		} `json:"books"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.False(t, saved.CreatedAt.IsZero())
	assert.Equal(t, "batch", saved.Trigger)
	require.Len(t, saved.Books, 1)
	require.Len(t, saved.Books[0].Skipped, 1)
	assert.Equal(t, 1, saved.Books[0].Skipped[0].RecordIndex)
	assert.Equal(t, "ambiguous_token", saved.Books[0].Skipped[0].Kind)
	assert.Len(t, saved.Warnings, 1)
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	auditor := NewAuditor(dir)

	old, err := auditor.SaveJSON(map[string]string{"age": "old"})
	require.NoError(t, err)
	fresh, err := auditor.SaveJSON(map[string]string{"age": "fresh"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0644))

	past := time.Now().Add(-72 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, old), past, past))

	deleted, err := auditor.Prune(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.NoFileExists(t, filepath.Join(dir, old))
	assert.FileExists(t, filepath.Join(dir, fresh))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))

	t.Run("missing directory is not an error", func(t *testing.T) {
		deleted, err := NewAuditor(filepath.Join(dir, "absent")).Prune(time.Hour)
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}
