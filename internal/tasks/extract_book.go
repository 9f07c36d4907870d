package tasks

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/runner"
)

// BookExtractor runs the pipeline over one pair on disk.
type BookExtractor interface {
	RunPair(ctx context.Context, pair extract.Pair, format formats.Format, opts runner.Options) runner.Outcome
}

// ExtractBookTask extracts a book and its sidecar and saves the highlights.
type ExtractBookTask struct {
	Book        string `json:"book"`
	Annotations string `json:"annotations"`
	Format      string `json:"format,omitempty"`
}

// Config returns the queue configuration for extraction tasks.
func (t ExtractBookTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "extract_book",
		MaxAttempts: 2,
		Backoff:     30 * time.Second,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ExtractBookProcessor creates a processor function for ExtractBookTask.
// Only I/O failures are returned for a retry; a book that cannot be decoded
// fails the same way every time, so it is logged and recorded instead.
func ExtractBookProcessor(extractor BookExtractor) backlite.QueueProcessor[ExtractBookTask] {
	return func(ctx context.Context, task ExtractBookTask) error {
		if extractor == nil {
			return fmt.Errorf("extractor not configured")
		}

		var format formats.Format
		if task.Format != "" {
			parsed, err := formats.ParseFormat(task.Format)
			if err != nil {
				log.Printf("[TASK ERROR] Extract %s: %v", filepath.Base(task.Book), err)
				return nil
			}
			format = parsed
		}

		pair := extract.Pair{Book: task.Book, Annotations: task.Annotations}
		out := extractor.RunPair(ctx, pair, format, runner.Options{Trigger: runner.TriggerTask})
		if out.Err != nil {
			kind := extract.FailureKind(out.Err)
			if kind == faults.KindIO {
				return fmt.Errorf("extract %s: %w", filepath.Base(task.Book), out.Err)
			}
			log.Printf("[TASK ERROR] Extract %s failed (%s): %v", filepath.Base(task.Book), kind, out.Err)
			return nil
		}

		log.Printf("[TASK] Extracted %d highlights from %s (%d skipped)",
			len(out.Result.Highlights), filepath.Base(task.Book), len(out.Result.Skipped))
		return nil
	}
}

// NewExtractBookQueue creates a backlite queue for extraction tasks.
func NewExtractBookQueue(extractor BookExtractor) backlite.Queue {
	return backlite.NewQueue(ExtractBookProcessor(extractor))
}
