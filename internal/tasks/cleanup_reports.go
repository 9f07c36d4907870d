package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// ReportPruner deletes stored extraction records older than a retention
// period: report files, run history.
type ReportPruner interface {
	Prune(retention time.Duration) (int, error)
}

// CleanupReportsTask removes extraction reports and run records older than
// the configured retention period.
type CleanupReportsTask struct {
	RetentionDays int `json:"retention_days"`
}

// Config returns the queue configuration for report cleanup tasks.
func (t CleanupReportsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_reports",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupReportsProcessor creates a processor function for CleanupReportsTask.
// Every pruner runs even when an earlier one fails.
func CleanupReportsProcessor(pruners ...ReportPruner) backlite.QueueProcessor[CleanupReportsTask] {
	return func(ctx context.Context, task CleanupReportsTask) error {
		if len(pruners) == 0 {
			return fmt.Errorf("report pruner not configured")
		}

		retentionDays := task.RetentionDays
		if retentionDays <= 0 {
			retentionDays = 30
		}
		retention := time.Duration(retentionDays) * 24 * time.Hour

		deleted := 0
		var errs []error
		for _, pruner := range pruners {
			if pruner == nil {
				errs = append(errs, fmt.Errorf("report pruner not configured"))
				continue
			}
			n, err := pruner.Prune(retention)
			deleted += n
			if err != nil {
				errs = append(errs, err)
			}
		}
		if err := errors.Join(errs...); err != nil {
			return fmt.Errorf("cleanup reports: %w", err)
		}

		log.Printf("[TASK] Cleaned up %d extraction records older than %d days", deleted, retentionDays)
		return nil
	}
}

// NewCleanupReportsQueue creates a backlite queue for report cleanup tasks.
func NewCleanupReportsQueue(pruners ...ReportPruner) backlite.Queue {
	return backlite.NewQueue(CleanupReportsProcessor(pruners...))
}
