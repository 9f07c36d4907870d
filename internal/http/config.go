package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/recall/internal/database"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/runner"
	"github.com/mrlokans/recall/internal/scheduler"
	"github.com/mrlokans/recall/internal/services"
)

// Extractor runs the pipeline over an uploaded book.
type Extractor interface {
	RunInput(ctx context.Context, in extract.Input, opts runner.Options) runner.Outcome
}

// TaskQueue enqueues background tasks and reports on them.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// LibraryScanner triggers a pass over the library directory.
type LibraryScanner interface {
	Scan() (scheduler.ScanResult, error)
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database   *database.Database
	BookReader services.BookReader
	Runs       services.RunRecorder
	Extractor  Extractor

	// Task queue (optional); job and scan routes are only registered with it
	TaskClient TaskQueue
	Scanner    LibraryScanner

	// LibraryDir bounds the files a job may name
	LibraryDir string

	// MaxUploadBytes caps the multipart body of an extraction request
	MaxUploadBytes int64

	// Application info
	Version string
}
