// Package runner drives the extraction pipeline end to end: extract each
// book, hand the highlights to the import pipeline, write one audit report
// per invocation and record a run per book.
package runner

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mrlokans/recall/internal/audit"
	"github.com/mrlokans/recall/internal/entities"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/importers"
	"github.com/mrlokans/recall/internal/services"
)

const (
	TriggerCLI   = "cli"
	TriggerBatch = "batch"
	TriggerHTTP  = "http"
	TriggerTask  = "task"
)

type Options struct {
	Trigger string
	// DryRun extracts without saving highlights, runs or reports.
	DryRun bool
	// Title replaces the embedded title of every extracted book.
	Title string
}

// Outcome is one book's extraction plus what happened when it was saved.
type Outcome struct {
	extract.Outcome
	BookID uint
	Run    entities.ExtractionRun
}

// Runner ties extraction to storage. Any dependency may be nil, which
// disables that side effect.
type Runner struct {
	pipeline *importers.Pipeline
	runs     services.RunRecorder
	auditor  *audit.Auditor
}

func New(exporter importers.Exporter, runs services.RunRecorder, auditor *audit.Auditor) *Runner {
	r := &Runner{runs: runs, auditor: auditor}
	if exporter != nil {
		r.pipeline = importers.NewPipeline(exporter)
	}
	return r
}

// RunPair extracts one book from disk.
func (r *Runner) RunPair(ctx context.Context, pair extract.Pair, format formats.Format, opts Options) Outcome {
	started := time.Now().UTC()
	res, err := extract.RunFiles(ctx, pair.Book, pair.Annotations, format)
	return r.finish([]extract.Outcome{{Pair: pair, Result: res, Err: err}}, started, nil, opts)[0]
}

// RunInput extracts one book already held in memory, such as an upload.
func (r *Runner) RunInput(ctx context.Context, in extract.Input, opts Options) Outcome {
	started := time.Now().UTC()
	res, err := extract.Run(ctx, in)
	pair := extract.Pair{Book: in.BookName}
	return r.finish([]extract.Outcome{{Pair: pair, Result: res, Err: err}}, started, nil, opts)[0]
}

// RunBatch extracts pairs on a bounded worker pool, then saves the results
// one book at a time. Warnings from pairing end up in the report.
func (r *Runner) RunBatch(ctx context.Context, pairs []extract.Pair, workers int, warnings []string, opts Options) []Outcome {
	started := time.Now().UTC()
	return r.finish(extract.RunBatch(ctx, pairs, workers), started, warnings, opts)
}

func (r *Runner) finish(batch []extract.Outcome, started time.Time, warnings []string, opts Options) []Outcome {
	outs := make([]Outcome, len(batch))
	for i, o := range batch {
		outs[i] = Outcome{Outcome: o}
		if o.Err != nil {
			log.Printf("Extraction of %s failed: %v", filepath.Base(o.Pair.Book), o.Err)
			continue
		}
		if opts.Title != "" {
			o.Result.Metadata.Title = opts.Title
		}
		if !opts.DryRun {
			outs[i].BookID, outs[i].Err = r.persist(o)
		}
	}
	if opts.DryRun {
		return outs
	}

	reportFile := r.saveReport(outs, warnings, opts.Trigger)
	for i := range outs {
		outs[i].Run = newRun(outs[i], started, reportFile)
		if r.runs == nil {
			continue
		}
		if err := r.runs.SaveExtractionRun(&outs[i].Run); err != nil {
			log.Printf("Failed to record extraction run for %s: %v", outs[i].Run.BookName, err)
		}
	}
	return outs
}

func (r *Runner) persist(o extract.Outcome) (uint, error) {
	if r.pipeline == nil {
		return 0, nil
	}
	result, err := r.pipeline.Import(importers.NewKindleConverter(o.Result, o.Pair.Book))
	if err != nil {
		return 0, fmt.Errorf("save highlights: %w", err)
	}
	if result.BooksFailed > 0 {
		return 0, fmt.Errorf("save highlights: %d of %d highlights failed", result.HighlightsFailed, result.HighlightsFailed+result.HighlightsProcessed)
	}
	log.Printf("Saved %d highlights from %s", result.HighlightsProcessed, filepath.Base(o.Pair.Book))
	if len(result.BookIDs) == 0 {
		return 0, nil
	}
	return result.BookIDs[0], nil
}

func (r *Runner) saveReport(outs []Outcome, warnings []string, trigger string) string {
	if r.auditor == nil {
		return ""
	}
	report := audit.Report{Trigger: trigger, Warnings: warnings}
	for _, o := range outs {
		report.Books = append(report.Books, audit.NewBookReport(o.Pair, o.Result, o.Err))
	}
	file, err := r.auditor.SaveReport(report)
	if err != nil {
		log.Printf("Failed to save extraction report: %v", err)
		return ""
	}
	return file
}

func newRun(o Outcome, started time.Time, reportFile string) entities.ExtractionRun {
	run := entities.ExtractionRun{
		BookID:      o.BookID,
		BookName:    filepath.Base(o.Pair.Book),
		Status:      entities.RunStatusCompleted,
		ReportFile:  reportFile,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	if o.Err != nil {
		run.Status = entities.RunStatusFailed
		run.FailureKind = string(extract.FailureKind(o.Err))
		run.Error = o.Err.Error()
		return run
	}
	run.Format = string(o.Result.Format)
	run.HighlightsCount = o.Result.Stats.Highlights
	run.NotesCount = o.Result.Stats.Notes
	run.BookmarksCount = o.Result.Stats.Bookmarks
	run.SkippedCount = len(o.Result.Skipped)
	return run
}
