package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mrlokans/recall/internal/config"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/runner"
)

// BatchCommand pairs every book in a directory with its sidecar and
// extracts them on a worker pool.
type BatchCommand struct {
	Dir      string
	Workers  int
	JSONPath string
	Verbose  bool
	DryRun   bool
	storage

	Out io.Writer
}

func NewBatchCommand() *BatchCommand {
	return &BatchCommand{Out: os.Stdout}
}

func (cmd *BatchCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	// Defaults follow the server environment.
	cfg := config.NewConfig()

	fs.StringVar(&cmd.Dir, "dir", "", "Directory holding books and their annotation sidecars (required)")
	fs.IntVar(&cmd.Workers, "workers", cfg.Extract.Workers, "Number of books extracted concurrently (0 uses one per CPU)")
	fs.StringVar(&cmd.JSONPath, "json", "", "Write every result as a JSON array to this path (- for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Path to the local database file for storing highlights")
	fs.StringVar(&cmd.ReportDir, "report-dir", cfg.Reports.Dir, "Directory for the batch report (empty to disable)")
	fs.StringVar(&cmd.MarkdownDir, "markdown", cfg.Export.Dir, "Also export every book as a markdown notebook into this directory")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print per-book statistics")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Extract without saving anything")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s batch -dir <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Extract every book in a directory. A book is paired with the one sidecar\n")
		fmt.Fprintf(os.Stderr, "whose file name starts with the book's name; books with no or several\n")
		fmt.Fprintf(os.Stderr, "candidates are skipped with a warning.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Dir == "" {
		return fmt.Errorf("required flag -dir not provided")
	}
	if cmd.Workers < 0 {
		return fmt.Errorf("-workers must not be negative")
	}

	return nil
}

// batchEntry is one book in the -json output.
type batchEntry struct {
	Pair   extract.Pair    `json:"pair"`
	Result *extract.Result `json:"result,omitempty"`
	Kind   string          `json:"failure_kind,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Run returns an error when any book failed, after processing all of them.
func (cmd *BatchCommand) Run() error {
	fmt.Fprintln(cmd.Out, "Batch Extract")
	fmt.Fprintln(cmd.Out, "=============")

	if cmd.DryRun {
		fmt.Fprintln(cmd.Out, "DRY RUN MODE - No changes will be made")
		fmt.Fprintln(cmd.Out)
	}

	pairs, warnings, err := extract.Discover(cmd.Dir)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Fprintf(cmd.Out, "[WARN] %s\n", w)
	}
	if len(pairs) == 0 {
		fmt.Fprintf(cmd.Out, "No paired books found in %s\n", cmd.Dir)
		return nil
	}
	fmt.Fprintf(cmd.Out, "Found %d book(s) to process\n", len(pairs))

	run, closeStores, err := cmd.storage.open(cmd.Out, cmd.DryRun)
	if err != nil {
		return err
	}
	defer closeStores()

	outs := run.RunBatch(context.Background(), pairs, cmd.Workers, warnings, runner.Options{
		Trigger: runner.TriggerBatch,
		DryRun:  cmd.DryRun,
	})

	var failed []string
	entries := make([]batchEntry, len(outs))
	totalHighlights := 0
	fmt.Fprintln(cmd.Out)
	for i, o := range outs {
		name := filepath.Base(o.Pair.Book)
		entries[i] = batchEntry{Pair: o.Pair, Result: o.Result}
		if o.Err != nil {
			kind := extract.FailureKind(o.Err)
			entries[i].Kind = string(kind)
			entries[i].Error = o.Err.Error()
			fmt.Fprintf(cmd.Out, "[%d/%d] [FAILED] %s (%s): %v\n", i+1, len(outs), name, kind, o.Err)
			failed = append(failed, name)
			continue
		}
		totalHighlights += len(o.Result.Highlights)
		fmt.Fprintf(cmd.Out, "[%d/%d] [OK] %s: %d entries", i+1, len(outs), name, len(o.Result.Highlights))
		if len(o.Result.Skipped) > 0 {
			fmt.Fprintf(cmd.Out, ", %d skipped", len(o.Result.Skipped))
		}
		fmt.Fprintln(cmd.Out)
		if cmd.Verbose {
			printResult(cmd.Out, o.Result, false)
		}
	}

	fmt.Fprintln(cmd.Out, "\n=== Batch Summary ===")
	fmt.Fprintf(cmd.Out, "Processed %d/%d books successfully (%d entries)\n", len(outs)-len(failed), len(outs), totalHighlights)
	if len(outs) > 0 && outs[0].Run.ReportFile != "" {
		fmt.Fprintf(cmd.Out, "Report: %s\n", outs[0].Run.ReportFile)
	}

	if cmd.JSONPath != "" {
		if err := writeJSON(cmd.Out, cmd.JSONPath, entries); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(cmd.Out, "Failed:")
		for _, name := range failed {
			fmt.Fprintf(cmd.Out, "  - %s\n", name)
		}
		return fmt.Errorf("%d of %d books failed", len(failed), len(outs))
	}
	return nil
}
