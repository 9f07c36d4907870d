package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrlokans/recall/internal/config"
	"github.com/mrlokans/recall/internal/exporters"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/runner"
)

// ExtractCommand recovers the highlights of one book from its sidecar.
type ExtractCommand struct {
	BookPath        string
	AnnotationsPath string
	Format          formats.Format
	Title           string
	JSONPath        string
	CSVPath         string
	Verbose         bool
	DryRun          bool
	storage

	Out io.Writer
}

func NewExtractCommand() *ExtractCommand {
	return &ExtractCommand{Out: os.Stdout}
}

func (cmd *ExtractCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	// Defaults follow the server environment.
	cfg := config.NewConfig()

	var format string
	fs.StringVar(&cmd.BookPath, "book", "", "Path to the book file: .kfx, .azw3, .mobi or .htmlz (required)")
	fs.StringVar(&cmd.AnnotationsPath, "annotations", "", "Path to the annotation sidecar: .yjr, .mbp, .azw3r (required)")
	fs.StringVar(&format, "format", "", "Book format: kfx, kf8, mobi or htmlz (detected when omitted)")
	fs.StringVar(&cmd.Title, "title", "", "Override the book title")
	fs.StringVar(&cmd.JSONPath, "json", "", "Write the extraction result as JSON to this path (- for stdout)")
	fs.StringVar(&cmd.CSVPath, "csv", "", "Write the highlights as CSV to this path (- for stdout)")
	fs.StringVar(&cmd.DatabasePath, "db", cfg.Database.Path, "Path to the local database file for storing highlights")
	fs.StringVar(&cmd.ReportDir, "report-dir", cfg.Reports.Dir, "Directory for extraction reports (empty to disable)")
	fs.StringVar(&cmd.MarkdownDir, "markdown", cfg.Export.Dir, "Also export the book as a markdown notebook into this directory")
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Print every highlight and skipped record")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Extract without saving anything")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s extract -book <path> -annotations <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Recover highlights, notes and bookmarks from an e-reader annotation sidecar.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s extract -book moby.kfx -annotations moby.yjr\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s extract -book moby.azw3 -annotations moby.azw3r -dry-run -json -\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.BookPath == "" {
		return fmt.Errorf("required flag -book not provided")
	}
	if cmd.AnnotationsPath == "" {
		return fmt.Errorf("required flag -annotations not provided")
	}
	if format != "" {
		f, err := formats.ParseFormat(format)
		if err != nil {
			return err
		}
		cmd.Format = f
	}

	return nil
}

func (cmd *ExtractCommand) Run() error {
	fmt.Fprintln(cmd.Out, "Extract Highlights")
	fmt.Fprintln(cmd.Out, "==================")

	if cmd.DryRun {
		fmt.Fprintln(cmd.Out, "DRY RUN MODE - No changes will be made")
		fmt.Fprintln(cmd.Out)
	}

	for _, path := range []string{cmd.BookPath, cmd.AnnotationsPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}
	fmt.Fprintf(cmd.Out, "Book: %s\n", cmd.BookPath)
	fmt.Fprintf(cmd.Out, "Annotations: %s\n", cmd.AnnotationsPath)

	run, closeStores, err := cmd.storage.open(cmd.Out, cmd.DryRun)
	if err != nil {
		return err
	}
	defer closeStores()

	pair := extract.Pair{Book: cmd.BookPath, Annotations: cmd.AnnotationsPath}
	out := run.RunPair(context.Background(), pair, cmd.Format, runner.Options{
		Trigger: runner.TriggerCLI,
		DryRun:  cmd.DryRun,
		Title:   cmd.Title,
	})
	if out.Err != nil {
		return fmt.Errorf("extraction failed (%s): %w", extract.FailureKind(out.Err), out.Err)
	}

	printResult(cmd.Out, out.Result, cmd.Verbose)
	if out.BookID != 0 {
		fmt.Fprintf(cmd.Out, "\nSaved as book #%d\n", out.BookID)
	}
	if out.Run.ReportFile != "" {
		fmt.Fprintf(cmd.Out, "Report: %s\n", out.Run.ReportFile)
	}

	if cmd.JSONPath != "" {
		if err := writeJSON(cmd.Out, cmd.JSONPath, out.Result); err != nil {
			return err
		}
	}
	if cmd.CSVPath != "" {
		if err := cmd.writeCSV(out.Result); err != nil {
			return err
		}
	}

	fmt.Fprintln(cmd.Out, "\nExtraction complete!")
	return nil
}

func (cmd *ExtractCommand) writeCSV(res *extract.Result) error {
	if cmd.CSVPath == "-" {
		return exporters.WriteResultCSV(cmd.Out, res)
	}
	file, err := os.Create(cmd.CSVPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", cmd.CSVPath, err)
	}
	defer file.Close()
	return exporters.WriteResultCSV(file, res)
}

func printResult(out io.Writer, res *extract.Result, verbose bool) {
	md := res.Metadata
	fmt.Fprintf(out, "\nTitle: %s\n", md.Title)
	if len(md.Authors) > 0 {
		fmt.Fprintf(out, "Authors: %s\n", strings.Join(md.Authors, ", "))
	}
	if md.Year != "" {
		fmt.Fprintf(out, "Year: %s\n", md.Year)
	}
	fmt.Fprintf(out, "Format: %s (annotation stream v%d)\n", res.Format, res.Version)
	fmt.Fprintf(out, "Found %d highlights, %d notes, %d bookmarks", res.Stats.Highlights, res.Stats.Notes, res.Stats.Bookmarks)
	if len(res.Skipped) > 0 {
		fmt.Fprintf(out, " (%d records skipped)", len(res.Skipped))
	}
	fmt.Fprintln(out)

	if !verbose {
		return
	}
	fmt.Fprintln(out, "\n=== Entries ===")
	for i, h := range res.Highlights {
		var where []string
		if h.Section != "" {
			where = append(where, h.Section)
		}
		if h.Chapter != "" {
			where = append(where, h.Chapter)
		}
		if h.Page != "" {
			where = append(where, "p. "+h.Page)
		}
		where = append(where, fmt.Sprintf("loc %d", h.Location))
		fmt.Fprintf(out, "%d. [%s] %s: %s\n", i+1, h.Kind, strings.Join(where, " > "), h.Text)
		if h.Note != "" {
			fmt.Fprintf(out, "   Note: %s\n", h.Note)
		}
	}
	for _, s := range res.Skipped {
		fmt.Fprintf(out, "  [SKIPPED] %s\n", s.Error())
	}
}
