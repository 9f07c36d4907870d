package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/tagged"
)

// DecodeCommand dumps a raw annotation sidecar without touching the book,
// which helps when an extraction skips records.
type DecodeCommand struct {
	FilePath string
	Output   string

	Out io.Writer
}

func NewDecodeCommand() *DecodeCommand {
	return &DecodeCommand{Out: os.Stdout}
}

func (cmd *DecodeCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)

	fs.StringVar(&cmd.FilePath, "file", "", "Path to the annotation sidecar (required)")
	fs.StringVar(&cmd.Output, "output", "-", "Where to write the JSON dump (- for stdout)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s decode -file <path> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Decode an annotation sidecar and print its records as JSON.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.FilePath == "" {
		return fmt.Errorf("required flag -file not provided")
	}

	return nil
}

type decodedRecord struct {
	Index      int             `json:"index"`
	Kind       annotation.Kind `json:"kind"`
	Start      string          `json:"start"`
	End        string          `json:"end,omitempty"`
	CreatedAt  *time.Time      `json:"created_at,omitempty"`
	ModifiedAt *time.Time      `json:"modified_at,omitempty"`
	Note       string          `json:"note,omitempty"`
	Style      tagged.Value    `json:"style"`
}

type decodedDocument struct {
	Version  uint16                  `json:"version"`
	Counts   map[string]int          `json:"counts"`
	Records  []decodedRecord         `json:"records"`
	Metadata map[string]tagged.Value `json:"metadata,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func newDecodedDocument(doc *annotation.Document) decodedDocument {
	view := decodedDocument{
		Version: doc.Version,
		Counts: map[string]int{
			annotation.KindHighlight.String(): doc.Count(annotation.KindHighlight),
			annotation.KindNote.String():      doc.Count(annotation.KindNote),
			annotation.KindBookmark.String():  doc.Count(annotation.KindBookmark),
		},
		Records: make([]decodedRecord, 0, len(doc.Records)),
	}
	for _, r := range doc.Records {
		view.Records = append(view.Records, decodedRecord{
			Index:      r.Index,
			Kind:       r.Kind,
			Start:      string(r.Start),
			End:        string(r.End),
			CreatedAt:  optionalTime(r.CreatedAt),
			ModifiedAt: optionalTime(r.ModifiedAt),
			Note:       r.Note,
			Style:      r.Style,
		})
	}
	if len(doc.Metadata) > 0 {
		view.Metadata = make(map[string]tagged.Value, len(doc.Metadata))
		for _, m := range doc.Metadata {
			view.Metadata[m.Name] = m.Value
		}
	}
	return view
}

func (cmd *DecodeCommand) Run() error {
	data, err := os.ReadFile(cmd.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read annotation file: %w", err)
	}

	doc, err := annotation.Decode(data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", cmd.FilePath, err)
	}

	return writeJSON(cmd.Out, cmd.Output, newDecodedDocument(doc))
}
