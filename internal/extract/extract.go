// Package extract runs the per-book pipeline: decode the annotation sidecar,
// reconstruct the book, resolve every record and assemble the highlights.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/assemble"
	"github.com/mrlokans/recall/internal/faults"
	"github.com/mrlokans/recall/internal/formats"
	"github.com/mrlokans/recall/internal/position"
	"github.com/mrlokans/recall/internal/utils"
)

// Input is one book with its annotation sidecar, already in memory.
type Input struct {
	BookID      string
	BookName    string
	Book        []byte
	Annotations []byte
	// Format is detected from the book when left empty.
	Format formats.Format
}

type Result struct {
	BookID      string               `json:"book_id"`
	Format      formats.Format       `json:"format"`
	Version     uint16               `json:"annotation_version"`
	Metadata    formats.Metadata     `json:"metadata"`
	PageAnchors []formats.PageAnchor `json:"page_anchors"`
	Highlights  []assemble.Highlight `json:"highlights"`
	Skipped     []faults.RecordError `json:"skipped"`
	Stats       assemble.Stats       `json:"stats"`
}

// Run processes in. Book level failures are returned as *faults.BookError;
// record level failures are collected in Result.Skipped.
func Run(ctx context.Context, in Input) (*Result, error) {
	if in.BookID == "" {
		in.BookID = bookID(in.BookName)
	}
	fail := func(err error) (*Result, error) {
		return nil, &faults.BookError{BookID: in.BookID, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	doc, err := annotation.Decode(in.Annotations)
	if err != nil {
		return fail(err)
	}

	format := in.Format
	if format == formats.FormatUnknown {
		if format, err = formats.Detect(in.Book, in.BookName); err != nil {
			return fail(err)
		}
	}
	book, err := formats.Reconstruct(in.Book, format)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", format, err))
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	buf := book.Content()
	var (
		ranges  []position.Range
		skipped []faults.RecordError
	)
	for _, rec := range doc.Records {
		r, err := position.ResolveRecord(buf, rec)
		if err != nil {
			skipped = append(skipped, faults.RecordError{RecordIndex: rec.Index, Err: err})
			continue
		}
		ranges = append(ranges, r)
	}

	highlights, inconsistent := assemble.Assemble(ranges, buf)
	skipped = append(skipped, inconsistent...)
	sortSkipped(skipped)

	anchors := book.PageAnchors()
	var toc []formats.TOCEntry
	if nav, ok := book.(formats.Navigator); ok {
		toc = nav.TableOfContents()
	}
	for i := range highlights {
		h := &highlights[i]
		h.Page = formats.PageAt(anchors, h.Range.Start)
		h.Section, h.Chapter = formats.SectionAt(toc, h.Range.Start)
	}

	md := book.Metadata()
	if md.Title == "" {
		md.Title = utils.CleanTitle(in.BookID)
	}
	return &Result{
		BookID:      in.BookID,
		Format:      format,
		Version:     doc.Version,
		Metadata:    md,
		PageAnchors: anchors,
		Highlights:  highlights,
		Skipped:     skipped,
		Stats:       assemble.Summarize(highlights),
	}, nil
}

// RunFiles reads both files fully and runs the pipeline on them.
func RunFiles(ctx context.Context, bookPath, annotationPath string, format formats.Format) (*Result, error) {
	id := bookID(bookPath)
	book, err := os.ReadFile(bookPath)
	if err != nil {
		return nil, &faults.BookError{BookID: id, Err: fmt.Errorf("read book: %w", err)}
	}
	ann, err := os.ReadFile(annotationPath)
	if err != nil {
		return nil, &faults.BookError{BookID: id, Err: fmt.Errorf("read annotations: %w", err)}
	}
	return Run(ctx, Input{
		BookID:      id,
		BookName:    filepath.Base(bookPath),
		Book:        book,
		Annotations: ann,
		Format:      format,
	})
}

func bookID(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func sortSkipped(s []faults.RecordError) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].RecordIndex < s[j].RecordIndex })
}

// FailureKind classifies an error returned by Run.
func FailureKind(err error) faults.Kind {
	var be *faults.BookError
	if errors.As(err, &be) {
		return be.Kind()
	}
	return faults.KindOf(err)
}
