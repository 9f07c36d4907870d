// Package extracttest writes small book and sidecar pairs for tests of the
// packages that drive the extraction pipeline.
package extracttest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mrlokans/recall/internal/annotation/annotationtest"
	"github.com/mrlokans/recall/internal/extract"
	"github.com/mrlokans/recall/internal/kfx/kfxtest"
	"github.com/mrlokans/recall/internal/tagged"
)

const (
	Title  = "Moby Dick"
	Author = "Herman Melville"
	First  = "Call me Ishmael."
	Second = "Some years ago."
	Note   = "whaling"
)

// Book is a one section KFX book with two sentences and two pages.
func Book() []byte {
	return kfxtest.Build(
		kfxtest.Section("s1", First+" "+Second),
		kfxtest.PositionIndex(kfxtest.Place{Section: "s1", Position: 0, Length: 32}),
		kfxtest.Metadata(Title, "1851-10-18", Author),
		kfxtest.Navigation(
			[]tagged.Value{kfxtest.Page("1", 0), kfxtest.Page("2", 17)},
			[]tagged.Value{kfxtest.TOC("Loomings", 0)},
		),
	)
}

// Sidecar highlights both sentences of Book and notes the second one.
func Sidecar() []byte {
	return annotationtest.Sidecar{
		Highlights: []tagged.Value{
			annotationtest.Highlight("0", "15", 1700000001000),
			annotationtest.Highlight("17", "31", 1700000002000),
		},
		Notes: []tagged.Value{annotationtest.Note("31", "31", Note)},
	}.Bytes()
}

// WritePair writes stem.kfx and stem.yjr into dir.
func WritePair(t testing.TB, dir, stem string) extract.Pair {
	t.Helper()
	return WriteFiles(t, dir, stem, Book(), Sidecar())
}

// WriteFiles writes arbitrary book and sidecar bytes as stem.kfx and stem.yjr.
func WriteFiles(t testing.TB, dir, stem string, book, sidecar []byte) extract.Pair {
	t.Helper()
	pair := extract.Pair{
		Book:        filepath.Join(dir, stem+".kfx"),
		Annotations: filepath.Join(dir, stem+".yjr"),
	}
	if err := os.WriteFile(pair.Book, book, 0644); err != nil {
		t.Fatalf("write book: %v", err)
	}
	if err := os.WriteFile(pair.Annotations, sidecar, 0644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	return pair
}
