package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

var (
	bookExtensions    = []string{".kfx", ".azw3", ".azw", ".mobi", ".prc", ".htmlz"}
	sidecarExtensions = []string{".yjr", ".yjf", ".mbp", ".mbp1", ".azw3r", ".azw3f"}
)

func hasExt(name string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// IsBook reports whether name looks like a supported book file.
func IsBook(name string) bool { return hasExt(name, bookExtensions) }

// IsSidecar reports whether name looks like an annotation sidecar.
func IsSidecar(name string) bool { return hasExt(name, sidecarExtensions) }

// Pair is a book file and its annotation sidecar.
type Pair struct {
	Book        string `json:"book"`
	Annotations string `json:"annotations"`
}

// Discover pairs books in dir with sidecars whose file stem starts with the
// book's stem. A book needs exactly one match; books with none or several,
// and sidecars no book claimed, are reported as warnings.
func Discover(dir string) ([]Pair, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("read library directory: %w", err)
	}
	var books, sidecars []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch name := e.Name(); {
		case IsBook(name):
			books = append(books, name)
		case IsSidecar(name):
			sidecars = append(sidecars, name)
		}
	}
	sort.Strings(books)
	sort.Strings(sidecars)

	var (
		pairs    []Pair
		warnings []string
	)
	claimed := map[string]bool{}
	for _, b := range books {
		stem := bookID(b)
		var matches []string
		for _, s := range sidecars {
			if strings.HasPrefix(bookID(s), stem) {
				matches = append(matches, s)
			}
		}
		switch len(matches) {
		case 1:
			pairs = append(pairs, Pair{Book: filepath.Join(dir, b), Annotations: filepath.Join(dir, matches[0])})
			claimed[matches[0]] = true
		case 0:
			warnings = append(warnings, fmt.Sprintf("no annotation file found for %s, skipping", b))
		default:
			warnings = append(warnings, fmt.Sprintf("multiple annotation files match %s, skipping: %s", b, strings.Join(matches, ", ")))
		}
	}
	for _, s := range sidecars {
		if !claimed[s] {
			warnings = append(warnings, fmt.Sprintf("no book found for %s, skipping", s))
		}
	}
	return pairs, warnings, nil
}

// Outcome is the result of one pair in a batch.
type Outcome struct {
	Pair   Pair
	Result *Result
	Err    error
}

// RunBatch runs every pair on a bounded worker pool; workers <= 0 uses one
// per CPU. A failed book never stops the batch. Outcomes keep pair order.
// Pairs not started before ctx is cancelled report the context error.
func RunBatch(ctx context.Context, pairs []Pair, workers int) []Outcome {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	out := make([]Outcome, len(pairs))
	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, p := range pairs {
		out[i].Pair = p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				out[i].Err = err
				return nil
			}
			out[i].Result, out[i].Err = RunFiles(ctx, p.Book, p.Annotations, "")
			return nil
		})
	}
	_ = g.Wait()
	return out
}
