package formats

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/faults"
)

func init() {
	Register(FormatHTMLZ, HTMLZAdapter{})
}

const (
	htmlzBook     = "book.html"
	htmlzMetadata = "metadata.opf"
	// zip general purpose flag bit 0 marks an encrypted entry
	zipEncrypted = 0x1
)

// HTMLZAdapter serves the markup document of an HTMLZ archive unchanged.
type HTMLZAdapter struct{}

func (HTMLZAdapter) Reconstruct(raw []byte) (Book, error) {
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, structuralf("htmlz archive: %v", err)
	}

	doc, err := htmlzDocument(zr)
	if err != nil {
		return nil, err
	}
	data, err := readZipEntry(doc)
	if err != nil {
		return nil, err
	}

	idx := scanMarkup(data)
	md := idx.metaMetadata()
	if opf := zipEntry(zr, htmlzMetadata); opf != nil {
		if b, err := readZipEntry(opf); err == nil {
			md = mergeMetadata(parseOPF(b), md)
		}
	}

	buf := content.New(data, content.WithSections(idx.ids))
	return &book{
		buf:     buf,
		meta:    md,
		anchors: sortAnchors(idx.pageIDs),
	}, nil
}

func zipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// htmlzDocument picks book.html, or the archive's only HTML entry.
func htmlzDocument(zr *zip.Reader) (*zip.File, error) {
	if f := zipEntry(zr, htmlzBook); f != nil {
		return f, nil
	}
	var found []*zip.File
	for _, f := range zr.File {
		switch strings.ToLower(path.Ext(f.Name)) {
		case ".html", ".xhtml", ".htm":
			found = append(found, f)
		}
	}
	if len(found) != 1 {
		return nil, structuralf("htmlz archive holds %d html documents and no %s", len(found), htmlzBook)
	}
	return found[0], nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	if f.Flags&zipEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s is encrypted", faults.ErrDrmProtected, f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, structuralf("open %s: %v", f.Name, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, structuralf("read %s: %v", f.Name, err)
	}
	return b, nil
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Dates    []string `xml:"http://purl.org/dc/elements/1.1/ date"`
	} `xml:"metadata"`
}

func parseOPF(b []byte) Metadata {
	var pkg opfPackage
	if err := xml.Unmarshal(b, &pkg); err != nil {
		return Metadata{}
	}
	var md Metadata
	for _, t := range pkg.Metadata.Titles {
		if t = strings.TrimSpace(t); t != "" {
			md.Title = t
			break
		}
	}
	for _, c := range pkg.Metadata.Creators {
		if c = strings.TrimSpace(c); c != "" {
			md.Authors = append(md.Authors, c)
		}
	}
	for _, d := range pkg.Metadata.Dates {
		if y := yearOf(d); y != "" {
			md.Year = y
			break
		}
	}
	return md
}

// mergeMetadata fills empty fields of primary from fallback.
func mergeMetadata(primary, fallback Metadata) Metadata {
	if primary.Title == "" {
		primary.Title = fallback.Title
	}
	if len(primary.Authors) == 0 {
		primary.Authors = fallback.Authors
	}
	if primary.Year == "" {
		primary.Year = fallback.Year
	}
	return primary
}
