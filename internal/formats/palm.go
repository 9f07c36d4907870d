package formats

import (
	"github.com/mrlokans/recall/internal/content"
	"github.com/mrlokans/recall/internal/mobi"
)

func init() {
	Register(FormatKF8, KF8Adapter{})
	Register(FormatMOBI, MOBIAdapter{})
}

// KF8Adapter rebuilds the Flow 0 stream of KF8 books by splicing every
// fragment into its skeleton. Annotation offsets address the spliced stream;
// the raw decompressed text has the right neighbourhood but shifted
// boundaries.
type KF8Adapter struct{}

func (KF8Adapter) Reconstruct(raw []byte) (Book, error) {
	db, err := mobi.Open(raw)
	if err != nil {
		return nil, err
	}
	first, err := mobi.ReadHeader(db, 0)
	if err != nil {
		return nil, err
	}
	start := mobi.KF8Start(db, first)
	if start < 0 {
		return nil, structuralf("file has no KF8 part")
	}
	h := first
	if start > 0 {
		if h, err = mobi.ReadHeader(db, start); err != nil {
			return nil, err
		}
	}

	text, err := mobi.RawText(db, h)
	if err != nil {
		return nil, err
	}
	flows, err := mobi.Flows(db, h, text)
	if err != nil {
		return nil, err
	}
	skeletons, err := mobi.ReadSkeletons(db, h)
	if err != nil {
		return nil, err
	}
	fragments, err := mobi.ReadFragments(db, h)
	if err != nil {
		return nil, err
	}
	parts, err := mobi.Splice(flows[0], skeletons, fragments)
	if err != nil {
		return nil, err
	}
	data := mobi.JoinParts(parts)

	idx := scanMarkup(data)
	sections := make(map[string]int, len(parts)*2)
	for _, p := range parts {
		sections[p.Name] = p.Offset
		sections[p.Skeleton] = p.Offset
	}

	buf := content.New(data,
		content.WithEncoding(content.EncodingForCodepage(h.Codepage)),
		content.WithSections(sections),
		content.WithSections(idx.ids),
	)
	return &book{
		buf:     buf,
		meta:    palmMetadata(db, h, first),
		anchors: idx.pageBreakAnchors(),
	}, nil
}

// MOBIAdapter decompresses the MOBI6 text records in one pass; the result,
// cut to the declared text length, is the buffer.
type MOBIAdapter struct{}

func (MOBIAdapter) Reconstruct(raw []byte) (Book, error) {
	db, err := mobi.Open(raw)
	if err != nil {
		return nil, err
	}
	h, err := mobi.ReadHeader(db, 0)
	if err != nil {
		return nil, err
	}
	data, err := mobi.RawText(db, h)
	if err != nil {
		return nil, err
	}
	if int(h.TextLength) < len(data) {
		data = data[:h.TextLength]
	}

	idx := scanMarkup(data)
	buf := content.New(data,
		content.WithEncoding(content.EncodingForCodepage(h.Codepage)),
		content.WithSections(idx.ids),
	)
	return &book{
		buf:     buf,
		meta:    palmMetadata(db, h, h),
		anchors: idx.pageBreakAnchors(),
	}, nil
}

// palmMetadata prefers EXTH records of h, then those of first, then the
// header full name and PalmDB name.
func palmMetadata(db *mobi.Database, h, first *mobi.Header) Metadata {
	var md Metadata
	for _, hdr := range []*mobi.Header{h, first} {
		if md.Title == "" {
			md.Title = hdr.ExthString(mobi.ExthTitle)
		}
		if len(md.Authors) == 0 {
			md.Authors = hdr.ExthStrings(mobi.ExthAuthor)
		}
		if md.Year == "" {
			md.Year = yearOf(hdr.ExthString(mobi.ExthPublished))
		}
	}
	if md.Title == "" {
		md.Title = h.FullName
	}
	if md.Title == "" {
		md.Title = first.FullName
	}
	if md.Title == "" {
		md.Title = db.Name
	}
	return md
}

// isKF8 reports whether raw is a PalmDB book with a KF8 part.
func isKF8(raw []byte) bool {
	db, err := mobi.Open(raw)
	if err != nil {
		return false
	}
	h, err := mobi.ReadHeader(db, 0)
	if err != nil {
		return false
	}
	return mobi.KF8Start(db, h) >= 0
}
