package mobi

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// Skeleton is one row of the KF8 skeleton table.
type Skeleton struct {
	Name      string
	FragCount int
	Pos       int
	Len       int
}

// Fragment is one row of the KF8 fragment table.
type Fragment struct {
	InsertPos int
	Selector  string
	FileNum   int
	SeqNum    int
	StartPos  int
	Len       int
}

// Part is one reassembled xhtml file of the spliced Flow 0 stream.
type Part struct {
	Name     string
	Skeleton string
	Offset   int
	Data     []byte
}

func tagValue(e IndexEntry, tag uint8, i int) (int, error) {
	values := e.Tags[tag]
	if i >= len(values) {
		return 0, structural("index entry %q lacks tag %d value %d", e.Text, tag, i)
	}
	return int(values[i]), nil
}

// ReadSkeletons decodes the skeleton INDX table of a KF8 header.
func ReadSkeletons(db *Database, h *Header) ([]Skeleton, error) {
	if h.SkeletonIndex == NoIndex {
		return nil, structural("KF8 header has no skeleton index")
	}
	idx, err := ReadIndex(db, h, h.SkeletonIndex)
	if err != nil {
		return nil, fmt.Errorf("skeleton index: %w", err)
	}
	out := make([]Skeleton, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		var s Skeleton
		s.Name = string(e.Text)
		if s.FragCount, err = tagValue(e, 1, 0); err != nil {
			return nil, err
		}
		if s.Pos, err = tagValue(e, 6, 0); err != nil {
			return nil, err
		}
		if s.Len, err = tagValue(e, 6, 1); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadFragments decodes the fragment INDX table of a KF8 header.
func ReadFragments(db *Database, h *Header) ([]Fragment, error) {
	if h.FragmentIndex == NoIndex {
		return nil, structural("KF8 header has no fragment index")
	}
	idx, err := ReadIndex(db, h, h.FragmentIndex)
	if err != nil {
		return nil, fmt.Errorf("fragment index: %w", err)
	}
	out := make([]Fragment, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		var f Fragment
		if f.InsertPos, err = strconv.Atoi(string(e.Text)); err != nil {
			return nil, structural("fragment insert position %q", e.Text)
		}
		cncx, err := tagValue(e, 2, 0)
		if err != nil {
			return nil, err
		}
		f.Selector = idx.CNCX[uint32(cncx)]
		if f.FileNum, err = tagValue(e, 3, 0); err != nil {
			return nil, err
		}
		if f.SeqNum, err = tagValue(e, 4, 0); err != nil {
			return nil, err
		}
		if f.StartPos, err = tagValue(e, 6, 0); err != nil {
			return nil, err
		}
		if f.Len, err = tagValue(e, 6, 1); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// AID extracts the anchor id from a fragment selector of the form
// P-//*[@aid='0S'].
func (f Fragment) AID() string {
	const prefix, suffix = 12, 2
	if len(f.Selector) < prefix+suffix {
		return ""
	}
	return f.Selector[prefix : len(f.Selector)-suffix]
}

// Splice rebuilds the xhtml parts of KF8 text by inserting every fragment
// into its skeleton. Joining the parts' Data yields the stream annotation
// offsets address.
func Splice(text []byte, skeletons []Skeleton, fragments []Fragment) ([]Part, error) {
	parts := make([]Part, 0, len(skeletons))
	fragPtr, offset := 0, 0
	for n, skel := range skeletons {
		base := skel.Pos + skel.Len
		if skel.Pos < 0 || base > len(text) {
			return nil, structural("skeleton %s spans [%d, %d) of %d bytes", skel.Name, skel.Pos, base, len(text))
		}
		skeleton := append([]byte(nil), text[skel.Pos:base]...)
		name := fmt.Sprintf("part%04d", n)

		for i := 0; i < skel.FragCount; i++ {
			if fragPtr >= len(fragments) {
				return nil, structural("skeleton %s wants more fragments than the table holds", skel.Name)
			}
			frag := fragments[fragPtr]
			if i == 0 {
				name = fmt.Sprintf("part%04d", frag.FileNum)
			}
			if base+frag.Len > len(text) {
				return nil, structural("fragment %d runs past text", fragPtr)
			}
			slice := text[base : base+frag.Len]

			insert := frag.InsertPos - skel.Pos
			if insert < 0 || insert > len(skeleton) {
				return nil, structural("fragment %d inserts at %d outside skeleton %s", fragPtr, frag.InsertPos, skel.Name)
			}
			if insideTag(skeleton[:insert], skeleton[insert:]) {
				if lt, gt := locateAID(skeleton, frag.AID()); lt != gt {
					if repaired := gt + 1 + frag.StartPos; repaired <= len(skeleton) {
						insert = repaired
					}
				}
			}

			spliced := make([]byte, 0, len(skeleton)+len(slice))
			spliced = append(spliced, skeleton[:insert]...)
			spliced = append(spliced, slice...)
			spliced = append(spliced, skeleton[insert:]...)
			skeleton = spliced
			base += frag.Len
			fragPtr++
		}
		parts = append(parts, Part{Name: name, Skeleton: skel.Name, Offset: offset, Data: skeleton})
		offset += len(skeleton)
	}
	return parts, nil
}

// insideTag reports whether the split between head and tail cuts a tag.
func insideTag(head, tail []byte) bool {
	return bytes.IndexByte(tail, '>') < bytes.IndexByte(tail, '<') ||
		bytes.LastIndexByte(head, '>') < bytes.LastIndexByte(head, '<')
}

// locateAID returns the offsets of '<' and '>' of the first tag carrying
// aid, or 0, 0 when there is none.
func locateAID(skeleton []byte, aid string) (int, int) {
	if aid == "" {
		return 0, 0
	}
	re, err := regexp.Compile(`(?i)<[^>]*\said\s*=\s*['"]` + regexp.QuoteMeta(aid) + `['"][^>]*>`)
	if err != nil {
		return 0, 0
	}
	loc := re.FindIndex(skeleton)
	if loc == nil {
		return 0, 0
	}
	lt := loc[0]
	gt := bytes.IndexByte(skeleton[lt+1:], '>')
	if gt < 0 {
		return 0, 0
	}
	return lt, lt + 1 + gt
}

// JoinParts concatenates the parts' data.
func JoinParts(parts []Part) []byte {
	var out bytes.Buffer
	for _, p := range parts {
		out.Write(p.Data)
	}
	return out.Bytes()
}
