// Package position turns the opaque start/end tokens of annotation records
// into validated byte ranges of a content buffer.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mrlokans/recall/internal/annotation"
	"github.com/mrlokans/recall/internal/faults"
)

// Token is a classified position reference. The set of implementations is
// closed: RawOffset, CompoundOffset and FragmentRelative.
type Token interface {
	fmt.Stringer
	token()
}

// RawOffset is a plain logical offset into the buffer.
type RawOffset struct {
	Offset int64
}

// CompoundOffset is the start:spine:total:blob form. Only Start addresses the
// buffer; the other fields are kept for reporting.
type CompoundOffset struct {
	Start int64
	Spine int64
	Total int64
	Blob  string
}

// FragmentRelative is an offset inside a named section of the buffer.
type FragmentRelative struct {
	Fragment string
	Offset   int64
}

func (RawOffset) token()        {}
func (CompoundOffset) token()   {}
func (FragmentRelative) token() {}

func (t RawOffset) String() string { return strconv.FormatInt(t.Offset, 10) }

func (t CompoundOffset) String() string {
	return fmt.Sprintf("%d:%d:%d:%s", t.Start, t.Spine, t.Total, t.Blob)
}

func (t FragmentRelative) String() string {
	return t.Fragment + ":" + strconv.FormatInt(t.Offset, 10)
}

// ParseToken classifies raw by its shape.
func ParseToken(raw annotation.Token) (Token, error) {
	s := string(raw)
	if isDigits(s) {
		n, err := parseOffset(s)
		if err != nil {
			return nil, err
		}
		return RawOffset{Offset: n}, nil
	}

	fields := strings.Split(s, ":")
	switch {
	case len(fields) == 4 && isDigits(fields[0]) && isDigits(fields[1]) && isDigits(fields[2]):
		var nums [3]int64
		for i := range nums {
			n, err := parseOffset(fields[i])
			if err != nil {
				return nil, err
			}
			nums[i] = n
		}
		return CompoundOffset{Start: nums[0], Spine: nums[1], Total: nums[2], Blob: fields[3]}, nil
	case len(fields) == 2 && fields[0] != "" && isDigits(fields[1]):
		n, err := parseOffset(fields[1])
		if err != nil {
			return nil, err
		}
		return FragmentRelative{Fragment: fields[0], Offset: n}, nil
	}
	return nil, fmt.Errorf("%w: %q", faults.ErrAmbiguousToken, s)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func parseOffset(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: offset %s overflows", faults.ErrOutOfRange, s)
	}
	return n, err
}
