// Package faults defines the failure taxonomy shared by the decoder, the
// format adapters, the position resolver and the highlight assembler.
//
// Every package wraps one of the sentinel errors below with context using
// fmt.Errorf("%w: ...") so callers can classify failures with errors.Is or
// KindOf regardless of which stage produced them.
package faults

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedStream indicates the annotation stream violates the tag grammar.
	ErrMalformedStream = errors.New("malformed annotation stream")
	// ErrUnsupportedVersion indicates a header version outside the known range.
	ErrUnsupportedVersion = errors.New("unsupported annotation stream version")
	// ErrDrmProtected indicates the book content is encrypted and unreadable.
	ErrDrmProtected = errors.New("book content is DRM protected")
	// ErrUnsupportedStructure indicates required structural tables are absent or malformed.
	ErrUnsupportedStructure = errors.New("unsupported book structure")
	// ErrOutOfRange indicates a computed offset outside the content buffer.
	ErrOutOfRange = errors.New("position out of range")
	// ErrAmbiguousToken indicates a position token whose grammar cannot be classified.
	ErrAmbiguousToken = errors.New("ambiguous position token")
	// ErrAssemblyInconsistency indicates a resolved range the assembler cannot use.
	ErrAssemblyInconsistency = errors.New("assembly inconsistency")
)

// Kind is the reportable tag of a failure.
type Kind string

const (
	KindNone                  Kind = ""
	KindMalformedStream       Kind = "malformed_stream"
	KindUnsupportedVersion    Kind = "unsupported_version"
	KindDrmProtected          Kind = "drm_protected"
	KindUnsupportedStructure  Kind = "unsupported_structure"
	KindOutOfRange            Kind = "out_of_range"
	KindAmbiguousToken        Kind = "ambiguous_token"
	KindAssemblyInconsistency Kind = "assembly_inconsistency"
	KindIO                    Kind = "io"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrMalformedStream, KindMalformedStream},
	{ErrUnsupportedVersion, KindUnsupportedVersion},
	{ErrDrmProtected, KindDrmProtected},
	{ErrUnsupportedStructure, KindUnsupportedStructure},
	{ErrOutOfRange, KindOutOfRange},
	{ErrAmbiguousToken, KindAmbiguousToken},
	{ErrAssemblyInconsistency, KindAssemblyInconsistency},
}

// KindOf classifies err. Errors outside the taxonomy (file system failures,
// cancelled contexts) are reported as KindIO; nil is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindIO
}

// RecordScoped reports whether a failure of this kind only affects one record.
func (k Kind) RecordScoped() bool {
	return k == KindOutOfRange || k == KindAmbiguousToken || k == KindAssemblyInconsistency
}

// RecordError is a failure scoped to a single annotation record. The record
// is skipped and the rest of the book continues processing.
type RecordError struct {
	RecordIndex int
	Err         error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.RecordIndex, e.Err)
}

func (e RecordError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy tag of the wrapped failure.
func (e RecordError) Kind() Kind {
	return KindOf(e.Err)
}

func (e RecordError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		RecordIndex int    `json:"record_index"`
		Kind        Kind   `json:"kind"`
		Error       string `json:"error"`
	}{e.RecordIndex, e.Kind(), msg})
}

// BookError is a failure that prevented one book from being addressed at all.
type BookError struct {
	BookID string
	Err    error
}

func (e *BookError) Error() string {
	return fmt.Sprintf("book %s: %v", e.BookID, e.Err)
}

func (e *BookError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy tag of the wrapped failure.
func (e *BookError) Kind() Kind {
	return KindOf(e.Err)
}
