package codetrack

import "strings"

// Position is a location in a document. Lines and columns are 1-based.
type Position struct {
	Line   int
	Column int
}

// before reports whether p is strictly before q in document order.
func (p Position) before(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Column < q.Column
}

// Range is a half-open span of document text: it covers everything from
// Start up to, but not including, End.
type Range struct {
	Start Position
	End   Position
}

// normalized returns r with Start and End swapped if they arrived reversed.
func (r Range) normalized() Range {
	if r.End.before(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

// Edit is a single replacement expressed against a document snapshot:
// the text covered by Range is replaced with NewText.
type Edit struct {
	Range   Range
	NewText string
}

// lineDelta is the net change in document line count caused by the edit:
// newlines inserted minus newlines removed.
func (e Edit) lineDelta() int {
	r := e.Range.normalized()
	return strings.Count(e.NewText, "\n") - (r.End.Line - r.Start.Line)
}

// LineSpan is an inclusive range of whole lines, 1-based.
type LineSpan struct {
	Start int
	End   int
}

// contains reports whether the span includes the given line.
func (s LineSpan) contains(line int) bool {
	return s.Start <= line && line <= s.End
}

// overlaps reports whether two spans share at least one line.
func (s LineSpan) overlaps(o LineSpan) bool {
	return s.Start <= o.End && o.Start <= s.End
}

// shift returns the span with both endpoints moved by delta lines.
func (s LineSpan) shift(delta int) LineSpan {
	return LineSpan{Start: s.Start + delta, End: s.End + delta}
}

// Classification is the relationship between an edit and a tracked line span.
type Classification int

const (
	// ClassifiedBefore indicates the edit lies entirely above the span.
	// The span's content is untouched; its position shifts by the edit's
	// line delta.
	ClassifiedBefore Classification = iota

	// ClassifiedAfter indicates the edit lies entirely below the span.
	// The span is unaffected.
	ClassifiedAfter

	// ClassifiedInvalidated indicates the edit touches at least one line
	// of the span. The span's content can no longer be trusted.
	ClassifiedInvalidated
)

// String returns a human-readable description of the classification.
func (c Classification) String() string {
	switch c {
	case ClassifiedBefore:
		return "before"
	case ClassifiedAfter:
		return "after"
	case ClassifiedInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

// classify determines how an edit relates to a tracked span of whole lines.
//
// An edit is "before" only when its end lies on an earlier line than the
// span's first line, and "after" only when it starts on a later line than
// the span's last line. Everything else, including an edit that merely
// touches a boundary line of the span, invalidates; the re-derivation
// pass rebinds spans whose text still matches.
//
// For "before" edits the returned delta is the edit's net line-count
// change; the caller shifts both span endpoints by it.
func classify(span LineSpan, edit Edit) (Classification, int) {
	r := edit.Range.normalized()
	if r.End.Line < span.Start {
		return ClassifiedBefore, edit.lineDelta()
	}
	if r.Start.Line > span.End {
		return ClassifiedAfter, 0
	}
	return ClassifiedInvalidated, 0
}
