package codetrack

import "sort"

// BoundEntry is a fragment's current verified position: the document
// lines [Start, End], normalized, are byte-identical to the fragment
// text. An entry exists only while that holds; any edit touching its
// lines removes it.
type BoundEntry struct {
	Fragment *Fragment
	Span     LineSpan
}

// positionIndex is the ordered list of bound entries for one document.
// Entries never overlap and stay sorted by start line. A fragment is
// bound to at most one entry at a time.
type positionIndex struct {
	entries []*BoundEntry
}

// bind places a fragment at the given span, replacing any previous
// binding of the same fragment and evicting entries the span overlaps.
func (ix *positionIndex) bind(f *Fragment, span LineSpan) *BoundEntry {
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		if e.Fragment == f || e.Span.overlaps(span) {
			continue
		}
		kept = append(kept, e)
	}
	ix.entries = kept

	entry := &BoundEntry{Fragment: f, Span: span}
	at := sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].Span.Start >= span.Start
	})
	ix.entries = append(ix.entries, nil)
	copy(ix.entries[at+1:], ix.entries[at:])
	ix.entries[at] = entry
	return entry
}

// unbind removes the entry for the given fragment, if any.
func (ix *positionIndex) unbind(f *Fragment) bool {
	for i, e := range ix.entries {
		if e.Fragment == f {
			ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
			return true
		}
	}
	return false
}

// entryFor returns the entry currently bound to the fragment, if any.
func (ix *positionIndex) entryFor(f *Fragment) (*BoundEntry, bool) {
	for _, e := range ix.entries {
		if e.Fragment == f {
			return e, true
		}
	}
	return nil, false
}

// isBound reports whether the fragment currently has an entry.
func (ix *positionIndex) isBound(f *Fragment) bool {
	_, ok := ix.entryFor(f)
	return ok
}

// overlapsAny reports whether the span shares lines with any entry.
func (ix *positionIndex) overlapsAny(span LineSpan) bool {
	for _, e := range ix.entries {
		if e.Span.overlaps(span) {
			return true
		}
	}
	return false
}

// applyEdit classifies every entry against one edit, shifting entries
// above it and dropping entries it touches. Returns the number of
// entries shifted and the entries that were invalidated.
func (ix *positionIndex) applyEdit(edit Edit) (shifted int, invalidated []*BoundEntry) {
	kept := ix.entries[:0]
	for _, e := range ix.entries {
		switch c, delta := classify(e.Span, edit); c {
		case ClassifiedBefore:
			e.Span = e.Span.shift(delta)
			if delta != 0 {
				shifted++
			}
			kept = append(kept, e)
		case ClassifiedAfter:
			kept = append(kept, e)
		case ClassifiedInvalidated:
			invalidated = append(invalidated, e)
		}
	}
	ix.entries = kept
	return shifted, invalidated
}

func (ix *positionIndex) size() int {
	return len(ix.entries)
}

func (ix *positionIndex) clear() {
	ix.entries = nil
}
