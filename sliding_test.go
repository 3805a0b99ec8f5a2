package codetrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Entries slide when lines appear or disappear above them, stay put for
// edits below them, and never survive an edit that touches their own
// lines.

func TestEntrySlidesOnInsertAbove(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///slide.py"
	store.Open(uri, "#%%\nfirst = 1\n#%%\nsecond = 2")

	tr.Submit(uri, "second = 2", 4, "run-1")

	// Insert three lines at the top of the document.
	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{1, 1}}, NewText: "a = 0\nb = 0\nc = 0\n"})
	got := cells(t, tr, uri)
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].StartLine)
	assert.Equal(t, 7, got[0].EndLine)

	// The bound text is unchanged.
	b, ok := store.Get(uri)
	require.True(t, ok)
	line, _ := b.Line(7)
	assert.Equal(t, "second = 2", line)
}

func TestEntrySlidesOnDeleteAbove(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///slide.py"
	store.Open(uri, "#%%\nfirst = 1\n#%%\nsecond = 2")

	tr.Submit(uri, "second = 2", 4, "run-1")

	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{3, 1}}, NewText: ""})
	got := cells(t, tr, uri)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].StartLine)
	assert.Equal(t, 1, got[0].ExecutionCount)
}

func TestEntryUntouchedByEditBelow(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///below.py"
	store.Open(uri, "#%%\nfirst = 1\n#%%\nsecond = 2")

	tr.Submit(uri, "first = 1", 2, "run-1")

	edit(t, tr, store, uri, Edit{Range: Range{Position{4, 1}, Position{4, 11}}, NewText: "second = 99"})
	got := cells(t, tr, uri)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].StartLine)

	st := tr.Stats()
	assert.Equal(t, int64(0), st.Invalidations)
}

func TestSameLineEditAboveDoesNotShift(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///neutral.py"
	store.Open(uri, "#%%\nfirst = 1\n#%%\nsecond = 2")

	tr.Submit(uri, "second = 2", 4, "run-1")

	// Replace text within line 2: no net line change, no shift.
	edit(t, tr, store, uri, Edit{Range: Range{Position{2, 9}, Position{2, 10}}, NewText: "7"})
	got := cells(t, tr, uri)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].StartLine)
}

func TestInsertionInsideInvalidates(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///inv.py"
	store.Open(uri, "#%%\nvalue = compute()\nmore = value + 1")

	tr.Submit(uri, "value = compute()\nmore = value + 1", 2, "run-1")
	require.Len(t, cells(t, tr, uri), 1)

	// A single character anywhere inside the two-line span kills it.
	edit(t, tr, store, uri, Edit{Range: Range{Position{3, 1}, Position{3, 1}}, NewText: " "})
	assert.Empty(t, cells(t, tr, uri))
}

func TestEditTouchingBoundaryLineInvalidates(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///boundary.py"
	store.Open(uri, "#%%\nfirst = 1\n#%%\nsecond = 2")

	tr.Submit(uri, "second = 2", 4, "run-1")

	// Deleting up to the first column of the entry's start line touches
	// its boundary: conservatively invalidated, then immediately
	// re-derived at the new position because the text still matches.
	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{4, 1}}, NewText: ""})
	got := cells(t, tr, uri)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].StartLine)
	assert.Equal(t, 1, got[0].ExecutionCount)

	st := tr.Stats()
	assert.Equal(t, int64(1), st.Invalidations)
	assert.Equal(t, int64(1), st.Resurrections)
}
