package codetrack

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPerFileIsolation(t *testing.T) {
	tr, store := newTestTracker(t)
	a, b := "file:///a.py", "file:///b.py"
	store.Open(a, "#%%\nshared = 1")
	store.Open(b, "#%%\nshared = 1")

	tr.Submit(a, "shared = 1", 2, "run-a")
	tr.Submit(b, "shared = 1", 2, "run-b")

	// Identical code in two files is two independent entries.
	assert.Equal(t, 2, tr.Stats().Fragments)

	// Destroying the entry in one file leaves the other alone.
	edit(t, tr, store, a, Edit{Range: Range{Position{2, 1}, Position{2, 1}}, NewText: "!"})
	assert.Empty(t, cells(t, tr, a))

	got := cells(t, tr, b)
	require.Len(t, got, 1)
	assert.Equal(t, "run-b", got[0].ID)
}

func TestQueryAllOrderedByURI(t *testing.T) {
	tr, store := newTestTracker(t)
	for _, uri := range []string{"file:///c.py", "file:///a.py", "file:///b.py"} {
		store.Open(uri, "x = 1")
		tr.Submit(uri, "x = 1", 1, "run")
	}

	all := tr.QueryAll()
	require.Len(t, all, 3)
	assert.Equal(t, "file:///a.py", all[0].URI)
	assert.Equal(t, "file:///b.py", all[1].URI)
	assert.Equal(t, "file:///c.py", all[2].URI)
}

func TestQueryUnknownDocument(t *testing.T) {
	tr, _ := newTestTracker(t)
	_, ok := tr.Query("file:///nope.py")
	assert.False(t, ok)
}

func TestOpenDocumentAcceptsEditsBeforeSubmission(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///open.py"
	store.Open(uri, "x = 1")

	tr.OpenDocument(uri)
	assert.Equal(t, 1, tr.Stats().Documents)

	// Edits to an opened document are processed even though nothing has
	// been submitted yet; there is simply nothing to bind.
	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{1, 1}}, NewText: "y"})
	assert.Empty(t, cells(t, tr, uri))
	assert.Equal(t, int64(1), tr.Stats().EditBatches)
}

func TestCloseDocumentForgets(t *testing.T) {
	tr, store := newTestTracker(t)
	uri := "file:///close.py"
	store.Open(uri, "x = 1")
	tr.Submit(uri, "x = 1", 1, "run-1")

	tr.CloseDocument(uri)
	_, ok := tr.Query(uri)
	assert.False(t, ok)
	assert.Equal(t, 0, tr.Stats().Documents)

	// Reopening starts from scratch: the old history is gone.
	res := tr.Submit(uri, "x = 1", 1, "run-2")
	assert.Equal(t, 1, res.Fragment.ExecutionCount)
}

func TestClearAllResetsHistoryAndIndex(t *testing.T) {
	tr, store := newTestTracker(t)
	a, b := "file:///a.py", "file:///b.py"
	store.Open(a, "x = 1")
	store.Open(b, "y = 2")
	tr.Submit(a, "x = 1", 1, "run-a")
	tr.Submit(b, "y = 2", 1, "run-b")

	tr.ClearAll()

	st := tr.Stats()
	assert.Equal(t, 0, st.Fragments)
	assert.Equal(t, 0, st.BoundEntries)
	// Documents stay registered; only their state is emptied.
	assert.Equal(t, 2, st.Documents)

	// Execution counts restart after a clear.
	res := tr.Submit(a, "x = 1", 1, "run-a2")
	assert.Equal(t, 1, res.Fragment.ExecutionCount)
}

func TestOnChangeCallback(t *testing.T) {
	var seen []DocumentSummary
	tr, store := newTestTracker(t, func(o *Options) {
		o.OnChange = func(s DocumentSummary) { seen = append(seen, s) }
	})
	uri := "file:///cb.py"
	store.Open(uri, "#%%\na = 1\n#%%\nb = 2")

	tr.Submit(uri, "b = 2", 4, "run-1")
	require.Len(t, seen, 1)
	require.Len(t, seen[0].Cells, 1)
	assert.Equal(t, 4, seen[0].Cells[0].StartLine)

	// A pure shift changes the summary and fires the callback.
	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{3, 1}}, NewText: ""})
	require.Len(t, seen, 2)
	assert.Equal(t, 2, seen[1].Cells[0].StartLine)

	// An edit that moves nothing stays silent.
	edit(t, tr, store, uri, Edit{Range: Range{Position{1, 1}, Position{1, 1}}, NewText: "#"})
	assert.Len(t, seen, 2)
}

func TestConcurrentDocumentsIndependent(t *testing.T) {
	tr, store := newTestTracker(t)

	uris := []string{"file:///w.py", "file:///x.py", "file:///y.py", "file:///z.py"}
	var wg sync.WaitGroup
	for _, uri := range uris {
		store.Open(uri, "#%%\nv = 1\n#%%\nw = 2")
		wg.Add(1)
		go func(uri string) {
			defer wg.Done()
			tr.Submit(uri, "w = 2", 4, "run")
			for j := 0; j < 50; j++ {
				edits := []Edit{{Range: Range{Position{1, 1}, Position{1, 1}}, NewText: "# pad\n"}}
				_ = store.Edit(uri, edits)
				tr.ApplyEdits(uri, edits)
			}
		}(uri)
	}
	wg.Wait()

	for _, uri := range uris {
		got := cells(t, tr, uri)
		require.Len(t, got, 1)
		assert.Equal(t, 54, got[0].StartLine)
	}
}
