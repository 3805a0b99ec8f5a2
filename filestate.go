package codetrack

import "sync"

// FileState holds everything the tracker knows about one document: the
// full history of submitted fragments and the index of their currently
// verified positions. Access is serialized per document by mu; state
// for different documents is fully independent.
type FileState struct {
	uri string

	mu      sync.Mutex
	history *history
	index   positionIndex
}

func newFileState(uri string) *FileState {
	return &FileState{uri: uri, history: newHistory()}
}

// clearLocked empties history and index. Caller holds mu.
func (fs *FileState) clearLocked() {
	fs.history.clear()
	fs.index.clear()
}

// unboundLocked returns the history fragments that currently have no
// bound entry. Caller holds mu.
func (fs *FileState) unboundLocked() []*Fragment {
	if fs.history.size() == fs.index.size() {
		return nil
	}
	var out []*Fragment
	for _, f := range fs.history.byText {
		if !fs.index.isBound(f) {
			out = append(out, f)
		}
	}
	return out
}

// summaryLocked builds the read-side view of this document. Caller
// holds mu.
func (fs *FileState) summaryLocked() DocumentSummary {
	cells := make([]CellInfo, 0, fs.index.size())
	for _, e := range fs.index.entries {
		cells = append(cells, CellInfo{
			StartLine:      e.Span.Start,
			EndLine:        e.Span.End,
			ExecutionCount: e.Fragment.ExecutionCount,
			ID:             e.Fragment.ID,
		})
	}
	return DocumentSummary{URI: fs.uri, Cells: cells}
}

// CellInfo is one bound fragment as reported to UI collaborators.
type CellInfo struct {
	StartLine      int
	EndLine        int
	ExecutionCount int
	ID             string
}

// DocumentSummary is the read contract for one document: its bound
// cells in order of start line.
type DocumentSummary struct {
	URI   string
	Cells []CellInfo
}
