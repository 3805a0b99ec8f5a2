package codetrack

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Buffer is a minimal line-addressed document: enough editor to drive
// the tracker in tests, the repl and the benchmark. It accepts the same
// pre-snapshot edit batches the tracker consumes, applying them bottom
// to top.
type Buffer struct {
	mu    sync.RWMutex
	lines []string
}

// NewBuffer creates a buffer holding the given text.
func NewBuffer(text string) *Buffer {
	return &Buffer{lines: splitLines(text)}
}

// Text returns the full document content.
func (b *Buffer) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return strings.Join(b.lines, "\n")
}

// LineCount returns the number of lines in the document.
func (b *Buffer) LineCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Line returns the content of the 1-based line number.
func (b *Buffer) Line(n int) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 1 || n > len(b.lines) {
		return "", false
	}
	return b.lines[n-1], true
}

// SetText replaces the whole document.
func (b *Buffer) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = splitLines(text)
}

// ApplyEdits applies a batch of edits expressed against the current
// snapshot, bottom to top, so earlier edits never move the targets of
// later ones. Returns ErrInvalidPosition if any range is out of bounds.
func (b *Buffer) ApplyEdits(edits []Edit) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := make([]Edit, len(edits))
	copy(batch, edits)
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[j].Range.normalized().Start.before(batch[i].Range.normalized().Start)
	})
	for _, e := range batch {
		if err := b.applyOne(e); err != nil {
			return err
		}
	}
	return nil
}

// applyOne splices one replacement into the line slice.
func (b *Buffer) applyOne(e Edit) error {
	r := e.Range.normalized()
	if r.Start.Line < 1 || r.End.Line > len(b.lines) {
		return fmt.Errorf("edit %d:%d-%d:%d in %d-line document: %w",
			r.Start.Line, r.Start.Column, r.End.Line, r.End.Column, len(b.lines), ErrInvalidPosition)
	}
	startLine := b.lines[r.Start.Line-1]
	endLine := b.lines[r.End.Line-1]
	if r.Start.Column < 1 || r.Start.Column > len(startLine)+1 ||
		r.End.Column < 1 || r.End.Column > len(endLine)+1 {
		return fmt.Errorf("edit %d:%d-%d:%d: column out of range: %w",
			r.Start.Line, r.Start.Column, r.End.Line, r.End.Column, ErrInvalidPosition)
	}

	prefix := startLine[:r.Start.Column-1]
	suffix := endLine[r.End.Column-1:]
	mid := splitLines(e.NewText)

	replacement := make([]string, 0, len(mid))
	if len(mid) == 1 {
		replacement = append(replacement, prefix+mid[0]+suffix)
	} else {
		replacement = append(replacement, prefix+mid[0])
		replacement = append(replacement, mid[1:len(mid)-1]...)
		replacement = append(replacement, mid[len(mid)-1]+suffix)
	}

	out := make([]string, 0, len(b.lines)+len(replacement))
	out = append(out, b.lines[:r.Start.Line-1]...)
	out = append(out, replacement...)
	out = append(out, b.lines[r.End.Line:]...)
	b.lines = out
	return nil
}

// BufferStore is a uri-keyed collection of open buffers. It satisfies
// DocumentProvider, making it the reference editor collaborator for a
// Tracker.
type BufferStore struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewBufferStore creates an empty store.
func NewBufferStore() *BufferStore {
	return &BufferStore{buffers: make(map[string]*Buffer)}
}

// Open creates (or replaces) the buffer for uri with the given text.
func (s *BufferStore) Open(uri, text string) *Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := NewBuffer(text)
	s.buffers[uri] = b
	return b
}

// Get returns the open buffer for uri.
func (s *BufferStore) Get(uri string) (*Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buffers[uri]
	return b, ok
}

// Close removes the buffer for uri.
func (s *BufferStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buffers, uri)
}

// Edit applies a batch to the buffer for uri.
func (s *BufferStore) Edit(uri string, edits []Edit) error {
	b, ok := s.Get(uri)
	if !ok {
		return fmt.Errorf("%s: %w", uri, ErrDocumentNotOpen)
	}
	return b.ApplyEdits(edits)
}

// Text implements DocumentProvider.
func (s *BufferStore) Text(uri string) (string, bool) {
	b, ok := s.Get(uri)
	if !ok {
		return "", false
	}
	return b.Text(), true
}
