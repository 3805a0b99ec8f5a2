// Package codetrack tracks where previously executed code fragments
// currently live inside continuously edited documents. It keeps a
// per-document history of executed fragment texts and an ordered index
// of their verified line positions, updating the index incrementally as
// edit batches arrive and re-deriving positions by exact content match
// when an edit restores previously executed text.
package codetrack

import "errors"

// Configuration errors
var (
	// ErrNoProvider indicates that Options.Provider was not supplied.
	ErrNoProvider = errors.New("document provider is required")
)

// Document errors
var (
	// ErrInvalidPosition indicates that an edit range is out of bounds
	// for the document it was applied to.
	ErrInvalidPosition = errors.New("position out of bounds")

	// ErrDocumentNotOpen indicates that the document is not open in the store.
	ErrDocumentNotOpen = errors.New("document not open")
)
