package codetrack

// Fragment records one piece of code that was submitted for execution.
// Text is the normalized content and the identity key: two submissions
// with byte-identical normalized text are the same fragment.
type Fragment struct {
	// Text is the exact normalized content of the fragment.
	Text string

	// ExecutionCount reflects the most recent submission of this text.
	// It only resets when the whole history is cleared.
	ExecutionCount int

	// ID is the identifier supplied with (or minted for) the most recent
	// submission of this text.
	ID string
}

// history is the content-addressed store of every fragment ever
// submitted for one document. It only grows, except on an explicit
// clear.
type history struct {
	byText map[string]*Fragment
}

func newHistory() *history {
	return &history{byText: make(map[string]*Fragment)}
}

// record registers a submission of the given normalized text. An
// existing fragment has its count advanced and its id replaced; an
// unknown text becomes a new fragment with count 1. When the caller
// tracks execution order itself it may pass count > 0 to set the count
// directly.
func (h *history) record(text, id string, count int) *Fragment {
	if f, ok := h.byText[text]; ok {
		if count > 0 {
			f.ExecutionCount = count
		} else {
			f.ExecutionCount++
		}
		f.ID = id
		return f
	}
	f := &Fragment{Text: text, ExecutionCount: 1, ID: id}
	if count > 0 {
		f.ExecutionCount = count
	}
	h.byText[text] = f
	return f
}

// lookup returns the fragment for the exact normalized text, if any.
func (h *history) lookup(text string) (*Fragment, bool) {
	f, ok := h.byText[text]
	return f, ok
}

func (h *history) size() int {
	return len(h.byText)
}

func (h *history) clear() {
	h.byText = make(map[string]*Fragment)
}
