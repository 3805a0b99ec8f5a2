package codetrack

import (
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DocumentProvider supplies the current full text of open documents.
// The tracker consults it during submissions and re-derivation passes
// and never caches text independently.
type DocumentProvider interface {
	// Text returns the live content of the document, or false if the
	// document is not available.
	Text(uri string) (string, bool)
}

// ChangeHandler is called after a submission or edit batch alters a
// document's bound entries, with the fresh summary. Called outside the
// tracker's internal locks, so handlers may query the tracker.
type ChangeHandler func(DocumentSummary)

// Options configures a Tracker.
type Options struct {
	// Provider supplies live document text. Required.
	Provider DocumentProvider

	// Segmenter splits documents into cells. Defaults to the standard
	// `#%%` marker convention.
	Segmenter Segmenter

	// Logger receives debug-level tracing of binds, shifts and
	// invalidations. Defaults to a discard logger.
	Logger *slog.Logger

	// OnChange, if set, is invoked with a document's summary whenever
	// its index changes.
	OnChange ChangeHandler

	// SegmentCacheSize bounds the cache of segmentation results keyed by
	// full document text. Zero means the default of 64 entries.
	SegmentCacheSize int
}

const defaultSegmentCacheSize = 64

// Tracker maintains, for every tracked document, the history of
// submitted fragments and the live index of their verified positions.
//
// Calls for the same document are serialized; different documents are
// fully independent and may be used concurrently.
type Tracker struct {
	provider  DocumentProvider
	segmenter Segmenter
	log       *slog.Logger
	onChange  ChangeHandler
	reg       *registry
	segCache  *lru.Cache[string, []Segment]

	countersMu sync.Mutex
	counters   counters
}

type counters struct {
	Submissions          int64
	EditBatches          int64
	Shifts               int64
	Invalidations        int64
	Resurrections        int64
	Rederivations        int64
	RederivationsSkipped int64
	SegmentCacheHits     int64
	SegmentCacheMisses   int64
}

// Stats is a point-in-time snapshot of tracker activity.
type Stats struct {
	Documents    int
	Fragments    int
	BoundEntries int

	Submissions          int64
	EditBatches          int64
	Shifts               int64
	Invalidations        int64
	Resurrections        int64
	Rederivations        int64
	RederivationsSkipped int64
	SegmentCacheHits     int64
	SegmentCacheMisses   int64
}

// New creates a Tracker. Options.Provider is required.
func New(opts Options) (*Tracker, error) {
	if opts.Provider == nil {
		return nil, ErrNoProvider
	}
	if opts.Segmenter == nil {
		opts.Segmenter = NewMarkerSegmenter()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	size := opts.SegmentCacheSize
	if size <= 0 {
		size = defaultSegmentCacheSize
	}
	cache, err := lru.New[string, []Segment](size)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		provider:  opts.Provider,
		segmenter: opts.Segmenter,
		log:       opts.Logger,
		onChange:  opts.OnChange,
		reg:       newRegistry(),
		segCache:  cache,
	}, nil
}

// SubmitResult reports what a submission resolved to.
type SubmitResult struct {
	// Fragment is the history record after this submission.
	Fragment Fragment

	// Bound reports whether the fragment was located in the live
	// document. A false value is the "never-bound submission" outcome:
	// the text is recorded in history but has no current position.
	Bound bool

	// Span is the bound position when Bound is true.
	Span LineSpan
}

// Submit records that a piece of code was sent for execution and binds
// its current position in the document. Identical normalized text
// resolves to the same fragment: its execution count advances, it never
// duplicates. An empty id is replaced with a freshly minted one.
func (t *Tracker) Submit(uri, text string, believedStartLine int, id string) SubmitResult {
	return t.submit(uri, text, believedStartLine, id, 0)
}

// SubmitCounted is Submit for collaborators that track execution order
// themselves: the fragment's execution count is set to executionCount
// instead of being incremented.
func (t *Tracker) SubmitCounted(uri, text string, believedStartLine int, id string, executionCount int) SubmitResult {
	return t.submit(uri, text, believedStartLine, id, executionCount)
}

func (t *Tracker) submit(uri, raw string, believedStartLine int, id string, count int) SubmitResult {
	norm := t.segmenter.Normalize(raw)
	if norm == "" {
		return SubmitResult{}
	}
	if id == "" {
		id = uuid.NewString()
	}

	fs := t.reg.getOrCreate(uri)
	fs.mu.Lock()
	frag := fs.history.record(norm, id, count)
	res := SubmitResult{Fragment: *frag}

	if text, ok := t.provider.Text(uri); ok {
		lines := splitLines(text)
		segs := t.segments(text)
		if span, found := t.findSpan(lines, segs, &fs.index, frag, believedStartLine); found {
			fs.index.bind(frag, span)
			res.Bound = true
			res.Span = span
		} else {
			fs.index.unbind(frag)
		}
	} else {
		fs.index.unbind(frag)
	}
	summary := fs.summaryLocked()
	fs.mu.Unlock()

	t.bump(func(c *counters) { c.Submissions++ })
	t.log.Debug("submission recorded",
		"uri", uri,
		"executionCount", res.Fragment.ExecutionCount,
		"bound", res.Bound,
		"startLine", res.Span.Start,
		"endLine", res.Span.End)
	t.notify(summary)
	return res
}

// ApplyEdits processes one change notification: a batch of edits all
// expressed against the same pre-batch document snapshot. Edits are
// applied bottom-to-top so an edit's own line delta never perturbs the
// coordinates of the edits still to be processed. Documents without a
// tracked FileState are ignored.
func (t *Tracker) ApplyEdits(uri string, edits []Edit) {
	fs, ok := t.reg.get(uri)
	if !ok || len(edits) == 0 {
		return
	}

	batch := make([]Edit, len(edits))
	copy(batch, edits)
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[j].Range.normalized().Start.before(batch[i].Range.normalized().Start)
	})

	fs.mu.Lock()
	changed := false
	var shifts, invalidations int64
	for _, e := range batch {
		shifted, invalidated := fs.index.applyEdit(e)
		shifts += int64(shifted)
		invalidations += int64(len(invalidated))
		if shifted > 0 || len(invalidated) > 0 {
			changed = true
		}
		for _, entry := range invalidated {
			t.log.Debug("entry invalidated",
				"uri", uri,
				"startLine", entry.Span.Start,
				"endLine", entry.Span.End)
		}
	}

	if t.rederiveLocked(fs) {
		changed = true
	}

	var summary DocumentSummary
	if changed {
		summary = fs.summaryLocked()
	}
	fs.mu.Unlock()

	t.bump(func(c *counters) {
		c.EditBatches++
		c.Shifts += shifts
		c.Invalidations += invalidations
	})
	if changed {
		t.notify(summary)
	}
}

// rederiveLocked re-segments the live document and rebinds history
// fragments whose text is present again but currently unbound. This is
// what resurrects an annotation after "edit away, then edit back":
// identity is purely content equality, never an edit's inverse. The
// pass is skipped when every fragment is bound, since it can only ever
// add bindings for unbound fragments. Caller holds fs.mu.
func (t *Tracker) rederiveLocked(fs *FileState) bool {
	if len(fs.unboundLocked()) == 0 {
		t.bump(func(c *counters) { c.RederivationsSkipped++ })
		return false
	}
	text, ok := t.provider.Text(fs.uri)
	if !ok {
		return false
	}
	t.bump(func(c *counters) { c.Rederivations++ })

	lines := splitLines(text)
	segs := t.segments(text)
	changed := false

	// Fast path: whole segments looked up directly in history, earliest
	// match in document order winning for duplicated cell content.
	for _, seg := range segs {
		f, ok := fs.history.lookup(seg.Text)
		if !ok || fs.index.isBound(f) {
			continue
		}
		span := LineSpan{Start: seg.StartLine, End: seg.EndLine}
		if fs.index.overlapsAny(span) {
			continue
		}
		fs.index.bind(f, span)
		changed = true
		t.bump(func(c *counters) { c.Resurrections++ })
		t.log.Debug("entry rebound", "uri", fs.uri, "startLine", span.Start, "endLine", span.End)
	}

	// Fragments that were executed as a multi-cell range span several
	// segments and need the full matcher.
	for _, f := range fs.unboundLocked() {
		span, found := t.findSpan(lines, segs, &fs.index, f, 0)
		if !found || fs.index.overlapsAny(span) {
			continue
		}
		fs.index.bind(f, span)
		changed = true
		t.bump(func(c *counters) { c.Resurrections++ })
		t.log.Debug("entry rebound", "uri", fs.uri, "startLine", span.Start, "endLine", span.End)
	}
	return changed
}

// findSpan locates where a fragment's text currently lives. Single
// segments match by exact text; a fragment that was executed as a
// multi-cell range matches a run of consecutive segments whose covered
// document lines normalize to the fragment text, collapsed to one outer
// span. When several positions hold the same text, the one nearest the
// believed start line wins, then the earliest that would not evict
// another fragment's entry, then the earliest outright.
func (t *Tracker) findSpan(lines []string, segs []Segment, ix *positionIndex, frag *Fragment, believedLine int) (LineSpan, bool) {
	target := frag.Text
	var candidates []LineSpan
	for i, seg := range segs {
		if seg.Text == target {
			candidates = append(candidates, LineSpan{Start: seg.StartLine, End: seg.EndLine})
			continue
		}
		if len(seg.Text) >= len(target) || !strings.HasPrefix(target, seg.Text) {
			continue
		}
		for j := i + 1; j < len(segs); j++ {
			span := LineSpan{Start: seg.StartLine, End: segs[j].EndLine}
			joined := t.segmenter.Normalize(strings.Join(lines[span.Start-1:span.End], "\n"))
			if joined == target {
				candidates = append(candidates, span)
				break
			}
			if len(joined) >= len(target) {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return LineSpan{}, false
	}

	best := candidates[0]
	bestScore := t.spanScore(ix, frag, best, believedLine)
	for _, c := range candidates[1:] {
		if s := t.spanScore(ix, frag, c, believedLine); s < bestScore {
			best, bestScore = c, s
		}
	}
	return best, true
}

// spanScore ranks a candidate span: distance from the believed line is
// dominant, evicting another fragment's entry is penalized, document
// order breaks ties. Lower is better.
func (t *Tracker) spanScore(ix *positionIndex, frag *Fragment, span LineSpan, believedLine int) int {
	distance := 0
	if believedLine > 0 && !span.contains(believedLine) {
		d1 := span.Start - believedLine
		if d1 < 0 {
			d1 = -d1
		}
		d2 := span.End - believedLine
		if d2 < 0 {
			d2 = -d2
		}
		distance = d1
		if d2 < d1 {
			distance = d2
		}
	}
	evicts := 0
	for _, e := range ix.entries {
		if e.Fragment != frag && e.Span.overlaps(span) {
			evicts = 1
			break
		}
	}
	return distance*1_000_000 + evicts*100_000 + span.Start
}

// Query returns the summary for one tracked document.
func (t *Tracker) Query(uri string) (DocumentSummary, bool) {
	fs, ok := t.reg.get(uri)
	if !ok {
		return DocumentSummary{}, false
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.summaryLocked(), true
}

// QueryAll returns summaries for every tracked document, ordered by uri.
func (t *Tracker) QueryAll() []DocumentSummary {
	states := t.reg.all()
	out := make([]DocumentSummary, 0, len(states))
	for _, fs := range states {
		fs.mu.Lock()
		out = append(out, fs.summaryLocked())
		fs.mu.Unlock()
	}
	return out
}

// OpenDocument registers a document for tracking. Registration also
// happens implicitly on first submission; opening ahead of time matters
// only for integrations that want edit notifications accepted before
// any code has been executed.
func (t *Tracker) OpenDocument(uri string) {
	t.reg.getOrCreate(uri)
	t.log.Debug("document opened", "uri", uri)
}

// CloseDocument forgets everything about a document. Called when the
// editor closes it.
func (t *Tracker) CloseDocument(uri string) {
	t.reg.remove(uri)
	t.log.Debug("document closed", "uri", uri)
}

// ClearAll empties history and index for every tracked document. Called
// when the link between past executions and the live execution context
// is severed, such as a kernel restart. Documents stay registered.
func (t *Tracker) ClearAll() {
	states := t.reg.all()
	for _, fs := range states {
		fs.mu.Lock()
		fs.clearLocked()
		fs.mu.Unlock()
	}
	t.segCache.Purge()
	t.log.Info("execution history cleared", "documents", len(states))
}

// Stats returns a snapshot of tracker activity.
func (t *Tracker) Stats() Stats {
	st := Stats{}
	for _, fs := range t.reg.all() {
		st.Documents++
		fs.mu.Lock()
		st.Fragments += fs.history.size()
		st.BoundEntries += fs.index.size()
		fs.mu.Unlock()
	}
	t.countersMu.Lock()
	c := t.counters
	t.countersMu.Unlock()
	st.Submissions = c.Submissions
	st.EditBatches = c.EditBatches
	st.Shifts = c.Shifts
	st.Invalidations = c.Invalidations
	st.Resurrections = c.Resurrections
	st.Rederivations = c.Rederivations
	st.RederivationsSkipped = c.RederivationsSkipped
	st.SegmentCacheHits = c.SegmentCacheHits
	st.SegmentCacheMisses = c.SegmentCacheMisses
	return st
}

// segments returns the cells of the given document text, memoized on
// the exact text. Undo/redo cycles revisit identical text often enough
// for this to pay for itself.
func (t *Tracker) segments(text string) []Segment {
	if segs, ok := t.segCache.Get(text); ok {
		t.bump(func(c *counters) { c.SegmentCacheHits++ })
		return segs
	}
	segs := t.segmenter.Segment(text)
	t.segCache.Add(text, segs)
	t.bump(func(c *counters) { c.SegmentCacheMisses++ })
	return segs
}

func (t *Tracker) bump(fn func(*counters)) {
	t.countersMu.Lock()
	fn(&t.counters)
	t.countersMu.Unlock()
}

func (t *Tracker) notify(summary DocumentSummary) {
	if t.onChange != nil {
		t.onChange(summary)
	}
}
