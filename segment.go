package codetrack

import (
	"regexp"
	"strings"
)

// Segment is one marker-delimited chunk of a document. StartLine and
// EndLine (1-based, inclusive) cover the retained content lines: the
// marker line itself and blank lines at either edge are excluded. Text
// is the normalized content of those lines.
type Segment struct {
	StartLine int
	EndLine   int
	Text      string
}

// Segmenter splits document text into cells and normalizes fragment text
// so that submitted code compares equal to segmenter output. Alternative
// delimiter conventions or language-aware strategies can be substituted
// without touching the tracker or its range math.
type Segmenter interface {
	// Segment returns the document's cells in order. A document without
	// any marker yields a single segment spanning the whole document.
	// Cells with no content are omitted.
	Segment(text string) []Segment

	// Normalize applies the same marker-stripping and decommenting rules
	// to a raw piece of text, so identical code always produces identical
	// bytes regardless of how it appeared in the editor.
	Normalize(text string) string
}

// Marker and magic patterns for the default convention: a comment line
// beginning a cell (`#%%`, `# %%`), and "cell magic" invocations that
// editors keep commented out for syntax highlighting (`# %matplotlib`,
// `#!pip install ...`).
var (
	defaultCellMarker = regexp.MustCompile(`^#\s*%%`)
	magicComment      = regexp.MustCompile(`^(\s*)#\s?([%!].*)$`)
)

// MarkerSegmenter implements the default cell-marker convention.
type MarkerSegmenter struct {
	marker *regexp.Regexp
}

// NewMarkerSegmenter returns a segmenter using the standard `#%%` marker.
func NewMarkerSegmenter() *MarkerSegmenter {
	return &MarkerSegmenter{marker: defaultCellMarker}
}

// NewMarkerSegmenterPattern returns a segmenter with a custom marker
// pattern. The pattern is matched against whole lines.
func NewMarkerSegmenterPattern(pattern *regexp.Regexp) *MarkerSegmenter {
	return &MarkerSegmenter{marker: pattern}
}

// Segment scans the document line by line. A marker line closes the
// previous segment and opens a new one starting on the following line.
func (s *MarkerSegmenter) Segment(text string) []Segment {
	lines := splitLines(text)
	var segs []Segment
	start := 1
	for i, line := range lines {
		if s.marker.MatchString(line) {
			if seg, ok := s.buildSegment(lines, start, i); ok {
				segs = append(segs, seg)
			}
			start = i + 2
		}
	}
	if seg, ok := s.buildSegment(lines, start, len(lines)); ok {
		segs = append(segs, seg)
	}
	return segs
}

// buildSegment assembles the segment covering lines [startLine, endLine]
// (1-based, inclusive), trimming blank edge lines and decommenting
// magics. Returns false if nothing remains.
func (s *MarkerSegmenter) buildSegment(lines []string, startLine, endLine int) (Segment, bool) {
	for startLine <= endLine && isBlank(lines[startLine-1]) {
		startLine++
	}
	for endLine >= startLine && isBlank(lines[endLine-1]) {
		endLine--
	}
	if startLine > endLine {
		return Segment{}, false
	}
	content := make([]string, 0, endLine-startLine+1)
	for n := startLine; n <= endLine; n++ {
		content = append(content, decommentMagic(lines[n-1]))
	}
	return Segment{StartLine: startLine, EndLine: endLine, Text: strings.Join(content, "\n")}, true
}

// Normalize applies the segmentation rules to raw text as a whole:
// marker lines are dropped, commented-out magics are uncommented, and
// blank lines at either edge are trimmed. Interior blank lines are kept
// verbatim, so a multi-cell submission normalizes to the same bytes as
// the document span it was taken from.
func (s *MarkerSegmenter) Normalize(text string) string {
	lines := splitLines(text)
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if s.marker.MatchString(line) {
			continue
		}
		kept = append(kept, decommentMagic(line))
	}
	for len(kept) > 0 && isBlank(kept[0]) {
		kept = kept[1:]
	}
	for len(kept) > 0 && isBlank(kept[len(kept)-1]) {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, "\n")
}

// decommentMagic strips the single leading comment character from a
// commented-out magic invocation so it compares equal to its executed
// form.
func decommentMagic(line string) string {
	if m := magicComment.FindStringSubmatch(line); m != nil {
		return m[1] + m[2]
	}
	return line
}

// splitLines splits text into lines, tolerating CRLF endings. An empty
// document yields a single empty line.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(text, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
