// codetrack-bench is a stress test for the provenance tracker. It
// builds a large cell-structured document, submits every cell, then
// replays a synthetic keystroke stream and measures how the tracker
// keeps up.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"

	"codetrack"
)

const (
	cellCount      = 2000
	linesPerCell   = 5
	keystrokes     = 50000
	editBatchSize  = 3
	benchmarkSeed  = 1
	benchmarkURI   = "bench:///document.py"
	restoredChecks = 200
)

type BenchResult struct {
	Name     string
	Duration time.Duration
	Ops      int
	Extra    string
}

func (r BenchResult) String() string {
	if r.Ops > 0 {
		opsPerSec := float64(r.Ops) / r.Duration.Seconds()
		if r.Extra != "" {
			return fmt.Sprintf("%-40s %12v  (%d ops, %.2f ops/sec) %s", r.Name, r.Duration.Round(time.Millisecond), r.Ops, opsPerSec, r.Extra)
		}
		return fmt.Sprintf("%-40s %12v  (%d ops, %.2f ops/sec)", r.Name, r.Duration.Round(time.Millisecond), r.Ops, opsPerSec)
	}
	if r.Extra != "" {
		return fmt.Sprintf("%-40s %12v  %s", r.Name, r.Duration.Round(time.Millisecond), r.Extra)
	}
	return fmt.Sprintf("%-40s %12v", r.Name, r.Duration.Round(time.Millisecond))
}

func main() {
	logger := charmlog.New(os.Stderr)

	fmt.Println("Codetrack Benchmark and Stress Test")
	fmt.Println("===================================")
	fmt.Printf("Cells: %d (%d lines each)\n", cellCount, linesPerCell)
	fmt.Printf("Keystrokes: %d\n", keystrokes)
	fmt.Printf("Go version: %s\n", runtime.Version())
	fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
	fmt.Println()

	rng := rand.New(rand.NewSource(benchmarkSeed))
	store := codetrack.NewBufferStore()
	tracker, err := codetrack.New(codetrack.Options{
		Provider:         store,
		SegmentCacheSize: 256,
	})
	if err != nil {
		logger.Fatal("tracker init failed", "err", err)
	}

	var results []BenchResult

	// Build the document.
	start := time.Now()
	doc, cellTexts := buildDocument()
	store.Open(benchmarkURI, doc)
	results = append(results, BenchResult{
		Name:     "Build document",
		Duration: time.Since(start),
		Extra:    fmt.Sprintf("%d lines", strings.Count(doc, "\n")+1),
	})

	// Submit every cell.
	start = time.Now()
	bound := 0
	for i, text := range cellTexts {
		res := tracker.Submit(benchmarkURI, text, 2+i*(linesPerCell+1), "")
		if res.Bound {
			bound++
		}
	}
	results = append(results, BenchResult{
		Name:     "Submit all cells",
		Duration: time.Since(start),
		Ops:      cellCount,
		Extra:    fmt.Sprintf("%d bound", bound),
	})

	// Keystroke stream: single-character inserts at random positions.
	start = time.Now()
	buf, _ := store.Get(benchmarkURI)
	for i := 0; i < keystrokes; i++ {
		line := 1 + rng.Intn(buf.LineCount())
		content, _ := buf.Line(line)
		col := 1 + rng.Intn(len(content)+1)
		e := codetrack.Edit{
			Range:   codetrack.Range{Start: codetrack.Position{Line: line, Column: col}, End: codetrack.Position{Line: line, Column: col}},
			NewText: "x",
		}
		if err := buf.ApplyEdits([]codetrack.Edit{e}); err != nil {
			logger.Fatal("edit failed", "err", err)
		}
		tracker.ApplyEdits(benchmarkURI, []codetrack.Edit{e})
	}
	results = append(results, BenchResult{
		Name:     "Single keystrokes",
		Duration: time.Since(start),
		Ops:      keystrokes,
	})

	// Multi-edit batches against one snapshot: line insertions spread
	// over the document.
	start = time.Now()
	batches := keystrokes / 10
	for i := 0; i < batches; i++ {
		lineCount := buf.LineCount()
		batch := make([]codetrack.Edit, 0, editBatchSize)
		used := map[int]bool{}
		for len(batch) < editBatchSize {
			line := 1 + rng.Intn(lineCount)
			if used[line] {
				continue
			}
			used[line] = true
			batch = append(batch, codetrack.Edit{
				Range:   codetrack.Range{Start: codetrack.Position{Line: line, Column: 1}, End: codetrack.Position{Line: line, Column: 1}},
				NewText: "# pad\n",
			})
		}
		if err := buf.ApplyEdits(batch); err != nil {
			logger.Fatal("batch failed", "err", err)
		}
		tracker.ApplyEdits(benchmarkURI, batch)
	}
	results = append(results, BenchResult{
		Name:     "Multi-edit batches",
		Duration: time.Since(start),
		Ops:      batches,
		Extra:    fmt.Sprintf("%d edits each", editBatchSize),
	})

	// Resurrection: break a surviving entry, then restore it.
	start = time.Now()
	resurrected := 0
	for i := 0; i < restoredChecks; i++ {
		summary, _ := tracker.Query(benchmarkURI)
		if len(summary.Cells) == 0 {
			break
		}
		cell := summary.Cells[rng.Intn(len(summary.Cells))]
		breakEdit := codetrack.Edit{
			Range:   codetrack.Range{Start: codetrack.Position{Line: cell.StartLine, Column: 1}, End: codetrack.Position{Line: cell.StartLine, Column: 1}},
			NewText: "?",
		}
		restoreEdit := codetrack.Edit{
			Range:   codetrack.Range{Start: codetrack.Position{Line: cell.StartLine, Column: 1}, End: codetrack.Position{Line: cell.StartLine, Column: 2}},
			NewText: "",
		}
		_ = buf.ApplyEdits([]codetrack.Edit{breakEdit})
		tracker.ApplyEdits(benchmarkURI, []codetrack.Edit{breakEdit})
		_ = buf.ApplyEdits([]codetrack.Edit{restoreEdit})
		tracker.ApplyEdits(benchmarkURI, []codetrack.Edit{restoreEdit})
		resurrected++
	}
	results = append(results, BenchResult{
		Name:     "Break and restore cycles",
		Duration: time.Since(start),
		Ops:      resurrected,
	})

	fmt.Println()
	fmt.Println("Results:")
	fmt.Println("--------")
	for _, r := range results {
		fmt.Println(r)
	}

	st := tracker.Stats()
	fmt.Println()
	fmt.Println("Tracker statistics:")
	fmt.Printf("  fragments=%d boundEntries=%d\n", st.Fragments, st.BoundEntries)
	fmt.Printf("  shifts=%d invalidations=%d resurrections=%d\n", st.Shifts, st.Invalidations, st.Resurrections)
	fmt.Printf("  rederivations=%d skipped=%d\n", st.Rederivations, st.RederivationsSkipped)
	fmt.Printf("  segmentCache hits=%d misses=%d\n", st.SegmentCacheHits, st.SegmentCacheMisses)
}

// buildDocument assembles a marker-delimited document of cellCount
// cells and returns it along with each cell's raw text.
func buildDocument() (string, []string) {
	var doc strings.Builder
	cells := make([]string, 0, cellCount)
	for i := 0; i < cellCount; i++ {
		var cell strings.Builder
		for j := 0; j < linesPerCell; j++ {
			fmt.Fprintf(&cell, "value_%d_%d = %d * %d\n", i, j, i, j)
		}
		text := strings.TrimRight(cell.String(), "\n")
		cells = append(cells, text)
		doc.WriteString("#%%\n")
		doc.WriteString(text)
		doc.WriteString("\n")
	}
	return strings.TrimRight(doc.String(), "\n"), cells
}
