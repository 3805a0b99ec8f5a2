// codetrack-repl is an interactive demo of the provenance tracker: it
// plays the roles of editor and execution engine at once, so edits and
// submissions can be typed in by hand and the resulting bindings
// inspected.
package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"codetrack"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// REPL holds the state of the interactive session.
type REPL struct {
	tracker *codetrack.Tracker
	store   *codetrack.BufferStore
	uri     string
	log     *charmlog.Logger
	reader  *bufio.Reader
}

func main() {
	var verbose bool

	root := &cobra.Command{
		Use:   "codetrack-repl",
		Short: "Interactive demo of the code provenance tracker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(verbose)
		},
	}
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "trace tracker activity")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(verbose bool) error {
	logger := charmlog.New(os.Stderr)
	if verbose {
		logger.SetLevel(charmlog.DebugLevel)
	}

	store := codetrack.NewBufferStore()
	tracker, err := codetrack.New(codetrack.Options{
		Provider: store,
		Logger:   slog.New(logger),
	})
	if err != nil {
		return err
	}

	fmt.Println("Codetrack REPL - Provenance Tracker Demo")
	fmt.Println("Type 'help' for available commands, 'quit' to exit")
	fmt.Println()

	repl := &REPL{
		tracker: tracker,
		store:   store,
		log:     logger,
		reader:  bufio.NewReader(os.Stdin),
	}

	for {
		fmt.Print("codetrack> ")
		input, err := repl.reader.ReadString('\n')
		if err != nil {
			fmt.Println("\nGoodbye!")
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !repl.handleCommand(input) {
			return nil
		}
	}
}

func (r *REPL) handleCommand(input string) bool {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return true
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help":
		r.printHelp()

	case "quit", "exit":
		fmt.Println("Goodbye!")
		return false

	case "open":
		r.cmdOpen(args)

	case "close":
		r.cmdClose()

	case "show", "dump":
		r.cmdShow()

	case "segments":
		r.cmdSegments()

	case "submit":
		r.cmdSubmit(args)

	case "edit":
		r.cmdEdit(args)

	case "delete":
		r.cmdDelete(args)

	case "cells":
		r.cmdCells()

	case "all":
		r.cmdAll()

	case "clear":
		r.tracker.ClearAll()
		fmt.Println("History cleared for all documents")

	case "stats":
		r.cmdStats()

	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}

	return true
}

func (r *REPL) printHelp() {
	help := `
Available Commands:
-------------------

DOCUMENT OPERATIONS:
  open <uri>              Open a document, reading its text line by line
                          from the terminal (finish with a single '.')
  close                   Close the current document
  show                    Print the document with line numbers
  segments                Print the segmenter's view of the document

EDITING:
  edit <sl> <sc> <el> <ec> <text>   Replace the half-open range with text
                                    (use \n in text for newlines)
  delete <startLine> <endLine>      Delete whole lines [start, end]

EXECUTION:
  submit <startLine> <endLine>      Submit lines [start, end] for
                                    "execution" and bind them

QUERIES:
  cells                   Show bound cells for the current document
  all                     Show bound cells for every document
  stats                   Show tracker statistics
  clear                   Clear history for all documents (kernel reset)

  help                    Show this help
  quit                    Exit
`
	fmt.Println(help)
}

func (r *REPL) cmdOpen(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: open <uri>")
		return
	}
	uri := args[0]
	fmt.Println("Enter document text, end with a single '.' on its own line:")
	var lines []string
	for {
		line, err := r.reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "." {
			break
		}
		lines = append(lines, line)
	}
	r.store.Open(uri, strings.Join(lines, "\n"))
	r.uri = uri
	fmt.Printf("Opened %s (%d lines)\n", uri, len(lines))
}

func (r *REPL) cmdClose() {
	if !r.requireDocument() {
		return
	}
	r.store.Close(r.uri)
	r.tracker.CloseDocument(r.uri)
	fmt.Printf("Closed %s\n", r.uri)
	r.uri = ""
}

func (r *REPL) cmdShow() {
	if !r.requireDocument() {
		return
	}
	buf, ok := r.store.Get(r.uri)
	if !ok {
		return
	}
	summary, _ := r.tracker.Query(r.uri)
	bound := make(map[int]codetrack.CellInfo)
	for _, c := range summary.Cells {
		for n := c.StartLine; n <= c.EndLine; n++ {
			bound[n] = c
		}
	}
	fmt.Println(headerStyle.Render(r.uri))
	for n := 1; n <= buf.LineCount(); n++ {
		line, _ := buf.Line(n)
		prefix := dimStyle.Render(fmt.Sprintf("%4d  ", n))
		if c, ok := bound[n]; ok {
			fmt.Printf("%s%s %s\n", prefix, line, cellStyle.Render(fmt.Sprintf("  [%d]", c.ExecutionCount)))
		} else {
			fmt.Printf("%s%s\n", prefix, line)
		}
	}
}

func (r *REPL) cmdSegments() {
	if !r.requireDocument() {
		return
	}
	text, _ := r.store.Text(r.uri)
	seg := codetrack.NewMarkerSegmenter()
	for i, s := range seg.Segment(text) {
		fmt.Printf("segment %d: lines %d-%d\n%s\n", i+1, s.StartLine, s.EndLine, dimStyle.Render(s.Text))
	}
}

func (r *REPL) cmdSubmit(args []string) {
	if !r.requireDocument() {
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: submit <startLine> <endLine>")
		return
	}
	start, err1 := strconv.Atoi(args[0])
	end, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || start < 1 || end < start {
		fmt.Println("Invalid line range")
		return
	}
	buf, ok := r.store.Get(r.uri)
	if !ok {
		return
	}
	var lines []string
	for n := start; n <= end; n++ {
		line, ok := buf.Line(n)
		if !ok {
			fmt.Printf("Line %d out of range\n", n)
			return
		}
		lines = append(lines, line)
	}
	res := r.tracker.Submit(r.uri, strings.Join(lines, "\n"), start, "")
	if res.Bound {
		fmt.Printf("Bound at lines %d-%d, execution count %d\n",
			res.Span.Start, res.Span.End, res.Fragment.ExecutionCount)
	} else {
		fmt.Println("Recorded, but not bound to any position")
	}
}

func (r *REPL) cmdEdit(args []string) {
	if !r.requireDocument() {
		return
	}
	if len(args) < 4 {
		fmt.Println("Usage: edit <startLine> <startCol> <endLine> <endCol> [text]")
		return
	}
	nums := make([]int, 4)
	for i := 0; i < 4; i++ {
		n, err := strconv.Atoi(args[i])
		if err != nil {
			fmt.Printf("Invalid number: %s\n", args[i])
			return
		}
		nums[i] = n
	}
	text := strings.ReplaceAll(strings.Join(args[4:], " "), `\n`, "\n")
	r.applyEdit(codetrack.Edit{
		Range: codetrack.Range{
			Start: codetrack.Position{Line: nums[0], Column: nums[1]},
			End:   codetrack.Position{Line: nums[2], Column: nums[3]},
		},
		NewText: text,
	})
}

func (r *REPL) cmdDelete(args []string) {
	if !r.requireDocument() {
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: delete <startLine> <endLine>")
		return
	}
	start, err1 := strconv.Atoi(args[0])
	end, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		fmt.Println("Invalid line range")
		return
	}
	buf, ok := r.store.Get(r.uri)
	if !ok {
		return
	}
	if end >= buf.LineCount() {
		// Deleting the trailing lines: consume the newline before them.
		last, _ := buf.Line(buf.LineCount())
		r.applyEdit(codetrack.Edit{
			Range: codetrack.Range{
				Start: codetrack.Position{Line: start, Column: 1},
				End:   codetrack.Position{Line: buf.LineCount(), Column: len(last) + 1},
			},
		})
		return
	}
	r.applyEdit(codetrack.Edit{
		Range: codetrack.Range{
			Start: codetrack.Position{Line: start, Column: 1},
			End:   codetrack.Position{Line: end + 1, Column: 1},
		},
	})
}

func (r *REPL) applyEdit(e codetrack.Edit) {
	if err := r.store.Edit(r.uri, []codetrack.Edit{e}); err != nil {
		r.log.Error("edit rejected", "err", err)
		return
	}
	r.tracker.ApplyEdits(r.uri, []codetrack.Edit{e})
	fmt.Println("Edit applied")
}

func (r *REPL) cmdCells() {
	if !r.requireDocument() {
		return
	}
	summary, ok := r.tracker.Query(r.uri)
	if !ok || len(summary.Cells) == 0 {
		fmt.Println("No bound cells")
		return
	}
	printSummary(summary)
}

func (r *REPL) cmdAll() {
	all := r.tracker.QueryAll()
	if len(all) == 0 {
		fmt.Println("No tracked documents")
		return
	}
	for _, summary := range all {
		printSummary(summary)
	}
}

func printSummary(summary codetrack.DocumentSummary) {
	fmt.Println(headerStyle.Render(summary.URI))
	for _, c := range summary.Cells {
		fmt.Printf("  lines %3d-%-3d  count %-3d  %s\n",
			c.StartLine, c.EndLine, c.ExecutionCount, dimStyle.Render(c.ID))
	}
}

func (r *REPL) cmdStats() {
	st := r.tracker.Stats()
	fmt.Printf("Documents:              %d\n", st.Documents)
	fmt.Printf("Fragments:              %d\n", st.Fragments)
	fmt.Printf("Bound entries:          %d\n", st.BoundEntries)
	fmt.Printf("Submissions:            %d\n", st.Submissions)
	fmt.Printf("Edit batches:           %d\n", st.EditBatches)
	fmt.Printf("Shifts:                 %d\n", st.Shifts)
	fmt.Printf("Invalidations:          %d\n", st.Invalidations)
	fmt.Printf("Resurrections:          %d\n", st.Resurrections)
	fmt.Printf("Re-derivations:         %d (skipped %d)\n", st.Rederivations, st.RederivationsSkipped)
	fmt.Printf("Segment cache:          %d hits, %d misses\n", st.SegmentCacheHits, st.SegmentCacheMisses)
}

func (r *REPL) requireDocument() bool {
	if r.uri == "" {
		fmt.Println("No document open. Use 'open <uri>' first.")
		return false
	}
	return true
}
