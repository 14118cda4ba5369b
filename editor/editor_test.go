// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package editor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/scheduler"
	"github.com/framegrace/texeledit/search"
)

func testOptions() Options {
	o := DefaultOptions()
	o.Highlight = false
	return o
}

func newEditor(t *testing.T, text string, opts Options) (*Editor, *scheduler.ManualClock) {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("screen init: %v", err)
	}
	t.Cleanup(screen.Fini)
	screen.SetSize(60, 12)

	clock := scheduler.NewManualClock(time.Unix(0, 0))
	e := New(screen, scheduler.New(clock), opts)
	t.Cleanup(e.Close)
	e.SetDocument("", text)
	return e, clock
}

// settle runs scheduled work, advancing the clock to each timer, until
// nothing is pending.
func settle(t *testing.T, e *Editor, clock *scheduler.ManualClock) {
	t.Helper()
	for range 1000 {
		wait, ok := e.Pump()
		if !ok {
			return
		}
		clock.Advance(wait)
	}
	t.Fatal("scheduler did not settle")
}

func numbered(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return strings.Join(lines, "\n")
}

func hasOverlay(e *Editor, line int, class string) bool {
	row := e.Renderer().RowForLine(line)
	if row == nil {
		return false
	}
	for _, sp := range row.Spans() {
		if sp.Overlay == class {
			return true
		}
	}
	return false
}

func overlayCount(e *Editor, line int, class string) int {
	n := 0
	if row := e.Renderer().RowForLine(line); row != nil {
		for _, sp := range row.Spans() {
			if sp.Overlay == class {
				n++
			}
		}
	}
	return n
}

func key(k tcell.Key) *tcell.EventKey { return tcell.NewEventKey(k, 0, tcell.ModNone) }

func typeText(e *Editor, s string) {
	for _, r := range s {
		e.HandleKey(tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone))
	}
}

func TestEditor_OpenHighlightsAndSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	e, clock := newEditor(t, "", DefaultOptions())
	if err := e.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	settle(t, e, clock)

	classes := 0
	for _, sp := range e.Renderer().RowForLine(0).Spans() {
		if sp.Class != "" {
			classes++
		}
	}
	if classes == 0 {
		t.Error("expected Go tokens on the first line")
	}

	if _, err := e.Edit(buffer.TextRange{StartLine: 2, EndLine: 2}, "// x\n"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !e.Modified() {
		t.Error("expected the document to be modified")
	}
	if err := e.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(data); got != "package main\n\n// x\nfunc main() {}\n" {
		t.Errorf("unexpected saved content %q", got)
	}
	if e.Modified() {
		t.Error("expected Save to clear the modified flag")
	}
}

func TestEditor_OpenMissingFileCreatesOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.txt")
	e, _ := newEditor(t, "", testOptions())
	if err := e.Open(path); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if e.Buffer().LineCount() != 0 {
		t.Fatalf("expected an empty document, got %d lines", e.Buffer().LineCount())
	}
	typeText(e, "hey")
	if err := e.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != "hey" {
		t.Errorf("unexpected saved content %q", data)
	}

	scratch, _ := newEditor(t, "x", testOptions())
	if err := scratch.Save(); !errors.Is(err, ErrNoPath) {
		t.Errorf("expected ErrNoPath, got %v", err)
	}
}

func TestEditor_TypingAndDeleting(t *testing.T) {
	e, _ := newEditor(t, "", testOptions())
	typeText(e, "hi")
	e.HandleKey(key(tcell.KeyEnter))
	typeText(e, "x")
	e.HandleKey(key(tcell.KeyBackspace2))

	if got := e.Buffer().Text(); got != "hi\n" {
		t.Errorf("expected %q, got %q", "hi\n", got)
	}
	if got := e.Cursor(); got != (buffer.Position{Line: 1}) {
		t.Errorf("expected cursor at 1:0, got %s", got)
	}
	if !e.Modified() {
		t.Error("expected typing into an empty document to mark it modified")
	}

	// Backspace at column 0 joins lines; Delete at the end joins the next.
	e.HandleKey(key(tcell.KeyBackspace2))
	if got := e.Buffer().Text(); got != "hi" {
		t.Errorf("expected join, got %q", got)
	}
	e.HandleKey(key(tcell.KeyHome))
	e.HandleKey(key(tcell.KeyDelete))
	if got := e.Buffer().Text(); got != "i" {
		t.Errorf("expected forward delete, got %q", got)
	}
	if e.HandleKey(key(tcell.KeyCtrlQ)) != true {
		t.Error("expected Ctrl-Q to quit")
	}
}

func TestEditor_CursorSnapsOverSurrogatePairs(t *testing.T) {
	e, _ := newEditor(t, "a😀b", testOptions())
	e.MoveRight(false)
	e.MoveRight(false)
	if got := e.Cursor().Column; got != 3 {
		t.Errorf("expected the emoji stepped over as one character, got column %d", got)
	}
	e.MoveTo(buffer.Position{Line: 0, Column: 2}, false)
	if got := e.Cursor().Column; got != 1 {
		t.Errorf("expected a column inside the pair to snap left, got %d", got)
	}
	e.MoveRight(false)
	if err := e.DeleteBackward(); err != nil {
		t.Fatalf("DeleteBackward: %v", err)
	}
	if got := e.Buffer().Text(); got != "ab" {
		t.Errorf("expected the whole pair deleted, got %q", got)
	}
}

func TestEditor_SelectionAndTokenHighlight(t *testing.T) {
	e, _ := newEditor(t, "foo bar foo\nfoofoo foo", testOptions())

	if !e.SelectWord() {
		t.Fatal("expected a word under the cursor")
	}
	sel, ok := e.Selection()
	if !ok || sel != (buffer.TextRange{EndColumn: 3}) {
		t.Fatalf("expected 0:0-0:3 selected, got %s (ok=%v)", sel, ok)
	}
	if got := e.Tokens().Word(); got != "foo" {
		t.Fatalf("expected foo highlighted, got %q", got)
	}
	if n := overlayCount(e, 0, TokenClass); n != 2 {
		t.Errorf("expected two occurrences on line 0, got %d", n)
	}
	if n := overlayCount(e, 1, TokenClass); n != 1 {
		t.Errorf("expected only the whole word on line 1, got %d", n)
	}

	e.HandleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModShift))
	if got := e.Tokens().Word(); got != "" {
		t.Errorf("expected a selection with a trailing space to clear the highlight, got %q", got)
	}
	if !hasOverlay(e, 0, SelectionClass) {
		t.Error("expected the selection painted")
	}

	// Typing replaces the selection.
	typeText(e, "X")
	if got, _ := e.Buffer().Line(0); got != "Xbar foo" {
		t.Errorf("expected selection replaced, got %q", got)
	}
	if _, ok := e.Selection(); ok {
		t.Error("expected the selection cleared after typing")
	}
}

func TestEditor_SearchNavigation(t *testing.T) {
	e, clock := newEditor(t, "x foo\nfoo\nbar\nfoo bar foo", testOptions())
	if err := e.Search(search.Query{Pattern: "foo"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !e.Searching() {
		t.Fatal("expected the search to run on the scheduler")
	}
	settle(t, e, clock)

	want := func(line, col, ordinal int) {
		t.Helper()
		if got := e.Cursor(); got != (buffer.Position{Line: line, Column: col}) {
			t.Errorf("expected cursor at %d:%d, got %s", line, col, got)
		}
		mark, ok := e.Renderer().Mark()
		if !ok || mark.Start() != e.Cursor() {
			t.Errorf("expected the mark on the current match, got %s (ok=%v)", mark, ok)
		}
		if msg := fmt.Sprintf("Match %d of 4", ordinal); !strings.HasPrefix(e.Message(), msg) {
			t.Errorf("expected message %q, got %q", msg, e.Message())
		}
	}
	want(0, 2, 1)
	e.NextMatch()
	want(1, 0, 2)
	e.PreviousMatch()
	want(0, 2, 1)
	e.HandleKey(tcell.NewEventKey(tcell.KeyF3, 0, tcell.ModShift))
	want(3, 8, 4)

	if !hasOverlay(e, 1, SearchClass) || hasOverlay(e, 2, SearchClass) {
		t.Error("expected every occurrence highlighted and nothing else")
	}

	e.HandleKey(key(tcell.KeyEscape))
	if e.Matches().Len() != 0 || hasOverlay(e, 1, SearchClass) {
		t.Error("expected Escape to clear the search")
	}
	if _, ok := e.Renderer().Mark(); ok {
		t.Error("expected the mark cleared")
	}
}

func TestEditor_SearchPrompt(t *testing.T) {
	e, clock := newEditor(t, numbered(30), testOptions())
	e.HandleKey(key(tcell.KeyCtrlF))
	typeText(e, "line 2")
	e.Draw()
	if got := e.Surface().Status(); got != "Find: line 2" {
		t.Errorf("expected the prompt on the status line, got %q", got)
	}
	e.HandleKey(key(tcell.KeyEnter))
	settle(t, e, clock)
	if got := e.Matches().Len(); got != 11 {
		t.Errorf("expected 11 matches, got %d", got)
	}

	e.HandleKey(key(tcell.KeyCtrlG))
	typeText(e, "25")
	e.HandleKey(key(tcell.KeyEnter))
	if got := e.Cursor().Line; got != 24 {
		t.Errorf("expected go-to-line to land on line 24, got %d", got)
	}
	if top := e.Surface().ScrollTop(); top != 19 {
		t.Errorf("expected line 24 scrolled as far up as the document allows, top %d", top)
	}

	e.HandleKey(key(tcell.KeyCtrlR))
	typeText(e, "(")
	e.HandleKey(key(tcell.KeyEnter))
	if !strings.Contains(e.Message(), "invalid pattern") {
		t.Errorf("expected the regexp error reported, got %q", e.Message())
	}
}

func TestEditor_BreakpointsFollowEdits(t *testing.T) {
	e, _ := newEditor(t, numbered(20), testOptions())
	for _, line := range []int{3, 7, 7} {
		if err := e.AddBreakpoint(line); err != nil {
			t.Fatalf("AddBreakpoint(%d): %v", line, err)
		}
	}
	if got := e.Breakpoints(); !slices.Equal(got, []int{3, 7}) {
		t.Fatalf("expected [3 7], got %v", got)
	}

	if _, err := e.Edit(buffer.TextRange{StartLine: 1, EndLine: 2}, ""); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got := e.Breakpoints(); !slices.Equal(got, []int{2, 6}) {
		t.Fatalf("expected breakpoints shifted to [2 6], got %v", got)
	}

	e.MoveTo(buffer.Position{Line: 2}, false)
	e.HandleKey(key(tcell.KeyF9))
	if got := e.Breakpoints(); !slices.Equal(got, []int{6}) {
		t.Fatalf("expected F9 to remove the breakpoint on line 2, got %v", got)
	}

	if _, err := e.Edit(buffer.TextRange{StartLine: 6, EndLine: 7}, ""); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if got := e.Breakpoints(); len(got) != 0 {
		t.Errorf("expected the breakpoint deleted with its line, got %v", got)
	}
	if e.RemoveBreakpoint(6) {
		t.Error("expected no breakpoint to remove")
	}
	if err := e.AddBreakpoint(100); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

func TestEditor_ExecutionLine(t *testing.T) {
	e, _ := newEditor(t, numbered(20), testOptions())
	if err := e.SetExecutionLine(5); err != nil {
		t.Fatalf("SetExecutionLine: %v", err)
	}
	if line, ok := e.ExecutionLine(); !ok || line != 5 {
		t.Fatalf("expected execution line 5, got %d (ok=%v)", line, ok)
	}
	if !hasOverlay(e, 5, ExecutionClass) {
		t.Error("expected the execution line highlighted")
	}

	if err := e.SetExecutionLine(8); err != nil {
		t.Fatalf("SetExecutionLine: %v", err)
	}
	if len(e.Renderer().DecorationsForLine(5)) != 0 || hasOverlay(e, 5, ExecutionClass) {
		t.Error("expected the previous execution line cleared")
	}
	ds := e.Renderer().DecorationsForLine(8)
	if len(ds) != 1 {
		t.Fatalf("expected one decoration on line 8, got %d", len(ds))
	}
	if _, ok := ds[0].Payload.(ExecutionMarker); !ok {
		t.Errorf("unexpected payload %T", ds[0].Payload)
	}

	if err := e.SetExecutionLine(-1); err != nil {
		t.Fatalf("SetExecutionLine(-1): %v", err)
	}
	if _, ok := e.ExecutionLine(); ok {
		t.Error("expected no execution line")
	}
	if err := e.SetExecutionLine(50); err == nil {
		t.Error("expected an error for a line past the end")
	}
}

func TestEditor_HighlightLineExpires(t *testing.T) {
	opts := testOptions()
	opts.FlashDuration = time.Second
	e, clock := newEditor(t, numbered(20), opts)

	if err := e.HighlightLine(4); err != nil {
		t.Fatalf("HighlightLine: %v", err)
	}
	if !hasOverlay(e, 4, FlashClass) {
		t.Fatal("expected line 4 highlighted")
	}
	clock.Advance(500 * time.Millisecond)
	e.Pump()
	if !hasOverlay(e, 4, FlashClass) {
		t.Error("expected the highlight to last the flash duration")
	}
	clock.Advance(500 * time.Millisecond)
	e.Pump()
	if hasOverlay(e, 4, FlashClass) {
		t.Error("expected the highlight removed after the flash duration")
	}
	if err := e.HighlightLine(20); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange, got %v", err)
	}
}

type fakeLineIndex struct {
	version int64
	lines   []string
	snaps   int
	calls   int
}

func (f *fakeLineIndex) Snapshot(version int64, lines []string) {
	f.version = version
	f.lines = lines
	f.snaps++
}

func (f *fakeLineIndex) IndexedVersion() int64 { return f.version }

func (f *fakeLineIndex) CandidateLines(query string) ([]int, error) {
	f.calls++
	var out []int
	for i, l := range f.lines {
		if strings.Contains(l, query) {
			out = append(out, i)
		}
	}
	return out, nil
}

func TestEditor_SnapshotsLineIndex(t *testing.T) {
	opts := testOptions()
	opts.Search.IndexMinLines = 0
	opts.SnapshotDelay = 100 * time.Millisecond
	e, clock := newEditor(t, "a\nb", opts)

	ix := &fakeLineIndex{version: -1}
	e.AttachLineIndex(ix)
	clock.Advance(50 * time.Millisecond)
	e.Pump()
	typeText(e, "x")
	clock.Advance(50 * time.Millisecond)
	e.Pump()
	if ix.snaps != 0 {
		t.Fatal("expected the snapshot to wait for edits to settle")
	}
	clock.Advance(50 * time.Millisecond)
	e.Pump()
	if ix.snaps != 1 || ix.version != e.Buffer().Version() || !slices.Equal(ix.lines, []string{"xa", "b"}) {
		t.Fatalf("expected one snapshot of the current version, got %d snaps of %v", ix.snaps, ix.lines)
	}

	if err := e.Search(search.Query{Pattern: "b"}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	settle(t, e, clock)
	if ix.calls != 1 || e.Matches().Len() != 1 {
		t.Errorf("expected the search prefiltered by the index, calls=%d matches=%d", ix.calls, e.Matches().Len())
	}
}

func TestEditor_MouseAndResize(t *testing.T) {
	e, clock := newEditor(t, numbered(100), testOptions())

	e.HandleMouse(tcell.NewEventMouse(0, 0, tcell.WheelDown, tcell.ModNone))
	if top := e.Surface().ScrollTop(); top != wheelStep {
		t.Errorf("expected wheel to scroll %d rows, top %d", wheelStep, top)
	}
	if !e.Renderer().Scrolling() {
		t.Error("expected the repaint debounced while scrolling")
	}
	settle(t, e, clock)

	// Gutter is five cells wide for three-digit line numbers.
	e.HandleMouse(tcell.NewEventMouse(7, 2, tcell.Button1, tcell.ModNone))
	if got := e.Cursor(); got != (buffer.Position{Line: 5, Column: 2}) {
		t.Errorf("expected click to land on 5:2, got %s", got)
	}

	e.HandleResize()
	e.Draw()
	if !strings.HasPrefix(e.Surface().Status(), "[scratch]  6:3  100 lines") {
		t.Errorf("unexpected status %q", e.Surface().Status())
	}
}

func TestEditor_PasteInsertsText(t *testing.T) {
	e, _ := newEditor(t, "ab", testOptions())
	e.MoveRight(false)
	e.HandlePaste([]byte("1\n2"))
	if got := e.Buffer().Text(); got != "a1\n2b" {
		t.Errorf("unexpected text %q", got)
	}
	if got := e.Cursor(); got != (buffer.Position{Line: 1, Column: 1}) {
		t.Errorf("expected cursor after the paste, got %s", got)
	}
}
