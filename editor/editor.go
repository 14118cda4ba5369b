// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: editor/editor.go
// Summary: Editor ties a document to its renderer, search and gutter state.
//
// Architecture:
//
//	An Editor owns one LineBuffer and everything derived from it: the chunk
//	index, the viewport renderer drawing onto a tcell surface, the match
//	index with its finder, the position mapper and the optional line store
//	prefilter. All of it runs on a single cooperative scheduler; the host
//	loop calls Pump to run queued work and Draw to flush the surface.
//
//	Derived structures subscribe to the buffer themselves, so an edit made
//	through any entry point keeps chunks, rows, decorations and matches in
//	step without the editor relaying it.

package editor

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
	"github.com/framegrace/texeledit/highlight"
	"github.com/framegrace/texeledit/scheduler"
	"github.com/framegrace/texeledit/search"
	"github.com/framegrace/texeledit/surface"
	"github.com/framegrace/texeledit/viewport"
)

// Overlay classes used by the editor.
const (
	SelectionClass = "selection"
	SearchClass    = "search-highlight"
	ExecutionClass = "execution-line"
	FlashClass     = "highlighted-line"
)

// detectSample bounds the content handed to language detection.
const detectSample = 16 << 10

// ErrNoPath is returned by Save for a document that was never opened from
// a file.
var ErrNoPath = errors.New("editor: document has no path")

// LineIndex is a persisted line index that can prefilter searches.
type LineIndex interface {
	search.Prefilter
	Snapshot(version int64, lines []string)
}

// Breakpoint is the decoration payload of a breakpoint.
type Breakpoint struct{}

// Marker implements surface.Marker.
func (Breakpoint) Marker() rune { return '●' }

// ExecutionMarker is the decoration payload of the execution line.
type ExecutionMarker struct{}

// Marker implements surface.Marker.
func (ExecutionMarker) Marker() rune { return '▶' }

// Editor is one open document. It is not safe for concurrent use.
type Editor struct {
	opts  Options
	sched *scheduler.Scheduler

	buf      *buffer.LineBuffer
	index    *chunks.Index
	surface  *surface.Surface
	renderer *viewport.Renderer
	mapper   *viewport.PositionMapper
	matches  *search.Index
	finder   *search.Finder
	tokens   *TokenHighlighter

	lineIndex     LineIndex
	snapshotTimer *scheduler.Timer

	removeListener func()

	path     string
	modified bool

	cursor      buffer.Position
	anchor      buffer.Position
	selecting   bool
	selectionID viewport.OverlayID

	query    search.Query
	searchID viewport.OverlayID

	breakpoints []chunks.DecorationID
	exec        chunks.DecorationID
	execID      viewport.OverlayID
	flashID     viewport.OverlayID
	flashTimer  *scheduler.Timer

	prompt  *prompt
	message string
}

// New creates an editor with an empty document drawing on screen. The
// screen must already be initialized.
func New(screen tcell.Screen, sched *scheduler.Scheduler, opts Options) *Editor {
	e := &Editor{opts: opts, sched: sched, buf: buffer.New("")}
	e.index = chunks.New(e.buf.LineCount(), opts.ChunkSize)
	e.index.Strict = opts.StrictInvariants
	e.surface = surface.New(screen, opts.Surface)
	e.renderer = viewport.NewRenderer(e.buf, e.index, e.surface, sched, opts.Viewport)
	e.surface.Attach(e.renderer, e.buf)
	e.mapper = viewport.NewPositionMapper(e.renderer)
	e.matches = search.NewIndex(e.buf)
	e.finder = search.NewFinder(e.buf, e.matches, sched, opts.Search)
	e.tokens = NewTokenHighlighter(e.renderer, e.buf)
	e.removeListener = e.buf.AddListener(e.bufferChanged)
	e.configureHighlighter("")
	return e
}

// Close releases the editor's subscriptions and pending work.
func (e *Editor) Close() {
	e.finder.Cancel()
	if e.snapshotTimer != nil {
		e.snapshotTimer.Stop()
	}
	if e.flashTimer != nil {
		e.flashTimer.Stop()
	}
	if e.removeListener != nil {
		e.removeListener()
		e.removeListener = nil
	}
	e.matches.Close()
	e.renderer.Close()
}

// Buffer returns the document.
func (e *Editor) Buffer() *buffer.LineBuffer { return e.buf }

// Renderer returns the viewport renderer.
func (e *Editor) Renderer() *viewport.Renderer { return e.renderer }

// Surface returns the drawing host.
func (e *Editor) Surface() *surface.Surface { return e.surface }

// Mapper returns the position mapper.
func (e *Editor) Mapper() *viewport.PositionMapper { return e.mapper }

// Matches returns the match index of the current query.
func (e *Editor) Matches() *search.Index { return e.matches }

// Searching reports whether a search is still scanning.
func (e *Editor) Searching() bool { return e.finder.Running() }

// Tokens returns the selected-word highlighter.
func (e *Editor) Tokens() *TokenHighlighter { return e.tokens }

// Path returns the file backing the document.
func (e *Editor) Path() string { return e.path }

// Modified reports whether the document changed since it was opened or saved.
func (e *Editor) Modified() bool { return e.modified }

// Cursor returns the cursor position.
func (e *Editor) Cursor() buffer.Position { return e.cursor }

// Message returns the last status message.
func (e *Editor) Message() string { return e.message }

// AttachLineIndex installs a line store used to prefilter searches of large
// documents. nil detaches it.
func (e *Editor) AttachLineIndex(ix LineIndex) {
	e.lineIndex = ix
	if ix == nil || !e.opts.UseIndex {
		e.finder.SetPrefilter(nil)
		return
	}
	e.finder.SetPrefilter(ix)
	e.scheduleSnapshot()
}

// Open loads path. A missing file opens an empty document that Save will
// create.
func (e *Editor) Open(path string) error {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("open %s: %w", path, err)
	}
	e.SetDocument(path, string(data))
	return nil
}

// SetDocument replaces the document. Search state, gutter decorations and
// the selection are reset.
func (e *Editor) SetDocument(path, text string) {
	e.ClearSearch()
	e.clearSelection()
	if e.flashTimer != nil {
		e.flashTimer.Stop()
	}
	e.path = path

	e.renderer.BeginUpdates()
	e.buf.SetText(text)
	e.configureHighlighter(text)
	e.surface.ScrollTo(0)
	e.renderer.EndUpdates()

	e.breakpoints = nil
	e.exec, e.execID, e.flashID = 0, 0, 0
	e.modified = false
	e.setCursor(buffer.Position{})
	e.renderer.RepaintAll()
	log.Printf("[EDITOR] Opened %q: %d lines", path, e.buf.LineCount())
}

func (e *Editor) configureHighlighter(text string) {
	if !e.opts.Highlight {
		e.renderer.SetHighlighter(highlight.Plain{})
		return
	}
	sample := text[:min(len(text), detectSample)]
	lexer := highlight.DetectLanguage(filepath.Base(e.path), []byte(sample))
	e.renderer.SetHighlighter(highlight.NewChroma(lexer, e.opts.ContextLines))
}

// Save writes the document to its path.
func (e *Editor) Save() error {
	if e.path == "" {
		return ErrNoPath
	}
	if err := os.WriteFile(e.path, []byte(e.buf.Text()), 0o644); err != nil {
		return fmt.Errorf("save %s: %w", e.path, err)
	}
	e.modified = false
	e.setMessage("Saved %s", e.path)
	return nil
}

func (e *Editor) bufferChanged(ch buffer.Change) {
	if !ch.Reset {
		e.modified = true
	}
	e.cursor = e.clamp(e.cursor)
	e.anchor = e.clamp(e.anchor)
	e.scheduleSnapshot()
}

func (e *Editor) scheduleSnapshot() {
	if e.lineIndex == nil || !e.opts.UseIndex || e.buf.LineCount() < e.opts.Search.IndexMinLines {
		return
	}
	if e.snapshotTimer != nil {
		e.snapshotTimer.Stop()
	}
	e.snapshotTimer = e.sched.After(e.opts.SnapshotDelay, e.snapshot)
}

func (e *Editor) snapshot() {
	e.snapshotTimer = nil
	lines, err := e.buf.Lines(0, e.buf.LineCount())
	if err != nil {
		log.Printf("[EDITOR] Snapshot failed: %v", err)
		return
	}
	e.lineIndex.Snapshot(e.buf.Version(), lines)
}

// Edit replaces r with text and moves the cursor after the inserted text.
func (e *Editor) Edit(r buffer.TextRange, text string) (buffer.TextRange, error) {
	nr, err := e.buf.ReplaceRange(r, text)
	if err != nil {
		return buffer.TextRange{}, err
	}
	e.modified = true
	e.clearSelection()
	e.moveTo(nr.End(), false)
	return nr, nil
}

// InsertText replaces the selection, or inserts at the cursor.
func (e *Editor) InsertText(text string) error {
	r := buffer.TextRange{StartLine: e.cursor.Line, StartColumn: e.cursor.Column, EndLine: e.cursor.Line, EndColumn: e.cursor.Column}
	if sel, ok := e.Selection(); ok {
		r = sel
	}
	_, err := e.Edit(r, text)
	return err
}

// DeleteBackward removes the selection or the character before the cursor.
func (e *Editor) DeleteBackward() error {
	if sel, ok := e.Selection(); ok {
		_, err := e.Edit(sel, "")
		return err
	}
	start := e.stepLeft(e.cursor)
	if start == e.cursor {
		return nil
	}
	_, err := e.Edit(buffer.NewRange(start, e.cursor), "")
	return err
}

// DeleteForward removes the selection or the character after the cursor.
func (e *Editor) DeleteForward() error {
	if sel, ok := e.Selection(); ok {
		_, err := e.Edit(sel, "")
		return err
	}
	end := e.stepRight(e.cursor)
	if end == e.cursor {
		return nil
	}
	_, err := e.Edit(buffer.NewRange(e.cursor, end), "")
	return err
}

func (e *Editor) lineLen(line int) int {
	n, err := e.buf.LineLength(line)
	if err != nil {
		return 0
	}
	return n
}

// clamp moves p into the document, snapping a column inside a surrogate
// pair to its start.
func (e *Editor) clamp(p buffer.Position) buffer.Position {
	n := e.buf.LineCount()
	if n == 0 {
		return buffer.Position{}
	}
	p.Line = max(0, min(p.Line, n-1))
	text, _ := e.buf.Line(p.Line)
	p.Column = max(0, min(p.Column, buffer.UTF16Len(text)))
	if b, exact := buffer.UTF16ToByte(text, p.Column); !exact {
		p.Column = buffer.ByteToUTF16(text, b)
	}
	return p
}

func (e *Editor) stepLeft(p buffer.Position) buffer.Position {
	if p.Column == 0 {
		if p.Line == 0 {
			return p
		}
		return buffer.Position{Line: p.Line - 1, Column: e.lineLen(p.Line - 1)}
	}
	text, _ := e.buf.Line(p.Line)
	b, _ := buffer.UTF16ToByte(text, p.Column)
	r, _ := utf8.DecodeLastRuneInString(text[:b])
	p.Column -= utf16.RuneLen(r)
	return p
}

func (e *Editor) stepRight(p buffer.Position) buffer.Position {
	if p.Column >= e.lineLen(p.Line) {
		if p.Line+1 >= e.buf.LineCount() {
			return p
		}
		return buffer.Position{Line: p.Line + 1}
	}
	text, _ := e.buf.Line(p.Line)
	b, _ := buffer.UTF16ToByte(text, p.Column)
	r, _ := utf8.DecodeRuneInString(text[b:])
	p.Column += utf16.RuneLen(r)
	return p
}

// MoveTo places the cursor at p. With extend the selection grows from its
// anchor; otherwise it is cleared.
func (e *Editor) MoveTo(p buffer.Position, extend bool) { e.moveTo(p, extend) }

func (e *Editor) moveTo(p buffer.Position, extend bool) {
	p = e.clamp(p)
	switch {
	case extend && !e.selecting:
		e.anchor = e.cursor
		e.selecting = true
	case !extend:
		e.selecting = false
	}
	e.setCursor(p)
	e.updateSelection()
	if err := e.renderer.RevealLine(p.Line); err != nil && e.buf.LineCount() > 0 {
		log.Printf("[EDITOR] Reveal line %d: %v", p.Line, err)
	}
}

func (e *Editor) setCursor(p buffer.Position) {
	e.cursor = p
	e.surface.SetCursor(p, true)
}

// MoveLeft moves the cursor one character left.
func (e *Editor) MoveLeft(extend bool) { e.moveTo(e.stepLeft(e.cursor), extend) }

// MoveRight moves the cursor one character right.
func (e *Editor) MoveRight(extend bool) { e.moveTo(e.stepRight(e.cursor), extend) }

// MoveLines moves the cursor delta lines, keeping the column where the
// target line allows.
func (e *Editor) MoveLines(delta int, extend bool) {
	e.moveTo(buffer.Position{Line: e.cursor.Line + delta, Column: e.cursor.Column}, extend)
}

// MoveLineStart moves the cursor to the start of its line.
func (e *Editor) MoveLineStart(extend bool) {
	e.moveTo(buffer.Position{Line: e.cursor.Line}, extend)
}

// MoveLineEnd moves the cursor to the end of its line.
func (e *Editor) MoveLineEnd(extend bool) {
	e.moveTo(buffer.Position{Line: e.cursor.Line, Column: e.lineLen(e.cursor.Line)}, extend)
}

// GoToLine moves the cursor to the start of line and scrolls it to the top.
func (e *Editor) GoToLine(line int) error {
	if line < 0 || line >= e.buf.LineCount() {
		return fmt.Errorf("line %d not in [0, %d): %w", line, e.buf.LineCount(), buffer.ErrOutOfRange)
	}
	e.moveTo(buffer.Position{Line: line}, false)
	return e.renderer.ScrollToLine(line)
}

// Selection returns the normalized selected range.
func (e *Editor) Selection() (buffer.TextRange, bool) {
	if !e.selecting || e.anchor == e.cursor {
		return buffer.TextRange{}, false
	}
	return buffer.NewRange(e.anchor, e.cursor).Normalize(), true
}

// SelectWord selects the word under the cursor.
func (e *Editor) SelectWord() bool {
	text, err := e.buf.Line(e.cursor.Line)
	if err != nil {
		return false
	}
	b, _ := buffer.UTF16ToByte(text, e.cursor.Column)
	from, to, ok := wordAt(text, b)
	if !ok {
		return false
	}
	line := e.cursor.Line
	e.moveTo(buffer.Position{Line: line, Column: buffer.ByteToUTF16(text, from)}, false)
	e.moveTo(buffer.Position{Line: line, Column: buffer.ByteToUTF16(text, to)}, true)
	return true
}

func (e *Editor) clearSelection() {
	if !e.selecting {
		return
	}
	e.selecting = false
	e.updateSelection()
}

func (e *Editor) updateSelection() {
	if e.selectionID != 0 {
		e.renderer.RemoveHighlight(e.selectionID)
		e.selectionID = 0
	}
	sel, ok := e.Selection()
	if ok {
		e.selectionID = e.renderer.HighlightRange(sel, SelectionClass)
	}
	e.tokens.SelectionChanged(sel, ok)
}

// Search starts a time-sliced search for q. Every occurrence is
// highlighted; when the scan completes the first match after the cursor
// is selected.
func (e *Editor) Search(q search.Query) error {
	re, err := q.Compile()
	if err != nil {
		return err
	}
	e.ClearSearch()
	e.query = q
	e.searchID = e.renderer.HighlightRegex(re, SearchClass)
	return e.finder.Start(q, e.searchProgress)
}

func (e *Editor) searchProgress(p search.Progress) {
	switch {
	case !p.Done:
		e.setMessage("Searching %q: %d matches in %d lines", e.query.Pattern, p.Matches, p.Scanned)
	case p.Matches == 0:
		e.setMessage("No matches for %q", e.query.Pattern)
	default:
		e.NextMatch()
	}
}

// ClearSearch cancels the search and removes its highlights.
func (e *Editor) ClearSearch() {
	e.finder.Cancel()
	e.matches.Clear()
	if e.searchID != 0 {
		e.renderer.RemoveHighlight(e.searchID)
		e.searchID = 0
	}
	e.renderer.ClearMark()
	e.query = search.Query{}
}

// NextMatch selects the first match starting after the cursor, wrapping
// around the document.
func (e *Editor) NextMatch() bool {
	return e.showMatch(e.matches.NextAfter(e.cursor))
}

// PreviousMatch selects the last match starting before the cursor,
// wrapping around the document.
func (e *Editor) PreviousMatch() bool {
	return e.showMatch(e.matches.PreviousBefore(e.cursor))
}

func (e *Editor) showMatch(m search.Match, ordinal int, ok bool) bool {
	if !ok {
		e.renderer.ClearMark()
		if e.query.Pattern != "" {
			e.setMessage("No matches for %q", e.query.Pattern)
		}
		return false
	}
	e.renderer.MarkRange(m.Range)
	e.moveTo(m.Range.Start(), false)
	e.setMessage("Match %d of %d for %q", ordinal, e.matches.Len()-e.matches.StaleCount(), e.query.Pattern)
	return true
}

// AddBreakpoint marks line with a breakpoint. Adding an existing
// breakpoint is a no-op.
func (e *Editor) AddBreakpoint(line int) error {
	if e.breakpointAt(line) != 0 {
		return nil
	}
	id, err := e.renderer.AddDecoration(line, 0, Breakpoint{})
	if err != nil {
		return err
	}
	e.breakpoints = append(e.breakpoints, id)
	return nil
}

// RemoveBreakpoint removes the breakpoint on line. Returns false when line
// has none.
func (e *Editor) RemoveBreakpoint(line int) bool {
	id := e.breakpointAt(line)
	if id == 0 {
		return false
	}
	e.renderer.RemoveDecoration(id)
	e.breakpoints = slices.DeleteFunc(e.breakpoints, func(b chunks.DecorationID) bool { return b == id })
	return true
}

// ToggleBreakpoint adds or removes the breakpoint on line.
func (e *Editor) ToggleBreakpoint(line int) error {
	if e.RemoveBreakpoint(line) {
		return nil
	}
	return e.AddBreakpoint(line)
}

// Breakpoints returns the breakpoint lines in ascending order. Breakpoints
// whose line was deleted are gone.
func (e *Editor) Breakpoints() []int {
	var lines []int
	live := e.breakpoints[:0]
	for _, id := range e.breakpoints {
		if d, ok := e.renderer.Decoration(id); ok {
			live = append(live, id)
			lines = append(lines, d.Line)
		}
	}
	e.breakpoints = live
	slices.Sort(lines)
	return lines
}

func (e *Editor) breakpointAt(line int) chunks.DecorationID {
	for _, d := range e.renderer.DecorationsForLine(line) {
		if _, ok := d.Payload.(Breakpoint); ok {
			return d.ID
		}
	}
	return 0
}

// SetExecutionLine moves the execution marker to line and reveals it. A
// negative line removes the marker.
func (e *Editor) SetExecutionLine(line int) error {
	if e.exec != 0 {
		e.renderer.RemoveDecoration(e.exec)
		e.exec = 0
	}
	if e.execID != 0 {
		e.renderer.RemoveHighlight(e.execID)
		e.execID = 0
	}
	if line < 0 {
		return nil
	}
	id, err := e.renderer.AddDecoration(line, 0, ExecutionMarker{})
	if err != nil {
		return err
	}
	e.exec = id
	e.execID = e.renderer.HighlightRange(e.lineRange(line), ExecutionClass)
	return e.renderer.RevealLine(line)
}

// ExecutionLine returns the line carrying the execution marker.
func (e *Editor) ExecutionLine() (int, bool) {
	d, ok := e.renderer.Decoration(e.exec)
	if e.exec == 0 || !ok {
		return 0, false
	}
	return d.Line, true
}

// HighlightLine reveals line and highlights it for FlashDuration.
func (e *Editor) HighlightLine(line int) error {
	if line < 0 || line >= e.buf.LineCount() {
		return fmt.Errorf("line %d not in [0, %d): %w", line, e.buf.LineCount(), buffer.ErrOutOfRange)
	}
	e.clearFlash()
	e.flashID = e.renderer.HighlightRange(e.lineRange(line), FlashClass)
	id := e.flashID
	e.flashTimer = e.sched.After(e.opts.FlashDuration, func() {
		if e.flashID == id {
			e.clearFlash()
		}
	})
	return e.renderer.RevealLine(line)
}

func (e *Editor) clearFlash() {
	if e.flashTimer != nil {
		e.flashTimer.Stop()
		e.flashTimer = nil
	}
	if e.flashID != 0 {
		e.renderer.RemoveHighlight(e.flashID)
		e.flashID = 0
	}
}

func (e *Editor) lineRange(line int) buffer.TextRange {
	return buffer.TextRange{StartLine: line, EndLine: line, EndColumn: e.lineLen(line)}
}

func (e *Editor) setMessage(format string, args ...any) {
	e.message = fmt.Sprintf(format, args...)
}

// Pump runs one scheduler tick. It returns how long the host may sleep
// before calling again; ok is false when nothing is pending.
func (e *Editor) Pump() (wait time.Duration, ok bool) {
	e.sched.Tick()
	if e.sched.Ready() {
		return 0, true
	}
	due, ok := e.sched.NextDue()
	if !ok {
		return 0, false
	}
	return max(0, due.Sub(e.sched.Clock().Now())), true
}

// Draw refreshes the status line and redraws the surface if anything
// changed.
func (e *Editor) Draw() {
	e.surface.SetStatus("%s", e.statusLine())
	if e.surface.Dirty() {
		e.surface.Draw()
	}
}

func (e *Editor) statusLine() string {
	if e.prompt != nil {
		return e.prompt.label + string(e.prompt.text)
	}
	name := e.path
	if name == "" {
		name = "[scratch]"
	}
	if e.modified {
		name += " [+]"
	}
	status := fmt.Sprintf("%s  %d:%d  %d lines", name, e.cursor.Line+1, e.cursor.Column+1, e.buf.LineCount())
	if e.message != "" {
		status += "  " + e.message
	}
	return status
}
