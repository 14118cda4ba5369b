// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/renderer.go
// Summary: Renderer materializes only the chunks intersecting the viewport.
//
// Architecture:
//
//	The renderer owns the materialized state of the document: for each
//	expanded chunk it holds one Row per line. Collapsed chunks are drawn
//	by the Host as placeholders whose height is LineCount*RowHeight.
//
//	RepaintAll computes the visible chunk range from the host's scroll
//	position (plus overscan on both sides), collapses every expanded chunk
//	outside it and expands the ones inside. Scrolling is debounced: the
//	repaint runs once the scroll position has been still for
//	ScrollDebounce, and "scrolling" means that timer is pending.
//
//	Highlighting is applied to expanded rows under a per-tick credit
//	budget (see paint.go). Rows start plain and are upgraded in place.
//
//	The renderer listens to buffer edits: decorations and range overlays
//	are translated first, then the chunk index is patched, then affected
//	rows are repainted.

package viewport

import (
	"fmt"
	"log"
	"time"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/chunks"
	"github.com/framegrace/texeledit/highlight"
	"github.com/framegrace/texeledit/scheduler"
)

// Host is the drawing surface the renderer drives.
type Host interface {
	// ScrollTop returns the offset of the first visible unit.
	ScrollTop() int
	// ClientHeight returns the number of visible units.
	ClientHeight() int
	// ScrollTo moves the viewport so offset is the first visible unit.
	ScrollTo(offset int)
	// MeasureRow returns the rendered height of a row.
	MeasureRow(row *Row) int
	// ExpandChunk replaces the placeholder of c with rows.
	ExpandChunk(c *chunks.Chunk, rows []*Row)
	// CollapseChunk replaces the rows of c with a placeholder.
	CollapseChunk(c *chunks.Chunk)
	// PaintRow redraws a row whose spans changed.
	PaintRow(row *Row)
}

// Options configures the renderer.
type Options struct {
	// Overscan is the fraction of the viewport height materialized above
	// and below the visible range.
	Overscan float64
	// ScrollDebounce delays repaints while the scroll position changes.
	ScrollDebounce time.Duration
	// RowHeight is the placeholder height of one collapsed line.
	RowHeight int
	// Budget bounds the highlighting work per tick.
	Budget scheduler.BudgetConfig
	// RetryDelay postpones scheduled painting while scrolling.
	RetryDelay time.Duration
	// MaxLineLength is the longest line that is highlighted; longer lines
	// are painted plain. Zero disables the limit.
	MaxLineLength int
}

// DefaultOptions returns the standard renderer settings.
func DefaultOptions() Options {
	return Options{
		Overscan:       0.5,
		ScrollDebounce: 50 * time.Millisecond,
		RowHeight:      1,
		Budget:         scheduler.DefaultBudgetConfig(),
		RetryDelay:     50 * time.Millisecond,
		MaxLineLength:  1000,
	}
}

// Renderer drives a Host from a LineBuffer and its chunk index.
type Renderer struct {
	buf   *buffer.LineBuffer
	index *chunks.Index
	host  Host
	sched *scheduler.Scheduler
	opts  Options

	highlighter highlight.Highlighter

	rows    map[*chunks.Chunk][]*Row
	pool    rowPool
	offsets *offsetIndex

	updates        int
	repaintPending bool
	scrollTimer    *scheduler.Timer

	paintOp    scheduler.Operation
	budget     *scheduler.Budget
	scheduled  []lineSpan
	paintArmed bool

	overlays    []*overlay
	nextOverlay OverlayID
	mark        *overlay

	decorations decorationStore

	removeListener func()
}

// NewRenderer attaches a renderer to buf and index. index must already
// partition buf's lines.
func NewRenderer(buf *buffer.LineBuffer, index *chunks.Index, host Host, sched *scheduler.Scheduler, opts Options) *Renderer {
	if opts.RowHeight <= 0 {
		opts.RowHeight = 1
	}
	r := &Renderer{
		buf:         buf,
		index:       index,
		host:        host,
		sched:       sched,
		opts:        opts,
		highlighter: highlight.Plain{},
		rows:        make(map[*chunks.Chunk][]*Row),
		budget:      scheduler.NewBudget(opts.Budget, sched.Clock()),
		decorations: newDecorationStore(),
	}
	r.offsets = newOffsetIndex(index.Len, func(i int) int { return r.chunkHeight(index.At(i)) })
	index.SetObserver(r)
	r.removeListener = buf.AddListener(r.bufferChanged)
	return r
}

// Close detaches the renderer from the buffer and cancels pending work.
func (r *Renderer) Close() {
	if r.removeListener != nil {
		r.removeListener()
		r.removeListener = nil
	}
	r.index.SetObserver(nil)
	if r.scrollTimer != nil {
		r.scrollTimer.Stop()
		r.scrollTimer = nil
	}
	r.paintOp.Cancel()
	r.scheduled = nil
	r.paintArmed = false
}

// Buffer returns the rendered buffer.
func (r *Renderer) Buffer() *buffer.LineBuffer { return r.buf }

// Index returns the chunk index.
func (r *Renderer) Index() *chunks.Index { return r.index }

// Options returns the renderer settings.
func (r *Renderer) Options() Options { return r.opts }

// SetHighlighter replaces the highlighter and repaints every expanded row.
// A nil highlighter paints plain text.
func (r *Renderer) SetHighlighter(h highlight.Highlighter) {
	if h == nil {
		h = highlight.Plain{}
	}
	r.highlighter = h
	r.Rebuild()
}

// RowsForChunk returns the rows of an expanded chunk, or nil.
func (r *Renderer) RowsForChunk(c *chunks.Chunk) []*Row {
	return r.rows[c]
}

// RowForLine returns the row showing line, or nil when its chunk is
// collapsed.
func (r *Renderer) RowForLine(line int) *Row {
	c, err := r.index.ChunkForLine(line)
	if err != nil {
		return nil
	}
	rows, ok := r.rows[c]
	if !ok {
		return nil
	}
	return rows[line-c.StartLine()]
}

// ExpandedChunks returns the number of expanded chunks.
func (r *Renderer) ExpandedChunks() int { return len(r.rows) }

// TotalHeight returns the rendered height of the document.
func (r *Renderer) TotalHeight() int { return r.offsets.total() }

// ChunkOffset returns the rendered offset of chunk n.
func (r *Renderer) ChunkOffset(n int) int { return r.offsets.offsetOf(n) }

func (r *Renderer) chunkHeight(c *chunks.Chunk) int {
	rows, ok := r.rows[c]
	if !ok {
		return c.LineCount() * r.opts.RowHeight
	}
	h := 0
	for _, row := range rows {
		h += row.height
	}
	return h
}

// FindFirstVisibleChunk returns the chunk number containing offset.
func (r *Renderer) FindFirstVisibleChunk(offset int) int {
	return r.offsets.chunkAt(offset)
}

// FindVisibleChunks returns the chunk range [start, end) intersecting the
// offsets [from, to) widened by the overscan on both sides.
func (r *Renderer) FindVisibleChunks(from, to int) (start, end int) {
	n := r.index.Len()
	if n == 0 {
		return 0, 0
	}
	extra := int(float64(to-from) * r.opts.Overscan)
	from = max(0, from-extra)
	to += extra
	start = r.FindFirstVisibleChunk(from)
	end = start + 1
	for end < n && r.offsets.offsetOf(end) < to {
		end++
	}
	return start, end
}

// ExpandChunks collapses every expanded chunk outside [start, end) and
// expands every collapsed chunk inside it.
func (r *Renderer) ExpandChunks(start, end int) {
	for c := range r.rows {
		n := r.index.IndexOf(c)
		if n < start || n >= end {
			r.collapseChunk(c)
		}
	}
	r.budget.Restore()
	for i := start; i < end && i < r.index.Len(); i++ {
		if c := r.index.At(i); !c.Expanded() {
			r.expandChunk(c)
		}
	}
	r.budget.Adjust()
}

func (r *Renderer) expandChunk(c *chunks.Chunk) {
	lines, err := r.buf.Lines(c.StartLine(), c.EndLine())
	if err != nil {
		log.Printf("[RENDER] expand %s: %v", c, err)
		return
	}
	rows := make([]*Row, len(lines))
	for i, text := range lines {
		row := r.pool.get(c, i)
		row.setPlain(text)
		row.height = r.host.MeasureRow(row)
		rows[i] = row
	}
	r.rows[c] = rows
	c.SetExpanded(true)
	r.offsets.invalidate()
	r.host.ExpandChunk(c, rows)
	r.paintLines(c.StartLine(), c.EndLine())
}

func (r *Renderer) collapseChunk(c *chunks.Chunk) {
	r.releaseRows(c)
	c.SetExpanded(false)
	r.offsets.invalidate()
}

func (r *Renderer) releaseRows(c *chunks.Chunk) {
	rows, ok := r.rows[c]
	if !ok {
		return
	}
	r.host.CollapseChunk(c)
	for _, row := range rows {
		r.pool.put(row)
	}
	delete(r.rows, c)
}

// BeginUpdates suppresses repaints until the matching EndUpdates.
func (r *Renderer) BeginUpdates() { r.updates++ }

// EndUpdates ends an update batch and runs a suppressed repaint.
func (r *Renderer) EndUpdates() {
	if r.updates == 0 {
		return
	}
	r.updates--
	if r.updates == 0 && r.repaintPending {
		r.repaintPending = false
		r.RepaintAll()
	}
}

// RepaintAll re-materializes the chunks around the current scroll position.
func (r *Renderer) RepaintAll() {
	if r.updates > 0 {
		r.repaintPending = true
		return
	}
	if r.scrollTimer != nil {
		r.scrollTimer.Stop()
		r.scrollTimer = nil
	}
	if r.index.Len() == 0 {
		return
	}
	top := r.host.ScrollTop()
	start, end := r.FindVisibleChunks(top, top+r.host.ClientHeight())
	r.ExpandChunks(start, end)
}

// ScheduleRepaint repaints once the scroll position has been still for
// the scroll debounce delay. Each call restarts the delay.
func (r *Renderer) ScheduleRepaint() {
	if r.scrollTimer != nil {
		r.scrollTimer.Stop()
	}
	r.scrollTimer = r.sched.After(r.opts.ScrollDebounce, func() {
		r.scrollTimer = nil
		r.RepaintAll()
	})
}

// Scrolling reports whether a debounced repaint is pending.
func (r *Renderer) Scrolling() bool { return r.scrollTimer != nil }

// Resize re-measures the expanded rows and repaints for a new viewport size.
func (r *Renderer) Resize() {
	r.Rebuild()
	r.RepaintAll()
}

// LineOffset returns the rendered offset of the top of line.
func (r *Renderer) LineOffset(line int) (int, error) {
	n, err := r.index.ChunkNumberForLine(line)
	if err != nil {
		return 0, err
	}
	c := r.index.At(n)
	off := r.offsets.offsetOf(n)
	rel := line - c.StartLine()
	if rows, ok := r.rows[c]; ok {
		for _, row := range rows[:rel] {
			off += row.height
		}
		return off, nil
	}
	return off + rel*r.opts.RowHeight, nil
}

// ScrollToLine scrolls so that line is the first visible line and repaints.
func (r *Renderer) ScrollToLine(line int) error {
	off, err := r.LineOffset(line)
	if err != nil {
		return err
	}
	r.host.ScrollTo(off)
	r.RepaintAll()
	return nil
}

// RevealLine scrolls the minimum distance that makes line fully visible,
// then repaints.
func (r *Renderer) RevealLine(line int) error {
	off, err := r.LineOffset(line)
	if err != nil {
		return err
	}
	h := r.opts.RowHeight
	if row := r.RowForLine(line); row != nil {
		h = row.height
	}
	top, height := r.host.ScrollTop(), r.host.ClientHeight()
	newTop := top
	switch {
	case off < top:
		newTop = off
	case off+h > top+height:
		newTop = off + h - height
	}
	if newTop != top {
		r.host.ScrollTo(newTop)
	}
	r.RepaintAll()
	return nil
}

// LineNumberAtOffset returns the line displayed at a rendered offset.
func (r *Renderer) LineNumberAtOffset(offset int) int {
	if r.index.Len() == 0 {
		return 0
	}
	n := r.offsets.chunkAt(offset)
	c := r.index.At(n)
	rel := max(0, offset-r.offsets.offsetOf(n))
	if rows, ok := r.rows[c]; ok {
		for i, row := range rows {
			if rel < row.height {
				return c.StartLine() + i
			}
			rel -= row.height
		}
		return c.EndLine() - 1
	}
	return min(c.StartLine()+rel/r.opts.RowHeight, c.EndLine()-1)
}

// ChunksReplaced releases rows of removed chunks and materializes added
// chunks that inherited the expanded flag.
func (r *Renderer) ChunksReplaced(at int, removed, added []*chunks.Chunk) {
	for _, c := range removed {
		r.releaseRows(c)
	}
	for _, c := range added {
		if c.Expanded() {
			c.SetExpanded(false)
			r.expandChunk(c)
		}
	}
	r.offsets.invalidate()
}

// ChunkContentChanged refreshes the text of rows [from, to) of c.
func (r *Renderer) ChunkContentChanged(c *chunks.Chunk, from, to int) {
	rows, ok := r.rows[c]
	if !ok {
		return
	}
	for line := max(from, c.StartLine()); line < min(to, c.EndLine()); line++ {
		text, err := r.buf.Line(line)
		if err != nil {
			log.Printf("[RENDER] refresh line %d: %v", line, err)
			continue
		}
		row := rows[line-c.StartLine()]
		row.setPlain(text)
		row.height = r.host.MeasureRow(row)
		r.host.PaintRow(row)
	}
	r.offsets.invalidate()
}

func (r *Renderer) bufferChanged(ch buffer.Change) {
	if ch.Reset {
		r.decorations.clear()
		r.dropRangeOverlays()
		r.index.Build(r.buf.LineCount())
		r.offsets.invalidate()
		r.Rebuild()
		r.RepaintAll()
		return
	}

	r.decorations.applyEdit(ch, r.index)
	r.shiftOverlays(ch)
	if err := r.index.ApplyEdit(ch.OldRange, ch.NewRange); err != nil {
		log.Printf("[RENDER] chunk index patch failed, rebuilding: %v", err)
		r.index.Build(r.buf.LineCount())
	}
	r.reattachDecorations()
	r.offsets.invalidate()

	from := ch.NewRange.StartLine
	r.repaintRows(func(row *Row) bool { return !row.painted || row.Line() >= from })
	r.RepaintAll()
}

// Validate checks the chunk partition and the row bookkeeping.
func (r *Renderer) Validate() error {
	if err := r.index.Validate(); err != nil {
		return err
	}
	for c, rows := range r.rows {
		if r.index.IndexOf(c) < 0 {
			return fmt.Errorf("rows held for unindexed chunk %s: %w", c, buffer.ErrInvariantViolation)
		}
		if !c.Expanded() || len(rows) != c.LineCount() {
			return fmt.Errorf("chunk %s has %d rows (expanded=%v): %w", c, len(rows), c.Expanded(), buffer.ErrInvariantViolation)
		}
	}
	return nil
}
