// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: viewport/overlay.go
// Summary: Highlight overlays painted on top of syntax tokens.
//
// Overlays are either a regular expression matched against every painted
// line or a fixed text range. Range overlays follow edits and are dropped
// once an edit touches their interior. The search mark is a range overlay
// painted as one atomic span.

package viewport

import (
	"regexp"
	"slices"

	"github.com/framegrace/texeledit/buffer"
)

// OverlayID identifies a highlight overlay.
type OverlayID int

// MarkClass is the overlay class of the search mark.
const MarkClass = "search-result"

type overlay struct {
	id     OverlayID
	class  string
	re     *regexp.Regexp
	rng    buffer.TextRange
	atomic bool
}

// overlayRange is an overlay's extent on one line in UTF-16 columns.
type overlayRange struct {
	from, to int
	class    string
	atomic   bool
}

// HighlightRegex paints every match of re with class.
func (r *Renderer) HighlightRegex(re *regexp.Regexp, class string) OverlayID {
	o := r.addOverlay(&overlay{class: class, re: re})
	r.repaintRows(func(*Row) bool { return true })
	return o.id
}

// HighlightRange paints rng with class until an edit touches it.
func (r *Renderer) HighlightRange(rng buffer.TextRange, class string) OverlayID {
	o := r.addOverlay(&overlay{class: class, rng: rng.Normalize()})
	r.repaintRange(o.rng)
	return o.id
}

// RemoveHighlight removes an overlay. Unknown ids are ignored.
func (r *Renderer) RemoveHighlight(id OverlayID) {
	i := slices.IndexFunc(r.overlays, func(o *overlay) bool { return o.id == id })
	if i < 0 {
		return
	}
	o := r.overlays[i]
	r.overlays = slices.Delete(r.overlays, i, i+1)
	if o.re != nil {
		r.repaintRows(func(*Row) bool { return true })
		return
	}
	r.repaintRange(o.rng)
}

// MarkRange moves the search mark to rng.
func (r *Renderer) MarkRange(rng buffer.TextRange) {
	r.ClearMark()
	r.mark = &overlay{class: MarkClass, rng: rng.Normalize(), atomic: true}
	r.repaintRange(r.mark.rng)
}

// ClearMark removes the search mark.
func (r *Renderer) ClearMark() {
	if r.mark == nil {
		return
	}
	rng := r.mark.rng
	r.mark = nil
	r.repaintRange(rng)
}

// Mark returns the current search mark range.
func (r *Renderer) Mark() (buffer.TextRange, bool) {
	if r.mark == nil {
		return buffer.TextRange{}, false
	}
	return r.mark.rng, true
}

func (r *Renderer) addOverlay(o *overlay) *overlay {
	r.nextOverlay++
	o.id = r.nextOverlay
	r.overlays = append(r.overlays, o)
	return o
}

// repaintRange repaints the expanded rows of the lines spanned by rng.
func (r *Renderer) repaintRange(rng buffer.TextRange) {
	r.repaintRows(func(row *Row) bool {
		line := row.Line()
		return !row.painted || (line >= rng.StartLine && line <= rng.EndLine)
	})
}

// shiftOverlays moves range overlays and the mark across an edit and drops
// the ones the edit invalidated.
func (r *Renderer) shiftOverlays(ch buffer.Change) {
	r.overlays = slices.DeleteFunc(r.overlays, func(o *overlay) bool {
		if o.re != nil {
			return false
		}
		shifted, ok := buffer.ShiftRange(o.rng, ch)
		o.rng = shifted
		return !ok
	})
	if r.mark != nil {
		if shifted, ok := buffer.ShiftRange(r.mark.rng, ch); ok {
			r.mark.rng = shifted
		} else {
			r.mark = nil
		}
	}
}

func (r *Renderer) dropRangeOverlays() {
	r.overlays = slices.DeleteFunc(r.overlays, func(o *overlay) bool { return o.re == nil })
	r.mark = nil
}

// overlayRanges returns the overlay extents on line in paint order; later
// entries are painted on top of earlier ones.
func (r *Renderer) overlayRanges(line int, text string) []overlayRange {
	var out []overlayRange
	n := buffer.UTF16Len(text)
	for _, o := range r.overlays {
		if o.re != nil {
			for _, m := range o.re.FindAllStringIndex(text, -1) {
				if m[0] == m[1] {
					continue
				}
				out = append(out, overlayRange{
					from:  buffer.ByteToUTF16(text, m[0]),
					to:    buffer.ByteToUTF16(text, m[1]),
					class: o.class,
				})
			}
			continue
		}
		if rr, ok := lineExtent(o.rng, line, n); ok {
			out = append(out, overlayRange{from: rr[0], to: rr[1], class: o.class, atomic: o.atomic})
		}
	}
	if r.mark != nil {
		if rr, ok := lineExtent(r.mark.rng, line, n); ok {
			out = append(out, overlayRange{from: rr[0], to: rr[1], class: r.mark.class, atomic: true})
		}
	}
	return out
}

// lineExtent clips rng to line, whose length is n.
func lineExtent(rng buffer.TextRange, line, n int) ([2]int, bool) {
	if line < rng.StartLine || line > rng.EndLine {
		return [2]int{}, false
	}
	from, to := 0, n
	if line == rng.StartLine {
		from = rng.StartColumn
	}
	if line == rng.EndLine {
		to = min(to, rng.EndColumn)
	}
	if from >= to {
		return [2]int{}, false
	}
	return [2]int{from, to}, true
}
