// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: search/index.go
// Summary: Index holds the ordered match ranges of the current query.
//
// Architecture:
//
//	Matches are kept sorted by start position. Buffer edits patch the list
//	in place: matches before the edit are untouched, matches after it are
//	shifted, and matches whose interior the edit touched are flagged stale
//	but left where they are.
//
//	Navigation binary-searches the match starts. The comparator reports a
//	stale candidate instead of ordering it; the search then revalidates
//	(drops every stale match and resets the cursor) and retries against
//	the cleaned list.

package search

import (
	"log"
	"slices"

	"github.com/framegrace/texeledit/buffer"
)

// Match is one hit of the current query.
type Match struct {
	Range buffer.TextRange
	stale bool
}

// Stale reports whether an edit invalidated the match.
func (m Match) Stale() bool { return m.stale }

// Index is the ordered match set. It is not safe for concurrent use.
type Index struct {
	matches []Match
	current int
	stale   int

	removeListener func()
}

// NewIndex creates an empty index. When buf is non-nil, edits to buf patch
// the matches.
func NewIndex(buf *buffer.LineBuffer) *Index {
	x := &Index{current: -1}
	if buf != nil {
		x.removeListener = buf.AddListener(x.ApplyEdit)
	}
	return x
}

// Close stops following buffer edits.
func (x *Index) Close() {
	if x.removeListener != nil {
		x.removeListener()
		x.removeListener = nil
	}
}

// SetMatches replaces the match set and clears the cursor.
func (x *Index) SetMatches(ranges []buffer.TextRange) {
	x.matches = x.matches[:0]
	x.stale = 0
	x.current = -1
	x.Append(ranges...)
}

// Append adds matches. Ranges that sort before the last match are inserted
// in order.
func (x *Index) Append(ranges ...buffer.TextRange) {
	for _, r := range ranges {
		m := Match{Range: r.Normalize()}
		n := len(x.matches)
		if n == 0 || !m.Range.Start().Before(x.matches[n-1].Range.Start()) {
			x.matches = append(x.matches, m)
			continue
		}
		i, _ := slices.BinarySearchFunc(x.matches, m, func(a, b Match) int {
			return a.Range.Start().Compare(b.Range.Start())
		})
		x.matches = slices.Insert(x.matches, i, m)
		if x.current >= i {
			x.current++
		}
	}
}

// Clear removes every match.
func (x *Index) Clear() { x.SetMatches(nil) }

// Len returns the number of matches, stale ones included.
func (x *Index) Len() int { return len(x.matches) }

// Matches returns the ranges of the valid matches in order.
func (x *Index) Matches() []buffer.TextRange {
	out := make([]buffer.TextRange, 0, len(x.matches)-x.stale)
	for _, m := range x.matches {
		if !m.stale {
			out = append(out, m.Range)
		}
	}
	return out
}

// Current returns the selected match and its 1-based ordinal.
func (x *Index) Current() (Match, int, bool) {
	if x.current < 0 || x.current >= len(x.matches) || x.matches[x.current].stale {
		return Match{}, 0, false
	}
	return x.matches[x.current], x.ordinal(x.current), true
}

// NextAfter selects the first match starting strictly after pos, wrapping
// to the first match. Returns the match and its 1-based ordinal.
func (x *Index) NextAfter(pos buffer.Position) (Match, int, bool) {
	for {
		i, ok := x.search(func(start buffer.Position) bool { return start.Compare(pos) > 0 })
		if !ok {
			x.revalidate()
			continue
		}
		if len(x.matches) == 0 {
			return Match{}, 0, false
		}
		if i == len(x.matches) {
			i = 0
		}
		if x.matches[i].stale {
			x.revalidate()
			continue
		}
		return x.selectMatch(i)
	}
}

// PreviousBefore selects the last match starting strictly before pos,
// wrapping to the last match.
func (x *Index) PreviousBefore(pos buffer.Position) (Match, int, bool) {
	for {
		i, ok := x.search(func(start buffer.Position) bool { return start.Compare(pos) >= 0 })
		if !ok {
			x.revalidate()
			continue
		}
		if len(x.matches) == 0 {
			return Match{}, 0, false
		}
		i--
		if i < 0 {
			i = len(x.matches) - 1
		}
		if x.matches[i].stale {
			x.revalidate()
			continue
		}
		return x.selectMatch(i)
	}
}

// Next selects the match after the current one, wrapping around. With no
// current match it selects the first.
func (x *Index) Next() (Match, int, bool) {
	if x.stale > 0 {
		x.revalidate()
	}
	if len(x.matches) == 0 {
		return Match{}, 0, false
	}
	return x.selectMatch((x.current + 1) % len(x.matches))
}

// Previous selects the match before the current one, wrapping around. With
// no current match it selects the last.
func (x *Index) Previous() (Match, int, bool) {
	if x.stale > 0 {
		x.revalidate()
	}
	n := len(x.matches)
	if n == 0 {
		return Match{}, 0, false
	}
	i := x.current - 1
	if x.current < 0 || i < 0 {
		i = n - 1
	}
	return x.selectMatch(i)
}

func (x *Index) selectMatch(i int) (Match, int, bool) {
	x.current = i
	return x.matches[i], x.ordinal(i), true
}

// ordinal returns the 1-based position of match i among the valid matches.
func (x *Index) ordinal(i int) int {
	if x.stale == 0 {
		return i + 1
	}
	n := 0
	for _, m := range x.matches[:i+1] {
		if !m.stale {
			n++
		}
	}
	return n
}

// search returns the smallest index whose match start satisfies pred, which
// must be monotone over match starts. ok is false when a stale match was
// encountered.
func (x *Index) search(pred func(start buffer.Position) bool) (i int, ok bool) {
	lo, hi := 0, len(x.matches)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		m := x.matches[mid]
		if m.stale {
			return 0, false
		}
		if pred(m.Range.Start()) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, true
}

// revalidate drops stale matches and clears the cursor.
func (x *Index) revalidate() {
	before := len(x.matches)
	x.matches = slices.DeleteFunc(x.matches, func(m Match) bool { return m.stale })
	x.stale = 0
	x.current = -1
	log.Printf("[SEARCH] Revalidated matches: dropped %d, kept %d", before-len(x.matches), len(x.matches))
}

// ApplyEdit patches the matches for a buffer change.
func (x *Index) ApplyEdit(ch buffer.Change) {
	for i := range x.matches {
		m := &x.matches[i]
		if m.stale {
			continue
		}
		shifted, ok := buffer.ShiftRange(m.Range, ch)
		if !ok {
			m.stale = true
			x.stale++
			continue
		}
		m.Range = shifted
	}
}

// StaleCount returns the number of matches awaiting revalidation.
func (x *Index) StaleCount() int { return x.stale }
