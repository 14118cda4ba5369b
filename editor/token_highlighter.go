// Copyright 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: editor/token_highlighter.go
// Summary: Highlights every occurrence of a selected word.

package editor

import (
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"

	"github.com/framegrace/texeledit/buffer"
	"github.com/framegrace/texeledit/viewport"
)

// TokenClass is the overlay class of highlighted word occurrences.
const TokenClass = "token-highlight"

// TokenHighlighter follows the selection. When exactly one whole word is
// selected, every occurrence of that word is highlighted.
type TokenHighlighter struct {
	r   *viewport.Renderer
	buf *buffer.LineBuffer

	word   string
	id     viewport.OverlayID
	active bool
}

// NewTokenHighlighter creates a highlighter painting through r.
func NewTokenHighlighter(r *viewport.Renderer, buf *buffer.LineBuffer) *TokenHighlighter {
	return &TokenHighlighter{r: r, buf: buf}
}

// Word returns the highlighted word, or "" when nothing is highlighted.
func (h *TokenHighlighter) Word() string {
	if !h.active {
		return ""
	}
	return h.word
}

// SelectionChanged updates the highlight for a new selection. ok is false
// when nothing is selected.
func (h *TokenHighlighter) SelectionChanged(sel buffer.TextRange, ok bool) {
	sel = sel.Normalize()
	if !ok || sel.StartLine != sel.EndLine || sel.IsEmpty() {
		h.Clear()
		return
	}
	line, err := h.buf.Line(sel.StartLine)
	if err != nil {
		h.Clear()
		return
	}
	from, _ := buffer.UTF16ToByte(line, sel.StartColumn)
	to, _ := buffer.UTF16ToByte(line, sel.EndColumn)
	word := line[from:to]
	if h.active && word == h.word {
		return
	}
	if f, t, isWord := wordAt(line, from); !isWord || f != from || t != to {
		h.Clear()
		return
	}
	h.Clear()
	h.word = word
	h.id = h.r.HighlightRegex(wordPattern(word), TokenClass)
	h.active = true
}

// Clear removes the highlight.
func (h *TokenHighlighter) Clear() {
	if !h.active {
		return
	}
	h.r.RemoveHighlight(h.id)
	h.active = false
	h.word = ""
}

func wordPattern(word string) *regexp.Regexp {
	expr := regexp.QuoteMeta(word)
	if isASCII(word) {
		// \b only understands ASCII word characters.
		expr = `\b` + expr + `\b`
	}
	return regexp.MustCompile(expr)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// wordAt returns the byte bounds of the word segment containing offset.
// isWord is false for segments of spaces or punctuation.
func wordAt(line string, offset int) (from, to int, isWord bool) {
	state := -1
	rest := line
	pos := 0
	for len(rest) > 0 {
		var seg string
		seg, rest, state = uniseg.FirstWordInString(rest, state)
		end := pos + len(seg)
		if offset >= pos && offset < end {
			return pos, end, hasWordRune(seg)
		}
		pos = end
	}
	return pos, pos, false
}

func hasWordRune(s string) bool {
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
